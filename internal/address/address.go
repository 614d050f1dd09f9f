// Package address provides the canonical participant identifier used for
// group members, admins, owners and conversations.
package address

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/gwillem/signal-groups/internal/groupid"
)

// ErrInvalidIdentifier is returned when a string cannot be parsed into an Address.
var ErrInvalidIdentifier = errors.New("invalid identifier")

var validate = validator.New()

// Address is an immutable, canonical participant or group identifier.
// The zero value is the empty address. Addresses are comparable and can be
// used as map keys.
type Address struct {
	s string
}

// Parse canonicalizes s into an Address. Accepted forms are E.164 phone
// numbers (formatting characters are stripped, a leading "00" becomes "+"),
// account UUIDs and serialized group ids. Numbers without a country code
// prefix are rejected.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if groupid.IsGroup(s) {
		if _, err := groupid.Decode(s); err != nil {
			return Address{}, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
		}
		return Address{s: s}, nil
	}
	if id, err := uuid.Parse(s); err == nil {
		return Address{s: id.String()}, nil
	}
	number := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
	if rest, ok := strings.CutPrefix(number, "00"); ok {
		number = "+" + rest
	}
	// e164 alone accepts a missing "+", which would give one number two forms.
	if !strings.HasPrefix(number, "+") {
		return Address{}, fmt.Errorf("%w: %q lacks country code prefix", ErrInvalidIdentifier, s)
	}
	if err := validate.Var(number, "required,e164"); err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return Address{s: number}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAll parses every identifier in ss, stopping at the first failure.
func ParseAll(ss []string) ([]Address, error) {
	out := make([]Address, 0, len(ss))
	for _, s := range ss {
		a, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// String returns the canonical serialized form.
func (a Address) String() string { return a.s }

// IsZero reports whether a is the empty address.
func (a Address) IsZero() bool { return a.s == "" }

// IsGroup reports whether a identifies a group conversation.
func (a Address) IsGroup() bool { return groupid.IsGroup(a.s) }

// IsMMSGroup reports whether a identifies a legacy MMS group.
func (a Address) IsMMSGroup() bool { return groupid.IsMMS(a.s) }

// Set returns the distinct addresses of addrs sorted by canonical form.
func Set(addrs ...[]Address) []Address {
	out := lo.Uniq(slices.Concat(addrs...))
	Sort(out)
	return out
}

// Sort orders addrs by canonical form in place.
func Sort(addrs []Address) {
	slices.SortFunc(addrs, func(x, y Address) int { return strings.Compare(x.s, y.s) })
}

// Strings returns the canonical forms of addrs in order.
func Strings(addrs []Address) []string {
	return lo.Map(addrs, func(a Address, _ int) string { return a.s })
}
