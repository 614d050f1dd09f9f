// Package groupid encodes and decodes serialized group identifiers.
//
// A serialized id carries a prefix that tags the group as secure (delivered
// over the encrypted path) or legacy MMS (local-only), followed by the raw id
// in lowercase hex.
package groupid

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	securePrefix = "__textsecure_group__!"
	mmsPrefix    = "__signal_mms_group__!"
)

// ErrInvalid is returned when a string is not a serialized group id.
var ErrInvalid = errors.New("invalid group id")

// Encode serializes a raw group id, tagged legacy MMS when mms is true.
func Encode(raw []byte, mms bool) string {
	if mms {
		return mmsPrefix + hex.EncodeToString(raw)
	}
	return securePrefix + hex.EncodeToString(raw)
}

// Decode returns the raw bytes of a serialized group id.
func Decode(encoded string) ([]byte, error) {
	var body string
	switch {
	case strings.HasPrefix(encoded, securePrefix):
		body = encoded[len(securePrefix):]
	case strings.HasPrefix(encoded, mmsPrefix):
		body = encoded[len(mmsPrefix):]
	default:
		return nil, fmt.Errorf("%w: unknown prefix in %q", ErrInvalid, encoded)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalid)
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return raw, nil
}

// IsGroup reports whether s carries a group id prefix.
func IsGroup(s string) bool {
	return strings.HasPrefix(s, securePrefix) || strings.HasPrefix(s, mmsPrefix)
}

// IsMMS reports whether s is a legacy MMS group id.
func IsMMS(s string) bool {
	return strings.HasPrefix(s, mmsPrefix)
}
