package address

import (
	"errors"
	"slices"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+15551234567", "+15551234567"},
		{" +1 (555) 123-4567 ", "+15551234567"},
		{"+31.6.47272794", "+31647272794"},
		{"0031 6 47272794", "+31647272794"},
		{"0B2C6D1E-7A5F-4C3B-9E8D-1F2A3B4C5D6E", "0b2c6d1e-7a5f-4c3b-9e8d-1f2a3b4c5d6e"},
		{"__textsecure_group__!00112233", "__textsecure_group__!00112233"},
		{"__signal_mms_group__!ff", "__signal_mms_group__!ff"},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "5551234567", "15550000000", "+0123", "bob", "__textsecure_group__!xyz"} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("Parse(%q): got %v, want ErrInvalidIdentifier", in, err)
		}
	}
}

func TestParseAllStopsAtFirstError(t *testing.T) {
	_, err := ParseAll([]string{"+15551234567", "nope", "+15557654321"})
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("got %v, want ErrInvalidIdentifier", err)
	}

	got, err := ParseAll(nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("ParseAll(nil) = %v, %v", got, err)
	}
}

func TestEqualityIsCanonical(t *testing.T) {
	a := MustParse("+1 555 123 4567")
	b := MustParse("+15551234567")
	if a != b {
		t.Fatalf("%q != %q", a, b)
	}
	if c := MustParse("001 (555) 123-4567"); c != b {
		t.Fatalf("%q != %q", c, b)
	}
	m := map[Address]bool{a: true}
	if !m[b] {
		t.Fatal("map lookup by canonical form failed")
	}
}

func TestSetCollapsesAndSorts(t *testing.T) {
	a := MustParse("+15550000003")
	b := MustParse("+15550000001")
	c := MustParse("+15550000002")

	got := Set([]Address{a, b}, []Address{b, c, a})
	want := []string{"+15550000001", "+15550000002", "+15550000003"}
	if !slices.Equal(Strings(got), want) {
		t.Fatalf("got %v, want %v", Strings(got), want)
	}
}

func TestKinds(t *testing.T) {
	if MustParse("+15551234567").IsGroup() {
		t.Fatal("phone number reported as group")
	}
	g := MustParse("__signal_mms_group__!ff")
	if !g.IsGroup() || !g.IsMMSGroup() {
		t.Fatal("mms group kind mismatch")
	}
	if !(Address{}).IsZero() {
		t.Fatal("zero address not zero")
	}
}
