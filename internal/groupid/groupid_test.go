package groupid

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xab, 0xcd}

	secure := Encode(raw, false)
	if secure != "__textsecure_group__!0102abcd" {
		t.Fatalf("secure: got %q", secure)
	}
	mms := Encode(raw, true)
	if mms != "__signal_mms_group__!0102abcd" {
		t.Fatalf("mms: got %q", mms)
	}

	for _, enc := range []string{secure, mms} {
		got, err := Decode(enc)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, raw) {
			t.Fatalf("decode %q: got %x, want %x", enc, got, raw)
		}
	}

	if IsMMS(secure) || !IsMMS(mms) {
		t.Fatal("IsMMS mismatch")
	}
	if !IsGroup(secure) || !IsGroup(mms) || IsGroup("+15551234567") {
		t.Fatal("IsGroup mismatch")
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		"+15551234567",
		"__textsecure_group__!",
		"__textsecure_group__!zz",
		"__signal_mms_group__!abc",
	} {
		if _, err := Decode(s); !errors.Is(err, ErrInvalid) {
			t.Errorf("Decode(%q): got %v, want ErrInvalid", s, err)
		}
	}
}
