package main

import (
	"fmt"
	"os"
)

// optionalString distinguishes a flag that was not given from one given
// with an empty value.
type optionalString struct {
	value *string
}

func (o *optionalString) UnmarshalFlag(val string) error {
	o.value = &val
	return nil
}

func (o *optionalString) MarshalFlag() (string, error) {
	if o.value == nil {
		return "", nil
	}
	return *o.value, nil
}

// readAvatar loads avatar bytes from path; an empty path means no avatar.
func readAvatar(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	return data, nil
}

func valueOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
