package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// maxKeyLength bounds KV keys; the store only ever uses a handful of short names.
const maxKeyLength = 128

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrKeyTooLong   = errors.New("key exceeds maximum length")
	ErrInvalidJSON  = errors.New("value is not valid JSON")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateKey(key string) error {
	if err := validateString(key, "key"); err != nil {
		return err
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: %d bytes", ErrKeyTooLong, len(key))
	}
	return nil
}

// validateValue rejects what the kv_json triggers would, before a round trip.
func validateValue(key string, value []byte) error {
	if value == nil {
		return fmt.Errorf("%w: value", ErrNilParameter)
	}
	if !json.Valid(value) {
		return fmt.Errorf("%w: key %q", ErrInvalidJSON, key)
	}
	return nil
}
