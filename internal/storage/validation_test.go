package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name      string
		str       string
		paramName string
		wantErr   bool
	}{
		{
			name:      "valid string",
			str:       "test",
			paramName: "param",
			wantErr:   false,
		},
		{
			name:      "empty string",
			str:       "",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "whitespace only",
			str:       "   ",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "string with spaces",
			str:       "  test  ",
			paramName: "param",
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, tt.paramName)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.paramName) {
				t.Errorf("validateString() error should contain param name %s, got %v", tt.paramName, err)
			}
		})
	}
}

func TestStorageValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		run     func() error
		wantErr error
		name    string
	}{
		{
			name: "get with nil context",
			run: func() error {
				//nolint:staticcheck // Testing nil context handling
				_, _, err := store.Get(nil, "settings")
				return err
			},
			wantErr: ErrNilContext,
		},
		{
			name: "get with blank key",
			run: func() error {
				_, _, err := store.Get(ctx, "  ")
				return err
			},
			wantErr: ErrEmptyString,
		},
		{
			name:    "set with empty key",
			run:     func() error { return store.Set(ctx, "", []byte(`{}`)) },
			wantErr: ErrEmptyString,
		},
		{
			name:    "set with nil value",
			run:     func() error { return store.Set(ctx, "settings", nil) },
			wantErr: ErrNilParameter,
		},
		{
			name:    "set with malformed JSON",
			run:     func() error { return store.Set(ctx, "settings", []byte(`{"cooldownSeconds":`)) },
			wantErr: ErrInvalidJSON,
		},
		{
			name:    "set with oversized key",
			run:     func() error { return store.Set(ctx, strings.Repeat("k", maxKeyLength+1), []byte(`{}`)) },
			wantErr: ErrKeyTooLong,
		},
		{
			name:    "delete with empty key",
			run:     func() error { return store.Delete(ctx, "") },
			wantErr: ErrEmptyString,
		},
		{
			name: "keys with nil context",
			run: func() error {
				//nolint:staticcheck // Testing nil context handling
				_, err := store.Keys(nil)
				return err
			},
			wantErr: ErrNilContext,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStorage_RejectsNonJSONValue(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.Set(ctx, "purchases", []byte("not json")); err == nil {
		t.Fatal("expected non-JSON value to be rejected")
	}

	if err := store.Set(ctx, "purchases", []byte(`[]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "purchases", []byte("{broken")); err == nil {
		t.Fatal("expected non-JSON update to be rejected")
	}

	value, _, err := store.Get(ctx, "purchases")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != `[]` {
		t.Errorf("rejected update changed stored value to %s", value)
	}
}
