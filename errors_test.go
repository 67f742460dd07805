package pricecheck_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hyperengineering/pricecheck"
)

func TestSentinelErrors_ErrorsIs(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
	}{
		{"ErrNotFound", pricecheck.ErrNotFound},
		{"ErrConflict", pricecheck.ErrConflict},
		{"ErrStoreClosed", pricecheck.ErrStoreClosed},
		{"ErrOffline", pricecheck.ErrOffline},
		{"ErrCreationExhausted", pricecheck.ErrCreationExhausted},
		{"ErrInvalidEAN", pricecheck.ErrInvalidEAN},
		{"ErrSyncAborted", pricecheck.ErrSyncAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("operation failed: %w", tt.sentinel)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(wrapped, %v) = false, want true", tt.sentinel)
			}
		})
	}
}

func TestIsConflict(t *testing.T) {
	if !pricecheck.IsConflict(fmt.Errorf("store: put P1: %w", pricecheck.ErrConflict)) {
		t.Error("IsConflict(wrapped ErrConflict) = false, want true")
	}
	if pricecheck.IsConflict(pricecheck.ErrNotFound) {
		t.Error("IsConflict(ErrNotFound) = true, want false")
	}
}

func TestValidationError_ErrorsAs(t *testing.T) {
	err := fmt.Errorf("scan: %w", pricecheck.ValidateEAN("123"))

	var ve *pricecheck.ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("errors.As failed to extract ValidationError")
	}
	if ve.Field != pricecheck.FieldEAN {
		t.Errorf("Field = %q, want %q", ve.Field, pricecheck.FieldEAN)
	}
	if !errors.Is(err, pricecheck.ErrInvalidEAN) {
		t.Error("errors.Is(err, ErrInvalidEAN) = false, want true")
	}
}

func TestValidationError_ErrorFormat(t *testing.T) {
	err := &pricecheck.ValidationError{Field: "NormalPrice", Message: "must be greater than zero"}
	want := "validation: NormalPrice: must be greater than zero"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestTransportError_ErrorsAs(t *testing.T) {
	inner := errors.New("connection refused")
	err := fmt.Errorf("upload: %w", &pricecheck.TransportError{Operation: "create_collected_prices", StatusCode: 503, Err: inner})

	var te *pricecheck.TransportError
	if !errors.As(err, &te) {
		t.Fatal("errors.As failed to extract TransportError")
	}
	if te.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", te.StatusCode)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is(err, inner) = false, want true")
	}
}

func TestTransportError_ErrorFormat(t *testing.T) {
	inner := errors.New("boom")
	tests := []struct {
		name string
		err  *pricecheck.TransportError
		want string
	}{
		{
			name: "with status",
			err:  &pricecheck.TransportError{Operation: "read_entity_set", StatusCode: 401, Err: inner},
			want: "transport: read_entity_set failed (status 401): boom",
		},
		{
			name: "network",
			err:  &pricecheck.TransportError{Operation: "read_entity_set", Err: inner},
			want: "transport: read_entity_set failed: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
