package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestRejectedError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		expectedMsg string
	}{
		{
			name:        "carries backend message verbatim",
			err:         &RejectedError{Message: "Kode OTP salah"},
			expectedMsg: "Kode OTP salah",
		},
		{
			name:        "empty message falls back to generic text",
			err:         &RejectedError{},
			expectedMsg: "request rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expectedMsg {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.expectedMsg)
			}
		})
	}
}

func TestIsRejected(t *testing.T) {
	rej := &RejectedError{Message: "NIK atau password salah"}
	wrapped := fmt.Errorf("login: %w", rej)

	got, ok := IsRejected(wrapped)
	if !ok {
		t.Fatal("IsRejected() should unwrap a wrapped RejectedError")
	}
	if got.Message != rej.Message {
		t.Errorf("message = %q, want %q", got.Message, rej.Message)
	}

	if _, ok := IsRejected(ErrUnreachable); ok {
		t.Error("IsRejected() should not match transport errors")
	}
}

func TestIsUnreachable(t *testing.T) {
	wrapped := fmt.Errorf("post endpoint: %w", ErrUnreachable)
	if !IsUnreachable(wrapped) {
		t.Error("IsUnreachable() should match wrapped ErrUnreachable")
	}
	if IsUnreachable(errors.New("boom")) {
		t.Error("IsUnreachable() should not match arbitrary errors")
	}
	if IsUnreachable(&RejectedError{Message: "no"}) {
		t.Error("IsUnreachable() should not match rejections")
	}
}
