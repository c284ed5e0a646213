// Package errors tests for error codes, wrapping and validation errors.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestErrorCodes_areUnique verifies all error codes are unique.
func TestErrorCodes_areUnique(t *testing.T) {
	codes := []ErrorCode{
		ErrInternal, ErrInvalid,
		ErrValidation, ErrNotFound, ErrUnauthenticated,
		ErrDatabase, ErrMigration,
		ErrSyncTransport, ErrSyncRejected, ErrSyncConflict, ErrSyncTimeout, ErrSyncOffline, ErrSyncInProgress,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if code == "" {
			t.Error("ErrorCode should not be empty")
		}
		if seen[code] {
			t.Errorf("ErrorCode %q is duplicated", code)
		}
		seen[code] = true
	}
}

// TestAppError_Error verifies error message formatting.
func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without underlying error",
			appError: &AppError{Code: ErrInternal, Message: "something failed"},
			want:     "[INTERNAL_ERROR] something failed",
		},
		{
			name:     "error with underlying error",
			appError: &AppError{Code: ErrDatabase, Message: "insert failed", Err: errors.New("disk full")},
			want:     "[DATABASE_ERROR] insert failed: disk full",
		},
		{
			name:     "not found error",
			appError: NotFound("journal_entries", "abc"),
			want:     "[NOT_FOUND] journal_entries abc not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appError.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestWrap verifies error wrapping keeps the cause reachable.
func TestWrap(t *testing.T) {
	cause := errors.New("connection reset")

	err := Wrap(ErrSyncTransport, "push failed", cause)
	if err.Code != ErrSyncTransport {
		t.Errorf("Wrap() code = %q, want %q", err.Code, ErrSyncTransport)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

// TestIs verifies error code checking through wrapping layers.
func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{
			name: "matching AppError",
			err:  New(ErrNotFound, "not found"),
			code: ErrNotFound,
			want: true,
		},
		{
			name: "non-matching AppError",
			err:  New(ErrNotFound, "not found"),
			code: ErrInternal,
			want: false,
		},
		{
			name: "wrapped by fmt.Errorf",
			err:  fmt.Errorf("update: %w", New(ErrNotFound, "gone")),
			code: ErrNotFound,
			want: true,
		},
		{
			name: "inner AppError behind outer AppError",
			err:  Wrap(ErrDatabase, "tx failed", New(ErrValidation, "bad")),
			code: ErrValidation,
			want: true,
		},
		{
			name: "validation error",
			err:  &ValidationError{Entity: "x", Fields: []FieldError{{Field: "name", Message: "required"}}},
			code: ErrValidation,
			want: true,
		},
		{
			name: "non-AppError",
			err:  errors.New("standard error"),
			code: ErrInternal,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			code: ErrInternal,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCodeOf verifies the outermost code is reported.
func TestCodeOf(t *testing.T) {
	if got := CodeOf(Wrap(ErrSyncRejected, "rejected", nil)); got != ErrSyncRejected {
		t.Errorf("CodeOf() = %q, want %q", got, ErrSyncRejected)
	}
	if got := CodeOf(errors.New("plain")); got != ErrInternal {
		t.Errorf("CodeOf(plain) = %q, want %q", got, ErrInternal)
	}
}

// =====================================================
// ValidationError Tests
// =====================================================

func TestValidationError_ErrNilWhenEmpty(t *testing.T) {
	v := &ValidationError{Entity: "tracking_recurrings"}
	if err := v.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}

	var nilErr *ValidationError
	if err := nilErr.Err(); err != nil {
		t.Errorf("nil Err() = %v, want nil", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	v := &ValidationError{Entity: "tracking_recurrings"}
	v.Add("name", "is required")
	v.Add("intervalDays", "must be >= %d", 0)

	err := v.Err()
	if err == nil {
		t.Fatal("Err() = nil, want error")
	}
	msg := err.Error()
	for _, want := range []string{"VALIDATION_ERROR", "tracking_recurrings", "name: is required", "intervalDays: must be >= 0"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !v.Has("name") || v.Has("userId") {
		t.Error("Has() reported the wrong fields")
	}
}
