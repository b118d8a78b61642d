package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorConstructors(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name         string
		err          *Error
		wantKind     ErrorKind
		wantRecovery Recovery
	}{
		{"validation aborts", Validation(CodeInvalidOutcome, "bad outcome"), KindValidation, RecoveryAbort},
		{"state skips", State(CodeAlreadyResolved, "done"), KindState, RecoverySkip},
		{"authorization aborts", Authorization(CodeNotAdmin, "not admin"), KindAuthorization, RecoveryAbort},
		{"resource retries", Resource(CodeOracleUnavailable, "feed down", cause), KindResource, RecoveryRetry},
		{"arithmetic is manual", Arithmetic(CodePayoutOverflow, "overflow"), KindArithmetic, RecoveryManual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.wantKind)
			}
			if tt.err.Recovery != tt.wantRecovery {
				t.Errorf("Recovery = %v, want %v", tt.err.Recovery, tt.wantRecovery)
			}
			if !IsKind(tt.err, tt.wantKind) {
				t.Errorf("IsKind(%v) = false, want true", tt.wantKind)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Resource(CodeOracleUnavailable, "binance unreachable", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	wrapped := fmt.Errorf("fetch oracle: %w", err)
	var de *Error
	if !errors.As(wrapped, &de) {
		t.Fatal("errors.As failed on wrapped error")
	}
	if de.Code != CodeOracleUnavailable {
		t.Errorf("Code = %q, want %q", de.Code, CodeOracleUnavailable)
	}
	if CodeOf(wrapped) != CodeOracleUnavailable {
		t.Errorf("CodeOf() = %q, want %q", CodeOf(wrapped), CodeOracleUnavailable)
	}
	if !IsKind(wrapped, KindResource) {
		t.Error("IsKind(wrapped, resource) = false, want true")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	if IsKind(errors.New("plain"), KindValidation) {
		t.Error("IsKind(plain) = true, want false")
	}
}
