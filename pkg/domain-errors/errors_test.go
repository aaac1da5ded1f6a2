package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeUnauthorized, "authentication required")
		if !HasCode(err, CodeUnauthorized) {
			t.Fatalf("expected HasCode to match %s", CodeUnauthorized)
		}
		if HasCode(err, CodeForbidden) {
			t.Fatalf("expected HasCode not to match %s", CodeForbidden)
		}
	})

	t.Run("matches through fmt.Errorf wrapping", func(t *testing.T) {
		inner := New(CodePaymentRequired, "no active subscription")
		err := fmt.Errorf("evaluate route: %w", inner)
		if !HasCode(err, CodePaymentRequired) {
			t.Fatalf("expected HasCode to see through fmt.Errorf wrapping")
		}
	})

	t.Run("non-domain errors match nothing", func(t *testing.T) {
		if HasCode(errors.New("plain"), CodeInternal) {
			t.Fatalf("plain errors must not carry codes")
		}
	})
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "failed to reach billing backend")

	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped error to preserve cause for errors.Is")
	}
	if got := CodeOf(err); got != CodeInternal {
		t.Fatalf("expected code %s, got %s", CodeInternal, got)
	}
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Fatalf("expected unclassified errors to default to %s, got %s", CodeInternal, got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:      http.StatusBadRequest,
		CodeUnauthorized:    http.StatusUnauthorized,
		CodePaymentRequired: http.StatusPaymentRequired,
		CodeNotFound:        http.StatusNotFound,
		CodeConflict:        http.StatusConflict,
		CodeUnavailable:     http.StatusServiceUnavailable,
		CodeInternal:        http.StatusInternalServerError,
		Code("mystery"):     http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Fatalf("code %s: expected status %d, got %d", code, want, got)
		}
	}
}
