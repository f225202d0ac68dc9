package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{CodePlanInvalid, http.StatusBadRequest},
		{CodeUnknownModel, http.StatusBadRequest},
		{CodeExecutionNotFound, http.StatusNotFound},
		{CodeJobNotCancelable, http.StatusConflict},
		{CodeQueueError, http.StatusServiceUnavailable},
		{CodeProviderError, http.StatusBadGateway},
		{CodeDatabaseError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := New(tc.code, "x").HTTPStatus; got != tc.want {
			t.Errorf("code %s: expected status %d, got %d", tc.code, tc.want, got)
		}
	}
}

func TestWithDetailDoesNotMutatePredefined(t *testing.T) {
	e := ErrPlanInvalid.WithDetail("steps: required")
	if ErrPlanInvalid.Detail != "" {
		t.Fatalf("predefined error was mutated: %q", ErrPlanInvalid.Detail)
	}
	if e.Detail != "steps: required" {
		t.Fatalf("unexpected detail %q", e.Detail)
	}
}

func TestAsAppErrorUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", ErrJobNotFound)
	if !IsAppError(wrapped) {
		t.Fatal("expected wrapped AppError to be detected")
	}
	if got := AsAppError(wrapped); got.Code != CodeJobNotFound {
		t.Fatalf("expected code %s, got %s", CodeJobNotFound, got.Code)
	}
	if !stderrors.Is(wrapped, ErrJobNotFound) {
		t.Fatal("expected errors.Is to match by code")
	}

	plain := stderrors.New("boom")
	if got := AsAppError(plain); got.Code != CodeUnknown || got.Err != plain {
		t.Fatalf("unexpected conversion: %+v", got)
	}
}
