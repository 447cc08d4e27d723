package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := []struct {
		code   Code
		status int
		retry  bool
	}{
		{CodeValidation, http.StatusBadRequest, false},
		{CodeNotFound, http.StatusNotFound, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, false},
		{CodePaymentRejected, http.StatusPaymentRequired, false},
		{CodeDependency, http.StatusServiceUnavailable, true},
		{CodeInternal, http.StatusInternalServerError, true},
	}
	for _, tc := range cases {
		meta := MetadataFor(tc.code)
		if meta.HTTPStatus != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.code, tc.status, meta.HTTPStatus)
		}
		if meta.Retryable != tc.retry {
			t.Fatalf("%s: expected retryable=%t", tc.code, tc.retry)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeDependency, cause, "gateway unreachable")
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	typed := As(err)
	if typed == nil || typed.Code() != CodeDependency {
		t.Fatalf("expected typed dependency error, got %v", err)
	}
}

func TestAsReturnsNilForForeignErrors(t *testing.T) {
	if As(errors.New("plain")) != nil {
		t.Fatalf("expected nil for untyped error")
	}
	if As(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(New(CodePaymentRejected, "card declined")) {
		t.Fatalf("processor rejection must not be retryable")
	}
	if !IsRetryable(New(CodeDependency, "timeout")) {
		t.Fatalf("transport failure should be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("untyped errors are not retryable")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeStateConflict, "downgrade not allowed").WithDetails(map[string]string{
		"current_plan":   "pro",
		"requested_plan": "basic",
	})
	details, ok := err.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected map details, got %T", err.Details())
	}
	if details["current_plan"] != "pro" {
		t.Fatalf("details lost: %v", details)
	}
}
