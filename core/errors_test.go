package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorStatusAndTextCode(t *testing.T) {
	err := NewError(
		"core: signature mismatch",
		goerrors.CategoryAuth,
		http.StatusBadRequest,
		BackupErrorAuthFailed,
		map[string]any{"scheme": "notification"},
	)
	if got := ErrorStatus(err); got != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", got)
	}
	if got := ErrorTextCode(err); got != BackupErrorAuthFailed {
		t.Fatalf("expected auth text code, got %q", got)
	}
}

func TestErrorStatusDefaults(t *testing.T) {
	if got := ErrorStatus(nil); got != http.StatusOK {
		t.Fatalf("expected 200 for nil error, got %d", got)
	}
	plain := errors.New("boom")
	if got := ErrorStatus(plain); got != http.StatusInternalServerError {
		t.Fatalf("expected 500 for plain error, got %d", got)
	}
	if got := ErrorTextCode(plain); got != BackupErrorInternal {
		t.Fatalf("expected internal text code, got %q", got)
	}
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(
		cause,
		goerrors.CategoryExternal,
		"core: state version lookup failed",
		http.StatusBadGateway,
		BackupErrorUpstreamFailed,
		nil,
	)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped error to keep its cause")
	}
	if got := ErrorStatus(err); got != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", got)
	}
}

func TestWrapErrorNilSource(t *testing.T) {
	err := WrapError(nil, goerrors.CategoryInternal, "core: unexpected", http.StatusInternalServerError, BackupErrorInternal, nil)
	if err == nil {
		t.Fatalf("expected error for nil source")
	}
	if got := fmt.Sprint(ErrorStatus(err)); got != "500" {
		t.Fatalf("expected 500, got %s", got)
	}
}
