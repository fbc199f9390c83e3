package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	BackupErrorAuthFailed       = "BACKUP_AUTH_FAILED"
	BackupErrorBadInput         = "BACKUP_BAD_INPUT"
	BackupErrorValidation       = "BACKUP_VALIDATION"
	BackupErrorUnsupportedEvent = "BACKUP_UNSUPPORTED_EVENT"
	BackupErrorUpstreamFailed   = "BACKUP_UPSTREAM_FAILED"
	BackupErrorStorageFailed    = "BACKUP_STORAGE_FAILED"
	BackupErrorInternal         = "BACKUP_INTERNAL"
)

// NewError builds an envelope error with category, HTTP code, and text code.
func NewError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// WrapError wraps a source error into an envelope, preserving the cause.
func WrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return NewError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// ErrorStatus resolves the HTTP status an error should surface as. Non
// envelope errors default to 500.
func ErrorStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}

// ErrorTextCode resolves the machine-readable text code for an error.
func ErrorTextCode(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && strings.TrimSpace(richErr.TextCode) != "" {
		return richErr.TextCode
	}
	return BackupErrorInternal
}
