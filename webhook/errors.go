package webhook

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-state-backup/core"
)

func authFailedError(metadata map[string]any) error {
	return core.NewError(
		"webhook: invalid hmac signature",
		goerrors.CategoryAuth,
		http.StatusBadRequest,
		core.BackupErrorAuthFailed,
		metadata,
	)
}

func validationError(message string, metadata map[string]any) error {
	return core.NewError(
		message,
		goerrors.CategoryValidation,
		http.StatusUnprocessableEntity,
		core.BackupErrorValidation,
		metadata,
	)
}

func wrapValidationError(source error, message string, metadata map[string]any) error {
	return core.WrapError(
		source,
		goerrors.CategoryValidation,
		message,
		http.StatusUnprocessableEntity,
		core.BackupErrorValidation,
		metadata,
	)
}

func unsupportedStageError(stage string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["stage"] = stage
	return core.NewError(
		"webhook: unsupported run stage",
		goerrors.CategoryOperation,
		http.StatusUnprocessableEntity,
		core.BackupErrorUnsupportedEvent,
		metadata,
	)
}
