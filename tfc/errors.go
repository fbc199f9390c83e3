package tfc

import (
	"encoding/json"
	"io"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-state-backup/core"
)

func upstreamError(message string, source error, metadata map[string]any) error {
	if source == nil {
		return core.NewError(message, goerrors.CategoryExternal, http.StatusBadGateway, core.BackupErrorUpstreamFailed, metadata)
	}
	return core.WrapError(source, goerrors.CategoryExternal, message, http.StatusBadGateway, core.BackupErrorUpstreamFailed, metadata)
}

func internalError(message string, source error) error {
	if source == nil {
		return core.NewError(message, goerrors.CategoryInternal, http.StatusInternalServerError, core.BackupErrorInternal, nil)
	}
	return core.WrapError(source, goerrors.CategoryInternal, message, http.StatusInternalServerError, core.BackupErrorInternal, nil)
}

func decodeJSON(r io.Reader, target any) error {
	return json.NewDecoder(r).Decode(target)
}
