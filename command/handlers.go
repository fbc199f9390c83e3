package command

import (
	"context"
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-state-backup/core"
)

// CaptureService is the slice of the capture package this handler needs.
type CaptureService interface {
	Capture(ctx context.Context, req core.SaveStateRequest) error
}

// SaveStateCommand runs one capture and, when the request carries a
// callback, reports the terminal passed or failed task result.
type SaveStateCommand struct {
	service  CaptureService
	reporter core.CallbackReporter
	logger   core.Logger
}

// NewSaveStateCommand builds the handler. The reporter may be nil when the
// run-task surface is unused.
func NewSaveStateCommand(service CaptureService, reporter core.CallbackReporter) *SaveStateCommand {
	_, logger := glog.Resolve("command", nil, nil)
	return &SaveStateCommand{
		service:  service,
		reporter: reporter,
		logger:   glog.Ensure(logger),
	}
}

func (c *SaveStateCommand) Execute(ctx context.Context, msg SaveStateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: capture service is required")
	}

	captureErr := c.service.Capture(ctx, msg.Request)

	if msg.Request.Callback == nil {
		return captureErr
	}
	if c.reporter == nil {
		return errors.Join(captureErr, commandDependencyError("command: callback reporter is required"))
	}

	status := core.TaskStatusPassed
	message := "State snapshot saved"
	if captureErr != nil {
		status = core.TaskStatusFailed
		message = "State snapshot failed"
	}

	reportErr := c.reporter.Report(ctx, msg.Request.Callback.URL, msg.Request.Callback.AccessToken, message, status)
	if reportErr != nil && c.logger != nil {
		c.logger.WithContext(ctx).Error("terminal task result not delivered",
			"workspace_name", msg.Request.WorkspaceName,
			"status", string(status),
			"error", reportErr.Error())
	}
	return errors.Join(captureErr, reportErr)
}

func commandDependencyError(message string) error {
	return core.NewError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.BackupErrorInternal,
		nil,
	)
}
