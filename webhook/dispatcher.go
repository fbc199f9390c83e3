package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-state-backup/core"
)

const (
	// OKBody is the fixed acknowledgement body; the run-task surface
	// requires this exact string.
	OKBody = "200 OK"

	invalidSignatureBody = "Invalid HMAC signature"

	// StateSaveMessage is the running-callback message for the run-task flow.
	StateSaveMessage = "Saving tfstate"
)

// Request is an inbound webhook request as seen by the dispatcher.
type Request struct {
	Method  string
	Headers map[string]string
	Body    []byte
}

// Result is what the dispatcher answers the webhook caller with. Fields is
// log context only and never serialized to the caller.
type Result struct {
	StatusCode int
	Body       string
	DeliveryID string
	Fields     map[string]any
}

// Verifier authenticates a request and names the scheme that matched.
type Verifier interface {
	Verify(req Request) (Scheme, error)
}

// Dispatcher authenticates inbound requests, classifies them as
// run-notification or run-task events, and routes them to the capture
// worker. Accepted events answer 200 with the fixed body; authentication
// failures answer 400 and contract violations answer 422.
type Dispatcher struct {
	Verifier Verifier
	Invoker  core.WorkerInvoker
	Reporter core.CallbackReporter
	DryRun   bool
	Logger   core.Logger
	// NewDeliveryID stamps each request for log correlation.
	NewDeliveryID func() string
}

// NewDispatcher wires a dispatcher with default delivery IDs and a resolved
// logger. The reporter may be nil when the run-task surface is unused.
func NewDispatcher(verifier Verifier, invoker core.WorkerInvoker, reporter core.CallbackReporter) *Dispatcher {
	_, logger := glog.Resolve("webhook", nil, nil)
	return &Dispatcher{
		Verifier:      verifier,
		Invoker:       invoker,
		Reporter:      reporter,
		Logger:        glog.Ensure(logger),
		NewDeliveryID: uuid.NewString,
	}
}

// Dispatch authenticates and routes one request. It never panics and never
// returns an error: every outcome, including internal faults, is folded
// into an explicit Result.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	if d == nil || d.Verifier == nil {
		return Result{StatusCode: http.StatusInternalServerError, Body: "dispatcher not configured"}
	}
	deliveryID := d.deliveryID()

	scheme, err := d.Verifier.Verify(req)
	if err != nil {
		d.logWarn(ctx, "invalid hmac signature", "delivery_id", deliveryID, "method", req.Method)
		return Result{
			StatusCode: http.StatusBadRequest,
			Body:       invalidSignatureBody,
			DeliveryID: deliveryID,
		}
	}

	switch strings.ToUpper(strings.TrimSpace(req.Method)) {
	case http.MethodGet:
		return d.okResult(deliveryID, map[string]any{"scheme": string(scheme), "liveness": true})
	case http.MethodPost:
		if scheme == SchemeNotification {
			return d.handleNotification(ctx, deliveryID, req.Body)
		}
		return d.handleRunTask(ctx, deliveryID, req.Body)
	default:
		d.logWarn(ctx, "unsupported method", "delivery_id", deliveryID, "method", req.Method)
		return Result{
			StatusCode: http.StatusBadRequest,
			Body:       invalidSignatureBody,
			DeliveryID: deliveryID,
		}
	}
}

func (d *Dispatcher) handleNotification(ctx context.Context, deliveryID string, body []byte) Result {
	var payload core.NotificationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return d.errorResult(ctx, deliveryID, wrapValidationError(err, "webhook: parse notification payload", nil))
	}

	first, ok := payload.First()
	if !ok {
		return d.errorResult(ctx, deliveryID, validationError("webhook: notification payload has no elements", nil))
	}

	switch core.ParseRunStatus(first.RunStatus) {
	case core.RunStatusTest:
		d.logInfo(ctx, "run_status null in payload, test event", "delivery_id", deliveryID)
		return d.okResult(deliveryID, nil)
	case core.RunStatusApplied:
		if err := payload.Validate(); err != nil {
			return d.errorResult(ctx, deliveryID, wrapValidationError(err, "webhook: notification payload incomplete", nil))
		}
		if d.DryRun {
			d.logInfo(ctx, "dry run, not invoking capture worker",
				"delivery_id", deliveryID, "workspace_name", payload.WorkspaceName)
			return d.okResult(deliveryID, map[string]any{"dry_run": true})
		}
		request := core.SaveStateRequest{
			WorkspaceID:   payload.WorkspaceID,
			WorkspaceName: payload.WorkspaceName,
			Source:        string(SchemeNotification),
		}
		if err := d.invoke(ctx, request); err != nil {
			return d.errorResult(ctx, deliveryID, err)
		}
		d.logInfo(ctx, "capture worker invoked",
			"delivery_id", deliveryID, "workspace_id", payload.WorkspaceID, "workspace_name", payload.WorkspaceName)
		return d.okResult(deliveryID, map[string]any{"workspace_name": payload.WorkspaceName})
	default:
		d.logWarn(ctx, "unsupported run status",
			"delivery_id", deliveryID, "run_status", strings.TrimSpace(derefString(first.RunStatus)))
		return d.okResult(deliveryID, nil)
	}
}

func (d *Dispatcher) handleRunTask(ctx context.Context, deliveryID string, body []byte) Result {
	var payload core.RunTaskPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return d.errorResult(ctx, deliveryID, wrapValidationError(err, "webhook: parse run task payload", nil))
	}

	switch core.ParseRunStage(payload.Stage) {
	case core.RunStageTest:
		d.logInfo(ctx, "run stage null in payload, test event", "delivery_id", deliveryID)
		return d.okResult(deliveryID, nil)
	case core.RunStagePostApply:
		if err := payload.Validate(); err != nil {
			return d.errorResult(ctx, deliveryID, wrapValidationError(err, "webhook: run task payload incomplete", nil))
		}
		if d.DryRun {
			d.logInfo(ctx, "dry run, not saving state file",
				"delivery_id", deliveryID, "workspace_name", payload.WorkspaceName)
			return d.okResult(deliveryID, map[string]any{"dry_run": true})
		}
		if d.Reporter == nil {
			return d.errorResult(ctx, deliveryID, core.NewError(
				"webhook: callback reporter is not configured",
				goerrors.CategoryInternal,
				http.StatusInternalServerError,
				core.BackupErrorInternal,
				nil,
			))
		}
		if err := d.Reporter.Report(ctx, payload.TaskResultCallbackURL, payload.AccessToken, StateSaveMessage, core.TaskStatusRunning); err != nil {
			return d.errorResult(ctx, deliveryID, err)
		}
		request := core.SaveStateRequest{
			WorkspaceID:   payload.WorkspaceID,
			WorkspaceName: payload.WorkspaceName,
			Source:        string(SchemeRunTask),
			Callback: &core.CallbackRef{
				URL:         payload.TaskResultCallbackURL,
				AccessToken: payload.AccessToken,
			},
		}
		// The worker owns the terminal passed/failed callback.
		if err := d.invoke(ctx, request); err != nil {
			return d.errorResult(ctx, deliveryID, err)
		}
		d.logInfo(ctx, "capture worker invoked",
			"delivery_id", deliveryID, "workspace_id", payload.WorkspaceID, "workspace_name", payload.WorkspaceName)
		return d.okResult(deliveryID, map[string]any{"workspace_name": payload.WorkspaceName})
	default:
		stage := strings.TrimSpace(derefString(payload.Stage))
		return d.errorResult(ctx, deliveryID, unsupportedStageError(stage, nil))
	}
}

func (d *Dispatcher) invoke(ctx context.Context, req core.SaveStateRequest) error {
	if d.Invoker == nil {
		return core.NewError(
			"webhook: worker invoker is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			core.BackupErrorInternal,
			nil,
		)
	}
	return d.Invoker.InvokeSave(ctx, req)
}

func (d *Dispatcher) okResult(deliveryID string, fields map[string]any) Result {
	return Result{
		StatusCode: http.StatusOK,
		Body:       OKBody,
		DeliveryID: deliveryID,
		Fields:     fields,
	}
}

func (d *Dispatcher) errorResult(ctx context.Context, deliveryID string, err error) Result {
	status := core.ErrorStatus(err)
	d.logWarn(ctx, "request rejected",
		"delivery_id", deliveryID, "status", status, "text_code", core.ErrorTextCode(err), "error", err.Error())
	return Result{
		StatusCode: status,
		Body:       err.Error(),
		DeliveryID: deliveryID,
		Fields:     map[string]any{"text_code": core.ErrorTextCode(err)},
	}
}

func (d *Dispatcher) deliveryID() string {
	if d != nil && d.NewDeliveryID != nil {
		return d.NewDeliveryID()
	}
	return uuid.NewString()
}

func (d *Dispatcher) logInfo(ctx context.Context, message string, args ...any) {
	if d == nil || d.Logger == nil {
		return
	}
	d.Logger.WithContext(ctx).Info(message, args...)
}

func (d *Dispatcher) logWarn(ctx context.Context, message string, args ...any) {
	if d == nil || d.Logger == nil {
		return
	}
	d.Logger.WithContext(ctx).Warn(message, args...)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
