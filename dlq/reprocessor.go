package dlq

import (
	"context"
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-state-backup/capture"
	"github.com/goliatone/go-state-backup/core"
)

// CaptureService is the slice of the capture package the reprocessor needs.
type CaptureService interface {
	Capture(ctx context.Context, req core.SaveStateRequest) error
}

// BatchResult accounts for one reprocessing pass. Failed messages stay on
// the queue and come back after the visibility timeout.
type BatchResult struct {
	Processed int
	Skipped   int
	Failed    int
}

// Reprocessor drains dead-lettered notification deliveries back through the
// capture path. Messages delete only after a successful capture or a
// deliberate skip; one bad message never blocks the rest of the batch.
type Reprocessor struct {
	Transport core.DeadLetterTransport
	Service   CaptureService
	Store     core.ObjectStore
	// CompareLastModified enables the cheap early-out that skips messages
	// older than the stored object's last-modified time. Off by default:
	// the capture path's freshness gate already guarantees correctness.
	CompareLastModified bool
	Logger              core.Logger
}

// NewReprocessor wires a reprocessor with a resolved logger.
func NewReprocessor(transport core.DeadLetterTransport, service CaptureService, store core.ObjectStore) *Reprocessor {
	_, logger := glog.Resolve("dlq", nil, nil)
	return &Reprocessor{
		Transport: transport,
		Service:   service,
		Store:     store,
		Logger:    glog.Ensure(logger),
	}
}

// Run receives up to max messages and processes them.
func (r *Reprocessor) Run(ctx context.Context, max int32) (BatchResult, error) {
	if r == nil || r.Transport == nil || r.Service == nil {
		return BatchResult{}, core.NewError(
			"dlq: reprocessor is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			core.BackupErrorInternal,
			nil,
		)
	}

	messages, err := r.Transport.Receive(ctx, max)
	if err != nil {
		return BatchResult{}, err
	}
	return r.ProcessBatch(ctx, messages), nil
}

// ProcessBatch replays each message through the capture path. Failures are
// logged and counted, never returned: the platform redelivers what was not
// deleted.
func (r *Reprocessor) ProcessBatch(ctx context.Context, messages []core.DeadLetterMessage) BatchResult {
	var result BatchResult
	logger := r.logger().WithContext(ctx)

	for _, msg := range messages {
		payload, err := decodePayload(msg)
		if err != nil {
			logger.Error("dead letter message unreadable, leaving on queue",
				"receipt_handle", msg.ReceiptHandle, "error", err.Error())
			result.Failed++
			continue
		}

		if r.CompareLastModified {
			stale, err := r.deliveryIsStale(ctx, payload)
			if err != nil {
				logger.Warn("last modified check failed, replaying anyway",
					"workspace_name", payload.WorkspaceName, "error", err.Error())
			} else if stale {
				if err := r.Transport.Delete(ctx, msg.ReceiptHandle); err != nil {
					logger.Error("stale message not acknowledged",
						"receipt_handle", msg.ReceiptHandle, "error", err.Error())
					result.Failed++
					continue
				}
				logger.Info("stale delivery dropped",
					"workspace_name", payload.WorkspaceName)
				result.Skipped++
				continue
			}
		}

		request := core.SaveStateRequest{
			WorkspaceID:   payload.WorkspaceID,
			WorkspaceName: payload.WorkspaceName,
			Source:        "dead_letter",
		}
		if err := r.Service.Capture(ctx, request); err != nil {
			logger.Error("dead letter replay failed, leaving on queue",
				"workspace_name", payload.WorkspaceName,
				"receipt_handle", msg.ReceiptHandle,
				"error", err.Error())
			result.Failed++
			continue
		}

		if err := r.Transport.Delete(ctx, msg.ReceiptHandle); err != nil {
			logger.Error("replayed message not acknowledged",
				"receipt_handle", msg.ReceiptHandle, "error", err.Error())
			result.Failed++
			continue
		}
		logger.Info("dead letter replayed", "workspace_name", payload.WorkspaceName)
		result.Processed++
	}
	return result
}

// deliveryIsStale reports whether the stored object was already written
// after the run this delivery describes.
func (r *Reprocessor) deliveryIsStale(ctx context.Context, payload core.NotificationPayload) (bool, error) {
	if r.Store == nil {
		return false, nil
	}
	first, ok := payload.First()
	if !ok || first.RunCreatedAt == nil {
		return false, nil
	}

	stored, err := r.Store.Head(ctx, core.BackupKey(payload.WorkspaceName))
	if err != nil {
		return false, err
	}
	if !stored.Exists || stored.LastModified.IsZero() {
		return false, nil
	}
	return first.RunCreatedAt.Before(stored.LastModified), nil
}

func decodePayload(msg core.DeadLetterMessage) (core.NotificationPayload, error) {
	var envelope core.DeadLetterBody
	if err := json.Unmarshal([]byte(msg.Body), &envelope); err != nil {
		return core.NotificationPayload{}, err
	}

	var payload core.NotificationPayload
	if err := json.Unmarshal(envelope.RequestPayload, &payload); err != nil {
		return core.NotificationPayload{}, err
	}
	if err := payload.Validate(); err != nil {
		return core.NotificationPayload{}, err
	}
	return payload, nil
}

func (r *Reprocessor) logger() core.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return glog.Nop()
}

var _ CaptureService = (*capture.Service)(nil)
