package capture

import (
	"context"
	"net/http"
	"os"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-state-backup/core"
)

// Service captures a workspace's current state snapshot into the object
// store, gated on freshness. Capture is idempotent: replaying a request for
// an already-stored snapshot is a successful no-op.
type Service struct {
	States     core.StateClient
	Store      core.ObjectStore
	Comparator Comparator
	DryRun     bool
	Logger     core.Logger
	// StagingDir overrides the temp directory for downloaded payloads.
	// Empty means the platform default.
	StagingDir string
}

// NewService wires a capture service with a resolved logger.
func NewService(states core.StateClient, store core.ObjectStore) *Service {
	_, logger := glog.Resolve("capture", nil, nil)
	logger = glog.Ensure(logger)
	return &Service{
		States:     states,
		Store:      store,
		Comparator: Comparator{Logger: logger},
		Logger:     logger,
	}
}

// Capture fetches the workspace's current state version, compares it against
// the stored snapshot, and uploads when strictly newer. The payload is
// staged to a temp file so the upload can supply a seekable body; the file
// is removed whether or not the upload succeeds.
func (s *Service) Capture(ctx context.Context, req core.SaveStateRequest) error {
	if s == nil || s.States == nil || s.Store == nil {
		return core.NewError(
			"capture: service is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			core.BackupErrorInternal,
			nil,
		)
	}
	if err := req.Validate(); err != nil {
		return core.WrapError(
			err,
			goerrors.CategoryValidation,
			"capture: invalid save request",
			http.StatusUnprocessableEntity,
			core.BackupErrorValidation,
			nil,
		)
	}
	logger := s.logger().WithContext(ctx)

	version, err := s.States.CurrentStateVersion(ctx, req.WorkspaceID)
	if err != nil {
		return err
	}

	if s.DryRun {
		logger.Info("dry run, not persisting state snapshot",
			"workspace_name", req.WorkspaceName,
			"state_created_at", core.FormatStateTimestamp(version.CreatedAt))
		return nil
	}

	key := core.BackupKey(req.WorkspaceName)

	stored, err := s.Store.Head(ctx, key)
	if err != nil {
		return err
	}
	decision := s.Comparator.ShouldPersist(ctx, version.CreatedAt, stored)
	if !decision.Persist {
		logger.Info("stored snapshot is current, skipping upload",
			"workspace_name", req.WorkspaceName,
			"key", key,
			"reason", decision.Reason,
			"stored_created_at", core.FormatStateTimestamp(decision.Stored))
		return nil
	}

	staging, err := os.CreateTemp(s.StagingDir, "tfstate-*.json")
	if err != nil {
		return core.WrapError(
			err,
			goerrors.CategoryInternal,
			"capture: create staging file",
			http.StatusInternalServerError,
			core.BackupErrorInternal,
			nil,
		)
	}
	defer func() {
		staging.Close()
		os.Remove(staging.Name())
	}()

	if err := s.States.DownloadTo(ctx, version.DownloadURL, staging); err != nil {
		return err
	}
	if _, err := staging.Seek(0, 0); err != nil {
		return core.WrapError(
			err,
			goerrors.CategoryInternal,
			"capture: rewind staging file",
			http.StatusInternalServerError,
			core.BackupErrorInternal,
			nil,
		)
	}

	metadata := map[string]string{
		core.MetadataStateCreatedAt: core.FormatStateTimestamp(version.CreatedAt),
	}
	if err := s.Store.Upload(ctx, key, staging, metadata); err != nil {
		return err
	}

	logger.Info("state snapshot persisted",
		"workspace_name", req.WorkspaceName,
		"key", key,
		"state_created_at", metadata[core.MetadataStateCreatedAt],
		"reason", decision.Reason)
	return nil
}

func (s *Service) logger() core.Logger {
	if s != nil && s.Logger != nil {
		return s.Logger
	}
	return glog.Nop()
}
