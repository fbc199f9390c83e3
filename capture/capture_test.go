package capture

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/goliatone/go-state-backup/core"
)

type stubStateClient struct {
	version      core.StateVersion
	versionErr   error
	payload      string
	downloadErr  error
	versionCalls int
	downloads    []string
}

func (s *stubStateClient) CurrentStateVersion(ctx context.Context, workspaceID string) (core.StateVersion, error) {
	s.versionCalls++
	return s.version, s.versionErr
}

func (s *stubStateClient) DownloadTo(ctx context.Context, downloadURL string, w io.Writer) error {
	s.downloads = append(s.downloads, downloadURL)
	if s.downloadErr != nil {
		return s.downloadErr
	}
	_, err := io.WriteString(w, s.payload)
	return err
}

type stubStore struct {
	info    core.ObjectInfo
	headErr error

	headCalls   int
	uploads     []uploadCall
	uploadErr   error
	uploadedKey string
}

type uploadCall struct {
	key      string
	body     string
	metadata map[string]string
}

func (s *stubStore) Head(ctx context.Context, key string) (core.ObjectInfo, error) {
	s.headCalls++
	return s.info, s.headErr
}

func (s *stubStore) Upload(ctx context.Context, key string, body io.Reader, metadata map[string]string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.uploads = append(s.uploads, uploadCall{key: key, body: string(data), metadata: metadata})
	s.uploadedKey = key
	return s.uploadErr
}

func newTestService(states *stubStateClient, store *stubStore) *Service {
	svc := NewService(states, store)
	svc.StagingDir = ""
	return svc
}

func validRequest() core.SaveStateRequest {
	return core.SaveStateRequest{WorkspaceID: "ws-1", WorkspaceName: "foo"}
}

func TestCaptureFreshSnapshot(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	states := &stubStateClient{
		version: core.StateVersion{DownloadURL: "https://archive/state", CreatedAt: created},
		payload: `{"serial": 42}`,
	}
	store := &stubStore{}
	svc := newTestService(states, store)

	if err := svc.Capture(context.Background(), validRequest()); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(store.uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(store.uploads))
	}
	upload := store.uploads[0]
	if upload.key != "tfc-state-backup/foo.tfstate" {
		t.Fatalf("unexpected object key %q", upload.key)
	}
	if upload.body != `{"serial": 42}` {
		t.Fatalf("uploaded body does not match downloaded payload: %q", upload.body)
	}
	if got := upload.metadata[core.MetadataStateCreatedAt]; got != "2024-05-01T12:00:00.000000Z" {
		t.Fatalf("unexpected recorded timestamp %q", got)
	}
}

func TestCaptureSkipsWhenStoredIsCurrent(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	states := &stubStateClient{
		version: core.StateVersion{DownloadURL: "https://archive/state", CreatedAt: created},
	}
	store := &stubStore{
		info: core.ObjectInfo{
			Exists:   true,
			Metadata: map[string]string{core.MetadataStateCreatedAt: core.FormatStateTimestamp(created)},
		},
	}
	svc := newTestService(states, store)

	if err := svc.Capture(context.Background(), validRequest()); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(store.uploads) != 0 {
		t.Fatalf("expected replay to skip the upload")
	}
	if len(states.downloads) != 0 {
		t.Fatalf("skipped capture must not download the payload")
	}
}

func TestCaptureMonotonicOverwrite(t *testing.T) {
	t1 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	store := &stubStore{
		info: core.ObjectInfo{
			Exists:   true,
			Metadata: map[string]string{core.MetadataStateCreatedAt: core.FormatStateTimestamp(t2)},
		},
	}
	states := &stubStateClient{
		version: core.StateVersion{DownloadURL: "https://archive/old", CreatedAt: t1},
		payload: "old",
	}
	svc := newTestService(states, store)

	// Delayed delivery of the older run must not clobber the newer record.
	if err := svc.Capture(context.Background(), validRequest()); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(store.uploads) != 0 {
		t.Fatalf("older snapshot must not overwrite a newer record")
	}
}

func TestCaptureDryRunTouchesNothing(t *testing.T) {
	states := &stubStateClient{
		version: core.StateVersion{DownloadURL: "https://archive/state", CreatedAt: time.Now()},
	}
	store := &stubStore{}
	svc := newTestService(states, store)
	svc.DryRun = true

	if err := svc.Capture(context.Background(), validRequest()); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if states.versionCalls != 1 {
		t.Fatalf("dry run still resolves the current state version")
	}
	if store.headCalls != 0 || len(store.uploads) != 0 || len(states.downloads) != 0 {
		t.Fatalf("dry run must not touch storage or download the payload")
	}
}

func TestCaptureInvalidRequestRejected(t *testing.T) {
	svc := newTestService(&stubStateClient{}, &stubStore{})
	err := svc.Capture(context.Background(), core.SaveStateRequest{WorkspaceName: "foo"})
	if err == nil {
		t.Fatalf("expected invalid request to fail")
	}
	if got := core.ErrorTextCode(err); got != core.BackupErrorValidation {
		t.Fatalf("expected validation text code, got %q", got)
	}
}

func TestCapturePropagatesStateVersionError(t *testing.T) {
	wantErr := errors.New("upstream unavailable")
	states := &stubStateClient{versionErr: wantErr}
	svc := newTestService(states, &stubStore{})

	if err := svc.Capture(context.Background(), validRequest()); !errors.Is(err, wantErr) {
		t.Fatalf("expected state version error to propagate, got %v", err)
	}
}

func TestCapturePropagatesUploadError(t *testing.T) {
	wantErr := errors.New("storage unavailable")
	states := &stubStateClient{
		version: core.StateVersion{DownloadURL: "https://archive/state", CreatedAt: time.Now()},
		payload: "{}",
	}
	store := &stubStore{uploadErr: wantErr}
	svc := newTestService(states, store)

	if err := svc.Capture(context.Background(), validRequest()); !errors.Is(err, wantErr) {
		t.Fatalf("expected upload error to propagate, got %v", err)
	}
}
