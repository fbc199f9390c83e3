package core

import (
	"context"
	"io"

	glog "github.com/goliatone/go-logger/glog"
)

// ObjectStore is the durable snapshot store. Head must report a missing
// object as ObjectInfo{Exists: false}, not as an error.
type ObjectStore interface {
	Head(ctx context.Context, key string) (ObjectInfo, error)
	Upload(ctx context.Context, key string, body io.Reader, metadata map[string]string) error
}

// SecretSource resolves named secrets from the parameter store, decrypted.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// TokenProvider yields the long-lived control-plane bearer credential.
// Implementations cache for process lifetime; rotation requires a restart.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StateClient talks to the control plane's state-version surface.
type StateClient interface {
	CurrentStateVersion(ctx context.Context, workspaceID string) (StateVersion, error)
	DownloadTo(ctx context.Context, downloadURL string, w io.Writer) error
}

// CallbackReporter sends run-task result updates back to the control plane.
type CallbackReporter interface {
	Report(ctx context.Context, callbackURL string, accessToken string, message string, status TaskStatus) error
}

// DeadLetterTransport is the queue holding failed async deliveries. Delete
// acknowledges successful reprocessing; undeleted messages are redelivered
// by the platform.
type DeadLetterTransport interface {
	Receive(ctx context.Context, max int32) ([]DeadLetterMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// WorkerInvoker hands a save request to the capture worker without awaiting
// its outcome. Implementations must validate before accepting; once accepted
// the caller only learns about failures through logs and dead-lettering.
type WorkerInvoker interface {
	InvokeSave(ctx context.Context, req SaveStateRequest) error
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider
