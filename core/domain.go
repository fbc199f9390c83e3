package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// BackupKeyPrefix scopes every stored snapshot under one bucket folder.
	BackupKeyPrefix = "tfc-state-backup/"
	// BackupKeySuffix marks stored snapshots as terraform state payloads.
	BackupKeySuffix = ".tfstate"
	// MetadataStateCreatedAt is the object metadata key recording the
	// snapshot creation timestamp used by the freshness gate.
	MetadataStateCreatedAt = "state_created_at"
)

const stateTimestampLayout = "2006-01-02T15:04:05.000000Z"

// BackupKey returns the deterministic object key for a workspace snapshot.
// The key is workspace-name scoped, not run scoped: one record per workspace.
func BackupKey(workspaceName string) string {
	return BackupKeyPrefix + strings.TrimSpace(workspaceName) + BackupKeySuffix
}

// FormatStateTimestamp renders a snapshot timestamp the way it is stored in
// object metadata: UTC with microsecond precision.
func FormatStateTimestamp(t time.Time) string {
	return t.UTC().Format(stateTimestampLayout)
}

// ParseStateTimestamp accepts RFC3339 timestamps with or without fractional
// seconds, which covers both the control-plane API and stored metadata.
func ParseStateTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("core: parse state timestamp %q: %w", value, err)
	}
	return parsed.UTC(), nil
}

// RunStatus is the closed set of notification run statuses this system
// understands. Unknown statuses map to RunStatusUnrecognized rather than
// being a lookup miss.
type RunStatus int

const (
	// RunStatusTest marks a placeholder event (run_status null in payload).
	RunStatusTest RunStatus = iota
	// RunStatusApplied triggers a state capture.
	RunStatusApplied
	// RunStatusUnrecognized covers every status with no handler.
	RunStatusUnrecognized
)

// ParseRunStatus classifies a raw run_status value. A nil pointer is the
// control plane's test event.
func ParseRunStatus(raw *string) RunStatus {
	if raw == nil {
		return RunStatusTest
	}
	switch strings.TrimSpace(*raw) {
	case "applied":
		return RunStatusApplied
	default:
		return RunStatusUnrecognized
	}
}

// RunStage is the closed set of run-task stages this system understands.
type RunStage int

const (
	RunStageTest RunStage = iota
	RunStagePostApply
	RunStageUnrecognized
)

// ParseRunStage classifies a raw stage value. A nil pointer is a test event.
func ParseRunStage(raw *string) RunStage {
	if raw == nil {
		return RunStageTest
	}
	switch strings.TrimSpace(*raw) {
	case "post_apply":
		return RunStagePostApply
	default:
		return RunStageUnrecognized
	}
}

// Notification is one element of a notification payload. Only the first
// element is ever inspected.
type Notification struct {
	RunStatus    *string    `json:"run_status"`
	Message      string     `json:"message,omitempty"`
	RunCreatedAt *time.Time `json:"run_created_at,omitempty"`
}

// NotificationPayload is the body of a run-notification webhook.
type NotificationPayload struct {
	WorkspaceID   string         `json:"workspace_id"`
	WorkspaceName string         `json:"workspace_name"`
	Notifications []Notification `json:"notifications"`
}

// First returns the first notification element when present.
func (p NotificationPayload) First() (Notification, bool) {
	if len(p.Notifications) == 0 {
		return Notification{}, false
	}
	return p.Notifications[0], true
}

func (p NotificationPayload) Validate() error {
	if strings.TrimSpace(p.WorkspaceID) == "" {
		return fmt.Errorf("core: workspace id is required")
	}
	if strings.TrimSpace(p.WorkspaceName) == "" {
		return fmt.Errorf("core: workspace name is required")
	}
	return nil
}

// RunTaskPayload is the body of a run-task webhook.
type RunTaskPayload struct {
	Stage                 *string `json:"stage"`
	WorkspaceID           string  `json:"workspace_id"`
	WorkspaceName         string  `json:"workspace_name"`
	TaskResultCallbackURL string  `json:"task_result_callback_url"`
	AccessToken           string  `json:"access_token"`
}

func (p RunTaskPayload) Validate() error {
	if strings.TrimSpace(p.WorkspaceID) == "" {
		return fmt.Errorf("core: workspace id is required")
	}
	if strings.TrimSpace(p.WorkspaceName) == "" {
		return fmt.Errorf("core: workspace name is required")
	}
	if strings.TrimSpace(p.TaskResultCallbackURL) == "" {
		return fmt.Errorf("core: task result callback url is required")
	}
	if strings.TrimSpace(p.AccessToken) == "" {
		return fmt.Errorf("core: access token is required")
	}
	return nil
}

// StateVersion is the control plane's answer for a workspace's current
// snapshot. Not persisted beyond the upload call.
type StateVersion struct {
	DownloadURL string
	CreatedAt   time.Time
}

// ObjectInfo describes the stored snapshot record for a backup key, if any.
type ObjectInfo struct {
	Exists       bool
	Metadata     map[string]string
	LastModified time.Time
}

// StateCreatedAt extracts the recorded snapshot timestamp from object
// metadata. The second return reports whether the field was present at all;
// a present-but-unparsable value returns an error.
func (i ObjectInfo) StateCreatedAt() (time.Time, bool, error) {
	if !i.Exists || len(i.Metadata) == 0 {
		return time.Time{}, false, nil
	}
	raw, ok := i.Metadata[MetadataStateCreatedAt]
	if !ok || strings.TrimSpace(raw) == "" {
		return time.Time{}, false, nil
	}
	parsed, err := ParseStateTimestamp(raw)
	if err != nil {
		return time.Time{}, true, err
	}
	return parsed, true, nil
}

// TaskStatus is a run-task result status reported back to the control plane.
type TaskStatus string

const (
	TaskStatusRunning TaskStatus = "running"
	TaskStatusPassed  TaskStatus = "passed"
	TaskStatusFailed  TaskStatus = "failed"
)

// CallbackRef carries the per-run credentials for reporting task results.
type CallbackRef struct {
	URL         string
	AccessToken string
}

// SaveStateRequest is the unit of work handed to the capture worker, either
// by the webhook dispatcher or by the dead-letter reprocessor.
type SaveStateRequest struct {
	WorkspaceID   string
	WorkspaceName string
	// Source records which inbound surface produced the request.
	Source string
	// Callback is set for the run-task flow only; the worker owns the
	// terminal passed/failed report.
	Callback *CallbackRef
}

func (r SaveStateRequest) Validate() error {
	if strings.TrimSpace(r.WorkspaceID) == "" {
		return fmt.Errorf("core: workspace id is required")
	}
	if strings.TrimSpace(r.WorkspaceName) == "" {
		return fmt.Errorf("core: workspace name is required")
	}
	if r.Callback != nil {
		if strings.TrimSpace(r.Callback.URL) == "" {
			return fmt.Errorf("core: callback url is required")
		}
		if strings.TrimSpace(r.Callback.AccessToken) == "" {
			return fmt.Errorf("core: callback access token is required")
		}
	}
	return nil
}

// DeadLetterMessage is one failed async delivery pulled from the queue. The
// body is the platform's JSON envelope around the original event.
type DeadLetterMessage struct {
	ReceiptHandle string `json:"receiptHandle"`
	Body          string `json:"body"`
}

// DeadLetterBody is the platform envelope inside a dead-letter message body.
type DeadLetterBody struct {
	RequestPayload json.RawMessage `json:"requestPayload"`
}
