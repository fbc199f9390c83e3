package command

import (
	"github.com/goliatone/go-state-backup/core"
)

const (
	TypeSaveState = "backup.command.save_state"
)

// SaveStateMessage asks the capture worker to back up one workspace.
type SaveStateMessage struct {
	Request core.SaveStateRequest
}

func (SaveStateMessage) Type() string { return TypeSaveState }

func (m SaveStateMessage) Validate() error {
	return m.Request.Validate()
}
