package capture

import (
	"context"
	"time"

	"github.com/goliatone/go-state-backup/core"
)

// Decision is the freshness gate's verdict for one candidate snapshot.
type Decision struct {
	Persist bool
	// Reason names which rule produced the verdict, for logs.
	Reason string
	// Stored is the recorded timestamp of the existing object, when one was
	// readable.
	Stored time.Time
}

const (
	reasonNoStoredObject    = "no stored object"
	reasonNoRecordedStamp   = "stored object has no recorded timestamp"
	reasonUnreadableStamp   = "stored timestamp unreadable"
	reasonCandidateNewer    = "candidate is strictly newer"
	reasonCandidateNotNewer = "candidate is not newer than stored"
)

// Comparator decides whether a candidate snapshot replaces the stored one.
// Only a strictly newer candidate persists; equal timestamps skip, so
// replays and duplicate deliveries are no-ops.
type Comparator struct {
	Logger core.Logger
}

// ShouldPersist applies the freshness rules to a candidate creation
// timestamp against the stored object record. A stored object whose
// timestamp cannot be read never blocks a backup.
func (c Comparator) ShouldPersist(ctx context.Context, candidate time.Time, stored core.ObjectInfo) Decision {
	if !stored.Exists {
		return Decision{Persist: true, Reason: reasonNoStoredObject}
	}

	recorded, present, err := stored.StateCreatedAt()
	if err != nil {
		if c.Logger != nil {
			c.Logger.WithContext(ctx).Warn("stored snapshot timestamp unreadable, overwriting",
				"error", err.Error())
		}
		return Decision{Persist: true, Reason: reasonUnreadableStamp}
	}
	if !present {
		return Decision{Persist: true, Reason: reasonNoRecordedStamp}
	}

	if recorded.Before(candidate) {
		return Decision{Persist: true, Reason: reasonCandidateNewer, Stored: recorded}
	}
	return Decision{Persist: false, Reason: reasonCandidateNotNewer, Stored: recorded}
}
