package attendance

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type (
	// Draft is the locally-owned working copy of an unsent submission,
	// keyed by (class, date). It is never transmitted as-is; it only
	// materializes into a submission when the user confirms.
	Draft struct {
		ClassID   string              `json:"class_id"`
		Date      time.Time           `json:"date"`
		LectureID string              `json:"lecture_id,omitempty"`
		Students  []StudentAttendance `json:"students"`
		SavedAt   time.Time           `json:"saved_at"`
	}

	// DraftStore persists in-progress submissions so interrupted work can
	// be resumed. Persistence is best-effort: implementations log failures
	// and never surface them. A lost draft degrades UX, it does not
	// corrupt state.
	DraftStore interface {
		SaveDraft(ctx context.Context, d Draft)
		// LoadDraft returns nil when no draft exists or it fails to parse.
		LoadDraft(ctx context.Context, classID string, date time.Time) *Draft
		ClearDraft(ctx context.Context, classID string, date time.Time)
	}
)

// DraftKey derives the storage key for a (class, date) pair.
func DraftKey(classID string, date time.Time) string {
	return fmt.Sprintf("draft:%s:%s", classID, date.UTC().Format("2006-01-02"))
}

func (d *Draft) Submission() NewSubmission {
	return NewSubmission{
		ClassID:   d.ClassID,
		Date:      d.Date,
		LectureID: d.LectureID,
		Students:  d.Students,
	}
}

// Autosaver periodically snapshots an editing session into the draft
// store. It is an explicit scheduled task whose lifetime is tied to the
// session: Stop cancels the ticker and must be called when the session
// ends.
type Autosaver struct {
	store    DraftStore
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
}

func NewAutosaver(store DraftStore, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Autosaver{
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins autosaving. snapshot returns the current edit and whether
// it should still be persisted; once it reports false (submission
// confirmed, session abandoned) the tick is skipped. Saving is
// fire-and-forget with no ordering guarantee relative to other
// operations.
func (a *Autosaver) Start(ctx context.Context, snapshot func() (Draft, bool)) {
	a.started.Store(true)
	go func() {
		defer close(a.done)
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if d, ok := snapshot(); ok {
					a.store.SaveDraft(ctx, d)
				}
			case <-ctx.Done():
				return
			case <-a.stop:
				return
			}
		}
	}()
}

// Stop cancels the autosave task; safe to call more than once.
func (a *Autosaver) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
	if a.started.Load() {
		<-a.done
	}
}
