package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/wazoefu/mahudhurio/core"
)

// Reconciler turns a user-confirmed draft into the right repository call
// and keeps the draft store in sync with the outcome. A draft is only
// discarded once the server has durably accepted the data, so a failed
// submission never loses the user's edits.
type Reconciler struct {
	repo   *Repository
	drafts DraftStore
	log    core.Logger
}

func NewReconciler(repo *Repository, drafts DraftStore, log core.Logger) *Reconciler {
	return &Reconciler{repo: repo, drafts: drafts, log: log}
}

// Submit validates the draft, creates or updates the record for its key,
// and clears the draft on success. Validation failures abort before any
// repository call; a locked record aborts without a remote call; every
// failure leaves the draft intact and propagates the typed error.
func (rc *Reconciler) Submit(ctx context.Context, d Draft) (Record, error) {
	sub := d.Submission()
	if err := sub.Validate(rc.repo.validate); err != nil {
		return Record{}, err
	}

	existing, err := rc.lookup(ctx, &d)
	if err != nil {
		return Record{}, errors.Wrap(err, "looking up existing record")
	}

	var rec Record
	switch {
	case existing == nil:
		rec, err = rc.repo.Create(ctx, sub)
	case existing.IsLocked:
		return Record{}, ErrRecordLocked
	default:
		upd := UpdateSubmission{Students: sub.Students}
		if sub.LectureID != existing.LectureID {
			upd.LectureID = &sub.LectureID
		}
		rec, err = rc.repo.Update(ctx, existing.ID, upd, existing.Version)
	}
	if err != nil {
		return Record{}, err
	}

	rc.drafts.ClearDraft(ctx, d.ClassID, d.Date)
	rc.log.Debug("attendance submitted", map[string]interface{}{
		"record": rec.ID, "class": rec.ClassID, "version": rec.Version,
	})
	return rec, nil
}

// LoadState resolves what the UI should show for (classID, date): the
// confirmed record when one exists, otherwise the stored draft,
// otherwise nothing. Server truth supersedes local edits: a found record
// clears any draft for the same key.
func (rc *Reconciler) LoadState(ctx context.Context, classID string, date time.Time) (*Record, *Draft, error) {
	rec, err := rc.repo.GetByDate(ctx, classID, date)
	if err != nil {
		return nil, nil, errors.Wrap(err, "fetching record")
	}
	if rec != nil {
		rc.drafts.ClearDraft(ctx, classID, date)
		return rec, nil, nil
	}
	return nil, rc.drafts.LoadDraft(ctx, classID, date), nil
}

func (rc *Reconciler) lookup(ctx context.Context, d *Draft) (*Record, error) {
	if d.LectureID != "" {
		return rc.repo.GetByLecture(ctx, d.ClassID, d.LectureID)
	}
	return rc.repo.GetByDate(ctx, d.ClassID, d.Date)
}
