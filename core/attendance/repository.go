package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wazoefu/mahudhurio/core"
)

var (
	// errors
	ErrNotFound        = errors.New("attendance record not found")
	ErrDuplicate       = errors.New("an attendance record already exists for this class, date and lecture")
	ErrVersionConflict = errors.New("attendance record was modified by someone else; refetch and reapply your changes")
	ErrRecordLocked    = errors.New("attendance record is locked and can no longer be modified")
)

// RemoteError is a transport failure or 5xx from the attendance service.
// The optimistic state has been rolled back when it is returned.
type RemoteError struct {
	Status int
	Msg    string
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("attendance service unreachable: %s", e.Msg)
	}
	return fmt.Sprintf("attendance service error (%d): %s", e.Status, e.Msg)
}

type (
	// Gateway is the remote attendance service boundary. Get* return
	// (nil, nil) when no record exists.
	Gateway interface {
		CreateRecord(ctx context.Context, sub NewSubmission) (Record, error)
		UpdateRecord(ctx context.Context, recordID string, sub UpdateSubmission, expectedVersion int) (Record, error)
		DeleteRecord(ctx context.Context, classID, recordID string) error
		GetRecordByDate(ctx context.Context, classID string, date time.Time) (*Record, error)
		GetRecordByLecture(ctx context.Context, classID, lectureID string) (*Record, error)
		FilterRecords(ctx context.Context, filter QueryFilter) (RecordPage, error)
		QueryStatistics(ctx context.Context, classID string, startDate, endDate time.Time) (Statistics, error)
	}

	// Repository holds the client's current view of attendance records and
	// mediates every read/write against the remote service. Writes are
	// applied optimistically to the local view and rolled back when the
	// remote call fails. The cache is owned exclusively by the Repository;
	// every record handed out is a deep copy.
	Repository struct {
		gw       Gateway
		validate *validator.Validate

		mu      sync.RWMutex
		records map[Key]*Record
		byID    map[string]Key
	}
)

func NewRepository(gw Gateway, validate *validator.Validate) *Repository {
	return &Repository{
		gw:       gw,
		validate: validate,
		records:  make(map[Key]*Record),
		byID:     make(map[string]Key),
	}
}

// Create inserts an optimistic record for the submission and issues the
// remote create. On success the temporary record is replaced by the
// server-confirmed one; on failure the insert is rolled back. A record
// already confirmed for the same key is a Duplicate, never a merge.
func (r *Repository) Create(ctx context.Context, sub NewSubmission) (Record, error) {
	if err := sub.Validate(r.validate); err != nil {
		return Record{}, err
	}

	key := sub.Key()
	now := time.Now().UTC()
	tmp := Record{
		ID:        "tmp-" + uuid.NewString(),
		ClassID:   sub.ClassID,
		Date:      sub.Date,
		LectureID: sub.LectureID,
		Type:      recordType(sub.LectureID),
		Students:  append([]StudentAttendance(nil), sub.Students...),
		State:     StatePendingCreate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	if _, exists := r.records[key]; exists {
		r.mu.Unlock()
		return Record{}, ErrDuplicate
	}
	r.records[key] = &tmp
	r.mu.Unlock()

	confirmed, err := r.gw.CreateRecord(ctx, sub)
	if err != nil {
		// roll back to absent
		r.mu.Lock()
		delete(r.records, key)
		r.mu.Unlock()
		return Record{}, err
	}

	r.put(confirmed)
	return confirmed.Clone(), nil
}

// Update optimistically rewrites the local record and issues the remote
// update carrying expectedVersion. A stale version is a VersionConflict:
// the caller must refetch, never retry blindly. Locked records are
// rejected before any remote call.
func (r *Repository) Update(ctx context.Context, recordID string, sub UpdateSubmission, expectedVersion int) (Record, error) {
	if err := sub.Validate(r.validate); err != nil {
		return Record{}, err
	}

	r.mu.Lock()
	var snapshot *Record
	key, cached := r.byID[recordID]
	if cached {
		cur, ok := r.records[key]
		if !ok {
			// the id index and the record map disagree; the local view
			// can no longer be trusted
			r.mu.Unlock()
			return Record{}, core.NewShutdownError("attendance cache index out of sync: " + recordID)
		}
		if cur.IsLocked {
			r.mu.Unlock()
			return Record{}, ErrRecordLocked
		}
		if cur.Version != expectedVersion {
			r.mu.Unlock()
			return Record{}, ErrVersionConflict
		}
		snap := cur.Clone()
		snapshot = &snap

		next := cur.Clone()
		applyUpdate(&next, sub)
		next.Version = expectedVersion + 1
		next.State = StatePendingUpdate
		next.UpdatedAt = time.Now().UTC()

		nextKey := next.Key()
		if nextKey != key {
			delete(r.records, key)
			r.byID[recordID] = nextKey
			key = nextKey
		}
		r.records[key] = &next
	}
	r.mu.Unlock()

	confirmed, err := r.gw.UpdateRecord(ctx, recordID, sub, expectedVersion)
	if err != nil {
		if snapshot != nil {
			// restore the pre-update snapshot
			r.mu.Lock()
			delete(r.records, key)
			r.store(*snapshot)
			r.mu.Unlock()
		}
		return Record{}, err
	}

	r.mu.Lock()
	if key != confirmed.Key() {
		delete(r.records, key)
	}
	r.store(confirmed)
	r.mu.Unlock()
	return confirmed.Clone(), nil
}

// Delete optimistically removes the record from the local view and
// restores it when the remote delete fails.
func (r *Repository) Delete(ctx context.Context, classID, recordID string) error {
	r.mu.Lock()
	var snapshot *Record
	if key, ok := r.byID[recordID]; ok {
		cur, found := r.records[key]
		if !found {
			r.mu.Unlock()
			return core.NewShutdownError("attendance cache index out of sync: " + recordID)
		}
		if cur.IsLocked {
			r.mu.Unlock()
			return ErrRecordLocked
		}
		snap := cur.Clone()
		snapshot = &snap
		delete(r.records, key)
		delete(r.byID, recordID)
	}
	r.mu.Unlock()

	if err := r.gw.DeleteRecord(ctx, classID, recordID); err != nil {
		if snapshot != nil {
			r.mu.Lock()
			r.store(*snapshot)
			r.mu.Unlock()
		}
		return err
	}
	return nil
}

// GetByDate reads the record for (classID, date) through the remote
// service, caching the confirmed result. Returns (nil, nil) when none
// exists.
func (r *Repository) GetByDate(ctx context.Context, classID string, date time.Time) (*Record, error) {
	rec, err := r.gw.GetRecordByDate(ctx, classID, date)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	r.put(*rec)
	c := rec.Clone()
	return &c, nil
}

// GetByLecture is GetByDate for lecture-typed records.
func (r *Repository) GetByLecture(ctx context.Context, classID, lectureID string) (*Record, error) {
	rec, err := r.gw.GetRecordByLecture(ctx, classID, lectureID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	r.put(*rec)
	c := rec.Clone()
	return &c, nil
}

// List filters records through the remote service, caching each result.
func (r *Repository) List(ctx context.Context, filter QueryFilter) (RecordPage, error) {
	filter.Clean()
	page, err := r.gw.FilterRecords(ctx, filter)
	if err != nil {
		return RecordPage{}, err
	}
	r.mu.Lock()
	for i := range page.Records {
		r.store(page.Records[i])
	}
	r.mu.Unlock()
	return page, nil
}

// Statistics proxies the remote statistics computation.
func (r *Repository) Statistics(ctx context.Context, classID string, startDate, endDate time.Time) (Statistics, error) {
	return r.gw.QueryStatistics(ctx, classID, startDate, endDate)
}

// Cached returns the locally held record for key, if any.
func (r *Repository) Cached(key Key) *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[key]; ok {
		c := rec.Clone()
		return &c
	}
	return nil
}

// CachedRecords returns a deep copy of the full local view; used by
// aggregation call sites and tests.
func (r *Repository) CachedRecords() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	return out
}

func (r *Repository) put(rec Record) {
	r.mu.Lock()
	r.store(rec)
	r.mu.Unlock()
}

// store caches a server-confirmed record; callers hold r.mu.
func (r *Repository) store(rec Record) {
	if rec.State == "" || rec.State == StatePendingCreate || rec.State == StatePendingUpdate {
		rec.State = StateConfirmed
	}
	if rec.IsLocked {
		rec.State = StateLocked
	}
	if rec.Type == "" {
		rec.Type = recordType(rec.LectureID)
	}
	key := rec.Key()
	r.records[key] = &rec
	r.byID[rec.ID] = key
}

func applyUpdate(rec *Record, sub UpdateSubmission) {
	if sub.Date != nil {
		rec.Date = *sub.Date
	}
	if sub.LectureID != nil {
		rec.LectureID = *sub.LectureID
		rec.Type = recordType(rec.LectureID)
	}
	if sub.Students != nil {
		rec.Students = append([]StudentAttendance(nil), sub.Students...)
	}
}
