package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// draftStoreMock records store traffic so tests can assert the draft
// lifecycle without a real backend.
type draftStoreMock struct {
	mu     sync.Mutex
	drafts map[string]Draft
	saves  int
	clears int
}

var _ DraftStore = (*draftStoreMock)(nil)

func newDraftStoreMock() *draftStoreMock {
	return &draftStoreMock{drafts: make(map[string]Draft)}
}

func (s *draftStoreMock) SaveDraft(_ context.Context, d Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.drafts[DraftKey(d.ClassID, d.Date)] = d
}

func (s *draftStoreMock) LoadDraft(_ context.Context, classID string, date time.Time) *Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drafts[DraftKey(classID, date)]; ok {
		return &d
	}
	return nil
}

func (s *draftStoreMock) ClearDraft(_ context.Context, classID string, date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	delete(s.drafts, DraftKey(classID, date))
}

func (s *draftStoreMock) has(classID string, date time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.drafts[DraftKey(classID, date)]
	return ok
}

func draft(classID, date string, students ...StudentAttendance) Draft {
	return Draft{ClassID: classID, Date: day(date), Students: students}
}

func TestReconcilerSubmit(t *testing.T) {
	ctx := context.Background()
	setup := func(t *testing.T) (*GatewayMock, *draftStoreMock, *Reconciler) {
		t.Helper()
		gw := NewGatewayMock()
		drafts := newDraftStoreMock()
		repo := NewRepository(gw, newTestValidator(t))
		return gw, drafts, NewReconciler(repo, drafts, nopLogger{})
	}

	t.Run("invalid draft aborts before any repository call", func(t *testing.T) {
		gw, drafts, rc := setup(t)
		d := draft("class-1", "2024-01-01") // no students
		drafts.SaveDraft(ctx, d)

		_, err := rc.Submit(ctx, d)
		assert.Error(t, err)
		assert.Empty(t, gw.Calls)
		assert.True(t, drafts.has("class-1", day("2024-01-01")))
	})

	t.Run("no existing record creates and clears the draft", func(t *testing.T) {
		_, drafts, rc := setup(t)
		d := draft("class-1", "2024-01-01", mark("s1", StatusPresent))
		drafts.SaveDraft(ctx, d)

		rec, err := rc.Submit(ctx, d)
		assert.NoError(t, err)
		assert.Equal(t, 1, rec.Version)
		assert.False(t, drafts.has("class-1", day("2024-01-01")))
	})

	t.Run("existing record is updated, not duplicated", func(t *testing.T) {
		gw, drafts, rc := setup(t)
		seeded := gw.Seed(Record{
			ClassID:  "class-1",
			Date:     day("2024-01-01"),
			Students: []StudentAttendance{mark("s1", StatusPresent)},
		})
		d := draft("class-1", "2024-01-01", mark("s1", StatusLate))
		drafts.SaveDraft(ctx, d)

		rec, err := rc.Submit(ctx, d)
		assert.NoError(t, err)
		assert.Equal(t, seeded.ID, rec.ID)
		assert.Equal(t, seeded.Version+1, rec.Version)
		assert.Equal(t, StatusLate, rec.Students[0].Status)
		assert.False(t, drafts.has("class-1", day("2024-01-01")))
	})

	t.Run("locked record rejects the submission and keeps the draft", func(t *testing.T) {
		gw, drafts, rc := setup(t)
		gw.Seed(Record{
			ClassID:  "class-1",
			Date:     day("2024-01-01"),
			Students: []StudentAttendance{mark("s1", StatusPresent)},
			IsLocked: true,
		})
		d := draft("class-1", "2024-01-01", mark("s1", StatusAbsent))
		drafts.SaveDraft(ctx, d)

		_, err := rc.Submit(ctx, d)
		assert.ErrorIs(t, err, ErrRecordLocked)
		assert.True(t, drafts.has("class-1", day("2024-01-01")))
		// only the lookup reached the gateway
		assert.Equal(t, []string{"get"}, gw.Calls)
	})

	t.Run("remote failure keeps the draft for retry", func(t *testing.T) {
		gw, drafts, rc := setup(t)
		d := draft("class-1", "2024-01-01", mark("s1", StatusPresent))
		drafts.SaveDraft(ctx, d)

		gw.FailNext = &RemoteError{Status: 503, Msg: "unavailable"}
		_, err := rc.Submit(ctx, d)
		assert.Error(t, err)
		assert.True(t, drafts.has("class-1", day("2024-01-01")))

		// retry once the service is back
		_, err = rc.Submit(ctx, d)
		assert.NoError(t, err)
		assert.False(t, drafts.has("class-1", day("2024-01-01")))
	})

	t.Run("lecture drafts resolve against the lecture record", func(t *testing.T) {
		gw, drafts, rc := setup(t)
		seeded := gw.Seed(Record{
			ClassID:   "class-1",
			Date:      day("2024-01-01"),
			LectureID: "lec-9",
			Students:  []StudentAttendance{mark("s1", StatusPresent)},
		})
		d := draft("class-1", "2024-01-01", mark("s1", StatusExcused))
		d.LectureID = "lec-9"
		drafts.SaveDraft(ctx, d)

		rec, err := rc.Submit(ctx, d)
		assert.NoError(t, err)
		assert.Equal(t, seeded.ID, rec.ID)
		assert.Equal(t, TypeLecture, rec.Type)
	})
}

func TestReconcilerLoadState(t *testing.T) {
	ctx := context.Background()
	gw := NewGatewayMock()
	drafts := newDraftStoreMock()
	repo := NewRepository(gw, newTestValidator(t))
	rc := NewReconciler(repo, drafts, nopLogger{})

	t.Run("nothing stored anywhere", func(t *testing.T) {
		rec, d, err := rc.LoadState(ctx, "class-1", day("2024-01-01"))
		assert.NoError(t, err)
		assert.Nil(t, rec)
		assert.Nil(t, d)
	})

	t.Run("draft only", func(t *testing.T) {
		drafts.SaveDraft(ctx, draft("class-1", "2024-01-02", mark("s1", StatusPresent)))

		rec, d, err := rc.LoadState(ctx, "class-1", day("2024-01-02"))
		assert.NoError(t, err)
		assert.Nil(t, rec)
		if assert.NotNil(t, d) {
			assert.Equal(t, "s1", d.Students[0].StudentID)
		}
	})

	t.Run("server record supersedes and clears the draft", func(t *testing.T) {
		gw.Seed(Record{
			ClassID:  "class-1",
			Date:     day("2024-01-03"),
			Students: []StudentAttendance{mark("s1", StatusAbsent)},
		})
		drafts.SaveDraft(ctx, draft("class-1", "2024-01-03", mark("s1", StatusPresent)))

		rec, d, err := rc.LoadState(ctx, "class-1", day("2024-01-03"))
		assert.NoError(t, err)
		assert.Nil(t, d)
		if assert.NotNil(t, rec) {
			assert.Equal(t, StatusAbsent, rec.Students[0].Status)
		}
		assert.False(t, drafts.has("class-1", day("2024-01-03")))
	})
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
