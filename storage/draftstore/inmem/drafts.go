package inmemdrafts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wazoefu/mahudhurio/core/attendance"
)

// draftStore keeps drafts in process memory; used in tests and as a
// fallback when redis is not configured. Entries round-trip through JSON
// so behavior matches the persistent store (including parse failures).
type draftStore struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string][]byte
}

var _ attendance.DraftStore = (*draftStore)(nil)

func NewDraftStore(ttl time.Duration) *draftStore {
	return &draftStore{ttl: ttl, m: make(map[string][]byte)}
}

func (s *draftStore) SaveDraft(_ context.Context, d attendance.Draft) {
	d.SavedAt = time.Now().UTC()
	b, err := json.Marshal(&d)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.m[attendance.DraftKey(d.ClassID, d.Date)] = b
	s.mu.Unlock()
}

func (s *draftStore) LoadDraft(_ context.Context, classID string, date time.Time) *attendance.Draft {
	s.mu.RLock()
	b, ok := s.m[attendance.DraftKey(classID, date)]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	var d attendance.Draft
	if err := json.Unmarshal(b, &d); err != nil {
		return nil
	}
	if s.ttl > 0 && time.Since(d.SavedAt) > s.ttl { // expired
		s.ClearDraft(context.Background(), classID, date)
		return nil
	}
	return &d
}

func (s *draftStore) ClearDraft(_ context.Context, classID string, date time.Time) {
	s.mu.Lock()
	delete(s.m, attendance.DraftKey(classID, date))
	s.mu.Unlock()
}
