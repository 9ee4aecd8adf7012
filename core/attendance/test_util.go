package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// GatewayMock is an in-memory stand-in for the remote attendance
// service, used by tests across packages. FailNext forces the next
// mutating call to fail, which is how rollback paths are exercised.
type GatewayMock struct {
	mu    sync.Mutex
	seq   int
	byID  map[string]*Record
	byKey map[Key]string

	FailNext error
	Calls    []string
}

var _ Gateway = (*GatewayMock)(nil)

func NewGatewayMock() *GatewayMock {
	return &GatewayMock{
		byID:  make(map[string]*Record),
		byKey: make(map[Key]string),
	}
}

// Seed stores a record server-side without going through Create.
func (g *GatewayMock) Seed(rec Record) Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rec.ID == "" {
		g.seq++
		rec.ID = fmt.Sprintf("rec-%d", g.seq)
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	rec.Type = recordType(rec.LectureID)
	c := rec.Clone()
	g.byID[rec.ID] = &c
	g.byKey[rec.Key()] = rec.ID
	return rec
}

func (g *GatewayMock) CreateRecord(_ context.Context, sub NewSubmission) (Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "create")
	if err := g.failNext(); err != nil {
		return Record{}, err
	}
	if _, exists := g.byKey[sub.Key()]; exists {
		return Record{}, ErrDuplicate
	}

	g.seq++
	now := time.Now().UTC()
	rec := Record{
		ID:          fmt.Sprintf("rec-%d", g.seq),
		ClassID:     sub.ClassID,
		Date:        sub.Date,
		LectureID:   sub.LectureID,
		Type:        recordType(sub.LectureID),
		Students:    append([]StudentAttendance(nil), sub.Students...),
		Version:     1,
		SubmittedBy: "gateway-mock",
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c := rec.Clone()
	g.byID[rec.ID] = &c
	g.byKey[rec.Key()] = rec.ID
	return rec, nil
}

func (g *GatewayMock) UpdateRecord(_ context.Context, recordID string, sub UpdateSubmission, expectedVersion int) (Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "update")
	if err := g.failNext(); err != nil {
		return Record{}, err
	}
	rec, ok := g.byID[recordID]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.IsLocked {
		return Record{}, ErrRecordLocked
	}
	if rec.Version != expectedVersion {
		return Record{}, ErrVersionConflict
	}

	delete(g.byKey, rec.Key())
	applyUpdate(rec, sub)
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	g.byKey[rec.Key()] = recordID
	return rec.Clone(), nil
}

func (g *GatewayMock) DeleteRecord(_ context.Context, _, recordID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "delete")
	if err := g.failNext(); err != nil {
		return err
	}
	rec, ok := g.byID[recordID]
	if !ok {
		return ErrNotFound
	}
	if rec.IsLocked {
		return ErrRecordLocked
	}
	delete(g.byKey, rec.Key())
	delete(g.byID, recordID)
	return nil
}

func (g *GatewayMock) GetRecordByDate(_ context.Context, classID string, date time.Time) (*Record, error) {
	return g.get(NewKey(classID, date, ""))
}

func (g *GatewayMock) GetRecordByLecture(_ context.Context, classID, lectureID string) (*Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "get")
	for key, id := range g.byKey {
		if key.ClassID == classID && key.LectureID == lectureID {
			c := g.byID[id].Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (g *GatewayMock) FilterRecords(_ context.Context, filter QueryFilter) (RecordPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "list")
	var matched []Record
	for _, rec := range g.byID {
		if rec.ClassID != filter.ClassID {
			continue
		}
		if !filter.StartDate.IsZero() && rec.Date.Before(filter.StartDate) {
			continue
		}
		if !filter.EndDate.IsZero() && rec.Date.After(filter.EndDate) {
			continue
		}
		matched = append(matched, rec.Clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.Before(matched[j].Date)
		}
		return matched[i].ID < matched[j].ID
	})

	// Limit 0 returns everything; callers going through the Repository
	// always carry a cleaned page and limit.
	page := RecordPage{Page: filter.Page, Limit: filter.Limit, Total: len(matched)}
	if filter.Limit > 0 {
		p := filter.Page
		if p < 1 {
			p = 1
		}
		start := (p - 1) * filter.Limit
		if start > len(matched) {
			start = len(matched)
		}
		end := start + filter.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	page.Records = matched
	return page, nil
}

func (g *GatewayMock) QueryStatistics(ctx context.Context, classID string, startDate, endDate time.Time) (Statistics, error) {
	page, err := g.FilterRecords(ctx, QueryFilter{ClassID: classID, StartDate: startDate, EndDate: endDate})
	if err != nil {
		return Statistics{}, err
	}
	return ComputeStatistics(page.Records), nil
}

func (g *GatewayMock) get(key Key) (*Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "get")
	id, ok := g.byKey[key]
	if !ok {
		return nil, nil
	}
	c := g.byID[id].Clone()
	return &c, nil
}

// failNext reads and clears FailNext; callers hold g.mu.
func (g *GatewayMock) failNext() error {
	err := g.FailNext
	g.FailNext = nil
	return err
}
