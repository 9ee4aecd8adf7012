package redisdrafts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wazoefu/mahudhurio/core"
	"github.com/wazoefu/mahudhurio/core/attendance"
)

// NewClient connects to redis with short timeouts; draft persistence is
// best-effort and must never stall the caller.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
}

// Healthy verifies redis connectivity.
func Healthy(ctx context.Context, client *redis.Client) bool {
	return client != nil && client.Ping(ctx).Err() == nil
}

type draftStore struct {
	client *redis.Client
	ttl    time.Duration
	log    core.Logger
}

var _ attendance.DraftStore = (*draftStore)(nil)

func NewDraftStore(client *redis.Client, ttl time.Duration, log core.Logger) *draftStore {
	return &draftStore{client: client, ttl: ttl, log: log}
}

func (s *draftStore) SaveDraft(ctx context.Context, d attendance.Draft) {
	d.SavedAt = time.Now().UTC()
	b, err := json.Marshal(&d)
	if err != nil {
		s.log.Warn("draft marshal failed", err)
		return
	}
	key := attendance.DraftKey(d.ClassID, d.Date)
	if err := s.client.Set(ctx, key, b, s.ttl).Err(); err != nil {
		s.log.Warn("draft save failed", map[string]interface{}{"key": key}, err)
	}
}

func (s *draftStore) LoadDraft(ctx context.Context, classID string, date time.Time) *attendance.Draft {
	key := attendance.DraftKey(classID, date)
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("draft load failed", map[string]interface{}{"key": key}, err)
		}
		return nil
	}
	var d attendance.Draft
	if err := json.Unmarshal(b, &d); err != nil {
		s.log.Warn("discarding unparsable draft", map[string]interface{}{"key": key}, err)
		return nil
	}
	return &d
}

func (s *draftStore) ClearDraft(ctx context.Context, classID string, date time.Time) {
	key := attendance.DraftKey(classID, date)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.log.Warn("draft clear failed", map[string]interface{}{"key": key}, err)
	}
}
