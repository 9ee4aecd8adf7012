package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDraftKey(t *testing.T) {
	key := DraftKey("class-1", day("2024-01-02"))
	assert.Equal(t, "draft:class-1:2024-01-02", key)

	// non-UTC timestamps normalize onto the UTC calendar day
	loc := time.FixedZone("UTC+3", 3*60*60)
	key = DraftKey("class-1", time.Date(2024, 1, 3, 1, 0, 0, 0, loc))
	assert.Equal(t, "draft:class-1:2024-01-02", key)
}

func TestAutosaver(t *testing.T) {
	t.Run("persists snapshots on the interval", func(t *testing.T) {
		store := newDraftStoreMock()
		saver := NewAutosaver(store, 5*time.Millisecond)

		d := draft("class-1", "2024-01-01", mark("s1", StatusPresent))
		saver.Start(context.Background(), func() (Draft, bool) { return d, true })

		assert.Eventually(t, func() bool {
			return store.has("class-1", day("2024-01-01"))
		}, time.Second, 5*time.Millisecond)
		saver.Stop()
	})

	t.Run("skips ticks once the snapshot reports done", func(t *testing.T) {
		store := newDraftStoreMock()
		saver := NewAutosaver(store, time.Millisecond)

		saver.Start(context.Background(), func() (Draft, bool) { return Draft{}, false })
		time.Sleep(20 * time.Millisecond)
		saver.Stop()

		store.mu.Lock()
		defer store.mu.Unlock()
		assert.Zero(t, store.saves)
	})

	t.Run("stop is idempotent and safe before start", func(t *testing.T) {
		saver := NewAutosaver(newDraftStoreMock(), time.Minute)
		saver.Stop()
		saver.Stop()
	})

	t.Run("stop from another goroutine is race free", func(t *testing.T) {
		store := newDraftStoreMock()
		saver := NewAutosaver(store, time.Millisecond)
		saver.Start(context.Background(), func() (Draft, bool) { return Draft{}, false })

		var wg sync.WaitGroup
		wg.Add(2)
		for i := 0; i < 2; i++ {
			go func() {
				defer wg.Done()
				saver.Stop()
			}()
		}
		wg.Wait()
	})

	t.Run("context cancellation ends the task", func(t *testing.T) {
		store := newDraftStoreMock()
		saver := NewAutosaver(store, time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		saver.Start(ctx, func() (Draft, bool) {
			return draft("class-1", "2024-01-01", mark("s1", StatusPresent)), true
		})
		cancel()
		saver.Stop() // returns because the goroutine exits on ctx.Done
	})
}
