package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/jra3/linear-reader/internal/record"
)

func teamStore(ids ...string) []record.Map {
	recs := make([]record.Map, len(ids))
	for i, id := range ids {
		recs[i] = recOf("id", id, "key", "ENG", "name", "Engineering")
	}
	return recs
}

func TestCachedEnsureFreshLoadsWhenEmpty(t *testing.T) {
	db := &fakeDB{stores: map[string][]record.Map{"teams": teamStore("t1")}}
	c := NewCached(NewLoader(db))

	snap := c.EnsureFresh(context.Background())
	if snap.Teams.Len() != 1 {
		t.Fatalf("expected 1 team after initial load, got %d", snap.Teams.Len())
	}
	if snap.LoadedAt.IsZero() {
		t.Error("expected LoadedAt to be stamped")
	}
}

func TestCachedDoesNotReloadWhenFresh(t *testing.T) {
	db := &fakeDB{stores: map[string][]record.Map{"teams": teamStore("t1")}}
	c := NewCached(NewLoader(db))

	first := c.EnsureFresh(context.Background())
	db.stores["teams"] = teamStore("t1", "t2")
	second := c.EnsureFresh(context.Background())

	if second.Teams.Len() != first.Teams.Len() {
		t.Errorf("expected cached snapshot to be reused, got %d vs %d teams", first.Teams.Len(), second.Teams.Len())
	}
}

func TestCachedMarkStaleForcesReload(t *testing.T) {
	db := &fakeDB{stores: map[string][]record.Map{"teams": teamStore("t1")}}
	c := NewCached(NewLoader(db))
	_ = c.EnsureFresh(context.Background())

	db.stores["teams"] = teamStore("t1", "t2")
	c.MarkStale()
	snap := c.EnsureFresh(context.Background())
	if snap.Teams.Len() != 2 {
		t.Errorf("expected MarkStale to force a reload picking up the new team, got %d", snap.Teams.Len())
	}
}

func TestCachedExpiresAfterTTL(t *testing.T) {
	db := &fakeDB{stores: map[string][]record.Map{"teams": teamStore("t1")}}
	c := NewCached(NewLoader(db))
	_ = c.EnsureFresh(context.Background())

	c.mu.Lock()
	c.snap.LoadedAt = time.Now().Add(-CacheTTL - time.Second)
	c.mu.Unlock()

	db.stores["teams"] = teamStore("t1", "t2")
	snap := c.EnsureFresh(context.Background())
	if snap.Teams.Len() != 2 {
		t.Errorf("expected TTL expiry to trigger a reload, got %d teams", snap.Teams.Len())
	}
}

func TestCachedFailedRefreshMarksDegradedAndKeepsStale(t *testing.T) {
	db := &fakeDB{stores: map[string][]record.Map{"teams": teamStore("t1")}}
	c := NewCached(NewLoader(db))
	_ = c.EnsureFresh(context.Background())

	c.loader.Scope = ScopeConfig{Emails: []string{"nobody@nowhere.com"}}
	c.MarkStale()

	snap := c.EnsureFresh(context.Background())
	if snap.Teams.Len() != 1 {
		t.Fatalf("expected stale snapshot preserved on failed refresh, got %d teams", snap.Teams.Len())
	}
	h := c.Health()
	if !h.Degraded {
		t.Error("expected Degraded to be true after a failed refresh")
	}
	if h.FailureCount != 1 {
		t.Errorf("expected FailureCount 1, got %d", h.FailureCount)
	}

	// force_next_refresh must remain set so the next read retries.
	snap = c.EnsureFresh(context.Background())
	if h2 := c.Health(); h2.FailureCount != 2 {
		t.Errorf("expected the retry to run again and fail, got FailureCount %d", h2.FailureCount)
	}
	_ = snap

	c.loader.Scope = ScopeConfig{}
	snap = c.EnsureFresh(context.Background())
	if snap.Teams.Len() != 1 {
		t.Fatalf("expected recovery once scope is fixed")
	}
	if c.Health().Degraded {
		t.Error("expected Degraded to clear after a successful refresh")
	}
}
