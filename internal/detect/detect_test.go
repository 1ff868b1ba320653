package detect

import (
	"context"
	"iter"
	"testing"

	"github.com/jra3/linear-reader/internal/classify"
	"github.com/jra3/linear-reader/internal/record"
)

// fakeDB is an in-memory DBHandle for testing the detector against mixed,
// opaquely-named object stores.
type fakeDB struct {
	stores map[string][]record.Map
	// failStores raise an error on iteration instead of yielding records.
	failStores map[string]bool
}

func (f *fakeDB) ObjectStoreNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.stores))
	for name := range f.stores {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeDB) SampleRecords(ctx context.Context, storeName string, limit int) iter.Seq2[record.Map, error] {
	return func(yield func(record.Map, error) bool) {
		if f.failStores[storeName] {
			yield(nil, errBoom)
			return
		}
		recs := f.stores[storeName]
		for i, rec := range recs {
			if i >= limit {
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }

func TestDetectMixedSchema(t *testing.T) {
	t.Parallel()
	db := &fakeDB{
		stores: map[string][]record.Map{
			"store_a": {{"number": 1, "teamId": "t1", "stateId": "s1", "title": "Fix bug"}},
			"store_b": {{"key": "ENG", "name": "Engineering"}},
			"_internal_meta": {{"key": "ENG", "name": "Engineering"}},
		},
	}

	result, err := New().Detect(context.Background(), db)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if result.Issues == nil || *result.Issues != "store_a" {
		t.Errorf("Issues = %v, want store_a", result.Issues)
	}
	if result.Teams == nil || *result.Teams != "store_b" {
		t.Errorf("Teams = %v, want store_b", result.Teams)
	}
}

func TestDetectSkipsUnderscoreAndPartialStores(t *testing.T) {
	t.Parallel()
	db := &fakeDB{
		stores: map[string][]record.Map{
			"_hidden":          {{"key": "ENG", "name": "Engineering"}},
			"issues_partial":   {{"key": "ENG", "name": "Engineering"}},
			"teams":            {{"key": "ENG", "name": "Engineering"}},
		},
	}
	result, err := New().Detect(context.Background(), db)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if result.Teams == nil || *result.Teams != "teams" {
		t.Errorf("Teams = %v, want teams (only non-hidden, non-partial store)", result.Teams)
	}
}

func TestDetectSkipsFailingStoreWithoutFailingLoad(t *testing.T) {
	t.Parallel()
	db := &fakeDB{
		stores: map[string][]record.Map{
			"broken": {{"key": "ENG", "name": "Engineering"}},
			"teams":  {{"key": "ENG", "name": "Engineering"}},
		},
		failStores: map[string]bool{"broken": true},
	}
	result, err := New().Detect(context.Background(), db)
	if err != nil {
		t.Fatalf("Detect should never fail, got: %v", err)
	}
	if result.Teams == nil || *result.Teams != "teams" {
		t.Errorf("Teams = %v, want teams", result.Teams)
	}
}

func TestDetectShardedMultiStoreKinds(t *testing.T) {
	t.Parallel()
	db := &fakeDB{
		stores: map[string][]record.Map{
			"users_team_a": {{"name": "A", "displayName": "A", "email": "a@x.com"}},
			"users_team_b": {{"name": "B", "displayName": "B", "email": "b@x.com"}},
		},
	}
	result, err := New().Detect(context.Background(), db)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(result.Users) != 2 {
		t.Errorf("Users = %v, want 2 sharded stores", result.Users)
	}
	if got := result.MultiStoreNames(classify.KindUser); len(got) != 2 {
		t.Errorf("MultiStoreNames(user) = %v, want 2", got)
	}
}

func TestDetectStopsSamplingAfterFirstMatch(t *testing.T) {
	t.Parallel()
	db := &fakeDB{
		stores: map[string][]record.Map{
			"teams": {
				{"key": "ENG", "name": "Engineering"},
				{"unrelated": "record"},
			},
		},
	}
	result, err := New().Detect(context.Background(), db)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if result.Teams == nil || *result.Teams != "teams" {
		t.Errorf("Teams = %v, want teams", result.Teams)
	}
}

func TestDetectNoStoresStartingWithUnderscoreOrPartialInResult(t *testing.T) {
	t.Parallel()
	db := &fakeDB{
		stores: map[string][]record.Map{
			"_skip":       {{"key": "ENG", "name": "Engineering"}},
			"sync_partial_x": {{"key": "ENG", "name": "Engineering"}},
		},
	}
	result, err := New().Detect(context.Background(), db)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if result.Teams != nil {
		t.Errorf("Teams = %v, want nil (both candidate stores excluded)", result.Teams)
	}
}
