package snapshot

import (
	"context"
	"iter"
	"testing"

	"github.com/jra3/linear-reader/internal/record"
)

type fakeDB struct {
	stores map[string][]record.Map
}

func (f *fakeDB) ObjectStoreNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.stores))
	for name := range f.stores {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeDB) SampleRecords(ctx context.Context, storeName string, limit int) iter.Seq2[record.Map, error] {
	recs := f.stores[storeName]
	return func(yield func(record.Map, error) bool) {
		for i, rec := range recs {
			if limit > 0 && i >= limit {
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func recOf(pairs ...any) record.Map {
	m := record.Map{}
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i].(string)] = pairs[i+1]
	}
	return m
}

func TestLoaderMaterializesAndMergesContent(t *testing.T) {
	db := &fakeDB{stores: map[string][]record.Map{
		"teams":    {recOf("id", "team1", "key", "ENG", "name", "Engineering")},
		"issues":   {recOf("id", "issue1", "number", 1.0, "teamId", "team1", "stateId", "state1", "title", "Fix bug", "identifier", "ENG-1", "createdAt", "2024-01-01T00:00:00Z")},
		"contents": {recOf("issueId", "issue1", "contentState", "decoded body")},
		"comments": {recOf("id", "c1", "issueId", "issue1", "userId", "u1", "bodyData", "hello", "createdAt", "2024-01-02T00:00:00Z")},
	}}

	loader := NewLoader(db)
	snap, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if snap.Teams.Len() != 1 {
		t.Fatalf("expected 1 team, got %d", snap.Teams.Len())
	}
	issue, ok := snap.Issues.Get("issue1")
	if !ok {
		t.Fatalf("expected issue1 to be loaded")
	}
	if issue.Description != "decoded body" {
		t.Errorf("expected merged description, got %q", issue.Description)
	}

	comment, ok := snap.Comments.Get("c1")
	if !ok {
		t.Fatalf("expected comment c1 to be loaded")
	}
	if comment.Body != "hello" {
		t.Errorf("expected decoded comment body, got %q", comment.Body)
	}

	ids, ok := snap.CommentsByIssue["issue1"]
	if !ok || len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("expected comments_by_issue to index c1 under issue1, got %v", ids)
	}

	if snap.LoadedAt.IsZero() {
		t.Error("expected LoadedAt to be stamped")
	}
}

func TestLoaderSkipsRecordsWithoutID(t *testing.T) {
	db := &fakeDB{stores: map[string][]record.Map{
		"teams": {recOf("key", "ENG", "name", "Engineering")},
	}}
	loader := NewLoader(db)
	snap, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Teams.Len() != 0 {
		t.Errorf("expected id-less record to be skipped, got %d teams", snap.Teams.Len())
	}
}

func TestLoaderPropagatesScopeConfigurationError(t *testing.T) {
	db := &fakeDB{stores: map[string][]record.Map{
		"teams": {recOf("id", "team1", "key", "ENG", "name", "Engineering")},
	}}
	loader := NewLoader(db)
	loader.Scope = ScopeConfig{Emails: []string{"nobody@example.com"}}

	_, err := loader.Load(context.Background())
	if err == nil {
		t.Fatal("expected an error when scope matches no user")
	}
}
