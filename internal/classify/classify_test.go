package classify

import (
	"testing"

	"github.com/jra3/linear-reader/internal/record"
)

func recOf(pairs ...any) record.Map {
	m := record.Map{}
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i].(string)] = pairs[i+1]
	}
	return m
}

func TestIsIssue(t *testing.T) {
	t.Parallel()
	valid := recOf("number", 42, "teamId", "team123", "stateId", "state456", "title", "Fix bug", "extra", "ignored")
	if !IsIssue(valid) {
		t.Errorf("expected valid issue record to match")
	}
	for _, missing := range []string{"number", "teamId", "stateId", "title"} {
		rec := valid.Clone()
		delete(rec, missing)
		if IsIssue(rec) {
			t.Errorf("expected issue record missing %q to not match", missing)
		}
	}
	if IsIssue(record.Map{}) {
		t.Errorf("expected empty record to not match issue")
	}
}

func TestIsTeamKey(t *testing.T) {
	t.Parallel()
	cases := []struct {
		key  string
		want bool
	}{
		{"A", true},
		{"ENGINEERIN", true},  // exactly 10
		{"ENGINEERING", false}, // 11, invalid
		{"eng", false},
		{"ENG1", false},
		{"", false},
	}
	for _, c := range cases {
		rec := recOf("key", c.key, "name", "Engineering")
		if got := IsTeam(rec); got != c.want {
			t.Errorf("IsTeam(key=%q) = %v, want %v", c.key, got, c.want)
		}
	}
}

func TestWorkflowStateVsProjectStatus(t *testing.T) {
	t.Parallel()
	base := recOf("name", "Todo", "color", "#fff", "position", 1.0, "type", "started", "indefinite", false)

	withTeam := base.Clone()
	withTeam["teamId"] = "team1"
	if !IsWorkflowState(withTeam) {
		t.Errorf("record with teamId should classify as workflow state")
	}
	if IsProjectStatus(withTeam) {
		t.Errorf("record with teamId should not classify as project status")
	}

	withoutTeam := base.Clone()
	if IsWorkflowState(withoutTeam) {
		t.Errorf("record without teamId should not classify as workflow state")
	}
	if !IsProjectStatus(withoutTeam) {
		t.Errorf("record without teamId should classify as project status")
	}
}

func TestDocumentVsIssue(t *testing.T) {
	t.Parallel()
	doc := recOf("title", "Design doc", "slugId", "design-doc", "projectId", "proj1", "sortOrder", 1.0)
	if !IsDocument(doc) {
		t.Errorf("expected document record to match")
	}

	withNumber := doc.Clone()
	withNumber["number"] = 1
	if IsDocument(withNumber) {
		t.Errorf("document record with number should not match (issue disambiguation)")
	}

	withState := doc.Clone()
	withState["stateId"] = "s1"
	if IsDocument(withState) {
		t.Errorf("document record with stateId should not match (issue disambiguation)")
	}
}

func TestClassifyOrderPicksFirstMatch(t *testing.T) {
	t.Parallel()
	// Matches both IsIssue and IsCycle; issue comes first in Order.
	rec := recOf("number", 1, "teamId", "t1", "stateId", "s1", "title", "x", "startsAt", "a", "endsAt", "b")
	if !IsCycle(rec) {
		t.Fatalf("fixture should also match IsCycle")
	}
	kind, ok := Classify(rec)
	if !ok || kind != KindIssue {
		t.Errorf("Classify(issue+cycle-shaped) = (%v, %v), want (issue, true)", kind, ok)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	t.Parallel()
	if _, ok := Classify(record.Map{"foo": "bar"}); ok {
		t.Errorf("expected no classification for unrecognized shape")
	}
}
