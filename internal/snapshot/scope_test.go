package snapshot

import (
	"testing"

	"github.com/jra3/linear-reader/internal/entity"
)

func buildScopedSnapshot() *Snapshot {
	snap := New()

	snap.Users.Set("u1", entity.User{ID: "u1", Email: "alice@acme.com", OrganizationID: "org1"})
	snap.Users.Set("u2", entity.User{ID: "u2", Email: "bob@acme.com", OrganizationID: "org1"})
	snap.Users.Set("u3", entity.User{ID: "u3", Email: "eve@other.com", OrganizationID: "org2"})

	snap.Teams.Set("t1", entity.Team{ID: "t1", OrganizationID: "org1"})
	snap.Teams.Set("t2", entity.Team{ID: "t2", OrganizationID: "org2"})

	snap.States.Set("s1", entity.WorkflowState{ID: "s1", TeamID: "t1"})
	snap.States.Set("s2", entity.WorkflowState{ID: "s2", TeamID: "t2"})

	snap.Issues.Set("i1", entity.Issue{ID: "i1", TeamID: "t1"})
	snap.Issues.Set("i2", entity.Issue{ID: "i2", TeamID: "t2"})

	snap.Comments.Set("c1", entity.Comment{ID: "c1", IssueID: "i1", CreatedAt: "2024-01-01"})
	snap.Comments.Set("c2", entity.Comment{ID: "c2", IssueID: "i2", CreatedAt: "2024-01-01"})
	snap.RebuildCommentsByIssue()

	statusID1 := "st1"
	statusID2 := "st2"
	snap.Projects.Set("p1", entity.Project{ID: "p1", TeamIDs: []string{"t1"}, StatusID: &statusID1})
	snap.Projects.Set("p2", entity.Project{ID: "p2", TeamIDs: []string{"t2"}, StatusID: &statusID2})

	snap.ProjectStatuses.Set("st1", entity.ProjectStatus{ID: "st1"})
	snap.ProjectStatuses.Set("st2", entity.ProjectStatus{ID: "st2"})

	teamID1 := "t1"
	snap.Labels.Set("l1", entity.Label{ID: "l1", TeamID: &teamID1})
	snap.Labels.Set("l2", entity.Label{ID: "l2", TeamID: nil})
	teamID2 := "t2"
	snap.Labels.Set("l3", entity.Label{ID: "l3", TeamID: &teamID2})

	snap.Initiatives.Set("in1", entity.Initiative{ID: "in1", TeamIDs: []string{"t1"}})
	snap.Initiatives.Set("in2", entity.Initiative{ID: "in2", TeamIDs: []string{"t2"}})

	snap.Cycles.Set("cy1", entity.Cycle{ID: "cy1", TeamID: "t1"})
	snap.Cycles.Set("cy2", entity.Cycle{ID: "cy2", TeamID: "t2"})

	projID1 := "p1"
	projID2 := "p2"
	snap.Documents.Set("d1", entity.Document{ID: "d1", ProjectID: &projID1})
	snap.Documents.Set("d2", entity.Document{ID: "d2", ProjectID: &projID2})

	snap.Milestones.Set("m1", entity.Milestone{ID: "m1", ProjectID: "p1"})
	snap.Milestones.Set("m2", entity.Milestone{ID: "m2", ProjectID: "p2"})

	snap.ProjectUpdates.Set("pu1", entity.ProjectUpdate{ID: "pu1", ProjectID: "p1"})
	snap.ProjectUpdates.Set("pu2", entity.ProjectUpdate{ID: "pu2", ProjectID: "p2"})

	return snap
}

func TestApplyScopeDisabledIsNoOp(t *testing.T) {
	snap := buildScopedSnapshot()
	if err := ApplyScope(snap, ScopeConfig{}); err != nil {
		t.Fatalf("ApplyScope: %v", err)
	}
	if snap.Teams.Len() != 2 {
		t.Errorf("expected no pruning when scope disabled, got %d teams", snap.Teams.Len())
	}
}

func TestApplyScopePrunesToOrganization(t *testing.T) {
	snap := buildScopedSnapshot()
	err := ApplyScope(snap, ScopeConfig{Emails: []string{"alice@acme.com"}})
	if err != nil {
		t.Fatalf("ApplyScope: %v", err)
	}

	if snap.Users.Len() != 2 {
		t.Errorf("expected 2 org1 users kept, got %d", snap.Users.Len())
	}
	if !snap.Teams.Has("t1") || snap.Teams.Has("t2") {
		t.Errorf("expected only t1 to survive")
	}
	if !snap.Issues.Has("i1") || snap.Issues.Has("i2") {
		t.Errorf("expected only i1 to survive")
	}
	if !snap.Comments.Has("c1") || snap.Comments.Has("c2") {
		t.Errorf("expected only c1 to survive")
	}
	if !snap.Projects.Has("p1") || snap.Projects.Has("p2") {
		t.Errorf("expected only p1 to survive")
	}
	if !snap.ProjectStatuses.Has("st1") || snap.ProjectStatuses.Has("st2") {
		t.Errorf("expected only st1 to survive (still referenced by p1)")
	}
	if !snap.Labels.Has("l1") || !snap.Labels.Has("l2") || snap.Labels.Has("l3") {
		t.Errorf("expected l1 (scoped team) and l2 (global) to survive, not l3")
	}
	if !snap.Documents.Has("d1") || snap.Documents.Has("d2") {
		t.Errorf("expected only d1 to survive")
	}
	if !snap.Milestones.Has("m1") || snap.Milestones.Has("m2") {
		t.Errorf("expected only m1 to survive")
	}
	if !snap.ProjectUpdates.Has("pu1") || snap.ProjectUpdates.Has("pu2") {
		t.Errorf("expected only pu1 to survive")
	}
}

func TestApplyScopeNoMatchingUserErrors(t *testing.T) {
	snap := buildScopedSnapshot()
	err := ApplyScope(snap, ScopeConfig{Emails: []string{"nobody@nowhere.com"}})
	if err == nil {
		t.Fatal("expected an error when scope matches no user")
	}
}
