// Package query implements the fuzzy lookups and read-only accessors that
// sit directly on top of a snapshot (C6). Every primitive here is pure and
// non-blocking: missing references resolve to the documented sentinels
// rather than an error.
package query

import (
	"sort"
	"strings"

	"github.com/jra3/linear-reader/internal/entity"
	"github.com/jra3/linear-reader/internal/snapshot"
)

func lower(s string) string { return strings.ToLower(s) }

// FindTeam resolves q against team key (exact, case-insensitive) first,
// then team name (substring, case-insensitive).
func FindTeam(snap *snapshot.Snapshot, q string) (entity.Team, bool) {
	lq := lower(q)
	for _, t := range snap.Teams.Values() {
		if lower(t.Key) == lq {
			return t, true
		}
	}
	for _, t := range snap.Teams.Values() {
		if strings.Contains(lower(t.Name), lq) {
			return t, true
		}
	}
	return entity.Team{}, false
}

// FindProject resolves q against slugId (exact), then name starts-with,
// then name substring.
func FindProject(snap *snapshot.Snapshot, q string) (entity.Project, bool) {
	lq := lower(q)
	for _, p := range snap.Projects.Values() {
		if lower(p.SlugID) == lq {
			return p, true
		}
	}
	for _, p := range snap.Projects.Values() {
		if strings.HasPrefix(lower(p.Name), lq) {
			return p, true
		}
	}
	for _, p := range snap.Projects.Values() {
		if strings.Contains(lower(p.Name), lq) {
			return p, true
		}
	}
	return entity.Project{}, false
}

// userScore ranks a candidate match tier; lower is better. 0 means no match.
func userScore(u entity.User, lq string) int {
	switch {
	case strings.HasPrefix(lower(u.Name), lq):
		return 1
	case strings.Contains(lower(u.Name), lq):
		return 2
	case strings.HasPrefix(lower(u.DisplayName), lq):
		return 3
	case strings.Contains(lower(u.DisplayName), lq):
		return 4
	default:
		return 0
	}
}

// FindUser resolves q with a combined score across name/displayName,
// preferring starts-with over substring and name over displayName. An empty
// query never matches.
func FindUser(snap *snapshot.Snapshot, q string) (entity.User, bool) {
	if q == "" {
		return entity.User{}, false
	}
	lq := lower(q)
	best := 0
	var bestUser entity.User
	found := false
	for _, u := range snap.Users.Values() {
		score := userScore(u, lq)
		if score == 0 {
			continue
		}
		if !found || score < best {
			best = score
			bestUser = u
			found = true
		}
	}
	return bestUser, found
}

// FindInitiative resolves q against slugId (exact), then name substring.
func FindInitiative(snap *snapshot.Snapshot, q string) (entity.Initiative, bool) {
	lq := lower(q)
	for _, i := range snap.Initiatives.Values() {
		if lower(i.SlugID) == lq {
			return i, true
		}
	}
	for _, i := range snap.Initiatives.Values() {
		if strings.Contains(lower(i.Name), lq) {
			return i, true
		}
	}
	return entity.Initiative{}, false
}

// FindDocument resolves q against slugId (exact), then title substring.
func FindDocument(snap *snapshot.Snapshot, q string) (entity.Document, bool) {
	lq := lower(q)
	for _, d := range snap.Documents.Values() {
		if lower(d.SlugID) == lq {
			return d, true
		}
	}
	for _, d := range snap.Documents.Values() {
		if strings.Contains(lower(d.Title), lq) {
			return d, true
		}
	}
	return entity.Document{}, false
}

// FindIssueStatus resolves q among workflow states belonging to teamID:
// exact id, exact name, name starts-with, name substring, in that order.
func FindIssueStatus(snap *snapshot.Snapshot, teamID, q string) (entity.WorkflowState, bool) {
	lq := lower(q)
	var candidates []entity.WorkflowState
	for _, s := range snap.States.Values() {
		if s.TeamID == teamID {
			candidates = append(candidates, s)
		}
	}
	for _, s := range candidates {
		if lower(s.ID) == lq {
			return s, true
		}
	}
	for _, s := range candidates {
		if lower(s.Name) == lq {
			return s, true
		}
	}
	for _, s := range candidates {
		if strings.HasPrefix(lower(s.Name), lq) {
			return s, true
		}
	}
	for _, s := range candidates {
		if strings.Contains(lower(s.Name), lq) {
			return s, true
		}
	}
	return entity.WorkflowState{}, false
}

// FindMilestone resolves q among milestones belonging to projectID: exact
// id, exact name, name starts-with, name substring, in that order.
func FindMilestone(snap *snapshot.Snapshot, projectID, q string) (entity.Milestone, bool) {
	lq := lower(q)
	var candidates []entity.Milestone
	for _, m := range snap.Milestones.Values() {
		if m.ProjectID == projectID {
			candidates = append(candidates, m)
		}
	}
	for _, m := range candidates {
		if lower(m.ID) == lq {
			return m, true
		}
	}
	for _, m := range candidates {
		if lower(m.Name) == lq {
			return m, true
		}
	}
	for _, m := range candidates {
		if strings.HasPrefix(lower(m.Name), lq) {
			return m, true
		}
	}
	for _, m := range candidates {
		if strings.Contains(lower(m.Name), lq) {
			return m, true
		}
	}
	return entity.Milestone{}, false
}

// GetIssueByIdentifier is an exact, case-insensitive match on
// Issue.Identifier. No trimming, no substring matching: the caller is
// responsible for trimming whitespace beforehand.
func GetIssueByIdentifier(snap *snapshot.Snapshot, identifier string) (entity.Issue, bool) {
	lid := lower(identifier)
	for _, i := range snap.Issues.Values() {
		if lower(i.Identifier) == lid {
			return i, true
		}
	}
	return entity.Issue{}, false
}

// GetStateName returns the workflow state's name, or "Unknown" if stateID
// does not resolve.
func GetStateName(snap *snapshot.Snapshot, stateID string) string {
	if s, ok := snap.States.Get(stateID); ok {
		return s.Name
	}
	return "Unknown"
}

// GetStateType returns the workflow state's type, or "unknown" if stateID
// does not resolve.
func GetStateType(snap *snapshot.Snapshot, stateID string) string {
	if s, ok := snap.States.Get(stateID); ok {
		return s.Type
	}
	return "unknown"
}

// GetUserName returns the user's name (falling back to display name), or
// "Unassigned" for a nil/empty userID, or "Unknown" if it doesn't resolve.
func GetUserName(snap *snapshot.Snapshot, userID *string) string {
	if userID == nil || *userID == "" {
		return "Unassigned"
	}
	u, ok := snap.Users.Get(*userID)
	if !ok {
		return "Unknown"
	}
	if u.Name != "" {
		return u.Name
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return "Unknown"
}

// GetProjectName returns the project's name, or "" for a nil/empty
// projectID or one that does not resolve.
func GetProjectName(snap *snapshot.Snapshot, projectID *string) string {
	if projectID == nil || *projectID == "" {
		return ""
	}
	p, ok := snap.Projects.Get(*projectID)
	if !ok {
		return ""
	}
	return p.Name
}

// IssueCountForTeam returns the number of issues belonging to teamID.
func IssueCountForTeam(snap *snapshot.Snapshot, teamID string) int {
	n := 0
	for _, i := range snap.Issues.Values() {
		if i.TeamID == teamID {
			n++
		}
	}
	return n
}

// IssueCountForUser returns the number of issues assigned to userID.
func IssueCountForUser(snap *snapshot.Snapshot, userID string) int {
	n := 0
	for _, i := range snap.Issues.Values() {
		if i.AssigneeID != nil && *i.AssigneeID == userID {
			n++
		}
	}
	return n
}

// IssueCountForProject returns the number of issues belonging to projectID.
func IssueCountForProject(snap *snapshot.Snapshot, projectID string) int {
	n := 0
	for _, i := range snap.Issues.Values() {
		if i.ProjectID != nil && *i.ProjectID == projectID {
			n++
		}
	}
	return n
}

// StateHistogramForTeam buckets issue counts for teamID by state name.
func StateHistogramForTeam(snap *snapshot.Snapshot, teamID string) map[string]int {
	hist := map[string]int{}
	for _, i := range snap.Issues.Values() {
		if i.TeamID != teamID {
			continue
		}
		hist[GetStateName(snap, i.StateID)]++
	}
	return hist
}

// StateHistogramForUser buckets issue counts for userID by state name.
func StateHistogramForUser(snap *snapshot.Snapshot, userID string) map[string]int {
	hist := map[string]int{}
	for _, i := range snap.Issues.Values() {
		if i.AssigneeID == nil || *i.AssigneeID != userID {
			continue
		}
		hist[GetStateName(snap, i.StateID)]++
	}
	return hist
}

// StateHistogramForProject buckets issue counts for projectID by state name.
func StateHistogramForProject(snap *snapshot.Snapshot, projectID string) map[string]int {
	hist := map[string]int{}
	for _, i := range snap.Issues.Values() {
		if i.ProjectID == nil || *i.ProjectID != projectID {
			continue
		}
		hist[GetStateName(snap, i.StateID)]++
	}
	return hist
}

// CyclesForTeam returns teamID's cycles sorted by number descending.
func CyclesForTeam(snap *snapshot.Snapshot, teamID string) []entity.Cycle {
	var out []entity.Cycle
	for _, c := range snap.Cycles.Values() {
		if c.TeamID == teamID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out
}

// MilestonesForProject returns projectID's milestones sorted by sortOrder
// ascending.
func MilestonesForProject(snap *snapshot.Snapshot, projectID string) []entity.Milestone {
	var out []entity.Milestone
	for _, m := range snap.Milestones.Values() {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// GetCommentsForIssue returns issueID's comments in comments_by_issue order
// (createdAt ascending), dropping any id that no longer resolves.
func GetCommentsForIssue(snap *snapshot.Snapshot, issueID string) []entity.Comment {
	ids := snap.CommentsByIssue[issueID]
	out := make([]entity.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := snap.Comments.Get(id); ok {
			out = append(out, c)
		}
	}
	return out
}
