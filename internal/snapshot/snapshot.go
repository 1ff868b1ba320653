// Package snapshot holds the in-memory materialization of the external
// store (C3), the account scope filter (C4), and the TTL-governed cache
// wrapper (C5) described in spec.md §4.3-4.5.
package snapshot

import (
	"sort"
	"time"

	"github.com/jra3/linear-reader/internal/entity"
)

// Snapshot is the in-memory materialization of the external store's
// contents at one point in time. Entities are keyed by id; every
// collection also records its insertion order for deterministic, stable
// fuzzy-lookup and listing tie-breaking.
type Snapshot struct {
	Teams           *OrderedMap[entity.Team]
	Users           *OrderedMap[entity.User]
	States          *OrderedMap[entity.WorkflowState]
	Issues          *OrderedMap[entity.Issue]
	Comments        *OrderedMap[entity.Comment]
	Projects        *OrderedMap[entity.Project]
	Labels          *OrderedMap[entity.Label]
	Initiatives     *OrderedMap[entity.Initiative]
	ProjectStatuses *OrderedMap[entity.ProjectStatus]
	Cycles          *OrderedMap[entity.Cycle]
	Documents       *OrderedMap[entity.Document]
	Milestones      *OrderedMap[entity.Milestone]
	ProjectUpdates  *OrderedMap[entity.ProjectUpdate]

	// CommentsByIssue is the derived index from spec.md §3: issue id to
	// ordered comment ids, sorted by createdAt ascending.
	CommentsByIssue map[string][]string

	LoadedAt time.Time
}

// New returns an empty Snapshot with every collection initialized. An
// empty Teams map is what the TTL cache (C5) treats as "never loaded".
func New() *Snapshot {
	return &Snapshot{
		Teams:           NewOrderedMap[entity.Team](),
		Users:           NewOrderedMap[entity.User](),
		States:          NewOrderedMap[entity.WorkflowState](),
		Issues:          NewOrderedMap[entity.Issue](),
		Comments:        NewOrderedMap[entity.Comment](),
		Projects:        NewOrderedMap[entity.Project](),
		Labels:          NewOrderedMap[entity.Label](),
		Initiatives:     NewOrderedMap[entity.Initiative](),
		ProjectStatuses: NewOrderedMap[entity.ProjectStatus](),
		Cycles:          NewOrderedMap[entity.Cycle](),
		Documents:       NewOrderedMap[entity.Document](),
		Milestones:      NewOrderedMap[entity.Milestone](),
		ProjectUpdates:  NewOrderedMap[entity.ProjectUpdate](),
		CommentsByIssue: map[string][]string{},
	}
}

// RebuildCommentsByIssue regroups every comment currently present by
// issueId, sorting each group ascending by createdAt (ties keep insertion
// order, via sort.SliceStable). Comments whose issueId no longer resolves
// are dropped from the index (but not from the Comments map itself; callers
// that prune orphans do so explicitly, e.g. the scope filter).
func (s *Snapshot) RebuildCommentsByIssue() {
	grouped := map[string][]entity.Comment{}
	for _, c := range s.Comments.Values() {
		if !s.Issues.Has(c.IssueID) {
			continue
		}
		grouped[c.IssueID] = append(grouped[c.IssueID], c)
	}

	s.CommentsByIssue = make(map[string][]string, len(grouped))
	for issueID, comments := range grouped {
		sort.SliceStable(comments, func(i, j int) bool {
			return comments[i].CreatedAt < comments[j].CreatedAt
		})
		ids := make([]string, len(comments))
		for i, c := range comments {
			ids[i] = c.ID
		}
		s.CommentsByIssue[issueID] = ids
	}
}
