// Package entity holds the typed, entity-specific views extracted from raw
// attribute-map records at snapshot load time. Each view carries only the
// fields the core consumes (spec.md §3); everything else is preserved
// opaquely in a Raw sidecar so unusual callers never force a re-read of the
// source database.
package entity

import (
	"encoding/json"

	"github.com/jra3/linear-reader/internal/record"
)

// Team corresponds to spec.md §3 Team.
type Team struct {
	ID             string
	Key            string
	Name           string
	Description    string
	OrganizationID string
	Raw            record.Map
}

// User corresponds to spec.md §3 User.
type User struct {
	ID             string
	Name           string
	DisplayName    string
	Email          string
	OrganizationID string
	UserAccountID  string
	Raw            record.Map
}

// WorkflowStateType enumerates the five known workflow state types.
type WorkflowStateType string

const (
	StateStarted   WorkflowStateType = "started"
	StateUnstarted WorkflowStateType = "unstarted"
	StateCompleted WorkflowStateType = "completed"
	StateCanceled  WorkflowStateType = "canceled"
	StateBacklog   WorkflowStateType = "backlog"
)

// WorkflowState corresponds to spec.md §3 WorkflowState.
type WorkflowState struct {
	ID       string
	Name     string
	Type     string
	Color    string
	Position float64
	TeamID   string
	Raw      record.Map
}

// Issue corresponds to spec.md §3 Issue. Priority is optional: nil means
// the record had no priority set. A priority sort should treat nil as 4
// ("None" sorts last), but that's a sort-key convention, not the stored
// value, so filters and projections see the raw optional value.
type Issue struct {
	ID          string
	Identifier  string
	Title       string
	Description string
	Priority    *int
	Estimate    *int
	TeamID      string
	StateID     string
	AssigneeID  *string
	ProjectID   *string
	DueDate     *string
	CreatedAt   string
	UpdatedAt   string
	Raw         record.Map
}

// Comment corresponds to spec.md §3 Comment.
type Comment struct {
	ID        string
	IssueID   string
	UserID    string
	Body      string
	CreatedAt string
	UpdatedAt string
	Raw       record.Map
}

// Project corresponds to spec.md §3 Project.
type Project struct {
	ID          string
	Name        string
	SlugID      string
	State       string
	Description string
	StartDate   *string
	TargetDate  *string
	TeamIDs     []string
	LeadID      *string
	MemberIDs   []string
	StatusID    *string
	Raw         record.Map
}

// Label corresponds to spec.md §3 Label. A nil TeamID means workspace-global.
type Label struct {
	ID      string
	Name    string
	Color   string
	IsGroup bool
	TeamID  *string
	Raw     record.Map
}

// Initiative corresponds to spec.md §3 Initiative.
type Initiative struct {
	ID        string
	Name      string
	SlugID    string
	Color     string
	Status    string
	OwnerID   *string
	TeamIDs   []string
	CreatedAt string
	UpdatedAt string
	Raw       record.Map
}

// ProjectStatus corresponds to spec.md §3 ProjectStatus.
type ProjectStatus struct {
	ID         string
	Name       string
	Color      string
	Position   float64
	Type       string
	Indefinite bool
	Raw        record.Map
}

// Progress is the shared shape of Cycle.CurrentProgress and
// Milestone.CurrentProgress.
type Progress struct {
	CompletedIssueCount int
	StartedIssueCount   int
	UnstartedIssueCount int
	ScopeCount          int
}

// Cycle corresponds to spec.md §3 Cycle.
type Cycle struct {
	ID              string
	Number          int
	TeamID          string
	StartsAt        string
	EndsAt          string
	CompletedAt     *string
	CurrentProgress *Progress
	Raw             record.Map
}

// Document corresponds to spec.md §3 Document. Content is populated by the
// snapshot loader from the document's content store, the same way Issue's
// Description is.
type Document struct {
	ID        string
	Title     string
	SlugID    string
	ProjectID *string
	CreatorID *string
	SortOrder float64
	Content   string
	CreatedAt string
	UpdatedAt string
	Raw       record.Map
}

// Milestone corresponds to spec.md §3 Milestone.
type Milestone struct {
	ID              string
	Name            string
	ProjectID       string
	SortOrder       float64
	TargetDate      *string
	CurrentProgress *Progress
	Raw             record.Map
}

// ProjectUpdate corresponds to spec.md §3 ProjectUpdate.
type ProjectUpdate struct {
	ID        string
	Body      string
	Health    string
	ProjectID string
	UserID    string
	CreatedAt string
	UpdatedAt string
	Raw       record.Map
}

func ptrOrNil(m record.Map, key string) *string { return m.StringPtr(key) }

// FromTeamRecord extracts a Team view from a classified team record.
func FromTeamRecord(id string, rec record.Map) Team {
	return Team{
		ID:             id,
		Key:            rec.String("key"),
		Name:           rec.String("name"),
		Description:    rec.String("description"),
		OrganizationID: rec.String("organizationId"),
		Raw:            rec,
	}
}

// FromUserRecord extracts a User view from a classified user record.
func FromUserRecord(id string, rec record.Map) User {
	return User{
		ID:             id,
		Name:           rec.String("name"),
		DisplayName:    rec.String("displayName"),
		Email:          rec.String("email"),
		OrganizationID: rec.String("organizationId"),
		UserAccountID:  rec.String("userAccountId"),
		Raw:            rec,
	}
}

// FromWorkflowStateRecord extracts a WorkflowState view.
func FromWorkflowStateRecord(id string, rec record.Map) WorkflowState {
	return WorkflowState{
		ID:       id,
		Name:     rec.String("name"),
		Type:     rec.String("type"),
		Color:    rec.String("color"),
		Position: asFloat(rec["position"]),
		TeamID:   rec.String("teamId"),
		Raw:      rec,
	}
}

// FromIssueRecord extracts an Issue view. Priority is left nil when the
// record has none: the "None sorts as 4" rule is a sort-key convention,
// applied where issues are ordered by priority, not at extraction time.
func FromIssueRecord(id string, rec record.Map) Issue {
	return Issue{
		ID:          id,
		Identifier:  rec.String("identifier"),
		Title:       rec.String("title"),
		Description: rec.String("description"),
		Priority:    rec.IntPtr("priority"),
		Estimate:    rec.IntPtr("estimate"),
		TeamID:      rec.String("teamId"),
		StateID:     rec.String("stateId"),
		AssigneeID:  ptrOrNil(rec, "assigneeId"),
		ProjectID:   ptrOrNil(rec, "projectId"),
		DueDate:     ptrOrNil(rec, "dueDate"),
		CreatedAt:   rec.String("createdAt"),
		UpdatedAt:   rec.String("updatedAt"),
		Raw:         rec,
	}
}

// FromCommentRecord extracts a Comment view. Body is expected to already be
// decoded from the CRDT blob and merged onto the record as "body" by the
// snapshot loader; the raw bodyData field is not interpreted here.
func FromCommentRecord(id string, rec record.Map) Comment {
	return Comment{
		ID:        id,
		IssueID:   rec.String("issueId"),
		UserID:    rec.String("userId"),
		Body:      rec.String("body"),
		CreatedAt: rec.String("createdAt"),
		UpdatedAt: rec.String("updatedAt"),
		Raw:       rec,
	}
}

// FromProjectRecord extracts a Project view.
func FromProjectRecord(id string, rec record.Map) Project {
	return Project{
		ID:          id,
		Name:        rec.String("name"),
		SlugID:      rec.String("slugId"),
		State:       rec.String("state"),
		Description: rec.String("description"),
		StartDate:   ptrOrNil(rec, "startDate"),
		TargetDate:  ptrOrNil(rec, "targetDate"),
		TeamIDs:     rec.StringSlice("teamIds"),
		LeadID:      ptrOrNil(rec, "leadId"),
		MemberIDs:   rec.StringSlice("memberIds"),
		StatusID:    ptrOrNil(rec, "statusId"),
		Raw:         rec,
	}
}

// FromLabelRecord extracts a Label view.
func FromLabelRecord(id string, rec record.Map) Label {
	return Label{
		ID:      id,
		Name:    rec.String("name"),
		Color:   rec.String("color"),
		IsGroup: rec.Bool("isGroup"),
		TeamID:  ptrOrNil(rec, "teamId"),
		Raw:     rec,
	}
}

// FromInitiativeRecord extracts an Initiative view.
func FromInitiativeRecord(id string, rec record.Map) Initiative {
	return Initiative{
		ID:        id,
		Name:      rec.String("name"),
		SlugID:    rec.String("slugId"),
		Color:     rec.String("color"),
		Status:    rec.String("status"),
		OwnerID:   ptrOrNil(rec, "ownerId"),
		TeamIDs:   rec.StringSlice("teamIds"),
		CreatedAt: rec.String("createdAt"),
		UpdatedAt: rec.String("updatedAt"),
		Raw:       rec,
	}
}

// FromProjectStatusRecord extracts a ProjectStatus view.
func FromProjectStatusRecord(id string, rec record.Map) ProjectStatus {
	return ProjectStatus{
		ID:         id,
		Name:       rec.String("name"),
		Color:      rec.String("color"),
		Position:   asFloat(rec["position"]),
		Type:       rec.String("type"),
		Indefinite: rec.Bool("indefinite"),
		Raw:        rec,
	}
}

func progressFrom(m record.Map) *Progress {
	if m == nil {
		return nil
	}
	return &Progress{
		CompletedIssueCount: m.Int("completedIssueCount"),
		StartedIssueCount:   m.Int("startedIssueCount"),
		UnstartedIssueCount: m.Int("unstartedIssueCount"),
		ScopeCount:          m.Int("scopeCount"),
	}
}

// FromCycleRecord extracts a Cycle view.
func FromCycleRecord(id string, rec record.Map) Cycle {
	return Cycle{
		ID:              id,
		Number:          rec.Int("number"),
		TeamID:          rec.String("teamId"),
		StartsAt:        rec.String("startsAt"),
		EndsAt:          rec.String("endsAt"),
		CompletedAt:     ptrOrNil(rec, "completedAt"),
		CurrentProgress: progressFrom(rec.Map("currentProgress")),
		Raw:             rec,
	}
}

// FromDocumentRecord extracts a Document view. Content is filled in later
// by the snapshot loader from the document-content store, the same way
// Issue.Description is.
func FromDocumentRecord(id string, rec record.Map) Document {
	return Document{
		ID:        id,
		Title:     rec.String("title"),
		SlugID:    rec.String("slugId"),
		ProjectID: ptrOrNil(rec, "projectId"),
		CreatorID: ptrOrNil(rec, "creatorId"),
		SortOrder: asFloat(rec["sortOrder"]),
		Content:   rec.String("content"),
		CreatedAt: rec.String("createdAt"),
		UpdatedAt: rec.String("updatedAt"),
		Raw:       rec,
	}
}

// FromMilestoneRecord extracts a Milestone view.
func FromMilestoneRecord(id string, rec record.Map) Milestone {
	return Milestone{
		ID:              id,
		Name:            rec.String("name"),
		ProjectID:       rec.String("projectId"),
		SortOrder:       asFloat(rec["sortOrder"]),
		TargetDate:      ptrOrNil(rec, "targetDate"),
		CurrentProgress: progressFrom(rec.Map("currentProgress")),
		Raw:             rec,
	}
}

// FromProjectUpdateRecord extracts a ProjectUpdate view.
func FromProjectUpdateRecord(id string, rec record.Map) ProjectUpdate {
	return ProjectUpdate{
		ID:        id,
		Body:      rec.String("body"),
		Health:    rec.String("health"),
		ProjectID: rec.String("projectId"),
		UserID:    rec.String("userId"),
		CreatedAt: rec.String("createdAt"),
		UpdatedAt: rec.String("updatedAt"),
		Raw:       rec,
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
