// Package classify holds the structural predicates that decide which
// opaque object store holds which entity kind. Store names and schemas are
// not declared anywhere the reader controls, so every predicate works only
// from the shape of a sampled record: presence of required keys plus a
// handful of disambiguating negative checks.
//
// These predicates are the authoritative, schema-version-independent
// definition of what this system considers each entity to be. They must be
// re-validated against each new version of the source application; a
// mismatch surfaces as an absent or misclassified entity kind, never a
// crash.
package classify

import "github.com/jra3/linear-reader/internal/record"

// Kind identifies an entity type a store can be classified as.
type Kind string

const (
	KindIssue           Kind = "issue"
	KindUser            Kind = "user"
	KindTeam            Kind = "team"
	KindWorkflowState   Kind = "workflow_state"
	KindComment         Kind = "comment"
	KindProject         Kind = "project"
	KindIssueContent    Kind = "issue_content"
	KindLabel           Kind = "label"
	KindInitiative      Kind = "initiative"
	KindProjectStatus   Kind = "project_status"
	KindCycle           Kind = "cycle"
	KindDocument        Kind = "document"
	KindDocumentContent Kind = "document_content"
	KindMilestone       Kind = "milestone"
	KindProjectUpdate   Kind = "project_update"
)

var workflowStateTypes = map[string]bool{
	"started":   true,
	"unstarted": true,
	"completed": true,
	"canceled":  true,
	"backlog":   true,
}

// Predicate reports whether rec matches a given entity kind.
type Predicate func(rec record.Map) bool

// Order is the fixed evaluation order from spec.md §4.1: issues before
// documents before labels, etc. A store that happens to match more than one
// predicate is reported under the first match in this order. The negative
// checks baked into IsProjectStatus and IsDocument make such collisions
// unreachable in practice.
var Order = []struct {
	Kind      Kind
	Predicate Predicate
}{
	{KindIssue, IsIssue},
	{KindUser, IsUser},
	{KindTeam, IsTeam},
	{KindWorkflowState, IsWorkflowState},
	{KindComment, IsComment},
	{KindProject, IsProject},
	{KindIssueContent, IsIssueContent},
	{KindLabel, IsLabel},
	{KindInitiative, IsInitiative},
	{KindProjectStatus, IsProjectStatus},
	{KindCycle, IsCycle},
	{KindDocument, IsDocument},
	{KindDocumentContent, IsDocumentContent},
	{KindMilestone, IsMilestone},
	{KindProjectUpdate, IsProjectUpdate},
}

// Classify returns the first kind in Order whose predicate matches rec, and
// true; if none match it returns ("", false).
func Classify(rec record.Map) (Kind, bool) {
	for _, candidate := range Order {
		if candidate.Predicate(rec) {
			return candidate.Kind, true
		}
	}
	return "", false
}

// IsIssue requires number, teamId, stateId, title.
func IsIssue(rec record.Map) bool {
	return rec.Has("number") && rec.Has("teamId") && rec.Has("stateId") && rec.Has("title")
}

// IsUser requires name, displayName, email.
func IsUser(rec record.Map) bool {
	return rec.Has("name") && rec.Has("displayName") && rec.Has("email")
}

// IsTeam requires key, name, with key being 1-10 uppercase A-Z characters.
func IsTeam(rec record.Map) bool {
	if !rec.Has("key") || !rec.Has("name") {
		return false
	}
	return isValidTeamKey(rec.String("key"))
}

func isValidTeamKey(key string) bool {
	if len(key) < 1 || len(key) > 10 {
		return false
	}
	for _, r := range key {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// IsWorkflowState requires name, type, color, teamId, with type restricted
// to the five known workflow state types.
func IsWorkflowState(rec record.Map) bool {
	if !rec.Has("name") || !rec.Has("type") || !rec.Has("color") || !rec.Has("teamId") {
		return false
	}
	return workflowStateTypes[rec.String("type")]
}

// IsComment requires issueId, userId, bodyData, createdAt.
func IsComment(rec record.Map) bool {
	return rec.Has("issueId") && rec.Has("userId") && rec.Has("bodyData") && rec.Has("createdAt")
}

// IsProject requires name, teamIds, slugId, statusId, memberIds.
func IsProject(rec record.Map) bool {
	return rec.Has("name") && rec.Has("teamIds") && rec.Has("slugId") &&
		rec.Has("statusId") && rec.Has("memberIds")
}

// IsIssueContent requires issueId, contentState.
func IsIssueContent(rec record.Map) bool {
	return rec.Has("issueId") && rec.Has("contentState")
}

// IsLabel requires name, color, isGroup.
func IsLabel(rec record.Map) bool {
	return rec.Has("name") && rec.Has("color") && rec.Has("isGroup")
}

// IsInitiative requires name, ownerId, slugId, frequencyResolution.
func IsInitiative(rec record.Map) bool {
	return rec.Has("name") && rec.Has("ownerId") && rec.Has("slugId") && rec.Has("frequencyResolution")
}

// IsProjectStatus requires name, color, position, type, indefinite, and
// must NOT have teamId (the property distinguishing it from WorkflowState).
func IsProjectStatus(rec record.Map) bool {
	if rec.Has("teamId") {
		return false
	}
	return rec.Has("name") && rec.Has("color") && rec.Has("position") &&
		rec.Has("type") && rec.Has("indefinite")
}

// IsCycle requires number, teamId, startsAt, endsAt.
func IsCycle(rec record.Map) bool {
	return rec.Has("number") && rec.Has("teamId") && rec.Has("startsAt") && rec.Has("endsAt")
}

// IsDocument requires title, slugId, projectId, sortOrder, and must NOT
// have number or stateId (the properties distinguishing it from Issue).
func IsDocument(rec record.Map) bool {
	if rec.Has("number") || rec.Has("stateId") {
		return false
	}
	return rec.Has("title") && rec.Has("slugId") && rec.Has("projectId") && rec.Has("sortOrder")
}

// IsDocumentContent requires documentContentId, contentData.
func IsDocumentContent(rec record.Map) bool {
	return rec.Has("documentContentId") && rec.Has("contentData")
}

// IsMilestone requires name, projectId, sortOrder, and either
// currentProgress or targetDate.
func IsMilestone(rec record.Map) bool {
	if !rec.Has("name") || !rec.Has("projectId") || !rec.Has("sortOrder") {
		return false
	}
	return rec.Has("currentProgress") || rec.Has("targetDate")
}

// IsProjectUpdate requires body and (projectId or health), and must NOT
// have issueId (which would make it a comment-like record instead).
func IsProjectUpdate(rec record.Map) bool {
	if rec.Has("issueId") {
		return false
	}
	if !rec.Has("body") {
		return false
	}
	return rec.Has("projectId") || rec.Has("health")
}
