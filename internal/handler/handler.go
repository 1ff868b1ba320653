// Package handler implements the local read handlers (C7): one function
// per tool name, each taking the current snapshot and a named-argument map
// and returning a JSON-compatible result, or raising
// *errs.LocalFallbackRequested when the request is outside what the local
// cache can answer correctly.
package handler

import (
	"container/heap"
	"sort"
	"strings"

	"github.com/jra3/linear-reader/internal/entity"
	"github.com/jra3/linear-reader/internal/errs"
	"github.com/jra3/linear-reader/internal/query"
	"github.com/jra3/linear-reader/internal/record"
	"github.com/jra3/linear-reader/internal/snapshot"
)

// Func is the shape every local handler implements.
type Func func(snap *snapshot.Snapshot, args record.Map) (any, error)

// Table is the name-to-handler registry the router's local-first path
// dispatches through (LocalFirstFallback tools, and
// OfficialWithCoherenceWindow tools outside a coherence window). The
// LocalOnly meta tools are not in it.
var Table = map[string]Func{
	"list_issues":          ListIssues,
	"get_issue":            GetIssue,
	"list_teams":           ListTeams,
	"list_projects":        ListProjects,
	"get_team":             GetTeam,
	"get_project":          GetProject,
	"list_users":           ListUsers,
	"get_user":             GetUser,
	"list_issue_statuses":  ListIssueStatuses,
	"get_issue_status":     GetIssueStatus,
	"list_comments":        ListComments,
	"list_issue_labels":    ListIssueLabels,
	"list_initiatives":     ListInitiatives,
	"get_initiative":       GetInitiative,
	"list_cycles":          ListCycles,
	"list_documents":       ListDocuments,
	"get_document":         GetDocument,
	"list_milestones":      ListMilestones,
	"get_milestone":        GetMilestone,
	"get_status_updates":   GetStatusUpdates,
	"list_project_updates": ListProjectUpdates,
}

func emptyTotal(key string) record.Map {
	return record.Map{key: []record.Map{}, "totalCount": 0}
}

func serializeProgress(p *entity.Progress) record.Map {
	if p == nil {
		return nil
	}
	return record.Map{
		"completed": p.CompletedIssueCount,
		"started":   p.StartedIssueCount,
		"unstarted": p.UnstartedIssueCount,
		"total":     p.ScopeCount,
	}
}

func orderByOrDefault(args record.Map, def string) string {
	if v := args.String("orderBy"); v != "" {
		return v
	}
	return def
}

func limitOrDefault(args record.Map, def int) int {
	if args.Has("limit") {
		return args.Int("limit")
	}
	return def
}

// indexedIssue pairs an issue with its position in the original (filtered)
// input, so ties on the sort key break by input order the same way a
// stable full sort would.
type indexedIssue struct {
	issue entity.Issue
	index int
}

// issueMinHeap is a min-heap over indexedIssue, ordered so that the
// "smallest" element (lowest key, or on a tie the later input position) sits
// at the root and is the first candidate evicted as larger issues arrive.
// This is the heapq.nlargest equivalent used when a nonzero limit is given.
type issueMinHeap struct {
	items []indexedIssue
	key   func(entity.Issue) string
}

func (h issueMinHeap) Len() int { return len(h.items) }
func (h issueMinHeap) Less(i, j int) bool {
	ki, kj := h.key(h.items[i].issue), h.key(h.items[j].issue)
	if ki != kj {
		return ki < kj
	}
	return h.items[i].index > h.items[j].index
}
func (h issueMinHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *issueMinHeap) Push(x any)   { h.items = append(h.items, x.(indexedIssue)) }
func (h *issueMinHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// topKIssuesDesc returns the limit largest issues by key(issue), descending,
// stable on ties by original input order. limit<=0 means "all, full sort".
func topKIssuesDesc(issues []entity.Issue, key func(entity.Issue) string, limit int) []entity.Issue {
	if limit <= 0 {
		out := make([]entity.Issue, len(issues))
		copy(out, issues)
		sort.SliceStable(out, func(i, j int) bool { return key(out[i]) > key(out[j]) })
		return out
	}

	h := &issueMinHeap{key: key}
	for i, issue := range issues {
		candidate := indexedIssue{issue: issue, index: i}
		if h.Len() < limit {
			heap.Push(h, candidate)
			continue
		}
		root := h.items[0]
		if key(issue) > key(root.issue) || (key(issue) == key(root.issue) && i < root.index) {
			heap.Pop(h)
			heap.Push(h, candidate)
		}
	}
	out := make([]entity.Issue, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(indexedIssue).issue
	}
	return out
}

func issueTimestamp(i entity.Issue, sortKey string) string {
	if sortKey == "createdAt" {
		return i.CreatedAt
	}
	return i.UpdatedAt
}

// ListIssues is the most elaborate handler and pins down the ordering
// contract: conjunctive filters, descending timestamp sort, top-k page,
// fixed projection.
func ListIssues(snap *snapshot.Snapshot, args record.Map) (any, error) {
	var assigneeID, teamID, projectID string
	if a := args.String("assignee"); a != "" {
		u, ok := query.FindUser(snap, a)
		if !ok {
			return emptyTotal("issues"), nil
		}
		assigneeID = u.ID
	}
	if tm := args.String("team"); tm != "" {
		t, ok := query.FindTeam(snap, tm)
		if !ok {
			return emptyTotal("issues"), nil
		}
		teamID = t.ID
	}
	if p := args.String("project"); p != "" {
		pr, ok := query.FindProject(snap, p)
		if !ok {
			return emptyTotal("issues"), nil
		}
		projectID = pr.ID
	}

	stateLower := strings.ToLower(args.String("state"))
	queryLower := strings.ToLower(args.String("query"))
	hasPriority := args.Has("priority")
	priority := args.Int("priority")
	sortKey := "updatedAt"
	if orderByOrDefault(args, "updatedAt") == "createdAt" {
		sortKey = "createdAt"
	}
	limit := limitOrDefault(args, 50)

	var filtered []entity.Issue
	for _, issue := range snap.Issues.Values() {
		if assigneeID != "" && (issue.AssigneeID == nil || *issue.AssigneeID != assigneeID) {
			continue
		}
		if teamID != "" && issue.TeamID != teamID {
			continue
		}
		if stateLower != "" {
			stateType := strings.ToLower(query.GetStateType(snap, issue.StateID))
			stateName := strings.ToLower(query.GetStateName(snap, issue.StateID))
			if stateLower != stateType && stateLower != stateName {
				continue
			}
		}
		if projectID != "" && (issue.ProjectID == nil || *issue.ProjectID != projectID) {
			continue
		}
		if queryLower != "" && !strings.Contains(strings.ToLower(issue.Title), queryLower) {
			continue
		}
		if hasPriority && (issue.Priority == nil || *issue.Priority != priority) {
			continue
		}
		filtered = append(filtered, issue)
	}

	totalCount := len(filtered)
	page := topKIssuesDesc(filtered, func(i entity.Issue) string { return issueTimestamp(i, sortKey) }, limit)

	results := make([]record.Map, 0, len(page))
	for _, issue := range page {
		results = append(results, record.Map{
			"identifier": issue.Identifier,
			"title":      issue.Title,
			"priority":   issue.Priority,
			"state":      query.GetStateName(snap, issue.StateID),
			"stateType":  query.GetStateType(snap, issue.StateID),
			"assignee":   query.GetUserName(snap, issue.AssigneeID),
			"dueDate":    issue.DueDate,
		})
	}

	return record.Map{"issues": results, "totalCount": totalCount}, nil
}

// GetIssue resolves an identifier and returns the full issue view with its
// comments, or nil if it does not resolve.
func GetIssue(snap *snapshot.Snapshot, args record.Map) (any, error) {
	issue, ok := query.GetIssueByIdentifier(snap, args.String("id"))
	if !ok {
		return nil, nil
	}

	comments := query.GetCommentsForIssue(snap, issue.ID)
	enriched := make([]record.Map, 0, len(comments))
	for _, c := range comments {
		author := "Unknown"
		if u, ok := snap.Users.Get(c.UserID); ok && u.Name != "" {
			author = u.Name
		}
		enriched = append(enriched, record.Map{
			"author":    author,
			"body":      c.Body,
			"createdAt": c.CreatedAt,
		})
	}

	return record.Map{
		"identifier":  issue.Identifier,
		"title":       issue.Title,
		"description": issue.Description,
		"priority":    issue.Priority,
		"estimate":    issue.Estimate,
		"state":       query.GetStateName(snap, issue.StateID),
		"stateType":   query.GetStateType(snap, issue.StateID),
		"assignee":    query.GetUserName(snap, issue.AssigneeID),
		"project":     query.GetProjectName(snap, issue.ProjectID),
		"dueDate":     issue.DueDate,
		"createdAt":   issue.CreatedAt,
		"updatedAt":   issue.UpdatedAt,
		"comments":    enriched,
		"url":         "https://linear.app/issue/" + issue.Identifier,
	}, nil
}

// ListTeams projects every team with its issue count, sorted by key.
func ListTeams(snap *snapshot.Snapshot, args record.Map) (any, error) {
	teams := snap.Teams.Values()
	sort.SliceStable(teams, func(i, j int) bool { return teams[i].Key < teams[j].Key })
	out := make([]record.Map, 0, len(teams))
	for _, t := range teams {
		out = append(out, record.Map{
			"key":        t.Key,
			"name":       t.Name,
			"issueCount": query.IssueCountForTeam(snap, t.ID),
		})
	}
	return out, nil
}

// ListProjects optionally restricts to one team, sorted by name.
func ListProjects(snap *snapshot.Snapshot, args record.Map) (any, error) {
	var teamID string
	if tm := args.String("team"); tm != "" {
		t, ok := query.FindTeam(snap, tm)
		if !ok {
			return []record.Map{}, nil
		}
		teamID = t.ID
	}

	var projects []entity.Project
	for _, p := range snap.Projects.Values() {
		if teamID != "" && !containsString(p.TeamIDs, teamID) {
			continue
		}
		projects = append(projects, p)
	}
	sort.SliceStable(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })

	out := make([]record.Map, 0, len(projects))
	for _, p := range projects {
		out = append(out, record.Map{
			"name":       p.Name,
			"state":      p.State,
			"issueCount": query.IssueCountForProject(snap, p.ID),
			"startDate":  p.StartDate,
			"targetDate": p.TargetDate,
		})
	}
	return out, nil
}

func containsString(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// GetTeam projects a single team with its issue count and state histogram.
func GetTeam(snap *snapshot.Snapshot, args record.Map) (any, error) {
	t, ok := query.FindTeam(snap, args.String("query"))
	if !ok {
		return nil, nil
	}
	return record.Map{
		"id":            t.ID,
		"key":           t.Key,
		"name":          t.Name,
		"description":   t.Description,
		"issueCount":    query.IssueCountForTeam(snap, t.ID),
		"issuesByState": query.StateHistogramForTeam(snap, t.ID),
	}, nil
}

// GetProject projects a single project with its issue count and state
// histogram.
func GetProject(snap *snapshot.Snapshot, args record.Map) (any, error) {
	p, ok := query.FindProject(snap, args.String("query"))
	if !ok {
		return nil, nil
	}
	return record.Map{
		"id":            p.ID,
		"name":          p.Name,
		"description":   p.Description,
		"state":         p.State,
		"startDate":     p.StartDate,
		"targetDate":    p.TargetDate,
		"issueCount":    query.IssueCountForProject(snap, p.ID),
		"issuesByState": query.StateHistogramForProject(snap, p.ID),
	}, nil
}

// ListUsers projects every user with their assigned-issue count, sorted by
// name.
func ListUsers(snap *snapshot.Snapshot, args record.Map) (any, error) {
	users := snap.Users.Values()
	sort.SliceStable(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	out := make([]record.Map, 0, len(users))
	for _, u := range users {
		out = append(out, record.Map{
			"id":                 u.ID,
			"name":               u.Name,
			"email":              u.Email,
			"displayName":        u.DisplayName,
			"assignedIssueCount": query.IssueCountForUser(snap, u.ID),
		})
	}
	return out, nil
}

// GetUser projects a single user with their per-state issue histogram.
func GetUser(snap *snapshot.Snapshot, args record.Map) (any, error) {
	u, ok := query.FindUser(snap, args.String("query"))
	if !ok {
		return nil, nil
	}
	hist := query.StateHistogramForUser(snap, u.ID)
	total := 0
	for _, n := range hist {
		total += n
	}
	return record.Map{
		"id":                 u.ID,
		"name":               u.Name,
		"email":              u.Email,
		"displayName":        u.DisplayName,
		"assignedIssueCount": total,
		"issuesByState":      hist,
	}, nil
}

// ListIssueStatuses lists a team's workflow states, sorted by position.
func ListIssueStatuses(snap *snapshot.Snapshot, args record.Map) (any, error) {
	t, ok := query.FindTeam(snap, args.String("team"))
	if !ok {
		return []record.Map{}, nil
	}

	var states []entity.WorkflowState
	for _, s := range snap.States.Values() {
		if s.TeamID == t.ID {
			states = append(states, s)
		}
	}
	sort.SliceStable(states, func(i, j int) bool { return states[i].Position < states[j].Position })

	out := make([]record.Map, 0, len(states))
	for _, s := range states {
		out = append(out, record.Map{
			"id":       s.ID,
			"name":     s.Name,
			"type":     s.Type,
			"color":    s.Color,
			"position": s.Position,
		})
	}
	return out, nil
}

// GetIssueStatus resolves a single workflow state within a team, by id or
// name.
func GetIssueStatus(snap *snapshot.Snapshot, args record.Map) (any, error) {
	t, ok := query.FindTeam(snap, args.String("team"))
	if !ok {
		return nil, nil
	}
	q := args.String("id")
	if q == "" {
		q = args.String("name")
	}
	if q == "" {
		return nil, nil
	}
	s, ok := query.FindIssueStatus(snap, t.ID, q)
	if !ok {
		return nil, nil
	}
	return record.Map{
		"id":       s.ID,
		"name":     s.Name,
		"type":     s.Type,
		"color":    s.Color,
		"position": s.Position,
		"team":     t.Name,
	}, nil
}

// ListComments lists an issue's comments.
func ListComments(snap *snapshot.Snapshot, args record.Map) (any, error) {
	issue, ok := query.GetIssueByIdentifier(snap, args.String("issueId"))
	if !ok {
		return []record.Map{}, nil
	}
	comments := query.GetCommentsForIssue(snap, issue.ID)
	out := make([]record.Map, 0, len(comments))
	for _, c := range comments {
		author := "Unknown"
		if u, ok := snap.Users.Get(c.UserID); ok && u.Name != "" {
			author = u.Name
		}
		out = append(out, record.Map{
			"id":        c.ID,
			"author":    author,
			"body":      c.Body,
			"createdAt": c.CreatedAt,
			"updatedAt": c.UpdatedAt,
		})
	}
	return out, nil
}

// ListIssueLabels optionally restricts to one team's labels plus
// workspace-global labels, sorted by name.
func ListIssueLabels(snap *snapshot.Snapshot, args record.Map) (any, error) {
	var teamID string
	if tm := args.String("team"); tm != "" {
		if t, ok := query.FindTeam(snap, tm); ok {
			teamID = t.ID
		}
	}

	labels := snap.Labels.Values()
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

	out := make([]record.Map, 0, len(labels))
	for _, l := range labels {
		if teamID != "" && l.TeamID != nil && *l.TeamID != teamID {
			continue
		}
		out = append(out, record.Map{
			"id":      l.ID,
			"name":    l.Name,
			"color":   l.Color,
			"isGroup": l.IsGroup,
		})
	}
	return out, nil
}

// ListInitiatives lists every initiative, sorted by name.
func ListInitiatives(snap *snapshot.Snapshot, args record.Map) (any, error) {
	initiatives := snap.Initiatives.Values()
	sort.SliceStable(initiatives, func(i, j int) bool { return initiatives[i].Name < initiatives[j].Name })
	out := make([]record.Map, 0, len(initiatives))
	for _, i := range initiatives {
		out = append(out, record.Map{
			"id":     i.ID,
			"name":   i.Name,
			"slugId": i.SlugID,
			"color":  i.Color,
			"status": i.Status,
			"owner":  query.GetUserName(snap, i.OwnerID),
		})
	}
	return out, nil
}

// GetInitiative projects a single initiative.
func GetInitiative(snap *snapshot.Snapshot, args record.Map) (any, error) {
	i, ok := query.FindInitiative(snap, args.String("query"))
	if !ok {
		return nil, nil
	}
	return record.Map{
		"id":        i.ID,
		"name":      i.Name,
		"slugId":    i.SlugID,
		"color":     i.Color,
		"status":    i.Status,
		"owner":     query.GetUserName(snap, i.OwnerID),
		"teamIds":   i.TeamIDs,
		"createdAt": i.CreatedAt,
		"updatedAt": i.UpdatedAt,
	}, nil
}

// ListCycles lists a team's cycles, sorted by number descending.
func ListCycles(snap *snapshot.Snapshot, args record.Map) (any, error) {
	t, ok := query.FindTeam(snap, args.String("teamId"))
	if !ok {
		return []record.Map{}, nil
	}
	cycles := query.CyclesForTeam(snap, t.ID)
	out := make([]record.Map, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, record.Map{
			"id":          c.ID,
			"number":      c.Number,
			"startsAt":    c.StartsAt,
			"endsAt":      c.EndsAt,
			"completedAt": c.CompletedAt,
			"progress":    serializeProgress(c.CurrentProgress),
		})
	}
	return out, nil
}

// ListDocuments optionally restricts to one project, sorted by updatedAt
// descending.
func ListDocuments(snap *snapshot.Snapshot, args record.Map) (any, error) {
	var projectID string
	if p := args.String("project"); p != "" {
		pr, ok := query.FindProject(snap, p)
		if !ok {
			return []record.Map{}, nil
		}
		projectID = pr.ID
	}

	var docs []entity.Document
	for _, d := range snap.Documents.Values() {
		if projectID != "" && (d.ProjectID == nil || *d.ProjectID != projectID) {
			continue
		}
		docs = append(docs, d)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].UpdatedAt > docs[j].UpdatedAt })

	out := make([]record.Map, 0, len(docs))
	for _, d := range docs {
		out = append(out, record.Map{
			"id":        d.ID,
			"title":     d.Title,
			"slugId":    d.SlugID,
			"project":   query.GetProjectName(snap, d.ProjectID),
			"createdAt": d.CreatedAt,
			"updatedAt": d.UpdatedAt,
		})
	}
	return out, nil
}

// GetDocument resolves a single document by slugId or title substring.
func GetDocument(snap *snapshot.Snapshot, args record.Map) (any, error) {
	d, ok := query.FindDocument(snap, args.String("id"))
	if !ok {
		return nil, nil
	}
	return record.Map{
		"id":        d.ID,
		"title":     d.Title,
		"slugId":    d.SlugID,
		"project":   query.GetProjectName(snap, d.ProjectID),
		"creator":   query.GetUserName(snap, d.CreatorID),
		"createdAt": d.CreatedAt,
		"updatedAt": d.UpdatedAt,
		"url":       "https://linear.app/document/" + d.SlugID,
	}, nil
}

// ListMilestones lists a project's milestones, sorted by sortOrder
// ascending.
func ListMilestones(snap *snapshot.Snapshot, args record.Map) (any, error) {
	p, ok := query.FindProject(snap, args.String("project"))
	if !ok {
		return []record.Map{}, nil
	}
	milestones := query.MilestonesForProject(snap, p.ID)
	out := make([]record.Map, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, record.Map{
			"id":         m.ID,
			"name":       m.Name,
			"targetDate": m.TargetDate,
			"progress":   serializeProgress(m.CurrentProgress),
		})
	}
	return out, nil
}

// GetMilestone resolves a single milestone within a project.
func GetMilestone(snap *snapshot.Snapshot, args record.Map) (any, error) {
	p, ok := query.FindProject(snap, args.String("project"))
	if !ok {
		return nil, nil
	}
	m, ok := query.FindMilestone(snap, p.ID, args.String("query"))
	if !ok {
		return nil, nil
	}
	return record.Map{
		"id":         m.ID,
		"name":       m.Name,
		"project":    p.Name,
		"targetDate": m.TargetDate,
		"sortOrder":  m.SortOrder,
		"progress":   serializeProgress(m.CurrentProgress),
	}, nil
}

func serializeStatusUpdate(snap *snapshot.Snapshot, u entity.ProjectUpdate) record.Map {
	return record.Map{
		"id":        u.ID,
		"body":      u.Body,
		"health":    u.Health,
		"author":    query.GetUserName(snap, &u.UserID),
		"project":   query.GetProjectName(snap, &u.ProjectID),
		"createdAt": u.CreatedAt,
		"updatedAt": u.UpdatedAt,
	}
}

func collectStatusUpdates(snap *snapshot.Snapshot, projectID, userID, orderBy string) []entity.ProjectUpdate {
	var updates []entity.ProjectUpdate
	for _, u := range snap.ProjectUpdates.Values() {
		if projectID != "" && u.ProjectID != projectID {
			continue
		}
		if userID != "" && u.UserID != userID {
			continue
		}
		updates = append(updates, u)
	}
	sortKey := func(u entity.ProjectUpdate) string {
		if orderBy == "updatedAt" {
			return u.UpdatedAt
		}
		return u.CreatedAt
	}
	sort.SliceStable(updates, func(i, j int) bool { return sortKey(updates[i]) > sortKey(updates[j]) })
	return updates
}

// GetStatusUpdates supports only type=="project"; any of
// initiative/cursor/createdAt/updatedAt/includeArchived set requests
// fallback, as do other type values.
func GetStatusUpdates(snap *snapshot.Snapshot, args record.Map) (any, error) {
	if args.String("type") != "project" {
		return nil, errs.NewLocalFallback(errs.CodeUnsupportedType,
			"local cache supports only get_status_updates(type='project')")
	}
	if args.Has("initiative") || args.Has("cursor") || args.Has("createdAt") ||
		args.Has("updatedAt") || args.Has("includeArchived") {
		return nil, errs.NewLocalFallback(errs.CodeUnsupportedFilter,
			"one or more filters are unsupported by local cache")
	}

	var projectID string
	if p := args.String("project"); p != "" {
		pr, ok := query.FindProject(snap, p)
		if !ok {
			return emptyTotal("statusUpdates"), nil
		}
		projectID = pr.ID
	}

	var userID string
	if u := args.String("user"); u != "" {
		usr, ok := query.FindUser(snap, u)
		if !ok {
			return emptyTotal("statusUpdates"), nil
		}
		userID = usr.ID
	}

	updates := collectStatusUpdates(snap, projectID, userID, orderByOrDefault(args, "createdAt"))

	if id := args.String("id"); id != "" {
		for _, u := range updates {
			if u.ID == id {
				return serializeStatusUpdate(snap, u), nil
			}
		}
		return nil, nil
	}

	totalCount := len(updates)
	limit := limitOrDefault(args, 50)
	if limit > 0 && limit < len(updates) {
		updates = updates[:limit]
	}

	out := make([]record.Map, 0, len(updates))
	for _, u := range updates {
		out = append(out, serializeStatusUpdate(snap, u))
	}
	return record.Map{"statusUpdates": out, "totalCount": totalCount}, nil
}

// ListProjectUpdates is get_status_updates(type="project", project=...,
// limit=0) with the envelope stripped down to the bare listing.
func ListProjectUpdates(snap *snapshot.Snapshot, args record.Map) (any, error) {
	if _, ok := query.FindProject(snap, args.String("project")); !ok {
		return []record.Map{}, nil
	}
	result, err := GetStatusUpdates(snap, record.Map{
		"type":    "project",
		"project": args.String("project"),
		"limit":   0,
	})
	if err != nil {
		return nil, err
	}
	m, ok := result.(record.Map)
	if !ok {
		return []record.Map{}, nil
	}
	updates, _ := m["statusUpdates"].([]record.Map)
	return updates, nil
}
