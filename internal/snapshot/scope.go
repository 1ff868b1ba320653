package snapshot

import (
	"github.com/jra3/linear-reader/internal/entity"
	"github.com/jra3/linear-reader/internal/errs"
)

// ScopeConfig is the account scope filter's configuration (C4). Matching
// across both lists produces a union of allowed users; scope is enabled iff
// at least one list is non-empty.
type ScopeConfig struct {
	Emails         []string
	UserAccountIDs []string
}

// Enabled reports whether any scoping is configured.
func (c ScopeConfig) Enabled() bool {
	return len(c.Emails) > 0 || len(c.UserAccountIDs) > 0
}

func setOf(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

// ApplyScope prunes every collection in snap down to the account-scoped
// subset, in place, following the fourteen-step procedure of spec.md §4.4.
// It is a no-op when cfg is not Enabled. A misconfiguration that resolves to
// no matching user, or no matching organization, is reported as a
// *errs.ScopeConfigurationError and leaves snap unmodified.
func ApplyScope(snap *Snapshot, cfg ScopeConfig) error {
	if !cfg.Enabled() {
		return nil
	}

	emails := setOf(cfg.Emails)
	accountIDs := setOf(cfg.UserAccountIDs)

	// Step 1: allowed users by direct email/userAccountId match.
	allowedUserIDs := map[string]bool{}
	for _, u := range snap.Users.Values() {
		if emails[u.Email] || accountIDs[u.UserAccountID] {
			allowedUserIDs[u.ID] = true
		}
	}
	if len(allowedUserIDs) == 0 {
		return errs.NewScopeConfigurationError("account scope configured but matched no user")
	}

	// Step 2: allowed organizations, derived from the directly matched users.
	allowedOrgs := map[string]bool{}
	for _, u := range snap.Users.Values() {
		if allowedUserIDs[u.ID] {
			allowedOrgs[u.OrganizationID] = true
		}
	}
	if len(allowedOrgs) == 0 {
		return errs.NewScopeConfigurationError("account scope configured but matched no organization")
	}

	// Step 3: keep users in an allowed organization. This widens
	// allowed_user_ids from "directly matched" to "every user sharing an
	// allowed org", which later steps (8, 10, 12) key off of.
	snap.Users.KeepIf(func(_ string, u entity.User) bool {
		return allowedOrgs[u.OrganizationID]
	})
	allowedUserIDs = map[string]bool{}
	for _, id := range snap.Users.Keys() {
		allowedUserIDs[id] = true
	}

	// Step 4: keep teams in an allowed organization.
	snap.Teams.KeepIf(func(_ string, t entity.Team) bool {
		return allowedOrgs[t.OrganizationID]
	})
	allowedTeamIDs := map[string]bool{}
	for _, id := range snap.Teams.Keys() {
		allowedTeamIDs[id] = true
	}

	// Step 5: workflow states belonging to a kept team.
	snap.States.KeepIf(func(_ string, s entity.WorkflowState) bool {
		return allowedTeamIDs[s.TeamID]
	})

	// Step 6: issues belonging to a kept team.
	snap.Issues.KeepIf(func(_ string, i entity.Issue) bool {
		return allowedTeamIDs[i.TeamID]
	})

	// Step 7: comments whose issue survived; rebuild the derived index.
	snap.Comments.KeepIf(func(_ string, c entity.Comment) bool {
		return snap.Issues.Has(c.IssueID)
	})
	snap.RebuildCommentsByIssue()

	// Step 8: projects touching an allowed team or an allowed user.
	snap.Projects.KeepIf(func(_ string, p entity.Project) bool {
		if anyIn(p.TeamIDs, allowedTeamIDs) {
			return true
		}
		if p.LeadID != nil && allowedUserIDs[*p.LeadID] {
			return true
		}
		return anyIn(p.MemberIDs, allowedUserIDs)
	})
	allowedProjectIDs := map[string]bool{}
	for _, id := range snap.Projects.Keys() {
		allowedProjectIDs[id] = true
	}

	// Step 9: labels that are workspace-global or belong to a kept team.
	snap.Labels.KeepIf(func(_ string, l entity.Label) bool {
		return l.TeamID == nil || allowedTeamIDs[*l.TeamID]
	})

	// Step 10: initiatives touching an allowed team or owned by an allowed user.
	snap.Initiatives.KeepIf(func(_ string, i entity.Initiative) bool {
		if anyIn(i.TeamIDs, allowedTeamIDs) {
			return true
		}
		return i.OwnerID != nil && allowedUserIDs[*i.OwnerID]
	})

	// Step 11: cycles belonging to a kept team.
	snap.Cycles.KeepIf(func(_ string, c entity.Cycle) bool {
		return allowedTeamIDs[c.TeamID]
	})

	// Step 12: documents attached to a kept project, or ownerless documents
	// created by an allowed user.
	snap.Documents.KeepIf(func(_ string, d entity.Document) bool {
		if d.ProjectID != nil {
			return allowedProjectIDs[*d.ProjectID]
		}
		return d.CreatorID != nil && allowedUserIDs[*d.CreatorID]
	})

	// Step 13: milestones and project updates attached to a kept project.
	snap.Milestones.KeepIf(func(_ string, m entity.Milestone) bool {
		return allowedProjectIDs[m.ProjectID]
	})
	snap.ProjectUpdates.KeepIf(func(_ string, pu entity.ProjectUpdate) bool {
		return allowedProjectIDs[pu.ProjectID]
	})

	// Step 14: project statuses still referenced by a kept project.
	referencedStatusIDs := map[string]bool{}
	for _, p := range snap.Projects.Values() {
		if p.StatusID != nil {
			referencedStatusIDs[*p.StatusID] = true
		}
	}
	snap.ProjectStatuses.KeepIf(func(id string, _ entity.ProjectStatus) bool {
		return referencedStatusIDs[id]
	})

	return nil
}

func anyIn(ids []string, allowed map[string]bool) bool {
	for _, id := range ids {
		if allowed[id] {
			return true
		}
	}
	return false
}
