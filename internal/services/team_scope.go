package services

import (
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/database"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"gorm.io/gorm"
)

// NullTeamPolicy says, per entity type, whether rows with no team stay
// visible to team-scoped principals. Null-team rows are legacy org-wide data
// not yet backfilled into a team. Tasks inherit their story's team on
// creation, so a null-team task is never legacy org-wide work.
var NullTeamPolicy = map[string]bool{
	models.EntityObjective: true,
	models.EntityRock:      true,
	models.EntitySprint:    true,
	models.EntityStory:     true,
	models.EntityTask:      false,
}

// TeamScopeOptions tunes ApplyTeamScope for one query.
type TeamScopeOptions struct {
	EntityType string
	// AllowNullTeam overrides NullTeamPolicy when set.
	AllowNullTeam *bool
}

func (o TeamScopeOptions) allowNullTeam() bool {
	if o.AllowNullTeam != nil {
		return *o.AllowNullTeam
	}
	if allow, ok := NullTeamPolicy[o.EntityType]; ok {
		return allow
	}
	return true
}

// IsTeamScoped reports whether the principal only sees its own teams.
func IsTeamScoped(principal *Principal) bool {
	// No principal: nothing to narrow by.
	if principal == nil {
		return false
	}

	// Super-admins see every team.
	if principal.IsSuperAdmin {
		return false
	}

	// Scoping is an opt-in rollout per organization.
	if !principal.FlagEnabled(constants.FlagTeamScoping) {
		return false
	}

	// Managers and admins see every team.
	return !rbac.IsRoleAtLeast(principal.Role, rbac.RoleManager)
}

// ApplyTeamScope narrows base to the rows the principal's teams may see. The
// returned scope runs base first and ANDs the team condition onto it; base
// itself is left untouched.
//
// Team scoping refines visibility inside a tenant. The tenant boundary is the
// organization filter already in base, so every branch that cannot decide
// returns base unchanged.
func ApplyTeamScope(base database.Scope, principal *Principal, opts TeamScopeOptions) database.Scope {
	if base == nil {
		base = database.Identity
	}

	if !IsTeamScoped(principal) {
		return base
	}

	teamIDs := append([]uint64(nil), principal.TeamIDs...)
	allowNull := opts.allowNullTeam()

	return func(db *gorm.DB) *gorm.DB {
		db = base(db)
		switch {
		case len(teamIDs) > 0 && allowNull:
			return db.Where("team_id IN ? OR team_id IS NULL", teamIDs)
		case len(teamIDs) > 0:
			return db.Where("team_id IN ?", teamIDs)
		case allowNull:
			return db.Where("team_id IS NULL")
		default:
			return db.Where("1 = 0")
		}
	}
}
