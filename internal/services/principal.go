package services

import "github.com/yukikurage/rocks-tracker-api/internal/rbac"

// Principal is the request-scoped description of the acting user inside one
// organization. It is built per request and never cached.
type Principal struct {
	OrganizationID uint64               `json:"organizationId"`
	UserID         uint64               `json:"userId"`
	MembershipID   *uint64              `json:"membershipId"`
	Role           rbac.Role            `json:"role"`
	TeamIDs        []uint64             `json:"teamIds"`
	Flags          map[string]FlagState `json:"flags"`
	IsSuperAdmin   bool                 `json:"isSuperAdmin"`
}

// FlagEnabled reports whether key is present and enabled. Absent keys are
// disabled.
func (p *Principal) FlagEnabled(key string) bool {
	if p == nil {
		return false
	}
	flag, ok := p.Flags[key]
	return ok && flag.IsEnabled
}

// InTeam reports whether the principal belongs to teamID.
func (p *Principal) InTeam(teamID uint64) bool {
	if p == nil {
		return false
	}
	for _, id := range p.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}
