package dto

import (
	"time"

	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID           uint64     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// OrganizationDTO represents an organization in API responses
type OrganizationDTO struct {
	ID              uint64                 `json:"id"`
	Name            string                 `json:"name"`
	Slug            string                 `json:"slug"`
	IsActive        bool                   `json:"is_active"`
	Settings        map[string]interface{} `json:"settings"`
	CurrentSprintID *uint64                `json:"current_sprint_id"`
	CreatedAt       time.Time              `json:"created_at"`
}

// OrganizationWithRoleDTO represents an organization with the user's role
type OrganizationWithRoleDTO struct {
	OrganizationDTO
	Role rbac.Role `json:"role"`
}

// MemberDTO represents a membership in an organization
type MemberDTO struct {
	ID       uint64     `json:"id"`
	Email    string     `json:"email"`
	Role     rbac.Role  `json:"role"`
	IsActive bool       `json:"is_active"`
	JoinedAt *time.Time `json:"joined_at"`
	User     *UserDTO   `json:"user,omitempty"`
}

// TeamDTO represents a team, with members when loaded
type TeamDTO struct {
	ID          uint64      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	IsActive    bool        `json:"is_active"`
	Members     []MemberDTO `json:"members,omitempty"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		IsSuperAdmin: user.IsSuperAdmin,
		LastLoginAt:  user.LastLoginAt,
	}
}

// ToOrganizationDTO converts an Organization model to OrganizationDTO
func ToOrganizationDTO(org models.Organization) OrganizationDTO {
	settings := map[string]interface{}{}
	for k, v := range org.Settings {
		settings[k] = v
	}
	return OrganizationDTO{
		ID:              org.ID,
		Name:            org.Name,
		Slug:            org.Slug,
		IsActive:        org.IsActive,
		Settings:        settings,
		CurrentSprintID: org.CurrentSprintID(),
		CreatedAt:       org.CreatedAt,
	}
}

// ToOrganizationWithRoleDTO converts a membership with its organization
func ToOrganizationWithRoleDTO(membership models.Membership) OrganizationWithRoleDTO {
	return OrganizationWithRoleDTO{
		OrganizationDTO: ToOrganizationDTO(membership.Organization),
		Role:            membership.Role,
	}
}

// ToMemberDTO converts a membership to DTO
func ToMemberDTO(membership models.Membership) MemberDTO {
	dto := MemberDTO{
		ID:       membership.ID,
		Email:    membership.Email,
		Role:     membership.Role,
		IsActive: membership.IsActive,
		JoinedAt: membership.JoinedAt,
	}

	// Include user if linked and preloaded
	if membership.User != nil && membership.User.ID != 0 {
		user := ToUserDTO(*membership.User)
		dto.User = &user
	}
	return dto
}

// ToMemberDTOs converts memberships to DTOs
func ToMemberDTOs(memberships []models.Membership) []MemberDTO {
	out := make([]MemberDTO, len(memberships))
	for i, m := range memberships {
		out[i] = ToMemberDTO(m)
	}
	return out
}

// ToTeamDTO converts a team to DTO
func ToTeamDTO(team models.Team) TeamDTO {
	dto := TeamDTO{
		ID:          team.ID,
		Name:        team.Name,
		Description: team.Description,
		IsActive:    team.IsActive,
	}
	for _, link := range team.Members {
		dto.Members = append(dto.Members, ToMemberDTO(link.Membership))
	}
	return dto
}
