package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/rocks-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/rocks-tracker-api/internal/errors"
	"github.com/yukikurage/rocks-tracker-api/internal/middleware"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
)

type TeamHandler struct {
	teamService *services.TeamService
}

func NewTeamHandler(teamService *services.TeamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

// ListTeams lists the organization's teams; inactive ones with ?all=true
func (h *TeamHandler) ListTeams(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	teams, err := h.teamService.ListTeams(c.Request.Context(), principal.OrganizationID, c.Query("all") == "true")
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.TeamDTO, len(teams))
	for i, team := range teams {
		out[i] = dto.ToTeamDTO(team)
	}
	c.JSON(http.StatusOK, gin.H{"teams": out})
}

// GetTeam returns a team with its members
func (h *TeamHandler) GetTeam(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}

	team, err := h.teamService.GetTeam(c.Request.Context(), middleware.GetPrincipal(c).OrganizationID, teamID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTeamDTO(*team))
}

// CreateTeam creates a team
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	type CreateTeamRequest struct {
		Name        string `json:"name" binding:"required,max=255"`
		Description string `json:"description"`
	}

	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	team, err := h.teamService.CreateTeam(c.Request.Context(), services.CreateTeamInput{
		OrganizationID: middleware.GetPrincipal(c).OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{EntityID: formatID(team.ID), NewValue: team})
	c.JSON(http.StatusCreated, dto.ToTeamDTO(*team))
}

// UpdateTeam renames, describes, activates or deactivates a team
func (h *TeamHandler) UpdateTeam(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}

	type UpdateTeamRequest struct {
		Name        *string `json:"name" binding:"omitempty,max=255"`
		Description *string `json:"description"`
		IsActive    *bool   `json:"is_active"`
	}

	var req UpdateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	before, after, err := h.teamService.UpdateTeam(c.Request.Context(), middleware.GetPrincipal(c).OrganizationID, teamID, services.UpdateTeamInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{OldValue: before, NewValue: after})
	c.JSON(http.StatusOK, dto.ToTeamDTO(*after))
}

// AddTeamMember adds a membership to a team
func (h *TeamHandler) AddTeamMember(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}

	type AddMemberRequest struct {
		MembershipID uint64 `json:"membership_id" binding:"required"`
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	orgID := middleware.GetPrincipal(c).OrganizationID
	if err := h.teamService.AddMember(c.Request.Context(), orgID, teamID, req.MembershipID); err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{
		EntityID: formatID(teamID),
		NewValue: gin.H{"team_id": teamID, "membership_id": req.MembershipID},
	})
	c.JSON(http.StatusOK, gin.H{"message": "Member added to team"})
}

// RemoveTeamMember removes a membership from a team
func (h *TeamHandler) RemoveTeamMember(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}
	membershipID, ok := parseID(c, "membershipId")
	if !ok {
		return
	}

	orgID := middleware.GetPrincipal(c).OrganizationID
	if err := h.teamService.RemoveMember(c.Request.Context(), orgID, teamID, membershipID); err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{
		EntityID: formatID(teamID),
		OldValue: gin.H{"team_id": teamID, "membership_id": membershipID},
	})
	c.JSON(http.StatusOK, gin.H{"message": "Member removed from team"})
}
