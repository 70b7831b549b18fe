package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/rocks-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/rocks-tracker-api/internal/errors"
	"github.com/yukikurage/rocks-tracker-api/internal/middleware"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
)

type MemberHandler struct {
	memberService *services.MemberService
}

func NewMemberHandler(memberService *services.MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

// ListMembers lists the organization's memberships
func (h *MemberHandler) ListMembers(c *gin.Context) {
	members, err := h.memberService.ListMembers(c.Request.Context(), middleware.GetPrincipal(c).OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": dto.ToMemberDTOs(members)})
}

// InviteMember invites an email into the organization
func (h *MemberHandler) InviteMember(c *gin.Context) {
	type InviteRequest struct {
		Email string `json:"email" binding:"required"`
		Role  string `json:"role" binding:"required"`
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	membership, err := h.memberService.InviteMember(c.Request.Context(), services.InviteMemberInput{
		OrganizationID: middleware.GetPrincipal(c).OrganizationID,
		Email:          req.Email,
		Role:           req.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{
		EntityID:   formatID(membership.ID),
		EntityName: membership.Email,
		NewValue:   membership,
	})
	c.JSON(http.StatusCreated, dto.ToMemberDTO(*membership))
}

// UpdateMember changes the role or active state of a membership
func (h *MemberHandler) UpdateMember(c *gin.Context) {
	membershipID, ok := parseID(c, "id")
	if !ok {
		return
	}

	type UpdateMemberRequest struct {
		Role     *string `json:"role"`
		IsActive *bool   `json:"is_active"`
	}

	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	principal := middleware.GetPrincipal(c)
	before, after, err := h.memberService.UpdateMember(c.Request.Context(), principal.OrganizationID, membershipID, principal.UserID, services.UpdateMemberInput{
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{
		EntityName: after.Email,
		OldValue:   before,
		NewValue:   after,
	})
	c.JSON(http.StatusOK, dto.ToMemberDTO(*after))
}
