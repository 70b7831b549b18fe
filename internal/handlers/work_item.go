package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/rocks-tracker-api/internal/database"
	"github.com/yukikurage/rocks-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/rocks-tracker-api/internal/errors"
	"github.com/yukikurage/rocks-tracker-api/internal/middleware"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
	"gorm.io/gorm"
)

// workItemInput is a request body that writes its fields onto an item.
// Fields left out of the body keep their current value.
type workItemInput[T any] interface {
	apply(item *T, principal *services.Principal, creating bool) error
}

// WorkItemHandler serves CRUD routes for one work item resource.
type WorkItemHandler[T any, PT services.WorkItem[T]] struct {
	service  *services.WorkItemService[T, PT]
	resource string
	newInput func() workItemInput[T]
	// filters maps list query parameters onto columns.
	filters map[string]string
	prepare func(ctx context.Context, principal *services.Principal, item *T) error
}

// NewWorkItemHandler creates a handler for resource, the permission prefix
// such as "rocks".
func NewWorkItemHandler[T any, PT services.WorkItem[T]](
	service *services.WorkItemService[T, PT],
	resource string,
	newInput func() workItemInput[T],
	filters map[string]string,
) *WorkItemHandler[T, PT] {
	return &WorkItemHandler[T, PT]{
		service:  service,
		resource: resource,
		newInput: newInput,
		filters:  filters,
	}
}

// WithPrepare registers a hook run after the body is applied and before the
// item is saved.
func (h *WorkItemHandler[T, PT]) WithPrepare(prepare func(ctx context.Context, principal *services.Principal, item *T) error) *WorkItemHandler[T, PT] {
	h.prepare = prepare
	return h
}

// List lists the visible items, one page at a time
func (h *WorkItemHandler[T, PT]) List(c *gin.Context) {
	page := utils.GetPaginationParams(c)
	items, total, err := h.service.List(c.Request.Context(), middleware.GetPrincipal(c), h.filterScope(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToListResponse(items, page, total))
}

// Get returns one item
func (h *WorkItemHandler[T, PT]) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Create creates an item owned by the caller
func (h *WorkItemHandler[T, PT]) Create(c *gin.Context) {
	input := h.newInput()
	if err := c.ShouldBindJSON(input); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	principal := middleware.GetPrincipal(c)
	item := new(T)
	if err := input.apply(item, principal, true); err != nil {
		respondError(c, err)
		return
	}
	if err := h.runPrepare(c, principal, item); err != nil {
		respondError(c, err)
		return
	}
	if err := h.service.Create(c.Request.Context(), principal, item); err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{NewValue: item})
	c.JSON(http.StatusCreated, item)
}

// Update applies a partial update
func (h *WorkItemHandler[T, PT]) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	input := h.newInput()
	if err := c.ShouldBindJSON(input); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	principal := middleware.GetPrincipal(c)
	item, err := h.service.Get(c.Request.Context(), principal, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !middleware.CheckOwnership(c, PT(item).GetOwnerID()) {
		middleware.DenyOwnership(c, h.permission("update"))
		return
	}

	before := *item
	if err := input.apply(item, principal, false); err != nil {
		respondError(c, err)
		return
	}
	if err := h.runPrepare(c, principal, item); err != nil {
		respondError(c, err)
		return
	}
	if err := h.service.Update(c.Request.Context(), principal, &before, item); err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{OldValue: &before, NewValue: item})
	c.JSON(http.StatusOK, item)
}

// Delete deletes an item
func (h *WorkItemHandler[T, PT]) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	principal := middleware.GetPrincipal(c)
	item, err := h.service.Get(c.Request.Context(), principal, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !middleware.CheckOwnership(c, PT(item).GetOwnerID()) {
		middleware.DenyOwnership(c, h.permission("delete"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), principal, id); err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordAudit(c, middleware.AuditEvent{OldValue: item})
	c.JSON(http.StatusOK, gin.H{"message": "Deleted successfully"})
}

func (h *WorkItemHandler[T, PT]) permission(action string) rbac.Permission {
	return rbac.Permission(h.resource + ":" + action)
}

func (h *WorkItemHandler[T, PT]) runPrepare(c *gin.Context, principal *services.Principal, item *T) error {
	if h.prepare == nil {
		return nil
	}
	return h.prepare(c.Request.Context(), principal, item)
}

func (h *WorkItemHandler[T, PT]) filterScope(c *gin.Context) database.Scope {
	conditions := make(map[string]string)
	for param, column := range h.filters {
		if value := strings.TrimSpace(c.Query(param)); value != "" {
			if param == "status" {
				value = strings.ToUpper(value)
			}
			conditions[column] = value
		}
	}
	if len(conditions) == 0 {
		return nil
	}
	return func(db *gorm.DB) *gorm.DB {
		for column, value := range conditions {
			db = db.Where(column+" = ?", value)
		}
		return db
	}
}

// requireReference checks that id names an item visible to principal.
func requireReference[T any, PT services.WorkItem[T]](ctx context.Context, service *services.WorkItemService[T, PT], principal *services.Principal, id *uint64, field string) (*T, error) {
	if id == nil {
		return nil, nil
	}
	item, err := service.Get(ctx, principal, *id)
	if err != nil {
		if errors.Is(err, services.ErrWorkItemNotFound) {
			return nil, validationError("Invalid " + field)
		}
		return nil, err
	}
	return item, nil
}

// StoryTaskHandler serves task generation for stories.
type StoryTaskHandler struct {
	service *services.StoryTaskService
}

func NewStoryTaskHandler(service *services.StoryTaskService) *StoryTaskHandler {
	return &StoryTaskHandler{service: service}
}

// GenerateTasks creates tasks for a story from AI proposals
func (h *StoryTaskHandler) GenerateTasks(c *gin.Context) {
	storyID, ok := parseID(c, "id")
	if !ok {
		return
	}

	story, tasks, err := h.service.GenerateTasks(c.Request.Context(), middleware.GetPrincipal(c), storyID)
	if err != nil {
		respondError(c, err)
		return
	}

	for i := range tasks {
		middleware.RecordAudit(c, middleware.AuditEvent{
			EntityID:   formatID(tasks[i].ID),
			EntityName: tasks[i].Code,
			NewValue:   &tasks[i],
		})
	}
	c.JSON(http.StatusCreated, dto.GeneratedTasksResponse{
		Story: *story,
		Tasks: tasks,
		Count: len(tasks),
	})
}
