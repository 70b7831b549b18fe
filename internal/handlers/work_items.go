package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/services"
)

type (
	ObjectiveService = services.WorkItemService[models.Objective, *models.Objective]
	RockService      = services.WorkItemService[models.Rock, *models.Rock]
	SprintService    = services.WorkItemService[models.Sprint, *models.Sprint]
	StoryService     = services.WorkItemService[models.Story, *models.Story]
	TaskService      = services.WorkItemService[models.Task, *models.Task]
)

// scopedInput holds the partition fields shared by every work item. A zero
// id clears the field.
type scopedInput struct {
	TeamID  *uint64 `json:"team_id"`
	OwnerID *uint64 `json:"owner_id"`
}

func (in scopedInput) applyTo(scoped *models.Scoped, principal *services.Principal, creating bool) {
	if creating {
		owner := principal.UserID
		scoped.OrganizationID = principal.OrganizationID
		scoped.OwnerID = &owner
	}
	if in.TeamID != nil {
		scoped.TeamID = optionalID(*in.TeamID)
	}
	if in.OwnerID != nil {
		scoped.OwnerID = optionalID(*in.OwnerID)
	}
}

func optionalID(id uint64) *uint64 {
	if id == 0 {
		return nil
	}
	return &id
}

func requiredText(value *string, creating bool, field string, dst *string) error {
	if value == nil {
		if creating {
			return validationError(field + " is required")
		}
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return validationError(field + " is required")
	}
	if len(trimmed) > 255 {
		return validationError(field + " must be at most 255 characters")
	}
	*dst = trimmed
	return nil
}

func applyPeriod(quarter, year *int, dstQuarter, dstYear *int) error {
	if quarter != nil {
		if *quarter < 1 || *quarter > 4 {
			return validationError("quarter must be between 1 and 4")
		}
		*dstQuarter = *quarter
	}
	if year != nil {
		if *year < 2000 || *year > 2100 {
			return validationError("Invalid year")
		}
		*dstYear = *year
	}
	return nil
}

type objectiveInput struct {
	scopedInput
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Quarter     *int    `json:"quarter"`
	Year        *int    `json:"year"`
}

func (in *objectiveInput) apply(item *models.Objective, principal *services.Principal, creating bool) error {
	if err := requiredText(in.Title, creating, "title", &item.Title); err != nil {
		return err
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if err := applyPeriod(in.Quarter, in.Year, &item.Quarter, &item.Year); err != nil {
		return err
	}
	in.applyTo(&item.Scoped, principal, creating)
	return nil
}

type rockInput struct {
	scopedInput
	ObjectiveID *uint64 `json:"objective_id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Progress    *int    `json:"progress"`
	Quarter     *int    `json:"quarter"`
	Year        *int    `json:"year"`
}

func (in *rockInput) apply(item *models.Rock, principal *services.Principal, creating bool) error {
	if err := requiredText(in.Name, creating, "name", &item.Name); err != nil {
		return err
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.ObjectiveID != nil {
		item.ObjectiveID = optionalID(*in.ObjectiveID)
	}
	if in.Status != nil {
		status := models.RockStatus(strings.ToUpper(*in.Status))
		if !status.IsValid() {
			return validationError("Invalid status")
		}
		item.Status = status
	} else if creating {
		item.Status = models.RockStatusOnTrack
	}
	if in.Progress != nil {
		if *in.Progress < 0 || *in.Progress > 100 {
			return validationError("progress must be between 0 and 100")
		}
		item.Progress = *in.Progress
	}
	if err := applyPeriod(in.Quarter, in.Year, &item.Quarter, &item.Year); err != nil {
		return err
	}
	in.applyTo(&item.Scoped, principal, creating)
	return nil
}

type sprintInput struct {
	scopedInput
	Name      *string    `json:"name"`
	Goal      *string    `json:"goal"`
	Status    *string    `json:"status"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

func (in *sprintInput) apply(item *models.Sprint, principal *services.Principal, creating bool) error {
	if err := requiredText(in.Name, creating, "name", &item.Name); err != nil {
		return err
	}
	if in.Goal != nil {
		item.Goal = *in.Goal
	}
	if in.Status != nil {
		status := models.SprintStatus(strings.ToUpper(*in.Status))
		if !status.IsValid() {
			return validationError("Invalid status")
		}
		item.Status = status
	} else if creating {
		item.Status = models.SprintStatusPlanned
	}
	if in.StartDate != nil {
		item.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		item.EndDate = in.EndDate
	}
	if item.StartDate != nil && item.EndDate != nil && item.EndDate.Before(*item.StartDate) {
		return validationError("end_date must not be before start_date")
	}
	in.applyTo(&item.Scoped, principal, creating)
	return nil
}

type storyInput struct {
	scopedInput
	RockID      *uint64 `json:"rock_id"`
	SprintID    *uint64 `json:"sprint_id"`
	Code        *string `json:"code"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Points      *int    `json:"points"`
}

func (in *storyInput) apply(item *models.Story, principal *services.Principal, creating bool) error {
	if err := requiredText(in.Title, creating, "title", &item.Title); err != nil {
		return err
	}
	if in.Code != nil && !creating {
		if err := requiredText(in.Code, false, "code", &item.Code); err != nil {
			return err
		}
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.RockID != nil {
		item.RockID = optionalID(*in.RockID)
	}
	if in.SprintID != nil {
		item.SprintID = optionalID(*in.SprintID)
	}
	if in.Status != nil {
		status := models.StoryStatus(strings.ToUpper(*in.Status))
		if !status.IsValid() {
			return validationError("Invalid status")
		}
		item.Status = status
	} else if creating {
		item.Status = models.StoryStatusBacklog
	}
	if in.Points != nil {
		if *in.Points < 0 {
			return validationError("points cannot be negative")
		}
		item.Points = *in.Points
	}
	in.applyTo(&item.Scoped, principal, creating)
	return nil
}

type taskInput struct {
	scopedInput
	StoryID     *uint64    `json:"story_id"`
	Code        *string    `json:"code"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

func (in *taskInput) apply(item *models.Task, principal *services.Principal, creating bool) error {
	if err := requiredText(in.Title, creating, "title", &item.Title); err != nil {
		return err
	}
	if in.Code != nil && !creating {
		if err := requiredText(in.Code, false, "code", &item.Code); err != nil {
			return err
		}
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.StoryID != nil {
		item.StoryID = optionalID(*in.StoryID)
	}
	if in.Status != nil {
		status := models.TaskStatus(strings.ToUpper(*in.Status))
		if !status.IsValid() {
			return validationError("Invalid status")
		}
		item.Status = status
	} else if creating {
		item.Status = models.TaskStatusTodo
	}
	if in.DueDate != nil {
		item.DueDate = in.DueDate
	}
	if creating {
		item.CreatorID = principal.UserID
	}
	in.applyTo(&item.Scoped, principal, creating)
	return nil
}

// NewObjectiveHandler creates the objectives handler.
func NewObjectiveHandler(objectives *ObjectiveService) *WorkItemHandler[models.Objective, *models.Objective] {
	return NewWorkItemHandler(objectives, "objectives",
		func() workItemInput[models.Objective] { return &objectiveInput{} },
		map[string]string{"team_id": "team_id", "owner_id": "owner_id", "quarter": "quarter", "year": "year"},
	)
}

// NewRockHandler creates the rocks handler. A rock may only reference a
// visible objective.
func NewRockHandler(rocks *RockService, objectives *ObjectiveService) *WorkItemHandler[models.Rock, *models.Rock] {
	return NewWorkItemHandler(rocks, "rocks",
		func() workItemInput[models.Rock] { return &rockInput{} },
		map[string]string{"team_id": "team_id", "owner_id": "owner_id", "objective_id": "objective_id", "status": "status", "quarter": "quarter", "year": "year"},
	).WithPrepare(func(ctx context.Context, principal *services.Principal, rock *models.Rock) error {
		_, err := requireReference(ctx, objectives, principal, rock.ObjectiveID, "objective_id")
		return err
	})
}

// NewSprintHandler creates the sprints handler.
func NewSprintHandler(sprints *SprintService) *WorkItemHandler[models.Sprint, *models.Sprint] {
	return NewWorkItemHandler(sprints, "sprints",
		func() workItemInput[models.Sprint] { return &sprintInput{} },
		map[string]string{"team_id": "team_id", "status": "status"},
	)
}

// NewStoryHandler creates the stories handler. Stories reference a visible
// rock and sprint.
func NewStoryHandler(stories *StoryService, rocks *RockService, sprints *SprintService) *WorkItemHandler[models.Story, *models.Story] {
	return NewWorkItemHandler(stories, "stories",
		func() workItemInput[models.Story] { return &storyInput{} },
		map[string]string{"team_id": "team_id", "owner_id": "owner_id", "rock_id": "rock_id", "sprint_id": "sprint_id", "status": "status"},
	).WithPrepare(func(ctx context.Context, principal *services.Principal, story *models.Story) error {
		if _, err := requireReference(ctx, rocks, principal, story.RockID, "rock_id"); err != nil {
			return err
		}
		_, err := requireReference(ctx, sprints, principal, story.SprintID, "sprint_id")
		return err
	})
}

// NewTaskHandler creates the tasks handler. A task without a team inherits
// its story's team.
func NewTaskHandler(tasks *TaskService, stories *StoryService) *WorkItemHandler[models.Task, *models.Task] {
	return NewWorkItemHandler(tasks, "tasks",
		func() workItemInput[models.Task] { return &taskInput{} },
		map[string]string{"team_id": "team_id", "owner_id": "owner_id", "story_id": "story_id", "status": "status"},
	).WithPrepare(func(ctx context.Context, principal *services.Principal, task *models.Task) error {
		story, err := requireReference(ctx, stories, principal, task.StoryID, "story_id")
		if err != nil {
			return err
		}
		if story != nil && task.TeamID == nil {
			task.TeamID = story.TeamID
		}
		return nil
	})
}
