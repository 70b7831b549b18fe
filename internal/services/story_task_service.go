package services

import (
	"context"
	"errors"
	"strings"

	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
)

var (
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
	ErrAINoValidTasks         = errors.New("no valid tasks could be created from AI output")
)

// TaskGenerator proposes tasks for a story.
type TaskGenerator interface {
	GenerateTasksForStory(ctx context.Context, title, description string) ([]GeneratedTask, error)
}

// StoryTaskService creates tasks for a story from generated proposals.
type StoryTaskService struct {
	stories   *WorkItemService[models.Story, *models.Story]
	tasks     *WorkItemService[models.Task, *models.Task]
	generator TaskGenerator
}

// NewStoryTaskService creates a new StoryTaskService. generator may be nil,
// in which case generation reports ErrAIServiceNotConfigured.
func NewStoryTaskService(
	stories *WorkItemService[models.Story, *models.Story],
	tasks *WorkItemService[models.Task, *models.Task],
	generator TaskGenerator,
) *StoryTaskService {
	return &StoryTaskService{
		stories:   stories,
		tasks:     tasks,
		generator: generator,
	}
}

// GenerateTasks asks the generator for tasks and creates them under the
// story, in the story's team, owned by the principal.
func (s *StoryTaskService) GenerateTasks(ctx context.Context, principal *Principal, storyID uint64) (*models.Story, []models.Task, error) {
	if s.generator == nil {
		return nil, nil, ErrAIServiceNotConfigured
	}

	story, err := s.stories.Get(ctx, principal, storyID)
	if err != nil {
		return nil, nil, err
	}

	generated, err := s.generator.GenerateTasksForStory(ctx, story.Title, story.Description)
	if err != nil {
		return nil, nil, err
	}
	if len(generated) == 0 {
		return nil, nil, ErrAINoTasksGenerated
	}
	if len(generated) > constants.MaxAIGeneratedTasks {
		generated = generated[:constants.MaxAIGeneratedTasks]
	}

	created := make([]models.Task, 0, len(generated))
	for _, g := range generated {
		title := strings.TrimSpace(g.Title)
		if title == "" {
			continue
		}
		ownerID := principal.UserID
		storyRef := story.ID
		task := &models.Task{
			Scoped: models.Scoped{
				OrganizationID: principal.OrganizationID,
				TeamID:         story.TeamID,
				OwnerID:        &ownerID,
			},
			StoryID:     &storyRef,
			Title:       title,
			Description: g.Description,
			Status:      models.TaskStatusTodo,
			DueDate:     g.DueDate,
			CreatorID:   principal.UserID,
		}
		if err := s.tasks.Create(ctx, principal, task); err != nil {
			return nil, nil, err
		}
		created = append(created, *task)
	}

	if len(created) == 0 {
		return nil, nil, ErrAINoValidTasks
	}
	return story, created, nil
}
