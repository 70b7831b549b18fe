package models

import "time"

type StoryStatus string

const (
	StoryStatusBacklog    StoryStatus = "BACKLOG"
	StoryStatusInProgress StoryStatus = "IN_PROGRESS"
	StoryStatusDone       StoryStatus = "DONE"
)

// Story is a unit of sprint work under a Rock. Code is unique per organization.
type Story struct {
	ID uint64 `gorm:"primarykey" json:"id"`
	Scoped
	RockID      *uint64     `gorm:"index" json:"rock_id"`
	SprintID    *uint64     `gorm:"index" json:"sprint_id"`
	Code        string      `gorm:"type:varchar(32);not null" json:"code"`
	Title       string      `gorm:"type:varchar(255);not null" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	Status      StoryStatus `gorm:"type:varchar(20);not null" json:"status"`
	Points      int         `json:"points"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (s StoryStatus) IsValid() bool {
	switch s {
	case StoryStatusBacklog, StoryStatusInProgress, StoryStatusDone:
		return true
	}
	return false
}
