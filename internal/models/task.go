package models

import "time"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// Task belongs to a Story; OwnerID is the assignee.
type Task struct {
	ID uint64 `gorm:"primarykey" json:"id"`
	Scoped
	StoryID     *uint64    `gorm:"index" json:"story_id"`
	Code        string     `gorm:"type:varchar(32);not null" json:"code"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      TaskStatus `gorm:"type:varchar(20);not null" json:"status"`
	DueDate     *time.Time `json:"due_date"`
	CreatorID   uint64     `gorm:"not null" json:"creator_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}
