package models

import "time"

type SprintStatus string

const (
	SprintStatusPlanned   SprintStatus = "PLANNED"
	SprintStatusActive    SprintStatus = "ACTIVE"
	SprintStatusCompleted SprintStatus = "COMPLETED"
)

type Sprint struct {
	ID uint64 `gorm:"primarykey" json:"id"`
	Scoped
	Name      string       `gorm:"type:varchar(255);not null" json:"name"`
	Goal      string       `gorm:"type:text" json:"goal"`
	Status    SprintStatus `gorm:"type:varchar(20);not null" json:"status"`
	StartDate *time.Time   `json:"start_date"`
	EndDate   *time.Time   `json:"end_date"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (s SprintStatus) IsValid() bool {
	switch s {
	case SprintStatusPlanned, SprintStatusActive, SprintStatusCompleted:
		return true
	}
	return false
}
