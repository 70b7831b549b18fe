package models

import "time"

type RockStatus string

const (
	RockStatusOnTrack  RockStatus = "ON_TRACK"
	RockStatusAtRisk   RockStatus = "AT_RISK"
	RockStatusOffTrack RockStatus = "OFF_TRACK"
	RockStatusDone     RockStatus = "DONE"
)

// Rock is a quarterly priority, optionally tied to an Objective.
type Rock struct {
	ID uint64 `gorm:"primarykey" json:"id"`
	Scoped
	ObjectiveID *uint64    `gorm:"index" json:"objective_id"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Status      RockStatus `gorm:"type:varchar(20);not null" json:"status"`
	Progress    int        `json:"progress"`
	Quarter     int        `json:"quarter"`
	Year        int        `json:"year"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s RockStatus) IsValid() bool {
	switch s {
	case RockStatusOnTrack, RockStatusAtRisk, RockStatusOffTrack, RockStatusDone:
		return true
	}
	return false
}
