package models

import "time"

type Objective struct {
	ID uint64 `gorm:"primarykey" json:"id"`
	Scoped
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Quarter     int       `json:"quarter"`
	Year        int       `json:"year"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
