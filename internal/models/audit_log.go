package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions derived from the HTTP verb.
const (
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
	AuditActionRead   = "READ"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// AuditLog is append-only; rows are removed only by the retention sweep.
type AuditLog struct {
	ID             uint64         `gorm:"primarykey" json:"id"`
	OrganizationID uint64         `gorm:"not null;index" json:"organization_id"`
	Action         string         `gorm:"type:varchar(20);not null" json:"action"`
	EntityType     string         `gorm:"type:varchar(50);not null;index" json:"entity_type"`
	EntityID       string         `gorm:"type:varchar(64);index" json:"entity_id"`
	EntityName     string         `gorm:"type:varchar(255)" json:"entity_name"`
	OldValue       datatypes.JSON `json:"old_value,omitempty"`
	NewValue       datatypes.JSON `json:"new_value,omitempty"`
	UserID         *uint64        `gorm:"index" json:"user_id"`
	UserEmail      string         `gorm:"type:varchar(255)" json:"user_email"`
	UserName       string         `gorm:"type:varchar(255)" json:"user_name"`
	Category       string         `gorm:"type:varchar(30)" json:"category"`
	Severity       string         `gorm:"type:varchar(10)" json:"severity"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

// AuditAlertConfig is a per-organization rule evaluated against new audit logs.
// "*" in TriggerActions or TriggerEntities matches anything.
type AuditAlertConfig struct {
	ID              uint64                      `gorm:"primarykey" json:"id"`
	OrganizationID  uint64                      `gorm:"not null;index" json:"organization_id"`
	Name            string                      `gorm:"type:varchar(255);not null" json:"name"`
	TriggerActions  datatypes.JSONSlice[string] `json:"trigger_actions"`
	TriggerEntities datatypes.JSONSlice[string] `json:"trigger_entities"`
	NotifyUserIDs   datatypes.JSONSlice[uint64] `json:"notify_user_ids"`
	NotifyRoles     datatypes.JSONSlice[string] `json:"notify_roles"`
	NotifyInApp     bool                        `gorm:"not null" json:"notify_in_app"`
	NotifyEmail     bool                        `gorm:"not null" json:"notify_email"`
	NotifyWebhook   bool                        `gorm:"not null" json:"notify_webhook"`
	WebhookURL      string                      `gorm:"type:varchar(500)" json:"webhook_url"`
	WebhookSecret   string                      `gorm:"type:varchar(255)" json:"-"`
	CooldownMinutes int                         `gorm:"not null" json:"cooldown_minutes"`
	IsActive        bool                        `gorm:"not null" json:"is_active"`
	CreatedByID     *uint64                     `json:"created_by_id"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// Notification is an in-app notification row.
type Notification struct {
	ID             uint64         `gorm:"primarykey" json:"id"`
	OrganizationID uint64         `gorm:"not null;index" json:"organization_id"`
	UserID         uint64         `gorm:"not null;index" json:"user_id"`
	Type           string         `gorm:"type:varchar(50);not null" json:"type"`
	Title          string         `gorm:"type:varchar(255);not null" json:"title"`
	Message        string         `gorm:"type:text" json:"message"`
	EntityType     string         `gorm:"type:varchar(50)" json:"entity_type"`
	EntityID       string         `gorm:"type:varchar(64)" json:"entity_id"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
	IsRead         bool           `gorm:"not null" json:"is_read"`
	CreatedAt      time.Time      `json:"created_at"`
}
