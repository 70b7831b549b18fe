package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/observability"
	"github.com/yukikurage/rocks-tracker-api/internal/repository"
	"gorm.io/datatypes"
)

// Audit categories.
const (
	CategoryAccess        = "access"
	CategoryConfiguration = "configuration"
	CategoryWork          = "work"
)

// AlertNotifier receives every persisted audit log for alert evaluation. It
// must not block.
type AlertNotifier interface {
	Notify(log models.AuditLog)
}

// AuditEntry is one state change to record.
type AuditEntry struct {
	OrganizationID uint64
	Action         string
	EntityType     string
	EntityID       string
	// EntityName overrides the name derived from NewValue.
	EntityName string
	OldValue   interface{}
	NewValue   interface{}
	Actor      *models.User
	Metadata   map[string]interface{}
}

// AuditService persists audit logs and hands them to alert evaluation.
type AuditService struct {
	repo     repository.AuditRepository
	notifier AlertNotifier
	log      logrus.FieldLogger
	metrics  *observability.Metrics
}

// NewAuditService creates a new AuditService. notifier may be nil.
func NewAuditService(repo repository.AuditRepository, notifier AlertNotifier, log logrus.FieldLogger, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		repo:     repo,
		notifier: notifier,
		log:      log,
		metrics:  metrics,
	}
}

// Record persists entry and schedules alert evaluation for it.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) (*models.AuditLog, error) {
	log, err := buildAuditLog(entry)
	if err != nil {
		s.metrics.AuditFailures.Inc()
		return nil, err
	}

	if err := s.repo.Create(ctx, log); err != nil {
		s.metrics.AuditFailures.Inc()
		return nil, fmt.Errorf("failed to create audit log: %w", err)
	}
	s.metrics.AuditLogsRecorded.WithLabelValues(log.Action, log.EntityType).Inc()

	if s.notifier != nil {
		s.notifier.Notify(*log)
	}
	return log, nil
}

// List lists audit logs newest first.
func (s *AuditService) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, int64, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}

// PurgeOlderThan deletes audit logs older than retention.
func (s *AuditService) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit logs: %w", err)
	}
	s.metrics.AuditRetentionDeleted.Add(float64(deleted))
	return deleted, nil
}

func buildAuditLog(entry AuditEntry) (*models.AuditLog, error) {
	log := &models.AuditLog{
		OrganizationID: entry.OrganizationID,
		Action:         entry.Action,
		EntityType:     entry.EntityType,
		EntityID:       entry.EntityID,
		EntityName:     entry.EntityName,
	}
	log.Category, log.Severity = Classify(entry.EntityType, entry.Action)

	if log.EntityName == "" {
		log.EntityName = EntityName(entry.NewValue)
	}
	if log.EntityName == "" && entry.Action == models.AuditActionDelete {
		log.EntityName = EntityName(entry.OldValue)
	}

	if entry.Action != models.AuditActionDelete {
		old, err := marshalSnapshot(entry.OldValue)
		if err != nil {
			return nil, fmt.Errorf("failed to encode old value: %w", err)
		}
		log.OldValue = old
	}
	newValue, err := marshalSnapshot(entry.NewValue)
	if err != nil {
		return nil, fmt.Errorf("failed to encode new value: %w", err)
	}
	log.NewValue = newValue

	metadata, err := marshalSnapshot(entry.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	log.Metadata = metadata

	if entry.Actor != nil {
		id := entry.Actor.ID
		log.UserID = &id
		log.UserEmail = entry.Actor.Email
		log.UserName = entry.Actor.Name
	}
	return log, nil
}

// ActionForMethod maps an HTTP verb to an audit action.
func ActionForMethod(method string) string {
	switch method {
	case http.MethodPost:
		return models.AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		return models.AuditActionUpdate
	case http.MethodDelete:
		return models.AuditActionDelete
	default:
		return models.AuditActionRead
	}
}

// Classify derives the category and severity of an audit event.
func Classify(entityType, action string) (category, severity string) {
	switch entityType {
	case models.EntityOrganization, models.EntityMembership, models.EntityTeam:
		category = CategoryAccess
	case models.EntityFeatureFlag, models.EntityAuditAlertConfig:
		category = CategoryConfiguration
	default:
		category = CategoryWork
	}

	switch {
	case action == models.AuditActionDelete && category != CategoryWork:
		severity = models.SeverityHigh
	case action == models.AuditActionDelete, action == models.AuditActionUpdate && category != CategoryWork:
		severity = models.SeverityMedium
	default:
		severity = models.SeverityLow
	}
	return category, severity
}

// EntityName reads the name, title or code field of a value, in that order.
func EntityName(value interface{}) string {
	fields := snapshotFields(value)
	for _, key := range []string{"name", "title", "code"} {
		if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// EntityID returns the "id" field of value's JSON form, or "".
func EntityID(value interface{}) string {
	switch id := snapshotFields(value)["id"].(type) {
	case float64:
		return strconv.FormatUint(uint64(id), 10)
	case string:
		return id
	}
	return ""
}

func snapshotFields(value interface{}) map[string]interface{} {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}

func marshalSnapshot(value interface{}) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}
	if m, ok := value.(map[string]interface{}); ok && len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
