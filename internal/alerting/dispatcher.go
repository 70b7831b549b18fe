package alerting

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"github.com/yukikurage/rocks-tracker-api/internal/observability"
	"github.com/yukikurage/rocks-tracker-api/internal/rbac"
	"golang.org/x/sync/errgroup"
)

// Channels
const (
	ChannelInApp   = "in_app"
	ChannelWebhook = "webhook"
	ChannelEmail   = "email"
)

const (
	NotificationTypeAuditAlert = "audit_alert"
	WebhookEventAuditAlert     = "audit.alert"
)

// MemberDirectory resolves notification targets among active members.
type MemberDirectory interface {
	ActiveUserIDsWithRoles(ctx context.Context, organizationID uint64, roles []rbac.Role) ([]uint64, error)
	ActiveUserIDsIn(ctx context.Context, organizationID uint64, userIDs []uint64) ([]uint64, error)
}

// NotificationWriter stores in-app notifications.
type NotificationWriter interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
}

// WebhookAlert identifies the rule that fired.
type WebhookAlert struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// WebhookPayload is the JSON body POSTed to alert webhooks.
type WebhookPayload struct {
	EventID   string          `json:"eventId"`
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Alert     WebhookAlert    `json:"alert"`
	AuditLog  models.AuditLog `json:"auditLog"`
}

// Dispatcher sends a matched alert to each enabled channel.
type Dispatcher struct {
	members       MemberDirectory
	notifications NotificationWriter
	client        *http.Client
	log           logrus.FieldLogger
	metrics       *observability.Metrics
}

// NewDispatcher creates a new Dispatcher. client is used for webhooks.
func NewDispatcher(members MemberDirectory, notifications NotificationWriter, client *http.Client, log logrus.FieldLogger, metrics *observability.Metrics) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultWebhookTimeout}
	}
	return &Dispatcher{
		members:       members,
		notifications: notifications,
		client:        client,
		log:           log,
		metrics:       metrics,
	}
}

// Dispatch runs every enabled channel concurrently. A failing channel does
// not stop the others; the first error is returned after all finished.
func (d *Dispatcher) Dispatch(ctx context.Context, config models.AuditAlertConfig, log models.AuditLog) error {
	var g errgroup.Group

	if config.NotifyInApp {
		g.Go(func() error {
			return d.track(ChannelInApp, config, d.sendInApp(ctx, config, log))
		})
	}
	if config.NotifyWebhook && config.WebhookURL != "" {
		g.Go(func() error {
			return d.track(ChannelWebhook, config, d.sendWebhook(ctx, config, log))
		})
	}
	if config.NotifyEmail {
		g.Go(func() error {
			d.log.WithField("alert_config_id", config.ID).Debug("Email alert channel is not implemented; skipping")
			d.metrics.AlertDispatches.WithLabelValues(ChannelEmail, "skipped").Inc()
			return nil
		})
	}

	return g.Wait()
}

func (d *Dispatcher) track(channel string, config models.AuditAlertConfig, err error) error {
	if err != nil {
		d.metrics.AlertDispatches.WithLabelValues(channel, "error").Inc()
		d.log.WithError(err).WithFields(logrus.Fields{
			"alert_config_id": config.ID,
			"channel":         channel,
		}).Warn("Alert dispatch failed")
		return fmt.Errorf("%s: %w", channel, err)
	}
	d.metrics.AlertDispatches.WithLabelValues(channel, "ok").Inc()
	return nil
}

// Targets returns the explicit users and the members holding a notify role,
// limited to active members of the organization and excluding the actor.
func (d *Dispatcher) Targets(ctx context.Context, config models.AuditAlertConfig, log models.AuditLog) ([]uint64, error) {
	explicit, err := d.members.ActiveUserIDsIn(ctx, config.OrganizationID, config.NotifyUserIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve notify users: %w", err)
	}

	roles := make([]rbac.Role, 0, len(config.NotifyRoles))
	for _, r := range config.NotifyRoles {
		if role, ok := rbac.ParseRole(r); ok {
			roles = append(roles, role)
		}
	}
	byRole, err := d.members.ActiveUserIDsWithRoles(ctx, config.OrganizationID, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve notify roles: %w", err)
	}

	seen := make(map[uint64]bool)
	var targets []uint64
	for _, id := range append(explicit, byRole...) {
		if seen[id] || (log.UserID != nil && *log.UserID == id) {
			continue
		}
		seen[id] = true
		targets = append(targets, id)
	}
	return targets, nil
}

func (d *Dispatcher) sendInApp(ctx context.Context, config models.AuditAlertConfig, log models.AuditLog) error {
	targets, err := d.Targets(ctx, config, log)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	metadata, err := json.Marshal(map[string]interface{}{
		"alertConfigId": config.ID,
		"auditLogId":    log.ID,
		"action":        log.Action,
		"severity":      log.Severity,
	})
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	notifications := make([]models.Notification, 0, len(targets))
	for _, userID := range targets {
		notifications = append(notifications, models.Notification{
			OrganizationID: config.OrganizationID,
			UserID:         userID,
			Type:           NotificationTypeAuditAlert,
			Title:          config.Name,
			Message:        alertMessage(log),
			EntityType:     log.EntityType,
			EntityID:       log.EntityID,
			Metadata:       metadata,
		})
	}
	return d.notifications.CreateBatch(ctx, notifications)
}

func (d *Dispatcher) sendWebhook(ctx context.Context, config models.AuditAlertConfig, log models.AuditLog) error {
	event := WebhookPayload{
		EventID:   uuid.NewString(),
		Event:     WebhookEventAuditAlert,
		Timestamp: time.Now().UTC(),
		Alert:     WebhookAlert{ID: config.ID, Name: config.Name},
		AuditLog:  log,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.HeaderEventID, event.EventID)
	if config.WebhookSecret != "" {
		req.Header.Set(constants.HeaderSignature, Sign(payload, config.WebhookSecret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the HMAC-SHA256 signature header value of payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies a webhook signature
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

func alertMessage(log models.AuditLog) string {
	name := log.EntityName
	if name == "" {
		name = log.EntityID
	}
	actor := log.UserName
	if actor == "" {
		actor = log.UserEmail
	}
	if actor == "" {
		return fmt.Sprintf("%s %s %s", log.Action, log.EntityType, name)
	}
	return fmt.Sprintf("%s: %s %s %s", actor, log.Action, log.EntityType, name)
}
