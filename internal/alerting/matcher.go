package alerting

import "github.com/yukikurage/rocks-tracker-api/internal/models"

// Wildcard matches any action or entity type.
const Wildcard = "*"

// Matches reports whether config triggers on action and entityType.
// Trigger sets are stored normalized, so membership is exact. Cooldown is
// checked separately.
func Matches(config models.AuditAlertConfig, action, entityType string) bool {
	return matchesSet(config.TriggerActions, action) && matchesSet(config.TriggerEntities, entityType)
}

func matchesSet(set []string, value string) bool {
	for _, v := range set {
		if v == Wildcard || v == value {
			return true
		}
	}
	return false
}
