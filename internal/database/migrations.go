package database

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/rocks-tracker-api/internal/constants"
	"github.com/yukikurage/rocks-tracker-api/internal/models"
	"gorm.io/gorm"
)

type indexSpec struct {
	table   string
	name    string
	columns string
	unique  bool
}

// Composite indexes that cannot be declared on the embedded Scoped fields.
var indexes = []indexSpec{
	{"stories", "idx_stories_org_code", "organization_id, code", true},
	{"tasks", "idx_tasks_org_code", "organization_id, code", true},
	{"stories", "idx_stories_org_team", "organization_id, team_id", false},
	{"tasks", "idx_tasks_org_team", "organization_id, team_id", false},
	{"rocks", "idx_rocks_org_team", "organization_id, team_id", false},
	{"audit_logs", "idx_audit_logs_org_created", "organization_id, created_at", false},
	{"feature_flags", "idx_feature_flags_key_org", "`key`, organization_id", false},
}

// AddIndexes adds the composite indexes, skipping existing ones.
func AddIndexes(db *gorm.DB, log logrus.FieldLogger) error {
	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.table, idx.name) {
			continue
		}

		kind := "INDEX"
		if idx.unique {
			kind = "UNIQUE INDEX"
		}
		columns := idx.columns
		if db.Dialector.Name() == "postgres" {
			columns = strings.ReplaceAll(columns, "`", "")
		}
		sql := fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, idx.name, idx.table, columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
		log.WithFields(logrus.Fields{"index": idx.name, "table": idx.table}).Debug("Created index")
	}
	return nil
}

// EnsureDefaultTeams creates the default team for organizations that lack one.
func EnsureDefaultTeams(db *gorm.DB) error {
	var orgIDs []uint64
	if err := db.Model(&models.Organization{}).Pluck("id", &orgIDs).Error; err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}
	for _, orgID := range orgIDs {
		team := models.Team{OrganizationID: orgID, Name: constants.DefaultTeamName}
		if err := db.Where(&models.Team{OrganizationID: orgID, Name: constants.DefaultTeamName}).
			Attrs(models.Team{IsActive: true}).
			FirstOrCreate(&team).Error; err != nil {
			return fmt.Errorf("failed to ensure default team for organization %d: %w", orgID, err)
		}
	}
	return nil
}

// MigrateDatabase runs the migrations that AutoMigrate cannot express.
func MigrateDatabase(db *gorm.DB, log logrus.FieldLogger) error {
	if err := AddIndexes(db, log); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}
	if err := EnsureDefaultTeams(db); err != nil {
		return err
	}
	return nil
}
