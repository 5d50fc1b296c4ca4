// File: internal/platform/database/migrate.go
package database

import (
	"fmt"

	"waste_portal_backend/internal/notification"
	"waste_portal_backend/internal/registration"
	"waste_portal_backend/internal/report"
	"waste_portal_backend/internal/schedule"
	"waste_portal_backend/internal/user"

	"gorm.io/gorm"
)

// Models lists every table owned by the service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&user.Profile{},
		&registration.PendingRegistration{},
		&report.Report{},
		&report.StatusEvent{},
		&schedule.PickupSchedule{},
		&notification.Notification{},
		&notification.Read{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return nil
}
