// Package db opens the application database. SQLite is the default for the
// single-machine desktop install; a MySQL DSN switches shared-office
// deployments onto a network database with the same schema.
package db

import (
	"fmt"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/jurisdesk/jurisdesk/internal/activity"
	"github.com/jurisdesk/jurisdesk/internal/chat"
	"github.com/jurisdesk/jurisdesk/internal/settings"
)

func Connect(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = gormsqlite.Open(dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", driver)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&chat.Session{},
		&chat.Message{},
		&activity.Entry{},
		&activity.UsageEntry{},
		&settings.Setting{},
	)
}
