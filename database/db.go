// Package database manages the connection to the panel database.
package database

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/akellavk/V2RaySub/config"
	"github.com/akellavk/V2RaySub/database/model"
	"github.com/akellavk/V2RaySub/xray"
)

var db *gorm.DB

// initModels creates the panel schema on a database that does not have one
// yet. An existing panel database is left alone: the panel owns its schema
// and this server only reads from it.
func initModels() error {
	if db.Migrator().HasTable(&model.Inbound{}) {
		return nil
	}
	models := []any{
		&model.Inbound{},
		&xray.ClientTraffic{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return err
		}
	}
	return nil
}

// InitDB opens the panel database. dbType selects the driver: "sqlite"
// treats dsn as a file path, "postgres" hands dsn through to the driver.
func InitDB(dbType string, dsn string) error {
	var dialector gorm.Dialector
	switch dbType {
	case "sqlite", "":
		dir := path.Dir(dsn)
		if err := os.MkdirAll(dir, fs.ModePerm); err != nil {
			return err
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database type: %s", dbType)
	}

	var gormLogger logger.Interface
	if config.IsDebug() {
		gormLogger = logger.Default
	} else {
		gormLogger = logger.Discard
	}

	var err error
	db, err = gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return err
	}
	return initModels()
}

// GetDB returns the shared database handle.
func GetDB() *gorm.DB {
	return db
}

// CloseDB closes the underlying connection pool.
func CloseDB() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsNotFound reports whether err is gorm's record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
