// Package database opens the metadata store selected in configuration and
// keeps its schema current.
package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"qwery/internal/config"
	"qwery/internal/model"
	mysqlClient "qwery/internal/platform/mysql"
	sqliteClient "qwery/internal/platform/sqlite"
)

func Open(ctx context.Context, cfg config.DatabaseConfig, mysqlDSN string, log zerolog.Logger) (*gorm.DB, error) {
	switch cfg.Driver {
	case "mysql":
		return mysqlClient.New(ctx, mysqlDSN, log)
	case "sqlite", "":
		return sqliteClient.New(ctx, cfg.SQLitePath, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
