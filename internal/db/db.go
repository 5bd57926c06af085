package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stagecrawl/internal/config"
	"stagecrawl/internal/models"
)

// Open connects to Postgres and applies the pool settings from config.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsnWithTimezone(cfg.DSN, cfg.Timezone)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return gdb, nil
}

// dsnWithTimezone folds the configured session timezone into the DSN,
// in whichever of the two postgres DSN styles the operator wrote it.
// An explicit TimeZone in the DSN wins.
func dsnWithTimezone(dsn, tz string) string {
	if tz == "" || strings.Contains(strings.ToLower(dsn), "timezone=") {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "TimeZone=" + tz
	}
	if dsn != "" {
		dsn += " "
	}
	return dsn + "TimeZone=" + tz
}

// AutoMigrate creates or updates every table the pipeline writes to.
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Event{},
		&models.ChangeSuggestion{},
		&models.RawSourceItem{},
		&models.CrawlSource{},
		&models.CrawlRun{},
		&models.SeenURL{},
	)
}

// Close releases the underlying connection pool.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
