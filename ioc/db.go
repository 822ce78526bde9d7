package ioc

import (
	"fmt"

	"github.com/KNICEX/crypto-alert/internal/repo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if err = repo.InitTables(db); err != nil {
		return nil, fmt.Errorf("migrate tables: %w", err)
	}
	return db, nil
}
