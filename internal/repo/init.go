package repo

import (
	"fmt"

	"github.com/KNICEX/crypto-alert/internal/entity"
	"gorm.io/gorm"
)

// InitTables 建表, 已存在的表只补充缺失的列和索引
func InitTables(db *gorm.DB) error {
	models := []any{
		&entity.Alert{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	return nil
}
