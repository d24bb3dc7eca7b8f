package database

import (
	"leasehub/internal/models"
	"leasehub/pkg/logger"

	"gorm.io/gorm"
)

// singleDefaultIndexSQL 每个物业最多一个默认模板；MySQL 不支持部分索引，由 SetDefault 事务保证
const singleDefaultIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_lease_template_single_default
ON lease_template_properties (property_id) WHERE is_default`

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	if db.Dialector.Name() != DriverMySQL {
		if err := db.Exec(singleDefaultIndexSQL).Error; err != nil {
			appLogger.Errorf("Create default template index failed: %v", err)
			return err
		}
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}
