package setup

import (
	"github.com/modelibr/modelibr/internal/config"
	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitMySQL 初始化 MySQL 数据库连接
func InitMySQL(cfg *config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		logger.Error("Failed to connect to MySQL database", zap.Error(err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get generic database object from GORM", zap.Error(err))
		return nil, err
	}

	// 设置连接池参数
	sqlDB.SetMaxIdleConns(10)  // 最大空闲连接数
	sqlDB.SetMaxOpenConns(100) // 最大打开连接数

	logger.Info("成功连接MySQL数据库!")

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.File{},
		&models.RecycledFile{},
		&models.Model{},
		&models.ModelVersion{},
		&models.ModelVersionFile{},
		&models.ModelFile{},
		&models.TextureSet{},
		&models.Texture{},
		&models.ModelVersionTextureSet{},
		&models.Thumbnail{},
		&models.ThumbnailJob{},
		&models.ThumbnailJobEvent{},
		&models.Pack{},
		&models.PackModel{},
		&models.PackTextureSet{},
		&models.Project{},
		&models.ProjectModel{},
		&models.ProjectTextureSet{},
	)
	if err != nil {
		logger.Error("Failed to auto migrate database tables", zap.Error(err))
		return err
	}
	logger.Info("Database tables migrated successfully!")
	return nil
}
