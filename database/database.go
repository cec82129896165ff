package database

import (
	"fmt"
	"time"

	"github.com/sharath018/community-events-backend/config"
	"github.com/sharath018/community-events-backend/utils"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the Postgres pool and stores it in DB. Duplicate-key errors
// are translated to gorm.ErrDuplicatedKey so repositories can match them.
func Connect(cfg *config.Config) *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode, cfg.Timezone,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		utils.Log.Fatal("failed to connect to database", zap.String("host", cfg.DBHost), zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		utils.Log.Fatal("failed to get sql.DB", zap.Error(err))
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	utils.Log.Info("database connected", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))
	DB = db
	return db
}
