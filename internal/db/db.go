package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"collaborative-workspace/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var AppDb *gorm.DB

func DSN(cfg config.Config) string {
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v sslmode=disable",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
	)
}

// ConnectDb opens the postgres connection into AppDb. Unlike a fatal exit,
// the error is returned so the relay can run without persistence.
func ConnectDb() error {
	level := logger.Info
	if config.AppConfig.IsProduction() {
		level = logger.Error
	}
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second, // Slow SQL threshold
			LogLevel:      level,
			Colorful:      !config.AppConfig.IsProduction(),
		},
	)

	db, err := gorm.Open(postgres.Open(DSN(config.AppConfig)), &gorm.Config{Logger: newLogger})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	AppDb = db
	return nil
}

func CloseDb() error {
	if AppDb == nil {
		return nil
	}
	sqlDB, err := AppDb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
