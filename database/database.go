package database

import (
	"fmt"
	"log"

	"github.com/sharath018/family-events-backend/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB is the shared connection handle assigned by Connect
var DB *gorm.DB

// Connect opens the Postgres connection used by all repositories
func Connect(cfg *config.Config) *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		panic(fmt.Sprintf("❌ Failed to connect to database: %v", err))
	}

	log.Println("✅ Database connected")
	DB = db
	return db
}
