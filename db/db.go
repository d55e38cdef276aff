package db

import (
	"fmt"
	"log"

	"keynow/config"
	"keynow/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func ConnectDB(cfg config.Config) *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
	)

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	if err := Migrate(conn); err != nil {
		log.Fatal("Failed to migrate models: ", err)
	}
	log.Println("Database connected")
	return conn
}

func Migrate(conn *gorm.DB) error {
	// KeyHolding's primary key carries the one-holder-per-key invariant,
	// so no extra partial indexes are needed here.
	return conn.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.KeyHolding{},
		&models.KeyLog{},
	)
}
