package db

import (
	"fmt"

	"github.com/resolv-sh/resolv-gateway/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the gateway tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.Account{},
		&models.ChatTurn{},
		&models.Transaction{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
