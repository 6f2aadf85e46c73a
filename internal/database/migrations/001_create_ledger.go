package migrations

import (
	"github.com/joherrer/stocks/internal/ledger"
	"gorm.io/gorm"
)

// CreateLedger creates the users and transactions tables
func CreateLedger(db *gorm.DB) error {
	if err := db.AutoMigrate(&ledger.User{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&ledger.Transaction{}); err != nil {
		return err
	}

	return nil
}
