package migrations

import (
	"gorm.io/gorm"
)

// AddLedgerIndexes adds the composite indexes behind holding sums and history
func AddLedgerIndexes(db *gorm.DB) error {
	indexes := []string{
		// Holding sums group a user's rows by symbol
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_symbol
		 ON transactions(user_id, symbol)`,

		// History reads a user's rows oldest first
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_created
		 ON transactions(user_id, created_at, id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
