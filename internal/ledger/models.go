package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered account with its cash balance
type User struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Username  string          `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Hash      string          `gorm:"size:255;not null" json:"-"`
	Cash      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"cash"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction is one executed trade. Shares is positive for a buy and
// negative for a sell; rows are never updated or deleted.
type Transaction struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Reference string          `gorm:"size:40;uniqueIndex;not null" json:"reference"`
	UserID    uint            `gorm:"index;not null" json:"user_id"`
	Symbol    string          `gorm:"size:16;index;not null" json:"symbol"`
	Shares    int64           `gorm:"not null" json:"shares"`
	Price     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"price"`
	CreatedAt time.Time       `gorm:"index;not null" json:"created_at"`
}

// Holding is the net share count of one ticker, summed from transactions
type Holding struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
}
