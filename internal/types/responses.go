package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteResponse represents a price lookup
type QuoteResponse struct {
	Symbol  string          `json:"symbol"`
	Price   decimal.Decimal `json:"price"`
	Display string          `json:"display"`
}

// TradeResponse represents an executed buy or sell
type TradeResponse struct {
	Reference  string          `json:"reference"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Shares     int64           `json:"shares"`
	Price      decimal.Decimal `json:"price"`
	Total      decimal.Decimal `json:"total"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// BalanceResponse represents a cash balance or a net worth figure
type BalanceResponse struct {
	Amount  decimal.Decimal `json:"amount"`
	Display string          `json:"display"`
}

// UserResponse represents a registered user without credentials
type UserResponse struct {
	ID        uint            `json:"id"`
	Username  string          `json:"username"`
	Cash      decimal.Decimal `json:"cash"`
	CreatedAt time.Time       `json:"created_at"`
}

// TokenResponse represents an issued access token
type TokenResponse struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}
