package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joherrer/stocks/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Database is the ledger store. It owns the users and transactions tables
// and applies no business rules of its own.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetUser retrieves a user by ID
func (d *Database) GetUser(ctx context.Context, userID uint) (*User, error) {
	var user User
	if err := d.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, types.ErrNotFound)
		}
		return nil, storageError("get user", err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by exact, trimmed username
func (d *Database) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := d.db.WithContext(ctx).
		Where("username = ?", strings.TrimSpace(username)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %q: %w", username, types.ErrNotFound)
		}
		return nil, storageError("get user by username", err)
	}
	return &user, nil
}

// CreateUser inserts a new user with the given starting cash
func (d *Database) CreateUser(ctx context.Context, username, hash string, cash decimal.Decimal) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username cannot be empty", types.ErrInvalidInput)
	}

	if !types.CashInRange(types.RoundCash(cash)) {
		return nil, fmt.Errorf("%w: starting cash %s out of range", types.ErrInvalidInput, cash)
	}

	_, err := d.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, types.ErrDuplicateUsername
	case !errors.Is(err, types.ErrNotFound):
		return nil, err
	}

	user := &User{
		Username: username,
		Hash:     hash,
		Cash:     types.RoundCash(cash),
	}
	if err := d.db.WithContext(ctx).Create(user).Error; err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, types.ErrDuplicateUsername
		}
		return nil, storageError("create user", err)
	}
	return user, nil
}

// UpdateCash overwrites the cash balance of a user, rounded to cents.
// Negative balances and balances above types.MaxCash are refused.
func (d *Database) UpdateCash(ctx context.Context, userID uint, balance decimal.Decimal) error {
	if !types.CashInRange(types.RoundCash(balance)) {
		return fmt.Errorf("%w: balance %s out of range", types.ErrInvalidInput, balance)
	}

	result := d.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Update("cash", types.RoundCash(balance))
	if result.Error != nil {
		return storageError("update cash", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, types.ErrNotFound)
	}
	return nil
}

// AppendTransaction records one trade. Only malformed input is rejected.
func (d *Database) AppendTransaction(ctx context.Context, userID uint, symbol string, shares int64, price decimal.Decimal, at time.Time) (*Transaction, error) {
	if symbol == "" || shares == 0 || !price.IsPositive() {
		return nil, fmt.Errorf("%w: malformed transaction %q %d @ %s", types.ErrInvalidInput, symbol, shares, price)
	}

	txn := &Transaction{
		Reference: "TXN_" + uuid.New().String(),
		UserID:    userID,
		Symbol:    symbol,
		Shares:    shares,
		Price:     price,
		CreatedAt: at,
	}
	if err := d.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, storageError("append transaction", err)
	}
	return txn, nil
}

// ListHoldings sums shares per ticker. With positiveOnly, tickers whose
// net count is zero or below are left out.
func (d *Database) ListHoldings(ctx context.Context, userID uint, positiveOnly bool) ([]Holding, error) {
	query := d.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("symbol, CAST(SUM(shares) AS BIGINT) AS shares").
		Where("user_id = ?", userID).
		Group("symbol")
	if positiveOnly {
		query = query.Having("SUM(shares) > 0")
	}

	holdings := make([]Holding, 0)
	if err := query.Order("symbol").Scan(&holdings).Error; err != nil {
		return nil, storageError("list holdings", err)
	}
	return holdings, nil
}

// HoldingOf returns the net shares of a single ticker, zero when never traded
func (d *Database) HoldingOf(ctx context.Context, userID uint, symbol string) (int64, error) {
	var shares int64
	query := `
		SELECT CAST(COALESCE(SUM(shares), 0) AS BIGINT)
		FROM transactions
		WHERE user_id = ? AND symbol = ?`

	if err := d.db.WithContext(ctx).Raw(query, userID, symbol).Scan(&shares).Error; err != nil {
		return 0, storageError("holding of", err)
	}
	return shares, nil
}

// ListTransactions returns the trades of a user, oldest first
func (d *Database) ListTransactions(ctx context.Context, userID uint) ([]Transaction, error) {
	txns := make([]Transaction, 0)
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&txns).Error
	if err != nil {
		return nil, storageError("list transactions", err)
	}
	return txns, nil
}

// WithUserLock runs fn inside a database transaction holding the user's
// row lock. Every write fn makes through tx commits or rolls back together.
// A transient conflict is retried once.
func (d *Database) WithUserLock(ctx context.Context, userID uint, fn func(tx *Database, user *User) error) error {
	err := d.lockedTx(ctx, userID, fn)
	if types.IsTransient(err) {
		log.Warn().Err(err).Uint("user_id", userID).Msg("retrying ledger transaction after conflict")
		err = d.lockedTx(ctx, userID, fn)
	}
	return err
}

func (d *Database) lockedTx(ctx context.Context, userID uint, fn func(tx *Database, user *User) error) error {
	tx := d.db.WithContext(ctx).Begin()
	if err := tx.Error; err != nil {
		return storageError("begin transaction", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var user User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %d: %w", userID, types.ErrNotFound)
		}
		return storageError("lock user", err)
	}

	if err := fn(&Database{db: tx}, &user); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return storageError("commit transaction", err)
	}
	return nil
}
