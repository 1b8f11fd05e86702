package repository

import (
	"context"
	"fmt"
	"time"

	"prediction-settlement/internal/apperrors"
	"prediction-settlement/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to an in-flight transaction. Used by
// services that commit a multi-record batch atomically.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// DB exposes the underlying handle for batch transactions.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// GetAccountByUserID retrieves an account by its owning user
func (r *Repository) GetAccountByUserID(ctx context.Context, userID uint) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountByID retrieves an account by ID
func (r *Repository) GetAccountByID(ctx context.Context, accountID uint) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetOrCreateAccount returns the account for userID, creating an empty
// active one if none exists yet.
func (r *Repository) GetOrCreateAccount(ctx context.Context, userID uint) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error

	if err == gorm.ErrRecordNotFound {
		account = models.Account{
			UserID:   userID,
			IsActive: true,
		}
		if err := r.db.WithContext(ctx).Create(&account).Error; err != nil {
			return nil, err
		}
		return &account, nil
	}

	if err != nil {
		return nil, err
	}

	return &account, nil
}

// ListActiveAccounts retrieves all active accounts
func (r *Repository) ListActiveAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// ApplyTransaction applies a ledger entry to its account. The balance
// update and the transaction row commit together; a delta that would
// take a balance negative is rejected; a concurrent writer on the same
// account surfaces as a ConcurrencyConflictError for the caller to
// retry. This is the only code path that mutates balances.
func (r *Repository) ApplyTransaction(ctx context.Context, entry *models.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		if err := tx.Where("id = ?", entry.AccountID).First(&account).Error; err != nil {
			return fmt.Errorf("failed to load account %d: %w", entry.AccountID, err)
		}

		if !account.IsActive {
			return &apperrors.ValidationError{Field: "account", Reason: "account is inactive"}
		}

		newPointA := account.PointA.Add(entry.PointADelta)
		newPointB := account.PointB.Add(entry.PointBDelta)

		if newPointA.IsNegative() {
			return &apperrors.InsufficientBalanceError{
				AccountID: account.ID,
				Requested: entry.PointADelta.Neg(),
				Available: account.PointA,
			}
		}
		if newPointB.IsNegative() {
			return &apperrors.InsufficientBalanceError{
				AccountID: account.ID,
				Requested: entry.PointBDelta.Neg(),
				Available: account.PointB,
			}
		}

		// Compare-and-swap on the balances read above. Zero rows means a
		// concurrent writer got there first.
		res := tx.Model(&models.Account{}).
			Where("id = ? AND point_a = ? AND point_b = ?", account.ID, account.PointA, account.PointB).
			Updates(map[string]interface{}{
				"point_a":    newPointA,
				"point_b":    newPointB,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &apperrors.ConcurrencyConflictError{
				Resource: "account",
				ID:       fmt.Sprintf("%d", account.ID),
			}
		}

		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}

		return tx.Create(entry).Error
	})
}

// ApplyTransactionWithRetry retries ApplyTransaction a bounded number of
// times on account contention before surfacing the conflict.
func (r *Repository) ApplyTransactionWithRetry(ctx context.Context, entry *models.Transaction, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = r.ApplyTransaction(ctx, entry)
		if err == nil || !apperrors.IsConcurrencyConflict(err) {
			return err
		}
	}
	return err
}

// GetAccountTransactions retrieves the ledger log for an account
func (r *Repository) GetAccountTransactions(ctx context.Context, accountID uint, limit, offset int) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
