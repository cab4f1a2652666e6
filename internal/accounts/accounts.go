// Package accounts holds the owners of resumes and portfolios. Only the parts the
// analytics pipeline needs live here: lookup, API keys for the dashboard API, and
// the deletion flag that drives event cleanup.
package accounts

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Account struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	Name                string     `json:"name"`
	APIKeyHash          string     `gorm:"column:api_key_hash" json:"-"`
	DeletionRequestedAt *time.Time `gorm:"index" json:"deletion_requested_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// AccountNotFoundError is returned when an owner does not exist or is being deleted.
type AccountNotFoundError struct {
	ID uint
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account not found: %d", e.ID)
}

// NewAccountNotFoundError creates a new AccountNotFoundError
func NewAccountNotFoundError(id uint) *AccountNotFoundError {
	return &AccountNotFoundError{ID: id}
}

// ErrAccountExists is returned when attempting to create an account whose email is taken.
var ErrAccountExists = errors.New("account already exists")

const apiKeyPrefix = "fk_"

// FindByID retrieves an account by ID, including accounts pending deletion.
func FindByID(db *gorm.DB, id uint) (*Account, error) {
	var account Account
	if err := db.Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewAccountNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to load account %d: %w", id, err)
	}
	return &account, nil
}

// FindByEmail retrieves an account by email.
func FindByEmail(db *gorm.DB, email string) (*Account, error) {
	var account Account
	if err := db.Where("email = ?", strings.ToLower(email)).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetActiveAccount returns the account unless it is missing or scheduled for deletion.
func GetActiveAccount(db *gorm.DB, id uint) (*Account, error) {
	account, err := FindByID(db, id)
	if err != nil {
		return nil, err
	}
	if account.DeletionRequestedAt != nil {
		return nil, NewAccountNotFoundError(id)
	}
	return account, nil
}

// CreateAccount stores a new account and returns it with its plaintext API key.
// The key is only available here; the database keeps a bcrypt hash.
func CreateAccount(db *gorm.DB, logger *slog.Logger, email, name string) (*Account, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, "", errors.New("email cannot be empty")
	}

	if _, err := FindByEmail(db, email); err == nil {
		return nil, "", ErrAccountExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	key, hash, err := generateAPIKey()
	if err != nil {
		return nil, "", err
	}

	account := &Account{Email: email, Name: name, APIKeyHash: hash}
	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(account).Error
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create account: %w", err)
	}

	logger.Info("Account created", slog.Uint64("account_id", uint64(account.ID)))
	return account, key, nil
}

// RotateAPIKey replaces the account's API key and returns the new plaintext value.
func RotateAPIKey(db *gorm.DB, logger *slog.Logger, id uint) (string, error) {
	account, err := GetActiveAccount(db, id)
	if err != nil {
		return "", err
	}

	key, hash, err := generateAPIKey()
	if err != nil {
		return "", err
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(account).Update("api_key_hash", hash).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to rotate api key: %w", err)
	}
	return key, nil
}

// VerifyAPIKey reports whether key matches the stored hash.
func (a *Account) VerifyAPIKey(key string) bool {
	if a.APIKeyHash == "" || !strings.HasPrefix(key, apiKeyPrefix) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.APIKeyHash), []byte(key)) == nil
}

// MarkForDeletion flags the account. The cleanup job removes its events and
// resources afterwards, then the account row itself.
func MarkForDeletion(db *gorm.DB, logger *slog.Logger, id uint) error {
	account, err := GetActiveAccount(db, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(account).Update("deletion_requested_at", now).Error
	})
	if err != nil {
		return fmt.Errorf("failed to mark account %d for deletion: %w", id, err)
	}

	logger.Info("Account scheduled for deletion", slog.Uint64("account_id", uint64(id)))
	return nil
}

// ListPendingDeletion returns accounts waiting for cleanup, oldest request first.
func ListPendingDeletion(db *gorm.DB, limit int) ([]Account, error) {
	var pending []Account
	err := db.Where("deletion_requested_at IS NOT NULL").
		Order("deletion_requested_at ASC").
		Limit(limit).
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts pending deletion: %w", err)
	}
	return pending, nil
}

// Purge removes the account row. Callers must have removed dependent data first.
func Purge(db *gorm.DB, logger *slog.Logger, id uint) error {
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Delete(&Account{}, id).Error
	})
}

func generateAPIKey() (string, string, error) {
	key := apiKeyPrefix + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return key, string(hash), nil
}
