package credit

import (
	"errors"
	"fmt"
	"time"

	creditModel "classflow/models/credit"

	"gorm.io/gorm"
)

// ErrNoCredits is returned when the customer has no usable, unexpired
// credit to consume.
var ErrNoCredits = errors.New("no credits available")

// Store owns the credit balance rows. Consume and restore are conditional
// single-row updates so concurrent reservations can never spend the same
// credit twice.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// ConsumeOne atomically takes one credit from the customer's
// soonest-expiring usable balance. Runs inside the caller's transaction.
func (s *Store) ConsumeOne(tx *gorm.DB, userID uint) error {
	res := tx.Exec(`
		UPDATE credit_balances
		SET remaining = remaining - 1, updated_at = ?
		WHERE id = (
			SELECT id FROM credit_balances
			WHERE user_id = ? AND remaining > 0
			  AND (expires_at IS NULL OR expires_at > ?)
			ORDER BY expires_at ASC NULLS LAST
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)`, time.Now(), userID, time.Now())
	if res.Error != nil {
		return fmt.Errorf("failed to consume credit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoCredits
	}
	return nil
}

// RestoreOne returns one credit to the customer, preferring the balance the
// last consumption came from. A customer with no balance rows gets a fresh
// non-expiring one.
func (s *Store) RestoreOne(tx *gorm.DB, userID uint) error {
	res := tx.Exec(`
		UPDATE credit_balances
		SET remaining = remaining + 1, updated_at = ?
		WHERE id = (
			SELECT id FROM credit_balances
			WHERE user_id = ?
			ORDER BY updated_at DESC
			LIMIT 1
			FOR UPDATE
		)`, time.Now(), userID)
	if res.Error != nil {
		return fmt.Errorf("failed to restore credit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		balance := creditModel.CreditBalance{UserID: userID, Remaining: 1}
		if err := tx.Create(&balance).Error; err != nil {
			return fmt.Errorf("failed to create restored balance: %w", err)
		}
	}
	return nil
}

// HasAvailable reports whether the customer holds at least one usable credit.
func (s *Store) HasAvailable(tx *gorm.DB, userID uint) (bool, error) {
	var count int64
	err := tx.Model(&creditModel.CreditBalance{}).
		Where("user_id = ? AND remaining > 0 AND (expires_at IS NULL OR expires_at > ?)", userID, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Balance sums the customer's usable credits.
func (s *Store) Balance(userID uint) (int, error) {
	var total *int
	err := s.DB.Model(&creditModel.CreditBalance{}).
		Select("SUM(remaining)").
		Where("user_id = ? AND remaining > 0 AND (expires_at IS NULL OR expires_at > ?)", userID, time.Now()).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
