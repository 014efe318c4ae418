package credit

import (
	"time"

	userModel "classflow/models/user"
)

// CreditBalance is a customer's prepaid session credits from one purchased
// package. A customer may hold several rows; consumption takes from the
// soonest-expiring row first.
type CreditBalance struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	UserID uint           `gorm:"not null;index" json:"user_id"`
	User   userModel.User `gorm:"foreignKey:UserID" json:"user"`

	PackageName string     `gorm:"type:varchar(255)" json:"package_name,omitempty"`
	Remaining   int        `gorm:"not null;default:0" json:"remaining"`
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets the table name for the CreditBalance model
func (CreditBalance) TableName() string {
	return "credit_balances"
}

// IsUsable reports whether the row still has spendable credits.
func (cb *CreditBalance) IsUsable(now time.Time) bool {
	if cb.Remaining <= 0 {
		return false
	}
	return cb.ExpiresAt == nil || cb.ExpiresAt.After(now)
}
