package coupon

import (
	"time"
)

// Coupon is a flat discount applied at booking time. Either PercentOff or
// AmountOffCents is set, not both.
type Coupon struct {
	ID             uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Code           string  `gorm:"type:varchar(64);not null;unique" json:"code"`
	PercentOff     int     `gorm:"not null;default:0" json:"percent_off"`
	AmountOffCents int64   `gorm:"not null;default:0" json:"amount_off_cents"`
	IsActive       bool    `gorm:"default:true" json:"is_active"`
	ExpiresAt      *time.Time `gorm:"index" json:"expires_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DiscountFor returns the discount in cents for the given price.
func (c *Coupon) DiscountFor(priceCents int64) int64 {
	var discount int64
	if c.PercentOff > 0 {
		discount = priceCents * int64(c.PercentOff) / 100
	} else {
		discount = c.AmountOffCents
	}
	if discount > priceCents {
		discount = priceCents
	}
	return discount
}

// IsRedeemable reports whether the coupon can still be applied.
func (c *Coupon) IsRedeemable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}
