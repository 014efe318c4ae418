package class

import (
	"time"
)

// Class is the template a bookable Schedule is derived from. Capacity and
// price on a Schedule fall back to these defaults when not overridden.
type Class struct {
	ID              uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string  `gorm:"type:varchar(255);not null" json:"name"`
	Description     string  `gorm:"type:text" json:"description"`
	DurationMinutes int     `gorm:"not null" json:"duration_minutes"`
	DefaultCapacity int     `gorm:"not null;default:1" json:"default_capacity"`
	DefaultPrice    int64   `gorm:"column:default_price_cents;not null;default:0" json:"default_price_cents"`
	Currency        string  `gorm:"type:varchar(3);not null;default:USD" json:"currency"`
	InstructorID    *uint   `gorm:"index" json:"instructor_id,omitempty"`
	RequiresIntake  bool    `gorm:"default:false" json:"requires_intake"`
	IsActive        bool    `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}
