package location

import (
	"time"
)

// Location is a physical studio site. Timezone is the IANA zone id used for
// all local-time math on schedules held at this location.
type Location struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	Address  string `gorm:"type:text" json:"address"`
	Timezone string `gorm:"type:varchar(64);not null" json:"timezone"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}
