package resource

import (
	"time"
)

// Resource is a piece of equipment or a room that can only serve one
// Schedule at a time (reformer, treatment room, video link slot).
type Resource struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string `gorm:"type:varchar(255);not null" json:"name"`
	LocationID *uint  `gorm:"index" json:"location_id,omitempty"`
	IsActive   bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}
