package waitlist

import (
	"time"

	scheduleModel "classflow/models/schedule"
	userModel "classflow/models/user"
)

// Entry is a customer's place in line for a full Schedule. Ordering is FIFO
// by CreatedAt within a schedule. Transitions are driven solely by the
// waitlist coordinator.
type Entry struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	ScheduleID uint                   `gorm:"not null;index" json:"schedule_id"`
	Schedule   scheduleModel.Schedule `gorm:"foreignKey:ScheduleID" json:"schedule"`

	UserID *uint           `gorm:"index" json:"user_id,omitempty"`
	User   *userModel.User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Email  string          `gorm:"type:varchar(255);not null" json:"email"`

	Status EntryStatus `gorm:"type:varchar(20);not null;default:waiting;index" json:"status"`

	// Set while the entry is in the offered state.
	OfferToken     *string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	OfferExpiresAt *time.Time `gorm:"index" json:"offer_expires_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets the table name for the Entry model
func (Entry) TableName() string {
	return "waitlist_entries"
}

// OfferExpired reports whether a pending offer has run out.
func (e *Entry) OfferExpired(now time.Time) bool {
	return e.Status == StatusOffered && e.OfferExpiresAt != nil && now.After(*e.OfferExpiresAt)
}

// EntryStatus is the waitlist entry state machine:
// waiting -> offered -> accepted | declined | expired.
type EntryStatus string

const (
	StatusWaiting  EntryStatus = "waiting"
	StatusOffered  EntryStatus = "offered"
	StatusAccepted EntryStatus = "accepted"
	StatusDeclined EntryStatus = "declined"
	StatusExpired  EntryStatus = "expired"
)

func (es EntryStatus) String() string {
	return string(es)
}

func (es EntryStatus) IsValid() bool {
	switch es {
	case StatusWaiting, StatusOffered, StatusAccepted, StatusDeclined, StatusExpired:
		return true
	default:
		return false
	}
}

// InQueue returns true while the entry blocks the customer from joining the
// same schedule's waitlist again.
func (es EntryStatus) InQueue() bool {
	return es == StatusWaiting || es == StatusOffered
}
