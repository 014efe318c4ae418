package booking

import (
	"time"

	scheduleModel "classflow/models/schedule"
	userModel "classflow/models/user"
)

// Booking represents a customer's reservation against exactly one Schedule.
// A booking belongs to one schedule at a time; reschedule moves it
// atomically. The pending+confirmed count per schedule never exceeds the
// schedule's capacity.
type Booking struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// Foreign key for schedule relationship
	ScheduleID uint                   `gorm:"not null;index" json:"schedule_id"`
	Schedule   scheduleModel.Schedule `gorm:"foreignKey:ScheduleID" json:"schedule"`

	// Registered account or guest email; exactly one of the two is set.
	UserID     *uint           `gorm:"index" json:"user_id,omitempty"`
	User       *userModel.User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	GuestEmail *string         `gorm:"type:varchar(255);index" json:"guest_email,omitempty"`

	Status     BookingStatus    `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	Attendance AttendanceStatus `gorm:"type:varchar(20);not null;default:none" json:"attendance"`
	PaymentMode PaymentMode     `gorm:"type:varchar(20);not null" json:"payment_mode"`

	AmountCents   int64   `gorm:"not null;default:0" json:"amount_cents"`
	DiscountCents int64   `gorm:"not null;default:0" json:"discount_cents"`
	Currency      string  `gorm:"type:varchar(3);not null;default:USD" json:"currency"`
	CouponCode    *string `gorm:"type:varchar(64)" json:"coupon_code,omitempty"`

	// Reference into the payment gateway for paid bookings.
	PaymentSessionID *string `gorm:"type:varchar(255);index" json:"payment_session_id,omitempty"`

	CreatedBy string     `gorm:"type:varchar(255);not null" json:"created_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedBy string     `gorm:"type:varchar(255)" json:"updated_by,omitempty"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// CustomerEmail returns the email the booking is reachable at, preferring
// the registered account.
func (b *Booking) CustomerEmail() string {
	if b.User != nil && b.User.Email != nil {
		return *b.User.Email
	}
	if b.GuestEmail != nil {
		return *b.GuestEmail
	}
	return ""
}

// CountsAgainstCapacity reports whether the booking holds a seat.
func (b *Booking) CountsAgainstCapacity() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}
