package booking

// BookRequest is the body of POST /api/bookings.
type BookRequest struct {
	ScheduleID uint   `json:"schedule_id" validate:"required"`
	GuestEmail string `json:"guest_email" validate:"omitempty,email"`
	UseCredits bool   `json:"use_credits"`
	CouponCode string `json:"coupon_code" validate:"omitempty,max=64"`
}

// BookResponse is returned on a successful reservation.
type BookResponse struct {
	BookingID      uint   `json:"booking_id"`
	Status         string `json:"status"`
	PaymentMode    string `json:"payment_mode"`
	AmountCents    int64  `json:"amount_cents"`
	DiscountCents  int64  `json:"discount_cents"`
	Currency       string `json:"currency"`
	IntakeRequired bool   `json:"intake_required"`
	CheckoutURL    string `json:"checkout_url,omitempty"`
}

// CancelResponse explains the applied policy outcome, not just "canceled".
type CancelResponse struct {
	Status      string `json:"status"`
	RefundCents int64  `json:"refund_cents,omitempty"`
	Credited    bool   `json:"credited"`
	FeeCents    int64  `json:"fee_cents,omitempty"`
	FeeLabel    string `json:"fee_label,omitempty"`
}

// RescheduleRequest is the body of POST /api/bookings/:id/reschedule.
type RescheduleRequest struct {
	TargetScheduleID uint `json:"target_schedule_id" validate:"required"`
}

// AdminCancelRequest is the body of POST /api/admin/bookings/:id/admin-cancel.
// Action auto applies the time-based policy; refund, credit and cancel force
// a specific monetary outcome regardless of timing.
type AdminCancelRequest struct {
	Action string `json:"action" validate:"required,oneof=auto refund credit cancel"`
	Note   string `json:"note" validate:"max=1024"`
	Notify bool   `json:"notify"`
}

// AttendanceRequest is the body of POST /api/admin/bookings/:id/attendance.
type AttendanceRequest struct {
	Attendance string `json:"attendance" validate:"required,oneof=checked_in no_show"`
}
