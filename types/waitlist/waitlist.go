package waitlist

// JoinRequest is the body of POST /api/waitlist/join.
type JoinRequest struct {
	ScheduleID uint   `json:"schedule_id" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
}

// AcceptResponse is returned by GET /api/waitlist/accept. CheckoutURL is set
// when the claimed seat still needs payment.
type AcceptResponse struct {
	OK          bool        `json:"ok"`
	Booking     interface{} `json:"booking,omitempty"`
	CheckoutURL string      `json:"checkout_url,omitempty"`
}
