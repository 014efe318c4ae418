package booking

// BookingStatus is the reservation state machine:
// pending -> confirmed | canceled, confirmed -> completed | canceled.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCanceled  BookingStatus = "canceled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Helper methods for BookingStatus
func (bs BookingStatus) String() string {
	return string(bs)
}

func (bs BookingStatus) IsValid() bool {
	switch bs {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCanceled, BookingStatusCompleted:
		return true
	default:
		return false
	}
}

// HoldsSeat returns true while the booking occupies a seat on its schedule
func (bs BookingStatus) HoldsSeat() bool {
	return bs == BookingStatusPending || bs == BookingStatusConfirmed
}

// CanBeCanceled returns true if the booking status can transition to canceled
func (bs BookingStatus) CanBeCanceled() bool {
	return bs == BookingStatusPending || bs == BookingStatusConfirmed
}

// SeatHoldingStatuses returns the statuses counted against capacity
func SeatHoldingStatuses() []BookingStatus {
	return []BookingStatus{BookingStatusPending, BookingStatusConfirmed}
}

// AttendanceStatus tracks whether the customer actually showed up.
type AttendanceStatus string

const (
	AttendanceNone      AttendanceStatus = "none"
	AttendanceCheckedIn AttendanceStatus = "checked_in"
	AttendanceNoShow    AttendanceStatus = "no_show"
)

func (as AttendanceStatus) IsValid() bool {
	switch as {
	case AttendanceNone, AttendanceCheckedIn, AttendanceNoShow:
		return true
	default:
		return false
	}
}

// PaymentMode records how the seat was paid for.
type PaymentMode string

const (
	PaymentModeCredit PaymentMode = "credit"
	PaymentModePaid   PaymentMode = "paid"
	PaymentModeComp   PaymentMode = "comp"
	PaymentModeFree   PaymentMode = "free"
)

func (pm PaymentMode) IsValid() bool {
	switch pm {
	case PaymentModeCredit, PaymentModePaid, PaymentModeComp, PaymentModeFree:
		return true
	default:
		return false
	}
}
