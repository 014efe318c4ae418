package booking_event

import (
	bookingModel "classflow/models/booking"

	"gorm.io/gorm"
)

// Record appends a status event row for a booking transition. Runs inside
// the same transaction as the transition itself so the audit trail never
// disagrees with the booking row.
func Record(tx *gorm.DB, b *bookingModel.Booking, eventType, note, createdBy string) error {
	ev := bookingModel.BookingStatusEvent{
		BookingID: b.ID,
		Status:    b.Status,
		EventType: eventType,
		Note:      note,
		CreatedBy: createdBy,
	}
	return tx.Create(&ev).Error
}
