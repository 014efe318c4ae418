package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"classflow/httpServices/notify"
	"classflow/httpServices/payment"
	"classflow/logger"
	bookingModel "classflow/models/booking"
	classModel "classflow/models/class"
	couponModel "classflow/models/coupon"
	scheduleModel "classflow/models/schedule"
	"classflow/services/booking_event"
	creditService "classflow/services/credit"
	"classflow/services/policy"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSlotFull means the schedule's capacity is exhausted. The caller is
	// expected to offer the waitlist join path.
	ErrSlotFull = errors.New("slot full")
	// ErrClassMismatch blocks reschedules across different class offerings.
	ErrClassMismatch = errors.New("target schedule is a different class")
	// ErrNotFound covers unknown booking or schedule ids.
	ErrNotFound = errors.New("booking not found")
	// ErrValidation covers malformed or out-of-state requests.
	ErrValidation = errors.New("invalid booking request")
	// ErrNotCancelable means the booking already left the seat-holding states.
	ErrNotCancelable = errors.New("booking cannot be canceled")
)

// SeatFreedNotifier is how the ledger tells the waitlist coordinator a seat
// opened up. Set after construction to break the dependency cycle between
// the two services.
type SeatFreedNotifier interface {
	OnSeatFreed(scheduleID uint)
}

// Service owns the reservation state machine. All capacity-sensitive
// check-then-act sequences run inside one transaction holding a row lock on
// the schedule, so two concurrent reservations can never both take the last
// seat.
type Service struct {
	DB       *gorm.DB
	Credits  *creditService.Store
	Payments *payment.Client
	Notify   *notify.Client
	Policy   policy.Config

	seatFreed SeatFreedNotifier
}

func NewService(db *gorm.DB, credits *creditService.Store, payments *payment.Client, notifier *notify.Client, cfg policy.Config) *Service {
	return &Service{
		DB:       db,
		Credits:  credits,
		Payments: payments,
		Notify:   notifier,
		Policy:   cfg,
	}
}

// SetSeatFreedNotifier wires the waitlist coordinator in after both
// services exist.
func (s *Service) SetSeatFreedNotifier(n SeatFreedNotifier) {
	s.seatFreed = n
}

// ReserveRequest is one reservation attempt against a schedule.
type ReserveRequest struct {
	ScheduleID uint
	UserID     *uint
	GuestEmail string
	UseCredits bool
	CouponCode string
	CreatedBy  string
}

// Reserve takes a seat on the schedule. Credits are consumed atomically
// when requested and available; otherwise a positive price leaves the
// booking pending until the gateway confirms, and a zero price confirms
// immediately. The confirmation notification is best-effort and never rolls
// the booking back.
func (s *Service) Reserve(req ReserveRequest) (*bookingModel.Booking, error) {
	if req.UserID == nil && req.GuestEmail == "" {
		return nil, fmt.Errorf("%w: customer identity required", ErrValidation)
	}

	var b bookingModel.Booking
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var sched scheduleModel.Schedule
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sched, req.ScheduleID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: schedule %d not found", ErrValidation, req.ScheduleID)
			}
			return err
		}
		if !sched.Status.IsBookable() {
			return fmt.Errorf("%w: schedule is cancelled", ErrValidation)
		}

		count, err := s.seatHoldingCount(tx, sched.ID)
		if err != nil {
			return err
		}
		if count >= int64(sched.Capacity) {
			return ErrSlotFull
		}

		var cls classModel.Class
		if err := tx.First(&cls, sched.ClassID).Error; err != nil {
			return err
		}

		price := sched.PriceCents
		if price == 0 {
			price = cls.DefaultPrice
		}

		var discount int64
		var couponCode *string
		if req.CouponCode != "" {
			var cpn couponModel.Coupon
			if err := tx.Where("code = ?", req.CouponCode).First(&cpn).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return fmt.Errorf("%w: unknown coupon code", ErrValidation)
				}
				return err
			}
			if !cpn.IsRedeemable(time.Now()) {
				return fmt.Errorf("%w: coupon is no longer redeemable", ErrValidation)
			}
			discount = cpn.DiscountFor(price)
			price -= discount
			couponCode = &cpn.Code
		}

		b = bookingModel.Booking{
			ScheduleID:    sched.ID,
			UserID:        req.UserID,
			Status:        bookingModel.BookingStatusPending,
			Attendance:    bookingModel.AttendanceNone,
			AmountCents:   price,
			DiscountCents: discount,
			Currency:      sched.Currency,
			CouponCode:    couponCode,
			CreatedBy:     req.CreatedBy,
		}
		if req.GuestEmail != "" {
			b.GuestEmail = &req.GuestEmail
		}

		switch {
		case req.UseCredits && req.UserID != nil:
			err := s.Credits.ConsumeOne(tx, *req.UserID)
			if err == nil {
				b.PaymentMode = bookingModel.PaymentModeCredit
				b.AmountCents = 0
				b.Status = bookingModel.BookingStatusConfirmed
				break
			}
			if !errors.Is(err, creditService.ErrNoCredits) {
				return err
			}
			// No usable credit, fall through to the price branch.
			fallthrough
		default:
			if price > 0 {
				b.PaymentMode = bookingModel.PaymentModePaid
			} else {
				b.PaymentMode = bookingModel.PaymentModeFree
				b.Status = bookingModel.BookingStatusConfirmed
			}
		}

		if err := tx.Create(&b).Error; err != nil {
			return err
		}

		eventType := "created"
		if b.Status == bookingModel.BookingStatusConfirmed {
			eventType = "confirmed"
		}
		return booking_event.Record(tx, &b, eventType, "", req.CreatedBy)
	})
	if err != nil {
		return nil, err
	}

	if b.Status == bookingModel.BookingStatusConfirmed {
		s.notifyConfirmed(&b)
	}
	logger.Success(fmt.Sprintf("Booking %d created on schedule %d (%s/%s)",
		b.ID, b.ScheduleID, b.Status, b.PaymentMode))
	return &b, nil
}

// StartPayment opens a gateway charge session for a pending paid booking
// and returns the redirect URL. A gateway failure leaves the booking
// pending so a retry can resume it.
func (s *Service) StartPayment(bookingID uint) (string, error) {
	var b bookingModel.Booking
	if err := s.DB.Preload("Schedule.Class").First(&b, bookingID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", ErrNotFound
		}
		return "", err
	}
	if b.Status != bookingModel.BookingStatusPending || b.PaymentMode != bookingModel.PaymentModePaid {
		return "", fmt.Errorf("%w: booking is not awaiting payment", ErrValidation)
	}

	session, err := s.Payments.CreateChargeSession(payment.ChargeSessionRequest{
		AmountCents: b.AmountCents,
		Currency:    b.Currency,
		Description: b.Schedule.Class.Name,
		Metadata: map[string]string{
			"booking_id": strconv.FormatUint(uint64(b.ID), 10),
		},
	})
	if err != nil {
		return "", fmt.Errorf("payment gateway unavailable: %w", err)
	}

	if err := s.DB.Model(&b).Update("payment_session_id", session.SessionID).Error; err != nil {
		return "", err
	}
	return session.RedirectURL, nil
}

// HandlePaymentCallback settles a pending booking from the gateway's
// asynchronous result. Safe to replay: only pending bookings transition.
func (s *Service) HandlePaymentCallback(sessionID string, succeeded bool) error {
	var b bookingModel.Booking
	if err := s.DB.Where("payment_session_id = ?", sessionID).First(&b).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrNotFound
		}
		return err
	}
	if b.Status != bookingModel.BookingStatusPending {
		return nil
	}

	freedSeat := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if succeeded {
			b.Status = bookingModel.BookingStatusConfirmed
			if err := tx.Model(&bookingModel.Booking{}).
				Where("id = ? AND status = ?", b.ID, bookingModel.BookingStatusPending).
				Update("status", b.Status).Error; err != nil {
				return err
			}
			return booking_event.Record(tx, &b, "confirmed", "payment succeeded", "payment-gateway")
		}

		b.Status = bookingModel.BookingStatusCanceled
		res := tx.Model(&bookingModel.Booking{}).
			Where("id = ? AND status = ?", b.ID, bookingModel.BookingStatusPending).
			Update("status", b.Status)
		if res.Error != nil {
			return res.Error
		}
		freedSeat = res.RowsAffected > 0
		return booking_event.Record(tx, &b, "canceled", "payment failed", "payment-gateway")
	})
	if err != nil {
		return err
	}

	if succeeded {
		s.notifyConfirmed(&b)
	} else if freedSeat {
		s.triggerSeatFreed(b.ScheduleID)
	}
	return nil
}

// Cancel runs the policy engine for a customer self-cancel, commits the
// transition, restores or deducts credits per the decision, then executes
// the refund and frees the seat toward the waitlist.
func (s *Service) Cancel(bookingID uint, actor string) (*policy.Outcome, error) {
	return s.cancelWithTrigger(bookingID, policy.TriggerSelfCancel, "", true, actor)
}

// AdminCancel forces a specific monetary outcome, or applies the normal
// time-based policy when action is auto.
func (s *Service) AdminCancel(bookingID uint, action, note string, notifyCustomer bool, actor string) (*policy.Outcome, error) {
	b, sched, err := s.loadForCancel(bookingID)
	if err != nil {
		return nil, err
	}

	var outcome policy.Outcome
	switch action {
	case "auto":
		outcome = policy.Decide(b, sched, policy.TriggerSelfCancel, s.Policy, time.Now())
	case "refund":
		if b.PaymentMode == bookingModel.PaymentModePaid && b.Status == bookingModel.BookingStatusConfirmed {
			outcome = policy.Outcome{RefundCents: b.AmountCents}
		}
	case "credit":
		if b.UserID != nil {
			outcome = policy.Outcome{CreditRestored: true}
		}
	case "cancel":
		outcome = policy.Outcome{}
	default:
		return nil, fmt.Errorf("%w: unknown admin cancel action %q", ErrValidation, action)
	}

	if err := s.commitCancel(b, outcome, "admin_cancel", note, actor); err != nil {
		return nil, err
	}
	s.executeOutcome(b, &outcome)
	if notifyCustomer {
		s.notifyCanceled(b, &outcome)
	}
	s.triggerSeatFreed(b.ScheduleID)
	return &outcome, nil
}

// CancelAllForSchedule bulk-cancels every seat-holding booking on a
// schedule with the staff-bulk policy (full restitution). Used when staff
// cancel a whole occurrence; no waitlist cascade since the slot is gone.
func (s *Service) CancelAllForSchedule(scheduleID uint, note string, notifyCustomers bool, actor string) (int, error) {
	var bookings []bookingModel.Booking
	err := s.DB.Where("schedule_id = ? AND status IN ?", scheduleID, bookingModel.SeatHoldingStatuses()).
		Find(&bookings).Error
	if err != nil {
		return 0, err
	}

	canceled := 0
	for i := range bookings {
		b := &bookings[i]
		var sched scheduleModel.Schedule
		if err := s.DB.First(&sched, b.ScheduleID).Error; err != nil {
			return canceled, err
		}
		outcome := policy.Decide(b, &sched, policy.TriggerStaffBulk, s.Policy, time.Now())
		if err := s.commitCancel(b, outcome, "staff_bulk_cancel", note, actor); err != nil {
			logger.Error(fmt.Sprintf("Failed to bulk-cancel booking %d", b.ID), err)
			continue
		}
		s.executeOutcome(b, &outcome)
		if notifyCustomers {
			s.notifyCanceled(b, &outcome)
		}
		canceled++
	}

	logger.Success(fmt.Sprintf("Bulk-cancelled %d bookings on schedule %d", canceled, scheduleID))
	return canceled, nil
}

// Reschedule atomically moves a booking to another schedule of the same
// class. Both schedule rows are locked in id order; the target's capacity
// is re-checked under the lock.
func (s *Service) Reschedule(bookingID, targetScheduleID uint, actor string) (*bookingModel.Booking, error) {
	var b bookingModel.Booking
	oldScheduleID := uint(0)

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, bookingID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if !b.Status.HoldsSeat() {
			return fmt.Errorf("%w: booking is %s", ErrValidation, b.Status)
		}
		if b.ScheduleID == targetScheduleID {
			return fmt.Errorf("%w: booking is already on that schedule", ErrValidation)
		}

		// Lock both schedules in id order so concurrent transfers between
		// the same pair cannot deadlock.
		first, second := b.ScheduleID, targetScheduleID
		if second < first {
			first, second = second, first
		}
		var schedules []scheduleModel.Schedule
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", []uint{first, second}).
			Order("id ASC").
			Find(&schedules).Error; err != nil {
			return err
		}
		if len(schedules) != 2 {
			return fmt.Errorf("%w: target schedule not found", ErrValidation)
		}

		var source, target *scheduleModel.Schedule
		for i := range schedules {
			if schedules[i].ID == b.ScheduleID {
				source = &schedules[i]
			} else {
				target = &schedules[i]
			}
		}

		if target.ClassID != source.ClassID {
			return ErrClassMismatch
		}
		if !target.Status.IsBookable() {
			return fmt.Errorf("%w: target schedule is cancelled", ErrValidation)
		}

		count, err := s.seatHoldingCount(tx, target.ID)
		if err != nil {
			return err
		}
		if count >= int64(target.Capacity) {
			return ErrSlotFull
		}

		oldScheduleID = b.ScheduleID
		b.ScheduleID = target.ID
		b.UpdatedBy = actor
		if err := tx.Save(&b).Error; err != nil {
			return err
		}
		note := fmt.Sprintf("moved from schedule %d to %d", oldScheduleID, target.ID)
		return booking_event.Record(tx, &b, "rescheduled", note, actor)
	})
	if err != nil {
		return nil, err
	}

	s.triggerSeatFreed(oldScheduleID)
	return &b, nil
}

// MarkAttendance records check-in or no-show. A no-show feeds the policy
// engine: the configured credit deduction and fee apply, but the booking
// itself stays confirmed and never refunds.
func (s *Service) MarkAttendance(bookingID uint, attendance bookingModel.AttendanceStatus, actor string) (*policy.Outcome, error) {
	if !attendance.IsValid() || attendance == bookingModel.AttendanceNone {
		return nil, fmt.Errorf("%w: invalid attendance value", ErrValidation)
	}

	b, sched, err := s.loadForCancel(bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != bookingModel.BookingStatusConfirmed && b.Status != bookingModel.BookingStatusCompleted {
		return nil, fmt.Errorf("%w: attendance requires a confirmed booking", ErrValidation)
	}

	outcome := policy.Outcome{}
	if attendance == bookingModel.AttendanceNoShow {
		outcome = policy.Decide(b, sched, policy.TriggerNoShow, s.Policy, time.Now())
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&bookingModel.Booking{}).
			Where("id = ?", b.ID).
			Updates(map[string]interface{}{"attendance": attendance, "updated_by": actor}).Error; err != nil {
			return err
		}
		b.Attendance = attendance

		if outcome.CreditDeducted && b.UserID != nil {
			if err := s.Credits.ConsumeOne(tx, *b.UserID); err != nil {
				if !errors.Is(err, creditService.ErrNoCredits) {
					return err
				}
				// Nothing left to deduct; the fee still applies.
				outcome.CreditDeducted = false
			}
		}
		return booking_event.Record(tx, b, string(attendance), "", actor)
	})
	if err != nil {
		return nil, err
	}

	if outcome.FeeCents > 0 {
		s.issueFee(b, &outcome)
	}
	return &outcome, nil
}

// CompleteSweep moves confirmed bookings on past schedules to completed.
// Attendance-independent and idempotent.
func (s *Service) CompleteSweep(cutoff time.Time) (int, error) {
	var bookings []bookingModel.Booking
	err := s.DB.Joins("JOIN schedules ON schedules.id = bookings.schedule_id").
		Where("bookings.status = ? AND schedules.end_at < ?", bookingModel.BookingStatusConfirmed, cutoff).
		Find(&bookings).Error
	if err != nil {
		return 0, err
	}

	completed := 0
	for i := range bookings {
		b := &bookings[i]
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&bookingModel.Booking{}).
				Where("id = ? AND status = ?", b.ID, bookingModel.BookingStatusConfirmed).
				Update("status", bookingModel.BookingStatusCompleted)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			b.Status = bookingModel.BookingStatusCompleted
			return booking_event.Record(tx, b, "completed", "", "system")
		})
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to complete booking %d", b.ID), err)
			continue
		}
		completed++
	}
	return completed, nil
}

// Get loads a booking with its schedule and class.
func (s *Service) Get(bookingID uint) (*bookingModel.Booking, error) {
	var b bookingModel.Booking
	if err := s.DB.Preload("Schedule.Class").Preload("User").First(&b, bookingID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Service) seatHoldingCount(tx *gorm.DB, scheduleID uint) (int64, error) {
	var count int64
	err := tx.Model(&bookingModel.Booking{}).
		Where("schedule_id = ? AND status IN ?", scheduleID, bookingModel.SeatHoldingStatuses()).
		Count(&count).Error
	return count, err
}

func (s *Service) loadForCancel(bookingID uint) (*bookingModel.Booking, *scheduleModel.Schedule, error) {
	var b bookingModel.Booking
	if err := s.DB.First(&b, bookingID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	var sched scheduleModel.Schedule
	if err := s.DB.First(&sched, b.ScheduleID).Error; err != nil {
		return nil, nil, err
	}
	return &b, &sched, nil
}

func (s *Service) cancelWithTrigger(bookingID uint, trigger policy.Trigger, note string, notifyCustomer bool, actor string) (*policy.Outcome, error) {
	b, sched, err := s.loadForCancel(bookingID)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanBeCanceled() {
		return nil, ErrNotCancelable
	}

	outcome := policy.Decide(b, sched, trigger, s.Policy, time.Now())
	if err := s.commitCancel(b, outcome, string(trigger), note, actor); err != nil {
		return nil, err
	}

	s.executeOutcome(b, &outcome)
	if notifyCustomer {
		s.notifyCanceled(b, &outcome)
	}
	s.triggerSeatFreed(b.ScheduleID)
	return &outcome, nil
}

// commitCancel transitions the booking to canceled and settles credits, all
// in one transaction. The status guard makes a replay a no-op.
func (s *Service) commitCancel(b *bookingModel.Booking, outcome policy.Outcome, eventType, note, actor string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&bookingModel.Booking{}).
			Where("id = ? AND status IN ?", b.ID, bookingModel.SeatHoldingStatuses()).
			Updates(map[string]interface{}{"status": bookingModel.BookingStatusCanceled, "updated_by": actor})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotCancelable
		}
		b.Status = bookingModel.BookingStatusCanceled

		if outcome.CreditRestored && b.UserID != nil {
			if err := s.Credits.RestoreOne(tx, *b.UserID); err != nil {
				return err
			}
		}
		if outcome.CreditDeducted && b.UserID != nil {
			if err := s.Credits.ConsumeOne(tx, *b.UserID); err != nil && !errors.Is(err, creditService.ErrNoCredits) {
				return err
			}
		}

		return booking_event.Record(tx, b, eventType, note, actor)
	})
}

// executeOutcome runs the monetary side effects after the cancellation is
// committed. The refund goes against the original charge session; fees are
// issued as fresh charge requests. Gateway failures are logged, never
// rolled back into the booking.
func (s *Service) executeOutcome(b *bookingModel.Booking, outcome *policy.Outcome) {
	if outcome.RefundCents > 0 {
		if b.PaymentSessionID == nil {
			logger.Warning(fmt.Sprintf("Booking %d owed a refund but has no payment session", b.ID))
		} else if _, err := s.Payments.Refund(payment.RefundRequest{
			SessionID:   *b.PaymentSessionID,
			AmountCents: outcome.RefundCents,
		}); err != nil {
			logger.Error(fmt.Sprintf("Failed to refund booking %d", b.ID), err)
		}
	}
	if outcome.FeeCents > 0 {
		s.issueFee(b, outcome)
	}
}

// issueFee opens a fresh charge session for a late-cancel or no-show fee.
// Fees are separate receivable events from the original charge.
func (s *Service) issueFee(b *bookingModel.Booking, outcome *policy.Outcome) {
	_, err := s.Payments.CreateChargeSession(payment.ChargeSessionRequest{
		AmountCents: outcome.FeeCents,
		Currency:    b.Currency,
		Description: outcome.FeeLabel,
		Metadata: map[string]string{
			"booking_id": strconv.FormatUint(uint64(b.ID), 10),
			"fee":        outcome.FeeLabel,
		},
	})
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to issue %s for booking %d", outcome.FeeLabel, b.ID), err)
	}
}

func (s *Service) triggerSeatFreed(scheduleID uint) {
	if s.seatFreed != nil {
		s.seatFreed.OnSeatFreed(scheduleID)
	}
}

func (s *Service) notifyConfirmed(b *bookingModel.Booking) {
	email := s.customerEmail(b)
	s.Notify.SendBookingConfirmed(email, map[string]string{
		"booking_id":  strconv.FormatUint(uint64(b.ID), 10),
		"schedule_id": strconv.FormatUint(uint64(b.ScheduleID), 10),
	})
}

func (s *Service) notifyCanceled(b *bookingModel.Booking, outcome *policy.Outcome) {
	email := s.customerEmail(b)
	s.Notify.SendBookingCanceled(email, map[string]string{
		"booking_id":   strconv.FormatUint(uint64(b.ID), 10),
		"refund_cents": strconv.FormatInt(outcome.RefundCents, 10),
		"fee_cents":    strconv.FormatInt(outcome.FeeCents, 10),
	})
}

// customerEmail loads the account email when the relation is not preloaded.
func (s *Service) customerEmail(b *bookingModel.Booking) string {
	if email := b.CustomerEmail(); email != "" {
		return email
	}
	if b.UserID != nil {
		var loaded bookingModel.Booking
		if err := s.DB.Preload("User").First(&loaded, b.ID).Error; err == nil {
			return loaded.CustomerEmail()
		}
	}
	return ""
}
