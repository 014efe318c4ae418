package policy

import (
	"testing"
	"time"

	bookingModel "classflow/models/booking"
	scheduleModel "classflow/models/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduleStarting(t *testing.T, in time.Duration) *scheduleModel.Schedule {
	t.Helper()
	start := time.Now().UTC().Add(in)
	return &scheduleModel.Schedule{
		StartAt: start,
		EndAt:   start.Add(time.Hour),
	}
}

func paidBooking(status bookingModel.BookingStatus, amount int64) *bookingModel.Booking {
	return &bookingModel.Booking{
		Status:      status,
		PaymentMode: bookingModel.PaymentModePaid,
		AmountCents: amount,
	}
}

func creditBooking() *bookingModel.Booking {
	return &bookingModel.Booking{
		Status:      bookingModel.BookingStatusConfirmed,
		PaymentMode: bookingModel.PaymentModeCredit,
	}
}

func TestDecideSelfCancelOutsideWindowRefundsPayment(t *testing.T) {
	cfg := Config{WindowHours: 24, LateCancelFeeCents: 500}
	b := paidBooking(bookingModel.BookingStatusConfirmed, 2500)
	s := scheduleStarting(t, 48*time.Hour)

	out := Decide(b, s, TriggerSelfCancel, cfg, time.Now().UTC())

	assert.Equal(t, int64(2500), out.RefundCents)
	assert.False(t, out.CreditRestored)
	assert.False(t, out.CreditDeducted)
	assert.Zero(t, out.FeeCents)
}

func TestDecideSelfCancelOutsideWindowRestoresCredit(t *testing.T) {
	cfg := Config{WindowHours: 24}
	s := scheduleStarting(t, 25*time.Hour)

	out := Decide(creditBooking(), s, TriggerSelfCancel, cfg, time.Now().UTC())

	assert.True(t, out.CreditRestored)
	assert.Zero(t, out.RefundCents)
}

func TestDecideSelfCancelInsideWindowBecomesLateCancel(t *testing.T) {
	cfg := Config{
		WindowHours:             24,
		LateCancelFeeCents:      500,
		LateCancelDeductsCredit: true,
	}
	b := paidBooking(bookingModel.BookingStatusConfirmed, 2500)
	s := scheduleStarting(t, 2*time.Hour)

	out := Decide(b, s, TriggerSelfCancel, cfg, time.Now().UTC())

	assert.Zero(t, out.RefundCents, "late cancel keeps the payment")
	assert.True(t, out.CreditDeducted)
	assert.Equal(t, int64(500), out.FeeCents)
	assert.Equal(t, "late_cancel_fee", out.FeeLabel)
}

func TestDecideWindowBoundaryIsStillFree(t *testing.T) {
	// Exactly at the threshold counts as outside the window.
	cfg := Config{WindowHours: 24, LateCancelFeeCents: 500}
	now := time.Now().UTC()
	s := &scheduleModel.Schedule{StartAt: now.Add(24 * time.Hour)}
	b := paidBooking(bookingModel.BookingStatusConfirmed, 1000)

	out := Decide(b, s, TriggerSelfCancel, cfg, now)

	assert.Equal(t, int64(1000), out.RefundCents)
	assert.Zero(t, out.FeeCents)
}

func TestDecideNoShowNeverRefunds(t *testing.T) {
	cfg := Config{
		WindowHours:         24,
		NoShowFeeCents:      1500,
		NoShowDeductsCredit: true,
	}
	b := paidBooking(bookingModel.BookingStatusConfirmed, 2500)
	s := scheduleStarting(t, -time.Hour)

	out := Decide(b, s, TriggerNoShow, cfg, time.Now().UTC())

	assert.Zero(t, out.RefundCents)
	assert.False(t, out.CreditRestored)
	assert.True(t, out.CreditDeducted)
	assert.Equal(t, int64(1500), out.FeeCents)
	assert.Equal(t, "no_show_fee", out.FeeLabel)
}

func TestDecideNoShowWithoutFeeConfig(t *testing.T) {
	out := Decide(creditBooking(), scheduleStarting(t, -time.Hour), TriggerNoShow, Config{WindowHours: 24}, time.Now().UTC())

	assert.Zero(t, out.FeeCents)
	assert.Empty(t, out.FeeLabel)
	assert.False(t, out.CreditDeducted)
}

func TestDecideStaffBulkIgnoresTiming(t *testing.T) {
	// The class starts in ten minutes; a studio-initiated cancellation still
	// makes the customer whole.
	cfg := Config{WindowHours: 24, LateCancelFeeCents: 500}
	s := scheduleStarting(t, 10*time.Minute)

	paid := Decide(paidBooking(bookingModel.BookingStatusConfirmed, 3000), s, TriggerStaffBulk, cfg, time.Now().UTC())
	require.Equal(t, int64(3000), paid.RefundCents)
	assert.Zero(t, paid.FeeCents)

	credited := Decide(creditBooking(), s, TriggerStaffBulk, cfg, time.Now().UTC())
	assert.True(t, credited.CreditRestored)
}

func TestDecidePendingPaidRefundsNothing(t *testing.T) {
	// The gateway never confirmed the charge, so full restitution is a no-op.
	cfg := Config{WindowHours: 24}
	b := paidBooking(bookingModel.BookingStatusPending, 2500)
	s := scheduleStarting(t, 48*time.Hour)

	out := Decide(b, s, TriggerSelfCancel, cfg, time.Now().UTC())

	assert.Zero(t, out.RefundCents)
	assert.False(t, out.CreditRestored)
}

func TestDecideFreeBookingHasNoMonetaryOutcome(t *testing.T) {
	b := &bookingModel.Booking{
		Status:      bookingModel.BookingStatusConfirmed,
		PaymentMode: bookingModel.PaymentModeFree,
	}
	out := Decide(b, scheduleStarting(t, 48*time.Hour), TriggerSelfCancel, Config{WindowHours: 24}, time.Now().UTC())

	assert.Equal(t, Outcome{}, out)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("CANCELLATION_WINDOW_HOURS", "")
	t.Setenv("LATE_CANCEL_FEE_CENTS", "")
	t.Setenv("NO_SHOW_FEE_CENTS", "")
	t.Setenv("LATE_CANCEL_DEDUCTS_CREDIT", "")
	t.Setenv("NO_SHOW_DEDUCTS_CREDIT", "")

	cfg := ConfigFromEnv()

	assert.Equal(t, 24, cfg.WindowHours)
	assert.Zero(t, cfg.LateCancelFeeCents)
	assert.Zero(t, cfg.NoShowFeeCents)
	assert.False(t, cfg.LateCancelDeductsCredit)
	assert.False(t, cfg.NoShowDeductsCredit)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("CANCELLATION_WINDOW_HOURS", "12")
	t.Setenv("LATE_CANCEL_FEE_CENTS", "750")
	t.Setenv("NO_SHOW_FEE_CENTS", "1500")
	t.Setenv("LATE_CANCEL_DEDUCTS_CREDIT", "true")
	t.Setenv("NO_SHOW_DEDUCTS_CREDIT", "true")

	cfg := ConfigFromEnv()

	assert.Equal(t, 12, cfg.WindowHours)
	assert.Equal(t, int64(750), cfg.LateCancelFeeCents)
	assert.Equal(t, int64(1500), cfg.NoShowFeeCents)
	assert.True(t, cfg.LateCancelDeductsCredit)
	assert.True(t, cfg.NoShowDeductsCredit)
}
