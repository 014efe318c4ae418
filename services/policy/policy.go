package policy

import (
	"os"
	"strconv"
	"time"

	bookingModel "classflow/models/booking"
	scheduleModel "classflow/models/schedule"
)

// Trigger identifies what caused a cancellation-policy decision.
type Trigger string

const (
	TriggerSelfCancel Trigger = "self_cancel"
	TriggerLateCancel Trigger = "late_cancel"
	TriggerNoShow     Trigger = "no_show"
	TriggerStaffBulk  Trigger = "staff_bulk"
)

// Config holds the studio's configured cancellation thresholds and fees.
type Config struct {
	// Hours before class start separating free cancellation from late-cancel.
	WindowHours int

	LateCancelFeeCents int64
	NoShowFeeCents     int64

	LateCancelDeductsCredit bool
	NoShowDeductsCredit     bool
}

// ConfigFromEnv reads the policy configuration. Unset values mean a 24 hour
// window with no fees and no credit deduction.
func ConfigFromEnv() Config {
	cfg := Config{WindowHours: 24}
	if v, err := strconv.Atoi(os.Getenv("CANCELLATION_WINDOW_HOURS")); err == nil && v >= 0 {
		cfg.WindowHours = v
	}
	if v, err := strconv.ParseInt(os.Getenv("LATE_CANCEL_FEE_CENTS"), 10, 64); err == nil && v >= 0 {
		cfg.LateCancelFeeCents = v
	}
	if v, err := strconv.ParseInt(os.Getenv("NO_SHOW_FEE_CENTS"), 10, 64); err == nil && v >= 0 {
		cfg.NoShowFeeCents = v
	}
	cfg.LateCancelDeductsCredit = os.Getenv("LATE_CANCEL_DEDUCTS_CREDIT") == "true"
	cfg.NoShowDeductsCredit = os.Getenv("NO_SHOW_DEDUCTS_CREDIT") == "true"
	return cfg
}

// Outcome is the monetary decision for one cancellation. The engine only
// decides; the ledger executes refunds against the original transaction and
// issues fees as fresh charge requests.
type Outcome struct {
	RefundCents    int64  `json:"refund_cents"`
	CreditRestored bool   `json:"credit_restored"`
	CreditDeducted bool   `json:"credit_deducted"`
	FeeCents       int64  `json:"fee_cents"`
	FeeLabel       string `json:"fee_label,omitempty"`
}

// Decide applies the cancellation decision table. Time-to-class is measured
// against the schedule's canonical start instant, so no zone math is needed
// here. A self-cancel inside the window is treated as a late cancel; no-show
// never refunds.
func Decide(b *bookingModel.Booking, s *scheduleModel.Schedule, trigger Trigger, cfg Config, now time.Time) Outcome {
	if trigger == TriggerSelfCancel {
		window := time.Duration(cfg.WindowHours) * time.Hour
		if s.StartAt.Sub(now) >= window {
			return fullRestitution(b)
		}
		trigger = TriggerLateCancel
	}

	switch trigger {
	case TriggerLateCancel:
		out := Outcome{
			CreditDeducted: cfg.LateCancelDeductsCredit,
			FeeCents:       cfg.LateCancelFeeCents,
		}
		if out.FeeCents > 0 {
			out.FeeLabel = "late_cancel_fee"
		}
		return out

	case TriggerNoShow:
		out := Outcome{
			CreditDeducted: cfg.NoShowDeductsCredit,
			FeeCents:       cfg.NoShowFeeCents,
		}
		if out.FeeCents > 0 {
			out.FeeLabel = "no_show_fee"
		}
		return out

	case TriggerStaffBulk:
		// The studio cancelled the class: customers are made whole
		// regardless of timing.
		return fullRestitution(b)
	}

	return Outcome{}
}

// fullRestitution refunds a paid booking or restores a consumed credit,
// matching the payment mode.
func fullRestitution(b *bookingModel.Booking) Outcome {
	switch b.PaymentMode {
	case bookingModel.PaymentModeCredit:
		return Outcome{CreditRestored: true}
	case bookingModel.PaymentModePaid:
		if b.Status == bookingModel.BookingStatusConfirmed {
			return Outcome{RefundCents: b.AmountCents}
		}
		// Pending means the gateway never confirmed the charge, so there is
		// nothing to refund.
		return Outcome{}
	default:
		return Outcome{}
	}
}
