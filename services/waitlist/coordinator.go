package waitlist

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"classflow/httpServices/notify"
	"classflow/logger"
	bookingModel "classflow/models/booking"
	scheduleModel "classflow/models/schedule"
	userModel "classflow/models/user"
	waitlistModel "classflow/models/waitlist"
	"classflow/services/ledger"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrAlreadyQueued means the customer is already waiting or holding an
	// offer for this schedule.
	ErrAlreadyQueued = errors.New("already on the waitlist")
	// ErrOfferNotFound means the token matches no offer.
	ErrOfferNotFound = errors.New("waitlist offer not found")
	// ErrOfferExpired means the hold window ran out before the customer acted.
	ErrOfferExpired = errors.New("waitlist offer expired")
	// ErrValidation covers malformed join requests.
	ErrValidation = errors.New("invalid waitlist request")
)

// DefaultHoldMinutes is the offer hold window when WAITLIST_HOLD_MINUTES is
// unset.
const DefaultHoldMinutes = 30

// Coordinator maintains the FIFO queue per schedule and the time-boxed
// offer protocol. At most one entry per schedule is in the offered state at
// a time, enforced under the schedule row lock.
type Coordinator struct {
	DB     *gorm.DB
	Ledger *ledger.Service
	Notify *notify.Client

	holdWindow time.Duration
}

func NewCoordinator(db *gorm.DB, ledgerSvc *ledger.Service, notifier *notify.Client) *Coordinator {
	hold := DefaultHoldMinutes
	if v, err := strconv.Atoi(os.Getenv("WAITLIST_HOLD_MINUTES")); err == nil && v > 0 {
		hold = v
	}
	return &Coordinator{
		DB:         db,
		Ledger:     ledgerSvc,
		Notify:     notifier,
		holdWindow: time.Duration(hold) * time.Minute,
	}
}

// Join appends a waiting entry. A customer can hold at most one live entry
// (waiting or offered) per schedule.
func (c *Coordinator) Join(scheduleID uint, userID *uint, email string) (*waitlistModel.Entry, error) {
	if email == "" && userID == nil {
		return nil, fmt.Errorf("%w: customer identity required", ErrValidation)
	}

	var entry waitlistModel.Entry
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var sched scheduleModel.Schedule
		if err := tx.First(&sched, scheduleID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: schedule %d not found", ErrValidation, scheduleID)
			}
			return err
		}
		if !sched.Status.IsBookable() {
			return fmt.Errorf("%w: schedule is cancelled", ErrValidation)
		}

		if email == "" && userID != nil {
			var u userModel.User
			if err := tx.First(&u, *userID).Error; err == nil && u.Email != nil {
				email = *u.Email
			}
		}

		dupe := tx.Model(&waitlistModel.Entry{}).
			Where("schedule_id = ? AND status IN ?", scheduleID,
				[]waitlistModel.EntryStatus{waitlistModel.StatusWaiting, waitlistModel.StatusOffered})
		if userID != nil {
			dupe = dupe.Where("user_id = ? OR email = ?", *userID, email)
		} else {
			dupe = dupe.Where("email = ?", email)
		}
		var count int64
		if err := dupe.Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyQueued
		}

		entry = waitlistModel.Entry{
			ScheduleID: scheduleID,
			UserID:     userID,
			Email:      email,
			Status:     waitlistModel.StatusWaiting,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Info(fmt.Sprintf("Waitlist join: schedule %d, entry %d", scheduleID, entry.ID))
	return &entry, nil
}

// OnSeatFreed offers the freed seat to the oldest waiting entry. The
// schedule row lock serializes concurrent invocations so a single freed
// seat never produces two simultaneous offers.
func (c *Coordinator) OnSeatFreed(scheduleID uint) {
	var offered *waitlistModel.Entry
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var sched scheduleModel.Schedule
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sched, scheduleID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		if !sched.Status.IsBookable() {
			return nil
		}

		// Seat may already be retaken, or another offer may be outstanding.
		var held int64
		if err := tx.Model(&bookingModel.Booking{}).
			Where("schedule_id = ? AND status IN ?", scheduleID, bookingModel.SeatHoldingStatuses()).
			Count(&held).Error; err != nil {
			return err
		}
		if held >= int64(sched.Capacity) {
			return nil
		}

		var outstanding int64
		if err := tx.Model(&waitlistModel.Entry{}).
			Where("schedule_id = ? AND status = ?", scheduleID, waitlistModel.StatusOffered).
			Count(&outstanding).Error; err != nil {
			return err
		}
		if outstanding > 0 {
			return nil
		}

		var entry waitlistModel.Entry
		err := tx.Where("schedule_id = ? AND status = ?", scheduleID, waitlistModel.StatusWaiting).
			Order("created_at ASC").
			First(&entry).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		token := uuid.NewString()
		expiresAt := time.Now().Add(c.holdWindow)
		res := tx.Model(&waitlistModel.Entry{}).
			Where("id = ? AND status = ?", entry.ID, waitlistModel.StatusWaiting).
			Updates(map[string]interface{}{
				"status":           waitlistModel.StatusOffered,
				"offer_token":      token,
				"offer_expires_at": expiresAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		entry.Status = waitlistModel.StatusOffered
		entry.OfferToken = &token
		entry.OfferExpiresAt = &expiresAt
		offered = &entry
		return nil
	})
	if err != nil {
		logger.Error(fmt.Sprintf("Waitlist offer issuance failed for schedule %d", scheduleID), err)
		return
	}
	if offered == nil {
		return
	}

	c.Notify.SendWaitlistOffer(offered.Email, map[string]string{
		"schedule_id": strconv.FormatUint(uint64(offered.ScheduleID), 10),
		"token":       *offered.OfferToken,
		"expires_at":  offered.OfferExpiresAt.Format(time.RFC3339),
	})
	logger.Success(fmt.Sprintf("Waitlist offer issued: schedule %d, entry %d", scheduleID, offered.ID))
}

// Accept claims an offered seat. The reservation goes through the ledger
// preferring credits; a still-due payment comes back as a checkout URL the
// caller forwards to the customer.
func (c *Coordinator) Accept(token string) (*bookingModel.Booking, string, error) {
	entry, err := c.findOffer(token)
	if err != nil {
		return nil, "", err
	}

	if entry.OfferExpired(time.Now()) {
		c.expireEntry(entry)
		return nil, "", ErrOfferExpired
	}

	b, err := c.Ledger.Reserve(ledger.ReserveRequest{
		ScheduleID: entry.ScheduleID,
		UserID:     entry.UserID,
		GuestEmail: entry.Email,
		UseCredits: true,
		CreatedBy:  "waitlist:" + entry.Email,
	})
	if err != nil {
		return nil, "", err
	}

	res := c.DB.Model(&waitlistModel.Entry{}).
		Where("id = ? AND status = ?", entry.ID, waitlistModel.StatusOffered).
		Update("status", waitlistModel.StatusAccepted)
	if res.Error != nil {
		return nil, "", res.Error
	}

	checkoutURL := ""
	if b.Status == bookingModel.BookingStatusPending && b.PaymentMode == bookingModel.PaymentModePaid {
		url, err := c.Ledger.StartPayment(b.ID)
		if err != nil {
			// The seat is held; the customer can retry payment later.
			logger.Error(fmt.Sprintf("Failed to start payment for waitlist booking %d", b.ID), err)
		} else {
			checkoutURL = url
		}
	}

	logger.Success(fmt.Sprintf("Waitlist offer accepted: entry %d, booking %d", entry.ID, b.ID))
	return b, checkoutURL, nil
}

// Decline releases the offered seat and cascades the offer down the queue.
func (c *Coordinator) Decline(token string) error {
	entry, err := c.findOffer(token)
	if err != nil {
		return err
	}

	res := c.DB.Model(&waitlistModel.Entry{}).
		Where("id = ? AND status = ?", entry.ID, waitlistModel.StatusOffered).
		Update("status", waitlistModel.StatusDeclined)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOfferNotFound
	}

	c.OnSeatFreed(entry.ScheduleID)
	return nil
}

// FlushSchedule closes every live entry on a schedule that has been
// cancelled. The queue can never be served again, so waiting and offered
// entries move to expired instead of lingering forever.
func (c *Coordinator) FlushSchedule(scheduleID uint) (int, error) {
	res := c.DB.Model(&waitlistModel.Entry{}).
		Where("schedule_id = ? AND status IN ?", scheduleID,
			[]waitlistModel.EntryStatus{waitlistModel.StatusWaiting, waitlistModel.StatusOffered}).
		Update("status", waitlistModel.StatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.Info(fmt.Sprintf("Flushed %d waitlist entries on cancelled schedule %d", res.RowsAffected, scheduleID))
	}
	return int(res.RowsAffected), nil
}

// ExpireSweep times out overdue offers and cascades each freed seat to the
// next entry. Running it twice over the same entries is a no-op: only rows
// still in the offered state transition.
func (c *Coordinator) ExpireSweep() (int, error) {
	var overdue []waitlistModel.Entry
	err := c.DB.Where("status = ? AND offer_expires_at < ?", waitlistModel.StatusOffered, time.Now()).
		Find(&overdue).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range overdue {
		if c.expireEntry(&overdue[i]) {
			expired++
		}
	}
	return expired, nil
}

// findOffer resolves a token to its entry, distinguishing unknown tokens
// from consumed ones.
func (c *Coordinator) findOffer(token string) (*waitlistModel.Entry, error) {
	if token == "" {
		return nil, ErrOfferNotFound
	}
	var entry waitlistModel.Entry
	err := c.DB.Where("offer_token = ?", token).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, err
	}
	switch entry.Status {
	case waitlistModel.StatusOffered:
		return &entry, nil
	case waitlistModel.StatusExpired:
		return nil, ErrOfferExpired
	default:
		return nil, ErrOfferNotFound
	}
}

// expireEntry marks one overdue offer expired and re-triggers the cascade.
// Returns false when another actor already settled the entry.
func (c *Coordinator) expireEntry(entry *waitlistModel.Entry) bool {
	res := c.DB.Model(&waitlistModel.Entry{}).
		Where("id = ? AND status = ?", entry.ID, waitlistModel.StatusOffered).
		Update("status", waitlistModel.StatusExpired)
	if res.Error != nil {
		logger.Error(fmt.Sprintf("Failed to expire waitlist entry %d", entry.ID), res.Error)
		return false
	}
	if res.RowsAffected == 0 {
		return false
	}
	c.OnSeatFreed(entry.ScheduleID)
	return true
}
