package ledger

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"classflow/httpServices/notify"
	"classflow/httpServices/payment"
	bookingModel "classflow/models/booking"
	classModel "classflow/models/class"
	creditModel "classflow/models/credit"
	scheduleModel "classflow/models/schedule"
	userModel "classflow/models/user"
	creditService "classflow/services/credit"
	"classflow/services/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// testDB opens the database named by TEST_DATABASE_URL; tests that need
// Postgres are skipped when it is unset.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userModel.User{},
		&classModel.Class{},
		&scheduleModel.Schedule{},
		&creditModel.CreditBalance{},
		&bookingModel.Booking{},
		&bookingModel.BookingStatusEvent{},
	))
	return db
}

// fakeGateway is a stand-in payment gateway that records what was asked of
// it.
type fakeGateway struct {
	mu       sync.Mutex
	sessions int
	refunds  []int64
}

func (g *fakeGateway) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		switch r.URL.Path {
		case "/v1/charge-sessions":
			g.sessions++
			json.NewEncoder(w).Encode(payment.ChargeSessionResponse{
				SessionID:   fmt.Sprintf("sess_%d", g.sessions),
				RedirectURL: "https://pay.example.com/checkout",
			})
		case "/v1/refunds":
			var req payment.RefundRequest
			json.NewDecoder(r.Body).Decode(&req)
			g.refunds = append(g.refunds, req.AmountCents)
			json.NewEncoder(w).Encode(payment.RefundResponse{RefundID: "re_1", Status: "succeeded"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, db *gorm.DB, cfg policy.Config) (*Service, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	srv := gw.server(t)
	return NewService(db, creditService.NewStore(db), payment.NewClient(srv.URL), notify.NewClient(srv.URL), cfg), gw
}

func seedUser(t *testing.T, db *gorm.DB, tag string) *userModel.User {
	t.Helper()
	suffix := fmt.Sprintf("%s-%d", tag, time.Now().UnixNano())
	email := "test-" + suffix + "@example.com"
	u := userModel.User{
		Uuid:      "uuid-" + suffix,
		Username:  "user-" + suffix,
		LegalName: "Test User",
		Phone:     fmt.Sprintf("+1%d", time.Now().UnixNano()%1e10),
		Email:     &email,
	}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func seedSchedule(t *testing.T, db *gorm.DB, capacity int, priceCents int64, startsIn time.Duration) *scheduleModel.Schedule {
	t.Helper()
	cls := classModel.Class{
		Name:            "Test Class",
		DurationMinutes: 60,
		DefaultCapacity: capacity,
		Currency:        "USD",
		IsActive:        true,
	}
	require.NoError(t, db.Create(&cls).Error)

	start := time.Now().UTC().Add(startsIn)
	sched := scheduleModel.Schedule{
		ClassID:    cls.ID,
		StartAt:    start,
		EndAt:      start.Add(time.Hour),
		Capacity:   capacity,
		PriceCents: priceCents,
		Currency:   "USD",
		Status:     scheduleModel.StatusActive,
		CreatedBy:  "test",
	}
	require.NoError(t, db.Create(&sched).Error)
	return &sched
}

func TestReserveLastSeatUnderContention(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24})
	sched := seedSchedule(t, db, 1, 2000, 48*time.Hour)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	type result struct {
		b   *bookingModel.Booking
		err error
	}
	results := make(chan result, 2)
	var wg sync.WaitGroup
	for _, u := range []*userModel.User{alice, bob} {
		wg.Add(1)
		go func(u *userModel.User) {
			defer wg.Done()
			b, err := svc.Reserve(ReserveRequest{
				ScheduleID: sched.ID,
				UserID:     &u.ID,
				CreatedBy:  "test",
			})
			results <- result{b, err}
		}(u)
	}
	wg.Wait()
	close(results)

	wins, fulls := 0, 0
	for r := range results {
		if r.err == nil {
			wins++
		} else {
			require.ErrorIs(t, r.err, ErrSlotFull)
			fulls++
		}
	}
	assert.Equal(t, 1, wins, "exactly one reservation takes the last seat")
	assert.Equal(t, 1, fulls)

	var held int64
	require.NoError(t, db.Model(&bookingModel.Booking{}).
		Where("schedule_id = ? AND status IN ?", sched.ID, bookingModel.SeatHoldingStatuses()).
		Count(&held).Error)
	assert.Equal(t, int64(1), held)
}

func TestReserveConsumesCreditAndConfirms(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24})
	sched := seedSchedule(t, db, 5, 2000, 48*time.Hour)
	u := seedUser(t, db, "credit")
	require.NoError(t, db.Create(&creditModel.CreditBalance{UserID: u.ID, Remaining: 3}).Error)

	b, err := svc.Reserve(ReserveRequest{
		ScheduleID: sched.ID,
		UserID:     &u.ID,
		UseCredits: true,
		CreatedBy:  "test",
	})
	require.NoError(t, err)

	assert.Equal(t, bookingModel.BookingStatusConfirmed, b.Status)
	assert.Equal(t, bookingModel.PaymentModeCredit, b.PaymentMode)
	assert.Zero(t, b.AmountCents)

	balance, err := creditService.NewStore(db).Balance(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance)
}

func TestReserveWithoutCreditsFallsBackToPayment(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24})
	sched := seedSchedule(t, db, 5, 2000, 48*time.Hour)
	u := seedUser(t, db, "nocredit")

	b, err := svc.Reserve(ReserveRequest{
		ScheduleID: sched.ID,
		UserID:     &u.ID,
		UseCredits: true,
		CreatedBy:  "test",
	})
	require.NoError(t, err)

	assert.Equal(t, bookingModel.BookingStatusPending, b.Status)
	assert.Equal(t, bookingModel.PaymentModePaid, b.PaymentMode)
	assert.Equal(t, int64(2000), b.AmountCents)
}

func TestReserveFreeClassConfirmsImmediately(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24})
	sched := seedSchedule(t, db, 5, 0, 48*time.Hour)
	u := seedUser(t, db, "free")

	b, err := svc.Reserve(ReserveRequest{ScheduleID: sched.ID, UserID: &u.ID, CreatedBy: "test"})
	require.NoError(t, err)

	assert.Equal(t, bookingModel.BookingStatusConfirmed, b.Status)
	assert.Equal(t, bookingModel.PaymentModeFree, b.PaymentMode)
}

func TestPaymentCallbackConfirmsAndIsIdempotent(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24})
	sched := seedSchedule(t, db, 5, 2000, 48*time.Hour)
	u := seedUser(t, db, "pay")

	b, err := svc.Reserve(ReserveRequest{ScheduleID: sched.ID, UserID: &u.ID, CreatedBy: "test"})
	require.NoError(t, err)

	_, err = svc.StartPayment(b.ID)
	require.NoError(t, err)

	var withSession bookingModel.Booking
	require.NoError(t, db.First(&withSession, b.ID).Error)
	require.NotNil(t, withSession.PaymentSessionID)

	require.NoError(t, svc.HandlePaymentCallback(*withSession.PaymentSessionID, true))
	require.NoError(t, svc.HandlePaymentCallback(*withSession.PaymentSessionID, true), "replay is a no-op")

	var settled bookingModel.Booking
	require.NoError(t, db.First(&settled, b.ID).Error)
	assert.Equal(t, bookingModel.BookingStatusConfirmed, settled.Status)
}

func TestPaymentCallbackFailureFreesSeat(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24})
	sched := seedSchedule(t, db, 1, 2000, 48*time.Hour)
	u := seedUser(t, db, "payfail")

	b, err := svc.Reserve(ReserveRequest{ScheduleID: sched.ID, UserID: &u.ID, CreatedBy: "test"})
	require.NoError(t, err)
	_, err = svc.StartPayment(b.ID)
	require.NoError(t, err)

	var withSession bookingModel.Booking
	require.NoError(t, db.First(&withSession, b.ID).Error)
	require.NoError(t, svc.HandlePaymentCallback(*withSession.PaymentSessionID, false))

	var canceled bookingModel.Booking
	require.NoError(t, db.First(&canceled, b.ID).Error)
	assert.Equal(t, bookingModel.BookingStatusCanceled, canceled.Status)

	// The seat is available again.
	other := seedUser(t, db, "next")
	_, err = svc.Reserve(ReserveRequest{ScheduleID: sched.ID, UserID: &other.ID, CreatedBy: "test"})
	assert.NoError(t, err)
}

func TestCancelOutsideWindowRestoresCredit(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24})
	sched := seedSchedule(t, db, 5, 2000, 48*time.Hour)
	u := seedUser(t, db, "restore")
	require.NoError(t, db.Create(&creditModel.CreditBalance{UserID: u.ID, Remaining: 1}).Error)

	b, err := svc.Reserve(ReserveRequest{ScheduleID: sched.ID, UserID: &u.ID, UseCredits: true, CreatedBy: "test"})
	require.NoError(t, err)

	outcome, err := svc.Cancel(b.ID, "test")
	require.NoError(t, err)
	assert.True(t, outcome.CreditRestored)
	assert.Zero(t, outcome.FeeCents)

	balance, err := creditService.NewStore(db).Balance(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance)
}

func TestCancelInsideWindowAppliesLateFee(t *testing.T) {
	db := testDB(t)
	svc, gw := newTestService(t, db, policy.Config{WindowHours: 24, LateCancelFeeCents: 500})
	sched := seedSchedule(t, db, 5, 0, 2*time.Hour)
	u := seedUser(t, db, "late")

	b, err := svc.Reserve(ReserveRequest{ScheduleID: sched.ID, UserID: &u.ID, CreatedBy: "test"})
	require.NoError(t, err)

	outcome, err := svc.Cancel(b.ID, "test")
	require.NoError(t, err)
	assert.Zero(t, outcome.RefundCents)
	assert.Equal(t, int64(500), outcome.FeeCents)

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, 1, gw.sessions, "the fee is issued as a fresh charge")
}

func TestCancelIsNotRepeatable(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24})
	sched := seedSchedule(t, db, 5, 0, 48*time.Hour)
	u := seedUser(t, db, "repeat")

	b, err := svc.Reserve(ReserveRequest{ScheduleID: sched.ID, UserID: &u.ID, CreatedBy: "test"})
	require.NoError(t, err)

	_, err = svc.Cancel(b.ID, "test")
	require.NoError(t, err)

	_, err = svc.Cancel(b.ID, "test")
	assert.ErrorIs(t, err, ErrNotCancelable)
}

func TestRescheduleRejectsDifferentClass(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24})
	source := seedSchedule(t, db, 5, 0, 48*time.Hour)
	target := seedSchedule(t, db, 5, 0, 72*time.Hour) // different class template
	u := seedUser(t, db, "move")

	b, err := svc.Reserve(ReserveRequest{ScheduleID: source.ID, UserID: &u.ID, CreatedBy: "test"})
	require.NoError(t, err)

	_, err = svc.Reschedule(b.ID, target.ID, "test")
	assert.ErrorIs(t, err, ErrClassMismatch)
}

func TestRescheduleMovesSeatWithinClass(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24})
	source := seedSchedule(t, db, 5, 0, 48*time.Hour)

	start := time.Now().UTC().Add(72 * time.Hour)
	target := scheduleModel.Schedule{
		ClassID:   source.ClassID,
		StartAt:   start,
		EndAt:     start.Add(time.Hour),
		Capacity:  1,
		Currency:  "USD",
		Status:    scheduleModel.StatusActive,
		CreatedBy: "test",
	}
	require.NoError(t, db.Create(&target).Error)

	u := seedUser(t, db, "within")
	b, err := svc.Reserve(ReserveRequest{ScheduleID: source.ID, UserID: &u.ID, CreatedBy: "test"})
	require.NoError(t, err)

	moved, err := svc.Reschedule(b.ID, target.ID, "test")
	require.NoError(t, err)
	assert.Equal(t, target.ID, moved.ScheduleID)

	// The target is now full for anyone else.
	other := seedUser(t, db, "blocked")
	_, err = svc.Reserve(ReserveRequest{ScheduleID: target.ID, UserID: &other.ID, CreatedBy: "test"})
	assert.ErrorIs(t, err, ErrSlotFull)
}

func TestMarkAttendanceNoShowDeductsCreditAndFee(t *testing.T) {
	db := testDB(t)
	svc, gw := newTestService(t, db, policy.Config{
		WindowHours:         24,
		NoShowFeeCents:      1500,
		NoShowDeductsCredit: true,
	})
	sched := seedSchedule(t, db, 5, 0, -time.Hour)
	u := seedUser(t, db, "noshow")
	require.NoError(t, db.Create(&creditModel.CreditBalance{UserID: u.ID, Remaining: 2}).Error)

	b, err := svc.Reserve(ReserveRequest{ScheduleID: sched.ID, UserID: &u.ID, CreatedBy: "test"})
	require.NoError(t, err)
	require.Equal(t, bookingModel.BookingStatusConfirmed, b.Status)

	outcome, err := svc.MarkAttendance(b.ID, bookingModel.AttendanceNoShow, "front-desk")
	require.NoError(t, err)
	assert.Zero(t, outcome.RefundCents)
	assert.True(t, outcome.CreditDeducted)
	assert.Equal(t, int64(1500), outcome.FeeCents)

	balance, err := creditService.NewStore(db).Balance(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance)

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, 1, gw.sessions)
}

func TestCancelAllForScheduleMakesCustomersWhole(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24, LateCancelFeeCents: 500})
	sched := seedSchedule(t, db, 5, 0, time.Hour) // inside the window
	a := seedUser(t, db, "bulk-a")
	b := seedUser(t, db, "bulk-b")

	_, err := svc.Reserve(ReserveRequest{ScheduleID: sched.ID, UserID: &a.ID, CreatedBy: "test"})
	require.NoError(t, err)
	_, err = svc.Reserve(ReserveRequest{ScheduleID: sched.ID, UserID: &b.ID, CreatedBy: "test"})
	require.NoError(t, err)

	canceled, err := svc.CancelAllForSchedule(sched.ID, "instructor sick", false, "front-desk")
	require.NoError(t, err)
	assert.Equal(t, 2, canceled)

	var held int64
	require.NoError(t, db.Model(&bookingModel.Booking{}).
		Where("schedule_id = ? AND status IN ?", sched.ID, bookingModel.SeatHoldingStatuses()).
		Count(&held).Error)
	assert.Zero(t, held)
}

func TestCompleteSweepClosesPastConfirmedBookings(t *testing.T) {
	db := testDB(t)
	svc, _ := newTestService(t, db, policy.Config{WindowHours: 24})
	sched := seedSchedule(t, db, 5, 0, -3*time.Hour)
	u := seedUser(t, db, "done")

	b, err := svc.Reserve(ReserveRequest{ScheduleID: sched.ID, UserID: &u.ID, CreatedBy: "test"})
	require.NoError(t, err)

	n, err := svc.CompleteSweep(time.Now().UTC())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	var closed bookingModel.Booking
	require.NoError(t, db.First(&closed, b.ID).Error)
	assert.Equal(t, bookingModel.BookingStatusCompleted, closed.Status)
}
