package generator

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	bookingModel "classflow/models/booking"
	classModel "classflow/models/class"
	scheduleModel "classflow/models/schedule"
	userModel "classflow/models/user"
	scheduleTypes "classflow/types/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

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
		&bookingModel.Booking{},
	))
	return db
}

func seedClass(t *testing.T, db *gorm.DB) *classModel.Class {
	t.Helper()
	cls := classModel.Class{
		Name:            "Test Class",
		DurationMinutes: 60,
		DefaultCapacity: 10,
		Currency:        "USD",
		IsActive:        true,
	}
	require.NoError(t, db.Create(&cls).Error)
	return &cls
}

func seedInstructor(t *testing.T, db *gorm.DB) *userModel.User {
	t.Helper()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	email := "instructor-" + suffix + "@example.com"
	u := userModel.User{
		Uuid:      "uuid-" + suffix,
		Username:  "instructor-" + suffix,
		LegalName: "Test Instructor",
		Phone:     fmt.Sprintf("+1%d", time.Now().UnixNano()%1e10),
		Email:     &email,
	}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func seedHeldSeats(t *testing.T, db *gorm.DB, scheduleID uint, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("seat-%d-%d@example.com", scheduleID, i)
		b := bookingModel.Booking{
			ScheduleID:  scheduleID,
			GuestEmail:  &email,
			Status:      bookingModel.BookingStatusConfirmed,
			Attendance:  bookingModel.AttendanceNone,
			PaymentMode: bookingModel.PaymentModeFree,
			Currency:    "USD",
			CreatedBy:   "test",
		}
		require.NoError(t, db.Create(&b).Error)
	}
}

func TestUpdateRejectsCapacityBelowHeldSeats(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, nil)
	cls := seedClass(t, db)

	start := time.Now().UTC().Add(48 * time.Hour)
	sched := scheduleModel.Schedule{
		ClassID:   cls.ID,
		StartAt:   start,
		EndAt:     start.Add(time.Hour),
		Capacity:  3,
		Currency:  "USD",
		Status:    scheduleModel.StatusActive,
		CreatedBy: "test",
	}
	require.NoError(t, db.Create(&sched).Error)
	seedHeldSeats(t, db, sched.ID, 2)

	one := 1
	_, err := svc.Update(sched.ID, scheduleTypes.UpdateRequest{Capacity: &one}, "test")
	require.ErrorIs(t, err, ErrConflict)

	var unchanged scheduleModel.Schedule
	require.NoError(t, db.First(&unchanged, sched.ID).Error)
	assert.Equal(t, 3, unchanged.Capacity, "a rejected edit leaves the schedule untouched")

	two := 2
	updated, err := svc.Update(sched.ID, scheduleTypes.UpdateRequest{Capacity: &two}, "test")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Capacity, "shrinking down to the held count is allowed")
}

func TestConcurrentCreateSingleSameInstructor(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, nil)
	cls := seedClass(t, db)
	instructor := seedInstructor(t, db)

	date := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	req := func() error {
		_, err := svc.CreateSingle(scheduleTypes.CreateRequest{
			ClassID:      cls.ID,
			InstructorID: &instructor.ID,
			Date:         date,
			LocalTime:    "09:00",
		}, "test")
		return err
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- req()
		}()
	}
	wg.Wait()
	close(errs)

	wins, conflicts := 0, 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ErrConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, wins, "exactly one create places the slot")
	assert.Equal(t, 1, conflicts)

	var placed int64
	require.NoError(t, db.Model(&scheduleModel.Schedule{}).
		Where("instructor_id = ? AND status = ?", instructor.ID, scheduleModel.StatusActive).
		Count(&placed).Error)
	assert.Equal(t, int64(1), placed)
}

func TestConcurrentCreateSingleDisjointSlots(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, nil)
	cls := seedClass(t, db)
	instructor := seedInstructor(t, db)

	date := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	times := []string{"07:00", "12:00"}

	errs := make(chan error, len(times))
	var wg sync.WaitGroup
	for _, at := range times {
		wg.Add(1)
		go func(at string) {
			defer wg.Done()
			_, err := svc.CreateSingle(scheduleTypes.CreateRequest{
				ClassID:      cls.ID,
				InstructorID: &instructor.ID,
				Date:         date,
				LocalTime:    at,
			}, "test")
			errs <- err
		}(at)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err, "non-overlapping slots for the same instructor both place")
	}
}
