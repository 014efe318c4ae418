package generator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"classflow/httpServices/calendar"
	"classflow/logger"
	bookingModel "classflow/models/booking"
	classModel "classflow/models/class"
	locationModel "classflow/models/location"
	scheduleModel "classflow/models/schedule"
	"classflow/services/timezone"
	scheduleTypes "classflow/types/schedule"

	"github.com/jinzhu/now"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrConflict means the instructor or resource is already booked for an
	// overlapping active schedule.
	ErrConflict = errors.New("schedule conflict")
	// ErrValidation covers malformed dates, times and picks.
	ErrValidation = errors.New("invalid schedule request")
	// ErrHasBookings blocks deletion of a schedule that still holds seats.
	ErrHasBookings = errors.New("schedule has active bookings")
)

// Service expands recurrence requests into concrete schedules and owns the
// conflict checks for schedule create and edit.
type Service struct {
	DB       *gorm.DB
	Calendar *calendar.Client
}

func NewService(db *gorm.DB, cal *calendar.Client) *Service {
	return &Service{DB: db, Calendar: cal}
}

// occurrence is one expanded slot before insertion.
type occurrence struct {
	Date    string
	StartAt time.Time
	EndAt   time.Time
}

// parseLocalTime splits "HH:MM".
func parseLocalTime(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: local time must be HH:MM, got %q", ErrValidation, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: bad hour in %q", ErrValidation, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute in %q", ErrValidation, s)
	}
	return hour, minute, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", ErrValidation, s)
	}
	return d, nil
}

// expandOccurrences walks every calendar date from start to end inclusive
// and emits one occurrence per matching weekday pick, with both instants in
// canonical UTC. DST is handled by resolving each date's local civil time
// through the zone in force on that date.
func expandOccurrences(start, end time.Time, picks []scheduleTypes.Pick, durationMinutes int, zone string) ([]occurrence, error) {
	byWeekday := make(map[time.Weekday][]scheduleTypes.Pick)
	for _, p := range picks {
		if p.Weekday < 0 || p.Weekday > 6 {
			return nil, fmt.Errorf("%w: weekday out of range: %d", ErrValidation, p.Weekday)
		}
		byWeekday[time.Weekday(p.Weekday)] = append(byWeekday[time.Weekday(p.Weekday)], p)
	}

	var out []occurrence
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, pick := range byWeekday[d.Weekday()] {
			hour, minute, err := parseLocalTime(pick.LocalTime)
			if err != nil {
				return nil, err
			}
			startAt, err := timezone.ToCanonical(d.Year(), d.Month(), d.Day(), hour, minute, zone)
			if err != nil {
				return nil, err
			}
			out = append(out, occurrence{
				Date:    d.Format("2006-01-02"),
				StartAt: startAt,
				EndAt:   startAt.Add(time.Duration(durationMinutes) * time.Minute),
			})
		}
	}
	return out, nil
}

// Advisory lock namespaces for serializing conflict checks per assignee.
const (
	lockClassInstructor = 1
	lockClassResource   = 2
)

// lockAssignees takes transaction-scoped advisory locks on the instructor
// and resource being scheduled. The overlap check is a count-then-insert:
// without a row to lock before the insert exists, two concurrent creates
// for the same assignee would both see zero overlaps and both commit.
// Lock order is fixed (instructor, then resource) so concurrent callers
// cannot deadlock.
func (s *Service) lockAssignees(tx *gorm.DB, instructorID, resourceID *uint) error {
	if instructorID != nil {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?, ?)", lockClassInstructor, int64(*instructorID)).Error; err != nil {
			return err
		}
	}
	if resourceID != nil {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?, ?)", lockClassResource, int64(*resourceID)).Error; err != nil {
			return err
		}
	}
	return nil
}

// hasOverlap checks active schedules on the given column (instructor_id or
// resource_id) for an intersecting [start,end) interval.
func (s *Service) hasOverlap(tx *gorm.DB, column string, id uint, startAt, endAt time.Time, excludeID uint) (bool, error) {
	q := tx.Model(&scheduleModel.Schedule{}).
		Where(column+" = ? AND status = ? AND start_at < ? AND end_at > ?",
			id, scheduleModel.StatusActive, endAt, startAt)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// conflictReason returns a non-empty reason when the slot cannot be placed.
func (s *Service) conflictReason(tx *gorm.DB, instructorID, resourceID *uint, startAt, endAt time.Time, excludeID uint) (string, error) {
	if instructorID != nil {
		overlap, err := s.hasOverlap(tx, "instructor_id", *instructorID, startAt, endAt, excludeID)
		if err != nil {
			return "", err
		}
		if overlap {
			return "instructor already booked", nil
		}
	}
	if resourceID != nil {
		overlap, err := s.hasOverlap(tx, "resource_id", *resourceID, startAt, endAt, excludeID)
		if err != nil {
			return "", err
		}
		if overlap {
			return "resource already booked", nil
		}
	}
	return "", nil
}

// resolveContext loads the class template and the effective timezone.
func (s *Service) resolveContext(classID uint, locationID *uint) (*classModel.Class, *locationModel.Location, string, error) {
	var cls classModel.Class
	if err := s.DB.First(&cls, classID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, "", fmt.Errorf("%w: class %d not found", ErrValidation, classID)
		}
		return nil, nil, "", err
	}

	var loc *locationModel.Location
	if locationID != nil {
		var l locationModel.Location
		if err := s.DB.First(&l, *locationID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, nil, "", fmt.Errorf("%w: location %d not found", ErrValidation, *locationID)
			}
			return nil, nil, "", err
		}
		loc = &l
	}

	return &cls, loc, timezone.EffectiveZone(loc), nil
}

// Generate expands a recurrence request into schedules. Conflicting dates
// are skipped with a reason, never aborting the batch. Calendar sync per
// created schedule is best-effort.
func (s *Service) Generate(req scheduleTypes.BulkCreateRequest, createdBy string) (*scheduleTypes.BulkCreateResult, error) {
	cls, _, zone, err := s.resolveContext(req.ClassID, req.LocationID)
	if err != nil {
		return nil, err
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	end := now.With(start).EndOfMonth()
	if req.EndDate != "" {
		if end, err = parseDate(req.EndDate); err != nil {
			return nil, err
		}
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date before start date", ErrValidation)
	}

	occurrences, err := expandOccurrences(start, end, req.Picks, cls.DurationMinutes, zone)
	if err != nil {
		return nil, err
	}

	capacity := cls.DefaultCapacity
	if req.Capacity != nil {
		capacity = *req.Capacity
	}
	price := cls.DefaultPrice
	if req.PriceCents != nil {
		price = *req.PriceCents
	}

	result := &scheduleTypes.BulkCreateResult{Created: []uint{}, Skipped: []scheduleTypes.SkippedOccurrence{}}
	for _, occ := range occurrences {
		var created *scheduleModel.Schedule
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			if err := s.lockAssignees(tx, req.InstructorID, req.ResourceID); err != nil {
				return err
			}
			reason, err := s.conflictReason(tx, req.InstructorID, req.ResourceID, occ.StartAt, occ.EndAt, 0)
			if err != nil {
				return err
			}
			if reason != "" {
				result.Skipped = append(result.Skipped, scheduleTypes.SkippedOccurrence{Date: occ.Date, Reason: reason})
				return nil
			}

			sched := scheduleModel.Schedule{
				ClassID:      req.ClassID,
				InstructorID: req.InstructorID,
				LocationID:   req.LocationID,
				ResourceID:   req.ResourceID,
				StartAt:      occ.StartAt,
				EndAt:        occ.EndAt,
				Capacity:     capacity,
				PriceCents:   price,
				Currency:     cls.Currency,
				IsPrivate:    req.IsPrivate,
				Status:       scheduleModel.StatusActive,
				CreatedBy:    createdBy,
			}
			if err := tx.Create(&sched).Error; err != nil {
				return err
			}
			created = &sched
			result.Created = append(result.Created, sched.ID)
			return nil
		})
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to insert occurrence on %s", occ.Date), err)
			result.Skipped = append(result.Skipped, scheduleTypes.SkippedOccurrence{Date: occ.Date, Reason: "database error"})
			continue
		}
		if created != nil {
			s.syncCalendar(created, cls.Name)
		}
	}

	logger.Success(fmt.Sprintf("Recurrence expansion for class %d: %d created, %d skipped",
		req.ClassID, len(result.Created), len(result.Skipped)))
	return result, nil
}

// CreateSingle creates one schedule and fails the whole request with
// ErrConflict when the slot is blocked, unlike the bulk path which skips.
func (s *Service) CreateSingle(req scheduleTypes.CreateRequest, createdBy string) (*scheduleModel.Schedule, error) {
	cls, _, zone, err := s.resolveContext(req.ClassID, req.LocationID)
	if err != nil {
		return nil, err
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	hour, minute, err := parseLocalTime(req.LocalTime)
	if err != nil {
		return nil, err
	}
	startAt, err := timezone.ToCanonical(date.Year(), date.Month(), date.Day(), hour, minute, zone)
	if err != nil {
		return nil, err
	}
	endAt := startAt.Add(time.Duration(cls.DurationMinutes) * time.Minute)

	capacity := cls.DefaultCapacity
	if req.Capacity != nil {
		capacity = *req.Capacity
	}
	price := cls.DefaultPrice
	if req.PriceCents != nil {
		price = *req.PriceCents
	}

	var sched scheduleModel.Schedule
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.lockAssignees(tx, req.InstructorID, req.ResourceID); err != nil {
			return err
		}
		reason, err := s.conflictReason(tx, req.InstructorID, req.ResourceID, startAt, endAt, 0)
		if err != nil {
			return err
		}
		if reason != "" {
			return fmt.Errorf("%w: %s", ErrConflict, reason)
		}

		sched = scheduleModel.Schedule{
			ClassID:      req.ClassID,
			InstructorID: req.InstructorID,
			LocationID:   req.LocationID,
			ResourceID:   req.ResourceID,
			StartAt:      startAt,
			EndAt:        endAt,
			Capacity:     capacity,
			PriceCents:   price,
			Currency:     cls.Currency,
			IsPrivate:    req.IsPrivate,
			Status:       scheduleModel.StatusActive,
			CreatedBy:    createdBy,
		}
		return tx.Create(&sched).Error
	})
	if err != nil {
		return nil, err
	}

	s.syncCalendar(&sched, cls.Name)
	return &sched, nil
}

// Update applies a conflict-checked edit (time, staff, location, resource,
// capacity, price). The schedule row stays locked for the whole edit so a
// capacity change is checked against the seat-holding count the same way
// reservations check it.
func (s *Service) Update(scheduleID uint, req scheduleTypes.UpdateRequest, updatedBy string) (*scheduleModel.Schedule, error) {
	var sched scheduleModel.Schedule
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sched, scheduleID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: schedule %d not found", ErrValidation, scheduleID)
			}
			return err
		}
		var cls classModel.Class
		if err := tx.First(&cls, sched.ClassID).Error; err != nil {
			return err
		}
		sched.Class = cls

		if req.InstructorID != nil {
			sched.InstructorID = req.InstructorID
		}
		if req.LocationID != nil {
			sched.LocationID = req.LocationID
		}
		if req.ResourceID != nil {
			sched.ResourceID = req.ResourceID
		}
		if req.Capacity != nil {
			var held int64
			if err := tx.Model(&bookingModel.Booking{}).
				Where("schedule_id = ? AND status IN ?", sched.ID, bookingModel.SeatHoldingStatuses()).
				Count(&held).Error; err != nil {
				return err
			}
			if int64(*req.Capacity) < held {
				return fmt.Errorf("%w: capacity %d is below the %d seats already held", ErrConflict, *req.Capacity, held)
			}
			sched.Capacity = *req.Capacity
		}
		if req.PriceCents != nil {
			sched.PriceCents = *req.PriceCents
		}
		if req.IsPrivate != nil {
			sched.IsPrivate = *req.IsPrivate
		}

		if req.Date != "" || req.LocalTime != "" {
			var loc *locationModel.Location
			if sched.LocationID != nil {
				var l locationModel.Location
				if err := tx.First(&l, *sched.LocationID).Error; err != nil {
					if err == gorm.ErrRecordNotFound {
						return fmt.Errorf("%w: location %d not found", ErrValidation, *sched.LocationID)
					}
					return err
				}
				loc = &l
			}
			zone := timezone.EffectiveZone(loc)
			local, err := timezone.ToLocal(sched.StartAt, zone)
			if err != nil {
				return err
			}
			dateStr := local.Format("2006-01-02")
			timeStr := local.Format("15:04")
			if req.Date != "" {
				dateStr = req.Date
			}
			if req.LocalTime != "" {
				timeStr = req.LocalTime
			}
			date, err := parseDate(dateStr)
			if err != nil {
				return err
			}
			hour, minute, err := parseLocalTime(timeStr)
			if err != nil {
				return err
			}
			startAt, err := timezone.ToCanonical(date.Year(), date.Month(), date.Day(), hour, minute, zone)
			if err != nil {
				return err
			}
			sched.StartAt = startAt
			sched.EndAt = startAt.Add(time.Duration(cls.DurationMinutes) * time.Minute)
		}

		sched.UpdatedBy = updatedBy

		if err := s.lockAssignees(tx, sched.InstructorID, sched.ResourceID); err != nil {
			return err
		}
		reason, err := s.conflictReason(tx, sched.InstructorID, sched.ResourceID, sched.StartAt, sched.EndAt, sched.ID)
		if err != nil {
			return err
		}
		if reason != "" {
			return fmt.Errorf("%w: %s", ErrConflict, reason)
		}
		return tx.Omit(clause.Associations).Save(&sched).Error
	})
	if err != nil {
		return nil, err
	}

	s.syncCalendar(&sched, sched.Class.Name)
	return &sched, nil
}

// Delete removes a schedule outright. Blocked while any booking still holds
// a seat; cancelled schedules with booking history stay as status rows.
func (s *Service) Delete(scheduleID uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var sched scheduleModel.Schedule
		if err := tx.First(&sched, scheduleID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: schedule %d not found", ErrValidation, scheduleID)
			}
			return err
		}

		var count int64
		err := tx.Model(&bookingModel.Booking{}).
			Where("schedule_id = ? AND status IN ?", scheduleID, bookingModel.SeatHoldingStatuses()).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrHasBookings
		}

		return tx.Delete(&sched).Error
	})
}

// CancelSchedule flips the schedule to cancelled. Bookings against it are
// bulk-cancelled by the ledger; the caller orchestrates both steps.
func (s *Service) CancelSchedule(scheduleID uint, updatedBy string) (*scheduleModel.Schedule, error) {
	var sched scheduleModel.Schedule
	if err := s.DB.First(&sched, scheduleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: schedule %d not found", ErrValidation, scheduleID)
		}
		return nil, err
	}
	if sched.Status == scheduleModel.StatusCancelled {
		return &sched, nil
	}

	sched.Status = scheduleModel.StatusCancelled
	sched.UpdatedBy = updatedBy
	if err := s.DB.Save(&sched).Error; err != nil {
		return nil, err
	}
	return &sched, nil
}

// List returns active schedules matching the public query filters.
func (s *Service) List(q scheduleTypes.ListQuery) ([]scheduleModel.Schedule, error) {
	query := s.DB.Preload("Class").Preload("Location").
		Where("status = ?", scheduleModel.StatusActive)

	if q.ClassID != 0 {
		query = query.Where("class_id = ?", q.ClassID)
	}
	if q.LocationID != 0 {
		query = query.Where("location_id = ?", q.LocationID)
	}
	if q.InstructorID != 0 {
		query = query.Where("instructor_id = ?", q.InstructorID)
	}
	if q.DateFrom != "" {
		from, err := parseDate(q.DateFrom)
		if err != nil {
			return nil, err
		}
		query = query.Where("start_at >= ?", from)
	}
	if q.DateTo != "" {
		to, err := parseDate(q.DateTo)
		if err != nil {
			return nil, err
		}
		query = query.Where("start_at < ?", to.AddDate(0, 0, 1))
	}

	var schedules []scheduleModel.Schedule
	if err := query.Order("start_at ASC").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (s *Service) syncCalendar(sched *scheduleModel.Schedule, title string) {
	if s.Calendar == nil {
		return
	}
	s.Calendar.UpsertAsync(calendar.UpsertPayload{
		ScheduleID: sched.ID,
		Title:      title,
		StartAt:    sched.StartAt,
		EndAt:      sched.EndAt,
	})
}
