package schedule

// ScheduleStatus is the lifecycle status of a Schedule. A cancelled
// schedule is never hard-deleted once bookings exist.
type ScheduleStatus string

const (
	StatusActive    ScheduleStatus = "active"
	StatusCancelled ScheduleStatus = "cancelled"
)

func (ss ScheduleStatus) String() string {
	return string(ss)
}

func (ss ScheduleStatus) IsValid() bool {
	switch ss {
	case StatusActive, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsBookable returns true if new bookings may be taken against the schedule
func (ss ScheduleStatus) IsBookable() bool {
	return ss == StatusActive
}
