package schedule

import (
	"time"

	classModel "classflow/models/class"
	locationModel "classflow/models/location"
	resourceModel "classflow/models/resource"
	userModel "classflow/models/user"
)

// Schedule represents one concrete bookable time slot derived from a class
// template. StartAt/EndAt are always stored in UTC; local civil times only
// exist at the edges, resolved through the location's timezone.
type Schedule struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// Foreign key for class relationship
	ClassID uint             `gorm:"not null;index" json:"class_id"`
	Class   classModel.Class `gorm:"foreignKey:ClassID" json:"class"`

	InstructorID *uint           `gorm:"index" json:"instructor_id,omitempty"`
	Instructor   *userModel.User `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`

	LocationID *uint                   `gorm:"index" json:"location_id,omitempty"`
	Location   *locationModel.Location `gorm:"foreignKey:LocationID" json:"location,omitempty"`

	ResourceID *uint                   `gorm:"index" json:"resource_id,omitempty"`
	Resource   *resourceModel.Resource `gorm:"foreignKey:ResourceID" json:"resource,omitempty"`

	StartAt    time.Time      `gorm:"not null;index" json:"start_at"`
	EndAt      time.Time      `gorm:"not null" json:"end_at"`
	Capacity   int            `gorm:"not null" json:"capacity"`
	PriceCents int64          `gorm:"not null;default:0" json:"price_cents"`
	Currency   string         `gorm:"type:varchar(3);not null;default:USD" json:"currency"`
	IsPrivate  bool           `gorm:"default:false" json:"is_private"`
	Status     ScheduleStatus `gorm:"type:varchar(20);not null;default:active;index" json:"status"`

	CreatedBy string     `gorm:"type:varchar(255);not null" json:"created_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedBy string     `gorm:"type:varchar(255)" json:"updated_by,omitempty"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// Overlaps reports whether the [start,end) interval of this schedule
// intersects the given interval.
func (s *Schedule) Overlaps(start, end time.Time) bool {
	return s.StartAt.Before(end) && s.EndAt.After(start)
}
