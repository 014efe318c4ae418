package schedule

// Pick selects one weekday+time slot of a recurrence request. LocalTime is
// "HH:MM" in the location's zone; Weekday follows time.Weekday numbering
// (0 = Sunday).
type Pick struct {
	Weekday   int    `json:"weekday" validate:"min=0,max=6"`
	LocalTime string `json:"local_time" validate:"required"`
}

// CreateRequest is the body of POST /api/admin/schedules (single occurrence).
type CreateRequest struct {
	ClassID      uint   `json:"class_id" validate:"required"`
	InstructorID *uint  `json:"instructor_id"`
	LocationID   *uint  `json:"location_id"`
	ResourceID   *uint  `json:"resource_id"`
	Date         string `json:"date" validate:"required"`       // YYYY-MM-DD
	LocalTime    string `json:"local_time" validate:"required"` // HH:MM
	Capacity     *int   `json:"capacity" validate:"omitempty,min=1"`
	PriceCents   *int64 `json:"price_cents" validate:"omitempty,min=0"`
	IsPrivate    bool   `json:"is_private"`
}

// BulkCreateRequest is the body of POST /api/admin/schedules/bulk. EndDate
// defaults to the end of StartDate's month.
type BulkCreateRequest struct {
	ClassID      uint   `json:"class_id" validate:"required"`
	InstructorID *uint  `json:"instructor_id"`
	LocationID   *uint  `json:"location_id"`
	ResourceID   *uint  `json:"resource_id"`
	StartDate    string `json:"start_date" validate:"required"` // YYYY-MM-DD
	EndDate      string `json:"end_date"`                       // YYYY-MM-DD, optional
	Picks        []Pick `json:"picks" validate:"required,min=1,dive"`
	Capacity     *int   `json:"capacity" validate:"omitempty,min=1"`
	PriceCents   *int64 `json:"price_cents" validate:"omitempty,min=0"`
	IsPrivate    bool   `json:"is_private"`
}

// UpdateRequest is the body of PUT /api/admin/schedules/:id.
type UpdateRequest struct {
	InstructorID *uint  `json:"instructor_id"`
	LocationID   *uint  `json:"location_id"`
	ResourceID   *uint  `json:"resource_id"`
	Date         string `json:"date"`       // YYYY-MM-DD, optional
	LocalTime    string `json:"local_time"` // HH:MM, optional
	Capacity     *int   `json:"capacity" validate:"omitempty,min=1"`
	PriceCents   *int64 `json:"price_cents" validate:"omitempty,min=0"`
	IsPrivate    *bool  `json:"is_private"`
}

// SkippedOccurrence reports one recurrence date the generator refused.
type SkippedOccurrence struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// BulkCreateResult is the outcome of a recurrence expansion. Conflicts are
// accumulated here, never abort the whole batch.
type BulkCreateResult struct {
	Created []uint              `json:"created"`
	Skipped []SkippedOccurrence `json:"skipped"`
}

// ListQuery holds the filters of GET /api/schedules.
type ListQuery struct {
	ClassID      uint   `query:"class_id"`
	LocationID   uint   `query:"location_id"`
	InstructorID uint   `query:"instructor_id"`
	DateFrom     string `query:"date_from"`
	DateTo       string `query:"date_to"`
}
