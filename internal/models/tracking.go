package models

import (
	"time"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
)

// ResponseType is the kind of answer a recurring tracker expects.
type ResponseType string

const (
	ResponseBoolean ResponseType = "boolean"
	ResponseNumber  ResponseType = "number"
	ResponseChoice  ResponseType = "choice"
)

// Recurrence is the schedule shared by trackers and consumption routines.
type Recurrence struct {
	RecurrenceType recurrence.Type `json:"recurrenceType"`
	DaysOfWeek     []int           `json:"daysOfWeek,omitempty"`
	IntervalDays   int             `json:"intervalDays,omitempty"`
}

func (r Recurrence) validate(v *apperrors.ValidationError) {
	if !r.RecurrenceType.Valid() {
		v.Add("recurrenceType", "must be one of daily, weekly, custom")
	}
	for _, d := range r.DaysOfWeek {
		if d < 0 || d > 6 {
			v.Add("daysOfWeek", "values must be between 0 and 6, got %d", d)
			break
		}
	}
	if r.IntervalDays < 0 {
		v.Add("intervalDays", "must not be negative")
	}
}

// TrackingRecurring is a habit or measure the user answers on due days.
type TrackingRecurring struct {
	Base
	Recurrence
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	ResponseType ResponseType `json:"responseType"`
	Unit         string       `json:"unit,omitempty"`
	Choices      []string     `json:"choices,omitempty"`
	IsActive     bool         `json:"isActive"`

	// Set when the tracker was generated for a consumption routine.
	RoutineID        string  `json:"routineId,omitempty"`
	RoutineProductID string  `json:"routineProductId,omitempty"`
	RoutineQuantity  float64 `json:"routineQuantity,omitempty"`
}

// TableName returns the table name for TrackingRecurring.
func (TrackingRecurring) TableName() string {
	return "tracking_recurrings"
}

// Validate checks the tracker's fields.
func (r *TrackingRecurring) Validate() error {
	v := newValidation(r)
	if r.Name == "" {
		v.Add("name", "is required")
	}
	switch r.ResponseType {
	case ResponseBoolean, ResponseNumber:
	case ResponseChoice:
		if len(r.Choices) == 0 {
			v.Add("choices", "are required for a choice tracker")
		}
	default:
		v.Add("responseType", "must be one of boolean, number, choice")
	}
	r.Recurrence.validate(v)
	validReference(v, "routineId", r.RoutineID, false)
	validReference(v, "routineProductId", r.RoutineProductID, false)
	if r.RoutineQuantity < 0 {
		v.Add("routineQuantity", "must not be negative")
	}
	return v.Err()
}

// Schedule returns the recurrence schedule, anchored on the calendar day
// the tracker was created as observed in loc.
func (r *TrackingRecurring) Schedule(loc *time.Location) recurrence.Schedule {
	return recurrence.Schedule{
		Type:         r.RecurrenceType,
		DaysOfWeek:   r.DaysOfWeek,
		IntervalDays: r.IntervalDays,
		Anchor:       recurrence.DayIn(r.CreatedAt, loc),
	}
}

// IsRoutineLinked reports whether answering the tracker consumes stock.
func (r *TrackingRecurring) IsRoutineLinked() bool {
	return r.RoutineID != "" && r.RoutineProductID != "" && r.RoutineQuantity > 0
}

// TrackingResponse is the answer to a tracker for one calendar day.
type TrackingResponse struct {
	Base
	RecurringID  string   `json:"recurringId"`
	Date         string   `json:"date"`
	ValueBoolean *bool    `json:"valueBoolean,omitempty"`
	ValueNumber  *float64 `json:"valueNumber,omitempty"`
	ValueChoice  string   `json:"valueChoice,omitempty"`
	Note         string   `json:"note,omitempty"`
}

// TableName returns the table name for TrackingResponse.
func (TrackingResponse) TableName() string {
	return "tracking_responses"
}

// Validate checks the response's fields.
func (r *TrackingResponse) Validate() error {
	v := newValidation(r)
	validReference(v, "recurringId", r.RecurringID, true)
	if _, err := recurrence.ParseDay(r.Date); err != nil {
		v.Add("date", "must be a YYYY-MM-DD day")
	}
	return v.Err()
}

// ResponseValue is the answer part of a TrackingResponse.
type ResponseValue struct {
	ValueBoolean *bool    `json:"valueBoolean,omitempty"`
	ValueNumber  *float64 `json:"valueNumber,omitempty"`
	ValueChoice  string   `json:"valueChoice,omitempty"`
	Note         string   `json:"note,omitempty"`
}

// Apply copies the value onto r.
func (val ResponseValue) Apply(r *TrackingResponse) {
	r.ValueBoolean = val.ValueBoolean
	r.ValueNumber = val.ValueNumber
	r.ValueChoice = val.ValueChoice
	r.Note = val.Note
}

// EventPriority ranks a tracking event.
type EventPriority string

const (
	PriorityLow    EventPriority = "low"
	PriorityMedium EventPriority = "medium"
	PriorityHigh   EventPriority = "high"
)

// TrackingEvent is a dated one-off occurrence.
type TrackingEvent struct {
	Base
	Title       string        `json:"title"`
	TypeID      string        `json:"typeId,omitempty"`
	EventDate   string        `json:"eventDate"`
	Priority    EventPriority `json:"priority"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	LocationLat *float64      `json:"locationLat,omitempty"`
	LocationLng *float64      `json:"locationLng,omitempty"`
	ImageIDs    []string      `json:"imageIds,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	ProjectID   string        `json:"projectId,omitempty"`
}

// TableName returns the table name for TrackingEvent.
func (TrackingEvent) TableName() string {
	return "tracking_events"
}

// Defaults fills the fields that have a default value.
func (e *TrackingEvent) Defaults() {
	if e.Priority == "" {
		e.Priority = PriorityMedium
	}
}

// Validate checks the event's fields.
func (e *TrackingEvent) Validate() error {
	v := newValidation(e)
	if e.Title == "" {
		v.Add("title", "is required")
	}
	if e.EventDate == "" {
		v.Add("eventDate", "is required")
	}
	switch e.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		v.Add("priority", "must be one of low, medium, high")
	}
	validReference(v, "typeId", e.TypeID, false)
	validReference(v, "projectId", e.ProjectID, false)
	return v.Err()
}
