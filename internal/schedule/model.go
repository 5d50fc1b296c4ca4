// File: internal/schedule/model.go
package schedule

import (
	"time"

	"waste_portal_backend/internal/common"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a pickup.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// PickupSchedule is a planned waste collection for one area.
type PickupSchedule struct {
	common.BaseModel
	Area       string    `gorm:"type:varchar(150);not null"`
	AreaSlug   string    `gorm:"type:varchar(150);not null;index:idx_schedule_area_date,priority:1"`
	PickupDate time.Time `gorm:"not null;index:idx_schedule_area_date,priority:2"`
	Status     Status    `gorm:"type:varchar(20);not null;index"`
	Notes      string    `gorm:"type:text"`
	CreatedBy  uuid.UUID `gorm:"type:uuid;not null"`
}

func (PickupSchedule) TableName() string {
	return "pickup_schedules"
}

// CreateScheduleRequest defines the payload for planning a pickup.
type CreateScheduleRequest struct {
	Area       string    `json:"area" binding:"required,min=2,max=150"`
	PickupDate time.Time `json:"pickup_date" binding:"required"`
	Notes      string    `json:"notes" binding:"max=2000"`
}

// UpdateScheduleRequest edits a pickup that has not happened yet.
type UpdateScheduleRequest struct {
	Area       *string    `json:"area" binding:"omitempty,min=2,max=150"`
	PickupDate *time.Time `json:"pickup_date"`
	Notes      *string    `json:"notes" binding:"omitempty,max=2000"`
}

// ListFilter narrows ListSchedules. Upcoming lists future pickups soonest first.
type ListFilter struct {
	Area     string     `form:"area"`
	Status   string     `form:"status" binding:"omitempty,oneof=scheduled completed canceled"`
	From     *time.Time `form:"from"`
	To       *time.Time `form:"to"`
	Upcoming bool       `form:"upcoming"`
}

// ScheduleResponse is the API representation of a pickup.
type ScheduleResponse struct {
	ID         uuid.UUID `json:"id"`
	Area       string    `json:"area"`
	PickupDate time.Time `json:"pickup_date"`
	Status     Status    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedBy  uuid.UUID `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func ToScheduleResponse(s *PickupSchedule) ScheduleResponse {
	return ScheduleResponse{
		ID:         s.ID,
		Area:       s.Area,
		PickupDate: s.PickupDate,
		Status:     s.Status,
		Notes:      s.Notes,
		CreatedBy:  s.CreatedBy,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func ToScheduleResponses(items []PickupSchedule) []ScheduleResponse {
	out := make([]ScheduleResponse, len(items))
	for i := range items {
		out[i] = ToScheduleResponse(&items[i])
	}
	return out
}
