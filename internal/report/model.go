// File: internal/report/model.go
package report

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"waste_portal_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Status is the lifecycle state of a report.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
)

// ParseStatus normalizes input; "completed" is accepted for resolved.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StatusPending):
		return StatusPending, true
	case string(StatusInProgress), "in_progress", "inprogress":
		return StatusInProgress, true
	case string(StatusResolved), "completed":
		return StatusResolved, true
	}
	return "", false
}

// Report is an issue filed by a resident.
type Report struct {
	common.BaseModel
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Location    string         `gorm:"type:varchar(255);not null" json:"location"`
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
	Category    string         `gorm:"type:varchar(100);not null;index" json:"category"`
	Status      Status         `gorm:"type:varchar(20);not null;index" json:"status"`
	Images      datatypes.JSON `json:"images"`
	ImageCount  int            `gorm:"not null" json:"-"`
}

// TableName specifies the table name for GORM.
func (Report) TableName() string {
	return "reports"
}

// ImageURLs decodes the stored image list.
func (r *Report) ImageURLs() []string {
	var urls []string
	if len(r.Images) == 0 {
		return []string{}
	}
	if err := json.Unmarshal(r.Images, &urls); err != nil || urls == nil {
		return []string{}
	}
	return urls
}

// SetImageURLs replaces the image list and keeps ImageCount in step.
func (r *Report) SetImageURLs(urls []string) {
	if urls == nil {
		urls = []string{}
	}
	b, _ := json.Marshal(urls)
	r.Images = datatypes.JSON(b)
	r.ImageCount = len(urls)
}

// ParseCoordinates reads "lat,lng" locations. Anything else yields no coordinates.
func ParseCoordinates(location string) (*float64, *float64) {
	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, nil
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, nil
	}
	return &lat, &lng
}

// StatusEvent records one status change.
type StatusEvent struct {
	common.BaseModel
	ReportID   uuid.UUID `gorm:"type:uuid;not null;index" json:"report_id"`
	FromStatus Status    `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   Status    `gorm:"type:varchar(20);not null" json:"to_status"`
	ChangedBy  uuid.UUID `gorm:"type:uuid;not null" json:"changed_by"`
}

func (StatusEvent) TableName() string {
	return "report_status_events"
}

// CreateReportRequest binds both JSON bodies and multipart form fields.
// Images holds data URLs; multipart uploads arrive as files under "images".
type CreateReportRequest struct {
	Title       string   `json:"title" form:"title" binding:"required,min=3,max=200"`
	Description string   `json:"description" form:"description" binding:"required,max=5000"`
	Location    string   `json:"location" form:"location" binding:"required,max=255"`
	Category    string   `json:"category" form:"category" binding:"required,max=100"`
	Images      []string `json:"images" form:"-"`
}

// AttachImagesRequest is the JSON form of an image upload.
type AttachImagesRequest struct {
	Images []string `json:"images" binding:"required,min=1"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListFilter narrows ListReports.
type ListFilter struct {
	Status   string     `form:"status"`
	Category string     `form:"category"`
	Q        string     `form:"q"`
	From     *time.Time `form:"from"`
	To       *time.Time `form:"to"`
	Sort     string     `form:"sort" binding:"omitempty,oneof=newest oldest"`
	// UserID restricts results to one owner. Set by the service for residents.
	UserID *uuid.UUID `form:"-"`
}

type ReportResponse struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Category    string    `json:"category"`
	Status      Status    `json:"status"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ToReportResponse(r *Report) ReportResponse {
	return ReportResponse{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Category:    r.Category,
		Status:      r.Status,
		Images:      r.ImageURLs(),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func ToReportResponses(reports []Report) []ReportResponse {
	out := make([]ReportResponse, 0, len(reports))
	for i := range reports {
		out = append(out, ToReportResponse(&reports[i]))
	}
	return out
}

// CategoryCount is one row of a GROUP BY category query.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// StatusCount is one row of a GROUP BY status query.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}
