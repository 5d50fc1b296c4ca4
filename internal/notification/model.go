package notification

import (
	"time"

	"waste_portal_backend/internal/common"

	"github.com/google/uuid"
)

// Type defines the kind of notification.
type Type string

const (
	TypeCollection Type = "collection"
	TypeReport     Type = "report"
	TypeSystem     Type = "system"
)

// Notification is addressed either to one profile (ForUserID) or to everyone (ForAll).
// For direct rows IsRead/ReadAt hold the recipient's read state. Broadcast rows keep
// per-viewer state in Read receipts; ListForUser copies the viewer's receipt onto
// the returned struct.
type Notification struct {
	common.BaseModel
	Title             string     `gorm:"type:varchar(200);not null" json:"title"`
	Message           string     `gorm:"type:text;not null" json:"message"`
	Type              Type       `gorm:"type:varchar(20);not null;index" json:"type"`
	ForUserID         *uuid.UUID `gorm:"type:uuid;index" json:"for_user_id,omitempty"`
	ForAll            bool       `gorm:"not null;index" json:"for_all"`
	CreatedBy         *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	IsRead            bool       `gorm:"column:is_read;not null" json:"read"`
	ReadAt            *time.Time `json:"read_at,omitempty"`
	DedupKey          *string    `gorm:"type:varchar(200);uniqueIndex" json:"-"`
	RelatedReportID   *uuid.UUID `gorm:"type:uuid;index" json:"related_report_id,omitempty"`
	RelatedScheduleID *uuid.UUID `gorm:"type:uuid" json:"related_schedule_id,omitempty"`
}

// TableName specifies the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}

// Targets reports whether the notification is addressed to userID.
func (n *Notification) Targets(userID uuid.UUID) bool {
	return n.ForAll || (n.ForUserID != nil && *n.ForUserID == userID)
}

// Read is a per-viewer read receipt for a broadcast notification.
type Read struct {
	NotificationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	ReadAt         time.Time `gorm:"not null"`
}

func (Read) TableName() string {
	return "notification_reads"
}

// CreateInput is the internal creation payload used by other modules and jobs.
type CreateInput struct {
	Title             string
	Message           string
	Type              Type
	ForUserID         *uuid.UUID
	ForAll            bool
	CreatedBy         *uuid.UUID
	DedupKey          *string
	RelatedReportID   *uuid.UUID
	RelatedScheduleID *uuid.UUID
}

// CreateNotificationRequest is the staff API payload. Exactly one of
// for_user_id and for_all must be set.
type CreateNotificationRequest struct {
	Title     string     `json:"title" binding:"required,min=2,max=200"`
	Message   string     `json:"message" binding:"required,max=2000"`
	Type      Type       `json:"type" binding:"omitempty,oneof=collection report system"`
	ForUserID *uuid.UUID `json:"for_user_id"`
	ForAll    bool       `json:"for_all"`
}

// SummaryRequest carries ids the client already marked read locally.
type SummaryRequest struct {
	LocalReadIDs []uuid.UUID `json:"local_read_ids" binding:"max=500"`
}

// Summary is the badge state for one viewer.
type Summary struct {
	UnreadCount        int  `json:"unread_count"`
	HasCollectionToday bool `json:"has_collection_today"`
}

// ReportFiled describes a newly created report for the broadcast notification.
type ReportFiled struct {
	ReportID uuid.UUID
	OwnerID  uuid.UUID
	Title    string
	Category string
	Location string
}

// ReportStatusChanged describes a status update for the owner's notification.
type ReportStatusChanged struct {
	ReportID  uuid.UUID
	OwnerID   uuid.UUID
	Title     string
	Status    string
	ChangedBy uuid.UUID
}
