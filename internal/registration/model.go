// File: internal/registration/model.go
package registration

import (
	"time"

	"waste_portal_backend/internal/common"

	"github.com/google/uuid"
)

// Channel is how the verification code reaches the person signing up.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

// State of a pending registration.
type State string

const (
	StateAwaitingCode State = "awaiting_code"
	StateVerifying    State = "verifying"
	StateVerified     State = "verified"
	StateFailed       State = "failed"
	StateCompleted    State = "completed"
	StateExpired      State = "expired"
)

// OpenStates are the states a registration can still make progress from.
var OpenStates = []State{StateAwaitingCode, StateVerifying, StateVerified}

var transitions = map[State][]State{
	StateAwaitingCode: {StateVerifying, StateExpired},
	StateVerifying:    {StateVerified, StateAwaitingCode, StateFailed, StateExpired},
	StateVerified:     {StateCompleted, StateFailed},
}

// CanTransition reports whether a registration may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal is true for completed, failed and expired.
func (s State) IsTerminal() bool {
	_, ok := transitions[s]
	return !ok
}

// Failure reasons recorded on failed or expired rows.
const (
	ReasonTooManyAttempts = "too_many_attempts"
	ReasonDuplicate       = "duplicate_identifier"
	ReasonTimedOut        = "timed_out"
	ReasonReplaced        = "replaced"
)

// PendingRegistration is a signup that has not yet produced a profile.
type PendingRegistration struct {
	common.BaseModel
	Channel       Channel    `gorm:"type:varchar(10);not null;index:idx_pending_identity,priority:1" json:"channel"`
	Identifier    string     `gorm:"type:varchar(255);not null;index:idx_pending_identity,priority:2" json:"identifier"`
	Name          string     `gorm:"type:varchar(150);not null" json:"name"`
	Role          string     `gorm:"type:varchar(20);not null" json:"role"`
	Area          string     `gorm:"type:varchar(150)" json:"area"`
	PasswordHash  string     `gorm:"type:varchar(255);not null" json:"-"`
	CodeHash      string     `gorm:"type:varchar(255);not null" json:"-"`
	State         State      `gorm:"type:varchar(20);not null;index" json:"state"`
	Attempts      int        `gorm:"not null" json:"attempts"`
	LastSentAt    time.Time  `gorm:"not null" json:"last_sent_at"`
	CodeExpiresAt time.Time  `gorm:"not null" json:"code_expires_at"`
	ExpiresAt     time.Time  `gorm:"not null;index" json:"expires_at"`
	ProfileID     *uuid.UUID `gorm:"type:uuid" json:"profile_id,omitempty"`
	FailureReason string     `gorm:"type:varchar(50)" json:"failure_reason,omitempty"`
}

// TableName specifies the table name for the PendingRegistration model.
func (PendingRegistration) TableName() string {
	return "pending_registrations"
}

// ResendAvailableIn returns how long until another code may be sent.
func (r *PendingRegistration) ResendAvailableIn(now time.Time, cooldown time.Duration) time.Duration {
	wait := r.LastSentAt.Add(cooldown).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// PendingResponse is returned once a code has been sent.
type PendingResponse struct {
	RegistrationID     uuid.UUID `json:"registration_id"`
	Channel            Channel   `json:"channel"`
	Identifier         string    `json:"identifier"`
	State              State     `json:"state"`
	CodeExpiresAt      time.Time `json:"code_expires_at"`
	ResendAfterSeconds int       `json:"resend_after_seconds"`
}

// ToPendingResponse converts a registration into the public view.
func ToPendingResponse(r *PendingRegistration, now time.Time, cooldown time.Duration) PendingResponse {
	return PendingResponse{
		RegistrationID:     r.ID,
		Channel:            r.Channel,
		Identifier:         r.Identifier,
		State:              r.State,
		CodeExpiresAt:      r.CodeExpiresAt,
		ResendAfterSeconds: int(r.ResendAvailableIn(now, cooldown).Round(time.Second) / time.Second),
	}
}
