// File: internal/registration/repository.go
package registration

import (
	"context"
	"errors"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleState means another request moved the row first.
var ErrStaleState = common.ErrConflict.WithDetails("The registration changed while processing. Try again.")

// Repository persists pending registrations. Every state write is a
// compare-and-set on the current state and refuses illegal transitions.
type Repository interface {
	Create(ctx context.Context, reg *PendingRegistration) error
	FindByID(ctx context.Context, id uuid.UUID) (*PendingRegistration, error)
	FindOpen(ctx context.Context, channel Channel, identifier string) (*PendingRegistration, error)
	ExpireOpen(ctx context.Context, channel Channel, identifier, reason string) (int64, error)
	Transition(ctx context.Context, reg *PendingRegistration, to State, changes map[string]interface{}) error
	UpdateCode(ctx context.Context, reg *PendingRegistration, codeHash string, sentAt, codeExpiresAt, notSentAfter time.Time) error
	Finalize(ctx context.Context, reg *PendingRegistration, profile *user.Profile) error
	ListInState(ctx context.Context, state State, updatedBefore time.Time, limit int) ([]PendingRegistration, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]PendingRegistration, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM pending registration repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, reg *PendingRegistration) error {
	return r.db.WithContext(ctx).Create(reg).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*PendingRegistration, error) {
	var reg PendingRegistration
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Registration not found.")
		}
		return nil, err
	}
	return &reg, nil
}

// FindOpen returns the newest registration for the identifier that is not terminal.
func (r *gormRepository) FindOpen(ctx context.Context, channel Channel, identifier string) (*PendingRegistration, error) {
	var reg PendingRegistration
	err := r.db.WithContext(ctx).
		Where("channel = ? AND identifier = ? AND state IN ?", channel, identifier, OpenStates).
		Order("created_at DESC").
		First(&reg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("No pending registration for this identifier.")
		}
		return nil, err
	}
	return &reg, nil
}

// ExpireOpen closes registrations that are still waiting for a code.
// Rows already verified are left for the reconciliation job.
func (r *gormRepository) ExpireOpen(ctx context.Context, channel Channel, identifier, reason string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&PendingRegistration{}).
		Where("channel = ? AND identifier = ? AND state IN ?", channel, identifier,
			[]State{StateAwaitingCode, StateVerifying}).
		Updates(map[string]interface{}{"state": StateExpired, "failure_reason": reason})
	return result.RowsAffected, result.Error
}

func transition(tx *gorm.DB, reg *PendingRegistration, to State, changes map[string]interface{}) error {
	if !CanTransition(reg.State, to) {
		return common.ErrInvalidTransition.WithDetails(
			"Registration cannot move from " + string(reg.State) + " to " + string(to) + ".")
	}
	values := map[string]interface{}{"state": to}
	for k, v := range changes {
		values[k] = v
	}
	result := tx.Model(&PendingRegistration{}).
		Where("id = ? AND state = ?", reg.ID, reg.State).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleState
	}
	reg.State = to
	return nil
}

// Transition moves reg to the target state if nobody else moved it first.
// changes carries extra columns written in the same statement.
func (r *gormRepository) Transition(ctx context.Context, reg *PendingRegistration, to State, changes map[string]interface{}) error {
	if err := transition(r.db.WithContext(ctx), reg, to, changes); err != nil {
		return err
	}
	applyChanges(reg, changes)
	return nil
}

func applyChanges(reg *PendingRegistration, changes map[string]interface{}) {
	for k, v := range changes {
		switch k {
		case "attempts":
			if n, ok := v.(int); ok {
				reg.Attempts = n
			}
		case "failure_reason":
			if s, ok := v.(string); ok {
				reg.FailureReason = s
			}
		case "profile_id":
			if id, ok := v.(uuid.UUID); ok {
				reg.ProfileID = &id
			}
		}
	}
}

// UpdateCode stores a freshly sent code. Only rows awaiting a code whose last
// code went out no later than notSentAfter accept one, so the cooldown holds
// under concurrent resends.
func (r *gormRepository) UpdateCode(ctx context.Context, reg *PendingRegistration, codeHash string, sentAt, codeExpiresAt, notSentAfter time.Time) error {
	result := r.db.WithContext(ctx).Model(&PendingRegistration{}).
		Where("id = ? AND state = ? AND last_sent_at <= ?", reg.ID, StateAwaitingCode, notSentAfter).
		Updates(map[string]interface{}{
			"code_hash":       codeHash,
			"last_sent_at":    sentAt,
			"code_expires_at": codeExpiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleState
	}
	reg.CodeHash = codeHash
	reg.LastSentAt = sentAt
	reg.CodeExpiresAt = codeExpiresAt
	return nil
}

// Finalize commits the profile and completes the registration atomically.
// The duplicate re-check and the insert share one transaction.
func (r *gormRepository) Finalize(ctx context.Context, reg *PendingRegistration, profile *user.Profile) error {
	prior := reg.State
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profiles := user.NewGORMRepository(tx)

		var taken bool
		var err error
		switch reg.Channel {
		case ChannelEmail:
			taken, err = profiles.ExistsByEmail(ctx, reg.Identifier)
		case ChannelPhone:
			taken, err = profiles.ExistsByPhone(ctx, reg.Identifier)
		}
		if err != nil {
			return err
		}
		if taken {
			return common.ErrDuplicateIdentity
		}

		if err := profiles.Create(ctx, profile); err != nil {
			return err
		}
		return transition(tx, reg, StateCompleted, map[string]interface{}{"profile_id": profile.ID})
	})
	if err != nil {
		// The transaction rolled back, so the in-memory state does too.
		reg.State = prior
		return err
	}
	reg.State = StateCompleted
	reg.ProfileID = &profile.ID
	return nil
}

func (r *gormRepository) ListInState(ctx context.Context, state State, updatedBefore time.Time, limit int) ([]PendingRegistration, error) {
	var regs []PendingRegistration
	err := r.db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", state, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&regs).Error
	return regs, err
}

// ListExpired returns non-terminal rows whose registration window has closed.
func (r *gormRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]PendingRegistration, error) {
	var regs []PendingRegistration
	err := r.db.WithContext(ctx).
		Where("state IN ? AND expires_at < ?", []State{StateAwaitingCode, StateVerifying}, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&regs).Error
	return regs, err
}
