// File: internal/schedule/service.go
package schedule

import (
	"context"
	"strings"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service defines pickup schedule business logic. Writes require a staff actor.
type Service interface {
	CreateSchedule(ctx context.Context, actor common.Actor, req CreateScheduleRequest) (*PickupSchedule, error)
	ListSchedules(ctx context.Context, filter ListFilter, page, pageSize int) ([]PickupSchedule, *common.Pagination, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*PickupSchedule, error)
	UpdateSchedule(ctx context.Context, actor common.Actor, id uuid.UUID, req UpdateScheduleRequest) (*PickupSchedule, error)
	CompleteSchedule(ctx context.Context, actor common.Actor, id uuid.UUID) (*PickupSchedule, error)
	CancelSchedule(ctx context.Context, actor common.Actor, id uuid.UUID) (*PickupSchedule, error)
	DeleteSchedule(ctx context.Context, actor common.Actor, id uuid.UUID) error
	FindForAreaBetween(ctx context.Context, areaSlug string, from, to time.Time) ([]PickupSchedule, error)
	FindScheduledBetween(ctx context.Context, from, to time.Time) ([]PickupSchedule, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo      Repository
	publisher realtime.Publisher
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new schedule service.
func NewService(repo Repository, publisher realtime.Publisher, cfg *config.Config, logger *zap.Logger) *ServiceImplementation {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &ServiceImplementation{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.Named("ScheduleService"),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func requireStaff(actor common.Actor) error {
	if !actor.IsStaff() {
		return common.ErrForbidden.WithDetails("Only officials and admins can manage pickup schedules.")
	}
	return nil
}

func (s *ServiceImplementation) publish(ctx context.Context, typ realtime.EventType, id uuid.UUID, action string) {
	ev := realtime.NewEvent(realtime.TableSchedules, typ, id, nil)
	ev.Action = action
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish schedule event", zap.Error(err), zap.String("scheduleID", id.String()))
	}
}

func normalizeArea(area string) (string, string, error) {
	area = strings.TrimSpace(area)
	slug := common.AreaSlug(area)
	if slug == "" {
		return "", "", common.NewValidationAPIError(map[string]string{"area": "Area must contain letters or digits."})
	}
	return area, slug, nil
}

// CreateSchedule plans a new pickup.
func (s *ServiceImplementation) CreateSchedule(ctx context.Context, actor common.Actor, req CreateScheduleRequest) (*PickupSchedule, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	area, slug, err := normalizeArea(req.Area)
	if err != nil {
		return nil, err
	}
	sched := &PickupSchedule{
		Area:       area,
		AreaSlug:   slug,
		PickupDate: req.PickupDate.UTC(),
		Status:     StatusScheduled,
		Notes:      strings.TrimSpace(req.Notes),
		CreatedBy:  actor.ID,
	}
	if err := s.repo.Create(ctx, sched); err != nil {
		s.logger.Error("Failed to create pickup schedule", zap.Error(err))
		return nil, err
	}
	s.logger.Info("Pickup scheduled",
		zap.String("scheduleID", sched.ID.String()),
		zap.String("area", slug),
		zap.Time("pickupDate", sched.PickupDate))
	s.publish(ctx, realtime.EventInsert, sched.ID, "")
	return sched, nil
}

// ListSchedules is available to every signed-in role.
func (s *ServiceImplementation) ListSchedules(ctx context.Context, filter ListFilter, page, pageSize int) ([]PickupSchedule, *common.Pagination, error) {
	return s.repo.List(ctx, filter, s.now(), page, pageSize)
}

func (s *ServiceImplementation) GetSchedule(ctx context.Context, id uuid.UUID) (*PickupSchedule, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateSchedule edits area, date or notes of a pickup that is still scheduled.
func (s *ServiceImplementation) UpdateSchedule(ctx context.Context, actor common.Actor, id uuid.UUID, req UpdateScheduleRequest) (*PickupSchedule, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	sched, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sched.Status.IsTerminal() {
		return nil, common.ErrInvalidTransition.WithDetails("Completed or canceled pickups cannot be edited.")
	}
	if req.Area != nil {
		area, slug, err := normalizeArea(*req.Area)
		if err != nil {
			return nil, err
		}
		sched.Area, sched.AreaSlug = area, slug
	}
	if req.PickupDate != nil {
		sched.PickupDate = req.PickupDate.UTC()
	}
	if req.Notes != nil {
		sched.Notes = strings.TrimSpace(*req.Notes)
	}
	sched.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, sched); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventUpdate, sched.ID, "")
	return sched, nil
}

func (s *ServiceImplementation) transition(ctx context.Context, actor common.Actor, id uuid.UUID, to Status) (*PickupSchedule, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	sched, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sched.Status != StatusScheduled {
		return nil, common.ErrInvalidTransition.WithDetails(map[string]string{
			"from": string(sched.Status),
			"to":   string(to),
		})
	}
	now := s.now()
	if err := s.repo.Transition(ctx, id, StatusScheduled, to, now); err != nil {
		return nil, err
	}
	sched.Status = to
	sched.UpdatedAt = now
	s.logger.Info("Pickup status changed",
		zap.String("scheduleID", id.String()),
		zap.String("status", string(to)),
		zap.String("by", actor.ID.String()))
	s.publish(ctx, realtime.EventUpdate, id, string(to))
	return sched, nil
}

// CompleteSchedule marks a scheduled pickup as done. Terminal.
func (s *ServiceImplementation) CompleteSchedule(ctx context.Context, actor common.Actor, id uuid.UUID) (*PickupSchedule, error) {
	return s.transition(ctx, actor, id, StatusCompleted)
}

// CancelSchedule calls off a scheduled pickup. Terminal.
func (s *ServiceImplementation) CancelSchedule(ctx context.Context, actor common.Actor, id uuid.UUID) (*PickupSchedule, error) {
	return s.transition(ctx, actor, id, StatusCanceled)
}

func (s *ServiceImplementation) DeleteSchedule(ctx context.Context, actor common.Actor, id uuid.UUID) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, realtime.EventDelete, id, "")
	return nil
}

// FindForAreaBetween returns scheduled pickups for one area with from <= pickup_date < to.
func (s *ServiceImplementation) FindForAreaBetween(ctx context.Context, areaSlug string, from, to time.Time) ([]PickupSchedule, error) {
	if areaSlug == "" {
		return nil, nil
	}
	return s.repo.FindScheduledBetween(ctx, areaSlug, from, to)
}

// FindScheduledBetween returns scheduled pickups for every area in the window.
func (s *ServiceImplementation) FindScheduledBetween(ctx context.Context, from, to time.Time) ([]PickupSchedule, error) {
	return s.repo.FindScheduledBetween(ctx, "", from, to)
}

func (s *ServiceImplementation) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	return s.repo.CountByStatus(ctx)
}
