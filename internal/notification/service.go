package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/platform/metrics"
	"waste_portal_backend/internal/realtime"
	"waste_portal_backend/internal/schedule"
	"waste_portal_backend/internal/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service defines the interface for notification business logic.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Notification, error)
	Broadcast(ctx context.Context, input CreateInput) (*Notification, error)
	CreateByStaff(ctx context.Context, actor common.Actor, req CreateNotificationRequest) (*Notification, error)
	DeleteNotification(ctx context.Context, actor common.Actor, id uuid.UUID) error
	ListForUser(ctx context.Context, viewer common.Actor, unreadOnly bool, page, pageSize int) ([]Notification, *common.Pagination, error)
	MarkRead(ctx context.Context, viewer common.Actor, id uuid.UUID) error
	MarkAllRead(ctx context.Context, viewer common.Actor) (int64, error)
	Summary(ctx context.Context, viewer common.Actor, localReadIDs []uuid.UUID) (*Summary, error)
	GenerateRemindersForUser(ctx context.Context, viewer common.Actor) (int, error)
	GenerateAreaReminders(ctx context.Context, now time.Time) (int, error)
	OnReportCreated(ctx context.Context, report ReportFiled)
	NotifyReportStatus(ctx context.Context, change ReportStatusChanged)
	PurgeUserData(ctx context.Context, userID uuid.UUID) error
}

// ScheduleFinder is the slice of the schedule service reminders depend on.
type ScheduleFinder interface {
	FindForAreaBetween(ctx context.Context, areaSlug string, from, to time.Time) ([]schedule.PickupSchedule, error)
	FindScheduledBetween(ctx context.Context, from, to time.Time) ([]schedule.PickupSchedule, error)
}

// AreaDirectory lists the profiles living in an area.
type AreaDirectory interface {
	ListActiveByAreaSlug(ctx context.Context, areaSlug, role string) ([]user.Profile, error)
}

// ServiceImplementation implements the notification Service.
type ServiceImplementation struct {
	repo      Repository
	schedules ScheduleFinder
	profiles  AreaDirectory
	sentinels SentinelStore
	publisher realtime.Publisher
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new notification service.
func NewService(
	repo Repository,
	schedules ScheduleFinder,
	profiles AreaDirectory,
	sentinels SentinelStore,
	publisher realtime.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceImplementation {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	if sentinels == nil {
		sentinels = NewMemorySentinelStore(10 * time.Minute)
	}
	return &ServiceImplementation{
		repo:      repo,
		schedules: schedules,
		profiles:  profiles,
		sentinels: sentinels,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.Named("NotificationService"),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *ServiceImplementation) location() *time.Location {
	if s.cfg != nil && s.cfg.Location != nil {
		return s.cfg.Location
	}
	return time.UTC
}

func (s *ServiceImplementation) lookahead() time.Duration {
	if s.cfg != nil && s.cfg.ReminderLookahead > 0 {
		return s.cfg.ReminderLookahead
	}
	return 24 * time.Hour
}

func (s *ServiceImplementation) publish(ctx context.Context, ev realtime.ChangeEvent) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish notification event", zap.Error(err), zap.String("notificationID", ev.ID.String()))
	}
}

// Create inserts a notification addressed to exactly one user or to everyone.
func (s *ServiceImplementation) Create(ctx context.Context, input CreateInput) (*Notification, error) {
	if (input.ForUserID == nil) == !input.ForAll {
		return nil, common.NewValidationAPIError(map[string]string{
			"for_user_id": "Set exactly one of for_user_id or for_all.",
		})
	}
	if input.Type == "" {
		input.Type = TypeSystem
	}
	n := &Notification{
		Title:             strings.TrimSpace(input.Title),
		Message:           strings.TrimSpace(input.Message),
		Type:              input.Type,
		ForUserID:         input.ForUserID,
		ForAll:            input.ForAll,
		CreatedBy:         input.CreatedBy,
		DedupKey:          input.DedupKey,
		RelatedReportID:   input.RelatedReportID,
		RelatedScheduleID: input.RelatedScheduleID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()

	ev := realtime.NewEvent(realtime.TableNotifications, realtime.EventInsert, n.ID, n.ForUserID)
	ev.ForAll = n.ForAll
	s.publish(ctx, ev)
	return n, nil
}

// Broadcast creates a notification visible to every user.
func (s *ServiceImplementation) Broadcast(ctx context.Context, input CreateInput) (*Notification, error) {
	input.ForAll = true
	input.ForUserID = nil
	return s.Create(ctx, input)
}

// CreateByStaff lets officials and admins post system or targeted notifications.
func (s *ServiceImplementation) CreateByStaff(ctx context.Context, actor common.Actor, req CreateNotificationRequest) (*Notification, error) {
	if !actor.IsStaff() {
		return nil, common.ErrForbidden.WithDetails("Only officials and admins can send notifications.")
	}
	createdBy := actor.ID
	return s.Create(ctx, CreateInput{
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		ForUserID: req.ForUserID,
		ForAll:    req.ForAll,
		CreatedBy: &createdBy,
	})
}

func (s *ServiceImplementation) DeleteNotification(ctx context.Context, actor common.Actor, id uuid.UUID) error {
	if !actor.IsStaff() {
		return common.ErrForbidden.WithDetails("Only officials and admins can delete notifications.")
	}
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	ev := realtime.NewEvent(realtime.TableNotifications, realtime.EventDelete, id, n.ForUserID)
	ev.ForAll = n.ForAll
	s.publish(ctx, ev)
	return nil
}

func (s *ServiceImplementation) ListForUser(ctx context.Context, viewer common.Actor, unreadOnly bool, page, pageSize int) ([]Notification, *common.Pagination, error) {
	return s.repo.ListForUser(ctx, viewer.ID, unreadOnly, page, pageSize)
}

// MarkRead marks one notification read for the viewer. Notifications that do not
// target the viewer look missing.
func (s *ServiceImplementation) MarkRead(ctx context.Context, viewer common.Actor, id uuid.UUID) error {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !n.Targets(viewer.ID) {
		return common.ErrNotFound.WithDetails("Notification not found.")
	}
	written, err := s.repo.MarkRead(ctx, viewer.ID, []uuid.UUID{id}, s.now())
	if err != nil {
		return err
	}
	if written > 0 {
		s.publishReadChange(ctx, viewer.ID, id)
	}
	return nil
}

func (s *ServiceImplementation) MarkAllRead(ctx context.Context, viewer common.Actor) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, viewer.ID, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.publishReadChange(ctx, viewer.ID, uuid.Nil)
	}
	return count, nil
}

// publishReadChange tells the viewer's other sessions to refresh their badge.
func (s *ServiceImplementation) publishReadChange(ctx context.Context, viewerID, id uuid.UUID) {
	ev := realtime.NewEvent(realtime.TableNotifications, realtime.EventUpdate, id, &viewerID)
	ev.Action = "read"
	s.publish(ctx, ev)
}

// CountUnread counts targets absent from both the server-read and local-read sets.
func CountUnread(targets []uuid.UUID, serverRead, localRead map[uuid.UUID]bool) int {
	unread := 0
	for _, id := range targets {
		if serverRead[id] || localRead[id] {
			continue
		}
		unread++
	}
	return unread
}

// DayBounds returns [00:00, next 00:00) of the day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Summary reconciles the client's locally read ids, runs the reminder generator and
// returns the viewer's badge state.
func (s *ServiceImplementation) Summary(ctx context.Context, viewer common.Actor, localReadIDs []uuid.UUID) (*Summary, error) {
	if len(localReadIDs) > 0 {
		written, err := s.repo.MarkRead(ctx, viewer.ID, localReadIDs, s.now())
		if err != nil {
			return nil, err
		}
		if written > 0 {
			s.publishReadChange(ctx, viewer.ID, uuid.Nil)
		}
	}

	if _, err := s.GenerateRemindersForUser(ctx, viewer); err != nil {
		s.logger.Warn("Reminder generation failed during summary", zap.Error(err), zap.String("userID", viewer.ID.String()))
	}

	state, err := s.repo.ReadState(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	localRead := make(map[uuid.UUID]bool, len(localReadIDs))
	for _, id := range localReadIDs {
		localRead[id] = true
	}
	summary := &Summary{UnreadCount: CountUnread(state.Targets, state.ServerRead, localRead)}

	if viewer.Area != "" {
		start, end := DayBounds(s.now(), s.location())
		today, err := s.schedules.FindForAreaBetween(ctx, viewer.Area, start, end)
		if err != nil {
			return nil, err
		}
		summary.HasCollectionToday = len(today) > 0
	}
	return summary, nil
}

// ReminderKey is the dedup key of the collection reminder for one pickup and user.
func ReminderKey(scheduleID, userID uuid.UUID) string {
	return fmt.Sprintf("reminder:%s:%s", scheduleID, userID)
}

// GenerateRemindersForUser creates at most one collection reminder per upcoming
// pickup in the viewer's area. It returns how many reminders were created.
func (s *ServiceImplementation) GenerateRemindersForUser(ctx context.Context, viewer common.Actor) (int, error) {
	if viewer.Area == "" {
		return 0, nil
	}
	now := s.now()
	upcoming, err := s.schedules.FindForAreaBetween(ctx, viewer.Area, now, now.Add(s.lookahead()))
	if err != nil {
		return 0, err
	}
	created := 0
	for i := range upcoming {
		ok, err := s.remind(ctx, &upcoming[i], viewer.ID, now)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// GenerateAreaReminders runs the reminder generator for every active profile in each
// area with an upcoming pickup. Per-user failures are logged and skipped.
func (s *ServiceImplementation) GenerateAreaReminders(ctx context.Context, now time.Time) (int, error) {
	upcoming, err := s.schedules.FindScheduledBetween(ctx, now, now.Add(s.lookahead()))
	if err != nil {
		return 0, err
	}
	residents := map[string][]user.Profile{}
	created := 0
	for i := range upcoming {
		pickup := &upcoming[i]
		profiles, seen := residents[pickup.AreaSlug]
		if !seen {
			profiles, err = s.profiles.ListActiveByAreaSlug(ctx, pickup.AreaSlug, "")
			if err != nil {
				return created, err
			}
			residents[pickup.AreaSlug] = profiles
		}
		for _, p := range profiles {
			ok, err := s.remind(ctx, pickup, p.ID, now)
			if err != nil {
				s.logger.Warn("Failed to create collection reminder",
					zap.Error(err),
					zap.String("scheduleID", pickup.ID.String()),
					zap.String("userID", p.ID.String()))
				continue
			}
			if ok {
				created++
			}
		}
	}
	return created, nil
}

// remind claims the sentinel and inserts the reminder row. The unique dedup key backs
// up the sentinel when the claim store was reset or is unreachable.
func (s *ServiceImplementation) remind(ctx context.Context, pickup *schedule.PickupSchedule, userID uuid.UUID, now time.Time) (bool, error) {
	key := ReminderKey(pickup.ID, userID)
	ttl := pickup.PickupDate.Sub(now) + s.lookahead()
	if ttl < time.Hour {
		ttl = time.Hour
	}
	claimed, err := s.sentinels.Claim(ctx, key, ttl)
	if err != nil {
		s.logger.Warn("Reminder sentinel unavailable; relying on dedup key", zap.Error(err), zap.String("key", key))
		claimed = true
	}
	if !claimed {
		return false, nil
	}

	scheduleID := pickup.ID
	recipient := userID
	_, err = s.Create(ctx, CreateInput{
		Title:             "Collection reminder",
		Message:           fmt.Sprintf("Waste collection for %s is scheduled for %s.", pickup.Area, pickup.PickupDate.In(s.location()).Format("Mon Jan 2, 15:04")),
		Type:              TypeCollection,
		ForUserID:         &recipient,
		DedupKey:          &key,
		RelatedScheduleID: &scheduleID,
	})
	if errors.Is(err, common.ErrConflict) {
		return false, nil
	}
	if err != nil {
		if relErr := s.sentinels.Release(ctx, key); relErr != nil {
			s.logger.Warn("Failed to release reminder sentinel", zap.Error(relErr), zap.String("key", key))
		}
		return false, err
	}
	metrics.RemindersCreated.Inc()
	s.logger.Debug("Collection reminder created", zap.String("key", key))
	return true, nil
}

// OnReportCreated broadcasts a report notification. Failures are logged, not returned.
func (s *ServiceImplementation) OnReportCreated(ctx context.Context, report ReportFiled) {
	reportID := report.ReportID
	owner := report.OwnerID
	message := fmt.Sprintf("A new %s report was submitted: %s", report.Category, report.Title)
	if report.Location != "" {
		message += fmt.Sprintf(" (%s)", report.Location)
	}
	_, err := s.Broadcast(ctx, CreateInput{
		Title:           "New report submitted",
		Message:         message + ".",
		Type:            TypeReport,
		CreatedBy:       &owner,
		RelatedReportID: &reportID,
	})
	if err != nil {
		s.logger.Error("Failed to broadcast report notification", zap.Error(err), zap.String("reportID", reportID.String()))
	}
}

// NotifyReportStatus tells the report owner their report changed status. Failures are logged.
func (s *ServiceImplementation) NotifyReportStatus(ctx context.Context, change ReportStatusChanged) {
	reportID := change.ReportID
	owner := change.OwnerID
	changedBy := change.ChangedBy
	_, err := s.Create(ctx, CreateInput{
		Title:           "Report status updated",
		Message:         fmt.Sprintf("Your report \"%s\" is now %s.", change.Title, change.Status),
		Type:            TypeReport,
		ForUserID:       &owner,
		CreatedBy:       &changedBy,
		RelatedReportID: &reportID,
	})
	if err != nil {
		s.logger.Error("Failed to notify report owner", zap.Error(err), zap.String("reportID", reportID.String()))
	}
}

// PurgeUserData removes the user's direct notifications and broadcast receipts.
func (s *ServiceImplementation) PurgeUserData(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteForUser(ctx, userID); err != nil {
		return fmt.Errorf("purging notifications for user %s: %w", userID, err)
	}
	return nil
}
