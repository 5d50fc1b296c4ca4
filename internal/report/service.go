// File: internal/report/service.go
package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/filestorage"
	"waste_portal_backend/internal/notification"
	"waste_portal_backend/internal/platform/elasticsearch"
	"waste_portal_backend/internal/platform/metrics"
	"waste_portal_backend/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service defines the interface for report business logic. Capability checks
// happen here, whatever the transport.
type Service interface {
	CreateReport(ctx context.Context, actor common.Actor, req CreateReportRequest, uploads []ImageUpload) (*Report, error)
	AttachImages(ctx context.Context, actor common.Actor, id uuid.UUID, uploads []ImageUpload) (*Report, error)
	ListReports(ctx context.Context, actor common.Actor, filter ListFilter, page, pageSize int) ([]Report, *common.Pagination, error)
	GetReport(ctx context.Context, actor common.Actor, id uuid.UUID) (*Report, error)
	UpdateStatus(ctx context.Context, actor common.Actor, id uuid.UUID, status string) (*Report, error)
	DeleteReport(ctx context.Context, actor common.Actor, id uuid.UUID) error
	StatusHistory(ctx context.Context, actor common.Actor, id uuid.UUID) ([]StatusEvent, error)
	SearchReports(ctx context.Context, actor common.Actor, q string, page, pageSize int) ([]Report, *common.Pagination, error)
	ImagePolicy() ImagePolicy
	PurgeUserData(ctx context.Context, userID uuid.UUID) error
}

// SearchIndex is the full-text index kept in step with report writes.
type SearchIndex interface {
	Index(ctx context.Context, doc elasticsearch.ReportDocument) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q string, from, size int) ([]string, int64, error)
}

// Notifier receives report lifecycle events.
type Notifier interface {
	OnReportCreated(ctx context.Context, report notification.ReportFiled)
	NotifyReportStatus(ctx context.Context, change notification.ReportStatusChanged)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo      Repository
	store     filestorage.Store
	notifier  Notifier
	index     SearchIndex
	publisher realtime.Publisher
	policy    ImagePolicy
	logger    *zap.Logger
	now       func() time.Time
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new report service. index may be nil.
func NewService(
	repo Repository,
	store filestorage.Store,
	notifier Notifier,
	index SearchIndex,
	publisher realtime.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceImplementation {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &ServiceImplementation{
		repo:      repo,
		store:     store,
		notifier:  notifier,
		index:     index,
		publisher: publisher,
		policy:    ImagePolicy{MaxImages: cfg.ReportMaxImages, MaxBytes: cfg.ReportMaxImageBytes},
		logger:    logger.Named("ReportService"),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *ServiceImplementation) ImagePolicy() ImagePolicy {
	return s.policy
}

// ToDocument projects a report into its search document.
func ToDocument(r *Report) elasticsearch.ReportDocument {
	doc := elasticsearch.ReportDocument{
		ID:          r.ID.String(),
		UserID:      r.UserID.String(),
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Category:    r.Category,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Latitude != nil && r.Longitude != nil {
		doc.Coordinates = &elasticsearch.GeoPoint{Lat: *r.Latitude, Lon: *r.Longitude}
	}
	return doc
}

func (s *ServiceImplementation) publish(ctx context.Context, typ realtime.EventType, r *Report) {
	owner := r.UserID
	ev := realtime.NewEvent(realtime.TableReports, typ, r.ID, &owner)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish report event", zap.Error(err), zap.String("reportID", r.ID.String()))
	}
}

func (s *ServiceImplementation) reindex(ctx context.Context, r *Report) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, ToDocument(r)); err != nil {
		s.logger.Warn("Failed to index report", zap.Error(err), zap.String("reportID", r.ID.String()))
	}
}

func (s *ServiceImplementation) unindex(ctx context.Context, id uuid.UUID) {
	if s.index == nil {
		return
	}
	if err := s.index.Delete(ctx, id.String()); err != nil {
		s.logger.Warn("Failed to remove report from index", zap.Error(err), zap.String("reportID", id.String()))
	}
}

// storeImages validates the batch and saves every file. Nothing stays stored when
// any step fails.
func (s *ServiceImplementation) storeImages(ctx context.Context, existing int, uploads []ImageUpload) ([]string, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	verdicts, err := s.policy.Check(existing, uploads)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(uploads))
	for i, u := range uploads {
		url, err := s.store.Save(ctx, "reports", verdicts[i].Extension, verdicts[i].ContentType, bytes.NewReader(u.Data))
		if err != nil {
			s.logger.Error("Failed to store report image", zap.Error(err), zap.String("name", u.Name))
			s.removeImages(ctx, urls)
			return nil, common.ErrInternalServer.WithDetails("Could not store images.")
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *ServiceImplementation) removeImages(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := s.store.Delete(ctx, url); err != nil {
			s.logger.Warn("Failed to delete report image", zap.Error(err), zap.String("url", url))
		}
	}
}

// CreateReport files a new report for a resident.
func (s *ServiceImplementation) CreateReport(ctx context.Context, actor common.Actor, req CreateReportRequest, uploads []ImageUpload) (*Report, error) {
	if !actor.IsResident() {
		return nil, common.ErrForbidden.WithDetails("Only residents can submit reports.")
	}
	for i, raw := range req.Images {
		uploads = append(uploads, DecodeDataURL(fmt.Sprintf("images[%d]", i), raw, s.policy.MaxBytes))
	}

	urls, err := s.storeImages(ctx, 0, uploads)
	if err != nil {
		return nil, err
	}

	location := strings.TrimSpace(req.Location)
	lat, lng := ParseCoordinates(location)
	report := &Report{
		UserID:      actor.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Location:    location,
		Latitude:    lat,
		Longitude:   lng,
		Category:    strings.ToLower(strings.TrimSpace(req.Category)),
		Status:      StatusPending,
	}
	report.SetImageURLs(urls)

	if err := s.repo.Create(ctx, report); err != nil {
		s.logger.Error("Failed to create report", zap.Error(err), zap.String("userID", actor.ID.String()))
		s.removeImages(ctx, urls)
		return nil, err
	}

	metrics.ReportsCreated.Inc()
	s.logger.Info("Report created",
		zap.String("reportID", report.ID.String()),
		zap.String("userID", actor.ID.String()),
		zap.String("category", report.Category),
		zap.Int("images", len(urls)))
	s.publish(ctx, realtime.EventInsert, report)
	s.reindex(ctx, report)
	if s.notifier != nil {
		s.notifier.OnReportCreated(ctx, notification.ReportFiled{
			ReportID: report.ID,
			OwnerID:  report.UserID,
			Title:    report.Title,
			Category: report.Category,
			Location: report.Location,
		})
	}
	return report, nil
}

// visible loads a report the actor may see. Residents get 404 for reports they do not own.
func (s *ServiceImplementation) visible(ctx context.Context, actor common.Actor, id uuid.UUID) (*Report, error) {
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && report.UserID != actor.ID {
		return nil, errReportNotFound
	}
	return report, nil
}

// AttachImages adds images to an existing report for its owner or staff.
func (s *ServiceImplementation) AttachImages(ctx context.Context, actor common.Actor, id uuid.UUID, uploads []ImageUpload) (*Report, error) {
	report, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, common.NewValidationAPIError(map[string]string{"images": "At least one image is required."})
	}
	existing := report.ImageURLs()
	urls, err := s.storeImages(ctx, len(existing), uploads)
	if err != nil {
		return nil, err
	}
	all := append(existing, urls...)
	now := s.now()
	if err := s.repo.ReplaceImages(ctx, id, len(existing), all, now); err != nil {
		s.removeImages(ctx, urls)
		return nil, err
	}
	report.SetImageURLs(all)
	report.UpdatedAt = now
	s.publish(ctx, realtime.EventUpdate, report)
	return report, nil
}

// ListReports shows residents their own reports and staff every report.
func (s *ServiceImplementation) ListReports(ctx context.Context, actor common.Actor, filter ListFilter, page, pageSize int) ([]Report, *common.Pagination, error) {
	filter.UserID = nil
	if !actor.IsStaff() {
		owner := actor.ID
		filter.UserID = &owner
	}
	if filter.Status != "" {
		status, ok := ParseStatus(filter.Status)
		if !ok {
			return nil, nil, common.NewValidationAPIError(map[string]string{"status": "Unknown report status."})
		}
		filter.Status = string(status)
	}
	return s.repo.List(ctx, filter, page, pageSize)
}

func (s *ServiceImplementation) GetReport(ctx context.Context, actor common.Actor, id uuid.UUID) (*Report, error) {
	return s.visible(ctx, actor, id)
}

// UpdateStatus lets staff move a report to any status. Only that row changes.
func (s *ServiceImplementation) UpdateStatus(ctx context.Context, actor common.Actor, id uuid.UUID, raw string) (*Report, error) {
	if !actor.IsStaff() {
		return nil, common.ErrForbidden.WithDetails("Only officials and admins can change report status.")
	}
	status, ok := ParseStatus(raw)
	if !ok {
		return nil, common.NewValidationAPIError(map[string]string{"status": "Status must be pending, in-progress or resolved."})
	}
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.Status == status {
		return report, nil
	}

	from := report.Status
	now := s.now()
	if err := s.repo.ChangeStatus(ctx, id, from, status, actor.ID, now); err != nil {
		return nil, err
	}
	report.Status = status
	report.UpdatedAt = now

	metrics.ReportStatusChanges.WithLabelValues(string(status)).Inc()
	s.logger.Info("Report status changed",
		zap.String("reportID", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
		zap.String("by", actor.ID.String()))
	s.publish(ctx, realtime.EventUpdate, report)
	s.reindex(ctx, report)
	if s.notifier != nil {
		s.notifier.NotifyReportStatus(ctx, notification.ReportStatusChanged{
			ReportID:  report.ID,
			OwnerID:   report.UserID,
			Title:     report.Title,
			Status:    string(status),
			ChangedBy: actor.ID,
		})
	}
	return report, nil
}

func (s *ServiceImplementation) DeleteReport(ctx context.Context, actor common.Actor, id uuid.UUID) error {
	if !actor.IsStaff() {
		return common.ErrForbidden.WithDetails("Only officials and admins can delete reports.")
	}
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.removeImages(ctx, report.ImageURLs())
	s.unindex(ctx, id)
	s.publish(ctx, realtime.EventDelete, report)
	s.logger.Info("Report deleted", zap.String("reportID", id.String()), zap.String("by", actor.ID.String()))
	return nil
}

func (s *ServiceImplementation) StatusHistory(ctx context.Context, actor common.Actor, id uuid.UUID) ([]StatusEvent, error) {
	if _, err := s.visible(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// SearchReports queries the search index when configured and falls back to the database.
func (s *ServiceImplementation) SearchReports(ctx context.Context, actor common.Actor, q string, page, pageSize int) ([]Report, *common.Pagination, error) {
	if !actor.IsStaff() {
		return nil, nil, common.ErrForbidden.WithDetails("Only officials and admins can search all reports.")
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil, common.NewValidationAPIError(map[string]string{"q": "Search text is required."})
	}
	if s.index != nil {
		pq := common.NewPaginationQuery(page, pageSize)
		ids, total, err := s.index.Search(ctx, q, pq.Offset(), pq.Limit())
		if err == nil {
			parsed := make([]uuid.UUID, 0, len(ids))
			for _, raw := range ids {
				if id, perr := uuid.Parse(raw); perr == nil {
					parsed = append(parsed, id)
				}
			}
			reports, err := s.repo.FindByIDs(ctx, parsed)
			if err != nil {
				return nil, nil, err
			}
			return reports, common.NewPagination(total, pq.Page, pq.PageSize), nil
		}
		s.logger.Warn("Search index query failed; using database search", zap.Error(err))
	}
	return s.repo.SearchText(ctx, q, page, pageSize)
}

// PurgeUserData deletes the user's reports and their stored images.
func (s *ServiceImplementation) PurgeUserData(ctx context.Context, userID uuid.UUID) error {
	reports, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing reports for user %s: %w", userID, err)
	}
	if _, err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("deleting reports for user %s: %w", userID, err)
	}
	for i := range reports {
		s.removeImages(ctx, reports[i].ImageURLs())
		s.unindex(ctx, reports[i].ID)
		s.publish(ctx, realtime.EventDelete, &reports[i])
	}
	return nil
}

// BulkSink receives documents during a full reindex.
type BulkSink interface {
	Add(ctx context.Context, doc elasticsearch.ReportDocument) error
}

// Reindex streams every report into sink and returns how many were queued.
func Reindex(ctx context.Context, repo Repository, sink BulkSink, batchSize int) (int, error) {
	queued := 0
	err := repo.InBatches(ctx, batchSize, func(batch []Report) error {
		for i := range batch {
			if err := sink.Add(ctx, ToDocument(&batch[i])); err != nil {
				return err
			}
			queued++
		}
		return nil
	})
	return queued, err
}
