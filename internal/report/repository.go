// File: internal/report/repository.go
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"waste_portal_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for report data operations.
type Repository interface {
	Create(ctx context.Context, report *Report) error
	FindByID(ctx context.Context, id uuid.UUID) (*Report, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Report, error)
	List(ctx context.Context, filter ListFilter, page, pageSize int) ([]Report, *common.Pagination, error)
	SearchText(ctx context.Context, q string, page, pageSize int) ([]Report, *common.Pagination, error)
	ReplaceImages(ctx context.Context, id uuid.UUID, expectedCount int, urls []string, at time.Time) error
	ChangeStatus(ctx context.Context, id uuid.UUID, from, to Status, changedBy uuid.UUID, at time.Time) error
	History(ctx context.Context, id uuid.UUID) ([]StatusEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Report, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	InBatches(ctx context.Context, batchSize int, fn func([]Report) error) error
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	CountByCategory(ctx context.Context) ([]CategoryCount, error)
	CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM report repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

var errReportNotFound = common.ErrNotFound.WithDetails("Report not found.")

func (r *gormRepository) Create(ctx context.Context, report *Report) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	var report Report
	if err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

// FindByIDs loads reports and returns them in the order of ids. Missing ids are skipped.
func (r *gormRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Report, error) {
	if len(ids) == 0 {
		return []Report{}, nil
	}
	var rows []Report
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]Report, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	ordered := make([]Report, 0, len(rows))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

func likePattern(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(q)
	return "%" + q + "%"
}

func textMatch(query *gorm.DB, q string) *gorm.DB {
	pattern := likePattern(q)
	return query.Where(
		`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(location) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\')`,
		pattern, pattern, pattern, pattern)
}

func (r *gormRepository) List(ctx context.Context, filter ListFilter, page, pageSize int) ([]Report, *common.Pagination, error) {
	query := r.db.WithContext(ctx).Model(&Report{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(strings.TrimSpace(filter.Category)))
	}
	if strings.TrimSpace(filter.Q) != "" {
		query = textMatch(query, filter.Q)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", filter.To.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, fmt.Errorf("counting reports failed: %w", err)
	}

	order := "created_at DESC"
	if filter.Sort == "oldest" {
		order = "created_at ASC"
	}
	pq := common.NewPaginationQuery(page, pageSize)
	var reports []Report
	if err := query.Order(order).Offset(pq.Offset()).Limit(pq.Limit()).Find(&reports).Error; err != nil {
		return nil, nil, fmt.Errorf("fetching reports failed: %w", err)
	}
	return reports, common.NewPagination(total, pq.Page, pq.PageSize), nil
}

// SearchText is the LIKE-based search used when no search index is configured.
func (r *gormRepository) SearchText(ctx context.Context, q string, page, pageSize int) ([]Report, *common.Pagination, error) {
	return r.List(ctx, ListFilter{Q: q}, page, pageSize)
}

// ReplaceImages writes the new image list only if the stored count still equals
// expectedCount, so concurrent uploads cannot push a report past the cap.
func (r *gormRepository) ReplaceImages(ctx context.Context, id uuid.UUID, expectedCount int, urls []string, at time.Time) error {
	var holder Report
	holder.SetImageURLs(urls)
	result := r.db.WithContext(ctx).Model(&Report{}).
		Where("id = ? AND image_count = ?", id, expectedCount).
		Updates(map[string]interface{}{
			"images":      holder.Images,
			"image_count": holder.ImageCount,
			"updated_at":  at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return common.ErrConflict.WithDetails("The report's images changed; reload and try again.")
	}
	return nil
}

// ChangeStatus updates one report's status and appends a history row in one transaction.
// The update is conditional on the current status being from.
func (r *gormRepository) ChangeStatus(ctx context.Context, id uuid.UUID, from, to Status, changedBy uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Report{}).
			Where("id = ? AND status = ?", id, from).
			Updates(map[string]interface{}{"status": to, "updated_at": at})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&Report{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return errReportNotFound
			}
			return common.ErrConflict.WithDetails("The report status changed; reload and try again.")
		}
		event := &StatusEvent{ReportID: id, FromStatus: from, ToStatus: to, ChangedBy: changedBy}
		return tx.Create(event).Error
	})
}

func (r *gormRepository) History(ctx context.Context, id uuid.UUID) ([]StatusEvent, error) {
	var events []StatusEvent
	err := r.db.WithContext(ctx).Where("report_id = ?", id).Order("created_at ASC").Find(&events).Error
	return events, err
}

func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", id).Delete(&StatusEvent{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&Report{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errReportNotFound
		}
		return nil
	})
}

func (r *gormRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Report, error) {
	var reports []Report
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&reports).Error
	return reports, err
}

func (r *gormRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&Report{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("report_id IN (?)", ids).Delete(&StatusEvent{}).Error; err != nil {
			return err
		}
		result := tx.Where("user_id = ?", userID).Delete(&Report{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}

// InBatches walks every report in primary key order.
func (r *gormRepository) InBatches(ctx context.Context, batchSize int, fn func([]Report) error) error {
	var batch []Report
	result := r.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	})
	return result.Error
}

func (r *gormRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).Model(&Report{}).
		Select("status, COUNT(*) AS count").Group("status").Order("status").Scan(&rows).Error
	return rows, err
}

func (r *gormRepository) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	var rows []CategoryCount
	err := r.db.WithContext(ctx).Model(&Report{}).
		Select("category, COUNT(*) AS count").Group("category").Order("count DESC, category").Scan(&rows).Error
	return rows, err
}

// CreatedSince returns creation times so callers can bucket them in their own time zone.
func (r *gormRepository) CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).Model(&Report{}).
		Where("created_at >= ?", since.UTC()).
		Order("created_at").
		Pluck("created_at", &times).Error
	return times, err
}
