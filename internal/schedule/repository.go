// File: internal/schedule/repository.go
package schedule

import (
	"context"
	"errors"
	"time"

	"waste_portal_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusCount is one row of a GROUP BY status query.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// Repository defines the interface for pickup schedule data operations.
type Repository interface {
	Create(ctx context.Context, s *PickupSchedule) error
	FindByID(ctx context.Context, id uuid.UUID) (*PickupSchedule, error)
	Update(ctx context.Context, s *PickupSchedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, now time.Time, page, pageSize int) ([]PickupSchedule, *common.Pagination, error)
	Transition(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error
	FindScheduledBetween(ctx context.Context, areaSlug string, from, to time.Time) ([]PickupSchedule, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM schedule repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, s *PickupSchedule) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*PickupSchedule, error) {
	var s PickupSchedule
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Pickup schedule not found.")
		}
		return nil, err
	}
	return &s, nil
}

// Update saves an edited schedule only while it is still scheduled.
func (r *gormRepository) Update(ctx context.Context, s *PickupSchedule) error {
	result := r.db.WithContext(ctx).Model(&PickupSchedule{}).
		Where("id = ? AND status = ?", s.ID, StatusScheduled).
		Updates(map[string]interface{}{
			"area":        s.Area,
			"area_slug":   s.AreaSlug,
			"pickup_date": s.PickupDate,
			"notes":       s.Notes,
			"updated_at":  s.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrInvalidTransition.WithDetails("Only scheduled pickups can be edited.")
	}
	return nil
}

func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&PickupSchedule{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("Pickup schedule not found.")
	}
	return nil
}

// List pages through schedules. Upcoming restricts to future pickups, soonest first;
// otherwise the newest pickup date comes first.
func (r *gormRepository) List(ctx context.Context, filter ListFilter, now time.Time, page, pageSize int) ([]PickupSchedule, *common.Pagination, error) {
	query := r.db.WithContext(ctx).Model(&PickupSchedule{})
	if filter.Area != "" {
		query = query.Where("area_slug = ?", common.AreaSlug(filter.Area))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("pickup_date >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("pickup_date < ?", filter.To.UTC())
	}
	order := "pickup_date DESC"
	if filter.Upcoming {
		query = query.Where("pickup_date >= ?", now.UTC())
		order = "pickup_date ASC"
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	pq := common.NewPaginationQuery(page, pageSize)
	var items []PickupSchedule
	if err := query.Order(order).Offset(pq.Offset()).Limit(pq.Limit()).Find(&items).Error; err != nil {
		return nil, nil, err
	}
	return items, common.NewPagination(total, pq.Page, pq.PageSize), nil
}

// Transition moves a schedule from one status to another as a compare-and-set.
func (r *gormRepository) Transition(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&PickupSchedule{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return common.ErrInvalidTransition.WithDetails("The pickup is no longer scheduled.")
	}
	return nil
}

// FindScheduledBetween returns scheduled pickups with from <= pickup_date < to.
// An empty areaSlug matches every area.
func (r *gormRepository) FindScheduledBetween(ctx context.Context, areaSlug string, from, to time.Time) ([]PickupSchedule, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND pickup_date >= ? AND pickup_date < ?", StatusScheduled, from.UTC(), to.UTC())
	if areaSlug != "" {
		query = query.Where("area_slug = ?", areaSlug)
	}
	var items []PickupSchedule
	if err := query.Order("pickup_date ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *gormRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).Model(&PickupSchedule{}).
		Select("status, COUNT(*) AS count").Group("status").Order("status").Scan(&rows).Error
	return rows, err
}
