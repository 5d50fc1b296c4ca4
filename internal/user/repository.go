// File: internal/user/repository.go
package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"waste_portal_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for profile data operations.
type Repository interface {
	Create(ctx context.Context, profile *Profile) error
	FindByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	FindByEmail(ctx context.Context, email string) (*Profile, error)
	FindByPhone(ctx context.Context, phone string) (*Profile, error)
	FindByProvider(ctx context.Context, authProvider, providerID string) (*Profile, error)
	Update(ctx context.Context, profile *Profile) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, page, pageSize int) ([]Profile, *common.Pagination, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	ListActiveByAreaSlug(ctx context.Context, areaSlug, role string) ([]Profile, error)
	BumpTokenVersion(ctx context.Context, id uuid.UUID) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	CountByRole(ctx context.Context) ([]RoleCount, error)
}

// RoleCount is one row of a GROUP BY role query.
type RoleCount struct {
	Role  string `json:"role"`
	Count int64  `json:"count"`
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM profile repository.
// Passing a transaction handle scopes every call to that transaction.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func duplicateError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return common.ErrDuplicateIdentity
	}
	return err
}

func normalizeIdentity(p *Profile) {
	if p.Email != nil {
		email := common.NormalizeEmail(*p.Email)
		p.Email = &email
	}
}

// Create inserts a new profile record into the database.
func (r *gormRepository) Create(ctx context.Context, profile *Profile) error {
	normalizeIdentity(profile)
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return duplicateError(err)
	}
	return nil
}

func (r *gormRepository) findOne(ctx context.Context, notFound string, query string, args ...interface{}) (*Profile, error) {
	var profile Profile
	err := r.db.WithContext(ctx).Where(query, args...).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails(notFound)
		}
		return nil, err
	}
	return &profile, nil
}

// FindByID retrieves a profile by its ID.
func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.findOne(ctx, "Profile not found.", "id = ?", id)
}

// FindByEmail retrieves a profile by its normalized email.
func (r *gormRepository) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	return r.findOne(ctx, "Profile not found with this email.", "email = ?", common.NormalizeEmail(email))
}

// FindByPhone expects an already normalized E.164 number.
func (r *gormRepository) FindByPhone(ctx context.Context, phone string) (*Profile, error) {
	return r.findOne(ctx, "Profile not found with this phone number.", "phone_number = ?", phone)
}

// FindByProvider retrieves a profile by its external provider identity.
func (r *gormRepository) FindByProvider(ctx context.Context, authProvider, providerID string) (*Profile, error) {
	return r.findOne(ctx, "Profile not found for this provider account.",
		"auth_provider = ? AND provider_id = ?", authProvider, providerID)
}

// Update saves every column of the profile.
func (r *gormRepository) Update(ctx context.Context, profile *Profile) error {
	normalizeIdentity(profile)
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return duplicateError(err)
	}
	return nil
}

// Delete hard-deletes the profile row.
func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&Profile{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("Profile not found.")
	}
	return nil
}

// List returns a filtered page of profiles, newest first.
func (r *gormRepository) List(ctx context.Context, filter ListFilter, page, pageSize int) ([]Profile, *common.Pagination, error) {
	query := r.db.WithContext(ctx).Model(&Profile{})

	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Area != "" {
		query = query.Where("area_slug = ?", common.AreaSlug(filter.Area))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone_number LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	pq := common.NewPaginationQuery(page, pageSize)
	var profiles []Profile
	err := query.Order("created_at DESC").Offset(pq.Offset()).Limit(pq.Limit()).Find(&profiles).Error
	if err != nil {
		return nil, nil, err
	}
	return profiles, common.NewPagination(total, pq.Page, pq.PageSize), nil
}

func (r *gormRepository) exists(ctx context.Context, column, value string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Profile{}).Where(column+" = ?", value).Limit(1).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsByEmail is an indexed lookup on the unique email column.
func (r *gormRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", common.NormalizeEmail(email))
}

// ExistsByPhone is an indexed lookup on the unique phone column.
func (r *gormRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, "phone_number", phone)
}

// ListActiveByAreaSlug returns active profiles in an area, optionally limited to one role.
func (r *gormRepository) ListActiveByAreaSlug(ctx context.Context, areaSlug, role string) ([]Profile, error) {
	query := r.db.WithContext(ctx).Where("area_slug = ? AND is_active = ?", areaSlug, true)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	var profiles []Profile
	if err := query.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// BumpTokenVersion invalidates every token issued before the call.
func (r *gormRepository) BumpTokenVersion(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&Profile{}).Where("id = ?", id).
		UpdateColumn("token_version", gorm.Expr("token_version + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("Profile not found.")
	}
	return nil
}

func (r *gormRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Profile{}).Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

func (r *gormRepository) CountByRole(ctx context.Context) ([]RoleCount, error) {
	var rows []RoleCount
	err := r.db.WithContext(ctx).Model(&Profile{}).
		Select("role, COUNT(*) AS count").Group("role").Order("role").Scan(&rows).Error
	return rows, err
}
