package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"waste_portal_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadState is the server-side view of which targeting notifications a user has read.
type ReadState struct {
	Targets    []uuid.UUID
	ServerRead map[uuid.UUID]bool
}

type Repository interface {
	Create(ctx context.Context, notification *Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, pageSize int) ([]Notification, *common.Pagination, error)
	ReadState(ctx context.Context, userID uuid.UUID) (*ReadState, error)
	MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

// GORMRepository implements the Repository interface using GORM.
type GORMRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM notification repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &GORMRepository{db: db}
}

func targeting(db *gorm.DB, userID uuid.UUID) *gorm.DB {
	return db.Where("(for_user_id = ? OR for_all = ?)", userID, true)
}

const unreadClause = "((for_all = ? AND NOT EXISTS (SELECT 1 FROM notification_reads r WHERE r.notification_id = notifications.id AND r.user_id = ?)) OR (for_all = ? AND is_read = ?))"

// Create inserts a notification. A second row with the same dedup key yields ErrConflict.
func (r *GORMRepository) Create(ctx context.Context, notification *Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.ErrConflict.WithDetails("Notification already exists.")
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *GORMRepository) FindByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	var notification Notification
	err := r.db.WithContext(ctx).First(&notification, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Notification not found.")
		}
		return nil, fmt.Errorf("failed to find notification %s: %w", id, err)
	}
	return &notification, nil
}

func (r *GORMRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notification_id = ?", id).Delete(&Read{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&Notification{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return common.ErrNotFound.WithDetails("Notification not found.")
		}
		return nil
	})
}

// ListForUser returns notifications addressed to userID, newest first. Broadcast rows
// carry the viewer's receipt in IsRead/ReadAt.
func (r *GORMRepository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, pageSize int) ([]Notification, *common.Pagination, error) {
	query := targeting(r.db.WithContext(ctx).Model(&Notification{}), userID)
	if unreadOnly {
		query = query.Where(unreadClause, true, userID, false, false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, fmt.Errorf("counting notifications for user %s failed: %w", userID, err)
	}

	pq := common.NewPaginationQuery(page, pageSize)
	var notifications []Notification
	err := query.Order("created_at DESC").
		Limit(pq.Limit()).
		Offset(pq.Offset()).
		Find(&notifications).Error
	if err != nil {
		return nil, nil, fmt.Errorf("fetching notifications for user %s failed: %w", userID, err)
	}

	var broadcastIDs []uuid.UUID
	for _, n := range notifications {
		if n.ForAll {
			broadcastIDs = append(broadcastIDs, n.ID)
		}
	}
	if len(broadcastIDs) > 0 {
		var receipts []Read
		if err := r.db.WithContext(ctx).
			Where("user_id = ? AND notification_id IN ?", userID, broadcastIDs).
			Find(&receipts).Error; err != nil {
			return nil, nil, fmt.Errorf("fetching read receipts for user %s failed: %w", userID, err)
		}
		readAt := make(map[uuid.UUID]time.Time, len(receipts))
		for _, rc := range receipts {
			readAt[rc.NotificationID] = rc.ReadAt
		}
		for i := range notifications {
			n := &notifications[i]
			if !n.ForAll {
				continue
			}
			n.IsRead, n.ReadAt = false, nil
			if at, ok := readAt[n.ID]; ok {
				at := at
				n.IsRead, n.ReadAt = true, &at
			}
		}
	}
	return notifications, common.NewPagination(total, pq.Page, pq.PageSize), nil
}

// ReadState loads every notification id targeting userID and the subset the server
// already counts as read.
func (r *GORMRepository) ReadState(ctx context.Context, userID uuid.UUID) (*ReadState, error) {
	var rows []struct {
		ID     uuid.UUID
		ForAll bool
		IsRead bool
	}
	if err := targeting(r.db.WithContext(ctx).Model(&Notification{}), userID).
		Select("id, for_all, is_read").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading notification targets for user %s failed: %w", userID, err)
	}

	var receipts []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&Read{}).
		Where("user_id = ?", userID).
		Pluck("notification_id", &receipts).Error; err != nil {
		return nil, fmt.Errorf("loading read receipts for user %s failed: %w", userID, err)
	}
	received := make(map[uuid.UUID]bool, len(receipts))
	for _, id := range receipts {
		received[id] = true
	}

	state := &ReadState{Targets: make([]uuid.UUID, 0, len(rows)), ServerRead: map[uuid.UUID]bool{}}
	for _, row := range rows {
		state.Targets = append(state.Targets, row.ID)
		if (row.ForAll && received[row.ID]) || (!row.ForAll && row.IsRead) {
			state.ServerRead[row.ID] = true
		}
	}
	return state, nil
}

// MarkRead records ids as read by userID. Ids that do not target the user are ignored.
// It returns how many rows or receipts were newly written.
func (r *GORMRepository) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		direct := tx.Model(&Notification{}).
			Where("id IN ? AND for_user_id = ? AND is_read = ?", ids, userID, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": at})
		if direct.Error != nil {
			return direct.Error
		}
		affected += direct.RowsAffected

		var broadcastIDs []uuid.UUID
		if err := tx.Model(&Notification{}).
			Where("id IN ? AND for_all = ?", ids, true).
			Pluck("id", &broadcastIDs).Error; err != nil {
			return err
		}
		if len(broadcastIDs) == 0 {
			return nil
		}
		receipts := make([]Read, 0, len(broadcastIDs))
		for _, id := range broadcastIDs {
			receipts = append(receipts, Read{NotificationID: id, UserID: userID, ReadAt: at})
		}
		inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipts)
		if inserted.Error != nil {
			return inserted.Error
		}
		affected += inserted.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read for user %s: %w", userID, err)
	}
	return affected, nil
}

// MarkAllRead marks every unread notification addressed to userID as read.
func (r *GORMRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		direct := tx.Model(&Notification{}).
			Where("for_user_id = ? AND is_read = ?", userID, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": at})
		if direct.Error != nil {
			return direct.Error
		}
		affected += direct.RowsAffected

		receipts := tx.Exec(`INSERT INTO notification_reads (notification_id, user_id, read_at)
SELECT n.id, ?, ? FROM notifications n
WHERE n.for_all = ? AND NOT EXISTS (
  SELECT 1 FROM notification_reads r WHERE r.notification_id = n.id AND r.user_id = ?)`,
			userID, at, true, userID)
		if receipts.Error != nil {
			return receipts.Error
		}
		affected += receipts.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read for user %s: %w", userID, err)
	}
	return affected, nil
}

// DeleteForUser removes direct notifications and read receipts belonging to userID.
func (r *GORMRepository) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&Read{}).Error; err != nil {
			return err
		}
		return tx.Where("for_user_id = ?", userID).Delete(&Notification{}).Error
	})
}
