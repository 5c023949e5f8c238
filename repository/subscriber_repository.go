package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/orochi-mail/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SubscriberRepositoryImpl implements SubscriberRepository
type SubscriberRepositoryImpl struct {
	*BaseRepository[models.Subscriber, models.SubscriberFilter]
}

func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &SubscriberRepositoryImpl{BaseRepository: NewBaseRepository[models.Subscriber, models.SubscriberFilter](db)}
}

func (r *SubscriberRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Subscriber, error) {
	return r.first(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("uuid = ?", id) })
}

func (r *SubscriberRepositoryImpl) ByFilter(ctx context.Context, filter models.SubscriberFilter, orderBy string, limit, offset int) ([]*models.Subscriber, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

func (r *SubscriberRepositoryImpl) Count(ctx context.Context, filter models.SubscriberFilter) (int64, error) {
	return r.count(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

func (r *SubscriberRepositoryImpl) Exists(ctx context.Context, filter models.SubscriberFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SubscriberRepositoryImpl) applyFilter(db *gorm.DB, filter models.SubscriberFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.MailListID != nil {
		db = db.Where("mail_list_id = ?", *filter.MailListID)
	}
	if filter.Email != nil {
		db = db.Where("lower(email) = lower(?)", *filter.Email)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.SubscribedAfter != nil {
		db = db.Where("subscribed_at >= ?", *filter.SubscribedAfter)
	}
	if filter.SubscribedBefore != nil {
		db = db.Where("subscribed_at < ?", *filter.SubscribedBefore)
	}
	return db
}

const activeAudienceQuery = `
SELECT a.* FROM (
	SELECT DISTINCT ON (lower(s.email)) s.*
	FROM subscribers s
	WHERE s.mail_list_id = ANY(?)
	  AND s.is_active = true
	  AND NOT EXISTS (SELECT 1 FROM blacklist b WHERE b.email = lower(s.email))
	ORDER BY lower(s.email), s.id
) a
ORDER BY a.id`

// ActiveAudience resolves the recipients of a campaign's lists
func (r *SubscriberRepositoryImpl) ActiveAudience(ctx context.Context, listIDs []uint) ([]*models.Subscriber, error) {
	if len(listIDs) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(listIDs))
	for _, id := range listIDs {
		ids = append(ids, int64(id))
	}

	var rows []*models.Subscriber
	if err := r.getDB(ctx).Raw(activeAudienceQuery, pq.Array(ids)).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve audience: %w", err)
	}
	return rows, nil
}

// Unsubscribe deactivates an active subscriber; false means it was already inactive
func (r *SubscriberRepositoryImpl) Unsubscribe(ctx context.Context, id uint, at time.Time) (bool, error) {
	var changed bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Subscriber{}).
			Where("id = ? AND is_active = true", id).
			UpdateColumns(map[string]any{
				"is_active":       false,
				"unsubscribed_at": at,
				"updated_at":      at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to unsubscribe subscriber %d: %w", id, res.Error)
		}
		changed = res.RowsAffected == 1
		return nil
	})
	return changed, err
}

// ActivityForUser counts subscribers across a user's lists plus joins and leaves in [from, to)
func (r *SubscriberRepositoryImpl) ActivityForUser(ctx context.Context, userID uint, from, to time.Time) (*models.SubscriberActivity, error) {
	var out models.SubscriberActivity
	err := r.getDB(ctx).Model(&models.Subscriber{}).
		Joins("JOIN mail_lists ON mail_lists.id = subscribers.mail_list_id").
		Where("mail_lists.user_id = ?", userID).
		Select(`COUNT(*) FILTER (WHERE subscribers.is_active = true) AS total,
			COUNT(*) FILTER (WHERE subscribers.subscribed_at >= ? AND subscribers.subscribed_at < ?) AS new,
			COUNT(*) FILTER (WHERE subscribers.unsubscribed_at >= ? AND subscribers.unsubscribed_at < ?) AS unsubscribed`,
			from, to, from, to).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriber activity: %w", err)
	}
	return &out, nil
}
