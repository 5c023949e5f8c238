package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/orochi-mail/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MailListRepositoryImpl implements MailListRepository
type MailListRepositoryImpl struct {
	*BaseRepository[models.MailList, models.MailListFilter]
}

func NewMailListRepository(db *gorm.DB) MailListRepository {
	return &MailListRepositoryImpl{BaseRepository: NewBaseRepository[models.MailList, models.MailListFilter](db)}
}

func (r *MailListRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.MailList, error) {
	return r.first(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("uuid = ?", id) })
}

func (r *MailListRepositoryImpl) ByUserID(ctx context.Context, userID uint) ([]*models.MailList, error) {
	return r.ByFilter(ctx, models.MailListFilter{UserID: &userID}, "created_at DESC", 0, 0)
}

func (r *MailListRepositoryImpl) ByFilter(ctx context.Context, filter models.MailListFilter, orderBy string, limit, offset int) ([]*models.MailList, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

func (r *MailListRepositoryImpl) Count(ctx context.Context, filter models.MailListFilter) (int64, error) {
	return r.count(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

func (r *MailListRepositoryImpl) Exists(ctx context.Context, filter models.MailListFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MailListRepositoryImpl) applyFilter(db *gorm.DB, filter models.MailListFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if filter.ListType != nil {
		db = db.Where("list_type = ?", *filter.ListType)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	return db
}

// RecountSubscribers recomputes both list counters with correlated subqueries
func (r *MailListRepositoryImpl) RecountSubscribers(ctx context.Context, listID uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.MailList{}).
			Where("id = ?", listID).
			UpdateColumns(map[string]any{
				"subscriber_count":   gorm.Expr("(SELECT COUNT(*) FROM subscribers WHERE mail_list_id = ? AND is_active = true)", listID),
				"unsubscribed_count": gorm.Expr("(SELECT COUNT(*) FROM subscribers WHERE mail_list_id = ? AND is_active = false)", listID),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to recount subscribers of list %d: %w", listID, err)
		}
		return nil
	})
}
