package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlacklistRepositoryImpl implements BlacklistRepository
type BlacklistRepositoryImpl struct {
	*BaseRepository[models.BlacklistEntry, models.BlacklistFilter]
}

func NewBlacklistRepository(db *gorm.DB) BlacklistRepository {
	return &BlacklistRepositoryImpl{BaseRepository: NewBaseRepository[models.BlacklistEntry, models.BlacklistFilter](db)}
}

func (r *BlacklistRepositoryImpl) ByFilter(ctx context.Context, filter models.BlacklistFilter, orderBy string, limit, offset int) ([]*models.BlacklistEntry, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

func (r *BlacklistRepositoryImpl) Count(ctx context.Context, filter models.BlacklistFilter) (int64, error) {
	return r.count(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

func (r *BlacklistRepositoryImpl) Exists(ctx context.Context, filter models.BlacklistFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *BlacklistRepositoryImpl) applyFilter(db *gorm.DB, filter models.BlacklistFilter) *gorm.DB {
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if filter.Email != nil {
		db = db.Where("email = ?", utils.NormalizeEmail(*filter.Email))
	}
	if filter.Reason != nil {
		db = db.Where("reason = ?", *filter.Reason)
	}
	return db
}

func (r *BlacklistRepositoryImpl) IsBlacklisted(ctx context.Context, email string) (bool, error) {
	return r.Exists(ctx, models.BlacklistFilter{Email: &email})
}

// Add inserts the entry; an address that is already listed keeps its original reason
func (r *BlacklistRepositoryImpl) Add(ctx context.Context, entry *models.BlacklistEntry) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(entry).Error
		if err != nil {
			return fmt.Errorf("failed to add blacklist entry: %w", err)
		}
		return nil
	})
}
