package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyAnalyticsRepositoryImpl implements DailyAnalyticsRepository
type DailyAnalyticsRepositoryImpl struct {
	*BaseRepository[models.DailyAnalytics, models.DailyAnalyticsFilter]
}

func NewDailyAnalyticsRepository(db *gorm.DB) DailyAnalyticsRepository {
	return &DailyAnalyticsRepositoryImpl{BaseRepository: NewBaseRepository[models.DailyAnalytics, models.DailyAnalyticsFilter](db)}
}

// Upsert writes the rollup for (user_id, date), replacing every metric column
func (r *DailyAnalyticsRepositoryImpl) Upsert(ctx context.Context, row *models.DailyAnalytics) error {
	row.Date = utils.StartOfDayUTC(row.Date)
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_campaigns", "total_subscribers", "new_subscribers", "unsubscribed",
				"emails_sent", "emails_delivered", "emails_opened", "emails_clicked", "emails_bounced",
				"delivery_rate", "open_rate", "click_rate", "bounce_rate", "updated_at",
			}),
		}).Create(row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert daily analytics: %w", err)
		}
		return nil
	})
}

func (r *DailyAnalyticsRepositoryImpl) ByUserAndDate(ctx context.Context, userID uint, date time.Time) (*models.DailyAnalytics, error) {
	day := utils.StartOfDayUTC(date)
	return r.first(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ? AND date = ?", userID, day)
	})
}

func (r *DailyAnalyticsRepositoryImpl) ByFilter(ctx context.Context, filter models.DailyAnalyticsFilter, orderBy string, limit, offset int) ([]*models.DailyAnalytics, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		if filter.UserID != nil {
			db = db.Where("user_id = ?", *filter.UserID)
		}
		if filter.DateFrom != nil {
			db = db.Where("date >= ?", *filter.DateFrom)
		}
		if filter.DateTo != nil {
			db = db.Where("date <= ?", *filter.DateTo)
		}
		return db
	}, orderBy, limit, offset)
}
