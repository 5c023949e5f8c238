package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/orochi-mail/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClickEventRepositoryImpl implements ClickEventRepository
type ClickEventRepositoryImpl struct {
	*BaseRepository[models.ClickEvent, models.ClickEventFilter]
}

func NewClickEventRepository(db *gorm.DB) ClickEventRepository {
	return &ClickEventRepositoryImpl{BaseRepository: NewBaseRepository[models.ClickEvent, models.ClickEventFilter](db)}
}

// Increment upserts on (delivery_record_id, url)
func (r *ClickEventRepositoryImpl) Increment(ctx context.Context, deliveryRecordID uint, url string) error {
	row := &models.ClickEvent{DeliveryRecordID: deliveryRecordID, URL: url, ClickCount: 1}
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "delivery_record_id"}, {Name: "url"}},
			DoUpdates: clause.Assignments(map[string]any{
				"click_count": gorm.Expr("click_events.click_count + 1"),
				"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).Create(row).Error
		if err != nil {
			return fmt.Errorf("failed to record click event: %w", err)
		}
		return nil
	})
}

func (r *ClickEventRepositoryImpl) ByDeliveryRecord(ctx context.Context, deliveryRecordID uint) ([]*models.ClickEvent, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("delivery_record_id = ?", deliveryRecordID)
	}, "id", 0, 0)
}
