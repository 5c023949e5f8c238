package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/orochi-mail/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryRecordRepositoryImpl implements DeliveryRecordRepository
type DeliveryRecordRepositoryImpl struct {
	*BaseRepository[models.DeliveryRecord, models.DeliveryRecordFilter]
}

func NewDeliveryRecordRepository(db *gorm.DB) DeliveryRecordRepository {
	return &DeliveryRecordRepositoryImpl{BaseRepository: NewBaseRepository[models.DeliveryRecord, models.DeliveryRecordFilter](db)}
}

func (r *DeliveryRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.DeliveryRecordFilter, orderBy string, limit, offset int) ([]*models.DeliveryRecord, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

func (r *DeliveryRecordRepositoryImpl) Count(ctx context.Context, filter models.DeliveryRecordFilter) (int64, error) {
	return r.count(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

func (r *DeliveryRecordRepositoryImpl) Exists(ctx context.Context, filter models.DeliveryRecordFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *DeliveryRecordRepositoryImpl) applyFilter(db *gorm.DB, filter models.DeliveryRecordFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.SubscriberID != nil {
		db = db.Where("subscriber_id = ?", *filter.SubscriberID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.OpenedAfter != nil {
		db = db.Where("opened_at >= ?", *filter.OpenedAfter)
	}
	if filter.ClickedAfter != nil {
		db = db.Where("clicked_at >= ?", *filter.ClickedAfter)
	}
	return db
}

func (r *DeliveryRecordRepositoryImpl) ByCampaignAndSubscriber(ctx context.Context, campaignID, subscriberID uint) (*models.DeliveryRecord, error) {
	row, err := r.first(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("campaign_id = ? AND subscriber_id = ?", campaignID, subscriberID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find delivery record: %w", err)
	}
	return row, nil
}

// Ensure is an INSERT ... ON CONFLICT DO NOTHING followed by a read of the stored row
func (r *DeliveryRecordRepositoryImpl) Ensure(ctx context.Context, record *models.DeliveryRecord) (*models.DeliveryRecord, bool, error) {
	var created bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "subscriber_id"}},
			DoNothing: true,
		}).Create(record)
		if res.Error != nil {
			return fmt.Errorf("failed to insert delivery record: %w", res.Error)
		}
		created = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		return record, true, nil
	}

	stored, err := r.ByCampaignAndSubscriber(ctx, record.CampaignID, record.SubscriberID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("delivery record for campaign %d subscriber %d vanished", record.CampaignID, record.SubscriberID)
	}
	return stored, false, nil
}

func (r *DeliveryRecordRepositoryImpl) ClaimSend(ctx context.Context, id uint, at time.Time) (bool, error) {
	var claimed bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.DeliveryRecord{}).
			Where("id = ? AND (sent_at IS NULL OR (status = ? AND bounce_type = ?))",
				id, models.DeliveryStatusBounced, models.BounceTypeSendFailure).
			UpdateColumns(map[string]any{
				"sent_at":       at,
				"status":        gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", models.DeliveryStatusBounced, models.DeliveryStatusSent),
				"bounce_type":   nil,
				"error_message": nil,
				"updated_at":    at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to claim send for delivery record %d: %w", id, res.Error)
		}
		claimed = res.RowsAffected == 1
		return nil
	})
	return claimed, err
}

// MarkBounced records a failed send
func (r *DeliveryRecordRepositoryImpl) MarkBounced(ctx context.Context, id uint, bounceType, reason string) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.DeliveryRecord{}).
			Where("id = ?", id).
			UpdateColumns(map[string]any{
				"status":        models.DeliveryStatusBounced,
				"bounce_type":   bounceType,
				"error_message": reason,
				"updated_at":    time.Now().UTC(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to mark delivery record %d bounced: %w", id, err)
		}
		return nil
	})
}

// transition applies updates only while the record's status is one of from
func (r *DeliveryRecordRepositoryImpl) transition(ctx context.Context, id uint, from []models.DeliveryStatus, updates map[string]any) (bool, error) {
	var changed bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.DeliveryRecord{}).
			Where("id = ? AND status IN ?", id, from).
			UpdateColumns(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update delivery record %d: %w", id, res.Error)
		}
		changed = res.RowsAffected == 1
		return nil
	})
	return changed, err
}

func (r *DeliveryRecordRepositoryImpl) MarkOpened(ctx context.Context, id uint, at time.Time, userAgent, ip *string) (bool, error) {
	return r.transition(ctx, id, models.OpenableStatuses, map[string]any{
		"status":     models.DeliveryStatusOpened,
		"opened_at":  at,
		"user_agent": userAgent,
		"ip_address": ip,
		"updated_at": at,
	})
}

func (r *DeliveryRecordRepositoryImpl) MarkClicked(ctx context.Context, id uint, at time.Time, userAgent, ip *string) (bool, error) {
	return r.transition(ctx, id, models.ClickableStatuses, map[string]any{
		"status":     models.DeliveryStatusClicked,
		"clicked_at": at,
		"user_agent": userAgent,
		"ip_address": ip,
		"updated_at": at,
	})
}

func (r *DeliveryRecordRepositoryImpl) MarkUnsubscribed(ctx context.Context, id uint) (bool, error) {
	return r.transition(ctx, id, []models.DeliveryStatus{
		models.DeliveryStatusSent, models.DeliveryStatusDelivered,
		models.DeliveryStatusOpened, models.DeliveryStatusClicked,
	}, map[string]any{
		"status":     models.DeliveryStatusUnsubscribed,
		"updated_at": time.Now().UTC(),
	})
}

func (r *DeliveryRecordRepositoryImpl) CountOpenedSince(ctx context.Context, campaignID uint, since time.Time) (int64, error) {
	return r.Count(ctx, models.DeliveryRecordFilter{CampaignID: &campaignID, OpenedAfter: &since})
}

func (r *DeliveryRecordRepositoryImpl) CountClickedSince(ctx context.Context, campaignID uint, since time.Time) (int64, error) {
	return r.Count(ctx, models.DeliveryRecordFilter{CampaignID: &campaignID, ClickedAfter: &since})
}

// ReportRows joins records with subscribers and summed click counts
func (r *DeliveryRecordRepositoryImpl) ReportRows(ctx context.Context, campaignID uint) ([]models.DeliveryReportRow, error) {
	var rows []models.DeliveryReportRow
	err := r.getDB(ctx).Model(&models.DeliveryRecord{}).
		Select(`subscribers.email AS email,
			subscribers.name AS name,
			delivery_records.status AS status,
			delivery_records.message_id AS message_id,
			delivery_records.sent_at AS sent_at,
			delivery_records.opened_at AS opened_at,
			delivery_records.clicked_at AS clicked_at,
			COALESCE((SELECT SUM(click_count) FROM click_events WHERE click_events.delivery_record_id = delivery_records.id), 0) AS click_count,
			delivery_records.error_message AS error`).
		Joins("JOIN subscribers ON subscribers.id = delivery_records.subscriber_id").
		Where("delivery_records.campaign_id = ?", campaignID).
		Order("delivery_records.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load delivery report: %w", err)
	}
	return rows, nil
}
