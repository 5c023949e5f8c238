package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/orochi-mail/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID retrieves a campaign by its public id
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	row, err := r.first(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("uuid = ?", id) })
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign by UUID: %w", err)
	}
	return row, nil
}

// ByFilter retrieves campaigns matching filter
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) }, orderBy, limit, offset)
}

// Count counts campaigns matching filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	return r.count(ctx, func(db *gorm.DB) *gorm.DB { return r.applyFilter(db, filter) })
}

// Exists checks if a campaign matching filter exists
func (r *CampaignRepositoryImpl) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.ScheduledBefore != nil {
		db = db.Where("scheduled_time <= ?", *filter.ScheduledBefore)
	}
	if filter.SentAfter != nil {
		db = db.Where("sent_at >= ?", *filter.SentAfter)
	}
	if filter.SentBefore != nil {
		db = db.Where("sent_at < ?", *filter.SentBefore)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// MailListIDs returns the ids of the lists a campaign targets
func (r *CampaignRepositoryImpl) MailListIDs(ctx context.Context, campaignID uint) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&models.CampaignMailList{}).
		Where("campaign_id = ?", campaignID).
		Order("mail_list_id").
		Pluck("mail_list_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load mail lists of campaign %d: %w", campaignID, err)
	}
	return ids, nil
}

// AttachMailLists links lists to a campaign, ignoring links that already exist
func (r *CampaignRepositoryImpl) AttachMailLists(ctx context.Context, campaignID uint, listIDs []uint) error {
	if len(listIDs) == 0 {
		return nil
	}
	rows := make([]models.CampaignMailList, 0, len(listIDs))
	for _, id := range listIDs {
		rows = append(rows, models.CampaignMailList{CampaignID: campaignID, MailListID: id})
	}
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to attach mail lists: %w", err)
		}
		return nil
	})
}

// ClaimForSending atomically moves a dispatchable campaign into sending
func (r *CampaignRepositoryImpl) ClaimForSending(ctx context.Context, id uint, at time.Time) (bool, error) {
	var claimed bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Campaign{}).
			Where("id = ? AND status IN ?", id, models.TransitionSources(models.CampaignStatusSending)).
			UpdateColumns(map[string]any{
				"status":     models.CampaignStatusSending,
				"sent_at":    at,
				"updated_at": at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to claim campaign %d: %w", id, res.Error)
		}
		claimed = res.RowsAffected == 1
		return nil
	})
	return claimed, err
}

// UpdateStatusFrom performs a compare-and-set on the campaign status
func (r *CampaignRepositoryImpl) UpdateStatusFrom(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
	var changed bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Campaign{}).
			Where("id = ? AND status IN ?", id, from).
			UpdateColumns(map[string]any{
				"status":     to,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update campaign status: %w", res.Error)
		}
		changed = res.RowsAffected == 1
		return nil
	})
	return changed, err
}

// UpdateStatus updates only the status of a campaign
func (r *CampaignRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.Campaign{}).
			Where("id = ?", id).
			UpdateColumns(map[string]any{
				"status":     status,
				"updated_at": time.Now().UTC(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update campaign status: %w", err)
		}
		return nil
	})
}

// Schedule sets scheduled_time and moves the campaign to scheduled when its status is one of from
func (r *CampaignRepositoryImpl) Schedule(ctx context.Context, id uint, at time.Time, from []models.CampaignStatus) (bool, error) {
	var changed bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.Campaign{}).
			Where("id = ? AND status IN ?", id, from).
			UpdateColumns(map[string]any{
				"status":         models.CampaignStatusScheduled,
				"scheduled_time": at,
				"updated_at":     time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to schedule campaign %d: %w", id, res.Error)
		}
		changed = res.RowsAffected == 1
		return nil
	})
	return changed, err
}

// IncrementCounters adds delta to the campaign counters in place
func (r *CampaignRepositoryImpl) IncrementCounters(ctx context.Context, id uint, delta CounterDelta) error {
	if delta.IsZero() {
		return nil
	}
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.Campaign{}).
			Where("id = ?", id).
			UpdateColumns(map[string]any{
				"total_sent": gorm.Expr("total_sent + ?", delta.TotalSent),
				"bounces":    gorm.Expr("bounces + ?", delta.Bounces),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to increment campaign counters: %w", err)
		}
		return nil
	})
}

// RecordOpen bumps opens and recomputes unique_opens in one statement
func (r *CampaignRepositoryImpl) RecordOpen(ctx context.Context, id uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.Campaign{}).
			Where("id = ?", id).
			UpdateColumns(map[string]any{
				"opens":        gorm.Expr("opens + 1"),
				"unique_opens": gorm.Expr("(SELECT COUNT(DISTINCT subscriber_id) FROM delivery_records WHERE campaign_id = ? AND opened_at IS NOT NULL)", id),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to record campaign open: %w", err)
		}
		return nil
	})
}

// RecordClick bumps clicks and recomputes unique_clicks in one statement
func (r *CampaignRepositoryImpl) RecordClick(ctx context.Context, id uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.Campaign{}).
			Where("id = ?", id).
			UpdateColumns(map[string]any{
				"clicks":        gorm.Expr("clicks + 1"),
				"unique_clicks": gorm.Expr("(SELECT COUNT(DISTINCT subscriber_id) FROM delivery_records WHERE campaign_id = ? AND clicked_at IS NOT NULL)", id),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to record campaign click: %w", err)
		}
		return nil
	})
}

// IncrementUnsubscribes bumps the unsubscribes counter
func (r *CampaignRepositoryImpl) IncrementUnsubscribes(ctx context.Context, id uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.Campaign{}).
			Where("id = ?", id).
			UpdateColumn("unsubscribes", gorm.Expr("unsubscribes + 1")).Error
		if err != nil {
			return fmt.Errorf("failed to increment unsubscribes: %w", err)
		}
		return nil
	})
}

// ListDueScheduled returns scheduled campaigns whose time has come, oldest first
func (r *CampaignRepositoryImpl) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	status := models.CampaignStatusScheduled
	return r.ByFilter(ctx, models.CampaignFilter{Status: &status, ScheduledBefore: &now}, "scheduled_time ASC", limit, 0)
}

// UserIDsWithSentCampaigns lists users that sent at least one campaign in [from, to)
func (r *CampaignRepositoryImpl) UserIDsWithSentCampaigns(ctx context.Context, from, to time.Time) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&models.Campaign{}).
		Where("sent_at >= ? AND sent_at < ?", from, to).
		Distinct().
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users with sent campaigns: %w", err)
	}
	return ids, nil
}

// TotalsForUser sums counters of a user's campaigns, optionally bounded by sent_at
func (r *CampaignRepositoryImpl) TotalsForUser(ctx context.Context, userID uint, sentFrom, sentTo *time.Time) (*models.CampaignTotals, error) {
	query := r.getDB(ctx).Model(&models.Campaign{}).Where("user_id = ?", userID)
	if sentFrom != nil {
		query = query.Where("sent_at >= ?", *sentFrom)
	}
	if sentTo != nil {
		query = query.Where("sent_at < ?", *sentTo)
	}

	var totals models.CampaignTotals
	err := query.Select(`COUNT(*) AS campaigns,
		COALESCE(SUM(total_sent), 0) AS total_sent,
		COALESCE(SUM(opens), 0) AS opens,
		COALESCE(SUM(unique_opens), 0) AS unique_opens,
		COALESCE(SUM(clicks), 0) AS clicks,
		COALESCE(SUM(unique_clicks), 0) AS unique_clicks,
		COALESCE(SUM(bounces), 0) AS bounces`).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum campaign totals: %w", err)
	}
	return &totals, nil
}

// AverageOpenRate is the mean unique open percentage over a user's campaigns that sent anything
func (r *CampaignRepositoryImpl) AverageOpenRate(ctx context.Context, userID uint) (float64, error) {
	var avg float64
	err := r.getDB(ctx).Model(&models.Campaign{}).
		Where("user_id = ? AND total_sent > 0", userID).
		Select("COALESCE(AVG(unique_opens::numeric * 100 / total_sent), 0)").
		Scan(&avg).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute average open rate: %w", err)
	}
	return avg, nil
}

// DailyPerformance returns per-day sums for campaigns whose sent_at falls in [from, to)
func (r *CampaignRepositoryImpl) DailyPerformance(ctx context.Context, userID uint, from, to time.Time) ([]models.DailyPerformance, error) {
	var rows []models.DailyPerformance
	err := r.getDB(ctx).Model(&models.Campaign{}).
		Select(`date_trunc('day', sent_at) AS day,
			COALESCE(SUM(total_sent), 0) AS sent,
			COALESCE(SUM(opens), 0) AS opens,
			COALESCE(SUM(clicks), 0) AS clicks`).
		Where("user_id = ? AND sent_at >= ? AND sent_at < ?", userID, from, to).
		Group("day").
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load daily performance: %w", err)
	}
	return rows, nil
}
