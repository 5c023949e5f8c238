// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/orochi-mail/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CounterDelta is an increment applied to a campaign's counter block
type CounterDelta struct {
	TotalSent int64
	Bounces   int64
}

// IsZero reports whether the delta changes nothing
func (d CounterDelta) IsZero() bool {
	return d.TotalSent == 0 && d.Bounces == 0
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	MailListIDs(ctx context.Context, campaignID uint) ([]uint, error)
	AttachMailLists(ctx context.Context, campaignID uint, listIDs []uint) error

	// ClaimForSending moves the campaign to sending unless it is already sending or sent.
	// It returns false when another caller holds the campaign.
	ClaimForSending(ctx context.Context, id uint, at time.Time) (bool, error)
	// UpdateStatusFrom changes status only when the current status is one of from.
	UpdateStatusFrom(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error)
	UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error
	Schedule(ctx context.Context, id uint, at time.Time, from []models.CampaignStatus) (bool, error)

	IncrementCounters(ctx context.Context, id uint, delta CounterDelta) error
	RecordOpen(ctx context.Context, id uint) error
	RecordClick(ctx context.Context, id uint) error
	IncrementUnsubscribes(ctx context.Context, id uint) error

	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	UserIDsWithSentCampaigns(ctx context.Context, from, to time.Time) ([]uint, error)
	TotalsForUser(ctx context.Context, userID uint, sentFrom, sentTo *time.Time) (*models.CampaignTotals, error)
	AverageOpenRate(ctx context.Context, userID uint) (float64, error)
	DailyPerformance(ctx context.Context, userID uint, from, to time.Time) ([]models.DailyPerformance, error)
}

// MailListRepository defines operations for mailing lists
type MailListRepository interface {
	Repository[models.MailList, models.MailListFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.MailList, error)
	ByUserID(ctx context.Context, userID uint) ([]*models.MailList, error)
	// RecountSubscribers recomputes subscriber_count and unsubscribed_count from the subscribers table.
	RecountSubscribers(ctx context.Context, listID uint) error
}

// SubscriberRepository defines operations for subscribers
type SubscriberRepository interface {
	Repository[models.Subscriber, models.SubscriberFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Subscriber, error)
	// ActiveAudience returns active subscribers of the given lists, deduplicated by
	// lower-cased email and excluding blacklisted addresses, ordered by id.
	ActiveAudience(ctx context.Context, listIDs []uint) ([]*models.Subscriber, error)
	Unsubscribe(ctx context.Context, id uint, at time.Time) (bool, error)
	ActivityForUser(ctx context.Context, userID uint, from, to time.Time) (*models.SubscriberActivity, error)
}

// DeliveryRecordRepository defines operations for delivery records
type DeliveryRecordRepository interface {
	Repository[models.DeliveryRecord, models.DeliveryRecordFilter]
	ByCampaignAndSubscriber(ctx context.Context, campaignID, subscriberID uint) (*models.DeliveryRecord, error)
	// Ensure inserts the record unless (campaign, subscriber) already exists and
	// returns the stored row. created is true only for the caller that inserted it.
	Ensure(ctx context.Context, record *models.DeliveryRecord) (stored *models.DeliveryRecord, created bool, err error)
	// ClaimSend stamps sent_at on a row that has not been sent yet, or whose last send
	// failed at the provider. Only the caller that gets true may send.
	ClaimSend(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkBounced(ctx context.Context, id uint, bounceType, reason string) error
	MarkOpened(ctx context.Context, id uint, at time.Time, userAgent, ip *string) (bool, error)
	MarkClicked(ctx context.Context, id uint, at time.Time, userAgent, ip *string) (bool, error)
	MarkUnsubscribed(ctx context.Context, id uint) (bool, error)
	CountOpenedSince(ctx context.Context, campaignID uint, since time.Time) (int64, error)
	CountClickedSince(ctx context.Context, campaignID uint, since time.Time) (int64, error)
	ReportRows(ctx context.Context, campaignID uint) ([]models.DeliveryReportRow, error)
}

// ClickEventRepository defines operations for click events
type ClickEventRepository interface {
	// Increment creates the (record, url) row or bumps its click_count.
	Increment(ctx context.Context, deliveryRecordID uint, url string) error
	ByDeliveryRecord(ctx context.Context, deliveryRecordID uint) ([]*models.ClickEvent, error)
}

// DailyAnalyticsRepository defines operations for daily analytics rollups
type DailyAnalyticsRepository interface {
	Upsert(ctx context.Context, row *models.DailyAnalytics) error
	ByUserAndDate(ctx context.Context, userID uint, date time.Time) (*models.DailyAnalytics, error)
	ByFilter(ctx context.Context, filter models.DailyAnalyticsFilter, orderBy string, limit, offset int) ([]*models.DailyAnalytics, error)
}

// BlacklistRepository defines operations for the address blacklist
type BlacklistRepository interface {
	Repository[models.BlacklistEntry, models.BlacklistFilter]
	IsBlacklisted(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, entry *models.BlacklistEntry) error
}
