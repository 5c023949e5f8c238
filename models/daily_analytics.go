package models

import (
	"time"

	"github.com/amirphl/orochi-mail/utils"
	"gorm.io/gorm"
)

// DailyAnalytics is the per-user, per-day rollup of campaign activity.
// Rates are percentages rounded to two decimals.
type DailyAnalytics struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;uniqueIndex:uk_daily_analytics_user_date" json:"user_id"`
	Date             time.Time  `gorm:"type:date;not null;uniqueIndex:uk_daily_analytics_user_date;index:idx_daily_analytics_date" json:"date"`
	TotalCampaigns   int64      `gorm:"not null;default:0" json:"total_campaigns"`
	TotalSubscribers int64      `gorm:"not null;default:0" json:"total_subscribers"`
	NewSubscribers   int64      `gorm:"not null;default:0" json:"new_subscribers"`
	Unsubscribed     int64      `gorm:"not null;default:0" json:"unsubscribed"`
	EmailsSent       int64      `gorm:"not null;default:0" json:"emails_sent"`
	EmailsDelivered  int64      `gorm:"not null;default:0" json:"emails_delivered"`
	EmailsOpened     int64      `gorm:"not null;default:0" json:"emails_opened"`
	EmailsClicked    int64      `gorm:"not null;default:0" json:"emails_clicked"`
	EmailsBounced    int64      `gorm:"not null;default:0" json:"emails_bounced"`
	DeliveryRate     float64    `gorm:"type:numeric(5,2);not null;default:0" json:"delivery_rate"`
	OpenRate         float64    `gorm:"type:numeric(5,2);not null;default:0" json:"open_rate"`
	ClickRate        float64    `gorm:"type:numeric(5,2);not null;default:0" json:"click_rate"`
	BounceRate       float64    `gorm:"type:numeric(5,2);not null;default:0" json:"bounce_rate"`
	CreatedAt        time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for DailyAnalytics
func (DailyAnalytics) TableName() string { return "daily_analytics" }

// BeforeCreate is called before creating a new record
func (d *DailyAnalytics) BeforeCreate(tx *gorm.DB) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = utils.UTCNow()
	}
	return nil
}

// DailyAnalyticsFilter represents filter criteria for daily analytics rows
type DailyAnalyticsFilter struct {
	UserID   *uint      `json:"user_id,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
}
