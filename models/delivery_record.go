package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/orochi-mail/utils"
	"gorm.io/gorm"
)

// DeliveryStatus is the per-recipient outcome of a campaign send
type DeliveryStatus string

const (
	DeliveryStatusSent         DeliveryStatus = "sent"
	DeliveryStatusDelivered    DeliveryStatus = "delivered"
	DeliveryStatusOpened       DeliveryStatus = "opened"
	DeliveryStatusClicked      DeliveryStatus = "clicked"
	DeliveryStatusBounced      DeliveryStatus = "bounced"
	DeliveryStatusComplained   DeliveryStatus = "complained"
	DeliveryStatusUnsubscribed DeliveryStatus = "unsubscribed"
)

// BounceTypeSendFailure marks a provider rejection at send time. Such rows are retried
// when the campaign is dispatched again.
const BounceTypeSendFailure = "send_failure"

// Statuses an open beacon may move forward from
var OpenableStatuses = []DeliveryStatus{DeliveryStatusSent, DeliveryStatusDelivered}

// Statuses a click may move forward from
var ClickableStatuses = []DeliveryStatus{DeliveryStatusSent, DeliveryStatusDelivered, DeliveryStatusOpened}

// String returns the string representation of the status
func (s DeliveryStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusSent, DeliveryStatusDelivered, DeliveryStatusOpened,
		DeliveryStatusClicked, DeliveryStatusBounced, DeliveryStatusComplained,
		DeliveryStatusUnsubscribed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for DeliveryStatus
func (s *DeliveryStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = DeliveryStatus(v)
	case []byte:
		*s = DeliveryStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DeliveryStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for DeliveryStatus
func (s DeliveryStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid DeliveryStatus: %s", s)
	}
	return string(s), nil
}

// DeliveryRecord tracks one campaign message to one subscriber.
// There is at most one row per (campaign, subscriber). A row created by a tracking
// callback before the dispatcher reached the subscriber has no SentAt.
type DeliveryRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CampaignID   uint           `gorm:"not null;uniqueIndex:uk_delivery_records_campaign_subscriber;index:idx_delivery_records_campaign_id" json:"campaign_id"`
	SubscriberID uint           `gorm:"not null;uniqueIndex:uk_delivery_records_campaign_subscriber;index:idx_delivery_records_subscriber_id" json:"subscriber_id"`
	Status       DeliveryStatus `gorm:"type:varchar(20);not null;default:'sent';index:idx_delivery_records_status" json:"status"`
	MessageID    string         `gorm:"size:255;index:idx_delivery_records_message_id" json:"message_id"`
	SentAt       *time.Time     `gorm:"index:idx_delivery_records_sent_at" json:"sent_at,omitempty"`
	OpenedAt     *time.Time     `gorm:"index:idx_delivery_records_opened_at" json:"opened_at,omitempty"`
	ClickedAt    *time.Time     `gorm:"index:idx_delivery_records_clicked_at" json:"clicked_at,omitempty"`
	BounceType   *string        `gorm:"size:50" json:"bounce_type,omitempty"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	UserAgent    *string        `gorm:"type:text" json:"user_agent,omitempty"`
	IPAddress    *string        `gorm:"size:64" json:"ip_address,omitempty"`
	CreatedAt    time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    *time.Time     `json:"updated_at,omitempty"`

	// Relations
	Subscriber *Subscriber `gorm:"foreignKey:SubscriberID;references:ID" json:"subscriber,omitempty"`
}

// TableName returns the table name for DeliveryRecord
func (DeliveryRecord) TableName() string { return "delivery_records" }

// BeforeCreate is called before creating a new record
func (d *DeliveryRecord) BeforeCreate(tx *gorm.DB) error {
	if d.Status == "" {
		d.Status = DeliveryStatusSent
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = utils.UTCNow()
	}
	return nil
}

// DeliveryRecordFilter represents filter criteria for delivery records
type DeliveryRecordFilter struct {
	ID           *uint           `json:"id,omitempty"`
	CampaignID   *uint           `json:"campaign_id,omitempty"`
	SubscriberID *uint           `json:"subscriber_id,omitempty"`
	Status       *DeliveryStatus `json:"status,omitempty"`
	OpenedAfter  *time.Time      `json:"opened_after,omitempty"`
	ClickedAfter *time.Time      `json:"clicked_after,omitempty"`
}
