package models

import (
	"time"

	"github.com/amirphl/orochi-mail/utils"
	"gorm.io/gorm"
)

// ClickEvent counts clicks of one link within one delivered message
type ClickEvent struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	DeliveryRecordID uint       `gorm:"not null;uniqueIndex:uk_click_events_record_url;index:idx_click_events_delivery_record_id" json:"delivery_record_id"`
	URL              string     `gorm:"type:text;not null;uniqueIndex:uk_click_events_record_url" json:"url"`
	ClickCount       int64      `gorm:"not null;default:1" json:"click_count"`
	CreatedAt        time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_click_events_created_at" json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for ClickEvent
func (ClickEvent) TableName() string { return "click_events" }

// BeforeCreate is called before creating a new record
func (e *ClickEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ClickCount == 0 {
		e.ClickCount = 1
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utils.UTCNow()
	}
	return nil
}

// ClickEventFilter represents filter criteria for click events
type ClickEventFilter struct {
	DeliveryRecordID *uint   `json:"delivery_record_id,omitempty"`
	URL              *string `json:"url,omitempty"`
}
