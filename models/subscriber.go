package models

import (
	"encoding/json"
	"time"

	"github.com/amirphl/orochi-mail/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscriber is one address on one mailing list
type Subscriber struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_subscribers_uuid" json:"uuid"`
	MailListID     uint            `gorm:"not null;uniqueIndex:uk_subscribers_list_email;index:idx_subscribers_mail_list_id" json:"mail_list_id"`
	Email          string          `gorm:"size:254;not null;uniqueIndex:uk_subscribers_list_email;index:idx_subscribers_email" json:"email"`
	Name           string          `gorm:"size:100" json:"name"`
	IsActive       bool            `gorm:"not null;default:true;index:idx_subscribers_is_active" json:"is_active"`
	IsVerified     bool            `gorm:"not null;default:false" json:"is_verified"`
	SubscribedAt   time.Time       `gorm:"not null;default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_subscribers_subscribed_at" json:"subscribed_at"`
	UnsubscribedAt *time.Time      `json:"unsubscribed_at,omitempty"`
	Source         string          `gorm:"size:50;default:'manual'" json:"source"`
	Tags           json.RawMessage `gorm:"type:jsonb;default:'[]'" json:"tags,omitempty"`
	CustomFields   json.RawMessage `gorm:"type:jsonb;default:'{}'" json:"custom_fields,omitempty"`
	CreatedAt      time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`

	// Relations
	MailList *MailList `gorm:"foreignKey:MailListID;references:ID" json:"mail_list,omitempty"`
}

// TableName returns the table name for Subscriber
func (Subscriber) TableName() string { return "subscribers" }

// BeforeCreate is called before creating a new record
func (s *Subscriber) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.SubscribedAt.IsZero() {
		s.SubscribedAt = utils.UTCNow()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.SubscribedAt
	}
	return nil
}

// SubscriberFilter represents filter criteria for subscribers
type SubscriberFilter struct {
	ID               *uint      `json:"id,omitempty"`
	UUID             *uuid.UUID `json:"uuid,omitempty"`
	MailListID       *uint      `json:"mail_list_id,omitempty"`
	Email            *string    `json:"email,omitempty"`
	IsActive         *bool      `json:"is_active,omitempty"`
	SubscribedAfter  *time.Time `json:"subscribed_after,omitempty"`
	SubscribedBefore *time.Time `json:"subscribed_before,omitempty"`
}
