package models

import (
	"time"

	"github.com/amirphl/orochi-mail/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MailListType categorizes a mailing list
type MailListType string

const (
	MailListTypeCustomer   MailListType = "customer"
	MailListTypeLead       MailListType = "lead"
	MailListTypeTest       MailListType = "test"
	MailListTypeVIP        MailListType = "vip"
	MailListTypeGeneral    MailListType = "general"
	MailListTypeNewsletter MailListType = "newsletter"
)

// Valid checks if the list type is valid
func (t MailListType) Valid() bool {
	switch t {
	case MailListTypeCustomer, MailListTypeLead, MailListTypeTest,
		MailListTypeVIP, MailListTypeGeneral, MailListTypeNewsletter:
		return true
	default:
		return false
	}
}

// MailList is a named audience owned by one user.
// SubscriberCount and UnsubscribedCount are only written by an explicit recount.
type MailList struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	UUID              uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:uk_mail_lists_uuid" json:"uuid"`
	UserID            uint         `gorm:"not null;uniqueIndex:uk_mail_lists_user_name;index:idx_mail_lists_user_id" json:"user_id"`
	Name              string       `gorm:"size:100;not null;uniqueIndex:uk_mail_lists_user_name" json:"name"`
	Description       string       `gorm:"type:text" json:"description"`
	ListType          MailListType `gorm:"type:varchar(20);not null;default:'general'" json:"list_type"`
	IsActive          bool         `gorm:"not null;default:true" json:"is_active"`
	SubscriberCount   int64        `gorm:"not null;default:0" json:"subscriber_count"`
	UnsubscribedCount int64        `gorm:"not null;default:0" json:"unsubscribed_count"`
	CreatedAt         time.Time    `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt         *time.Time   `json:"updated_at,omitempty"`
}

// TableName returns the table name for MailList
func (MailList) TableName() string { return "mail_lists" }

// BeforeCreate is called before creating a new record
func (l *MailList) BeforeCreate(tx *gorm.DB) error {
	if l.UUID == uuid.Nil {
		l.UUID = uuid.New()
	}
	if l.ListType == "" {
		l.ListType = MailListTypeGeneral
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// MailListFilter represents filter criteria for mailing lists
type MailListFilter struct {
	ID       *uint         `json:"id,omitempty"`
	UUID     *uuid.UUID    `json:"uuid,omitempty"`
	UserID   *uint         `json:"user_id,omitempty"`
	ListType *MailListType `json:"list_type,omitempty"`
	IsActive *bool         `json:"is_active,omitempty"`
}
