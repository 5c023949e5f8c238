package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/orochi-mail/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle state of an email campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusSent, CampaignStatusPaused, CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Campaign is a single email message sent to one or more mailing lists.
// The counter block is only ever changed through atomic increments.
type Campaign struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	UserID        uint           `gorm:"not null;index:idx_campaigns_user_id" json:"user_id"`
	Name          string         `gorm:"size:200;not null" json:"name"`
	Subject       string         `gorm:"size:200;not null" json:"subject"`
	Preheader     string         `gorm:"size:150" json:"preheader"`
	Content       string         `gorm:"type:text" json:"content"`
	HTMLContent   string         `gorm:"type:text;column:html_content" json:"html_content"`
	Status        CampaignStatus `gorm:"type:varchar(20);not null;default:'draft';index:idx_campaigns_status" json:"status"`
	ScheduledTime *time.Time     `gorm:"index:idx_campaigns_scheduled_time" json:"scheduled_time,omitempty"`
	SentAt        *time.Time     `gorm:"index:idx_campaigns_sent_at" json:"sent_at,omitempty"`

	TotalSent    int64 `gorm:"not null;default:0" json:"total_sent"`
	Delivered    int64 `gorm:"not null;default:0" json:"delivered"`
	Opens        int64 `gorm:"not null;default:0" json:"opens"`
	UniqueOpens  int64 `gorm:"not null;default:0" json:"unique_opens"`
	Clicks       int64 `gorm:"not null;default:0" json:"clicks"`
	UniqueClicks int64 `gorm:"not null;default:0" json:"unique_clicks"`
	Bounces      int64 `gorm:"not null;default:0" json:"bounces"`
	Complaints   int64 `gorm:"not null;default:0" json:"complaints"`
	Unsubscribes int64 `gorm:"not null;default:0" json:"unsubscribes"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	MailLists []MailList `gorm:"many2many:campaign_mail_lists;" json:"mail_lists,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	c.UpdatedAt = utils.UTCNowPtr()
	return nil
}

// IsDispatchable reports whether a dispatch may start from the current status
func (c *Campaign) IsDispatchable() bool {
	return c.Status.CanTransitionTo(CampaignStatusSending)
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	return c.Status.CanTransitionTo(newStatus)
}

// CanTransitionTo is the campaign state machine
func (s CampaignStatus) CanTransitionTo(newStatus CampaignStatus) bool {
	switch s {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusScheduled ||
			newStatus == CampaignStatusSending
	case CampaignStatusScheduled:
		return newStatus == CampaignStatusSending ||
			newStatus == CampaignStatusDraft
	case CampaignStatusSending:
		return newStatus == CampaignStatusSent ||
			newStatus == CampaignStatusFailed ||
			newStatus == CampaignStatusPaused
	case CampaignStatusPaused:
		return newStatus == CampaignStatusSending ||
			newStatus == CampaignStatusScheduled
	case CampaignStatusFailed:
		return newStatus == CampaignStatusSending ||
			newStatus == CampaignStatusScheduled
	default:
		return false
	}
}

var campaignStatuses = []CampaignStatus{
	CampaignStatusDraft,
	CampaignStatusScheduled,
	CampaignStatusSending,
	CampaignStatusSent,
	CampaignStatusPaused,
	CampaignStatusFailed,
}

// TransitionSources lists the statuses from which a campaign may move to target.
// Conditional updates use it as their "status IN" set.
func TransitionSources(target CampaignStatus) []CampaignStatus {
	var from []CampaignStatus
	for _, s := range campaignStatuses {
		if s.CanTransitionTo(target) {
			from = append(from, s)
		}
	}
	return from
}

// MessageRef is the correlation id shared by the provider header and the delivery record
func MessageRef(campaignUUID, subscriberUUID uuid.UUID) string {
	return campaignUUID.String() + "_" + subscriberUUID.String()
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID              *uint           `json:"id,omitempty"`
	UUID            *uuid.UUID      `json:"uuid,omitempty"`
	UserID          *uint           `json:"user_id,omitempty"`
	Status          *CampaignStatus `json:"status,omitempty"`
	ScheduledBefore *time.Time      `json:"scheduled_before,omitempty"`
	SentAfter       *time.Time      `json:"sent_after,omitempty"`
	SentBefore      *time.Time      `json:"sent_before,omitempty"`
	CreatedAfter    *time.Time      `json:"created_after,omitempty"`
	CreatedBefore   *time.Time      `json:"created_before,omitempty"`
}

// CampaignMailList is the join row between a campaign and a target list
type CampaignMailList struct {
	CampaignID uint `gorm:"primaryKey" json:"campaign_id"`
	MailListID uint `gorm:"primaryKey" json:"mail_list_id"`
}

// TableName returns the table name for the join model
func (CampaignMailList) TableName() string {
	return "campaign_mail_lists"
}
