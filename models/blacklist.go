package models

import (
	"time"

	"github.com/amirphl/orochi-mail/utils"
	"gorm.io/gorm"
)

// BlacklistReason explains why an address may no longer be mailed
type BlacklistReason string

const (
	BlacklistReasonBounce    BlacklistReason = "bounce"
	BlacklistReasonComplaint BlacklistReason = "complaint"
	BlacklistReasonManual    BlacklistReason = "manual"
	BlacklistReasonSpam      BlacklistReason = "spam"
)

// Valid checks if the reason is valid
func (r BlacklistReason) Valid() bool {
	switch r {
	case BlacklistReasonBounce, BlacklistReasonComplaint, BlacklistReasonManual, BlacklistReasonSpam:
		return true
	default:
		return false
	}
}

// BlacklistEntry is an address excluded from every audience
type BlacklistEntry struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      *uint           `gorm:"index:idx_blacklist_user_id" json:"user_id,omitempty"`
	Email       string          `gorm:"size:254;not null;uniqueIndex:uk_blacklist_email" json:"email"`
	Reason      BlacklistReason `gorm:"type:varchar(20);not null;default:'manual'" json:"reason"`
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for BlacklistEntry
func (BlacklistEntry) TableName() string { return "blacklist" }

// BeforeCreate is called before creating a new record
func (b *BlacklistEntry) BeforeCreate(tx *gorm.DB) error {
	b.Email = utils.NormalizeEmail(b.Email)
	if b.Reason == "" {
		b.Reason = BlacklistReasonManual
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BlacklistFilter represents filter criteria for blacklist entries
type BlacklistFilter struct {
	UserID *uint            `json:"user_id,omitempty"`
	Email  *string          `json:"email,omitempty"`
	Reason *BlacklistReason `json:"reason,omitempty"`
}
