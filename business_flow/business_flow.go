package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/repository"
	"github.com/amirphl/orochi-mail/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// Percentage returns part/total*100 rounded to two decimals, or 0 when total is 0
func Percentage(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	v, _ := decimal.NewFromInt(part).
		Mul(hundred).
		DivRound(decimal.NewFromInt(total), 2).
		Float64()
	return v
}

// RoundRate rounds an already computed percentage to two decimals
func RoundRate(v float64) float64 {
	r, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return r
}

// ClientIP picks the originating address from X-Forwarded-For, falling back to the peer address
func ClientIP(xForwardedFor, remoteAddr string) string {
	if xForwardedFor != "" {
		first, _, _ := strings.Cut(xForwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return strings.TrimSpace(remoteAddr)
}

// ownedCampaign loads a campaign by its public id and checks it belongs to userID
func ownedCampaign(ctx context.Context, repo repository.CampaignRepository, userID uint, campaignUUID string) (*models.Campaign, error) {
	if strings.TrimSpace(campaignUUID) == "" {
		return nil, ErrCampaignUUIDRequired
	}
	id, err := utils.ParseUUID(campaignUUID)
	if err != nil {
		return nil, ErrCampaignNotFound
	}

	campaign, err := repo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to load campaign", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if campaign.UserID != userID {
		return nil, ErrCampaignAccessDenied
	}
	return campaign, nil
}

// runInTx runs fn inside a transaction when a database handle is available
func runInTx(ctx context.Context, db *gorm.DB, fn func(context.Context) error) error {
	if db == nil {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, db, fn)
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
