package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/orochi-mail/app/dto"
	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/repository"
	"github.com/amirphl/orochi-mail/utils"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
)

// CampaignStatsFlow reports delivery and engagement figures of one campaign
type CampaignStatsFlow interface {
	GetCampaignStats(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignStatsResponse, error)
	GetRecentStats(ctx context.Context, userID uint, campaignUUID string) (*dto.RecentStatsResponse, error)
	ExportDeliveryReport(ctx context.Context, userID uint, campaignUUID string) (string, []byte, error)
}

// StatsCacheConfig controls the optional Redis cache in front of stats reads
type StatsCacheConfig struct {
	Prefix string
	TTL    time.Duration
}

type CampaignStatsFlowImpl struct {
	campaignRepo repository.CampaignRepository
	deliveryRepo repository.DeliveryRecordRepository
	rc           *redis.Client
	cacheCfg     StatsCacheConfig
	window       time.Duration
	logger       *log.Logger
}

// NewCampaignStatsFlow creates a stats flow. rc may be nil to disable caching.
func NewCampaignStatsFlow(
	campaignRepo repository.CampaignRepository,
	deliveryRepo repository.DeliveryRecordRepository,
	rc *redis.Client,
	cacheCfg StatsCacheConfig,
	logger *log.Logger,
) CampaignStatsFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &CampaignStatsFlowImpl{
		campaignRepo: campaignRepo,
		deliveryRepo: deliveryRepo,
		rc:           rc,
		cacheCfg:     cacheCfg,
		window:       utils.RecentActivityWindow,
		logger:       logger,
	}
}

// RatesFor derives percentage rates from a campaign's counters
func RatesFor(c *models.Campaign) dto.CampaignRates {
	return dto.CampaignRates{
		OpenRate:   Percentage(c.UniqueOpens, c.TotalSent),
		ClickRate:  Percentage(c.UniqueClicks, c.TotalSent),
		BounceRate: Percentage(c.Bounces, c.TotalSent),
	}
}

func (f *CampaignStatsFlowImpl) GetCampaignStats(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignStatsResponse, error) {
	key := f.cacheKey("campaign", userID, campaignUUID)
	var cached dto.CampaignStatsResponse
	if f.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	campaign, err := ownedCampaign(ctx, f.campaignRepo, userID, campaignUUID)
	if err != nil {
		return nil, err
	}

	resp := &dto.CampaignStatsResponse{
		UUID:          campaign.UUID.String(),
		Name:          campaign.Name,
		Status:        string(campaign.Status),
		TotalSent:     campaign.TotalSent,
		Delivered:     campaign.Delivered,
		Opens:         campaign.Opens,
		UniqueOpens:   campaign.UniqueOpens,
		Clicks:        campaign.Clicks,
		UniqueClicks:  campaign.UniqueClicks,
		Bounces:       campaign.Bounces,
		Complaints:    campaign.Complaints,
		Unsubscribes:  campaign.Unsubscribes,
		CampaignRates: RatesFor(campaign),
	}
	if campaign.SentAt != nil {
		s := campaign.SentAt.UTC().Format(time.RFC3339)
		resp.SentAt = &s
	}

	f.cacheSet(ctx, key, resp)
	return resp, nil
}

func (f *CampaignStatsFlowImpl) GetRecentStats(ctx context.Context, userID uint, campaignUUID string) (*dto.RecentStatsResponse, error) {
	key := f.cacheKey("recent", userID, campaignUUID)
	var cached dto.RecentStatsResponse
	if f.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	campaign, err := ownedCampaign(ctx, f.campaignRepo, userID, campaignUUID)
	if err != nil {
		return nil, err
	}

	now := utils.UTCNow()
	since := now.Add(-f.window)

	opens, err := f.deliveryRepo.CountOpenedSince(ctx, campaign.ID, since)
	if err != nil {
		return nil, NewBusinessError("RECENT_STATS_FAILED", "Failed to count recent opens", err)
	}
	clicks, err := f.deliveryRepo.CountClickedSince(ctx, campaign.ID, since)
	if err != nil {
		return nil, NewBusinessError("RECENT_STATS_FAILED", "Failed to count recent clicks", err)
	}

	resp := &dto.RecentStatsResponse{
		UUID:         campaign.UUID.String(),
		RecentOpens:  opens,
		RecentClicks: clicks,
		TotalOpens:   campaign.UniqueOpens,
		TotalClicks:  campaign.UniqueClicks,
		Timestamp:    now.Format(time.RFC3339),
	}

	f.cacheSet(ctx, key, resp)
	return resp, nil
}

// ExportDeliveryReport builds an XLSX with one row per delivery record and a summary sheet
func (f *CampaignStatsFlowImpl) ExportDeliveryReport(ctx context.Context, userID uint, campaignUUID string) (string, []byte, error) {
	campaign, err := ownedCampaign(ctx, f.campaignRepo, userID, campaignUUID)
	if err != nil {
		return "", nil, err
	}

	rows, err := f.deliveryRepo.ReportRows(ctx, campaign.ID)
	if err != nil {
		return "", nil, NewBusinessError("REPORT_ROWS_FAILED", "Failed to load delivery records", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const deliveries = "Deliveries"
	if err := xl.SetSheetName(xl.GetSheetName(0), deliveries); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to name deliveries sheet", err)
	}

	header := []any{"email", "name", "status", "message_id", "sent_at", "opened_at", "clicked_at", "clicks", "error"}
	if err := writeSheetRow(xl, deliveries, 1, header); err != nil {
		return "", nil, err
	}

	for i, r := range rows {
		record := []any{
			r.Email,
			r.Name,
			string(r.Status),
			r.MessageID,
			formatTimePtr(r.SentAt),
			formatTimePtr(r.OpenedAt),
			formatTimePtr(r.ClickedAt),
			r.ClickCount,
			derefString(r.Error),
		}
		if err := writeSheetRow(xl, deliveries, i+2, record); err != nil {
			return "", nil, err
		}
	}

	const summary = "Summary"
	if _, err := xl.NewSheet(summary); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to create summary sheet", err)
	}
	rates := RatesFor(campaign)
	summaryRows := [][]any{
		{"campaign", campaign.Name},
		{"uuid", campaign.UUID.String()},
		{"status", string(campaign.Status)},
		{"total_sent", campaign.TotalSent},
		{"unique_opens", campaign.UniqueOpens},
		{"unique_clicks", campaign.UniqueClicks},
		{"bounces", campaign.Bounces},
		{"unsubscribes", campaign.Unsubscribes},
		{"open_rate", rates.OpenRate},
		{"click_rate", rates.ClickRate},
		{"bounce_rate", rates.BounceRate},
	}
	for i, row := range summaryRows {
		if err := writeSheetRow(xl, summary, i+1, row); err != nil {
			return "", nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("campaign_%s_deliveries.xlsx", sanitizeFileName(campaign.Name, campaign.UUID.String()))
	return filename, buf.Bytes(), nil
}

func (f *CampaignStatsFlowImpl) cacheKey(kind string, userID uint, campaignUUID string) string {
	return f.cacheCfg.Prefix + "stats:" + kind + ":" + strconv.FormatUint(uint64(userID), 10) + ":" + campaignUUID
}

func (f *CampaignStatsFlowImpl) cacheGet(ctx context.Context, key string, out any) bool {
	if f.rc == nil || f.cacheCfg.TTL <= 0 {
		return false
	}
	raw, err := f.rc.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			f.logger.Printf("stats cache read failed for %s: %v", key, err)
		}
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (f *CampaignStatsFlowImpl) cacheSet(ctx context.Context, key string, v any) {
	if f.rc == nil || f.cacheCfg.TTL <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := f.rc.Set(ctx, key, raw, f.cacheCfg.TTL).Err(); err != nil {
		f.logger.Printf("stats cache write failed for %s: %v", key, err)
	}
}

// writeSheetRow writes values into row (1-based) starting at column A
func writeSheetRow(xl *excelize.File, sheet string, row int, values []any) error {
	cellRef, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return NewBusinessError("EXCEL_WRITE_ERROR", "Failed to address Excel row", err)
	}
	if err := xl.SetSheetRow(sheet, cellRef, &values); err != nil {
		return NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel row", err)
	}
	return nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sanitizeFileName(name, fallback string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "\"", "", "'", "")
	safe := strings.Trim(replacer.Replace(strings.TrimSpace(name)), "_")
	if safe == "" {
		return fallback
	}
	if len(safe) > 60 {
		safe = safe[:60]
	}
	return safe
}
