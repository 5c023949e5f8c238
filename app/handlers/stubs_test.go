package handlers

import (
	"context"
	"time"

	"github.com/amirphl/orochi-mail/app/dto"
	businessflow "github.com/amirphl/orochi-mail/business_flow"
	"github.com/gofiber/fiber/v3"
)

type stubDispatchFlow struct {
	businessflow.CampaignDispatchFlow
	trigger func(userID uint, campaignUUID string) (*businessflow.TriggerResult, error)
}

func (s *stubDispatchFlow) Trigger(ctx context.Context, userID uint, campaignUUID string) (*businessflow.TriggerResult, error) {
	return s.trigger(userID, campaignUUID)
}

type stubCampaignFlow struct {
	schedule  func(req *dto.ScheduleCampaignRequest) (*dto.CampaignStatusResponse, error)
	pause     func(userID uint, campaignUUID string) (*dto.CampaignStatusResponse, error)
	testSend  func(req *dto.TestSendRequest) (*dto.TestSendResponse, error)
	blacklist func(req *dto.AddBlacklistRequest) (*dto.AddBlacklistResponse, error)
}

func (s *stubCampaignFlow) Schedule(ctx context.Context, req *dto.ScheduleCampaignRequest) (*dto.CampaignStatusResponse, error) {
	return s.schedule(req)
}

func (s *stubCampaignFlow) Pause(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignStatusResponse, error) {
	return s.pause(userID, campaignUUID)
}

func (s *stubCampaignFlow) TestSend(ctx context.Context, req *dto.TestSendRequest) (*dto.TestSendResponse, error) {
	return s.testSend(req)
}

func (s *stubCampaignFlow) AddToBlacklist(ctx context.Context, req *dto.AddBlacklistRequest) (*dto.AddBlacklistResponse, error) {
	return s.blacklist(req)
}

type stubStatsFlow struct {
	stats  func(userID uint, campaignUUID string) (*dto.CampaignStatsResponse, error)
	recent func(userID uint, campaignUUID string) (*dto.RecentStatsResponse, error)
	export func(userID uint, campaignUUID string) (string, []byte, error)
}

func (s *stubStatsFlow) GetCampaignStats(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignStatsResponse, error) {
	return s.stats(userID, campaignUUID)
}

func (s *stubStatsFlow) GetRecentStats(ctx context.Context, userID uint, campaignUUID string) (*dto.RecentStatsResponse, error) {
	return s.recent(userID, campaignUUID)
}

func (s *stubStatsFlow) ExportDeliveryReport(ctx context.Context, userID uint, campaignUUID string) (string, []byte, error) {
	return s.export(userID, campaignUUID)
}

type stubTrackingFlow struct {
	opens   []string
	clicks  []string
	ip      string
	openErr error
	click   func(targetURL string) (string, error)
}

func (s *stubTrackingFlow) RecordOpen(ctx context.Context, recipientUUID, campaignUUID, userAgent, ip string) error {
	s.opens = append(s.opens, recipientUUID+"/"+campaignUUID)
	s.ip = ip
	return s.openErr
}

func (s *stubTrackingFlow) RecordClick(ctx context.Context, recipientUUID, campaignUUID, targetURL, userAgent, ip string) (string, error) {
	s.clicks = append(s.clicks, targetURL)
	s.ip = ip
	return s.click(targetURL)
}

type stubUnsubscribeFlow struct {
	preview     func(rid, cid string) (*dto.UnsubscribePreview, error)
	unsubscribe func(rid, cid string) (*dto.UnsubscribeResult, error)
}

func (s *stubUnsubscribeFlow) Preview(ctx context.Context, recipientUUID, campaignUUID string) (*dto.UnsubscribePreview, error) {
	return s.preview(recipientUUID, campaignUUID)
}

func (s *stubUnsubscribeFlow) Unsubscribe(ctx context.Context, recipientUUID, campaignUUID string) (*dto.UnsubscribeResult, error) {
	return s.unsubscribe(recipientUUID, campaignUUID)
}

type stubAnalyticsFlow struct {
	businessflow.AnalyticsFlow
	days     int
	date     string
	overview func(days int) (*dto.AnalyticsOverviewResponse, error)
	daily    func(date string) (*dto.DailyAnalyticsResponse, error)
}

func (s *stubAnalyticsFlow) Overview(ctx context.Context, userID uint, days int) (*dto.AnalyticsOverviewResponse, error) {
	s.days = days
	return s.overview(days)
}

func (s *stubAnalyticsFlow) RealTime(ctx context.Context, userID uint) (*dto.RealTimeStatsResponse, error) {
	return &dto.RealTimeStatsResponse{MonthlySent: 400, AvgOpenRate: 19.44, Timestamp: time.Now().UTC().Format(time.RFC3339)}, nil
}

func (s *stubAnalyticsFlow) Daily(ctx context.Context, userID uint, date string) (*dto.DailyAnalyticsResponse, error) {
	s.date = date
	return s.daily(date)
}

// withUser mimics the JWT middleware for handler tests
func withUser(userID uint) fiber.Handler {
	return func(c fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	}
}
