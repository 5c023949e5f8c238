package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/orochi-mail/app/dto"
	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/repository"
	"github.com/amirphl/orochi-mail/utils"
)

const maxOverviewDays = 365

// AnalyticsFlow maintains per-day rollups and serves the dashboard summaries
type AnalyticsFlow interface {
	RollupDaily(ctx context.Context, userID uint, date time.Time) (*dto.DailyAnalyticsResponse, error)
	RollupAll(ctx context.Context, now time.Time) (int, error)
	Daily(ctx context.Context, userID uint, date string) (*dto.DailyAnalyticsResponse, error)
	Overview(ctx context.Context, userID uint, days int) (*dto.AnalyticsOverviewResponse, error)
	RealTime(ctx context.Context, userID uint) (*dto.RealTimeStatsResponse, error)
}

type AnalyticsFlowImpl struct {
	campaignRepo   repository.CampaignRepository
	subscriberRepo repository.SubscriberRepository
	analyticsRepo  repository.DailyAnalyticsRepository
	logger         *log.Logger
}

func NewAnalyticsFlow(
	campaignRepo repository.CampaignRepository,
	subscriberRepo repository.SubscriberRepository,
	analyticsRepo repository.DailyAnalyticsRepository,
	logger *log.Logger,
) AnalyticsFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &AnalyticsFlowImpl{
		campaignRepo:   campaignRepo,
		subscriberRepo: subscriberRepo,
		analyticsRepo:  analyticsRepo,
		logger:         logger,
	}
}

// RollupDaily recomputes and stores the (user, day) row from campaigns sent that day
func (f *AnalyticsFlowImpl) RollupDaily(ctx context.Context, userID uint, date time.Time) (*dto.DailyAnalyticsResponse, error) {
	day := utils.StartOfDayUTC(date)
	next := day.AddDate(0, 0, 1)

	totals, err := f.campaignRepo.TotalsForUser(ctx, userID, &day, &next)
	if err != nil {
		return nil, NewBusinessError("ANALYTICS_TOTALS_FAILED", "Failed to sum campaign totals", err)
	}
	activity, err := f.subscriberRepo.ActivityForUser(ctx, userID, day, next)
	if err != nil {
		return nil, NewBusinessError("ANALYTICS_ACTIVITY_FAILED", "Failed to load subscriber activity", err)
	}

	sent := totals.TotalSent
	delivered := sent - totals.Bounces
	if delivered < 0 {
		delivered = 0
	}

	row := &models.DailyAnalytics{
		UserID:           userID,
		Date:             day,
		TotalCampaigns:   totals.Campaigns,
		TotalSubscribers: activity.Total,
		NewSubscribers:   activity.New,
		Unsubscribed:     activity.Unsubscribed,
		EmailsSent:       sent,
		EmailsDelivered:  delivered,
		EmailsOpened:     totals.UniqueOpens,
		EmailsClicked:    totals.UniqueClicks,
		EmailsBounced:    totals.Bounces,
		DeliveryRate:     Percentage(delivered, sent),
		OpenRate:         Percentage(totals.UniqueOpens, sent),
		ClickRate:        Percentage(totals.UniqueClicks, sent),
		BounceRate:       Percentage(totals.Bounces, sent),
	}

	if err := f.analyticsRepo.Upsert(ctx, row); err != nil {
		return nil, NewBusinessError("ANALYTICS_UPSERT_FAILED", "Failed to store daily analytics", err)
	}

	return toDailyAnalyticsDTO(row), nil
}

// RollupAll refreshes yesterday and today for every user that sent on those days
func (f *AnalyticsFlowImpl) RollupAll(ctx context.Context, now time.Time) (int, error) {
	today := utils.StartOfDayUTC(now)
	done := 0

	for _, day := range []time.Time{today.AddDate(0, 0, -1), today} {
		users, err := f.campaignRepo.UserIDsWithSentCampaigns(ctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			return done, NewBusinessError("ANALYTICS_USERS_FAILED", "Failed to list users for rollup", err)
		}
		for _, userID := range users {
			if _, err := f.RollupDaily(ctx, userID, day); err != nil {
				f.logger.Printf("Daily rollup failed for user %d on %s: %v", userID, day.Format(time.DateOnly), err)
				continue
			}
			done++
		}
	}
	return done, nil
}

// Daily parses a YYYY-MM-DD date, refreshes that day and returns it
func (f *AnalyticsFlowImpl) Daily(ctx context.Context, userID uint, date string) (*dto.DailyAnalyticsResponse, error) {
	day := utils.UTCNow()
	if date != "" {
		parsed, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return nil, NewBusinessError("DATE_INVALID", "date must be YYYY-MM-DD", ErrInvalidDateRange)
		}
		day = parsed
	}
	if day.After(utils.UTCNow()) {
		return nil, ErrInvalidDateRange
	}
	return f.RollupDaily(ctx, userID, day)
}

// Overview returns a per-day series over the trailing window with totals and rates
func (f *AnalyticsFlowImpl) Overview(ctx context.Context, userID uint, days int) (*dto.AnalyticsOverviewResponse, error) {
	if days == 0 {
		days = utils.PerformanceDays
	}
	if days < 0 || days > maxOverviewDays {
		return nil, ErrInvalidDateRange
	}

	to := utils.StartOfDayUTC(utils.UTCNow()).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -days)

	points, err := f.campaignRepo.DailyPerformance(ctx, userID, from, to)
	if err != nil {
		return nil, NewBusinessError("ANALYTICS_SERIES_FAILED", "Failed to load daily performance", err)
	}
	totals, err := f.campaignRepo.TotalsForUser(ctx, userID, &from, &to)
	if err != nil {
		return nil, NewBusinessError("ANALYTICS_TOTALS_FAILED", "Failed to sum campaign totals", err)
	}

	return &dto.AnalyticsOverviewResponse{
		Days:           days,
		TotalCampaigns: totals.Campaigns,
		TotalSent:      totals.TotalSent,
		TotalOpens:     totals.Opens,
		TotalClicks:    totals.Clicks,
		OpenRate:       Percentage(totals.UniqueOpens, totals.TotalSent),
		ClickRate:      Percentage(totals.UniqueClicks, totals.TotalSent),
		Performance:    fillSeries(points, from, days),
	}, nil
}

// RealTime returns the month-to-date send volume and mean open rate
func (f *AnalyticsFlowImpl) RealTime(ctx context.Context, userID uint) (*dto.RealTimeStatsResponse, error) {
	now := utils.UTCNow()
	monthStart := utils.StartOfMonthUTC(now)

	totals, err := f.campaignRepo.TotalsForUser(ctx, userID, &monthStart, nil)
	if err != nil {
		return nil, NewBusinessError("ANALYTICS_TOTALS_FAILED", "Failed to sum campaign totals", err)
	}
	avg, err := f.campaignRepo.AverageOpenRate(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("ANALYTICS_OPEN_RATE_FAILED", "Failed to compute open rate", err)
	}

	return &dto.RealTimeStatsResponse{
		MonthlySent: totals.TotalSent,
		AvgOpenRate: RoundRate(avg),
		Timestamp:   now.Format(time.RFC3339),
	}, nil
}

// fillSeries returns one point per day starting at from, with zeros for days without sends
func fillSeries(points []models.DailyPerformance, from time.Time, days int) []dto.DailyPerformancePoint {
	byDay := make(map[string]models.DailyPerformance, len(points))
	for _, p := range points {
		byDay[p.Day.UTC().Format(time.DateOnly)] = p
	}

	out := make([]dto.DailyPerformancePoint, 0, days)
	for i := 0; i < days; i++ {
		key := from.AddDate(0, 0, i).Format(time.DateOnly)
		p := byDay[key]
		out = append(out, dto.DailyPerformancePoint{Date: key, Sent: p.Sent, Opens: p.Opens, Clicks: p.Clicks})
	}
	return out
}

func toDailyAnalyticsDTO(row *models.DailyAnalytics) *dto.DailyAnalyticsResponse {
	return &dto.DailyAnalyticsResponse{
		Date:             row.Date.Format(time.DateOnly),
		TotalCampaigns:   row.TotalCampaigns,
		TotalSubscribers: row.TotalSubscribers,
		NewSubscribers:   row.NewSubscribers,
		Unsubscribed:     row.Unsubscribed,
		EmailsSent:       row.EmailsSent,
		EmailsDelivered:  row.EmailsDelivered,
		EmailsOpened:     row.EmailsOpened,
		EmailsClicked:    row.EmailsClicked,
		EmailsBounced:    row.EmailsBounced,
		DeliveryRate:     row.DeliveryRate,
		OpenRate:         row.OpenRate,
		ClickRate:        row.ClickRate,
		BounceRate:       row.BounceRate,
	}
}
