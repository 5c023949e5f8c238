package models

import "time"

// CampaignTotals sums the counter block over a set of campaigns
type CampaignTotals struct {
	Campaigns    int64 `json:"campaigns"`
	TotalSent    int64 `json:"total_sent"`
	Opens        int64 `json:"opens"`
	UniqueOpens  int64 `json:"unique_opens"`
	Clicks       int64 `json:"clicks"`
	UniqueClicks int64 `json:"unique_clicks"`
	Bounces      int64 `json:"bounces"`
}

// DailyPerformance is one point of the per-day sent/opens/clicks series
type DailyPerformance struct {
	Day    time.Time `json:"day"`
	Sent   int64     `json:"sent"`
	Opens  int64     `json:"opens"`
	Clicks int64     `json:"clicks"`
}

// DeliveryReportRow is one line of a campaign delivery export
type DeliveryReportRow struct {
	Email      string         `json:"email"`
	Name       string         `json:"name"`
	Status     DeliveryStatus `json:"status"`
	MessageID  string         `json:"message_id"`
	SentAt     *time.Time     `json:"sent_at,omitempty"`
	OpenedAt   *time.Time     `json:"opened_at,omitempty"`
	ClickedAt  *time.Time     `json:"clicked_at,omitempty"`
	ClickCount int64          `json:"click_count"`
	Error      *string        `json:"error,omitempty"`
}

// SubscriberActivity summarizes list membership changes for one user
type SubscriberActivity struct {
	Total        int64 `json:"total"`
	New          int64 `json:"new"`
	Unsubscribed int64 `json:"unsubscribed"`
}
