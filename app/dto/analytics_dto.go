package dto

// DailyPerformancePoint is one day of the performance series
type DailyPerformancePoint struct {
	Date   string `json:"date"`
	Sent   int64  `json:"sent"`
	Opens  int64  `json:"opens"`
	Clicks int64  `json:"clicks"`
}

// AnalyticsOverviewResponse summarizes a user's campaigns over a trailing window
type AnalyticsOverviewResponse struct {
	Days           int                     `json:"days"`
	TotalCampaigns int64                   `json:"total_campaigns"`
	TotalSent      int64                   `json:"total_sent"`
	TotalOpens     int64                   `json:"total_opens"`
	TotalClicks    int64                   `json:"total_clicks"`
	OpenRate       float64                 `json:"open_rate"`
	ClickRate      float64                 `json:"click_rate"`
	Performance    []DailyPerformancePoint `json:"performance"`
}

// RealTimeStatsResponse is the lightweight dashboard header
type RealTimeStatsResponse struct {
	MonthlySent int64   `json:"monthly_sent"`
	AvgOpenRate float64 `json:"avg_open_rate"`
	Timestamp   string  `json:"timestamp"`
}

// DailyAnalyticsResponse is a stored per-day rollup
type DailyAnalyticsResponse struct {
	Date             string  `json:"date"`
	TotalCampaigns   int64   `json:"total_campaigns"`
	TotalSubscribers int64   `json:"total_subscribers"`
	NewSubscribers   int64   `json:"new_subscribers"`
	Unsubscribed     int64   `json:"unsubscribed"`
	EmailsSent       int64   `json:"emails_sent"`
	EmailsDelivered  int64   `json:"emails_delivered"`
	EmailsOpened     int64   `json:"emails_opened"`
	EmailsClicked    int64   `json:"emails_clicked"`
	EmailsBounced    int64   `json:"emails_bounced"`
	DeliveryRate     float64 `json:"delivery_rate"`
	OpenRate         float64 `json:"open_rate"`
	ClickRate        float64 `json:"click_rate"`
	BounceRate       float64 `json:"bounce_rate"`
}

// AddBlacklistRequest excludes an address from every future audience
type AddBlacklistRequest struct {
	UserID      uint   `json:"-"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Reason      string `json:"reason" validate:"omitempty,oneof=bounce complaint manual spam"`
	Description string `json:"description" validate:"omitempty,max=1000"`
}

// AddBlacklistResponse confirms a blacklist entry
type AddBlacklistResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
	Reason  string `json:"reason"`
}

// UnsubscribePreview is what the confirm page shows
type UnsubscribePreview struct {
	Email        string `json:"email"`
	CampaignName string `json:"campaign_name"`
}

// UnsubscribeResult is what the success page shows
type UnsubscribeResult struct {
	Email               string `json:"email"`
	AlreadyUnsubscribed bool   `json:"already_unsubscribed"`
}
