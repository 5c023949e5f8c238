package dto

// SendCampaignResponse is returned when a campaign has been queued for delivery
type SendCampaignResponse struct {
	Message      string `json:"message"`
	UUID         string `json:"uuid"`
	Status       string `json:"status"`
	AudienceSize int    `json:"audience_size"`
}

// TestSendRequest asks for a single untracked copy of a campaign
type TestSendRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
	Email  string `json:"email" validate:"required,email,max=254"`
}

// TestSendResponse reports the provider outcome of a test send
type TestSendResponse struct {
	Message           string `json:"message"`
	Email             string `json:"email"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
}

// ScheduleCampaignRequest sets a future send time
type ScheduleCampaignRequest struct {
	UUID          string `json:"-"`
	UserID        uint   `json:"-"`
	ScheduledTime string `json:"scheduled_time" validate:"required"`
}

// CampaignStatusResponse reports a campaign after a lifecycle change
type CampaignStatusResponse struct {
	Message       string  `json:"message"`
	UUID          string  `json:"uuid"`
	Status        string  `json:"status"`
	ScheduledTime *string `json:"scheduled_time,omitempty"`
}

// CampaignRates holds percentage rates rounded to two decimals
type CampaignRates struct {
	OpenRate   float64 `json:"open_rate"`
	ClickRate  float64 `json:"click_rate"`
	BounceRate float64 `json:"bounce_rate"`
}

// CampaignStatsResponse is the full counter block of a campaign with derived rates
type CampaignStatsResponse struct {
	UUID         string  `json:"uuid"`
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	SentAt       *string `json:"sent_at,omitempty"`
	TotalSent    int64   `json:"total_sent"`
	Delivered    int64   `json:"delivered"`
	Opens        int64   `json:"opens"`
	UniqueOpens  int64   `json:"unique_opens"`
	Clicks       int64   `json:"clicks"`
	UniqueClicks int64   `json:"unique_clicks"`
	Bounces      int64   `json:"bounces"`
	Complaints   int64   `json:"complaints"`
	Unsubscribes int64   `json:"unsubscribes"`
	CampaignRates
}

// RecentStatsResponse is the short-window activity of a campaign
type RecentStatsResponse struct {
	UUID         string `json:"uuid"`
	RecentOpens  int64  `json:"recent_opens"`
	RecentClicks int64  `json:"recent_clicks"`
	TotalOpens   int64  `json:"total_opens"`
	TotalClicks  int64  `json:"total_clicks"`
	Timestamp    string `json:"timestamp"`
}
