package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/utils"
)

// DeliveryResult is the outcome of a single send. Provider failures are
// reported here rather than as errors.
type DeliveryResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
}

// DeliveryClient renders campaign messages and hands them to the provider
type DeliveryClient interface {
	SendCampaignMessage(ctx context.Context, campaign *models.Campaign, subscriber *models.Subscriber, plainBody string) DeliveryResult
	SendTestMessage(ctx context.Context, address, subject, content string) DeliveryResult
	TestConnection(ctx context.Context) (bool, string)
}

// DeliveryClientConfig holds sender identity and tracking settings
type DeliveryClientConfig struct {
	FromEmail       string
	FromName        string
	TrackingBaseURL string
	SendTimeout     time.Duration
}

// DeliveryClientImpl implements DeliveryClient on top of an EmailProvider
type DeliveryClientImpl struct {
	provider EmailProvider
	cfg      DeliveryClientConfig
	logger   *log.Logger
}

// NewDeliveryClient creates a new delivery client
func NewDeliveryClient(provider EmailProvider, cfg DeliveryClientConfig, logger *log.Logger) DeliveryClient {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &DeliveryClientImpl{provider: provider, cfg: cfg, logger: logger}
}

// SendCampaignMessage sends one tracked campaign message to one subscriber
func (c *DeliveryClientImpl) SendCampaignMessage(ctx context.Context, campaign *models.Campaign, subscriber *models.Subscriber, plainBody string) DeliveryResult {
	if campaign == nil || subscriber == nil {
		return DeliveryResult{Success: false, Message: "campaign and subscriber are required"}
	}

	rid, cid := subscriber.UUID.String(), campaign.UUID.String()

	// PrepareTrackedBody wraps a plain body itself
	htmlSource := campaign.HTMLContent
	if htmlSource == "" {
		htmlSource = plainBody
	}
	html := PrepareTrackedBody(htmlSource, rid, cid, c.cfg.TrackingBaseURL)

	msg := EmailMessage{
		FromEmail: c.cfg.FromEmail,
		FromName:  c.cfg.FromName,
		To:        subscriber.Email,
		Subject:   campaign.Subject,
		HTML:      html,
		Text:      plainBody,
		Headers: map[string]string{
			utils.MessageRefHeader:          models.MessageRef(campaign.UUID, subscriber.UUID),
			utils.ListUnsubscribeHeader:     "<" + UnsubscribeURL(c.cfg.TrackingBaseURL, rid, cid) + ">",
			utils.ListUnsubscribePostHeader: utils.ListUnsubscribeOneClick,
		},
		Tags: map[string]string{
			"campaign_id":   cid,
			"subscriber_id": rid,
		},
	}

	return c.send(ctx, msg)
}

// SendTestMessage sends untracked content to a single address
func (c *DeliveryClientImpl) SendTestMessage(ctx context.Context, address, subject, content string) DeliveryResult {
	msg := EmailMessage{
		FromEmail: c.cfg.FromEmail,
		FromName:  c.cfg.FromName,
		To:        address,
		Subject:   subject,
		HTML:      "<p>" + content + "</p>",
		Text:      content,
	}
	return c.send(ctx, msg)
}

// TestConnection checks that the provider is reachable and allowed to send
func (c *DeliveryClientImpl) TestConnection(ctx context.Context) (bool, string) {
	if c.provider == nil {
		return false, ErrProviderNotConfigured.Error()
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	defer cancel()

	if err := c.provider.Ping(ctx); err != nil {
		return false, err.Error()
	}
	return true, fmt.Sprintf("%s provider ready", c.provider.Name())
}

func (c *DeliveryClientImpl) send(ctx context.Context, msg EmailMessage) (result DeliveryResult) {
	if c.provider == nil {
		return DeliveryResult{Success: false, Message: ErrProviderNotConfigured.Error()}
	}

	defer func() {
		if r := recover(); r != nil {
			if c.logger != nil {
				c.logger.Printf("Recovered from provider panic sending to %s: %v", msg.To, r)
			}
			result = DeliveryResult{Success: false, Message: fmt.Sprintf("provider panic: %v", r)}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	defer cancel()

	id, err := c.provider.Send(ctx, msg)
	if err != nil {
		return DeliveryResult{Success: false, Message: err.Error()}
	}
	return DeliveryResult{Success: true, Message: "sent", ProviderMessageID: id}
}
