package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/orochi-mail/app/dto"
	"github.com/amirphl/orochi-mail/app/services"
	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/repository"
	"github.com/amirphl/orochi-mail/utils"
)

// CampaignFlow handles operator lifecycle actions on a campaign other than sending
type CampaignFlow interface {
	Schedule(ctx context.Context, req *dto.ScheduleCampaignRequest) (*dto.CampaignStatusResponse, error)
	Pause(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignStatusResponse, error)
	TestSend(ctx context.Context, req *dto.TestSendRequest) (*dto.TestSendResponse, error)
	AddToBlacklist(ctx context.Context, req *dto.AddBlacklistRequest) (*dto.AddBlacklistResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	blacklistRepo repository.BlacklistRepository
	client        services.DeliveryClient
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	blacklistRepo repository.BlacklistRepository,
	client services.DeliveryClient,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo:  campaignRepo,
		blacklistRepo: blacklistRepo,
		client:        client,
	}
}

var schedulableFrom = models.TransitionSources(models.CampaignStatusScheduled)

// Schedule sets a future send time on a draft, paused or failed campaign
func (s *CampaignFlowImpl) Schedule(ctx context.Context, req *dto.ScheduleCampaignRequest) (*dto.CampaignStatusResponse, error) {
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledTime))
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_TIME_INVALID", "scheduled_time must be RFC3339", err)
	}
	at = at.UTC()
	if !at.After(utils.UTCNow()) {
		return nil, ErrScheduleTimeInPast
	}

	campaign, err := ownedCampaign(ctx, s.campaignRepo, req.UserID, req.UUID)
	if err != nil {
		return nil, err
	}

	changed, err := s.campaignRepo.Schedule(ctx, campaign.ID, at, schedulableFrom)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_SCHEDULE_FAILED", "Failed to schedule campaign", err)
	}
	if !changed {
		return nil, ErrInvalidStatusTransition
	}

	scheduled := at.Format(time.RFC3339)
	return &dto.CampaignStatusResponse{
		Message:       "Campaign scheduled",
		UUID:          campaign.UUID.String(),
		Status:        string(models.CampaignStatusScheduled),
		ScheduledTime: &scheduled,
	}, nil
}

// Pause stops a sending campaign at its next progress checkpoint
func (s *CampaignFlowImpl) Pause(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignStatusResponse, error) {
	campaign, err := ownedCampaign(ctx, s.campaignRepo, userID, campaignUUID)
	if err != nil {
		return nil, err
	}

	changed, err := s.campaignRepo.UpdateStatusFrom(ctx, campaign.ID,
		models.TransitionSources(models.CampaignStatusPaused), models.CampaignStatusPaused)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_PAUSE_FAILED", "Failed to pause campaign", err)
	}
	if !changed {
		return nil, ErrInvalidStatusTransition
	}

	return &dto.CampaignStatusResponse{
		Message: "Campaign paused",
		UUID:    campaign.UUID.String(),
		Status:  string(models.CampaignStatusPaused),
	}, nil
}

// TestSend delivers one untracked copy with a prefixed subject
func (s *CampaignFlowImpl) TestSend(ctx context.Context, req *dto.TestSendRequest) (*dto.TestSendResponse, error) {
	campaign, err := ownedCampaign(ctx, s.campaignRepo, req.UserID, req.UUID)
	if err != nil {
		return nil, err
	}

	content := campaign.Content
	if content == "" {
		content = campaign.HTMLContent
	}

	res := s.client.SendTestMessage(ctx, req.Email, utils.TestSubjectPrefix+campaign.Subject, content)
	if !res.Success {
		return nil, NewBusinessError("TEST_SEND_FAILED", res.Message, ErrTestSendFailed)
	}

	return &dto.TestSendResponse{
		Message:           "Test message sent",
		Email:             req.Email,
		ProviderMessageID: res.ProviderMessageID,
	}, nil
}

// AddToBlacklist excludes an address from every future audience
func (s *CampaignFlowImpl) AddToBlacklist(ctx context.Context, req *dto.AddBlacklistRequest) (*dto.AddBlacklistResponse, error) {
	reason := models.BlacklistReason(req.Reason)
	if reason == "" {
		reason = models.BlacklistReasonManual
	}
	if !reason.Valid() {
		return nil, NewBusinessError("BLACKLIST_REASON_INVALID", "Unknown blacklist reason", nil)
	}

	entry := &models.BlacklistEntry{
		UserID:      utils.ToPtr(req.UserID),
		Email:       utils.NormalizeEmail(req.Email),
		Reason:      reason,
		Description: req.Description,
	}
	if err := s.blacklistRepo.Add(ctx, entry); err != nil {
		return nil, NewBusinessError("BLACKLIST_ADD_FAILED", "Failed to blacklist address", err)
	}

	return &dto.AddBlacklistResponse{
		Message: "Address blacklisted",
		Email:   entry.Email,
		Reason:  string(entry.Reason),
	}, nil
}
