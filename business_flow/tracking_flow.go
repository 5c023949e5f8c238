package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/repository"
	"github.com/amirphl/orochi-mail/utils"
)

// TrackingFlow records open beacons and link clicks.
// Public flow, no authentication required. Unknown ids are ignored.
type TrackingFlow interface {
	RecordOpen(ctx context.Context, recipientUUID, campaignUUID, userAgent, ip string) error
	RecordClick(ctx context.Context, recipientUUID, campaignUUID, targetURL, userAgent, ip string) (string, error)
}

type TrackingFlowImpl struct {
	campaignRepo   repository.CampaignRepository
	subscriberRepo repository.SubscriberRepository
	deliveryRepo   repository.DeliveryRecordRepository
	clickRepo      repository.ClickEventRepository
}

func NewTrackingFlow(
	campaignRepo repository.CampaignRepository,
	subscriberRepo repository.SubscriberRepository,
	deliveryRepo repository.DeliveryRecordRepository,
	clickRepo repository.ClickEventRepository,
) TrackingFlow {
	return &TrackingFlowImpl{
		campaignRepo:   campaignRepo,
		subscriberRepo: subscriberRepo,
		deliveryRepo:   deliveryRepo,
		clickRepo:      clickRepo,
	}
}

func (f *TrackingFlowImpl) RecordOpen(ctx context.Context, recipientUUID, campaignUUID, userAgent, ip string) error {
	trackingEventsTotal.WithLabelValues("open").Inc()

	record, err := f.resolveRecord(ctx, recipientUUID, campaignUUID)
	if err != nil || record == nil {
		return err
	}

	won, err := f.deliveryRepo.MarkOpened(ctx, record.ID, utils.UTCNow(), strPtrOrNil(userAgent), strPtrOrNil(ip))
	if err != nil {
		return NewBusinessError("TRACK_OPEN_FAILED", "Failed to record open", err)
	}
	if !won {
		return nil
	}

	if err := f.campaignRepo.RecordOpen(ctx, record.CampaignID); err != nil {
		return NewBusinessError("TRACK_OPEN_FAILED", "Failed to update campaign opens", err)
	}
	return nil
}

// RecordClick always hands back targetURL so the caller can redirect even when recording fails
func (f *TrackingFlowImpl) RecordClick(ctx context.Context, recipientUUID, campaignUUID, targetURL, userAgent, ip string) (string, error) {
	if strings.TrimSpace(targetURL) == "" {
		return "", ErrTrackingURLMissing
	}
	trackingEventsTotal.WithLabelValues("click").Inc()

	record, err := f.resolveRecord(ctx, recipientUUID, campaignUUID)
	if err != nil || record == nil {
		return targetURL, err
	}

	if err := f.clickRepo.Increment(ctx, record.ID, targetURL); err != nil {
		return targetURL, NewBusinessError("TRACK_CLICK_FAILED", "Failed to record click event", err)
	}

	won, err := f.deliveryRepo.MarkClicked(ctx, record.ID, utils.UTCNow(), strPtrOrNil(userAgent), strPtrOrNil(ip))
	if err != nil {
		return targetURL, NewBusinessError("TRACK_CLICK_FAILED", "Failed to record click", err)
	}
	if !won {
		return targetURL, nil
	}

	if err := f.campaignRepo.RecordClick(ctx, record.CampaignID); err != nil {
		return targetURL, NewBusinessError("TRACK_CLICK_FAILED", "Failed to update campaign clicks", err)
	}
	return targetURL, nil
}

// resolveRecord returns nil without error when either id is unknown
func (f *TrackingFlowImpl) resolveRecord(ctx context.Context, recipientUUID, campaignUUID string) (*models.DeliveryRecord, error) {
	rid, err := utils.ParseUUID(recipientUUID)
	if err != nil {
		return nil, nil
	}
	cid, err := utils.ParseUUID(campaignUUID)
	if err != nil {
		return nil, nil
	}

	subscriber, err := f.subscriberRepo.ByUUID(ctx, rid)
	if err != nil {
		return nil, NewBusinessError("SUBSCRIBER_LOOKUP_FAILED", "Failed to load subscriber", err)
	}
	campaign, err := f.campaignRepo.ByUUID(ctx, cid)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to load campaign", err)
	}
	if subscriber == nil || campaign == nil {
		return nil, nil
	}

	record, _, err := f.deliveryRepo.Ensure(ctx, &models.DeliveryRecord{
		CampaignID:   campaign.ID,
		SubscriberID: subscriber.ID,
		Status:       models.DeliveryStatusSent,
		MessageID:    models.MessageRef(campaign.UUID, subscriber.UUID),
	})
	// The row may predate the send. SentAt stays nil so the dispatcher still delivers.
	if err != nil {
		return nil, NewBusinessError("DELIVERY_RECORD_FAILED", "Failed to load delivery record", err)
	}
	return record, nil
}
