package businessflow

import (
	"context"

	"github.com/amirphl/orochi-mail/app/dto"
	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/repository"
	"github.com/amirphl/orochi-mail/utils"
	"gorm.io/gorm"
)

// UnsubscribeFlow handles the one-click unsubscribe link embedded in campaign messages.
// Public flow, no authentication required.
type UnsubscribeFlow interface {
	Preview(ctx context.Context, recipientUUID, campaignUUID string) (*dto.UnsubscribePreview, error)
	Unsubscribe(ctx context.Context, recipientUUID, campaignUUID string) (*dto.UnsubscribeResult, error)
}

type UnsubscribeFlowImpl struct {
	campaignRepo   repository.CampaignRepository
	subscriberRepo repository.SubscriberRepository
	mailListRepo   repository.MailListRepository
	deliveryRepo   repository.DeliveryRecordRepository
	db             *gorm.DB
}

func NewUnsubscribeFlow(
	campaignRepo repository.CampaignRepository,
	subscriberRepo repository.SubscriberRepository,
	mailListRepo repository.MailListRepository,
	deliveryRepo repository.DeliveryRecordRepository,
	db *gorm.DB,
) UnsubscribeFlow {
	return &UnsubscribeFlowImpl{
		campaignRepo:   campaignRepo,
		subscriberRepo: subscriberRepo,
		mailListRepo:   mailListRepo,
		deliveryRepo:   deliveryRepo,
		db:             db,
	}
}

func (f *UnsubscribeFlowImpl) Preview(ctx context.Context, recipientUUID, campaignUUID string) (*dto.UnsubscribePreview, error) {
	subscriber, campaign, err := f.resolve(ctx, recipientUUID, campaignUUID)
	if err != nil {
		return nil, err
	}
	return &dto.UnsubscribePreview{Email: subscriber.Email, CampaignName: campaign.Name}, nil
}

// Unsubscribe deactivates the subscriber once. Repeated calls succeed without changing counters.
func (f *UnsubscribeFlowImpl) Unsubscribe(ctx context.Context, recipientUUID, campaignUUID string) (*dto.UnsubscribeResult, error) {
	subscriber, campaign, err := f.resolve(ctx, recipientUUID, campaignUUID)
	if err != nil {
		return nil, err
	}

	var changed bool
	err = runInTx(ctx, f.db, func(txCtx context.Context) error {
		var err error
		changed, err = f.subscriberRepo.Unsubscribe(txCtx, subscriber.ID, utils.UTCNow())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		record, err := f.deliveryRepo.ByCampaignAndSubscriber(txCtx, campaign.ID, subscriber.ID)
		if err != nil {
			return err
		}
		if record != nil {
			if _, err := f.deliveryRepo.MarkUnsubscribed(txCtx, record.ID); err != nil {
				return err
			}
		}

		if err := f.campaignRepo.IncrementUnsubscribes(txCtx, campaign.ID); err != nil {
			return err
		}
		return f.mailListRepo.RecountSubscribers(txCtx, subscriber.MailListID)
	})
	if err != nil {
		return nil, NewBusinessError("UNSUBSCRIBE_FAILED", "Failed to unsubscribe", err)
	}

	return &dto.UnsubscribeResult{Email: subscriber.Email, AlreadyUnsubscribed: !changed}, nil
}

func (f *UnsubscribeFlowImpl) resolve(ctx context.Context, recipientUUID, campaignUUID string) (*models.Subscriber, *models.Campaign, error) {
	rid, err := utils.ParseUUID(recipientUUID)
	if err != nil {
		return nil, nil, ErrSubscriberNotFound
	}
	cid, err := utils.ParseUUID(campaignUUID)
	if err != nil {
		return nil, nil, ErrCampaignNotFound
	}

	subscriber, err := f.subscriberRepo.ByUUID(ctx, rid)
	if err != nil {
		return nil, nil, NewBusinessError("SUBSCRIBER_LOOKUP_FAILED", "Failed to load subscriber", err)
	}
	if subscriber == nil {
		return nil, nil, ErrSubscriberNotFound
	}

	campaign, err := f.campaignRepo.ByUUID(ctx, cid)
	if err != nil {
		return nil, nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to load campaign", err)
	}
	if campaign == nil {
		return nil, nil, ErrCampaignNotFound
	}
	return subscriber, campaign, nil
}
