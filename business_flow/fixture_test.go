package businessflow

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/amirphl/orochi-mail/app/services"
	"github.com/amirphl/orochi-mail/models"
	"github.com/stretchr/testify/require"
)

const trackingBase = "https://track.example.com"

type flowFixture struct {
	store       *fakeStore
	campaigns   *fakeCampaignRepo
	lists       *fakeMailListRepo
	subscribers *fakeSubscriberRepo
	deliveries  *fakeDeliveryRepo
	clicks      *fakeClickRepo
	analytics   *fakeAnalyticsRepo
	blacklist   *fakeBlacklistRepo
	provider    *services.MockEmailProvider
	client      services.DeliveryClient
	queue       *fakeQueue
	logger      *log.Logger
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	s := newFakeStore()
	logger := log.New(io.Discard, "", 0)
	provider := services.NewMockEmailProvider(logger)

	return &flowFixture{
		store:       s,
		campaigns:   &fakeCampaignRepo{s: s},
		lists:       &fakeMailListRepo{s: s},
		subscribers: &fakeSubscriberRepo{s: s},
		deliveries:  &fakeDeliveryRepo{s: s},
		clicks:      &fakeClickRepo{s: s},
		analytics:   &fakeAnalyticsRepo{s: s},
		blacklist:   &fakeBlacklistRepo{s: s},
		provider:    provider,
		client: services.NewDeliveryClient(provider, services.DeliveryClientConfig{
			FromEmail:       "news@example.com",
			FromName:        "News",
			TrackingBaseURL: trackingBase,
		}, logger),
		queue:  &fakeQueue{},
		logger: logger,
	}
}

func (fx *flowFixture) dispatchFlow(cfg DispatchConfig) CampaignDispatchFlow {
	return NewCampaignDispatchFlow(fx.campaigns, fx.subscribers, fx.deliveries, fx.client, fx.queue, cfg, fx.logger)
}

func (fx *flowFixture) trackingFlow() TrackingFlow {
	return NewTrackingFlow(fx.campaigns, fx.subscribers, fx.deliveries, fx.clicks)
}

// seedCampaign creates a draft campaign for userID targeting one list of n active subscribers
func (fx *flowFixture) seedCampaign(t *testing.T, userID uint, n int) (*models.Campaign, []*models.Subscriber) {
	t.Helper()
	ctx := context.Background()

	list := &models.MailList{UserID: userID, Name: fmt.Sprintf("list-%d-%d", userID, fx.store.nextID)}
	require.NoError(t, fx.lists.Save(ctx, list))

	subs := make([]*models.Subscriber, 0, n)
	for i := 1; i <= n; i++ {
		sub := &models.Subscriber{
			MailListID: list.ID,
			Email:      fmt.Sprintf("user%02d-%d@example.com", i, list.ID),
			Name:       fmt.Sprintf("User %d", i),
			IsActive:   true,
		}
		require.NoError(t, fx.subscribers.Save(ctx, sub))
		subs = append(subs, sub)
	}

	campaign := &models.Campaign{
		UserID:  userID,
		Name:    "Spring Sale",
		Subject: "Spring is here",
		Content: "Hello",
	}
	require.NoError(t, fx.campaigns.Save(ctx, campaign))
	require.NoError(t, fx.campaigns.AttachMailLists(ctx, campaign.ID, []uint{list.ID}))
	require.NoError(t, fx.lists.RecountSubscribers(ctx, list.ID))

	return campaign, subs
}

func (fx *flowFixture) campaign(t *testing.T, id uint) *models.Campaign {
	t.Helper()
	c, err := fx.campaigns.ByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func (fx *flowFixture) setStatus(t *testing.T, id uint, status models.CampaignStatus) {
	t.Helper()
	require.NoError(t, fx.campaigns.UpdateStatus(context.Background(), id, status))
}
