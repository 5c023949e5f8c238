package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/orochi-mail/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUnsubscribeFlow(fx *flowFixture) UnsubscribeFlow {
	return NewUnsubscribeFlow(fx.campaigns, fx.subscribers, fx.lists, fx.deliveries, nil)
}

func TestUnsubscribe(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()
	campaign, subs := fx.seedCampaign(t, 1, 3)
	_, err := fx.dispatchFlow(DispatchConfig{}).Dispatch(ctx, campaign.ID)
	require.NoError(t, err)

	flow := newUnsubscribeFlow(fx)
	rid, cid := subs[1].UUID.String(), campaign.UUID.String()

	preview, err := flow.Preview(ctx, rid, cid)
	require.NoError(t, err)
	assert.Equal(t, subs[1].Email, preview.Email)
	assert.Equal(t, "Spring Sale", preview.CampaignName)

	res, err := flow.Unsubscribe(ctx, rid, cid)
	require.NoError(t, err)
	assert.False(t, res.AlreadyUnsubscribed)
	assert.Equal(t, subs[1].Email, res.Email)

	sub, err := fx.subscribers.ByID(ctx, subs[1].ID)
	require.NoError(t, err)
	assert.False(t, sub.IsActive)
	assert.NotNil(t, sub.UnsubscribedAt)

	record, err := fx.deliveries.ByCampaignAndSubscriber(ctx, campaign.ID, subs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusUnsubscribed, record.Status)

	list, err := fx.lists.ByID(ctx, subs[1].MailListID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.SubscriberCount)
	assert.EqualValues(t, 1, list.UnsubscribedCount)
	assert.EqualValues(t, 1, fx.campaign(t, campaign.ID).Unsubscribes)

	again, err := flow.Unsubscribe(ctx, rid, cid)
	require.NoError(t, err)
	assert.True(t, again.AlreadyUnsubscribed)
	assert.EqualValues(t, 1, fx.campaign(t, campaign.ID).Unsubscribes)
}

func TestUnsubscribe_WithoutDeliveryRecord(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()
	campaign, subs := fx.seedCampaign(t, 1, 1)

	res, err := newUnsubscribeFlow(fx).Unsubscribe(ctx, subs[0].UUID.String(), campaign.UUID.String())
	require.NoError(t, err)
	assert.False(t, res.AlreadyUnsubscribed)
	assert.Empty(t, fx.store.records)
	assert.EqualValues(t, 1, fx.campaign(t, campaign.ID).Unsubscribes)
}

func TestUnsubscribe_UnknownIDs(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()
	campaign, subs := fx.seedCampaign(t, 1, 1)
	flow := newUnsubscribeFlow(fx)

	tests := []struct {
		name    string
		rid     string
		cid     string
		wantErr error
	}{
		{name: "malformed subscriber", rid: "nope", cid: campaign.UUID.String(), wantErr: ErrSubscriberNotFound},
		{name: "unknown subscriber", rid: uuid.NewString(), cid: campaign.UUID.String(), wantErr: ErrSubscriberNotFound},
		{name: "malformed campaign", rid: subs[0].UUID.String(), cid: "nope", wantErr: ErrCampaignNotFound},
		{name: "unknown campaign", rid: subs[0].UUID.String(), cid: uuid.NewString(), wantErr: ErrCampaignNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := flow.Unsubscribe(ctx, tt.rid, tt.cid)
			assert.ErrorIs(t, err, tt.wantErr)
			_, err = flow.Preview(ctx, tt.rid, tt.cid)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	sub, err := fx.subscribers.ByID(ctx, subs[0].ID)
	require.NoError(t, err)
	assert.True(t, sub.IsActive)
}
