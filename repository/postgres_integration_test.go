package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/orochi-mail/models"
	testingutil "github.com/amirphl/orochi-mail/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withPostgres runs fn against a throwaway database and skips when PostgreSQL is not reachable
func withPostgres(t *testing.T, fn func(t *testing.T, tdb *testingutil.TestDB)) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	err := testingutil.TestWithDB(func(tdb *testingutil.TestDB) error {
		fn(t, tdb)
		return nil
	})
	if errors.Is(err, testingutil.ErrTestDBUnavailable) {
		t.Skipf("PostgreSQL unavailable: %v", err)
	}
	require.NoError(t, err)
}

func TestPostgres_DispatchPath(t *testing.T) {
	withPostgres(t, func(t *testing.T, tdb *testingutil.TestDB) {
		ctx := testingutil.CreateTestContext()
		fx := testingutil.NewTestFixtures(tdb)

		listA, err := fx.CreateTestMailList(1)
		require.NoError(t, err)
		listB, err := fx.CreateTestMailList(1)
		require.NoError(t, err)

		subsA, err := fx.CreateTestSubscribers(listA.ID, 3)
		require.NoError(t, err)

		// Same person on the second list under a different case, plus one blacklisted address
		dup := &models.Subscriber{MailListID: listB.ID, Email: "DUP-" + subsA[0].Email, IsActive: true}
		require.NoError(t, tdb.DB.Create(dup).Error)
		dupLower := &models.Subscriber{MailListID: listA.ID, Email: "dup-" + subsA[0].Email, IsActive: true}
		require.NoError(t, tdb.DB.Create(dupLower).Error)
		blocked := &models.Subscriber{MailListID: listB.ID, Email: "blocked@example.com", IsActive: true}
		require.NoError(t, tdb.DB.Create(blocked).Error)

		blacklistRepo := NewBlacklistRepository(tdb.DB)
		require.NoError(t, blacklistRepo.Add(ctx, &models.BlacklistEntry{Email: "Blocked@Example.com", Reason: models.BlacklistReasonComplaint}))

		campaign, err := fx.CreateTestCampaign(1, listA.ID, listB.ID)
		require.NoError(t, err)

		campaignRepo := NewCampaignRepository(tdb.DB)
		listIDs, err := campaignRepo.MailListIDs(ctx, campaign.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{listA.ID, listB.ID}, listIDs)

		audience, err := NewSubscriberRepository(tdb.DB).ActiveAudience(ctx, listIDs)
		require.NoError(t, err)
		emails := make(map[string]bool)
		for _, s := range audience {
			emails[s.Email] = true
		}
		assert.Len(t, audience, 4, "three originals plus one copy of the duplicated address")
		assert.False(t, emails["blocked@example.com"])

		won, err := campaignRepo.ClaimForSending(ctx, campaign.ID, time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, won)
		won, err = campaignRepo.ClaimForSending(ctx, campaign.ID, time.Now().UTC())
		require.NoError(t, err)
		assert.False(t, won, "a campaign already sending cannot be claimed twice")

		deliveryRepo := NewDeliveryRecordRepository(tdb.DB)
		first, created, err := deliveryRepo.Ensure(ctx, &models.DeliveryRecord{CampaignID: campaign.ID, SubscriberID: subsA[1].ID, MessageID: "m-1"})
		require.NoError(t, err)
		assert.True(t, created)
		again, created, err := deliveryRepo.Ensure(ctx, &models.DeliveryRecord{CampaignID: campaign.ID, SubscriberID: subsA[1].ID, MessageID: "m-2"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, "m-1", again.MessageID)

		opened, err := deliveryRepo.MarkOpened(ctx, first.ID, time.Now().UTC(), nil, nil)
		require.NoError(t, err)
		assert.True(t, opened)
		opened, err = deliveryRepo.MarkOpened(ctx, first.ID, time.Now().UTC(), nil, nil)
		require.NoError(t, err)
		assert.False(t, opened, "only the first open is unique")

		require.NoError(t, campaignRepo.IncrementCounters(ctx, campaign.ID, CounterDelta{TotalSent: 4, Bounces: 1}))
		reloaded, err := campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusSending, reloaded.Status)
		assert.Equal(t, int64(4), reloaded.TotalSent)
		assert.Equal(t, int64(1), reloaded.Bounces)
	})
}

func TestPostgres_ClaimSendAfterTrackingRow(t *testing.T) {
	withPostgres(t, func(t *testing.T, tdb *testingutil.TestDB) {
		ctx := context.Background()
		fx := testingutil.NewTestFixtures(tdb)

		list, err := fx.CreateTestMailList(1)
		require.NoError(t, err)
		subs, err := fx.CreateTestSubscribers(list.ID, 2)
		require.NoError(t, err)
		campaign, err := fx.CreateTestCampaign(1, list.ID)
		require.NoError(t, err)

		repo := NewDeliveryRecordRepository(tdb.DB)
		now := time.Now().UTC()

		// Opened before it was sent
		early, _, err := repo.Ensure(ctx, &models.DeliveryRecord{CampaignID: campaign.ID, SubscriberID: subs[0].ID})
		require.NoError(t, err)
		assert.Nil(t, early.SentAt)
		opened, err := repo.MarkOpened(ctx, early.ID, now, nil, nil)
		require.NoError(t, err)
		require.True(t, opened)

		claimed, err := repo.ClaimSend(ctx, early.ID, now)
		require.NoError(t, err)
		assert.True(t, claimed)
		claimed, err = repo.ClaimSend(ctx, early.ID, now)
		require.NoError(t, err)
		assert.False(t, claimed, "a sent row is claimed once")

		reloaded, err := repo.ByCampaignAndSubscriber(ctx, campaign.ID, subs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatusOpened, reloaded.Status)
		require.NotNil(t, reloaded.SentAt)

		// A provider failure is retried and reset to sent
		failed, created, err := repo.Ensure(ctx, &models.DeliveryRecord{CampaignID: campaign.ID, SubscriberID: subs[1].ID, SentAt: &now})
		require.NoError(t, err)
		require.True(t, created)
		require.NoError(t, repo.MarkBounced(ctx, failed.ID, models.BounceTypeSendFailure, "throttled"))

		claimed, err = repo.ClaimSend(ctx, failed.ID, now)
		require.NoError(t, err)
		assert.True(t, claimed)
		retried, err := repo.ByCampaignAndSubscriber(ctx, campaign.ID, subs[1].ID)
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatusSent, retried.Status)
		assert.Nil(t, retried.ErrorMessage)
	})
}

func TestPostgres_UnsubscribeRecount(t *testing.T) {
	withPostgres(t, func(t *testing.T, tdb *testingutil.TestDB) {
		ctx := context.Background()
		fx := testingutil.NewTestFixtures(tdb)

		list, err := fx.CreateTestMailList(2)
		require.NoError(t, err)
		subs, err := fx.CreateTestSubscribers(list.ID, 2)
		require.NoError(t, err)

		subscriberRepo := NewSubscriberRepository(tdb.DB)
		changed, err := subscriberRepo.Unsubscribe(ctx, subs[0].ID, time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, changed)
		changed, err = subscriberRepo.Unsubscribe(ctx, subs[0].ID, time.Now().UTC())
		require.NoError(t, err)
		assert.False(t, changed)

		listRepo := NewMailListRepository(tdb.DB)
		require.NoError(t, listRepo.RecountSubscribers(ctx, list.ID))
		reloaded, err := listRepo.ByID(ctx, list.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, int(reloaded.SubscriberCount))
		assert.Equal(t, 1, int(reloaded.UnsubscribedCount))
	})
}
