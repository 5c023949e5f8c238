package businessflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/repository"
	testingutil "github.com/amirphl/orochi-mail/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func TestPostgres_ConcurrentTrackingCountsOnce(t *testing.T) {
	const parallel = 12

	withPostgres(t, func(t *testing.T, tdb *testingutil.TestDB) {
		ctx := context.Background()
		fx := testingutil.NewTestFixtures(tdb)

		list, err := fx.CreateTestMailList(1)
		require.NoError(t, err)
		subs, err := fx.CreateTestSubscribers(list.ID, 1)
		require.NoError(t, err)
		campaign, err := fx.CreateTestCampaign(1, list.ID)
		require.NoError(t, err)

		campaignRepo := repository.NewCampaignRepository(tdb.DB)
		deliveryRepo := repository.NewDeliveryRecordRepository(tdb.DB)
		clickRepo := repository.NewClickEventRepository(tdb.DB)
		flow := NewTrackingFlow(campaignRepo, repository.NewSubscriberRepository(tdb.DB), deliveryRepo, clickRepo)

		rid, cid := subs[0].UUID.String(), campaign.UUID.String()
		target := "https://shop.example.com/sale"

		run := func(call func() error) {
			var wg sync.WaitGroup
			errs := make(chan error, parallel)
			start := make(chan struct{})
			for i := 0; i < parallel; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					errs <- call()
				}()
			}
			close(start)
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}
		}

		run(func() error {
			return flow.RecordOpen(ctx, rid, cid, "Mozilla", "198.51.100.7")
		})
		run(func() error {
			_, err := flow.RecordClick(ctx, rid, cid, target, "Mozilla", "198.51.100.7")
			return err
		})

		n, err := deliveryRepo.Count(ctx, models.DeliveryRecordFilter{CampaignID: &campaign.ID})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n, "one delivery record per pair")

		record, err := deliveryRepo.ByCampaignAndSubscriber(ctx, campaign.ID, subs[0].ID)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, models.DeliveryStatusClicked, record.Status)
		assert.Nil(t, record.SentAt)

		events, err := clickRepo.ByDeliveryRecord(ctx, record.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.EqualValues(t, parallel, events[0].ClickCount)

		stored, err := campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, stored.Opens)
		assert.EqualValues(t, 1, stored.UniqueOpens)
		assert.EqualValues(t, 1, stored.Clicks)
		assert.EqualValues(t, 1, stored.UniqueClicks)
	})
}
