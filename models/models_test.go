package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignStatus(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		for _, s := range []CampaignStatus{
			CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
			CampaignStatusSent, CampaignStatusPaused, CampaignStatusFailed,
		} {
			assert.True(t, s.Valid(), s)
		}
		assert.False(t, CampaignStatus("archived").Valid())
	})

	t.Run("ScanAndValue", func(t *testing.T) {
		var s CampaignStatus
		require.NoError(t, s.Scan([]byte("sending")))
		assert.Equal(t, CampaignStatusSending, s)

		v, err := s.Value()
		require.NoError(t, err)
		assert.Equal(t, "sending", v)

		_, err = CampaignStatus("bogus").Value()
		assert.Error(t, err)
		assert.Error(t, s.Scan(42))
	})
}

func TestCampaignTransitions(t *testing.T) {
	tests := []struct {
		from CampaignStatus
		to   CampaignStatus
		ok   bool
	}{
		{CampaignStatusDraft, CampaignStatusSending, true},
		{CampaignStatusDraft, CampaignStatusScheduled, true},
		{CampaignStatusDraft, CampaignStatusSent, false},
		{CampaignStatusScheduled, CampaignStatusSending, true},
		{CampaignStatusSending, CampaignStatusSent, true},
		{CampaignStatusSending, CampaignStatusPaused, true},
		{CampaignStatusSending, CampaignStatusDraft, false},
		{CampaignStatusPaused, CampaignStatusSending, true},
		{CampaignStatusFailed, CampaignStatusSending, true},
		{CampaignStatusSent, CampaignStatusSending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			c := &Campaign{Status: tt.from}
			assert.Equal(t, tt.ok, c.CanTransitionTo(tt.to))
		})
	}

	assert.Equal(t, []CampaignStatus{CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusPaused, CampaignStatusFailed},
		TransitionSources(CampaignStatusSending))
	assert.Equal(t, []CampaignStatus{CampaignStatusDraft, CampaignStatusPaused, CampaignStatusFailed},
		TransitionSources(CampaignStatusScheduled))
	assert.Equal(t, []CampaignStatus{CampaignStatusSending}, TransitionSources(CampaignStatusPaused))
	assert.Equal(t, []CampaignStatus{CampaignStatusSending}, TransitionSources(CampaignStatusSent))
	assert.Equal(t, []CampaignStatus{CampaignStatusSending}, TransitionSources(CampaignStatusFailed))

	assert.False(t, (&Campaign{Status: CampaignStatusSending}).IsDispatchable())
	assert.False(t, (&Campaign{Status: CampaignStatusSent}).IsDispatchable())
	assert.True(t, (&Campaign{Status: CampaignStatusFailed}).IsDispatchable())
}

func TestBeforeCreateDefaults(t *testing.T) {
	t.Run("Campaign", func(t *testing.T) {
		c := &Campaign{Name: "spring"}
		require.NoError(t, c.BeforeCreate(nil))
		assert.NotEqual(t, uuid.Nil, c.UUID)
		assert.Equal(t, CampaignStatusDraft, c.Status)
		assert.False(t, c.CreatedAt.IsZero())
	})

	t.Run("DeliveryRecord", func(t *testing.T) {
		d := &DeliveryRecord{}
		require.NoError(t, d.BeforeCreate(nil))
		assert.Equal(t, DeliveryStatusSent, d.Status)
		assert.Nil(t, d.SentAt)
		assert.False(t, d.CreatedAt.IsZero())
	})

	t.Run("BlacklistNormalizesEmail", func(t *testing.T) {
		b := &BlacklistEntry{Email: " Foo@Example.com "}
		require.NoError(t, b.BeforeCreate(nil))
		assert.Equal(t, "foo@example.com", b.Email)
		assert.Equal(t, BlacklistReasonManual, b.Reason)
	})

	t.Run("ClickEventStartsAtOne", func(t *testing.T) {
		e := &ClickEvent{URL: "https://example.com"}
		require.NoError(t, e.BeforeCreate(nil))
		assert.Equal(t, int64(1), e.ClickCount)
	})
}

func TestMessageRef(t *testing.T) {
	cid := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	rid := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	assert.Equal(t, "11111111-1111-1111-1111-111111111111_22222222-2222-2222-2222-222222222222", MessageRef(cid, rid))
}

func TestDeliveryStatusSets(t *testing.T) {
	assert.Contains(t, ClickableStatuses, DeliveryStatusOpened)
	assert.NotContains(t, OpenableStatuses, DeliveryStatusOpened)
	assert.NotContains(t, ClickableStatuses, DeliveryStatusBounced)
}
