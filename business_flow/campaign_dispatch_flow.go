package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/orochi-mail/app/services"
	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/repository"
	"github.com/amirphl/orochi-mail/utils"
	"golang.org/x/time/rate"
)

// DispatchQueue accepts claimed campaigns for background delivery
type DispatchQueue interface {
	Submit(campaignID uint) error
}

// DispatchConfig controls pacing and progress flushing of a dispatch
type DispatchConfig struct {
	RatePerSecond float64
	Burst         int
	ProgressEvery int
}

// DispatchClaim is the result of moving a campaign into sending
type DispatchClaim struct {
	Campaign       *models.Campaign
	PreviousStatus models.CampaignStatus
	AudienceSize   int
}

// DispatchResult summarizes one run over a campaign audience
type DispatchResult struct {
	CampaignID uint                  `json:"campaign_id"`
	Sent       int                   `json:"sent"`
	Failed     int                   `json:"failed"`
	Skipped    int                   `json:"skipped"`
	Paused     bool                  `json:"paused"`
	Status     models.CampaignStatus `json:"status"`
}

// TriggerResult is returned to the operator when a send is accepted
type TriggerResult struct {
	CampaignUUID string
	AudienceSize int
}

// CampaignDispatchFlow sends a campaign to its audience exactly once per recipient
type CampaignDispatchFlow interface {
	Claim(ctx context.Context, campaignID uint) (*DispatchClaim, error)
	Run(ctx context.Context, campaignID uint) (*DispatchResult, error)
	Dispatch(ctx context.Context, campaignID uint) (*DispatchResult, error)
	Trigger(ctx context.Context, userID uint, campaignUUID string) (*TriggerResult, error)
	DispatchDue(ctx context.Context, now time.Time, limit int) (int, error)
	Abort(ctx context.Context, campaignID uint, reason string) error
}

// CampaignDispatchFlowImpl implements the campaign dispatch flow
type CampaignDispatchFlowImpl struct {
	campaignRepo   repository.CampaignRepository
	subscriberRepo repository.SubscriberRepository
	deliveryRepo   repository.DeliveryRecordRepository
	client         services.DeliveryClient
	queue          DispatchQueue
	limiter        *rate.Limiter
	progressEvery  int
	logger         *log.Logger
}

// NewCampaignDispatchFlow creates a new dispatch flow. queue may be nil when only
// synchronous Dispatch is used.
func NewCampaignDispatchFlow(
	campaignRepo repository.CampaignRepository,
	subscriberRepo repository.SubscriberRepository,
	deliveryRepo repository.DeliveryRecordRepository,
	client services.DeliveryClient,
	queue DispatchQueue,
	cfg DispatchConfig,
	logger *log.Logger,
) CampaignDispatchFlow {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	every := cfg.ProgressEvery
	if every <= 0 {
		every = utils.DefaultProgressEvery
	}
	if logger == nil {
		logger = log.Default()
	}

	return &CampaignDispatchFlowImpl{
		campaignRepo:   campaignRepo,
		subscriberRepo: subscriberRepo,
		deliveryRepo:   deliveryRepo,
		client:         client,
		queue:          queue,
		limiter:        rate.NewLimiter(limit, burst),
		progressEvery:  every,
		logger:         logger,
	}
}

// Claim moves the campaign into sending and checks there is someone to send to
func (f *CampaignDispatchFlowImpl) Claim(ctx context.Context, campaignID uint) (*DispatchClaim, error) {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to load campaign", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	previous := campaign.Status
	if !campaign.IsDispatchable() {
		return nil, f.claimConflict(ctx, campaignID, previous)
	}

	claimed, err := f.campaignRepo.ClaimForSending(ctx, campaignID, utils.UTCNow())
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CLAIM_FAILED", "Failed to claim campaign", err)
	}
	if !claimed {
		return nil, f.claimConflict(ctx, campaignID, previous)
	}

	audience, err := f.resolveAudience(ctx, campaignID)
	if err != nil {
		f.markFailed(ctx, campaignID, "audience resolution failed")
		return nil, NewBusinessError("AUDIENCE_RESOLUTION_FAILED", "Failed to resolve campaign audience", err)
	}
	if len(audience) == 0 {
		f.markFailed(ctx, campaignID, "empty audience")
		return nil, ErrCampaignNoAudience
	}

	if ok, msg := f.client.TestConnection(ctx); !ok {
		f.markFailed(ctx, campaignID, "provider unavailable: "+msg)
		return nil, NewBusinessError("PROVIDER_UNAVAILABLE", msg, ErrProviderUnavailable)
	}

	campaign.Status = models.CampaignStatusSending
	return &DispatchClaim{Campaign: campaign, PreviousStatus: previous, AudienceSize: len(audience)}, nil
}

func (f *CampaignDispatchFlowImpl) claimConflict(ctx context.Context, campaignID uint, previous models.CampaignStatus) error {
	status := previous
	if current, err := f.campaignRepo.ByID(ctx, campaignID); err == nil && current != nil {
		status = current.Status
	}
	if status == models.CampaignStatusSent {
		return ErrCampaignAlreadySent
	}
	return ErrCampaignAlreadySending
}

// Run sends the campaign to every recipient whose message has not been sent yet
func (f *CampaignDispatchFlowImpl) Run(ctx context.Context, campaignID uint) (*DispatchResult, error) {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to load campaign", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}

	result := &DispatchResult{CampaignID: campaignID, Status: campaign.Status}
	if campaign.Status == models.CampaignStatusPaused {
		result.Paused = true
		return result, nil
	}
	if campaign.Status != models.CampaignStatusSending {
		return result, ErrInvalidStatusTransition
	}

	audience, err := f.resolveAudience(ctx, campaignID)
	if err != nil {
		f.markFailed(ctx, campaignID, "audience resolution failed")
		dispatchJobsTotal.WithLabelValues("failed").Inc()
		result.Status = models.CampaignStatusFailed
		return result, NewBusinessError("AUDIENCE_RESOLUTION_FAILED", "Failed to resolve campaign audience", err)
	}

	f.logger.Printf("Dispatching campaign %d (%s) to %d recipients", campaign.ID, campaign.UUID, len(audience))

	var pending repository.CounterDelta
	sinceFlush := 0

	for _, subscriber := range audience {
		if err := f.limiter.Wait(ctx); err != nil {
			// Shutdown: keep what was sent, leave the campaign in sending.
			f.flush(context.WithoutCancel(ctx), campaignID, &pending)
			f.logger.Printf("Dispatch of campaign %d interrupted after %d sends: %v", campaignID, result.Sent, err)
			dispatchJobsTotal.WithLabelValues("interrupted").Inc()
			return result, ctx.Err()
		}

		outcome, err := f.deliverOne(ctx, campaign, subscriber)
		if err != nil {
			f.logger.Printf("Campaign %d recipient %d: %v", campaignID, subscriber.ID, err)
		}
		dispatchMessagesTotal.WithLabelValues(string(outcome)).Inc()

		switch outcome {
		case outcomeSent:
			result.Sent++
			pending.TotalSent++
			sinceFlush++
		case outcomeBounced:
			result.Failed++
			pending.Bounces++
		case outcomeFailed:
			result.Failed++
			pending.Bounces++
		case outcomeSkipped:
			result.Skipped++
		}

		if sinceFlush >= f.progressEvery {
			sinceFlush = 0
			if err := f.flush(ctx, campaignID, &pending); err != nil {
				f.markFailed(ctx, campaignID, "progress flush failed")
				dispatchJobsTotal.WithLabelValues("failed").Inc()
				result.Status = models.CampaignStatusFailed
				return result, NewBusinessError("DISPATCH_PROGRESS_FAILED", "Failed to record dispatch progress", err)
			}
			if f.isPaused(ctx, campaignID) {
				f.logger.Printf("Campaign %d paused after %d sends", campaignID, result.Sent)
				dispatchJobsTotal.WithLabelValues("paused").Inc()
				result.Paused = true
				result.Status = models.CampaignStatusPaused
				return result, nil
			}
		}
	}

	if err := f.flush(ctx, campaignID, &pending); err != nil {
		f.markFailed(ctx, campaignID, "final flush failed")
		dispatchJobsTotal.WithLabelValues("failed").Inc()
		result.Status = models.CampaignStatusFailed
		return result, NewBusinessError("DISPATCH_PROGRESS_FAILED", "Failed to record dispatch progress", err)
	}

	done, err := f.campaignRepo.UpdateStatusFrom(ctx, campaignID,
		models.TransitionSources(models.CampaignStatusSent), models.CampaignStatusSent)
	if err != nil {
		f.markFailed(ctx, campaignID, "completion update failed")
		dispatchJobsTotal.WithLabelValues("failed").Inc()
		result.Status = models.CampaignStatusFailed
		return result, NewBusinessError("DISPATCH_COMPLETE_FAILED", "Failed to complete campaign", err)
	}
	if done {
		result.Status = models.CampaignStatusSent
	} else if f.isPaused(ctx, campaignID) {
		result.Paused = true
		result.Status = models.CampaignStatusPaused
	}

	f.logger.Printf("Campaign %d finished: sent=%d failed=%d skipped=%d status=%s",
		campaignID, result.Sent, result.Failed, result.Skipped, result.Status)
	dispatchJobsTotal.WithLabelValues(string(result.Status)).Inc()
	return result, nil
}

// Dispatch claims and runs a campaign synchronously
func (f *CampaignDispatchFlowImpl) Dispatch(ctx context.Context, campaignID uint) (*DispatchResult, error) {
	if _, err := f.Claim(ctx, campaignID); err != nil {
		return nil, err
	}
	return f.Run(ctx, campaignID)
}

// Trigger is the operator's send action: claim now, deliver in the background
func (f *CampaignDispatchFlowImpl) Trigger(ctx context.Context, userID uint, campaignUUID string) (*TriggerResult, error) {
	campaign, err := ownedCampaign(ctx, f.campaignRepo, userID, campaignUUID)
	if err != nil {
		return nil, err
	}

	claim, err := f.claimAndSubmit(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	return &TriggerResult{CampaignUUID: campaign.UUID.String(), AudienceSize: claim.AudienceSize}, nil
}

// DispatchDue queues scheduled campaigns whose time has come and returns how many were accepted
func (f *CampaignDispatchFlowImpl) DispatchDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := f.campaignRepo.ListDueScheduled(ctx, now, limit)
	if err != nil {
		return 0, NewBusinessError("SCHEDULED_LOOKUP_FAILED", "Failed to list scheduled campaigns", err)
	}

	accepted := 0
	for _, c := range due {
		if _, err := f.claimAndSubmit(ctx, c.ID); err != nil {
			f.logger.Printf("Scheduled campaign %d not dispatched: %v", c.ID, err)
			continue
		}
		accepted++
	}
	return accepted, nil
}

func (f *CampaignDispatchFlowImpl) claimAndSubmit(ctx context.Context, campaignID uint) (*DispatchClaim, error) {
	if f.queue == nil {
		return nil, NewBusinessError("DISPATCH_QUEUE_MISSING", "Dispatch queue is not configured", ErrDispatchQueueFull)
	}

	claim, err := f.Claim(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if err := f.queue.Submit(campaignID); err != nil {
		reverted, rerr := f.campaignRepo.UpdateStatusFrom(ctx, campaignID,
			[]models.CampaignStatus{models.CampaignStatusSending}, claim.PreviousStatus)
		if rerr != nil || !reverted {
			f.logger.Printf("Failed to revert campaign %d to %s after rejected submit: %v", campaignID, claim.PreviousStatus, rerr)
		}
		return nil, err
	}

	return claim, nil
}

type recipientOutcome string

const (
	outcomeSent    recipientOutcome = "sent"
	outcomeBounced recipientOutcome = "bounced"
	outcomeFailed  recipientOutcome = "failed"
	outcomeSkipped recipientOutcome = "skipped"
)

// deliverOne never panics; anything unexpected counts as a failed recipient
func (f *CampaignDispatchFlowImpl) deliverOne(ctx context.Context, campaign *models.Campaign, subscriber *models.Subscriber) (outcome recipientOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = outcomeFailed
			err = fmt.Errorf("panic while delivering: %v", r)
		}
	}()

	now := utils.UTCNow()
	record, created, err := f.deliveryRepo.Ensure(ctx, &models.DeliveryRecord{
		CampaignID:   campaign.ID,
		SubscriberID: subscriber.ID,
		Status:       models.DeliveryStatusSent,
		MessageID:    models.MessageRef(campaign.UUID, subscriber.UUID),
		SentAt:       &now,
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("failed to ensure delivery record: %w", err)
	}
	if !created {
		// A tracking callback may have created the row first
		claimed, err := f.deliveryRepo.ClaimSend(ctx, record.ID, now)
		if err != nil {
			return outcomeFailed, fmt.Errorf("failed to claim delivery record: %w", err)
		}
		if !claimed {
			return outcomeSkipped, nil
		}
	}

	res := f.client.SendCampaignMessage(ctx, campaign, subscriber, campaign.Content)
	if res.Success {
		return outcomeSent, nil
	}

	if err := f.deliveryRepo.MarkBounced(ctx, record.ID, models.BounceTypeSendFailure, res.Message); err != nil {
		return outcomeFailed, fmt.Errorf("send failed (%s) and bounce could not be recorded: %w", res.Message, err)
	}
	return outcomeBounced, nil
}

func (f *CampaignDispatchFlowImpl) resolveAudience(ctx context.Context, campaignID uint) ([]*models.Subscriber, error) {
	listIDs, err := f.campaignRepo.MailListIDs(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if len(listIDs) == 0 {
		return nil, nil
	}
	return f.subscriberRepo.ActiveAudience(ctx, listIDs)
}

func (f *CampaignDispatchFlowImpl) flush(ctx context.Context, campaignID uint, pending *repository.CounterDelta) error {
	if pending.IsZero() {
		return nil
	}
	if err := f.campaignRepo.IncrementCounters(ctx, campaignID, *pending); err != nil {
		return err
	}
	*pending = repository.CounterDelta{}
	return nil
}

func (f *CampaignDispatchFlowImpl) isPaused(ctx context.Context, campaignID uint) bool {
	current, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil || current == nil {
		return false
	}
	return current.Status == models.CampaignStatusPaused
}

func (f *CampaignDispatchFlowImpl) markFailed(ctx context.Context, campaignID uint, reason string) {
	if err := f.Abort(context.WithoutCancel(ctx), campaignID, reason); err != nil {
		f.logger.Printf("Failed to mark campaign %d failed (%s): %v", campaignID, reason, err)
	}
}

// Abort moves a campaign that is still sending to failed, so it can be dispatched again.
// A campaign in any other status is left alone.
func (f *CampaignDispatchFlowImpl) Abort(ctx context.Context, campaignID uint, reason string) error {
	changed, err := f.campaignRepo.UpdateStatusFrom(ctx, campaignID,
		models.TransitionSources(models.CampaignStatusFailed), models.CampaignStatusFailed)
	if err != nil {
		return NewBusinessError("CAMPAIGN_ABORT_FAILED", "Failed to mark campaign failed", err)
	}
	if changed {
		f.logger.Printf("Campaign %d marked failed: %s", campaignID, reason)
	}
	return nil
}
