// Package scheduler runs background campaign work: the dispatch worker pool,
// scheduled sends and the periodic analytics rollup
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/amirphl/orochi-mail/utils"
)

const dueBatchSize = 50

// DueDispatcher claims scheduled campaigns whose time has come
type DueDispatcher interface {
	DispatchDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// AnalyticsRoller refreshes recent daily rollups
type AnalyticsRoller interface {
	RollupAll(ctx context.Context, now time.Time) (int, error)
}

// CampaignScheduler periodically dispatches due campaigns and refreshes daily analytics
type CampaignScheduler struct {
	dispatcher        DueDispatcher
	analytics         AnalyticsRoller
	logger            *log.Logger
	interval          time.Duration
	analyticsInterval time.Duration
}

func NewCampaignScheduler(
	dispatcher DueDispatcher,
	analytics AnalyticsRoller,
	logger *log.Logger,
	interval time.Duration,
	analyticsInterval time.Duration,
) *CampaignScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if analyticsInterval <= 0 {
		analyticsInterval = time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}

	return &CampaignScheduler{
		dispatcher:        dispatcher,
		analytics:         analytics,
		logger:            logger,
		interval:          interval,
		analyticsInterval: analyticsInterval,
	}
}

// Start launches the scheduler loops in background goroutines and returns a stop function
func (s *CampaignScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.loop(ctx, s.interval, s.runOnce)
	}()

	if s.analytics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, s.analyticsInterval, s.rollupOnce)
		}()
	}

	return func() {
		cancel()
		wg.Wait()
	}
}

func (s *CampaignScheduler) loop(ctx context.Context, every time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	fn(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (s *CampaignScheduler) runOnce(ctx context.Context) {
	accepted, err := s.dispatcher.DispatchDue(ctx, utils.UTCNow(), dueBatchSize)
	if err != nil {
		s.logger.Printf("scheduler: dispatch due campaigns failed: %v", err)
		return
	}
	if accepted > 0 {
		s.logger.Printf("scheduler: queued %d scheduled campaigns", accepted)
	}
}

func (s *CampaignScheduler) rollupOnce(ctx context.Context) {
	n, err := s.analytics.RollupAll(ctx, utils.UTCNow())
	if err != nil {
		s.logger.Printf("scheduler: analytics rollup failed after %d rows: %v", n, err)
		return
	}
	s.logger.Printf("scheduler: analytics rollup refreshed %d rows", n)
}
