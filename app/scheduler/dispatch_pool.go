package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	businessflow "github.com/amirphl/orochi-mail/business_flow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var dispatchInflight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "campaign_dispatch_inflight",
	Help: "Campaigns queued or running in the dispatch pool",
})

const abortTimeout = 10 * time.Second

// DispatchRunner delivers one campaign that has already been claimed.
// Abort releases the claim of a campaign the pool will not finish.
type DispatchRunner interface {
	Run(ctx context.Context, campaignID uint) (*businessflow.DispatchResult, error)
	Abort(ctx context.Context, campaignID uint, reason string) error
}

// DispatchPoolConfig sizes the pool and its cross-process lock
type DispatchPoolConfig struct {
	Workers    int
	QueueSize  int
	LockTTL    time.Duration
	LockPrefix string
}

// DispatchPool runs claimed campaigns on a fixed set of workers.
// A campaign is accepted at most once until its job finishes.
type DispatchPool struct {
	cfg    DispatchPoolConfig
	rc     *redis.Client
	logger *log.Logger

	jobs     chan uint
	mu       sync.Mutex
	inflight map[uint]struct{}
	stopped  bool
}

var _ businessflow.DispatchQueue = (*DispatchPool)(nil)

// NewDispatchPool creates a pool. rc may be nil to disable the Redis lock.
func NewDispatchPool(cfg DispatchPoolConfig, rc *redis.Client, logger *log.Logger) *DispatchPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}

	return &DispatchPool{
		cfg:      cfg,
		rc:       rc,
		logger:   logger,
		jobs:     make(chan uint, cfg.QueueSize),
		inflight: make(map[uint]struct{}),
	}
}

// Submit queues a campaign without blocking
func (p *DispatchPool) Submit(campaignID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return businessflow.NewBusinessError("DISPATCH_POOL_STOPPED", "Dispatch pool is shutting down", businessflow.ErrDispatchQueueFull)
	}
	if _, busy := p.inflight[campaignID]; busy {
		return businessflow.ErrDispatchInProgress
	}

	select {
	case p.jobs <- campaignID:
		p.inflight[campaignID] = struct{}{}
		dispatchInflight.Inc()
		return nil
	default:
		return businessflow.ErrDispatchQueueFull
	}
}

// InFlight reports whether the campaign is queued or running
func (p *DispatchPool) InFlight(campaignID uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[campaignID]
	return ok
}

// Start launches the workers and returns a stop function that cancels them and waits.
// Jobs still queued at stop are aborted, so their campaigns do not stay in sending.
func (p *DispatchPool) Start(parent context.Context, runner DispatchRunner) func() {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup

	for i := 1; i <= p.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-p.jobs:
					p.execute(ctx, runner, worker, id)
				}
			}
		}(i)
	}
	p.logger.Printf("dispatch pool: started %d workers (queue %d)", p.cfg.Workers, p.cfg.QueueSize)

	return func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		cancel()
		wg.Wait()
		p.drain(runner)
		p.logger.Printf("dispatch pool: stopped")
	}
}

// drain aborts every job left in the queue. Submit is closed by then.
func (p *DispatchPool) drain(runner DispatchRunner) {
	for {
		select {
		case id := <-p.jobs:
			p.abort(runner, id, "dispatch pool stopped before the job started")
			p.release(id)
		default:
			return
		}
	}
}

func (p *DispatchPool) abort(runner DispatchRunner, campaignID uint, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	defer cancel()
	if err := runner.Abort(ctx, campaignID, reason); err != nil {
		p.logger.Printf("dispatch pool: failed to abort campaign %d: %v", campaignID, err)
	}
}

func (p *DispatchPool) execute(ctx context.Context, runner DispatchRunner, worker int, campaignID uint) {
	defer p.release(campaignID)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("dispatch pool: worker %d recovered from panic on campaign %d: %v", worker, campaignID, r)
			p.abort(runner, campaignID, fmt.Sprintf("dispatch panicked: %v", r))
		}
	}()

	if ctx.Err() != nil {
		p.abort(runner, campaignID, "dispatch pool stopped before the job started")
		return
	}

	if p.rc != nil {
		lock := NewDispatchLock(p.rc, p.lockKey(campaignID), p.cfg.LockTTL)
		acquired, err := lock.Acquire(ctx)
		switch {
		case err != nil:
			// The database claim already guards the campaign; run without the lock.
			p.logger.Printf("dispatch pool: %v", err)
		case !acquired:
			p.logger.Printf("dispatch pool: campaign %d is locked by another process (%s), skipping", campaignID, lock.Key())
			return
		default:
			stop := lock.KeepAlive(ctx, func(err error) {
				p.logger.Printf("dispatch pool: lost lock for campaign %d: %v", campaignID, err)
			})
			defer func() {
				stop()
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					p.logger.Printf("dispatch pool: %v", err)
				}
			}()
		}
	}

	p.logger.Printf("dispatch pool: worker %d running campaign %d", worker, campaignID)
	res, err := runner.Run(ctx, campaignID)
	if err != nil {
		p.logger.Printf("dispatch pool: campaign %d ended with error: %v", campaignID, err)
		if ctx.Err() != nil {
			// Shutdown interrupted the send loop. Failed campaigns resume without resending.
			p.abort(runner, campaignID, "dispatch interrupted by shutdown")
		}
		return
	}
	p.logger.Printf("dispatch pool: campaign %d done status=%s sent=%d failed=%d skipped=%d",
		campaignID, res.Status, res.Sent, res.Failed, res.Skipped)
}

func (p *DispatchPool) release(campaignID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inflight[campaignID]; ok {
		delete(p.inflight, campaignID)
		dispatchInflight.Dec()
	}
}

func (p *DispatchPool) lockKey(campaignID uint) string {
	return p.cfg.LockPrefix + "lock:dispatch:" + strconv.FormatUint(uint64(campaignID), 10)
}
