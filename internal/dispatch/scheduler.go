// Package dispatch drives the pipeline: on a fixed cadence it ingests
// timelines of all subscribed accounts and executes the pending signals
// they produce.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-signal-trader/internal/domain"
	"solana-signal-trader/internal/executor"
	"solana-signal-trader/internal/ingest"
	"solana-signal-trader/internal/observability"
	"solana-signal-trader/internal/storage"
)

const (
	// DefaultInterval is the poll cadence. The ingest freshness window is
	// one minute, so polling slower than that drops signals.
	DefaultInterval = 60 * time.Second

	// DefaultConcurrency bounds accounts processed in parallel per pass.
	DefaultConcurrency = 4
)

// Scheduler runs periodic ingest-and-execute passes.
type Scheduler struct {
	interval    time.Duration
	concurrency int

	accounts storage.TrackedAccountStore
	signals  storage.TokenSignalStore
	ingestor *ingest.TweetIngestor
	executor *executor.SwapExecutor
	metrics  *observability.Metrics
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	now func() time.Time
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithInterval overrides the poll cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithConcurrency bounds per-pass parallelism.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		s.concurrency = n
	}
}

// NewScheduler wires a scheduler. metrics may be nil.
func NewScheduler(
	accounts storage.TrackedAccountStore,
	signals storage.TokenSignalStore,
	ingestor *ingest.TweetIngestor,
	exec *executor.SwapExecutor,
	metrics *observability.Metrics,
	logger *log.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		interval:    DefaultInterval,
		concurrency: DefaultConcurrency,
		accounts:    accounts,
		signals:     signals,
		ingestor:    ingestor,
		executor:    exec,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the poll loop. The first pass runs immediately.
// Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.loop(ctx)
}

// Stop halts the loop and waits for an in-flight pass to finish.
// Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

// runPass processes every subscribed account once. Accounts are isolated:
// one account's failure never skips the others.
func (s *Scheduler) runPass(ctx context.Context) {
	accounts, err := s.accounts.ListWithSubscribers(ctx)
	if err != nil {
		s.logger.Printf("[dispatch] list accounts: %v", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, account := range accounts {
		account := account
		g.Go(func() error {
			if err := s.processAccount(gctx, account); err != nil {
				s.logger.Printf("[dispatch] account @%s: %v", account.Handle, err)
			}
			// Account failures are contained, never group-fatal.
			return nil
		})
	}

	// Only returns nil given the isolation above; keeps gctx cancellation.
	_ = g.Wait()

	if ctx.Err() == nil && s.metrics != nil {
		s.metrics.LastSuccessfulPoll.SetToCurrentTime()
	}
}

// processAccount ingests one account's timeline and executes its pending
// signals in creation order.
func (s *Scheduler) processAccount(ctx context.Context, account *domain.TrackedAccount) error {
	start := s.now()

	stats, err := s.ingestor.Ingest(ctx, account)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IngestErrors.WithLabelValues("fetch").Inc()
		}
		return fmt.Errorf("ingest: %w", err)
	}

	if s.metrics != nil {
		s.metrics.TweetsFetched.Add(float64(stats.Fetched))
		s.metrics.TweetsStored.Add(float64(stats.NewTweets))
		s.metrics.SignalsExtracted.Add(float64(stats.NewSignals))
		s.metrics.IngestDuration.Observe(s.now().Sub(start).Seconds())
	}

	pending, err := s.signals.ListPendingByAccount(ctx, account.AccountID, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("list pending signals: %w", err)
	}
	if s.metrics != nil {
		s.metrics.PendingSignals.Set(float64(len(pending)))
	}

	for _, signal := range pending {
		err := s.executor.Execute(ctx, signal.SignalID)
		switch {
		case err == nil:
		case errors.Is(err, executor.ErrSignalNotClaimable):
			// Another executor won the claim; nothing to do.
		case errors.Is(err, executor.ErrNoEligibleUser):
			// Claim released; the signal stays PENDING until a
			// subscriber becomes eligible.
			s.logger.Printf("[dispatch] signal %s: no eligible subscriber, will retry", signal.SignalID)
		case errors.Is(err, context.Canceled):
			return err
		default:
			// Signal failures are isolated; the executor recorded the
			// outcome (terminal state, or a released claim).
			s.logger.Printf("[dispatch] signal %s: %v", signal.SignalID, err)
		}
	}

	return nil
}
