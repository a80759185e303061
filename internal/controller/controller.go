package controller

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/crpaas/repo-custodian/internal/backend"
	"github.com/crpaas/repo-custodian/internal/service"
	"github.com/crpaas/repo-custodian/internal/store"
	"github.com/crpaas/repo-custodian/internal/telemetry"
)

const (
	// defaultWatchInterval is how often background work is reconciled
	// against the backend.
	defaultWatchInterval = 10 * time.Second

	// defaultAutoSyncInterval is how often schedules are checked for a
	// crossed daily sync time.
	defaultAutoSyncInterval = time.Minute

	// defaultSweepInterval is how often expired repositories are retired.
	defaultSweepInterval = time.Minute

	// defaultStopTimeout bounds how long Stop waits for the loop and for
	// in-flight tasks.
	defaultStopTimeout = 10 * time.Second
)

// Controller runs the periodic loops that keep repository records and
// on-disk state converged: the watcher, the auto-sync scheduler and the
// expiration sweeper. Start blocks until the context is cancelled or
// Stop is called.
type Controller struct {
	store      store.Store
	service    service.Service
	dispatcher *Dispatcher

	// querier is set when the backend reports on submitted work
	// asynchronously. Nil disables the watcher loop.
	querier backend.StatusQuerier

	metrics *telemetry.ControllerMetrics

	watchInterval    time.Duration
	autoSyncInterval time.Duration
	sweepInterval    time.Duration
	stopTimeout      time.Duration

	// lastCheck is the previous auto-sync evaluation time. Schedule
	// occurrences are fired when they fall inside (lastCheck, now].
	lastCheck time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures the controller.
type Option func(*Controller)

// WithStatusQuerier enables the watcher loop for backends whose work
// continues after submission.
func WithStatusQuerier(querier backend.StatusQuerier) Option {
	return func(c *Controller) {
		c.querier = querier
	}
}

// WithControllerMetrics records loop activity.
func WithControllerMetrics(metrics *telemetry.ControllerMetrics) Option {
	return func(c *Controller) {
		c.metrics = metrics
	}
}

// WithWatchInterval overrides the watcher polling interval.
func WithWatchInterval(interval time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.watchInterval = interval
		}
	}
}

// WithAutoSyncInterval overrides the schedule check interval.
func WithAutoSyncInterval(interval time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.autoSyncInterval = interval
		}
	}
}

// WithSweepInterval overrides the expiration sweep interval.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.sweepInterval = interval
		}
	}
}

// WithStopTimeout bounds how long Stop waits before giving up on the
// loop and cancelling in-flight tasks.
func WithStopTimeout(timeout time.Duration) Option {
	return func(c *Controller) {
		if timeout > 0 {
			c.stopTimeout = timeout
		}
	}
}

// New creates the lifecycle controller with injected dependencies.
func New(st store.Store, svc service.Service, dispatcher *Dispatcher, opts ...Option) (*Controller, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if svc == nil {
		return nil, fmt.Errorf("service is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	c := &Controller{
		store:            st,
		service:          svc,
		dispatcher:       dispatcher,
		watchInterval:    defaultWatchInterval,
		autoSyncInterval: defaultAutoSyncInterval,
		sweepInterval:    defaultSweepInterval,
		stopTimeout:      defaultStopTimeout,
		done:             make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// jittered returns the interval with a random offset of up to ±10%
// applied, so replicas do not poll the store simultaneously.
func jittered(interval time.Duration) time.Duration {
	spread := int64(interval / 10)
	if spread <= 0 {
		return interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := rand.Int64N(2*spread) - spread
	return interval + time.Duration(offset)
}

// Start runs the controller loops. It blocks until the context is
// cancelled or Stop is called, and returns nil on clean shutdown.
func (c *Controller) Start(ctx context.Context) error {
	slog.Info("Starting lifecycle controller",
		"watch_interval", c.watchInterval,
		"auto_sync_interval", c.autoSyncInterval,
		"sweep_interval", c.sweepInterval,
		"watcher_enabled", c.querier != nil)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer func() {
		close(c.done)
		slog.Info("Lifecycle controller shut down")
	}()

	c.lastCheck = time.Now().UTC()

	watch := time.NewTicker(jittered(c.watchInterval))
	defer watch.Stop()
	autoSync := time.NewTicker(jittered(c.autoSyncInterval))
	defer autoSync.Stop()
	sweep := time.NewTicker(jittered(c.sweepInterval))
	defer sweep.Stop()

	// Reconcile leftover work from a previous run before the first tick.
	c.watchTick(runCtx)
	c.sweepTick(runCtx, time.Now().UTC())

	for {
		select {
		case <-watch.C:
			c.watchTick(runCtx)
			watch.Reset(jittered(c.watchInterval))
		case <-autoSync.C:
			c.autoSyncTick(runCtx, time.Now().UTC())
			autoSync.Reset(jittered(c.autoSyncInterval))
		case <-sweep.C:
			c.sweepTick(runCtx, time.Now().UTC())
			sweep.Reset(jittered(c.sweepInterval))
		case <-runCtx.Done():
			slog.Info("Lifecycle controller stopping")
			return nil
		}
	}
}

// Stop cancels the loops and drains the dispatcher. Both waits are
// bounded by the stop timeout; a forced drain is logged, not returned.
func (c *Controller) Stop() error {
	if c.cancel != nil {
		slog.Info("Stopping lifecycle controller")
		c.cancel()
		select {
		case <-c.done:
		case <-time.After(c.stopTimeout):
			slog.Warn("Timed out waiting for controller loop to exit", "timeout", c.stopTimeout)
		}
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), c.stopTimeout)
	defer cancelDrain()
	if err := c.dispatcher.Drain(drainCtx); err != nil {
		slog.Warn("Dispatcher drain incomplete", "error", err)
	}
	return nil
}
