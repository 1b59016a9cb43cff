package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperengineering/frontdesk/internal/remote"
	"golang.org/x/time/rate"
)

// Syncer runs one synchronization. *Engine implements it.
type Syncer interface {
	Synchronize(ctx context.Context) (*Result, error)
	Ping(ctx context.Context) error
}

// TriggerConfig sets when automatic runs happen.
type TriggerConfig struct {
	// Interval between periodic runs. Zero disables periodic runs.
	Interval time.Duration
	// CheckInterval between reachability checks while running.
	CheckInterval time.Duration
	// MinGap and Burst shape how often requested runs may start.
	MinGap time.Duration
	Burst  int
}

// Trigger decides when the engine runs: once at start, on reconnect, on
// request after a local mutation, and periodically. Requests made while a
// run is pending collapse into that run.
type Trigger struct {
	syncer  Syncer
	cfg     TriggerConfig
	limiter *rate.Limiter
	pending chan struct{}

	mu      sync.Mutex
	online  bool
	last    *Result
	lastErr error
	lastAt  time.Time
}

// NewTrigger creates a trigger for s.
func NewTrigger(s Syncer, cfg TriggerConfig) *Trigger {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.MinGap <= 0 {
		cfg.MinGap = 5 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Trigger{
		syncer:  s,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.MinGap), cfg.Burst),
		pending: make(chan struct{}, 1),
	}
}

// Request asks for a run soon. It never blocks.
func (t *Trigger) Request() {
	select {
	case t.pending <- struct{}{}:
	default:
	}
}

// RunNow runs synchronization immediately, bypassing the request limiter.
func (t *Trigger) RunNow(ctx context.Context) (*Result, error) {
	res, err := t.syncer.Synchronize(ctx)
	t.record(res, err)
	return res, err
}

// Status is a trigger's view of connectivity and its most recent run.
type Status struct {
	Online  bool
	Last    *Result
	LastErr error
	LastAt  time.Time
}

func (t *Trigger) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{Online: t.online, Last: t.last, LastErr: t.lastErr, LastAt: t.lastAt}
}

// Online reports whether the last reachability check or run reached the remote store.
func (t *Trigger) Online() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online
}

// Run drives automatic runs until ctx is cancelled.
func (t *Trigger) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "reconcile",
		"worker", "sync-trigger",
		"action", "worker_started",
	)

	check := time.NewTicker(t.cfg.CheckInterval)
	defer check.Stop()

	var periodic <-chan time.Time
	if t.cfg.Interval > 0 {
		ticker := time.NewTicker(t.cfg.Interval)
		defer ticker.Stop()
		periodic = ticker.C
	}

	if t.checkReachable(ctx) {
		t.run(ctx, "start")
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "reconcile",
				"worker", "sync-trigger",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-check.C:
			wasOnline := t.Online()
			if t.checkReachable(ctx) && !wasOnline {
				t.run(ctx, "reconnect")
			}
		case <-periodic:
			if t.Online() {
				t.run(ctx, "interval")
			}
		case <-t.pending:
			if !t.Online() {
				// The reconnect run covers it.
				continue
			}
			if err := t.limiter.Wait(ctx); err != nil {
				continue
			}
			t.run(ctx, "request")
		}
	}
}

// checkReachable checks reachability and records transitions.
func (t *Trigger) checkReachable(ctx context.Context) bool {
	err := t.syncer.Ping(ctx)
	online := err == nil

	t.mu.Lock()
	changed := t.online != online
	t.online = online
	t.mu.Unlock()

	if changed {
		if online {
			slog.Info("remote store reachable", "component", "reconcile", "action", "online")
		} else {
			slog.Warn("remote store unreachable", "component", "reconcile", "action", "offline", "error", err)
		}
	}
	return online
}

func (t *Trigger) run(ctx context.Context, reason string) {
	slog.Debug("sync triggered", "component", "reconcile", "reason", reason)
	if _, err := t.RunNow(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("automatic sync failed",
			"component", "reconcile",
			"reason", reason,
			"error", err,
		)
	}
}

func (t *Trigger) record(res *Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last, t.lastErr, t.lastAt = res, err, time.Now()
	if err == nil {
		t.online = true
	} else if remote.IsUnavailable(err) {
		t.online = false
	}
}
