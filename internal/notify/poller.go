package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/taskhub/internal/source"
)

// fetchTimeout is the maximum time allowed for a single load.
const fetchTimeout = 30 * time.Second

// Loader is implemented by Coordinator.
type Loader interface {
	Load(ctx context.Context) error
}

// Poller calls Load on an interval and on demand.
type Poller struct {
	loader   Loader
	interval time.Duration
	log      *zap.Logger

	triggerCh chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun time.Time
	lastErr error
}

// NewPoller creates a poller. A non-positive interval disables the timer;
// Refresh still works while the poller is running.
func NewPoller(loader Loader, interval time.Duration, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		loader:    loader,
		interval:  interval,
		log:       log.Named("poller"),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the polling goroutine, which loads once immediately. It
// is a no-op if the poller is already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop halts the polling goroutine and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Refresh requests an immediate load. Requests made while one is already
// queued are merged.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// LastRun returns when the last load finished and its error.
func (p *Poller) LastRun() (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun, p.lastErr
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	p.load(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			p.load(ctx)
		case <-p.triggerCh:
			p.load(ctx)
		}
	}
}

func (p *Poller) load(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	err := p.loader.Load(ctx)
	if err != nil && ctx.Err() == nil {
		if source.IsAuthError(err) {
			p.log.Warn("notification source rejected credentials", zap.Error(err))
		} else {
			p.log.Debug("poll failed", zap.Error(err))
		}
	}

	p.mu.Lock()
	p.lastRun = time.Now()
	p.lastErr = err
	p.mu.Unlock()
}
