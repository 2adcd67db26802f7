package updates

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hermesbot/go-alert-service/internal/metrics"
	"github.com/hermesbot/go-alert-service/pkg/dispatch"
	"github.com/hermesbot/go-alert-service/pkg/notification"
)

// DrainMode selects what the grace timer removes once it fires.
type DrainMode string

const (
	// DrainSnapshot removes only the entries returned by the poll that armed
	// the timer, and only if they were not refreshed in the meantime.
	DrainSnapshot DrainMode = "snapshot"
	// DrainClear wipes the seller's whole list, including entries that
	// arrived during the grace window.
	DrainClear DrainMode = "clear"
)

const clearTimeout = 5 * time.Second

// Stopper is the part of *time.Timer the poller needs.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Poller serves dashboard polls and clears what it served after a grace delay.
type Poller struct {
	queue     dispatch.UpdateQueue
	mode      DrainMode
	grace     time.Duration
	afterFunc AfterFunc
	logger    *slog.Logger

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]Stopper
	stopped bool
}

type PollerOption func(*Poller)

// WithAfterFunc replaces the timer source, mainly for tests.
func WithAfterFunc(fn AfterFunc) PollerOption {
	return func(p *Poller) { p.afterFunc = fn }
}

func NewPoller(queue dispatch.UpdateQueue, mode DrainMode, grace time.Duration, logger *slog.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		queue:     queue,
		mode:      mode,
		grace:     grace,
		afterFunc: realAfterFunc,
		logger:    logger.With("component", "UpdatePoller"),
		pending:   make(map[uint64]Stopper),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue records that packID changed for sellerID.
func (p *Poller) Enqueue(ctx context.Context, sellerID, packID string) error {
	if err := p.queue.Enqueue(ctx, sellerID, packID); err != nil {
		return err
	}
	metrics.RecordEnqueue()
	return nil
}

// Poll returns the seller's pending entries. A non-empty result arms the
// grace timer; the response itself is not delayed.
func (p *Poller) Poll(ctx context.Context, sellerID string) ([]notification.UpdateEntry, error) {
	entries, err := p.queue.Get(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	metrics.RecordPoll(len(entries) > 0)
	if len(entries) > 0 {
		p.armClear(sellerID, entries)
	}
	return entries, nil
}

func (p *Poller) armClear(sellerID string, snapshot []notification.UpdateEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	p.nextID++
	id := p.nextID
	p.pending[id] = p.afterFunc(p.grace, func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), clearTimeout)
		defer cancel()

		var err error
		if p.mode == DrainClear {
			err = p.queue.Clear(ctx, sellerID)
		} else {
			err = p.queue.ClearSnapshot(ctx, sellerID, snapshot)
		}
		metrics.RecordClear(string(p.mode), err)
		if err != nil {
			p.logger.Error("Failed to clear served updates", "seller_id", sellerID, "mode", p.mode, "err", err)
			return
		}
		p.logger.Debug("Cleared served updates", "seller_id", sellerID, "mode", p.mode, "count", len(snapshot))
	})
}

// Pending reports how many grace timers are armed.
func (p *Poller) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Stop cancels every armed grace timer. Served entries that were not yet
// cleared stay queued and will be served again.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	for id, t := range p.pending {
		t.Stop()
		delete(p.pending, id)
	}
}
