package nats

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/solboard/service/solana"
)

// ErrBusClosed is returned by a LocalBus after Close.
var ErrBusClosed = errors.New("activity bus closed")

// LocalBus is an in-process Bus used when NATS is not configured.
// Like the JetStream stream, a wallet's transaction is delivered once per
// DuplicateWindow no matter how often its page is republished.
// Slow subscribers miss events rather than block publishers.
type LocalBus struct {
	logger *slog.Logger
	now    func() time.Time
	window time.Duration

	mu     sync.Mutex
	subs   map[int]localSub
	nextID int
	seen   map[string]time.Time
	closed bool
}

type localSub struct {
	wallet string
	ch     chan ActivityEvent
}

// NewLocalBus creates an empty LocalBus.
func NewLocalBus(logger *slog.Logger) *LocalBus {
	return &LocalBus{
		logger: logger,
		now:    time.Now,
		window: DuplicateWindow,
		subs:   make(map[int]localSub),
		seen:   make(map[string]time.Time),
	}
}

// PublishActivity delivers events not seen within the duplicate window to
// matching subscribers.
func (b *LocalBus) PublishActivity(ctx context.Context, wallet string, txs []solana.ClassifiedTransaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	now := b.now()
	b.expireLocked(now)

	for _, ev := range NewActivityEvents(wallet, txs, now) {
		id := dedupID(ev)
		if _, dup := b.seen[id]; dup {
			continue
		}
		b.seen[id] = now

		for _, sub := range b.subs {
			if sub.wallet != "" && sub.wallet != wallet {
				continue
			}
			select {
			case sub.ch <- ev:
			default:
				b.logger.Warn("dropping activity event for slow subscriber", "wallet", wallet)
			}
		}
	}
	return nil
}

// expireLocked forgets events older than the duplicate window. b.mu must be held.
func (b *LocalBus) expireLocked(now time.Time) {
	for id, at := range b.seen {
		if now.Sub(at) >= b.window {
			delete(b.seen, id)
		}
	}
}

// Subscribe registers a subscriber until ctx is done.
func (b *LocalBus) Subscribe(ctx context.Context, wallet string) (<-chan ActivityEvent, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	id := b.nextID
	b.nextID++
	ch := make(chan ActivityEvent, 64)
	b.subs[id] = localSub{wallet: wallet, ch: ch}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Close stops the bus. Later publishes and subscriptions fail with ErrBusClosed.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	clear(b.seen)
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *LocalBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
