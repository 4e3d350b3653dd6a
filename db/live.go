package db

// live.go implements the reactive query engine: a change-notification bus per
// collection, and live subscriptions which re-run their query and push the
// fresh result set to the subscriber whenever a write touches a watched
// collection. Delivery is eventually consistent: bursts of writes may be
// coalesced into a single re-run, and no per-write sequencing is guaranteed.

import (
	"context"
	"sync"
)

// watcher is the bus-side registration of one subscription.
type watcher struct {
	collections map[string]struct{}
	wake        chan struct{} // buffered 1; coalesces bursts
}

// changeBus fans write notifications out to the attached watchers.
type changeBus struct {
	mu       sync.Mutex
	watchers map[*watcher]struct{}
}

func newChangeBus() *changeBus {
	return &changeBus{watchers: make(map[*watcher]struct{})}
}

func (b *changeBus) attach(w *watcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watchers[w] = struct{}{}
}

func (b *changeBus) detach(w *watcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.watchers, w)
}

// publish wakes every watcher interested in the collection. The non-blocking
// send onto the buffered wake channel is what coalesces write bursts.
func (b *changeBus) publish(collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for w := range b.watchers {
		if _, ok := w.collections[collection]; !ok {
			continue
		}
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

// Subscription is the handle on a live query. Cancel guarantees that no
// further deliveries occur once it returns. Cancel must not be called from
// within the subscription's own onData callback.
type Subscription struct {
	mu        sync.Mutex
	cancelled bool
	stop      chan struct{}
	detach    func()
}

// Cancel tears the subscription down. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.cancelled = true
	close(s.stop)
	s.detach()
}

// Watch produces a live result set for query: an initial snapshot delivered
// immediately, and a fresh snapshot after every write touching one of the
// listed collections. Query errors are logged and the previous result stands.
// The subscription ends when ctx is done or Cancel is called.
func Watch[T any](
	ctx context.Context,
	db *DB,
	collections []string,
	query func(context.Context) (T, error),
	onData func(T),
) *Subscription {

	w := &watcher{
		collections: make(map[string]struct{}, len(collections)),
		wake:        make(chan struct{}, 1),
	}
	for _, c := range collections {
		w.collections[c] = struct{}{}
	}

	s := &Subscription{
		stop:   make(chan struct{}),
		detach: func() { db.bus.detach(w) },
	}

	// run re-executes the query and delivers under the subscription mutex, so
	// that a concurrent Cancel either waits for the in-flight delivery or
	// suppresses it entirely.
	run := func() {
		result, err := query(ctx)
		if err != nil {
			db.logger.Warn("live query failed", "err", err)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cancelled {
			return
		}
		onData(result)
	}

	db.bus.attach(w)
	go func() {
		run()
		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				s.Cancel()
				return
			case <-w.wake:
				run()
			}
		}
	}()

	return s
}

// BookFeed keeps one book-scoped live query wired to at most one subscription.
// SetBook is the "switch active scope" operation: the old subscription is
// fully torn down before the new one is wired, atomically with respect to
// other SetBook and Close calls.
type BookFeed[T any] struct {
	db          *DB
	collections []string
	query       func(ctx context.Context, bookID int64) ([]T, error)
	onData      func([]T)

	mu  sync.Mutex
	sub *Subscription
}

// NewBookFeed creates an unwired feed. Call SetBook to start delivery.
func NewBookFeed[T any](
	db *DB,
	collections []string,
	query func(ctx context.Context, bookID int64) ([]T, error),
	onData func([]T),
) *BookFeed[T] {
	return &BookFeed[T]{
		db:          db,
		collections: collections,
		query:       query,
		onData:      onData,
	}
}

// SetBook switches the feed to the given book. A bookID of 0 just tears the
// current subscription down and delivers an empty result set.
func (f *BookFeed[T]) SetBook(ctx context.Context, bookID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sub != nil {
		f.sub.Cancel()
		f.sub = nil
	}
	if bookID == 0 {
		f.onData(nil)
		return
	}
	f.sub = Watch(ctx, f.db, f.collections,
		func(ctx context.Context) ([]T, error) { return f.query(ctx, bookID) },
		f.onData,
	)
}

// Close cancels any active subscription.
func (f *BookFeed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sub != nil {
		f.sub.Cancel()
		f.sub = nil
	}
}
