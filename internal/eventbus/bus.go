package eventbus

import (
	"context"
	"sync"

	"pkt.systems/conch/schema"
	"pkt.systems/pslog"
)

// Bus fans console events out to per-console subscribers. It implements
// core.EventSink; publishing never blocks and drops events for slow
// subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.ConsoleID]map[chan schema.ConsoleEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.ConsoleID]map[chan schema.ConsoleEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the console and returns a channel + cancel.
func (b *Bus) Subscribe(id schema.ConsoleID) (<-chan schema.ConsoleEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.ConsoleEvent, b.depth)
	b.mu.Lock()
	consoleSubs := b.subs[id]
	if consoleSubs == nil {
		consoleSubs = make(map[chan schema.ConsoleEvent]struct{})
		b.subs[id] = consoleSubs
	}
	consoleSubs[ch] = struct{}{}
	count := len(consoleSubs)
	b.mu.Unlock()
	b.log.With("console", id).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[id]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, id)
				}
			}
			b.mu.Unlock()
			close(ch)
			b.log.With("console", id).Debug("eventbus unsubscribe")
		})
	}
}

// Subscribers returns the number of subscribers for the console.
func (b *Bus) Subscribers(id schema.ConsoleID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[id])
}

// OnConsoleEvent publishes a console event.
func (b *Bus) OnConsoleEvent(event schema.ConsoleEvent) {
	b.publish(event.ConsoleID, event)
}

func (b *Bus) publish(id schema.ConsoleID, event schema.ConsoleEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	consoleSubs := b.subs[id]
	if len(consoleSubs) == 0 {
		return
	}
	dropped := 0
	for sub := range consoleSubs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.log.With("console", id).Trace("eventbus dropped", "count", dropped, "type", event.Type)
	}
}
