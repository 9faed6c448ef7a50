package service

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/engagehub/engagement-core/internal/domain/shared"
	"github.com/engagehub/engagement-core/internal/infrastructure/persistence/memory"
)

// recordingBus captures published events for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(e shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) ofType(t shared.EventType) []shared.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []shared.Event
	for _, e := range b.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, *memory.Store, *recordingBus) {
	t.Helper()
	store := memory.NewStore()
	bus := &recordingBus{}
	return NewEngine(store, bus, nil, testLogger()), store, bus
}
