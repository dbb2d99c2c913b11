package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	name string
	mu   sync.Mutex
	seen []Event
	err  error
	fail bool
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Handle(_ context.Context, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, ev)
	if h.fail {
		return h.err
	}
	return nil
}

func (h *recordingHandler) events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.seen))
	copy(out, h.seen)
	return out
}

func TestBusFansOutToAllSubscribers(t *testing.T) {
	t.Parallel()

	a := &recordingHandler{name: "a"}
	b := &recordingHandler{name: "b"}

	bus := NewBus()
	require.NoError(t, bus.Subscribe(a))
	require.NoError(t, bus.Subscribe(b))
	bus.Start(context.Background())

	bus.Publish(Event{Type: TypeRegistered, Kind: "service", ResourceID: "svc-1"})
	bus.Publish(Event{Type: TypeVerified, Kind: "service", ResourceID: "svc-1"})
	bus.Close()

	require.Len(t, a.events(), 2)
	require.Len(t, b.events(), 2)
	require.Equal(t, TypeRegistered, a.events()[0].Type)
	require.Equal(t, TypeVerified, a.events()[1].Type)
}

func TestHandlerFailureDoesNotAffectOtherSubscribers(t *testing.T) {
	t.Parallel()

	failing := &recordingHandler{name: "failing", fail: true, err: errors.New("boom")}
	healthy := &recordingHandler{name: "healthy"}

	var outcomes sync.Map
	bus := NewBus(WithOutcomeObserver(func(handler string, _ Event, err error) {
		outcomes.Store(handler, err)
	}))
	require.NoError(t, bus.Subscribe(failing))
	require.NoError(t, bus.Subscribe(healthy))
	bus.Start(context.Background())

	bus.Publish(Event{Type: TypeUpdated, Kind: "provider", ResourceID: "prov-1"})
	bus.Close()

	require.Len(t, healthy.events(), 1)
	failure, ok := outcomes.Load("failing")
	require.True(t, ok)
	require.Error(t, failure.(error))
	success, ok := outcomes.Load("healthy")
	require.True(t, ok)
	require.Nil(t, success)
}

type panickingHandler struct{}

func (panickingHandler) Name() string                        { return "panicking" }
func (panickingHandler) Handle(context.Context, Event) error { panic("kaboom") }

func TestHandlerPanicIsContained(t *testing.T) {
	t.Parallel()

	after := &recordingHandler{name: "after"}
	bus := NewBus()
	require.NoError(t, bus.Subscribe(panickingHandler{}))
	require.NoError(t, bus.Subscribe(after))
	bus.Start(context.Background())

	bus.Publish(Event{Type: TypeDeleted, Kind: "service", ResourceID: "svc-1"})
	bus.Publish(Event{Type: TypeDeleted, Kind: "service", ResourceID: "svc-2"})
	bus.Close()

	// The panicking subscriber keeps receiving and the healthy one is
	// unaffected.
	require.Len(t, after.events(), 2)
}

func TestSubscribeAfterStartFails(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	bus.Start(context.Background())
	defer bus.Close()

	err := bus.Subscribe(&recordingHandler{name: "late"})
	require.Error(t, err)
}

func TestPublishAfterCloseIsNoOp(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{name: "h"}
	bus := NewBus()
	require.NoError(t, bus.Subscribe(h))
	bus.Start(context.Background())
	bus.Close()

	bus.Publish(Event{Type: TypeRegistered})
	time.Sleep(10 * time.Millisecond)
	require.Empty(t, h.events())
}

func TestSubject(t *testing.T) {
	t.Parallel()

	require.Equal(t, "service.update", Event{Type: TypeVerified, Kind: "service"}.Subject())
	require.Equal(t, "service.delete", Event{Type: TypeDeleted, Kind: "service"}.Subject())
}
