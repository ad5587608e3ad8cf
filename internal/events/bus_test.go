package events

import (
	"testing"

	"github.com/1broseidon/panewm/internal/platform"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(nil)
	a := bus.Subscribe("a", 4)
	b := bus.Subscribe("b", 4)

	bus.Publish(Event{Kind: WindowAssigned, Window: 7})

	for _, sub := range []*Subscription{a, b} {
		ev := <-sub.C
		if ev.Kind != WindowAssigned || ev.Window != 7 {
			t.Fatalf("%s got %+v", sub.Name, ev)
		}
	}
}

func TestBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(nil)
	slow := bus.Subscribe("slow", 1)

	bus.Publish(Event{Kind: WorkspaceCreated, Workspace: "one"})
	bus.Publish(Event{Kind: WorkspaceCreated, Workspace: "two"})

	ev := <-slow.C
	if ev.Workspace != "one" {
		t.Fatalf("got %+v, want first event kept", ev)
	}
	select {
	case ev := <-slow.C:
		t.Fatalf("unexpected second event %+v", ev)
	default:
	}
}

func TestBus_CloseAndUnsubscribe(t *testing.T) {
	bus := NewBus(nil)
	a := bus.Subscribe("a", 1)
	b := bus.Subscribe("b", 1)

	a.Unsubscribe()
	if _, ok := <-a.C; ok {
		t.Fatal("unsubscribed channel still open")
	}

	bus.Close()
	if _, ok := <-b.C; ok {
		t.Fatal("channel open after Close")
	}
	bus.Publish(Event{Kind: WindowFocused})

	late := bus.Subscribe("late", 1)
	if _, ok := <-late.C; ok {
		t.Fatal("subscription after Close should be closed")
	}
}

func TestBus_LosslessSubscriberKeepsEveryEvent(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.SubscribeLossless("engine")

	const n = 5000
	for i := 1; i <= n; i++ {
		bus.Publish(Event{Kind: WindowFocused, Window: platform.WindowID(i)})
	}
	bus.Publish(Event{Kind: WindowUnassigned, Window: 2})

	for i := 1; i <= n; i++ {
		ev := <-sub.C
		if ev.Window != platform.WindowID(i) {
			t.Fatalf("event %d out of order: %+v", i, ev)
		}
	}
	if ev := <-sub.C; ev.Kind != WindowUnassigned {
		t.Fatalf("last event = %+v, want window_unassigned", ev)
	}

	sub.Unsubscribe()
	if _, ok := <-sub.C; ok {
		t.Fatal("lossless channel open after Unsubscribe")
	}
}

func TestBus_CloseEndsLosslessSubscriber(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.SubscribeLossless("engine")
	bus.Publish(Event{Kind: WorkspaceCreated})
	bus.Close()

	// Pending events may or may not be delivered; the channel must close.
	for range sub.C {
	}
	late := bus.SubscribeLossless("late")
	if _, ok := <-late.C; ok {
		t.Fatal("subscription after Close should be closed")
	}
}
