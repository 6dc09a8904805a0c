package awakener

import (
	"testing"
	"time"
)

func TestBusOrderedDelivery(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(8)
	defer bus.Unsubscribe(sub)

	bus.Publish(EventRound, map[string]any{"round": 1})
	bus.Publish(EventToolCall, map[string]any{"name": "shell_execute"})
	bus.Publish(EventToolResult, map[string]any{"name": "shell_execute"})

	want := []string{EventRound, EventToolCall, EventToolResult}
	for i, kind := range want {
		select {
		case ev := <-sub.C():
			if ev.Type != kind {
				t.Errorf("event %d type = %s, want %s", i, ev.Type, kind)
			}
			if ev.Timestamp == "" {
				t.Error("event missing timestamp")
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestBusFireAndForgetDropsWhenFull(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(1)
	defer bus.Unsubscribe(sub)

	// Queue capacity one: the second chunk must be dropped, not block.
	done := make(chan struct{})
	go func() {
		bus.PublishAsync(EventThoughtChunk, map[string]any{"text": "a"})
		bus.PublishAsync(EventThoughtChunk, map[string]any{"text": "b"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishAsync blocked on a full queue")
	}

	ev := <-sub.C()
	if ev.Data["text"] != "a" {
		t.Errorf("kept event = %v, want the first one", ev.Data)
	}
	select {
	case ev := <-sub.C():
		t.Errorf("unexpected second event: %v", ev)
	default:
	}
}

func TestBusNoReplayForLateSubscribers(t *testing.T) {
	bus := NewBus(nil)
	early := bus.Subscribe(4)
	bus.Publish(EventRound, map[string]any{"round": 1})

	late := bus.Subscribe(4)
	defer bus.Unsubscribe(early)
	defer bus.Unsubscribe(late)

	select {
	case ev := <-late.C():
		t.Errorf("late subscriber replayed %v", ev)
	default:
	}
	if ev := <-early.C(); ev.Type != EventRound {
		t.Errorf("early subscriber got %s", ev.Type)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(4)
	bus.Unsubscribe(sub)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed on unsubscribe")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d", bus.SubscriberCount())
	}
	// Publishing to a removed subscriber must not panic or block.
	bus.Publish(EventStatus, nil)
}

func TestBusRemovesStalledSubscriber(t *testing.T) {
	bus := NewBus(nil)
	bus.sendTimeout = 50 * time.Millisecond

	stalled := bus.Subscribe(1)
	bus.Publish(EventRound, nil) // fills the queue
	bus.Publish(EventRound, nil) // times out, removes the subscriber

	select {
	case <-stalled.Done():
	case <-time.After(time.Second):
		t.Fatal("stalled subscriber not removed")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d", bus.SubscriberCount())
	}
}
