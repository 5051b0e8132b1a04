package events

import (
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe("get-config")

	if n := bus.Publish("get-config", map[string]any{"id": "1"}); n != 1 {
		t.Errorf("Expected 1 delivery, got %d", n)
	}

	select {
	case received := <-ch:
		if received.Channel != "get-config" {
			t.Errorf("Expected channel 'get-config', got '%s'", received.Channel)
		}
		payload, ok := received.Payload.(map[string]any)
		if !ok || payload["id"] != "1" {
			t.Errorf("Unexpected payload %#v", received.Payload)
		}
		if received.Time.IsZero() {
			t.Error("Expected message timestamp to be set")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for message")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe("switch-bucket")
	ch2 := bus.Subscribe("switch-bucket")

	if n := bus.Publish("switch-bucket", "photos"); n != 2 {
		t.Errorf("Expected 2 deliveries, got %d", n)
	}

	received1 := false
	received2 := false

	select {
	case <-ch1:
		received1 = true
	case <-time.After(100 * time.Millisecond):
	}

	select {
	case <-ch2:
		received2 = true
	case <-time.After(100 * time.Millisecond):
	}

	if !received1 || !received2 {
		t.Error("Not all subscribers received the message")
	}
}

func TestEventBus_DifferentChannels(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	bucketsCh := bus.Subscribe("get-buckets")
	appsCh := bus.Subscribe("get-apps")

	bus.Publish("get-buckets", nil)

	select {
	case <-bucketsCh:
		// Expected
	case <-time.After(100 * time.Millisecond):
		t.Error("get-buckets subscriber didn't receive message")
	}

	select {
	case <-appsCh:
		t.Error("get-apps subscriber received message for another channel")
	case <-time.After(50 * time.Millisecond):
		// Expected - timeout means no message
	}
}

func TestEventBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	all := bus.SubscribeAll()
	if n := bus.Publish("nobody-listens", 1); n != 0 {
		t.Errorf("Expected 0 deliveries, got %d", n)
	}

	// Catch-all listeners still observe the message
	select {
	case msg := <-all:
		if msg.Channel != "nobody-listens" {
			t.Errorf("Unexpected channel %q", msg.Channel)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Catch-all subscriber didn't receive message")
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.SubscribeAll()

	bus.Publish("get-apps", nil)
	bus.Publish("get-config", nil)

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 messages, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2) // Small buffer
	defer bus.Close()

	ch := bus.Subscribe("get-transfer")

	for i := 0; i < 10; i++ {
		bus.Publish("get-transfer", i)
	}

	// Should not block - excess messages are dropped

	count := 0
	for {
		select {
		case <-ch:
			count++
		case <-time.After(10 * time.Millisecond):
			goto done
		}
	}
done:

	if count != 2 {
		t.Errorf("Expected 2 buffered messages, got %d", count)
	}

	if reset := bus.ResetDroppedEventCount(); reset != 8 {
		t.Errorf("Expected reset to return 8, got %d", reset)
	}
	if again := bus.ResetDroppedEventCount(); again != 0 {
		t.Errorf("Dropped counter should be zero after reset, got %d", again)
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe("get-config_res_abc")
	if bus.ChannelCount() != 1 {
		t.Fatalf("Expected 1 channel, got %d", bus.ChannelCount())
	}

	bus.Unsubscribe("get-config_res_abc", ch)

	if _, ok := <-ch; ok {
		t.Error("Channel should be closed after Unsubscribe")
	}
	if bus.ChannelCount() != 0 {
		t.Errorf("Expected no channels after Unsubscribe, got %d", bus.ChannelCount())
	}
	if n := bus.Publish("get-config_res_abc", nil); n != 0 {
		t.Errorf("Expected 0 deliveries after Unsubscribe, got %d", n)
	}
}

func TestEventBus_UnsubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	all := bus.SubscribeAll()
	bus.UnsubscribeAll(all)

	if _, ok := <-all; ok {
		t.Error("Catch-all channel should be closed after UnsubscribeAll")
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe("get-apps")

	bus.Close()

	_, ok := <-ch
	if ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing and subscribing after close should not panic
	if n := bus.Publish("get-apps", nil); n != 0 {
		t.Errorf("Expected 0 deliveries after close, got %d", n)
	}
	if _, ok := <-bus.Subscribe("get-apps"); ok {
		t.Error("Subscribe after close should return a closed channel")
	}
	bus.Close()
}
