// Package events provides the named-channel event transport shared by the
// UI-facing side and the long-lived process.
//
// A sender publishes (channel, payload); every listener subscribed to that
// channel receives the payload. There is no reply path: replies are modeled
// by convention on top of this package (see internal/ipc).
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rescale/bucketdesk/internal/constants"
	"github.com/rescale/bucketdesk/internal/logging"
)

var busLogger = logging.NewComponentLogger("events")

// Message is a single payload delivered on a named channel.
type Message struct {
	Channel string
	Payload any
	Time    time.Time
}

// Transport is the publish/subscribe contract the call layer is written
// against. EventBus implements it in-process; ipc.SocketTransport
// implements it across a socket.
type Transport interface {
	// Publish delivers payload to every current listener of channel and
	// returns how many listeners were reached.
	Publish(channel string, payload any) int

	// Subscribe registers a new listener on channel.
	Subscribe(channel string) <-chan Message

	// Unsubscribe removes a listener returned by Subscribe.
	Unsubscribe(channel string, ch <-chan Message)
}

// EventBus manages channel subscriptions and publishing
type EventBus struct {
	subscribers   map[string][]chan Message
	all           []chan Message // Subscribers to every channel
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped messages due to full buffers
}

var _ Transport = (*EventBus)(nil)

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[string][]chan Message),
		all:         make([]chan Message, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific channel
func (eb *EventBus) Subscribe(channel string) <-chan Message {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Message)
		close(ch)
		return ch
	}

	ch := make(chan Message, eb.bufferSize)
	eb.subscribers[channel] = append(eb.subscribers[channel], ch)
	return ch
}

// SubscribeAll creates a subscription to all channels
func (eb *EventBus) SubscribeAll() <-chan Message {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Message)
		close(ch)
		return ch
	}

	ch := make(chan Message, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends a payload to all subscribers of channel (non-blocking).
// Catch-all subscribers do not count towards the returned delivery count.
func (eb *EventBus) Publish(channel string, payload any) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return 0
	}

	msg := Message{Channel: channel, Payload: payload, Time: time.Now()}
	delivered := 0

	for _, ch := range eb.subscribers[channel] {
		select {
		case ch <- msg:
			delivered++
		default:
			eb.recordDrop(channel)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- msg:
		default:
			eb.recordDrop(channel)
		}
	}

	return delivered
}

func (eb *EventBus) recordDrop(channel string) {
	dropped := eb.droppedEvents.Add(1)
	if dropped%constants.EventBusDropLogEvery == 1 {
		busLogger.Warn().
			Str("channel", channel).
			Int64("dropped_total", dropped).
			Msg("Subscriber buffer full, message dropped")
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// Unsubscribe removes a subscription from a specific channel and closes it.
// This prevents memory leaks from abandoned subscriptions.
func (eb *EventBus) Unsubscribe(channel string, ch <-chan Message) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[channel]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			subscribers = subscribers[:len(subscribers)-1]
			close(subCh)
			break
		}
	}
	if len(subscribers) == 0 {
		delete(eb.subscribers, channel)
	} else {
		eb.subscribers[channel] = subscribers
	}
}

// UnsubscribeAll removes a subscription from every channel it is attached to,
// including the catch-all list.
func (eb *EventBus) UnsubscribeAll(ch <-chan Message) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for channel, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[channel] = subscribers[:len(subscribers)-1]
				close(subCh)
				break
			}
		}
		if len(eb.subscribers[channel]) == 0 {
			delete(eb.subscribers, channel)
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			close(subCh)
			break
		}
	}
}

// ChannelCount returns the number of channels with at least one listener.
// Used to detect leaked one-shot response subscriptions.
func (eb *EventBus) ChannelCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// ResetDroppedEventCount returns the number of messages dropped on full
// buffers since the previous reset and zeroes the counter.
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
