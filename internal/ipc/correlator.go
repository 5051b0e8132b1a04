package ipc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rescale/bucketdesk/internal/constants"
	"github.com/rescale/bucketdesk/internal/events"
	"github.com/rescale/bucketdesk/internal/logging"
	"github.com/rescale/bucketdesk/internal/metrics"
)

// pendingCall is the in-flight record of one outstanding call.
type pendingCall struct {
	id      string
	channel string
	started time.Time
}

// Correlator is the asking side of the protocol. Each Call subscribes to its
// own single-use response channel, publishes the request and waits for
// exactly one response, the call deadline, or ctx cancellation. The response
// subscription is removed on every path.
type Correlator struct {
	transport events.Transport
	timeout   time.Duration
	logger    *logging.Logger

	mu      sync.Mutex
	pending map[string]*pendingCall
}

// NewCorrelator creates a correlator on transport. A zero timeout selects
// constants.DefaultCallTimeout.
func NewCorrelator(transport events.Transport, timeout time.Duration) *Correlator {
	if timeout <= 0 {
		timeout = constants.DefaultCallTimeout
	}
	return &Correlator{
		transport: transport,
		timeout:   timeout,
		logger:    logging.NewComponentLogger("correlator"),
		pending:   make(map[string]*pendingCall),
	}
}

// Timeout returns the per-call deadline.
func (c *Correlator) Timeout() time.Duration {
	return c.timeout
}

// Pending returns the number of outstanding calls.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Call sends data on channel and returns the handler's result.
//
// A failure envelope is returned as *CallError. If no response arrives in
// time the error wraps ErrTimeout; if ctx ends first, ctx.Err() is wrapped.
func (c *Correlator) Call(ctx context.Context, channel string, data any) (any, error) {
	call := c.reserve(channel)
	defer c.release(call.id)

	respChannel := ResponseChannel(channel, call.id)
	sub := c.transport.Subscribe(respChannel)
	defer c.transport.Unsubscribe(respChannel, sub)

	metrics.CallStarted()
	result := "error"
	defer func() {
		metrics.RecordCall(channel, result, time.Since(call.started))
	}()

	if delivered := c.transport.Publish(channel, &Request{ID: call.id, Data: data}); delivered == 0 {
		// normal for socket transports, the server side does the routing
		c.logger.Debug().Str("channel", channel).Str("id", call.id).Msg("Request published with no local listener")
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-sub:
		if !ok {
			return nil, fmt.Errorf("call %s (%s): %w", channel, call.id, ErrClosed)
		}
		resp, ok := asResponse(msg.Payload)
		if !ok {
			return nil, fmt.Errorf("call %s (%s): malformed response payload %T", channel, call.id, msg.Payload)
		}
		if !resp.OK() {
			return nil, &CallError{Channel: channel, Status: resp.Code, Message: resp.Message()}
		}
		result = "ok"
		return resp.Data, nil

	case <-timer.C:
		result = "timeout"
		c.logger.Warn().Str("channel", channel).Str("id", call.id).Dur("timeout", c.timeout).Msg("Call timed out")
		return nil, fmt.Errorf("call %s (%s): %w after %s", channel, call.id, ErrTimeout, c.timeout)

	case <-ctx.Done():
		result = "canceled"
		return nil, fmt.Errorf("call %s (%s): %w", channel, call.id, ctx.Err())
	}
}

// CallInto performs Call and decodes the result into T.
func CallInto[T any](ctx context.Context, c *Correlator, channel string, data any) (T, error) {
	raw, err := c.Call(ctx, channel, data)
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeData[T](raw)
}

// reserve allocates a call id that no outstanding call is using.
func (c *Correlator) reserve(channel string) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	for {
		if _, taken := c.pending[id]; !taken {
			break
		}
		id = uuid.NewString()
	}
	call := &pendingCall{id: id, channel: channel, started: time.Now()}
	c.pending[id] = call
	return call
}

func (c *Correlator) release(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// IsTimeout reports whether err is a call timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
