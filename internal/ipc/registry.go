package ipc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rescale/bucketdesk/internal/events"
	"github.com/rescale/bucketdesk/internal/logging"
	"github.com/rescale/bucketdesk/internal/metrics"
)

// HandlerFunc answers one request. A returned error becomes a failure
// envelope; errors implementing Coder choose the code.
type HandlerFunc func(ctx context.Context, data any) (any, error)

// Registry is the answering side of the protocol: a table from channel name
// to handler, plus one subscription loop per channel once started.
//
// Registration and dispatch are separate phases. All Register calls happen
// before Start; Register after Start fails with ErrRegistryStarted.
type Registry struct {
	transport events.Transport
	logger    *logging.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	subs     map[string]<-chan events.Message
	started  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates an empty registry on transport. logger may be nil.
func NewRegistry(transport events.Transport, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewComponentLogger("registry")
	}
	return &Registry{
		transport: transport,
		logger:    logger,
		handlers:  make(map[string]HandlerFunc),
		subs:      make(map[string]<-chan events.Message),
	}
}

// Register binds handler to channel. Registering a channel again before
// Start replaces the previous handler.
func (r *Registry) Register(channel string, handler HandlerFunc) error {
	if channel == "" || IsResponseChannel(channel) {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("register %s: %w", channel, ErrRegistryStarted)
	}
	if _, exists := r.handlers[channel]; exists {
		r.logger.Debug().Str("channel", channel).Msg("Replacing handler")
	}
	r.handlers[channel] = handler
	return nil
}

// Channels returns the registered channel names, sorted.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Start ends the registration phase and begins dispatching requests from the
// transport. Each request is handled in its own goroutine, so concurrent
// calls to one channel run concurrently.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrRegistryStarted
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(ctx)

	for channel := range r.handlers {
		ch := r.transport.Subscribe(channel)
		r.subs[channel] = ch
		r.wg.Add(1)
		go r.listen(channel, ch)
	}

	r.logger.Info().Int("channels", len(r.handlers)).Msg("Channel registry started")
	return nil
}

// Stop cancels in-flight handlers, unsubscribes every channel and waits for
// the dispatch goroutines to finish.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.started || r.cancel == nil {
		r.mu.Unlock()
		return
	}
	r.cancel()
	for channel, ch := range r.subs {
		r.transport.Unsubscribe(channel, ch)
		delete(r.subs, channel)
	}
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Debug().Msg("Channel registry stopped")
}

func (r *Registry) listen(channel string, ch <-chan events.Message) {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			req, ok := asRequest(msg.Payload)
			if !ok {
				r.logger.Error().Str("channel", channel).Msgf("Dropping malformed request payload %T", msg.Payload)
				continue
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.Dispatch(r.ctx, channel, req)
			}()
		}
	}
}

// Dispatch runs the handler for one request and publishes exactly one
// response on the request's response channel. A request for a channel with
// no handler is a configuration fault of this process: it is logged and
// dropped, and false is returned.
func (r *Registry) Dispatch(ctx context.Context, channel string, req *Request) bool {
	r.mu.RLock()
	handler, ok := r.handlers[channel]
	r.mu.RUnlock()

	if !ok {
		r.logger.Error().Str("channel", channel).Str("id", req.ID).Msg("No handler registered for channel, request dropped")
		metrics.RecordDroppedRequest(channel)
		return false
	}

	start := time.Now()
	resp := r.invoke(ctx, channel, handler, req)
	metrics.RecordHandler(channel, resp.Code, time.Since(start))

	if !resp.OK() {
		r.logger.Warn().
			Str("channel", channel).
			Str("id", req.ID).
			Int("code", resp.Code).
			Str("error", resp.Message()).
			Msg("Handler failed")
	}

	if delivered := r.transport.Publish(ResponseChannel(channel, req.ID), resp); delivered == 0 {
		r.logger.Warn().Str("channel", channel).Str("id", req.ID).Msg("Response reached no waiting caller")
		metrics.RecordUnroutableResponse()
	}
	return true
}

// invoke calls handler and converts both errors and panics into a response.
func (r *Registry) invoke(ctx context.Context, channel string, handler HandlerFunc, req *Request) (resp *Response) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error().Str("channel", channel).Str("id", req.ID).Interface("panic", v).Msg("Handler panicked")
			resp = NewErrorResponse(&handlerPanic{value: v})
		}
	}()

	result, err := handler(ctx, req.Data)
	if err != nil {
		return NewErrorResponse(err)
	}
	return NewOKResponse(result)
}
