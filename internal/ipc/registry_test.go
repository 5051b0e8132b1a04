package ipc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rescale/bucketdesk/internal/events"
)

type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string { return e.msg }
func (e *codedError) Code() int     { return e.code }

// awaitResponse subscribes to the response channel of id, publishes the
// request and returns the single response.
func awaitResponse(t *testing.T, bus *events.EventBus, channel, id string, data any) *Response {
	t.Helper()
	sub := bus.Subscribe(ResponseChannel(channel, id))
	defer bus.Unsubscribe(ResponseChannel(channel, id), sub)

	bus.Publish(channel, &Request{ID: id, Data: data})

	select {
	case msg := <-sub:
		resp, ok := asResponse(msg.Payload)
		if !ok {
			t.Fatalf("payload %T is not a response", msg.Payload)
		}
		select {
		case extra := <-sub:
			t.Fatalf("second response emitted: %+v", extra.Payload)
		case <-time.After(50 * time.Millisecond):
		}
		return resp
	case <-time.After(2 * time.Second):
		t.Fatalf("no response on %s", ResponseChannel(channel, id))
	}
	return nil
}

func startRegistry(t *testing.T, bus *events.EventBus, handlers map[string]HandlerFunc) *Registry {
	t.Helper()
	reg := NewRegistry(bus, nil)
	for name, h := range handlers {
		if err := reg.Register(name, h); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(reg.Stop)
	return reg
}

func TestRegistrySuccessResponse(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	startRegistry(t, bus, map[string]HandlerFunc{
		"echo": func(ctx context.Context, data any) (any, error) { return data, nil },
	})

	resp := awaitResponse(t, bus, "echo", "id-1", "hello")
	if resp.Code != StatusOK || resp.Data != "hello" {
		t.Errorf("response = %+v, want {200 hello}", resp)
	}
}

func TestRegistryHandlerFailure(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	startRegistry(t, bus, map[string]HandlerFunc{
		"fail": func(ctx context.Context, data any) (any, error) { return nil, errors.New("boom") },
	})

	resp := awaitResponse(t, bus, "fail", "id-1", nil)
	if resp.Code != StatusInternalError {
		t.Errorf("code = %d, want 500", resp.Code)
	}
	if resp.Data != "boom" {
		t.Errorf("data = %v, want boom", resp.Data)
	}
}

func TestRegistryCodedFailure(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	startRegistry(t, bus, map[string]HandlerFunc{
		"missing": func(ctx context.Context, data any) (any, error) {
			return nil, &codedError{code: 404, msg: "no such app"}
		},
	})

	resp := awaitResponse(t, bus, "missing", "id-1", nil)
	if resp.Code != 404 || resp.Data != "no such app" {
		t.Errorf("response = %+v, want {404 no such app}", resp)
	}
}

func TestRegistryRecoversPanic(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	startRegistry(t, bus, map[string]HandlerFunc{
		"panic": func(ctx context.Context, data any) (any, error) { panic("kaboom") },
	})

	resp := awaitResponse(t, bus, "panic", "id-1", nil)
	if resp.Code != StatusInternalError {
		t.Errorf("code = %d, want 500", resp.Code)
	}
	if resp.Message() != "handler panic: kaboom" {
		t.Errorf("message = %q", resp.Message())
	}
}

func TestRegistryConcurrentHandlers(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	startRegistry(t, bus, map[string]HandlerFunc{
		"slow": func(ctx context.Context, data any) (any, error) {
			entered <- struct{}{}
			<-release
			return data, nil
		},
	})

	bus.Publish("slow", &Request{ID: "a"})
	bus.Publish("slow", &Request{ID: "b"})

	// both handlers must be running at once
	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			close(release)
			t.Fatalf("handler %d never started; calls were serialized", i)
		}
	}
	close(release)
}

func TestRegisterAfterStart(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	reg := startRegistry(t, bus, nil)

	err := reg.Register("late", func(ctx context.Context, data any) (any, error) { return nil, nil })
	if !errors.Is(err, ErrRegistryStarted) {
		t.Errorf("err = %v, want ErrRegistryStarted", err)
	}
	if err := reg.Start(context.Background()); !errors.Is(err, ErrRegistryStarted) {
		t.Errorf("second Start err = %v, want ErrRegistryStarted", err)
	}
}

func TestRegisterReplaces(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	reg := NewRegistry(bus, nil)
	reg.Register("ch", func(ctx context.Context, data any) (any, error) { return "first", nil })
	reg.Register("ch", func(ctx context.Context, data any) (any, error) { return "second", nil })
	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer reg.Stop()

	if got := reg.Channels(); len(got) != 1 {
		t.Errorf("Channels = %v, want one", got)
	}
	resp := awaitResponse(t, bus, "ch", "id-1", nil)
	if resp.Data != "second" {
		t.Errorf("data = %v, want second", resp.Data)
	}
}

func TestRegisterInvalidChannel(t *testing.T) {
	reg := NewRegistry(events.NewEventBus(1), nil)
	noop := func(ctx context.Context, data any) (any, error) { return nil, nil }

	for _, name := range []string{"", "get-config_res_123"} {
		if err := reg.Register(name, noop); !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("Register(%q) err = %v, want ErrInvalidChannel", name, err)
		}
	}
}

func TestDispatchWithoutHandler(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	reg := NewRegistry(bus, nil)

	sub := bus.Subscribe(ResponseChannel("nobody", "x"))
	if reg.Dispatch(context.Background(), "nobody", &Request{ID: "x"}) {
		t.Error("Dispatch should report the request as dropped")
	}
	select {
	case msg := <-sub:
		t.Errorf("unexpected response %+v", msg.Payload)
	default:
	}
}

func TestRegistryStopUnsubscribes(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	reg := NewRegistry(bus, nil)
	reg.Register("a", func(ctx context.Context, data any) (any, error) { return nil, nil })
	reg.Register("b", func(ctx context.Context, data any) (any, error) { return nil, nil })
	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := bus.ChannelCount(); got != 2 {
		t.Fatalf("ChannelCount = %d, want 2", got)
	}

	reg.Stop()
	if got := bus.ChannelCount(); got != 0 {
		t.Errorf("ChannelCount after Stop = %d, want 0", got)
	}
}
