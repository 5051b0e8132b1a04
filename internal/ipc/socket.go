package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rescale/bucketdesk/internal/constants"
	"github.com/rescale/bucketdesk/internal/events"
	"github.com/rescale/bucketdesk/internal/logging"
	"github.com/rescale/bucketdesk/internal/metrics"
)

// Frame is one newline-delimited JSON message on a socket connection.
type Frame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// writeFrame encodes (channel, payload) and writes it as a single line.
func writeFrame(conn net.Conn, mu *sync.Mutex, channel string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", channel, err)
	}
	data, err := json.Marshal(&Frame{Channel: channel, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to encode frame for %s: %w", channel, err)
	}
	data = append(data, '\n')

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(constants.SocketWriteTimeout))
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to send frame on %s: %w", channel, err)
	}
	return nil
}

func newFrameScanner(conn net.Conn) *bufio.Scanner {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.MaxFrameSize)
	return scanner
}

// SocketTransport carries the event protocol to a Server over a unix
// socket. Publish writes a frame to the peer; frames read from the peer are
// fanned out to local subscribers, so a Correlator on a SocketTransport
// behaves exactly as one on an in-process EventBus.
type SocketTransport struct {
	conn    net.Conn
	writeMu sync.Mutex
	local   *events.EventBus
	logger  *logging.Logger

	done      chan struct{}
	closeOnce sync.Once
	readErr   error
}

var _ events.Transport = (*SocketTransport)(nil)

// Dial connects to the server listening on socketPath.
func Dial(ctx context.Context, socketPath string) (*SocketTransport, error) {
	dialer := net.Dialer{Timeout: constants.SocketWriteTimeout}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s at %s: %w", constants.AppName, socketPath, err)
	}
	return NewSocketTransport(conn), nil
}

// NewSocketTransport wraps an established connection and starts reading
// frames from it.
func NewSocketTransport(conn net.Conn) *SocketTransport {
	t := &SocketTransport{
		conn:   conn,
		local:  events.NewEventBus(constants.EventBusDefaultBuffer),
		logger: logging.NewComponentLogger("socket"),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Publish sends payload to the peer. It returns 1 once the frame is written
// and 0 if the write failed or the transport is closed.
func (t *SocketTransport) Publish(channel string, payload any) int {
	select {
	case <-t.done:
		return 0
	default:
	}
	if err := writeFrame(t.conn, &t.writeMu, channel, payload); err != nil {
		t.logger.Warn().Err(err).Msg("Publish failed")
		return 0
	}
	return 1
}

// Subscribe listens for frames the peer sends on channel.
func (t *SocketTransport) Subscribe(channel string) <-chan events.Message {
	return t.local.Subscribe(channel)
}

// Unsubscribe removes a listener returned by Subscribe.
func (t *SocketTransport) Unsubscribe(channel string, ch <-chan events.Message) {
	t.local.Unsubscribe(channel, ch)
}

// Done is closed when the connection is gone.
func (t *SocketTransport) Done() <-chan struct{} {
	return t.done
}

// Err returns the read error that ended the connection, if any.
func (t *SocketTransport) Err() error {
	select {
	case <-t.done:
		return t.readErr
	default:
		return nil
	}
}

// Close closes the connection. Pending subscribers see their channels closed.
func (t *SocketTransport) Close() error {
	err := t.conn.Close()
	<-t.done
	return err
}

func (t *SocketTransport) readLoop() {
	defer t.closeOnce.Do(func() {
		t.local.Close()
		close(t.done)
	})

	scanner := newFrameScanner(t.conn)
	for scanner.Scan() {
		var frame Frame
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to decode frame")
			continue
		}
		var payload any
		if len(frame.Payload) > 0 {
			if err := json.Unmarshal(frame.Payload, &payload); err != nil {
				t.logger.Warn().Err(err).Str("channel", frame.Channel).Msg("Failed to decode frame payload")
				continue
			}
		}

		if delivered := t.local.Publish(frame.Channel, payload); delivered == 0 && IsResponseChannel(frame.Channel) {
			t.logger.Warn().Str("channel", frame.Channel).Msg("Unroutable response dropped")
			metrics.RecordUnroutableResponse()
		}
	}
	t.readErr = scanner.Err()
}

// Server exposes a process-local transport to SocketTransport peers over a
// unix socket. Each inbound request frame is published on the local
// transport, and the matching response is written back on the same
// connection.
type Server struct {
	transport  events.Transport
	socketPath string
	timeout    time.Duration
	logger     *logging.Logger
	listener   net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer creates a server for transport on socketPath. timeout bounds how
// long a forwarded request may wait for its response. logger may be nil.
func NewServer(transport events.Transport, socketPath string, timeout time.Duration, logger *logging.Logger) *Server {
	if timeout <= 0 {
		timeout = constants.DefaultCallTimeout
	}
	if logger == nil {
		logger = logging.NewComponentLogger("server")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		transport:  transport,
		socketPath: socketPath,
		timeout:    timeout,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[net.Conn]struct{}),
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for connections.
func (s *Server) Start() error {
	if err := removeStaleSocket(s.socketPath); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener

	s.logger.Info().Str("socket", s.socketPath).Msg("IPC server started")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every open connection and waits for the
// connection handlers to return.
func (s *Server) Stop() {
	s.logger.Debug().Msg("Stopping IPC server")
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("IPC server stopped")
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Warn().Err(err).Msg("Failed to accept IPC connection")
				continue
			}
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection reads request frames until the peer disconnects.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	var writeMu sync.Mutex
	var inflight sync.WaitGroup
	defer inflight.Wait()

	scanner := newFrameScanner(conn)
	for scanner.Scan() {
		var frame Frame
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to decode IPC frame")
			continue
		}
		var payload any
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			s.logger.Warn().Err(err).Str("channel", frame.Channel).Msg("Failed to decode IPC payload")
			continue
		}
		req, ok := asRequest(payload)
		if !ok {
			s.logger.Warn().Str("channel", frame.Channel).Msg("Ignoring frame without request id")
			continue
		}

		s.logger.Debug().Str("channel", frame.Channel).Str("id", req.ID).Msg("Received IPC request")

		// subscribe before publishing so a fast handler cannot answer first
		respChannel := ResponseChannel(frame.Channel, req.ID)
		sub := s.transport.Subscribe(respChannel)

		if delivered := s.transport.Publish(frame.Channel, req); delivered == 0 {
			s.transport.Unsubscribe(respChannel, sub)
			s.logger.Error().Str("channel", frame.Channel).Str("id", req.ID).Msg("No handler registered for channel, request dropped")
			metrics.RecordDroppedRequest(frame.Channel)
			continue
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer s.transport.Unsubscribe(respChannel, sub)
			s.forward(conn, &writeMu, respChannel, sub)
		}()
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-s.ctx.Done():
		default:
			s.logger.Debug().Err(err).Msg("IPC connection closed with error")
		}
	}
}

// forward waits for the single response on respChannel and writes it to the
// peer.
func (s *Server) forward(conn net.Conn, writeMu *sync.Mutex, respChannel string, sub <-chan events.Message) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-sub:
		if !ok {
			return
		}
		if err := writeFrame(conn, writeMu, respChannel, msg.Payload); err != nil {
			s.logger.Warn().Err(err).Str("channel", respChannel).Msg("Failed to forward response")
		}
	case <-timer.C:
		s.logger.Warn().Str("channel", respChannel).Dur("timeout", s.timeout).Msg("No response to forward")
	case <-s.ctx.Done():
	}
}
