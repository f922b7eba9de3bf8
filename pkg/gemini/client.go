package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/linguaflow/linguaflow/pkg/core/audio"
)

// ErrConnClosed is returned by send operations after the connection has
// been closed.
var ErrConnClosed = errors.New("gemini: connection closed")

// ConnectConfig configures a live connection.
type ConnectConfig struct {
	// APIKey authenticates the connection. Required.
	APIKey string

	// Endpoint overrides the default WebSocket endpoint.
	Endpoint string

	// Setup is the handshake frame sent after the socket opens. Required.
	Setup Setup

	// HandshakeTimeout bounds the dial plus setup acknowledgement.
	// Default: 15s.
	HandshakeTimeout time.Duration

	// MaxDialAttempts bounds connection retries. Default: 4.
	MaxDialAttempts uint64

	// EventBufferSize is the capacity of the server event channel.
	// Default: 256.
	EventBufferSize int

	Logger *slog.Logger
}

func (c *ConnectConfig) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 15 * time.Second
	}
	if c.MaxDialAttempts == 0 {
		c.MaxDialAttempts = 4
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = 256
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Conn is an open live connection. Reads are delivered as typed events on
// Events; writes go through SendAudio and SendToolResponse. All methods
// are safe for concurrent use.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
	events    chan ServerEvent

	errMu sync.Mutex
	err   error
}

// Connect dials the live endpoint, performs the setup handshake, and
// starts the read loop. Dial failures are retried with exponential
// backoff; a handshake that opens the socket but never acknowledges setup
// fails without retry.
func Connect(ctx context.Context, cfg ConnectConfig) (*Conn, error) {
	cfg.applyDefaults()
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	if cfg.Setup.Model == "" {
		return nil, errors.New("gemini: setup model required")
	}

	header := http.Header{}
	header.Set("x-goog-api-key", cfg.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}

	var ws *websocket.Conn
	backoff := retry.WithMaxRetries(cfg.MaxDialAttempts-1,
		retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var dialErr error
		ws, _, dialErr = dialer.DialContext(ctx, cfg.Endpoint, header)
		if dialErr != nil {
			cfg.Logger.Warn("live dial failed, retrying", "error", dialErr)
			return retry.RetryableError(dialErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: dial %s: %w", cfg.Endpoint, err)
	}

	c := &Conn{
		ws:     ws,
		logger: cfg.Logger,
		done:   make(chan struct{}),
		events: make(chan ServerEvent, cfg.EventBufferSize),
	}

	if err := c.handshake(cfg); err != nil {
		c.teardown(err)
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

// handshake sends the setup frame and blocks until the server
// acknowledges it.
func (c *Conn) handshake(cfg ConnectConfig) error {
	if err := c.writeJSON(clientMessage{Setup: &cfg.Setup}); err != nil {
		return fmt.Errorf("gemini: send setup: %w", err)
	}

	deadline := time.Now().Add(cfg.HandshakeTimeout)
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("gemini: set handshake deadline: %w", err)
	}
	defer c.ws.SetReadDeadline(time.Time{})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("gemini: await setup ack: %w", err)
		}
		events, err := decodeServerFrame(frame)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if ev.Kind == EventSetupComplete {
				c.logger.Debug("live setup acknowledged", "model", cfg.Setup.Model)
				return nil
			}
		}
	}
}

// readLoop decodes server frames into events until the socket dies. It is
// the only sender on the event channel and closes it on exit.
func (c *Conn) readLoop() {
	defer close(c.events)
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			// A normal close is the server ending the conversation on its
			// own terms, not a failure.
			clean := c.closed.Load() ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			if clean {
				c.teardown(nil)
			} else {
				c.teardown(fmt.Errorf("gemini: read: %w", err))
			}
			return
		}

		events, err := decodeServerFrame(frame)
		if err != nil {
			// One bad frame is logged and skipped, not fatal.
			c.logger.Warn("undecodable server frame", "error", err)
			continue
		}
		for _, ev := range events {
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		}
	}
}

// Events returns the server event stream. The channel is closed when the
// connection dies; check Err afterwards.
func (c *Conn) Events() <-chan ServerEvent { return c.events }

// SendAudio streams one encoded microphone chunk.
func (c *Conn) SendAudio(chunk audio.EncodedChunk) error {
	return c.writeJSON(clientMessage{
		RealtimeInput: &RealtimeInput{
			MediaChunks: []MediaChunk{{MIMEType: chunk.MIMEType, Data: chunk.Data}},
		},
	})
}

// SendToolResponse acknowledges one or more function calls.
func (c *Conn) SendToolResponse(resp ToolResponse) error {
	return c.writeJSON(clientMessage{ToolResponse: &resp})
}

func (c *Conn) writeJSON(msg clientMessage) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.ws.WriteJSON(msg)
}

// Close shuts the connection down. Idempotent; the event channel closes
// shortly after.
func (c *Conn) Close() error {
	c.teardown(nil)
	return nil
}

func (c *Conn) teardown(err error) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if err != nil {
			c.errMu.Lock()
			c.err = err
			c.errMu.Unlock()
			c.logger.Error("live connection failed", "error", err)
		}

		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.ws.Close()
		c.writeMu.Unlock()

		close(c.done)
	})
}

// Done is closed when the connection has fully shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the terminal error, if any, once the connection is done.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}
