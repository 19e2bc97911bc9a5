package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/diagram/internal/logging"
	"github.com/aretw0/diagram/pkg/codec"
	"github.com/aretw0/diagram/pkg/domain"
	gws "github.com/gorilla/websocket"
)

// Connection timings.
const (
	DefaultWriteWait  = 10 * time.Second
	DefaultPongWait   = 60 * time.Second
	DefaultPingPeriod = (DefaultPongWait * 9) / 10
	DefaultBufferSize = 256
)

// Endpoint implements ports.RemoteEndpoint over one WebSocket connection.
// Accept never blocks: messages are queued for a writer goroutine and dropped
// with a warning when the queue is full or the endpoint is closed.
type Endpoint struct {
	conn   *gws.Conn
	codec  *codec.Codec
	logger *slog.Logger

	out       chan domain.ActionMessage
	done      chan struct{}
	writerEnd chan struct{}
	closeOnce sync.Once

	writeWait  time.Duration
	pingPeriod time.Duration
}

// EndpointOption configures an Endpoint.
type EndpointOption func(*Endpoint)

// WithEndpointLogger sets a structured logger.
func WithEndpointLogger(logger *slog.Logger) EndpointOption {
	return func(e *Endpoint) {
		e.logger = logger
	}
}

// WithBufferSize sets how many outbound messages may wait for the writer.
func WithBufferSize(n int) EndpointOption {
	return func(e *Endpoint) {
		e.out = make(chan domain.ActionMessage, n)
	}
}

// WithCodec sets the codec used to encode outbound messages.
func WithCodec(c *codec.Codec) EndpointOption {
	return func(e *Endpoint) {
		e.codec = c
	}
}

// WithPingPeriod sets the keepalive ping interval.
func WithPingPeriod(d time.Duration) EndpointOption {
	return func(e *Endpoint) {
		e.pingPeriod = d
	}
}

// NewEndpoint wraps conn and starts its writer. Close releases it.
func NewEndpoint(conn *gws.Conn, opts ...EndpointOption) *Endpoint {
	e := &Endpoint{
		conn:       conn,
		codec:      codec.Default,
		logger:     logging.NewNop(),
		out:        make(chan domain.ActionMessage, DefaultBufferSize),
		done:       make(chan struct{}),
		writerEnd:  make(chan struct{}),
		writeWait:  DefaultWriteWait,
		pingPeriod: DefaultPingPeriod,
	}
	for _, opt := range opts {
		opt(e)
	}

	go e.writeLoop()
	return e
}

// Accept queues msg for delivery.
func (e *Endpoint) Accept(msg domain.ActionMessage) {
	select {
	case <-e.done:
		e.logger.Debug("Endpoint closed, dropping action", "client_id", msg.ClientID, "kind", msg.Action.Kind())
		return
	default:
	}

	select {
	case e.out <- msg:
	default:
		e.logger.Warn("Outbound buffer full, dropping action",
			"client_id", msg.ClientID,
			"kind", msg.Action.Kind(),
		)
	}
}

// Close stops the writer and waits for it. Queued messages are discarded.
// It does not close the connection.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	<-e.writerEnd
}

func (e *Endpoint) writeLoop() {
	defer close(e.writerEnd)

	ticker := time.NewTicker(e.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return

		case msg := <-e.out:
			data, err := e.codec.Encode(msg)
			if err != nil {
				e.logger.Error("Failed to encode action", "client_id", msg.ClientID, "err", err)
				continue
			}
			_ = e.conn.SetWriteDeadline(time.Now().Add(e.writeWait))
			if err := e.conn.WriteMessage(gws.TextMessage, data); err != nil {
				e.logger.Warn("Write failed, stopping writer", "client_id", msg.ClientID, "err", err)
				e.drainUntilClosed()
				return
			}

		case <-ticker.C:
			_ = e.conn.SetWriteDeadline(time.Now().Add(e.writeWait))
			if err := e.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				e.drainUntilClosed()
				return
			}
		}
	}
}

// drainUntilClosed discards messages after a write failure until Close.
func (e *Endpoint) drainUntilClosed() {
	_ = e.conn.Close()
	for {
		select {
		case <-e.done:
			return
		case <-e.out:
		}
	}
}
