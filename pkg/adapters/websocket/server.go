package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/diagram/internal/logging"
	"github.com/aretw0/diagram/pkg/codec"
	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/registry"
	"github.com/aretw0/diagram/pkg/session"
	gws "github.com/gorilla/websocket"
)

// DefaultReadLimit caps the size of one inbound message.
const DefaultReadLimit = 8 << 20

// Server accepts WebSocket connections and routes their messages to sessions.
type Server struct {
	registry *registry.Registry
	codec    *codec.Codec
	upgrader gws.Upgrader
	logger   *slog.Logger

	bufferSize        int
	readLimit         int64
	pongWait          time.Duration
	evictOnDisconnect bool

	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithServerCodec sets the codec for both directions.
func WithServerCodec(c *codec.Codec) Option {
	return func(s *Server) {
		s.codec = c
	}
}

// WithCheckOrigin replaces the origin check of the upgrader.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// WithOutboundBuffer sets the per-connection outbound queue size.
func WithOutboundBuffer(n int) Option {
	return func(s *Server) {
		s.bufferSize = n
	}
}

// WithReadLimit sets the maximum inbound message size in bytes.
func WithReadLimit(n int64) Option {
	return func(s *Server) {
		s.readLimit = n
	}
}

// WithEvictOnDisconnect evicts the sessions of a connection when it ends,
// instead of keeping them for a reconnect.
func WithEvictOnDisconnect(enabled bool) Option {
	return func(s *Server) {
		s.evictOnDisconnect = enabled
	}
}

// NewServer creates a server routing to sessions of reg.
func NewServer(reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		registry:   reg,
		codec:      codec.Default,
		logger:     logging.NewNop(),
		bufferSize: DefaultBufferSize,
		readLimit:  DefaultReadLimit,
		pongWait:   DefaultPongWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// ServeHTTP upgrades the request and serves the connection until it ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	_ = s.Serve(r.Context(), conn)
}

// Serve reads messages from conn and delivers them to sessions until the
// connection fails, ctx is done, or the server is closed. It closes conn.
func (s *Server) Serve(ctx context.Context, conn *gws.Conn) error {
	s.conns.Add(1)
	defer s.conns.Done()

	ep := NewEndpoint(conn,
		WithCodec(s.codec),
		WithBufferSize(s.bufferSize),
		WithEndpointLogger(s.logger),
		WithPingPeriod((s.pongWait*9)/10),
	)

	stopOnCtx := context.AfterFunc(ctx, func() { _ = conn.Close() })
	stopOnServer := context.AfterFunc(s.ctx, func() { _ = conn.Close() })
	defer stopOnCtx()
	defer stopOnServer()

	bound := make(map[string]*session.Session)
	defer func() {
		ep.Close()
		_ = conn.Close()
		s.release(bound, ep)
	}()

	conn.SetReadLimit(s.readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	remote := conn.RemoteAddr().String()
	s.logger.Info("Connection opened", "remote", remote)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) || ctx.Err() != nil || s.ctx.Err() != nil {
				s.logger.Info("Connection closed", "remote", remote)
				return nil
			}
			s.logger.Info("Connection ended", "remote", remote, "err", err)
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))

		msg, err := s.codec.Decode(data)
		if err != nil {
			s.logger.Warn("Dropping undecodable message", "remote", remote, "err", err)
			continue
		}
		if msg.ClientID == "" {
			s.logger.Warn("Dropping message without client id", "remote", remote, "kind", msg.Action.Kind())
			continue
		}

		sess, err := s.bind(ctx, bound, msg.ClientID, ep)
		if err != nil {
			s.logger.Error("Cannot open session", "client_id", msg.ClientID, "err", err)
			continue
		}

		err = sess.Accept(ctx, msg)
		if errors.Is(err, domain.ErrSessionClosed) {
			// Evicted behind our back; the registry hands out a fresh session.
			delete(bound, msg.ClientID)
			if sess, err = s.bind(ctx, bound, msg.ClientID, ep); err == nil {
				err = sess.Accept(ctx, msg)
			}
		}
		if err != nil {
			s.logger.Warn("Session refused action",
				"client_id", msg.ClientID,
				"kind", msg.Action.Kind(),
				"err", err,
			)
		}
	}
}

// bind returns the session this connection serves for clientID, looking it up
// and binding ep to it on first use.
func (s *Server) bind(ctx context.Context, bound map[string]*session.Session, clientID string, ep *Endpoint) (*session.Session, error) {
	if sess, ok := bound[clientID]; ok {
		return sess, nil
	}
	sess, err := s.registry.LookupOrCreate(ctx, clientID)
	if err != nil {
		return nil, err
	}
	sess.SetRemoteEndpoint(ep)
	bound[clientID] = sess
	s.logger.Debug("Session bound", "client_id", clientID)
	return sess, nil
}

func (s *Server) release(bound map[string]*session.Session, ep *Endpoint) {
	for clientID, sess := range bound {
		// A session taken over by a newer connection belongs to that connection.
		if !sess.ReleaseEndpoint(ep) || !s.evictOnDisconnect {
			continue
		}
		err := s.registry.Evict(context.Background(), clientID)
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			s.logger.Warn("Evict on disconnect failed", "client_id", clientID, "err", err)
		}
	}
}

// Close disconnects every connection and waits for their handlers to finish.
func (s *Server) Close() {
	s.cancel()
	s.conns.Wait()
}
