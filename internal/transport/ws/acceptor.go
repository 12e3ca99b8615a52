// Package ws accepts websocket connections and feeds framed text messages
// into the game core's transport entry points.
package ws

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hallowdale/dicetable/internal/config"
	"github.com/hallowdale/dicetable/internal/game/session"
)

// Handler receives connection lifecycle notifications. Exactly one of
// OnClose or OnError is delivered per connection, after which no further
// notifications follow for it.
type Handler interface {
	OnOpen(conn session.Conn)
	OnMessage(conn session.Conn, data []byte)
	OnClose(conn session.Conn)
	OnError(conn session.Conn, err error)
}

// Acceptor listens for websocket upgrades on an HTTP(S) port and pumps each
// connection's frames into a Handler.
type Acceptor struct {
	cfg      config.WebsocketConfig
	handler  Handler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	srv      *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	conns    map[*Conn]struct{}
}

// NewAcceptor creates a websocket acceptor with the given configuration.
//
// Precondition: cfg must have a valid port and path; handler and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.WebsocketConfig, handler Handler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		conns:   make(map[*Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dice protocol carries its own room passwords; browser
			// origin is not part of the trust model.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ListenAndServe starts the listener and accepts connections until Stop is
// called. This method blocks until the acceptor is stopped.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(a.cfg.Path, a.serveWS)
	srv := &http.Server{Handler: mux}

	a.mu.Lock()
	a.listener = listener
	a.srv = srv
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", a.cfg.Path),
		zap.Bool("tls", a.cfg.TLSEnabled()),
		zap.Duration("startup", time.Since(start)),
	)

	if a.cfg.TLSEnabled() {
		err = srv.ServeTLS(listener, a.cfg.TLSCert, a.cfg.TLSKey)
	} else {
		err = srv.Serve(listener)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// serveWS upgrades one HTTP request and runs its read loop to completion.
func (a *Acceptor) serveWS(w http.ResponseWriter, req *http.Request) {
	raw, err := a.upgrader.Upgrade(w, req, nil)
	if err != nil {
		a.logger.Error("websocket upgrade failed",
			zap.String("remote_addr", req.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	a.wg.Add(1)
	defer a.wg.Done()

	conn := newConn(raw, a.cfg.WriteTimeout)
	if !a.track(conn) {
		// Raced Stop; the listener is already gone.
		_ = raw.Close()
		return
	}
	defer a.untrack(conn)
	defer raw.Close()

	a.logger.Info("client connected",
		zap.String("remote_addr", req.RemoteAddr),
		zap.String("cid", conn.ID()),
	)

	raw.SetReadLimit(a.cfg.MaxMessageBytes)
	a.handler.OnOpen(conn)
	a.readLoop(conn, raw)
}

// readLoop delivers inbound text frames until the connection ends, then
// reports either a clean close or an error to the handler.
func (a *Acceptor) readLoop(conn *Conn, raw *websocket.Conn) {
	start := time.Now()
	for {
		msgType, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				a.handler.OnError(conn, err)
			} else {
				a.handler.OnClose(conn)
			}
			a.logger.Debug("session ended",
				zap.String("cid", conn.ID()),
				zap.Duration("duration", time.Since(start)),
			)
			return
		}
		// The protocol is JSON over text frames only.
		if msgType != websocket.TextMessage {
			continue
		}
		a.handler.OnMessage(conn, data)
	}
}

// track registers a live connection for Stop to close. Returns false when the
// acceptor is no longer running.
func (a *Acceptor) track(c *Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return false
	}
	a.conns[c] = struct{}{}
	return true
}

// untrack drops a connection whose read loop has exited.
func (a *Acceptor) untrack(c *Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, c)
}

// Stop gracefully stops the acceptor, closing the listener and all active
// connections, and waits for their read loops to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	srv := a.srv
	conns := make([]*Conn, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	a.mu.Unlock()

	if srv != nil {
		_ = srv.Close()
	}
	// Upgraded connections are hijacked from the http.Server, so closing the
	// server leaves their read loops blocked; they have to be closed directly.
	for _, c := range conns {
		_ = c.Close()
	}
	a.wg.Wait()

	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
