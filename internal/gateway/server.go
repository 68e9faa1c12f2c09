package gateway

import (
	"context"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"

	"github.com/loomctl/loom/internal/pubsub"
	"github.com/loomctl/loom/internal/state"
	"github.com/loomctl/loom/internal/worker"
)

// Server is the entry point Fiber's WebSocket upgrade hands each new
// connection to. Unlike the teacher's Hub, it keeps no client registry:
// delivery is pull-based (each Session polls the message log on its own
// ticker), so there is no server-initiated push and no need for a
// central map to fan out to (spec.md §9, "cyclic interest between
// Session and Pub/Sub" is deliberately not reproduced).
type Server struct {
	pool *worker.Pool
	subs *pubsub.PGStore
	root *state.State
	cfg  Config
	log  zerolog.Logger
}

// NewServer builds a Server. root is the capability State shared by every
// session before authentication; pool is the shared worker pool every
// session submits Actions to.
func NewServer(pool *worker.Pool, subs *pubsub.PGStore, root *state.State, cfg Config, log zerolog.Logger) *Server {
	return &Server{pool: pool, subs: subs, root: root, cfg: cfg, log: log.With().Str("component", "gateway.Server").Logger()}
}

// ServeWebSocket runs one Session to completion on conn. Callers hand it
// an already-upgraded connection and run it in its own goroutine; it
// blocks until the session ends.
func (s *Server) ServeWebSocket(conn *websocket.Conn) {
	sess := NewSession(conn, s.pool, s.subs, s.root, s.cfg, s.log)
	sess.Run(context.Background())
}
