// Package gateway implements the Session Manager: the long-lived
// WebSocket connection each client holds for authentication, heartbeat,
// procedure invocation, and server-initiated delivery (spec.md §1, §4.3,
// §5, §6, §7). It is grounded on the teacher's internal/gateway/client.go
// for the connection lifecycle, generalized from its readPump/writePump
// split and opcode-based Identify/Resume/PresenceUpdate protocol to a
// single event-loop goroutine driving a small JSON frame vocabulary, since
// nothing here writes to the connection concurrently with the loop itself.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loomctl/loom/internal/authn"
	"github.com/loomctl/loom/internal/pubsub"
	"github.com/loomctl/loom/internal/router"
	"github.com/loomctl/loom/internal/state"
	"github.com/loomctl/loom/internal/worker"
)

// maxMessageSize is the maximum size in bytes of a single inbound frame.
const maxMessageSize = 65536

// writeWait is the time allowed to write a message to the peer.
const writeWait = 10 * time.Second

// Config is the subset of application configuration a Session needs.
type Config struct {
	HeartbeatInterval time.Duration
	PongTimeout       time.Duration
	DeliveryInterval  time.Duration
	MessageLag        time.Duration
	JWTSecret         string
	JWTIssuer         string
	RateLimitWindow   time.Duration
	RateLimitCount    int
}

// inboundMessage is what readLoop pushes to the event loop for every frame
// read off the wire.
type inboundMessage struct {
	kind int // websocket.TextMessage or websocket.BinaryMessage
	data []byte
	err  error
}

// Session drives one client's WebSocket connection for its entire
// lifetime: authentication, heartbeat, procedure dispatch via the worker
// pool, and polling delivery of queued pub/sub messages.
type Session struct {
	conn *websocket.Conn
	pool *worker.Pool
	subs *pubsub.PGStore
	cfg  Config
	log  zerolog.Logger

	baseState *state.State
	caller    *state.Caller

	lastDelivery time.Time

	lastPingPayload string
	awaitingPong    bool

	eventCount  int
	windowStart time.Time
}

// NewSession wraps conn. base is the root capability State before any
// caller has authenticated; the session attaches a Caller to it once
// authenticate succeeds.
func NewSession(conn *websocket.Conn, pool *worker.Pool, subs *pubsub.PGStore, base *state.State, cfg Config, log zerolog.Logger) *Session {
	return &Session{
		conn:      conn,
		pool:      pool,
		subs:      subs,
		cfg:       cfg,
		baseState: base,
		log:       log,
	}
}

// Run drives the session until the connection closes or ctx is canceled. It
// is the sole writer to conn; readLoop only ever reads and forwards frames.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() { _ = s.conn.Close() }()

	s.conn.SetReadLimit(maxMessageSize)

	inbound := make(chan inboundMessage)
	go s.readLoop(inbound)

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	pongTimeout := time.NewTimer(s.cfg.PongTimeout)
	defer pongTimeout.Stop()

	delivery := time.NewTicker(s.cfg.DeliveryInterval)
	defer delivery.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-inbound:
			if !ok {
				return
			}
			if msg.err != nil {
				return
			}
			if msg.kind != websocket.TextMessage {
				s.closeWithCode(CloseBinaryRejected, "binary frames are not accepted")
				return
			}
			if s.rateLimited() {
				s.closeWithCode(CloseRateLimited, "rate limit exceeded")
				return
			}
			if !s.handleFrame(ctx, msg.data, &pongTimeout) {
				return
			}

		case <-heartbeat.C:
			s.sendPing()

		case <-pongTimeout.C:
			s.closeWithCode(CloseSessionTimedOut, "pong timeout")
			return

		case <-delivery.C:
			if s.caller == nil {
				continue
			}
			if err := s.deliver(ctx); err != nil {
				s.log.Warn().Err(err).Msg("delivery poll failed")
			}
		}
	}
}

// readLoop only reads frames and forwards them; it never writes to conn.
func (s *Session) readLoop(out chan<- inboundMessage) {
	defer close(out)
	for {
		kind, data, err := s.conn.ReadMessage()
		out <- inboundMessage{kind: kind, data: data, err: err}
		if err != nil {
			return
		}
	}
}

// handleFrame decodes and dispatches one inbound text frame. It returns
// false when the session must close (a transport-protocol violation), true
// otherwise — application-level failures report {error:...} and keep the
// session open (spec.md §7).
func (s *Session) handleFrame(ctx context.Context, raw []byte, pongTimeout **time.Timer) bool {
	frame, err := ParseFrame(raw)
	if err != nil {
		s.write(EncodeError("Could not understand message"))
		return true
	}

	switch frame.Type {
	case "authenticate":
		s.handleAuthenticate(frame)
	case "call":
		s.handleCall(ctx, frame)
	case "ping":
		s.write(EncodePong(frame.Payload))
	case "pong":
		if frame.Payload != s.lastPingPayload {
			s.closeWithCode(ClosePongMismatch, "pong payload mismatch")
			return false
		}
		s.awaitingPong = false
		(*pongTimeout).Reset(s.cfg.PongTimeout)
	default:
		s.write(EncodeError("Could not understand message"))
	}
	return true
}

func (s *Session) handleAuthenticate(frame Frame) {
	claims, err := authn.ValidateAccessToken(frame.Token, s.cfg.JWTSecret, s.cfg.JWTIssuer)
	if err != nil {
		s.write(EncodeError("Could not authenticate token"))
		return
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		s.write(EncodeError("Could not authenticate token"))
		return
	}

	caller := state.Caller{
		UserID:  userID,
		IsAdmin: claims.IsAdmin,
		Role:    claims.Role,
	}
	s.caller = &caller
	s.baseState = s.baseState.WithCaller(caller)

	s.lastDelivery = time.Now().Add(-s.cfg.MessageLag)

	s.write(EncodeAuthenticated())
}

func (s *Session) handleCall(ctx context.Context, frame Frame) {
	if s.caller == nil {
		s.write(EncodeError("Not authenticated"))
		return
	}

	act, err := router.Route(frame.Procedure, frame.Params)
	if err != nil {
		s.write(EncodeError("Did not understand procedure"))
		return
	}

	result, err := s.pool.Submit(ctx, act, s.baseState)
	if err != nil {
		s.write(EncodeError(err.Error()))
		return
	}

	out, err := EncodeResult(result)
	if err != nil {
		s.write(EncodeError("Could not encode result"))
		return
	}
	s.write(out)
}

// deliver polls the message log for every entry in (lastDelivery,
// now-MessageLag] on channels the caller is subscribed to, emitting each in
// order, then advances the cursor to the window's upper bound. The lag
// trails the window behind "now" so a message whose insert transaction
// commits a moment after this poll started is still caught by the next
// one, instead of falling in a gap between two advancing cursors.
func (s *Session) deliver(ctx context.Context) error {
	until := time.Now().Add(-s.cfg.MessageLag)
	if !until.After(s.lastDelivery) {
		return nil
	}

	messages, err := s.subs.GetMessages(ctx, s.caller.UserID, s.lastDelivery, until)
	if err != nil {
		return fmt.Errorf("get messages: %w", err)
	}

	for _, m := range messages {
		out, err := EncodeResult(m)
		if err != nil {
			s.log.Warn().Err(err).Int64("message_id", m.ID).Msg("could not encode delivered message")
			continue
		}
		s.write(out)
	}

	s.lastDelivery = until
	return nil
}

func (s *Session) sendPing() {
	s.lastPingPayload = HeartbeatPayload
	s.awaitingPong = true
	s.write(EncodePing(HeartbeatPayload))
}

func (s *Session) write(payload []byte) {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.log.Debug().Err(err).Msg("write error")
	}
}

func (s *Session) closeWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = s.conn.Close()
}

// rateLimited returns true if the session has exceeded the configured
// inbound message rate.
func (s *Session) rateLimited() bool {
	now := time.Now()
	if now.Sub(s.windowStart) > s.cfg.RateLimitWindow {
		s.eventCount = 0
		s.windowStart = now
	}
	s.eventCount++
	return s.eventCount > s.cfg.RateLimitCount
}
