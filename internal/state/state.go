// Package state implements the per-request capability bag every Action
// operates against: a database handle (pool or, inside WithTransaction, a
// live transaction), the EntityStore, the pub/sub store, the script runner
// and mailer collaborators, the permission resolver, user management, and
// the caller's authenticated identity. Each capability is retrieved by an
// explicit accessor; nothing here is a process-wide global (spec.md §9,
// "Ambient state passing").
package state

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loomctl/loom/internal/entitystore"
	"github.com/loomctl/loom/internal/mailer"
	"github.com/loomctl/loom/internal/permission"
	"github.com/loomctl/loom/internal/pubsub"
	"github.com/loomctl/loom/internal/queryengine"
	"github.com/loomctl/loom/internal/scriptrunner"
	"github.com/loomctl/loom/internal/usermgmt"
)

// Caller is the authenticated identity an action runs as.
type Caller struct {
	UserID  uuid.UUID
	IsAdmin bool
	Role    string
}

// State bundles every capability an Action needs. It borrows from the same
// database connection for the request's lifetime; it owns nothing beyond
// that.
type State struct {
	db           *pgxpool.Pool
	conn         *pgxpool.Conn
	tx           pgx.Tx
	entityStore  *entitystore.Store
	pubsub       *pubsub.PGStore
	scriptRunner scriptrunner.Runner
	queryEngine  queryengine.Engine
	emailSender  mailer.Sender
	authz        *permission.Resolver
	userMgmt     usermgmt.Store
	caller       Caller
}

// New builds the root State for a request, before a caller has
// authenticated.
func New(
	db *pgxpool.Pool,
	entityStore *entitystore.Store,
	pubsubStore *pubsub.PGStore,
	scriptRunner scriptrunner.Runner,
	queryEngine queryengine.Engine,
	emailSender mailer.Sender,
	authz *permission.Resolver,
	userMgmt usermgmt.Store,
) *State {
	return &State{
		db:           db,
		entityStore:  entityStore,
		pubsub:       pubsubStore,
		scriptRunner: scriptRunner,
		queryEngine:  queryEngine,
		emailSender:  emailSender,
		authz:        authz,
		userMgmt:     userMgmt,
	}
}

// WithCaller returns a copy of s authenticated as caller.
func (s *State) WithCaller(caller Caller) *State {
	next := *s
	next.caller = caller
	return &next
}

// WithTx returns a copy of s whose Querier() resolves to tx instead of the
// pool. WithTransaction uses this to scope every nested action's database
// access to a single transaction.
func (s *State) WithTx(tx pgx.Tx) *State {
	next := *s
	next.tx = tx
	return &next
}

// WithConn returns a copy of s whose Querier() resolves to conn instead of
// the pool, for the lifetime of one worker-pool submission (spec.md §5's
// "each worker... holds exactly one connection").
func (s *State) WithConn(conn *pgxpool.Conn) *State {
	next := *s
	next.conn = conn
	return &next
}

// Querier returns, in priority order, the bound transaction, the bound
// single connection, or the pool.
func (s *State) Querier() entitystore.Querier {
	if s.tx != nil {
		return s.tx
	}
	if s.conn != nil {
		return s.conn
	}
	return s.db
}

// GetDatabase returns the underlying connection pool, for code that needs
// to start its own transaction (WithTransaction).
func (s *State) GetDatabase() *pgxpool.Pool { return s.db }

// Begin starts a transaction on the bound single connection if one is
// present (the worker-pool case), otherwise on the pool directly. Using the
// already-acquired connection keeps a pipeline run inside WithTransaction to
// exactly one held connection for its lifetime.
func (s *State) Begin(ctx context.Context) (pgx.Tx, error) {
	if s.conn != nil {
		return s.conn.Begin(ctx)
	}
	return s.db.Begin(ctx)
}

// Tx returns the bound transaction, or nil if none is active.
func (s *State) Tx() pgx.Tx { return s.tx }

func (s *State) GetEntityStore() *entitystore.Store     { return s.entityStore }
func (s *State) GetPubSub() *pubsub.PGStore             { return s.pubsub }
func (s *State) GetScriptRunner() scriptrunner.Runner   { return s.scriptRunner }
func (s *State) GetQueryEngine() queryengine.Engine     { return s.queryEngine }
func (s *State) GetEmailSender() mailer.Sender          { return s.emailSender }
func (s *State) GetAuthorization() *permission.Resolver { return s.authz }
func (s *State) GetUserManagement() usermgmt.Store      { return s.userMgmt }

// Caller returns the authenticated identity this State runs as. Zero value
// if no caller has been attached yet.
func (s *State) Caller() Caller { return s.caller }
