// Package worker implements the connection-pool-sized scheduling layer
// spec.md §5 describes: Sessions never call an Action directly, they submit
// it to a Pool, which runs it on a worker holding exactly one pooled
// database connection for the submission's lifetime and replies on a
// per-submission channel.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/loomctl/loom/internal/action"
	"github.com/loomctl/loom/internal/state"
)

// ErrPoolClosed is returned by Submit once Close has been called.
var ErrPoolClosed = errors.New("worker pool closed")

// job couples a submitted Action+State with the channel its Outcome is
// delivered on.
type job struct {
	ctx   context.Context
	act   action.Action
	state *state.State
	reply chan action.Outcome
}

// Pool runs submitted Actions on a fixed number of workers, each acquiring
// one connection from db for the duration of a single submission. Sizing
// the pool to db's max connections (the default) means a worker is never
// left waiting on a connection another worker in the same pool is holding.
type Pool struct {
	db   *pgxpool.Pool
	log  zerolog.Logger
	jobs chan job

	// done is closed by Close to signal every worker goroutine to stop. It
	// is never used to gate individual jobs in flight; Submit's own select
	// on done only prevents new work from queuing after shutdown begins.
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool starts size worker goroutines pulling from a shared job queue.
func NewPool(db *pgxpool.Pool, size int, log zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		db:   db,
		log:  log.With().Str("component", "worker.Pool").Logger(),
		jobs: make(chan job),
		done: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	return p
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()
	for {
		select {
		case j := <-p.jobs:
			p.execute(log, j)
		case <-p.done:
			return
		}
	}
}

// execute acquires one connection, binds it to the submission's State, runs
// the Action, and always replies exactly once.
func (p *Pool) execute(log zerolog.Logger, j job) {
	conn, err := p.db.Acquire(j.ctx)
	if err != nil {
		j.reply <- action.Outcome{Err: err}
		return
	}
	defer conn.Release()

	result, err := j.act.Run(j.ctx, j.state.WithConn(conn))
	if err != nil {
		log.Debug().Err(err).Msg("action returned error")
	}
	j.reply <- action.Outcome{Result: result, Err: err}
}

// Submit enqueues act to run against s and blocks until a worker replies or
// ctx is canceled. The Session's event loop is the only caller; it never
// runs an Action inline.
func (p *Pool) Submit(ctx context.Context, act action.Action, s *state.State) (any, error) {
	reply := make(chan action.Outcome, 1)
	j := job{ctx: ctx, act: act, state: s, reply: reply}

	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrPoolClosed
	}

	select {
	case out := <-reply:
		return out.Result, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close signals every worker to stop after its current job and waits for
// them to exit. Safe to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}
