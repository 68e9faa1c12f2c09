// Package action implements the Action Pipeline: a small composable
// decorator chain (auth, authorization, transaction, dispatch) wrapping
// typed leaf operations, plus the named pipeline constructors the router
// wires to procedure names (spec.md §4.1, §4.4).
package action

import (
	"context"

	"github.com/loomctl/loom/internal/state"
)

// Action is any value implementing a single operation: given a State,
// produce a serializable result or an error. Decorators are Actions that
// wrap another Action.
type Action interface {
	Run(ctx context.Context, s *state.State) (any, error)
}

// Func adapts a plain function to Action.
type Func func(ctx context.Context, s *state.State) (any, error)

func (f Func) Run(ctx context.Context, s *state.State) (any, error) { return f(ctx, s) }

// Outcome is what a worker pool replies with after running a submitted
// Action: the leaf's result on success, or the error it failed with.
type Outcome struct {
	Result any
	Err    error
}
