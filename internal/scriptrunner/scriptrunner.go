// Package scriptrunner defines the embedded-script-execution collaborator
// the spec scopes out ("out of scope: embedded script runner") but still
// references from RunScript. Runner is the boundary; NoopRunner is the
// default adapter until a real script engine is wired in.
package scriptrunner

import (
	"context"
	"encoding/json"

	"github.com/loomctl/loom/internal/actionerr"
)

// Runner executes a named script against a set of parameters and returns its
// result payload.
type Runner interface {
	Run(ctx context.Context, scriptName string, params map[string]json.RawMessage) (json.RawMessage, error)
}

// NoopRunner rejects every script execution. It lets RunScript's permission
// and lookup plumbing be fully exercised without depending on a real
// language sandbox.
type NoopRunner struct{}

func (NoopRunner) Run(context.Context, string, map[string]json.RawMessage) (json.RawMessage, error) {
	return nil, actionerr.New(actionerr.KindUnknown, "no script runner configured")
}
