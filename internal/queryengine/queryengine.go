// Package queryengine defines the SQL-execution collaborator RunQuery
// delegates to: the engine that runs a stored Query's statement against
// positional parameters and returns rows (spec.md §1, "the SQL engine that
// executes user queries" — an out-of-scope external collaborator referenced
// only by interface).
package queryengine

import (
	"context"

	"github.com/loomctl/loom/internal/actionerr"
	"github.com/loomctl/loom/internal/tabledata"
)

// Engine executes a stored SQL statement with positional params and
// returns its rows alongside the column order to render them in.
type Engine interface {
	Execute(ctx context.Context, statement string, params []any) (columns []string, rows []tabledata.Row, err error)
}

// NoopEngine rejects every execution. It lets RunQuery's permission and
// lookup plumbing be fully exercised without depending on a real SQL
// execution sandbox.
type NoopEngine struct{}

func (NoopEngine) Execute(context.Context, string, []any) ([]string, []tabledata.Row, error) {
	return nil, nil, actionerr.New(actionerr.KindQuery, "no query engine configured")
}
