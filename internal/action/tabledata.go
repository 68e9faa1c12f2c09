package action

import (
	"context"
	"encoding/json"

	"github.com/loomctl/loom/internal/actionerr"
	"github.com/loomctl/loom/internal/channel"
	"github.com/loomctl/loom/internal/entitystore"
	"github.com/loomctl/loom/internal/permission"
	"github.com/loomctl/loom/internal/state"
	"github.com/loomctl/loom/internal/tabledata"
)

func columnNames(schema entitystore.Schema) []string {
	out := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		out[i] = c.Name
	}
	return out
}

func primaryKeyColumns(schema entitystore.Schema) []string {
	var out []string
	for _, c := range schema.Constraints {
		if c.Kind == entitystore.ConstraintPrimaryKey {
			out = append(out, c.Column)
		}
	}
	return out
}

func toTableDataRows(rows []entitystore.Row) []tabledata.Row {
	out := make([]tabledata.Row, len(rows))
	for i, r := range rows {
		out[i] = tabledata.Row(r)
	}
	return out
}

// NewQueryTableData reads rows matching filter (an equality predicate),
// rendered in the requested format.
func NewQueryTableData(tableName string, filter entitystore.Row, limit int, format tabledata.Format) Action {
	return WithPermissionRequired(permission.GetTableData(tableName), Func(
		func(ctx context.Context, s *state.State) (any, error) {
			table, err := s.GetEntityStore().GetTable(ctx, s.Querier(), tableName)
			if err != nil {
				return nil, err
			}
			rows, err := s.GetEntityStore().QueryRows(ctx, s.Querier(), table, filter, limit)
			if err != nil {
				return nil, err
			}
			return tabledata.Render(format, columnNames(table.Schema), primaryKeyColumns(table.Schema), toTableDataRows(rows))
		},
	))
}

// NewInsertTableData builds the insertTableData pipeline, dispatched to the
// table's TableData channel.
func NewInsertTableData(tableName string, row entitystore.Row) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		table, err := s.GetEntityStore().GetTable(ctx, s.Querier(), tableName)
		if err != nil {
			return nil, err
		}
		return s.GetEntityStore().InsertRow(ctx, s.Querier(), table, row)
	})
	dispatched := WithDispatch(DispatchSpec{
		ActionName: "insertTableData",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.TableData(tableName)} },
		Payload:    jsonPayload,
	}, leaf)
	return WithPermissionRequired(permission.ModifyTableData(tableName), WithTransaction(dispatched))
}

// NewModifyTableData applies set to every row matching filter.
func NewModifyTableData(tableName string, filter, set entitystore.Row) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		table, err := s.GetEntityStore().GetTable(ctx, s.Querier(), tableName)
		if err != nil {
			return nil, err
		}
		affected, err := s.GetEntityStore().UpdateRows(ctx, s.Querier(), table, filter, set)
		if err != nil {
			return nil, err
		}
		return rowsAffected{RowsAffected: affected}, nil
	})
	dispatched := WithDispatch(DispatchSpec{
		ActionName: "modifyTableData",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.TableData(tableName)} },
		Payload:    jsonPayload,
	}, leaf)
	return WithPermissionRequired(permission.ModifyTableData(tableName), WithTransaction(dispatched))
}

// NewRemoveTableData removes every row matching filter.
func NewRemoveTableData(tableName string, filter entitystore.Row) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		table, err := s.GetEntityStore().GetTable(ctx, s.Querier(), tableName)
		if err != nil {
			return nil, err
		}
		affected, err := s.GetEntityStore().DeleteRows(ctx, s.Querier(), table, filter)
		if err != nil {
			return nil, err
		}
		return rowsRemoved{RowsRemoved: affected}, nil
	})
	dispatched := WithDispatch(DispatchSpec{
		ActionName: "removeTableData",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.TableData(tableName)} },
		Payload:    jsonPayload,
	}, leaf)
	return WithPermissionRequired(permission.ModifyTableData(tableName), WithTransaction(dispatched))
}

// NewRunQuery fetches the stored query by name and executes it through the
// SQL capability, formatting rows into the requested layout.
func NewRunQuery(queryName string, params []any, format tabledata.Format) Action {
	return WithPermissionRequired(permission.RunQuery(queryName), Func(
		func(ctx context.Context, s *state.State) (any, error) {
			q, err := s.GetEntityStore().GetQuery(ctx, s.Querier(), queryName)
			if err != nil {
				return nil, err
			}
			columns, rows, err := s.GetQueryEngine().Execute(ctx, q.Statement, params)
			if err != nil {
				return nil, actionerr.Wrap(actionerr.KindQuery, "execute query "+queryName, err)
			}
			return tabledata.Render(format, columns, nil, rows)
		},
	))
}

// NewRunScript executes a named script through the script-runner
// collaborator.
func NewRunScript(scriptName string, params map[string]json.RawMessage) Action {
	return WithPermissionRequired(permission.RunScript(scriptName), Func(
		func(ctx context.Context, s *state.State) (any, error) {
			if _, err := s.GetEntityStore().GetScript(ctx, s.Querier(), scriptName); err != nil {
				return nil, err
			}
			result, err := s.GetScriptRunner().Run(ctx, scriptName, params)
			if err != nil {
				return nil, actionerr.Wrap(actionerr.KindScript, "run script "+scriptName, err)
			}
			return result, nil
		},
	))
}
