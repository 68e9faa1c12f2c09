// Package router implements the Procedure Router: a pure function from
// (procedure name, params) to a fully decorated Action (spec.md §4.4).
package router

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/loomctl/loom/internal/action"
	"github.com/loomctl/loom/internal/channel"
	"github.com/loomctl/loom/internal/entitystore"
	"github.com/loomctl/loom/internal/tabledata"
	"github.com/loomctl/loom/internal/value"
)

// ErrUnknownProcedure is returned for any procedure name outside the
// recognized set. The caller (Session) must report it as
// {error:"Did not understand procedure"} without closing the connection.
var ErrUnknownProcedure = fmt.Errorf("did not understand procedure")

type schemaWire struct {
	Columns []struct {
		Name       string `json:"name"`
		Type       string `json:"type"`
		VarcharLen int    `json:"varchar_len,omitempty"`
		Nullable   bool   `json:"nullable"`
	} `json:"columns"`
	Constraints []struct {
		Kind      string `json:"kind"`
		Column    string `json:"column"`
		RefTable  string `json:"ref_table,omitempty"`
		RefColumn string `json:"ref_column,omitempty"`
	} `json:"constraints"`
}

func (w schemaWire) toSchema() (entitystore.Schema, error) {
	var schema entitystore.Schema
	for _, c := range w.Columns {
		var dt entitystore.DataType
		if entitystore.DataTypeKind(c.Type) == entitystore.VarcharKind {
			dt = entitystore.Varchar(c.VarcharLen)
		} else {
			dt = entitystore.DataType{Kind: entitystore.DataTypeKind(c.Type)}
		}
		schema.Columns = append(schema.Columns, entitystore.Column{Name: c.Name, Type: dt, Nullable: c.Nullable})
	}
	for _, c := range w.Constraints {
		schema.Constraints = append(schema.Constraints, entitystore.Constraint{
			Kind: entitystore.ConstraintKind(c.Kind), Column: c.Column, RefTable: c.RefTable, RefColumn: c.RefColumn,
		})
	}
	return schema, nil
}

func decodeRow(raw map[string]json.RawMessage) (entitystore.Row, error) {
	out := make(entitystore.Row, len(raw))
	for k, v := range raw {
		val, err := value.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("decode column %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func decodeOnDuplicate(s string) action.OnDuplicate {
	switch action.OnDuplicate(s) {
	case action.OnDuplicateUpdate, action.OnDuplicateIgnore:
		return action.OnDuplicate(s)
	default:
		return action.OnDuplicateFail
	}
}

func decodeOnNotFound(s string) action.OnNotFound {
	if action.OnNotFound(s) == action.OnNotFoundIgnore {
		return action.OnNotFoundIgnore
	}
	return action.OnNotFoundFail
}

func decodeFormat(s string) tabledata.Format {
	switch tabledata.Format(s) {
	case tabledata.FormatFlatData, tabledata.FormatKeyed:
		return tabledata.Format(s)
	default:
		return tabledata.FormatData
	}
}

// Route maps a procedure name and its raw JSON params to a ready-to-run
// Action. Returns ErrUnknownProcedure for any name outside the recognized
// set.
func Route(procedure string, params json.RawMessage) (action.Action, error) {
	switch procedure {
	case "getAllTables":
		return action.NewGetAllTables(), nil
	case "getAllQueries":
		return action.NewGetAllQueries(), nil
	case "getAllScripts":
		return action.NewGetAllScripts(), nil

	case "getTable":
		var p struct{ Name string `json:"name"` }
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode getTable params: %w", err)
		}
		return action.NewGetTable(p.Name), nil

	case "getQuery":
		var p struct{ Name string `json:"name"` }
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode getQuery params: %w", err)
		}
		return action.NewGetQuery(p.Name), nil

	case "getScript":
		var p struct{ Name string `json:"name"` }
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode getScript params: %w", err)
		}
		return action.NewGetScript(p.Name), nil

	case "createTable":
		var p struct {
			Name        string     `json:"name"`
			Schema      schemaWire `json:"schema"`
			OnDuplicate string     `json:"on_duplicate"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode createTable params: %w", err)
		}
		schema, err := p.Schema.toSchema()
		if err != nil {
			return nil, err
		}
		return action.NewCreateTable(p.Name, schema, decodeOnDuplicate(p.OnDuplicate)), nil

	case "createQuery":
		var p struct {
			Name        string `json:"name"`
			Statement   string `json:"statement"`
			OnDuplicate string `json:"on_duplicate"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode createQuery params: %w", err)
		}
		return action.NewCreateQuery(p.Name, p.Statement, decodeOnDuplicate(p.OnDuplicate)), nil

	case "createScript":
		var p struct {
			Name        string `json:"name"`
			Body        string `json:"body"`
			OnDuplicate string `json:"on_duplicate"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode createScript params: %w", err)
		}
		return action.NewCreateScript(p.Name, p.Body, decodeOnDuplicate(p.OnDuplicate)), nil

	case "updateTable":
		var p struct {
			Name       string     `json:"name"`
			Schema     schemaWire `json:"schema"`
			OnNotFound string     `json:"on_not_found"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode updateTable params: %w", err)
		}
		schema, err := p.Schema.toSchema()
		if err != nil {
			return nil, err
		}
		return action.NewUpdateTable(p.Name, schema, decodeOnNotFound(p.OnNotFound)), nil

	case "updateQuery":
		var p struct {
			Name       string `json:"name"`
			Statement  string `json:"statement"`
			OnNotFound string `json:"on_not_found"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode updateQuery params: %w", err)
		}
		return action.NewUpdateQuery(p.Name, p.Statement, decodeOnNotFound(p.OnNotFound)), nil

	case "updateScript":
		var p struct {
			Name       string `json:"name"`
			Body       string `json:"body"`
			OnNotFound string `json:"on_not_found"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode updateScript params: %w", err)
		}
		return action.NewUpdateScript(p.Name, p.Body, decodeOnNotFound(p.OnNotFound)), nil

	case "deleteTable":
		var p struct {
			Name       string `json:"name"`
			OnNotFound string `json:"on_not_found"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode deleteTable params: %w", err)
		}
		return action.NewDeleteTable(p.Name, decodeOnNotFound(p.OnNotFound)), nil

	case "deleteQuery":
		var p struct {
			Name       string `json:"name"`
			OnNotFound string `json:"on_not_found"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode deleteQuery params: %w", err)
		}
		return action.NewDeleteQuery(p.Name, decodeOnNotFound(p.OnNotFound)), nil

	case "deleteScript":
		var p struct {
			Name       string `json:"name"`
			OnNotFound string `json:"on_not_found"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode deleteScript params: %w", err)
		}
		return action.NewDeleteScript(p.Name, decodeOnNotFound(p.OnNotFound)), nil

	case "queryTableData":
		var p struct {
			Table  string                     `json:"table"`
			Filter map[string]json.RawMessage `json:"filter"`
			Limit  int                        `json:"limit"`
			Format string                     `json:"format"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode queryTableData params: %w", err)
		}
		filter, err := decodeRow(p.Filter)
		if err != nil {
			return nil, err
		}
		return action.NewQueryTableData(p.Table, filter, p.Limit, decodeFormat(p.Format)), nil

	case "insertTableData":
		var p struct {
			Table string                     `json:"table"`
			Row   map[string]json.RawMessage `json:"row"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode insertTableData params: %w", err)
		}
		row, err := decodeRow(p.Row)
		if err != nil {
			return nil, err
		}
		return action.NewInsertTableData(p.Table, row), nil

	case "modifyTableData":
		var p struct {
			Table  string                     `json:"table"`
			Filter map[string]json.RawMessage `json:"filter"`
			Set    map[string]json.RawMessage `json:"set"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode modifyTableData params: %w", err)
		}
		filter, err := decodeRow(p.Filter)
		if err != nil {
			return nil, err
		}
		set, err := decodeRow(p.Set)
		if err != nil {
			return nil, err
		}
		return action.NewModifyTableData(p.Table, filter, set), nil

	case "removeTableData":
		var p struct {
			Table  string                     `json:"table"`
			Filter map[string]json.RawMessage `json:"filter"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode removeTableData params: %w", err)
		}
		filter, err := decodeRow(p.Filter)
		if err != nil {
			return nil, err
		}
		return action.NewRemoveTableData(p.Table, filter), nil

	case "runQuery":
		var p struct {
			Name   string `json:"name"`
			Params []any  `json:"params"`
			Format string `json:"format"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode runQuery params: %w", err)
		}
		return action.NewRunQuery(p.Name, p.Params, decodeFormat(p.Format)), nil

	case "runScript":
		var p struct {
			Name   string                     `json:"name"`
			Params map[string]json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode runScript params: %w", err)
		}
		return action.NewRunScript(p.Name, p.Params), nil

	case "subscribeTo":
		ch, err := decodeChannel(params)
		if err != nil {
			return nil, err
		}
		return action.NewSubscribeTo(ch), nil

	case "unsubscribeFrom":
		ch, err := decodeChannel(params)
		if err != nil {
			return nil, err
		}
		return action.NewUnsubscribeFrom(ch), nil

	case "getSubscribers":
		ch, err := decodeChannel(params)
		if err != nil {
			return nil, err
		}
		return action.NewGetSubscribers(ch), nil

	case "unsubscribeAll":
		return action.NewUnsubscribeAll(), nil

	case "getMessages":
		var p struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode getMessages params: %w", err)
		}
		return action.NewGetMessages(p.Start, p.End), nil

	default:
		return nil, ErrUnknownProcedure
	}
}

func decodeChannel(params json.RawMessage) (channel.Channel, error) {
	var p struct {
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return channel.Channel{}, fmt.Errorf("decode channel params: %w", err)
	}
	return channel.Parse(p.Channel)
}
