// Package entitystore implements the EntityStore component: Table, Query,
// and Script metadata, each an Entity child with a unique name in its scope,
// a soft-delete flag, and modified_{at,by} bookkeeping, plus the DDL
// synthesis that turns a Table's abstract Schema into real Postgres tables.
package entitystore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/loomctl/loom/internal/permission"
)

// EntityType aliases permission.EntityType so callers never have to import
// both packages to name "table"/"query"/"script".
type EntityType = permission.EntityType

const (
	TypeTable  = permission.EntityTable
	TypeQuery  = permission.EntityQuery
	TypeScript = permission.EntityScript
)

// Entity is the common metadata every Table/Query/Script row carries.
type Entity struct {
	ID         uuid.UUID
	Name       string
	Deleted    bool
	ModifiedAt time.Time
	ModifiedBy uuid.UUID
}

// Table is an Entity with a relational schema.
type Table struct {
	Entity
	Schema Schema
}

// Query is an Entity wrapping a stored statement. Execution is delegated to
// the external SQL engine collaborator; entitystore only owns the metadata.
type Query struct {
	Entity
	Statement string
}

// Script is an Entity wrapping stored source. Execution is delegated to the
// external script-runner collaborator; entitystore only owns the metadata.
type Script struct {
	Entity
	Body string
}

// ResultKind discriminates which arm of a tagged result is populated.
type ResultKind string

const (
	ResultCreate  ResultKind = "create"
	ResultUpdate  ResultKind = "update"
	ResultSuccess ResultKind = "success"
	ResultFail    ResultKind = "fail"
)

// Upserted is the result of an on_duplicate=Update create: either a brand
// new row (Create) or a row that already existed and was overwritten
// (Update, with both the prior and new value attached).
type Upserted[T any] struct {
	Kind ResultKind
	Old  *T
	New  *T
}

// Created is the result of a plain create: Success with the new row, or Fail
// with the row that already occupied the name (AlreadyExists, under an
// Ignore policy the caller may fold Fail back into a success-shaped
// response per SPEC_FULL.md's error taxonomy).
type Created[T any] struct {
	Kind     ResultKind
	New      *T
	Existing *T
}

// Updated is the result of an update: Success with the old and new value, or
// Fail if no row with that name existed (NotFound).
type Updated[T any] struct {
	Kind ResultKind
	Old  *T
	New  *T
}

// Deleted is the result of a soft-delete: Success with the row as it stood
// before deletion, or Fail if no row with that name existed.
type Deleted[T any] struct {
	Kind ResultKind
	Old  *T
}

// MarshalJSON renders the tagged shape {"kind":..., ...} matching the
// wire form a tagged enum would take.
func (u Upserted[T]) MarshalJSON() ([]byte, error) {
	switch u.Kind {
	case ResultUpdate:
		return json.Marshal(struct {
			Kind string `json:"kind"`
			Old  *T     `json:"old"`
			New  *T     `json:"new"`
		}{"update", u.Old, u.New})
	default:
		return json.Marshal(struct {
			Kind string `json:"kind"`
			New  *T     `json:"new"`
		}{"create", u.New})
	}
}

func (c Created[T]) MarshalJSON() ([]byte, error) {
	if c.Kind == ResultFail {
		return json.Marshal(struct {
			Kind     string `json:"kind"`
			Existing *T     `json:"existing"`
		}{"fail", c.Existing})
	}
	return json.Marshal(struct {
		Kind string `json:"kind"`
		New  *T     `json:"new"`
	}{"success", c.New})
}

func (u Updated[T]) MarshalJSON() ([]byte, error) {
	if u.Kind == ResultFail {
		return json.Marshal(struct {
			Kind string `json:"kind"`
		}{"fail"})
	}
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Old  *T     `json:"old"`
		New  *T     `json:"new"`
	}{"success", u.Old, u.New})
}

func (d Deleted[T]) MarshalJSON() ([]byte, error) {
	if d.Kind == ResultFail {
		return json.Marshal(struct {
			Kind string `json:"kind"`
		}{"fail"})
	}
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Old  *T     `json:"old"`
	}{"success", d.Old})
}

// DispatchNoop reports whether the result represents no actual write, so a
// caller wrapping a pipeline in dispatch can skip publishing an event for
// it: Created.Fail means on_duplicate=Ignore hit an existing name, Updated/
// Deleted.Fail means on_not_found=Ignore found no matching row.
func (c Created[T]) DispatchNoop() bool { return c.Kind == ResultFail }
func (u Updated[T]) DispatchNoop() bool { return u.Kind == ResultFail }
func (d Deleted[T]) DispatchNoop() bool { return d.Kind == ResultFail }

// tableSchemaRow is the JSON shape persisted in the table_schemas table.
type tableSchemaRow struct {
	Columns     []Column     `json:"columns"`
	Constraints []Constraint `json:"constraints"`
}

func marshalSchema(s Schema) (json.RawMessage, error) {
	return json.Marshal(tableSchemaRow{Columns: s.Columns, Constraints: s.Constraints})
}

func unmarshalSchema(raw []byte) (Schema, error) {
	var row tableSchemaRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return Schema{}, err
	}
	return Schema{Columns: row.Columns, Constraints: row.Constraints}, nil
}
