package entitystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/loomctl/loom/internal/actionerr"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx. Every Store method
// takes one explicitly so the caller — normally the WithTransaction
// decorator — controls whether the call runs inside a transaction, matching
// the "CREATE/DROP TABLE issued in the same transaction as metadata write"
// invariant.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the EntityStore component: metadata CRUD for Table/Query/Script,
// plus the DDL synthesis a Table's schema drives.
type Store struct{}

// NewStore creates a new entity metadata store. It holds no connection of
// its own; every method takes a Querier so it composes with the Action
// Pipeline's transaction boundary.
func NewStore() *Store { return &Store{} }

// --- Table ---

// CreateTable inserts Table metadata, synthesizes CREATE TABLE, and records
// a table_schema_transaction row — all through the same Querier, so a caller
// passing a pgx.Tx gets atomicity across metadata, DDL, and audit log for
// free.
func (s *Store) CreateTable(ctx context.Context, q Querier, name string, schema Schema, actor uuid.UUID) (*Created[Table], error) {
	if len(schema.Columns) == 0 {
		return nil, actionerr.New(actionerr.KindEntity, "table must have at least one column")
	}
	if err := validateForeignKeys(ctx, q, schema); err != nil {
		return nil, err
	}

	id := uuid.New()
	now := time.Now().UTC()

	insertSQL, args, err := psql.Insert("entities").
		Columns("id", "type", "name", "deleted", "modified_at", "modified_by").
		Values(id, string(TypeTable), name, false, now, actor).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entity insert: %w", err)
	}

	if _, err := q.Exec(ctx, insertSQL, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, getErr := s.GetTable(ctx, q, name)
			if getErr != nil {
				return nil, getErr
			}
			return &Created[Table]{Kind: ResultFail, Existing: existing}, nil
		}
		return nil, actionerr.Wrap(actionerr.KindDatastore, "insert table entity", err)
	}

	schemaJSON, err := marshalSchema(schema)
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindSerialization, "marshal table schema", err)
	}

	if _, err := q.Exec(ctx, `INSERT INTO table_schemas (entity_id, schema) VALUES ($1, $2)`, id, schemaJSON); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "insert table schema", err)
	}

	ddl, err := BuildCreateTableSQL(name, schema)
	if err != nil {
		return nil, err
	}
	if _, err := q.Exec(ctx, ddl); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "execute CREATE TABLE", err)
	}

	if err := recordSchemaTransaction(ctx, q, id, "create", nil, &schema, actor); err != nil {
		return nil, err
	}

	table := &Table{Entity: Entity{ID: id, Name: name, ModifiedAt: now, ModifiedBy: actor}, Schema: schema}
	return &Created[Table]{Kind: ResultCreate, New: table}, nil
}

// GetTable fetches a non-deleted Table by name. Returns actionerr NotFound
// if none exists.
func (s *Store) GetTable(ctx context.Context, q Querier, name string) (*Table, error) {
	var t Table
	var schemaRaw []byte
	err := q.QueryRow(ctx, `
		SELECT e.id, e.name, e.modified_at, e.modified_by, ts.schema
		FROM entities e JOIN table_schemas ts ON ts.entity_id = e.id
		WHERE e.type = $1 AND e.name = $2 AND e.deleted = false
	`, string(TypeTable), name).Scan(&t.ID, &t.Name, &t.ModifiedAt, &t.ModifiedBy, &schemaRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, actionerr.New(actionerr.KindNotFound, fmt.Sprintf("table %q not found", name))
	}
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "query table", err)
	}
	schema, err := unmarshalSchema(schemaRaw)
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindSerialization, "unmarshal table schema", err)
	}
	t.Schema = schema
	return &t, nil
}

// GetAllTables lists every non-deleted Table. Permission filtering on the
// result is the caller's responsibility (action.FilterListByPermission).
func (s *Store) GetAllTables(ctx context.Context, q Querier) ([]Table, error) {
	rows, err := q.Query(ctx, `
		SELECT e.id, e.name, e.modified_at, e.modified_by, ts.schema
		FROM entities e JOIN table_schemas ts ON ts.entity_id = e.id
		WHERE e.type = $1 AND e.deleted = false
		ORDER BY e.name
	`, string(TypeTable))
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "list tables", err)
	}
	defer rows.Close()

	var out []Table
	for rows.Next() {
		var t Table
		var schemaRaw []byte
		if err := rows.Scan(&t.ID, &t.Name, &t.ModifiedAt, &t.ModifiedBy, &schemaRaw); err != nil {
			return nil, actionerr.Wrap(actionerr.KindDatastore, "scan table", err)
		}
		schema, err := unmarshalSchema(schemaRaw)
		if err != nil {
			return nil, actionerr.Wrap(actionerr.KindSerialization, "unmarshal table schema", err)
		}
		t.Schema = schema
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTable applies an additive-only schema change: columns present in
// newSchema but absent from the stored one are appended via ALTER TABLE ...
// ADD COLUMN. Any column removal or type change is rejected — the open
// question spec.md leaves undefined for UpdateEntity<Table> is resolved this
// way; see DESIGN.md.
func (s *Store) UpdateTable(ctx context.Context, q Querier, name string, newSchema Schema, actor uuid.UUID) (*Updated[Table], error) {
	existing, err := s.GetTable(ctx, q, name)
	if err != nil {
		if actionerr.Is(err, actionerr.KindNotFound) {
			return &Updated[Table]{Kind: ResultFail}, nil
		}
		return nil, err
	}

	added, err := diffAdditiveColumns(existing.Schema, newSchema)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	merged := existing.Schema
	merged.Columns = append(append([]Column{}, merged.Columns...), added...)

	for _, col := range added {
		ddl, err := BuildAddColumnSQL(name, col)
		if err != nil {
			return nil, err
		}
		if _, err := q.Exec(ctx, ddl); err != nil {
			return nil, actionerr.Wrap(actionerr.KindDatastore, "execute ALTER TABLE ADD COLUMN", err)
		}
	}

	schemaJSON, err := marshalSchema(merged)
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindSerialization, "marshal table schema", err)
	}
	if _, err := q.Exec(ctx, `UPDATE table_schemas SET schema = $1 WHERE entity_id = $2`, schemaJSON, existing.ID); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "update table schema", err)
	}
	if _, err := q.Exec(ctx, `UPDATE entities SET modified_at = $1, modified_by = $2 WHERE id = $3`, now, actor, existing.ID); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "touch entity", err)
	}

	oldSchema := existing.Schema
	if err := recordSchemaTransaction(ctx, q, existing.ID, "update", &oldSchema, &merged, actor); err != nil {
		return nil, err
	}

	newTable := &Table{Entity: Entity{ID: existing.ID, Name: name, ModifiedAt: now, ModifiedBy: actor}, Schema: merged}
	return &Updated[Table]{Kind: ResultSuccess, Old: existing, New: newTable}, nil
}

// DeleteTable soft-deletes the metadata row and drops the underlying table
// in the same Querier call sequence.
func (s *Store) DeleteTable(ctx context.Context, q Querier, name string, actor uuid.UUID) (*Deleted[Table], error) {
	existing, err := s.GetTable(ctx, q, name)
	if err != nil {
		if actionerr.Is(err, actionerr.KindNotFound) {
			return &Deleted[Table]{Kind: ResultFail}, nil
		}
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := q.Exec(ctx, `UPDATE entities SET deleted = true, modified_at = $1, modified_by = $2 WHERE id = $3`, now, actor, existing.ID); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "soft delete entity", err)
	}

	ddl, err := BuildDropTableSQL(name)
	if err != nil {
		return nil, err
	}
	if _, err := q.Exec(ctx, ddl); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "execute DROP TABLE", err)
	}

	if err := recordSchemaTransaction(ctx, q, existing.ID, "delete", &existing.Schema, nil, actor); err != nil {
		return nil, err
	}

	return &Deleted[Table]{Kind: ResultSuccess, Old: existing}, nil
}

func recordSchemaTransaction(ctx context.Context, q Querier, entityID uuid.UUID, action string, oldSchema, newSchema *Schema, actor uuid.UUID) error {
	var oldJSON, newJSON []byte
	var err error
	if oldSchema != nil {
		if oldJSON, err = marshalSchema(*oldSchema); err != nil {
			return actionerr.Wrap(actionerr.KindSerialization, "marshal old schema", err)
		}
	}
	if newSchema != nil {
		if newJSON, err = marshalSchema(*newSchema); err != nil {
			return actionerr.Wrap(actionerr.KindSerialization, "marshal new schema", err)
		}
	}
	_, err = q.Exec(ctx, `
		INSERT INTO table_schema_transaction (id, entity_id, action, old_schema, new_schema, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), entityID, action, oldJSON, newJSON, actor, time.Now().UTC())
	if err != nil {
		return actionerr.Wrap(actionerr.KindDatastore, "record schema transaction", err)
	}
	return nil
}

func validateForeignKeys(ctx context.Context, q Querier, schema Schema) error {
	for _, c := range schema.Constraints {
		if c.Kind != ConstraintForeignKey {
			continue
		}
		var exists bool
		err := q.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM entities WHERE type = $1 AND name = $2 AND deleted = false)
		`, string(TypeTable), c.RefTable).Scan(&exists)
		if err != nil {
			return actionerr.Wrap(actionerr.KindDatastore, "check foreign table existence", err)
		}
		if !exists {
			return actionerr.New(actionerr.KindEntity, fmt.Sprintf("foreign key references unknown table %q", c.RefTable))
		}
	}
	return nil
}

// diffAdditiveColumns returns the columns present in next but absent from
// prev by name. Any column present in both with a different type, or
// present in prev but absent from next, is rejected: only additive changes
// are supported.
func diffAdditiveColumns(prev, next Schema) ([]Column, error) {
	prevByName := make(map[string]Column, len(prev.Columns))
	for _, c := range prev.Columns {
		prevByName[c.Name] = c
	}

	var added []Column
	seen := make(map[string]struct{}, len(next.Columns))
	for _, c := range next.Columns {
		seen[c.Name] = struct{}{}
		old, existed := prevByName[c.Name]
		switch {
		case !existed:
			added = append(added, c)
		case old.Type != c.Type || old.Nullable != c.Nullable:
			return nil, actionerr.New(actionerr.KindUnknown, fmt.Sprintf("changing column %q is not supported; only adding columns is", c.Name))
		}
	}
	for name := range prevByName {
		if _, ok := seen[name]; !ok {
			return nil, actionerr.New(actionerr.KindUnknown, fmt.Sprintf("removing column %q is not supported", name))
		}
	}
	return added, nil
}
