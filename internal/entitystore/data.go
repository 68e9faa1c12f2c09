package entitystore

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/loomctl/loom/internal/actionerr"
	"github.com/loomctl/loom/internal/value"
)

// Row is a single row of table data, keyed by column name. Insert/Query
// return and accept Rows; Update/Delete take a Row as an equality filter.

type Row map[string]value.Value

// InsertRow inserts one row into table's underlying data table and returns
// it as stored (defaults and generated columns included, via RETURNING *).
func (s *Store) InsertRow(ctx context.Context, q Querier, table *Table, row Row) (Row, error) {
	builder := psql.Insert(quoteIdent(table.Name))
	cols := make([]string, 0, len(row))
	vals := make([]any, 0, len(row))
	for name, v := range row {
		driverVal, err := toDriverValue(v)
		if err != nil {
			return nil, actionerr.Wrap(actionerr.KindEntity, fmt.Sprintf("encode column %q", name), err)
		}
		cols = append(cols, quoteIdent(name))
		vals = append(vals, driverVal)
	}
	builder = builder.Columns(cols...).Values(vals...).Suffix("RETURNING *")

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	rows, err := q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "insert row", err)
	}
	defer rows.Close()

	out, err := scanOneRow(rows)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueryRows returns every row of table's data matching filter (an equality
// predicate on each given column; empty filter matches everything), up to
// limit rows (0 means unbounded).
func (s *Store) QueryRows(ctx context.Context, q Querier, table *Table, filter Row, limit int) ([]Row, error) {
	builder := psql.Select("*").From(quoteIdent(table.Name))
	for name, v := range filter {
		driverVal, err := toDriverValue(v)
		if err != nil {
			return nil, actionerr.Wrap(actionerr.KindEntity, fmt.Sprintf("encode filter column %q", name), err)
		}
		builder = builder.Where(sq.Eq{quoteIdent(name): driverVal})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "query rows", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := decodeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpdateRows applies set to every row matching filter, returning the number
// of rows touched.
func (s *Store) UpdateRows(ctx context.Context, q Querier, table *Table, filter, set Row) (int64, error) {
	if len(set) == 0 {
		return 0, actionerr.New(actionerr.KindEntity, "modifyTableData requires at least one column to set")
	}
	builder := psql.Update(quoteIdent(table.Name))
	for name, v := range set {
		driverVal, err := toDriverValue(v)
		if err != nil {
			return 0, actionerr.Wrap(actionerr.KindEntity, fmt.Sprintf("encode set column %q", name), err)
		}
		builder = builder.Set(quoteIdent(name), driverVal)
	}
	for name, v := range filter {
		driverVal, err := toDriverValue(v)
		if err != nil {
			return 0, actionerr.Wrap(actionerr.KindEntity, fmt.Sprintf("encode filter column %q", name), err)
		}
		builder = builder.Where(sq.Eq{quoteIdent(name): driverVal})
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	tag, err := q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, actionerr.Wrap(actionerr.KindDatastore, "update rows", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteRows removes every row matching filter, returning the number of
// rows removed. An empty filter is rejected to guard against an
// accidental full-table wipe from a malformed request.
func (s *Store) DeleteRows(ctx context.Context, q Querier, table *Table, filter Row) (int64, error) {
	if len(filter) == 0 {
		return 0, actionerr.New(actionerr.KindEntity, "removeTableData requires a non-empty filter")
	}
	builder := psql.Delete(quoteIdent(table.Name))
	for name, v := range filter {
		driverVal, err := toDriverValue(v)
		if err != nil {
			return 0, actionerr.Wrap(actionerr.KindEntity, fmt.Sprintf("encode filter column %q", name), err)
		}
		builder = builder.Where(sq.Eq{quoteIdent(name): driverVal})
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	tag, err := q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, actionerr.Wrap(actionerr.KindDatastore, "delete rows", err)
	}
	return tag.RowsAffected(), nil
}

func toDriverValue(v value.Value) (any, error) {
	switch v.Kind {
	case value.KindNull:
		return nil, nil
	case value.KindString:
		return v.String, nil
	case value.KindNumber:
		return v.Number, nil
	case value.KindBool:
		return v.Bool, nil
	case value.KindTimestamp:
		return v.Timestamp, nil
	case value.KindDate:
		return v.Date, nil
	case value.KindBinary:
		return v.Binary, nil
	case value.KindJSON:
		return []byte(v.Raw), nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

// scanOneRow reads the single expected row off a RETURNING * result.
func scanOneRow(r pgx.Rows) (Row, error) {
	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, actionerr.Wrap(actionerr.KindDatastore, "scan inserted row", err)
		}
		return nil, actionerr.New(actionerr.KindDatastore, "insert returned no row")
	}
	return decodeRow(r)
}

func decodeRow(r pgx.Rows) (Row, error) {
	vals, err := r.Values()
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "read row values", err)
	}
	descs := r.FieldDescriptions()
	out := make(Row, len(vals))
	for i, v := range vals {
		name := string(descs[i].Name)
		out[name] = fromDriverValue(descs[i].DataTypeOID, v)
	}
	return out, nil
}

func fromDriverValue(oid uint32, raw any) value.Value {
	if raw == nil {
		return value.Value{Kind: value.KindNull, Null: true}
	}
	if oid == pgtype.JSONOID || oid == pgtype.JSONBOID {
		if b, ok := raw.([]byte); ok {
			return value.Value{Kind: value.KindJSON, Raw: b}
		}
	}
	switch t := raw.(type) {
	case string:
		return value.Value{Kind: value.KindString, String: t}
	case bool:
		return value.Value{Kind: value.KindBool, Bool: t}
	case []byte:
		return value.Value{Kind: value.KindBinary, Binary: t}
	case int16:
		return value.Value{Kind: value.KindNumber, Number: float64(t)}
	case int32:
		return value.Value{Kind: value.KindNumber, Number: float64(t)}
	case int64:
		return value.Value{Kind: value.KindNumber, Number: float64(t)}
	case float32:
		return value.Value{Kind: value.KindNumber, Number: float64(t)}
	case float64:
		return value.Value{Kind: value.KindNumber, Number: t}
	case time.Time:
		if oid == pgtype.DateOID {
			return value.Value{Kind: value.KindDate, Date: t}
		}
		return value.Value{Kind: value.KindTimestamp, Timestamp: t}
	default:
		return value.Value{Kind: value.KindNull, Null: true}
	}
}
