package entitystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/loomctl/loom/internal/actionerr"
)

// Query and Script are metadata-only entities: no DDL, just stored text
// handed to the external query engine / script runner collaborators at
// execution time.

func (s *Store) CreateQuery(ctx context.Context, q Querier, name, statement string, actor uuid.UUID) (*Created[Query], error) {
	id := uuid.New()
	now := time.Now().UTC()

	insertSQL, args, err := psql.Insert("entities").
		Columns("id", "type", "name", "deleted", "modified_at", "modified_by").
		Values(id, string(TypeQuery), name, false, now, actor).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entity insert: %w", err)
	}
	if _, err := q.Exec(ctx, insertSQL, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, getErr := s.GetQuery(ctx, q, name)
			if getErr != nil {
				return nil, getErr
			}
			return &Created[Query]{Kind: ResultFail, Existing: existing}, nil
		}
		return nil, actionerr.Wrap(actionerr.KindDatastore, "insert query entity", err)
	}

	if _, err := q.Exec(ctx, `INSERT INTO query_statements (entity_id, statement) VALUES ($1, $2)`, id, statement); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "insert query statement", err)
	}

	return &Created[Query]{Kind: ResultCreate, New: &Query{
		Entity:    Entity{ID: id, Name: name, ModifiedAt: now, ModifiedBy: actor},
		Statement: statement,
	}}, nil
}

func (s *Store) GetQuery(ctx context.Context, q Querier, name string) (*Query, error) {
	var out Query
	err := q.QueryRow(ctx, `
		SELECT e.id, e.name, e.modified_at, e.modified_by, qs.statement
		FROM entities e JOIN query_statements qs ON qs.entity_id = e.id
		WHERE e.type = $1 AND e.name = $2 AND e.deleted = false
	`, string(TypeQuery), name).Scan(&out.ID, &out.Name, &out.ModifiedAt, &out.ModifiedBy, &out.Statement)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, actionerr.New(actionerr.KindNotFound, fmt.Sprintf("query %q not found", name))
	}
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "query query", err)
	}
	return &out, nil
}

func (s *Store) GetAllQueries(ctx context.Context, q Querier) ([]Query, error) {
	rows, err := q.Query(ctx, `
		SELECT e.id, e.name, e.modified_at, e.modified_by, qs.statement
		FROM entities e JOIN query_statements qs ON qs.entity_id = e.id
		WHERE e.type = $1 AND e.deleted = false
		ORDER BY e.name
	`, string(TypeQuery))
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "list queries", err)
	}
	defer rows.Close()

	var out []Query
	for rows.Next() {
		var item Query
		if err := rows.Scan(&item.ID, &item.Name, &item.ModifiedAt, &item.ModifiedBy, &item.Statement); err != nil {
			return nil, actionerr.Wrap(actionerr.KindDatastore, "scan query", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) UpdateQuery(ctx context.Context, q Querier, name, statement string, actor uuid.UUID) (*Updated[Query], error) {
	existing, err := s.GetQuery(ctx, q, name)
	if err != nil {
		if actionerr.Is(err, actionerr.KindNotFound) {
			return &Updated[Query]{Kind: ResultFail}, nil
		}
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := q.Exec(ctx, `UPDATE query_statements SET statement = $1 WHERE entity_id = $2`, statement, existing.ID); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "update query statement", err)
	}
	if _, err := q.Exec(ctx, `UPDATE entities SET modified_at = $1, modified_by = $2 WHERE id = $3`, now, actor, existing.ID); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "touch entity", err)
	}

	newQuery := &Query{Entity: Entity{ID: existing.ID, Name: name, ModifiedAt: now, ModifiedBy: actor}, Statement: statement}
	return &Updated[Query]{Kind: ResultSuccess, Old: existing, New: newQuery}, nil
}

func (s *Store) DeleteQuery(ctx context.Context, q Querier, name string, actor uuid.UUID) (*Deleted[Query], error) {
	existing, err := s.GetQuery(ctx, q, name)
	if err != nil {
		if actionerr.Is(err, actionerr.KindNotFound) {
			return &Deleted[Query]{Kind: ResultFail}, nil
		}
		return nil, err
	}
	now := time.Now().UTC()
	if _, err := q.Exec(ctx, `UPDATE entities SET deleted = true, modified_at = $1, modified_by = $2 WHERE id = $3`, now, actor, existing.ID); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "soft delete entity", err)
	}
	return &Deleted[Query]{Kind: ResultSuccess, Old: existing}, nil
}

func (s *Store) CreateScript(ctx context.Context, q Querier, name, body string, actor uuid.UUID) (*Created[Script], error) {
	id := uuid.New()
	now := time.Now().UTC()

	insertSQL, args, err := psql.Insert("entities").
		Columns("id", "type", "name", "deleted", "modified_at", "modified_by").
		Values(id, string(TypeScript), name, false, now, actor).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entity insert: %w", err)
	}
	if _, err := q.Exec(ctx, insertSQL, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, getErr := s.GetScript(ctx, q, name)
			if getErr != nil {
				return nil, getErr
			}
			return &Created[Script]{Kind: ResultFail, Existing: existing}, nil
		}
		return nil, actionerr.Wrap(actionerr.KindDatastore, "insert script entity", err)
	}

	if _, err := q.Exec(ctx, `INSERT INTO script_bodies (entity_id, body) VALUES ($1, $2)`, id, body); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "insert script body", err)
	}

	return &Created[Script]{Kind: ResultCreate, New: &Script{
		Entity: Entity{ID: id, Name: name, ModifiedAt: now, ModifiedBy: actor},
		Body:   body,
	}}, nil
}

func (s *Store) GetScript(ctx context.Context, q Querier, name string) (*Script, error) {
	var out Script
	err := q.QueryRow(ctx, `
		SELECT e.id, e.name, e.modified_at, e.modified_by, sb.body
		FROM entities e JOIN script_bodies sb ON sb.entity_id = e.id
		WHERE e.type = $1 AND e.name = $2 AND e.deleted = false
	`, string(TypeScript), name).Scan(&out.ID, &out.Name, &out.ModifiedAt, &out.ModifiedBy, &out.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, actionerr.New(actionerr.KindNotFound, fmt.Sprintf("script %q not found", name))
	}
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "query script", err)
	}
	return &out, nil
}

func (s *Store) GetAllScripts(ctx context.Context, q Querier) ([]Script, error) {
	rows, err := q.Query(ctx, `
		SELECT e.id, e.name, e.modified_at, e.modified_by, sb.body
		FROM entities e JOIN script_bodies sb ON sb.entity_id = e.id
		WHERE e.type = $1 AND e.deleted = false
		ORDER BY e.name
	`, string(TypeScript))
	if err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "list scripts", err)
	}
	defer rows.Close()

	var out []Script
	for rows.Next() {
		var item Script
		if err := rows.Scan(&item.ID, &item.Name, &item.ModifiedAt, &item.ModifiedBy, &item.Body); err != nil {
			return nil, actionerr.Wrap(actionerr.KindDatastore, "scan script", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) UpdateScript(ctx context.Context, q Querier, name, body string, actor uuid.UUID) (*Updated[Script], error) {
	existing, err := s.GetScript(ctx, q, name)
	if err != nil {
		if actionerr.Is(err, actionerr.KindNotFound) {
			return &Updated[Script]{Kind: ResultFail}, nil
		}
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := q.Exec(ctx, `UPDATE script_bodies SET body = $1 WHERE entity_id = $2`, body, existing.ID); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "update script body", err)
	}
	if _, err := q.Exec(ctx, `UPDATE entities SET modified_at = $1, modified_by = $2 WHERE id = $3`, now, actor, existing.ID); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "touch entity", err)
	}

	newScript := &Script{Entity: Entity{ID: existing.ID, Name: name, ModifiedAt: now, ModifiedBy: actor}, Body: body}
	return &Updated[Script]{Kind: ResultSuccess, Old: existing, New: newScript}, nil
}

func (s *Store) DeleteScript(ctx context.Context, q Querier, name string, actor uuid.UUID) (*Deleted[Script], error) {
	existing, err := s.GetScript(ctx, q, name)
	if err != nil {
		if actionerr.Is(err, actionerr.KindNotFound) {
			return &Deleted[Script]{Kind: ResultFail}, nil
		}
		return nil, err
	}
	now := time.Now().UTC()
	if _, err := q.Exec(ctx, `UPDATE entities SET deleted = true, modified_at = $1, modified_by = $2 WHERE id = $3`, now, actor, existing.ID); err != nil {
		return nil, actionerr.Wrap(actionerr.KindDatastore, "soft delete entity", err)
	}
	return &Deleted[Script]{Kind: ResultSuccess, Old: existing}, nil
}
