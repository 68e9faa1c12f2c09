package action

import (
	"context"
	"fmt"

	"github.com/loomctl/loom/internal/actionerr"
	"github.com/loomctl/loom/internal/channel"
	"github.com/loomctl/loom/internal/entitystore"
	"github.com/loomctl/loom/internal/permission"
	"github.com/loomctl/loom/internal/state"
)

// NewGetAllTables lists every Table, filtered to the ones the caller holds
// GetEntity(Table, name) for. Filtering happens outside any transaction,
// per spec.md §4.1.
func NewGetAllTables() Action {
	return WithLoginRequired(Func(func(ctx context.Context, s *state.State) (any, error) {
		tables, err := s.GetEntityStore().GetAllTables(ctx, s.Querier())
		if err != nil {
			return nil, err
		}
		return FilterListByPermission(ctx, s, tables, func(t entitystore.Table) permission.Permission {
			return permission.GetEntity(permission.EntityTable, t.Name)
		})
	}))
}

// NewGetTable fetches a single Table by name.
func NewGetTable(name string) Action {
	return WithPermissionRequired(permission.GetEntity(permission.EntityTable, name), Func(
		func(ctx context.Context, s *state.State) (any, error) {
			return s.GetEntityStore().GetTable(ctx, s.Querier(), name)
		},
	))
}

// NewCreateTable builds the full createTable pipeline: permission check,
// transaction, leaf create, and dispatch to AllTables + the table's own
// channel.
func NewCreateTable(name string, schema entitystore.Schema, onDuplicate OnDuplicate) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		caller := s.Caller()
		created, err := s.GetEntityStore().CreateTable(ctx, s.Querier(), name, schema, caller.UserID)
		if err != nil {
			return nil, err
		}

		switch onDuplicate {
		case OnDuplicateUpdate:
			if created.Kind == entitystore.ResultFail {
				updated, err := s.GetEntityStore().UpdateTable(ctx, s.Querier(), name, schema, caller.UserID)
				if err != nil {
					return nil, err
				}
				return entitystore.Upserted[entitystore.Table]{Kind: entitystore.ResultUpdate, Old: updated.Old, New: updated.New}, nil
			}
			return entitystore.Upserted[entitystore.Table]{Kind: entitystore.ResultCreate, New: created.New}, nil
		case OnDuplicateIgnore:
			return created, nil
		default: // OnDuplicateFail
			if created.Kind == entitystore.ResultFail {
				return nil, actionerr.New(actionerr.KindAlreadyExists, fmt.Sprintf("table %q already exists", name))
			}
			return created, nil
		}
	})

	dispatched := WithDispatch(DispatchSpec{
		ActionName: "createTable",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.AllTables(), channel.Table(name)} },
		Payload:    jsonPayload,
	}, leaf)

	perms := []permission.Permission{permission.CreateEntity(permission.EntityTable)}
	if onDuplicate == OnDuplicateUpdate {
		perms = append(perms, permission.ModifyEntity(permission.EntityTable, name))
	}
	return WithAnyPermission(perms, WithTransaction(dispatched))
}

// NewUpdateTable builds the updateTable pipeline: additive-only schema
// change, dispatched to the table's own channel.
func NewUpdateTable(name string, schema entitystore.Schema, onNotFound OnNotFound) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		updated, err := s.GetEntityStore().UpdateTable(ctx, s.Querier(), name, schema, s.Caller().UserID)
		if err != nil {
			return nil, err
		}
		if updated.Kind == entitystore.ResultFail && onNotFound == OnNotFoundFail {
			return nil, actionerr.New(actionerr.KindNotFound, fmt.Sprintf("table %q not found", name))
		}
		return updated, nil
	})

	dispatched := WithDispatch(DispatchSpec{
		ActionName: "updateTable",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.Table(name)} },
		Payload:    jsonPayload,
	}, leaf)

	return WithPermissionRequired(permission.ModifyEntity(permission.EntityTable, name), WithTransaction(dispatched))
}

// NewDeleteTable builds the deleteTable pipeline: soft-delete plus DROP
// TABLE, dispatched to AllTables + the table's own channel.
func NewDeleteTable(name string, onNotFound OnNotFound) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		deleted, err := s.GetEntityStore().DeleteTable(ctx, s.Querier(), name, s.Caller().UserID)
		if err != nil {
			return nil, err
		}
		if deleted.Kind == entitystore.ResultFail && onNotFound == OnNotFoundFail {
			return nil, actionerr.New(actionerr.KindNotFound, fmt.Sprintf("table %q not found", name))
		}
		return deleted, nil
	})

	dispatched := WithDispatch(DispatchSpec{
		ActionName: "deleteTable",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.AllTables(), channel.Table(name)} },
		Payload:    jsonPayload,
	}, leaf)

	return WithPermissionRequired(permission.ModifyEntity(permission.EntityTable, name), WithTransaction(dispatched))
}
