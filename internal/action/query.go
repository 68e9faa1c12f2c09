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

func NewGetAllQueries() Action {
	return WithLoginRequired(Func(func(ctx context.Context, s *state.State) (any, error) {
		queries, err := s.GetEntityStore().GetAllQueries(ctx, s.Querier())
		if err != nil {
			return nil, err
		}
		return FilterListByPermission(ctx, s, queries, func(q entitystore.Query) permission.Permission {
			return permission.GetEntity(permission.EntityQuery, q.Name)
		})
	}))
}

func NewGetQuery(name string) Action {
	return WithPermissionRequired(permission.GetEntity(permission.EntityQuery, name), Func(
		func(ctx context.Context, s *state.State) (any, error) {
			return s.GetEntityStore().GetQuery(ctx, s.Querier(), name)
		},
	))
}

func NewCreateQuery(name, statement string, onDuplicate OnDuplicate) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		caller := s.Caller()
		created, err := s.GetEntityStore().CreateQuery(ctx, s.Querier(), name, statement, caller.UserID)
		if err != nil {
			return nil, err
		}
		switch onDuplicate {
		case OnDuplicateUpdate:
			if created.Kind == entitystore.ResultFail {
				updated, err := s.GetEntityStore().UpdateQuery(ctx, s.Querier(), name, statement, caller.UserID)
				if err != nil {
					return nil, err
				}
				return entitystore.Upserted[entitystore.Query]{Kind: entitystore.ResultUpdate, Old: updated.Old, New: updated.New}, nil
			}
			return entitystore.Upserted[entitystore.Query]{Kind: entitystore.ResultCreate, New: created.New}, nil
		case OnDuplicateIgnore:
			return created, nil
		default:
			if created.Kind == entitystore.ResultFail {
				return nil, actionerr.New(actionerr.KindAlreadyExists, fmt.Sprintf("query %q already exists", name))
			}
			return created, nil
		}
	})

	dispatched := WithDispatch(DispatchSpec{
		ActionName: "createQuery",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.AllQueries(), channel.Query(name)} },
		Payload:    jsonPayload,
	}, leaf)

	perms := []permission.Permission{permission.CreateEntity(permission.EntityQuery)}
	if onDuplicate == OnDuplicateUpdate {
		perms = append(perms, permission.ModifyEntity(permission.EntityQuery, name))
	}
	return WithAnyPermission(perms, WithTransaction(dispatched))
}

func NewUpdateQuery(name, statement string, onNotFound OnNotFound) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		updated, err := s.GetEntityStore().UpdateQuery(ctx, s.Querier(), name, statement, s.Caller().UserID)
		if err != nil {
			return nil, err
		}
		if updated.Kind == entitystore.ResultFail && onNotFound == OnNotFoundFail {
			return nil, actionerr.New(actionerr.KindNotFound, fmt.Sprintf("query %q not found", name))
		}
		return updated, nil
	})
	dispatched := WithDispatch(DispatchSpec{
		ActionName: "updateQuery",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.Query(name)} },
		Payload:    jsonPayload,
	}, leaf)
	return WithPermissionRequired(permission.ModifyEntity(permission.EntityQuery, name), WithTransaction(dispatched))
}

func NewDeleteQuery(name string, onNotFound OnNotFound) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		deleted, err := s.GetEntityStore().DeleteQuery(ctx, s.Querier(), name, s.Caller().UserID)
		if err != nil {
			return nil, err
		}
		if deleted.Kind == entitystore.ResultFail && onNotFound == OnNotFoundFail {
			return nil, actionerr.New(actionerr.KindNotFound, fmt.Sprintf("query %q not found", name))
		}
		return deleted, nil
	})
	dispatched := WithDispatch(DispatchSpec{
		ActionName: "deleteQuery",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.AllQueries(), channel.Query(name)} },
		Payload:    jsonPayload,
	}, leaf)
	return WithPermissionRequired(permission.ModifyEntity(permission.EntityQuery, name), WithTransaction(dispatched))
}
