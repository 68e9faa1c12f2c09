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

func NewGetAllScripts() Action {
	return WithLoginRequired(Func(func(ctx context.Context, s *state.State) (any, error) {
		scripts, err := s.GetEntityStore().GetAllScripts(ctx, s.Querier())
		if err != nil {
			return nil, err
		}
		return FilterListByPermission(ctx, s, scripts, func(sc entitystore.Script) permission.Permission {
			return permission.GetEntity(permission.EntityScript, sc.Name)
		})
	}))
}

func NewGetScript(name string) Action {
	return WithPermissionRequired(permission.GetEntity(permission.EntityScript, name), Func(
		func(ctx context.Context, s *state.State) (any, error) {
			return s.GetEntityStore().GetScript(ctx, s.Querier(), name)
		},
	))
}

func NewCreateScript(name, body string, onDuplicate OnDuplicate) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		caller := s.Caller()
		created, err := s.GetEntityStore().CreateScript(ctx, s.Querier(), name, body, caller.UserID)
		if err != nil {
			return nil, err
		}
		switch onDuplicate {
		case OnDuplicateUpdate:
			if created.Kind == entitystore.ResultFail {
				updated, err := s.GetEntityStore().UpdateScript(ctx, s.Querier(), name, body, caller.UserID)
				if err != nil {
					return nil, err
				}
				return entitystore.Upserted[entitystore.Script]{Kind: entitystore.ResultUpdate, Old: updated.Old, New: updated.New}, nil
			}
			return entitystore.Upserted[entitystore.Script]{Kind: entitystore.ResultCreate, New: created.New}, nil
		case OnDuplicateIgnore:
			return created, nil
		default:
			if created.Kind == entitystore.ResultFail {
				return nil, actionerr.New(actionerr.KindAlreadyExists, fmt.Sprintf("script %q already exists", name))
			}
			return created, nil
		}
	})

	dispatched := WithDispatch(DispatchSpec{
		ActionName: "createScript",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.AllScripts(), channel.Script(name)} },
		Payload:    jsonPayload,
	}, leaf)

	perms := []permission.Permission{permission.CreateEntity(permission.EntityScript)}
	if onDuplicate == OnDuplicateUpdate {
		perms = append(perms, permission.ModifyEntity(permission.EntityScript, name))
	}
	return WithAnyPermission(perms, WithTransaction(dispatched))
}

func NewUpdateScript(name, body string, onNotFound OnNotFound) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		updated, err := s.GetEntityStore().UpdateScript(ctx, s.Querier(), name, body, s.Caller().UserID)
		if err != nil {
			return nil, err
		}
		if updated.Kind == entitystore.ResultFail && onNotFound == OnNotFoundFail {
			return nil, actionerr.New(actionerr.KindNotFound, fmt.Sprintf("script %q not found", name))
		}
		return updated, nil
	})
	dispatched := WithDispatch(DispatchSpec{
		ActionName: "updateScript",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.Script(name)} },
		Payload:    jsonPayload,
	}, leaf)
	return WithPermissionRequired(permission.ModifyEntity(permission.EntityScript, name), WithTransaction(dispatched))
}

func NewDeleteScript(name string, onNotFound OnNotFound) Action {
	leaf := Func(func(ctx context.Context, s *state.State) (any, error) {
		deleted, err := s.GetEntityStore().DeleteScript(ctx, s.Querier(), name, s.Caller().UserID)
		if err != nil {
			return nil, err
		}
		if deleted.Kind == entitystore.ResultFail && onNotFound == OnNotFoundFail {
			return nil, actionerr.New(actionerr.KindNotFound, fmt.Sprintf("script %q not found", name))
		}
		return deleted, nil
	})
	dispatched := WithDispatch(DispatchSpec{
		ActionName: "deleteScript",
		Channels:   func(any) []channel.Channel { return []channel.Channel{channel.AllScripts(), channel.Script(name)} },
		Payload:    jsonPayload,
	}, leaf)
	return WithPermissionRequired(permission.ModifyEntity(permission.EntityScript, name), WithTransaction(dispatched))
}
