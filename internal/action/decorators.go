package action

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/loomctl/loom/internal/actionerr"
	"github.com/loomctl/loom/internal/channel"
	"github.com/loomctl/loom/internal/permission"
	"github.com/loomctl/loom/internal/state"
)

// WithLoginRequired fails with Unauthorized unless a caller is attached to
// the State (an authenticated session). No specific permission is checked.
func WithLoginRequired(inner Action) Action {
	return Func(func(ctx context.Context, s *state.State) (any, error) {
		if s.Caller().UserID == uuid.Nil {
			return nil, actionerr.New(actionerr.KindUnauthorized, "login required")
		}
		return inner.Run(ctx, s)
	})
}

// WithPermissionRequired fails with Unauthorized unless the caller's
// effective permission set contains perm (is_admin always short-circuits
// to allowed).
func WithPermissionRequired(perm permission.Permission, inner Action) Action {
	return WithPermissionFor(func(*state.State) permission.Permission { return perm }, inner)
}

// WithPermissionFor is the dynamic form of WithPermissionRequired, for
// pipelines whose required permission depends on the request (e.g. the
// channel named in a subscribeTo call).
func WithPermissionFor(permFor func(s *state.State) permission.Permission, inner Action) Action {
	return Func(func(ctx context.Context, s *state.State) (any, error) {
		caller := s.Caller()
		if caller.UserID == uuid.Nil {
			return nil, actionerr.New(actionerr.KindUnauthorized, "login required")
		}
		ok, err := s.GetAuthorization().HasPermission(ctx, caller.UserID.String(), permFor(s))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, actionerr.New(actionerr.KindUnauthorized, "missing required permission")
		}
		return inner.Run(ctx, s)
	})
}

// WithAnyPermission fails with Unauthorized unless the caller holds at
// least one of perms. Used where CreateEntity(T)'s own pipeline also
// accepts ModifyEntity(T,name) under an on_duplicate=Update policy
// (spec.md §4.1).
func WithAnyPermission(perms []permission.Permission, inner Action) Action {
	return Func(func(ctx context.Context, s *state.State) (any, error) {
		caller := s.Caller()
		if caller.UserID == uuid.Nil {
			return nil, actionerr.New(actionerr.KindUnauthorized, "login required")
		}
		for _, perm := range perms {
			ok, err := s.GetAuthorization().HasPermission(ctx, caller.UserID.String(), perm)
			if err != nil {
				return nil, err
			}
			if ok {
				return inner.Run(ctx, s)
			}
		}
		return nil, actionerr.New(actionerr.KindUnauthorized, "missing required permission")
	})
}

// DispatchSpec describes how to turn a leaf's result into one or more
// durable message-log entries.
type DispatchSpec struct {
	ActionName string
	Channels   func(result any) []channel.Channel
	Payload    func(result any) (json.RawMessage, error)
}

// noopResult is implemented by leaf results that can represent "ran
// successfully but wrote nothing" (e.g. on_duplicate/on_not_found=Ignore
// hitting a name conflict or a missing row). WithDispatch skips publishing
// for these, since no write occurred for subscribers to be told about.
type noopResult interface {
	DispatchNoop() bool
}

// WithDispatch appends one message-log entry per target channel after inner
// succeeds, unless the result reports it performed no write (noopResult). It
// must run inside WithTransaction (it requires a bound transaction on the
// State) so the append commits or rolls back atomically with the leaf's own
// write — the atomic-dispatch invariant spec.md §4.1 describes.
func WithDispatch(spec DispatchSpec, inner Action) Action {
	return Func(func(ctx context.Context, s *state.State) (any, error) {
		result, err := inner.Run(ctx, s)
		if err != nil {
			return nil, err
		}
		if noop, ok := result.(noopResult); ok && noop.DispatchNoop() {
			return result, nil
		}
		tx := s.Tx()
		if tx == nil {
			return nil, actionerr.New(actionerr.KindUnknown, "WithDispatch requires an active transaction")
		}
		payload, err := spec.Payload(result)
		if err != nil {
			return nil, actionerr.Wrap(actionerr.KindSerialization, "encode dispatch payload", err)
		}
		for _, ch := range spec.Channels(result) {
			if err := s.GetPubSub().PublishTx(ctx, tx, ch, spec.ActionName, payload); err != nil {
				return nil, actionerr.Wrap(actionerr.KindPublish, fmt.Sprintf("dispatch to %s", ch.String()), err)
			}
		}
		return result, nil
	})
}

// WithTransaction opens a database transaction, binds it to a child State,
// runs inner against that State, and commits on success or rolls back on
// any error. When a pipeline also uses WithDispatch, WithTransaction
// encloses it (WithDispatch sits next to the leaf) so the message-log append
// shares the leaf write's transaction.
func WithTransaction(inner Action) Action {
	return Func(func(ctx context.Context, s *state.State) (any, error) {
		tx, err := s.Begin(ctx)
		if err != nil {
			return nil, actionerr.Wrap(actionerr.KindDatastore, "begin transaction", err)
		}

		child := s.WithTx(tx)
		result, runErr := inner.Run(ctx, child)
		if runErr != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				return nil, actionerr.Wrap(actionerr.KindDatastore, "rollback after error", rbErr)
			}
			return nil, runErr
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, actionerr.Wrap(actionerr.KindDatastore, "commit transaction", err)
		}
		return result, nil
	})
}

// FilterListByPermission filters items down to the ones the caller holds
// permFor(item) for. It is a plain function rather than an Action decorator
// because, unlike the other decorators, its inner result is a typed slice:
// Go's static generics don't let that compose through the dynamic Action
// interface without type assertions uglier than calling this directly from
// the handful of list leaves that need it (spec.md §4.1,
// WithFilterListByPermission).
func FilterListByPermission[T any](ctx context.Context, s *state.State, items []T, permFor func(T) permission.Permission) ([]T, error) {
	caller := s.Caller()
	out := make([]T, 0, len(items))
	for _, item := range items {
		ok, err := s.GetAuthorization().HasPermission(ctx, caller.UserID.String(), permFor(item))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}
