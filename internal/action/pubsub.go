package action

import (
	"context"
	"time"

	"github.com/loomctl/loom/internal/channel"
	"github.com/loomctl/loom/internal/permission"
	"github.com/loomctl/loom/internal/pubsub"
	"github.com/loomctl/loom/internal/state"
)

// NewSubscribeTo requires the channel's own required permission; idempotent.
func NewSubscribeTo(ch channel.Channel) Action {
	return WithPermissionFor(func(*state.State) permission.Permission { return ch.RequiredPermission() }, Func(
		func(ctx context.Context, s *state.State) (any, error) {
			if err := s.GetPubSub().Subscribe(ctx, s.Caller().UserID, ch); err != nil {
				return nil, err
			}
			return map[string]any{"subscribed": true, "channel": ch.String()}, nil
		},
	))
}

// NewUnsubscribeFrom requires only login; idempotent.
func NewUnsubscribeFrom(ch channel.Channel) Action {
	return WithLoginRequired(Func(func(ctx context.Context, s *state.State) (any, error) {
		if err := s.GetPubSub().Unsubscribe(ctx, s.Caller().UserID, ch); err != nil {
			return nil, err
		}
		return map[string]any{"subscribed": false, "channel": ch.String()}, nil
	}))
}

// NewUnsubscribeAll requires only login; idempotent.
func NewUnsubscribeAll() Action {
	return WithLoginRequired(Func(func(ctx context.Context, s *state.State) (any, error) {
		if err := s.GetPubSub().UnsubscribeAll(ctx, s.Caller().UserID); err != nil {
			return nil, err
		}
		return map[string]any{"subscribed": false}, nil
	}))
}

// NewGetSubscribers requires the channel's read permission.
func NewGetSubscribers(ch channel.Channel) Action {
	return WithPermissionFor(func(*state.State) permission.Permission { return ch.RequiredPermission() }, Func(
		func(ctx context.Context, s *state.State) (any, error) {
			return s.GetPubSub().GetSubscribers(ctx, ch)
		},
	))
}

// NewGetMessages requires only login; returns every log entry in (start,
// end] on a channel the caller is currently subscribed to, ascending.
func NewGetMessages(start, end time.Time) Action {
	return WithLoginRequired(Func(func(ctx context.Context, s *state.State) (any, error) {
		msgs, err := s.GetPubSub().GetMessages(ctx, s.Caller().UserID, start, end)
		if err != nil {
			return nil, err
		}
		if msgs == nil {
			msgs = []pubsub.Message{}
		}
		return msgs, nil
	}))
}
