package usermgmt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loomctl/loom/internal/mailer"
)

// newInvitationToken returns a random 32-byte hex token, unguessable and
// distinct from a JWT: invitations are single-use and consumed by the token
// value itself, not by verifying a signature.
func newInvitationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// InviteUser mints an invitation token for email, scoped to roleID, and
// emails it via sender. It makes spec.md §3's "created by invitation flow"
// concrete: Invitation rows are the only path that can move an email
// address from unknown to a usable account, aside from the first-run admin
// bootstrap.
func InviteUser(ctx context.Context, store Store, sender mailer.Sender, email string, roleID uuid.UUID, ttl time.Duration) error {
	token, err := newInvitationToken()
	if err != nil {
		return err
	}

	inv := Invitation{
		Token:     token,
		Email:     email,
		RoleID:    roleID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := store.SaveInvitation(ctx, inv); err != nil {
		return fmt.Errorf("save invitation: %w", err)
	}

	body := fmt.Sprintf("You have been invited. Your invitation token is: %s", token)
	if err := sender.Send(ctx, email, "You're invited", body); err != nil {
		return fmt.Errorf("send invitation email: %w", err)
	}
	return nil
}

// AcceptInvitation consumes a pending invitation, creates the account it was
// issued for, and grants it the invited role. The username is supplied at
// acceptance time since it is chosen by the invitee, not the inviter.
func AcceptInvitation(ctx context.Context, store Store, token, username, passwordHash string) (*User, error) {
	inv, err := store.ConsumeInvitation(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := store.CreateUser(ctx, username, inv.Email, passwordHash, false)
	if err != nil {
		return nil, err
	}

	if err := store.GrantRole(ctx, user.ID, inv.RoleID); err != nil {
		return nil, fmt.Errorf("grant invited role: %w", err)
	}

	return user, nil
}
