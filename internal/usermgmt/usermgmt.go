// Package usermgmt owns the User/Role/Permission/UserRole/RolePermission
// tables: account creation, role grants, permission grants, and the
// invitation flow that original_source's state/mod.rs and auth/send_mail.rs
// describe but spec.md's distillation only names in passing.
package usermgmt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loomctl/loom/internal/permission"
)

var (
	ErrNotFound      = errors.New("user management: not found")
	ErrAlreadyExists = errors.New("user management: already exists")
	ErrExpiredToken  = errors.New("user management: invitation token expired")
)

// User is an account in the system.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Role is a named bundle of permissions.
type Role struct {
	ID   uuid.UUID
	Name string
}

// Invitation is a pending invite token minted for a not-yet-registered
// email address.
type Invitation struct {
	Token     string
	Email     string
	RoleID    uuid.UUID
	ExpiresAt time.Time
}

// Store is the persistence surface usermgmt needs. It is satisfied by PGStore
// below and by fakes in tests.
type Store interface {
	CreateUser(ctx context.Context, username, email, passwordHash string, isAdmin bool) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	CreateRole(ctx context.Context, name string) (*Role, error)
	GrantRole(ctx context.Context, userID, roleID uuid.UUID) error
	GrantPermission(ctx context.Context, roleID uuid.UUID, perm permission.Permission) error
	SaveInvitation(ctx context.Context, inv Invitation) error
	ConsumeInvitation(ctx context.Context, token string) (*Invitation, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a new PostgreSQL-backed user management store.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateUser(ctx context.Context, username, email, passwordHash string, isAdmin bool) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, email, password_hash, is_admin, created_at
	`, username, email, passwordHash, isAdmin).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (s *PGStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		SELECT id, username, email, password_hash, is_admin, created_at FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return &u, nil
}

func (s *PGStore) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		SELECT id, username, email, password_hash, is_admin, created_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return &u, nil
}

func (s *PGStore) CreateRole(ctx context.Context, name string) (*Role, error) {
	var r Role
	err := s.db.QueryRow(ctx, `INSERT INTO roles (name) VALUES ($1) RETURNING id, name`, name).Scan(&r.ID, &r.Name)
	if err != nil {
		return nil, fmt.Errorf("insert role: %w", err)
	}
	return &r, nil
}

func (s *PGStore) GrantRole(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID, roleID)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

func (s *PGStore) GrantPermission(ctx context.Context, roleID uuid.UUID, perm permission.Permission) error {
	var permID uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO permissions (kind, type_name, entity_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, type_name, entity_name) DO UPDATE SET kind = EXCLUDED.kind
		RETURNING id
	`, string(perm.Kind), string(perm.TypeName), perm.EntityName).Scan(&permID)
	if err != nil {
		return fmt.Errorf("upsert permission: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
		ON CONFLICT (role_id, permission_id) DO NOTHING
	`, roleID, permID)
	if err != nil {
		return fmt.Errorf("grant permission to role: %w", err)
	}
	return nil
}

func (s *PGStore) SaveInvitation(ctx context.Context, inv Invitation) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO invitations (token, email, role_id, expires_at) VALUES ($1, $2, $3, $4)
	`, inv.Token, inv.Email, inv.RoleID, inv.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save invitation: %w", err)
	}
	return nil
}

func (s *PGStore) ConsumeInvitation(ctx context.Context, token string) (*Invitation, error) {
	var inv Invitation
	err := s.db.QueryRow(ctx, `
		DELETE FROM invitations WHERE token = $1
		RETURNING token, email, role_id, expires_at
	`, token).Scan(&inv.Token, &inv.Email, &inv.RoleID, &inv.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume invitation: %w", err)
	}
	if time.Now().After(inv.ExpiresAt) {
		return nil, ErrExpiredToken
	}
	return &inv, nil
}
