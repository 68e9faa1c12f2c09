// Package bootstrap seeds the one account every deployment needs before
// anyone else can sign in: the first-run admin. Every other account is
// created through the invitation flow (internal/usermgmt), never through
// self-service registration (spec.md §3).
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/loomctl/loom/internal/authn"
	"github.com/loomctl/loom/internal/config"
)

var sanitizeUsername = regexp.MustCompile(`[^a-zA-Z0-9_.]`)

// IsFirstRun returns true when the users table has no rows.
func IsFirstRun(ctx context.Context, db *pgxpool.Pool) (bool, error) {
	var count int
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return false, fmt.Errorf("check first run: %w", err)
	}
	return count == 0, nil
}

// RunFirstInit seeds the database with the admin account inside a single
// transaction. The admin's is_admin flag short-circuits every permission
// check (internal/permission.Resolver), so no role or permission grant is
// required for it to operate the system.
func RunFirstInit(ctx context.Context, db *pgxpool.Pool, cfg *config.Config, log zerolog.Logger) error {
	if cfg.InitAdminEmail == "" || cfg.InitAdminPassword == "" {
		return fmt.Errorf("INIT_ADMIN_EMAIL and INIT_ADMIN_PASSWORD must be set for first-run initialization")
	}

	adminEmail, _, err := authn.ValidateEmail(cfg.InitAdminEmail)
	if err != nil {
		return fmt.Errorf("invalid INIT_ADMIN_EMAIL: %w", err)
	}

	// Derive username from email local part, stripping invalid characters.
	username := adminEmail
	if idx := strings.Index(username, "@"); idx > 0 {
		username = username[:idx]
	}
	username = sanitizeUsername.ReplaceAllString(username, "")
	if err := authn.ValidateUsername(username); err != nil {
		return fmt.Errorf("derived admin username %q from email is invalid: %w", username, err)
	}

	hash, err := authn.HashPassword(
		cfg.InitAdminPassword,
		cfg.Argon2Memory,
		cfg.Argon2Iterations,
		cfg.Argon2Parallelism,
		cfg.Argon2SaltLength,
		cfg.Argon2KeyLength,
	)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin init transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Warn().Err(err).Msg("tx rollback failed")
		}
	}()

	var adminID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash, is_admin)
		 VALUES ($1, $2, $3, true)
		 RETURNING id`,
		adminEmail, username, hash,
	).Scan(&adminID)
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit init transaction: %w", err)
	}

	log.Info().Str("email", adminEmail).Str("username", username).Msg("admin account created")
	return nil
}
