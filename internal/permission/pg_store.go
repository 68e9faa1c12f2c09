package permission

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a new PostgreSQL-backed permission store.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// IsAdmin reports whether the given user is flagged is_admin.
func (s *PGStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var isAdmin bool
	err := s.db.QueryRow(ctx, "SELECT is_admin FROM users WHERE id = $1", userID).Scan(&isAdmin)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return isAdmin, nil
}

// UserPermissions returns the union of permissions attached to every role the
// user holds, plus one HasRole(name) permission per role so that
// role-gated checks (Permission::HasRole) work without a join at check time.
func (s *PGStore) UserPermissions(ctx context.Context, userID string) (Set, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.name, p.kind, p.type_name, p.entity_name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user permissions: %w", err)
	}
	defer rows.Close()

	set := Set{}
	for rows.Next() {
		var roleName string
		var kind, typeName, entityName *string
		if err := rows.Scan(&roleName, &kind, &typeName, &entityName); err != nil {
			return nil, fmt.Errorf("scan user permission: %w", err)
		}
		set[HasRole(roleName)] = struct{}{}
		if kind == nil {
			continue
		}
		p := Permission{Kind: Kind(*kind)}
		if typeName != nil {
			p.TypeName = EntityType(*typeName)
		}
		if entityName != nil {
			p.EntityName = *entityName
		}
		set[p] = struct{}{}
	}
	return set, rows.Err()
}
