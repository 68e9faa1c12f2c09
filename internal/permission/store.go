package permission

import "context"

// Store provides read access to a user's role and admin status. Writes
// (role grants, permission grants) live in internal/usermgmt, which owns
// the user/role/permission tables; permission.Store only ever reads them.
type Store interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
	UserPermissions(ctx context.Context, userID string) (Set, error)
}
