// Package permission implements the flat role-union permission model: a
// Permission is a tagged value (HasRole, GetEntity, ...), a user's effective
// permission set is the union of the permissions attached to their roles,
// and is_admin short-circuits the whole computation.
package permission

// Kind discriminates a Permission's tag.
type Kind string

const (
	KindHasRole        Kind = "has_role"
	KindGetEntity       Kind = "get_entity"
	KindCreateEntity    Kind = "create_entity"
	KindModifyEntity    Kind = "modify_entity"
	KindGetTableData    Kind = "get_table_data"
	KindModifyTableData Kind = "modify_table_data"
	KindRunQuery        Kind = "run_query"
	KindRunScript       Kind = "run_script"
	KindUser            Kind = "user"
	KindUserAdmin       Kind = "user_admin"
)

// EntityType names the kind of Entity a GetEntity/CreateEntity/ModifyEntity
// permission applies to.
type EntityType string

const (
	EntityTable  EntityType = "table"
	EntityQuery  EntityType = "query"
	EntityScript EntityType = "script"
)

// Permission is a single tagged permission value. It is comparable, so a set
// of permissions is naturally a Go map[Permission]struct{}.
type Permission struct {
	Kind       Kind
	RoleName   string
	TypeName   EntityType
	EntityName string
	Username   string
}

func HasRole(name string) Permission { return Permission{Kind: KindHasRole, RoleName: name} }

func GetEntity(t EntityType, name string) Permission {
	return Permission{Kind: KindGetEntity, TypeName: t, EntityName: name}
}

func CreateEntity(t EntityType) Permission { return Permission{Kind: KindCreateEntity, TypeName: t} }

func ModifyEntity(t EntityType, name string) Permission {
	return Permission{Kind: KindModifyEntity, TypeName: t, EntityName: name}
}

func GetTableData(table string) Permission {
	return Permission{Kind: KindGetTableData, EntityName: table}
}

func ModifyTableData(table string) Permission {
	return Permission{Kind: KindModifyTableData, EntityName: table}
}

func RunQuery(name string) Permission  { return Permission{Kind: KindRunQuery, EntityName: name} }
func RunScript(name string) Permission { return Permission{Kind: KindRunScript, EntityName: name} }
func User(username string) Permission  { return Permission{Kind: KindUser, Username: username} }

var UserAdmin = Permission{Kind: KindUserAdmin}

// Set is a user's effective permission set.
type Set map[Permission]struct{}

// NewSet builds a Set from the given permissions.
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether the set contains perm.
func (s Set) Has(perm Permission) bool {
	_, ok := s[perm]
	return ok
}

// Add returns a new set containing every permission in s plus extra.
func (s Set) Add(extra ...Permission) Set {
	out := make(Set, len(s)+len(extra))
	for p := range s {
		out[p] = struct{}{}
	}
	for _, p := range extra {
		out[p] = struct{}{}
	}
	return out
}

// Union merges multiple sets.
func Union(sets ...Set) Set {
	out := Set{}
	for _, s := range sets {
		for p := range s {
			out[p] = struct{}{}
		}
	}
	return out
}
