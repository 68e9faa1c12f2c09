package action

// OnDuplicate selects CreateEntity's conflict policy (spec.md §4.1).
type OnDuplicate string

const (
	OnDuplicateUpdate OnDuplicate = "update"
	OnDuplicateIgnore OnDuplicate = "ignore"
	OnDuplicateFail   OnDuplicate = "fail"
)

// OnNotFound selects UpdateEntity/DeleteEntity's missing-row policy.
type OnNotFound string

const (
	OnNotFoundIgnore OnNotFound = "ignore"
	OnNotFoundFail   OnNotFound = "fail"
)
