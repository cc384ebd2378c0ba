package model

// PermissionLevel is the access level of a user on a project. The project
// owner implicitly has PermissionOwner; it is never stored as a row.
type PermissionLevel string

const (
	PermissionView  PermissionLevel = "view"
	PermissionEdit  PermissionLevel = "edit"
	PermissionOwner PermissionLevel = "owner"
)

// CanEdit reports whether the level allows mutating the plan.
func (l PermissionLevel) CanEdit() bool {
	return l == PermissionEdit || l == PermissionOwner
}

// Permission grants a user a level on a project. The (user_id, project_id)
// pair is unique.
type Permission struct {
	ID        RecordID        `json:"id"`
	UserID    string          `json:"user_id"`
	ProjectID string          `json:"project_id"`
	Level     PermissionLevel `json:"permission_level"`
}
