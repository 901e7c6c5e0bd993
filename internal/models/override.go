package models

import "github.com/victorivanov/accord/internal/permissions"

// ScopeKind names the level an override attaches to.
type ScopeKind string

const (
	ScopeCategory ScopeKind = "category"
	ScopeChannel  ScopeKind = "channel"
)

// Override is a permission override at a category or channel scope, keyed
// to either a role or an individual user. At most one override exists per
// (scope, principal) pair.
type Override struct {
	ScopeKind   ScopeKind       `json:"scope_kind"`
	ScopeID     int64           `json:"scope_id,string"`
	PrincipalID int64           `json:"principal_id,string"`
	IsRole      bool            `json:"is_role"`
	Permissions permissions.Set `json:"permissions"`
}
