package models

import "github.com/victorivanov/accord/internal/permissions"

type Role struct {
	ID          int64           `json:"id,string"`
	ServerID    int64           `json:"server_id,string"`
	Name        string          `json:"name"`
	Color       int             `json:"color"`
	Position    int64           `json:"position"`
	IsAdmin     bool            `json:"is_admin"`
	IsDefault   bool            `json:"is_default"`
	Permissions permissions.Set `json:"permissions"`
}

// RoleAssignment links a user to a role. The default role is implicit for
// every member and never has assignment rows.
type RoleAssignment struct {
	RoleID int64 `json:"role_id,string"`
	UserID int64 `json:"user_id,string"`
}
