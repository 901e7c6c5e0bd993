package database

import (
	"context"
	"errors"

	"github.com/victorivanov/accord/internal/models"
	"github.com/victorivanov/accord/internal/permissions"
)

// Repository-level invariant violations. Services translate these into
// their error taxonomy.
var (
	// ErrDefaultRoleExists is returned when creating a second default
	// role in a server.
	ErrDefaultRoleExists = errors.New("server already has a default role")
	// ErrDefaultRoleDelete is returned when deleting a server's default role.
	ErrDefaultRoleDelete = errors.New("cannot delete the default role")
)

type ServerRepository interface {
	Create(ctx context.Context, server *models.Server) error
	GetByID(ctx context.Context, id int64) (*models.Server, error)
	Delete(ctx context.Context, id int64) error
}

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	// GetByServerID returns the server's categories ordered by position.
	// forUpdate locks the sibling set for the enclosing transaction so
	// concurrent moves within one server serialize.
	GetByServerID(ctx context.Context, serverID int64, forUpdate bool) ([]models.Category, error)
	UpdatePosition(ctx context.Context, id, position int64) error
	Delete(ctx context.Context, id int64) error
}

type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id int64) (*models.Channel, error)
	// GetSiblings returns the live channels sharing a parent (categoryID
	// nil means the server root), ordered by position. forUpdate locks
	// the sibling set for the enclosing transaction.
	GetSiblings(ctx context.Context, serverID int64, categoryID *int64, forUpdate bool) ([]models.Channel, error)
	UpdatePosition(ctx context.Context, id int64, categoryID *int64, position int64) error
	// DetachFromCategory moves a category's channels to the server root
	// keeping their relative order, and returns them ordered by position.
	DetachFromCategory(ctx context.Context, categoryID int64) ([]models.Channel, error)
	SoftDelete(ctx context.Context, id int64) error
	HardDelete(ctx context.Context, id int64) error
}

type RoleRepository interface {
	// Create inserts the role at the position already assigned by the
	// caller, rejecting a second default role per server with
	// ErrDefaultRoleExists.
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, id int64) (*models.Role, error)
	// GetByServerID returns the server's roles ordered by position.
	// forUpdate locks the role set for the enclosing transaction.
	GetByServerID(ctx context.Context, serverID int64, forUpdate bool) ([]models.Role, error)
	// GetByMember returns the roles effective for a user in a server:
	// explicitly assigned roles plus the server's default role, ordered
	// by position.
	GetByMember(ctx context.Context, serverID, userID int64) ([]models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	UpdatePosition(ctx context.Context, id, position int64) error
	// Delete removes a non-default role, rejecting the default role with
	// ErrDefaultRoleDelete. Cascades to assignments and overrides are the
	// coordinator's responsibility, inside the same transaction.
	Delete(ctx context.Context, id int64) error
}

type AssignmentRepository interface {
	Add(ctx context.Context, roleID, userID int64) error
	Remove(ctx context.Context, roleID, userID int64) error
	Exists(ctx context.Context, roleID, userID int64) (bool, error)
	DeleteByRole(ctx context.Context, roleID int64) error
}

type OverrideRepository interface {
	Get(ctx context.Context, scope models.ScopeKind, scopeID, principalID int64, isRole bool) (*models.Override, error)
	// GetByScope returns every override at a scope.
	GetByScope(ctx context.Context, scope models.ScopeKind, scopeID int64) ([]models.Override, error)
	// Upsert creates or updates the single override for a (scope,
	// principal) pair using find-then-write; callers must run it inside
	// a transaction to keep the pair unique under concurrency.
	Upsert(ctx context.Context, override *models.Override) error
	Delete(ctx context.Context, scope models.ScopeKind, scopeID, principalID int64, isRole bool) error
	DeleteByScope(ctx context.Context, scope models.ScopeKind, scopeID int64) error
	DeleteByRole(ctx context.Context, roleID int64) error
}

// encodePerms and decodePerms are the storage form of a permission set.
func encodePerms(s permissions.Set) string { return s.Encode() }

func decodePerms(encoded string) (permissions.Set, error) {
	return permissions.Decode(encoded)
}
