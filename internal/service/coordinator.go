package service

import (
	"context"
	"errors"
	"time"

	"github.com/victorivanov/accord/internal/database"
	"github.com/victorivanov/accord/internal/events"
	"github.com/victorivanov/accord/internal/models"
	"github.com/victorivanov/accord/internal/ordering"
	"github.com/victorivanov/accord/internal/permissions"
	"github.com/victorivanov/accord/internal/snowflake"
)

// EntityType identifies which sibling hierarchy a move targets.
type EntityType string

const (
	EntityChannel  EntityType = "channel"
	EntityCategory EntityType = "category"
	EntityRole     EntityType = "role"
)

// TxRunner is the transactional surface the coordinator mutates through.
// *database.Store implements it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(q *database.Queries) error) error
	Queries() *database.Queries
}

// Coordinator orchestrates multi-record mutations. Every operation is one
// transaction: existence checks, the mutation, cascades, all or nothing.
// One domain event is emitted per successful mutation.
type Coordinator struct {
	store TxRunner
	sink  events.Sink
	sf    *snowflake.Generator
}

func NewCoordinator(store TxRunner, sink events.Sink, sf *snowflake.Generator) *Coordinator {
	return &Coordinator{store: store, sink: sink, sf: sf}
}

func validateName(name string) error {
	if name == "" || len(name) > 100 {
		return InvalidArgument("INVALID_NAME", "name must be 1-100 characters")
	}
	return nil
}

func (c *Coordinator) emit(ctx context.Context, typ events.Type, serverID int64, entityType string, entityID int64, entity any) error {
	ev, err := events.New(typ, serverID, entityType, entityID, entity)
	if err != nil {
		return Unavailable("EVENT_ENCODE", err.Error())
	}
	if err := c.sink.Emit(ctx, ev); err != nil {
		return Unavailable("EVENT_BUS_UNAVAILABLE", err.Error())
	}
	return nil
}

// CreateServer creates a server together with its default role, which every
// member implicitly holds and which can never be deleted.
func (c *Coordinator) CreateServer(ctx context.Context, ownerID int64, name string) (*models.Server, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	server := &models.Server{
		ID:        c.sf.Generate().Int64(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
	defaultRole := &models.Role{
		ID:          c.sf.Generate().Int64(),
		ServerID:    server.ID,
		Name:        "@everyone",
		Position:    ordering.Append(0),
		IsDefault:   true,
		Permissions: permissions.DefaultEveryonePerms(),
	}

	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		if err := q.Servers.Create(ctx, server); err != nil {
			return wrapStore(err)
		}
		if err := q.Roles.Create(ctx, defaultRole); err != nil {
			if errors.Is(err, database.ErrDefaultRoleExists) {
				return InvalidState("DUPLICATE_DEFAULT_ROLE", "server already has a default role")
			}
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.emit(ctx, events.TypeServerCreated, server.ID, "server", server.ID, server); err != nil {
		return nil, err
	}
	return server, nil
}

// CreateCategory appends a category at the end of the server's category list.
func (c *Coordinator) CreateCategory(ctx context.Context, serverID int64, name string) (*models.Category, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	category := &models.Category{
		ID:       c.sf.Generate().Int64(),
		ServerID: serverID,
		Name:     name,
	}

	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		server, err := q.Servers.GetByID(ctx, serverID)
		if err != nil {
			return wrapStore(err)
		}
		if server == nil {
			return NotFound("SERVER_NOT_FOUND", "server not found")
		}

		siblings, err := q.Categories.GetByServerID(ctx, serverID, true)
		if err != nil {
			return wrapStore(err)
		}
		category.Position = ordering.Append(len(siblings))
		if err := q.Categories.Create(ctx, category); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.emit(ctx, events.TypeCategoryCreated, serverID, "category", category.ID, category); err != nil {
		return nil, err
	}
	return category, nil
}

// CreateChannel appends a channel at the end of its sibling set (the given
// category, or the server root when categoryID is nil).
func (c *Coordinator) CreateChannel(ctx context.Context, serverID int64, categoryID *int64, name string, chType models.ChannelType) (*models.Channel, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if chType != models.ChannelTypeText && chType != models.ChannelTypeVoice {
		return nil, InvalidArgument("INVALID_CHANNEL_TYPE", "unknown channel type")
	}

	channel := &models.Channel{
		ID:         c.sf.Generate().Int64(),
		ServerID:   serverID,
		CategoryID: categoryID,
		Name:       name,
		Type:       chType,
	}

	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		server, err := q.Servers.GetByID(ctx, serverID)
		if err != nil {
			return wrapStore(err)
		}
		if server == nil {
			return NotFound("SERVER_NOT_FOUND", "server not found")
		}
		if categoryID != nil {
			category, err := q.Categories.GetByID(ctx, *categoryID)
			if err != nil {
				return wrapStore(err)
			}
			if category == nil || category.ServerID != serverID {
				return NotFound("CATEGORY_NOT_FOUND", "category not found")
			}
		}

		siblings, err := q.Channels.GetSiblings(ctx, serverID, categoryID, true)
		if err != nil {
			return wrapStore(err)
		}
		channel.Position = ordering.Append(len(siblings))
		if err := q.Channels.Create(ctx, channel); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.emit(ctx, events.TypeChannelCreated, serverID, "channel", channel.ID, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

// DeleteChannel soft-deletes a channel. Overrides stay in place for a
// later PurgeChannel.
func (c *Coordinator) DeleteChannel(ctx context.Context, channelID int64) error {
	var serverID int64
	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		ch, err := q.Channels.GetByID(ctx, channelID)
		if err != nil {
			return wrapStore(err)
		}
		if ch == nil || ch.IsDeleted {
			return NotFound("CHANNEL_NOT_FOUND", "channel not found")
		}
		serverID = ch.ServerID
		if err := q.Channels.SoftDelete(ctx, channelID); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.emit(ctx, events.TypeChannelDeleted, serverID, "channel", channelID, nil)
}

// PurgeChannel hard-deletes a channel, cascading every override scoped to
// it in the same transaction.
func (c *Coordinator) PurgeChannel(ctx context.Context, channelID int64) error {
	var serverID int64
	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		ch, err := q.Channels.GetByID(ctx, channelID)
		if err != nil {
			return wrapStore(err)
		}
		if ch == nil {
			return NotFound("CHANNEL_NOT_FOUND", "channel not found")
		}
		serverID = ch.ServerID
		if err := q.Overrides.DeleteByScope(ctx, models.ScopeChannel, channelID); err != nil {
			return wrapStore(err)
		}
		if err := q.Channels.HardDelete(ctx, channelID); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.emit(ctx, events.TypeChannelDeleted, serverID, "channel", channelID, nil)
}

// DeleteCategory hard-deletes a category. Its channels move to the server
// root keeping their relative order after the existing root channels, and
// the category's overrides cascade.
func (c *Coordinator) DeleteCategory(ctx context.Context, categoryID int64) error {
	var serverID int64
	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		category, err := q.Categories.GetByID(ctx, categoryID)
		if err != nil {
			return wrapStore(err)
		}
		if category == nil {
			return NotFound("CATEGORY_NOT_FOUND", "category not found")
		}
		serverID = category.ServerID

		root, err := q.Channels.GetSiblings(ctx, serverID, nil, true)
		if err != nil {
			return wrapStore(err)
		}
		detached, err := q.Channels.DetachFromCategory(ctx, categoryID)
		if err != nil {
			return wrapStore(err)
		}

		// Renumber the merged root set: existing root channels first,
		// detached ones appended in their old order.
		merged := append(root, detached...)
		for i, pos := range ordering.Rebalanced(len(merged)) {
			if err := q.Channels.UpdatePosition(ctx, merged[i].ID, nil, pos); err != nil {
				return wrapStore(err)
			}
		}

		if err := q.Overrides.DeleteByScope(ctx, models.ScopeCategory, categoryID); err != nil {
			return wrapStore(err)
		}
		if err := q.Categories.Delete(ctx, categoryID); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.emit(ctx, events.TypeCategoryDeleted, serverID, "category", categoryID, nil)
}

// CreateRole appends a non-default role at the end of the server's role
// list (highest position, highest authority).
func (c *Coordinator) CreateRole(ctx context.Context, serverID int64, name string, color int, isAdmin bool, perms permissions.Set) (*models.Role, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	role := &models.Role{
		ID:          c.sf.Generate().Int64(),
		ServerID:    serverID,
		Name:        name,
		Color:       color,
		IsAdmin:     isAdmin,
		Permissions: perms,
	}

	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		server, err := q.Servers.GetByID(ctx, serverID)
		if err != nil {
			return wrapStore(err)
		}
		if server == nil {
			return NotFound("SERVER_NOT_FOUND", "server not found")
		}

		siblings, err := q.Roles.GetByServerID(ctx, serverID, true)
		if err != nil {
			return wrapStore(err)
		}
		role.Position = ordering.Append(len(siblings))
		if err := q.Roles.Create(ctx, role); err != nil {
			if errors.Is(err, database.ErrDefaultRoleExists) {
				return InvalidState("DUPLICATE_DEFAULT_ROLE", "server already has a default role")
			}
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.emit(ctx, events.TypeRoleCreated, serverID, "role", role.ID, role); err != nil {
		return nil, err
	}
	return role, nil
}

// UpdateRole edits a role's name, color, admin flag, or permission set.
// Nil fields are left unchanged. Position is not editable here; moves go
// through Move.
func (c *Coordinator) UpdateRole(ctx context.Context, roleID int64, name *string, color *int, isAdmin *bool, perms *permissions.Set) (*models.Role, error) {
	var role *models.Role
	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		var err error
		role, err = q.Roles.GetByID(ctx, roleID)
		if err != nil {
			return wrapStore(err)
		}
		if role == nil {
			return NotFound("ROLE_NOT_FOUND", "role not found")
		}

		if name != nil {
			if err := validateName(*name); err != nil {
				return err
			}
			role.Name = *name
		}
		if color != nil {
			role.Color = *color
		}
		if isAdmin != nil {
			role.IsAdmin = *isAdmin
		}
		if perms != nil {
			role.Permissions = *perms
		}

		if err := q.Roles.Update(ctx, role); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.emit(ctx, events.TypeRoleUpdated, role.ServerID, "role", role.ID, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a non-default role, cascading its assignments and
// every override keyed to it in the same transaction.
func (c *Coordinator) DeleteRole(ctx context.Context, roleID int64) error {
	var serverID int64
	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		role, err := q.Roles.GetByID(ctx, roleID)
		if err != nil {
			return wrapStore(err)
		}
		if role == nil {
			return NotFound("ROLE_NOT_FOUND", "role not found")
		}
		if role.IsDefault {
			return InvalidState("DEFAULT_ROLE_PROTECTED", "cannot delete the default role")
		}
		serverID = role.ServerID

		if err := q.Assignments.DeleteByRole(ctx, roleID); err != nil {
			return wrapStore(err)
		}
		if err := q.Overrides.DeleteByRole(ctx, roleID); err != nil {
			return wrapStore(err)
		}
		if err := q.Roles.Delete(ctx, roleID); err != nil {
			if errors.Is(err, database.ErrDefaultRoleDelete) {
				return InvalidState("DEFAULT_ROLE_PROTECTED", "cannot delete the default role")
			}
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.emit(ctx, events.TypeRoleDeleted, serverID, "role", roleID, nil)
}

// AssignRole adds a user to a role. The default role cannot be assigned:
// every member holds it implicitly.
func (c *Coordinator) AssignRole(ctx context.Context, roleID, userID int64) error {
	var serverID int64
	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		role, err := q.Roles.GetByID(ctx, roleID)
		if err != nil {
			return wrapStore(err)
		}
		if role == nil {
			return NotFound("ROLE_NOT_FOUND", "role not found")
		}
		if role.IsDefault {
			return InvalidArgument("DEFAULT_ROLE_IMPLICIT", "the default role is held implicitly and cannot be assigned")
		}
		serverID = role.ServerID
		if err := q.Assignments.Add(ctx, roleID, userID); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.emit(ctx, events.TypeRoleAssigned, serverID, "role", roleID, models.RoleAssignment{RoleID: roleID, UserID: userID})
}

// RevokeRole removes a user from a role.
func (c *Coordinator) RevokeRole(ctx context.Context, roleID, userID int64) error {
	var serverID int64
	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		role, err := q.Roles.GetByID(ctx, roleID)
		if err != nil {
			return wrapStore(err)
		}
		if role == nil {
			return NotFound("ROLE_NOT_FOUND", "role not found")
		}
		serverID = role.ServerID

		held, err := q.Assignments.Exists(ctx, roleID, userID)
		if err != nil {
			return wrapStore(err)
		}
		if !held {
			return NotFound("ASSIGNMENT_NOT_FOUND", "user does not hold this role")
		}
		if err := q.Assignments.Remove(ctx, roleID, userID); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.emit(ctx, events.TypeRoleRevoked, serverID, "role", roleID, models.RoleAssignment{RoleID: roleID, UserID: userID})
}

// scopeServer resolves the server owning a scope, or NotFound.
func scopeServer(ctx context.Context, q *database.Queries, scope models.ScopeKind, scopeID int64) (int64, error) {
	switch scope {
	case models.ScopeCategory:
		category, err := q.Categories.GetByID(ctx, scopeID)
		if err != nil {
			return 0, wrapStore(err)
		}
		if category == nil {
			return 0, NotFound("CATEGORY_NOT_FOUND", "category not found")
		}
		return category.ServerID, nil
	case models.ScopeChannel:
		ch, err := q.Channels.GetByID(ctx, scopeID)
		if err != nil {
			return 0, wrapStore(err)
		}
		if ch == nil || ch.IsDeleted {
			return 0, NotFound("CHANNEL_NOT_FOUND", "channel not found")
		}
		return ch.ServerID, nil
	default:
		return 0, InvalidArgument("INVALID_SCOPE", "unknown scope kind")
	}
}

// UpsertOverride creates or edits the single override for a (scope,
// principal) pair.
func (c *Coordinator) UpsertOverride(ctx context.Context, scope models.ScopeKind, scopeID, principalID int64, isRole bool, perms permissions.Set) (*models.Override, error) {
	override := &models.Override{
		ScopeKind:   scope,
		ScopeID:     scopeID,
		PrincipalID: principalID,
		IsRole:      isRole,
		Permissions: perms,
	}

	var serverID int64
	var created bool
	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		var err error
		serverID, err = scopeServer(ctx, q, scope, scopeID)
		if err != nil {
			return err
		}

		if isRole {
			role, err := q.Roles.GetByID(ctx, principalID)
			if err != nil {
				return wrapStore(err)
			}
			if role == nil || role.ServerID != serverID {
				return NotFound("ROLE_NOT_FOUND", "role not found in this server")
			}
		}

		existing, err := q.Overrides.Get(ctx, scope, scopeID, principalID, isRole)
		if err != nil {
			return wrapStore(err)
		}
		created = existing == nil

		if err := q.Overrides.Upsert(ctx, override); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	typ := events.TypeOverrideUpdated
	if created {
		typ = events.TypeOverrideCreated
	}
	if err := c.emit(ctx, typ, serverID, "override", scopeID, override); err != nil {
		return nil, err
	}
	return override, nil
}

// DeleteOverride removes an override. The default role's override at any
// scope is the scope's baseline and can only be edited, never deleted.
func (c *Coordinator) DeleteOverride(ctx context.Context, scope models.ScopeKind, scopeID, principalID int64, isRole bool) error {
	var serverID int64
	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		var err error
		serverID, err = scopeServer(ctx, q, scope, scopeID)
		if err != nil {
			return err
		}

		if isRole {
			role, err := q.Roles.GetByID(ctx, principalID)
			if err != nil {
				return wrapStore(err)
			}
			if role != nil && role.IsDefault {
				return InvalidState("DEFAULT_OVERRIDE_PROTECTED", "the default role's override can be edited but not deleted")
			}
		}

		existing, err := q.Overrides.Get(ctx, scope, scopeID, principalID, isRole)
		if err != nil {
			return wrapStore(err)
		}
		if existing == nil {
			return NotFound("OVERRIDE_NOT_FOUND", "override not found")
		}
		if err := q.Overrides.Delete(ctx, scope, scopeID, principalID, isRole); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.emit(ctx, events.TypeOverrideDeleted, serverID, "override", scopeID, nil)
}
