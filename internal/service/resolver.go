package service

import (
	"context"
	"errors"

	"github.com/victorivanov/accord/internal/database"
	"github.com/victorivanov/accord/internal/models"
	"github.com/victorivanov/accord/internal/permissions"
)

// Resolver computes effective permission decisions for a user at channel
// or category scope. It is read-only: it takes no locks and may observe a
// slightly stale snapshot, which is fine because every request re-resolves.
type Resolver struct {
	channels   database.ChannelRepository
	categories database.CategoryRepository
	roles      database.RoleRepository
	overrides  database.OverrideRepository
}

func NewResolver(
	channels database.ChannelRepository,
	categories database.CategoryRepository,
	roles database.RoleRepository,
	overrides database.OverrideRepository,
) *Resolver {
	return &Resolver{
		channels:   channels,
		categories: categories,
		roles:      roles,
		overrides:  overrides,
	}
}

// wrapStore maps a storage error onto the taxonomy. Context cancellation
// passes through so callers see their own deadline, everything else is the
// backing store being unusable.
func wrapStore(err error) error {
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	// Serialization failures pass through raw so the move retry can see them.
	if database.IsSerializationFailure(err) {
		return err
	}
	return Unavailable("STORE_UNAVAILABLE", err.Error())
}

// ResolveChannel returns the effective permission set for a user in a
// channel, folding all five tiers. A user with no assignments resolves
// against the default role alone; a missing or deleted channel is an error.
// Keys left StateDefault are the caller's to treat as denied.
func (r *Resolver) ResolveChannel(ctx context.Context, userID, channelID int64) (permissions.Set, error) {
	ch, err := r.channels.GetByID(ctx, channelID)
	if err != nil {
		return permissions.Set{}, wrapStore(err)
	}
	if ch == nil || ch.IsDeleted {
		return permissions.Set{}, NotFound("CHANNEL_NOT_FOUND", "channel not found")
	}

	memberRoles, err := r.roles.GetByMember(ctx, ch.ServerID, userID)
	if err != nil {
		return permissions.Set{}, wrapStore(err)
	}

	in := permissions.Input{Roles: rolePerms(memberRoles)}

	// Admin short-circuits before any override tier; skip loading them.
	if hasAdmin(memberRoles) {
		return permissions.Resolve(in), nil
	}

	if ch.CategoryID != nil {
		in.CategoryRole, in.CategoryUser, err = r.scopeTiers(ctx, models.ScopeCategory, *ch.CategoryID, userID, memberRoles)
		if err != nil {
			return permissions.Set{}, err
		}
	}
	in.ChannelRole, in.ChannelUser, err = r.scopeTiers(ctx, models.ScopeChannel, channelID, userID, memberRoles)
	if err != nil {
		return permissions.Set{}, err
	}

	return permissions.Resolve(in), nil
}

// ResolveCategory returns the effective permission set at category scope,
// running the server role and category tiers only.
func (r *Resolver) ResolveCategory(ctx context.Context, userID, categoryID int64) (permissions.Set, error) {
	category, err := r.categories.GetByID(ctx, categoryID)
	if err != nil {
		return permissions.Set{}, wrapStore(err)
	}
	if category == nil {
		return permissions.Set{}, NotFound("CATEGORY_NOT_FOUND", "category not found")
	}

	memberRoles, err := r.roles.GetByMember(ctx, category.ServerID, userID)
	if err != nil {
		return permissions.Set{}, wrapStore(err)
	}

	in := permissions.CategoryInput{Roles: rolePerms(memberRoles)}
	if hasAdmin(memberRoles) {
		return permissions.ResolveCategory(in), nil
	}

	roleTier, userTier, err := r.scopeTiers(ctx, models.ScopeCategory, categoryID, userID, memberRoles)
	if err != nil {
		return permissions.Set{}, err
	}
	in.CategoryRole, in.CategoryUser = roleTier, userTier

	return permissions.ResolveCategory(in), nil
}

// scopeTiers loads the overrides at one scope and splits them into the
// role tier (only roles the user holds, carrying each role's server-wide
// position) and the user tier. An absent override contributes nothing,
// which is identical to an all-default one under overlay.
func (r *Resolver) scopeTiers(
	ctx context.Context,
	scope models.ScopeKind,
	scopeID, userID int64,
	memberRoles []models.Role,
) ([]permissions.RolePerms, *permissions.Set, error) {
	overrides, err := r.overrides.GetByScope(ctx, scope, scopeID)
	if err != nil {
		return nil, nil, wrapStore(err)
	}

	positionByRole := make(map[int64]int64, len(memberRoles))
	for _, role := range memberRoles {
		positionByRole[role.ID] = role.Position
	}

	var roleTier []permissions.RolePerms
	var userTier *permissions.Set
	for i := range overrides {
		o := &overrides[i]
		if o.IsRole {
			pos, held := positionByRole[o.PrincipalID]
			if !held {
				continue
			}
			roleTier = append(roleTier, permissions.RolePerms{
				Position: pos,
				Perms:    o.Permissions,
			})
		} else if o.PrincipalID == userID {
			perms := o.Permissions
			userTier = &perms
		}
	}
	return roleTier, userTier, nil
}

func rolePerms(roles []models.Role) []permissions.RolePerms {
	out := make([]permissions.RolePerms, len(roles))
	for i, role := range roles {
		out[i] = permissions.RolePerms{
			Position: role.Position,
			Admin:    role.IsAdmin,
			Perms:    role.Permissions,
		}
	}
	return out
}

func hasAdmin(roles []models.Role) bool {
	for _, role := range roles {
		if role.IsAdmin {
			return true
		}
	}
	return false
}
