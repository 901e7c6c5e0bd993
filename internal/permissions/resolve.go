package permissions

import "sort"

// RolePerms is one role's contribution to a resolution tier: the role's
// server-wide position (ascending = lowest authority) and the permission
// set attached at that tier.
type RolePerms struct {
	Position int64
	Admin    bool
	Perms    Set
}

// Input carries everything a single resolution needs, already scoped to
// one (user, channel) pair. Roles must include the server's default role;
// the override slices hold only overrides for roles the user actually has.
// Nil user overrides mean no override exists at that scope.
type Input struct {
	Roles        []RolePerms
	CategoryRole []RolePerms
	CategoryUser *Set
	ChannelRole  []RolePerms
	ChannelUser  *Set
}

// CategoryInput is Input truncated to the tiers that apply when resolving
// at category scope.
type CategoryInput struct {
	Roles        []RolePerms
	CategoryRole []RolePerms
	CategoryUser *Set
}

// foldByPosition sorts the tier ascending by role position and overlays
// left to right, so a higher-position role's non-default value wins.
func foldByPosition(base Set, tier []RolePerms) Set {
	sorted := make([]RolePerms, len(tier))
	copy(sorted, tier)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})
	out := base
	for _, rp := range sorted {
		out = Overlay(out, rp.Perms)
	}
	return out
}

// rolesBase folds the server role tier starting from all-default.
// If any role carries the admin flag the whole resolution short-circuits
// to all-allowed; the bool reports that.
func rolesBase(roles []RolePerms) (Set, bool) {
	for _, rp := range roles {
		if rp.Admin {
			return AllAllowed(), true
		}
	}
	return foldByPosition(NewSet(), roles), false
}

// Resolve computes the effective permission set for a channel, applying
// the five tiers from least to most specific:
//
//  1. server roles, folded ascending by position
//  2. category role overrides, folded ascending by position
//  3. category user override
//  4. channel role overrides, folded ascending by position
//  5. channel user override
//
// A role with the admin flag short-circuits to all-allowed before any
// override tier runs. Keys still StateDefault after all tiers are the
// caller's to fail closed on (Set.Allows does exactly that).
func Resolve(in Input) Set {
	result, admin := rolesBase(in.Roles)
	if admin {
		return result
	}

	result = foldByPosition(result, in.CategoryRole)
	if in.CategoryUser != nil {
		result = Overlay(result, *in.CategoryUser)
	}
	result = foldByPosition(result, in.ChannelRole)
	if in.ChannelUser != nil {
		result = Overlay(result, *in.ChannelUser)
	}
	return result
}

// ResolveCategory computes the effective permission set at category scope,
// running only the server role and category tiers.
func ResolveCategory(in CategoryInput) Set {
	result, admin := rolesBase(in.Roles)
	if admin {
		return result
	}

	result = foldByPosition(result, in.CategoryRole)
	if in.CategoryUser != nil {
		result = Overlay(result, *in.CategoryUser)
	}
	return result
}
