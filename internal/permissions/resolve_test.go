package permissions

import "testing"

func mustSet(t *testing.T, states map[Key]State) Set {
	t.Helper()
	s, err := SetOf(states)
	if err != nil {
		t.Fatalf("SetOf: %v", err)
	}
	return s
}

func TestResolve_DefaultRoleOnly(t *testing.T) {
	everyone := RolePerms{
		Position: 0,
		Perms:    mustSet(t, map[Key]State{KeyViewChannel: StateAllowed}),
	}
	out := Resolve(Input{Roles: []RolePerms{everyone}})

	if !out.Allows(KeyViewChannel) {
		t.Error("default role allow should survive with no overrides")
	}
	if out.Allows(KeyManageMessages) {
		t.Error("unset key should not resolve to allowed")
	}
}

func TestResolve_HigherPositionRoleWins(t *testing.T) {
	roles := []RolePerms{
		{Position: 1, Perms: mustSet(t, map[Key]State{KeySendMessages: StateAllowed})},
		{Position: 0, Perms: mustSet(t, map[Key]State{KeySendMessages: StateDenied})},
	}
	out := Resolve(Input{Roles: roles})
	if !out.Allows(KeySendMessages) {
		t.Error("position 1 allow should beat position 0 deny regardless of slice order")
	}

	// Flip the values: higher position denies.
	roles[0].Perms = mustSet(t, map[Key]State{KeySendMessages: StateDenied})
	roles[1].Perms = mustSet(t, map[Key]State{KeySendMessages: StateAllowed})
	out = Resolve(Input{Roles: roles})
	if out.Allows(KeySendMessages) {
		t.Error("position 1 deny should beat position 0 allow")
	}
}

func TestResolve_DefaultValueDoesNotOverwrite(t *testing.T) {
	roles := []RolePerms{
		{Position: 0, Perms: mustSet(t, map[Key]State{KeyViewChannel: StateAllowed})},
		{Position: 5, Perms: NewSet()}, // all default, folds last
	}
	out := Resolve(Input{Roles: roles})
	if !out.Allows(KeyViewChannel) {
		t.Error("an all-default higher role must not erase a lower role's allow")
	}
}

func TestResolve_AdminShortCircuit(t *testing.T) {
	denyEverything := mustSet(t, func() map[Key]State {
		m := make(map[Key]State, len(Keys))
		for _, k := range Keys {
			m[k] = StateDenied
		}
		return m
	}())

	in := Input{
		Roles: []RolePerms{
			{Position: 0, Perms: denyEverything},
			{Position: 1, Admin: true, Perms: NewSet()},
		},
		CategoryRole: []RolePerms{{Position: 0, Perms: denyEverything}},
		CategoryUser: &denyEverything,
		ChannelRole:  []RolePerms{{Position: 0, Perms: denyEverything}},
		ChannelUser:  &denyEverything,
	}
	out := Resolve(in)
	for _, k := range Keys {
		if !out.Allows(k) {
			t.Errorf("admin should resolve %s to allowed despite denies at every tier", k)
		}
	}
}

func TestResolve_ChannelUserOverrideMostSpecific(t *testing.T) {
	allowSend := mustSet(t, map[Key]State{KeySendMessages: StateAllowed})
	denySend := mustSet(t, map[Key]State{KeySendMessages: StateDenied})

	in := Input{
		Roles:        []RolePerms{{Position: 0, Perms: allowSend}},
		CategoryRole: []RolePerms{{Position: 0, Perms: allowSend}},
		CategoryUser: &allowSend,
		ChannelRole:  []RolePerms{{Position: 0, Perms: allowSend}},
		ChannelUser:  &denySend,
	}
	if Resolve(in).Allows(KeySendMessages) {
		t.Error("channel-user deny must beat every earlier tier")
	}

	in.ChannelUser = &allowSend
	in.ChannelRole = []RolePerms{{Position: 0, Perms: denySend}}
	if !Resolve(in).Allows(KeySendMessages) {
		t.Error("channel-user allow must beat channel-role deny")
	}
}

func TestResolve_TierOrdering(t *testing.T) {
	// Each tier flips SEND_MESSAGES; the last applied tier must win at each step.
	allow := mustSet(t, map[Key]State{KeySendMessages: StateAllowed})
	deny := mustSet(t, map[Key]State{KeySendMessages: StateDenied})

	in := Input{Roles: []RolePerms{{Position: 0, Perms: allow}}}
	if !Resolve(in).Allows(KeySendMessages) {
		t.Fatal("tier 1 allow")
	}

	in.CategoryRole = []RolePerms{{Position: 0, Perms: deny}}
	if Resolve(in).Allows(KeySendMessages) {
		t.Fatal("tier 2 deny should overwrite tier 1")
	}

	in.CategoryUser = &allow
	if !Resolve(in).Allows(KeySendMessages) {
		t.Fatal("tier 3 allow should overwrite tier 2")
	}

	in.ChannelRole = []RolePerms{{Position: 0, Perms: deny}}
	if Resolve(in).Allows(KeySendMessages) {
		t.Fatal("tier 4 deny should overwrite tier 3")
	}

	in.ChannelUser = &allow
	if !Resolve(in).Allows(KeySendMessages) {
		t.Fatal("tier 5 allow should overwrite tier 4")
	}
}

func TestResolve_ChannelRoleDenyBeatsServerAllow(t *testing.T) {
	// Server roles: Default(pos 0, VIEW_CHANNEL allowed), Mod(pos 1,
	// MANAGE_MESSAGES allowed). Channel override for Default denies
	// MANAGE_MESSAGES. The channel tier must win.
	in := Input{
		Roles: []RolePerms{
			{Position: 0, Perms: mustSet(t, map[Key]State{KeyViewChannel: StateAllowed})},
			{Position: 1, Perms: mustSet(t, map[Key]State{KeyManageMessages: StateAllowed})},
		},
		ChannelRole: []RolePerms{
			{Position: 0, Perms: mustSet(t, map[Key]State{KeyManageMessages: StateDenied})},
		},
	}
	out := Resolve(in)
	if out.Allows(KeyManageMessages) {
		t.Error("channel-role deny should overwrite the server-tier allow")
	}
	if !out.Allows(KeyViewChannel) {
		t.Error("untouched key should keep its server-tier value")
	}
}

func TestResolveCategory_OmitsChannelTiers(t *testing.T) {
	allow := mustSet(t, map[Key]State{KeySendMessages: StateAllowed})
	deny := mustSet(t, map[Key]State{KeySendMessages: StateDenied})

	out := ResolveCategory(CategoryInput{
		Roles:        []RolePerms{{Position: 0, Perms: allow}},
		CategoryRole: []RolePerms{{Position: 0, Perms: deny}},
	})
	if out.Allows(KeySendMessages) {
		t.Error("category-role deny should apply at category scope")
	}

	out = ResolveCategory(CategoryInput{
		Roles:        []RolePerms{{Position: 0, Perms: deny}},
		CategoryUser: &allow,
	})
	if !out.Allows(KeySendMessages) {
		t.Error("category-user allow should apply at category scope")
	}
}

func TestResolveCategory_AdminShortCircuit(t *testing.T) {
	deny := mustSet(t, map[Key]State{KeyViewChannel: StateDenied})
	out := ResolveCategory(CategoryInput{
		Roles:        []RolePerms{{Position: 0, Admin: true, Perms: NewSet()}},
		CategoryUser: &deny,
	})
	if !out.Allows(KeyViewChannel) {
		t.Error("admin should bypass category overrides")
	}
}
