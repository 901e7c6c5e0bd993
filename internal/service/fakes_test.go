package service

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/victorivanov/accord/internal/database"
	"github.com/victorivanov/accord/internal/models"
)

// memDB is an in-memory implementation of every repository interface, so
// coordinator and resolver logic can be exercised without postgres. WithTx
// runs the body directly: these tests cover decision logic and invariant
// guards, which all run their checks before any write.
type memDB struct {
	servers     map[int64]models.Server
	categories  map[int64]models.Category
	channels    map[int64]models.Channel
	roles       map[int64]models.Role
	assignments map[[2]int64]bool
	overrides   map[string]models.Override
}

func newMemDB() *memDB {
	return &memDB{
		servers:     make(map[int64]models.Server),
		categories:  make(map[int64]models.Category),
		channels:    make(map[int64]models.Channel),
		roles:       make(map[int64]models.Role),
		assignments: make(map[[2]int64]bool),
		overrides:   make(map[string]models.Override),
	}
}

func overrideKey(scope models.ScopeKind, scopeID, principalID int64, isRole bool) string {
	return fmt.Sprintf("%s|%d|%d|%t", scope, scopeID, principalID, isRole)
}

func (m *memDB) queries() *database.Queries {
	return &database.Queries{
		Servers:     (*memServers)(m),
		Categories:  (*memCategories)(m),
		Channels:    (*memChannels)(m),
		Roles:       (*memRoles)(m),
		Assignments: (*memAssignments)(m),
		Overrides:   (*memOverrides)(m),
	}
}

// memStore satisfies TxRunner. failTxs injects failWith into the first
// N transactions to exercise the conflict retry.
type memStore struct {
	db       *memDB
	failTxs  int32
	failWith error
}

func (s *memStore) Queries() *database.Queries { return s.db.queries() }

func (s *memStore) WithTx(_ context.Context, fn func(q *database.Queries) error) error {
	if atomic.LoadInt32(&s.failTxs) > 0 {
		atomic.AddInt32(&s.failTxs, -1)
		return s.failWith
	}
	return fn(s.db.queries())
}

type memServers memDB

func (m *memServers) Create(_ context.Context, server *models.Server) error {
	m.servers[server.ID] = *server
	return nil
}

func (m *memServers) GetByID(_ context.Context, id int64) (*models.Server, error) {
	if s, ok := m.servers[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *memServers) Delete(_ context.Context, id int64) error {
	delete(m.servers, id)
	return nil
}

type memCategories memDB

func (m *memCategories) Create(_ context.Context, category *models.Category) error {
	m.categories[category.ID] = *category
	return nil
}

func (m *memCategories) GetByID(_ context.Context, id int64) (*models.Category, error) {
	if c, ok := m.categories[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *memCategories) GetByServerID(_ context.Context, serverID int64, _ bool) ([]models.Category, error) {
	var out []models.Category
	for _, c := range m.categories {
		if c.ServerID == serverID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memCategories) UpdatePosition(_ context.Context, id, position int64) error {
	c := m.categories[id]
	c.Position = position
	m.categories[id] = c
	return nil
}

func (m *memCategories) Delete(_ context.Context, id int64) error {
	delete(m.categories, id)
	return nil
}

type memChannels memDB

func (m *memChannels) Create(_ context.Context, ch *models.Channel) error {
	m.channels[ch.ID] = *ch
	return nil
}

func (m *memChannels) GetByID(_ context.Context, id int64) (*models.Channel, error) {
	if c, ok := m.channels[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *memChannels) GetSiblings(_ context.Context, serverID int64, categoryID *int64, _ bool) ([]models.Channel, error) {
	var out []models.Channel
	for _, c := range m.channels {
		if c.ServerID != serverID || c.IsDeleted {
			continue
		}
		if sameParent(c.CategoryID, categoryID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (m *memChannels) UpdatePosition(_ context.Context, id int64, categoryID *int64, position int64) error {
	c := m.channels[id]
	c.CategoryID = categoryID
	c.Position = position
	m.channels[id] = c
	return nil
}

func (m *memChannels) DetachFromCategory(_ context.Context, categoryID int64) ([]models.Channel, error) {
	var out []models.Channel
	for id, c := range m.channels {
		if c.CategoryID != nil && *c.CategoryID == categoryID {
			c.CategoryID = nil
			m.channels[id] = c
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memChannels) SoftDelete(_ context.Context, id int64) error {
	c := m.channels[id]
	c.IsDeleted = true
	m.channels[id] = c
	return nil
}

func (m *memChannels) HardDelete(_ context.Context, id int64) error {
	delete(m.channels, id)
	return nil
}

type memRoles memDB

func (m *memRoles) Create(_ context.Context, role *models.Role) error {
	if role.IsDefault {
		for _, r := range m.roles {
			if r.ServerID == role.ServerID && r.IsDefault {
				return database.ErrDefaultRoleExists
			}
		}
	}
	m.roles[role.ID] = *role
	return nil
}

func (m *memRoles) GetByID(_ context.Context, id int64) (*models.Role, error) {
	if r, ok := m.roles[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memRoles) GetByServerID(_ context.Context, serverID int64, _ bool) ([]models.Role, error) {
	var out []models.Role
	for _, r := range m.roles {
		if r.ServerID == serverID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memRoles) GetByMember(_ context.Context, serverID, userID int64) ([]models.Role, error) {
	var out []models.Role
	for _, r := range m.roles {
		if r.ServerID != serverID {
			continue
		}
		if r.IsDefault || m.assignments[[2]int64{r.ID, userID}] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memRoles) Update(_ context.Context, role *models.Role) error {
	existing := m.roles[role.ID]
	existing.Name = role.Name
	existing.Color = role.Color
	existing.IsAdmin = role.IsAdmin
	existing.Permissions = role.Permissions
	m.roles[role.ID] = existing
	return nil
}

func (m *memRoles) UpdatePosition(_ context.Context, id, position int64) error {
	r := m.roles[id]
	r.Position = position
	m.roles[id] = r
	return nil
}

func (m *memRoles) Delete(_ context.Context, id int64) error {
	if r, ok := m.roles[id]; ok && r.IsDefault {
		return database.ErrDefaultRoleDelete
	}
	delete(m.roles, id)
	return nil
}

type memAssignments memDB

func (m *memAssignments) Add(_ context.Context, roleID, userID int64) error {
	m.assignments[[2]int64{roleID, userID}] = true
	return nil
}

func (m *memAssignments) Remove(_ context.Context, roleID, userID int64) error {
	delete(m.assignments, [2]int64{roleID, userID})
	return nil
}

func (m *memAssignments) Exists(_ context.Context, roleID, userID int64) (bool, error) {
	return m.assignments[[2]int64{roleID, userID}], nil
}

func (m *memAssignments) DeleteByRole(_ context.Context, roleID int64) error {
	for key := range m.assignments {
		if key[0] == roleID {
			delete(m.assignments, key)
		}
	}
	return nil
}

type memOverrides memDB

func (m *memOverrides) Get(_ context.Context, scope models.ScopeKind, scopeID, principalID int64, isRole bool) (*models.Override, error) {
	if o, ok := m.overrides[overrideKey(scope, scopeID, principalID, isRole)]; ok {
		return &o, nil
	}
	return nil, nil
}

func (m *memOverrides) GetByScope(_ context.Context, scope models.ScopeKind, scopeID int64) ([]models.Override, error) {
	var out []models.Override
	for _, o := range m.overrides {
		if o.ScopeKind == scope && o.ScopeID == scopeID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOverrides) Upsert(_ context.Context, override *models.Override) error {
	m.overrides[overrideKey(override.ScopeKind, override.ScopeID, override.PrincipalID, override.IsRole)] = *override
	return nil
}

func (m *memOverrides) Delete(_ context.Context, scope models.ScopeKind, scopeID, principalID int64, isRole bool) error {
	delete(m.overrides, overrideKey(scope, scopeID, principalID, isRole))
	return nil
}

func (m *memOverrides) DeleteByScope(_ context.Context, scope models.ScopeKind, scopeID int64) error {
	for key, o := range m.overrides {
		if o.ScopeKind == scope && o.ScopeID == scopeID {
			delete(m.overrides, key)
		}
	}
	return nil
}

func (m *memOverrides) DeleteByRole(_ context.Context, roleID int64) error {
	for key, o := range m.overrides {
		if o.IsRole && o.PrincipalID == roleID {
			delete(m.overrides, key)
		}
	}
	return nil
}
