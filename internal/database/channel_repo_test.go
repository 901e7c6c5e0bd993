package database

import (
	"context"
	"testing"

	"github.com/victorivanov/accord/internal/models"
)

func TestChannelRepo_CreateAndGet(t *testing.T) {
	pool := testPool(t)
	serverRepo := NewServerRepository(pool)
	repo := NewChannelRepository(pool)
	ctx := context.Background()

	server := createTestServer(t, serverRepo)

	ch := &models.Channel{
		ID:       nextID(),
		ServerID: server.ID,
		Name:     "general",
		Type:     models.ChannelTypeText,
		Position: 0,
	}
	if err := repo.Create(ctx, ch); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("GetByID returned nil after Create")
	}
	if got.Name != "general" || got.CategoryID != nil || got.IsDeleted {
		t.Errorf("got %+v, want root-level live text channel named general", got)
	}
}

func TestChannelRepo_GetSiblings(t *testing.T) {
	pool := testPool(t)
	serverRepo := NewServerRepository(pool)
	categoryRepo := NewCategoryRepository(pool)
	repo := NewChannelRepository(pool)
	ctx := context.Background()

	server := createTestServer(t, serverRepo)
	category := &models.Category{ID: nextID(), ServerID: server.ID, Name: "texts", Position: 0}
	if err := categoryRepo.Create(ctx, category); err != nil {
		t.Fatalf("Create category: %v", err)
	}

	rootA := &models.Channel{ID: nextID(), ServerID: server.ID, Name: "a", Position: 100}
	rootB := &models.Channel{ID: nextID(), ServerID: server.ID, Name: "b", Position: 50}
	inCat := &models.Channel{ID: nextID(), ServerID: server.ID, CategoryID: &category.ID, Name: "c", Position: 0}
	gone := &models.Channel{ID: nextID(), ServerID: server.ID, Name: "d", Position: 200, IsDeleted: true}
	for _, c := range []*models.Channel{rootA, rootB, inCat, gone} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create %s: %v", c.Name, err)
		}
	}

	// Root siblings: ordered by position, no category members, no deleted.
	root, err := repo.GetSiblings(ctx, server.ID, nil, false)
	if err != nil {
		t.Fatalf("GetSiblings root: %v", err)
	}
	if len(root) != 2 || root[0].ID != rootB.ID || root[1].ID != rootA.ID {
		t.Errorf("root siblings = %+v, want [b a] by position", root)
	}

	cat, err := repo.GetSiblings(ctx, server.ID, &category.ID, false)
	if err != nil {
		t.Fatalf("GetSiblings category: %v", err)
	}
	if len(cat) != 1 || cat[0].ID != inCat.ID {
		t.Errorf("category siblings = %+v, want [c]", cat)
	}
}

func TestChannelRepo_DetachFromCategory(t *testing.T) {
	pool := testPool(t)
	serverRepo := NewServerRepository(pool)
	categoryRepo := NewCategoryRepository(pool)
	repo := NewChannelRepository(pool)
	ctx := context.Background()

	server := createTestServer(t, serverRepo)
	category := &models.Category{ID: nextID(), ServerID: server.ID, Name: "texts", Position: 0}
	if err := categoryRepo.Create(ctx, category); err != nil {
		t.Fatalf("Create category: %v", err)
	}

	first := &models.Channel{ID: nextID(), ServerID: server.ID, CategoryID: &category.ID, Name: "a", Position: 0}
	second := &models.Channel{ID: nextID(), ServerID: server.ID, CategoryID: &category.ID, Name: "b", Position: 100}
	for _, c := range []*models.Channel{second, first} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create %s: %v", c.Name, err)
		}
	}

	detached, err := repo.DetachFromCategory(ctx, category.ID)
	if err != nil {
		t.Fatalf("DetachFromCategory: %v", err)
	}
	if len(detached) != 2 || detached[0].ID != first.ID || detached[1].ID != second.ID {
		t.Fatalf("detached = %+v, want [a b] ordered by position", detached)
	}
	for _, c := range detached {
		got, err := repo.GetByID(ctx, c.ID)
		if err != nil || got == nil {
			t.Fatalf("GetByID %d: %v, %v", c.ID, got, err)
		}
		if got.CategoryID != nil {
			t.Errorf("channel %s still has a category after detach", got.Name)
		}
	}
}

func TestChannelRepo_SoftAndHardDelete(t *testing.T) {
	pool := testPool(t)
	serverRepo := NewServerRepository(pool)
	repo := NewChannelRepository(pool)
	ctx := context.Background()

	server := createTestServer(t, serverRepo)
	ch := &models.Channel{ID: nextID(), ServerID: server.ID, Name: "doomed", Position: 0}
	if err := repo.Create(ctx, ch); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.SoftDelete(ctx, ch.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	got, err := repo.GetByID(ctx, ch.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID after soft delete: %v, %v", got, err)
	}
	if !got.IsDeleted {
		t.Error("soft delete should set is_deleted")
	}
	siblings, err := repo.GetSiblings(ctx, server.ID, nil, false)
	if err != nil {
		t.Fatalf("GetSiblings: %v", err)
	}
	if len(siblings) != 0 {
		t.Errorf("soft-deleted channel still in sibling set: %+v", siblings)
	}

	if err := repo.HardDelete(ctx, ch.ID); err != nil {
		t.Fatalf("HardDelete: %v", err)
	}
	got, err = repo.GetByID(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetByID after hard delete: %v", err)
	}
	if got != nil {
		t.Errorf("hard-deleted channel still present: %+v", got)
	}
}
