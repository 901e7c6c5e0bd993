package service

import (
	"context"

	"github.com/victorivanov/accord/internal/database"
	"github.com/victorivanov/accord/internal/events"
	"github.com/victorivanov/accord/internal/models"
	"github.com/victorivanov/accord/internal/ordering"
)

// RootParent as a move's newParentID reparents a channel to the server
// root. Snowflake ids are never zero.
const RootParent int64 = 0

// moveResult captures what a move transaction decided, for the event
// emitted after commit.
type moveResult struct {
	serverID    int64
	parentID    *int64
	newPosition int64
	noop        bool
}

// Move repositions a channel, category, or role to newIndex within its
// sibling set. newParentID applies to channels only: nil keeps the current
// parent, a category id moves the channel into that category, and RootParent
// moves it to the server root. Out-of-range indexes clamp. Moving an item to
// the slot it already occupies writes nothing and succeeds.
//
// The sibling set is locked for the duration of the transaction, so moves
// within one parent serialize. A serialization failure retries once with a
// fresh read before surfacing Conflict.
func (c *Coordinator) Move(ctx context.Context, entity EntityType, entityID int64, newParentID *int64, newIndex int) error {
	res, err := c.runMove(ctx, entity, entityID, newParentID, newIndex)
	if err != nil && database.IsSerializationFailure(err) {
		res, err = c.runMove(ctx, entity, entityID, newParentID, newIndex)
	}
	if err != nil {
		if database.IsSerializationFailure(err) {
			return Conflict("CONCURRENT_MOVE", "concurrent modification of the sibling set")
		}
		return err
	}
	if res.noop {
		return nil
	}

	payload := events.PositionChanged{
		EntityType:  string(entity),
		EntityID:    entityID,
		ParentID:    res.parentID,
		NewPosition: res.newPosition,
	}
	return c.emit(ctx, events.TypePositionChanged, res.serverID, string(entity), entityID, payload)
}

func (c *Coordinator) runMove(ctx context.Context, entity EntityType, entityID int64, newParentID *int64, newIndex int) (moveResult, error) {
	var res moveResult
	err := c.store.WithTx(ctx, func(q *database.Queries) error {
		var err error
		switch entity {
		case EntityChannel:
			res, err = moveChannel(ctx, q, entityID, newParentID, newIndex)
		case EntityCategory:
			if newParentID != nil {
				return InvalidArgument("INVALID_PARENT", "categories cannot be reparented")
			}
			res, err = moveCategory(ctx, q, entityID, newIndex)
		case EntityRole:
			if newParentID != nil {
				return InvalidArgument("INVALID_PARENT", "roles cannot be reparented")
			}
			res, err = moveRole(ctx, q, entityID, newIndex)
		default:
			return InvalidArgument("INVALID_ENTITY_TYPE", "unknown entity type")
		}
		return err
	})
	return res, err
}

// applyPlan turns a move plan into a concrete position, renumbering the
// locked sibling set first when the target gap is degenerate. update
// persists one sibling's position; it is also used for the moved item.
func applyPlan(plan ordering.Move, siblingPositions []int64, renumber func(i int, pos int64) error) (int64, error) {
	if plan.Rebalance {
		renumbered := ordering.Rebalanced(len(siblingPositions))
		for i, pos := range renumbered {
			if err := renumber(i, pos); err != nil {
				return 0, err
			}
		}
		plan = ordering.PlanMove(renumbered, nil, plan.Index)
	}
	return ordering.Between(plan.Prev, plan.Next), nil
}

func moveChannel(ctx context.Context, q *database.Queries, channelID int64, newParentID *int64, newIndex int) (moveResult, error) {
	ch, err := q.Channels.GetByID(ctx, channelID)
	if err != nil {
		return moveResult{}, wrapStore(err)
	}
	if ch == nil || ch.IsDeleted {
		return moveResult{}, NotFound("CHANNEL_NOT_FOUND", "channel not found")
	}

	targetParent := ch.CategoryID
	if newParentID != nil {
		if *newParentID == RootParent {
			targetParent = nil
		} else {
			category, err := q.Categories.GetByID(ctx, *newParentID)
			if err != nil {
				return moveResult{}, wrapStore(err)
			}
			if category == nil || category.ServerID != ch.ServerID {
				return moveResult{}, NotFound("CATEGORY_NOT_FOUND", "category not found")
			}
			targetParent = newParentID
		}
	}
	sameParent := equalParent(targetParent, ch.CategoryID)

	siblings, err := q.Channels.GetSiblings(ctx, ch.ServerID, targetParent, true)
	if err != nil {
		return moveResult{}, wrapStore(err)
	}

	others := make([]models.Channel, 0, len(siblings))
	for _, s := range siblings {
		if s.ID != ch.ID {
			others = append(others, s)
		}
	}
	positions := make([]int64, len(others))
	for i, s := range others {
		positions[i] = s.Position
	}

	var current *int64
	if sameParent {
		current = &ch.Position
	}
	plan := ordering.PlanMove(positions, current, newIndex)
	if plan.NoOp {
		return moveResult{noop: true}, nil
	}

	newPos, err := applyPlan(plan, positions, func(i int, pos int64) error {
		if err := q.Channels.UpdatePosition(ctx, others[i].ID, targetParent, pos); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return moveResult{}, err
	}

	if err := q.Channels.UpdatePosition(ctx, ch.ID, targetParent, newPos); err != nil {
		return moveResult{}, wrapStore(err)
	}
	return moveResult{serverID: ch.ServerID, parentID: targetParent, newPosition: newPos}, nil
}

func moveCategory(ctx context.Context, q *database.Queries, categoryID int64, newIndex int) (moveResult, error) {
	category, err := q.Categories.GetByID(ctx, categoryID)
	if err != nil {
		return moveResult{}, wrapStore(err)
	}
	if category == nil {
		return moveResult{}, NotFound("CATEGORY_NOT_FOUND", "category not found")
	}

	siblings, err := q.Categories.GetByServerID(ctx, category.ServerID, true)
	if err != nil {
		return moveResult{}, wrapStore(err)
	}

	others := make([]models.Category, 0, len(siblings))
	for _, s := range siblings {
		if s.ID != category.ID {
			others = append(others, s)
		}
	}
	positions := make([]int64, len(others))
	for i, s := range others {
		positions[i] = s.Position
	}

	plan := ordering.PlanMove(positions, &category.Position, newIndex)
	if plan.NoOp {
		return moveResult{noop: true}, nil
	}

	newPos, err := applyPlan(plan, positions, func(i int, pos int64) error {
		if err := q.Categories.UpdatePosition(ctx, others[i].ID, pos); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return moveResult{}, err
	}

	if err := q.Categories.UpdatePosition(ctx, category.ID, newPos); err != nil {
		return moveResult{}, wrapStore(err)
	}
	return moveResult{serverID: category.ServerID, newPosition: newPos}, nil
}

func moveRole(ctx context.Context, q *database.Queries, roleID int64, newIndex int) (moveResult, error) {
	role, err := q.Roles.GetByID(ctx, roleID)
	if err != nil {
		return moveResult{}, wrapStore(err)
	}
	if role == nil {
		return moveResult{}, NotFound("ROLE_NOT_FOUND", "role not found")
	}

	siblings, err := q.Roles.GetByServerID(ctx, role.ServerID, true)
	if err != nil {
		return moveResult{}, wrapStore(err)
	}

	others := make([]models.Role, 0, len(siblings))
	for _, s := range siblings {
		if s.ID != role.ID {
			others = append(others, s)
		}
	}
	positions := make([]int64, len(others))
	for i, s := range others {
		positions[i] = s.Position
	}

	plan := ordering.PlanMove(positions, &role.Position, newIndex)
	if plan.NoOp {
		return moveResult{noop: true}, nil
	}

	newPos, err := applyPlan(plan, positions, func(i int, pos int64) error {
		if err := q.Roles.UpdatePosition(ctx, others[i].ID, pos); err != nil {
			return wrapStore(err)
		}
		return nil
	})
	if err != nil {
		return moveResult{}, err
	}

	if err := q.Roles.UpdatePosition(ctx, role.ID, newPos); err != nil {
		return moveResult{}, wrapStore(err)
	}
	return moveResult{serverID: role.ServerID, newPosition: newPos}, nil
}

func equalParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
