// Package events defines the domain-event sink the coordinator publishes
// to. The sink is injected, so the engine holds no process-wide event
// state and tests can capture events with MemorySink.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	TypeServerCreated   Type = "server_created"
	TypeCategoryCreated Type = "category_created"
	TypeCategoryDeleted Type = "category_deleted"
	TypeChannelCreated  Type = "channel_created"
	TypeChannelDeleted  Type = "channel_deleted"
	TypeRoleCreated     Type = "role_created"
	TypeRoleUpdated     Type = "role_updated"
	TypeRoleDeleted     Type = "role_deleted"
	TypeRoleAssigned    Type = "role_assigned"
	TypeRoleRevoked     Type = "role_revoked"
	TypeOverrideCreated Type = "override_created"
	TypeOverrideUpdated Type = "override_updated"
	TypeOverrideDeleted Type = "override_deleted"
	TypePositionChanged Type = "position_changed"
)

// Event is the envelope published on every successful mutation. Payload
// is the affected entity's serialized form.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	ServerID   int64           `json:"server_id,string"`
	EntityType string          `json:"entity_type"`
	EntityID   int64           `json:"entity_id,string"`
	ParentID   *int64          `json:"parent_id,string,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// New builds an event envelope with a fresh id and timestamp. The payload
// entity is serialized immediately; a nil entity leaves the payload empty.
func New(typ Type, serverID int64, entityType string, entityID int64, entity any) (Event, error) {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       typ,
		ServerID:   serverID,
		EntityType: entityType,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
	if entity != nil {
		payload, err := json.Marshal(entity)
		if err != nil {
			return Event{}, err
		}
		ev.Payload = payload
	}
	return ev, nil
}

// PositionChanged is the payload for TypePositionChanged.
type PositionChanged struct {
	EntityType  string `json:"entity_type"`
	EntityID    int64  `json:"entity_id,string"`
	ParentID    *int64 `json:"parent_id,string,omitempty"`
	NewPosition int64  `json:"new_position"`
}

// Sink receives domain events. Emit is called at most once per mutation,
// after the mutation's transaction commits.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}
