package entities

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ChangeKind represents what happened to an entity
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// EntityChangeEvent announces that the source of truth changed. Lists holding the
// family refetch when they see one.
type EntityChangeEvent struct {
	ID        string     `json:"id"`
	Family    Family     `json:"family"`
	Kind      ChangeKind `json:"kind"`
	EntityID  int64      `json:"entity_id"`
	ParentID  int64      `json:"parent_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewEntityChangeEvent creates a new change event with a time-ordered id
func NewEntityChangeEvent(family Family, kind ChangeKind, entityID, parentID int64) *EntityChangeEvent {
	now := time.Now()
	return &EntityChangeEvent{
		ID:        ulid.Make().String(),
		Family:    family,
		Kind:      kind,
		EntityID:  entityID,
		ParentID:  parentID,
		Timestamp: now,
	}
}
