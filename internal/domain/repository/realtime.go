package repository

import (
	"context"
	"encoding/json"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
)

// Action is the kind of change carried by a realtime event.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event is one change pushed by the record store. Record holds the full
// record as delivered on the wire.
type Event struct {
	Collection model.Collection `json:"collection"`
	Action     Action           `json:"action"`
	Record     json.RawMessage  `json:"record"`
}

// EventSource delivers realtime change events for one collection. The
// returned channel is closed when the subscription ends; cancelling the
// context unsubscribes. Implementations may be backed by any transport.
type EventSource interface {
	Subscribe(ctx context.Context, collection model.Collection) (<-chan Event, error)
}
