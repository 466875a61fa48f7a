package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event. Scheduler-driven events carry
// the "system" role and no user.
type ActorRef struct {
	UserID       *uuid.UUID `json:"userId,omitempty"`
	RestaurantID *uuid.UUID `json:"restaurantId,omitempty"`
	Role         string     `json:"role,omitempty"`
}

// SystemActor is attached to events emitted by background jobs.
var SystemActor = &ActorRef{Role: "system"}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
