package outbox

import (
	"encoding/json"
	"time"
)

// Actor identifies who triggered the event: an operator, an API key or a background job.
type Actor struct {
	ID   string `json:"id"`
	Kind string `json:"kind,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
