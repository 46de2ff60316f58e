package realtime

import (
	"context"
	"encoding/json"
)

const (
	EventMessageCreated = "message.created"
	EventThreadRead     = "thread.read"
)

// Event is the JSON frame pushed to subscribed clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Publisher delivers an event to every live connection of the given users.
type Publisher interface {
	Publish(ctx context.Context, userIDs []uint64, ev Event) error
}

func encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
