package events

import "context"

// Channels
const (
	StreamTx       = "events:tx"
	StreamWorkflow = "events:workflow"
)

// Event types
const (
	EventTxBroadcast     = "tx_broadcast"
	EventWorkflowExpired = "workflow_expired"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
