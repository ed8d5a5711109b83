package ports

import "context"

// Message is a notification delivered to live subscribers.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}
