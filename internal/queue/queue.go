package queue

import (
	"context"
	"fmt"
)

const (
	// RequestsQueue carries on-demand acquisition run requests.
	RequestsQueue = "acquisition.requests"
	// EventsQueue carries run completion events for downstream consumers.
	EventsQueue = "acquisition.events"
)

// Message is a broker payload that can validate itself.
type Message interface {
	Validate() error
	MessageID() string
}

// Publisher publishes messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg Message) error
	Close() error
}

// RunRequestHandler handles a consumed run request.
type RunRequestHandler func(ctx context.Context, msg RunRequestMessage) error

// Consumer consumes run requests from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler RunRequestHandler) error
	Close() error
}

// DLQName returns the dead-letter queue name, e.g. dlq.acquisition.requests.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// WorkQueueNames returns the queues that get a dead-letter companion.
func WorkQueueNames() []string {
	return []string{RequestsQueue}
}
