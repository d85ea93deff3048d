package queue

import "context"

// Job is one registered consumer-side handler.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job handles.
	Type() string

	// Handle processes one message payload.
	Handle(ctx context.Context, payload interface{}) error
}
