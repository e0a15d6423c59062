package progress

import "context"

// Sink consumes batches of events. Consume may be called many times; Close is called once
// when the hub shuts down.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events.
type Emitter interface {
	Emit(evt Event)
}
