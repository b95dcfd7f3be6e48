package core

import "context"

// Frame is a raw signaling payload.
type Frame []byte

// SignalTransport abstracts the duplex signaling channel.
// Owned by the adapter; the adapter must Disconnect() it.
type SignalTransport interface {
	Send(ctx context.Context, f Frame) error
}

// Emitter sends typed protocol events to a remote participant.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// Dispatcher accepts decoded inbound events. Dispatch must not block.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event)
}
