package core

import "pkt.systems/conch/schema"

// EventSink receives console events. Events are delivered while the console
// holds its lock, so implementations must not block or call back into the
// console.
type EventSink interface {
	OnConsoleEvent(event schema.ConsoleEvent)
}
