package consoles

import (
	"pkt.systems/conch/core"
	"pkt.systems/conch/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnConsoleEvent(event schema.ConsoleEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnConsoleEvent(event)
	}
}
