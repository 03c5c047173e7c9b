package core

import "pkt.systems/pslog"

// ConsoleDeps captures optional dependencies for a console.
type ConsoleDeps struct {
	Runner     Runner
	Dispatcher Dispatcher
	Host       Host
	EventSink  EventSink
	Logger     pslog.Logger
}
