package core

import "pkt.systems/shotpdf/schema"

// EventSink receives session state transitions.
type EventSink interface {
	OnStateChange(event schema.StateEvent)
}
