package shotpdf

import (
	"pkt.systems/shotpdf/core"
	"pkt.systems/shotpdf/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnStateChange(event schema.StateEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnStateChange(event)
	}
}
