package metrics

import (
	"fmt"

	"github.com/kilianp07/rescue/core/factory"
)

var sinkRegistry = factory.NewRegistry[Sink]()

// RegisterSink adds a metrics sink factory identified by name.
func RegisterSink(name string, f factory.Factory[Sink]) error {
	return sinkRegistry.Register(name, f)
}

// NewSink builds the configured sinks. No configuration yields NopSink and a
// single module is returned as is; several are combined with combine.
func NewSink(cfgs []factory.ModuleConfig, combine func(...Sink) Sink) (Sink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	sinks := make([]Sink, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	if combine == nil {
		return nil, fmt.Errorf("%d metrics sinks configured but no combiner given", len(sinks))
	}
	return combine(sinks...), nil
}
