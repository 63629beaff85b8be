package observability

import "context"

// ObserverFunc adapts a plain function to an Observer.
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// Discard drops every event.
var Discard Observer = ObserverFunc(func(context.Context, Event) {})

// Fanout hands each event to every observer in order.
type Fanout []Observer

// NewFanout returns a Fanout over the non-nil observers.
func NewFanout(observers ...Observer) Fanout {
	f := make(Fanout, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			f = append(f, obs)
		}
	}
	return f
}

func (f Fanout) OnEvent(ctx context.Context, event Event) {
	for _, obs := range f {
		obs.OnEvent(ctx, event)
	}
}
