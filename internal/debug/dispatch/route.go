package dispatch

import "github.com/dshills/remotedebug/internal/debug/event"

// route is where a single event goes. It is decided once per event.
type route int

const (
	routeUnrecognized route = iota
	routeListener
	routeStart
	routeDeath
	routeDisconnect
)

func (r route) String() string {
	switch r {
	case routeListener:
		return "listener"
	case routeStart:
		return "start"
	case routeDeath:
		return "death"
	case routeDisconnect:
		return "disconnect"
	default:
		return "unrecognized"
	}
}

// classify decides the route for ev. A registered listener always wins over
// the event kind.
func classify(ev *event.Event, reg *Registry) (route, Listener) {
	if l, ok := reg.Lookup(ev.Request); ok {
		return routeListener, l
	}
	switch ev.Kind {
	case event.VMStart:
		return routeStart, nil
	case event.VMDeath:
		return routeDeath, nil
	case event.VMDisconnect:
		return routeDisconnect, nil
	default:
		return routeUnrecognized, nil
	}
}
