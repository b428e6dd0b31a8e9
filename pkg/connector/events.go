package connector

import (
	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/graph"
)

// EventKind names a connector event.
type EventKind string

const (
	BeforeMoveInput  EventKind = "before-move-input"
	BeforeMoveOutput EventKind = "before-move-output"
	BeforeDropLinks  EventKind = "before-drop-links"
	AfterDropLinks   EventKind = "after-drop-links"
	DroppedOnNode    EventKind = "dropped-on-node"
	DroppedOnReroute EventKind = "dropped-on-reroute"
	DroppedOnCanvas  EventKind = "dropped-on-canvas"
	DroppedOnWidget  EventKind = "dropped-on-widget"
	InputMoved       EventKind = "input-moved"
	OutputMoved      EventKind = "output-moved"
	LinkCreated      EventKind = "link-created"
	SessionReset     EventKind = "reset"
)

// PointerEvent is a pointer position in canvas space with modifier keys.
type PointerEvent struct {
	Pos   geom.Point
	Shift bool
	Ctrl  bool
	Alt   bool
}

// Event is delivered to listeners. Fields not relevant to the kind are
// zero.
type Event struct {
	Kind       EventKind
	RenderLink *RenderLink
	Link       *graph.Link
	Node       *graph.Node
	Reroute    *graph.Reroute
	Widget     *graph.Widget
	Pointer    PointerEvent

	prevented bool
}

// PreventDefault cancels the action that follows the event, where the
// event is cancelable.
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.prevented }

type listener struct {
	id int
	fn func(*Event)
}

// Events is a synchronous dispatcher keyed by event kind.
type Events struct {
	listeners map[EventKind][]listener
	next      int
}

// NewEvents creates an empty dispatcher.
func NewEvents() *Events {
	return &Events{listeners: make(map[EventKind][]listener)}
}

// On registers fn for kind and returns a function that removes it.
func (e *Events) On(kind EventKind, fn func(*Event)) (cancel func()) {
	e.next++
	id := e.next
	e.listeners[kind] = append(e.listeners[kind], listener{id: id, fn: fn})
	return func() {
		e.listeners[kind] = lo.Filter(e.listeners[kind], func(l listener, _ int) bool { return l.id != id })
	}
}

// Dispatch calls every listener for ev.Kind in registration order and
// reports whether the default action may continue.
func (e *Events) Dispatch(ev *Event) bool {
	for _, l := range append([]listener(nil), e.listeners[ev.Kind]...) {
		l.fn(ev)
	}
	return !ev.prevented
}
