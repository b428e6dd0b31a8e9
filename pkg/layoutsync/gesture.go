package layoutsync

import (
	"github.com/ha1tch/graphlink/pkg/connector"
	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
)

// Gesture names the connector entry point a pointer-down started.
type Gesture int

const (
	GestureNone Gesture = iota
	GestureNewFromOutput
	GestureNewFromInput
	GestureMoveInput
	GestureMoveOutput
	GestureFreshFromInput
	GestureFromReroute
	GestureFromSegment
	GestureNode
)

func (g Gesture) String() string {
	switch g {
	case GestureNewFromOutput:
		return "new-from-output"
	case GestureNewFromInput:
		return "new-from-input"
	case GestureMoveInput:
		return "move-input"
	case GestureMoveOutput:
		return "move-output"
	case GestureFreshFromInput:
		return "fresh-from-input"
	case GestureFromReroute:
		return "from-reroute"
	case GestureFromSegment:
		return "from-segment"
	case GestureNode:
		return "node"
	default:
		return "none"
	}
}

// Pick decides which gesture a pointer-down at ev.Pos starts, without
// starting it. Slots win over reroutes, reroutes over link segments and
// link segments over node bodies.
//
// On an output, Shift moves the existing links. On a connected input,
// Ctrl+Alt starts a fresh link and anything else moves the link.
func (m *Mirror) Pick(ev connector.PointerEvent) Gesture {
	p := ev.Pos
	if sl, ok := m.store.QuerySlotAtPoint(p); ok {
		n := m.graph.Node(sl.Key.Node)
		if n == nil {
			return GestureNone
		}
		if sl.Key.Kind == ident.Output {
			if out := n.Output(sl.Key.Index); ev.Shift && out != nil && len(out.Links) > 0 {
				return GestureMoveOutput
			}
			return GestureNewFromOutput
		}
		if !n.IsInputConnected(sl.Key.Index) {
			return GestureNewFromInput
		}
		if ev.Ctrl && ev.Alt {
			return GestureFreshFromInput
		}
		return GestureMoveInput
	}
	if m.RerouteOnPos(p.X, p.Y) != nil {
		return GestureFromReroute
	}
	if _, ok := m.SegmentAt(p, m.store.Config().LinkStrokeWidth); ok {
		return GestureFromSegment
	}
	if m.NodeOnPos(p.X, p.Y) != nil {
		return GestureNode
	}
	return GestureNone
}

// Begin picks the gesture at ev.Pos and starts the matching connector
// session. GestureNode and GestureNone start nothing; the caller handles
// node drags itself.
func (m *Mirror) Begin(c *connector.Connector, ev connector.PointerEvent) (Gesture, error) {
	g := m.Pick(ev)
	p := ev.Pos
	switch g {
	case GestureNewFromOutput, GestureNewFromInput, GestureMoveInput, GestureMoveOutput, GestureFreshFromInput:
		sl, _ := m.store.QuerySlotAtPoint(p)
		n := m.graph.Node(sl.Key.Node)
		switch g {
		case GestureNewFromOutput:
			return g, c.DragNewFromOutput(n, sl.Key.Index, nil)
		case GestureNewFromInput:
			return g, c.DragNewFromInput(n, sl.Key.Index, nil)
		case GestureMoveInput:
			return g, c.MoveInputLink(n, sl.Key.Index)
		case GestureMoveOutput:
			return g, c.MoveOutputLink(n, sl.Key.Index)
		default:
			return g, c.DragFreshFromConnectedInput(n, sl.Key.Index)
		}
	case GestureFromReroute:
		return g, c.DragFromReroute(m.RerouteOnPos(p.X, p.Y))
	case GestureFromSegment:
		seg, _ := m.SegmentAt(p, m.store.Config().LinkStrokeWidth)
		return g, c.DragFromLinkSegment(seg)
	}
	return g, nil
}

// SlotAt returns the slot key under p.
func (m *Mirror) SlotAt(p geom.Point) (ident.SlotKey, bool) {
	sl, ok := m.store.QuerySlotAtPoint(p)
	return sl.Key, ok
}
