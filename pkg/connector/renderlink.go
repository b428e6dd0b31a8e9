package connector

import (
	"fmt"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/graph"
	"github.com/ha1tch/graphlink/pkg/ident"
)

// Variant tags the kind of link being dragged.
type Variant int

const (
	// MovingExistingLink drags one end of a committed link.
	MovingExistingLink Variant = iota + 1
	// NewFromOutput is a new link anchored at an output slot.
	NewFromOutput
	// NewFromInput is a new link anchored at an input slot.
	NewFromInput
	// NewFromReroute is a new link branching off a reroute or a link
	// segment, anchored at the origin output.
	NewFromReroute
)

func (v Variant) String() string {
	switch v {
	case MovingExistingLink:
		return "moving-existing-link"
	case NewFromOutput:
		return "new-from-output"
	case NewFromInput:
		return "new-from-input"
	case NewFromReroute:
		return "new-from-reroute"
	}
	return "unknown"
}

// RenderLink describes a link under drag. Node and FromSlotIndex are the
// anchored end: an output when ToType is ident.Input, an input when ToType
// is ident.Output. FromPos and FromDirection are captured when the
// RenderLink is built.
//
// A RenderLink belongs to one connector session and is released on reset;
// every method of a released RenderLink returns a protocol error.
type RenderLink struct {
	Variant       Variant
	ToType        ident.SlotKind
	Node          *graph.Node
	FromSlotIndex int
	FromSlotType  string
	FromPos       geom.Point
	FromDirection geom.Direction
	FromReroute   *graph.Reroute

	// Link is the committed link being moved, for MovingExistingLink.
	Link *graph.Link

	// parent is the reroute nearest the input on the link this RenderLink
	// would create when dropped on an output.
	parent   ident.RerouteID
	graph    *graph.Graph
	released bool
}

// Released reports whether the owning session has ended.
func (rl *RenderLink) Released() bool { return rl.released }

func (rl *RenderLink) release() {
	rl.released = true
	rl.Node = nil
	rl.FromReroute = nil
	rl.Link = nil
}

func (rl *RenderLink) fromRerouteID() ident.RerouteID {
	if rl.FromReroute == nil {
		return ident.NoReroute
	}
	return rl.FromReroute.ID
}

func rerouteOrNil(g *graph.Graph, id ident.RerouteID) *graph.Reroute {
	if id == ident.NoReroute {
		return nil
	}
	return g.Reroute(id)
}

func outputEnd(g *graph.Graph, op string, id ident.NodeID, slot int) (*graph.Node, *graph.Output, error) {
	n := g.Node(id)
	if n == nil {
		return nil, nil, staleError(op, fmt.Sprintf("node %q no longer exists", id), graph.ErrNodeNotFound)
	}
	out := n.Output(slot)
	if out == nil {
		return nil, nil, staleError(op, fmt.Sprintf("node %q has no output %d", id, slot), graph.ErrSlotNotFound)
	}
	return n, out, nil
}

func inputEnd(g *graph.Graph, op string, id ident.NodeID, slot int) (*graph.Node, *graph.Input, error) {
	n := g.Node(id)
	if n == nil {
		return nil, nil, staleError(op, fmt.Sprintf("node %q no longer exists", id), graph.ErrNodeNotFound)
	}
	in := n.Input(slot)
	if in == nil {
		return nil, nil, staleError(op, fmt.Sprintf("node %q has no input %d", id, slot), graph.ErrSlotNotFound)
	}
	return n, in, nil
}

// NewMovingInputLink picks up the input end of l. The output end stays
// anchored, through the reroute nearest the input if there is one.
func NewMovingInputLink(g *graph.Graph, l *graph.Link) (*RenderLink, error) {
	const op = "NewMovingInputLink"
	if l == nil || g.Link(l.ID) != l {
		return nil, staleError(op, "link no longer exists", graph.ErrLinkNotFound)
	}
	if _, _, err := inputEnd(g, op, l.TargetID, l.TargetSlot); err != nil {
		return nil, err
	}
	n, out, err := outputEnd(g, op, l.OriginID, l.OriginSlot)
	if err != nil {
		return nil, err
	}
	rl := &RenderLink{
		Variant:       MovingExistingLink,
		ToType:        ident.Input,
		Node:          n,
		FromSlotIndex: l.OriginSlot,
		FromSlotType:  out.Type,
		FromReroute:   rerouteOrNil(g, l.ParentID),
		Link:          l,
		parent:        l.ParentID,
		graph:         g,
	}
	if rl.FromReroute != nil {
		rl.FromPos, rl.FromDirection = rl.FromReroute.Pos, geom.DirNone
	} else {
		rl.FromPos, rl.FromDirection = n.OutputPos(l.OriginSlot), geom.DirRight
	}
	return rl, nil
}

// NewMovingOutputLink picks up the output end of l. The input end stays
// anchored, through the reroute nearest the output if there is one.
func NewMovingOutputLink(g *graph.Graph, l *graph.Link) (*RenderLink, error) {
	const op = "NewMovingOutputLink"
	if l == nil || g.Link(l.ID) != l {
		return nil, staleError(op, "link no longer exists", graph.ErrLinkNotFound)
	}
	if _, _, err := outputEnd(g, op, l.OriginID, l.OriginSlot); err != nil {
		return nil, err
	}
	n, in, err := inputEnd(g, op, l.TargetID, l.TargetSlot)
	if err != nil {
		return nil, err
	}
	rl := &RenderLink{
		Variant:       MovingExistingLink,
		ToType:        ident.Output,
		Node:          n,
		FromSlotIndex: l.TargetSlot,
		FromSlotType:  in.Type,
		FromReroute:   g.FirstReroute(l),
		Link:          l,
		parent:        l.ParentID,
		graph:         g,
	}
	if rl.FromReroute != nil {
		rl.FromPos, rl.FromDirection = rl.FromReroute.Pos, geom.DirNone
	} else {
		rl.FromPos, rl.FromDirection = n.InputPos(l.TargetSlot), geom.DirLeft
	}
	return rl, nil
}

// NewFromOutputLink starts a new link at output slot of n, optionally
// leaving through reroute.
func NewFromOutputLink(g *graph.Graph, n *graph.Node, slot int, reroute *graph.Reroute) (*RenderLink, error) {
	const op = "NewFromOutputLink"
	if n == nil {
		return nil, staleError(op, "nil node", graph.ErrNodeNotFound)
	}
	_, out, err := outputEnd(g, op, n.ID, slot)
	if err != nil {
		return nil, err
	}
	rl := &RenderLink{
		Variant:       NewFromOutput,
		ToType:        ident.Input,
		Node:          n,
		FromSlotIndex: slot,
		FromSlotType:  out.Type,
		FromReroute:   reroute,
		graph:         g,
	}
	if reroute != nil {
		rl.FromPos, rl.FromDirection = reroute.Pos, geom.DirNone
	} else {
		rl.FromPos, rl.FromDirection = n.OutputPos(slot), geom.DirRight
	}
	return rl, nil
}

// NewFromInputLink starts a new link at input slot of n. parent is the
// reroute nearest the input on the link that will be created; it defaults
// to reroute.
func NewFromInputLink(g *graph.Graph, n *graph.Node, slot int, reroute *graph.Reroute, parent ident.RerouteID) (*RenderLink, error) {
	const op = "NewFromInputLink"
	if n == nil {
		return nil, staleError(op, "nil node", graph.ErrNodeNotFound)
	}
	_, in, err := inputEnd(g, op, n.ID, slot)
	if err != nil {
		return nil, err
	}
	if parent == ident.NoReroute && reroute != nil {
		parent = reroute.ID
	}
	rl := &RenderLink{
		Variant:       NewFromInput,
		ToType:        ident.Output,
		Node:          n,
		FromSlotIndex: slot,
		FromSlotType:  in.Type,
		FromReroute:   reroute,
		parent:        parent,
		graph:         g,
	}
	if reroute != nil {
		rl.FromPos, rl.FromDirection = reroute.Pos, geom.DirNone
	} else {
		rl.FromPos, rl.FromDirection = n.InputPos(slot), geom.DirLeft
	}
	return rl, nil
}

// NewFromRerouteLink starts a new link branching off reroute, fed by output
// slot of n. A nil reroute branches off the first hop of a link.
func NewFromRerouteLink(g *graph.Graph, n *graph.Node, slot int, reroute *graph.Reroute) (*RenderLink, error) {
	rl, err := NewFromOutputLink(g, n, slot, reroute)
	if err != nil {
		return nil, err
	}
	rl.Variant = NewFromReroute
	if reroute == nil {
		rl.FromPos = n.OutputPos(slot)
	}
	rl.FromDirection = geom.DirNone
	return rl, nil
}

func (rl *RenderLink) check(op string, want ident.SlotKind) error {
	if rl.released {
		return protocolError(op, "render link used after its session ended")
	}
	if rl.ToType != want {
		return protocolError(op, fmt.Sprintf("render link connects to an %s, not an %s", rl.ToType, want))
	}
	if rl.graph.Node(rl.Node.ID) != rl.Node {
		return staleError(op, fmt.Sprintf("node %q no longer exists", rl.Node.ID), graph.ErrNodeNotFound)
	}
	return nil
}

// CanConnectToInput reports whether the link may end at input slot of n.
func (rl *RenderLink) CanConnectToInput(n *graph.Node, slot int) bool {
	if rl.released || rl.ToType != ident.Input || n == nil {
		return false
	}
	return rl.Node.CanConnectTo(n, n.Input(slot), rl.Node.Output(rl.FromSlotIndex))
}

// CanConnectToOutput reports whether the link may start at output slot of
// n.
func (rl *RenderLink) CanConnectToOutput(n *graph.Node, slot int) bool {
	if rl.released || rl.ToType != ident.Output || n == nil {
		return false
	}
	return n.CanConnectTo(rl.Node, rl.Node.Input(rl.FromSlotIndex), n.Output(slot))
}

// ConnectToInput commits the link into input slot of n. Dropping a moving
// link back on the input it came from does nothing.
func (rl *RenderLink) ConnectToInput(n *graph.Node, slot int, events *Events) error {
	const op = "ConnectToInput"
	if err := rl.check(op, ident.Input); err != nil {
		return err
	}
	if rl.Variant == MovingExistingLink && rl.Link.TargetID == n.ID && rl.Link.TargetSlot == slot {
		return nil
	}
	if !rl.CanConnectToInput(n, slot) {
		return protocolError(op, fmt.Sprintf("cannot connect %q to %s input %d", rl.FromSlotType, n.ID, slot))
	}
	l, err := rl.graph.ConnectSlots(rl.Node, rl.FromSlotIndex, n, slot, rl.fromRerouteID())
	if err != nil {
		return newError(KindProtocol, op, "connect failed", err)
	}
	rl.emit(events, l, n)
	return nil
}

// ConnectToOutput commits the link from output slot of n. Dropping a
// moving link back on the output it came from does nothing.
func (rl *RenderLink) ConnectToOutput(n *graph.Node, slot int, events *Events) error {
	const op = "ConnectToOutput"
	if err := rl.check(op, ident.Output); err != nil {
		return err
	}
	if rl.Variant == MovingExistingLink && rl.Link.OriginID == n.ID && rl.Link.OriginSlot == slot {
		return nil
	}
	if !rl.CanConnectToOutput(n, slot) {
		return protocolError(op, fmt.Sprintf("cannot connect %s output %d to %q", n.ID, slot, rl.FromSlotType))
	}
	l, err := rl.graph.ConnectSlots(n, slot, rl.Node, rl.FromSlotIndex, rl.parent)
	if err != nil {
		return newError(KindProtocol, op, "connect failed", err)
	}
	rl.emit(events, l, n)
	return nil
}

// ConnectToRerouteInput commits the link into target, an input fed
// through reroute. The reroute is re-parented onto the link's origin
// reroute. originals lists reroute's former ancestors, nearest first;
// those left without links are removed.
func (rl *RenderLink) ConnectToRerouteInput(reroute *graph.Reroute, target graph.TargetInput, events *Events, originals []*graph.Reroute) error {
	const op = "ConnectToRerouteInput"
	if err := rl.check(op, ident.Input); err != nil {
		return err
	}
	if !rl.CanConnectToInput(target.Node, target.Index) {
		return protocolError(op, fmt.Sprintf("cannot connect %q to %s input %d", rl.FromSlotType, target.Node.ID, target.Index))
	}
	noop, err := rl.rerouteInputConflict(op, reroute)
	if err != nil || noop {
		return err
	}
	from := rl.FromReroute
	floatingTerminus := from != nil && from.Floating != nil && from.Floating.SlotType == ident.Output

	// The new chain must be in place for ConnectSlots to walk it.
	prevParent := reroute.ParentID
	reroute.SetParent(rl.fromRerouteID())
	l, err := rl.graph.ConnectSlots(rl.Node, rl.FromSlotIndex, target.Node, target.Index, target.Link.ParentID)
	if err != nil {
		reroute.SetParent(prevParent)
		return newError(KindProtocol, op, "connect failed", err)
	}
	if floatingTerminus {
		from.RemoveAllFloatingLinks()
	}
	for _, r := range originals {
		if from != nil && r.ID == from.ID {
			break
		}
		if rl.graph.Reroute(r.ID) != r {
			continue
		}
		r.RemoveLink(target.Link)
		if r.TotalLinks() == 0 {
			_ = r.Remove()
		}
	}
	rl.emit(events, l, target.Node)
	return nil
}

// ConnectToRerouteOutput commits the link from output slot of n, through
// reroute. The root of the link's own chain is re-parented onto reroute.
func (rl *RenderLink) ConnectToRerouteOutput(reroute *graph.Reroute, n *graph.Node, slot int, events *Events) error {
	const op = "ConnectToRerouteOutput"
	if err := rl.check(op, ident.Output); err != nil {
		return err
	}
	if !rl.CanConnectToOutput(n, slot) {
		return protocolError(op, fmt.Sprintf("cannot connect %s output %d to %q", n.ID, slot, rl.FromSlotType))
	}
	noop, err := rl.rerouteOutputConflict(op, reroute)
	if err != nil || noop {
		return err
	}
	floatingTerminus := reroute.Floating != nil && reroute.Floating.SlotType == ident.Output

	parent := rl.parent
	if rl.FromReroute != nil {
		chain, err := rl.FromReroute.Chain()
		if err != nil {
			return conflictError(op, err.Error())
		}
		chain[0].SetParent(reroute.ID)
	} else {
		parent = reroute.ID
	}
	l, err := rl.graph.ConnectSlots(n, slot, rl.Node, rl.FromSlotIndex, parent)
	if err != nil {
		return newError(KindProtocol, op, "connect failed", err)
	}
	if floatingTerminus {
		reroute.RemoveAllFloatingLinks()
	}
	rl.emit(events, l, n)
	return nil
}

// rerouteInputConflict checks dropping an input-bound link on reroute.
// Dropping on the origin reroute is a no-op; dropping on one of its
// ancestors would close a loop.
func (rl *RenderLink) rerouteInputConflict(op string, reroute *graph.Reroute) (noop bool, err error) {
	from := rl.FromReroute
	if from == nil {
		return false, nil
	}
	if from.ID == reroute.ID {
		return true, nil
	}
	if from.InChain(reroute.ID) {
		return false, conflictError(op, fmt.Sprintf("reroute %d is upstream of reroute %d", reroute.ID, from.ID)).
			WithContext("reroute", reroute.ID).
			WithContext("from", from.ID)
	}
	return false, nil
}

// rerouteOutputConflict checks dropping an output-bound link on reroute.
// The reroute and its ancestors must not already be on the link's path.
func (rl *RenderLink) rerouteOutputConflict(op string, reroute *graph.Reroute) (noop bool, err error) {
	from := rl.FromReroute
	if from == nil {
		return false, nil
	}
	if from.ID == reroute.ID {
		return true, nil
	}
	own, err := rl.graph.RerouteChain(rl.parent)
	if err != nil {
		return false, conflictError(op, err.Error())
	}
	for _, r := range own {
		if reroute.InChain(r.ID) {
			return false, conflictError(op, fmt.Sprintf("reroute %d already lies on the link path", r.ID)).
				WithContext("reroute", reroute.ID).
				WithContext("from", from.ID)
		}
	}
	return false, nil
}

func (rl *RenderLink) emit(events *Events, l *graph.Link, n *graph.Node) {
	if events == nil {
		return
	}
	kind := LinkCreated
	if rl.Variant == MovingExistingLink {
		kind = InputMoved
		if rl.ToType == ident.Output {
			kind = OutputMoved
		}
	}
	events.Dispatch(&Event{Kind: kind, RenderLink: rl, Link: l, Node: n})
}
