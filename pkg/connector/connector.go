// Package connector implements the link drag protocol of a node graph
// editor: starting a drag from a slot, reroute or link segment, resolving
// the drop target, and committing the resulting connect, disconnect and
// reroute changes to the graph.
//
// A Connector is either idle or connecting. Every drag-start method fails
// with a protocol error while connecting; DropLinks and Reset return it to
// idle. A Connector is not safe for concurrent use.
package connector

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/graph"
	"github.com/ha1tch/graphlink/pkg/ident"
)

// State is the connector's session state. ConnectingTo is ident.NoSlot
// when idle; the other fields only mean something while connecting.
type State struct {
	ConnectingTo          ident.SlotKind
	Multi                 bool
	DraggingExistingLinks bool
}

// ItemLocator finds what is under a canvas position.
type ItemLocator interface {
	NodeOnPos(x, y float64) *graph.Node
	RerouteOnPos(x, y float64) *graph.Reroute
}

// LinkSegment identifies one drawn hop of a link: the output feeding it and
// the reroute at its output end, or ident.NoReroute for the first hop.
// OriginPos is where the origin output was drawn when the segment was hit.
type LinkSegment struct {
	OriginID   ident.NodeID
	OriginSlot int
	OriginPos  geom.Point
	ParentID   ident.RerouteID
}

// Connector runs link drag sessions against a graph.
type Connector struct {
	graph  *graph.Graph
	logger hclog.Logger
	events *Events

	state       State
	renderLinks []*RenderLink

	draggingLinks    []*graph.Link
	draggingReroutes []*graph.Reroute
	sessionCancels   []func()
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger. The connector logs under the "connector"
// name.
func WithLogger(l hclog.Logger) Option {
	return func(c *Connector) { c.logger = l.Named("connector") }
}

// WithEvents shares an existing dispatcher.
func WithEvents(e *Events) Option {
	return func(c *Connector) { c.events = e }
}

// New creates an idle connector for g.
func New(g *graph.Graph, opts ...Option) *Connector {
	c := &Connector{
		graph:  g,
		logger: hclog.NewNullLogger(),
		events: NewEvents(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the session state.
func (c *Connector) State() State { return c.state }

// IsConnecting reports whether a session is active.
func (c *Connector) IsConnecting() bool { return c.state.ConnectingTo != ident.NoSlot }

// RenderLinks returns the links of the active session. The slice is a
// copy; the RenderLinks themselves are released on reset.
func (c *Connector) RenderLinks() []*RenderLink {
	return append([]*RenderLink(nil), c.renderLinks...)
}

// Events returns the dispatcher.
func (c *Connector) Events() *Events { return c.events }

// Graph returns the graph the connector edits.
func (c *Connector) Graph() *graph.Graph { return c.graph }

func (c *Connector) begin(op string) error {
	if c.IsConnecting() {
		return protocolError(op, "already connecting").WithContext("connectingTo", c.state.ConnectingTo.String())
	}
	return nil
}

func (c *Connector) start(to ident.SlotKind, links ...*RenderLink) {
	c.renderLinks = append(c.renderLinks[:0], links...)
	c.state.ConnectingTo = to
	c.logger.Debug("session started", "to", to, "links", len(links), "variant", links[0].Variant)
}

// listenUntilReset registers a listener removed by the next reset.
func (c *Connector) listenUntilReset(kind EventKind, fn func(*Event)) {
	c.sessionCancels = append(c.sessionCancels, c.events.On(kind, fn))
}

// MoveInputLink picks up the link plugged into input slot of n. If the
// link is reconnected elsewhere, the old link is removed, keeping its
// output-side reroutes. An input holding only a floating link starts a
// drag from that floating chain.
func (c *Connector) MoveInputLink(n *graph.Node, slot int) error {
	const op = "MoveInputLink"
	if err := c.begin(op); err != nil {
		return err
	}
	in := n.Input(slot)
	if in == nil {
		return staleError(op, fmt.Sprintf("node %q has no input %d", n.ID, slot), graph.ErrSlotNotFound)
	}
	if in.Link == 0 {
		for _, id := range in.FloatingLinks {
			if fl := c.graph.FloatingLink(id); fl != nil {
				if r := c.graph.Reroute(fl.ParentID); r != nil {
					return c.DragFromReroute(r)
				}
			}
		}
		return protocolError(op, fmt.Sprintf("input %d of %q is not connected", slot, n.ID))
	}

	link := c.graph.Link(in.Link)
	rl, err := NewMovingInputLink(c.graph, link)
	if err != nil {
		return err
	}
	if !c.events.Dispatch(&Event{Kind: BeforeMoveInput, RenderLink: rl, Link: link, Node: n}) {
		return nil
	}

	link.Dragging = true
	c.draggingLinks = append(c.draggingLinks, link)
	c.start(ident.Input, rl)
	c.state.DraggingExistingLinks = true

	c.listenUntilReset(InputMoved, func(e *Event) {
		if e.RenderLink != rl || c.graph.Link(link.ID) != link {
			return
		}
		if err := c.graph.RemoveLink(link.ID, graph.KeepOutput); err != nil {
			c.logger.Warn("failed to remove moved link", "link", link.ID, "error", err)
		}
	})
	return nil
}

// MoveOutputLink picks up every link leaving output slot of n. Links that
// cannot be picked up are logged and skipped; if none remain the session
// ends immediately.
func (c *Connector) MoveOutputLink(n *graph.Node, slot int) error {
	const op = "MoveOutputLink"
	if err := c.begin(op); err != nil {
		return err
	}
	out := n.Output(slot)
	if out == nil {
		return staleError(op, fmt.Sprintf("node %q has no output %d", n.ID, slot), graph.ErrSlotNotFound)
	}
	if len(out.Links) == 0 {
		return protocolError(op, fmt.Sprintf("output %d of %q has no links", slot, n.ID))
	}

	c.state = State{ConnectingTo: ident.Output, Multi: true, DraggingExistingLinks: true}
	for _, id := range out.Links {
		link := c.graph.Link(id)
		if link == nil {
			c.logger.Warn("skipping stale link", "link", id, "node", n.ID, "output", slot)
			continue
		}
		rl, err := NewMovingOutputLink(c.graph, link)
		if err != nil {
			c.logger.Warn("skipping link", "link", id, "error", err)
			continue
		}
		if !c.events.Dispatch(&Event{Kind: BeforeMoveOutput, RenderLink: rl, Link: link, Node: n}) {
			continue
		}
		if rl.FromReroute != nil {
			rl.FromReroute.Dragging = true
			c.draggingReroutes = append(c.draggingReroutes, rl.FromReroute)
		} else {
			link.Dragging = true
			c.draggingLinks = append(c.draggingLinks, link)
		}
		c.renderLinks = append(c.renderLinks, rl)
	}
	if len(c.renderLinks) == 0 {
		c.Reset(false)
		return nil
	}
	c.logger.Debug("session started", "to", ident.Output, "links", len(c.renderLinks), "variant", MovingExistingLink)
	return nil
}

// DragNewFromOutput starts a new link at output slot of n, optionally
// leaving through reroute.
func (c *Connector) DragNewFromOutput(n *graph.Node, slot int, reroute *graph.Reroute) error {
	const op = "DragNewFromOutput"
	if err := c.begin(op); err != nil {
		return err
	}
	rl, err := NewFromOutputLink(c.graph, n, slot, reroute)
	if err != nil {
		return err
	}
	c.start(ident.Input, rl)
	return nil
}

// DragNewFromInput starts a new link at input slot of n, optionally
// arriving through reroute.
func (c *Connector) DragNewFromInput(n *graph.Node, slot int, reroute *graph.Reroute) error {
	const op = "DragNewFromInput"
	if err := c.begin(op); err != nil {
		return err
	}
	rl, err := NewFromInputLink(c.graph, n, slot, reroute, ident.NoReroute)
	if err != nil {
		return err
	}
	c.start(ident.Output, rl)
	return nil
}

// DragFreshFromConnectedInput starts a new link at an input that already
// holds one. The existing link is disconnected at both ends first.
func (c *Connector) DragFreshFromConnectedInput(n *graph.Node, slot int) error {
	const op = "DragFreshFromConnectedInput"
	if err := c.begin(op); err != nil {
		return err
	}
	if n.Input(slot) == nil {
		return staleError(op, fmt.Sprintf("node %q has no input %d", n.ID, slot), graph.ErrSlotNotFound)
	}
	if err := n.DisconnectInput(slot, false); err != nil {
		return newError(KindStaleReference, op, "disconnect failed", err)
	}
	return c.DragNewFromInput(n, slot, nil)
}

// DragFromReroute starts a new link branching off reroute, fed by the
// output its first link comes from. A floating chain attached only to an
// input starts an output-bound drag from that input instead.
func (c *Connector) DragFromReroute(reroute *graph.Reroute) error {
	const op = "DragFromReroute"
	if err := c.begin(op); err != nil {
		return err
	}
	if reroute == nil || c.graph.Reroute(reroute.ID) != reroute {
		return staleError(op, "reroute no longer exists", graph.ErrRerouteNotFound)
	}

	link := reroute.FirstLink()
	if link == nil {
		link = reroute.FirstFloatingLink()
		if link == nil {
			return staleError(op, fmt.Sprintf("reroute %d carries no links", reroute.ID), graph.ErrLinkNotFound)
		}
		if link.OriginID == "" {
			n, _, err := inputEnd(c.graph, op, link.TargetID, link.TargetSlot)
			if err != nil {
				return err
			}
			rl, err := NewFromInputLink(c.graph, n, link.TargetSlot, reroute, link.ParentID)
			if err != nil {
				return err
			}
			c.start(ident.Output, rl)
			return nil
		}
	}

	n, _, err := outputEnd(c.graph, op, link.OriginID, link.OriginSlot)
	if err != nil {
		return err
	}
	rl, err := NewFromRerouteLink(c.graph, n, link.OriginSlot, reroute)
	if err != nil {
		return err
	}
	c.start(ident.Input, rl)
	return nil
}

// DragFromLinkSegment starts a new link branching off a drawn link
// segment. The origin output is found again by hit-testing the origin
// node at seg.OriginPos; a node that has moved or lost the slot since the
// hit is a stale reference.
func (c *Connector) DragFromLinkSegment(seg LinkSegment) error {
	const op = "DragFromLinkSegment"
	if err := c.begin(op); err != nil {
		return err
	}
	n := c.graph.Node(seg.OriginID)
	if n == nil {
		return staleError(op, fmt.Sprintf("node %q no longer exists", seg.OriginID), graph.ErrNodeNotFound)
	}
	slot, ok := n.GetOutputOnPos(seg.OriginPos)
	if !ok || slot != seg.OriginSlot {
		return staleError(op, fmt.Sprintf("node %q has no output %d at %v", n.ID, seg.OriginSlot, seg.OriginPos), graph.ErrSlotNotFound)
	}
	var reroute *graph.Reroute
	if seg.ParentID != ident.NoReroute {
		if reroute = c.graph.Reroute(seg.ParentID); reroute == nil {
			return staleError(op, fmt.Sprintf("reroute %d no longer exists", seg.ParentID), graph.ErrRerouteNotFound)
		}
	}
	rl, err := NewFromRerouteLink(c.graph, n, slot, reroute)
	if err != nil {
		return err
	}
	c.start(ident.Input, rl)
	return nil
}

// DropLinks ends the session at the pointer position: on a node, else on a
// reroute, else on empty canvas. Canceling before-drop-links skips the
// drop itself; after-drop-links is dispatched either way and the session
// is always reset afterwards.
func (c *Connector) DropLinks(locator ItemLocator, ev PointerEvent) error {
	if !c.IsConnecting() {
		c.Reset(false)
		return nil
	}
	defer c.Reset(false)

	var err error
	if c.events.Dispatch(&Event{Kind: BeforeDropLinks, Pointer: ev}) {
		if n := locator.NodeOnPos(ev.Pos.X, ev.Pos.Y); n != nil {
			err = c.DropOnNode(n, ev)
		} else if r := locator.RerouteOnPos(ev.Pos.X, ev.Pos.Y); r != nil {
			err = c.DropOnReroute(r, ev)
		} else {
			err = c.DropOnNothing(ev)
		}
	}
	c.events.Dispatch(&Event{Kind: AfterDropLinks, Pointer: ev})
	return err
}

// DropOnNode connects the session's links to a slot of n under the
// pointer, or to the first compatible slot when dropped on the body.
func (c *Connector) DropOnNode(n *graph.Node, ev PointerEvent) error {
	if !c.events.Dispatch(&Event{Kind: DroppedOnNode, Node: n, Pointer: ev}) {
		return nil
	}
	if lo.EveryBy(c.renderLinks, func(rl *RenderLink) bool { return rl.Node == n }) {
		return nil
	}

	switch c.state.ConnectingTo {
	case ident.Output:
		if slot, ok := n.GetOutputOnPos(ev.Pos); ok {
			return c.dropOnOutput(n, slot)
		}
	case ident.Input:
		if slot, ok := n.GetInputOnPos(ev.Pos); ok {
			return c.dropOnInput(n, slot)
		}
		if w, ok := n.GetWidgetOnPos(ev.Pos); ok {
			if _, ok := n.InputForWidget(w); ok {
				c.events.Dispatch(&Event{Kind: DroppedOnWidget, Node: n, Widget: w, Pointer: ev})
				return nil
			}
		}
	}
	c.dropOnNodeBackground(n)
	return nil
}

func (c *Connector) dropOnInput(n *graph.Node, slot int) error {
	var firstErr error
	for _, rl := range c.renderLinks {
		if !rl.CanConnectToInput(n, slot) {
			continue
		}
		if err := rl.ConnectToInput(n, slot, c.events); err != nil {
			c.logger.Warn("connect to input failed", "node", n.ID, "input", slot, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *Connector) dropOnOutput(n *graph.Node, slot int) error {
	var firstErr error
	for _, rl := range c.renderLinks {
		if !rl.CanConnectToOutput(n, slot) {
			continue
		}
		if err := rl.ConnectToOutput(n, slot, c.events); err != nil {
			c.logger.Warn("connect to output failed", "node", n.ID, "output", slot, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// dropOnNodeBackground matches each link to the first compatible slot of
// n by type. Misses are logged and skipped.
func (c *Connector) dropOnNodeBackground(n *graph.Node) {
	for _, rl := range c.renderLinks {
		if rl.Node == n {
			c.logger.Debug("skipping drop on own node", "node", n.ID)
			continue
		}
		var err error
		switch rl.ToType {
		case ident.Input:
			slot, ok := n.FindInputByType(rl.FromSlotType)
			if !ok || !rl.CanConnectToInput(n, slot) {
				c.logger.Warn("no compatible input", "node", n.ID, "type", rl.FromSlotType)
				continue
			}
			err = rl.ConnectToInput(n, slot, c.events)
		case ident.Output:
			slot, ok := n.FindOutputByType(rl.FromSlotType)
			if !ok || !rl.CanConnectToOutput(n, slot) {
				c.logger.Warn("no compatible output", "node", n.ID, "type", rl.FromSlotType)
				continue
			}
			err = rl.ConnectToOutput(n, slot, c.events)
		}
		if err != nil {
			c.logger.Warn("background drop failed", "node", n.ID, "error", err)
		}
	}
}

// DropOnReroute connects the session's links through reroute. Input-bound
// sessions must hold exactly one link. Reroute loops are detected before
// anything is written.
func (c *Connector) DropOnReroute(reroute *graph.Reroute, ev PointerEvent) error {
	const op = "DropOnReroute"
	if !c.events.Dispatch(&Event{Kind: DroppedOnReroute, Reroute: reroute, Pointer: ev}) {
		return nil
	}

	if c.state.ConnectingTo == ident.Input {
		if len(c.renderLinks) != 1 {
			return protocolError(op, fmt.Sprintf("cannot connect %d input links to a reroute", len(c.renderLinks)))
		}
		return c.connectToRerouteInputs(op, reroute, c.renderLinks[0])
	}

	node, slot, ok := reroute.FindSourceOutput()
	if !ok {
		return nil
	}
	var todo []*RenderLink
	for _, rl := range c.renderLinks {
		if rl.ToType != ident.Output || !rl.CanConnectToOutput(node, slot) {
			continue
		}
		noop, err := rl.rerouteOutputConflict(op, reroute)
		if err != nil {
			return err
		}
		if !noop {
			todo = append(todo, rl)
		}
	}
	var firstErr error
	for _, rl := range todo {
		if err := rl.ConnectToRerouteOutput(reroute, node, slot, c.events); err != nil {
			c.logger.Warn("connect through reroute failed", "reroute", reroute.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *Connector) connectToRerouteInputs(op string, reroute *graph.Reroute, rl *RenderLink) error {
	targets := reroute.FindTargetInputs()
	if len(targets) == 0 {
		return nil
	}
	chain, err := reroute.Chain()
	if err != nil {
		return newError(KindStructuralConflict, op, "reroute loop detected", err)
	}
	originals := lo.Reverse(append([]*graph.Reroute(nil), chain[:len(chain)-1]...))

	noop, err := rl.rerouteInputConflict(op, reroute)
	if err != nil || noop {
		return err
	}

	targets = lo.Filter(targets, func(t graph.TargetInput, _ int) bool {
		if rl.Variant == MovingExistingLink && (rl.Link.ParentID == reroute.ID || rl.Link.ID == t.Link.ID) {
			return false
		}
		return rl.CanConnectToInput(t.Node, t.Index)
	})
	for _, t := range targets {
		if err := rl.ConnectToRerouteInput(reroute, t, c.events, originals); err != nil {
			return err
		}
	}
	return nil
}

// DropOnNothing handles a release over empty canvas. Moved links are
// disconnected; new links are discarded.
func (c *Connector) DropOnNothing(ev PointerEvent) error {
	if !c.events.Dispatch(&Event{Kind: DroppedOnCanvas, Pointer: ev}) {
		return nil
	}
	for _, rl := range c.renderLinks {
		if rl.Variant != MovingExistingLink || c.graph.Link(rl.Link.ID) != rl.Link {
			continue
		}
		keep := graph.KeepOutput
		if rl.ToType == ident.Output {
			keep = graph.KeepInput
		}
		if err := c.graph.RemoveLink(rl.Link.ID, keep); err != nil {
			c.logger.Warn("failed to disconnect dropped link", "link", rl.Link.ID, "error", err)
		}
	}
	return nil
}

// Reset ends the session. It does nothing when idle unless force is set.
// Listeners see the reset event before any cleanup.
func (c *Connector) Reset(force bool) {
	if !c.IsConnecting() && !force {
		return
	}
	c.events.Dispatch(&Event{Kind: SessionReset})

	for _, cancel := range c.sessionCancels {
		cancel()
	}
	c.sessionCancels = nil

	for _, l := range c.draggingLinks {
		l.Dragging = false
	}
	for _, r := range c.draggingReroutes {
		r.Dragging = false
	}
	c.draggingLinks = nil
	c.draggingReroutes = nil

	for i, rl := range c.renderLinks {
		rl.release()
		c.renderLinks[i] = nil
	}
	c.renderLinks = c.renderLinks[:0]
	c.state = State{}
	c.logger.Debug("session reset", "forced", force)
}
