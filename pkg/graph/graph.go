// Package graph provides the node graph model: typed slots, links,
// floating links and reroutes.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
)

var (
	ErrNodeNotFound    = errors.New("graph: node not found")
	ErrNodeExists      = errors.New("graph: node already exists")
	ErrSlotNotFound    = errors.New("graph: slot not found")
	ErrLinkNotFound    = errors.New("graph: link not found")
	ErrRerouteNotFound = errors.New("graph: reroute not found")
	ErrRerouteExists   = errors.New("graph: reroute already exists")
	ErrRerouteInUse    = errors.New("graph: reroute still carries links")
	ErrRerouteLoop     = errors.New("graph: reroute loop detected")
	ErrTypeMismatch    = errors.New("graph: slot types do not match")
	ErrSelfLink        = errors.New("graph: cannot link a node to itself")
)

// Keep says what happens to a link's reroutes when it is disconnected.
type Keep int

const (
	// KeepNone deletes reroutes left without links.
	KeepNone Keep = iota
	// KeepOutput keeps the chain attached to the output as a floating link.
	KeepOutput
	// KeepInput keeps the chain attached to the input as a floating link.
	KeepInput
)

// ChangeKind identifies a graph change notification.
type ChangeKind int

const (
	NodeAdded ChangeKind = iota
	NodeRemoved
	NodeMoved
	NodeResized
	LinkAdded
	LinkRemoved
	LinkChanged
	RerouteAdded
	RerouteRemoved
	RerouteMoved
	RerouteChanged
)

func (k ChangeKind) String() string {
	switch k {
	case NodeAdded:
		return "node-added"
	case NodeRemoved:
		return "node-removed"
	case NodeMoved:
		return "node-moved"
	case NodeResized:
		return "node-resized"
	case LinkAdded:
		return "link-added"
	case LinkRemoved:
		return "link-removed"
	case LinkChanged:
		return "link-changed"
	case RerouteAdded:
		return "reroute-added"
	case RerouteRemoved:
		return "reroute-removed"
	case RerouteMoved:
		return "reroute-moved"
	case RerouteChanged:
		return "reroute-changed"
	}
	return "unknown"
}

// Change describes one mutation. Exactly one of Node, Link, Reroute is set.
type Change struct {
	Kind    ChangeKind
	Node    *Node
	Link    *Link
	Reroute *Reroute
}

// Link connects an output slot to an input slot. ParentID is the reroute
// nearest the input. A floating link has an empty OriginID or TargetID and
// ends at a reroute.
type Link struct {
	ID         ident.LinkID
	Type       string
	OriginID   ident.NodeID
	OriginSlot int
	TargetID   ident.NodeID
	TargetSlot int
	ParentID   ident.RerouteID

	// Dragging is a render hint set while the link is being moved.
	Dragging bool
}

// IsFloating reports whether one end of the link is detached.
func (l *Link) IsFloating() bool {
	return l.OriginID == "" || l.TargetID == ""
}

// Graph holds nodes, links and reroutes. It is not safe for concurrent use.
type Graph struct {
	metrics Metrics
	matcher TypeMatcher

	nodes         map[ident.NodeID]*Node
	nodeOrder     []ident.NodeID
	links         map[ident.LinkID]*Link
	floatingLinks map[ident.LinkID]*Link
	reroutes      map[ident.RerouteID]*Reroute

	lastLinkID     ident.LinkID
	lastFloatingID ident.LinkID
	lastRerouteID  ident.RerouteID

	watchers []watcher
	nextW    int
}

type watcher struct {
	id int
	fn func(Change)
}

// Option configures a Graph.
type Option func(*Graph)

// WithMetrics sets the slot and widget geometry.
func WithMetrics(m Metrics) Option {
	return func(g *Graph) { g.metrics = m }
}

// WithTypeMatcher sets the slot type compatibility rule.
func WithTypeMatcher(tm TypeMatcher) Option {
	return func(g *Graph) { g.matcher = tm }
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		metrics:       DefaultMetrics(),
		matcher:       DefaultMatcher{},
		nodes:         make(map[ident.NodeID]*Node),
		links:         make(map[ident.LinkID]*Link),
		floatingLinks: make(map[ident.LinkID]*Link),
		reroutes:      make(map[ident.RerouteID]*Reroute),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Metrics returns the slot geometry used by the graph.
func (g *Graph) Metrics() Metrics { return g.metrics }

// Matcher returns the slot type rule.
func (g *Graph) Matcher() TypeMatcher { return g.matcher }

// Watch registers fn for change notifications, which are delivered
// synchronously, and returns a function that removes it.
func (g *Graph) Watch(fn func(Change)) (cancel func()) {
	g.nextW++
	id := g.nextW
	g.watchers = append(g.watchers, watcher{id: id, fn: fn})
	return func() {
		g.watchers = lo.Filter(g.watchers, func(w watcher, _ int) bool { return w.id != id })
	}
}

func (g *Graph) emit(c Change) {
	for _, w := range append([]watcher(nil), g.watchers...) {
		w.fn(c)
	}
}

// AddNode adds a node to the graph.
func (g *Graph) AddNode(n *Node) error {
	if n.ID == "" {
		return fmt.Errorf("node has no id")
	}
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("%w: %q", ErrNodeExists, n.ID)
	}
	n.graph = g
	g.nodes[n.ID] = n
	g.nodeOrder = append(g.nodeOrder, n.ID)
	g.emit(Change{Kind: NodeAdded, Node: n})
	return nil
}

// RemoveNode disconnects every link of a node and removes it.
func (g *Graph) RemoveNode(id ident.NodeID) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	for _, in := range n.Inputs {
		if in.Link != 0 {
			_ = g.RemoveLink(in.Link, KeepNone)
		}
		for _, fid := range append([]ident.LinkID(nil), in.FloatingLinks...) {
			g.RemoveFloatingLink(fid)
		}
	}
	for _, out := range n.Outputs {
		for _, lid := range append([]ident.LinkID(nil), out.Links...) {
			_ = g.RemoveLink(lid, KeepNone)
		}
		for _, fid := range append([]ident.LinkID(nil), out.FloatingLinks...) {
			g.RemoveFloatingLink(fid)
		}
	}
	delete(g.nodes, id)
	g.nodeOrder = lo.Without(g.nodeOrder, id)
	g.emit(Change{Kind: NodeRemoved, Node: n})
	n.graph = nil
	return nil
}

// Node returns a node by id, or nil.
func (g *Graph) Node(id ident.NodeID) *Node {
	return g.nodes[id]
}

// Nodes returns nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Link returns a link by id, or nil.
func (g *Graph) Link(id ident.LinkID) *Link {
	return g.links[id]
}

// Links returns every link ordered by id.
func (g *Graph) Links() []*Link {
	return sortedLinks(g.links)
}

// FloatingLink returns a floating link by id, or nil.
func (g *Graph) FloatingLink(id ident.LinkID) *Link {
	return g.floatingLinks[id]
}

// FloatingLinks returns every floating link ordered by id.
func (g *Graph) FloatingLinks() []*Link {
	return sortedLinks(g.floatingLinks)
}

func sortedLinks(m map[ident.LinkID]*Link) []*Link {
	out := lo.Values(m)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reroute returns a reroute by id, or nil for a missing id or NoReroute.
func (g *Graph) Reroute(id ident.RerouteID) *Reroute {
	return g.reroutes[id]
}

// Reroutes returns every reroute ordered by id.
func (g *Graph) Reroutes() []*Reroute {
	out := lo.Values(g.reroutes)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddReroute creates a reroute with a fresh id.
func (g *Graph) AddReroute(pos geom.Point, parent ident.RerouteID) *Reroute {
	g.lastRerouteID++
	r, _ := g.addReroute(g.lastRerouteID, pos, parent)
	return r
}

// AddRerouteWithID creates a reroute with a caller-chosen id.
func (g *Graph) AddRerouteWithID(id ident.RerouteID, pos geom.Point, parent ident.RerouteID) (*Reroute, error) {
	if id == ident.NoReroute {
		return nil, fmt.Errorf("reroute id must be non-zero")
	}
	if _, ok := g.reroutes[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrRerouteExists, id)
	}
	if id > g.lastRerouteID {
		g.lastRerouteID = id
	}
	return g.addReroute(id, pos, parent)
}

func (g *Graph) addReroute(id ident.RerouteID, pos geom.Point, parent ident.RerouteID) (*Reroute, error) {
	r := &Reroute{ID: id, ParentID: parent, Pos: pos, graph: g}
	g.reroutes[id] = r
	g.emit(Change{Kind: RerouteAdded, Reroute: r})
	return r, nil
}

// InsertReroute adds a reroute on a link, between its current parent and
// its input.
func (g *Graph) InsertReroute(pos geom.Point, linkID ident.LinkID) (*Reroute, error) {
	l, ok := g.links[linkID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrLinkNotFound, linkID)
	}
	r := g.AddReroute(pos, l.ParentID)
	r.LinkIDs = append(r.LinkIDs, l.ID)
	l.ParentID = r.ID
	g.emit(Change{Kind: LinkChanged, Link: l})
	return r, nil
}

// RemoveReroute deletes a reroute that carries no links.
func (g *Graph) RemoveReroute(id ident.RerouteID) error {
	r, ok := g.reroutes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrRerouteNotFound, id)
	}
	if r.TotalLinks() > 0 {
		return fmt.Errorf("%w: %d", ErrRerouteInUse, id)
	}
	g.deleteReroute(r)
	return nil
}

// DissolveReroute removes a reroute from every chain it is part of, joining
// its children and links to its parent.
func (g *Graph) DissolveReroute(id ident.RerouteID) error {
	r, ok := g.reroutes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrRerouteNotFound, id)
	}
	for _, other := range g.Reroutes() {
		if other.ParentID == id {
			other.SetParent(r.ParentID)
		}
	}
	for _, lid := range r.LinkIDs {
		if l := g.links[lid]; l != nil && l.ParentID == id {
			l.ParentID = r.ParentID
			g.emit(Change{Kind: LinkChanged, Link: l})
		}
	}
	for _, fid := range append([]ident.LinkID(nil), r.FloatingLinkIDs...) {
		fl := g.floatingLinks[fid]
		if fl == nil {
			continue
		}
		if fl.ParentID == id {
			fl.ParentID = r.ParentID
		}
		if fl.ParentID == ident.NoReroute {
			g.RemoveFloatingLink(fid)
		}
	}
	g.deleteReroute(r)
	return nil
}

func (g *Graph) deleteReroute(r *Reroute) {
	delete(g.reroutes, r.ID)
	g.emit(Change{Kind: RerouteRemoved, Reroute: r})
}

// RerouteChain returns the reroutes from the chain root (nearest the
// output) to parent. A loop or missing reroute ends the walk and is
// reported as an error.
func (g *Graph) RerouteChain(parent ident.RerouteID) ([]*Reroute, error) {
	var chain []*Reroute
	seen := make(map[ident.RerouteID]bool)
	for id := parent; id != ident.NoReroute; {
		if seen[id] {
			return chain, fmt.Errorf("%w at %d", ErrRerouteLoop, id)
		}
		r, ok := g.reroutes[id]
		if !ok {
			return chain, fmt.Errorf("%w: %d", ErrRerouteNotFound, id)
		}
		seen[id] = true
		chain = append(chain, r)
		id = r.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// LinkReroutes returns the reroutes a link passes through, output side
// first. Broken chains yield the reroutes reached before the break.
func (g *Graph) LinkReroutes(l *Link) []*Reroute {
	chain, _ := g.RerouteChain(l.ParentID)
	return chain
}

// FirstReroute returns the reroute nearest the output on a link's path.
func (g *Graph) FirstReroute(l *Link) *Reroute {
	chain := g.LinkReroutes(l)
	if len(chain) == 0 {
		return nil
	}
	return chain[0]
}

// ConnectSlots links output outIdx of origin to input inIdx of target,
// through the reroute chain ending at parent. A link already in the input
// is disconnected first, keeping its output-side reroutes.
func (g *Graph) ConnectSlots(origin *Node, outIdx int, target *Node, inIdx int, parent ident.RerouteID) (*Link, error) {
	if origin == nil || g.nodes[origin.ID] != origin {
		return nil, fmt.Errorf("%w: origin", ErrNodeNotFound)
	}
	if target == nil || g.nodes[target.ID] != target {
		return nil, fmt.Errorf("%w: target", ErrNodeNotFound)
	}
	if origin == target {
		return nil, fmt.Errorf("%w: %q", ErrSelfLink, origin.ID)
	}
	out := origin.Output(outIdx)
	if out == nil {
		return nil, fmt.Errorf("%w: %q output %d", ErrSlotNotFound, origin.ID, outIdx)
	}
	in := target.Input(inIdx)
	if in == nil {
		return nil, fmt.Errorf("%w: %q input %d", ErrSlotNotFound, target.ID, inIdx)
	}
	if !g.matcher.Match(out.Type, in.Type) {
		return nil, fmt.Errorf("%w: %q -> %q", ErrTypeMismatch, out.Type, in.Type)
	}
	if parent != ident.NoReroute {
		if _, ok := g.reroutes[parent]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrRerouteNotFound, parent)
		}
	}
	chain, err := g.RerouteChain(parent)
	if err != nil {
		return nil, err
	}

	if in.Link != 0 {
		if err := g.RemoveLink(in.Link, KeepOutput); err != nil {
			return nil, err
		}
	}

	g.lastLinkID++
	typ := in.Type
	if typ == "" {
		typ = out.Type
	}
	l := &Link{
		ID:         g.lastLinkID,
		Type:       typ,
		OriginID:   origin.ID,
		OriginSlot: outIdx,
		TargetID:   target.ID,
		TargetSlot: inIdx,
		ParentID:   parent,
	}
	g.links[l.ID] = l
	out.Links = append(out.Links, l.ID)
	in.Link = l.ID

	for _, r := range chain {
		if !lo.Contains(r.LinkIDs, l.ID) {
			r.LinkIDs = append(r.LinkIDs, l.ID)
		}
		r.Floating = nil
		r.Dragging = false
	}
	// A real link through the end of a floating chain replaces the floating link
	if len(chain) > 0 {
		last := chain[len(chain)-1]
		for _, fid := range append([]ident.LinkID(nil), last.FloatingLinkIDs...) {
			if fl := g.floatingLinks[fid]; fl != nil && fl.ParentID == last.ID {
				g.RemoveFloatingLink(fid)
			}
		}
	}

	g.emit(Change{Kind: LinkAdded, Link: l})
	return l, nil
}

// RemoveLink disconnects a link from both slots and its reroutes.
func (g *Graph) RemoveLink(id ident.LinkID, keep Keep) error {
	l, ok := g.links[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrLinkNotFound, id)
	}
	if n := g.nodes[l.OriginID]; n != nil {
		if out := n.Output(l.OriginSlot); out != nil {
			out.Links = lo.Without(out.Links, id)
		}
	}
	if n := g.nodes[l.TargetID]; n != nil {
		if in := n.Input(l.TargetSlot); in != nil && in.Link == id {
			in.Link = 0
		}
	}

	chain := g.LinkReroutes(l)
	var last *Reroute
	if len(chain) > 0 {
		last = chain[len(chain)-1]
	}
	outputFloating := keep == KeepOutput && last != nil && len(last.LinkIDs) == 1 && len(last.FloatingLinkIDs) == 0
	if outputFloating || (keep == KeepInput && last != nil) {
		fl := *l
		fl.Dragging = false
		if keep == KeepInput {
			fl.OriginID, fl.OriginSlot = "", -1
			last.Floating = &Floating{SlotType: ident.Input}
		} else {
			fl.TargetID, fl.TargetSlot = "", -1
			last.Floating = &Floating{SlotType: ident.Output}
		}
		g.addFloatingLink(&fl)
	}

	for _, r := range chain {
		r.LinkIDs = lo.Without(r.LinkIDs, id)
	}
	delete(g.links, id)
	g.emit(Change{Kind: LinkRemoved, Link: l})

	if keep == KeepNone {
		// Children first so a reroute never outlives its parent.
		for i := len(chain) - 1; i >= 0; i-- {
			if chain[i].TotalLinks() == 0 {
				g.deleteReroute(chain[i])
			}
		}
	}
	return nil
}

func (g *Graph) addFloatingLink(fl *Link) {
	g.lastFloatingID++
	fl.ID = g.lastFloatingID
	g.floatingLinks[fl.ID] = fl
	if n := g.nodes[fl.OriginID]; n != nil {
		if out := n.Output(fl.OriginSlot); out != nil {
			out.FloatingLinks = append(out.FloatingLinks, fl.ID)
		}
	}
	if n := g.nodes[fl.TargetID]; n != nil {
		if in := n.Input(fl.TargetSlot); in != nil {
			in.FloatingLinks = append(in.FloatingLinks, fl.ID)
		}
	}
	for _, r := range g.LinkReroutes(fl) {
		r.FloatingLinkIDs = append(r.FloatingLinkIDs, fl.ID)
	}
}

// RemoveFloatingLink deletes a floating link and any reroute it leaves
// empty.
func (g *Graph) RemoveFloatingLink(id ident.LinkID) {
	fl, ok := g.floatingLinks[id]
	if !ok {
		return
	}
	delete(g.floatingLinks, id)
	if n := g.nodes[fl.OriginID]; n != nil {
		if out := n.Output(fl.OriginSlot); out != nil {
			out.FloatingLinks = lo.Without(out.FloatingLinks, id)
		}
	}
	if n := g.nodes[fl.TargetID]; n != nil {
		if in := n.Input(fl.TargetSlot); in != nil {
			in.FloatingLinks = lo.Without(in.FloatingLinks, id)
		}
	}
	chain := g.LinkReroutes(fl)
	for _, r := range chain {
		r.FloatingLinkIDs = lo.Without(r.FloatingLinkIDs, id)
		if len(r.FloatingLinkIDs) == 0 {
			r.Floating = nil
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].TotalLinks() == 0 {
			g.deleteReroute(chain[i])
		}
	}
}

// Validate checks that links, slots and reroutes agree with each other.
func (g *Graph) Validate() error {
	for _, l := range g.Links() {
		origin := g.nodes[l.OriginID]
		if origin == nil || origin.Output(l.OriginSlot) == nil {
			return fmt.Errorf("link %d has no origin slot", l.ID)
		}
		target := g.nodes[l.TargetID]
		if target == nil || target.Input(l.TargetSlot) == nil {
			return fmt.Errorf("link %d has no target slot", l.ID)
		}
		if target.Input(l.TargetSlot).Link != l.ID {
			return fmt.Errorf("link %d not recorded on input %q:%d", l.ID, l.TargetID, l.TargetSlot)
		}
		if !lo.Contains(origin.Output(l.OriginSlot).Links, l.ID) {
			return fmt.Errorf("link %d not recorded on output %q:%d", l.ID, l.OriginID, l.OriginSlot)
		}
		chain, err := g.RerouteChain(l.ParentID)
		if err != nil {
			return fmt.Errorf("link %d: %w", l.ID, err)
		}
		for _, r := range chain {
			if !lo.Contains(r.LinkIDs, l.ID) {
				return fmt.Errorf("link %d passes reroute %d which does not list it", l.ID, r.ID)
			}
		}
	}
	for _, n := range g.Nodes() {
		for i, in := range n.Inputs {
			if in.Link != 0 && g.links[in.Link] == nil {
				return fmt.Errorf("input %q:%d points at missing link %d", n.ID, i, in.Link)
			}
		}
	}
	for _, r := range g.Reroutes() {
		if _, err := r.Chain(); err != nil {
			return err
		}
	}
	return nil
}
