// Package layoutsync keeps a layout store in step with a graph.
//
// Structural changes flow from the graph to the store: nodes, slots, links
// and reroutes are created, moved and deleted as the graph reports them.
// Geometry flows back: node moves and resizes and reroute moves applied to
// the store by other sources are written to the graph once the store
// broadcasts them. Floating links have no layout and are not mirrored.
package layoutsync

import (
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/connector"
	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/graph"
	"github.com/ha1tch/graphlink/pkg/ident"
	"github.com/ha1tch/graphlink/pkg/layout"
)

var _ connector.ItemLocator = (*Mirror)(nil)

// Option configures a Mirror.
type Option func(*Mirror)

// WithLogger sets the logger. The mirror logs under the "sync" name.
func WithLogger(l hclog.Logger) Option {
	return func(m *Mirror) { m.logger = l.Named("sync") }
}

// Mirror binds a graph to a layout store.
type Mirror struct {
	graph  *graph.Graph
	store  *layout.Store
	logger hclog.Logger

	cancels []func()
	syncing bool
}

// Attach loads the graph into the store and starts mirroring. The store's
// existing nodes, slots, links and reroutes are replaced.
func Attach(g *graph.Graph, s *layout.Store, opts ...Option) (*Mirror, error) {
	m := &Mirror{
		graph:  g,
		store:  s,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.Resync(); err != nil {
		return nil, err
	}
	m.cancels = append(m.cancels,
		g.Watch(m.onGraphChange),
		s.OnChange(m.onStoreChange),
	)
	return m, nil
}

// Detach stops mirroring in both directions.
func (m *Mirror) Detach() {
	for _, cancel := range m.cancels {
		cancel()
	}
	m.cancels = nil
}

// Graph returns the mirrored graph.
func (m *Mirror) Graph() *graph.Graph { return m.graph }

// Store returns the layout store.
func (m *Mirror) Store() *layout.Store { return m.store }

// Resync rebuilds the store contents from the graph.
func (m *Mirror) Resync() error {
	nodes := m.graph.Nodes()
	inits := lo.Map(nodes, func(n *graph.Node, _ int) layout.NodeInit {
		return layout.NodeInit{ID: n.ID, Pos: n.Pos, Size: n.Size}
	})
	if err := m.store.Initialize(inits); err != nil {
		return err
	}
	return m.store.Transact(layout.SourceGraph, func() error {
		for _, n := range nodes {
			m.setSlots(n)
		}
		for _, r := range m.reroutesParentsFirst() {
			if err := m.store.CreateReroute(r.ID, r.Pos, r.ParentID); err != nil {
				return err
			}
		}
		for _, l := range m.graph.Links() {
			if err := m.createLink(l); err != nil {
				return err
			}
		}
		m.logger.Debug("resynced", "nodes", len(nodes), "links", len(m.graph.Links()), "reroutes", len(m.graph.Reroutes()))
		return nil
	})
}

func (m *Mirror) reroutesParentsFirst() []*graph.Reroute {
	all := m.graph.Reroutes()
	depth := make(map[ident.RerouteID]int, len(all))
	for _, r := range all {
		chain, _ := m.graph.RerouteChain(r.ParentID)
		depth[r.ID] = len(chain)
	}
	sort.SliceStable(all, func(i, j int) bool { return depth[all[i].ID] < depth[all[j].ID] })
	return all
}

func (m *Mirror) setSlots(n *graph.Node) {
	for i := range n.Inputs {
		m.store.SetSlotLayout(ident.SlotKey{Node: n.ID, Kind: ident.Input, Index: i}, n.InputPos(i))
	}
	for i := range n.Outputs {
		m.store.SetSlotLayout(ident.SlotKey{Node: n.ID, Kind: ident.Output, Index: i}, n.OutputPos(i))
	}
}

func (m *Mirror) createLink(l *graph.Link) error {
	return m.store.CreateLink(l.ID, l.OriginID, l.OriginSlot, l.TargetID, l.TargetSlot, l.ParentID)
}

func (m *Mirror) onGraphChange(c graph.Change) {
	if m.syncing {
		return
	}
	err := m.store.Transact(layout.SourceGraph, func() error {
		return m.apply(c)
	})
	if err != nil {
		m.logger.Warn("mirror failed", "change", c.Kind.String(), "error", err)
	}
}

func (m *Mirror) apply(c graph.Change) error {
	switch c.Kind {
	case graph.NodeAdded:
		if err := m.store.CreateNode(c.Node.ID, c.Node.Pos, c.Node.Size); err != nil {
			return err
		}
		m.setSlots(c.Node)
	case graph.NodeRemoved:
		return m.store.DeleteNode(c.Node.ID)
	case graph.NodeMoved:
		return m.store.SetNodePosition(c.Node.ID, c.Node.Pos)
	case graph.NodeResized:
		return m.store.SetNodeSize(c.Node.ID, c.Node.Size)
	case graph.LinkAdded:
		if c.Link.IsFloating() {
			return nil
		}
		return m.createLink(c.Link)
	case graph.LinkRemoved:
		if c.Link.IsFloating() || !m.store.HasLink(c.Link.ID) {
			return nil
		}
		return m.store.DeleteLink(c.Link.ID)
	case graph.LinkChanged:
		if c.Link.IsFloating() {
			return nil
		}
		if m.store.HasLink(c.Link.ID) {
			if err := m.store.DeleteLink(c.Link.ID); err != nil {
				return err
			}
		}
		return m.createLink(c.Link)
	case graph.RerouteAdded:
		return m.store.CreateReroute(c.Reroute.ID, c.Reroute.Pos, c.Reroute.ParentID)
	case graph.RerouteRemoved:
		return m.store.DeleteReroute(c.Reroute.ID)
	case graph.RerouteMoved:
		return m.store.MoveReroute(c.Reroute.ID, c.Reroute.Pos)
	case graph.RerouteChanged:
		// The store has no re-parent operation.
		if err := m.store.DeleteReroute(c.Reroute.ID); err != nil {
			return err
		}
		return m.store.CreateReroute(c.Reroute.ID, c.Reroute.Pos, c.Reroute.ParentID)
	}
	return nil
}

func (m *Mirror) onStoreChange(c layout.Change) {
	if c.Source == layout.SourceGraph {
		return
	}
	m.syncing = true
	defer func() { m.syncing = false }()

	for _, id := range c.NodeIDs {
		n := m.graph.Node(id)
		nl, ok := m.store.Node(id)
		if n == nil || !ok {
			continue
		}
		n.SetPosition(nl.Position)
		n.SetSize(nl.Size)
	}
	for _, op := range c.Operations {
		if mv, ok := op.(*layout.MoveReroute); ok {
			if r := m.graph.Reroute(mv.RerouteID); r != nil {
				r.Move(mv.Position)
			}
		}
	}
}

// NodeOnPos returns the topmost graph node at (x, y).
func (m *Mirror) NodeOnPos(x, y float64) *graph.Node {
	id, ok := m.store.QueryNodeAtPoint(geom.Point{X: x, Y: y})
	if !ok {
		return nil
	}
	return m.graph.Node(id)
}

// RerouteOnPos returns the reroute at (x, y).
func (m *Mirror) RerouteOnPos(x, y float64) *graph.Reroute {
	r, ok := m.store.QueryRerouteAtPoint(geom.Point{X: x, Y: y})
	if !ok {
		return nil
	}
	return m.graph.Reroute(r.ID)
}

// SegmentAt returns the link segment under p, ready for
// Connector.DragFromLinkSegment. A zero stroke uses the store default.
func (m *Mirror) SegmentAt(p geom.Point, stroke float64) (connector.LinkSegment, bool) {
	hit, ok := m.store.QueryLinkSegmentAtPoint(p, stroke)
	if !ok {
		return connector.LinkSegment{}, false
	}
	l := m.graph.Link(hit.Link)
	if l == nil {
		return connector.LinkSegment{}, false
	}
	origin, ok := m.store.Slot(ident.SlotKey{Node: l.OriginID, Kind: ident.Output, Index: l.OriginSlot})
	if !ok {
		return connector.LinkSegment{}, false
	}
	seg := connector.LinkSegment{
		OriginID:   l.OriginID,
		OriginSlot: l.OriginSlot,
		OriginPos:  origin.Position,
		ParentID:   l.ParentID,
	}
	if hit.Reroute != ident.NoReroute {
		r := m.graph.Reroute(hit.Reroute)
		if r == nil {
			return connector.LinkSegment{}, false
		}
		seg.ParentID = r.ParentID
	}
	return seg, true
}

// Locator returns the mirror as a connector.ItemLocator.
func (m *Mirror) Locator() connector.ItemLocator { return m }
