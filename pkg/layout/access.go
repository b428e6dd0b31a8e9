package layout

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
)

// Node returns a copy of a node's layout.
func (s *Store) Node(id ident.NodeID) (NodeLayout, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return NodeLayout{}, false
	}
	return *n, true
}

// Nodes returns every node layout sorted by id.
func (s *Store) Nodes() []NodeLayout {
	out := make([]NodeLayout, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Slot returns a slot's cached layout.
func (s *Store) Slot(key ident.SlotKey) (SlotLayout, bool) {
	sl, ok := s.slots[key.String()]
	if !ok {
		return SlotLayout{}, false
	}
	return *sl, true
}

// SlotsForNode returns the cached slots of a node, inputs first, by index.
func (s *Store) SlotsForNode(id ident.NodeID) []SlotLayout {
	var out []SlotLayout
	for _, sl := range s.slots {
		if sl.Key.Node == id {
			out = append(out, *sl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Kind != out[j].Key.Kind {
			return out[i].Key.Kind < out[j].Key.Kind
		}
		return out[i].Key.Index < out[j].Key.Index
	})
	return out
}

// Link returns a link's layout.
func (s *Store) Link(id ident.LinkID) (LinkLayout, bool) {
	l, ok := s.links[id]
	if !ok {
		return LinkLayout{}, false
	}
	cp := *l
	cp.Segments = append([]ident.SegmentKey(nil), l.Segments...)
	return cp, true
}

// HasLink reports whether a link is known.
func (s *Store) HasLink(id ident.LinkID) bool {
	_, ok := s.links[id]
	return ok
}

// Links returns every link id, sorted.
func (s *Store) Links() []ident.LinkID {
	ids := lo.Keys(s.links)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LinksForNode returns the links whose source or target is the node. It
// scans every link.
func (s *Store) LinksForNode(id ident.NodeID) []ident.LinkID {
	var out []ident.LinkID
	for lid, l := range s.links {
		if l.SourceNode == id || l.TargetNode == id {
			out = append(out, lid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LinksForSlot returns the links attached to one slot.
func (s *Store) LinksForSlot(key ident.SlotKey) []ident.LinkID {
	var out []ident.LinkID
	for lid, l := range s.links {
		if l.SourceKey() == key || l.TargetKey() == key {
			out = append(out, lid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Segments returns the segments of a link from output to input.
func (s *Store) Segments(id ident.LinkID) []LinkSegmentLayout {
	l, ok := s.links[id]
	if !ok {
		return nil
	}
	out := make([]LinkSegmentLayout, 0, len(l.Segments))
	for _, key := range l.Segments {
		out = append(out, *s.segments[key.String()])
	}
	return out
}

// Reroute returns a reroute's layout.
func (s *Store) Reroute(id ident.RerouteID) (RerouteLayout, bool) {
	r, ok := s.reroutes[id]
	if !ok {
		return RerouteLayout{}, false
	}
	return *r, true
}

// Reroutes returns every reroute layout sorted by id.
func (s *Store) Reroutes() []RerouteLayout {
	out := make([]RerouteLayout, 0, len(s.reroutes))
	for _, r := range s.reroutes {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IndexSizes reports how many entries each spatial index holds.
type IndexSizes struct {
	Nodes, Segments, Slots, Reroutes int
}

// IndexSizes returns the entry count of each spatial index.
func (s *Store) IndexSizes() IndexSizes {
	return IndexSizes{
		Nodes:    s.nodeIndex.Len(),
		Segments: s.segmentIndex.Len(),
		Slots:    s.slotIndex.Len(),
		Reroutes: s.rerouteIndex.Len(),
	}
}

// Operations returns the whole log in application order.
func (s *Store) Operations() []Operation {
	return append([]Operation(nil), s.log...)
}

// OperationsSince returns the operations stamped at or after t.
func (s *Store) OperationsSince(t time.Time) []Operation {
	return lo.Filter(s.log, func(op Operation, _ int) bool {
		return !op.Meta().Timestamp.Before(t)
	})
}

// OperationsByActor returns the operations authored by actor.
func (s *Store) OperationsByActor(actor string) []Operation {
	return lo.Filter(s.log, func(op Operation, _ int) bool {
		return op.Meta().Actor == actor
	})
}

// Version counts applied operations.
func (s *Store) Version() uint64 { return s.version }

// CreateNode adds a node.
func (s *Store) CreateNode(id ident.NodeID, pos geom.Point, size geom.Size) error {
	return s.ApplyOperation(&CreateNode{Layout: NodeLayout{ID: id, Position: pos, Size: size}})
}

// DeleteNode removes a node with its slots and links.
func (s *Store) DeleteNode(id ident.NodeID) error {
	return s.ApplyOperation(&DeleteNode{NodeID: id})
}

// SetNodePosition moves a node.
func (s *Store) SetNodePosition(id ident.NodeID, pos geom.Point) error {
	return s.ApplyOperation(&MoveNode{NodeID: id, Position: pos})
}

// SetNodeSize resizes a node.
func (s *Store) SetNodeSize(id ident.NodeID, size geom.Size) error {
	return s.ApplyOperation(&ResizeNode{NodeID: id, Size: size})
}

// SetNodeZIndex changes a node's stacking order.
func (s *Store) SetNodeZIndex(id ident.NodeID, z int) error {
	return s.ApplyOperation(&SetNodeZIndex{NodeID: id, ZIndex: z})
}

// BatchUpdateBounds moves and resizes several nodes as one operation.
func (s *Store) BatchUpdateBounds(bounds map[ident.NodeID]geom.Bounds) error {
	return s.ApplyOperation(&BatchUpdateBounds{Bounds: bounds})
}

// CreateLink records a link from an output slot to an input slot.
func (s *Store) CreateLink(id ident.LinkID, src ident.NodeID, srcSlot int, dst ident.NodeID, dstSlot int, parent ident.RerouteID) error {
	return s.ApplyOperation(&CreateLink{
		LinkID:     id,
		SourceNode: src,
		SourceSlot: srcSlot,
		TargetNode: dst,
		TargetSlot: dstSlot,
		Parent:     parent,
	})
}

// DeleteLink removes a link.
func (s *Store) DeleteLink(id ident.LinkID) error {
	return s.ApplyOperation(&DeleteLink{LinkID: id})
}

// CreateReroute adds a reroute.
func (s *Store) CreateReroute(id ident.RerouteID, pos geom.Point, parent ident.RerouteID) error {
	return s.ApplyOperation(&CreateReroute{RerouteID: id, Position: pos, Parent: parent})
}

// DeleteReroute removes a reroute.
func (s *Store) DeleteReroute(id ident.RerouteID) error {
	return s.ApplyOperation(&DeleteReroute{RerouteID: id})
}

// MoveReroute moves a reroute.
func (s *Store) MoveReroute(id ident.RerouteID, pos geom.Point) error {
	return s.ApplyOperation(&MoveReroute{RerouteID: id, Position: pos})
}
