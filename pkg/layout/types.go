package layout

import (
	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
)

// Source records which subsystem authored an operation.
type Source string

const (
	SourceCanvas   Source = "canvas"
	SourceUI       Source = "ui"
	SourceExternal Source = "external"
	SourceGraph    Source = "graph"
)

// NodeLayout is the canonical geometry of a node. Position is the top-left
// of the node body; Bounds also covers the title bar above it. Hidden nodes
// are kept and indexed but never returned by hit-tests.
type NodeLayout struct {
	ID       ident.NodeID
	Position geom.Point
	Size     geom.Size
	ZIndex   int
	Hidden   bool
	Bounds   geom.Bounds
}

// NodeInit is one entry of the initial node list.
type NodeInit struct {
	ID   ident.NodeID
	Pos  geom.Point
	Size geom.Size
}

// SlotLayout is the cached geometry of one slot.
type SlotLayout struct {
	Key      ident.SlotKey
	Position geom.Point
	Bounds   geom.Bounds
}

// LinkLayout records a link's endpoints and the union of its segments.
type LinkLayout struct {
	ID         ident.LinkID
	SourceNode ident.NodeID
	SourceSlot int
	TargetNode ident.NodeID
	TargetSlot int
	Parent     ident.RerouteID
	Bounds     geom.Bounds
	Centroid   geom.Point
	Segments   []ident.SegmentKey
}

// SourceKey returns the output slot the link leaves from.
func (l LinkLayout) SourceKey() ident.SlotKey {
	return ident.SlotKey{Node: l.SourceNode, Kind: ident.Output, Index: l.SourceSlot}
}

// TargetKey returns the input slot the link enters.
func (l LinkLayout) TargetKey() ident.SlotKey {
	return ident.SlotKey{Node: l.TargetNode, Kind: ident.Input, Index: l.TargetSlot}
}

// LinkSegmentLayout is one hop of a link: from the previous reroute (or the
// source slot) to Key.Reroute (or the target slot for the final hop).
type LinkSegmentLayout struct {
	Key      ident.SegmentKey
	Path     []geom.Point
	Bounds   geom.Bounds
	Centroid geom.Point
}

// RerouteLayout is the cached geometry of a reroute.
type RerouteLayout struct {
	ID       ident.RerouteID
	Parent   ident.RerouteID
	Position geom.Point
	Radius   float64
	Bounds   geom.Bounds
}

// SegmentHit is the result of a link hit-test.
type SegmentHit struct {
	Link     ident.LinkID
	Reroute  ident.RerouteID
	Distance float64
}

// Items groups everything found by QueryItemsInBounds.
type Items struct {
	Nodes    []ident.NodeID
	Links    []ident.LinkID
	Slots    []ident.SlotKey
	Reroutes []ident.RerouteID
}

// ChangeType summarises a change notification.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Change is broadcast once per transaction.
type Change struct {
	Type       ChangeType
	Operations []Operation
	NodeIDs    []ident.NodeID
	Source     Source
	Actor      string
	Version    uint64
}
