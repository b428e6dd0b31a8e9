package layout

import (
	"time"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
)

// OpKind names an operation.
type OpKind string

const (
	KindMoveNode          OpKind = "moveNode"
	KindResizeNode        OpKind = "resizeNode"
	KindSetNodeZIndex     OpKind = "setNodeZIndex"
	KindCreateNode        OpKind = "createNode"
	KindDeleteNode        OpKind = "deleteNode"
	KindBatchUpdateBounds OpKind = "batchUpdateBounds"
	KindCreateLink        OpKind = "createLink"
	KindDeleteLink        OpKind = "deleteLink"
	KindCreateReroute     OpKind = "createReroute"
	KindDeleteReroute     OpKind = "deleteReroute"
	KindMoveReroute       OpKind = "moveReroute"
)

// OpMeta is the provenance carried by every operation. Empty fields are
// filled in by the store when the operation is applied.
type OpMeta struct {
	ID        string
	Timestamp time.Time
	Source    Source
	Actor     string
}

// Meta returns the operation metadata.
func (m *OpMeta) Meta() *OpMeta { return m }

// Operation is a journaled layout mutation.
type Operation interface {
	Kind() OpKind
	Meta() *OpMeta
	// Nodes lists the nodes whose layout the operation touches.
	Nodes() []ident.NodeID
}

// MoveNode sets a node's position. Previous is recorded when applied.
type MoveNode struct {
	OpMeta
	NodeID   ident.NodeID
	Position geom.Point
	Previous geom.Point
}

func (*MoveNode) Kind() OpKind             { return KindMoveNode }
func (o *MoveNode) Nodes() []ident.NodeID { return []ident.NodeID{o.NodeID} }

// ResizeNode sets a node's size.
type ResizeNode struct {
	OpMeta
	NodeID   ident.NodeID
	Size     geom.Size
	Previous geom.Size
}

func (*ResizeNode) Kind() OpKind             { return KindResizeNode }
func (o *ResizeNode) Nodes() []ident.NodeID { return []ident.NodeID{o.NodeID} }

// SetNodeZIndex sets a node's stacking order.
type SetNodeZIndex struct {
	OpMeta
	NodeID   ident.NodeID
	ZIndex   int
	Previous int
}

func (*SetNodeZIndex) Kind() OpKind             { return KindSetNodeZIndex }
func (o *SetNodeZIndex) Nodes() []ident.NodeID { return []ident.NodeID{o.NodeID} }

// CreateNode adds a node. Layout.Bounds is derived and ignored.
type CreateNode struct {
	OpMeta
	Layout NodeLayout
}

func (*CreateNode) Kind() OpKind             { return KindCreateNode }
func (o *CreateNode) Nodes() []ident.NodeID { return []ident.NodeID{o.Layout.ID} }

// DeleteNode removes a node along with its slots and links.
type DeleteNode struct {
	OpMeta
	NodeID   ident.NodeID
	Previous NodeLayout
}

func (*DeleteNode) Kind() OpKind             { return KindDeleteNode }
func (o *DeleteNode) Nodes() []ident.NodeID { return []ident.NodeID{o.NodeID} }

// BatchUpdateBounds sets position and size of several nodes at once.
type BatchUpdateBounds struct {
	OpMeta
	Bounds   map[ident.NodeID]geom.Bounds
	Previous map[ident.NodeID]geom.Bounds
}

func (*BatchUpdateBounds) Kind() OpKind { return KindBatchUpdateBounds }
func (o *BatchUpdateBounds) Nodes() []ident.NodeID {
	return sortedNodeIDs(o.Bounds)
}

// CreateLink records a link between an output and an input.
type CreateLink struct {
	OpMeta
	LinkID     ident.LinkID
	SourceNode ident.NodeID
	SourceSlot int
	TargetNode ident.NodeID
	TargetSlot int
	Parent     ident.RerouteID
}

func (*CreateLink) Kind() OpKind { return KindCreateLink }
func (o *CreateLink) Nodes() []ident.NodeID {
	return []ident.NodeID{o.SourceNode, o.TargetNode}
}

// DeleteLink removes a link and its segments.
type DeleteLink struct {
	OpMeta
	LinkID ident.LinkID
}

func (*DeleteLink) Kind() OpKind          { return KindDeleteLink }
func (*DeleteLink) Nodes() []ident.NodeID { return nil }

// CreateReroute adds a reroute.
type CreateReroute struct {
	OpMeta
	RerouteID ident.RerouteID
	Position  geom.Point
	Parent    ident.RerouteID
}

func (*CreateReroute) Kind() OpKind          { return KindCreateReroute }
func (*CreateReroute) Nodes() []ident.NodeID { return nil }

// DeleteReroute removes a reroute.
type DeleteReroute struct {
	OpMeta
	RerouteID ident.RerouteID
}

func (*DeleteReroute) Kind() OpKind          { return KindDeleteReroute }
func (*DeleteReroute) Nodes() []ident.NodeID { return nil }

// MoveReroute sets a reroute's position.
type MoveReroute struct {
	OpMeta
	RerouteID ident.RerouteID
	Position  geom.Point
	Previous  geom.Point
}

func (*MoveReroute) Kind() OpKind          { return KindMoveReroute }
func (*MoveReroute) Nodes() []ident.NodeID { return nil }
