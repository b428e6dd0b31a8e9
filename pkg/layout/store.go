// Package layout is the authoritative store of node geometry for the graph
// canvas.
//
// Every mutation is an Operation applied through Store.ApplyOperation. The
// store updates its spatial indexes and canonical maps synchronously, so a
// query issued right after a mutation sees the new geometry, appends the
// operation to an append-only log and schedules one change broadcast per
// transaction. Slot, link-segment and reroute geometry is cached and kept
// in step with node and reroute moves.
//
// A Store is not safe for concurrent use.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
	"github.com/ha1tch/graphlink/pkg/spatial"
)

var (
	ErrNodeNotFound     = errors.New("layout: node not found")
	ErrNodeExists       = errors.New("layout: node already exists")
	ErrLinkNotFound     = errors.New("layout: link not found")
	ErrLinkExists       = errors.New("layout: link already exists")
	ErrSegmentNotFound  = errors.New("layout: link segment not found")
	ErrRerouteNotFound  = errors.New("layout: reroute not found")
	ErrRerouteExists    = errors.New("layout: reroute already exists")
	ErrInvalidOperation = errors.New("layout: invalid operation")
)

// Config holds hit-test tolerances and derived-geometry settings.
type Config struct {
	NodeTitleHeight     float64 // Extends node bounds above the body
	SlotSize            float64 // Side of the square slot bounds
	SlotHitTolerance    float64 // Max distance from a slot centre for a hit
	RerouteRadius       float64
	RerouteSearchWindow float64 // Half-size of the reroute candidate window
	LinkStrokeWidth     float64 // Used when a query passes no stroke width
	LinkHitPadding      float64 // Added to half the stroke width
	StraightLinks       bool    // Straight segments instead of splines
}

// DefaultConfig returns canvas-pixel defaults.
func DefaultConfig() Config {
	return Config{
		NodeTitleHeight:     30,
		SlotSize:            20,
		SlotHitTolerance:    10,
		RerouteRadius:       10,
		RerouteSearchWindow: 20,
		LinkStrokeWidth:     3,
		LinkHitPadding:      2,
	}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(s *Store) { s.logger = l.Named("layout") }
}

// WithScheduler replaces the internal queue used to defer broadcasts.
func WithScheduler(sched Scheduler) Option {
	return func(s *Store) { s.sched = sched }
}

// WithClock sets the timestamp source for operations.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithConfig sets tolerances and derived-geometry settings.
func WithConfig(cfg Config) Option {
	return func(s *Store) { s.cfg = cfg }
}

// WithProvenance sets the default source and actor stamped on operations.
func WithProvenance(source Source, actor string) Option {
	return func(s *Store) {
		s.source = source
		s.actor = actor
	}
}

type listener struct {
	id int
	fn func(Change)
}

// Store holds node layouts, geometry caches, the spatial indexes and the
// operation log.
type Store struct {
	cfg    Config
	logger hclog.Logger
	now    func() time.Time
	sched  Scheduler
	queue  *Queue

	source Source
	actor  string

	nodes    map[ident.NodeID]*NodeLayout
	nodeSeq  map[ident.NodeID]uint64
	slots    map[string]*SlotLayout
	links    map[ident.LinkID]*LinkLayout
	segments map[string]*LinkSegmentLayout
	reroutes map[ident.RerouteID]*RerouteLayout
	seq      uint64

	nodeIndex    *spatial.Index
	slotIndex    *spatial.Index
	segmentIndex *spatial.Index
	rerouteIndex *spatial.Index

	log     []Operation
	version uint64

	listeners    []listener
	nextListener int
	refs         map[ident.NodeID]*NodeRef

	txDepth  int
	txOps    []Operation
	txSource Source
	txActor  string
}

// New creates an empty store.
func New(opts ...Option) *Store {
	q := &Queue{}
	s := &Store{
		cfg:          DefaultConfig(),
		logger:       hclog.NewNullLogger(),
		now:          time.Now,
		sched:        q,
		queue:        q,
		source:       SourceExternal,
		actor:        uuid.NewString(),
		nodes:        make(map[ident.NodeID]*NodeLayout),
		nodeSeq:      make(map[ident.NodeID]uint64),
		slots:        make(map[string]*SlotLayout),
		links:        make(map[ident.LinkID]*LinkLayout),
		segments:     make(map[string]*LinkSegmentLayout),
		reroutes:     make(map[ident.RerouteID]*RerouteLayout),
		nodeIndex:    spatial.New(),
		slotIndex:    spatial.New(),
		segmentIndex: spatial.New(),
		rerouteIndex: spatial.New(),
		refs:         make(map[ident.NodeID]*NodeRef),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the store configuration.
func (s *Store) Config() Config { return s.cfg }

// Source returns the default source stamped on operations.
func (s *Store) Source() Source { return s.source }

// Actor returns the default actor stamped on operations.
func (s *Store) Actor() string { return s.actor }

// SetSource changes the default source for later operations.
func (s *Store) SetSource(src Source) { s.source = src }

// SetActor changes the default actor for later operations.
func (s *Store) SetActor(actor string) { s.actor = actor }

func rerouteKey(id ident.RerouteID) string { return strconv.Itoa(int(id)) }

func (s *Store) nodeBounds(pos geom.Point, size geom.Size) geom.Bounds {
	th := s.cfg.NodeTitleHeight
	return geom.Bounds{X: pos.X, Y: pos.Y - th, Width: size.Width, Height: size.Height + th}
}

func (s *Store) fillMeta(m *OpMeta) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	if m.Source == "" {
		if s.txDepth > 0 && s.txSource != "" {
			m.Source = s.txSource
		} else {
			m.Source = s.source
		}
	}
	if m.Actor == "" {
		if s.txDepth > 0 && s.txActor != "" {
			m.Actor = s.txActor
		} else {
			m.Actor = s.actor
		}
	}
}

// Transact groups the operations applied inside fn into one change
// notification. Operations applied before an error are kept; each one is
// validated before it writes anything.
func (s *Store) Transact(source Source, fn func() error) error {
	s.begin(source, "")
	defer s.end()
	return fn()
}

func (s *Store) begin(source Source, actor string) {
	if s.txDepth == 0 {
		s.txSource = source
		s.txActor = actor
		s.txOps = nil
	}
	s.txDepth++
}

func (s *Store) end() {
	s.txDepth--
	if s.txDepth > 0 || len(s.txOps) == 0 {
		return
	}
	change := s.buildChange(s.txOps)
	s.txOps = nil
	s.sched.Schedule(func() { s.broadcast(change) })
}

func (s *Store) buildChange(ops []Operation) Change {
	c := Change{
		Operations: ops,
		Source:     s.txSource,
		Actor:      s.txActor,
		Version:    s.version,
	}
	if c.Source == "" {
		c.Source = ops[0].Meta().Source
	}
	if c.Actor == "" {
		c.Actor = ops[0].Meta().Actor
	}
	var ids []ident.NodeID
	creates, deletes := 0, 0
	for _, op := range ops {
		ids = append(ids, op.Nodes()...)
		switch op.Kind() {
		case KindCreateNode, KindCreateLink, KindCreateReroute:
			creates++
		case KindDeleteNode, KindDeleteLink, KindDeleteReroute:
			deletes++
		}
	}
	c.NodeIDs = lo.Uniq(lo.Filter(ids, func(id ident.NodeID, _ int) bool { return id != "" }))
	switch {
	case creates == len(ops):
		c.Type = ChangeCreate
	case deletes == len(ops):
		c.Type = ChangeDelete
	default:
		c.Type = ChangeUpdate
	}
	return c
}

func (s *Store) broadcast(c Change) {
	for _, l := range append([]listener(nil), s.listeners...) {
		l.fn(c)
	}
	for _, id := range c.NodeIDs {
		if ref, ok := s.refs[id]; ok {
			ref.notify()
		}
	}
}

// OnChange registers a listener for change broadcasts and returns a
// function that removes it.
func (s *Store) OnChange(fn func(Change)) (cancel func()) {
	s.nextListener++
	id := s.nextListener
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.listeners = lo.Filter(s.listeners, func(l listener, _ int) bool { return l.id != id })
	}
}

// Flush runs pending broadcasts when the store uses its internal queue and
// returns how many ran. With an external scheduler it does nothing.
func (s *Store) Flush() int {
	if s.sched != s.queue {
		return 0
	}
	return s.queue.Drain()
}

// Pending returns the number of broadcasts waiting in the internal queue.
func (s *Store) Pending() int {
	return s.queue.Len()
}

// ApplyOperation validates and applies one operation, journals it and
// schedules a change broadcast for the enclosing transaction.
func (s *Store) ApplyOperation(op Operation) error {
	if op == nil {
		return fmt.Errorf("%w: nil operation", ErrInvalidOperation)
	}
	m := op.Meta()
	s.fillMeta(m)

	s.begin(m.Source, m.Actor)
	defer s.end()

	if err := s.apply(op); err != nil {
		return fmt.Errorf("%s: %w", op.Kind(), err)
	}
	s.log = append(s.log, op)
	s.version++
	s.txOps = append(s.txOps, op)
	s.logger.Trace("applied operation", "kind", op.Kind(), "id", m.ID, "source", m.Source, "actor", m.Actor)
	return nil
}

func (s *Store) apply(op Operation) error {
	switch o := op.(type) {
	case *MoveNode:
		return s.applyMoveNode(o)
	case *ResizeNode:
		return s.applyResizeNode(o)
	case *SetNodeZIndex:
		return s.applySetNodeZIndex(o)
	case *CreateNode:
		return s.applyCreateNode(o)
	case *DeleteNode:
		return s.applyDeleteNode(o)
	case *BatchUpdateBounds:
		return s.applyBatchUpdateBounds(o)
	case *CreateLink:
		return s.applyCreateLink(o)
	case *DeleteLink:
		return s.applyDeleteLink(o)
	case *CreateReroute:
		return s.applyCreateReroute(o)
	case *DeleteReroute:
		return s.applyDeleteReroute(o)
	case *MoveReroute:
		return s.applyMoveReroute(o)
	}
	return fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, op.Kind())
}

func (s *Store) node(id ident.NodeID) (*NodeLayout, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return n, nil
}

func (s *Store) applyCreateNode(o *CreateNode) error {
	l := o.Layout
	if l.ID == "" {
		return fmt.Errorf("%w: empty node id", ErrInvalidOperation)
	}
	if _, ok := s.nodes[l.ID]; ok {
		return fmt.Errorf("%w: %q", ErrNodeExists, l.ID)
	}
	l.Bounds = s.nodeBounds(l.Position, l.Size)
	s.nodeIndex.Insert(string(l.ID), l.Bounds)
	s.nodes[l.ID] = &l
	s.seq++
	s.nodeSeq[l.ID] = s.seq
	return nil
}

func (s *Store) applyDeleteNode(o *DeleteNode) error {
	n, err := s.node(o.NodeID)
	if err != nil {
		return err
	}
	o.Previous = *n

	for key, sl := range s.slots {
		if sl.Key.Node == o.NodeID {
			s.slotIndex.Remove(key)
			delete(s.slots, key)
		}
	}
	for _, id := range s.LinksForNode(o.NodeID) {
		s.removeLink(id)
	}
	s.nodeIndex.Remove(string(o.NodeID))
	delete(s.nodes, o.NodeID)
	delete(s.nodeSeq, o.NodeID)
	return nil
}

func (s *Store) applyMoveNode(o *MoveNode) error {
	n, err := s.node(o.NodeID)
	if err != nil {
		return err
	}
	o.Previous = n.Position
	s.setNodeBounds(n, o.Position, n.Size)
	return nil
}

func (s *Store) applyResizeNode(o *ResizeNode) error {
	n, err := s.node(o.NodeID)
	if err != nil {
		return err
	}
	if o.Size.Width < 0 || o.Size.Height < 0 {
		return fmt.Errorf("%w: negative size for %q", ErrInvalidOperation, o.NodeID)
	}
	o.Previous = n.Size
	s.setNodeBounds(n, n.Position, o.Size)
	return nil
}

func (s *Store) applySetNodeZIndex(o *SetNodeZIndex) error {
	n, err := s.node(o.NodeID)
	if err != nil {
		return err
	}
	o.Previous = n.ZIndex
	n.ZIndex = o.ZIndex
	return nil
}

func (s *Store) applyBatchUpdateBounds(o *BatchUpdateBounds) error {
	ids := sortedNodeIDs(o.Bounds)
	for _, id := range ids {
		if _, err := s.node(id); err != nil {
			return err
		}
	}

	entries := make([]spatial.Entry, 0, len(ids))
	for _, id := range ids {
		b := o.Bounds[id]
		entries = append(entries, spatial.Entry{Key: string(id), Bounds: s.nodeBounds(b.Pos(), b.Size())})
	}
	s.nodeIndex.BatchUpdate(entries)

	o.Previous = make(map[ident.NodeID]geom.Bounds, len(ids))
	for _, id := range ids {
		n := s.nodes[id]
		o.Previous[id] = geom.BoundsAt(n.Position, n.Size)
		s.setNodeBounds(n, o.Bounds[id].Pos(), o.Bounds[id].Size())
	}
	return nil
}

// setNodeBounds moves and resizes a node, carrying its slots and links.
// Output slots sit on the right edge and follow width changes.
func (s *Store) setNodeBounds(n *NodeLayout, pos geom.Point, size geom.Size) {
	delta := pos.Sub(n.Position)
	dw := size.Width - n.Size.Width

	b := s.nodeBounds(pos, size)
	s.nodeIndex.Update(string(n.ID), b)
	n.Position = pos
	n.Size = size
	n.Bounds = b

	if delta == (geom.Point{}) && dw == 0 {
		return
	}
	for key, sl := range s.slots {
		if sl.Key.Node != n.ID {
			continue
		}
		d := delta
		if sl.Key.Kind == ident.Output {
			d.X += dw
		}
		if d == (geom.Point{}) {
			continue
		}
		nb := sl.Bounds.Translate(d)
		s.slotIndex.Update(key, nb)
		sl.Position = sl.Position.Add(d)
		sl.Bounds = nb
	}
	for _, id := range s.LinksForNode(n.ID) {
		s.relayoutLink(s.links[id])
	}
}

func (s *Store) applyCreateLink(o *CreateLink) error {
	if _, ok := s.links[o.LinkID]; ok {
		return fmt.Errorf("%w: %d", ErrLinkExists, o.LinkID)
	}
	if o.LinkID == 0 {
		return fmt.Errorf("%w: zero link id", ErrInvalidOperation)
	}
	l := &LinkLayout{
		ID:         o.LinkID,
		SourceNode: o.SourceNode,
		SourceSlot: o.SourceSlot,
		TargetNode: o.TargetNode,
		TargetSlot: o.TargetSlot,
		Parent:     o.Parent,
	}
	s.links[o.LinkID] = l
	s.relayoutLink(l)
	return nil
}

func (s *Store) applyDeleteLink(o *DeleteLink) error {
	if _, ok := s.links[o.LinkID]; !ok {
		return fmt.Errorf("%w: %d", ErrLinkNotFound, o.LinkID)
	}
	s.removeLink(o.LinkID)
	return nil
}

func (s *Store) removeLink(id ident.LinkID) {
	l, ok := s.links[id]
	if !ok {
		return
	}
	s.clearSegments(l)
	delete(s.links, id)
}

func (s *Store) applyCreateReroute(o *CreateReroute) error {
	if _, ok := s.reroutes[o.RerouteID]; ok {
		return fmt.Errorf("%w: %d", ErrRerouteExists, o.RerouteID)
	}
	if o.RerouteID == ident.NoReroute {
		return fmt.Errorf("%w: zero reroute id", ErrInvalidOperation)
	}
	r := &RerouteLayout{
		ID:       o.RerouteID,
		Parent:   o.Parent,
		Position: o.Position,
		Radius:   s.cfg.RerouteRadius,
		Bounds:   geom.BoundsAround(o.Position, s.cfg.RerouteRadius),
	}
	s.rerouteIndex.Insert(rerouteKey(r.ID), r.Bounds)
	s.reroutes[r.ID] = r
	for _, id := range s.linksThrough(r.ID) {
		s.relayoutLink(s.links[id])
	}
	return nil
}

func (s *Store) applyDeleteReroute(o *DeleteReroute) error {
	if _, ok := s.reroutes[o.RerouteID]; !ok {
		return fmt.Errorf("%w: %d", ErrRerouteNotFound, o.RerouteID)
	}
	affected := s.linksThrough(o.RerouteID)
	s.rerouteIndex.Remove(rerouteKey(o.RerouteID))
	delete(s.reroutes, o.RerouteID)
	for _, id := range affected {
		s.relayoutLink(s.links[id])
	}
	return nil
}

func (s *Store) applyMoveReroute(o *MoveReroute) error {
	r, ok := s.reroutes[o.RerouteID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrRerouteNotFound, o.RerouteID)
	}
	o.Previous = r.Position
	b := geom.BoundsAround(o.Position, r.Radius)
	s.rerouteIndex.Update(rerouteKey(r.ID), b)
	r.Position = o.Position
	r.Bounds = b
	for _, id := range s.linksThrough(r.ID) {
		s.relayoutLink(s.links[id])
	}
	return nil
}

// Initialize replaces every node with the given list in one transaction.
// Links, slots and reroutes are cleared; the operation log is kept.
func (s *Store) Initialize(nodes []NodeInit) error {
	s.nodes = make(map[ident.NodeID]*NodeLayout)
	s.nodeSeq = make(map[ident.NodeID]uint64)
	s.slots = make(map[string]*SlotLayout)
	s.links = make(map[ident.LinkID]*LinkLayout)
	s.segments = make(map[string]*LinkSegmentLayout)
	s.reroutes = make(map[ident.RerouteID]*RerouteLayout)
	s.nodeIndex.Clear()
	s.slotIndex.Clear()
	s.segmentIndex.Clear()
	s.rerouteIndex.Clear()

	return s.Transact(SourceExternal, func() error {
		for _, n := range nodes {
			op := &CreateNode{Layout: NodeLayout{ID: n.ID, Position: n.Pos, Size: n.Size}}
			if err := s.ApplyOperation(op); err != nil {
				return err
			}
		}
		return nil
	})
}

func sortedNodeIDs(m map[ident.NodeID]geom.Bounds) []ident.NodeID {
	ids := lo.Keys(m)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
