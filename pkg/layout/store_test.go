package layout

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	opts = append([]Option{
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		WithProvenance(SourceCanvas, "tester"),
	}, opts...)
	return New(opts...)
}

func inKey(n ident.NodeID, i int) ident.SlotKey {
	return ident.SlotKey{Node: n, Kind: ident.Input, Index: i}
}

func outKey(n ident.NodeID, i int) ident.SlotKey {
	return ident.SlotKey{Node: n, Kind: ident.Output, Index: i}
}

func TestBatchUpdateBoundsIsOneChange(t *testing.T) {
	s := newTestStore(t)
	bounds := make(map[ident.NodeID]geom.Bounds)
	for i := 0; i < 5; i++ {
		id := ident.NodeID(fmt.Sprintf("n%d", i))
		require.NoError(t, s.CreateNode(id, geom.Point{X: float64(i * 200), Y: 0}, geom.Size{Width: 100, Height: 50}))
		bounds[id] = geom.Bounds{X: float64(i * 200), Y: 1000, Width: 120, Height: 60}
	}
	s.Flush()

	calls := 0
	var got Change
	s.OnChange(func(c Change) {
		calls++
		got = c
	})

	require.NoError(t, s.BatchUpdateBounds(bounds))

	// Geometry is visible before the broadcast runs
	for id, b := range bounds {
		hit, ok := s.QueryNodeAtPoint(geom.Point{X: b.X + 10, Y: b.Y + 10})
		require.True(t, ok)
		assert.Equal(t, id, hit)
	}
	assert.Equal(t, 0, calls)

	s.Flush()
	assert.Equal(t, 1, calls)
	assert.Len(t, got.NodeIDs, 5)
	assert.Equal(t, ChangeUpdate, got.Type)
	require.Len(t, got.Operations, 1)
	assert.Equal(t, KindBatchUpdateBounds, got.Operations[0].Kind())

	op := got.Operations[0].(*BatchUpdateBounds)
	assert.Equal(t, geom.Bounds{X: 0, Y: 0, Width: 100, Height: 50}, op.Previous["n0"])
}

func TestBatchUpdateBoundsRejectsUnknownNode(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateNode("a", geom.Point{}, geom.Size{Width: 10, Height: 10}))

	err := s.BatchUpdateBounds(map[ident.NodeID]geom.Bounds{
		"a":     {X: 50, Y: 50, Width: 10, Height: 10},
		"ghost": {X: 0, Y: 0, Width: 10, Height: 10},
	})
	assert.ErrorIs(t, err, ErrNodeNotFound)

	n, _ := s.Node("a")
	assert.Equal(t, geom.Point{}, n.Position)
	assert.Len(t, s.Operations(), 1)
}

func TestDeleteNodeCascade(t *testing.T) {
	s := newTestStore(t)
	size := geom.Size{Width: 100, Height: 60}
	require.NoError(t, s.CreateNode("x", geom.Point{X: 0, Y: 0}, size))
	require.NoError(t, s.CreateNode("y", geom.Point{X: 300, Y: 0}, size))
	require.NoError(t, s.CreateNode("z", geom.Point{X: 300, Y: 200}, size))

	s.SetSlotLayout(inKey("x", 0), geom.Point{X: 0, Y: 14})
	s.SetSlotLayout(outKey("x", 0), geom.Point{X: 100, Y: 14})
	s.SetSlotLayout(inKey("y", 0), geom.Point{X: 300, Y: 14})
	s.SetSlotLayout(inKey("z", 0), geom.Point{X: 300, Y: 214})
	s.SetSlotLayout(outKey("z", 0), geom.Point{X: 400, Y: 214})

	require.NoError(t, s.CreateLink(1, "x", 0, "y", 0, 0))
	require.NoError(t, s.CreateLink(2, "x", 0, "z", 0, 0))
	require.NoError(t, s.CreateLink(3, "z", 0, "x", 0, 0))
	require.Equal(t, 3, s.IndexSizes().Segments)

	require.NoError(t, s.DeleteNode("x"))

	_, ok := s.Node("x")
	assert.False(t, ok)
	assert.Empty(t, s.SlotsForNode("x"))
	assert.Empty(t, s.LinksForNode("x"))
	assert.Empty(t, s.Links())

	sizes := s.IndexSizes()
	assert.Equal(t, 2, sizes.Nodes)
	assert.Equal(t, 0, sizes.Segments)
	assert.Equal(t, 3, sizes.Slots)

	items := s.QueryItemsInBounds(geom.Bounds{X: -1000, Y: -1000, Width: 3000, Height: 3000})
	assert.NotContains(t, items.Nodes, ident.NodeID("x"))
	assert.Empty(t, items.Links)
	for _, key := range items.Slots {
		assert.NotEqual(t, ident.NodeID("x"), key.Node)
	}

	del := s.Operations()[len(s.Operations())-1].(*DeleteNode)
	assert.Equal(t, geom.Point{}, del.Previous.Position)
}

func TestQueryNodeAtPointZOrder(t *testing.T) {
	s := newTestStore(t)
	size := geom.Size{Width: 100, Height: 100}
	require.NoError(t, s.CreateNode("bottom", geom.Point{X: 0, Y: 0}, size))
	require.NoError(t, s.CreateNode("top", geom.Point{X: 50, Y: 50}, size))

	p := geom.Point{X: 75, Y: 75}
	id, ok := s.QueryNodeAtPoint(p)
	require.True(t, ok)
	assert.Equal(t, ident.NodeID("top"), id, "later node wins on equal z")

	require.NoError(t, s.SetNodeZIndex("bottom", 5))
	id, _ = s.QueryNodeAtPoint(p)
	assert.Equal(t, ident.NodeID("bottom"), id)

	// Title bar is part of the node
	id, ok = s.QueryNodeAtPoint(geom.Point{X: 10, Y: -20})
	require.True(t, ok)
	assert.Equal(t, ident.NodeID("bottom"), id)

	_, ok = s.QueryNodeAtPoint(geom.Point{X: 500, Y: 500})
	assert.False(t, ok)
}

func TestHiddenNodesAreNotHit(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyOperation(&CreateNode{Layout: NodeLayout{
		ID: "ghost", Size: geom.Size{Width: 50, Height: 50}, Hidden: true,
	}}))
	_, ok := s.QueryNodeAtPoint(geom.Point{X: 10, Y: 10})
	assert.False(t, ok)
	assert.Equal(t, 1, s.IndexSizes().Nodes)
}

func TestMoveNodeCarriesSlotsAndLinks(t *testing.T) {
	s := newTestStore(t)
	size := geom.Size{Width: 100, Height: 50}
	require.NoError(t, s.CreateNode("a", geom.Point{X: 0, Y: 0}, size))
	require.NoError(t, s.CreateNode("b", geom.Point{X: 300, Y: 0}, size))
	s.SetSlotLayout(outKey("a", 0), geom.Point{X: 100, Y: 14})
	s.SetSlotLayout(inKey("b", 0), geom.Point{X: 300, Y: 14})
	require.NoError(t, s.CreateLink(7, "a", 0, "b", 0, 0))

	_, ok := s.QueryLinkSegmentAtPoint(geom.Point{X: 200, Y: 15}, 3)
	require.True(t, ok)

	require.NoError(t, s.SetNodePosition("a", geom.Point{X: 0, Y: 400}))

	sl, ok := s.Slot(outKey("a", 0))
	require.True(t, ok)
	assert.Equal(t, geom.Point{X: 100, Y: 414}, sl.Position)

	hit, ok := s.QuerySlotAtPoint(geom.Point{X: 102, Y: 412})
	require.True(t, ok)
	assert.Equal(t, outKey("a", 0), hit.Key)

	_, ok = s.QueryLinkSegmentAtPoint(geom.Point{X: 200, Y: 15}, 3)
	assert.False(t, ok, "old path must be gone")

	l, ok := s.Link(7)
	require.True(t, ok)
	assert.True(t, l.Bounds.Contains(geom.Point{X: 100, Y: 414}))

	// Width change drags outputs along, inputs stay
	require.NoError(t, s.SetNodeSize("b", geom.Size{Width: 200, Height: 50}))
	in, _ := s.Slot(inKey("b", 0))
	assert.Equal(t, geom.Point{X: 300, Y: 14}, in.Position)
	require.NoError(t, s.SetNodeSize("a", geom.Size{Width: 150, Height: 50}))
	out, _ := s.Slot(outKey("a", 0))
	assert.Equal(t, geom.Point{X: 150, Y: 414}, out.Position)
}

func TestLinkSegmentsThroughReroute(t *testing.T) {
	s := newTestStore(t)
	size := geom.Size{Width: 100, Height: 50}
	require.NoError(t, s.CreateNode("a", geom.Point{X: 0, Y: 0}, size))
	require.NoError(t, s.CreateNode("b", geom.Point{X: 300, Y: 0}, size))
	s.SetSlotLayout(outKey("a", 0), geom.Point{X: 100, Y: 14})
	s.SetSlotLayout(inKey("b", 0), geom.Point{X: 300, Y: 14})
	require.NoError(t, s.CreateReroute(5, geom.Point{X: 200, Y: 100}, 0))
	require.NoError(t, s.CreateLink(1, "a", 0, "b", 0, 5))

	segs := s.Segments(1)
	require.Len(t, segs, 2)
	assert.Equal(t, ident.RerouteID(5), segs[0].Key.Reroute)
	assert.Equal(t, ident.NoReroute, segs[1].Key.Reroute)

	hit, ok := s.QueryLinkSegmentAtPoint(geom.Point{X: 101, Y: 14.5}, 3)
	require.True(t, ok)
	assert.Equal(t, ident.LinkID(1), hit.Link)
	assert.Equal(t, ident.RerouteID(5), hit.Reroute)

	hit, ok = s.QueryLinkSegmentAtPoint(geom.Point{X: 299, Y: 14.5}, 3)
	require.True(t, ok)
	assert.Equal(t, ident.NoReroute, hit.Reroute)

	r, ok := s.QueryRerouteAtPoint(geom.Point{X: 205, Y: 104})
	require.True(t, ok)
	assert.Equal(t, ident.RerouteID(5), r.ID)
	_, ok = s.QueryRerouteAtPoint(geom.Point{X: 215, Y: 100})
	assert.False(t, ok, "outside the radius")

	require.NoError(t, s.MoveReroute(5, geom.Point{X: 200, Y: -200}))
	segs = s.Segments(1)
	require.Len(t, segs, 2)
	assert.Equal(t, geom.Point{X: 200, Y: -200}, segs[0].Path[len(segs[0].Path)-1])

	require.NoError(t, s.DeleteReroute(5))
	assert.Len(t, s.Segments(1), 1)
}

func TestStraightLinksUseBoundsWhenNoPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StraightLinks = true
	s := newTestStore(t, WithConfig(cfg))
	require.NoError(t, s.CreateNode("a", geom.Point{}, geom.Size{Width: 10, Height: 10}))
	require.NoError(t, s.CreateNode("b", geom.Point{X: 100}, geom.Size{Width: 10, Height: 10}))
	s.SetSlotLayout(outKey("a", 0), geom.Point{X: 10, Y: 5})
	s.SetSlotLayout(inKey("b", 0), geom.Point{X: 100, Y: 45})
	require.NoError(t, s.CreateLink(1, "a", 0, "b", 0, 0))

	segs := s.Segments(1)
	require.Len(t, segs, 1)
	assert.Len(t, segs[0].Path, 2)

	_, ok := s.QueryLinkSegmentAtPoint(geom.Point{X: 55, Y: 25}, 0)
	assert.True(t, ok)
	_, ok = s.QueryLinkSegmentAtPoint(geom.Point{X: 55, Y: 40}, 0)
	assert.False(t, ok)

	// Renderer overrides the path with a detour
	key := segs[0].Key
	require.NoError(t, s.SetLinkSegmentPath(key, []geom.Point{{X: 10, Y: 5}, {X: 55, Y: 40}, {X: 100, Y: 45}}))
	_, ok = s.QueryLinkSegmentAtPoint(geom.Point{X: 55, Y: 40}, 0)
	assert.True(t, ok)
	assert.ErrorIs(t, s.SetLinkSegmentPath(ident.SegmentKey{Link: 99}, []geom.Point{{}}), ErrSegmentNotFound)
}

func TestOperationLog(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateNode("a", geom.Point{}, geom.Size{Width: 10, Height: 10}))
	mark := s.Operations()[0].Meta().Timestamp.Add(time.Millisecond)

	s.SetActor("someone-else")
	require.NoError(t, s.SetNodePosition("a", geom.Point{X: 5, Y: 5}))
	require.NoError(t, s.ApplyOperation(&MoveNode{
		OpMeta:   OpMeta{Source: SourceUI, Actor: "remote"},
		NodeID:   "a",
		Position: geom.Point{X: 9, Y: 9},
	}))

	// Failed operations are not journaled
	assert.ErrorIs(t, s.SetNodePosition("missing", geom.Point{}), ErrNodeNotFound)
	assert.ErrorIs(t, s.CreateNode("a", geom.Point{}, geom.Size{}), ErrNodeExists)

	ops := s.Operations()
	require.Len(t, ops, 3)
	assert.Equal(t, uint64(3), s.Version())
	for _, op := range ops {
		assert.NotEmpty(t, op.Meta().ID)
		assert.False(t, op.Meta().Timestamp.IsZero())
	}
	assert.Equal(t, SourceCanvas, ops[0].Meta().Source)
	assert.Equal(t, SourceUI, ops[2].Meta().Source)
	assert.Equal(t, geom.Point{X: 5, Y: 5}, ops[2].(*MoveNode).Previous)

	assert.Len(t, s.OperationsSince(mark), 2)
	assert.Len(t, s.OperationsByActor("tester"), 1)
	assert.Len(t, s.OperationsByActor("someone-else"), 1)
	assert.Len(t, s.OperationsByActor("remote"), 1)
}

func TestTransactGroupsOperations(t *testing.T) {
	s := newTestStore(t)
	var changes []Change
	s.OnChange(func(c Change) { changes = append(changes, c) })

	err := s.Transact(SourceUI, func() error {
		if err := s.CreateNode("a", geom.Point{}, geom.Size{Width: 10, Height: 10}); err != nil {
			return err
		}
		return s.CreateNode("b", geom.Point{X: 50}, geom.Size{Width: 10, Height: 10})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Pending())
	s.Flush()

	require.Len(t, changes, 1)
	assert.Equal(t, ChangeCreate, changes[0].Type)
	assert.Equal(t, SourceUI, changes[0].Source)
	assert.Equal(t, []ident.NodeID{"a", "b"}, changes[0].NodeIDs)
	for _, op := range changes[0].Operations {
		assert.Equal(t, SourceUI, op.Meta().Source)
	}
}

func TestOnChangeCancel(t *testing.T) {
	s := newTestStore(t, WithScheduler(Immediate))
	calls := 0
	cancel := s.OnChange(func(Change) { calls++ })

	require.NoError(t, s.CreateNode("a", geom.Point{}, geom.Size{Width: 10, Height: 10}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.Flush(), "external scheduler leaves nothing to flush")

	cancel()
	require.NoError(t, s.SetNodePosition("a", geom.Point{X: 1}))
	assert.Equal(t, 1, calls)
}

func TestNodeRefSetDiffs(t *testing.T) {
	s := newTestStore(t)
	ref := s.NodeRef("a")
	assert.Same(t, ref, s.NodeRef("a"))

	var seen []NodeLayout
	ref.Watch(func(l NodeLayout, ok bool) {
		if ok {
			seen = append(seen, l)
		}
	})

	require.NoError(t, ref.Set(NodeLayout{Position: geom.Point{X: 1, Y: 2}, Size: geom.Size{Width: 10, Height: 10}}))
	s.Flush()
	require.Len(t, seen, 1)
	assert.Equal(t, KindCreateNode, s.Operations()[0].Kind())

	next, _ := ref.Value()
	next.Position = geom.Point{X: 50, Y: 50}
	next.ZIndex = 3
	require.NoError(t, ref.Set(next))
	s.Flush()

	ops := s.Operations()
	require.Len(t, ops, 3)
	assert.Equal(t, KindMoveNode, ops[1].Kind())
	assert.Equal(t, KindSetNodeZIndex, ops[2].Kind())
	require.Len(t, seen, 2)
	assert.Equal(t, 3, seen[1].ZIndex)

	// No-op write journals nothing
	require.NoError(t, ref.Set(next))
	assert.Len(t, s.Operations(), 3)

	hidden := next
	hidden.Hidden = true
	hidden.Position = geom.Point{X: 9, Y: 9}
	assert.ErrorIs(t, ref.Set(hidden), ErrInvalidOperation)
	assert.Len(t, s.Operations(), 3, "a rejected write applies nothing")
	cur, _ := ref.Value()
	assert.Equal(t, next.Position, cur.Position)

	gone := false
	ref.Watch(func(_ NodeLayout, ok bool) { gone = !ok })
	require.NoError(t, ref.Delete())
	s.Flush()
	assert.True(t, gone)
}

func TestInitialize(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateNode("old", geom.Point{}, geom.Size{Width: 10, Height: 10}))

	require.NoError(t, s.Initialize([]NodeInit{
		{ID: "a", Pos: geom.Point{X: 0, Y: 0}, Size: geom.Size{Width: 100, Height: 40}},
		{ID: "b", Pos: geom.Point{X: 200, Y: 0}, Size: geom.Size{Width: 100, Height: 40}},
	}))

	_, ok := s.Node("old")
	assert.False(t, ok)
	assert.Len(t, s.Nodes(), 2)
	assert.Equal(t, 2, s.IndexSizes().Nodes)

	ops := s.Operations()
	assert.Len(t, ops, 3)
	assert.Equal(t, SourceExternal, ops[2].Meta().Source)

	id, ok := s.QueryNodeAtPoint(geom.Point{X: 250, Y: 20})
	require.True(t, ok)
	assert.Equal(t, ident.NodeID("b"), id)
}

func TestQueryItemsInBounds(t *testing.T) {
	s := newTestStore(t)
	size := geom.Size{Width: 100, Height: 50}
	require.NoError(t, s.CreateNode("a", geom.Point{X: 0, Y: 0}, size))
	require.NoError(t, s.CreateNode("b", geom.Point{X: 300, Y: 0}, size))
	s.SetSlotLayout(outKey("a", 0), geom.Point{X: 100, Y: 14})
	s.SetSlotLayout(inKey("b", 0), geom.Point{X: 300, Y: 14})
	require.NoError(t, s.CreateReroute(2, geom.Point{X: 200, Y: 14}, 0))
	require.NoError(t, s.CreateLink(1, "a", 0, "b", 0, 2))

	items := s.QueryItemsInBounds(geom.Bounds{X: 150, Y: 0, Width: 100, Height: 30})
	assert.Empty(t, items.Nodes)
	assert.Equal(t, []ident.LinkID{1}, items.Links)
	assert.Equal(t, []ident.RerouteID{2}, items.Reroutes)
	assert.Empty(t, items.Slots)

	items = s.QueryItemsInBounds(geom.Bounds{X: -10, Y: -40, Width: 500, Height: 100})
	assert.Equal(t, []ident.NodeID{"a", "b"}, items.Nodes)
	assert.Len(t, items.Slots, 2)
}
