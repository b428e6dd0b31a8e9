package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
)

func addNode(t *testing.T, g *Graph, id string, x, y float64, ins, outs []string) *Node {
	t.Helper()
	n := NewNode(ident.NodeID(id), id)
	n.Pos = geom.Point{X: x, Y: y}
	n.Size = geom.Size{Width: 100, Height: 60}
	for i, typ := range ins {
		n.AddInput("in"+string(rune('0'+i)), typ)
	}
	for i, typ := range outs {
		n.AddOutput("out"+string(rune('0'+i)), typ)
	}
	require.NoError(t, g.AddNode(n))
	return n
}

func TestConnectSlots(t *testing.T) {
	g := New()
	a := addNode(t, g, "a", 0, 0, nil, []string{"INT"})
	b := addNode(t, g, "b", 200, 0, []string{"int"}, nil)

	l, err := g.ConnectSlots(a, 0, b, 0, ident.NoReroute)
	require.NoError(t, err)
	assert.Equal(t, ident.LinkID(1), l.ID)
	assert.Equal(t, l.ID, b.Inputs[0].Link)
	assert.Equal(t, []ident.LinkID{l.ID}, a.Outputs[0].Links)
	assert.NoError(t, g.Validate())
}

func TestConnectSlotsRejects(t *testing.T) {
	g := New()
	a := addNode(t, g, "a", 0, 0, []string{"INT"}, []string{"INT"})
	b := addNode(t, g, "b", 200, 0, []string{"STRING"}, nil)

	_, err := g.ConnectSlots(a, 0, a, 0, ident.NoReroute)
	assert.ErrorIs(t, err, ErrSelfLink)

	_, err = g.ConnectSlots(a, 0, b, 0, ident.NoReroute)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = g.ConnectSlots(a, 3, b, 0, ident.NoReroute)
	assert.ErrorIs(t, err, ErrSlotNotFound)

	c := addNode(t, g, "c", 200, 200, []string{"INT"}, nil)
	_, err = g.ConnectSlots(a, 0, c, 0, 42)
	assert.ErrorIs(t, err, ErrRerouteNotFound)
	assert.Zero(t, c.Inputs[0].Link)

	assert.Empty(t, g.Links())
}

func TestConnectReplacesInputLink(t *testing.T) {
	g := New()
	a := addNode(t, g, "a", 0, 0, nil, []string{"INT"})
	c := addNode(t, g, "c", 0, 100, nil, []string{"INT"})
	b := addNode(t, g, "b", 200, 0, []string{"INT"}, nil)

	first, err := g.ConnectSlots(a, 0, b, 0, ident.NoReroute)
	require.NoError(t, err)
	second, err := g.ConnectSlots(c, 0, b, 0, ident.NoReroute)
	require.NoError(t, err)

	assert.Nil(t, g.Link(first.ID))
	assert.Empty(t, a.Outputs[0].Links)
	assert.Equal(t, second.ID, b.Inputs[0].Link)
	assert.NoError(t, g.Validate())
}

func TestLinkThroughReroutes(t *testing.T) {
	g := New()
	a := addNode(t, g, "a", 0, 0, nil, []string{"INT"})
	b := addNode(t, g, "b", 300, 0, []string{"INT"}, nil)
	r1 := g.AddReroute(geom.Point{X: 120, Y: 20}, ident.NoReroute)
	r2 := g.AddReroute(geom.Point{X: 200, Y: 20}, r1.ID)

	l, err := g.ConnectSlots(a, 0, b, 0, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, []ident.LinkID{l.ID}, r1.LinkIDs)
	assert.Equal(t, []ident.LinkID{l.ID}, r2.LinkIDs)
	assert.Equal(t, r1, g.FirstReroute(l))

	chain, err := r2.Chain()
	require.NoError(t, err)
	assert.Equal(t, []*Reroute{r1, r2}, chain)
	assert.True(t, r2.InChain(r1.ID))
	assert.False(t, r1.InChain(r2.ID))

	n, slot, ok := r2.FindSourceOutput()
	require.True(t, ok)
	assert.Equal(t, a, n)
	assert.Equal(t, 0, slot)

	targets := r1.FindTargetInputs()
	require.Len(t, targets, 1)
	assert.Equal(t, b, targets[0].Node)
	assert.NoError(t, g.Validate())
}

func TestRemoveLinkKeepModes(t *testing.T) {
	setup := func(t *testing.T) (*Graph, *Link, *Reroute) {
		g := New()
		a := addNode(t, g, "a", 0, 0, nil, []string{"INT"})
		b := addNode(t, g, "b", 300, 0, []string{"INT"}, nil)
		r := g.AddReroute(geom.Point{X: 150, Y: 20}, ident.NoReroute)
		l, err := g.ConnectSlots(a, 0, b, 0, r.ID)
		require.NoError(t, err)
		return g, l, r
	}

	t.Run("none deletes orphaned reroutes", func(t *testing.T) {
		g, l, r := setup(t)
		require.NoError(t, g.RemoveLink(l.ID, KeepNone))
		assert.Nil(t, g.Reroute(r.ID))
		assert.Empty(t, g.FloatingLinks())
	})

	t.Run("output keeps a floating chain", func(t *testing.T) {
		g, l, r := setup(t)
		require.NoError(t, g.RemoveLink(l.ID, KeepOutput))
		require.NotNil(t, g.Reroute(r.ID))
		require.NotNil(t, r.Floating)
		assert.Equal(t, ident.Output, r.Floating.SlotType)
		fl := r.FirstFloatingLink()
		require.NotNil(t, fl)
		assert.Equal(t, ident.NodeID("a"), fl.OriginID)
		assert.Equal(t, ident.NodeID(""), fl.TargetID)
		assert.Equal(t, []ident.LinkID{fl.ID}, g.Node("a").Outputs[0].FloatingLinks)
	})

	t.Run("input keeps a floating chain", func(t *testing.T) {
		g, l, r := setup(t)
		require.NoError(t, g.RemoveLink(l.ID, KeepInput))
		require.NotNil(t, r.Floating)
		assert.Equal(t, ident.Input, r.Floating.SlotType)
		fl := r.FirstFloatingLink()
		require.NotNil(t, fl)
		assert.Equal(t, ident.NodeID(""), fl.OriginID)
		assert.Equal(t, ident.NodeID("b"), fl.TargetID)
	})

	t.Run("reconnecting through the chain clears the floating link", func(t *testing.T) {
		g, l, r := setup(t)
		require.NoError(t, g.RemoveLink(l.ID, KeepOutput))
		_, err := g.ConnectSlots(g.Node("a"), 0, g.Node("b"), 0, r.ID)
		require.NoError(t, err)
		assert.Nil(t, r.Floating)
		assert.Empty(t, g.FloatingLinks())
		assert.Empty(t, g.Node("a").Outputs[0].FloatingLinks)
		assert.NoError(t, g.Validate())
	})
}

func TestRemoveRerouteInUse(t *testing.T) {
	g := New()
	a := addNode(t, g, "a", 0, 0, nil, []string{"INT"})
	b := addNode(t, g, "b", 300, 0, []string{"INT"}, nil)
	r := g.AddReroute(geom.Point{X: 150, Y: 20}, ident.NoReroute)
	_, err := g.ConnectSlots(a, 0, b, 0, r.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Remove(), ErrRerouteInUse)
	require.NoError(t, g.DissolveReroute(r.ID))
	assert.Nil(t, g.Reroute(r.ID))
	assert.Equal(t, ident.NoReroute, g.Links()[0].ParentID)
	assert.NoError(t, g.Validate())
}

func TestInsertReroute(t *testing.T) {
	g := New()
	a := addNode(t, g, "a", 0, 0, nil, []string{"INT"})
	b := addNode(t, g, "b", 300, 0, []string{"INT"}, nil)
	l, err := g.ConnectSlots(a, 0, b, 0, ident.NoReroute)
	require.NoError(t, err)

	r, err := g.InsertReroute(geom.Point{X: 150, Y: 20}, l.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, l.ParentID)
	assert.Equal(t, []ident.LinkID{l.ID}, r.LinkIDs)
	assert.NoError(t, g.Validate())
}

func TestRemoveNode(t *testing.T) {
	g := New()
	a := addNode(t, g, "a", 0, 0, nil, []string{"INT"})
	b := addNode(t, g, "b", 300, 0, []string{"INT"}, nil)
	r := g.AddReroute(geom.Point{X: 150, Y: 20}, ident.NoReroute)
	_, err := g.ConnectSlots(a, 0, b, 0, r.ID)
	require.NoError(t, err)

	require.NoError(t, g.RemoveNode("b"))
	assert.Nil(t, g.Node("b"))
	assert.Empty(t, g.Links())
	assert.Empty(t, a.Outputs[0].Links)
	assert.Nil(t, g.Reroute(r.ID))
	assert.ErrorIs(t, g.RemoveNode("b"), ErrNodeNotFound)
}

func TestWatch(t *testing.T) {
	g := New()
	var kinds []ChangeKind
	cancel := g.Watch(func(c Change) { kinds = append(kinds, c.Kind) })

	a := addNode(t, g, "a", 0, 0, nil, []string{"INT"})
	b := addNode(t, g, "b", 300, 0, []string{"INT"}, nil)
	r := g.AddReroute(geom.Point{X: 150, Y: 20}, ident.NoReroute)
	l, err := g.ConnectSlots(a, 0, b, 0, r.ID)
	require.NoError(t, err)
	r.Move(geom.Point{X: 160, Y: 20})
	require.NoError(t, g.RemoveLink(l.ID, KeepNone))

	assert.Equal(t, []ChangeKind{
		NodeAdded, NodeAdded, RerouteAdded, LinkAdded, RerouteMoved, LinkRemoved, RerouteRemoved,
	}, kinds)

	cancel()
	addNode(t, g, "c", 0, 0, nil, nil)
	assert.Len(t, kinds, 7)
}

func TestSlotPositions(t *testing.T) {
	g := New()
	n := addNode(t, g, "n", 100, 50, []string{"A", "B"}, []string{"A"})

	assert.Equal(t, geom.Point{X: 110, Y: 64}, n.InputPos(0))
	assert.Equal(t, geom.Point{X: 110, Y: 84}, n.InputPos(1))
	assert.Equal(t, geom.Point{X: 190, Y: 64}, n.OutputPos(0))
	assert.Equal(t, geom.Bounds{X: 100, Y: 20, Width: 100, Height: 90}, n.Bounds())

	i, ok := n.GetInputOnPos(geom.Point{X: 112, Y: 86})
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	o, ok := n.GetOutputOnPos(geom.Point{X: 188, Y: 62})
	assert.True(t, ok)
	assert.Equal(t, 0, o)

	_, ok = n.GetInputOnPos(geom.Point{X: 150, Y: 100})
	assert.False(t, ok)
}

func TestFindByType(t *testing.T) {
	g := New()
	n := addNode(t, g, "n", 0, 0, []string{"A", "B", "A"}, []string{"*", "B"})

	i, ok := n.FindInputByType("A")
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = n.FindInputByType("b")
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = n.FindInputByType("C")
	assert.False(t, ok)

	// Exact matches beat wildcards.
	o, ok := n.FindOutputByType("B")
	assert.True(t, ok)
	assert.Equal(t, 1, o)

	o, ok = n.FindOutputByType("C")
	assert.True(t, ok)
	assert.Equal(t, 0, o)
}

func TestWidgets(t *testing.T) {
	g := New()
	n := addNode(t, g, "n", 0, 0, []string{"INT"}, nil)
	w := n.AddWidget("seed", "number")
	n.Inputs[0].Widget = "seed"

	b := n.WidgetBounds(0)
	assert.Equal(t, geom.Bounds{X: 0, Y: 20, Width: 100, Height: 20}, b)

	got, ok := n.GetWidgetOnPos(geom.Point{X: 50, Y: 30})
	require.True(t, ok)
	assert.Equal(t, w, got)

	idx, ok := n.InputForWidget(w)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestDisconnect(t *testing.T) {
	g := New()
	a := addNode(t, g, "a", 0, 0, nil, []string{"INT"})
	b := addNode(t, g, "b", 300, 0, []string{"INT"}, nil)
	c := addNode(t, g, "c", 300, 100, []string{"INT"}, nil)
	_, err := a.ConnectTo(0, b, 0, ident.NoReroute)
	require.NoError(t, err)
	_, err = a.ConnectTo(0, c, 0, ident.NoReroute)
	require.NoError(t, err)

	require.NoError(t, b.DisconnectInput(0, false))
	assert.False(t, b.IsInputConnected(0))
	assert.Len(t, a.Outputs[0].Links, 1)

	require.NoError(t, a.DisconnectOutput(0))
	assert.Empty(t, g.Links())
	assert.False(t, c.IsInputConnected(0))
}
