package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/graph"
	"github.com/ha1tch/graphlink/pkg/ident"
)

func TestLoadDemo(t *testing.T) {
	s, err := Load("testdata/demo.yaml")
	require.NoError(t, err)
	assert.Equal(t, "demo", s.Name)

	g, err := s.Build()
	require.NoError(t, err)
	assert.Len(t, g.Nodes(), 3)
	assert.Len(t, g.Links(), 3)
	assert.Len(t, g.Reroutes(), 2)

	add := g.Node("add")
	require.NotNil(t, add)
	assert.Equal(t, "Add", add.Title)
	assert.Equal(t, geom.Point{X: 300, Y: 0}, add.Pos)
	assert.Equal(t, geom.Size{Width: 120, Height: 80}, add.Size)
	assert.Equal(t, "b", add.Inputs[1].Widget)
	require.Len(t, add.Widgets, 1)

	pr := g.Node("print")
	l := g.Link(pr.Inputs[0].Link)
	require.NotNil(t, l)
	assert.Equal(t, ident.NodeID("source"), l.OriginID)
	assert.Equal(t, 1, l.OriginSlot)
	assert.Equal(t, ident.RerouteID(2), l.ParentID)
	assert.Contains(t, g.Reroute(1).LinkIDs, l.ID)
	assert.Contains(t, g.Reroute(2).LinkIDs, l.ID)

	assert.True(t, pr.IsInputConnected(1), "wildcard input accepts INT")
	require.NoError(t, g.Validate())
}

func TestBuildUsesGraphOptions(t *testing.T) {
	s, err := Load("testdata/demo.yaml")
	require.NoError(t, err)

	strict, err := graph.NewExprMatcher(`from == to`)
	require.NoError(t, err)
	_, err = s.Build(graph.WithTypeMatcher(strict))
	assert.ErrorIs(t, err, graph.ErrTypeMismatch)
}

func TestLayeredPlacement(t *testing.T) {
	s, err := Load("testdata/auto.yaml")
	require.NoError(t, err)
	g, err := s.Build()
	require.NoError(t, err)

	a, b, c := g.Node("a"), g.Node("b"), g.Node("c")
	assert.Less(t, a.Pos.X, b.Pos.X)
	assert.Less(t, b.Pos.X, c.Pos.X)
	assert.Equal(t, a.Pos.Y, c.Pos.Y)
	assert.Equal(t, g.Metrics().TitleHeight, a.Pos.Y, "titles start at the top edge")
	assert.False(t, a.Bounds().Intersects(b.Bounds()))
}

func TestGridPlacementBelowExplicitNodes(t *testing.T) {
	m := graph.DefaultMetrics()
	s := &Scene{Nodes: []NodeSpec{
		{ID: "fixed", Pos: &Point{X: 0, Y: 0}, Size: &Size{Width: 100, Height: 50}},
		{ID: "p", Inputs: []SlotSpec{{Name: "in"}}},
		{ID: "q", Outputs: []SlotSpec{{Name: "out"}}},
		{ID: "r"},
	}}
	pos := Place(s, PlaceGrid, m)
	require.Len(t, pos, 4)
	assert.Equal(t, geom.Point{}, pos["fixed"])

	var bounds []geom.Bounds
	for _, id := range []string{"fixed", "p", "q", "r"} {
		n := s.Nodes[indexOf(s, id)]
		sz := nodeExtent(n, m)
		bounds = append(bounds, geom.Bounds{X: pos[id].X, Y: pos[id].Y - m.TitleHeight, Width: sz.Width, Height: sz.Height + m.TitleHeight})
	}
	for i := range bounds {
		for j := i + 1; j < len(bounds); j++ {
			assert.False(t, bounds[i].Intersects(bounds[j]), "nodes %d and %d overlap", i, j)
		}
	}
	assert.Greater(t, pos["p"].Y-m.TitleHeight, 50.0)
}

func indexOf(s *Scene, id string) int {
	for i, n := range s.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func TestDefaultSize(t *testing.T) {
	m := graph.DefaultMetrics()
	spec := NodeSpec{
		ID:      "n",
		Inputs:  []SlotSpec{{Name: "a"}, {Name: "b"}},
		Outputs: []SlotSpec{{Name: "x"}, {Name: "y"}, {Name: "z"}},
		Widgets: []WidgetSpec{{Name: "w"}},
	}
	sz := DefaultSize(spec, m)
	assert.Equal(t, 3*m.SlotHeight+m.WidgetHeight, sz.Height)
	assert.GreaterOrEqual(t, sz.Width, 4*m.SlotHeight)

	empty := DefaultSize(NodeSpec{ID: "e"}, m)
	assert.Equal(t, m.SlotHeight, empty.Height)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"empty document", "", ErrEmpty},
		{"no nodes", "name: x\n", ErrEmpty},
		{"duplicate node", "nodes:\n  - {id: a}\n  - {id: a}\n", ErrDuplicateID},
		{"duplicate reroute", "nodes: [{id: a}]\nreroutes:\n  - {id: 1}\n  - {id: 1}\n", ErrDuplicateID},
		{"unknown parent", "nodes: [{id: a}]\nreroutes:\n  - {id: 1, parent: 9}\n", ErrUnknownParent},
		{"reroute loop", "nodes: [{id: a}]\nreroutes:\n  - {id: 1, parent: 2}\n  - {id: 2, parent: 1}\n", graph.ErrRerouteLoop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Parse([]byte("nodes:\n  - {title: nameless}\n"))
	assert.Error(t, err, "node id is required")
	_, err = Parse([]byte("layout: spiral\nnodes: [{id: a}]\n"))
	assert.Error(t, err, "unknown layout")
}

func TestBuildErrors(t *testing.T) {
	base := `
nodes:
  - id: a
    outputs: [{name: out, type: INT}]
  - id: b
    inputs: [{name: in, type: STRING}, {name: num, type: INT}]
`
	tests := []struct {
		name  string
		links string
		want  error
	}{
		{"bad endpoint", "links:\n  - {from: a, to: 'b:0'}\n", ErrBadEndpoint},
		{"unknown node", "links:\n  - {from: 'z:0', to: 'b:0'}\n", graph.ErrNodeNotFound},
		{"unknown slot name", "links:\n  - {from: 'a:nope', to: 'b:0'}\n", graph.ErrSlotNotFound},
		{"slot index out of range", "links:\n  - {from: 'a:0', to: 'b:7'}\n", graph.ErrSlotNotFound},
		{"type mismatch", "links:\n  - {from: 'a:out', to: 'b:in'}\n", graph.ErrTypeMismatch},
		{"unknown via", "links:\n  - {from: 'a:out', to: 'b:num', via: 4}\n", graph.ErrRerouteNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(base + tt.links))
			require.NoError(t, err)
			_, err = s.Build()
			assert.ErrorIs(t, err, tt.want)
		})
	}

	s, err := Parse([]byte(base + "links:\n  - {from: 'a:0', to: 'b:num'}\n  - {from: 'a:0', to: 'b:1'}\n"))
	require.NoError(t, err)
	_, err = s.Build()
	assert.ErrorContains(t, err, "already connected")
}
