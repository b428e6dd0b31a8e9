package main

import (
	"bytes"
	"image/png"
	"io"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/graphlink/pkg/config"
	"github.com/ha1tch/graphlink/pkg/connector"
	"github.com/ha1tch/graphlink/pkg/geom"
)

const demoScene = "../../pkg/scene/testdata/demo.yaml"

func demoWorkspace(t *testing.T) *workspace {
	t.Helper()
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })
	w, err := newWorkspace(demoScene, config.Default(), io.Discard)
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func TestParseArgs(t *testing.T) {
	o, err := parseArgs([]string{"scene.yaml", "--from", "1,2", "--to", " 3 , 4 ", "--shift", "-o", "x.png", "--mark", "5,6", "--mark", "7,8", "--zoom", "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"scene.yaml"}, o.positional)
	assert.Equal(t, &geom.Point{X: 1, Y: 2}, o.from)
	assert.Equal(t, &geom.Point{X: 3, Y: 4}, o.to)
	assert.True(t, o.shift)
	assert.False(t, o.ctrl)
	assert.Equal(t, "x.png", o.output)
	assert.Equal(t, []geom.Point{{X: 5, Y: 6}, {X: 7, Y: 8}}, o.marks)
	assert.Equal(t, 2.0, o.zoom)

	tests := []struct {
		name string
		args []string
	}{
		{"missing value", []string{"--to"}},
		{"bad point", []string{"--from", "12"}},
		{"bad number", []string{"--from", "a,1"}},
		{"bad zoom", []string{"--zoom", "-1"}},
		{"unknown flag", []string{"--frobnicate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestOpenFromArgsNeedsScene(t *testing.T) {
	_, _, err := openFromArgs(nil, 1, "graphlink info <scene>")
	assert.EqualError(t, err, "usage: graphlink info <scene>")
}

func TestInfo(t *testing.T) {
	w := demoWorkspace(t)
	var buf bytes.Buffer
	require.NoError(t, runInfo(w, &buf))
	out := buf.String()
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "Valid:       yes")
	assert.Contains(t, out, "#2 source:1 -> print:0 via 2")
}

func TestHit(t *testing.T) {
	w := demoWorkspace(t)
	var buf bytes.Buffer
	require.NoError(t, runHit(w, connector.PointerEvent{Pos: geom.Point{X: 200, Y: 150}}, &buf))
	out := buf.String()
	assert.Contains(t, out, "Reroute:     1")
	assert.Contains(t, out, "from-reroute")
}

func TestDragNewLinkToNodeBody(t *testing.T) {
	w := demoWorkspace(t)
	add := w.graph.Node("add")
	source := w.graph.Node("source")
	require.False(t, add.IsInputConnected(1))

	var buf bytes.Buffer
	down := connector.PointerEvent{Pos: add.InputPos(1)}
	up := connector.PointerEvent{Pos: geom.Point{X: 60, Y: 30}}
	require.Same(t, source, w.mirror.NodeOnPos(up.Pos.X, up.Pos.Y))
	require.NoError(t, runDrag(w, down, up, &buf))

	assert.True(t, add.IsInputConnected(1))
	l := w.graph.Link(add.Inputs[1].Link)
	require.NotNil(t, l)
	assert.Equal(t, source.ID, l.OriginID)
	assert.Equal(t, 0, l.OriginSlot, "first output whose type matches")

	out := buf.String()
	assert.Contains(t, out, "new-from-input")
	assert.Contains(t, out, string(connector.DroppedOnNode))
	assert.Contains(t, out, string(connector.LinkCreated))
	assert.Contains(t, out, "createLink")
}

func TestDragOnEmptyCanvasFails(t *testing.T) {
	w := demoWorkspace(t)
	var buf bytes.Buffer
	err := runDrag(w, connector.PointerEvent{Pos: geom.Point{X: -500, Y: -500}}, connector.PointerEvent{}, &buf)
	assert.ErrorContains(t, err, "nothing to drag")
}

func TestOplog(t *testing.T) {
	w := demoWorkspace(t)
	var buf bytes.Buffer
	require.NoError(t, runOplog(w, &buf))
	out := buf.String()
	assert.Contains(t, out, "createNode")
	assert.Contains(t, out, "By kind")
	assert.Contains(t, out, "createLink:  3")
}

func TestSnapshot(t *testing.T) {
	w := demoWorkspace(t)
	var buf bytes.Buffer
	o := options{zoom: 0.5, marks: []geom.Point{{X: 200, Y: 150}}}
	require.NoError(t, runSnapshot(w, o, "png", &buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)

	buf.Reset()
	require.NoError(t, runSnapshot(w, o, "svg", &buf))
	assert.Contains(t, buf.String(), "<svg")

	buf.Reset()
	require.NoError(t, runSnapshot(w, o, "dot", &buf))
	assert.Contains(t, buf.String(), `label="demo";`)
	assert.Contains(t, buf.String(), `"r2" -> "print":i0`)
}
