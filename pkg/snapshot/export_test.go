package snapshot

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/graph"
	"github.com/ha1tch/graphlink/pkg/layout"
	"github.com/ha1tch/graphlink/pkg/layoutsync"
	"github.com/ha1tch/graphlink/pkg/scene"
)

func demo(t *testing.T) (*graph.Graph, *layout.Store) {
	t.Helper()
	sc, err := scene.Load("../scene/testdata/demo.yaml")
	require.NoError(t, err)
	g, err := sc.Build()
	require.NoError(t, err)
	s := layout.New()
	m, err := layoutsync.Attach(g, s)
	require.NoError(t, err)
	t.Cleanup(m.Detach)
	return g, s
}

func TestRenderSVG(t *testing.T) {
	_, s := demo(t)
	opts := DefaultOptions()
	opts.Marks = []geom.Point{{X: 10, Y: 10}}

	var buf bytes.Buffer
	require.NoError(t, RenderSVG(s, &buf, opts))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.True(t, strings.HasSuffix(out, "</svg>\n"))
	assert.Equal(t, 3, strings.Count(out, `class="node"`))
	assert.Equal(t, 2, strings.Count(out, `class="reroute"`))
	assert.Equal(t, 1, strings.Count(out, `class="mark"`))
	assert.Contains(t, out, `data-link="2"`)
	assert.Contains(t, out, " C ", "spline segments stay curves")
	assert.Contains(t, out, ">source</text>")
}

func TestRenderSVGEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderSVG(layout.New(), &buf, DefaultOptions()), ErrEmpty)
}

func TestSVGPath(t *testing.T) {
	assert.Equal(t, "", svgPath(nil))
	assert.Equal(t, "M 0.0 0.0 L 10.0 0.0 L 10.0 5.0",
		svgPath([]geom.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 5}}))
	assert.Equal(t, "M 0.0 0.0 C 1.0 0.0, 2.0 0.0, 3.0 0.0",
		svgPath([]geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}}))
	assert.Equal(t, "#e65100", hex(colorReroute))
}

func TestGenerateDOT(t *testing.T) {
	g, _ := demo(t)
	out := GenerateDOT(g, `demo "scene"`)

	assert.True(t, strings.HasPrefix(out, "digraph G {\n"))
	assert.Contains(t, out, `label="demo \"scene\"";`)
	assert.Contains(t, out, `"source" [shape=record, label="{}|Number|{<o0> value|<o1> label}"];`)
	assert.Contains(t, out, `"r1" [shape=point, xlabel="1"];`)

	// Link 2 runs source:1 -> r1 -> r2 -> print:0.
	assert.Contains(t, out, `"source":o1 -> "r1" [label="#2 STRING"];`)
	assert.Contains(t, out, `"r1" -> "r2" [label="#2 STRING"];`)
	assert.Contains(t, out, `"r2" -> "print":i0 [label="#2 STRING"];`)
	assert.Contains(t, out, `"source":o0 -> "add":i0 [label="#1 INT"];`)
}

func TestEscapeRecord(t *testing.T) {
	assert.Equal(t, `a\|b\{c\}`, escapeRecord("a|b{c}"))
	assert.Equal(t, `say \"hi\"`, escapeDOT(`say "hi"`))
}
