package snapshot

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/layout"
	"github.com/ha1tch/graphlink/pkg/layoutsync"
	"github.com/ha1tch/graphlink/pkg/scene"
)

func assertNear(t *testing.T, want color.RGBA, got color.Color) {
	t.Helper()
	r, g, b, _ := got.RGBA()
	assert.InDelta(t, float64(want.R), float64(r>>8), 2)
	assert.InDelta(t, float64(want.G), float64(g>>8), 2)
	assert.InDelta(t, float64(want.B), float64(b>>8), 2)
}

// nearby reports whether a pixel within two pixels of (x, y) is close to c.
func nearby(img image.Image, x, y float64, c color.RGBA) bool {
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			r, g, b, _ := img.At(int(x)+dx, int(y)+dy).RGBA()
			if absDiff(r>>8, c.R) < 40 && absDiff(g>>8, c.G) < 40 && absDiff(b>>8, c.B) < 40 {
				return true
			}
		}
	}
	return false
}

func absDiff(a uint32, b uint8) uint32 {
	if a > uint32(b) {
		return a - uint32(b)
	}
	return uint32(b) - a
}

func TestRenderEmptyStore(t *testing.T) {
	var buf bytes.Buffer
	err := Render(layout.New(), &buf, DefaultOptions())
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Zero(t, buf.Len())
}

func TestRenderSingleNode(t *testing.T) {
	s := layout.New()
	require.NoError(t, s.CreateNode("n", geom.Point{X: 100, Y: 100}, geom.Size{Width: 100, Height: 60}))
	n, ok := s.Node("n")
	require.True(t, ok)

	opts := DefaultOptions()
	opts.Labels = false
	img, err := RenderImage(s, opts)
	require.NoError(t, err)

	want := n.Bounds.Expand(opts.Padding)
	assert.Equal(t, int(want.Width), img.Bounds().Dx())
	assert.Equal(t, int(want.Height), img.Bounds().Dy())

	body := n.Bounds.Center()
	assertNear(t, colorNodeFill, img.At(int(body.X-want.X), int(body.Y-want.Y)))
	assertNear(t, colorBackground, img.At(2, 2))
}

func TestMarksExtendCanvas(t *testing.T) {
	s := layout.New()
	require.NoError(t, s.CreateNode("n", geom.Point{}, geom.Size{Width: 50, Height: 50}))

	opts := DefaultOptions()
	plain, err := RenderImage(s, opts)
	require.NoError(t, err)

	opts.Marks = []geom.Point{{X: 400, Y: 25}}
	marked, err := RenderImage(s, opts)
	require.NoError(t, err)
	assert.Greater(t, marked.Bounds().Dx(), plain.Bounds().Dx())

	n, _ := s.Node("n")
	origin := n.Bounds.Expand(opts.Padding).Pos()
	assert.True(t, nearby(marked, 400-origin.X, 25-origin.Y, colorMark))
}

func TestMaxSideCapsOutput(t *testing.T) {
	s := layout.New()
	require.NoError(t, s.CreateNode("wide", geom.Point{}, geom.Size{Width: 5000, Height: 100}))

	opts := DefaultOptions()
	opts.MaxSide = 500
	opts.Supersample = 1
	img, err := RenderImage(s, opts)
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), 500)
}

func TestRenderScene(t *testing.T) {
	sc, err := scene.Load("../scene/testdata/demo.yaml")
	require.NoError(t, err)
	g, err := sc.Build()
	require.NoError(t, err)
	s := layout.New()
	m, err := layoutsync.Attach(g, s)
	require.NoError(t, err)
	defer m.Detach()

	var buf bytes.Buffer
	require.NoError(t, Render(s, &buf, DefaultOptions()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	content, ok := contentBounds(s)
	require.True(t, ok)
	assert.Equal(t, int(math.Ceil(content.Width+2*40)), img.Bounds().Dx())

	r, ok := s.Reroute(1)
	require.True(t, ok)
	origin := content.Expand(40).Pos()
	assert.True(t, nearby(img, r.Position.X+r.Radius-origin.X, r.Position.Y-origin.Y, colorReroute))
}
