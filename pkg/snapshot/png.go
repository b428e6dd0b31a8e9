// Package snapshot renders the geometry held by a layout store to PNG or
// SVG, and the link topology of a graph to Graphviz DOT.
//
// The picture shows what hit-tests see: node bounds, slot boxes, link
// segment paths and reroute circles. It is a debugging aid, not a node
// renderer.
package snapshot

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
	"github.com/ha1tch/graphlink/pkg/layout"
)

// ErrEmpty is returned when the store holds nothing to draw.
var ErrEmpty = errors.New("snapshot: nothing to draw")

// Options configures rendering.
type Options struct {
	Zoom        float64 // output pixels per canvas unit
	Padding     float64 // canvas units around the content
	Supersample int
	Labels      bool
	// Marks are drawn as crosshairs, e.g. the point of a hit-test.
	Marks []geom.Point
	// MaxSide caps the output width and height in pixels.
	MaxSide int
}

// DefaultOptions returns options for a pixel canvas.
func DefaultOptions() Options {
	return Options{
		Zoom:        1,
		Padding:     40,
		Supersample: 4,
		Labels:      true,
		MaxSide:     4096,
	}
}

var (
	colorBackground = color.RGBA{255, 255, 255, 255}
	colorNodeFill   = color.RGBA{236, 239, 241, 255} // #eceff1
	colorNodeBorder = color.RGBA{69, 90, 100, 255}   // #455a64
	colorText       = color.RGBA{51, 51, 51, 255}    // #333
	colorInput      = color.RGBA{46, 125, 50, 255}   // #2e7d32
	colorOutput     = color.RGBA{21, 101, 192, 255}  // #1565c0
	colorLink       = color.RGBA{102, 102, 102, 255} // #666
	colorReroute    = color.RGBA{230, 81, 0, 255}    // #e65100
	colorMark       = color.RGBA{198, 40, 40, 255}   // #c62828
)

type renderContext struct {
	img    *image.RGBA
	scale  float64 // canvas unit to image pixel
	origin geom.Point
	line   float64
	face   font.Face
}

func newRenderContext(img *image.RGBA, scale float64, origin geom.Point, supersample int) (*renderContext, error) {
	fnt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    float64(11 * supersample),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	return &renderContext{
		img:    img,
		scale:  scale,
		origin: origin,
		line:   float64(supersample) * 1.5,
		face:   face,
	}, nil
}

func (ctx *renderContext) px(p geom.Point) (float64, float64) {
	return (p.X - ctx.origin.X) * ctx.scale, (p.Y - ctx.origin.Y) * ctx.scale
}

// contentBounds returns the union of everything the store indexes.
func contentBounds(s *layout.Store) (geom.Bounds, bool) {
	var b geom.Bounds
	found := false
	add := func(o geom.Bounds) {
		if !found {
			b, found = o, true
			return
		}
		b = b.Union(o)
	}
	for _, n := range s.Nodes() {
		if !n.Hidden {
			add(n.Bounds)
		}
	}
	for _, id := range s.Links() {
		if l, ok := s.Link(id); ok && len(l.Segments) > 0 {
			add(l.Bounds)
		}
	}
	for _, r := range s.Reroutes() {
		add(r.Bounds)
	}
	return b, found
}

// Render draws the store and encodes it as PNG.
func Render(s *layout.Store, w io.Writer, opts Options) error {
	img, err := RenderImage(s, opts)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// RenderImage draws the store. The image is drawn at Supersample times the
// output size and scaled down.
func RenderImage(s *layout.Store, opts Options) (*image.RGBA, error) {
	content, ok := contentBounds(s)
	if !ok {
		return nil, ErrEmpty
	}
	for _, m := range opts.Marks {
		content = content.Union(geom.BoundsAround(m, 1))
	}
	content = content.Expand(opts.Padding)

	zoom := opts.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	if opts.MaxSide > 0 {
		side := math.Max(content.Width, content.Height) * zoom
		if side > float64(opts.MaxSide) {
			zoom *= float64(opts.MaxSide) / side
		}
	}
	ss := max(opts.Supersample, 1)
	width := int(math.Ceil(content.Width * zoom))
	height := int(math.Ceil(content.Height * zoom))

	large := image.NewRGBA(image.Rect(0, 0, width*ss, height*ss))
	draw.Draw(large, large.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)

	ctx, err := newRenderContext(large, zoom*float64(ss), content.Pos(), ss)
	if err != nil {
		return nil, err
	}

	for _, id := range s.Links() {
		for _, seg := range s.Segments(id) {
			drawPath(ctx, geom.Flatten(seg.Path), colorLink)
		}
	}
	for _, n := range s.Nodes() {
		if n.Hidden {
			continue
		}
		drawRect(ctx, n.Bounds, colorNodeFill, colorNodeBorder)
		if opts.Labels {
			drawText(ctx, geom.Point{X: n.Bounds.X + 4, Y: n.Bounds.Y + 4}, string(n.ID), colorText)
		}
		for _, sl := range s.SlotsForNode(n.ID) {
			c := colorOutput
			if sl.Key.Kind == ident.Input {
				c = colorInput
			}
			drawRect(ctx, sl.Bounds, nil, c)
		}
	}
	for _, r := range s.Reroutes() {
		drawCircle(ctx, r.Position, r.Radius, colorReroute)
	}
	for _, m := range opts.Marks {
		drawMark(ctx, m, colorMark)
	}

	if ss == 1 {
		return large, nil
	}
	final := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(final, final.Bounds(), large, large.Bounds(), draw.Over, nil)
	return final, nil
}

// drawLine draws a thick line between two image points.
func drawLine(ctx *renderContext, x1, y1, x2, y2 float64, c color.Color) {
	dx, dy := x2-x1, y2-y1
	steps := math.Max(math.Max(math.Abs(dx), math.Abs(dy)), 1)
	half := ctx.line / 2
	dist := math.Hypot(dx, dy)
	if dist < 1 {
		for ty := -half; ty <= half; ty++ {
			for tx := -half; tx <= half; tx++ {
				ctx.img.Set(int(x1+tx), int(y1+ty), c)
			}
		}
		return
	}
	perpX, perpY := -dy/dist, dx/dist
	for i := 0.0; i <= steps; i++ {
		t := i / steps
		cx, cy := x1+dx*t, y1+dy*t
		for off := -half; off <= half; off += 0.5 {
			ctx.img.Set(int(cx+perpX*off), int(cy+perpY*off), c)
		}
	}
}

func drawPath(ctx *renderContext, pts []geom.Point, c color.Color) {
	for i := 1; i < len(pts); i++ {
		x1, y1 := ctx.px(pts[i-1])
		x2, y2 := ctx.px(pts[i])
		drawLine(ctx, x1, y1, x2, y2, c)
	}
}

// drawRect fills b when fill is non-nil and strokes its outline.
func drawRect(ctx *renderContext, b geom.Bounds, fill, stroke color.Color) {
	x1, y1 := ctx.px(b.Pos())
	x2, y2 := ctx.px(geom.Point{X: b.Right(), Y: b.Bottom()})
	if fill != nil {
		r := image.Rect(int(x1), int(y1), int(x2), int(y2))
		draw.Draw(ctx.img, r, image.NewUniform(fill), image.Point{}, draw.Src)
	}
	drawLine(ctx, x1, y1, x2, y1, stroke)
	drawLine(ctx, x2, y1, x2, y2, stroke)
	drawLine(ctx, x2, y2, x1, y2, stroke)
	drawLine(ctx, x1, y2, x1, y1, stroke)
}

func drawCircle(ctx *renderContext, centre geom.Point, r float64, c color.Color) {
	const steps = 48
	prev := geom.Point{X: centre.X + r, Y: centre.Y}
	for i := 1; i <= steps; i++ {
		a := 2 * math.Pi * float64(i) / steps
		p := geom.Point{X: centre.X + r*math.Cos(a), Y: centre.Y + r*math.Sin(a)}
		drawPath(ctx, []geom.Point{prev, p}, c)
		prev = p
	}
}

func drawMark(ctx *renderContext, p geom.Point, c color.Color) {
	x, y := ctx.px(p)
	arm := 6 * ctx.line
	drawLine(ctx, x-arm, y, x+arm, y, c)
	drawLine(ctx, x, y-arm, x, y+arm, c)
}

// drawText draws text with its top-left corner at p.
func drawText(ctx *renderContext, p geom.Point, text string, c color.Color) {
	x, y := ctx.px(p)
	ascent := ctx.face.Metrics().Ascent.Ceil()
	d := &font.Drawer{
		Dst:  ctx.img,
		Src:  image.NewUniform(c),
		Face: ctx.face,
		Dot:  fixed.Point26_6{X: fixed.I(int(x)), Y: fixed.I(int(y) + ascent)},
	}
	d.DrawString(text)
}
