package snapshot

import (
	"fmt"
	"html"
	"image/color"
	"io"
	"math"
	"strings"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
	"github.com/ha1tch/graphlink/pkg/layout"
)

// RenderSVG writes the same picture as Render as an SVG document. Link
// segments that are cubic splines stay curves; Supersample and MaxSide are
// ignored.
func RenderSVG(s *layout.Store, w io.Writer, opts Options) error {
	content, ok := contentBounds(s)
	if !ok {
		return ErrEmpty
	}
	for _, m := range opts.Marks {
		content = content.Union(geom.BoundsAround(m, 1))
	}
	content = content.Expand(opts.Padding)
	zoom := opts.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	width := int(math.Ceil(content.Width * zoom))
	height := int(math.Ceil(content.Height * zoom))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="%.1f %.1f %.1f %.1f">
<style>
  .node { fill: %s; stroke: %s; stroke-width: 1; }
  .input { fill: none; stroke: %s; stroke-width: 1; }
  .output { fill: none; stroke: %s; stroke-width: 1; }
  .link { fill: none; stroke: %s; stroke-width: %.1f; }
  .reroute { fill: none; stroke: %s; stroke-width: 1.5; }
  .mark { stroke: %s; stroke-width: 1.5; }
  .label { font-family: sans-serif; font-size: 11px; fill: %s; dominant-baseline: hanging; }
</style>
`, width, height, content.X, content.Y, content.Width, content.Height,
		hex(colorNodeFill), hex(colorNodeBorder), hex(colorInput), hex(colorOutput),
		hex(colorLink), s.Config().LinkStrokeWidth, hex(colorReroute), hex(colorMark), hex(colorText)))

	sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>
`, content.X, content.Y, content.Width, content.Height, hex(colorBackground)))

	// Links first, under nodes
	for _, id := range s.Links() {
		for _, seg := range s.Segments(id) {
			sb.WriteString(fmt.Sprintf(`<path class="link" data-link="%d" d="%s"/>
`, id, svgPath(seg.Path)))
		}
	}

	for _, n := range s.Nodes() {
		if n.Hidden {
			continue
		}
		writeRect(&sb, "node", n.Bounds)
		if opts.Labels {
			sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" class="label">%s</text>
`, n.Bounds.X+4, n.Bounds.Y+4, html.EscapeString(string(n.ID))))
		}
		for _, sl := range s.SlotsForNode(n.ID) {
			class := "output"
			if sl.Key.Kind == ident.Input {
				class = "input"
			}
			writeRect(&sb, class, sl.Bounds)
		}
	}

	for _, r := range s.Reroutes() {
		sb.WriteString(fmt.Sprintf(`<circle class="reroute" data-reroute="%d" cx="%.1f" cy="%.1f" r="%.1f"/>
`, r.ID, r.Position.X, r.Position.Y, r.Radius))
	}

	for _, m := range opts.Marks {
		sb.WriteString(fmt.Sprintf(`<path class="mark" d="M %.1f %.1f H %.1f M %.1f %.1f V %.1f"/>
`, m.X-6, m.Y, m.X+6, m.X, m.Y-6, m.Y+6))
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeRect(sb *strings.Builder, class string, b geom.Bounds) {
	sb.WriteString(fmt.Sprintf(`<rect class="%s" x="%.1f" y="%.1f" width="%.1f" height="%.1f"/>
`, class, b.X, b.Y, b.Width, b.Height))
}

// svgPath emits cubic splines as C commands and anything else as a
// polyline.
func svgPath(pts []geom.Point) string {
	if len(pts) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("M %.1f %.1f", pts[0].X, pts[0].Y))
	if len(pts) >= 4 && (len(pts)-1)%3 == 0 {
		for i := 1; i+2 < len(pts); i += 3 {
			sb.WriteString(fmt.Sprintf(" C %.1f %.1f, %.1f %.1f, %.1f %.1f",
				pts[i].X, pts[i].Y, pts[i+1].X, pts[i+1].Y, pts[i+2].X, pts[i+2].Y))
		}
		return sb.String()
	}
	for _, p := range pts[1:] {
		sb.WriteString(fmt.Sprintf(" L %.1f %.1f", p.X, p.Y))
	}
	return sb.String()
}

func hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
