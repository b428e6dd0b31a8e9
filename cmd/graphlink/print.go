package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ha1tch/graphlink/pkg/connector"
	"github.com/ha1tch/graphlink/pkg/graph"
	"github.com/ha1tch/graphlink/pkg/layout"
)

func colorOK() *color.Color     { return color.New(color.FgGreen) }
func colorError() *color.Color  { return color.New(color.FgRed) }
func colorHeader() *color.Color { return color.New(color.Bold) }
func colorDim() *color.Color    { return color.New(color.FgHiBlack) }
func colorEvent() *color.Color  { return color.New(color.FgCyan) }

type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

func header(w io.Writer, title string) {
	fmt.Fprintln(w, colorHeader().Sprint(title))
}

func field(w io.Writer, name string, value any) {
	fmt.Fprintf(w, "  %-12s %v\n", name+":", value)
}

func miss(w io.Writer, name string) {
	fmt.Fprintf(w, "  %-12s %s\n", name+":", colorDim().Sprint("-"))
}

func describeLink(l *graph.Link) string {
	if l == nil {
		return "<nil>"
	}
	origin := "?"
	if l.OriginID != "" {
		origin = fmt.Sprintf("%s:%d", l.OriginID, l.OriginSlot)
	}
	target := "?"
	if l.TargetID != "" {
		target = fmt.Sprintf("%s:%d", l.TargetID, l.TargetSlot)
	}
	s := fmt.Sprintf("#%d %s -> %s", l.ID, origin, target)
	if l.ParentID != 0 {
		s += fmt.Sprintf(" via %d", l.ParentID)
	}
	if l.Type != "" {
		s += " [" + l.Type + "]"
	}
	return s
}

func describeEvent(ev *connector.Event) string {
	parts := []string{colorEvent().Sprint(string(ev.Kind))}
	if ev.Node != nil {
		parts = append(parts, "node="+string(ev.Node.ID))
	}
	if ev.Reroute != nil {
		parts = append(parts, fmt.Sprintf("reroute=%d", ev.Reroute.ID))
	}
	if ev.Widget != nil {
		parts = append(parts, "widget="+ev.Widget.Name)
	}
	if ev.Link != nil {
		parts = append(parts, "link="+describeLink(ev.Link))
	}
	if ev.RenderLink != nil {
		parts = append(parts, "render="+ev.RenderLink.Variant.String())
	}
	return strings.Join(parts, " ")
}

func describeOp(op layout.Operation) string {
	var detail string
	switch o := op.(type) {
	case *layout.MoveNode:
		detail = fmt.Sprintf("%s to (%g,%g)", o.NodeID, o.Position.X, o.Position.Y)
	case *layout.ResizeNode:
		detail = fmt.Sprintf("%s to %gx%g", o.NodeID, o.Size.Width, o.Size.Height)
	case *layout.SetNodeZIndex:
		detail = fmt.Sprintf("%s z=%d", o.NodeID, o.ZIndex)
	case *layout.CreateNode:
		detail = fmt.Sprintf("%s at (%g,%g)", o.Layout.ID, o.Layout.Position.X, o.Layout.Position.Y)
	case *layout.DeleteNode:
		detail = string(o.NodeID)
	case *layout.BatchUpdateBounds:
		detail = fmt.Sprintf("%d nodes", len(o.Bounds))
	case *layout.CreateLink:
		detail = fmt.Sprintf("#%d %s:%d -> %s:%d", o.LinkID, o.SourceNode, o.SourceSlot, o.TargetNode, o.TargetSlot)
	case *layout.DeleteLink:
		detail = fmt.Sprintf("#%d", o.LinkID)
	case *layout.CreateReroute:
		detail = fmt.Sprintf("%d at (%g,%g)", o.RerouteID, o.Position.X, o.Position.Y)
	case *layout.DeleteReroute:
		detail = fmt.Sprintf("%d", o.RerouteID)
	case *layout.MoveReroute:
		detail = fmt.Sprintf("%d to (%g,%g)", o.RerouteID, o.Position.X, o.Position.Y)
	}
	m := op.Meta()
	return fmt.Sprintf("%-18s %-26s %s", op.Kind(), detail, colorDim().Sprintf("%s/%s", m.Source, m.Actor))
}

func printOps(w io.Writer, ops []layout.Operation) {
	if len(ops) == 0 {
		fmt.Fprintln(w, colorDim().Sprint("  (none)"))
		return
	}
	for i, op := range ops {
		fmt.Fprintf(w, "  %3d %s\n", i+1, describeOp(op))
	}
}
