package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/connector"
	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/layout"
	"github.com/ha1tch/graphlink/pkg/snapshot"
)

var eventKinds = []connector.EventKind{
	connector.BeforeMoveInput,
	connector.BeforeMoveOutput,
	connector.BeforeDropLinks,
	connector.AfterDropLinks,
	connector.DroppedOnNode,
	connector.DroppedOnReroute,
	connector.DroppedOnCanvas,
	connector.DroppedOnWidget,
	connector.InputMoved,
	connector.OutputMoved,
	connector.LinkCreated,
	connector.SessionReset,
}

func cmdInfo(args []string) error {
	w, _, err := openFromArgs(args, 1, "graphlink info <scene>")
	if err != nil {
		return err
	}
	defer w.Close()
	return runInfo(w, os.Stdout)
}

func runInfo(w *workspace, out io.Writer) error {
	g := w.graph
	header(out, "Graph")
	if w.scene.Name != "" {
		field(out, "Name", w.scene.Name)
	}
	field(out, "Nodes", len(g.Nodes()))
	field(out, "Links", len(g.Links()))
	field(out, "Floating", len(g.FloatingLinks()))
	field(out, "Reroutes", len(g.Reroutes()))
	if err := g.Validate(); err != nil {
		field(out, "Valid", colorError().Sprint(err))
	} else {
		field(out, "Valid", colorOK().Sprint("yes"))
	}
	fmt.Fprintln(out)

	sizes := w.store.IndexSizes()
	header(out, "Layout")
	field(out, "Nodes", sizes.Nodes)
	field(out, "Slots", sizes.Slots)
	field(out, "Segments", sizes.Segments)
	field(out, "Reroutes", sizes.Reroutes)
	field(out, "Operations", len(w.store.Operations()))
	field(out, "Version", w.store.Version())
	fmt.Fprintln(out)

	header(out, "Links")
	for _, l := range g.Links() {
		fmt.Fprintf(out, "  %s\n", describeLink(l))
	}
	return nil
}

func cmdHit(args []string) error {
	w, o, err := openFromArgs(args, 3, "graphlink hit <scene> <x> <y>")
	if err != nil {
		return err
	}
	defer w.Close()
	x, err := strconv.ParseFloat(o.positional[1], 64)
	if err != nil {
		return fmt.Errorf("bad x: %w", err)
	}
	y, err := strconv.ParseFloat(o.positional[2], 64)
	if err != nil {
		return fmt.Errorf("bad y: %w", err)
	}
	ev := connector.PointerEvent{Pos: geom.Point{X: x, Y: y}, Shift: o.shift, Ctrl: o.ctrl, Alt: o.alt}
	return runHit(w, ev, os.Stdout)
}

func runHit(w *workspace, ev connector.PointerEvent, out io.Writer) error {
	p := ev.Pos
	header(out, fmt.Sprintf("Hit at (%g,%g)", p.X, p.Y))

	if n := w.mirror.NodeOnPos(p.X, p.Y); n != nil {
		field(out, "Node", n.ID)
		if wd, ok := n.GetWidgetOnPos(p); ok {
			field(out, "Widget", wd.Name)
		}
	} else {
		miss(out, "Node")
	}
	if sl, ok := w.store.QuerySlotAtPoint(p); ok {
		field(out, "Slot", fmt.Sprintf("%s %s:%d", sl.Key.Kind, sl.Key.Node, sl.Key.Index))
	} else {
		miss(out, "Slot")
	}
	if r := w.mirror.RerouteOnPos(p.X, p.Y); r != nil {
		field(out, "Reroute", fmt.Sprintf("%d (parent %d, %d links)", r.ID, r.ParentID, r.TotalLinks()))
	} else {
		miss(out, "Reroute")
	}
	stroke := w.store.Config().LinkStrokeWidth
	if hit, ok := w.store.QueryLinkSegmentAtPoint(p, stroke); ok {
		field(out, "Link", fmt.Sprintf("%s (hop to reroute %d, %.1f away)", describeLink(w.graph.Link(hit.Link)), hit.Reroute, hit.Distance))
	} else {
		miss(out, "Link")
	}
	field(out, "Gesture", w.mirror.Pick(ev))
	return nil
}

func cmdDrag(args []string) error {
	w, o, err := openFromArgs(args, 1, "graphlink drag <scene> --from x,y --to x,y [--shift] [--ctrl] [--alt]")
	if err != nil {
		return err
	}
	defer w.Close()
	if o.from == nil || o.to == nil {
		return usageError("graphlink drag <scene> --from x,y --to x,y")
	}
	down := connector.PointerEvent{Pos: *o.from, Shift: o.shift, Ctrl: o.ctrl, Alt: o.alt}
	up := connector.PointerEvent{Pos: *o.to, Shift: o.shift, Ctrl: o.ctrl, Alt: o.alt}
	return runDrag(w, down, up, os.Stdout)
}

func runDrag(w *workspace, down, up connector.PointerEvent, out io.Writer) error {
	c := w.connector
	for _, kind := range eventKinds {
		cancel := c.Events().On(kind, func(ev *connector.Event) {
			fmt.Fprintf(out, "  %s\n", describeEvent(ev))
		})
		defer cancel()
	}
	before := len(w.store.Operations())

	header(out, "Events")
	gesture, err := w.mirror.Begin(c, down)
	if err != nil {
		return fmt.Errorf("%s at (%g,%g): %w", gesture, down.Pos.X, down.Pos.Y, err)
	}
	if !c.IsConnecting() {
		return fmt.Errorf("nothing to drag at (%g,%g) (%s)", down.Pos.X, down.Pos.Y, gesture)
	}
	fmt.Fprintf(out, "  %s %s with %d render link(s)\n", colorOK().Sprint("started"), gesture, len(c.RenderLinks()))
	dropErr := c.DropLinks(w.mirror, up)
	w.store.Flush()
	fmt.Fprintln(out)

	header(out, "Operations")
	printOps(out, w.store.Operations()[before:])
	fmt.Fprintln(out)

	header(out, "Links")
	for _, l := range w.graph.Links() {
		fmt.Fprintf(out, "  %s\n", describeLink(l))
	}
	for _, l := range w.graph.FloatingLinks() {
		fmt.Fprintf(out, "  %s %s\n", describeLink(l), colorDim().Sprint("(floating)"))
	}
	return dropErr
}

func cmdOplog(args []string) error {
	w, _, err := openFromArgs(args, 1, "graphlink oplog <scene>")
	if err != nil {
		return err
	}
	defer w.Close()
	bw := bufio.NewWriter(os.Stdout)
	defer bw.Flush()
	return runOplog(w, bw)
}

func runOplog(w *workspace, out io.Writer) error {
	ops := w.store.Operations()
	header(out, fmt.Sprintf("Operations (%d)", len(ops)))
	printOps(out, ops)
	fmt.Fprintln(out)

	counts := lo.CountValuesBy(ops, func(op layout.Operation) layout.OpKind { return op.Kind() })
	kinds := lo.Keys(counts)
	slices.Sort(kinds)
	header(out, "By kind")
	for _, k := range kinds {
		field(out, string(k), counts[k])
	}
	return nil
}

func cmdSnapshot(args []string) error {
	w, o, err := openFromArgs(args, 1, "graphlink snapshot <scene> -o <file.png|.svg|.dot> [--zoom z] [--mark x,y]")
	if err != nil {
		return err
	}
	defer w.Close()
	if o.output == "" {
		return usageError("graphlink snapshot <scene> -o <file.png|.svg|.dot>")
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(o.output)), ".")
	f, err := os.Create(o.output)
	if err != nil {
		return err
	}
	if err := runSnapshot(w, o, format, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Written: %s\n", o.output)
	return nil
}

// runSnapshot writes the workspace in the given format: png (the default),
// svg, or dot for the link topology.
func runSnapshot(w *workspace, o options, format string, out io.Writer) error {
	opts := snapshot.DefaultOptions()
	if o.zoom > 0 {
		opts.Zoom = o.zoom
	}
	opts.Marks = o.marks
	switch format {
	case "svg":
		return snapshot.RenderSVG(w.store, out, opts)
	case "dot", "gv":
		_, err := io.WriteString(out, snapshot.GenerateDOT(w.graph, w.scene.Name))
		return err
	default:
		return snapshot.Render(w.store, out, opts)
	}
}
