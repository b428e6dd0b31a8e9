package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
	"github.com/ha1tch/graphlink/pkg/layout"
)

// Styles
var (
	styleDefault    = tcell.StyleDefault
	styleTitle      = tcell.StyleDefault.Bold(true).Foreground(tcell.ColorWhite)
	styleNode       = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleNodeDrag   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleInput      = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleOutput     = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleSlotName   = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleWidget     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleLink       = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleLinkDrag   = tcell.StyleDefault.Foreground(tcell.NewRGBColor(200, 162, 200)) // Lilac
	styleReroute    = tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true)
	styleSidebar    = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleSidebarH   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleStatus     = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
	styleMsgInfo    = tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorNavy)
	styleMsgError   = tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorNavy).Bold(true)
	styleMsgSuccess = tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorNavy)
	styleHelp       = tcell.StyleDefault.Foreground(tcell.ColorGray) // Help bar on default background
	styleBorder     = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

func (ed *Editor) draw() {
	ed.screen.Clear()
	w, h := ed.screen.Size()
	canvasW, canvasH := ed.canvasWidth(), max(h-2, 0)

	ed.drawLinks(canvasW, canvasH)
	for _, n := range ed.store.Nodes() {
		if !n.Hidden {
			ed.drawNode(n, canvasW, canvasH)
		}
	}
	for _, r := range ed.store.Reroutes() {
		x, y := ed.view.toCell(r.Position)
		ed.setCell(x, y, '◆', styleReroute, canvasW, canvasH)
	}
	ed.drawRenderLinks(canvasW, canvasH)

	if ed.showOplog {
		ed.drawOplog(w, h)
	}
	ed.drawStatusBar(w, h)
}

// setCell draws r when the cell is inside the canvas area.
func (ed *Editor) setCell(x, y int, r rune, style tcell.Style, canvasW, canvasH int) {
	if x < 0 || y < 0 || x >= canvasW || y >= canvasH {
		return
	}
	ed.screen.SetContent(x, y, r, nil, style)
}

func (ed *Editor) drawClipped(x, y int, s string, style tcell.Style, canvasW, canvasH int) {
	for i, r := range []rune(s) {
		ed.setCell(x+i, y, r, style, canvasW, canvasH)
	}
}

func (ed *Editor) drawLinks(canvasW, canvasH int) {
	for _, id := range ed.store.Links() {
		style := styleLink
		if l := ed.graph.Link(id); l != nil && l.Dragging {
			style = styleLinkDrag
		}
		for _, seg := range ed.store.Segments(id) {
			ed.drawPath(geom.Flatten(seg.Path), '·', style, canvasW, canvasH)
		}
	}
}

func (ed *Editor) drawPath(pts []geom.Point, r rune, style tcell.Style, canvasW, canvasH int) {
	for i := 1; i < len(pts); i++ {
		x0, y0 := ed.view.toCell(pts[i-1])
		x1, y1 := ed.view.toCell(pts[i])
		for _, c := range cellLine(x0, y0, x1, y1) {
			ed.setCell(c[0], c[1], r, style, canvasW, canvasH)
		}
	}
}

// drawRenderLinks draws each dragged link from its anchored end to the
// pointer.
func (ed *Editor) drawRenderLinks(canvasW, canvasH int) {
	for _, rl := range ed.connector.RenderLinks() {
		ed.drawPath([]geom.Point{rl.FromPos, ed.pointer}, '•', styleLinkDrag, canvasW, canvasH)
	}
}

func (ed *Editor) drawNode(nl layout.NodeLayout, canvasW, canvasH int) {
	n := ed.graph.Node(nl.ID)
	if n == nil {
		return
	}
	style := styleNode
	if ed.nodeDrag != nil && ed.nodeDrag.id == nl.ID {
		style = styleNodeDrag
	}
	x0, y0, x1, y1 := ed.view.cellRect(nl.Bounds)
	ed.drawBox(x0, y0, x1-x0+1, y1-y0+1, style, canvasW, canvasH)
	ed.drawClipped(x0+1, y0, truncate(" "+n.Title+" ", x1-x0-1), styleTitle, canvasW, canvasH)

	for i, in := range n.Inputs {
		x, y := ed.view.toCell(n.InputPos(i))
		r := '○'
		if n.IsInputConnected(i) {
			r = '●'
		}
		ed.setCell(x, y, r, styleInput, canvasW, canvasH)
		ed.drawClipped(x+1, y, truncate(in.Name, (x1-x0)/2-1), styleSlotName, canvasW, canvasH)
	}
	for i, out := range n.Outputs {
		x, y := ed.view.toCell(n.OutputPos(i))
		r := '○'
		if len(out.Links) > 0 {
			r = '●'
		}
		ed.setCell(x, y, r, styleOutput, canvasW, canvasH)
		name := truncate(out.Name, (x1-x0)/2-1)
		ed.drawClipped(x-len([]rune(name)), y, name, styleSlotName, canvasW, canvasH)
	}
	for i, wd := range n.Widgets {
		b := n.WidgetBounds(i)
		x, y := ed.view.toCell(geom.Point{X: b.X, Y: b.Y + b.Height/2})
		ed.drawClipped(x+1, y, truncate("["+wd.Name+"]", x1-x0-1), styleWidget, canvasW, canvasH)
	}
}

func (ed *Editor) drawBox(x, y, w, h int, style tcell.Style, canvasW, canvasH int) {
	if w < 2 || h < 2 {
		return
	}
	// Corners
	ed.setCell(x, y, '┌', style, canvasW, canvasH)
	ed.setCell(x+w-1, y, '┐', style, canvasW, canvasH)
	ed.setCell(x, y+h-1, '└', style, canvasW, canvasH)
	ed.setCell(x+w-1, y+h-1, '┘', style, canvasW, canvasH)

	// Horizontal borders
	for i := x + 1; i < x+w-1; i++ {
		ed.setCell(i, y, '─', style, canvasW, canvasH)
		ed.setCell(i, y+h-1, '─', style, canvasW, canvasH)
	}

	// Vertical borders
	for i := y + 1; i < y+h-1; i++ {
		ed.setCell(x, i, '│', style, canvasW, canvasH)
		ed.setCell(x+w-1, i, '│', style, canvasW, canvasH)
	}

	// Fill
	for row := y + 1; row < y+h-1; row++ {
		for col := x + 1; col < x+w-1; col++ {
			ed.setCell(col, row, ' ', styleDefault, canvasW, canvasH)
		}
	}
}

func (ed *Editor) drawOplog(w, h int) {
	x := w - oplogWidth
	for row := 0; row < h-2; row++ {
		ed.screen.SetContent(x, row, '│', nil, styleBorder)
	}
	x += 2
	ops := ed.store.Operations()
	ed.drawString(x, 0, fmt.Sprintf("Operations (%d)", len(ops)), styleSidebarH)
	rows := h - 4
	if rows <= 0 {
		return
	}
	start := max(len(ops)-rows, 0)
	for i, op := range ops[start:] {
		ed.drawString(x, 2+i, truncate(describeOp(op), oplogWidth-3), styleSidebar)
	}
}

func describeOp(op layout.Operation) string {
	m := op.Meta()
	var subject string
	switch o := op.(type) {
	case *layout.MoveNode:
		subject = string(o.NodeID)
	case *layout.ResizeNode:
		subject = string(o.NodeID)
	case *layout.CreateNode:
		subject = string(o.Layout.ID)
	case *layout.DeleteNode:
		subject = string(o.NodeID)
	case *layout.CreateLink:
		subject = fmt.Sprintf("#%d", o.LinkID)
	case *layout.DeleteLink:
		subject = fmt.Sprintf("#%d", o.LinkID)
	case *layout.CreateReroute:
		subject = fmt.Sprintf("r%d", o.RerouteID)
	case *layout.DeleteReroute:
		subject = fmt.Sprintf("r%d", o.RerouteID)
	case *layout.MoveReroute:
		subject = fmt.Sprintf("r%d", o.RerouteID)
	}
	return fmt.Sprintf("%-14s %-8s %s", op.Kind(), subject, m.Source)
}

// flashInverted reports whether a flashing message is drawn inverted
// elapsed milliseconds after it was shown.
func flashInverted(elapsed int64) bool {
	if elapsed < 0 || elapsed >= 500 {
		return false
	}
	phase := elapsed / 125
	return phase == 1 || phase == 3
}

func flashes(t MessageType) bool {
	return t != MsgInfo
}

func (ed *Editor) drawStatusBar(w, h int) {
	y := h - 1

	// Background
	for x := 0; x < w; x++ {
		ed.screen.SetContent(x, y, ' ', nil, styleStatus)
	}

	fileInfo := filepath.Base(ed.filename)
	sizes := ed.store.IndexSizes()
	fileInfo += fmt.Sprintf("  %d nodes %d links %d reroutes", sizes.Nodes, len(ed.graph.Links()), sizes.Reroutes)
	ed.drawString(1, y, fileInfo, styleStatus)

	if mode := ed.modeString(); mode != "" {
		ed.drawString(w/2-len(mode)/2, y, mode, styleStatus)
	}

	if ed.message != "" {
		style := styleMsgInfo
		switch ed.messageType {
		case MsgError:
			style = styleMsgError
		case MsgSuccess, MsgWarning:
			style = styleMsgSuccess
		}
		if flashes(ed.messageType) && flashInverted(time.Now().UnixMilli()-ed.messageFlashStart.Load()) {
			style = style.Reverse(true)
		}
		ed.drawString(w-len([]rune(ed.message))-2, y, ed.message, style)
	}

	// Help bar
	y = h - 2
	for x := 0; x < w; x++ {
		ed.screen.SetContent(x, y, ' ', nil, styleDefault)
	}
	help := ed.helpString()
	if len(ed.lastEvents) > 0 {
		help += "   " + strings.Join(ed.lastEvents, " > ")
	}
	ed.drawString(1, y, help, styleHelp)
}

func (ed *Editor) drawString(x, y int, s string, style tcell.Style) {
	for i, r := range []rune(s) {
		ed.screen.SetContent(x+i, y, r, nil, style)
	}
}

func (ed *Editor) modeString() string {
	switch {
	case ed.connector.IsConnecting():
		to := "INPUT"
		if ed.connector.State().ConnectingTo == ident.Output {
			to = "OUTPUT"
		}
		return "CONNECTING TO " + to
	case ed.nodeDrag != nil:
		return "MOVE"
	case ed.panFrom != nil:
		return "PAN"
	default:
		return ""
	}
}

func (ed *Editor) helpString() string {
	if ed.connector.IsConnecting() {
		return "Release:Drop  Esc:Cancel"
	}
	return "Drag slot:Link  Shift:Move outputs  Ctrl+Alt:Fresh link  o:Oplog  f:Fit  p:PNG  q:Quit"
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 {
		return ""
	}
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
