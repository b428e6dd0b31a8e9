package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/ha1tch/graphlink/pkg/connector"
	"github.com/ha1tch/graphlink/pkg/layoutsync"
)

func (ed *Editor) canvasWidth() int {
	w, _ := ed.screen.Size()
	if ed.showOplog {
		return max(w-oplogWidth, 0)
	}
	return w
}

func (ed *Editor) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	buttons := ev.Buttons()
	mods := ev.Modifiers()

	switch {
	case buttons&tcell.WheelUp != 0:
		ed.view.offY -= 2
		return
	case buttons&tcell.WheelDown != 0:
		ed.view.offY += 2
		return
	}

	pev := connector.PointerEvent{
		Pos:   ed.view.toCanvas(x, y),
		Shift: mods&tcell.ModShift != 0,
		Ctrl:  mods&tcell.ModCtrl != 0,
		Alt:   mods&tcell.ModAlt != 0,
	}
	ed.pointer = pev.Pos
	down := buttons&tcell.Button1 != 0

	switch {
	case down && !ed.leftDown:
		if x >= ed.canvasWidth() {
			return
		}
		ed.leftDown = true
		ed.press(pev, x, y)
	case down:
		ed.move(pev, x, y)
	case ed.leftDown:
		ed.leftDown = false
		ed.release(pev)
	}
}

func (ed *Editor) press(pev connector.PointerEvent, x, y int) {
	ed.lastEvents = nil
	g, err := ed.mirror.Begin(ed.connector, pev)
	ed.gesture = g
	if err != nil {
		ed.showMessage(fmt.Sprintf("%s: %v", g, err), MsgError)
		return
	}
	switch g {
	case layoutsync.GestureNode:
		n := ed.mirror.NodeOnPos(pev.Pos.X, pev.Pos.Y)
		ed.nodeDrag = &nodeDrag{id: n.ID, grab: pev.Pos.Sub(n.Pos)}
	case layoutsync.GestureNone:
		ed.panFrom = &[2]int{x, y}
	default:
		ed.showMessage(g.String(), MsgInfo)
	}
}

func (ed *Editor) move(pev connector.PointerEvent, x, y int) {
	switch {
	case ed.nodeDrag != nil:
		if err := ed.store.SetNodePosition(ed.nodeDrag.id, pev.Pos.Sub(ed.nodeDrag.grab)); err != nil {
			ed.showMessage(err.Error(), MsgError)
			ed.nodeDrag = nil
		}
	case ed.panFrom != nil:
		ed.view.offX -= x - ed.panFrom[0]
		ed.view.offY -= y - ed.panFrom[1]
		ed.panFrom = &[2]int{x, y}
	}
}

func (ed *Editor) release(pev connector.PointerEvent) {
	ed.nodeDrag = nil
	ed.panFrom = nil
	if !ed.connector.IsConnecting() {
		return
	}
	if err := ed.connector.DropLinks(ed.mirror, pev); err != nil {
		ed.showMessage(err.Error(), MsgError)
		return
	}
	ed.showMessage(fmt.Sprintf("%s: %d links", ed.gesture, len(ed.graph.Links())), MsgSuccess)
}
