package graph

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
)

// Floating marks a reroute at the end of a floating chain. SlotType is the
// side the chain is still attached to.
type Floating struct {
	SlotType ident.SlotKind
}

// Reroute is a waypoint shared by links. A reroute lists every link whose
// path runs through it, including links that continue past its children.
type Reroute struct {
	ID              ident.RerouteID
	ParentID        ident.RerouteID
	Pos             geom.Point
	LinkIDs         []ident.LinkID
	FloatingLinkIDs []ident.LinkID
	Floating        *Floating
	Dragging        bool

	graph *Graph
}

// TargetInput is an input fed through a reroute.
type TargetInput struct {
	Node  *Node
	Index int
	Link  *Link
}

// Parent returns the parent reroute, or nil.
func (r *Reroute) Parent() *Reroute {
	return r.graph.Reroute(r.ParentID)
}

// SetParent re-parents the reroute.
func (r *Reroute) SetParent(id ident.RerouteID) {
	if r.ParentID == id {
		return
	}
	r.ParentID = id
	r.graph.emit(Change{Kind: RerouteChanged, Reroute: r})
}

// Move sets the reroute position.
func (r *Reroute) Move(pos geom.Point) {
	if r.Pos == pos {
		return
	}
	r.Pos = pos
	r.graph.emit(Change{Kind: RerouteMoved, Reroute: r})
}

// Chain returns the reroutes from the chain root to r.
func (r *Reroute) Chain() ([]*Reroute, error) {
	chain, err := r.graph.RerouteChain(r.ID)
	if err != nil {
		return nil, fmt.Errorf("reroute %d: %w", r.ID, err)
	}
	return chain, nil
}

// InChain reports whether id is r or one of its ancestors. Loops end the
// walk.
func (r *Reroute) InChain(id ident.RerouteID) bool {
	seen := make(map[ident.RerouteID]bool)
	for cur := r; cur != nil && !seen[cur.ID]; cur = cur.Parent() {
		if cur.ID == id {
			return true
		}
		seen[cur.ID] = true
	}
	return false
}

// TotalLinks counts real and floating links through the reroute.
func (r *Reroute) TotalLinks() int {
	return len(r.LinkIDs) + len(r.FloatingLinkIDs)
}

// FirstLink returns the first live link through the reroute.
func (r *Reroute) FirstLink() *Link {
	for _, id := range r.LinkIDs {
		if l := r.graph.Link(id); l != nil {
			return l
		}
	}
	return nil
}

// FirstFloatingLink returns the first floating link through the reroute.
func (r *Reroute) FirstFloatingLink() *Link {
	for _, id := range r.FloatingLinkIDs {
		if l := r.graph.FloatingLink(id); l != nil {
			return l
		}
	}
	return nil
}

// FindSourceOutput returns the output feeding the reroute.
func (r *Reroute) FindSourceOutput() (*Node, int, bool) {
	l := r.FirstLink()
	if l == nil {
		for _, id := range r.FloatingLinkIDs {
			if fl := r.graph.FloatingLink(id); fl != nil && fl.OriginID != "" {
				l = fl
				break
			}
		}
	}
	if l == nil {
		return nil, -1, false
	}
	n := r.graph.Node(l.OriginID)
	if n == nil || n.Output(l.OriginSlot) == nil {
		return nil, -1, false
	}
	return n, l.OriginSlot, true
}

// FindTargetInputs returns every input the reroute feeds, including
// inputs holding a floating chain through it.
func (r *Reroute) FindTargetInputs() []TargetInput {
	var out []TargetInput
	add := func(l *Link) {
		if l == nil || l.TargetID == "" {
			return
		}
		n := r.graph.Node(l.TargetID)
		if n == nil || n.Input(l.TargetSlot) == nil {
			return
		}
		out = append(out, TargetInput{Node: n, Index: l.TargetSlot, Link: l})
	}
	for _, id := range r.LinkIDs {
		add(r.graph.Link(id))
	}
	for _, id := range r.FloatingLinkIDs {
		add(r.graph.FloatingLink(id))
	}
	return out
}

// RemoveLink drops l from the reroute's link lists without touching the
// link itself.
func (r *Reroute) RemoveLink(l *Link) {
	if l.IsFloating() {
		r.FloatingLinkIDs = lo.Without(r.FloatingLinkIDs, l.ID)
		if len(r.FloatingLinkIDs) == 0 {
			r.Floating = nil
		}
		return
	}
	r.LinkIDs = lo.Without(r.LinkIDs, l.ID)
}

// RemoveAllFloatingLinks deletes every floating link through the reroute.
func (r *Reroute) RemoveAllFloatingLinks() {
	for _, id := range append([]ident.LinkID(nil), r.FloatingLinkIDs...) {
		r.graph.RemoveFloatingLink(id)
	}
}

// Remove deletes the reroute if it carries no links.
func (r *Reroute) Remove() error {
	return r.graph.RemoveReroute(r.ID)
}
