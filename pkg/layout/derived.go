// Derived geometry: slot positions and link segment paths.
// These caches are not journaled; they follow the journaled node and
// reroute geometry.

package layout

import (
	"fmt"
	"sort"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
)

// SetSlotLayout records the canvas position of a slot and re-routes the
// links attached to its node.
func (s *Store) SetSlotLayout(key ident.SlotKey, pos geom.Point) {
	k := key.String()
	b := geom.BoundsAround(pos, s.cfg.SlotSize/2)
	s.slotIndex.Update(k, b)
	s.slots[k] = &SlotLayout{Key: key, Position: pos, Bounds: b}
	for _, id := range s.LinksForNode(key.Node) {
		s.relayoutLink(s.links[id])
	}
}

// RemoveSlotLayout drops a slot's cached geometry.
func (s *Store) RemoveSlotLayout(key ident.SlotKey) bool {
	k := key.String()
	if _, ok := s.slots[k]; !ok {
		return false
	}
	s.slotIndex.Remove(k)
	delete(s.slots, k)
	for _, id := range s.LinksForNode(key.Node) {
		s.relayoutLink(s.links[id])
	}
	return true
}

// SetLinkSegmentPath overrides the path of one segment, for renderers that
// draw links differently. The override lasts until the link is re-routed.
func (s *Store) SetLinkSegmentPath(key ident.SegmentKey, path []geom.Point) error {
	k := key.String()
	seg, ok := s.segments[k]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSegmentNotFound, k)
	}
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path for %s", ErrInvalidOperation, k)
	}
	b := geom.SplineBounds(path)
	s.segmentIndex.Update(k, b)
	seg.Path = append([]geom.Point(nil), path...)
	seg.Bounds = b
	seg.Centroid = geom.SplineMidpoint(path)
	s.updateLinkBounds(s.links[key.Link])
	return nil
}

// rerouteChain returns the reroutes a link passes through, ordered from
// the output side to the input side. The walk stops at a missing reroute
// or a repeated one.
func (s *Store) rerouteChain(parent ident.RerouteID) []ident.RerouteID {
	var chain []ident.RerouteID
	seen := make(map[ident.RerouteID]bool)
	for id := parent; id != ident.NoReroute; {
		r, ok := s.reroutes[id]
		if !ok || seen[id] {
			break
		}
		seen[id] = true
		chain = append(chain, id)
		id = r.Parent
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// linksThrough returns the links whose reroute chain contains id.
func (s *Store) linksThrough(id ident.RerouteID) []ident.LinkID {
	var out []ident.LinkID
	for lid, l := range s.links {
		for _, rid := range s.rerouteChain(l.Parent) {
			if rid == id {
				out = append(out, lid)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Store) clearSegments(l *LinkLayout) {
	for _, key := range l.Segments {
		k := key.String()
		s.segmentIndex.Remove(k)
		delete(s.segments, k)
	}
	l.Segments = nil
	l.Bounds = geom.Bounds{}
	l.Centroid = geom.Point{}
}

// relayoutLink rebuilds every segment of a link from its slot positions
// and reroute chain. Links whose slots have no layout yet get no segments.
func (s *Store) relayoutLink(l *LinkLayout) {
	if l == nil {
		return
	}
	s.clearSegments(l)

	src, okSrc := s.slots[l.SourceKey().String()]
	dst, okDst := s.slots[l.TargetKey().String()]
	if !okSrc || !okDst {
		return
	}

	chain := s.rerouteChain(l.Parent)
	points := make([]geom.Point, 0, len(chain)+2)
	dirs := make([]geom.Direction, 0, len(chain)+2)
	points = append(points, src.Position)
	dirs = append(dirs, geom.DirRight)
	for _, rid := range chain {
		points = append(points, s.reroutes[rid].Position)
		dirs = append(dirs, geom.DirNone)
	}
	points = append(points, dst.Position)
	dirs = append(dirs, geom.DirLeft)

	for i := 0; i+1 < len(points); i++ {
		key := ident.SegmentKey{Link: l.ID}
		if i < len(chain) {
			key.Reroute = chain[i]
		}
		var path []geom.Point
		if s.cfg.StraightLinks {
			path = []geom.Point{points[i], points[i+1]}
		} else {
			path = geom.LinkSpline(points[i], dirs[i], points[i+1], dirs[i+1])
		}
		seg := &LinkSegmentLayout{
			Key:      key,
			Path:     path,
			Bounds:   geom.SplineBounds(path),
			Centroid: geom.SplineMidpoint(path),
		}
		s.segmentIndex.Insert(key.String(), seg.Bounds)
		s.segments[key.String()] = seg
		l.Segments = append(l.Segments, key)
	}
	s.updateLinkBounds(l)
}

func (s *Store) updateLinkBounds(l *LinkLayout) {
	if l == nil || len(l.Segments) == 0 {
		return
	}
	b := s.segments[l.Segments[0].String()].Bounds
	for _, key := range l.Segments[1:] {
		b = b.Union(s.segments[key.String()].Bounds)
	}
	l.Bounds = b
	l.Centroid = b.Center()
}
