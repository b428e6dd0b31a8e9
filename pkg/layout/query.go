package layout

import (
	"math"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
)

// QueryNodeAtPoint returns the topmost visible node containing p. Higher
// z-index wins; among equal z-indexes the later-created node wins.
func (s *Store) QueryNodeAtPoint(p geom.Point) (ident.NodeID, bool) {
	var candidates []*NodeLayout
	for _, key := range s.nodeIndex.QueryPoint(p) {
		if n := s.nodes[ident.NodeID(key)]; n != nil && !n.Hidden {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ZIndex != b.ZIndex {
			return a.ZIndex > b.ZIndex
		}
		return s.nodeSeq[a.ID] > s.nodeSeq[b.ID]
	})
	return candidates[0].ID, true
}

// QueryNodesInBounds returns the visible nodes whose bounds intersect b.
func (s *Store) QueryNodesInBounds(b geom.Bounds) []ident.NodeID {
	var ids []ident.NodeID
	for _, key := range s.nodeIndex.Query(b) {
		if n := s.nodes[ident.NodeID(key)]; n != nil && !n.Hidden {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// QueryLinkSegmentAtPoint returns the link segment closest to p within half
// the stroke width plus the configured padding. Segments with a path are
// tested against the path; others fall back to their bounds. A
// non-positive stroke width uses the configured default.
func (s *Store) QueryLinkSegmentAtPoint(p geom.Point, strokeWidth float64) (SegmentHit, bool) {
	if strokeWidth <= 0 {
		strokeWidth = s.cfg.LinkStrokeWidth
	}
	tol := strokeWidth/2 + s.cfg.LinkHitPadding

	var best SegmentHit
	found := false
	for _, key := range s.segmentIndex.Query(geom.BoundsAround(p, tol)) {
		seg := s.segments[key]
		var d float64
		if len(seg.Path) >= 2 {
			d = geom.DistanceToPath(seg.Path, p)
			if d > tol {
				continue
			}
		} else {
			if !seg.Bounds.Expand(tol).Contains(p) {
				continue
			}
			d = p.Dist(seg.Centroid)
		}
		if !found || d < best.Distance {
			best = SegmentHit{Link: seg.Key.Link, Reroute: seg.Key.Reroute, Distance: d}
			found = true
		}
	}
	return best, found
}

// QuerySlotAtPoint returns the slot nearest p within the slot hit
// tolerance.
func (s *Store) QuerySlotAtPoint(p geom.Point) (SlotLayout, bool) {
	tol := s.cfg.SlotHitTolerance
	var best *SlotLayout
	bestDist := math.Inf(1)
	for _, key := range s.slotIndex.Query(geom.BoundsAround(p, tol)) {
		sl := s.slots[key]
		d := sl.Position.Dist(p)
		if !sl.Bounds.Contains(p) && d > tol {
			continue
		}
		if d < bestDist {
			best, bestDist = sl, d
		}
	}
	if best == nil {
		return SlotLayout{}, false
	}
	return *best, true
}

// QueryRerouteAtPoint returns the reroute nearest p whose circle contains
// it.
func (s *Store) QueryRerouteAtPoint(p geom.Point) (RerouteLayout, bool) {
	var best *RerouteLayout
	bestDist := math.Inf(1)
	for _, key := range s.rerouteIndex.Query(geom.BoundsAround(p, s.cfg.RerouteSearchWindow)) {
		id, _ := strconv.Atoi(key)
		r := s.reroutes[ident.RerouteID(id)]
		d := r.Position.Dist(p)
		if d > r.Radius {
			continue
		}
		if d < bestDist {
			best, bestDist = r, d
		}
	}
	if best == nil {
		return RerouteLayout{}, false
	}
	return *best, true
}

// QueryItemsInBounds returns everything intersecting b. Links are reported
// once even when several of their segments intersect.
func (s *Store) QueryItemsInBounds(b geom.Bounds) Items {
	items := Items{Nodes: s.QueryNodesInBounds(b)}

	links := lo.Map(s.segmentIndex.Query(b), func(key string, _ int) ident.LinkID {
		return s.segments[key].Key.Link
	})
	items.Links = lo.Uniq(links)
	sort.Slice(items.Links, func(i, j int) bool { return items.Links[i] < items.Links[j] })

	for _, key := range s.slotIndex.Query(b) {
		items.Slots = append(items.Slots, s.slots[key].Key)
	}
	for _, key := range s.rerouteIndex.Query(b) {
		id, _ := strconv.Atoi(key)
		items.Reroutes = append(items.Reroutes, ident.RerouteID(id))
	}
	sort.Slice(items.Reroutes, func(i, j int) bool { return items.Reroutes[i] < items.Reroutes[j] })
	return items
}
