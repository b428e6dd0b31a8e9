// Package spatial provides a keyed rectangle index over an R-tree.
//
// The index has no domain knowledge: callers store string keys with
// bounds and query by point or rectangle. Results are exact (inclusive
// edges) and sorted by key. An Index is not safe for concurrent use.
package spatial

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/ha1tch/graphlink/pkg/geom"
)

// epsilon pads zero-sized extents, which the R-tree rejects, and widens
// queries so that touching edges are found; results are then filtered
// exactly.
const epsilon = 1e-6

// Options configures the underlying R-tree.
type Options struct {
	MinChildren int
	MaxChildren int
}

// DefaultOptions returns the branching factors used by New.
func DefaultOptions() Options {
	return Options{MinChildren: 25, MaxChildren: 50}
}

// Entry is a key with its bounds.
type Entry struct {
	Key    string
	Bounds geom.Bounds
}

type item struct {
	key    string
	bounds geom.Bounds
	rect   rtreego.Rect
}

func (it *item) Bounds() rtreego.Rect { return it.rect }

// Index maps string keys to bounds.
type Index struct {
	opts  Options
	tree  *rtreego.Rtree
	items map[string]*item
}

// New creates an empty index.
func New(opts ...Options) *Index {
	o := DefaultOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	return &Index{
		opts:  o,
		tree:  rtreego.NewTree(2, o.MinChildren, o.MaxChildren),
		items: make(map[string]*item),
	}
}

func toRect(b geom.Bounds, pad float64) rtreego.Rect {
	w := b.Width + 2*pad
	h := b.Height + 2*pad
	if w < epsilon {
		w = epsilon
	}
	if h < epsilon {
		h = epsilon
	}
	// Lengths are always positive here, so NewRect cannot fail.
	r, _ := rtreego.NewRect(rtreego.Point{b.X - pad, b.Y - pad}, []float64{w, h})
	return r
}

// Insert adds a key. An existing key is replaced.
func (ix *Index) Insert(key string, b geom.Bounds) {
	if old, ok := ix.items[key]; ok {
		ix.tree.Delete(old)
	}
	it := &item{key: key, bounds: b, rect: toRect(b, 0)}
	ix.items[key] = it
	ix.tree.Insert(it)
}

// Update moves a key to new bounds, inserting it if absent. Items are
// immutable once in the tree so the old item is deleted by identity.
func (ix *Index) Update(key string, b geom.Bounds) {
	if old, ok := ix.items[key]; ok && old.bounds == b {
		return
	}
	ix.Insert(key, b)
}

// BatchUpdate applies several updates.
func (ix *Index) BatchUpdate(entries []Entry) {
	for _, e := range entries {
		ix.Update(e.Key, e.Bounds)
	}
}

// Remove deletes a key and reports whether it was present.
func (ix *Index) Remove(key string) bool {
	it, ok := ix.items[key]
	if !ok {
		return false
	}
	delete(ix.items, key)
	ix.tree.Delete(it)
	return true
}

// Get returns the bounds stored for a key.
func (ix *Index) Get(key string) (geom.Bounds, bool) {
	it, ok := ix.items[key]
	if !ok {
		return geom.Bounds{}, false
	}
	return it.bounds, true
}

// Has reports whether a key is present.
func (ix *Index) Has(key string) bool {
	_, ok := ix.items[key]
	return ok
}

// Query returns the keys whose bounds intersect b.
func (ix *Index) Query(b geom.Bounds) []string {
	found := ix.tree.SearchIntersect(toRect(b, epsilon))
	keys := make([]string, 0, len(found))
	for _, s := range found {
		it := s.(*item)
		if it.bounds.Intersects(b) {
			keys = append(keys, it.key)
		}
	}
	sort.Strings(keys)
	return keys
}

// QueryPoint returns the keys whose bounds contain p.
func (ix *Index) QueryPoint(p geom.Point) []string {
	return ix.Query(geom.Bounds{X: p.X, Y: p.Y})
}

// Len returns the number of keys.
func (ix *Index) Len() int {
	return len(ix.items)
}

// Keys returns every key, sorted.
func (ix *Index) Keys() []string {
	keys := make([]string, 0, len(ix.items))
	for k := range ix.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes every key.
func (ix *Index) Clear() {
	ix.tree = rtreego.NewTree(2, ix.opts.MinChildren, ix.opts.MaxChildren)
	ix.items = make(map[string]*item)
}
