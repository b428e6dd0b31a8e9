package layout

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/ident"
)

type refWatcher struct {
	id int
	fn func(NodeLayout, bool)
}

// NodeRef is a per-node handle. Watchers are called after each change
// broadcast that touches the node. Set diffs against the current layout
// and applies only the operations needed.
type NodeRef struct {
	store    *Store
	id       ident.NodeID
	watchers []refWatcher
	nextID   int
}

// NodeRef returns the handle for a node, creating it on first use. The
// node does not need to exist yet.
func (s *Store) NodeRef(id ident.NodeID) *NodeRef {
	if ref, ok := s.refs[id]; ok {
		return ref
	}
	ref := &NodeRef{store: s, id: id}
	s.refs[id] = ref
	return ref
}

// ID returns the node id.
func (r *NodeRef) ID() ident.NodeID { return r.id }

// Value returns the current layout.
func (r *NodeRef) Value() (NodeLayout, bool) {
	return r.store.Node(r.id)
}

// Watch registers fn and returns a function that removes it.
func (r *NodeRef) Watch(fn func(layout NodeLayout, ok bool)) (cancel func()) {
	r.nextID++
	id := r.nextID
	r.watchers = append(r.watchers, refWatcher{id: id, fn: fn})
	return func() {
		r.watchers = lo.Filter(r.watchers, func(w refWatcher, _ int) bool { return w.id != id })
	}
}

func (r *NodeRef) notify() {
	if len(r.watchers) == 0 {
		return
	}
	v, ok := r.Value()
	for _, w := range append([]refWatcher(nil), r.watchers...) {
		w.fn(v, ok)
	}
}

// Set writes a full layout. A missing node is created; otherwise one
// operation is applied per changed field, all in one transaction.
// Visibility is fixed at creation: no operation carries it, so changing
// Hidden on an existing node is rejected and nothing is applied.
func (r *NodeRef) Set(next NodeLayout) error {
	next.ID = r.id
	cur, ok := r.Value()
	if ok && next.Hidden != cur.Hidden {
		return fmt.Errorf("%w: node %q visibility cannot change", ErrInvalidOperation, r.id)
	}
	s := r.store
	return s.Transact(s.source, func() error {
		if !ok {
			return s.ApplyOperation(&CreateNode{Layout: next})
		}
		if next.Position != cur.Position {
			if err := s.ApplyOperation(&MoveNode{NodeID: r.id, Position: next.Position}); err != nil {
				return err
			}
		}
		if next.Size != cur.Size {
			if err := s.ApplyOperation(&ResizeNode{NodeID: r.id, Size: next.Size}); err != nil {
				return err
			}
		}
		if next.ZIndex != cur.ZIndex {
			if err := s.ApplyOperation(&SetNodeZIndex{NodeID: r.id, ZIndex: next.ZIndex}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the node.
func (r *NodeRef) Delete() error {
	return r.store.DeleteNode(r.id)
}
