// Package scene reads YAML scene fixtures and builds graphs from them.
//
// A scene lists nodes with their slots, reroutes and links:
//
//	name: demo
//	nodes:
//	  - id: a
//	    pos: {x: 0, y: 0}
//	    outputs: [{name: out, type: INT}]
//	  - id: b
//	    inputs: [{name: in, type: INT}]
//	reroutes:
//	  - {id: 1, pos: {x: 200, y: 100}}
//	links:
//	  - {from: "a:out", to: "b:0", via: 1}
//
// Link endpoints are "node:slot" where slot is an index or a slot name.
// Nodes without a position are placed automatically; nodes without a size
// are sized from their slot and widget count.
package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/graph"
	"github.com/ha1tch/graphlink/pkg/ident"
)

var (
	ErrEmpty         = errors.New("scene: no nodes")
	ErrDuplicateID   = errors.New("scene: duplicate id")
	ErrBadEndpoint   = errors.New("scene: bad link endpoint")
	ErrUnknownParent = errors.New("scene: unknown reroute parent")
)

// Scene is a decoded fixture.
type Scene struct {
	Name     string        `yaml:"name"`
	Layout   string        `yaml:"layout,omitempty" validate:"omitempty,oneof=grid layered"`
	Nodes    []NodeSpec    `yaml:"nodes" validate:"dive"`
	Reroutes []RerouteSpec `yaml:"reroutes,omitempty" validate:"dive"`
	Links    []LinkSpec    `yaml:"links,omitempty" validate:"dive"`
}

// NodeSpec describes one node.
type NodeSpec struct {
	ID      string       `yaml:"id" validate:"required"`
	Title   string       `yaml:"title,omitempty"`
	Pos     *Point       `yaml:"pos,omitempty"`
	Size    *Size        `yaml:"size,omitempty"`
	Inputs  []SlotSpec   `yaml:"inputs,omitempty" validate:"dive"`
	Outputs []SlotSpec   `yaml:"outputs,omitempty" validate:"dive"`
	Widgets []WidgetSpec `yaml:"widgets,omitempty" validate:"dive"`
}

// SlotSpec describes a slot. Widget names the widget an input can replace.
type SlotSpec struct {
	Name   string `yaml:"name" validate:"required"`
	Type   string `yaml:"type"`
	Widget string `yaml:"widget,omitempty"`
}

// WidgetSpec describes a widget.
type WidgetSpec struct {
	Name string `yaml:"name" validate:"required"`
	Type string `yaml:"type"`
}

// RerouteSpec describes a reroute. Parent is the next reroute toward the
// output, or zero.
type RerouteSpec struct {
	ID     int   `yaml:"id" validate:"gt=0"`
	Pos    Point `yaml:"pos"`
	Parent int   `yaml:"parent,omitempty" validate:"gte=0"`
}

// LinkSpec describes a link. Via is the reroute nearest the input.
type LinkSpec struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`
	Via  int    `yaml:"via,omitempty" validate:"gte=0"`
}

// Point is a canvas position.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Size is a node body size.
type Size struct {
	Width  float64 `yaml:"width" validate:"gt=0"`
	Height float64 `yaml:"height" validate:"gt=0"`
}

func (p Point) geom() geom.Point { return geom.Point{X: p.X, Y: p.Y} }

// Parse decodes and validates a scene.
func Parse(data []byte) (*Scene, error) {
	var s Scene
	dec := yaml.NewDecoder(bytes.NewReader(data), yaml.Validator(validator.New()))
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a scene file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (s *Scene) check() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid scene: %w", err)
	}
	if len(s.Nodes) == 0 {
		return ErrEmpty
	}
	ids := lo.Map(s.Nodes, func(n NodeSpec, _ int) string { return n.ID })
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return fmt.Errorf("%w: node %q", ErrDuplicateID, dup[0])
	}
	rids := lo.Map(s.Reroutes, func(r RerouteSpec, _ int) int { return r.ID })
	if dup := lo.FindDuplicates(rids); len(dup) > 0 {
		return fmt.Errorf("%w: reroute %d", ErrDuplicateID, dup[0])
	}
	if _, err := s.reroutesParentsFirst(); err != nil {
		return err
	}
	return nil
}

// reroutesParentsFirst orders reroutes so every parent precedes its
// children.
func (s *Scene) reroutesParentsFirst() ([]RerouteSpec, error) {
	byID := lo.KeyBy(s.Reroutes, func(r RerouteSpec) int { return r.ID })
	placed := make(map[int]bool, len(s.Reroutes))
	out := make([]RerouteSpec, 0, len(s.Reroutes))

	var visit func(r RerouteSpec, depth int) error
	visit = func(r RerouteSpec, depth int) error {
		if placed[r.ID] {
			return nil
		}
		if depth > len(s.Reroutes) {
			return fmt.Errorf("%w at reroute %d", graph.ErrRerouteLoop, r.ID)
		}
		if r.Parent != 0 {
			p, ok := byID[r.Parent]
			if !ok {
				return fmt.Errorf("%w: %d (reroute %d)", ErrUnknownParent, r.Parent, r.ID)
			}
			if err := visit(p, depth+1); err != nil {
				return err
			}
		}
		placed[r.ID] = true
		out = append(out, r)
		return nil
	}
	for _, r := range s.Reroutes {
		if err := visit(r, 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Build creates a graph from the scene.
func (s *Scene) Build(opts ...graph.Option) (*graph.Graph, error) {
	g := graph.New(opts...)
	m := g.Metrics()

	positions := Place(s, PlacementFor(s.Layout), m)
	for _, spec := range s.Nodes {
		n := graph.NewNode(ident.NodeID(spec.ID), lo.Ternary(spec.Title != "", spec.Title, spec.ID))
		for _, in := range spec.Inputs {
			n.AddInput(in.Name, in.Type).Widget = in.Widget
		}
		for _, out := range spec.Outputs {
			n.AddOutput(out.Name, out.Type)
		}
		for _, w := range spec.Widgets {
			n.AddWidget(w.Name, w.Type)
		}
		n.Pos = positions[spec.ID]
		if spec.Size != nil {
			n.Size = geom.Size{Width: spec.Size.Width, Height: spec.Size.Height}
		} else {
			n.Size = DefaultSize(spec, m)
		}
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}

	reroutes, err := s.reroutesParentsFirst()
	if err != nil {
		return nil, err
	}
	for _, r := range reroutes {
		if _, err := g.AddRerouteWithID(ident.RerouteID(r.ID), r.Pos.geom(), ident.RerouteID(r.Parent)); err != nil {
			return nil, err
		}
	}

	for i, l := range s.Links {
		origin, out, err := resolveEndpoint(g, l.From, ident.Output)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		target, in, err := resolveEndpoint(g, l.To, ident.Input)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		if target.IsInputConnected(in) {
			return nil, fmt.Errorf("link %d: input %q is already connected", i, l.To)
		}
		if _, err := g.ConnectSlots(origin, out, target, in, ident.RerouteID(l.Via)); err != nil {
			return nil, fmt.Errorf("link %d (%s -> %s): %w", i, l.From, l.To, err)
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// resolveEndpoint parses "node:slot" where slot is an index or a name.
func resolveEndpoint(g *graph.Graph, ref string, kind ident.SlotKind) (*graph.Node, int, error) {
	i := strings.LastIndex(ref, ":")
	if i <= 0 || i == len(ref)-1 {
		return nil, 0, fmt.Errorf("%w: %q", ErrBadEndpoint, ref)
	}
	n := g.Node(ident.NodeID(ref[:i]))
	if n == nil {
		return nil, 0, fmt.Errorf("%w: %q", graph.ErrNodeNotFound, ref[:i])
	}
	slot := ref[i+1:]

	var names []string
	if kind == ident.Input {
		names = lo.Map(n.Inputs, func(in *graph.Input, _ int) string { return in.Name })
	} else {
		names = lo.Map(n.Outputs, func(out *graph.Output, _ int) string { return out.Name })
	}
	if idx, err := strconv.Atoi(slot); err == nil {
		if idx < 0 || idx >= len(names) {
			return nil, 0, fmt.Errorf("%w: %s %d of %q", graph.ErrSlotNotFound, kind, idx, n.ID)
		}
		return n, idx, nil
	}
	if idx := lo.IndexOf(names, slot); idx >= 0 {
		return n, idx, nil
	}
	return nil, 0, fmt.Errorf("%w: %s %q of %q", graph.ErrSlotNotFound, kind, slot, n.ID)
}
