package graph

import (
	"math"

	"github.com/samber/lo"

	"github.com/ha1tch/graphlink/pkg/geom"
	"github.com/ha1tch/graphlink/pkg/ident"
)

// Metrics describes where slots and widgets sit on a node. Slot rows start
// at the node's top edge, below the title bar.
type Metrics struct {
	TitleHeight  float64
	SlotHeight   float64
	SlotCenter   float64 // slot centre as a fraction of SlotHeight
	SlotInset    float64 // horizontal distance from the node edge to the slot centre
	SlotHitWidth float64
	WidgetHeight float64
}

// DefaultMetrics returns pixel metrics for a canvas editor.
func DefaultMetrics() Metrics {
	return Metrics{
		TitleHeight:  30,
		SlotHeight:   20,
		SlotCenter:   0.7,
		SlotInset:    10,
		SlotHitWidth: 40,
		WidgetHeight: 20,
	}
}

// Input is a node input slot. It holds at most one link.
type Input struct {
	Name string
	Type string
	Link ident.LinkID
	// Widget names the widget this input can replace, if any.
	Widget        string
	FloatingLinks []ident.LinkID
}

// Output is a node output slot.
type Output struct {
	Name          string
	Type          string
	Links         []ident.LinkID
	FloatingLinks []ident.LinkID
}

// Widget is an inline editor drawn below the slots.
type Widget struct {
	Name string
	Type string
}

// Node is a graph vertex with typed input and output slots. Pos is the
// top-left corner of the body, below the title bar.
type Node struct {
	ID      ident.NodeID
	Title   string
	Pos     geom.Point
	Size    geom.Size
	Inputs  []*Input
	Outputs []*Output
	Widgets []*Widget

	graph *Graph
}

// NewNode creates a detached node.
func NewNode(id ident.NodeID, title string) *Node {
	return &Node{ID: id, Title: title}
}

// Graph returns the graph the node belongs to, or nil.
func (n *Node) Graph() *Graph { return n.graph }

// AddInput appends an input slot.
func (n *Node) AddInput(name, typ string) *Input {
	in := &Input{Name: name, Type: typ}
	n.Inputs = append(n.Inputs, in)
	return in
}

// AddOutput appends an output slot.
func (n *Node) AddOutput(name, typ string) *Output {
	out := &Output{Name: name, Type: typ}
	n.Outputs = append(n.Outputs, out)
	return out
}

// AddWidget appends a widget.
func (n *Node) AddWidget(name, typ string) *Widget {
	w := &Widget{Name: name, Type: typ}
	n.Widgets = append(n.Widgets, w)
	return w
}

// SetPosition moves the node and notifies watchers.
func (n *Node) SetPosition(p geom.Point) {
	if n.Pos == p {
		return
	}
	n.Pos = p
	if n.graph != nil {
		n.graph.emit(Change{Kind: NodeMoved, Node: n})
	}
}

// SetSize resizes the node and notifies watchers.
func (n *Node) SetSize(sz geom.Size) {
	if n.Size == sz {
		return
	}
	n.Size = sz
	if n.graph != nil {
		n.graph.emit(Change{Kind: NodeResized, Node: n})
	}
}

// Input returns input i, or nil when out of range.
func (n *Node) Input(i int) *Input {
	if i < 0 || i >= len(n.Inputs) {
		return nil
	}
	return n.Inputs[i]
}

// Output returns output i, or nil when out of range.
func (n *Node) Output(i int) *Output {
	if i < 0 || i >= len(n.Outputs) {
		return nil
	}
	return n.Outputs[i]
}

func (n *Node) metrics() Metrics {
	if n.graph != nil {
		return n.graph.metrics
	}
	return DefaultMetrics()
}

func (n *Node) matcher() TypeMatcher {
	if n.graph != nil {
		return n.graph.matcher
	}
	return DefaultMatcher{}
}

// Bounds returns the node rectangle including the title bar.
func (n *Node) Bounds() geom.Bounds {
	m := n.metrics()
	return geom.Bounds{X: n.Pos.X, Y: n.Pos.Y - m.TitleHeight, Width: n.Size.Width, Height: n.Size.Height + m.TitleHeight}
}

func (n *Node) slotY(i int) float64 {
	m := n.metrics()
	return n.Pos.Y + (float64(i)+m.SlotCenter)*m.SlotHeight
}

// InputPos returns the canvas position of input i.
func (n *Node) InputPos(i int) geom.Point {
	return geom.Point{X: n.Pos.X + n.metrics().SlotInset, Y: n.slotY(i)}
}

// OutputPos returns the canvas position of output i.
func (n *Node) OutputPos(i int) geom.Point {
	return geom.Point{X: n.Pos.X + n.Size.Width - n.metrics().SlotInset, Y: n.slotY(i)}
}

// InputHitBox returns the area that picks input i.
func (n *Node) InputHitBox(i int) geom.Bounds {
	m := n.metrics()
	p := n.InputPos(i)
	return geom.Bounds{X: p.X - m.SlotHeight/2, Y: p.Y - m.SlotHeight/2, Width: m.SlotHitWidth, Height: m.SlotHeight}
}

// OutputHitBox returns the area that picks output i.
func (n *Node) OutputHitBox(i int) geom.Bounds {
	m := n.metrics()
	p := n.OutputPos(i)
	return geom.Bounds{X: p.X + m.SlotHeight/2 - m.SlotHitWidth, Y: p.Y - m.SlotHeight/2, Width: m.SlotHitWidth, Height: m.SlotHeight}
}

// GetInputOnPos returns the input whose hit box contains p.
func (n *Node) GetInputOnPos(p geom.Point) (int, bool) {
	for i := range n.Inputs {
		if n.InputHitBox(i).Contains(p) {
			return i, true
		}
	}
	return -1, false
}

// GetOutputOnPos returns the output whose hit box contains p.
func (n *Node) GetOutputOnPos(p geom.Point) (int, bool) {
	for i := range n.Outputs {
		if n.OutputHitBox(i).Contains(p) {
			return i, true
		}
	}
	return -1, false
}

// WidgetBounds returns the rectangle of widget i. Widgets are stacked below
// the slot rows.
func (n *Node) WidgetBounds(i int) geom.Bounds {
	m := n.metrics()
	rows := math.Max(float64(len(n.Inputs)), float64(len(n.Outputs)))
	y := n.Pos.Y + rows*m.SlotHeight + float64(i)*m.WidgetHeight
	return geom.Bounds{X: n.Pos.X, Y: y, Width: n.Size.Width, Height: m.WidgetHeight}
}

// GetWidgetOnPos returns the widget under p.
func (n *Node) GetWidgetOnPos(p geom.Point) (*Widget, bool) {
	for i, w := range n.Widgets {
		if n.WidgetBounds(i).Contains(p) {
			return w, true
		}
	}
	return nil, false
}

// InputForWidget returns the index of the input that can replace w.
func (n *Node) InputForWidget(w *Widget) (int, bool) {
	_, i, ok := lo.FindIndexOf(n.Inputs, func(in *Input) bool { return in.Widget != "" && in.Widget == w.Name })
	return i, ok
}

// FindInputByType returns the first input accepting typ. Exact type
// matches are preferred over wildcard ones.
func (n *Node) FindInputByType(typ string) (int, bool) {
	return findSlot(len(n.Inputs), func(i int) string { return n.Inputs[i].Type }, typ, n.matcher(), false)
}

// FindOutputByType returns the first output that can feed typ.
func (n *Node) FindOutputByType(typ string) (int, bool) {
	return findSlot(len(n.Outputs), func(i int) string { return n.Outputs[i].Type }, typ, n.matcher(), true)
}

func findSlot(count int, typeOf func(int) string, typ string, m TypeMatcher, slotIsSource bool) (int, bool) {
	for i := 0; i < count; i++ {
		if exactMatch(typ, typeOf(i)) {
			return i, true
		}
	}
	for i := 0; i < count; i++ {
		from, to := typ, typeOf(i)
		if slotIsSource {
			from, to = to, from
		}
		if m.Match(from, to) {
			return i, true
		}
	}
	return -1, false
}

// CanConnectTo reports whether output out of n may link to input in of
// target.
func (n *Node) CanConnectTo(target *Node, in *Input, out *Output) bool {
	if target == nil || in == nil || out == nil || n == target {
		return false
	}
	return n.matcher().Match(out.Type, in.Type)
}

// ConnectTo links output outIdx to target's input inIdx.
func (n *Node) ConnectTo(outIdx int, target *Node, inIdx int, parent ident.RerouteID) (*Link, error) {
	if n.graph == nil {
		return nil, ErrNodeNotFound
	}
	return n.graph.ConnectSlots(n, outIdx, target, inIdx, parent)
}

// DisconnectInput removes the link into input i. With keepReroutes the
// output side of its chain survives as a floating link.
func (n *Node) DisconnectInput(i int, keepReroutes bool) error {
	in := n.Input(i)
	if in == nil {
		return ErrSlotNotFound
	}
	if in.Link == 0 || n.graph == nil {
		return nil
	}
	keep := KeepNone
	if keepReroutes {
		keep = KeepOutput
	}
	return n.graph.RemoveLink(in.Link, keep)
}

// DisconnectOutput removes every link leaving output i.
func (n *Node) DisconnectOutput(i int) error {
	out := n.Output(i)
	if out == nil {
		return ErrSlotNotFound
	}
	if n.graph == nil {
		return nil
	}
	for _, id := range append([]ident.LinkID(nil), out.Links...) {
		if err := n.graph.RemoveLink(id, KeepNone); err != nil {
			return err
		}
	}
	return nil
}

// IsInputConnected reports whether input i holds a link.
func (n *Node) IsInputConnected(i int) bool {
	in := n.Input(i)
	return in != nil && in.Link != 0
}
