package snapshot

import (
	"fmt"
	"strings"

	"github.com/ha1tch/graphlink/pkg/graph"
)

// GenerateDOT writes the link topology of g in Graphviz DOT format. Nodes
// become records with one port per slot and reroutes become points. A hop
// shared by several links through the same reroute is drawn once, labelled
// with every link that uses it.
func GenerateDOT(g *graph.Graph, title string) string {
	var sb strings.Builder

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [fontname=\"Helvetica\", fontsize=11];\n")
	sb.WriteString("    edge [fontname=\"Helvetica\", fontsize=10];\n")
	sb.WriteString("\n")

	if title != "" {
		sb.WriteString("    labelloc=\"t\";\n")
		sb.WriteString(fmt.Sprintf("    label=\"%s\";\n", escapeDOT(title)))
		sb.WriteString("\n")
	}

	for _, n := range g.Nodes() {
		var ins, outs []string
		for i, in := range n.Inputs {
			ins = append(ins, fmt.Sprintf("<i%d> %s", i, escapeRecord(in.Name)))
		}
		for i, out := range n.Outputs {
			outs = append(outs, fmt.Sprintf("<o%d> %s", i, escapeRecord(out.Name)))
		}
		label := fmt.Sprintf("{%s}|%s|{%s}",
			strings.Join(ins, "|"), escapeRecord(n.Title), strings.Join(outs, "|"))
		sb.WriteString(fmt.Sprintf("    \"%s\" [shape=record, label=\"%s\"];\n", escapeDOT(string(n.ID)), label))
	}
	for _, r := range g.Reroutes() {
		sb.WriteString(fmt.Sprintf("    \"r%d\" [shape=point, xlabel=\"%d\"];\n", r.ID, r.ID))
	}
	sb.WriteString("\n")

	// Hops in first-seen order, so output is stable.
	var order []string
	labels := make(map[string][]string)
	types := make(map[string]string)
	for _, l := range g.Links() {
		from := fmt.Sprintf("\"%s\":o%d", escapeDOT(string(l.OriginID)), l.OriginSlot)
		for _, r := range g.LinkReroutes(l) {
			to := fmt.Sprintf("\"r%d\"", r.ID)
			key := from + " -> " + to
			if _, ok := labels[key]; !ok {
				order = append(order, key)
			}
			labels[key] = append(labels[key], fmt.Sprintf("#%d", l.ID))
			types[key] = l.Type
			from = to
		}
		key := fmt.Sprintf("%s -> \"%s\":i%d", from, escapeDOT(string(l.TargetID)), l.TargetSlot)
		order = append(order, key)
		labels[key] = []string{fmt.Sprintf("#%d", l.ID)}
		types[key] = l.Type
	}
	for _, key := range order {
		label := strings.Join(labels[key], ", ")
		if t := types[key]; t != "" {
			label += " " + t
		}
		sb.WriteString(fmt.Sprintf("    %s [label=\"%s\"];\n", key, escapeDOT(label)))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}

// escapeRecord also escapes the characters record labels treat as syntax.
func escapeRecord(s string) string {
	s = escapeDOT(s)
	for _, c := range []string{"{", "}", "|", "<", ">"} {
		s = strings.ReplaceAll(s, c, "\\"+c)
	}
	return s
}
