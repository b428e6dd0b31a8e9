// Package ident defines the identifier types shared by the graph model,
// the layout store and the link connector.
package ident

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeID identifies a node. Node ids are opaque strings.
type NodeID string

// LinkID identifies a link. Zero means no link.
type LinkID int

// RerouteID identifies a reroute. Zero means no reroute.
type RerouteID int

// NoReroute is the zero RerouteID, used for "no parent" and for the final
// segment of a link.
const NoReroute RerouteID = 0

// SlotKind says which side of a node a slot sits on.
type SlotKind int

const (
	NoSlot SlotKind = iota
	Input
	Output
)

func (k SlotKind) String() string {
	switch k {
	case Input:
		return "input"
	case Output:
		return "output"
	}
	return "none"
}

// Opposite returns the kind a link from this kind connects to.
func (k SlotKind) Opposite() SlotKind {
	switch k {
	case Input:
		return Output
	case Output:
		return Input
	}
	return NoSlot
}

// ParseSlotKind accepts "input"/"in" and "output"/"out".
func ParseSlotKind(s string) (SlotKind, error) {
	switch strings.ToLower(s) {
	case "input", "in":
		return Input, nil
	case "output", "out":
		return Output, nil
	}
	return NoSlot, fmt.Errorf("unknown slot kind %q", s)
}

// SlotKey is the stable key of a slot: node, kind and index.
type SlotKey struct {
	Node  NodeID
	Kind  SlotKind
	Index int
}

func (k SlotKey) String() string {
	return string(k.Node) + ":" + k.Kind.String() + ":" + strconv.Itoa(k.Index)
}

// ParseSlotKey parses "node:kind:index" as produced by SlotKey.String.
func ParseSlotKey(s string) (SlotKey, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return SlotKey{}, fmt.Errorf("invalid slot key %q", s)
	}
	idx, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return SlotKey{}, fmt.Errorf("invalid slot index in %q: %w", s, err)
	}
	rest := s[:i]
	j := strings.LastIndex(rest, ":")
	if j < 0 {
		return SlotKey{}, fmt.Errorf("invalid slot key %q", s)
	}
	kind, err := ParseSlotKind(rest[j+1:])
	if err != nil {
		return SlotKey{}, err
	}
	return SlotKey{Node: NodeID(rest[:j]), Kind: kind, Index: idx}, nil
}

// SegmentKey is the key of one hop of a link: the link and the reroute the
// hop ends at (NoReroute for the hop into the target input).
type SegmentKey struct {
	Link    LinkID
	Reroute RerouteID
}

func (k SegmentKey) String() string {
	if k.Reroute == NoReroute {
		return strconv.Itoa(int(k.Link)) + ":final"
	}
	return strconv.Itoa(int(k.Link)) + ":" + strconv.Itoa(int(k.Reroute))
}
