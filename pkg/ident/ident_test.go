package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotKeyParse(t *testing.T) {
	key := SlotKey{Node: "math:add", Kind: Output, Index: 2}
	assert.Equal(t, "math:add:output:2", key.String())

	parsed, err := ParseSlotKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseSlotKey("nope")
	assert.Error(t, err)
	_, err = ParseSlotKey("a:sideways:1")
	assert.Error(t, err)
}

func TestSlotKindOpposite(t *testing.T) {
	assert.Equal(t, Output, Input.Opposite())
	assert.Equal(t, Input, Output.Opposite())
	assert.Equal(t, NoSlot, NoSlot.Opposite())
}

func TestSegmentKey(t *testing.T) {
	assert.Equal(t, "4:final", SegmentKey{Link: 4}.String())
	assert.Equal(t, "4:7", SegmentKey{Link: 4, Reroute: 7}.String())
}
