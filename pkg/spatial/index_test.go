package spatial

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ha1tch/graphlink/pkg/geom"
)

func TestInsertQuery(t *testing.T) {
	ix := New()
	ix.Insert("a", geom.Bounds{X: 0, Y: 0, Width: 10, Height: 10})
	ix.Insert("b", geom.Bounds{X: 5, Y: 5, Width: 10, Height: 10})
	ix.Insert("c", geom.Bounds{X: 100, Y: 100, Width: 10, Height: 10})

	assert.Equal(t, []string{"a", "b"}, ix.QueryPoint(geom.Point{X: 7, Y: 7}))
	assert.Equal(t, []string{"c"}, ix.Query(geom.Bounds{X: 90, Y: 90, Width: 15, Height: 15}))
	assert.Empty(t, ix.QueryPoint(geom.Point{X: 50, Y: 50}))
	assert.Equal(t, 3, ix.Len())
}

func TestEdgesAreInclusive(t *testing.T) {
	ix := New()
	ix.Insert("a", geom.Bounds{X: 0, Y: 0, Width: 10, Height: 10})

	assert.Equal(t, []string{"a"}, ix.QueryPoint(geom.Point{X: 10, Y: 10}))
	assert.Equal(t, []string{"a"}, ix.QueryPoint(geom.Point{X: 0, Y: 0}))
}

func TestZeroSizeBounds(t *testing.T) {
	ix := New()
	ix.Insert("dot", geom.Bounds{X: 3, Y: 4})

	assert.Equal(t, []string{"dot"}, ix.QueryPoint(geom.Point{X: 3, Y: 4}))
	assert.Empty(t, ix.QueryPoint(geom.Point{X: 3.1, Y: 4}))
}

func TestUpdateAndRemove(t *testing.T) {
	ix := New()
	ix.Insert("a", geom.Bounds{X: 0, Y: 0, Width: 10, Height: 10})
	ix.Update("a", geom.Bounds{X: 50, Y: 50, Width: 10, Height: 10})

	assert.Empty(t, ix.QueryPoint(geom.Point{X: 5, Y: 5}))
	assert.Equal(t, []string{"a"}, ix.QueryPoint(geom.Point{X: 55, Y: 55}))
	assert.Equal(t, 1, ix.Len())

	assert.True(t, ix.Remove("a"))
	assert.False(t, ix.Remove("a"))
	assert.Empty(t, ix.QueryPoint(geom.Point{X: 55, Y: 55}))
	assert.Equal(t, 0, ix.Len())
}

func TestBatchUpdateManyKeys(t *testing.T) {
	ix := New(Options{MinChildren: 2, MaxChildren: 4})
	var entries []Entry
	for i := 0; i < 200; i++ {
		entries = append(entries, Entry{
			Key:    fmt.Sprintf("n%03d", i),
			Bounds: geom.Bounds{X: float64(i * 20), Y: 0, Width: 10, Height: 10},
		})
	}
	ix.BatchUpdate(entries)
	assert.Equal(t, 200, ix.Len())
	assert.Equal(t, []string{"n150"}, ix.QueryPoint(geom.Point{X: 3005, Y: 5}))

	// Move everything down and make sure nothing is left at the old place
	for i := range entries {
		entries[i].Bounds.Y = 1000
	}
	ix.BatchUpdate(entries)
	assert.Empty(t, ix.Query(geom.Bounds{X: 0, Y: 0, Width: 5000, Height: 20}))
	assert.Len(t, ix.Query(geom.Bounds{X: 0, Y: 990, Width: 5000, Height: 30}), 200)

	ix.Clear()
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Keys())
}
