// Package geoindex wraps github.com/tidwall/rtree (the bbox index the
// pack's azybler-map_router depends on directly) behind a small typed
// API tailored to the two queries the resolver and graph builder
// actually need: "what else overlaps this trail's bbox" and "what
// candidate vertices lie within this radius." It is intentionally not a
// general-purpose spatial index — just the subset spec.md's Design
// Notes call for ("an R-tree for bbox queries", nothing fancier).
package geoindex

import (
	"github.com/tidwall/rtree"
)

// Index is a generic read-mostly bounding-box index over 2-D (lon,lat)
// boxes. It is shared read-only after the stage that builds it
// finishes (S2 builds one over trails, S4 builds one over candidate
// vertices), matching spec §5's "R-tree is shared read-only after S2."
type Index[T any] struct {
	tr rtree.RTreeG[T]
}

// New creates an empty Index.
func New[T any]() *Index[T] {
	return &Index[T]{}
}

// Insert adds an item with its planar bounding box [minLon,minLat],[maxLon,maxLat].
func (idx *Index[T]) Insert(minPt, maxPt [2]float64, item T) {
	idx.tr.Insert(minPt, maxPt, item)
}

// Query invokes fn for every item whose box overlaps [minPt,maxPt].
// Iteration stops early if fn returns false.
func (idx *Index[T]) Query(minPt, maxPt [2]float64, fn func(item T) bool) {
	idx.tr.Search(minPt, maxPt, func(_, _ [2]float64, item T) bool {
		return fn(item)
	})
}

// Len returns the number of items in the index.
func (idx *Index[T]) Len() int {
	return idx.tr.Len()
}
