// Package graphbuild implements S4, the Noded Graph Builder (spec
// §4.4): cluster segment endpoints into vertices within snap tolerance,
// emit edges, and tag vertex/edge invariants (degree, kind, components).
package graphbuild

import (
	"github.com/trailforge/routegraph/internal/geo"
)

// VertexKind classifies a Vertex by its degree (spec §4.4 step 4).
type VertexKind string

const (
	KindTrailhead    VertexKind = "trailhead"    // degree == 1
	KindIntersection VertexKind = "intersection" // degree >= 3
	KindEndpoint     VertexKind = "endpoint"     // degree == 2 (or 0)
)

// Vertex is a graph node — a cluster of near-coincident segment endpoints.
type Vertex struct {
	ID          int64
	Point       geo.Point3D
	Degree      int
	Kind        VertexKind
	ComponentID int
}

// Edge is a routable unit derived from one Segment (spec §3). Edges are
// undirected in routing but retain a canonical (Source,Target) order
// matching the segment's original geometry direction.
type Edge struct {
	ID             int64
	Source         int64
	Target         int64
	SegmentID      string
	Name           string
	TrailType      string
	OriginalTrails []string // usually len 1; populated for coalesced edges
	LengthKM       float64
	ElevationGainM float64
	ElevationLossM float64
	Geometry       geo.LineString3D
}

// ReverseGeometry returns the edge's geometry reversed coordinate-wise
// (spec Design Notes: the source's ID-swap-only TODO is not reproduced).
// It returns geometry only; the edge's gain/loss fields are not touched.
func (e Edge) ReverseGeometry() geo.LineString3D {
	return e.Geometry.Reverse()
}

// Graph is the immutable, routable network produced by S4. Once built
// it is shared read-only with S5 and S6 (spec §5 Ownership model).
type Graph struct {
	Vertices []Vertex
	Edges    []Edge

	incident map[int64][]int64 // vertexID -> incident edge IDs
	edgeByID map[int64]*Edge
}

// Index builds the incident-edge lookup used by routing. Call once
// after construction; the graph is immutable afterward.
func (g *Graph) Index() {
	g.incident = make(map[int64][]int64, len(g.Vertices))
	g.edgeByID = make(map[int64]*Edge, len(g.Edges))
	for i := range g.Edges {
		e := &g.Edges[i]
		g.edgeByID[e.ID] = e
		g.incident[e.Source] = append(g.incident[e.Source], e.ID)
		if e.Target != e.Source {
			g.incident[e.Target] = append(g.incident[e.Target], e.ID)
		}
	}
}

// EdgesAt returns the IDs of edges incident to vertexID.
func (g *Graph) EdgesAt(vertexID int64) []int64 {
	return g.incident[vertexID]
}

// Edge looks up an edge by ID.
func (g *Graph) Edge(id int64) (*Edge, bool) {
	e, ok := g.edgeByID[id]
	return e, ok
}

// Vertex looks up a vertex by ID. Vertex IDs are dense 1..len(Vertices).
func (g *Graph) Vertex(id int64) (*Vertex, bool) {
	if id < 1 || int(id) > len(g.Vertices) {
		return nil, false
	}
	return &g.Vertices[id-1], true
}

// Other returns the endpoint of edge e that is not vertexID (for
// undirected traversal).
func (e Edge) Other(vertexID int64) int64 {
	if e.Source == vertexID {
		return e.Target
	}
	return e.Source
}

// NumVertices and NumEdges report the graph's size.
func (g *Graph) NumVertices() int { return len(g.Vertices) }
func (g *Graph) NumEdges() int    { return len(g.Edges) }
