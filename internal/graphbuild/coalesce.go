package graphbuild

import "github.com/trailforge/routegraph/internal/geo"

// CoalesceSameNameEdges merges consecutive edges that share a name, are
// contiguous (target of one = source of next), and descend from the
// same parent trail, back into single edges for route-payload
// cleanliness (spec §4.3 "Merge rule (optional)"). It is a pure
// function over an already-built Graph and must only be applied after
// S4 — the spec explicitly calls out that doing this before S4 would
// corrupt the noded graph's intersection topology.
//
// Coalescing only ever merges a degree-2 vertex's two incident edges
// (an intersection vertex, degree >= 3, is a real topological junction
// and must remain a split point regardless of edge names).
func CoalesceSameNameEdges(g *Graph) *Graph {
	if g == nil || len(g.Edges) == 0 {
		return g
	}

	merged := make([]Edge, len(g.Edges))
	copy(merged, g.Edges)
	consumed := make(map[int]bool)

	byVertexDegree2 := make(map[int64][2]int) // vertexID -> indices of its two edges, if degree 2
	incidentCount := make(map[int64][]int)
	for i, e := range merged {
		incidentCount[e.Source] = append(incidentCount[e.Source], i)
		if e.Target != e.Source {
			incidentCount[e.Target] = append(incidentCount[e.Target], i)
		}
	}
	vertexKind := make(map[int64]VertexKind, len(g.Vertices))
	for _, v := range g.Vertices {
		vertexKind[v.ID] = v.Kind
	}
	for vid, idxs := range incidentCount {
		if len(idxs) == 2 && vertexKind[vid] != KindIntersection {
			byVertexDegree2[vid] = [2]int{idxs[0], idxs[1]}
		}
	}

	changed := true
	for changed {
		changed = false
		for vid, pair := range byVertexDegree2 {
			i, j := pair[0], pair[1]
			if consumed[i] || consumed[j] {
				continue
			}
			a, b := merged[i], merged[j]
			if a.Name == "" || a.Name != b.Name {
				continue
			}
			if !sameParent(a, b) {
				continue
			}
			joined, ok := joinAtVertex(a, b, vid)
			if !ok {
				continue
			}
			merged[i] = joined
			consumed[j] = true
			changed = true
		}
	}

	out := &Graph{Vertices: g.Vertices}
	for i, e := range merged {
		if consumed[i] {
			continue
		}
		out.Edges = append(out.Edges, e)
	}
	out.Index()
	return out
}

func sameParent(a, b Edge) bool {
	if len(a.OriginalTrails) != 1 || len(b.OriginalTrails) != 1 {
		return false
	}
	return a.OriginalTrails[0] == b.OriginalTrails[0]
}

// joinAtVertex merges edge b onto edge a at their shared vertex,
// reorienting geometry so the result reads continuously from a's
// non-shared endpoint to b's non-shared endpoint.
func joinAtVertex(a, b Edge, shared int64) (Edge, bool) {
	aGeom := a.Geometry
	if a.Target != shared {
		aGeom = aGeom.Reverse()
	}
	bGeom := b.Geometry
	if b.Source != shared {
		bGeom = bGeom.Reverse()
	}
	if len(aGeom) == 0 || len(bGeom) == 0 {
		return Edge{}, false
	}

	geom := make(geo.LineString3D, 0, len(aGeom)+len(bGeom)-1)
	geom = append(geom, aGeom...)
	geom = append(geom, bGeom[1:]...)

	newSource := a.Source
	if a.Target != shared {
		newSource = a.Target
	}
	newTarget := b.Target
	if b.Source != shared {
		newTarget = b.Source
	}

	gain, loss := geom.ElevationGainLoss()
	out := a
	out.Source = newSource
	out.Target = newTarget
	out.Geometry = geom
	out.LengthKM = geom.GeodesicLengthM() / 1000.0
	out.ElevationGainM = gain
	out.ElevationLossM = loss
	return out, true
}
