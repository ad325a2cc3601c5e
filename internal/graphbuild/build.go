package graphbuild

import (
	"fmt"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/diagnostics"
	"github.com/trailforge/routegraph/internal/geo"
	"github.com/trailforge/routegraph/internal/geoindex"
	"github.com/trailforge/routegraph/internal/trail"
)

type candidateEndpoint struct {
	segIdx  int
	isStart bool
	point   geo.Point3D
}

// Build constructs a Graph from the splitter's output segments.
func Build(segments []trail.Segment, cfg *config.Config) (*Graph, *diagnostics.Log) {
	log := &diagnostics.Log{}
	if len(segments) == 0 {
		return &Graph{}, log
	}

	candidates := make([]candidateEndpoint, 0, len(segments)*2)
	for i, s := range segments {
		if len(s.Geometry) < 2 {
			continue
		}
		candidates = append(candidates, candidateEndpoint{segIdx: i, isStart: true, point: s.Geometry.Start()})
		candidates = append(candidates, candidateEndpoint{segIdx: i, isStart: false, point: s.Geometry.End()})
	}

	clusterOf := clusterEndpoints(candidates, cfg.SnapToleranceM)

	// Build one Vertex per cluster, at the 2-D centroid with elevation
	// from the candidate closest to that centroid.
	numClusters := 0
	for _, c := range clusterOf {
		if c+1 > numClusters {
			numClusters = c + 1
		}
	}
	sums := make([][2]float64, numClusters)
	counts := make([]int, numClusters)
	for i, c := range clusterOf {
		sums[c][0] += candidates[i].point.Lon
		sums[c][1] += candidates[i].point.Lat
		counts[c]++
	}
	centroids := make([]geo.Point3D, numClusters)
	for c := 0; c < numClusters; c++ {
		if counts[c] == 0 {
			continue
		}
		centroids[c] = geo.Point3D{Lon: sums[c][0] / float64(counts[c]), Lat: sums[c][1] / float64(counts[c])}
	}
	bestDist := make([]float64, numClusters)
	for c := range bestDist {
		bestDist[c] = -1
	}
	for i, c := range clusterOf {
		d := geo.DistanceM(candidates[i].point, centroids[c])
		if bestDist[c] < 0 || d < bestDist[c] {
			bestDist[c] = d
			centroids[c].Elev = candidates[i].point.Elev
		}
	}

	vertices := make([]Vertex, numClusters)
	for c := 0; c < numClusters; c++ {
		vertices[c] = Vertex{ID: int64(c + 1), Point: centroids[c]}
	}

	// segEndpointVertex[segIdx][0]=start vertex id, [1]=end vertex id
	segEndpointVertex := make([][2]int64, len(segments))
	for i := range segEndpointVertex {
		segEndpointVertex[i] = [2]int64{0, 0}
	}
	for i, cand := range candidates {
		c := clusterOf[i]
		if cand.isStart {
			segEndpointVertex[cand.segIdx][0] = int64(c + 1)
		} else {
			segEndpointVertex[cand.segIdx][1] = int64(c + 1)
		}
	}

	seenEdges := make(map[string]bool)
	var edges []Edge
	nextEdgeID := int64(1)

	for i, s := range segments {
		if len(s.Geometry) < 2 {
			log.Add(diagnostics.UnresolvableEndpoint, s.ID, "segment has fewer than 2 points", nil)
			continue
		}
		srcV, tgtV := segEndpointVertex[i][0], segEndpointVertex[i][1]
		if srcV == 0 || tgtV == 0 {
			log.Add(diagnostics.UnresolvableEndpoint, s.ID, "endpoint did not resolve to a vertex cluster", nil)
			continue
		}

		lengthKM := s.LengthKM
		if lengthKM == 0 {
			lengthKM = s.Geometry.GeodesicLengthM() / 1000.0
		}
		if lengthKM < cfg.MinSegmentKM {
			log.Add(diagnostics.DuplicateEdge, s.ID, "segment length below min_segment_km, dropped as null edge", nil)
			continue
		}

		key := dedupeKey(srcV, tgtV, s.Geometry)
		if seenEdges[key] {
			log.Add(diagnostics.DuplicateEdge, s.ID, "duplicate edge (same endpoints and geometry)", nil)
			continue
		}
		seenEdges[key] = true

		gain, loss := s.ElevationGainM, s.ElevationLossM
		if gain == 0 && loss == 0 {
			gain, loss = s.Geometry.ElevationGainLoss()
		}

		edges = append(edges, Edge{
			ID:             nextEdgeID,
			Source:         srcV,
			Target:         tgtV,
			SegmentID:      s.ID,
			Name:           s.Name,
			TrailType:      s.TrailType,
			OriginalTrails: []string{s.OriginalTrailUUID},
			LengthKM:       lengthKM,
			ElevationGainM: gain,
			ElevationLossM: loss,
			Geometry:       s.Geometry,
		})
		nextEdgeID++
	}

	degree := make(map[int64]int)
	for _, e := range edges {
		degree[e.Source]++
		if e.Target != e.Source {
			degree[e.Target]++
		}
	}

	uf := newUnionFind(numClusters)
	for _, e := range edges {
		uf.union(int(e.Source-1), int(e.Target-1))
	}
	compID := make(map[int]int)
	nextComp := 0
	for c := 0; c < numClusters; c++ {
		root := uf.find(c)
		if _, ok := compID[root]; !ok {
			compID[root] = nextComp
			nextComp++
		}
	}

	for i := range vertices {
		d := degree[vertices[i].ID]
		vertices[i].Degree = d
		switch {
		case d == 1:
			vertices[i].Kind = KindTrailhead
		case d >= 3:
			vertices[i].Kind = KindIntersection
		default:
			vertices[i].Kind = KindEndpoint
		}
		vertices[i].ComponentID = compID[uf.find(i)]
	}

	g := &Graph{Vertices: vertices, Edges: edges}
	g.Index()
	return g, log
}

func dedupeKey(src, tgt int64, geomtry geo.LineString3D) string {
	a, b := src, tgt
	if a > b {
		a, b = b, a
	}
	start := geomtry.Start()
	end := geomtry.End()
	return fmt.Sprintf("%d_%d_%.7f_%.7f_%.7f_%.7f", a, b, start.Lon, start.Lat, end.Lon, end.Lat)
}

// clusterEndpoints groups candidate endpoints within tolM of each other
// using an R-tree for neighbor lookup and a union-find for transitive
// merging (spec §4.4 step 2). Returns, per candidate, its cluster index.
func clusterEndpoints(candidates []candidateEndpoint, tolM float64) []int {
	idx := geoindex.New[int]()
	for i, c := range candidates {
		b := radiusBox(c.point, tolM)
		idx.Insert(b[0], b[1], i)
	}

	uf := newUnionFind(len(candidates))
	for i, c := range candidates {
		b := radiusBox(c.point, tolM)
		idx.Query(b[0], b[1], func(j int) bool {
			if j <= i {
				return true
			}
			if geo.DistanceM(c.point, candidates[j].point) <= tolM {
				uf.union(i, j)
			}
			return true
		})
	}

	roots := make(map[int]int)
	out := make([]int, len(candidates))
	next := 0
	for i := range candidates {
		r := uf.find(i)
		id, ok := roots[r]
		if !ok {
			id = next
			roots[r] = id
			next++
		}
		out[i] = id
	}
	return out
}

func radiusBox(p geo.Point3D, tolM float64) (min, max [2]float64) {
	latPad := tolM / 111_320.0
	lonPad := latPad
	return [2]float64{p.Lon - lonPad, p.Lat - latPad}, [2]float64{p.Lon + lonPad, p.Lat + latPad}
}
