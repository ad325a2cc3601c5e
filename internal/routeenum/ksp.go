package routeenum

import (
	"container/heap"
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/diagnostics"
	"github.com/trailforge/routegraph/internal/graphbuild"
)

// enumerateOutAndBack builds out-and-back candidates: for each starting
// vertex (a trailhead or intersection with at least one incident edge of
// MinOutboundKM or more), run Yen's
// algorithm for the top KSPK shortest paths to every destination whose
// one-way distance falls within targetDistanceKM's search window, then
// append the reverse of each path to itself (spec §4.5.1).
//
// Starting-vertex fan-out runs under a bounded worker pool, mirroring
// the per-source goroutine dispatch in the pack's routing engine
// (azybler-map_router routing/engine.go); every Dijkstra call allocates
// its own heap and distance/visited maps, so concurrent runs never share
// mutable state.
func enumerateOutAndBack(ctx context.Context, g *graphbuild.Graph, cfg *config.Config, targetDistanceKM float64) ([]Candidate, *diagnostics.Log) {
	log := &diagnostics.ConcurrentLog{}
	var candidates []candAccum

	starts := selectStartingVertices(g, cfg)
	if len(starts) == 0 {
		log.Add(diagnostics.NoFeasibleRoutes, "out_and_back", "no starting vertices met min_outbound_km", nil)
		return nil, log.ToLog()
	}

	minD, maxD := distanceBounds(cfg, targetDistanceKM)

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(maxWorkers(cfg))
	var mu sync.Mutex

	for _, s := range starts {
		s := s
		grp.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			paths := yenKShortest(g, s, cfg.KSPK, minD, maxD)
			mu.Lock()
			candidates = append(candidates, paths...)
			mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()

	out := make([]Candidate, 0, len(candidates)*2)
	seen := make(map[string]bool)
	for _, p := range candidates {
		key := walkKey(p.vertices)
		if seen[key] {
			continue
		}
		seen[key] = true

		fwd := candidateFromWalk(ShapeOutAndBack, p.vertices, p.edgeIDs, g, nil)
		// Return leg retraces the same edges in reverse; gain/loss swap.
		revVerts := reverseInt64(p.vertices)
		revEdges := reverseInt64(p.edgeIDs)
		reversedFlags := make([]bool, len(revEdges))
		for i := range reversedFlags {
			reversedFlags[i] = true
		}
		back := candidateFromWalk(ShapeOutAndBack, revVerts, revEdges, g, reversedFlags)

		combined := Candidate{
			Shape:          ShapeOutAndBack,
			Vertices:       append(append([]int64{}, fwd.Vertices...), revVerts[1:]...),
			EdgeIDs:        append(append([]int64{}, fwd.EdgeIDs...), revEdges...),
			DistanceKM:     fwd.DistanceKM + back.DistanceKM,
			ElevationGainM: fwd.ElevationGainM + back.ElevationGainM,
			ElevationLossM: fwd.ElevationLossM + back.ElevationLossM,
		}
		out = append(out, combined)
	}
	return out, log.ToLog()
}

// candAccum is an internal KSP result before out-and-back doubling.
type candAccum struct {
	vertices []int64
	edgeIDs  []int64
	distKM   float64
}

// selectStartingVertices picks trailhead/intersection vertices with at
// least MinOutboundKM of edge length on at least one incident edge,
// capped at MaxStartingNodes (spec §4.5.1 step 1).
func selectStartingVertices(g *graphbuild.Graph, cfg *config.Config) []int64 {
	var out []int64
	for _, v := range g.Vertices {
		if v.Kind != graphbuild.KindTrailhead && v.Kind != graphbuild.KindIntersection {
			continue
		}
		for _, eid := range g.EdgesAt(v.ID) {
			e, ok := g.Edge(eid)
			if ok && e.LengthKM >= cfg.MinOutboundKM {
				out = append(out, v.ID)
				break
			}
		}
		if cfg.MaxStartingNodes > 0 && len(out) >= cfg.MaxStartingNodes {
			break
		}
	}
	return out
}

// --- Dijkstra ---

type heapItem struct {
	vertex int64
	dist   float64
}

type minHeap []heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// edgeBan excludes a set of edge IDs from traversal, used by Yen's
// algorithm to force alternate paths around the root path's spur edge.
type edgeBan map[int64]bool
type vertexBan map[int64]bool

// dijkstra runs single-source shortest path from src, skipping banned
// edges/vertices, and returns the shortest distance and predecessor
// edge/vertex chain for every reachable vertex.
func dijkstra(g *graphbuild.Graph, src int64, banE edgeBan, banV vertexBan) (dist map[int64]float64, prevV map[int64]int64, prevE map[int64]int64) {
	dist = map[int64]float64{src: 0}
	prevV = map[int64]int64{}
	prevE = map[int64]int64{}
	visited := map[int64]bool{}

	h := &minHeap{{vertex: src, dist: 0}}
	heap.Init(h)

	for h.Len() > 0 {
		cur := heap.Pop(h).(heapItem)
		if visited[cur.vertex] {
			continue
		}
		visited[cur.vertex] = true

		for _, eid := range g.EdgesAt(cur.vertex) {
			if banE[eid] {
				continue
			}
			e, ok := g.Edge(eid)
			if !ok {
				continue
			}
			next := e.Other(cur.vertex)
			if banV[next] || visited[next] {
				continue
			}
			nd := dist[cur.vertex] + e.LengthKM
			if old, ok := dist[next]; !ok || nd < old {
				dist[next] = nd
				prevV[next] = cur.vertex
				prevE[next] = eid
				heap.Push(h, heapItem{vertex: next, dist: nd})
			}
		}
	}
	return dist, prevV, prevE
}

// pathTo reconstructs the vertex/edge sequence from src to dst using
// the predecessor maps from dijkstra.
func pathTo(src, dst int64, prevV, prevE map[int64]int64) ([]int64, []int64, bool) {
	if dst == src {
		return []int64{src}, nil, true
	}
	var verts []int64
	var edges []int64
	cur := dst
	for cur != src {
		pv, ok := prevV[cur]
		if !ok {
			return nil, nil, false
		}
		pe := prevE[cur]
		verts = append([]int64{cur}, verts...)
		edges = append([]int64{pe}, edges...)
		cur = pv
	}
	verts = append([]int64{src}, verts...)
	return verts, edges, true
}

func pathDistance(g *graphbuild.Graph, edgeIDs []int64) float64 {
	var total float64
	for _, id := range edgeIDs {
		if e, ok := g.Edge(id); ok {
			total += e.LengthKM
		}
	}
	return total
}

// distanceBounds returns the one-way destination-distance window for a
// target total out-and-back distance (spec §4.5.1: destinations are
// collected around "half_d" under "the active tolerance band"). S5 runs
// before S6's tolerance escalation picks a band, so it uses the widest
// configured band here — narrower than that would exclude a destination
// a later, wider band would still have accepted.
func distanceBounds(cfg *config.Config, targetTotalKM float64) (minD, maxD float64) {
	halfD := targetTotalKM / 2
	pct := widestTolerancePct(cfg)
	return halfD * (1 - pct), halfD * (1 + pct)
}

func widestTolerancePct(cfg *config.Config) float64 {
	var widest float64
	for _, l := range cfg.ToleranceLevels {
		if l.DistancePct > widest {
			widest = l.DistancePct
		}
	}
	if widest == 0 {
		widest = 1 // no configured band; don't exclude anything reachable
	}
	return widest
}

// yenKShortest returns up to k loopless shortest paths from src to each
// reachable vertex whose one-way distance falls in [minD, maxD], via the
// classical Yen's algorithm: one root (plain Dijkstra) path per
// destination, then k-1 deviations found by banning, in turn, each edge
// used by a previously accepted path at a shared prefix.
//
// Bounding destinations to the target's own distance window (spec
// §4.5.1 step 1) keeps the search from fanning out across every
// reachable vertex regardless of the pattern being served; MaxStartingNodes
// and KSPK bound the remaining fan-out further.
func yenKShortest(g *graphbuild.Graph, src int64, k int, minD, maxD float64) []candAccum {
	dist, prevV, prevE := dijkstra(g, src, nil, nil)

	var out []candAccum
	for dst, d := range dist {
		if dst == src {
			continue
		}
		if d < minD || d > maxD {
			continue
		}
		verts, edges, ok := pathTo(src, dst, prevV, prevE)
		if !ok || len(edges) == 0 {
			continue
		}
		paths := yenForPair(g, src, dst, verts, edges, k)
		out = append(out, paths...)
	}
	return out
}

type labeledPath struct {
	vertices []int64
	edges    []int64
	dist     float64
}

func yenForPair(g *graphbuild.Graph, src, dst int64, rootVerts, rootEdges []int64, k int) []candAccum {
	A := []labeledPath{{vertices: rootVerts, edges: rootEdges, dist: pathDistance(g, rootEdges)}}
	var B []labeledPath

	for len(A) < k {
		last := A[len(A)-1]
		for i := 0; i < len(last.vertices)-1; i++ {
			spurNode := last.vertices[i]
			rootPathV := append([]int64{}, last.vertices[:i+1]...)
			rootPathE := append([]int64{}, last.edges[:i]...)

			banE := edgeBan{}
			for _, p := range A {
				if len(p.vertices) > i && equalPrefix(p.vertices[:i+1], rootPathV) {
					banE[p.edges[i]] = true
				}
			}
			banV := vertexBan{}
			for _, v := range rootPathV[:len(rootPathV)-1] {
				banV[v] = true
			}

			spurDist, spurPrevV, spurPrevE := dijkstra(g, spurNode, banE, banV)
			spurVerts, spurEdges, ok := pathTo(spurNode, dst, spurPrevV, spurPrevE)
			if !ok {
				continue
			}
			_ = spurDist

			totalVerts := append(append([]int64{}, rootPathV[:len(rootPathV)-1]...), spurVerts...)
			totalEdges := append(append([]int64{}, rootPathE...), spurEdges...)
			cand := labeledPath{vertices: totalVerts, edges: totalEdges, dist: pathDistance(g, totalEdges)}
			if !containsPath(A, cand) && !containsPath(B, cand) {
				B = append(B, cand)
			}
		}
		if len(B) == 0 {
			break
		}
		sort.Slice(B, func(i, j int) bool {
			if B[i].dist != B[j].dist {
				return B[i].dist < B[j].dist
			}
			return walkKey(B[i].vertices) < walkKey(B[j].vertices)
		})
		A = append(A, B[0])
		B = B[1:]
	}

	out := make([]candAccum, 0, len(A))
	for _, p := range A {
		out = append(out, candAccum{vertices: p.vertices, edgeIDs: p.edges, distKM: p.dist})
	}
	return out
}

func equalPrefix(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsPath(set []labeledPath, p labeledPath) bool {
	key := walkKey(p.vertices)
	for _, s := range set {
		if walkKey(s.vertices) == key {
			return true
		}
	}
	return false
}

func walkKey(vertices []int64) string {
	return fmt.Sprint(vertices)
}

func reverseInt64(in []int64) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func maxWorkers(cfg *config.Config) int {
	if cfg.MaxWorkers > 0 {
		return cfg.MaxWorkers
	}
	return runtime.GOMAXPROCS(0)
}
