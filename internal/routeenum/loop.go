package routeenum

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/diagnostics"
	"github.com/trailforge/routegraph/internal/graphbuild"
)

// enumerateLoops finds elementary-circuit ("loop") candidates: closed
// walks that revisit their starting vertex and no other vertex twice
// (spec §4.5.2). It follows Hawick & James' circuit-enumeration scheme
// (block the current path's vertices while searching forward, unblock
// in cascade on backtrack) rather than Johnson's SCC-restricted variant
// — katalvlaran-lvlath's cycles package documents the same row-cap
// strategy for bounding combinatorial blowup on dense graphs.
//
// One search tree is rooted per starting vertex with index >= the
// current root's index (the standard trick to avoid rediscovering the
// same circuit from every one of its vertices); roots fan out over a
// bounded worker pool and share one row budget via a mutex-guarded
// counter so the HawickMaxRows cap is enforced globally, not per-root.
func enumerateLoops(ctx context.Context, g *graphbuild.Graph, cfg *config.Config) ([]Candidate, *diagnostics.Log) {
	log := &diagnostics.ConcurrentLog{}
	if cfg.HawickMaxRows <= 0 {
		return nil, log.ToLog()
	}

	order := make(map[int64]int, len(g.Vertices))
	for i, v := range g.Vertices {
		order[v.ID] = i
	}

	budget := &rowBudget{max: cfg.HawickMaxRows}
	var mu sync.Mutex
	var out []Candidate
	seen := make(map[string]bool)

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(maxWorkers(cfg))

	for _, root := range g.Vertices {
		root := root
		grp.Go(func() error {
			if budget.exhausted() {
				return nil
			}
			h := &hawickSearch{
				g:       g,
				order:   order,
				root:    root.ID,
				budget:  budget,
				cfg:     cfg,
				blocked: map[int64]bool{},
				bSet:    map[int64]map[int64]bool{},
			}
			circuits := h.search(gctx, root.ID, []int64{root.ID}, nil)
			mu.Lock()
			for _, c := range circuits {
				key := walkKey(canonicalRotation(c.vertices))
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, c)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()

	if budget.exhausted() {
		log.Add(diagnostics.EnumerationTimeout, "loop", "hawick_max_rows reached; loop enumeration truncated", nil)
	}
	if len(out) == 0 {
		log.Add(diagnostics.NoFeasibleRoutes, "loop", "no elementary circuits met min/max loop length", nil)
	}
	return out, log.ToLog()
}

type rowBudget struct {
	mu    sync.Mutex
	count int
	max   int
}

func (b *rowBudget) take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count >= b.max {
		return false
	}
	b.count++
	return true
}

func (b *rowBudget) exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count >= b.max
}

// hawickSearch holds the per-root blocked-set state for one circuit
// search tree. Each root runs its own instance (no shared mutable state
// across goroutines besides the row budget), matching the pack's
// per-worker-scratch pattern elsewhere in this package.
type hawickSearch struct {
	g      *graphbuild.Graph
	order  map[int64]int
	root   int64
	budget *rowBudget
	cfg    *config.Config

	blocked map[int64]bool
	bSet    map[int64]map[int64]bool
}

func (h *hawickSearch) search(ctx context.Context, cur int64, pathV []int64, pathE []int64) []Candidate {
	select {
	case <-ctx.Done():
		return nil
	default:
	}
	if h.budget.exhausted() {
		return nil
	}

	var found []Candidate
	h.blocked[cur] = true

	for _, eid := range h.g.EdgesAt(cur) {
		e, ok := h.g.Edge(eid)
		if !ok {
			continue
		}
		next := e.Other(cur)
		if h.order[next] < h.order[h.root] {
			continue // only consider vertices >= root in the fixed order
		}
		if next == h.root && len(pathV) >= h.cfg.MinLoopEdges {
			if !h.budget.take() {
				continue
			}
			cand := candidateFromWalk(ShapeLoop, append(append([]int64{}, pathV...), h.root), append(append([]int64{}, pathE...), eid), h.g, nil)
			if cand.DistanceKM >= h.cfg.MinLoopKM && cand.DistanceKM <= h.cfg.MaxLoopKM {
				found = append(found, fixLoopDirection(cand, h.g))
			}
			continue
		}
		if h.blocked[next] || next == h.root {
			continue
		}
		if loopDistanceSoFar(h.g, pathE)+edgeLen(h.g, eid) > h.cfg.MaxLoopKM {
			continue
		}
		sub := h.search(ctx, next, append(pathV, next), append(pathE, eid))
		if len(sub) > 0 {
			found = append(found, sub...)
			h.unblock(cur)
		} else {
			h.block(cur, next)
		}
	}

	if len(found) > 0 {
		h.unblock(cur)
	}
	return found
}

func (h *hawickSearch) block(from, to int64) {
	if h.bSet[to] == nil {
		h.bSet[to] = map[int64]bool{}
	}
	h.bSet[to][from] = true
}

func (h *hawickSearch) unblock(v int64) {
	delete(h.blocked, v)
	for dep := range h.bSet[v] {
		if h.blocked[dep] {
			h.unblock(dep)
		}
	}
	delete(h.bSet, v)
}

func loopDistanceSoFar(g *graphbuild.Graph, edgeIDs []int64) float64 {
	return pathDistance(g, edgeIDs)
}

func edgeLen(g *graphbuild.Graph, id int64) float64 {
	if e, ok := g.Edge(id); ok {
		return e.LengthKM
	}
	return 0
}

// fixLoopDirection checks direction consistency (§4.5.2): edges are
// undirected, so each edge may be walked in its stored Source→Target
// order or reversed, but it must join the walk's vertex i to vertex i+1
// in one of the two orientations. Since the walk here is always built
// along g.EdgesAt(cur) adjacency, this holds by construction;
// fixLoopDirection exists to document and enforce the invariant rather
// than to perform real repair work, and downgrades shape to a degraded
// loop only if some edge joins neither pair of vertices.
func fixLoopDirection(c Candidate, g *graphbuild.Graph) Candidate {
	for i := 0; i < len(c.Vertices)-1 && i < len(c.EdgeIDs); i++ {
		e, ok := g.Edge(c.EdgeIDs[i])
		if !ok {
			continue
		}
		from, to := c.Vertices[i], c.Vertices[i+1]
		forward := e.Source == from && e.Target == to
		reversed := e.Source == to && e.Target == from
		if !forward && !reversed {
			c.Shape = Shape("loop_degraded")
			return c
		}
	}
	return c
}

// canonicalRotation returns the lexicographically smallest rotation of
// a closed walk's vertex sequence (dropping the repeated closing
// vertex), so the same physical loop found from different starting
// points within the search tree dedupes to one key.
func canonicalRotation(vertices []int64) []int64 {
	if len(vertices) <= 1 {
		return vertices
	}
	ring := vertices[:len(vertices)-1]
	n := len(ring)
	best := ring
	for start := 1; start < n; start++ {
		cand := append(append([]int64{}, ring[start:]...), ring[:start]...)
		if less := lessSeq(cand, best); less {
			best = cand
		}
	}
	return best
}

func lessSeq(a, b []int64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
