// Package routeenum implements S5, the Route Enumerator (spec §4.5):
// three independent search strategies over the noded graph built by S4.
//
//   - ksp.go:      out-and-back candidates via bounded Dijkstra + Yen's
//                  k-shortest-paths.
//   - loop.go:     elementary-circuit ("loop") candidates via a
//                  Hawick/Johnson-style enumeration, with a row cap and
//                  a direction-consistency check.
//   - lollipop.go: anchor/destination/return candidates — an out leg to
//                  a destination, a distinct return leg back to the
//                  anchor, capped by a maximum edge-overlap percentage.
//
// All three share one immutable *graphbuild.Graph and one
// context.Context. Enumerate runs the loop search first; it then runs
// the distance targets concurrently under an errgroup.Group, each target
// running out-and-back and then lollipop in turn. Inside each strategy,
// per-source work fans out over a bounded worker pool, the way the
// pack's routing engine fans out per-source searches (azybler-map_router
// routing/engine.go) while katalvlaran-lvlath/dijkstra supplies the
// container/heap shortest-path shape each strategy builds on.
package routeenum

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/diagnostics"
	"github.com/trailforge/routegraph/internal/graphbuild"
)

// Shape labels the search strategy that produced a Candidate route
// (spec §4.5 "Route Shapes").
type Shape string

const (
	ShapeOutAndBack Shape = "out_and_back"
	ShapeLoop       Shape = "loop"
	ShapeLollipop   Shape = "lollipop"
)

// Candidate is a raw enumerated route: an ordered walk of edges through
// the graph, before S6 matching/scoring/deduplication.
type Candidate struct {
	Shape          Shape
	Vertices       []int64
	EdgeIDs        []int64
	DistanceKM     float64
	ElevationGainM float64
	ElevationLossM float64
}

// PatternTarget is the subset of a caller's pattern needed to bound S5's
// per-pattern searches. The out-and-back and lollipop enumerators both
// scale their destination-distance windows off TargetDistanceKM (spec
// §4.5.1's "around half_d", §4.5.3's "[RANGE_MIN · target, RANGE_MAX ·
// target]") — neither band means anything without a pattern's own
// target, so Enumerate runs those two strategies once per target rather
// than once globally. The loop enumerator ignores pattern targets
// entirely: it is bounded only by the global MinLoopKM/MaxLoopKM, so it
// runs once and its output is shared across every target.
type PatternTarget struct {
	Name             string
	TargetDistanceKM float64
}

// Enumerate runs the loop strategy once (it is pattern-independent) and
// the out-and-back/lollipop strategies once per entry in targets, each
// bounded to that target's own distance window, and returns every
// target's combined candidate set keyed by name plus any non-fatal
// diagnostics. A per-strategy failure does not abort the others — it is
// recorded as a diagnostic and that strategy simply contributes no
// candidates.
func Enumerate(ctx context.Context, g *graphbuild.Graph, cfg *config.Config, targets []PatternTarget) (map[string][]Candidate, *diagnostics.Log) {
	log := &diagnostics.ConcurrentLog{}

	loops, loopLog := enumerateLoops(ctx, g, cfg)
	log.Merge(loopLog)

	out := make(map[string][]Candidate, len(targets))
	var mu sync.Mutex

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(maxWorkers(cfg))
	for _, tgt := range targets {
		tgt := tgt
		grp.Go(func() error {
			oab, d1 := enumerateOutAndBack(gctx, g, cfg, tgt.TargetDistanceKM)
			log.Merge(d1)
			lol, d2 := enumerateLollipops(gctx, g, cfg, tgt.TargetDistanceKM)
			log.Merge(d2)

			cands := make([]Candidate, 0, len(loops)+len(oab)+len(lol))
			cands = append(cands, loops...)
			cands = append(cands, oab...)
			cands = append(cands, lol...)

			mu.Lock()
			out[tgt.Name] = cands
			mu.Unlock()
			return nil
		})
	}
	// Strategies never return an error themselves (failures are
	// diagnostics), so the only possible error here is ctx cancellation.
	_ = grp.Wait()

	return out, log.ToLog()
}

// candidateFromWalk builds a Candidate by summing edge metrics along an
// ordered vertex/edge walk. Edges are looked up via g.Edge; an edge
// walked against its stored Source→Target order contributes its gain as
// loss and its loss as gain. Direction is read from the vertex sequence
// when it has one more entry than edgeIDs, otherwise from reversed.
func candidateFromWalk(shape Shape, vertices []int64, edgeIDs []int64, g *graphbuild.Graph, reversed []bool) Candidate {
	c := Candidate{Shape: shape, Vertices: vertices, EdgeIDs: edgeIDs}
	for i, id := range edgeIDs {
		e, ok := g.Edge(id)
		if !ok {
			continue
		}
		c.DistanceKM += e.LengthKM
		gain, loss := e.ElevationGainM, e.ElevationLossM
		swap := i < len(reversed) && reversed[i]
		if len(vertices) == len(edgeIDs)+1 {
			swap = e.Source != e.Target && e.Source == vertices[i+1] && e.Target == vertices[i]
		}
		if swap {
			gain, loss = loss, gain
		}
		c.ElevationGainM += gain
		c.ElevationLossM += loss
	}
	return c
}
