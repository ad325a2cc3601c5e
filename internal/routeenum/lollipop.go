package routeenum

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/diagnostics"
	"github.com/trailforge/routegraph/internal/graphbuild"
)

// enumerateLollipops builds anchor/destination/return candidates (spec
// §4.5.3): an outbound leg from an anchor vertex to a destination vertex
// whose distance from the anchor falls in
// [DistanceRangeMin · half_d, DistanceRangeMax · half_d] km — half_d
// being half of targetDistanceKM, the same "half the target" convention
// ksp.go uses for out-and-back — paired with a distinct return leg back
// to the anchor whose edge overlap with the outbound leg does not
// exceed OverlapMaxPct.
//
// For each anchor, one Dijkstra run picks the KSPPathsLollipop nearest
// destinations inside the window. Each destination gets exactly one
// outbound leg (its shortest path) and one return leg: the shortest path
// back with the outbound edges banned, or, if no such path exists, the
// unbanned shortest path, kept only if its overlap is within
// OverlapMaxPct. Yen's k-shortest-paths is not used here, so each
// destination yields at most one candidate; alternative outbound or
// return paths are not explored.
func enumerateLollipops(ctx context.Context, g *graphbuild.Graph, cfg *config.Config, targetDistanceKM float64) ([]Candidate, *diagnostics.Log) {
	log := &diagnostics.ConcurrentLog{}

	anchors := selectStartingVertices(g, cfg)
	if len(anchors) == 0 {
		log.Add(diagnostics.NoFeasibleRoutes, "lollipop", "no anchor vertices met min_outbound_km", nil)
		return nil, log.ToLog()
	}

	var mu sync.Mutex
	var out []Candidate
	seen := make(map[string]bool)

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(maxWorkers(cfg))

	for _, a := range anchors {
		a := a
		grp.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			cands, localLog := lollipopsFromAnchor(g, a, cfg, targetDistanceKM)
			mu.Lock()
			for _, c := range cands {
				key := walkKey(c.Vertices)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, c)
			}
			mu.Unlock()
			log.Merge(localLog)
			return nil
		})
	}
	_ = grp.Wait()

	if len(out) == 0 {
		log.Add(diagnostics.NoFeasibleRoutes, "lollipop", "no anchor/destination/return triple satisfied overlap_max_pct", nil)
	}
	return out, log.ToLog()
}

func lollipopsFromAnchor(g *graphbuild.Graph, anchor int64, cfg *config.Config, targetDistanceKM float64) ([]Candidate, *diagnostics.Log) {
	log := &diagnostics.Log{}

	halfD := targetDistanceKM / 2
	rangeMin := cfg.DistanceRangeMin * halfD
	rangeMax := cfg.DistanceRangeMax * halfD

	outDist, outPrevV, outPrevE := dijkstra(g, anchor, nil, nil)
	type dest struct {
		id   int64
		dist float64
	}
	var dests []dest
	for v, d := range outDist {
		if v == anchor {
			continue
		}
		if d >= rangeMin && d <= rangeMax {
			dests = append(dests, dest{id: v, dist: d})
		}
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i].dist < dests[j].dist })
	if len(dests) > cfg.KSPPathsLollipop {
		dests = dests[:cfg.KSPPathsLollipop]
	}

	var out []Candidate
	for _, d := range dests {
		outV, outE, ok := pathTo(anchor, d.id, outPrevV, outPrevE)
		if !ok || len(outE) == 0 {
			continue
		}

		banE := edgeBan{}
		for _, e := range outE {
			banE[e] = true
		}
		_, retPrevV, retPrevE := dijkstra(g, d.id, banE, nil)
		retV, retE, ok := pathTo(d.id, anchor, retPrevV, retPrevE)
		if !ok || len(retE) == 0 {
			// No fully disjoint return; relax the ban to allow overlap up
			// to OverlapMaxPct by falling back to an unbanned shortest
			// path, then checking overlap after the fact.
			_, relaxPrevV, relaxPrevE := dijkstra(g, d.id, nil, nil)
			retV, retE, ok = pathTo(d.id, anchor, relaxPrevV, relaxPrevE)
			if !ok {
				continue
			}
		}

		overlapPct := EdgeOverlapPercent(outE, retE)
		if overlapPct > cfg.OverlapMaxPct {
			continue
		}

		fwd := candidateFromWalk(ShapeLollipop, outV, outE, g, nil)
		back := candidateFromWalk(ShapeLollipop, retV, retE, g, nil)
		combined := Candidate{
			Shape:          ShapeLollipop,
			Vertices:       append(append([]int64{}, outV...), retV[1:]...),
			EdgeIDs:        append(append([]int64{}, outE...), retE...),
			DistanceKM:     fwd.DistanceKM + back.DistanceKM,
			ElevationGainM: fwd.ElevationGainM + back.ElevationGainM,
			ElevationLossM: fwd.ElevationLossM + back.ElevationLossM,
		}
		out = append(out, combined)
	}
	return out, log
}

// EdgeOverlapPercent returns what percentage of the longer leg's edges
// also appear in the other leg (spec §4.5.3: "|edges(P_out) ∩
// edges(P_back)| / max(|P_out|,|P_back|) · 100"). Exported so its exact
// value is directly testable against a worked example rather than only
// observable through a full enumeration run.
func EdgeOverlapPercent(a, b []int64) float64 {
	inA := make(map[int64]bool, len(a))
	for _, e := range a {
		inA[e] = true
	}
	shared := 0
	for _, e := range b {
		if inA[e] {
			shared++
		}
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	return float64(shared) / float64(longest) * 100.0
}
