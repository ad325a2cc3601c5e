// Package match implements S6, matching/scoring/deduplication (spec
// §4.6): escalate a candidate against a pattern's tolerance bands,
// compute route_score for each match, then deduplicate the accepted
// set down to TargetRoutesPerPattern using the configured DedupMode
// fingerprints.
package match

import (
	"math"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/diagnostics"
	"github.com/trailforge/routegraph/internal/geo"
	"github.com/trailforge/routegraph/internal/graphbuild"
	"github.com/trailforge/routegraph/internal/routeenum"
)

// Pattern describes one desired route profile (spec §6 Pattern type):
// a target distance/elevation with a shape preference, matched against
// candidates at progressively wider tolerance bands until enough routes
// are accepted or the widest band is exhausted.
type Pattern struct {
	Name             string
	TargetDistanceKM float64
	TargetElevationM float64
	PreferredShape   routeenum.Shape // empty = no shape preference
	ShapeRequired    bool            // if true, non-preferred shapes are rejected outright
}

// Match is an accepted candidate paired with the pattern it satisfied,
// its tolerance band, and its computed score.
type Match struct {
	Pattern        string
	ToleranceLabel string
	Candidate      routeenum.Candidate
	Score          float64
	SimilarityPct  float64 // 0..100, how close to the pattern's target this match is
}

// MatchPattern runs tolerance-level escalation for one pattern against
// a candidate pool, shared read-only across concurrently-matched
// patterns (spec §4.6.1): each level admits candidates whose distance
// and elevation land within that level's percentage band of the
// pattern's targets; escalation stops as soon as TargetRoutesPerPattern
// candidates have been admitted across bands tried so far.
func MatchPattern(p Pattern, candidates []routeenum.Candidate, g *graphbuild.Graph, cfg *config.Config) ([]Match, *diagnostics.Log) {
	log := &diagnostics.Log{}
	var admitted []Match

	for _, level := range cfg.ToleranceLevels {
		if len(admitted) >= cfg.TargetRoutesPerPattern {
			break
		}
		for _, c := range candidates {
			if p.ShapeRequired && p.PreferredShape != "" && c.Shape != p.PreferredShape {
				continue
			}
			if !withinBand(c.DistanceKM, p.TargetDistanceKM, level.DistancePct) {
				continue
			}
			if !withinBand(c.ElevationGainM, p.TargetElevationM, level.ElevationPct) {
				continue
			}
			admitted = append(admitted, Match{
				Pattern:        p.Name,
				ToleranceLabel: level.Label,
				Candidate:      c,
				Score:          Score(c, p, cfg.Weights),
				SimilarityPct:  similarity(c, p),
			})
		}
	}

	if len(admitted) == 0 {
		log.Add(diagnostics.NoFeasibleRoutes, p.Name, "no candidate matched any tolerance level", nil)
		return nil, log
	}

	deduped := Deduplicate(admitted, g, cfg)
	if len(deduped) > cfg.TargetRoutesPerPattern {
		deduped = deduped[:cfg.TargetRoutesPerPattern]
	}
	return deduped, log
}

func withinBand(value, target, pct float64) bool {
	if target == 0 {
		return value == 0
	}
	delta := math.Abs(value-target) / target
	return delta <= pct
}

func similarity(c routeenum.Candidate, p Pattern) float64 {
	dDist := relDelta(c.DistanceKM, p.TargetDistanceKM)
	dElev := relDelta(c.ElevationGainM, p.TargetElevationM)
	avg := (dDist + dElev) / 2
	pct := (1 - avg) * 100
	if pct < 0 {
		pct = 0
	}
	return pct
}

func relDelta(value, target float64) float64 {
	if target == 0 {
		if value == 0 {
			return 0
		}
		return 1
	}
	d := math.Abs(value-target) / target
	if d > 1 {
		d = 1
	}
	return d
}

// Score computes route_score (spec §4.6.2): a weighted blend of
// distance fit, elevation fit, a diversity term (edge-sequence entropy
// proxy — the fraction of distinct edges touched relative to total hop
// count, rewarding routes that don't repeatedly retrace themselves),
// and a shape-preference bonus.
func Score(c routeenum.Candidate, p Pattern, w config.ScoreWeights) float64 {
	distFit := 1 - relDelta(c.DistanceKM, p.TargetDistanceKM)
	elevFit := 1 - relDelta(c.ElevationGainM, p.TargetElevationM)
	diversity := edgeDiversity(c.EdgeIDs)
	shapeFit := 0.0
	if p.PreferredShape == "" || c.Shape == p.PreferredShape {
		shapeFit = 1.0
	}
	return w.Distance*distFit + w.Elevation*elevFit + w.Diversity*diversity + w.Shape*shapeFit
}

func edgeDiversity(edgeIDs []int64) float64 {
	if len(edgeIDs) == 0 {
		return 0
	}
	seen := make(map[int64]bool, len(edgeIDs))
	for _, id := range edgeIDs {
		seen[id] = true
	}
	return float64(len(seen)) / float64(len(edgeIDs))
}

// EdgeSequenceHash fingerprints a candidate's edge walk for exact-match
// deduplication, using xxhash the way the pack's cache-key code
// fingerprints request payloads — fast, non-cryptographic, stable.
func EdgeSequenceHash(edgeIDs []int64) uint64 {
	h := xxhash.New()
	buf := make([]byte, 8)
	for _, id := range edgeIDs {
		for i := 0; i < 8; i++ {
			buf[i] = byte(id >> (8 * i))
		}
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

// EndpointPairHash fingerprints a candidate by its unordered start/end
// vertex pair, used under DedupStrictEndpoint to collapse routes that
// differ only in interior path but share start and end.
func EndpointPairHash(vertices []int64) uint64 {
	if len(vertices) == 0 {
		return 0
	}
	a, b := vertices[0], vertices[len(vertices)-1]
	if a > b {
		a, b = b, a
	}
	h := xxhash.New()
	buf := make([]byte, 16)
	for i := 0; i < 8; i++ {
		buf[i] = byte(a >> (8 * i))
	}
	for i := 0; i < 8; i++ {
		buf[8+i] = byte(b >> (8 * i))
	}
	_, _ = h.Write(buf)
	return h.Sum64()
}

// Deduplicate applies the DedupMode-selected fingerprints in sequence
// (spec §4.6.3), guarded by a RWMutex-protected accumulator the way the
// pack's event dispatcher guards its subscriber map — reads (the
// spatial-diversity scan) happen far more often than writes (an accept).
func Deduplicate(matches []Match, g *graphbuild.Graph, cfg *config.Config) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].SimilarityPct > matches[j].SimilarityPct
	})

	acc := &accumulator{cfg: cfg, byExact: map[uint64]bool{}, byEnd: map[uint64]bool{}}
	for _, m := range matches {
		acc.tryAccept(m, g)
	}
	return acc.snapshot()
}

type accumulator struct {
	mu       sync.RWMutex
	cfg      *config.Config
	accepted []Match
	byExact  map[uint64]bool
	byEnd    map[uint64]bool
}

func (a *accumulator) tryAccept(m Match, g *graphbuild.Graph) {
	exactKey := EdgeSequenceHash(m.Candidate.EdgeIDs)

	a.mu.RLock()
	if a.byExact[exactKey] {
		a.mu.RUnlock()
		return
	}
	if a.cfg.DedupMode.Has(config.DedupStrictEndpoint) {
		endKey := EndpointPairHash(m.Candidate.Vertices)
		if a.byEnd[endKey] {
			a.mu.RUnlock()
			return
		}
	}
	if a.cfg.DedupMode.Has(config.DedupSpatialDiversity) {
		if a.tooClose(m, g) {
			a.mu.RUnlock()
			return
		}
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.byExact[exactKey] {
		return
	}
	a.byExact[exactKey] = true
	a.byEnd[EndpointPairHash(m.Candidate.Vertices)] = true
	a.accepted = append(a.accepted, m)
}

// tooClose reports whether m's start vertex lies within
// MinDistanceBetweenRoutesKM of any already-accepted route's start
// vertex — a coarse proxy for "visually indistinguishable on a map"
// that avoids an expensive full-geometry Hausdorff-style comparison.
func (a *accumulator) tooClose(m Match, g *graphbuild.Graph) bool {
	if len(m.Candidate.Vertices) == 0 {
		return false
	}
	start, ok := g.Vertex(m.Candidate.Vertices[0])
	if !ok {
		return false
	}
	for _, other := range a.accepted {
		if len(other.Candidate.Vertices) == 0 {
			continue
		}
		os, ok := g.Vertex(other.Candidate.Vertices[0])
		if !ok {
			continue
		}
		d := geo.DistanceM(start.Point, os.Point) / 1000.0
		if d < a.cfg.MinDistanceBetweenRoutesKM {
			return true
		}
	}
	return false
}

func (a *accumulator) snapshot() []Match {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Match, len(a.accepted))
	copy(out, a.accepted)
	return out
}
