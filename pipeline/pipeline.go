// Package pipeline wires the six stages (spec §3) into a single Run
// call: normalize, resolve intersections and split — iterating the
// resolve/split pair until a fixpoint or MaxResolverIters is hit, since
// splitting can create new Y-intersections — then build the noded graph
// once, enumerate routes and match/score/dedupe them against a set of
// patterns.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/diagnostics"
	"github.com/trailforge/routegraph/internal/graphbuild"
	"github.com/trailforge/routegraph/internal/intersect"
	"github.com/trailforge/routegraph/internal/match"
	"github.com/trailforge/routegraph/internal/normalize"
	"github.com/trailforge/routegraph/internal/routeenum"
	"github.com/trailforge/routegraph/internal/rlog"
	"github.com/trailforge/routegraph/internal/split"
	"github.com/trailforge/routegraph/internal/trail"
	"github.com/trailforge/routegraph/internal/validate"
)

// TrailSource supplies the raw trails a run operates over. Implemented
// by the ingestion collaborator (spec §1 Non-goals) — this core only
// ever drains one via trail.Source.
type TrailSource = trail.Source

// PatternProvider supplies the route patterns a run should match
// against. Kept as its own interface (rather than a plain []Pattern
// argument to Run) so a caller can stream or lazily construct patterns
// per spec §6.
type PatternProvider interface {
	Patterns() []match.Pattern
}

// StaticPatterns is the simplest PatternProvider: a fixed slice.
type StaticPatterns []match.Pattern

func (p StaticPatterns) Patterns() []match.Pattern { return p }

// Recommendation is one finished, scored, deduplicated route ready for
// a caller's presentation layer (spec §6 Recommendation type).
type Recommendation struct {
	RouteUUID         string
	RouteName         string
	Shape             routeenum.Shape
	DistanceKM        float64
	ElevationGainM    float64
	ElevationLossM    float64
	RoutePath         []int64 // vertex IDs, in walk order
	RouteEdges        []int64 // edge IDs, in walk order
	ConstituentTrails []string
	TrailCount        int
	RouteScore        float64
	SimilarityScore   float64
	Region            string
}

// RecommendationSink receives the finished recommendations for one
// pattern. Implemented by the persistence/API collaborator; this core
// never writes anywhere itself.
type RecommendationSink interface {
	Write(ctx context.Context, patternName string, recs []Recommendation) error
}

// Result is everything Run produces: the recommendations per pattern
// plus every non-fatal diagnostic collected across all six stages.
type Result struct {
	Recommendations map[string][]Recommendation
	Diagnostics     *diagnostics.Log
}

// Pipeline holds the stage configuration and a logger; Run is stateless
// across calls so one Pipeline can be reused for multiple sources.
type Pipeline struct {
	Config *config.Config
	Logger *rlog.Logger
}

// New constructs a Pipeline. A nil cfg uses config.Default(); a nil
// logger discards output.
func New(cfg *config.Config, logger *rlog.Logger) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = rlog.Discard()
	}
	return &Pipeline{Config: cfg, Logger: logger}
}

// Run executes all six stages against src and patterns, optionally
// writing each pattern's recommendations to sink as they finish
// (sink may be nil to skip writing and only return Result).
func (p *Pipeline) Run(ctx context.Context, src TrailSource, patterns PatternProvider, sink RecommendationSink) (*Result, error) {
	if err := p.Config.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: invalid config: %w", err)
	}

	log := &diagnostics.Log{}

	// S1 — Normalize
	trails, s1log := normalize.Normalize(src, p.Config)
	log.Merge(s1log)
	p.Logger.Info("normalized %d trails (%d diagnostics)", len(trails), len(s1log.Entries()))

	segments, s234log := p.resolveSplitBuildFixpoint(trails)
	log.Merge(s234log)

	g, s4log := graphbuild.Build(segments, p.Config)
	log.Merge(s4log)
	if p.Config.CoalesceSameNameEdges {
		g = graphbuild.CoalesceSameNameEdges(g)
	}
	p.Logger.Info("built graph: %d vertices, %d edges", g.NumVertices(), g.NumEdges())

	// S5 — Route Enumerator. Out-and-back and lollipop windows are scaled
	// off each pattern's own target distance (spec §4.5.1, §4.5.3), so
	// enumeration runs once per pattern rather than once globally.
	targets := make([]routeenum.PatternTarget, 0, len(patterns.Patterns()))
	for _, pat := range patterns.Patterns() {
		targets = append(targets, routeenum.PatternTarget{Name: pat.Name, TargetDistanceKM: pat.TargetDistanceKM})
	}
	candidatesByPattern, s5log := routeenum.Enumerate(ctx, g, p.Config, targets)
	log.Merge(s5log)
	totalCandidates := 0
	for _, c := range candidatesByPattern {
		totalCandidates += len(c)
	}
	p.Logger.Info("enumerated %d candidate routes across %d patterns", totalCandidates, len(targets))

	// S6 — Match / Score / Dedupe, one pattern at a time (patterns are
	// independent; a future version could fan these out, but the
	// TargetRoutesPerPattern short-circuit already keeps each one cheap).
	recs := make(map[string][]Recommendation, len(patterns.Patterns()))
	for _, pat := range patterns.Patterns() {
		if errs := validate.Pattern(pat); errs.HasErrors() {
			for _, fe := range errs.Items() {
				log.Add(diagnostics.NoFeasibleRoutes, pat.Name, fe.Error(), nil)
			}
			continue
		}
		matches, s6log := match.MatchPattern(pat, candidatesByPattern[pat.Name], g, p.Config)
		log.Merge(s6log)

		patRecs := make([]Recommendation, 0, len(matches))
		for _, m := range matches {
			patRecs = append(patRecs, recommendationFromMatch(m, g))
		}
		recs[pat.Name] = patRecs
		p.Logger.Info("pattern %q: %d recommendations", pat.Name, len(patRecs))

		if sink != nil {
			if err := sink.Write(ctx, pat.Name, patRecs); err != nil {
				log.Add(diagnostics.SinkWriteFailure, pat.Name, "sink write failed", err)
			}
		}
	}

	return &Result{Recommendations: recs, Diagnostics: log}, nil
}

// newRouteUUID derives a stable route_uuid from the candidate's edge
// sequence, so re-running the pipeline over the same graph yields the
// same IDs for the same route (spec §4.2 "idempotence" applies equally
// well here: a route is identified by what it traverses, not by
// insertion order).
func newRouteUUID(m match.Match) string {
	h := match.EdgeSequenceHash(m.Candidate.EdgeIDs)
	name := fmt.Sprintf("%s-%d", m.Pattern, h)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func recommendationFromMatch(m match.Match, g *graphbuild.Graph) Recommendation {
	trailSet := map[string]bool{}
	var trails []string
	for _, eid := range m.Candidate.EdgeIDs {
		e, ok := g.Edge(eid)
		if !ok {
			continue
		}
		for _, t := range e.OriginalTrails {
			if !trailSet[t] {
				trailSet[t] = true
				trails = append(trails, t)
			}
		}
	}
	return Recommendation{
		RouteUUID:         newRouteUUID(m),
		RouteName:         m.Pattern,
		Shape:             m.Candidate.Shape,
		DistanceKM:        m.Candidate.DistanceKM,
		ElevationGainM:    m.Candidate.ElevationGainM,
		ElevationLossM:    m.Candidate.ElevationLossM,
		RoutePath:         m.Candidate.Vertices,
		RouteEdges:        m.Candidate.EdgeIDs,
		ConstituentTrails: trails,
		TrailCount:        len(trails),
		RouteScore:        m.Score,
		SimilarityScore:   m.SimilarityPct,
	}
}
