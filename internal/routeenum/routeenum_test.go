package routeenum_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/geo"
	"github.com/trailforge/routegraph/internal/graphbuild"
	"github.com/trailforge/routegraph/internal/routeenum"
)

// squareWithSpur builds a 4-vertex cycle (1-2-3-4-1) with a dangling
// trailhead spur off vertex 1, so the graph exercises all three S5
// strategies: the cycle supports loops and two disjoint anchor<->
// opposite-corner paths for lollipops, the spur gives out-and-back a
// trailhead to start from.
func squareWithSpur() *graphbuild.Graph {
	pt := func(lon, lat float64) geo.Point3D { return geo.Point3D{Lon: lon, Lat: lat} }
	line := func(a, b geo.Point3D) geo.LineString3D { return geo.LineString3D{a, b} }

	vertices := []graphbuild.Vertex{
		{ID: 1, Point: pt(0, 0), Degree: 3, Kind: graphbuild.KindIntersection},
		{ID: 2, Point: pt(0, 0.01), Degree: 2, Kind: graphbuild.KindEndpoint},
		{ID: 3, Point: pt(0.01, 0.01), Degree: 2, Kind: graphbuild.KindEndpoint},
		{ID: 4, Point: pt(0.01, 0), Degree: 2, Kind: graphbuild.KindEndpoint},
		{ID: 5, Point: pt(-0.01, 0), Degree: 1, Kind: graphbuild.KindTrailhead},
	}
	edges := []graphbuild.Edge{
		{ID: 1, Source: 1, Target: 2, Name: "north", LengthKM: 1.1, Geometry: line(pt(0, 0), pt(0, 0.01))},
		{ID: 2, Source: 2, Target: 3, Name: "east", LengthKM: 1.1, Geometry: line(pt(0, 0.01), pt(0.01, 0.01))},
		{ID: 3, Source: 3, Target: 4, Name: "south", LengthKM: 1.1, Geometry: line(pt(0.01, 0.01), pt(0.01, 0))},
		{ID: 4, Source: 4, Target: 1, Name: "west", LengthKM: 1.1, Geometry: line(pt(0.01, 0), pt(0, 0))},
		{ID: 5, Source: 1, Target: 5, Name: "spur", LengthKM: 1.0, Geometry: line(pt(0, 0), pt(-0.01, 0))},
	}
	g := &graphbuild.Graph{Vertices: vertices, Edges: edges}
	g.Index()
	return g
}

func lollipopTestConfig() *config.Config {
	cfg := config.Default()
	cfg.MinLoopEdges = 3
	cfg.MinLoopKM = 2
	cfg.MaxLoopKM = 10
	cfg.MinOutboundKM = 0.1
	cfg.KSPK = 2
	// Multipliers of half the pattern's own target distance (not
	// absolute km) — see testTarget below for the target that makes
	// these windows cover the square's 1.1km edges and 1.0km spur.
	cfg.DistanceRangeMin = 1.0
	cfg.DistanceRangeMax = 3.0
	cfg.OverlapMaxPct = 10
	cfg.MaxWorkers = 2
	return cfg
}

// testTarget picks a TargetDistanceKM of 2.0 so half_d == 1.0: the
// out-and-back window (widest configured tolerance band, 50%, around
// half_d) becomes [0.5, 1.5] and covers the 1.0km spur round trip, and
// the lollipop window (DistanceRangeMin/Max · half_d) becomes
// [1.0, 3.0] and covers the square's 1.1km/2.2km anchor-to-corner
// distances.
var testTarget = []routeenum.PatternTarget{{Name: "test", TargetDistanceKM: 2.0}}

func TestEnumerate_FindsAllThreeShapes(t *testing.T) {
	g := squareWithSpur()
	cfg := lollipopTestConfig()

	byPattern, _ := routeenum.Enumerate(context.Background(), g, cfg, testTarget)
	cands := byPattern["test"]

	var hasLoop, hasOutAndBack, hasLollipop bool
	for _, c := range cands {
		switch c.Shape {
		case routeenum.ShapeLoop:
			hasLoop = true
			assert.GreaterOrEqual(t, c.DistanceKM, cfg.MinLoopKM)
			assert.Equal(t, c.Vertices[0], c.Vertices[len(c.Vertices)-1])
		case routeenum.ShapeOutAndBack:
			hasOutAndBack = true
			assert.Equal(t, c.Vertices[0], c.Vertices[len(c.Vertices)-1])
		case routeenum.ShapeLollipop:
			hasLollipop = true
		}
	}
	assert.True(t, hasLoop, "expected at least one loop candidate")
	assert.True(t, hasOutAndBack, "expected at least one out-and-back candidate")
	assert.True(t, hasLollipop, "expected at least one lollipop candidate")
}

func TestEnumerate_OutAndBackDistanceIsDoubleTheOutbound(t *testing.T) {
	g := squareWithSpur()
	cfg := lollipopTestConfig()

	byPattern, _ := routeenum.Enumerate(context.Background(), g, cfg, testTarget)
	for _, c := range byPattern["test"] {
		if c.Shape != routeenum.ShapeOutAndBack {
			continue
		}
		assert.Equal(t, 0, len(c.EdgeIDs)%2, "out-and-back must have an even number of edges")
	}
}

func TestEnumerate_PerPatternTargetsBoundIndependentWindows(t *testing.T) {
	g := squareWithSpur()
	cfg := lollipopTestConfig()

	// A far-too-small target shrinks both windows past anything the
	// graph offers, so that pattern gets no out-and-back/lollipop
	// candidates while a normally-targeted pattern in the same run
	// still gets its own — proving the windows are genuinely
	// per-pattern rather than a single shared pool.
	targets := []routeenum.PatternTarget{
		{Name: "tiny", TargetDistanceKM: 0.02},
		{Name: "test", TargetDistanceKM: 2.0},
	}
	byPattern, _ := routeenum.Enumerate(context.Background(), g, cfg, targets)

	for _, c := range byPattern["tiny"] {
		assert.NotEqual(t, routeenum.ShapeOutAndBack, c.Shape)
		assert.NotEqual(t, routeenum.ShapeLollipop, c.Shape)
	}

	var hasOutAndBack bool
	for _, c := range byPattern["test"] {
		if c.Shape == routeenum.ShapeOutAndBack {
			hasOutAndBack = true
		}
	}
	assert.True(t, hasOutAndBack, "expected the normally-targeted pattern to still find out-and-back candidates")
}

func TestEnumerate_EmptyGraphYieldsNoCandidates(t *testing.T) {
	g := &graphbuild.Graph{}
	g.Index()
	cfg := config.Default()

	byPattern, log := routeenum.Enumerate(context.Background(), g, cfg, testTarget)
	assert.Empty(t, byPattern["test"])
	assert.NotEmpty(t, log.Entries())
}

func TestEnumerate_CancelledContextReturnsWithoutPanic(t *testing.T) {
	g := squareWithSpur()
	cfg := lollipopTestConfig()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NotPanics(t, func() {
		routeenum.Enumerate(ctx, g, cfg, testTarget)
	})
}

func TestEdgeOverlapPercent_UsesLongerLegAsDenominator(t *testing.T) {
	// 40-edge outbound leg, 42-edge return leg, 10 edges shared: spec
	// §4.5.3's worked example, 10/42 ≈ 23.8%, not 10/40.
	outbound := make([]int64, 40)
	for i := range outbound {
		outbound[i] = int64(i + 1)
	}
	ret := make([]int64, 42)
	for i := range ret {
		ret[i] = int64(i + 1000)
	}
	for i := 0; i < 10; i++ {
		ret[i] = outbound[i]
	}

	got := routeenum.EdgeOverlapPercent(outbound, ret)
	assert.InDelta(t, 23.8095, got, 0.01)
}

func TestEdgeOverlapPercent_Symmetric(t *testing.T) {
	a := []int64{1, 2, 3, 4, 5}
	b := []int64{1, 2, 9}
	assert.Equal(t, routeenum.EdgeOverlapPercent(a, b), routeenum.EdgeOverlapPercent(b, a))
}

func TestEdgeOverlapPercent_EmptyLegsYieldZero(t *testing.T) {
	assert.Equal(t, 0.0, routeenum.EdgeOverlapPercent(nil, nil))
}
