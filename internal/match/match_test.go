package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/geo"
	"github.com/trailforge/routegraph/internal/graphbuild"
	"github.com/trailforge/routegraph/internal/match"
	"github.com/trailforge/routegraph/internal/routeenum"
)

func candidate(edgeIDs, vertices []int64, distKM, elevM float64, shape routeenum.Shape) routeenum.Candidate {
	return routeenum.Candidate{
		Shape:          shape,
		Vertices:       vertices,
		EdgeIDs:        edgeIDs,
		DistanceKM:     distKM,
		ElevationGainM: elevM,
	}
}

func TestMatchPattern_AdmitsWithinStrictBand(t *testing.T) {
	cfg := config.Default()
	cfg.DedupMode = config.DedupExactOnly
	p := match.Pattern{Name: "easy-loop", TargetDistanceKM: 10, TargetElevationM: 100, PreferredShape: routeenum.ShapeLoop}
	cands := []routeenum.Candidate{
		candidate([]int64{1, 2, 3}, []int64{1, 2, 3, 1}, 10.2, 105, routeenum.ShapeLoop),
	}

	matches, log := match.MatchPattern(p, cands, &graphbuild.Graph{}, cfg)
	assert.Empty(t, log.Entries())
	if assert.Len(t, matches, 1) {
		assert.Equal(t, "strict", matches[0].ToleranceLabel)
		assert.Equal(t, "easy-loop", matches[0].Pattern)
	}
}

func TestMatchPattern_EscalatesToWiderBand(t *testing.T) {
	cfg := config.Default()
	p := match.Pattern{Name: "far-off", TargetDistanceKM: 10, TargetElevationM: 100}
	cands := []routeenum.Candidate{
		candidate([]int64{1, 2}, []int64{1, 2}, 13.5, 130, routeenum.ShapeOutAndBack),
	}

	matches, _ := match.MatchPattern(p, cands, &graphbuild.Graph{}, cfg)
	if assert.Len(t, matches, 1) {
		assert.Equal(t, "wide", matches[0].ToleranceLabel)
	}
}

func TestMatchPattern_RejectsOutsideWidestBand(t *testing.T) {
	cfg := config.Default()
	p := match.Pattern{Name: "far-off", TargetDistanceKM: 10, TargetElevationM: 100}
	cands := []routeenum.Candidate{
		candidate([]int64{1, 2}, []int64{1, 2}, 100, 1000, routeenum.ShapeOutAndBack),
	}

	matches, log := match.MatchPattern(p, cands, &graphbuild.Graph{}, cfg)
	assert.Empty(t, matches)
	assert.NotEmpty(t, log.Entries())
}

func TestMatchPattern_ShapeRequiredRejectsOtherShapes(t *testing.T) {
	cfg := config.Default()
	p := match.Pattern{Name: "loops-only", TargetDistanceKM: 10, TargetElevationM: 100, PreferredShape: routeenum.ShapeLoop, ShapeRequired: true}
	cands := []routeenum.Candidate{
		candidate([]int64{1, 2}, []int64{1, 2}, 10, 100, routeenum.ShapeOutAndBack),
	}

	matches, _ := match.MatchPattern(p, cands, &graphbuild.Graph{}, cfg)
	assert.Empty(t, matches)
}

func TestScore_PerfectMatchScoresNearOne(t *testing.T) {
	w := config.ScoreWeights{Distance: 0.35, Elevation: 0.35, Diversity: 0.15, Shape: 0.15}
	p := match.Pattern{TargetDistanceKM: 10, TargetElevationM: 100, PreferredShape: routeenum.ShapeLoop}
	c := candidate([]int64{1, 2, 3}, []int64{1, 2, 3, 1}, 10, 100, routeenum.ShapeLoop)

	score := match.Score(c, p, w)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestScore_RepeatedEdgesLowerDiversityTerm(t *testing.T) {
	w := config.ScoreWeights{Distance: 0, Elevation: 0, Diversity: 1, Shape: 0}
	p := match.Pattern{TargetDistanceKM: 10, TargetElevationM: 100}
	distinct := candidate([]int64{1, 2, 3}, nil, 10, 100, routeenum.ShapeLoop)
	repeated := candidate([]int64{1, 1, 1}, nil, 10, 100, routeenum.ShapeLoop)

	assert.Greater(t, match.Score(distinct, p, w), match.Score(repeated, p, w))
}

func TestEdgeSequenceHash_SameSequenceSameHash(t *testing.T) {
	a := match.EdgeSequenceHash([]int64{1, 2, 3})
	b := match.EdgeSequenceHash([]int64{1, 2, 3})
	c := match.EdgeSequenceHash([]int64{3, 2, 1})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestEndpointPairHash_OrderIndependent(t *testing.T) {
	a := match.EndpointPairHash([]int64{1, 2, 3, 9})
	b := match.EndpointPairHash([]int64{9, 5, 5, 1})
	assert.Equal(t, a, b)
}

func TestDeduplicate_DropsExactDuplicateEdgeSequence(t *testing.T) {
	cfg := config.Default()
	cfg.DedupMode = config.DedupExactOnly

	g := &graphbuild.Graph{}
	matches := []match.Match{
		{Pattern: "p", Candidate: candidate([]int64{1, 2}, []int64{1, 2}, 5, 50, routeenum.ShapeOutAndBack), Score: 0.9},
		{Pattern: "p", Candidate: candidate([]int64{1, 2}, []int64{1, 2}, 5, 50, routeenum.ShapeOutAndBack), Score: 0.8},
	}

	out := match.Deduplicate(matches, g, cfg)
	assert.Len(t, out, 1)
	assert.Equal(t, 0.9, out[0].Score)
}

func TestDeduplicate_RejectsSpatiallyCloseStarts(t *testing.T) {
	cfg := config.Default()
	cfg.DedupMode = config.DedupSpatialDiversity
	cfg.MinDistanceBetweenRoutesKM = 5.0

	g := &graphbuild.Graph{
		Vertices: []graphbuild.Vertex{
			{ID: 1, Point: geo.Point3D{Lon: 0, Lat: 0}},
			{ID: 2, Point: geo.Point3D{Lon: 0, Lat: 0.001}}, // ~111m from vertex 1
		},
	}

	matches := []match.Match{
		{Pattern: "p", Candidate: candidate([]int64{1, 2}, []int64{1, 5}, 5, 50, routeenum.ShapeOutAndBack), Score: 0.9},
		{Pattern: "p", Candidate: candidate([]int64{3, 4}, []int64{2, 5}, 5, 50, routeenum.ShapeOutAndBack), Score: 0.8},
	}

	out := match.Deduplicate(matches, g, cfg)
	assert.Len(t, out, 1)
}
