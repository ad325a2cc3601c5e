package geo_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/trailforge/routegraph/internal/geo"
)

func TestSegmentIntersect_CrossingSegments(t *testing.T) {
	a1, a2 := orb.Point{0, 0}, orb.Point{1, 1}
	b1, b2 := orb.Point{0, 1}, orb.Point{1, 0}
	pt, ok := geo.SegmentIntersect(a1, a2, b1, b2)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, pt[0], 1e-9)
	assert.InDelta(t, 0.5, pt[1], 1e-9)
}

func TestSegmentIntersect_ParallelSegmentsDoNotIntersect(t *testing.T) {
	a1, a2 := orb.Point{0, 0}, orb.Point{1, 0}
	b1, b2 := orb.Point{0, 1}, orb.Point{1, 1}
	_, ok := geo.SegmentIntersect(a1, a2, b1, b2)
	assert.False(t, ok)
}

func TestClosestPointOnSegment(t *testing.T) {
	a, b := orb.Point{0, 0}, orb.Point{10, 0}
	closest, frac := geo.ClosestPointOnSegment(orb.Point{5, 5}, a, b)
	assert.InDelta(t, 5.0, closest[0], 1e-9)
	assert.InDelta(t, 0.0, closest[1], 1e-9)
	assert.InDelta(t, 0.5, frac, 1e-9)
}

func TestLineLocateFraction_AtMidpoint(t *testing.T) {
	ls := geo.LineString3D{
		{Lon: 0, Lat: 0},
		{Lon: 0, Lat: 1},
		{Lon: 0, Lat: 2},
	}
	mid := geo.Point3D{Lon: 0, Lat: 1}
	frac := geo.LineLocateFraction(ls, mid)
	assert.InDelta(t, 0.5, frac, 1e-3)
}

func TestPointAtFraction_RoundTrips(t *testing.T) {
	ls := geo.LineString3D{
		{Lon: 0, Lat: 0, Elev: 0},
		{Lon: 0, Lat: 2, Elev: 200},
	}
	p := geo.PointAtFraction(ls, 0.5)
	assert.InDelta(t, 1.0, p.Lat, 1e-3)
	frac := geo.LineLocateFraction(ls, p)
	assert.InDelta(t, 0.5, frac, 1e-3)
}
