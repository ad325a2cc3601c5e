package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

const epsilon = 1e-12

// SegmentIntersect computes the intersection of planar segments (a1,a2)
// and (b1,b2), returning the point and true if they cross or touch at a
// single point. Parallel (including collinear-overlapping) segments
// report ok=false — the resolver's multipoint classification handles
// true multi-point intersections by testing consecutive segment pairs
// across the whole polyline, not by detecting collinear overlap here.
func SegmentIntersect(a1, a2, b1, b2 orb.Point) (orb.Point, bool) {
	r := [2]float64{a2[0] - a1[0], a2[1] - a1[1]}
	s := [2]float64{b2[0] - b1[0], b2[1] - b1[1]}
	denom := r[0]*s[1] - r[1]*s[0]
	if math.Abs(denom) < epsilon {
		return orb.Point{}, false
	}
	qp := [2]float64{b1[0] - a1[0], b1[1] - a1[1]}
	t := (qp[0]*s[1] - qp[1]*s[0]) / denom
	u := (qp[0]*r[1] - qp[1]*r[0]) / denom
	if t < -epsilon || t > 1+epsilon || u < -epsilon || u > 1+epsilon {
		return orb.Point{}, false
	}
	return orb.Point{a1[0] + t*r[0], a1[1] + t*r[1]}, true
}

// ClosestPointOnSegment returns the closest point on segment (a,b) to p,
// along with the fraction t in [0,1] of that point along the segment.
// Distance is planar (degrees); callers convert to meters via
// orbgeo.Distance when they need a physical tolerance check.
func ClosestPointOnSegment(p, a, b orb.Point) (closest orb.Point, t float64) {
	ab := [2]float64{b[0] - a[0], b[1] - a[1]}
	denom := ab[0]*ab[0] + ab[1]*ab[1]
	if denom < epsilon {
		return a, 0
	}
	ap := [2]float64{p[0] - a[0], p[1] - a[1]}
	t = (ap[0]*ab[0] + ap[1]*ab[1]) / denom
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return orb.Point{a[0] + t*ab[0], a[1] + t*ab[1]}, t
}

// ClosestPointOnLine finds, over every segment of ls, the point closest
// to p (geodesic distance), returning that point, the geodesic distance
// to it, and its arc-length fraction along the whole line in [0,1].
func ClosestPointOnLine(p Point3D, ls LineString3D) (closest Point3D, distM float64, fraction float64) {
	proj := ls.Force2D()
	pp := p.Point2D()

	bestDist := math.Inf(1)
	var bestPoint orb.Point
	var bestSeg int
	var bestT float64

	cum := make([]float64, len(proj))
	for i := 1; i < len(proj); i++ {
		cum[i] = cum[i-1] + orbgeo.Distance(proj[i-1], proj[i])
	}
	total := cum[len(cum)-1]

	for i := 0; i < len(proj)-1; i++ {
		cp, t := ClosestPointOnSegment(pp, proj[i], proj[i+1])
		d := orbgeo.Distance(pp, cp)
		if d < bestDist {
			bestDist = d
			bestPoint = cp
			bestSeg = i
			bestT = t
		}
	}

	segLen := orbgeo.Distance(proj[bestSeg], proj[bestSeg+1])
	arcLen := cum[bestSeg] + bestT*segLen
	if total > 0 {
		fraction = arcLen / total
	}

	elev := ls[bestSeg].Elev + bestT*(ls[bestSeg+1].Elev-ls[bestSeg].Elev)
	return Point3D{Lon: bestPoint[0], Lat: bestPoint[1], Elev: elev}, bestDist, fraction
}

// LineLocateFraction is ClosestPointOnLine's fraction component alone,
// named to match spec's "line_locate_fraction".
func LineLocateFraction(ls LineString3D, p Point3D) float64 {
	_, _, f := ClosestPointOnLine(p, ls)
	return f
}

// PointAtFraction interpolates the point on ls at arc-length fraction f
// (f in [0,1]), used by the splitter to cut a trail at intersection points.
func PointAtFraction(ls LineString3D, f float64) Point3D {
	if f <= 0 {
		return ls.Start()
	}
	if f >= 1 {
		return ls.End()
	}
	proj := ls.Force2D()
	cum := make([]float64, len(proj))
	for i := 1; i < len(proj); i++ {
		cum[i] = cum[i-1] + orbgeo.Distance(proj[i-1], proj[i])
	}
	total := cum[len(cum)-1]
	target := f * total

	for i := 0; i < len(proj)-1; i++ {
		if cum[i+1] >= target {
			segLen := cum[i+1] - cum[i]
			var t float64
			if segLen > epsilon {
				t = (target - cum[i]) / segLen
			}
			return Point3D{
				Lon:  ls[i].Lon + t*(ls[i+1].Lon-ls[i].Lon),
				Lat:  ls[i].Lat + t*(ls[i+1].Lat-ls[i].Lat),
				Elev: ls[i].Elev + t*(ls[i+1].Elev-ls[i].Elev),
			}
		}
	}
	return ls.End()
}

// DistanceM returns the geodesic distance in meters between two points.
func DistanceM(a, b Point3D) float64 {
	return orbgeo.Distance(a.Point2D(), b.Point2D())
}
