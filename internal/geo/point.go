// Package geo provides the 3-D geometry primitives and planar/geodesic
// predicates the network builder needs: points with elevation, geodesic
// length, force2D projection, closest-point-on-line, line-locate
// fraction, and 2-D segment intersection. Point/length arithmetic is
// built on github.com/paulmach/orb — the pack's bbox/routing repos
// (azybler-map_router) pull it in for exactly this — but orb does not
// ship closest-point/line-locate/segment-intersection predicates, so
// those are hand-rolled standard math in predicates.go.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Point3D is a WGS84 (lon, lat) pair plus elevation in meters.
type Point3D struct {
	Lon  float64
	Lat  float64
	Elev float64
}

// Point2D projects a Point3D onto orb.Point (lon, lat), dropping elevation.
func (p Point3D) Point2D() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Equal2D reports whether two points coincide in 2-D within epsMeters.
func (p Point3D) Equal2D(q Point3D, epsMeters float64) bool {
	return geo.Distance(p.Point2D(), q.Point2D()) <= epsMeters
}

// LineString3D is an ordered, non-empty sequence of distinct Point3D.
type LineString3D []Point3D

// Force2D drops elevation from every point (orb.LineString, for
// planar/geodesic operations that ignore the third dimension).
func (ls LineString3D) Force2D() orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = p.Point2D()
	}
	return out
}

// GeodesicLengthM returns the sum of geodesic (great-circle) distances
// between consecutive points, in meters.
func (ls LineString3D) GeodesicLengthM() float64 {
	if len(ls) < 2 {
		return 0
	}
	proj := ls.Force2D()
	var total float64
	for i := 1; i < len(proj); i++ {
		total += geo.Distance(proj[i-1], proj[i])
	}
	return total
}

// ElevationGainLoss sums positive and negative elevation deltas between
// consecutive points.
func (ls LineString3D) ElevationGainLoss() (gain, loss float64) {
	for i := 1; i < len(ls); i++ {
		d := ls[i].Elev - ls[i-1].Elev
		if d > 0 {
			gain += d
		} else {
			loss += -d
		}
	}
	return gain, loss
}

// Reverse returns a new LineString3D with point order reversed. Used by
// same-name edge coalescing and by graphbuild.Edge.ReverseGeometry
// (spec: reverse geometry must be coordinate-wise, not just a
// source/target ID swap).
func (ls LineString3D) Reverse() LineString3D {
	out := make(LineString3D, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}

// Start returns the first point. Panics on an empty LineString3D — the
// type's invariant (≥2 points) is enforced by callers at construction.
func (ls LineString3D) Start() Point3D { return ls[0] }

// End returns the last point.
func (ls LineString3D) End() Point3D { return ls[len(ls)-1] }

// IsSimple reports whether the 2-D projection is non-self-intersecting:
// no two non-adjacent segments cross, and no duplicate consecutive
// points collapse a segment to zero length.
func (ls LineString3D) IsSimple() bool {
	n := len(ls)
	if n < 2 {
		return false
	}
	proj := ls.Force2D()
	for i := 0; i < n-1; i++ {
		if proj[i] == proj[i+1] {
			return false
		}
	}
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n-1; j++ {
			adjacent := j == i+1
			pt, ok := SegmentIntersect(proj[i], proj[i+1], proj[j], proj[j+1])
			if !ok {
				continue
			}
			if !adjacent {
				return false
			}
			// Adjacent segments legitimately share an endpoint; only
			// reject if they cross beyond that shared vertex.
			shared := proj[i+1]
			if math.Abs(pt[0]-shared[0]) > 1e-12 || math.Abs(pt[1]-shared[1]) > 1e-12 {
				return false
			}
		}
	}
	return true
}

// BoundingBox is the axis-aligned lon/lat envelope of a geometry,
// named to match the teacher's entities.BoundingBox shape.
type BoundingBox struct {
	North, South, East, West float64
}

// Contains reports whether p lies within the box (inclusive).
func (b BoundingBox) Contains(p Point3D) bool {
	return p.Lat <= b.North && p.Lat >= b.South && p.Lon <= b.East && p.Lon >= b.West
}

// Overlaps reports whether two bounding boxes intersect.
func (b BoundingBox) Overlaps(o BoundingBox) bool {
	return b.West <= o.East && o.West <= b.East && b.South <= o.North && o.South <= b.North
}

// BBoxOf computes the bounding box of a LineString3D.
func BBoxOf(ls LineString3D) BoundingBox {
	if len(ls) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{North: ls[0].Lat, South: ls[0].Lat, East: ls[0].Lon, West: ls[0].Lon}
	for _, p := range ls[1:] {
		if p.Lat > b.North {
			b.North = p.Lat
		}
		if p.Lat < b.South {
			b.South = p.Lat
		}
		if p.Lon > b.East {
			b.East = p.Lon
		}
		if p.Lon < b.West {
			b.West = p.Lon
		}
	}
	return b
}
