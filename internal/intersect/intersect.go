// Package intersect implements S2, the Intersection Resolver (spec
// §4.2): exact, Y, and multipoint intersection detection over a set of
// named 2-D polylines, using a bbox R-tree for candidate pruning.
package intersect

import (
	"math"
	"sort"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/diagnostics"
	"github.com/trailforge/routegraph/internal/geo"
	"github.com/trailforge/routegraph/internal/geoindex"
)

// Kind classifies an IntersectionPoint.
type Kind string

const (
	Exact      Kind = "exact"
	Y          Kind = "y"
	Multipoint Kind = "multipoint"
)

// Subtype further classifies Multipoint intersections.
type Subtype string

const (
	SubtypeNone Subtype = ""
	SubtypeX    Subtype = "X"
	SubtypeP    Subtype = "P"
)

// Participant is anything the resolver can intersect — a whole Trail in
// the first resolver pass, or a post-split Segment in subsequent passes
// (the pipeline re-runs the resolver over segments to find
// intersections the splitting itself created).
type Participant struct {
	ID       string
	Geometry geo.LineString3D
}

// IntersectionPoint is one detected split point (spec §3).
type IntersectionPoint struct {
	Point        geo.Point3D
	Kind         Kind
	Subtype      Subtype
	Participants []string
	// Fractions holds, per participant ID, the line_locate_fraction of
	// Point along that participant's geometry.
	Fractions map[string]float64
}

// gridSnapDecimals matches the source's observed 6-decimal-degree
// precision policy (spec §4.2 "Ordering, tie-breaks, idempotence").
const gridSnapDecimals = 6

func snapToGrid(v float64) float64 {
	scale := math.Pow(10, gridSnapDecimals)
	return math.Round(v*scale) / scale
}

// Resolve detects all intersection points among participants and
// returns them deduplicated, plus a diagnostics log of any pair the
// resolver had to skip.
func Resolve(participants []Participant, cfg *config.Config) ([]IntersectionPoint, *diagnostics.Log) {
	log := &diagnostics.Log{}
	if len(participants) == 0 {
		return nil, log
	}

	idx := geoindex.New[int]()
	bboxes := make([]geo.BoundingBox, len(participants))
	for i, p := range participants {
		b := geo.BBoxOf(p.Geometry)
		bboxes[i] = b
		idx.Insert([2]float64{b.West, b.South}, [2]float64{b.East, b.North}, i)
	}

	var points []IntersectionPoint

	// Exact and multipoint intersections: enumerate pairs with A.ID < B.ID.
	for i := range participants {
		for j := range participants {
			if participants[j].ID <= participants[i].ID {
				continue
			}
			expanded := expandBox(bboxes[i], cfg.ExactTolM)
			if !expanded.Overlaps(bboxes[j]) {
				continue
			}
			pts, ok := lineIntersections(participants[i].Geometry, participants[j].Geometry)
			if !ok {
				log.Add(diagnostics.ResolverDegenerate, participants[i].ID+","+participants[j].ID,
					"unexpected intersection geometry type", nil)
				continue
			}
			merged := mergeClose(pts, cfg.ExactTolM)
			switch len(merged) {
			case 0:
				// no intersection
			case 1:
				points = append(points, makePoint(merged[0], Exact, SubtypeNone,
					participants[i], participants[j]))
			default:
				sub := classifyMultipoint(merged, participants[i].Geometry, participants[j].Geometry)
				for _, pt := range merged {
					points = append(points, makePoint(pt, Multipoint, sub,
						participants[i], participants[j]))
				}
			}
		}
	}

	// Y-intersections: for each trail's endpoints, search for a nearby
	// trail whose interior passes close by.
	for i, a := range participants {
		for _, endpoint := range []geo.Point3D{a.Geometry.Start(), a.Geometry.End()} {
			searchBox := expandPointBox(endpoint, cfg.YTolM)
			var candidates []int
			idx.Query(searchBox[0], searchBox[1], func(j int) bool {
				if j != i {
					candidates = append(candidates, j)
				}
				return true
			})
			for _, j := range candidates {
				b := participants[j]
				q, d, frac := geo.ClosestPointOnLine(endpoint, b.Geometry)
				if d > cfg.YTolM || d <= cfg.MinSnapM {
					continue
				}
				if frac < cfg.FMinFraction || frac > 1-cfg.FMinFraction {
					continue
				}
				ip := IntersectionPoint{
					Point:        snapPoint(q),
					Kind:         Y,
					Participants: sortedPair(a.ID, b.ID),
					Fractions:    map[string]float64{b.ID: frac},
				}
				points = append(points, ip)
			}
		}
	}

	return dedupeAll(points, cfg.ExactTolM), log
}

func makePoint(p geo.Point3D, kind Kind, sub Subtype, a, b Participant) IntersectionPoint {
	fa := geo.LineLocateFraction(a.Geometry, p)
	fb := geo.LineLocateFraction(b.Geometry, p)
	return IntersectionPoint{
		Point:        snapPoint(p),
		Kind:         kind,
		Subtype:      sub,
		Participants: sortedPair(a.ID, b.ID),
		Fractions:    map[string]float64{a.ID: fa, b.ID: fb},
	}
}

func sortedPair(a, b string) []string {
	if a < b {
		return []string{a, b}
	}
	return []string{b, a}
}

func snapPoint(p geo.Point3D) geo.Point3D {
	return geo.Point3D{Lon: snapToGrid(p.Lon), Lat: snapToGrid(p.Lat), Elev: p.Elev}
}

func expandBox(b geo.BoundingBox, tolM float64) geo.BoundingBox {
	// Roughly convert a meter tolerance to degrees; 1 degree latitude
	// is ~111,320m, longitude scales by cos(latitude). This is a
	// generous pruning expansion only — the real tolerance check
	// happens in meters afterward.
	latPad := tolM / 111_320.0
	lonPad := latPad
	if cos := math.Cos(b.North * math.Pi / 180); cos > 0.01 {
		lonPad = tolM / (111_320.0 * cos)
	}
	return geo.BoundingBox{
		North: b.North + latPad,
		South: b.South - latPad,
		East:  b.East + lonPad,
		West:  b.West - lonPad,
	}
}

func expandPointBox(p geo.Point3D, tolM float64) (min, max [2]float64) {
	b := expandBox(geo.BoundingBox{North: p.Lat, South: p.Lat, East: p.Lon, West: p.Lon}, tolM)
	return [2]float64{b.West, b.South}, [2]float64{b.East, b.North}
}

// lineIntersections computes every crossing or touching point between
// two polylines, pairwise over their segments. ok is false only if the
// geometry is degenerate (fewer than 2 points on either side), modeling
// the "GeometryCollection or other unexpected types" skip path.
func lineIntersections(a, b geo.LineString3D) ([]geo.Point3D, bool) {
	if len(a) < 2 || len(b) < 2 {
		return nil, false
	}
	pa := a.Force2D()
	pb := b.Force2D()
	var out []geo.Point3D
	for i := 0; i < len(pa)-1; i++ {
		for j := 0; j < len(pb)-1; j++ {
			pt, ok := geo.SegmentIntersect(pa[i], pa[i+1], pb[j], pb[j+1])
			if !ok {
				continue
			}
			out = append(out, geo.Point3D{Lon: pt[0], Lat: pt[1]})
		}
	}
	return out, true
}

func mergeClose(pts []geo.Point3D, tolM float64) []geo.Point3D {
	var merged []geo.Point3D
	for _, p := range pts {
		found := false
		for k, m := range merged {
			if geo.DistanceM(p, m) <= tolM {
				merged[k] = midpoint(m, p)
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, p)
		}
	}
	return merged
}

func midpoint(a, b geo.Point3D) geo.Point3D {
	return geo.Point3D{Lon: (a.Lon + b.Lon) / 2, Lat: (a.Lat + b.Lat) / 2, Elev: (a.Elev + b.Elev) / 2}
}

// classifyMultipoint applies spec's X vs P rule: X iff exactly 2 points
// and both lie strictly in the interior of both participants; P
// otherwise (≥3 points, or at least one point sits at an endpoint).
func classifyMultipoint(pts []geo.Point3D, a, b geo.LineString3D) Subtype {
	if len(pts) != 2 {
		return SubtypeP
	}
	for _, p := range pts {
		if isEndpointOf(p, a) || isEndpointOf(p, b) {
			return SubtypeP
		}
	}
	return SubtypeX
}

func isEndpointOf(p geo.Point3D, ls geo.LineString3D) bool {
	const endpointEps = 0.5 // meters
	return geo.DistanceM(p, ls.Start()) <= endpointEps || geo.DistanceM(p, ls.End()) <= endpointEps
}

// dedupeAll merges points within tolM of each other across the whole
// result set, unioning their participant lists and fraction maps.
func dedupeAll(points []IntersectionPoint, tolM float64) []IntersectionPoint {
	sort.Slice(points, func(i, j int) bool {
		if points[i].Point.Lon != points[j].Point.Lon {
			return points[i].Point.Lon < points[j].Point.Lon
		}
		return points[i].Point.Lat < points[j].Point.Lat
	})

	var out []IntersectionPoint
	for _, p := range points {
		merged := false
		for k := range out {
			if geo.DistanceM(p.Point, out[k].Point) <= tolM && out[k].Kind == p.Kind {
				out[k] = unionPoints(out[k], p)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, p)
		}
	}
	return out
}

func unionPoints(a, b IntersectionPoint) IntersectionPoint {
	seen := map[string]bool{}
	var parts []string
	for _, id := range append(append([]string{}, a.Participants...), b.Participants...) {
		if !seen[id] {
			seen[id] = true
			parts = append(parts, id)
		}
	}
	sort.Strings(parts)
	fracs := map[string]float64{}
	for k, v := range a.Fractions {
		fracs[k] = v
	}
	for k, v := range b.Fractions {
		fracs[k] = v
	}
	a.Participants = parts
	a.Fractions = fracs
	return a
}
