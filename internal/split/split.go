// Package split implements S3, the Splitter (spec §4.3): cut each trail
// at the intersection points that fall on it, producing an ordered
// sequence of Segments with an all-or-nothing length-conservation
// guarantee per trail.
package split

import (
	"sort"

	"github.com/google/uuid"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/diagnostics"
	"github.com/trailforge/routegraph/internal/geo"
	"github.com/trailforge/routegraph/internal/intersect"
	"github.com/trailforge/routegraph/internal/trail"
)

// lengthToleranceM is the split-length-conservation budget (spec §3/§4.3).
const lengthToleranceM = 1.0

// Split cuts every trail at the intersection points on it and returns
// the resulting segments. A trail whose split would violate the
// length-conservation invariant is kept whole as a single segment and
// a SplitLengthMismatch diagnostic is recorded — per spec, this is a
// per-trail all-or-nothing decision, never a partial split.
func Split(trails []trail.Trail, points []intersect.IntersectionPoint, cfg *config.Config) ([]trail.Segment, *diagnostics.Log) {
	log := &diagnostics.Log{}

	fractionsByTrail := make(map[string][]float64)
	for _, ip := range points {
		for _, pid := range ip.Participants {
			if f, ok := ip.Fractions[pid]; ok {
				fractionsByTrail[pid] = append(fractionsByTrail[pid], f)
			}
		}
	}

	var out []trail.Segment
	for _, t := range trails {
		fracs := dedupeFractions(fractionsByTrail[t.ID], cfg.FMinFraction)
		segs, ok := splitOne(t, fracs)
		if !ok {
			log.Add(diagnostics.SplitLengthMismatch, t.ID,
				"child segment lengths do not sum to parent length within tolerance; kept whole", nil)
			segs = []trail.Segment{wholeSegment(t)}
		}
		out = append(out, segs...)
	}
	return out, log
}

func dedupeFractions(fracs []float64, fMin float64) []float64 {
	sort.Float64s(fracs)
	var out []float64
	for _, f := range fracs {
		if f <= fMin || f >= 1-fMin {
			continue
		}
		if len(out) > 0 && f-out[len(out)-1] < 1e-9 {
			continue
		}
		out = append(out, f)
	}
	return out
}

func splitOne(t trail.Trail, fracs []float64) ([]trail.Segment, bool) {
	if len(fracs) == 0 {
		return []trail.Segment{wholeSegment(t)}, true
	}

	bounds := append(append([]float64{0}, fracs...), 1)
	var segs []trail.Segment
	var childTotalM float64

	for i := 0; i < len(bounds)-1; i++ {
		geomSlice := sliceGeometry(t.Geometry, bounds[i], bounds[i+1])
		if len(geomSlice) < 2 {
			continue
		}
		seg := trail.Segment{
			ID:                uuid.NewString(),
			OriginalTrailUUID: t.ID,
			Name:              t.Name,
			TrailType:         t.TrailType,
			Surface:           t.Surface,
			Difficulty:        t.Difficulty,
			Geometry:          geomSlice,
		}
		seg.Recompute()
		childTotalM += seg.LengthKM * 1000.0
		segs = append(segs, seg)
	}

	parentM := t.Geometry.GeodesicLengthM()
	drift := childTotalM - parentM
	if drift < 0 {
		drift = -drift
	}
	if drift > lengthToleranceM {
		return nil, false
	}
	return segs, true
}

func wholeSegment(t trail.Trail) trail.Segment {
	seg := trail.Segment{
		ID:                uuid.NewString(),
		OriginalTrailUUID: t.ID,
		Name:              t.Name,
		TrailType:         t.TrailType,
		Surface:           t.Surface,
		Difficulty:        t.Difficulty,
		Geometry:          t.Geometry,
	}
	seg.Recompute()
	return seg
}

// sliceGeometry returns the portion of ls between arc-length fractions
// [from,to], inserting interpolated endpoints exactly at those fractions
// so consecutive children share an exact boundary point.
func sliceGeometry(ls geo.LineString3D, from, to float64) geo.LineString3D {
	start := geo.PointAtFraction(ls, from)
	end := geo.PointAtFraction(ls, to)

	proj := ls.Force2D()
	cum := make([]float64, len(proj))
	for i := 1; i < len(proj); i++ {
		cum[i] = cum[i-1] + geo.DistanceM(ls[i-1], ls[i])
	}
	total := cum[len(cum)-1]
	if total == 0 {
		return geo.LineString3D{start, end}
	}

	fromLen := from * total
	toLen := to * total

	out := geo.LineString3D{start}
	for i, p := range ls {
		if cum[i] > fromLen+1e-6 && cum[i] < toLen-1e-6 {
			out = append(out, p)
		}
	}
	out = append(out, end)
	return out
}

