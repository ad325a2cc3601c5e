// Package normalize implements S1, the Trail Normalizer (spec §4.1):
// validate, force-3D, drop zero-length/invalid trails, and recompute
// length/elevation stats from geometry.
package normalize

import (
	"fmt"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/diagnostics"
	"github.com/trailforge/routegraph/internal/geo"
	"github.com/trailforge/routegraph/internal/trail"
)

// lengthToleranceM is the maximum allowed drift between a trail's
// stored length and its recomputed geodesic length before the
// recomputed value wins (spec §3 invariant).
const lengthToleranceM = 1.0

// Normalize drains src, validating and recomputing every trail. Trails
// that cannot be normalized are dropped and reported in the returned
// Log — never fatal, matching spec §7's InvalidGeometry policy.
func Normalize(src trail.Source, cfg *config.Config) ([]trail.Trail, *diagnostics.Log) {
	log := &diagnostics.Log{}
	var out []trail.Trail

	for {
		t, ok := src.Next()
		if !ok {
			break
		}
		nt, reason, valid := normalizeOne(t, cfg)
		if !valid {
			log.Add(diagnostics.InvalidGeometry, t.ID, reason, nil)
			continue
		}
		if IsElevationDeficient(nt) {
			log.Add(diagnostics.ElevationMissing, nt.ID, "all points report zero elevation", nil)
		}
		out = append(out, nt)
	}
	return out, log
}

func normalizeOne(t trail.Trail, cfg *config.Config) (trail.Trail, string, bool) {
	if len(t.Geometry) < 2 {
		return t, "fewer than 2 points", false
	}

	deduped := dedupeConsecutive(t.Geometry)
	if len(deduped) < 2 {
		return t, "fewer than 2 distinct points after dedupe", false
	}
	t.Geometry = deduped

	if !t.Geometry.IsSimple() {
		return t, "geometry is not simple (self-intersecting)", false
	}

	geodesicLen := t.Geometry.GeodesicLengthM()
	if geodesicLen < cfg.MinTrailLengthM {
		return t, fmt.Sprintf("geodesic length %.3fm below min_trail_length_m %.3fm", geodesicLen, cfg.MinTrailLengthM), false
	}

	// Force-3D: any point missing elevation is already float64-zero by
	// Go's zero value, so there is nothing to coerce at the type level;
	// we only need to detect all-zero elevation for the informational
	// diagnostic the spec allows ("callers may mark such trails as
	// elevation-deficient").
	storedLenM := t.LengthKM * 1000.0
	t.Recompute()

	if storedLenM > 0 {
		drift := storedLenM - geodesicLen
		if drift < 0 {
			drift = -drift
		}
		if drift > lengthToleranceM {
			t.LengthKM = geodesicLen / 1000.0
		} else {
			t.LengthKM = storedLenM / 1000.0
		}
	} else {
		t.LengthKM = geodesicLen / 1000.0
	}

	return t, "", true
}

func dedupeConsecutive(ls geo.LineString3D) geo.LineString3D {
	if len(ls) == 0 {
		return ls
	}
	out := make(geo.LineString3D, 0, len(ls))
	out = append(out, ls[0])
	for _, p := range ls[1:] {
		last := out[len(out)-1]
		if geo.DistanceM(last, p) < 1e-6 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// IsElevationDeficient reports whether every point in t's geometry has
// zero elevation (spec: "callers may mark such trails as
// elevation-deficient").
func IsElevationDeficient(t trail.Trail) bool {
	for _, p := range t.Geometry {
		if p.Elev != 0 {
			return false
		}
	}
	return true
}
