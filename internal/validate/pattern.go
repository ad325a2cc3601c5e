package validate

import "github.com/trailforge/routegraph/internal/match"

// Pattern validates a match.Pattern before it is handed to S6 — a
// pattern with a non-positive target or an empty name would otherwise
// silently match nothing or clobber another pattern's results in the
// recommendation set.
func Pattern(p match.Pattern) *Errors {
	errs := New()

	if p.Name == "" {
		errs.Add("name", "pattern name cannot be empty")
	}
	if p.TargetDistanceKM <= 0 {
		errs.Add("target_distance_km", "target distance must be positive")
	}
	if p.TargetElevationM < 0 {
		errs.Add("target_elevation_m", "target elevation cannot be negative")
	}
	if p.ShapeRequired && p.PreferredShape == "" {
		errs.Add("preferred_shape", "shape_required is set but no preferred_shape was given")
	}

	return errs
}
