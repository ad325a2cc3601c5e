package pipeline

import (
	"github.com/trailforge/routegraph/internal/diagnostics"
	"github.com/trailforge/routegraph/internal/intersect"
	"github.com/trailforge/routegraph/internal/split"
	"github.com/trailforge/routegraph/internal/trail"
)

// resolveSplitBuildFixpoint runs S2 (resolve) and S3 (split) repeatedly
// over the trail set: splitting a trail at one intersection can create
// a new endpoint close enough to another trail to register as a fresh
// Y-intersection next pass, so the pair is iterated until no new
// intersection point appears or MaxResolverIters is reached (spec §4.2
// "Resolver loop").
//
// S4 (graph build) itself only runs once, after the fixpoint — it has
// no bearing on whether new intersections appear, since it only
// clusters segment endpoints that S2/S3 already produced.
func (p *Pipeline) resolveSplitBuildFixpoint(trails []trail.Trail) ([]trail.Segment, *diagnostics.Log) {
	log := &diagnostics.Log{}

	segments := wholeTrailSegments(trails)
	// trueOrigin tracks, per current segment ID, the genesis Trail ID it
	// ultimately descends from. split.Split only knows about the
	// immediately-preceding pass's IDs, so without this a segment born on
	// iteration 3 would report its OriginalTrailUUID as the iteration-2
	// segment ID rather than the real source trail.
	trueOrigin := make(map[string]string, len(segments))
	for _, s := range segments {
		trueOrigin[s.ID] = s.OriginalTrailUUID
	}

	prevCount := -1

	for iter := 0; iter < p.Config.MaxResolverIters; iter++ {
		participants := make([]intersect.Participant, 0, len(segments))
		for _, s := range segments {
			participants = append(participants, intersect.Participant{ID: s.ID, Geometry: s.Geometry})
		}

		points, s2log := intersect.Resolve(participants, p.Config)
		log.Merge(s2log)

		if len(points) == prevCount && iter > 0 {
			p.Logger.Info("resolver fixpoint reached after %d iterations", iter)
			break
		}
		prevCount = len(points)

		if len(points) == 0 {
			break
		}

		newSegments, s3log := split.Split(segmentsAsTrails(segments), points, p.Config)
		log.Merge(s3log)

		nextOrigin := make(map[string]string, len(newSegments))
		for i := range newSegments {
			origin := trueOrigin[newSegments[i].OriginalTrailUUID]
			if origin == "" {
				origin = newSegments[i].OriginalTrailUUID
			}
			newSegments[i].OriginalTrailUUID = origin
			nextOrigin[newSegments[i].ID] = origin
		}
		trueOrigin = nextOrigin
		segments = newSegments
	}

	return segments, log
}

// wholeTrailSegments seeds the fixpoint loop with one whole-trail
// Segment per Trail, so the first S2 pass resolves intersections among
// the original (unsplit) trails exactly as spec §4.2 describes.
func wholeTrailSegments(trails []trail.Trail) []trail.Segment {
	out := make([]trail.Segment, 0, len(trails))
	for _, t := range trails {
		seg := trail.Segment{
			ID:                t.ID,
			OriginalTrailUUID: t.ID,
			Name:              t.Name,
			TrailType:         t.TrailType,
			Surface:           t.Surface,
			Difficulty:        t.Difficulty,
			Geometry:          t.Geometry,
		}
		seg.Recompute()
		out = append(out, seg)
	}
	return out
}

// segmentsAsTrails adapts the current iteration's segments back into
// split.Split's Trail-shaped input, carrying the segment's own ID
// forward as the "trail" ID so intersection points computed against
// that segment's geometry in this pass locate back onto it correctly.
func segmentsAsTrails(segments []trail.Segment) []trail.Trail {
	out := make([]trail.Trail, 0, len(segments))
	for _, s := range segments {
		out = append(out, trail.Trail{
			ID:             s.ID,
			Name:           s.Name,
			TrailType:      s.TrailType,
			Surface:        s.Surface,
			Difficulty:     s.Difficulty,
			Geometry:       s.Geometry,
			LengthKM:       s.LengthKM,
			ElevationGainM: s.ElevationGainM,
			ElevationLossM: s.ElevationLossM,
		})
	}
	return out
}
