// Package trail defines the pre-split Trail and post-split Segment
// types (spec §3), generalizing the teacher's entities.Trail (which
// carried a single TrailLevel/tags pair for one persistence schema)
// into the metadata set the route matcher needs to carry through to a
// Recommendation's constituent_trails.
package trail

import "github.com/trailforge/routegraph/internal/geo"

// Trail is a single raw input polyline plus its metadata, as handed to
// the pipeline by the ingestion collaborator's trails() iterator.
type Trail struct {
	ID         string
	Name       string
	TrailType  string
	Surface    string
	Difficulty string

	Geometry geo.LineString3D

	LengthKM        float64
	ElevationGainM  float64
	ElevationLossM  float64
	BBox            geo.BoundingBox
}

// Segment replaces a Trail after S3 splitting. OriginalTrailUUID ties it
// back to its parent for S6's constituent_trails aggregation.
type Segment struct {
	ID                string // new unique id, assigned by the splitter
	OriginalTrailUUID string // = parent Trail.ID
	Name              string
	TrailType         string
	Surface           string
	Difficulty        string

	Geometry geo.LineString3D

	LengthKM       float64
	ElevationGainM float64
	ElevationLossM float64
}

// Recompute derives LengthKM/ElevationGainM/ElevationLossM from Geometry.
func (t *Trail) Recompute() {
	t.LengthKM = t.Geometry.GeodesicLengthM() / 1000.0
	t.ElevationGainM, t.ElevationLossM = t.Geometry.ElevationGainLoss()
	t.BBox = geo.BBoxOf(t.Geometry)
}

// Recompute derives LengthKM/ElevationGainM/ElevationLossM for a segment.
func (s *Segment) Recompute() {
	s.LengthKM = s.Geometry.GeodesicLengthM() / 1000.0
	s.ElevationGainM, s.ElevationLossM = s.Geometry.ElevationGainLoss()
}

// Source is the read-only trail iterator the ingestion collaborator
// provides (spec §6's input contract). Next returns false when
// exhausted; the pipeline never peeks ahead or rewinds.
type Source interface {
	Next() (Trail, bool)
}

// SliceSource adapts a []Trail to Source, for tests and simple callers.
type SliceSource struct {
	trails []Trail
	pos    int
}

// NewSliceSource builds a Source over an in-memory slice.
func NewSliceSource(trails []Trail) *SliceSource {
	return &SliceSource{trails: trails}
}

// Next implements Source.
func (s *SliceSource) Next() (Trail, bool) {
	if s.pos >= len(s.trails) {
		return Trail{}, false
	}
	t := s.trails[s.pos]
	s.pos++
	return t, true
}
