// Package gpxsource adapts GPX track data into the pipeline's
// trail.Source contract. The teacher's own go.mod declared
// github.com/tkrajina/gpxgo but its importer (backend/gpx_importer.go)
// hand-rolled XML unmarshalling instead of using it; this package
// exercises that dependency properly, one Trail per track segment.
package gpxsource

import (
	"fmt"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/trailforge/routegraph/internal/geo"
	"github.com/trailforge/routegraph/internal/trail"
)

// Parse reads a raw GPX document and returns one Trail per track
// segment. A track with a single segment keeps the track's name as its
// ID; a track with multiple segments suffixes the name with the
// segment index to keep IDs unique.
func Parse(data []byte) ([]trail.Trail, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("gpxsource: parse gpx: %w", err)
	}

	var out []trail.Trail
	for _, trk := range doc.Tracks {
		for i, seg := range trk.Segments {
			if len(seg.Points) < 2 {
				continue
			}
			id := trk.Name
			if len(trk.Segments) > 1 {
				id = fmt.Sprintf("%s#%d", trk.Name, i)
			}
			out = append(out, trailFromSegment(id, trk.Name, seg))
		}
	}
	return out, nil
}

func trailFromSegment(id, name string, seg gpx.GPXTrackSegment) trail.Trail {
	ls := make(geo.LineString3D, len(seg.Points))
	for j, p := range seg.Points {
		ls[j] = geo.Point3D{Lon: p.Longitude, Lat: p.Latitude, Elev: p.Elevation.Value()}
	}
	t := trail.Trail{ID: id, Name: name, Geometry: ls}
	t.Recompute()
	return t
}

// Source adapts a parsed GPX document into a trail.Source so it can be
// handed directly to Pipeline.Run.
type Source struct {
	trails []trail.Trail
	pos    int
}

// NewSource parses data and returns a ready-to-drain trail.Source.
func NewSource(data []byte) (*Source, error) {
	trails, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return &Source{trails: trails}, nil
}

// Next implements trail.Source.
func (s *Source) Next() (trail.Trail, bool) {
	if s.pos >= len(s.trails) {
		return trail.Trail{}, false
	}
	t := s.trails[s.pos]
	s.pos++
	return t, true
}
