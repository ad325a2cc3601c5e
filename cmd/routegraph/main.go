// Command routegraph demonstrates wiring a Pipeline from a Config, a
// trail source, a pattern list, and a recommendation sink. It takes one
// flag, -gpx, to read trails from a GPX file via internal/gpxsource;
// general CLI/config parsing, DB-backed TrailSource implementations, and
// a real RecommendationSink are the ingestion/persistence collaborator's
// job (spec §1 Non-goals) — this binary exists to show construction, not
// to be a production entrypoint.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/trailforge/routegraph/internal/config"
	"github.com/trailforge/routegraph/internal/gpxsource"
	"github.com/trailforge/routegraph/internal/routeenum"
	"github.com/trailforge/routegraph/internal/rlog"
	"github.com/trailforge/routegraph/internal/trail"
	"github.com/trailforge/routegraph/pipeline"
)

func main() {
	gpxPath := flag.String("gpx", "", "path to a GPX file to route over (empty runs against zero trails)")
	flag.Parse()

	cfg := config.Default()
	logger := rlog.New()

	src := trail.Source(trail.NewSliceSource(nil))
	if *gpxPath != "" {
		data, err := os.ReadFile(*gpxPath)
		if err != nil {
			log.Fatalf("routegraph: read gpx file: %v", err)
		}
		gpxSrc, err := gpxsource.NewSource(data)
		if err != nil {
			log.Fatalf("routegraph: parse gpx file: %v", err)
		}
		src = gpxSrc
	}

	patterns := pipeline.StaticPatterns{
		{Name: "short_loop", TargetDistanceKM: 8, TargetElevationM: 200, PreferredShape: routeenum.ShapeLoop},
		{Name: "long_out_and_back", TargetDistanceKM: 25, TargetElevationM: 600, PreferredShape: routeenum.ShapeOutAndBack},
	}

	p := pipeline.New(cfg, logger)
	result, err := p.Run(context.Background(), src, patterns, nil)
	if err != nil {
		log.Fatalf("routegraph: pipeline run failed: %v", err)
	}

	for name, recs := range result.Recommendations {
		log.Printf("pattern %q produced %d recommendations", name, len(recs))
	}
	for _, e := range result.Diagnostics.Entries() {
		log.Printf("diagnostic: %s", e)
	}
}
