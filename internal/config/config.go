// Package config holds the tunables for every pipeline stage. Unlike
// the teacher's config.Load (which reads POSTGRES_HOST etc. from the
// environment because it owns a live server process), this core never
// parses env vars or files itself — config assembly from a real
// environment, CLI flags, or a YAML file is the ingestion collaborator's
// job (spec §1 Non-goals). Default returns a fully populated, ready to
// use *Config; callers override individual fields.
package config

import "fmt"

// DedupMode selects which S6 deduplication fingerprints are applied, on
// top of the always-on exact-edge-sequence hash. Stackable via bitwise OR.
type DedupMode uint8

const (
	DedupExactOnly        DedupMode = 1 << iota // always effectively on; named for parity with the source's env toggle
	DedupStrictEndpoint                         // reject same-endpoint-pair candidates unless substantially longer
	DedupSpatialDiversity                       // reject candidates too close to an already-accepted route
)

func (m DedupMode) Has(flag DedupMode) bool { return m&flag != 0 }

// ToleranceLevel is one entry of a pattern's escalating tolerance bands.
type ToleranceLevel struct {
	Label        string
	DistancePct  float64
	ElevationPct float64
}

// ScoreWeights are the blend weights for route_score (spec §4.6.2).
// They must sum to 1.0; Config.Validate checks this.
type ScoreWeights struct {
	Distance  float64
	Elevation float64
	Diversity float64
	Shape     float64
}

// Config is the full set of pipeline tunables (spec §6).
type Config struct {
	// Geometry / snapping
	SnapToleranceM  float64 // default 10.0  — vertex clustering radius
	ExactTolM       float64 // default 1.0   — exact-intersection collapse radius
	YTolM           float64 // default 10.0  — Y-intersection search radius
	MinSnapM        float64 // default 1.0   — below this, a Y-intersection is a trivial coincidence
	FMinFraction    float64 // default 0.02  — line-locate fraction excluded near either endpoint
	MinTrailLengthM float64 // default 5.0   — trails shorter than this are dropped in S1
	MinSegmentKM    float64 // default 0.005 — geometrically-null edges dropped in S4

	// Resolver
	MaxResolverIters int // default 10

	// S5 — KSP / out-and-back
	KSPK             int     // default 8 — k-shortest-paths count
	MaxStartingNodes int     // default 0 (unbounded) — cap on eligible source vertices, 0 = no cap
	MinOutboundKM    float64 // default 0.5

	// S5 — loops
	HawickMaxRows int     // default 100000 — hard cap on elementary circuits enumerated
	MinLoopEdges  int     // default 5
	MinLoopKM     float64 // default 10
	MaxLoopKM     float64 // default 200

	// S5 — lollipops. DistanceRangeMin/Max are multipliers applied to
	// half of each pattern's own TargetDistanceKM, not absolute km
	// (spec §4.5.3: "[RANGE_MIN · target, RANGE_MAX · target]") — S5
	// runs once per pattern so every enumerator can scale its search
	// window by that pattern's target.
	KSPPathsLollipop int     // default 100 — per anchor/destination pair
	OverlapMaxPct    float64 // default 60  — stem reuse ceiling between outbound and return
	DistanceRangeMin float64 // default 0.1 — multiplier of half the pattern's target distance
	DistanceRangeMax float64 // default 2.0 — multiplier of half the pattern's target distance

	// S6 — matching / scoring / dedupe
	ToleranceLevels            []ToleranceLevel
	Weights                    ScoreWeights
	DedupMode                  DedupMode
	MinDistanceBetweenRoutesKM float64 // default 0.5
	TargetRoutesPerPattern     int     // default 10

	// S3 — presentation
	CoalesceSameNameEdges bool // default false

	// Concurrency
	MaxWorkers int // default 0 (runtime.GOMAXPROCS(0))
}

// Default returns a Config populated with spec §6's documented defaults.
func Default() *Config {
	return &Config{
		SnapToleranceM:  10.0,
		ExactTolM:       1.0,
		YTolM:           10.0,
		MinSnapM:        1.0,
		FMinFraction:    0.02,
		MinTrailLengthM: 5.0,
		MinSegmentKM:    0.005,

		MaxResolverIters: 10,

		KSPK:             8,
		MaxStartingNodes: 0,
		MinOutboundKM:    0.5,

		HawickMaxRows: 100_000,
		MinLoopEdges:  5,
		MinLoopKM:     10,
		MaxLoopKM:     200,

		KSPPathsLollipop: 100,
		OverlapMaxPct:    60,
		DistanceRangeMin: 0.1,
		DistanceRangeMax: 2.0,

		ToleranceLevels: []ToleranceLevel{
			{Label: "strict", DistancePct: 0.10, ElevationPct: 0.10},
			{Label: "relaxed", DistancePct: 0.25, ElevationPct: 0.25},
			{Label: "wide", DistancePct: 0.50, ElevationPct: 0.50},
		},
		Weights: ScoreWeights{Distance: 0.35, Elevation: 0.35, Diversity: 0.15, Shape: 0.15},

		DedupMode:                  DedupExactOnly | DedupSpatialDiversity,
		MinDistanceBetweenRoutesKM: 0.5,
		TargetRoutesPerPattern:     10,

		CoalesceSameNameEdges: false,
	}
}

// Validate checks the configuration for internally inconsistent values.
// It never fails on a merely conservative setting (e.g. K=1); it only
// catches values that would make a stage meaningless or would panic.
func (c *Config) Validate() error {
	if c.SnapToleranceM <= 0 {
		return fmt.Errorf("config: snap_tolerance_m must be positive, got %f", c.SnapToleranceM)
	}
	if c.MinTrailLengthM < 0 {
		return fmt.Errorf("config: min_trail_length_m must be non-negative, got %f", c.MinTrailLengthM)
	}
	if c.FMinFraction < 0 || c.FMinFraction >= 0.5 {
		return fmt.Errorf("config: f_min_fraction must be in [0, 0.5), got %f", c.FMinFraction)
	}
	if c.MaxResolverIters < 1 {
		return fmt.Errorf("config: max_resolver_iters must be at least 1, got %d", c.MaxResolverIters)
	}
	if c.KSPK < 1 {
		return fmt.Errorf("config: ksp_k must be at least 1, got %d", c.KSPK)
	}
	sum := c.Weights.Distance + c.Weights.Elevation + c.Weights.Diversity + c.Weights.Shape
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("config: score weights must sum to 1.0, got %f", sum)
	}
	if len(c.ToleranceLevels) == 0 {
		return fmt.Errorf("config: at least one tolerance level is required")
	}
	return nil
}
