package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trailforge/routegraph/internal/config"
)

func TestDefault_PassesValidate(t *testing.T) {
	cfg := config.Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveSnapTolerance(t *testing.T) {
	cfg := config.Default()
	cfg.SnapToleranceM = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsWeightsNotSummingToOne(t *testing.T) {
	cfg := config.Default()
	cfg.Weights.Distance = 0.9
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsEmptyToleranceLevels(t *testing.T) {
	cfg := config.Default()
	cfg.ToleranceLevels = nil
	assert.Error(t, cfg.Validate())
}

func TestDedupMode_Has(t *testing.T) {
	mode := config.DedupExactOnly | config.DedupSpatialDiversity
	assert.True(t, mode.Has(config.DedupExactOnly))
	assert.True(t, mode.Has(config.DedupSpatialDiversity))
	assert.False(t, mode.Has(config.DedupStrictEndpoint))
}
