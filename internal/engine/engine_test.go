package engine

import (
	"testing"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/require"

	"SigFusion/pkg/config"
)

// testEngineConfig builds an EngineConfig with the shipped defaults,
// the same way Load does.
func testEngineConfig(t *testing.T) *config.EngineConfig {
	t.Helper()
	cfg := &config.EngineConfig{}
	require.NoError(t, defaults.Set(cfg))
	cfg.Weights = config.DefaultWeights
	cfg.Correlation.Strengths = config.DefaultCorrelationStrengths
	require.NoError(t, cfg.Validate())
	return cfg
}
