package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"SigFusion/internal/domain/models"
)

func TestBlendWithoutModel(t *testing.T) {
	b := NewBlender(testEngineConfig(t))

	// no model opinion: the rule side carries full weight
	res := b.Blend(85, nil)
	require.InDelta(t, 0.85, res.Confidence, 1e-9)
	require.Equal(t, RecommendStrong, res.Recommendation)
	require.False(t, res.Cancelled)

	res = b.Blend(71, nil)
	require.Equal(t, RecommendTake, res.Recommendation)

	res = b.Blend(55, nil)
	require.Equal(t, RecommendCaution, res.Recommendation)

	// a coin-flip probability is cautioned, not cancelled
	res = b.Blend(50, nil)
	require.InDelta(t, 0.5, res.Confidence, 1e-9)
	require.Equal(t, RecommendCaution, res.Recommendation)
	require.False(t, res.Cancelled)

	res = b.Blend(30, nil)
	require.Equal(t, RecommendWait, res.Recommendation)
	require.True(t, res.Cancelled)
}

func TestBlendWeightsPercentScales(t *testing.T) {
	b := NewBlender(testEngineConfig(t))

	ml := &models.MLOpinion{Direction: "long", Confidence: 0.9}
	res := b.Blend(85, ml)
	require.InDelta(t, (0.7*85+0.3*90)/100, res.Confidence, 1e-9)
	require.Equal(t, RecommendStrong, res.Recommendation)

	// a lukewarm model opinion dilutes but does not demote a solid call
	res = b.Blend(70, &models.MLOpinion{Direction: "long", Confidence: 0.5})
	require.InDelta(t, 0.64, res.Confidence, 1e-9)
	require.Equal(t, RecommendTake, res.Recommendation)
}

func TestBlendModelVeto(t *testing.T) {
	b := NewBlender(testEngineConfig(t))

	ml := &models.MLOpinion{Direction: "long", Confidence: 0.95, ShouldCancel: true}
	res := b.Blend(85, ml)
	require.Equal(t, RecommendWait, res.Recommendation)
	require.True(t, res.Cancelled)
	// the veto cancels the call but leaves the blended number intact
	require.Greater(t, res.Confidence, 0.8)
}

func TestBlendClampsInputs(t *testing.T) {
	b := NewBlender(testEngineConfig(t))

	// out-of-range model confidence is clamped, not propagated
	ml := &models.MLOpinion{Direction: "long", Confidence: 1.8}
	res := b.Blend(85, ml)
	require.InDelta(t, (0.7*85+0.3*100)/100, res.Confidence, 1e-9)

	res = b.Blend(120, nil)
	require.InDelta(t, 1.0, res.Confidence, 1e-9)

	res = b.Blend(-10, nil)
	require.Zero(t, res.Confidence)
}
