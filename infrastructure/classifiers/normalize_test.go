package classifiers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/fakescope/internal/domain"
)

func TestSoftmax(t *testing.T) {
	t.Run("uniform logits", func(t *testing.T) {
		got := Softmax([]float64{3, 3})
		assert.InDelta(t, 0.5, got[0], 1e-12)
		assert.InDelta(t, 0.5, got[1], 1e-12)
	})

	t.Run("large logits do not overflow", func(t *testing.T) {
		got := Softmax([]float64{1000, 1001})
		require.Len(t, got, 2)
		assert.False(t, math.IsNaN(got[0]))
		assert.InDelta(t, 1/(1+math.E), got[0], 1e-12)
		assert.InDelta(t, 1.0, got[0]+got[1], 1e-12)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, Softmax(nil))
	})
}

func TestToVector(t *testing.T) {
	tests := []struct {
		name    string
		probs   []float64
		want    domain.ProbabilityVector
		wantErr bool
	}{
		{name: "two classes", probs: []float64{0.3, 0.7}, want: domain.ProbabilityVector{Real: 0.3, Fake: 0.7}},
		{name: "single class is fake probability", probs: []float64{0.8}, want: domain.ProbabilityVector{Real: 0.2, Fake: 0.8}},
		{name: "extra classes renormalized", probs: []float64{0.2, 0.2, 0.6}, want: domain.ProbabilityVector{Real: 0.5, Fake: 0.5}},
		{name: "empty", probs: nil, wantErr: true},
		{name: "negative", probs: []float64{-0.1, 1.1}, wantErr: true},
		{name: "nan", probs: []float64{math.NaN(), 1}, wantErr: true},
		{name: "single above one", probs: []float64{1.2}, wantErr: true},
		{name: "both zero", probs: []float64{0, 0, 1}, wantErr: true},
		{name: "sum overflows", probs: []float64{math.MaxFloat64, math.MaxFloat64}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToVector(tt.probs)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidProbability)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Real, got.Real, 1e-12)
			assert.InDelta(t, tt.want.Fake, got.Fake, 1e-12)
			assert.NoError(t, got.Validate())
		})
	}
}
