package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributeShares(t *testing.T) {
	tests := []struct {
		name     string
		compute  []uint32
		graphics []uint32
		overall  float64
		want     map[uint32]float64
	}{
		{
			name: "no processes",
			want: map[uint32]float64{},
		},
		{
			name:    "compute only records zero",
			compute: []uint32{100, 200},
			overall: 80,
			want:    map[uint32]float64{100: 0, 200: 0},
		},
		{
			name:     "graphics split evenly",
			graphics: []uint32{10, 20, 30, 40},
			overall:  60,
			want:     map[uint32]float64{10: 15, 20: 15, 30: 15, 40: 15},
		},
		{
			name:     "graphics entry wins over compute entry",
			compute:  []uint32{10},
			graphics: []uint32{10, 20},
			overall:  50,
			want:     map[uint32]float64{10: 25, 20: 25},
		},
		{
			// The driver can report nonzero aggregate utilization with an
			// empty graphics list; nothing may be distributed then.
			name:    "zero graphics processes distribute nothing",
			compute: []uint32{7},
			overall: 93,
			want:    map[uint32]float64{7: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attributeShares(tt.compute, tt.graphics, tt.overall))
		})
	}
}

func TestNullEstimatorIsEmptyNotNil(t *testing.T) {
	usage := nullEstimator{}.Estimate()
	assert.NotNil(t, usage)
	assert.Empty(t, usage)
}

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 0.0, clampPercent(-3))
	assert.Equal(t, 42.5, clampPercent(42.5))
	assert.Equal(t, 100.0, clampPercent(180))
}
