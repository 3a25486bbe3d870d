package jpeg2k

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignMagnitudeNLT_Involution(t *testing.T) {
	tests := []struct {
		name      string
		precision int
		values    []int
	}{
		{"16 bit", 16, []int{0, 1, -1, 32767, -32768, -15360, 15360}},
		{"32 bit", 32, []int{0, -1, 1 << 30, -(1 << 31), 1<<31 - 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]int(nil), tt.values...)
			SignMagnitudeNLT(data, tt.precision)
			SignMagnitudeNLT(data, tt.precision)
			assert.Equal(t, tt.values, data)
		})
	}
}

func TestSignMagnitudeNLT_Monotonic(t *testing.T) {
	// -0.0, -1.0 and -2.0 as binary16 bit patterns
	data := []int{int(int16(-0x8000)), int(int16(-0x4400)), int(int16(-0x4000))}
	SignMagnitudeNLT(data, 16)

	assert.Greater(t, data[0], data[1], "-0.0 above -1.0")
	assert.Greater(t, data[1], data[2], "-1.0 above -2.0")
	assert.Equal(t, -1, data[0])
}

func TestApplyNLT(t *testing.T) {
	planes := [][]int{{-1, 2}, {3, -4}}
	require.NoError(t, ApplyNLT(planes, 16, NLTNone))
	assert.Equal(t, [][]int{{-1, 2}, {3, -4}}, planes)

	require.NoError(t, ApplyNLT(planes, 16, NLTSignMagnitude))
	assert.Equal(t, [][]int{{-1 ^ 0x7FFF, 2}, {3, -4 ^ 0x7FFF}}, planes)

	assert.ErrorIs(t, ApplyNLT(planes, 16, NLTGamma), ErrUnsupportedCodec)
}
