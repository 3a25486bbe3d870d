package synth

import (
	"testing"

	"github.com/jpfielding/exrht.go/pkg/exr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(chans ...exr.Channel) exr.Header {
	return exr.Header{
		Channels:          chans,
		DataWindow:        exr.Box2i{MaxX: 15, MaxY: 7},
		Compression:       exr.HTJ2K32,
		ScanlinesPerChunk: 4,
	}
}

func TestBaseband_Size(t *testing.T) {
	h := header(exr.NewChannel("A", exr.Half), exr.NewChannel("Z", exr.Float))
	buf, err := Baseband(h, Gradient, 1)
	require.NoError(t, err)
	assert.Len(t, buf, (2+4)*16*8)
}

func TestBaseband_Deterministic(t *testing.T) {
	h := header(exr.NewChannel("R", exr.Half))
	a, err := Baseband(h, Noise, 7)
	require.NoError(t, err)
	b, err := Baseband(h, Noise, 7)
	require.NoError(t, err)
	c, err := Baseband(h, Noise, 8)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestBaseband_HalfValues(t *testing.T) {
	h := header(exr.NewChannel("Y", exr.Half))
	buf, err := Baseband(h, Constant, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), HalfAt(buf, 0))
	assert.Equal(t, float32(0.5), HalfAt(buf, len(buf)-2))
}

func TestBaseband_SampledChannelRows(t *testing.T) {
	ch := exr.NewChannel("C", exr.Half)
	ch.YSampling = 2
	h := header(ch)
	h.ScanlinesPerChunk = 1
	buf, err := Baseband(h, Constant, 0)
	require.NoError(t, err)

	// one row chunks: odd rows hold none of the channel
	assert.Equal(t, float32(0.5), HalfAt(buf, 0))
	assert.Equal(t, float32(0), HalfAt(buf, 16*2))
}

func TestParsePattern(t *testing.T) {
	for _, p := range []Pattern{Gradient, Noise, Checker, Constant} {
		got, err := ParsePattern(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePattern("plaid")
	assert.Error(t, err)
}

func TestBaseband_InvalidHeader(t *testing.T) {
	_, err := Baseband(exr.Header{}, Gradient, 0)
	assert.ErrorIs(t, err, exr.ErrInvalidHeader)
}
