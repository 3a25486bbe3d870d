package jpeg2k

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTile_RoundTrip(t *testing.T) {
	width, height := 20, 12
	planes := make([][]int, 3)
	original := make([][]int, 3)
	for c := range planes {
		planes[c] = make([]int, width*height)
		for i := range planes[c] {
			planes[c][i] = (i*31+c*7)%65536 - 32768
		}
		original[c] = append([]int(nil), planes[c]...)
	}

	te := NewTileEncoder(width, height, 5, 16, true, NLTSignMagnitude)
	body, err := te.EncodeTile(planes)
	require.NoError(t, err)

	td := NewTileDecoder(width, height, 5, 16, true, NLTSignMagnitude)
	got, err := td.DecodeTile(body, 3)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestTile_WrongPlaneSize(t *testing.T) {
	te := NewTileEncoder(4, 4, 1, 16, false, NLTNone)
	_, err := te.EncodeTile([][]int{make([]int, 15)})
	assert.ErrorIs(t, err, ErrTileData)
}

func TestTile_ComponentCountMismatch(t *testing.T) {
	te := NewTileEncoder(4, 4, 1, 16, false, NLTNone)
	body, err := te.EncodeTile([][]int{make([]int, 16), make([]int, 16)})
	require.NoError(t, err)

	td := NewTileDecoder(4, 4, 1, 16, false, NLTNone)
	_, err = td.DecodeTile(body, 3)
	assert.ErrorIs(t, err, ErrTileData, "too few coefficients")

	_, err = td.DecodeTile(body, 1)
	assert.ErrorIs(t, err, ErrTileData, "trailing coefficients")
}

func TestTile_Garbage(t *testing.T) {
	td := NewTileDecoder(4, 4, 1, 16, false, NLTNone)
	_, err := td.DecodeTile([]byte("not zstd at all"), 1)
	assert.ErrorIs(t, err, ErrTileData)
}

func TestTile_BodyLargerThanTile(t *testing.T) {
	enc := mustNewZstdEncoder()
	body := enc.EncodeAll(make([]byte, 1<<20), nil)
	require.Less(t, len(body), 1<<12)

	td := NewTileDecoder(4, 4, 2, 16, false, NLTNone)
	_, err := td.DecodeTile(body, 1)
	assert.ErrorIs(t, err, ErrTileData)
	assert.ErrorContains(t, err, "inflates past")
}
