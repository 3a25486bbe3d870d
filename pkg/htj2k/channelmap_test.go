package htj2k

import (
	"testing"

	"github.com/jpfielding/exrht.go/pkg/exr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(names ...string) []exr.Channel {
	chans := make([]exr.Channel, len(names))
	for i, n := range names {
		chans[i] = exr.NewChannel(n, exr.Half)
	}
	return chans
}

func indices(m []ChannelMapEntry) []int {
	out := make([]int, len(m))
	for i, e := range m {
		out[i] = e.FileIndex
	}
	return out
}

func TestBuildChannelMap(t *testing.T) {
	tests := []struct {
		name  string
		chans []string
		want  []int
		rgb   bool
	}{
		{"bgra", []string{"B", "G", "R", "A"}, []int{2, 1, 0, 3}, true},
		{"rgb", []string{"R", "G", "B"}, []int{0, 1, 2}, true},
		{"rgb last", []string{"A", "Z", "B", "G", "R"}, []int{4, 3, 2, 0, 1}, true},
		{"no red", []string{"B", "G", "X", "A"}, []int{0, 1, 2, 3}, false},
		{"lowercase", []string{"r", "g", "b"}, []int{0, 1, 2}, false},
		{"prefixed", []string{"diffuse.R", "diffuse.G", "diffuse.B"}, []int{0, 1, 2}, false},
		{"single", []string{"Y"}, []int{0}, false},
		{"empty", nil, []int{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rgb, err := BuildChannelMap(named(tt.chans...), len(tt.chans))
			require.NoError(t, err)
			assert.Equal(t, tt.want, indices(m))
			assert.Equal(t, tt.rgb, rgb)
			assert.NoError(t, ValidateChannelMap(m, len(tt.chans)))
			assert.Equal(t, tt.rgb, IsRGBOrder(m, named(tt.chans...)))
		})
	}
}

func TestBuildChannelMap_FirstOccurrence(t *testing.T) {
	// duplicate names cannot come from a valid header but the map still covers every channel
	m, rgb, err := BuildChannelMap(named("R", "R", "G", "B"), 4)
	require.NoError(t, err)
	assert.True(t, rgb)
	assert.Equal(t, []int{0, 2, 3, 1}, indices(m))
}

func TestBuildChannelMap_CountMismatch(t *testing.T) {
	_, _, err := BuildChannelMap(named("R", "G", "B"), 4)
	assert.ErrorIs(t, err, ErrConsistency)
}

func TestValidateChannelMap(t *testing.T) {
	ok := []ChannelMapEntry{{FileIndex: 1}, {FileIndex: 0}}
	assert.NoError(t, ValidateChannelMap(ok, 2))

	assert.ErrorIs(t, ValidateChannelMap(ok, 3), ErrConsistency)
	assert.ErrorIs(t, ValidateChannelMap([]ChannelMapEntry{{FileIndex: 0}, {FileIndex: 0}}, 2), ErrConsistency)
	assert.ErrorIs(t, ValidateChannelMap([]ChannelMapEntry{{FileIndex: 0}, {FileIndex: 2}}, 2), ErrConsistency)
}

func TestIsRGBOrder_Short(t *testing.T) {
	assert.False(t, IsRGBOrder([]ChannelMapEntry{{FileIndex: 0}}, named("R")))
	assert.False(t, IsRGBOrder([]ChannelMapEntry{{FileIndex: 0}, {FileIndex: 1}, {FileIndex: 5}}, named("R", "G", "B")))
}
