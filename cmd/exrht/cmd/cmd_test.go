package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpfielding/exrht.go/pkg/htj2k"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() roundTripOptions {
	return roundTripOptions{
		Channels:    []string{"B", "G", "R", "A"},
		PixelType:   "half",
		Width:       32,
		Height:      16,
		Compression: "htj2k32",
		Lines:       8,
		Pattern:     "constant",
		Seed:        1,
		Parts:       2,
		Levels:      htj2k.DefaultConfig().Levels,
		DumpChunk:   -1,
	}
}

func TestRunRoundTrip(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runRoundTrip(t.Context(), &out, defaults()))
	assert.Contains(t, out.String(), "part 0: chunks=2 raw=0")
	assert.Contains(t, out.String(), "part 1: chunks=2 raw=0")
}

func TestRunRoundTrip_BadOptions(t *testing.T) {
	o := defaults()
	o.PixelType = "double"
	assert.Error(t, runRoundTrip(t.Context(), &bytes.Buffer{}, o))

	o = defaults()
	o.Pattern = "plaid"
	assert.Error(t, runRoundTrip(t.Context(), &bytes.Buffer{}, o))

	o = defaults()
	o.DumpChunk = 0
	assert.Error(t, runRoundTrip(t.Context(), &bytes.Buffer{}, o))

	o = defaults()
	o.Compression = "piz"
	assert.Error(t, runRoundTrip(t.Context(), &bytes.Buffer{}, o))
}

func TestDumpAndInspectChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunk.bin")
	o := defaults()
	o.DumpChunk = 1
	o.Out = path
	require.NoError(t, runRoundTrip(t.Context(), &bytes.Buffer{}, o))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rep, err := inspectChunk(data)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0, 3}, rep.ChannelMap)
	assert.Equal(t, 32, rep.Width)
	assert.Equal(t, 8, rep.Height)
	assert.Equal(t, 16, rep.Precision)
	assert.True(t, rep.MCT)
	assert.True(t, rep.HT)
	assert.Equal(t, "smag", rep.NLT)
	assert.Equal(t, "32x32", rep.CodeBlock)

	var text bytes.Buffer
	require.NoError(t, writeReport(&text, rep, "text"))
	assert.Contains(t, text.String(), "component 0 -> channel 2")
	assert.Contains(t, text.String(), "mct=true")

	var js bytes.Buffer
	require.NoError(t, writeReport(&js, rep, "json"))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, float64(4), decoded["components"])

	assert.Error(t, writeReport(&bytes.Buffer{}, rep, "yaml"))
}

func TestInspectChunk_NotHT(t *testing.T) {
	_, err := inspectChunk([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	assert.ErrorIs(t, err, htj2k.ErrFormat)
}

func TestRoot_Version(t *testing.T) {
	root := NewRoot(t.Context(), "abc123")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--log-level", "debug"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "abc123\n", out.String())
}

func TestRoot_HeaderCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunk.bin")
	o := defaults()
	o.DumpChunk = 0
	o.Out = path
	o.Parts = 1
	require.NoError(t, runRoundTrip(t.Context(), &bytes.Buffer{}, o))

	root := NewRoot(t.Context(), "test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"header", path, "--format", "json"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"channel_map":[2,1,0,3]`)
}
