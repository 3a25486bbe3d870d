// Package synth generates interleaved baseband buffers for exercising codecs.
package synth

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/jpfielding/exrht.go/pkg/exr"
	"github.com/x448/float16"
)

// Pattern selects the generated image content
type Pattern int

const (
	Gradient Pattern = iota
	Noise
	Checker
	Constant
)

var patternNames = map[Pattern]string{
	Gradient: "gradient",
	Noise:    "noise",
	Checker:  "checker",
	Constant: "constant",
}

// String returns the pattern name
func (p Pattern) String() string {
	if s, ok := patternNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Pattern(%d)", int(p))
}

// ParsePattern maps a name from String back to its pattern
func ParsePattern(s string) (Pattern, error) {
	for p, name := range patternNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown pattern %q", s)
}

// Baseband returns an interleaved buffer for h: every pixel holds each channel
// in order, rows are packed back to back. Only the samples a scanline
// pipeline reads for sampled channels are set, the rest stay zero, so a
// lossless round trip reproduces the buffer exactly.
func Baseband(h exr.Header, p Pattern, seed uint64) ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	width, height := h.Width(), h.Height()
	offsets := make([]int, len(h.Channels))
	stride := 0
	for i, ch := range h.Channels {
		offsets[i] = stride
		stride += ch.Type.Size()
	}
	buf := make([]byte, stride*width*height)
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	lines := h.LinesPerChunk()

	for y := 0; y < height; y++ {
		for c, ch := range h.Channels {
			if !rowCovered(y, lines, height, h.DataWindow.MinY, ch.YSampling) {
				continue
			}
			for x := 0; x < width/ch.XSampling; x++ {
				v := value(p, rng, c, x, y, width, height)
				putSample(buf[(y*width+x)*stride+offsets[c]:], ch.Type, v)
			}
		}
	}
	return buf, nil
}

// rowCovered reports whether baseband row y of a channel is filled: a chunk
// of n rows holding k sampled rows fills its first k rows.
func rowCovered(y, lines, height, minY, ys int) bool {
	start := (y / lines) * lines
	n := min(lines, height-start)
	k := 0
	for r := start; r < start+n; r++ {
		if ((minY+r)%ys+ys)%ys == 0 {
			k++
		}
	}
	return y-start < k
}

func value(p Pattern, rng *rand.Rand, c, x, y, width, height int) float64 {
	switch p {
	case Noise:
		return rng.Float64()*4 - 2
	case Checker:
		if (x/8+y/8)%2 == 0 {
			return 1
		}
		return -0.25
	case Constant:
		return 0.5 + 0.125*float64(c)
	default:
		return float64(x)/float64(width) + float64(y)/float64(height) + 0.1*float64(c)
	}
}

func putSample(dst []byte, t exr.PixelType, v float64) {
	switch t {
	case exr.Half:
		binary.LittleEndian.PutUint16(dst, float16.Fromfloat32(float32(v)).Bits())
	case exr.Float:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	case exr.Uint:
		binary.LittleEndian.PutUint32(dst, uint32(math.Abs(v)*65535))
	}
}

// HalfAt decodes the half sample at byte offset off of buf
func HalfAt(buf []byte, off int) float32 {
	return float16.Frombits(binary.LittleEndian.Uint16(buf[off:])).Float32()
}
