package htj2k

import (
	"fmt"

	"github.com/jpfielding/exrht.go/pkg/exr"
)

// BuildChannelMap orders container channels into codestream components.
// When channels named exactly "R", "G" and "B" are all present they become
// components 0, 1 and 2, followed by the remaining channels in container
// order, and the map is reported as RGB so the color transform can run.
// Otherwise components follow container order.
func BuildChannelMap(channels []exr.Channel, components int) ([]ChannelMapEntry, bool, error) {
	if len(channels) != components {
		return nil, false, fmt.Errorf("%w: %d channels for %d components", ErrConsistency, len(channels), components)
	}

	r, g, b := -1, -1, -1
	for i, ch := range channels {
		switch {
		case ch.Name == "R" && r < 0:
			r = i
		case ch.Name == "G" && g < 0:
			g = i
		case ch.Name == "B" && b < 0:
			b = i
		}
	}

	m := make([]ChannelMapEntry, 0, len(channels))
	isRGB := r >= 0 && g >= 0 && b >= 0
	if isRGB {
		m = append(m, ChannelMapEntry{FileIndex: r}, ChannelMapEntry{FileIndex: g}, ChannelMapEntry{FileIndex: b})
	}
	for i := range channels {
		if isRGB && (i == r || i == g || i == b) {
			continue
		}
		m = append(m, ChannelMapEntry{FileIndex: i})
	}
	return m, isRGB, nil
}

// ValidateChannelMap checks that m uses every one of numChannels channels exactly once
func ValidateChannelMap(m []ChannelMapEntry, numChannels int) error {
	if len(m) != numChannels {
		return fmt.Errorf("%w: header maps %d components, part has %d channels", ErrConsistency, len(m), numChannels)
	}
	seen := make([]bool, numChannels)
	for c, e := range m {
		if e.FileIndex < 0 || e.FileIndex >= numChannels {
			return fmt.Errorf("%w: component %d maps to channel %d of %d", ErrConsistency, c, e.FileIndex, numChannels)
		}
		if seen[e.FileIndex] {
			return fmt.Errorf("%w: channel %d mapped twice", ErrConsistency, e.FileIndex)
		}
		seen[e.FileIndex] = true
	}
	return nil
}

// IsRGBOrder reports whether m leads with the R, G and B channels of channels
func IsRGBOrder(m []ChannelMapEntry, channels []exr.Channel) bool {
	if len(m) < 3 {
		return false
	}
	for c, name := range []string{"R", "G", "B"} {
		fi := m[c].FileIndex
		if fi < 0 || fi >= len(channels) || channels[fi].Name != name {
			return false
		}
	}
	return true
}
