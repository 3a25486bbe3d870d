package exr

import "fmt"

// Header describes one part
type Header struct {
	Name        string
	Channels    []Channel
	DataWindow  Box2i
	Storage     Storage
	Compression Compression

	// ScanlinesPerChunk overrides the chunk height implied by Compression when positive
	ScanlinesPerChunk int
}

// Width of the data window
func (h *Header) Width() int {
	return h.DataWindow.Width()
}

// Height of the data window
func (h *Header) Height() int {
	return h.DataWindow.Height()
}

// LinesPerChunk returns the effective chunk height
func (h *Header) LinesPerChunk() int {
	if h.ScanlinesPerChunk > 0 {
		return h.ScanlinesPerChunk
	}
	return h.Compression.ScanlinesPerChunk()
}

// ChunkCount returns the number of chunks covering the data window
func (h *Header) ChunkCount() int {
	lines := h.LinesPerChunk()
	return (h.Height() + lines - 1) / lines
}

// Validate checks the header is self-consistent
func (h *Header) Validate() error {
	if len(h.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrInvalidHeader)
	}
	if h.Width() <= 0 || h.Height() <= 0 {
		return fmt.Errorf("%w: empty data window %+v", ErrInvalidHeader, h.DataWindow)
	}
	if h.ScanlinesPerChunk < 0 {
		return fmt.Errorf("%w: %d scanlines per chunk", ErrInvalidHeader, h.ScanlinesPerChunk)
	}
	switch h.Storage {
	case Scanline, Tiled:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidHeader, h.Storage)
	}
	switch h.Compression {
	case NoCompression, HTJ2K256, HTJ2K32:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidHeader, h.Compression)
	}

	seen := make(map[string]bool, len(h.Channels))
	for _, ch := range h.Channels {
		if ch.Name == "" {
			return fmt.Errorf("%w: unnamed channel", ErrInvalidHeader)
		}
		if seen[ch.Name] {
			return fmt.Errorf("%w: duplicate channel %q", ErrInvalidHeader, ch.Name)
		}
		seen[ch.Name] = true
		if ch.Type.Size() == 0 {
			return fmt.Errorf("%w: channel %q has %s", ErrInvalidHeader, ch.Name, ch.Type)
		}
		if ch.XSampling < 1 || ch.YSampling < 1 {
			return fmt.Errorf("%w: channel %q sampling %dx%d", ErrInvalidHeader, ch.Name, ch.XSampling, ch.YSampling)
		}
		if mod(h.DataWindow.MinX, ch.XSampling) != 0 || h.Width()%ch.XSampling != 0 ||
			mod(h.DataWindow.MinY, ch.YSampling) != 0 || h.Height()%ch.YSampling != 0 {
			return fmt.Errorf("%w: channel %q sampling does not divide the data window", ErrInvalidHeader, ch.Name)
		}
	}
	return nil
}

// ChannelIndex returns the position of the named channel, or -1
func (h *Header) ChannelIndex(name string) int {
	for i, ch := range h.Channels {
		if ch.Name == name {
			return i
		}
	}
	return -1
}

// sampledRows counts the rows y in [y0, y0+n) that a channel with vertical sampling ys stores
func sampledRows(y0, n, ys int) int {
	count := 0
	for y := y0; y < y0+n; y++ {
		if mod(y, ys) == 0 {
			count++
		}
	}
	return count
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
