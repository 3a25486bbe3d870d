// Package exr models the parts of a scanline image container that chunk
// codecs interact with: channel lists, data windows, chunk geometry and the
// init/update/run encode and decode pipelines that pack pixels into chunks.
// Files live in memory; there is no on-disk reader or writer.
package exr

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrInvalidHeader = errors.New("invalid part header")
	ErrArgument      = errors.New("invalid argument")
	ErrMissingChunk  = errors.New("chunk not written")
	ErrPipeline      = errors.New("pipeline misuse")
	ErrCorruptChunk  = errors.New("corrupt chunk")
)

// PixelType identifies the sample type of a channel
type PixelType int

const (
	Uint  PixelType = 0 // 32-bit unsigned integer
	Half  PixelType = 1 // 16-bit float
	Float PixelType = 2 // 32-bit float
)

// Size returns the bytes per sample, or 0 for an unknown type
func (t PixelType) Size() int {
	switch t {
	case Half:
		return 2
	case Uint, Float:
		return 4
	default:
		return 0
	}
}

// String returns the pixel type name
func (t PixelType) String() string {
	switch t {
	case Uint:
		return "uint"
	case Half:
		return "half"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("PixelType(%d)", int(t))
	}
}

// ParsePixelType maps a name from String back to its type
func ParsePixelType(s string) (PixelType, error) {
	switch s {
	case "uint":
		return Uint, nil
	case "half":
		return Half, nil
	case "float":
		return Float, nil
	default:
		return 0, fmt.Errorf("%w: pixel type %q", ErrArgument, s)
	}
}

// Channel describes one named channel of a part
type Channel struct {
	Name      string
	Type      PixelType
	XSampling int
	YSampling int
}

// NewChannel returns a full resolution channel
func NewChannel(name string, t PixelType) Channel {
	return Channel{Name: name, Type: t, XSampling: 1, YSampling: 1}
}

// Box2i is an inclusive integer rectangle
type Box2i struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Width of the box
func (b Box2i) Width() int {
	return b.MaxX - b.MinX + 1
}

// Height of the box
func (b Box2i) Height() int {
	return b.MaxY - b.MinY + 1
}

// Storage identifies how a part lays out its chunks
type Storage int

const (
	Scanline Storage = iota
	Tiled
)

// String returns the storage name
func (s Storage) String() string {
	switch s {
	case Scanline:
		return "scanline"
	case Tiled:
		return "tiled"
	default:
		return fmt.Sprintf("Storage(%d)", int(s))
	}
}

// Compression identifies the chunk codec of a part
type Compression int

const (
	NoCompression Compression = iota
	HTJ2K256
	HTJ2K32
)

// ScanlinesPerChunk returns the chunk height the compression implies
func (c Compression) ScanlinesPerChunk() int {
	switch c {
	case HTJ2K256:
		return 256
	case HTJ2K32:
		return 32
	default:
		return 1
	}
}

// BlockSize returns the code-block edge the compression prefers, 0 when it has no preference
func (c Compression) BlockSize() int {
	switch c {
	case HTJ2K256:
		return 128
	case HTJ2K32:
		return 32
	default:
		return 0
	}
}

// String returns the compression name
func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case HTJ2K256:
		return "htj2k256"
	case HTJ2K32:
		return "htj2k32"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// ParseCompression maps a name from String back to its compression
func ParseCompression(s string) (Compression, error) {
	for _, c := range []Compression{NoCompression, HTJ2K256, HTJ2K32} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: compression %q", ErrArgument, s)
}
