package htj2k

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Marker opens every compressed chunk ("HT")
const Marker = 0x4854

const (
	prefixSize  = 6 // marker + payload length
	maxMapItems = 0xFFFF
)

// ChannelMapEntry ties one codestream component to a container channel
type ChannelMapEntry struct {
	FileIndex int
	// RasterLineOffset is the byte offset of the channel inside one packed
	// scanline. It is bookkeeping only and never written to the header.
	RasterLineOffset int
}

// HeaderSize returns the encoded size of a header carrying n map entries
func HeaderSize(n int) int {
	return prefixSize + 2 + 2*n
}

// WriteHeader encodes the chunk header for m at the start of dst and returns
// its length. Nothing is written when dst is too small.
func WriteHeader(dst []byte, m []ChannelMapEntry) (int, error) {
	if len(m) > maxMapItems {
		return 0, fmt.Errorf("%w: %d channels do not fit the header", ErrConsistency, len(m))
	}
	for i, e := range m {
		if e.FileIndex < 0 || e.FileIndex > maxMapItems {
			return 0, fmt.Errorf("%w: component %d maps to channel %d", ErrConsistency, i, e.FileIndex)
		}
	}
	size := HeaderSize(len(m))
	if len(dst) < size {
		return 0, fmt.Errorf("%w: header needs %d bytes, have %d", ErrCapacity, size, len(dst))
	}

	binary.BigEndian.PutUint16(dst[0:], Marker)
	binary.BigEndian.PutUint32(dst[2:], uint32(2+2*len(m)))
	binary.BigEndian.PutUint16(dst[6:], uint16(len(m)))
	for i, e := range m {
		binary.BigEndian.PutUint16(dst[8+2*i:], uint16(e.FileIndex))
	}
	return size, nil
}

// ReadHeader decodes the chunk header at the start of src. It returns the
// number of bytes the header occupies, which is where the codestream begins;
// payload bytes past the channel map are skipped.
func ReadHeader(src []byte) (int, []ChannelMapEntry, error) {
	r := cursor{b: src}
	marker, err := r.u16()
	if err != nil {
		return 0, nil, err
	}
	if marker != Marker {
		return 0, nil, fmt.Errorf("%w: chunk starts with 0x%04X, not an HT header", ErrFormat, marker)
	}
	plen, err := r.u32()
	if err != nil {
		return 0, nil, err
	}
	if plen < 2 {
		return 0, nil, fmt.Errorf("%w: payload length %d has no room for a channel count", ErrFormat, plen)
	}
	if uint64(plen) > uint64(len(src)-prefixSize) {
		return 0, nil, fmt.Errorf("%w: payload of %d bytes in a %d byte chunk", ErrUnderflow, plen, len(src))
	}
	count, err := r.u16()
	if err != nil {
		return 0, nil, err
	}
	if uint64(plen) < 2+2*uint64(count) {
		return 0, nil, fmt.Errorf("%w: payload length %d cannot hold %d channels", ErrFormat, plen, count)
	}

	m := make([]ChannelMapEntry, count)
	for i := range m {
		fi, err := r.u16()
		if err != nil {
			return 0, nil, err
		}
		m[i].FileIndex = int(fi)
	}
	return prefixSize + int(plen), m, nil
}

// cursor reads big-endian integers and fails with ErrUnderflow past the end
type cursor struct {
	b   []byte
	pos int
}

func (c *cursor) u16() (uint16, error) {
	if len(c.b)-c.pos < 2 {
		return 0, fmt.Errorf("%w: need 2 bytes at offset %d of %d", ErrUnderflow, c.pos, len(c.b))
	}
	v := binary.BigEndian.Uint16(c.b[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if len(c.b)-c.pos < 4 {
		return 0, fmt.Errorf("%w: need 4 bytes at offset %d of %d", ErrUnderflow, c.pos, len(c.b))
	}
	v := binary.BigEndian.Uint32(c.b[c.pos:])
	c.pos += 4
	return v, nil
}

// ChunkHeader is a parsed chunk header
type ChunkHeader struct {
	Size       int // bytes before the codestream
	ChannelMap []ChannelMapEntry
}

// MarshalBinary encodes the header
func (h *ChunkHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize(len(h.ChannelMap)))
	n, err := WriteHeader(buf, h.ChannelMap)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// UnmarshalBinary decodes the header at the start of a chunk; bytes after it are ignored
func (h *ChunkHeader) UnmarshalBinary(data []byte) error {
	n, m, err := ReadHeader(data)
	if err != nil {
		return err
	}
	h.Size, h.ChannelMap = n, m
	return nil
}

// String lists the component to channel mapping
func (h ChunkHeader) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "HT header: %d bytes, %d components", h.Size, len(h.ChannelMap))
	for c, e := range h.ChannelMap {
		fmt.Fprintf(&sb, "\n  component %d -> channel %d", c, e.FileIndex)
	}
	return sb.String()
}
