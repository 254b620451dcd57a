// Package xkt decodes the XKT binary model container: a little-endian
// uint32 format version, a uint32 element count, a table of per-element
// byte lengths, then the concatenated element blobs. Every blob is
// zlib-deflated. The element layout varies by version; parse_v*.go hold the
// version-specific parsers and xkt.go dispatches between them.
package xkt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
)

var (
	// ErrTruncated is returned when the buffer ends inside the header,
	// length table, or an element blob.
	ErrTruncated = errors.New("xkt: truncated container")
	// ErrUnsupportedVersion is returned for versions with no parser.
	ErrUnsupportedVersion = errors.New("xkt: unsupported container version")
)

// container is a decoded XKT file before version-specific parsing.
type container struct {
	version  uint32
	elements []element
}

// element is one inflated element blob.
type element []byte

// readContainer splits data into its inflated elements.
func readContainer(data []byte) (*container, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	version := binary.LittleEndian.Uint32(data[0:4])
	count := binary.LittleEndian.Uint32(data[4:8])

	tableEnd := 8 + int(count)*4
	if tableEnd < 8 || tableEnd > len(data) {
		return nil, fmt.Errorf("%w: length table needs %d bytes, have %d", ErrTruncated, tableEnd, len(data))
	}

	c := &container{
		version:  version,
		elements: make([]element, count),
	}

	offset := tableEnd
	for i := 0; i < int(count); i++ {
		length := int(binary.LittleEndian.Uint32(data[8+i*4 : 12+i*4]))
		if offset+length > len(data) {
			return nil, fmt.Errorf("%w: element %d spans past end", ErrTruncated, i)
		}
		inflated, err := inflate(data[offset : offset+length])
		if err != nil {
			return nil, fmt.Errorf("xkt: element %d: %w", i, err)
		}
		c.elements[i] = inflated
		offset += length
	}

	return c, nil
}

func inflate(deflated []byte) ([]byte, error) {
	if len(deflated) == 0 {
		return nil, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(deflated))
	if err != nil {
		return nil, fmt.Errorf("error opening zlib stream: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error inflating element: %w", err)
	}
	return out, nil
}

// Typed views over element blobs. Each checks alignment and copies out of
// the inflated buffer.

func (e element) uint8s() []uint8 {
	return append([]uint8(nil), e...)
}

func (e element) uint16s() ([]uint16, error) {
	if len(e)%2 != 0 {
		return nil, fmt.Errorf("element length %d not aligned for uint16", len(e))
	}
	out := make([]uint16, len(e)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(e[i*2:])
	}
	return out, nil
}

func (e element) uint32s() ([]uint32, error) {
	if len(e)%4 != 0 {
		return nil, fmt.Errorf("element length %d not aligned for uint32", len(e))
	}
	out := make([]uint32, len(e)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(e[i*4:])
	}
	return out, nil
}

func (e element) float32s() ([]float32, error) {
	if len(e)%4 != 0 {
		return nil, fmt.Errorf("element length %d not aligned for float32", len(e))
	}
	out := make([]float32, len(e)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(e[i*4:]))
	}
	return out, nil
}

func (e element) float64s() ([]float64, error) {
	if len(e)%8 != 0 {
		return nil, fmt.Errorf("element length %d not aligned for float64", len(e))
	}
	out := make([]float64, len(e)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(e[i*8:]))
	}
	return out, nil
}
