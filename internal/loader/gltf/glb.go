package gltf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// GLB container constants, all little-endian ASCII.
const (
	glbMagic     = 0x46546C67 // "glTF"
	glbVersion   = 2
	glbChunkJSON = 0x4E4F534A // "JSON"
	glbChunkBIN  = 0x004E4942 // "BIN\0"
)

var errNotGLB = errors.New("not a GLB container")

// isGLB reports whether data starts with the GLB magic.
func isGLB(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == glbMagic
}

// readGLB splits a GLB container into its JSON chunk and optional BIN chunk.
func readGLB(data []byte) (jsonChunk, binChunk []byte, err error) {
	if len(data) < 12 {
		return nil, nil, fmt.Errorf("glb header needs 12 bytes, have %d", len(data))
	}
	if !isGLB(data) {
		return nil, nil, errNotGLB
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != glbVersion {
		return nil, nil, fmt.Errorf("unsupported glb version %d", version)
	}
	total := int(binary.LittleEndian.Uint32(data[8:12]))
	if total > len(data) {
		return nil, nil, fmt.Errorf("glb declares %d bytes, have %d", total, len(data))
	}

	offset := 12
	for offset < total {
		if total-offset < 8 {
			return nil, nil, fmt.Errorf("truncated chunk header at offset %d", offset)
		}
		length := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		chunkType := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		offset += 8
		if offset+length > total {
			return nil, nil, fmt.Errorf("chunk at offset %d spans past end", offset-8)
		}

		switch chunkType {
		case glbChunkJSON:
			jsonChunk = data[offset : offset+length]
		case glbChunkBIN:
			binChunk = data[offset : offset+length]
		default:
			// Unknown chunks are skipped per the container spec.
		}
		offset += length
	}

	if jsonChunk == nil {
		return nil, nil, errors.New("glb has no JSON chunk")
	}
	return jsonChunk, binChunk, nil
}
