package gltf

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const dataURIPrefix = "data:"

// resolveBuffers fills in the binary content of every buffer: data URIs are
// decoded inline, an empty URI takes the GLB BIN chunk, anything else is read
// relative to baseDir. A .gltf loaded from memory cannot reach external
// buffers and fails here.
func resolveBuffers(doc *document, baseDir string, binChunk []byte) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]
		switch {
		case buf.URI == "":
			if binChunk == nil {
				return fmt.Errorf("buffer %d has no uri and no BIN chunk", i)
			}
			buf.data = binChunk

		case strings.HasPrefix(buf.URI, dataURIPrefix):
			data, err := decodeDataURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.data = data

		default:
			if baseDir == "" {
				return fmt.Errorf("buffer %d references external file %q but no base path is known", i, buf.URI)
			}
			data, err := os.ReadFile(filepath.Join(baseDir, filepath.FromSlash(buf.URI)))
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.data = data
		}

		if len(buf.data) < buf.ByteLength {
			return fmt.Errorf("buffer %d holds %d bytes, declares %d", i, len(buf.data), buf.ByteLength)
		}
	}
	return nil
}

func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data uri")
	}
	header := uri[len(dataURIPrefix):comma]
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("data uri is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("error decoding data uri: %w", err)
	}
	return data, nil
}
