// Package codec provides the text compression applied to cached values.
package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// ErrCorrupt is returned when encoded text cannot be decoded.
var ErrCorrupt = errors.New("codec: corrupt input")

// Gzip compresses text with gzip and encodes the result as standard base64
// so it can live in text-only stores.
type Gzip struct {
	level int
}

// NewGzip returns a Gzip codec using the default compression level.
func NewGzip() *Gzip {
	return &Gzip{level: gzip.DefaultCompression}
}

// Compress returns "" for empty input without invoking the compressor.
func (g *Gzip) Compress(text string) (string, error) {
	if text == "" {
		return "", nil
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return "", fmt.Errorf("codec: new writer: %w", err)
	}
	if _, err := io.WriteString(zw, text); err != nil {
		return "", fmt.Errorf("codec: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("codec: compress: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decompress reverses Compress. Empty input yields empty output.
func (g *Gzip) Decompress(text string) (string, error) {
	if text == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrCorrupt, err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: gzip header: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("%w: gzip body: %v", ErrCorrupt, err)
	}
	return string(out), nil
}
