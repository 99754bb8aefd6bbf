// Package codec holds the reversible transform applied to long message
// content before it is stored.
package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"
)

// Codec compresses content above Threshold characters.
type Codec struct {
	Threshold int
}

func New(threshold int) *Codec {
	return &Codec{Threshold: threshold}
}

// Encode returns the stored form of content and whether it was compressed.
func (c *Codec) Encode(content string) (string, bool, error) {
	if utf8.RuneCountInString(content) <= c.Threshold {
		return content, false, nil
	}
	compressed, err := Compress(content)
	if err != nil {
		return "", false, err
	}
	return compressed, true, nil
}

// Decode reverses Encode.
func (c *Codec) Decode(stored string, compressed bool) (string, error) {
	if !compressed {
		return stored, nil
	}
	return Decompress(stored)
}

// Compress deflates s with a zlib wrapper and base64 encodes the result.
func Compress(s string) (string, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decompress reverses Compress.
func Decompress(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decompress: %w", err)
	}
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decompress: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decompress: %w", err)
	}
	return string(out), nil
}
