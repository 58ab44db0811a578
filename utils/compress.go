// Package utils holds small helpers shared by the storage layer.
package utils

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// compressedPrefix marks values written by Compress. Values without it are
// returned as-is by Decompress, so flipping compression on or off never
// strands existing cache entries.
const compressedPrefix = "gz:"

// Compress gzips s at BestCompression and returns it base64 encoded with a
// marker prefix, safe to embed in JSON.
func Compress(s string) (string, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := io.WriteString(zw, s); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return compressedPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// IsCompressed reports whether s was produced by Compress.
func IsCompressed(s string) bool {
	return strings.HasPrefix(s, compressedPrefix)
}

// Decompress reverses Compress. Unmarked input is plain and comes back unchanged.
func Decompress(s string) (string, error) {
	if !IsCompressed(s) {
		return s, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, compressedPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("invalid gzip header: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
