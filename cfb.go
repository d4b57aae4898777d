// Package cfb reads and writes Compound File Binary (CFB) containers: the
// sector-addressed format that stores a hierarchy of storages and streams
// inside one file, used by legacy binary office documents and by objects
// embedded in newer packages.
//
// Decode and Encode convert between raw bytes and a Storage tree. Open gives
// lower-level access to the directory and lazily read streams. Every call
// keeps its state to itself, so independent files may be processed
// concurrently.
package cfb

import (
	"go.uber.org/zap"
)

// IsCFB reports whether data starts with the compound file signature. It
// does not validate anything else.
func IsCFB(data []byte) bool {
	return HasMagic(data)
}

// Decode parses a compound file and returns its storage tree with all stream
// bytes read.
func Decode(data []byte, opts ...Option) (*Storage, error) {
	file, err := Open(data, opts...)
	if err != nil {
		return nil, err
	}
	return file.Tree()
}

// Encode serializes a storage tree into a compound file.
func Encode(root *Storage, opts ...Option) ([]byte, error) {
	o := newOptions(opts)

	data, err := encode(root, o)
	if err != nil {
		return nil, err
	}

	o.log.Debug("encoded compound file", zap.Int("bytes", len(data)), zap.Int("version", int(o.version)))
	return data, nil
}
