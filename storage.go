package cfb

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Storage is an in-memory storage object: named sub-storages and named
// streams. It is what Decode produces and Encode consumes.
type Storage struct {
	CLSID    uuid.UUID
	Storages map[string]*Storage
	Streams  map[string][]byte
}

func NewStorage() *Storage {
	return &Storage{
		Storages: make(map[string]*Storage),
		Streams:  make(map[string][]byte),
	}
}

func (s *Storage) has(name string) bool {
	_, isStorage := s.Storages[name]
	_, isStream := s.Streams[name]
	return isStorage || isStream
}

// AddStorage creates an empty sub-storage, or returns the existing one.
func (s *Storage) AddStorage(name string) (*Storage, error) {
	if sub, ok := s.Storages[name]; ok {
		return sub, nil
	}
	if _, ok := s.Streams[name]; ok {
		return nil, fmt.Errorf("%q is already a stream: %w", name, ErrorInvalidName)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	if s.Storages == nil {
		s.Storages = make(map[string]*Storage)
	}
	sub := NewStorage()
	s.Storages[name] = sub
	return sub, nil
}

// AddStream sets the contents of a stream, replacing any previous contents.
func (s *Storage) AddStream(name string, data []byte) error {
	if _, ok := s.Storages[name]; ok {
		return fmt.Errorf("%q is already a storage: %w", name, ErrorInvalidName)
	}
	if err := ValidateName(name); err != nil {
		return err
	}

	if s.Streams == nil {
		s.Streams = make(map[string][]byte)
	}
	s.Streams[name] = data
	return nil
}

// Lookup resolves a slash-separated path to a storage or a stream. Exactly
// one of the results is non-nil on success.
func (s *Storage) Lookup(path string) (*Storage, []byte, error) {
	names := NameChainFromPath(path)
	current := s
	for i, name := range names {
		if sub, ok := current.Storages[name]; ok {
			current = sub
			continue
		}
		if data, ok := current.Streams[name]; ok && i == len(names)-1 {
			return nil, data, nil
		}
		return nil, nil, fmt.Errorf("%v: %w", path, ErrorNotFound)
	}
	return current, nil, nil
}

// Walk calls fn for every storage and stream below s, depth first in name
// order. data is nil for storages.
func (s *Storage) Walk(fn func(names []string, storage *Storage, data []byte) error) error {
	return s.walk(nil, fn)
}

func (s *Storage) walk(names []string, fn func([]string, *Storage, []byte) error) error {
	for _, name := range sortedKeys(s.Storages) {
		chain := append(names[:len(names):len(names)], name)
		sub := s.Storages[name]
		if err := fn(chain, sub, nil); err != nil {
			return err
		}
		if err := sub.walk(chain, fn); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(s.Streams) {
		chain := append(names[:len(names):len(names)], name)
		if err := fn(chain, nil, s.Streams[name]); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether two trees hold the same names, CLSIDs and bytes.
// Nil and empty streams are equal.
func (s *Storage) Equal(other *Storage) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.CLSID != other.CLSID || len(s.Storages) != len(other.Storages) || len(s.Streams) != len(other.Streams) {
		return false
	}
	for name, sub := range s.Storages {
		if !sub.Equal(other.Storages[name]) {
			return false
		}
	}
	for name, data := range s.Streams {
		otherData, ok := other.Streams[name]
		if !ok || !bytes.Equal(data, otherData) {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
