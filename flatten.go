package cfb

import (
	"fmt"
	"sort"
)

// flattener turns a storage tree into the directory entry list of a file.
// entries[0] is the root; payloads[i] holds the bytes of stream entries.
type flattener struct {
	entries  []*DirEntry
	payloads [][]byte
}

type flatChild struct {
	name    string
	storage *Storage
	data    []byte
}

func flatten(root *Storage) ([]*DirEntry, [][]byte, error) {
	if root == nil {
		root = NewStorage()
	}

	rootEntry := NewDirEntry(ROOT_DIR_NAME, ObjRoot, 0)
	rootEntry.CLSID = root.CLSID

	f := &flattener{
		entries:  []*DirEntry{rootEntry},
		payloads: [][]byte{nil},
	}

	if err := f.addChildren(ROOT_STREAM_ID, root, "/"); err != nil {
		return nil, nil, err
	}

	return f.entries, f.payloads, nil
}

func (f *flattener) addChildren(parent uint32, s *Storage, path string) error {
	children := make([]flatChild, 0, len(s.Storages)+len(s.Streams))
	for name, sub := range s.Storages {
		if sub == nil {
			sub = NewStorage()
		}
		children = append(children, flatChild{name: name, storage: sub})
	}
	for name, data := range s.Streams {
		if _, ok := s.Storages[name]; ok {
			return fmt.Errorf("%s%s is both a storage and a stream: %w", path, name, ErrorInvalidName)
		}
		children = append(children, flatChild{name: name, data: data})
	}

	for _, c := range children {
		if err := ValidateName(c.name); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	sort.Slice(children, func(i, j int) bool {
		return CompareNames(children[i].name, children[j].name) == OrderLess
	})

	for i := 1; i < len(children); i++ {
		if CompareNames(children[i-1].name, children[i].name) == OrderEqual {
			return fmt.Errorf("%s holds %q and %q, which differ only in case: %w",
				path, children[i-1].name, children[i].name, ErrorInvalidName)
		}
	}

	if uint64(len(f.entries))+uint64(len(children)) > uint64(MAX_REGULAR_STREAM_ID) {
		return fmt.Errorf("too many directory entries: %w", ErrorCapacity)
	}

	ids := make([]uint32, len(children))
	for i, c := range children {
		ids[i] = uint32(len(f.entries))

		if c.storage != nil {
			entry := NewDirEntry(c.name, ObjStorage, 0)
			entry.CLSID = c.storage.CLSID
			f.entries = append(f.entries, entry)
			f.payloads = append(f.payloads, nil)
		} else {
			f.entries = append(f.entries, NewDirEntry(c.name, ObjStream, 0))
			f.payloads = append(f.payloads, c.data)
		}
	}

	f.entries[parent].Child = buildSiblingTree(f.entries, ids)

	for i, c := range children {
		if c.storage == nil {
			continue
		}
		if err := f.addChildren(ids[i], c.storage, path+c.name+"/"); err != nil {
			return err
		}
	}

	return nil
}

// buildSiblingTree links the sorted ids into a balanced binary search tree
// through their Left/RightSibling pointers and returns the id of its root.
func buildSiblingTree(entries []*DirEntry, ids []uint32) uint32 {
	if len(ids) == 0 {
		return NO_STREAM
	}

	mid := len(ids) / 2
	node := entries[ids[mid]]
	node.LeftSibling = buildSiblingTree(entries, ids[:mid])
	node.RightSibling = buildSiblingTree(entries, ids[mid+1:])
	node.Color = Black

	return ids[mid]
}
