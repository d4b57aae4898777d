package cfb

import (
	"fmt"

	"go.uber.org/zap"
)

type Directory struct {
	DirEntries     []*DirEntry
	DirStartSector uint32
	Validation     Validation

	log *zap.Logger
}

// visitState marks directory entries during a traversal. Meeting an entry
// that is still being visited is a cycle; meeting one that is done means two
// pointers share it.
type visitState uint8

const (
	unvisited visitState = iota
	visiting
	visited
)

func NewDirectory(dirEntries []*DirEntry, dirStartSector uint32, validation Validation, log *zap.Logger) (*Directory, error) {
	dir := Directory{
		DirEntries:     dirEntries,
		DirStartSector: dirStartSector,
		Validation:     validation,
		log:            log,
	}

	err := dir.Validate()
	if err != nil {
		return nil, err
	}

	return &dir, nil
}

// loadDirectory reads every directory record along the regular FAT chain
// that starts at the header's first directory sector.
func loadDirectory(header *Header, alloc *Allocator, validation Validation, log *zap.Logger) (*Directory, error) {
	chain, err := alloc.OpenChain(header.FirstDirSector, 0)
	if err != nil {
		return nil, fmt.Errorf("directory chain: %w", err)
	}
	if chain.NumSectors() == 0 {
		return nil, fmt.Errorf("directory chain is empty: %w", ErrorInvalidCFB)
	}

	if header.Version == V4 && header.NumDirSectors != chain.NumSectors() {
		if validation.IsStrict() {
			return nil, fmt.Errorf("incorrect number of directory sectors (header says %v, FAT says %v): %w",
				header.NumDirSectors, chain.NumSectors(), ErrorInvalidCFB)
		}
		log.Warn("directory sector count differs from header",
			zap.Uint32("header", header.NumDirSectors), zap.Uint32("fat", chain.NumSectors()))
	}

	raw, err := readChain(chain, chain.Len())
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}

	dirEntries := make([]*DirEntry, 0, len(raw)/DIR_ENTRY_LEN)
	for off := 0; off+DIR_ENTRY_LEN <= len(raw); off += DIR_ENTRY_LEN {
		entry, err := ReadDirEntry(raw[off:off+DIR_ENTRY_LEN], header.Version, validation, log)
		if err != nil {
			return nil, fmt.Errorf("directory entry %v: %w", len(dirEntries), err)
		}
		dirEntries = append(dirEntries, entry)
	}

	return NewDirectory(dirEntries, header.FirstDirSector, validation, log)
}

func (d *Directory) RootDirEntry() *DirEntry {
	return d.DirEntries[ROOT_STREAM_ID]
}

// Validate checks the root entry and walks the whole tree once, so later
// traversals and lookups can not loop.
func (d *Directory) Validate() error {
	if len(d.DirEntries) == 0 {
		return fmt.Errorf("directory has no entries: %w", ErrorCorruptTree)
	}

	rootDirEntry := d.RootDirEntry()
	if rootDirEntry.ObjType != ObjRoot {
		return fmt.Errorf("root entry has object type %v: %w", rootDirEntry.ObjType, ErrorCorruptTree)
	}

	return d.Walk(func(uint32, uint32, []string) error { return nil })
}

// WalkFunc is called for every entry below the root with the id of its
// parent storage, its own id and its name chain.
type WalkFunc func(parent, id uint32, names []string) error

// Walk visits every entry reachable from the root, depth first, with the
// children of each storage in sibling-tree order.
func (d *Directory) Walk(fn WalkFunc) error {
	marks := make([]visitState, len(d.DirEntries))
	marks[ROOT_STREAM_ID] = visiting

	err := d.walkStorage(ROOT_STREAM_ID, nil, marks, fn)
	if err != nil {
		return err
	}

	marks[ROOT_STREAM_ID] = visited
	return nil
}

func (d *Directory) walkStorage(parent uint32, names []string, marks []visitState, fn WalkFunc) error {
	children, err := d.children(parent, marks)
	if err != nil {
		return err
	}

	for _, id := range children {
		entry := d.DirEntries[id]
		chain := append(names[:len(names):len(names)], entry.Name)

		if err := fn(parent, id, chain); err != nil {
			return err
		}

		if entry.ObjType == ObjStorage {
			if err := d.walkStorage(id, chain, marks, fn); err != nil {
				return err
			}
		}
	}

	return nil
}

// children returns the ids of a storage's children by in-order traversal of
// the sibling tree hanging off its Child pointer.
func (d *Directory) children(parent uint32, marks []visitState) ([]uint32, error) {
	ids := make([]uint32, 0)
	err := d.collectSiblings(parent, d.DirEntries[parent].Child, marks, &ids)
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(ids); i++ {
		prev, next := d.DirEntries[ids[i-1]], d.DirEntries[ids[i]]
		if CompareNames(prev.Name, next.Name) == OrderLess {
			continue
		}
		if d.Validation.IsStrict() {
			return nil, fmt.Errorf("siblings %q and %q are out of order: %w", prev.Name, next.Name, ErrorCorruptTree)
		}
		d.log.Warn("sibling tree out of order", zap.String("left", prev.Name), zap.String("right", next.Name))
	}

	return ids, nil
}

func (d *Directory) collectSiblings(parent, id uint32, marks []visitState, ids *[]uint32) error {
	if id == NO_STREAM {
		return nil
	}

	if id >= uint32(len(d.DirEntries)) {
		return fmt.Errorf("entry %v references entry %v, but directory entry count is %v: %w",
			parent, id, len(d.DirEntries), ErrorCorruptTree)
	}

	switch marks[id] {
	case visiting:
		return fmt.Errorf("directory has a cycle through entry %v: %w", id, ErrorCorruptTree)
	case visited:
		return fmt.Errorf("directory entry %v is referenced twice: %w", id, ErrorCorruptTree)
	}

	entry := d.DirEntries[id]
	switch entry.ObjType {
	case ObjRoot:
		return fmt.Errorf("root object type on non-root entry %v: %w", id, ErrorCorruptTree)
	case ObjUnallocated:
		if d.Validation.IsStrict() {
			return fmt.Errorf("entry %v references unallocated entry %v: %w", parent, id, ErrorCorruptTree)
		}
		d.log.Warn("skipping reference to unallocated directory entry", zap.Uint32("id", id))
		marks[id] = visited
		return nil
	}

	marks[id] = visiting

	if err := d.collectSiblings(id, entry.LeftSibling, marks, ids); err != nil {
		return err
	}

	*ids = append(*ids, id)

	if err := d.collectSiblings(id, entry.RightSibling, marks, ids); err != nil {
		return err
	}

	marks[id] = visited
	return nil
}

// StreamIDForNameChain finds an entry by binary search through the sibling
// tree of each storage along names. An empty chain names the root.
func (d *Directory) StreamIDForNameChain(names []string) (uint32, error) {
	streamId := ROOT_STREAM_ID

	for _, name := range names {
		streamId = d.DirEntries[streamId].Child
		for steps := 0; ; steps++ {
			if streamId == NO_STREAM {
				return 0, fmt.Errorf("%v: %w", PathFromNameChain(names), ErrorNotFound)
			}
			if streamId >= uint32(len(d.DirEntries)) || steps > len(d.DirEntries) {
				return 0, fmt.Errorf("sibling search for %q left the directory: %w", name, ErrorCorruptTree)
			}

			dirEntry := d.DirEntries[streamId]
			order := CompareNames(name, dirEntry.Name)
			if order == OrderEqual {
				break
			}

			switch order {
			case OrderLess:
				streamId = dirEntry.LeftSibling
			case OrderGreater:
				streamId = dirEntry.RightSibling
			}
		}
	}

	return streamId, nil
}
