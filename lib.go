package cfb

import (
	"fmt"

	"go.uber.org/zap"
)

// CompoundFile is an opened compound file. Its tables are read once by Open;
// stream bytes are read from the input buffer on demand. A CompoundFile is
// never mutated after Open and aliases the buffer it was opened from.
type CompoundFile struct {
	Header    *Header
	Allocator *Allocator
	Directory *Directory
	MiniAlloc *MiniAlloc

	log *zap.Logger
}

func Open(data []byte, opts ...Option) (*CompoundFile, error) {
	o := newOptions(opts)

	if o.maxFileSize > 0 && int64(len(data)) > o.maxFileSize {
		return nil, fmt.Errorf("file is %v bytes, limit is %v: %w", len(data), o.maxFileSize, ErrorInvalidCFB)
	}

	header, err := parseHeader(data, o.validation, o.log)
	if err != nil {
		return nil, err
	}

	sectorLen := header.Version.SectorLen()
	if int64(len(data)) > (int64(MAX_REGULAR_SECTOR)+1)*int64(sectorLen) {
		return nil, fmt.Errorf("file is too large: %w", ErrorInvalidCFB)
	}

	if len(data) < sectorLen {
		return nil, fmt.Errorf("file is smaller than one sector: %w", ErrorTruncated)
	}

	sectors := NewSectors(header.Version, data)

	allocator, err := loadAllocator(header, sectors, o.validation, o.log)
	if err != nil {
		return nil, err
	}

	directory, err := loadDirectory(header, allocator, o.validation, o.log)
	if err != nil {
		return nil, err
	}

	miniAlloc, err := loadMiniAlloc(header, allocator, directory.RootDirEntry(), o.validation, o.log)
	if err != nil {
		return nil, err
	}

	o.log.Debug("opened compound file",
		zap.Int("version", int(header.Version)),
		zap.Uint32("sectors", sectors.NumSectors),
		zap.Int("fatEntries", len(allocator.Fat)),
		zap.Int("difatSectors", len(allocator.DifatSectorIds)),
		zap.Int("dirEntries", len(directory.DirEntries)),
		zap.Int("minifatEntries", len(miniAlloc.Minifat)),
		zap.Int("miniStreamLen", len(miniAlloc.MiniStream)),
	)

	return &CompoundFile{
		Header:    header,
		Allocator: allocator,
		Directory: directory,
		MiniAlloc: miniAlloc,
		log:       o.log,
	}, nil
}

func (c *CompoundFile) RootEntry() *Entry {
	return NewEntry(c.Directory.RootDirEntry(), "/")
}

// Entries lists every storage and stream below the root, depth first.
func (c *CompoundFile) Entries() ([]*Entry, error) {
	entries := make([]*Entry, 0, len(c.Directory.DirEntries))
	err := c.Directory.Walk(func(_, id uint32, names []string) error {
		entries = append(entries, NewEntry(c.Directory.DirEntries[id], PathFromNameChain(names)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Lookup finds an entry by path through the sibling search trees.
func (c *CompoundFile) Lookup(path string) (*Entry, error) {
	names := NameChainFromPath(path)
	id, err := c.Directory.StreamIDForNameChain(names)
	if err != nil {
		return nil, err
	}
	return NewEntry(c.Directory.DirEntries[id], PathFromNameChain(names)), nil
}

func (c *CompoundFile) OpenStream(path string) (*Stream, error) {
	names := NameChainFromPath(path)
	path = PathFromNameChain(names)
	streamId, err := c.Directory.StreamIDForNameChain(names)
	if err != nil {
		return nil, err
	}

	entry := c.Directory.DirEntries[streamId]
	if entry.ObjType != ObjStream {
		return nil, fmt.Errorf("%s: %w", path, ErrorNotStream)
	}

	chain, err := c.openChain(entry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return newStream(streamId, entry.StreamSize, chain), nil
}

// ReadStream returns the full contents of the stream at path.
func (c *CompoundFile) ReadStream(path string) ([]byte, error) {
	stream, err := c.OpenStream(path)
	if err != nil {
		return nil, err
	}
	return stream.readAll()
}

// openChain resolves a stream's chain: through the MiniFAT for streams below
// the cutoff, through the FAT otherwise. Only as many sectors as the declared
// size needs are followed.
func (c *CompoundFile) openChain(entry *DirEntry) (*Chain, error) {
	if entry.StreamSize == 0 {
		return &Chain{source: c.Allocator.Sectors}, nil
	}

	var (
		chain *Chain
		err   error
	)
	if entry.StreamSize < uint64(MINI_STREAM_CUTOFF) {
		chain, err = c.MiniAlloc.OpenMiniChain(entry.StartingSector, sectorsFor(entry.StreamSize, MINI_SECTOR_LEN))
	} else {
		chain, err = c.Allocator.OpenChain(entry.StartingSector, sectorsFor(entry.StreamSize, c.Allocator.Sectors.SectorLen()))
	}
	if err != nil {
		return nil, err
	}

	if entry.StreamSize > chain.Len() {
		return nil, fmt.Errorf("stream of %v bytes spans only %v chained bytes: %w", entry.StreamSize, chain.Len(), ErrorTruncated)
	}

	return chain, nil
}

// Tree materializes the whole storage tree with every stream's bytes.
func (c *CompoundFile) Tree() (*Storage, error) {
	root := NewStorage()
	root.CLSID = c.Directory.RootDirEntry().CLSID

	storages := map[uint32]*Storage{ROOT_STREAM_ID: root}

	err := c.Directory.Walk(func(parent, id uint32, names []string) error {
		entry := c.Directory.DirEntries[id]
		parentStorage := storages[parent]
		path := PathFromNameChain(names)

		if parentStorage.has(entry.Name) {
			return fmt.Errorf("%s appears twice: %w", path, ErrorCorruptTree)
		}

		switch entry.ObjType {
		case ObjStorage:
			sub := NewStorage()
			sub.CLSID = entry.CLSID
			parentStorage.Storages[entry.Name] = sub
			storages[id] = sub
		case ObjStream:
			chain, err := c.openChain(entry)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			data, err := readChain(chain, entry.StreamSize)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			parentStorage.Streams[entry.Name] = data
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return root, nil
}
