package cfb

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
	"github.com/google/uuid"
	"go.uber.org/zap"
	textunicode "golang.org/x/text/encoding/unicode"
)

var utf16le = textunicode.UTF16(textunicode.LittleEndian, textunicode.IgnoreBOM)

// dirEntryFields is the on-disk layout of one 128-byte directory record.
type dirEntryFields struct {
	Name           [64]byte
	NameLen        uint16
	ObjType        uint8
	Color          uint8
	LeftSibling    uint32
	RightSibling   uint32
	Child          uint32
	CLSID          [16]byte
	StateBits      uint32
	CreationTime   uint64
	ModifiedTime   uint64
	StartingSector uint32
	StreamSize     uint64
}

type DirEntry struct {
	Name           string
	ObjType        ObjectType
	Color          Color
	LeftSibling    uint32
	RightSibling   uint32
	Child          uint32
	CLSID          uuid.UUID
	StateBits      uint32
	CreationTime   uint64
	ModifiedTime   uint64
	StartingSector uint32
	StreamSize     uint64
}

func NewDirEntry(name string, objType ObjectType, timestamp uint64) *DirEntry {
	dir := DirEntry{
		Name:         name,
		ObjType:      objType,
		Color:        Black,
		LeftSibling:  NO_STREAM,
		RightSibling: NO_STREAM,
		Child:        NO_STREAM,
		CreationTime: timestamp,
		ModifiedTime: timestamp,
		StreamSize:   0,
	}
	if objType == ObjStorage {
		dir.StartingSector = 0
	} else {
		dir.StartingSector = END_OF_CHAIN
	}

	return &dir
}

func newUnallocatedDirEntry() *DirEntry {
	return &DirEntry{
		ObjType:      ObjUnallocated,
		Color:        Black,
		LeftSibling:  NO_STREAM,
		RightSibling: NO_STREAM,
		Child:        NO_STREAM,
	}
}

func ReadDirEntry(raw []byte, version Version, validation Validation, log *zap.Logger) (*DirEntry, error) {
	if len(raw) < DIR_ENTRY_LEN {
		return nil, fmt.Errorf("directory entry is %v bytes: %w", len(raw), ErrorTruncated)
	}

	var f dirEntryFields
	if err := restruct.Unpack(raw[:DIR_ENTRY_LEN], binary.LittleEndian, &f); err != nil {
		return nil, fmt.Errorf("unpack directory entry: %v: %w", err, ErrorInvalidCFB)
	}

	dir := DirEntry{
		ObjType:        ObjectFromByte(f.ObjType),
		Color:          ColorFromByte(f.Color),
		LeftSibling:    f.LeftSibling,
		RightSibling:   f.RightSibling,
		Child:          f.Child,
		CLSID:          uuid.UUID(f.CLSID),
		StateBits:      f.StateBits,
		CreationTime:   f.CreationTime,
		ModifiedTime:   f.ModifiedTime,
		StartingSector: f.StartingSector,
		StreamSize:     f.StreamSize & version.SectorLenMask(),
	}

	if dir.ObjType == ObjUnallocated {
		return &dir, nil
	}

	nameLen := int(f.NameLen)
	if nameLen > len(f.Name) || nameLen%2 != 0 || nameLen < 2 {
		if validation.IsStrict() {
			return nil, fmt.Errorf("invalid name length %v in directory entry: %w", nameLen, ErrorInvalidCFB)
		}
		log.Warn("clamping directory entry name length", zap.Int("len", nameLen))
		nameLen = min(max(nameLen&^1, 2), len(f.Name))
	}

	// The stored length includes the terminating NUL.
	name, err := utf16le.NewDecoder().Bytes(f.Name[:nameLen-2])
	if err != nil {
		return nil, fmt.Errorf("decode directory entry name: %v: %w", err, ErrorInvalidCFB)
	}
	dir.Name = string(name)

	return &dir, nil
}

// Bytes serializes the entry into its 128-byte record. The color is always
// written black.
func (d *DirEntry) Bytes() ([]byte, error) {
	f := dirEntryFields{
		ObjType:        d.ObjType.AsByte(),
		Color:          COLOR_BLACK,
		LeftSibling:    d.LeftSibling,
		RightSibling:   d.RightSibling,
		Child:          d.Child,
		CLSID:          d.CLSID,
		StateBits:      d.StateBits,
		CreationTime:   d.CreationTime,
		ModifiedTime:   d.ModifiedTime,
		StartingSector: d.StartingSector,
		StreamSize:     d.StreamSize,
	}

	if d.ObjType != ObjUnallocated {
		name, err := utf16le.NewEncoder().Bytes([]byte(d.Name))
		if err != nil {
			return nil, fmt.Errorf("encode name %q: %v: %w", d.Name, err, ErrorInvalidName)
		}
		if len(name) > len(f.Name)-2 {
			return nil, fmt.Errorf("name %q does not fit a directory entry: %w", d.Name, ErrorInvalidName)
		}
		copy(f.Name[:], name)
		f.NameLen = uint16(len(name) + 2)
	}

	return restruct.Pack(binary.LittleEndian, &f)
}
