package cfb

import (
	"time"

	"github.com/google/uuid"
)

// Entry describes one storage or stream of an open compound file.
type Entry struct {
	Name         string
	Path         string
	ObjType      ObjectType
	CLSID        uuid.UUID
	StateBits    uint32
	CreationTime uint64
	ModifiedTime uint64
	StreamLen    uint64
}

func NewEntry(dirEntry *DirEntry, path string) *Entry {
	entry := Entry{
		Name:         dirEntry.Name,
		Path:         path,
		ObjType:      dirEntry.ObjType,
		CLSID:        dirEntry.CLSID,
		StateBits:    dirEntry.StateBits,
		CreationTime: dirEntry.CreationTime,
		ModifiedTime: dirEntry.ModifiedTime,
		StreamLen:    dirEntry.StreamSize,
	}

	return &entry
}

func (e *Entry) IsStream() bool {
	return e.ObjType == ObjStream
}

func (e *Entry) IsStorage() bool {
	return e.ObjType == ObjStorage || e.ObjType == ObjRoot
}

func (e *Entry) Created() time.Time {
	return fileTime(e.CreationTime)
}

func (e *Entry) Modified() time.Time {
	return fileTime(e.ModifiedTime)
}

// Windows FILETIME epoch (1601-01-01) in Unix 100ns ticks.
const fileTimeEpochOffset = 116444736000000000

func fileTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	ticks := int64(ft) - fileTimeEpochOffset
	return time.Unix(ticks/1e7, (ticks%1e7)*100).UTC()
}
