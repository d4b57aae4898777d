package cfb

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHeaderBytes(t *testing.T) {
	for _, v := range []Version{V3, V4} {
		h := Header{
			Version:             v,
			NumFatSectors:       2,
			FirstDirSector:      5,
			FirstMinifatSector:  END_OF_CHAIN,
			FirstDifatSector:    END_OF_CHAIN,
			InitialDifatEntries: []uint32{0, 1},
		}
		if v == V4 {
			h.NumDirSectors = 1
		}

		raw, err := h.Bytes()
		require.NoError(t, err)
		require.Len(t, raw, v.SectorLen())
		require.True(t, HasMagic(raw))

		parsed, err := parseHeader(raw, ValidationStrict, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.Equal(t, h.Version, parsed.Version)
		require.Equal(t, h.NumDirSectors, parsed.NumDirSectors)
		require.Equal(t, h.NumFatSectors, parsed.NumFatSectors)
		require.Equal(t, h.FirstDirSector, parsed.FirstDirSector)
		require.Equal(t, END_OF_CHAIN, parsed.FirstMinifatSector)
		require.Equal(t, END_OF_CHAIN, parsed.FirstDifatSector)
		require.Equal(t, []uint32{0, 1}, parsed.InitialDifatEntries[:2])
		require.Equal(t, FREE_SECTOR, parsed.InitialDifatEntries[2])
	}
}

func TestHeaderV3DirSectorCount(t *testing.T) {
	h := Header{Version: V3, NumDirSectors: 3, FirstMinifatSector: FREE_SECTOR, FirstDifatSector: FREE_SECTOR}
	raw, err := h.Bytes()
	require.NoError(t, err)

	_, err = parseHeader(raw, ValidationStrict, zaptest.NewLogger(t))
	require.ErrorIs(t, err, ErrorInvalidCFB)

	parsed, err := parseHeader(raw, ValidationPermissive, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, END_OF_CHAIN, parsed.FirstMinifatSector)
	require.Equal(t, END_OF_CHAIN, parsed.FirstDifatSector)
}

func TestHeaderTooManyDifatEntries(t *testing.T) {
	h := Header{Version: V3, InitialDifatEntries: make([]uint32, NUM_DIFAT_ENTRIES_IN_HEADER+1)}
	_, err := h.Bytes()
	require.ErrorIs(t, err, ErrorCapacity)
}

func TestDirEntryBytes(t *testing.T) {
	entry := NewDirEntry("\x05SummaryInformation", ObjStream, 132223104000000000)
	entry.Color = Red
	entry.LeftSibling = 3
	entry.RightSibling = 4
	entry.CLSID = uuid.MustParse("00020906-0000-0000-c000-000000000046")
	entry.StateBits = 7
	entry.StartingSector = 12
	entry.StreamSize = 5000

	raw, err := entry.Bytes()
	require.NoError(t, err)
	require.Len(t, raw, DIR_ENTRY_LEN)
	require.Equal(t, COLOR_BLACK, raw[67])

	got, err := ReadDirEntry(raw, V3, ValidationStrict, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, entry.Name, got.Name)
	require.Equal(t, Black, got.Color)
	require.Equal(t, entry.LeftSibling, got.LeftSibling)
	require.Equal(t, entry.RightSibling, got.RightSibling)
	require.Equal(t, NO_STREAM, got.Child)
	require.Equal(t, entry.CLSID, got.CLSID)
	require.Equal(t, entry.StateBits, got.StateBits)
	require.Equal(t, entry.CreationTime, got.CreationTime)
	require.Equal(t, entry.StartingSector, got.StartingSector)
	require.Equal(t, entry.StreamSize, got.StreamSize)

	e := NewEntry(got, "/\x05SummaryInformation")
	require.Equal(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), e.Created())
	require.True(t, e.IsStream())
	require.False(t, e.IsStorage())
}

func TestDirEntryStreamSizeMask(t *testing.T) {
	entry := NewDirEntry("Big", ObjStream, 0)
	entry.StreamSize = 0x1_0000_1000

	raw, err := entry.Bytes()
	require.NoError(t, err)

	v3, err := ReadDirEntry(raw, V3, ValidationPermissive, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, uint64(0x1000), v3.StreamSize)

	v4, err := ReadDirEntry(raw, V4, ValidationPermissive, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, uint64(0x1_0000_1000), v4.StreamSize)
}

func TestDirEntryBadNameLength(t *testing.T) {
	raw, err := NewDirEntry("abc", ObjStream, 0).Bytes()
	require.NoError(t, err)
	raw[64] = 0x7f

	_, err = ReadDirEntry(raw, V3, ValidationStrict, zaptest.NewLogger(t))
	require.ErrorIs(t, err, ErrorInvalidCFB)

	got, err := ReadDirEntry(raw, V3, ValidationPermissive, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, "abc", got.Name[:3])
}

func TestStorage(t *testing.T) {
	root := NewStorage()

	docs, err := root.AddStorage("Docs")
	require.NoError(t, err)
	again, err := root.AddStorage("Docs")
	require.NoError(t, err)
	require.Same(t, docs, again)

	require.NoError(t, docs.AddStream("readme", []byte("hello")))
	require.ErrorIs(t, root.AddStream("Docs", nil), ErrorInvalidName)
	require.ErrorIs(t, docs.AddStream("a:b", nil), ErrorInvalidName)

	_, err = docs.AddStorage("readme")
	require.ErrorIs(t, err, ErrorInvalidName)

	sub, data, err := root.Lookup("/Docs/readme")
	require.NoError(t, err)
	require.Nil(t, sub)
	require.Equal(t, []byte("hello"), data)

	sub, _, err = root.Lookup("Docs")
	require.NoError(t, err)
	require.Same(t, docs, sub)

	_, _, err = root.Lookup("/Docs/readme/more")
	require.ErrorIs(t, err, ErrorNotFound)

	var paths []string
	require.NoError(t, root.Walk(func(names []string, _ *Storage, _ []byte) error {
		paths = append(paths, PathFromNameChain(names))
		return nil
	}))
	require.Equal(t, []string{"/Docs", "/Docs/readme"}, paths)

	other := NewStorage()
	otherDocs, err := other.AddStorage("Docs")
	require.NoError(t, err)
	require.False(t, root.Equal(other))
	require.NoError(t, otherDocs.AddStream("readme", []byte("hello")))
	require.True(t, root.Equal(other))
}
