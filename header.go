package cfb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
	"go.uber.org/zap"
)

// headerFields is the on-disk layout of the first 512 bytes of a compound file.
type headerFields struct {
	Signature            [8]byte
	CLSID                [16]byte
	MinorVersion         uint16
	MajorVersion         uint16
	ByteOrder            uint16
	SectorShift          uint16
	MiniSectorShift      uint16
	Reserved             [6]byte
	NumDirSectors        uint32
	NumFatSectors        uint32
	FirstDirSector       uint32
	TransactionSignature uint32
	MiniStreamCutoff     uint32
	FirstMinifatSector   uint32
	NumMinifatSectors    uint32
	FirstDifatSector     uint32
	NumDifatSectors      uint32
	Difat                [NUM_DIFAT_ENTRIES_IN_HEADER]uint32
}

type Header struct {
	Version            Version
	NumDirSectors      uint32
	NumFatSectors      uint32
	FirstDirSector     uint32
	FirstMinifatSector uint32
	NumMinifatSector   uint32
	FirstDifatSector   uint32
	NumDifatSectors    uint32

	InitialDifatEntries []uint32
}

// HasMagic reports whether data starts with the compound file signature.
func HasMagic(data []byte) bool {
	return len(data) >= len(MAGIC_NUMBER) && bytes.Equal(data[:len(MAGIC_NUMBER)], MAGIC_NUMBER)
}

func parseHeader(data []byte, validation Validation, log *zap.Logger) (*Header, error) {
	if !HasMagic(data) {
		return nil, fmt.Errorf("missing magic number: %w", ErrorInvalidCFB)
	}
	if len(data) < HEADER_LEN {
		return nil, fmt.Errorf("header is %v bytes, expected %v: %w", len(data), HEADER_LEN, ErrorTruncated)
	}

	var f headerFields
	if err := restruct.Unpack(data[:HEADER_LEN], binary.LittleEndian, &f); err != nil {
		return nil, fmt.Errorf("unpack header: %v: %w", err, ErrorInvalidCFB)
	}

	if f.ByteOrder != BYTE_ORDER_MARK {
		return nil, fmt.Errorf("invalid byte order mark (expected 0x%04X, found 0x%04X): %w",
			BYTE_ORDER_MARK, f.ByteOrder, ErrorInvalidCFB)
	}

	version, err := VersionNumber(f.MajorVersion)
	if err != nil {
		return nil, err
	}

	if f.SectorShift != version.SectorShift() {
		return nil, fmt.Errorf("incorrect sector shift for CFB version %v (expected %v, found %v): %w",
			version, version.SectorShift(), f.SectorShift, ErrorInvalidCFB)
	}

	if f.MiniSectorShift != MINI_SECTOR_SHIFT {
		return nil, fmt.Errorf("incorrect mini sector shift (expected %v, found %v): %w",
			MINI_SECTOR_SHIFT, f.MiniSectorShift, ErrorInvalidCFB)
	}

	if f.MiniStreamCutoff != MINI_STREAM_CUTOFF {
		return nil, fmt.Errorf("incorrect mini stream cutoff (expected %v, found %v): %w",
			MINI_STREAM_CUTOFF, f.MiniStreamCutoff, ErrorInvalidCFB)
	}

	if version == V3 && f.NumDirSectors != 0 {
		if validation.IsStrict() {
			return nil, fmt.Errorf("version 3 header has %v directory sectors: %w", f.NumDirSectors, ErrorInvalidCFB)
		}
		log.Warn("ignoring directory sector count in version 3 header", zap.Uint32("count", f.NumDirSectors))
	}

	// Some CFB implementations use FREE_SECTOR to indicate END_OF_CHAIN.
	firstDifatSector := f.FirstDifatSector
	if firstDifatSector == FREE_SECTOR {
		firstDifatSector = END_OF_CHAIN
	}
	firstMinifatSector := f.FirstMinifatSector
	if firstMinifatSector == FREE_SECTOR {
		firstMinifatSector = END_OF_CHAIN
	}

	h := &Header{
		Version:            version,
		NumDirSectors:      f.NumDirSectors,
		NumFatSectors:      f.NumFatSectors,
		FirstDirSector:     f.FirstDirSector,
		FirstMinifatSector: firstMinifatSector,
		NumMinifatSector:   f.NumMinifatSectors,
		FirstDifatSector:   firstDifatSector,
		NumDifatSectors:    f.NumDifatSectors,

		InitialDifatEntries: make([]uint32, NUM_DIFAT_ENTRIES_IN_HEADER),
	}
	copy(h.InitialDifatEntries, f.Difat[:])

	return h, nil
}

// Bytes serializes the header into the first sector of a file, padded with
// zeros up to the version's sector length.
func (h *Header) Bytes() ([]byte, error) {
	f := headerFields{
		MinorVersion:       MINOR_VERSION,
		MajorVersion:       uint16(h.Version),
		ByteOrder:          BYTE_ORDER_MARK,
		SectorShift:        h.Version.SectorShift(),
		MiniSectorShift:    MINI_SECTOR_SHIFT,
		NumDirSectors:      h.NumDirSectors,
		NumFatSectors:      h.NumFatSectors,
		FirstDirSector:     h.FirstDirSector,
		MiniStreamCutoff:   MINI_STREAM_CUTOFF,
		FirstMinifatSector: h.FirstMinifatSector,
		NumMinifatSectors:  h.NumMinifatSector,
		FirstDifatSector:   h.FirstDifatSector,
		NumDifatSectors:    h.NumDifatSectors,
	}
	copy(f.Signature[:], MAGIC_NUMBER)

	for i := range f.Difat {
		f.Difat[i] = FREE_SECTOR
	}
	if len(h.InitialDifatEntries) > NUM_DIFAT_ENTRIES_IN_HEADER {
		return nil, fmt.Errorf("header holds %v DIFAT entries, got %v: %w",
			NUM_DIFAT_ENTRIES_IN_HEADER, len(h.InitialDifatEntries), ErrorCapacity)
	}
	copy(f.Difat[:], h.InitialDifatEntries)

	raw, err := restruct.Pack(binary.LittleEndian, &f)
	if err != nil {
		return nil, err
	}

	out := make([]byte, h.Version.SectorLen())
	copy(out, raw)
	return out, nil
}
