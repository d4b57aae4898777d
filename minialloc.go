package cfb

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
)

// MiniAlloc is the MiniFAT together with the mini stream it indexes. It is
// both the allocation table and the sector source for mini chains.
type MiniAlloc struct {
	Minifat            []uint32
	MinifatStartSector uint32
	MiniStream         []byte
	Validation         Validation

	log *zap.Logger
}

func NewMiniAlloc(minifat []uint32, minifatStartSector uint32, miniStream []byte, validation Validation, log *zap.Logger) (*MiniAlloc, error) {
	alloc := MiniAlloc{
		Minifat:            minifat,
		MinifatStartSector: minifatStartSector,
		MiniStream:         miniStream,
		Validation:         validation,
		log:                log,
	}

	err := alloc.Validate()
	if err != nil {
		return nil, err
	}

	return &alloc, nil
}

// loadMiniAlloc reads the MiniFAT chain and the root entry's mini stream,
// both through the regular FAT.
func loadMiniAlloc(header *Header, alloc *Allocator, root *DirEntry, validation Validation, log *zap.Logger) (*MiniAlloc, error) {
	minifat := make([]uint32, 0)

	if header.FirstMinifatSector != END_OF_CHAIN {
		chain, err := alloc.OpenChain(header.FirstMinifatSector, 0)
		if err != nil {
			return nil, fmt.Errorf("MiniFAT chain: %w", err)
		}

		if header.NumMinifatSector != chain.NumSectors() {
			if validation.IsStrict() {
				return nil, fmt.Errorf("incorrect number of MiniFAT sectors (header says %v, FAT says %v): %w",
					header.NumMinifatSector, chain.NumSectors(), ErrorInvalidCFB)
			}
			log.Warn("MiniFAT sector count differs from header",
				zap.Uint32("header", header.NumMinifatSector), zap.Uint32("fat", chain.NumSectors()))
		}

		raw, err := readChain(chain, chain.Len())
		if err != nil {
			return nil, fmt.Errorf("MiniFAT: %w", err)
		}
		for i := 0; i+4 <= len(raw); i += 4 {
			minifat = append(minifat, binary.LittleEndian.Uint32(raw[i:]))
		}
	}

	for len(minifat) > 0 && minifat[len(minifat)-1] == FREE_SECTOR {
		minifat = minifat[:len(minifat)-1]
	}

	if root.StreamSize%uint64(MINI_SECTOR_LEN) != 0 {
		if validation.IsStrict() {
			return nil, fmt.Errorf("root stream len is %v, but should be multiple of %v: %w",
				root.StreamSize, MINI_SECTOR_LEN, ErrorInvalidCFB)
		}
		log.Warn("root stream length is not a multiple of the mini sector length", zap.Uint64("len", root.StreamSize))
	}

	var miniStream []byte
	if root.StreamSize > 0 {
		chain, err := alloc.OpenChain(root.StartingSector, sectorsFor(root.StreamSize, alloc.Sectors.SectorLen()))
		if err != nil {
			return nil, fmt.Errorf("mini stream: %w", err)
		}
		miniStream, err = readChain(chain, root.StreamSize)
		if err != nil {
			return nil, fmt.Errorf("mini stream: %w", err)
		}
	}

	return NewMiniAlloc(minifat, header.FirstMinifatSector, miniStream, validation, log)
}

func (a *MiniAlloc) numMiniSectors() uint32 {
	return uint32(sectorsFor(uint64(len(a.MiniStream)), MINI_SECTOR_LEN))
}

func (a *MiniAlloc) Validate() error {
	numMiniSectors := a.numMiniSectors()
	if uint32(len(a.Minifat)) > numMiniSectors {
		if a.Validation.IsStrict() {
			return fmt.Errorf("MiniFAT has %v entries, but root stream has only %v mini sectors: %w",
				len(a.Minifat), numMiniSectors, ErrorInvalidCFB)
		}
		a.log.Warn("MiniFAT is longer than the mini stream",
			zap.Int("entries", len(a.Minifat)), zap.Uint32("miniSectors", numMiniSectors))
	}

	pointees := make(map[uint32]bool)
	for miniSectorIdx, miniSector := range a.Minifat {
		if miniSector <= MAX_REGULAR_SECTOR {
			if miniSector >= numMiniSectors {
				return fmt.Errorf("MiniFAT[%v] points to mini sector %v, but there are only %v mini sectors: %w",
					miniSectorIdx, miniSector, numMiniSectors, ErrorTruncated)
			}

			if pointees[miniSector] {
				return fmt.Errorf("mini sector %v pointed to twice: %w", miniSector, ErrorInvalidCFB)
			}

			pointees[miniSector] = true
		}
	}

	return nil
}

func (a *MiniAlloc) Len() int {
	return len(a.Minifat)
}

func (a *MiniAlloc) Next(index uint32) (uint32, error) {
	if index > MAX_REGULAR_SECTOR {
		return 0, fmt.Errorf("invalid mini sector index %v in chain: %w", index, ErrorInvalidCFB)
	}
	if index >= a.numMiniSectors() {
		return 0, fmt.Errorf("chain references mini sector %v, but mini stream has only %v: %w",
			index, a.numMiniSectors(), ErrorTruncated)
	}
	if index >= uint32(len(a.Minifat)) {
		return 0, fmt.Errorf("chain references mini sector %v, which the MiniFAT does not cover: %w", index, ErrorInvalidCFB)
	}

	nextId := a.Minifat[index]
	if nextId == END_OF_CHAIN {
		return nextId, nil
	}
	if nextId > MAX_REGULAR_SECTOR {
		return 0, fmt.Errorf("mini sector %v is followed by reserved value 0x%08x: %w", index, nextId, ErrorInvalidCFB)
	}

	return nextId, nil
}

func (a *MiniAlloc) SectorLen() int {
	return MINI_SECTOR_LEN
}

func (a *MiniAlloc) Sector(miniSectorId uint32) ([]byte, error) {
	if miniSectorId >= a.numMiniSectors() {
		return nil, fmt.Errorf("tried to read mini sector %v, but mini stream has only %v: %w",
			miniSectorId, a.numMiniSectors(), ErrorTruncated)
	}

	start := int(miniSectorId) * MINI_SECTOR_LEN
	end := min(start+MINI_SECTOR_LEN, len(a.MiniStream))
	return a.MiniStream[start:end:end], nil
}

// OpenMiniChain follows the MiniFAT chain starting at miniSectorId.
func (a *MiniAlloc) OpenMiniChain(miniSectorId uint32, limit int) (*Chain, error) {
	return NewChain(a, a, miniSectorId, limit)
}
