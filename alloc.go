package cfb

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
)

// Allocator is the assembled File Allocation Table of one open file, along
// with the DIFAT that located its sectors.
type Allocator struct {
	Sectors        *Sectors
	DifatSectorIds []uint32
	Difat          []uint32
	Fat            []uint32
	Validation     Validation

	log *zap.Logger
}

func NewAllocator(sectors *Sectors, difatSectorIds []uint32, difat []uint32, fat []uint32, validation Validation, log *zap.Logger) (*Allocator, error) {
	alloc := Allocator{
		Sectors:        sectors,
		DifatSectorIds: difatSectorIds,
		Difat:          difat,
		Fat:            fat,
		Validation:     validation,
		log:            log,
	}

	err := alloc.Validate()
	if err != nil {
		return nil, err
	}

	return &alloc, nil
}

// loadAllocator reads the DIFAT (header entries, then the DIFAT sector chain)
// and concatenates every FAT sector it lists into one table.
func loadAllocator(header *Header, sectors *Sectors, validation Validation, log *zap.Logger) (*Allocator, error) {
	difat := make([]uint32, len(header.InitialDifatEntries))
	copy(difat, header.InitialDifatEntries)

	seenSectorIds := make(map[uint32]bool)
	difatSectorIds := make([]uint32, 0)
	currentDifatSector := header.FirstDifatSector
	perSector := header.Version.DifatEntriesPerSector()

	for currentDifatSector != END_OF_CHAIN {
		if currentDifatSector > MAX_REGULAR_SECTOR {
			return nil, fmt.Errorf("invalid DIFAT chain sector %v: %w", currentDifatSector, ErrorInvalidCFB)
		}

		if seenSectorIds[currentDifatSector] {
			return nil, fmt.Errorf("DIFAT chain includes duplicate sector index %v: %w", currentDifatSector, ErrorInvalidCFB)
		}

		seenSectorIds[currentDifatSector] = true
		difatSectorIds = append(difatSectorIds, currentDifatSector)

		sector, err := sectors.fullSector(currentDifatSector)
		if err != nil {
			return nil, fmt.Errorf("DIFAT sector: %w", err)
		}

		for i := 0; i < perSector; i++ {
			next := binary.LittleEndian.Uint32(sector[i*4:])
			if next != FREE_SECTOR && next > MAX_REGULAR_SECTOR {
				return nil, fmt.Errorf("DIFAT refers to invalid sector index %v: %w", next, ErrorInvalidCFB)
			}
			difat = append(difat, next)
		}

		currentDifatSector = binary.LittleEndian.Uint32(sector[perSector*4:])
		if currentDifatSector == FREE_SECTOR {
			currentDifatSector = END_OF_CHAIN
		}
	}

	if header.NumDifatSectors != uint32(len(difatSectorIds)) {
		if validation.IsStrict() {
			return nil, fmt.Errorf("incorrect DIFAT chain length (header says %v, actual is %v): %w",
				header.NumDifatSectors, len(difatSectorIds), ErrorInvalidCFB)
		}
		log.Warn("DIFAT chain length differs from header",
			zap.Uint32("header", header.NumDifatSectors), zap.Int("actual", len(difatSectorIds)))
	}

	for len(difat) > 0 && difat[len(difat)-1] == FREE_SECTOR {
		difat = difat[:len(difat)-1]
	}

	fatSectorIds := make([]uint32, 0, len(difat))
	for _, sectorId := range difat {
		if sectorId == FREE_SECTOR {
			if validation.IsStrict() {
				return nil, fmt.Errorf("DIFAT contains a free entry between FAT sectors: %w", ErrorInvalidCFB)
			}
			continue
		}
		fatSectorIds = append(fatSectorIds, sectorId)
	}

	if header.NumFatSectors != uint32(len(fatSectorIds)) {
		if validation.IsStrict() {
			return nil, fmt.Errorf("incorrect number of FAT sectors (header says %v, DIFAT says %v): %w",
				header.NumFatSectors, len(fatSectorIds), ErrorInvalidCFB)
		}
		log.Warn("FAT sector count differs from header",
			zap.Uint32("header", header.NumFatSectors), zap.Int("difat", len(fatSectorIds)))
	}

	perFatSector := header.Version.FatEntriesPerSector()
	fat := make([]uint32, 0, len(fatSectorIds)*perFatSector)
	for _, sectorId := range fatSectorIds {
		sector, err := sectors.fullSector(sectorId)
		if err != nil {
			return nil, fmt.Errorf("FAT sector: %w", err)
		}
		for i := 0; i < perFatSector; i++ {
			fat = append(fat, binary.LittleEndian.Uint32(sector[i*4:]))
		}
	}

	if !validation.IsStrict() {
		for len(fat) > int(sectors.NumSectors) && fat[len(fat)-1] == 0 {
			fat = fat[:len(fat)-1]
		}
	}

	for len(fat) > 0 && fat[len(fat)-1] == FREE_SECTOR {
		fat = fat[:len(fat)-1]
	}

	return NewAllocator(sectors, difatSectorIds, fatSectorIds, fat, validation, log)
}

// Len returns the number of entries in the FAT.
func (a *Allocator) Len() int {
	return len(a.Fat)
}

// Next returns the sector following index in its chain, or END_OF_CHAIN.
func (a *Allocator) Next(index uint32) (uint32, error) {
	if index > MAX_REGULAR_SECTOR {
		return 0, fmt.Errorf("invalid sector index %v in chain: %w", index, ErrorInvalidCFB)
	}
	if index >= a.Sectors.NumSectors {
		return 0, fmt.Errorf("chain references sector %v, but file has only %v sectors: %w",
			index, a.Sectors.NumSectors, ErrorTruncated)
	}
	if index >= uint32(len(a.Fat)) {
		return 0, fmt.Errorf("chain references sector %v, which the FAT does not cover: %w", index, ErrorInvalidCFB)
	}

	nextId := a.Fat[index]
	if nextId == END_OF_CHAIN {
		return nextId, nil
	}
	if nextId > MAX_REGULAR_SECTOR {
		return 0, fmt.Errorf("sector %v is followed by reserved value 0x%08x: %w", index, nextId, ErrorInvalidCFB)
	}
	if nextId >= a.Sectors.NumSectors {
		return 0, fmt.Errorf("sector %v points to sector %v, but file has only %v sectors: %w",
			index, nextId, a.Sectors.NumSectors, ErrorTruncated)
	}

	return nextId, nil
}

func (a *Allocator) Validate() error {
	for _, difatSector := range a.DifatSectorIds {
		if difatSector >= uint32(len(a.Fat)) {
			return fmt.Errorf("FAT has %v entries, but DIFAT lists %v as a DIFAT sector: %w",
				len(a.Fat), difatSector, ErrorInvalidCFB)
		}

		if a.Fat[difatSector] != DIFAT_SECTOR {
			if a.Validation.IsStrict() {
				return fmt.Errorf("DIFAT sector %v is not marked as such in the FAT: %w", difatSector, ErrorInvalidCFB)
			}
			a.log.Warn("marking DIFAT sector in FAT", zap.Uint32("sector", difatSector))
			a.Fat[difatSector] = DIFAT_SECTOR
		}
	}

	for _, fatSector := range a.Difat {
		if fatSector >= uint32(len(a.Fat)) {
			return fmt.Errorf("FAT has %v entries, but DIFAT lists %v as a FAT sector: %w",
				len(a.Fat), fatSector, ErrorInvalidCFB)
		}

		if a.Fat[fatSector] != FAT_SECTOR {
			if a.Validation.IsStrict() {
				return fmt.Errorf("FAT sector %v is not marked as such in the FAT: %w", fatSector, ErrorInvalidCFB)
			}
			a.log.Warn("marking FAT sector in FAT", zap.Uint32("sector", fatSector))
			a.Fat[fatSector] = FAT_SECTOR
		}
	}

	pointees := make(map[uint32]bool)
	for fatIdx, next := range a.Fat {
		if next <= MAX_REGULAR_SECTOR {
			if next >= a.Sectors.NumSectors {
				return fmt.Errorf("FAT entry %v points to sector %v, but file has only %v sectors: %w",
					fatIdx, next, a.Sectors.NumSectors, ErrorTruncated)
			}
			if pointees[next] {
				return fmt.Errorf("FAT entry %v points to sector %v, which is already pointed to by another FAT entry: %w",
					fatIdx, next, ErrorInvalidCFB)
			}
			pointees[next] = true
		} else if next == INVALID_SECTOR {
			return fmt.Errorf("FAT entry %v holds the invalid sector marker: %w", fatIdx, ErrorInvalidCFB)
		}
	}

	return nil
}

// OpenChain follows the FAT chain starting at sectorId. A positive limit stops
// the walk after that many sectors and requires the chain to be that long.
func (a *Allocator) OpenChain(sectorId uint32, limit int) (*Chain, error) {
	return NewChain(a, a.Sectors, sectorId, limit)
}
