package cfb

import "fmt"

const maxPlanIterations = 32

// sectorPlan is the number of sectors each region of an encoded file needs.
type sectorPlan struct {
	Version Version

	MiniStreamSectors int
	MinifatSectors    int
	StreamSectors     int
	DirSectors        int

	FatSectors   int
	DifatSectors int
	Iterations   int
}

func newSectorPlan(v Version, miniStreamLen, minifatEntries, streamSectors, dirEntries int) (sectorPlan, error) {
	p := sectorPlan{
		Version:           v,
		MiniStreamSectors: ceilDiv(miniStreamLen, v.SectorLen()),
		MinifatSectors:    ceilDiv(minifatEntries, v.FatEntriesPerSector()),
		StreamSectors:     streamSectors,
		DirSectors:        ceilDiv(dirEntries, v.DirEntriesPerSector()),
	}

	if err := p.settle(); err != nil {
		return sectorPlan{}, err
	}

	if uint64(p.Total()) > uint64(MAX_REGULAR_SECTOR) {
		return sectorPlan{}, fmt.Errorf("file needs %v sectors: %w", p.Total(), ErrorCapacity)
	}

	return p, nil
}

// Payload is every sector that is not FAT or DIFAT.
func (p sectorPlan) Payload() int {
	return p.MiniStreamSectors + p.MinifatSectors + p.StreamSectors + p.DirSectors
}

func (p sectorPlan) Total() int {
	return p.Payload() + p.FatSectors + p.DifatSectors
}

// settle finds the FAT and DIFAT sector counts. The FAT must also map its
// own sectors and the DIFAT's, so the count is recomputed with that overhead
// until it stops changing.
func (p *sectorPlan) settle() error {
	perFat := p.Version.FatEntriesPerSector()
	perDifat := p.Version.DifatEntriesPerSector()

	fat, difat := 0, 0
	for i := 1; i <= maxPlanIterations; i++ {
		nextFat := ceilDiv(p.Payload()+fat+difat, perFat)
		nextDifat := 0
		if nextFat > NUM_DIFAT_ENTRIES_IN_HEADER {
			nextDifat = ceilDiv(nextFat-NUM_DIFAT_ENTRIES_IN_HEADER, perDifat)
		}

		if nextFat == fat && nextDifat == difat {
			p.FatSectors, p.DifatSectors, p.Iterations = fat, difat, i
			return nil
		}
		fat, difat = nextFat, nextDifat
	}

	return fmt.Errorf("FAT sector count did not settle after %v iterations: %w", maxPlanIterations, ErrorCapacity)
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
