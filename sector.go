package cfb

import (
	"fmt"
)

// sectorSource is anything a Chain can read fixed-size blocks from: the
// regular sectors of a file, or the mini sectors of its mini stream.
type sectorSource interface {
	SectorLen() int
	Sector(id uint32) ([]byte, error)
}

// Sectors is the file body after the header, sliced into sector buffers.
type Sectors struct {
	Version    Version
	NumSectors uint32

	sectors [][]byte
}

// NewSectors slices data, which must start with the header sector, into
// sectors. The final sector may be shorter than the sector length if the
// file is truncated.
func NewSectors(v Version, data []byte) *Sectors {
	sectorLen := v.SectorLen()
	numSectors := ((len(data) + sectorLen - 1) / sectorLen) - 1
	if numSectors < 0 {
		numSectors = 0
	}

	sectors := make([][]byte, numSectors)
	for i := range sectors {
		start := (i + 1) * sectorLen
		end := min(start+sectorLen, len(data))
		sectors[i] = data[start:end:end]
	}

	return &Sectors{
		Version:    v,
		NumSectors: uint32(numSectors),
		sectors:    sectors,
	}
}

func (s *Sectors) SectorLen() int {
	return s.Version.SectorLen()
}

// Sector returns the bytes of one sector. The slice aliases the input buffer.
func (s *Sectors) Sector(sectorId uint32) ([]byte, error) {
	if sectorId >= s.NumSectors {
		return nil, fmt.Errorf("tried to read sector %v, but sector count is only %v: %w",
			sectorId, s.NumSectors, ErrorTruncated)
	}

	return s.sectors[sectorId], nil
}

// fullSector is like Sector but fails if the sector is cut short.
func (s *Sectors) fullSector(sectorId uint32) ([]byte, error) {
	sector, err := s.Sector(sectorId)
	if err != nil {
		return nil, err
	}
	if len(sector) < s.SectorLen() {
		return nil, fmt.Errorf("sector %v has only %v of %v bytes: %w",
			sectorId, len(sector), s.SectorLen(), ErrorTruncated)
	}
	return sector, nil
}
