package cfb

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// allocTable is an allocation table a Chain can follow: the FAT or the MiniFAT.
type allocTable interface {
	Len() int
	Next(index uint32) (uint32, error)
}

// Chain is a readable view over the sectors of one allocation chain.
type Chain struct {
	source          sectorSource
	SectorIds       []uint32
	OffsetFromStart uint64
}

// NewChain collects the sector ids of the chain starting at startingSectorId.
// With a positive limit the walk stops after limit sectors, and reaching
// END_OF_CHAIN earlier is an ErrorTruncated.
func NewChain(alloc allocTable, source sectorSource, startingSectorId uint32, limit int) (*Chain, error) {
	sectorIds := make([]uint32, 0)
	currentSectorId := startingSectorId

	var err error
	for currentSectorId != END_OF_CHAIN && (limit <= 0 || len(sectorIds) < limit) {
		// A chain can not be longer than the table, so a longer walk is a loop.
		if len(sectorIds) >= alloc.Len() {
			return nil, fmt.Errorf("chain starting at sector %v does not terminate: %w", startingSectorId, ErrorInvalidCFB)
		}

		sectorIds = append(sectorIds, currentSectorId)
		currentSectorId, err = alloc.Next(currentSectorId)
		if err != nil {
			return nil, err
		}
	}

	if limit > 0 && len(sectorIds) < limit {
		return nil, fmt.Errorf("chain starting at sector %v has %v sectors, expected %v: %w",
			startingSectorId, len(sectorIds), limit, ErrorTruncated)
	}

	return &Chain{
		source:    source,
		SectorIds: sectorIds,
	}, nil
}

func (c *Chain) NumSectors() uint32 {
	return uint32(len(c.SectorIds))
}

func (c *Chain) Len() uint64 {
	return uint64(c.source.SectorLen() * len(c.SectorIds))
}

func (c *Chain) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	totalLen := c.Len()
	remainingInChain := totalLen - c.OffsetFromStart
	maxLen := min(uint64(len(p)), remainingInChain)
	if maxLen == 0 {
		return 0, io.EOF
	}

	sectorLen := uint64(c.source.SectorLen())
	currentSectorId := c.SectorIds[c.OffsetFromStart/sectorLen]
	offsetWithinSector := c.OffsetFromStart % sectorLen

	sector, err := c.source.Sector(currentSectorId)
	if err != nil {
		return 0, err
	}
	if offsetWithinSector >= uint64(len(sector)) {
		return 0, fmt.Errorf("sector %v ends after %v bytes: %w", currentSectorId, len(sector), ErrorTruncated)
	}

	bytesRead := copy(p[:maxLen], sector[offsetWithinSector:])
	c.OffsetFromStart += uint64(bytesRead)
	return bytesRead, nil
}

func (c *Chain) Seek(offset int64, whence int) (int64, error) {
	length := c.Len()
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = int64(c.OffsetFromStart) + offset
	case io.SeekEnd:
		newOffset = int64(length) + offset
	default:
		return 0, fmt.Errorf("invalid whence %v", whence)
	}

	if newOffset < 0 || newOffset > int64(length) {
		return 0, fmt.Errorf("invalid offset %v", newOffset)
	}

	c.OffsetFromStart = uint64(newOffset)
	return int64(c.OffsetFromStart), nil
}

// readChain materializes the first size bytes of a chain.
func readChain(c *Chain, size uint64) ([]byte, error) {
	if size > c.Len() {
		return nil, fmt.Errorf("stream of %v bytes spans only %v chained bytes: %w", size, c.Len(), ErrorTruncated)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(c, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("stream ended early: %w", ErrorTruncated)
		}
		return nil, err
	}

	return buf, nil
}

// sectorsFor returns ceil(size / sectorLen), capped at the largest chain a
// file can hold.
func sectorsFor(size uint64, sectorLen int) int {
	n := size / uint64(sectorLen)
	if size%uint64(sectorLen) != 0 {
		n++
	}
	return int(min(n, uint64(math.MaxInt32)))
}
