package cfb

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
)

// encoder holds the state of one Encode call. Sectors are handed out in
// increasing order, so a sector's id is also its index in fat.
type encoder struct {
	version   Version
	sectorLen int
	plan      sectorPlan

	entries  []*DirEntry
	payloads [][]byte

	miniStream []byte
	minifat    []uint32

	body []byte
	fat  []uint32

	inlineDifat    []uint32
	overflowDifat  []uint32
	fatSectorIds   []uint32
	difatSectorIds []uint32

	log *zap.Logger
}

func encode(root *Storage, o options) ([]byte, error) {
	if o.version != V3 && o.version != V4 {
		return nil, fmt.Errorf("version %v: %w", o.version, ErrorUnsupportedVersion)
	}

	entries, payloads, err := flatten(root)
	if err != nil {
		return nil, err
	}

	e := &encoder{
		version:   o.version,
		sectorLen: o.version.SectorLen(),
		entries:   entries,
		payloads:  payloads,
		log:       o.log,
	}

	streamSectors := e.packMiniStream()

	e.plan, err = newSectorPlan(e.version, len(e.miniStream), len(e.minifat), streamSectors, len(e.entries))
	if err != nil {
		return nil, err
	}

	o.log.Debug("planned sectors",
		zap.Int("total", e.plan.Total()),
		zap.Int("fat", e.plan.FatSectors),
		zap.Int("difat", e.plan.DifatSectors),
		zap.Int("minifat", e.plan.MinifatSectors),
		zap.Int("miniStream", e.plan.MiniStreamSectors),
		zap.Int("streams", e.plan.StreamSectors),
		zap.Int("directory", e.plan.DirSectors),
		zap.Int("iterations", e.plan.Iterations),
	)

	return e.write()
}

// packMiniStream lays every stream below the cutoff into the mini stream and
// builds the MiniFAT. It returns the regular sectors the other streams need.
func (e *encoder) packMiniStream() int {
	streamSectors := 0

	for i, entry := range e.entries {
		if entry.ObjType != ObjStream {
			continue
		}

		data := e.payloads[i]
		entry.StreamSize = uint64(len(data))

		if len(data) == 0 {
			entry.StartingSector = END_OF_CHAIN
			continue
		}

		if uint64(len(data)) >= uint64(MINI_STREAM_CUTOFF) {
			streamSectors += sectorsFor(uint64(len(data)), e.sectorLen)
			continue
		}

		start := uint32(len(e.minifat))
		n := sectorsFor(uint64(len(data)), MINI_SECTOR_LEN)
		for k := 1; k < n; k++ {
			e.minifat = append(e.minifat, start+uint32(k))
		}
		e.minifat = append(e.minifat, END_OF_CHAIN)

		entry.StartingSector = start
		e.miniStream = append(e.miniStream, data...)
		e.miniStream = append(e.miniStream, make([]byte, n*MINI_SECTOR_LEN-len(data))...)
	}

	return streamSectors
}

func (e *encoder) write() ([]byte, error) {
	e.body = make([]byte, e.plan.Total()*e.sectorLen)
	e.fat = make([]uint32, 0, e.plan.Total())

	for i := 0; i < e.plan.FatSectors; i++ {
		id, err := e.allocSector(FAT_SECTOR)
		if err != nil {
			return nil, err
		}
		e.fatSectorIds = append(e.fatSectorIds, id)
	}
	for i := 0; i < e.plan.DifatSectors; i++ {
		id, err := e.allocSector(DIFAT_SECTOR)
		if err != nil {
			return nil, err
		}
		e.difatSectorIds = append(e.difatSectorIds, id)
	}
	for _, id := range e.fatSectorIds {
		if err := e.registerFatSector(id); err != nil {
			return nil, err
		}
	}

	minifatIds, err := e.allocChain(e.plan.MinifatSectors)
	if err != nil {
		return nil, err
	}
	dirIds, err := e.allocChain(e.plan.DirSectors)
	if err != nil {
		return nil, err
	}

	root := e.entries[ROOT_STREAM_ID]
	root.StreamSize = uint64(len(e.miniStream))
	root.StartingSector, err = e.writeStream(e.miniStream)
	if err != nil {
		return nil, err
	}

	for i, entry := range e.entries {
		if entry.ObjType != ObjStream || entry.StreamSize < uint64(MINI_STREAM_CUTOFF) {
			continue
		}
		entry.StartingSector, err = e.writeStream(e.payloads[i])
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", entry.Name, err)
		}
	}

	if int(e.nextSector()) != e.plan.Total() {
		return nil, fmt.Errorf("wrote %v sectors, planned %v: %w", e.nextSector(), e.plan.Total(), ErrorCapacity)
	}

	if err := e.writeTable(minifatIds, e.minifat); err != nil {
		return nil, fmt.Errorf("MiniFAT: %w", err)
	}
	if err := e.writeDirectory(dirIds); err != nil {
		return nil, err
	}
	if err := e.writeTable(e.fatSectorIds, e.fat); err != nil {
		return nil, fmt.Errorf("FAT: %w", err)
	}
	e.writeDifat()

	header := Header{
		Version:             e.version,
		NumFatSectors:       uint32(len(e.fatSectorIds)),
		FirstDirSector:      dirIds[0],
		FirstMinifatSector:  firstOrEnd(minifatIds),
		NumMinifatSector:    uint32(len(minifatIds)),
		FirstDifatSector:    firstOrEnd(e.difatSectorIds),
		NumDifatSectors:     uint32(len(e.difatSectorIds)),
		InitialDifatEntries: e.inlineDifat,
	}
	if e.version == V4 {
		header.NumDirSectors = uint32(len(dirIds))
	}

	head, err := header.Bytes()
	if err != nil {
		return nil, err
	}

	return append(head, e.body...), nil
}

func (e *encoder) nextSector() uint32 {
	return uint32(len(e.fat))
}

// allocSector hands out the next sector and records mark as its FAT entry.
func (e *encoder) allocSector(mark uint32) (uint32, error) {
	id := e.nextSector()
	if int(id) >= e.plan.Total() {
		return 0, fmt.Errorf("sector %v is past the planned %v: %w", id, e.plan.Total(), ErrorCapacity)
	}
	e.fat = append(e.fat, mark)
	return id, nil
}

// allocChain hands out n sectors linked into one FAT chain.
func (e *encoder) allocChain(n int) ([]uint32, error) {
	ids := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		id, err := e.allocSector(END_OF_CHAIN)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			e.fat[ids[i-1]] = id
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// registerFatSector records a FAT sector location: the header's inline table
// first, then the DIFAT sectors.
func (e *encoder) registerFatSector(id uint32) error {
	if len(e.inlineDifat) < NUM_DIFAT_ENTRIES_IN_HEADER {
		e.inlineDifat = append(e.inlineDifat, id)
		return nil
	}
	if len(e.overflowDifat) >= len(e.difatSectorIds)*e.version.DifatEntriesPerSector() {
		return fmt.Errorf("no DIFAT slot for FAT sector %v: %w", id, ErrorCapacity)
	}
	e.overflowDifat = append(e.overflowDifat, id)
	return nil
}

func (e *encoder) sector(id uint32) []byte {
	start := int(id) * e.sectorLen
	return e.body[start : start+e.sectorLen]
}

// writeStream allocates a chain for data, copies it in and returns the first
// sector, or END_OF_CHAIN for empty data.
func (e *encoder) writeStream(data []byte) (uint32, error) {
	if len(data) == 0 {
		return END_OF_CHAIN, nil
	}

	ids, err := e.allocChain(sectorsFor(uint64(len(data)), e.sectorLen))
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		copy(e.sector(id), data[i*e.sectorLen:])
	}
	return ids[0], nil
}

// writeTable stores a FAT or MiniFAT into its sectors, padded with FREE_SECTOR.
func (e *encoder) writeTable(ids []uint32, table []uint32) error {
	perSector := e.version.FatEntriesPerSector()
	if len(table) > len(ids)*perSector {
		return fmt.Errorf("%v entries do not fit %v sectors: %w", len(table), len(ids), ErrorCapacity)
	}

	for i, id := range ids {
		sector := e.sector(id)
		for k := 0; k < perSector; k++ {
			value := FREE_SECTOR
			if idx := i*perSector + k; idx < len(table) {
				value = table[idx]
			}
			binary.LittleEndian.PutUint32(sector[k*4:], value)
		}
	}
	return nil
}

func (e *encoder) writeDirectory(ids []uint32) error {
	perSector := e.version.DirEntriesPerSector()
	if len(e.entries) > len(ids)*perSector {
		return fmt.Errorf("%v directory entries do not fit %v sectors: %w", len(e.entries), len(ids), ErrorCapacity)
	}

	free := newUnallocatedDirEntry()
	for i, id := range ids {
		sector := e.sector(id)
		for k := 0; k < perSector; k++ {
			entry := free
			if idx := i*perSector + k; idx < len(e.entries) {
				entry = e.entries[idx]
			}
			raw, err := entry.Bytes()
			if err != nil {
				return err
			}
			copy(sector[k*DIR_ENTRY_LEN:], raw)
		}
	}
	return nil
}

// writeDifat fills the DIFAT sectors with the FAT sector ids that did not fit
// the header, chaining them through their last slot.
func (e *encoder) writeDifat() {
	perSector := e.version.DifatEntriesPerSector()
	for i, id := range e.difatSectorIds {
		sector := e.sector(id)
		for k := 0; k < perSector; k++ {
			value := FREE_SECTOR
			if idx := i*perSector + k; idx < len(e.overflowDifat) {
				value = e.overflowDifat[idx]
			}
			binary.LittleEndian.PutUint32(sector[k*4:], value)
		}

		next := END_OF_CHAIN
		if i+1 < len(e.difatSectorIds) {
			next = e.difatSectorIds[i+1]
		}
		binary.LittleEndian.PutUint32(sector[perSector*4:], next)
	}
}

func firstOrEnd(ids []uint32) uint32 {
	if len(ids) == 0 {
		return END_OF_CHAIN
	}
	return ids[0]
}
