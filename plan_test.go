package cfb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSectorPlan(t *testing.T) {
	tests := []struct {
		name          string
		version       Version
		streamSectors int
		dirEntries    int
		wantFat       int
		wantDifat     int
		wantTotal     int
	}{
		{name: "empty", version: V3, dirEntries: 1, wantFat: 1, wantTotal: 2},
		{name: "fills one FAT sector", version: V3, streamSectors: 126, dirEntries: 1, wantFat: 1, wantTotal: 128},
		{name: "spills into a second FAT sector", version: V3, streamSectors: 127, dirEntries: 1, wantFat: 2, wantTotal: 130},
		{name: "below header DIFAT limit", version: V3, streamSectors: 13000, dirEntries: 2, wantFat: 103, wantTotal: 13104},
		{name: "last header DIFAT slot", version: V3, streamSectors: 13842, dirEntries: 2, wantFat: 109, wantTotal: 13952},
		{name: "first DIFAT sector", version: V3, streamSectors: 13843, dirEntries: 2, wantFat: 110, wantDifat: 1, wantTotal: 13955},
		{name: "v4 empty", version: V4, dirEntries: 1, wantFat: 1, wantTotal: 2},
		{name: "v4 large", version: V4, streamSectors: 1024 * 110, dirEntries: 1, wantFat: 111, wantDifat: 1, wantTotal: 112753},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := newSectorPlan(tt.version, 0, 0, tt.streamSectors, tt.dirEntries)
			require.NoError(t, err)
			require.Equal(t, tt.wantFat, plan.FatSectors)
			require.Equal(t, tt.wantDifat, plan.DifatSectors)
			require.Equal(t, tt.wantTotal, plan.Total())
			require.LessOrEqual(t, plan.Iterations, maxPlanIterations)

			// The FAT must map every sector, its own included.
			require.GreaterOrEqual(t, plan.FatSectors*tt.version.FatEntriesPerSector(), plan.Total())
			require.Less(t, (plan.FatSectors-1)*tt.version.FatEntriesPerSector(), plan.Total())
		})
	}
}

func TestSectorPlanMiniStream(t *testing.T) {
	plan, err := newSectorPlan(V3, 4032, 63, 0, 5)
	require.NoError(t, err)
	require.Equal(t, 8, plan.MiniStreamSectors)
	require.Equal(t, 1, plan.MinifatSectors)
	require.Equal(t, 2, plan.DirSectors)
	require.Equal(t, 1, plan.FatSectors)
	require.Equal(t, 12, plan.Total())
}

func TestSectorPlanCapacity(t *testing.T) {
	_, err := newSectorPlan(V3, 0, 0, int(MAX_REGULAR_SECTOR), 1)
	require.ErrorIs(t, err, ErrorCapacity)
}
