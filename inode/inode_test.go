package inode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpads/pintos-filesys/bcache"
	"github.com/mcpads/pintos-filesys/device"
	"github.com/mcpads/pintos-filesys/freemap"
)

func newTestEnv(t *testing.T, sectors uint32) (*freemap.Map, *Table) {
	dev := device.NewMemory(sectors)
	bc := bcache.New(dev, time.Hour, 0)
	t.Cleanup(bc.Close)
	fm, err := freemap.Format(dev, int(sectors), 0)
	require.NoError(t, err)
	return fm, NewTable(bc, fm, 0)
}

// TestGrowAcrossDirectIndirectDoubleIndirect is spec scenario 1: growing a
// file across the direct, indirect, and double-indirect boundaries in
// separate writes, and reading back the exact bytes written plus zeros
// everywhere else.
func TestGrowAcrossDirectIndirectDoubleIndirect(t *testing.T) {
	fm, tab := newTestEnv(t, 4096)

	sector, err := fm.Allocate(1)
	require.NoError(t, err)
	require.True(t, Create(tab, sector, 0, None))

	ino := Open(tab, sector)
	defer ino.Close()

	n := ino.WriteAt([]byte{0xAA}, 10*512-1)
	assert.Equal(t, 1, n)
	assert.Equal(t, 5120, ino.Length())

	n = ino.WriteAt([]byte{0xBB}, 10*512+128*512)
	assert.Equal(t, 1, n)
	assert.Equal(t, 70657, ino.Length())
	assert.NotEqual(t, None, ino.disk.Indirect[1])

	n = ino.WriteAt([]byte{0xCC}, (10+10*128)*512)
	assert.Equal(t, 1, n)
	assert.NotEqual(t, None, ino.disk.DoubleIndirect)

	buf := make([]byte, 1)
	ino.ReadAt(buf, 0)
	assert.Equal(t, byte(0), buf[0], "untouched byte must read as zero")

	ino.ReadAt(buf, 10*512-1)
	assert.Equal(t, byte(0xAA), buf[0])

	ino.ReadAt(buf, 10*512+128*512)
	assert.Equal(t, byte(0xBB), buf[0])

	ino.ReadAt(buf, (10+10*128)*512)
	assert.Equal(t, byte(0xCC), buf[0])
}

// TestWritePastEOFZeroFillsHole is spec P3.
func TestWritePastEOFZeroFillsHole(t *testing.T) {
	fm, tab := newTestEnv(t, 64)
	sector, err := fm.Allocate(1)
	require.NoError(t, err)
	require.True(t, Create(tab, sector, 0, None))
	ino := Open(tab, sector)
	defer ino.Close()

	ino.WriteAt([]byte{0x11}, 2000)
	assert.Equal(t, 2001, ino.Length())

	hole := make([]byte, 2000)
	n := ino.ReadAt(hole, 0)
	require.Equal(t, 2000, n)
	for i, b := range hole {
		require.Equalf(t, byte(0), b, "byte %d of hole not zero", i)
	}
}

// TestReadPastEOFReturnsShortRead covers the read side of the hole policy.
func TestReadPastEOFReturnsShortRead(t *testing.T) {
	_, tab := newTestEnv(t, 64)
	require.True(t, Create(tab, 1, 10, None))
	ino := Open(tab, 1)
	defer ino.Close()

	buf := make([]byte, 100)
	n := ino.ReadAt(buf, 5)
	assert.Equal(t, 5, n)
}

// TestDenyWriteBlocksWrites is spec P7.
func TestDenyWriteBlocksWrites(t *testing.T) {
	_, tab := newTestEnv(t, 64)
	require.True(t, Create(tab, 1, 0, None))
	ino := Open(tab, 1)
	defer ino.Close()

	ino.DenyWrite()
	n := ino.WriteAt([]byte("hello"), 0)
	assert.Equal(t, 0, n)
	ino.AllowWrite()

	n = ino.WriteAt([]byte("hello"), 0)
	assert.Equal(t, 5, n)
}

// TestDenyWriteInvariant is spec §4.2 I4.
func TestDenyWriteInvariant(t *testing.T) {
	_, tab := newTestEnv(t, 64)
	require.True(t, Create(tab, 1, 0, None))
	ino := Open(tab, 1) // openCount == 1
	defer ino.Close()

	assert.Panics(t, func() {
		ino.DenyWrite()
		ino.DenyWrite() // second deny exceeds open_count == 1
	})
}

// TestRemoveOnLastCloseReleasesSectors is spec P2.
func TestRemoveOnLastCloseReleasesSectors(t *testing.T) {
	fm, tab := newTestEnv(t, 64)
	sector, err := fm.Allocate(1)
	require.NoError(t, err)
	require.True(t, Create(tab, sector, 2000, None)) // a handful of direct sectors

	before := fm.Occupied()

	ino := Open(tab, sector)
	owned := ino.SectorCount()
	Remove(ino)
	ino.Close()

	assert.Equal(t, before-owned, fm.Occupied())
}

// TestRemoveWhileStillOpenDefersRelease is spec scenario 2's tail half.
func TestRemoveWhileStillOpenDefersRelease(t *testing.T) {
	fm, tab := newTestEnv(t, 64)
	sector, err := fm.Allocate(1)
	require.NoError(t, err)
	require.True(t, Create(tab, sector, 100, None))

	before := fm.Occupied()

	first := Open(tab, sector)
	second := Open(tab, sector) // same inode, bumped refcount
	Remove(first)

	first.Close()
	assert.Equal(t, before, fm.Occupied(), "sectors must stay allocated while still open")

	second.Close()
	assert.Less(t, fm.Occupied(), before, "sectors released once the last reference closes")
}

// TestMaxSectorsCapBlocksGrowthBeyondLimit exercises Table's configurable
// per-inode sector cap independent of free-map exhaustion.
func TestMaxSectorsCapBlocksGrowthBeyondLimit(t *testing.T) {
	dev := device.NewMemory(64)
	bc := bcache.New(dev, time.Hour, 0)
	t.Cleanup(bc.Close)
	fm, err := freemap.Format(dev, 64, 0)
	require.NoError(t, err)
	tab := NewTable(bc, fm, 3)

	sector, err := fm.Allocate(1)
	require.NoError(t, err)
	assert.False(t, Create(tab, sector, 4*512, None), "length beyond the cap must fail at create time")
	require.True(t, Create(tab, sector, 0, None))

	ino := Open(tab, sector)
	defer ino.Close()

	n := ino.WriteAt(make([]byte, 512), 2*512)
	assert.Equal(t, 512, n, "growth within the cap must succeed")

	n = ino.WriteAt(make([]byte, 512), 10*512)
	assert.Equal(t, 0, n, "growth past the cap must fail")
}
