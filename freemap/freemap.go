// Package freemap implements the global free-sector bitmap allocator. It
// talks directly to the block device rather than through the buffer cache:
// the cache itself has no notion of sector ownership, and bootstrapping the
// cache would otherwise need the free-map to already exist.
package freemap

import (
	"log"
	"math"
	"sync"

	"github.com/mcpads/pintos-filesys/device"
	"github.com/mcpads/pintos-filesys/fserrors"
)

// BitchunkBits is the width of one bitmap word, mirroring the teacher's
// FS_BITCHUNK_BITS allocator granularity.
const BitchunkBits = 16

// Sector holds the free-map's own bitmap, per the on-disk format (§6): the
// free-map lives at a single fixed sector.
const Sector = 0

// words is the number of 16-bit chunks that fit in one sector's bitmap.
const words = device.SectorSize / 2

// Map is the free-sector allocator. It owns its own lock, independent of
// every other lock in the filesystem (§5: "Free-map: own internal lock").
type Map struct {
	mu      sync.Mutex
	dev     device.BlockDevice
	bits    [words]uint16 // bit i set => sector i in use
	search  int            // where to resume scanning next time, à la i_search/z_search
	nbits   int            // total number of addressable sectors
}

// Load reads the persisted bitmap from Sector 0 of dev. nbits is the total
// number of sectors the bitmap tracks (bounded by one sector's worth of
// bits, 4096 at S=512, per the literal single-sector format in §6).
func Load(dev device.BlockDevice, nbits int) (*Map, error) {
	if nbits > words*BitchunkBits {
		nbits = words * BitchunkBits
	}
	m := &Map{dev: dev, nbits: nbits}
	buf := make([]byte, device.SectorSize)
	if err := dev.ReadSector(Sector, buf); err != nil {
		return nil, err
	}
	for i := 0; i < words; i++ {
		m.bits[i] = uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
	}
	return m, nil
}

// Format initializes a fresh, all-free bitmap and persists it, marking
// reserved[0:n] sectors in use up front (the free-map sector itself, the
// root directory inode, ...).
func Format(dev device.BlockDevice, nbits int, reserved ...uint32) (*Map, error) {
	if nbits > words*BitchunkBits {
		nbits = words * BitchunkBits
	}
	m := &Map{dev: dev, nbits: nbits}
	for _, r := range reserved {
		m.setBit(int(r))
	}
	if err := m.flushLocked(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Map) bitSet(bit int) bool {
	word := bit / BitchunkBits
	off := uint(bit % BitchunkBits)
	return m.bits[word]&(1<<off) != 0
}

func (m *Map) setBit(bit int) {
	word := bit / BitchunkBits
	off := uint(bit % BitchunkBits)
	m.bits[word] |= 1 << off
}

func (m *Map) clearBit(bit int) {
	word := bit / BitchunkBits
	off := uint(bit % BitchunkBits)
	m.bits[word] &^= 1 << off
}

// Allocate finds n contiguous free sectors, marks them in use, and returns
// the sector of the first one. It persists the bitmap before returning so a
// crash never observes an allocation that didn't happen.
//
// Orphaned sectors from a partial multi-sector growth that later fails are
// not rolled back by this call; that is the caller's (inode.growFile's)
// documented leak, not freemap's.
func (m *Map) Allocate(n int) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start, ok := m.findRun(n)
	if !ok {
		log.Printf("freemap: exhausted, no run of %d free sectors among %d", n, m.nbits)
		return 0, fserrors.ErrNoSpace
	}
	for b := start; b < start+n; b++ {
		m.setBit(b)
	}
	m.search = start + n
	if err := m.flushLocked(); err != nil {
		for b := start; b < start+n; b++ {
			m.clearBit(b)
		}
		return 0, err
	}
	return uint32(start), nil
}

// findRun scans for n contiguous clear bits, starting from the last
// search cursor for locality, wrapping once. Full words are skipped in one
// step via the MaxUint16 check, as in the teacher's alloc_bit.
func (m *Map) findRun(n int) (int, bool) {
	origin := m.search
	if origin >= m.nbits {
		origin = 0
	}

	// Two passes: [origin, nbits) then [0, origin). A run never wraps across
	// the seam, since a sector range allocated there would not be the
	// contiguous block its index arithmetic assumes.
	if start, ok := m.scanRun(origin, m.nbits, n); ok {
		return start, true
	}
	return m.scanRun(0, origin, n)
}

func (m *Map) scanRun(lo, hi, n int) (int, bool) {
	run := 0
	runStart := 0
	bit := lo
	for bit < hi {
		if bit%BitchunkBits == 0 && bit+BitchunkBits <= hi && m.bits[bit/BitchunkBits] == math.MaxUint16 {
			// whole word is allocated; skip it in one step
			bit += BitchunkBits
			run = 0
			continue
		}
		if !m.bitSet(bit) {
			if run == 0 {
				runStart = bit
			}
			run++
			if run == n {
				return runStart, true
			}
		} else {
			run = 0
		}
		bit++
	}
	return 0, false
}

// Release marks n sectors starting at sector free again.
func (m *Map) Release(sector uint32, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for b := int(sector); b < int(sector)+n; b++ {
		if b < 0 || b >= m.nbits {
			continue
		}
		if !m.bitSet(b) {
			panic("freemap: release of unallocated sector")
		}
		m.clearBit(b)
	}
	if int(sector) < m.search {
		m.search = int(sector)
	}
	return m.flushLocked()
}

func (m *Map) flushLocked() error {
	buf := make([]byte, device.SectorSize)
	for i := 0; i < words; i++ {
		buf[2*i] = byte(m.bits[i])
		buf[2*i+1] = byte(m.bits[i] >> 8)
	}
	return m.dev.WriteSector(Sector, buf)
}

// Occupied reports how many sectors are currently marked in-use, for fsck
// reporting.
func (m *Map) Occupied() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for b := 0; b < m.nbits; b++ {
		if m.bitSet(b) {
			n++
		}
	}
	return n
}
