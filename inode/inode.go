// Package inode implements the multi-level indexed inode layer (§4.2):
// create, open/close with a shared open-inode table, growth, and the
// direct/indirect/double-indirect index walk. Grounded on the teacher's
// inode.go for the open-inode-table/refcount shape, with the index-block
// algorithms themselves ported from the Pintos inode.c this spec
// generalizes (allocate_inode_data, byte_to_sector, inode_close's release
// order).
package inode

import (
	"sync"

	"github.com/mcpads/pintos-filesys/bcache"
	"github.com/mcpads/pintos-filesys/device"
	"github.com/mcpads/pintos-filesys/freemap"
)

// Table is the shared, in-memory registry of open inodes, keyed by sector.
// Opening the same sector twice returns the same *Inode with a bumped
// open count, so every in-core Inode for a sector shares one cached
// OnDisk copy and one set of deny-write/remove flags (§4.2 I1).
type Table struct {
	mu   sync.Mutex
	open map[uint32]*Inode

	bc *bcache.Cache
	fm *freemap.Map

	// maxSectors is a soft cap on how many sectors any one inode may grow
	// to, independent of free-map exhaustion. Zero means no cap beyond the
	// structural direct/indirect/double-indirect maximum.
	maxSectors int
}

// NewTable builds an open-inode table over bc and fm. maxSectors caps the
// sector count any single inode may grow to; zero means unbounded (up to
// the structural maximum).
func NewTable(bc *bcache.Cache, fm *freemap.Map, maxSectors int) *Table {
	return &Table{open: make(map[uint32]*Inode), bc: bc, fm: fm, maxSectors: maxSectors}
}

// Inode is one in-core inode. openCount, removed and denyWriteCount are
// protected by the owning Table's lock; growth of disk (its sector-index
// arrays and Length) is serialized by growMu (§9 open question 3).
type Inode struct {
	table *Table

	sector         uint32
	openCount      int
	removed        bool
	denyWriteCount int

	disk *OnDisk

	growMu sync.Mutex
}

// Create formats a fresh inode of the given length at sector, allocating
// whatever direct/indirect/double-indirect sectors its length requires. It
// does not open the inode. parent is the owning directory's sector, or
// None for a non-directory file (§3 I3).
func Create(t *Table, sector, length, parent uint32) bool {
	d := newOnDisk(sector, parent)
	d.Length = length

	sectors := int(bytesToSectors(length))
	if t.maxSectors > 0 && sectors > t.maxSectors {
		return false
	}
	if !growFile(d, sectors, 0, t.bc, t.fm) {
		return false
	}
	t.bc.Write(sector, d.encode())
	return true
}

// Open returns the in-core Inode for sector, reading it from disk on first
// open and sharing the existing one (with a bumped open count) on every
// subsequent open, per §4.2 I1.
func Open(t *Table, sector uint32) *Inode {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ino, ok := t.open[sector]; ok {
		ino.openCount++
		return ino
	}

	buf := make([]byte, device.SectorSize)
	t.bc.Read(sector, buf)
	ino := &Inode{table: t, sector: sector, openCount: 1, disk: decodeOnDisk(buf)}
	t.open[sector] = ino
	return ino
}

// Reopen bumps ino's open count, for callers that already hold a reference
// (e.g. a directory entry resolved to an inode already open elsewhere).
func Reopen(ino *Inode) *Inode {
	ino.table.mu.Lock()
	ino.openCount++
	ino.table.mu.Unlock()
	return ino
}

// Remove marks ino for deletion: its sectors are released once the last
// open reference is closed, per §4.2's deferred-delete semantics.
func Remove(ino *Inode) {
	ino.table.mu.Lock()
	ino.removed = true
	ino.table.mu.Unlock()
}

// Close drops one open reference. On the last close of an inode marked
// removed, its sectors (self, direct, indirect, double-indirect, in that
// order) are released back to the free map.
func (ino *Inode) Close() {
	t := ino.table
	t.mu.Lock()
	ino.openCount--
	if ino.openCount > 0 {
		t.mu.Unlock()
		return
	}
	delete(t.open, ino.sector)
	removed := ino.removed
	t.mu.Unlock()

	if removed {
		ino.releaseAll()
	}
}

// releaseAll frees every sector this inode owns, in the exact order
// inode_close uses: self, then direct slots stopping at the first NONE,
// then each indirect block's leaves (again stopping at the first NONE,
// which also stops the outer indirect-block loop), then the
// double-indirect block's nested leaves and finally itself.
func (ino *Inode) releaseAll() {
	fm, bc := ino.table.fm, ino.table.bc
	d := ino.disk

	fm.Release(ino.sector, 1)

	for i := 0; i < DirectCount; i++ {
		if d.Direct[i] == None {
			break
		}
		fm.Release(d.Direct[i], 1)
	}

	for i := 0; i < IndirectCount; i++ {
		sec := d.Indirect[i]
		if sec == None {
			break
		}
		buf := make([]byte, device.SectorSize)
		bc.Read(sec, buf)
		idi := decodeIndirect(buf)
		stop := releaseLeaves(fm, idi)
		fm.Release(sec, 1)
		if stop {
			break
		}
	}

	if d.DoubleIndirect != None {
		buf := make([]byte, device.SectorSize)
		bc.Read(d.DoubleIndirect, buf)
		iddi := decodeIndirect(buf)
		for i := 0; i < PerBlock; i++ {
			sec := iddi[i]
			if sec == None {
				break
			}
			buf2 := make([]byte, device.SectorSize)
			bc.Read(sec, buf2)
			idi := decodeIndirect(buf2)
			stop := releaseLeaves(fm, idi)
			fm.Release(sec, 1)
			if stop {
				break
			}
		}
		fm.Release(d.DoubleIndirect, 1)
	}
}

// releaseLeaves releases every allocated sector in one indirect block,
// stopping at the first NONE slot, and reports whether it stopped early
// (so the caller's own loop over indirect blocks also stops there).
func releaseLeaves(fm *freemap.Map, idi *indirectBlock) bool {
	for i := 0; i < PerBlock; i++ {
		if idi[i] == None {
			return true
		}
		fm.Release(idi[i], 1)
	}
	return false
}

// Sector returns the sector this inode is stored at, its stable identity.
func (ino *Inode) Sector() uint32 { return ino.sector }

// Parent returns the owning directory's sector, or None for a file.
func (ino *Inode) Parent() uint32 { return ino.disk.ParentDir }

// IsDir reports whether this inode is a directory.
func (ino *Inode) IsDir() bool { return ino.disk.IsDir() }

// Length returns the inode's current byte length.
func (ino *Inode) Length() int { return int(ino.disk.Length) }

// DenyWrite disables writes through this inode's own file handle (used
// while it is the backing file of a running executable, say). Matches the
// assertion in inode_deny_write: a sector cannot be write-denied more
// times than it has open references.
func (ino *Inode) DenyWrite() {
	ino.table.mu.Lock()
	defer ino.table.mu.Unlock()
	ino.denyWriteCount++
	if ino.denyWriteCount > ino.openCount {
		panic("inode: deny_write_cnt exceeds open_cnt")
	}
}

// DenyWriteActive reports whether this inode currently has an outstanding
// DenyWrite, e.g. because it backs a running executable (§4.2 I4).
func (ino *Inode) DenyWriteActive() bool {
	ino.table.mu.Lock()
	defer ino.table.mu.Unlock()
	return ino.denyWriteCount > 0
}

// AllowWrite reverses one DenyWrite.
func (ino *Inode) AllowWrite() {
	ino.table.mu.Lock()
	defer ino.table.mu.Unlock()
	if ino.denyWriteCount <= 0 {
		panic("inode: allow_write with no matching deny_write")
	}
	ino.denyWriteCount--
}

// SectorCount reports how many sectors this inode currently owns: itself,
// every allocated data sector, and every allocated index sector. fsck
// uses this to cross-check the free-map's occupied count against what the
// directory tree actually reaches (§8 P1/P2).
func (ino *Inode) SectorCount() int {
	bc := ino.table.bc
	d := ino.disk
	n := 1

	for i := 0; i < DirectCount; i++ {
		if d.Direct[i] == None {
			break
		}
		n++
	}

	for i := 0; i < IndirectCount; i++ {
		sec := d.Indirect[i]
		if sec == None {
			break
		}
		n++
		n += countLeaves(bc, sec)
	}

	if d.DoubleIndirect != None {
		n++
		buf := make([]byte, device.SectorSize)
		bc.Read(d.DoubleIndirect, buf)
		iddi := decodeIndirect(buf)
		for i := 0; i < PerBlock; i++ {
			sec := iddi[i]
			if sec == None {
				break
			}
			n++
			n += countLeaves(bc, sec)
		}
	}
	return n
}

func countLeaves(bc *bcache.Cache, indirectSector uint32) int {
	buf := make([]byte, device.SectorSize)
	bc.Read(indirectSector, buf)
	idi := decodeIndirect(buf)
	n := 0
	for i := 0; i < PerBlock; i++ {
		if idi[i] == None {
			break
		}
		n++
	}
	return n
}
