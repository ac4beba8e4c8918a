package inode

import (
	"github.com/mcpads/pintos-filesys/bcache"
	"github.com/mcpads/pintos-filesys/device"
	"github.com/mcpads/pintos-filesys/freemap"
)

func bytesToSectors(n uint32) uint32 {
	return (n + device.SectorSize - 1) / device.SectorSize
}

// byteToSector maps a file offset to a device sector, walking direct,
// indirect, then double-indirect index blocks, exactly per §4.2. It panics
// on an unallocated slot within [0, length) rather than returning a
// sentinel, per §9 open question 2: allocate always precedes any read of a
// gap, so a NONE slot inside the valid range is an invariant violation, not
// a legitimate sparse hole.
func byteToSector(d *OnDisk, pos int, bc *bcache.Cache) (uint32, bool) {
	if d.Length == 0 {
		return 0, false
	}

	buf := make([]byte, device.SectorSize)

	switch {
	case pos < maxDirectBytes:
		s := d.Direct[pos/device.SectorSize]
		if s == None {
			panic("inode: byte_to_sector hit an unallocated direct slot")
		}
		return s, true

	case pos < maxDirectBytes+maxIndirectBytes:
		group := (pos - maxDirectBytes) / (PerBlock * device.SectorSize)
		ind := d.Indirect[group]
		if ind == None {
			panic("inode: byte_to_sector hit an unallocated indirect slot")
		}
		remaining := (pos - maxDirectBytes) % (PerBlock * device.SectorSize)
		bc.Read(ind, buf)
		idi := decodeIndirect(buf)
		s := idi[remaining/device.SectorSize]
		if s == None {
			panic("inode: byte_to_sector hit an unallocated slot inside an indirect block")
		}
		return s, true

	case pos < int(d.Length):
		if d.DoubleIndirect == None {
			panic("inode: byte_to_sector hit an unallocated double-indirect slot")
		}
		bc.Read(d.DoubleIndirect, buf)
		iddi := decodeIndirect(buf)
		excess := pos - maxDirectBytes - maxIndirectBytes
		ind := iddi[excess/(PerBlock*device.SectorSize)]
		if ind == None {
			panic("inode: byte_to_sector hit an unallocated indirect slot via double-indirect")
		}
		remaining := excess % (PerBlock * device.SectorSize)
		bc.Read(ind, buf)
		idi := decodeIndirect(buf)
		s := idi[remaining/device.SectorSize]
		if s == None {
			panic("inode: byte_to_sector hit an unallocated slot inside a double-indirect leaf")
		}
		return s, true

	default:
		return 0, false
	}
}

// growFile extends d from start sectors to sectors sectors, walking logical
// sector indices and maintaining in-core copies of the indirect and
// double-indirect blocks it is filling, exactly per §4.2's allocate. A
// partial failure (free-map exhaustion) leaves already-allocated sectors
// for this call unreleased — they become orphans, matching §9 open
// question 1 — and d.Length is left for the caller to decide not to update.
func growFile(d *OnDisk, sectors, start int, bc *bcache.Cache, fm *freemap.Map) bool {
	var idi indirectBlock
	fillNone(idi[:])
	if start >= directSectors && start < indirectRegionEnd {
		if startSec := d.Indirect[(start-directSectors)/PerBlock]; startSec != None {
			buf := make([]byte, device.SectorSize)
			bc.Read(startSec, buf)
			idi = *decodeIndirect(buf)
		}
	}

	var iddi indirectBlock
	fillNone(iddi[:])
	if d.DoubleIndirect != None {
		buf := make([]byte, device.SectorSize)
		bc.Read(d.DoubleIndirect, buf)
		iddi = *decodeIndirect(buf)
		if start >= indirectRegionEnd {
			if startSec := iddi[(start-indirectRegionEnd)/PerBlock]; startSec != None {
				bc.Read(startSec, buf)
				idi = *decodeIndirect(buf)
			}
		}
	}

	zero := make([]byte, device.SectorSize)

	for i := start; i < sectors; i++ {
		switch {
		case i < directSectors:
			sec, err := fm.Allocate(1)
			if err != nil {
				return false
			}
			d.Direct[i] = sec
			bc.Write(sec, zero)

		case i < indirectRegionEnd:
			ia := i - directSectors
			group, slot := ia/PerBlock, ia%PerBlock
			if slot == 0 {
				sec, err := fm.Allocate(1)
				if err != nil {
					return false
				}
				d.Indirect[group] = sec
				fillNone(idi[:])
			}
			if idi[slot] != None {
				panic("inode: growFile revisited an already-allocated indirect slot")
			}
			sec, err := fm.Allocate(1)
			if err != nil {
				return false
			}
			idi[slot] = sec
			bc.Write(sec, zero)
			if slot == PerBlock-1 || i == sectors-1 {
				bc.Write(d.Indirect[group], idi.encode())
			}

		default:
			ia := i - indirectRegionEnd
			if i == indirectRegionEnd {
				sec, err := fm.Allocate(1)
				if err != nil {
					return false
				}
				d.DoubleIndirect = sec
			}
			group, slot := ia/PerBlock, ia%PerBlock
			if slot == 0 {
				sec, err := fm.Allocate(1)
				if err != nil {
					return false
				}
				iddi[group] = sec
				fillNone(idi[:])
			}
			if idi[slot] != None {
				panic("inode: growFile revisited an already-allocated double-indirect leaf slot")
			}
			sec, err := fm.Allocate(1)
			if err != nil {
				return false
			}
			idi[slot] = sec
			bc.Write(sec, zero)
			if slot == PerBlock-1 || i == sectors-1 {
				bc.Write(iddi[group], idi.encode())
			}
			if i == sectors-1 {
				bc.Write(d.DoubleIndirect, iddi.encode())
			}
		}
	}
	return true
}
