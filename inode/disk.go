package inode

import (
	"bytes"
	"encoding/binary"

	"github.com/mcpads/pintos-filesys/device"
)

const (
	// DirectCount is the number of direct sector slots in an inode.
	DirectCount = 10
	// IndirectCount is the number of indirect-block slots in an inode.
	IndirectCount = 10
	// PerBlock is the number of sector indices that fit in one indirect or
	// double-indirect block.
	PerBlock = device.SectorSize / 4

	magic = 0x494e4f44 // "INOD"

	// maxDirectBytes is the byte range covered by the direct slots.
	maxDirectBytes = DirectCount * device.SectorSize
	// maxIndirectBytes is the byte range covered by the indirect slots.
	maxIndirectBytes = IndirectCount * PerBlock * device.SectorSize

	// directSectors/indirectRegionEnd are sector-index (not
	// byte) boundaries used while walking allocate()'s logical index i.
	directSectors     = DirectCount
	indirectRegionEnd = DirectCount + IndirectCount*PerBlock
)

// None is the sentinel meaning "this slot has no sector," preserved exactly
// as the on-disk 0xFFFFFFFF per §9.
const None uint32 = 0xFFFFFFFF

// OnDisk is the inode exactly as it is laid out in its one sector (§6):
// start | length | magic | unused[103] | parent_dir | direct[10] |
// indirect[10] | double_indirect.
type OnDisk struct {
	Start          uint32
	Length         uint32
	Magic          uint32
	Unused         [103]uint32
	ParentDir      uint32
	Direct         [DirectCount]uint32
	Indirect       [IndirectCount]uint32
	DoubleIndirect uint32
}

// IsDir reports whether this inode is a directory (§3 I3: parent_dir==NONE
// means regular file).
func (d *OnDisk) IsDir() bool {
	return d.ParentDir != None
}

func newOnDisk(selfSector, parent uint32) *OnDisk {
	d := &OnDisk{Start: selfSector, Magic: magic, ParentDir: parent}
	fillNone(d.Direct[:])
	fillNone(d.Indirect[:])
	d.DoubleIndirect = None
	return d
}

func fillNone(s []uint32) {
	for i := range s {
		s[i] = None
	}
}

func decodeOnDisk(buf []byte) *OnDisk {
	d := new(OnDisk)
	_ = binary.Read(bytes.NewReader(buf), binary.LittleEndian, d)
	return d
}

func (d *OnDisk) encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(device.SectorSize)
	_ = binary.Write(buf, binary.LittleEndian, d)
	return buf.Bytes()
}

// indirectBlock is one sector's worth of 128 sector indices.
type indirectBlock [PerBlock]uint32

func decodeIndirect(buf []byte) *indirectBlock {
	b := new(indirectBlock)
	_ = binary.Read(bytes.NewReader(buf), binary.LittleEndian, b)
	return b
}

func (b *indirectBlock) encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(device.SectorSize)
	_ = binary.Write(buf, binary.LittleEndian, b)
	return buf.Bytes()
}
