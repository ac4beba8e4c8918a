// Package device models the sector-addressed block device that sits below
// the free-map and buffer cache. It is the literal hardware boundary: the
// rest of the filesystem core never sees anything smaller than a sector or
// anything larger than a plain byte slice.
package device

import (
	"fmt"
)

// SectorSize is the fixed size of a sector in bytes.
const SectorSize = 512

// BlockDevice is the interface every layer above L0 consumes. It is
// intentionally tiny: read a sector, write a sector, report the sector
// count.
type BlockDevice interface {
	ReadSector(sector uint32, dst []byte) error
	WriteSector(sector uint32, src []byte) error
	Size() uint32 // number of sectors
}

// ErrOutOfRange is returned when a sector number is beyond the device's
// reported size.
type ErrOutOfRange struct {
	Sector uint32
	Size   uint32
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("device: sector %d out of range (size %d)", e.Sector, e.Size)
}

func checkBounds(sector, size uint32, buf []byte) error {
	if sector >= size {
		return &ErrOutOfRange{Sector: sector, Size: size}
	}
	if len(buf) != SectorSize {
		return fmt.Errorf("device: buffer must be exactly %d bytes, got %d", SectorSize, len(buf))
	}
	return nil
}
