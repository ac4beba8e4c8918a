package device

import (
	"os"
)

// File is a block device backed by a disk image file, addressed by sector
// via ReadAt/WriteAt. Grounded on the teacher's FileDevice, with the
// request/response channel loop dropped: os.File's ReadAt/WriteAt are
// already safe for concurrent use without an external actor.
type File struct {
	f       *os.File
	sectors uint32
}

// OpenFile opens an existing disk image of exactly sectors*SectorSize bytes.
func OpenFile(path string, sectors uint32) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &File{f: f, sectors: sectors}, nil
}

// CreateFile creates a fresh disk image of sectors*SectorSize zeroed bytes.
func CreateFile(path string, sectors uint32) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(sectors) * SectorSize); err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, sectors: sectors}, nil
}

func (d *File) ReadSector(sector uint32, dst []byte) error {
	if err := checkBounds(sector, d.sectors, dst); err != nil {
		return err
	}
	_, err := d.f.ReadAt(dst, int64(sector)*SectorSize)
	return err
}

func (d *File) WriteSector(sector uint32, src []byte) error {
	if err := checkBounds(sector, d.sectors, src); err != nil {
		return err
	}
	_, err := d.f.WriteAt(src, int64(sector)*SectorSize)
	return err
}

func (d *File) Size() uint32 {
	return d.sectors
}

// Close releases the underlying file handle.
func (d *File) Close() error {
	return d.f.Close()
}
