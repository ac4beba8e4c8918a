package device

import "sync"

// Memory is an in-memory block device backing test filesystems; it never
// touches disk. Grounded on the teacher's ramdisk device, stripped of the
// channel-actor plumbing since there is no asynchronous I/O to hide here.
type Memory struct {
	mu   sync.Mutex
	data [][SectorSize]byte
}

// NewMemory allocates a zeroed in-memory device of the given sector count.
func NewMemory(sectors uint32) *Memory {
	return &Memory{data: make([][SectorSize]byte, sectors)}
}

func (m *Memory) ReadSector(sector uint32, dst []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkBounds(sector, uint32(len(m.data)), dst); err != nil {
		return err
	}
	copy(dst, m.data[sector][:])
	return nil
}

func (m *Memory) WriteSector(sector uint32, src []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkBounds(sector, uint32(len(m.data)), src); err != nil {
		return err
	}
	copy(m.data[sector][:], src)
	return nil
}

func (m *Memory) Size() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint32(len(m.data))
}
