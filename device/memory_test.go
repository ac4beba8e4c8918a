package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(4)
	src := make([]byte, SectorSize)
	for i := range src {
		src[i] = byte(i)
	}
	require.NoError(t, m.WriteSector(2, src))

	dst := make([]byte, SectorSize)
	require.NoError(t, m.ReadSector(2, dst))
	assert.Equal(t, src, dst)
}

func TestMemoryOutOfRange(t *testing.T) {
	m := NewMemory(4)
	buf := make([]byte, SectorSize)
	err := m.ReadSector(4, buf)
	require.Error(t, err)
	var oor *ErrOutOfRange
	require.ErrorAs(t, err, &oor)
}

func TestMemoryWrongBufferSize(t *testing.T) {
	m := NewMemory(4)
	err := m.WriteSector(0, make([]byte, 10))
	require.Error(t, err)
}

func TestMemorySize(t *testing.T) {
	m := NewMemory(7)
	assert.EqualValues(t, 7, m.Size())
}
