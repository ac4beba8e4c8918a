package directory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpads/pintos-filesys/bcache"
	"github.com/mcpads/pintos-filesys/device"
	"github.com/mcpads/pintos-filesys/freemap"
	"github.com/mcpads/pintos-filesys/inode"
)

func newTestTable(t *testing.T) *inode.Table {
	dev := device.NewMemory(256)
	bc := bcache.New(dev, time.Hour, 0)
	t.Cleanup(bc.Close)
	fm, err := freemap.Format(dev, 256, 0)
	require.NoError(t, err)
	return inode.NewTable(bc, fm, 0)
}

func TestCreateRootParentIsItself(t *testing.T) {
	tab := newTestTable(t)
	require.True(t, Create(tab, 1, 16, 1))

	ino := inode.Open(tab, 1)
	defer ino.Close()
	dir := Open(ino)
	assert.Equal(t, uint32(1), dir.GetParent())
	assert.Equal(t, uint32(1), dir.GetInumber())
	assert.True(t, dir.IsEmpty())
}

func TestAddLookupRemove(t *testing.T) {
	tab := newTestTable(t)
	require.True(t, Create(tab, 1, 16, 1))
	ino := inode.Open(tab, 1)
	defer ino.Close()
	dir := Open(ino)

	require.NoError(t, dir.Add("foo", 5))
	sector, ok := dir.Lookup("foo")
	require.True(t, ok)
	assert.Equal(t, uint32(5), sector)
	assert.False(t, dir.IsEmpty())

	require.NoError(t, dir.Remove("foo"))
	_, ok = dir.Lookup("foo")
	assert.False(t, ok)
	assert.True(t, dir.IsEmpty())
}

func TestAddDuplicateNameFails(t *testing.T) {
	tab := newTestTable(t)
	require.True(t, Create(tab, 1, 16, 1))
	ino := inode.Open(tab, 1)
	defer ino.Close()
	dir := Open(ino)

	require.NoError(t, dir.Add("foo", 5))
	assert.Error(t, dir.Add("foo", 6))
}

// TestAddNameTooLong is spec scenario 6.
func TestAddNameTooLong(t *testing.T) {
	tab := newTestTable(t)
	require.True(t, Create(tab, 1, 16, 1))
	ino := inode.Open(tab, 1)
	defer ino.Close()
	dir := Open(ino)

	long := make([]byte, NameMax+1)
	for i := range long {
		long[i] = 'x'
	}
	assert.Error(t, dir.Add(string(long), 5))

	ok := make([]byte, NameMax)
	for i := range ok {
		ok[i] = 'x'
	}
	assert.NoError(t, dir.Add(string(ok), 5))
}

func TestAddReusesFreedSlot(t *testing.T) {
	tab := newTestTable(t)
	require.True(t, Create(tab, 1, 16, 1))
	ino := inode.Open(tab, 1)
	defer ino.Close()
	dir := Open(ino)

	require.NoError(t, dir.Add("a", 2))
	require.NoError(t, dir.Remove("a"))
	lengthBefore := ino.Length()

	require.NoError(t, dir.Add("b", 3))
	assert.Equal(t, lengthBefore, ino.Length(), "a freed slot should be reused instead of growing the file")
}

func TestReaddirSkipsRemovedEntries(t *testing.T) {
	tab := newTestTable(t)
	require.True(t, Create(tab, 1, 16, 1))
	ino := inode.Open(tab, 1)
	defer ino.Close()
	dir := Open(ino)

	require.NoError(t, dir.Add("a", 2))
	require.NoError(t, dir.Add("b", 3))
	require.NoError(t, dir.Remove("a"))

	names := map[string]bool{}
	for {
		name, ok := dir.Readdir()
		if !ok {
			break
		}
		names[name] = true
	}
	assert.Equal(t, map[string]bool{"b": true}, names)
}
