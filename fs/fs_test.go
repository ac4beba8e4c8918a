package fs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpads/pintos-filesys/device"
	"github.com/mcpads/pintos-filesys/fserrors"
)

func newTestFS(t *testing.T, sectors uint32) *FileSystem {
	dev := device.NewMemory(sectors)
	fsys, err := Format(dev, Config{FlushInterval: time.Hour})
	require.NoError(t, err)
	t.Cleanup(fsys.Close)
	return fsys
}

func TestCreateOpenReadWrite(t *testing.T) {
	fsys := newTestFS(t, 256)
	p := fsys.NewProcess()

	require.True(t, p.Create("/hello", 0))
	fd, ok := p.Open("/hello")
	require.True(t, ok)

	n, ok := p.Write(fd, []byte("hello world"))
	require.True(t, ok)
	assert.Equal(t, 11, n)

	require.True(t, p.Seek(fd, 0))
	buf := make([]byte, 11)
	n, ok = p.Read(fd, buf)
	require.True(t, ok)
	assert.Equal(t, "hello world", string(buf[:n]))

	require.True(t, p.Close(fd))
}

// TestConfigCacheSizeIsHonored exercises a non-default Config.CacheSize.
func TestConfigCacheSizeIsHonored(t *testing.T) {
	dev := device.NewMemory(256)
	fsys, err := Format(dev, Config{CacheSize: 4, FlushInterval: time.Hour})
	require.NoError(t, err)
	defer fsys.Close()

	p := fsys.NewProcess()
	require.True(t, p.Create("/x", 0))
	fd, ok := p.Open("/x")
	require.True(t, ok)
	_, ok = p.Write(fd, []byte("abc"))
	assert.True(t, ok)
	p.Close(fd)
	assert.Greater(t, fsys.Cache.Stats.Misses.Load(), uint64(0))
	// Only four entries exist, so bringing in the new data sector and its
	// read-ahead neighbour must evict; a 64-entry pool would not.
	assert.Greater(t, fsys.Cache.Stats.Evictions.Load(), uint64(0))
}

// TestBadFdFails is spec §7: operating on a closed or unknown descriptor
// fails cleanly rather than panicking.
func TestBadFdFails(t *testing.T) {
	fsys := newTestFS(t, 256)
	p := fsys.NewProcess()

	_, ok := p.Read(99, make([]byte, 1))
	assert.False(t, ok)
	_, err := p.readErr(99, make([]byte, 1))
	assert.ErrorIs(t, err, fserrors.ErrBadFd)
}

// TestWriteToDirectoryFdFails is spec §6: read/write require a regular
// file.
func TestWriteToDirectoryFdFails(t *testing.T) {
	fsys := newTestFS(t, 256)
	p := fsys.NewProcess()

	fd, ok := p.Open(".")
	require.True(t, ok)
	defer p.Close(fd)

	_, err := p.writeErr(fd, []byte("x"))
	assert.ErrorIs(t, err, fserrors.ErrIsDir)
}

// TestTooManyOpenFilesFails exercises FDTable's fixed-size descriptor cap.
func TestTooManyOpenFilesFails(t *testing.T) {
	fsys := newTestFS(t, 256)
	p := fsys.NewProcess()
	require.True(t, p.Create("/many", 0))

	for i := 0; i < maxOpenFiles; i++ {
		_, ok := p.Open("/many")
		require.True(t, ok)
	}
	_, ok := p.Open("/many")
	assert.False(t, ok, "the descriptor table is full")
}

func TestCreateDuplicateFails(t *testing.T) {
	fsys := newTestFS(t, 256)
	p := fsys.NewProcess()

	require.True(t, p.Create("/dup", 0))
	assert.False(t, p.Create("/dup", 0))
}

// TestRemoveWhileOpen is spec scenario 2.
func TestRemoveWhileOpen(t *testing.T) {
	fsys := newTestFS(t, 256)
	p := fsys.NewProcess()

	require.True(t, p.Create("/a", 0))
	fd, ok := p.Open("/a")
	require.True(t, ok)
	p.Write(fd, []byte("contents"))
	p.Seek(fd, 0)

	assert.True(t, p.Remove("/a"))

	_, ok = p.Open("/a")
	assert.False(t, ok)

	buf := make([]byte, 8)
	n, ok := p.Read(fd, buf)
	require.True(t, ok)
	assert.Equal(t, "contents", string(buf[:n]))

	assert.True(t, p.Close(fd))
}

// TestDirectorySemantics is spec scenario 3.
func TestDirectorySemantics(t *testing.T) {
	fsys := newTestFS(t, 256)
	p := fsys.NewProcess()

	assert.True(t, p.Mkdir("/d"))
	assert.False(t, p.Mkdir("/d"))

	require.True(t, p.Chdir("/d"))
	assert.True(t, p.Mkdir("e"))
	require.True(t, p.Chdir(".."))

	fd, ok := p.Open("/d/e")
	require.True(t, ok)
	isDir, ok := p.Isdir(fd)
	require.True(t, ok)
	assert.True(t, isDir)
	p.Close(fd)

	assert.False(t, p.Remove("/d"), "non-empty directory must not be removable")
	assert.True(t, p.Remove("/d/e"))
	assert.True(t, p.Remove("/d"))
}

// TestRootDotDotIsRoot is spec P8.
func TestRootDotDotIsRoot(t *testing.T) {
	fsys := newTestFS(t, 256)
	p := fsys.NewProcess()

	require.True(t, p.Chdir(".."))
	fd, ok := p.Open(".")
	require.True(t, ok)
	inum, ok := p.Inumber(fd)
	require.True(t, ok)
	assert.EqualValues(t, RootDirSector, inum)
	p.Close(fd)
}

// TestNameLengthLimits is spec scenario 6.
func TestNameLengthLimits(t *testing.T) {
	fsys := newTestFS(t, 256)
	p := fsys.NewProcess()

	long := make([]byte, 15)
	for i := range long {
		long[i] = 'x'
	}
	assert.False(t, p.Create("/"+string(long), 0))

	ok14 := make([]byte, 14)
	for i := range ok14 {
		ok14[i] = 'x'
	}
	assert.True(t, p.Create("/"+string(ok14), 0))
}

// TestConcurrentWritersDisjointRegions is spec scenario 5, scaled down for
// a fast unit test: each goroutine repeatedly writes its own 512-byte
// region and the final contents must match its last write.
func TestConcurrentWritersDisjointRegions(t *testing.T) {
	fsys := newTestFS(t, 512)
	p := fsys.NewProcess()
	require.True(t, p.Create("/c", 4*512))

	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(region int) {
			defer wg.Done()
			fd, ok := p.Open("/c")
			if !ok {
				return
			}
			defer p.Close(fd)
			buf := make([]byte, 512)
			for round := 0; round < rounds; round++ {
				for j := range buf {
					buf[j] = byte(region*50 + round)
				}
				p.Seek(fd, region*512)
				p.Write(fd, buf)
			}
		}(i)
	}
	wg.Wait()

	fd, ok := p.Open("/c")
	require.True(t, ok)
	defer p.Close(fd)
	for region := 0; region < 4; region++ {
		buf := make([]byte, 512)
		p.Seek(fd, region*512)
		n, ok := p.Read(fd, buf)
		require.True(t, ok)
		require.Equal(t, 512, n)
		want := byte(region*50 + (rounds - 1))
		for _, b := range buf {
			assert.Equal(t, want, b)
		}
	}
}
