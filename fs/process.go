package fs

import (
	"sync"

	"github.com/mcpads/pintos-filesys/directory"
	"github.com/mcpads/pintos-filesys/fserrors"
	"github.com/mcpads/pintos-filesys/inode"
)

// maxOpenFiles bounds one process' descriptor table, mirroring the
// teacher's OPEN_MAX-sized per-process filp array (fs/process.go,
// fs/server.go: `make([]*filp, common.OPEN_MAX)`).
const maxOpenFiles = 128

// handle is one open file-or-directory behind a descriptor. dir is
// non-nil when the underlying inode is a directory, in which case it
// carries the stateful readdir cursor for this particular open (§4.3).
// Grounded on the teacher's filp: a mutex-guarded cursor wrapping the
// actual I/O object, so a single fd's position is self-contained.
type handle struct {
	mu  sync.Mutex
	ino *inode.Inode
	dir *directory.Dir
	pos int
}

// FDTable is a process' open-descriptor table. Descriptors are allocated
// starting at 2 and increase monotonically; 0 and 1 are reserved for
// stdin/stdout by convention and never allocated here (§6).
type FDTable struct {
	mu    sync.Mutex
	next  int
	files map[int]*handle
}

func newFDTable() *FDTable {
	return &FDTable{next: 2, files: make(map[int]*handle)}
}

func (t *FDTable) alloc(h *handle) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.files) >= maxOpenFiles {
		return -1, fserrors.ErrTooManyLinks
	}
	fd := t.next
	t.next++
	t.files[fd] = h
	return fd, nil
}

// get returns the handle for fd, or fserrors.ErrBadFd if fd names nothing
// currently open.
func (t *FDTable) get(fd int) (*handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.files[fd]
	if !ok {
		return nil, fserrors.ErrBadFd
	}
	return h, nil
}

func (t *FDTable) release(fd int) (*handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.files[fd]
	if !ok {
		return nil, fserrors.ErrBadFd
	}
	delete(t.files, fd)
	return h, nil
}

// closeAll releases every descriptor still open, mirroring pintos
// syscall.c's close_all_fd on process exit.
func (t *FDTable) closeAll() {
	t.mu.Lock()
	files := t.files
	t.files = make(map[int]*handle)
	t.mu.Unlock()
	for _, h := range files {
		h.ino.Close()
	}
}

// Process is one client of the filesystem: its own current directory and
// its own descriptor table, sharing the filesystem's cache/free-map/inode
// table with every other process.
type Process struct {
	fs  *FileSystem
	cwd uint32
	fds *FDTable
}

// NewProcess creates a process rooted at the filesystem root directory.
func (fsys *FileSystem) NewProcess() *Process {
	return &Process{fs: fsys, cwd: RootDirSector, fds: newFDTable()}
}

// Exit releases every descriptor this process still holds open, as if the
// process had called close on each of them (§5, close-all-fd).
func (p *Process) Exit() {
	p.fds.closeAll()
}
