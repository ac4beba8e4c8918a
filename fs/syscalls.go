package fs

import (
	"github.com/mcpads/pintos-filesys/directory"
	"github.com/mcpads/pintos-filesys/fserrors"
	"github.com/mcpads/pintos-filesys/inode"
)

// Create makes a new, empty regular file named name with the given
// initial size. It fails if name already exists, is empty, or its final
// component exceeds directory.NameMax (§6).
func (p *Process) Create(name string, size uint32) bool {
	dirPart, hasDir, final := splitPath(name)
	if final == "" || len(final) > directory.NameMax {
		return false
	}

	p.fs.dirMu.Lock()
	defer p.fs.dirMu.Unlock()

	dir, err := p.fs.resolveDir(p, dirPart, hasDir)
	if err != nil {
		return false
	}
	defer dir.Inode().Close()

	sector, err := p.fs.fm.Allocate(1)
	if err != nil {
		return false
	}
	if !inode.Create(p.fs.itab, sector, size, inode.None) {
		p.fs.fm.Release(sector, 1)
		return false
	}
	if err := dir.Add(final, sector); err != nil {
		discard(p.fs.itab, sector)
		return false
	}
	return true
}

// Mkdir makes a new, empty directory named path, parented at the
// directory path resolves into. Fails under the same conditions as
// Create, plus if path's final component already names anything.
func (p *Process) Mkdir(path string) bool {
	dirPart, hasDir, final := splitPath(path)
	if final == "" || len(final) > directory.NameMax {
		return false
	}

	p.fs.dirMu.Lock()
	defer p.fs.dirMu.Unlock()

	parent, err := p.fs.resolveDir(p, dirPart, hasDir)
	if err != nil {
		return false
	}
	defer parent.Inode().Close()

	sector, err := p.fs.fm.Allocate(1)
	if err != nil {
		return false
	}
	if !directory.Create(p.fs.itab, sector, 4, parent.GetInumber()) {
		p.fs.fm.Release(sector, 1)
		return false
	}
	if err := parent.Add(final, sector); err != nil {
		discard(p.fs.itab, sector)
		return false
	}
	return true
}

// discard releases a just-allocated, just-formatted but never-linked
// inode, used when Create/Mkdir's directory.Add fails after the inode
// sector itself was already written.
func discard(t *inode.Table, sector uint32) {
	ino := inode.Open(t, sector)
	inode.Remove(ino)
	ino.Close()
}

// Remove deletes the file or empty directory named path. It rejects "."
// and "..", and rejects a non-empty directory (§4.3).
func (p *Process) Remove(path string) bool {
	return p.removeErr(path) == nil
}

func (p *Process) removeErr(path string) error {
	dirPart, hasDir, final := splitPath(path)
	if final == "" || final == "." || final == ".." {
		return fserrors.ErrInvalid
	}

	p.fs.dirMu.Lock()
	defer p.fs.dirMu.Unlock()

	dir, err := p.fs.resolveDir(p, dirPart, hasDir)
	if err != nil {
		return err
	}
	defer dir.Inode().Close()

	sector, ok := dir.Lookup(final)
	if !ok {
		return fserrors.ErrNotFound
	}
	target := inode.Open(p.fs.itab, sector)
	if target.IsDir() && !directory.Open(target).IsEmpty() {
		target.Close()
		return fserrors.ErrNotEmpty
	}
	if err := dir.Remove(final); err != nil {
		target.Close()
		return err
	}
	inode.Remove(target)
	target.Close()
	return nil
}

// Chdir changes this process' current directory to path.
func (p *Process) Chdir(path string) bool {
	dirPart, hasDir, final := splitPath(path)

	p.fs.dirMu.Lock()
	defer p.fs.dirMu.Unlock()

	dir, err := p.fs.resolveDir(p, dirPart, hasDir)
	if err != nil {
		return false
	}

	var target uint32
	switch final {
	case "", ".":
		target = dir.GetInumber()
		dir.Inode().Close()
	case "..":
		target = dir.GetParent()
		dir.Inode().Close()
	default:
		sector, ok := dir.Lookup(final)
		dir.Inode().Close()
		if !ok {
			return false
		}
		ino := inode.Open(p.fs.itab, sector)
		isDir := ino.IsDir()
		ino.Close()
		if !isDir {
			return false
		}
		target = sector
	}
	p.cwd = target
	return true
}

// Open opens the file or directory named name, returning a descriptor. It
// does not take the directory-mutation lock: opening is read-only with
// respect to directory structure (§5).
func (p *Process) Open(name string) (int, bool) {
	dirPart, hasDir, final := splitPath(name)

	dir, err := p.fs.resolveDir(p, dirPart, hasDir)
	if err != nil {
		return -1, false
	}

	var target *inode.Inode
	switch final {
	case "", ".":
		target = dir.Inode()
	case "..":
		parent := dir.GetParent()
		dir.Inode().Close()
		target = inode.Open(p.fs.itab, parent)
	default:
		sector, ok := dir.Lookup(final)
		dir.Inode().Close()
		if !ok {
			return -1, false
		}
		target = inode.Open(p.fs.itab, sector)
	}

	h := &handle{ino: target}
	if target.IsDir() {
		h.dir = directory.Open(target)
	}
	fd, err := p.fds.alloc(h)
	if err != nil {
		h.ino.Close()
		return -1, false
	}
	return fd, true
}

// Close closes fd, releasing its underlying inode reference.
func (p *Process) Close(fd int) bool {
	h, err := p.fds.release(fd)
	if err != nil {
		return false
	}
	h.ino.Close()
	return true
}

// Filesize returns fd's backing inode length in bytes.
func (p *Process) Filesize(fd int) (int, bool) {
	h, err := p.fds.get(fd)
	if err != nil {
		return 0, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ino.Length(), true
}

// requireFile returns fserrors.ErrIsDir if h backs a directory: read and
// write require a regular file (§6).
func (h *handle) requireFile() error {
	if h.dir != nil {
		return fserrors.ErrIsDir
	}
	return nil
}

// Read reads up to len(buf) bytes from fd at its current position,
// advancing it by the number of bytes actually read. Reading from a
// directory descriptor is rejected.
func (p *Process) Read(fd int, buf []byte) (int, bool) {
	n, err := p.readErr(fd, buf)
	return n, err == nil
}

func (p *Process) readErr(fd int, buf []byte) (int, error) {
	h, err := p.fds.get(fd)
	if err != nil {
		return 0, err
	}
	if err := h.requireFile(); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.ino.ReadAt(buf, h.pos)
	h.pos += n
	return n, nil
}

// Write writes buf to fd at its current position, advancing it by the
// number of bytes actually written (which is 0 if the inode is currently
// deny-written, §4.2 I4). Writing to a directory descriptor is rejected.
func (p *Process) Write(fd int, buf []byte) (int, bool) {
	n, err := p.writeErr(fd, buf)
	return n, err == nil
}

func (p *Process) writeErr(fd int, buf []byte) (int, error) {
	h, err := p.fds.get(fd)
	if err != nil {
		return 0, err
	}
	if err := h.requireFile(); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ino.DenyWriteActive() {
		return 0, fserrors.ErrDenyWrite
	}
	n := h.ino.WriteAt(buf, h.pos)
	h.pos += n
	return n, nil
}

// Seek repositions fd. Positions past the current length are permitted;
// a subsequent write there grows the file (§4.2's hole policy).
func (p *Process) Seek(fd int, pos int) bool {
	h, err := p.fds.get(fd)
	if err != nil {
		return false
	}
	h.mu.Lock()
	h.pos = pos
	h.mu.Unlock()
	return true
}

// Tell returns fd's current position.
func (p *Process) Tell(fd int) (int, bool) {
	h, err := p.fds.get(fd)
	if err != nil {
		return 0, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos, true
}

// Isdir reports whether fd refers to a directory.
func (p *Process) Isdir(fd int) (bool, bool) {
	h, err := p.fds.get(fd)
	if err != nil {
		return false, false
	}
	return h.dir != nil, true
}

// Inumber returns fd's backing inode sector, a stable per-file identity.
func (p *Process) Inumber(fd int) (uint32, bool) {
	h, err := p.fds.get(fd)
	if err != nil {
		return 0, false
	}
	return h.ino.Sector(), true
}

// Readdir returns the next entry name from fd's directory cursor. fd must
// be an open directory descriptor (§6).
func (p *Process) Readdir(fd int) (string, bool) {
	h, err := p.fds.get(fd)
	if err != nil || h.dir == nil {
		return "", false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dir.Readdir()
}
