// Package directory implements directories as ordinary inodes whose file
// body is a flat array of fixed-size entries (§4.3). Grounded on the
// teacher's dirops.go for the lookup/add/remove operation shapes, adapted
// from minix's indirection-aware search_dir over cache blocks to a flat
// byte-offset scan through inode.ReadAt/WriteAt, since this spec's
// directory has no block-level structure of its own — it is just a file.
package directory

import (
	"bytes"
	"encoding/binary"

	"github.com/mcpads/pintos-filesys/fserrors"
	"github.com/mcpads/pintos-filesys/inode"
)

// NameMax bounds one path component, per §4.3.
const NameMax = 14

// entry is one on-disk directory entry: a NUL-padded name, the sector of
// the inode it names, and whether the slot is occupied. Freed slots are
// left in place (InUse cleared) so add can reuse them, per §4.2's
// allocate-contiguous-in-logical-order invariant applying to the
// directory's own growth, not to its entry slots.
type entry struct {
	Name   [NameMax + 1]byte
	Sector uint32
	InUse  uint8
}

const entrySize = (NameMax + 1) + 4 + 1 // 20 bytes

func encodeEntry(e *entry) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(entrySize)
	_ = binary.Write(buf, binary.LittleEndian, e)
	return buf.Bytes()
}

func decodeEntry(buf []byte) *entry {
	e := new(entry)
	_ = binary.Read(bytes.NewReader(buf), binary.LittleEndian, e)
	return e
}

func nameOf(e *entry) string {
	n := bytes.IndexByte(e.Name[:], 0)
	if n < 0 {
		n = len(e.Name)
	}
	return string(e.Name[:n])
}

func setName(e *entry, name string) bool {
	if len(name) > NameMax {
		return false
	}
	copy(e.Name[:], name)
	e.Name[len(name)] = 0
	return true
}

// Dir is an open directory handle. pos tracks a per-handle readdir cursor,
// matching §4.3's "readdir (stateful per open handle)."
type Dir struct {
	ino *inode.Inode
	pos int
}

// Open wraps an already-open directory inode.
func Open(ino *inode.Inode) *Dir { return &Dir{ino: ino} }

// Inode returns the backing inode, for callers that need its sector or
// need to Close it themselves.
func (d *Dir) Inode() *inode.Inode { return d.ino }

// Create formats a new, empty directory inode at sector with room for at
// least entryCountHint entries pre-allocated, parented at parent. The root
// directory is created with parent equal to its own sector (§4.3).
func Create(t *inode.Table, sector uint32, entryCountHint int, parent uint32) bool {
	length := uint32(entryCountHint) * entrySize
	return inode.Create(t, sector, length, parent)
}

// scan walks every entry slot, invoking f with the entry and its byte
// offset. f returns true to stop the scan early.
func (d *Dir) scan(f func(off int, e *entry) bool) {
	buf := make([]byte, entrySize)
	for off := 0; off+entrySize <= d.ino.Length(); off += entrySize {
		n := d.ino.ReadAt(buf, off)
		if n < entrySize {
			break
		}
		if f(off, decodeEntry(buf)) {
			return
		}
	}
}

// Lookup searches for name, returning the inode sector it names.
func (d *Dir) Lookup(name string) (uint32, bool) {
	var found uint32
	var ok bool
	d.scan(func(_ int, e *entry) bool {
		if e.InUse != 0 && nameOf(e) == name {
			found, ok = e.Sector, true
			return true
		}
		return false
	})
	return found, ok
}

// Add inserts a new entry mapping name to sector, reusing a freed slot if
// one exists or appending (growing the directory inode) otherwise. It
// fails if name already exists or is too long.
func (d *Dir) Add(name string, sector uint32) error {
	if len(name) == 0 || len(name) > NameMax {
		return fserrors.ErrNameTooLong
	}
	if _, exists := d.Lookup(name); exists {
		return fserrors.ErrExist
	}

	free := -1
	d.scan(func(off int, e *entry) bool {
		if e.InUse == 0 && free < 0 {
			free = off
		}
		return false
	})

	e := &entry{Sector: sector, InUse: 1}
	if !setName(e, name) {
		return fserrors.ErrNameTooLong
	}
	buf := encodeEntry(e)

	off := free
	if off < 0 {
		off = d.ino.Length()
	}
	if n := d.ino.WriteAt(buf, off); n != len(buf) {
		return fserrors.ErrNoSpace
	}
	return nil
}

// Remove clears the entry named name. It is the fs layer's job to reject
// "." and ".." and non-empty subdirectories before calling this (§4.3).
func (d *Dir) Remove(name string) error {
	removed := false
	d.scan(func(off int, e *entry) bool {
		if e.InUse != 0 && nameOf(e) == name {
			e.InUse = 0
			d.ino.WriteAt(encodeEntry(e), off)
			removed = true
			return true
		}
		return false
	})
	if !removed {
		return fserrors.ErrNotFound
	}
	return nil
}

// IsEmpty reports whether the directory has no live entries. There are no
// stored "." or ".." entries in this layout — self and parent are implicit
// via the inode's own sector and ParentDir — so any in-use slot means the
// directory is non-empty.
func (d *Dir) IsEmpty() bool {
	empty := true
	d.scan(func(_ int, e *entry) bool {
		if e.InUse != 0 {
			empty = false
			return true
		}
		return false
	})
	return empty
}

// Readdir returns the next live entry's name from this handle's cursor,
// advancing the cursor past it, or ok=false at end of directory.
func (d *Dir) Readdir() (name string, ok bool) {
	buf := make([]byte, entrySize)
	for d.pos+entrySize <= d.ino.Length() {
		n := d.ino.ReadAt(buf, d.pos)
		d.pos += entrySize
		if n < entrySize {
			break
		}
		e := decodeEntry(buf)
		if e.InUse != 0 {
			return nameOf(e), true
		}
	}
	return "", false
}

// GetParent returns the sector of the parent directory (itself, for root).
func (d *Dir) GetParent() uint32 { return d.ino.Parent() }

// GetInumber returns this directory's own inode sector.
func (d *Dir) GetInumber() uint32 { return d.ino.Sector() }
