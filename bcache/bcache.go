// Package bcache implements the fixed-size, write-back buffer cache between
// the inode layer and the block device: LRU eviction, read-ahead, a
// background flusher, and a per-buffer reader/writer lock. Grounded on the
// teacher's cache_lru.go for the LRU/eviction/flush shape, generalized from
// a hash-chain lookup to the racy linear scan this spec specifies, and
// re-cast from a single cache-owning goroutine to explicit per-entry locks
// so readers can run concurrently.
package bcache

import (
	"log"
	"sync"
	"time"

	"github.com/mcpads/pintos-filesys/device"
	"github.com/mcpads/pintos-filesys/stats"
)

// MaxCacheSize is the fixed pool size (§4.1).
const MaxCacheSize = 64

// noSector marks an entry as unoccupied.
const noSector = ^uint32(0)

// entry is one buffer-cache slot. Its identity (sector, dirty bit) is
// guarded by slotMu, which supports non-blocking acquisition so
// the eviction scan and get_free can skip busy entries rather than block on
// them. Its reader/writer state is a separate mutex+cond pair, independent
// of slotMu, matching §4.1's "rw-state is logically independent of the
// LRU/slot-lock."
type entry struct {
	slotMu sync.Mutex // guards sector/dirty; TryLock-able

	sector uint32
	dirty  bool
	data   [device.SectorSize]byte

	prev, next *entry // LRU doubly-linked list, mutated under Cache.lruMu

	rw sync.Mutex
	cv *sync.Cond
	writerActive bool
	readers      int
}

// Cache is the buffer-cache pool, sized at construction time.
type Cache struct {
	dev   device.BlockDevice
	pool  []*entry
	lruMu sync.Mutex
	head  *entry // MRU
	tail  *entry // LRU

	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup

	Stats stats.Cache
}

// New builds a cache of size entries over dev with a background flusher
// waking every flushInterval. size <= 0 falls back to MaxCacheSize. Every
// entry starts free and linked into the LRU chain in pool order (tail =
// least recently used).
func New(dev device.BlockDevice, flushInterval time.Duration, size int) *Cache {
	if size <= 0 {
		size = MaxCacheSize
	}
	c := &Cache{dev: dev, flushInterval: flushInterval, done: make(chan struct{}), pool: make([]*entry, size)}
	var prev *entry
	for i := range c.pool {
		e := &entry{sector: noSector}
		e.cv = sync.NewCond(&e.rw)
		c.pool[i] = e
		if prev != nil {
			prev.next = e
			e.prev = prev
		} else {
			c.head = e
		}
		prev = e
	}
	c.tail = prev
	c.wg.Add(1)
	go c.flusherLoop()
	return c
}

// Close stops the background flusher and writes back every dirty entry,
// matching §9's "torn down by filesys_done before the cache pool is
// reclaimed."
func (c *Cache) Close() {
	close(c.done)
	c.wg.Wait()
	c.Flush()
}

func (c *Cache) flusherLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.flushInterval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			c.Flush()
		}
	}
}

// -- reader/writer protocol on one entry, exactly per §4.1 --

func (e *entry) lockReader() {
	e.rw.Lock()
	for e.writerActive {
		e.cv.Wait()
	}
	e.readers++
	e.rw.Unlock()
}

func (e *entry) unlockReader() {
	e.rw.Lock()
	e.readers--
	if e.readers == 0 {
		e.cv.Signal()
	}
	e.rw.Unlock()
}

func (e *entry) lockWriter() {
	e.rw.Lock()
	for e.writerActive || e.readers > 0 {
		e.cv.Wait()
	}
	e.writerActive = true
	e.rw.Unlock()
}

func (e *entry) unlockWriter() {
	e.rw.Lock()
	e.writerActive = false
	e.rw.Unlock()
	e.cv.Broadcast()
}

// -- LRU list maintenance, always called with lruMu held --

func (c *Cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if c.head == e {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else if c.tail == e {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *Cache) pushFront(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) touchMRU(e *entry) {
	c.lruMu.Lock()
	c.unlink(e)
	c.pushFront(e)
	c.lruMu.Unlock()
}

// lookup performs the racy linear scan described in §4.1: compare sector
// without locking, then re-validate under the slot lock on a hit. Returns
// nil if not found (the caller must load).
func (c *Cache) lookup(sector uint32) *entry {
	for _, e := range c.pool {
		if e.sector != sector {
			continue
		}
		e.slotMu.Lock()
		if e.sector == sector {
			return e // caller releases slotMu
		}
		e.slotMu.Unlock()
	}
	return nil
}

// getFree scans for an entry that is currently unoccupied and claims it
// without blocking. Returns nil if none is free right now.
func (c *Cache) getFree() *entry {
	for _, e := range c.pool {
		if e.sector != noSector {
			continue
		}
		if !e.slotMu.TryLock() {
			continue
		}
		if e.sector == noSector {
			c.touchMRU(e)
			return e // caller releases slotMu
		}
		e.slotMu.Unlock()
	}
	return nil
}

// evict walks the LRU chain from least- to most-recently-used, looking for
// an entry with no active reader/writer. It writes back a dirty victim and
// releases it, returning it claimed (slotMu held) for the caller to reuse.
// If every candidate is in use, the scan simply cycles until one frees up.
func (c *Cache) evict() *entry {
	for {
		c.lruMu.Lock()
		var candidates []*entry
		for e := c.tail; e != nil; e = e.prev {
			candidates = append(candidates, e)
		}
		c.lruMu.Unlock()

		for _, e := range candidates {
			if !e.slotMu.TryLock() {
				continue
			}
			e.rw.Lock()
			busy := e.writerActive || e.readers > 0
			e.rw.Unlock()
			if busy || e.sector == noSector {
				e.slotMu.Unlock()
				continue
			}

			if e.dirty {
				if err := c.dev.WriteSector(e.sector, e.data[:]); err != nil {
					log.Panicf("bcache: device write failed during eviction: %v", err)
				}
				e.dirty = false
			}
			victim := e.sector
			e.sector = noSector
			c.touchMRU(e)
			c.Stats.Evictions.Inc()
			_ = victim
			return e // caller releases slotMu
		}
		// Nothing evictable this pass; every entry is in active use. Yield
		// and try again — eviction cannot fail, only stall.
		log.Printf("bcache: eviction stalled, all %d entries busy; retrying", len(c.pool))
	}
}

// load brings sector into the cache, claims it (BUSY, i.e. slotMu held on
// return), and spawns a short-lived read-ahead helper for sector+1.
func (c *Cache) load(sector uint32) *entry {
	e := c.getFree()
	if e == nil {
		e = c.evict()
	}
	e.sector = sector
	if err := c.dev.ReadSector(sector, e.data[:]); err != nil {
		log.Panicf("bcache: device read failed: %v", err)
	}
	c.Stats.Misses.Inc()
	c.readAhead(sector + 1)
	return e
}

// readAhead speculatively brings the next sector into cache. Per §4.1, the
// helper signals the handshake channel as soon as it has claimed its slot,
// before touching the disk, so the spawner is never blocked on the helper's
// I/O — here the helper is a goroutine that closes the claimed channel once
// its slot is reserved, and this call returns as soon as that happens.
func (c *Cache) readAhead(sector uint32) {
	if sector >= c.dev.Size() {
		return
	}
	if e := c.lookup(sector); e != nil {
		e.slotMu.Unlock()
		return
	}
	claimed := make(chan struct{})
	go func() {
		e := c.getFree()
		if e == nil {
			e = c.evict()
		}
		e.sector = sector
		close(claimed) // handshake: slot reserved, before the disk read below
		if err := c.dev.ReadSector(sector, e.data[:]); err != nil {
			log.Printf("bcache: read-ahead failed for sector %d: %v", sector, err)
			e.sector = noSector
			e.slotMu.Unlock()
			return
		}
		c.Stats.ReadAheads.Inc()
		e.slotMu.Unlock()
	}()
	<-claimed
}

// Read copies sector's contents into dst, loading it first if necessary.
//
// The reader lock is taken while slotMu is still held, so that eviction
// (which also requires slotMu) can never steal this entry out from under us
// between "find the entry" and "start reading it." slotMu is released once
// the rw-state reflects an active reader, which is enough to make eviction
// skip this entry as in-use.
func (c *Cache) Read(sector uint32, dst []byte) {
	e := c.lookup(sector)
	if e != nil {
		c.Stats.Hits.Inc()
	} else {
		e = c.load(sector)
	}
	e.lockReader()
	e.slotMu.Unlock()

	copy(dst, e.data[:])
	e.unlockReader()
	c.touchMRU(e)
}

// Write copies src into sector's buffer and marks it dirty, loading the
// sector first if necessary. See Read for why the writer lock is acquired
// before slotMu is released.
func (c *Cache) Write(sector uint32, src []byte) {
	e := c.lookup(sector)
	if e != nil {
		c.Stats.Hits.Inc()
	} else {
		e = c.load(sector)
	}
	e.lockWriter()
	e.slotMu.Unlock()

	copy(e.data[:], src)
	e.dirty = true
	e.unlockWriter()
	c.touchMRU(e)
}

// Flush writes back every dirty entry unconditionally, as at shutdown.
func (c *Cache) Flush() {
	for _, e := range c.pool {
		e.slotMu.Lock()
		if e.sector == noSector || !e.dirty {
			e.slotMu.Unlock()
			continue
		}
		e.lockReader()
		sector := e.sector
		data := e.data
		e.unlockReader()

		if err := c.dev.WriteSector(sector, data[:]); err != nil {
			e.slotMu.Unlock()
			log.Panicf("bcache: device write failed during flush: %v", err)
		}
		e.dirty = false
		c.Stats.Flushes.Inc()
		e.slotMu.Unlock()
	}
}
