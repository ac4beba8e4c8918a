// Package stats tracks buffer-cache operation counts and renders them as a
// table, the way a teaching OS's fsck would report them after a pass.
package stats

import (
	"bytes"
	"io"
	"sync/atomic"

	"github.com/rodaine/table"
)

// Counter is a single named operation tally, safe for concurrent increment.
type Counter struct {
	n uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.n, 1)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.n)
}

// Cache holds the buffer-cache counters a fsck pass reports: hits, misses,
// evictions, entries written back by Flush, and completed read-aheads.
type Cache struct {
	Hits       Counter
	Misses     Counter
	Evictions  Counter
	Flushes    Counter
	ReadAheads Counter
}

func (c *Cache) names() []string {
	return []string{"hit", "miss", "eviction", "flush", "read-ahead"}
}

func (c *Cache) counters() []*Counter {
	return []*Counter{&c.Hits, &c.Misses, &c.Evictions, &c.Flushes, &c.ReadAheads}
}

// WriteTable renders the current counter values to w.
func (c *Cache) WriteTable(w io.Writer) {
	tbl := table.New("op", "count")
	for i, name := range c.names() {
		tbl.AddRow(name, c.counters()[i].Load())
	}
	tbl.WithWriter(w).Print()
}

// FormatTable renders the current counter values as a string.
func (c *Cache) FormatTable() string {
	buf := new(bytes.Buffer)
	c.WriteTable(buf)
	return buf.String()
}
