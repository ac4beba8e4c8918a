package fs

import (
	"time"

	"github.com/mcpads/pintos-filesys/bcache"
)

// defaultFlushInterval is used when Config.FlushInterval is zero.
const defaultFlushInterval = 5 * time.Second

// Config bundles the knobs Format/Open expose, instead of the fixed
// compile-time constants the original pintos implementation bakes in.
// Sector size is deliberately not one of them: it is woven into every
// on-disk struct's fixed-width encoding (inode index arrays, directory
// entries, the free-map's bitmap word count), so changing it per mount
// would require a different on-disk format entirely, not a runtime
// parameter (§6).
type Config struct {
	// CacheSize is the buffer-cache pool size (§4.1). Zero uses
	// bcache.MaxCacheSize.
	CacheSize int
	// FlushInterval is how often the background flusher writes back dirty
	// entries. Zero uses defaultFlushInterval.
	FlushInterval time.Duration
	// MaxFileSectors caps how many sectors a single inode may grow to,
	// independent of free-map exhaustion. Zero means no cap beyond the
	// structural direct/indirect/double-indirect maximum (§4.2).
	MaxFileSectors int
}

func (c Config) cacheSize() int {
	if c.CacheSize <= 0 {
		return bcache.MaxCacheSize
	}
	return c.CacheSize
}

func (c Config) flushInterval() time.Duration {
	if c.FlushInterval <= 0 {
		return defaultFlushInterval
	}
	return c.FlushInterval
}
