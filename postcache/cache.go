package postcache

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/postroom/postroom/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	DefaultTTL     = 300 * time.Second
	DefaultMaxSize = 1000
)

type Entry struct {
	Posts    []models.Post
	CachedAt time.Time
}

// Stats is a read-only snapshot of cache occupancy and counters.
type Stats struct {
	Size        int       `json:"size"`
	MaxSize     int       `json:"maxsize"`
	TTLSeconds  float64   `json:"ttl"`
	Hits        uint64    `json:"hits"`
	Misses      uint64    `json:"misses"`
	CurrentTime time.Time `json:"current_time"`
}

// Ticket captures the invalidation state of one owner at the start of a
// repository read.
type Ticket struct {
	generation uint64
	epoch      uint64
}

func (t Ticket) String() string {
	return fmt.Sprintf("%d.%d", t.generation, t.epoch)
}

type Cache struct {
	entries *expirable.LRU[models.Uid, Entry]
	maxSize int
	ttl     time.Duration

	// epochs counts invalidations per owner. An owner only gets a slot once
	// it has been invalidated at least once.
	epochs *xsync.MapOf[models.Uid, uint64]

	// purgeLk orders Purge against SetIfCurrent; generation is bumped by Purge
	purgeLk    sync.RWMutex
	generation atomic.Uint64

	hits   atomic.Uint64
	misses atomic.Uint64

	log *slog.Logger
}

// New builds a cache holding at most maxSize owners' listings, each for ttl.
// Non-positive arguments fall back to the defaults.
func New(maxSize int, ttl time.Duration, logger *slog.Logger) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: expirable.NewLRU[models.Uid, Entry](maxSize, nil, ttl),
		maxSize: maxSize,
		ttl:     ttl,
		epochs:  xsync.NewMapOf[models.Uid, uint64](),
		log:     logger.With("system", "postcache"),
	}
}

func clonePosts(posts []models.Post) []models.Post {
	out := make([]models.Post, len(posts))
	copy(out, posts)
	return out
}

// Get returns a copy of the cached listing for owner. Entries older than the
// TTL are reported as absent even if they have not been reaped yet.
func (c *Cache) Get(owner models.Uid) ([]models.Post, bool) {
	// Peek, not Get: lookups must not change eviction order, which stays
	// oldest-inserted-first
	ent, ok := c.entries.Peek(owner)
	if !ok || time.Since(ent.CachedAt) > c.ttl {
		c.misses.Add(1)
		cacheMisses.Inc()
		c.log.Debug("cache miss", "owner", owner)
		return nil, false
	}

	c.hits.Add(1)
	cacheHits.Inc()
	c.log.Debug("cache hit", "owner", owner, "posts", len(ent.Posts))
	return clonePosts(ent.Posts), true
}

func (c *Cache) add(owner models.Uid, posts []models.Post) {
	evicted := c.entries.Add(owner, Entry{
		Posts:    clonePosts(posts),
		CachedAt: time.Now(),
	})
	if evicted {
		cacheEvictions.Inc()
	}
	cacheSets.Inc()
	c.log.Debug("cache set", "owner", owner, "posts", len(posts))
}

// Set unconditionally stores posts for owner, replacing any existing entry
// and restarting its TTL. When the cache is full the oldest entry is evicted
// first.
func (c *Cache) Set(owner models.Uid, posts []models.Post) {
	c.add(owner, posts)
}

// Ticket must be taken before reading the repository on a miss; see
// SetIfCurrent.
func (c *Cache) Ticket(owner models.Uid) Ticket {
	epoch, _ := c.epochs.Load(owner)
	return Ticket{
		generation: c.generation.Load(),
		epoch:      epoch,
	}
}

// SetIfCurrent stores posts only if owner has not been invalidated (and the
// cache not purged) since the ticket was taken. It reports whether the
// listing was stored.
func (c *Cache) SetIfCurrent(owner models.Uid, t Ticket, posts []models.Post) bool {
	c.purgeLk.RLock()
	defer c.purgeLk.RUnlock()

	if c.generation.Load() != t.generation {
		cacheStaleSets.Inc()
		return false
	}

	stored := false
	c.epochs.Compute(owner, func(epoch uint64, loaded bool) (uint64, bool) {
		if epoch == t.epoch {
			c.add(owner, posts)
			stored = true
		}
		// never create a slot here, only Invalidate does that
		return epoch, !loaded
	})
	if !stored {
		cacheStaleSets.Inc()
		c.log.Debug("dropped stale cache fill", "owner", owner)
	}
	return stored
}

// Invalidate removes the entry for owner, if any, and makes every
// outstanding ticket for owner stale.
func (c *Cache) Invalidate(owner models.Uid) {
	c.epochs.Compute(owner, func(epoch uint64, loaded bool) (uint64, bool) {
		present := c.entries.Remove(owner)
		c.log.Debug("invalidated posts", "owner", owner, "present", present)
		return epoch + 1, false
	})
	cacheInvalidations.Inc()
}

// Purge drops every entry and every outstanding ticket.
func (c *Cache) Purge() {
	c.purgeLk.Lock()
	defer c.purgeLk.Unlock()

	c.generation.Add(1)
	c.entries.Purge()
	c.log.Info("cache purged")
}

func (c *Cache) Stats() Stats {
	return Stats{
		Size:        c.entries.Len(),
		MaxSize:     c.maxSize,
		TTLSeconds:  c.ttl.Seconds(),
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		CurrentTime: time.Now().UTC(),
	}
}
