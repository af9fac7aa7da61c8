// ABOUTME: Bounded TTL set reporting each key once per window
// ABOUTME: Used to fire the rejected-credential hook once per token, not once per request

package dedupe

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type entry struct {
	key string
	at  time.Time
}

// Cache remembers keys for a fixed TTL, holding at most maxSize of them.
// Entries live in a list ordered by last mark, oldest at front, so expired
// and surplus entries are always dropped from the front.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a cache. maxSize below 1 is treated as 1.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// First marks key and reports whether it was unseen within the TTL. Only one
// of any number of concurrent callers with the same key gets true.
func (c *Cache) First(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)

	if elem, ok := c.seen[key]; ok {
		elem.Value.(*entry).at = now
		c.order.MoveToBack(elem)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.removeLocked(c.order.Front())
	}
	c.seen[key] = c.order.PushBack(&entry{key: key, at: now})
	return true
}

// Forget drops key so the next First call for it returns true.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.seen[key]; ok {
		c.removeLocked(elem)
	}
}

// Len returns the number of unexpired keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(c.now())
	return len(c.seen)
}

func (c *Cache) pruneLocked(now time.Time) {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		if now.Sub(front.Value.(*entry).at) < c.ttl {
			return
		}
		c.removeLocked(front)
	}
}

func (c *Cache) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.seen, elem.Value.(*entry).key)
}

// Fingerprint derives a cache key from a secret so the secret itself is
// never held.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:16])
}
