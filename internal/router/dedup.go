package router

import (
	"fmt"
	"sync"
	"time"
)

// dedupTTL keeps a cached reply long enough to cover a replayed update in
// the same or the following minute bucket.
const dedupTTL = 2 * time.Minute

// dedupCache deduplicates mutating commands on (team, telegram id, text,
// minute bucket): a replay inside the window returns the first reply
// verbatim instead of mutating twice.
type dedupCache struct {
	mu      sync.Mutex
	replies map[string]dedupEntry
	now     func() time.Time
}

type dedupEntry struct {
	reply   string
	expires time.Time
}

func newDedupCache() *dedupCache {
	return &dedupCache{
		replies: make(map[string]dedupEntry),
		now:     time.Now,
	}
}

func (c *dedupCache) key(teamID string, telegramID int64, text string) string {
	bucket := c.now().Unix() / 60
	return fmt.Sprintf("%s|%d|%s|%d", teamID, telegramID, text, bucket)
}

// lookup returns the cached reply for an identical recent command.
func (c *dedupCache) lookup(teamID string, telegramID int64, text string) (string, bool) {
	key := c.key(teamID, telegramID, text)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.replies[key]
	if !ok || c.now().After(e.expires) {
		return "", false
	}
	return e.reply, true
}

// remember stores a reply and opportunistically drops expired entries.
func (c *dedupCache) remember(teamID string, telegramID int64, text, reply string) {
	key := c.key(teamID, telegramID, text)
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.replies {
		if now.After(e.expires) {
			delete(c.replies, k)
		}
	}
	c.replies[key] = dedupEntry{reply: reply, expires: now.Add(dedupTTL)}
}
