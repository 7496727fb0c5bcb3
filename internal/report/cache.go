package report

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"finance-tracker/internal/domain"
)

type cacheKey struct {
	user     domain.UserID
	from, to int64
}

type cacheEntry struct {
	window  domain.Window
	value   Summary
	expires time.Time
}

// cache holds summaries per (user, window). Each user has a generation that
// every invalidation bumps; a computation that started under an older
// generation is returned to its callers but never stored.
type cache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	entries   map[cacheKey]cacheEntry
	gen       map[domain.UserID]uint64
	lastSweep time.Time

	group singleflight.Group
}

func newCache(ttl time.Duration, now func() time.Time) *cache {
	return &cache{
		ttl:     ttl,
		now:     now,
		entries: map[cacheKey]cacheEntry{},
		gen:     map[domain.UserID]uint64{},
	}
}

func (c *cache) summary(user domain.UserID, w domain.Window, compute func() (Summary, error)) (Summary, error) {
	if c.ttl <= 0 {
		return compute()
	}
	k := cacheKey{user: user, from: w.From.Unix(), to: w.To.Unix()}

	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		if c.now().Before(e.expires) {
			c.mu.Unlock()
			return e.value.clone(), nil
		}
		delete(c.entries, k)
	}
	gen := c.gen[user]
	c.mu.Unlock()

	v, err, _ := c.group.Do(fmt.Sprintf("%d/%d/%d/%d", user, k.from, k.to, gen), func() (any, error) {
		s, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen[user] == gen {
			now := c.now()
			c.sweep(now)
			c.entries[k] = cacheEntry{window: w, value: s, expires: now.Add(c.ttl)}
		}
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary).clone(), nil
}

func (c *cache) invalidate(user domain.UserID, dates ...time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[user]++
	for k, e := range c.entries {
		if k.user != user {
			continue
		}
		if len(dates) == 0 || containsAny(e.window, dates) {
			delete(c.entries, k)
		}
	}
}

// sweep drops expired entries, at most once per ttl. The caller holds mu.
func (c *cache) sweep(now time.Time) {
	if now.Sub(c.lastSweep) < c.ttl {
		return
	}
	c.lastSweep = now
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

func containsAny(w domain.Window, dates []time.Time) bool {
	for _, d := range dates {
		if w.Contains(domain.Date(d)) {
			return true
		}
	}
	return false
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
