package ghostclient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// WatchlistKey names the cached watchlist; ItemKey names one card's saved flag.
const WatchlistKey = "watchlist"

// ItemKey returns the cache key for cardID's saved flag.
func ItemKey(cardID string) string {
	return WatchlistKey + ":" + cardID
}

// WatchlistAPI is the server surface the cache needs. *Client satisfies it.
type WatchlistAPI interface {
	Watchlist(ctx context.Context) ([]WatchlistItem, error)
	AddToWatchlist(ctx context.Context, cardID string) (WatchlistItem, error)
	RemoveFromWatchlist(ctx context.Context, cardID string) error
	ReorderWatchlist(ctx context.Context, cardIDs []string) ([]WatchlistItem, error)
}

// WatchlistCache holds the user's watchlist locally. Mutations are applied to
// the cache before the server call, reconciled with the server's answer on
// success and rolled back on failure. Mutations run one at a time; reads see
// tentative state while a mutation is in flight.
type WatchlistCache struct {
	api WatchlistAPI
	now func() time.Time

	mutate sync.Mutex

	mu     sync.RWMutex
	items  []WatchlistItem
	loaded bool
	saved  map[string]bool
}

// NewWatchlistCache returns an empty cache backed by api.
func NewWatchlistCache(api WatchlistAPI) *WatchlistCache {
	return &WatchlistCache{api: api, now: time.Now, saved: make(map[string]bool)}
}

type watchlistSnapshot struct {
	items  []WatchlistItem
	loaded bool
	saved  map[string]bool
}

// Items returns the cached watchlist, loading it from the server when the
// watchlist key is missing or invalidated. A load waits for any in-flight
// mutation so it cannot overwrite tentative state.
func (c *WatchlistCache) Items(ctx context.Context) ([]WatchlistItem, error) {
	if out, ok := c.cachedItems(); ok {
		return out, nil
	}

	c.mutate.Lock()
	defer c.mutate.Unlock()
	if out, ok := c.cachedItems(); ok {
		return out, nil
	}

	items, err := c.api.Watchlist(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.setItemsLocked(items)
	out := cloneItems(c.items)
	c.mu.Unlock()
	return out, nil
}

func (c *WatchlistCache) cachedItems() ([]WatchlistItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return nil, false
	}
	return cloneItems(c.items), true
}

// Saved reports whether cardID is on the watchlist.
func (c *WatchlistCache) Saved(ctx context.Context, cardID string) (bool, error) {
	key := ItemKey(cardID)
	c.mu.RLock()
	v, ok := c.saved[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	items, err := c.Items(ctx)
	if err != nil {
		return false, err
	}
	found := indexOf(items, cardID) >= 0
	c.mu.Lock()
	c.saved[key] = found
	c.mu.Unlock()
	return found, nil
}

// Invalidate drops cached entries. WatchlistKey drops the list and every
// per-card flag; an ItemKey drops only that flag.
func (c *WatchlistCache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		switch {
		case key == WatchlistKey:
			c.items = nil
			c.loaded = false
			c.saved = make(map[string]bool)
		case strings.HasPrefix(key, WatchlistKey+":"):
			delete(c.saved, key)
		}
	}
}

// Add saves cardID.
func (c *WatchlistCache) Add(ctx context.Context, cardID string) (WatchlistItem, error) {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	snap := c.apply(func() {
		if c.loaded && indexOf(c.items, cardID) < 0 {
			c.items = append(c.items, WatchlistItem{CardID: cardID, Position: len(c.items), AddedAt: c.now().UTC()})
		}
		c.saved[ItemKey(cardID)] = true
	})

	item, err := c.api.AddToWatchlist(ctx, cardID)
	if err != nil {
		c.restore(snap)
		return WatchlistItem{}, err
	}

	c.mu.Lock()
	if i := indexOf(c.items, cardID); i >= 0 {
		if item.Card == nil {
			item.Card = c.items[i].Card
		}
		c.items[i] = item
	} else if c.loaded {
		c.items = append(c.items, item)
	}
	c.saved[ItemKey(cardID)] = true
	c.mu.Unlock()
	return item, nil
}

// Remove deletes cardID. A card the server no longer has counts as removed.
func (c *WatchlistCache) Remove(ctx context.Context, cardID string) error {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	snap := c.apply(func() {
		if i := indexOf(c.items, cardID); i >= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
			renumber(c.items)
		}
		c.saved[ItemKey(cardID)] = false
	})

	if err := c.api.RemoveFromWatchlist(ctx, cardID); err != nil && !errors.Is(err, ErrNotFound) {
		c.restore(snap)
		return err
	}
	return nil
}

// Reorder puts the watchlist in cardIDs order and replaces the cache with the
// server's resulting list.
func (c *WatchlistCache) Reorder(ctx context.Context, cardIDs []string) ([]WatchlistItem, error) {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	snap := c.apply(func() {
		if !c.loaded {
			return
		}
		reordered := make([]WatchlistItem, 0, len(c.items))
		for _, id := range cardIDs {
			if i := indexOf(c.items, id); i >= 0 {
				reordered = append(reordered, c.items[i])
			}
		}
		for _, item := range c.items {
			if indexOf(reordered, item.CardID) < 0 {
				reordered = append(reordered, item)
			}
		}
		renumber(reordered)
		c.items = reordered
	})

	items, err := c.api.ReorderWatchlist(ctx, cardIDs)
	if err != nil {
		c.restore(snap)
		return nil, err
	}

	c.mu.Lock()
	c.setItemsLocked(items)
	out := cloneItems(c.items)
	c.mu.Unlock()
	return out, nil
}

// apply snapshots the cache and runs change under the write lock.
func (c *WatchlistCache) apply(change func()) watchlistSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := watchlistSnapshot{
		items:  cloneItems(c.items),
		loaded: c.loaded,
		saved:  make(map[string]bool, len(c.saved)),
	}
	for k, v := range c.saved {
		snap.saved[k] = v
	}
	change()
	return snap
}

func (c *WatchlistCache) restore(snap watchlistSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = snap.items
	c.loaded = snap.loaded
	c.saved = snap.saved
}

func (c *WatchlistCache) setItemsLocked(items []WatchlistItem) {
	c.items = cloneItems(items)
	c.loaded = true
	c.saved = make(map[string]bool, len(items))
	for _, item := range items {
		c.saved[ItemKey(item.CardID)] = true
	}
}

func indexOf(items []WatchlistItem, cardID string) int {
	for i, item := range items {
		if item.CardID == cardID {
			return i
		}
	}
	return -1
}

func renumber(items []WatchlistItem) {
	for i := range items {
		items[i].Position = i
	}
}

func cloneItems(items []WatchlistItem) []WatchlistItem {
	if items == nil {
		return nil
	}
	out := make([]WatchlistItem, len(items))
	copy(out, items)
	return out
}
