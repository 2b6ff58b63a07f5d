package translate

import (
	"context"
	"sync/atomic"

	"github.com/minios-linux/doctrans/memo"
)

// CachingClient answers from a translation memory and falls through to Next
// for strings the memory does not know. New translations are recorded.
type CachingClient struct {
	Next Client
	Memo *memo.Memo

	hits, misses atomic.Int64
}

// NewCachingClient wraps next with m.
func NewCachingClient(next Client, m *memo.Memo) *CachingClient {
	return &CachingClient{Next: next, Memo: m}
}

// Translate implements Client.
func (c *CachingClient) Translate(ctx context.Context, text string, pair LanguagePair) (string, error) {
	key := pair.String()
	if tr, ok := c.Memo.Lookup(key, text); ok {
		c.hits.Add(1)
		return tr, nil
	}
	c.misses.Add(1)
	tr, err := c.Next.Translate(ctx, text, pair)
	if err != nil {
		return "", err
	}
	c.Memo.Put(key, text, tr)
	return tr, nil
}

// Stats returns the number of memory hits and misses so far.
func (c *CachingClient) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
