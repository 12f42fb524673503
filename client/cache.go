package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/uid"
)

// entry is the cached form of a fetched node document.
type entry struct {
	Type      string    `msgpack:"t"`
	Doc       []byte    `msgpack:"d"`
	FetchedAt time.Time `msgpack:"f"`
}

func (c *Client) key(id string) string {
	return velograph.CacheKey{Namespace: c.namespace, UID: id}.String()
}

// cached returns the document of a node cached for the given type. Cache
// errors count as misses.
func (c *Client) cached(ctx context.Context, typeName string, id uid.UID) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, c.key(id.String()))
	if err != nil {
		c.log.Warn("cache get failed", "uid", id.String(), "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var e entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		c.log.Warn("cache entry corrupt", "uid", id.String(), "error", err)
		return nil, false
	}
	if e.Type != typeName {
		return nil, false
	}
	return e.Doc, true
}

func (c *Client) store(ctx context.Context, typeName string, id uid.UID, doc json.RawMessage) {
	if c.cache == nil {
		return
	}
	data, err := msgpack.Marshal(&entry{Type: typeName, Doc: doc, FetchedAt: time.Now().UTC()})
	if err == nil {
		err = c.cache.Set(ctx, c.key(id.String()), data, c.cacheTTL)
	}
	if err != nil {
		c.log.Warn("cache set failed", "uid", id.String(), "error", err)
	}
}

func (c *Client) invalidate(ctx context.Context, ids []string) {
	if c.cache == nil {
		return
	}
	for _, id := range ids {
		if err := c.cache.Delete(ctx, c.key(id)); err != nil {
			c.log.Warn("cache delete failed", "uid", id, "error", err)
		}
	}
}
