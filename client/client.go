// Package client reads and writes mapped entities through a store driver.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/codec"
	"github.com/syssam/velograph/compiler"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/query"
	"github.com/syssam/velograph/query/filter"
	"github.com/syssam/velograph/registry"
	"github.com/syssam/velograph/uid"
)

// Client is a session over a driver and a frozen registry. It is safe for
// concurrent use.
type Client struct {
	drv   dialect.Driver
	reg   *registry.Context
	codec *codec.Codec
	log   *slog.Logger
	depth int

	cache     velograph.Cache
	cacheTTL  time.Duration
	namespace string
}

// Option configures a Client.
type Option func(*Client) error

// WithLogger sets the logger of the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) error {
		if l == nil {
			return errors.New("client: nil logger")
		}
		c.log = l
		return nil
	}
}

// WithDepth sets the edge depth fetched by Get. Defaults to 1.
func WithDepth(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("client: negative depth %d", n)
		}
		c.depth = n
		return nil
	}
}

// WithCache caches the documents fetched by Get. Entries are dropped when
// the node is saved or deleted through the client.
func WithCache(cache velograph.Cache, ttl time.Duration) Option {
	return func(c *Client) error {
		if cache == nil {
			return errors.New("client: nil cache")
		}
		c.cache, c.cacheTTL = cache, ttl
		return nil
	}
}

// WithCacheNamespace sets the key namespace of cached documents.
func WithCacheNamespace(ns string) Option {
	return func(c *Client) error {
		c.namespace = ns
		return nil
	}
}

// New returns a client over drv. The registry must be frozen.
func New(drv dialect.Driver, reg *registry.Context, opts ...Option) (*Client, error) {
	if drv == nil {
		return nil, errors.New("client: nil driver")
	}
	if reg == nil || !reg.Frozen() {
		return nil, velograph.ErrNotFrozen
	}
	c := &Client{
		drv:   drv,
		reg:   reg,
		log:   slog.Default(),
		depth: 1,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.codec = codec.New(reg, codec.WithLogger(c.log))
	return c, nil
}

// Driver returns the driver of the client.
func (c *Client) Driver() dialect.Driver { return c.drv }

// Codec returns the codec of the client.
func (c *Client) Codec() *codec.Codec { return c.codec }

// ApplySchema asserts the compiled schema of the registry against the
// store. Existing predicates and types are updated in place.
func (c *Client) ApplySchema(ctx context.Context) error {
	snap, err := compiler.Compile(c.reg)
	if err != nil {
		return err
	}
	if err := c.drv.Alter(ctx, dialect.Operation{Schema: snap.StoreText()}); err != nil {
		return fmt.Errorf("client: apply schema: %w", err)
	}
	c.log.Info("schema applied", "types", len(snap.TypeNames()), "predicates", len(snap.PredicateNames()))
	return nil
}

// Save writes entities and the entities they reference in one mutation.
// Entities passed by pointer get the uids assigned by the store. Unsaved
// entities shared between the arguments are created once.
func (c *Client) Save(ctx context.Context, entities ...any) error {
	if len(entities) == 0 {
		return nil
	}
	enc, err := c.codec.EncodeAll(entities...)
	if err != nil {
		return err
	}
	set, err := json.Marshal(enc.Docs)
	if err != nil {
		return fmt.Errorf("client: marshal mutation: %w", err)
	}
	resp, err := c.mutate(ctx, &dialect.Mutation{Set: set})
	if err != nil {
		return err
	}
	if err := enc.AssignUIDs(resp.UIDs); err != nil {
		return err
	}
	var stale []string
	for _, d := range enc.Docs {
		stale = concreteUIDs(d, stale)
	}
	c.invalidate(ctx, stale)
	c.log.Debug("entities saved", "entities", len(entities), "assigned", len(resp.UIDs))
	return nil
}

// concreteUIDs collects the uids of already stored nodes in a document.
func concreteUIDs(v any, out []string) []string {
	switch x := v.(type) {
	case codec.Document:
		if s, ok := x[velograph.UIDPredicate].(string); ok && strings.HasPrefix(s, "0x") {
			out = append(out, s)
		}
		for k, child := range x {
			if k != velograph.UIDPredicate {
				out = concreteUIDs(child, out)
			}
		}
	case []any:
		for _, child := range x {
			out = concreteUIDs(child, out)
		}
	case []codec.Document:
		for _, child := range x {
			out = concreteUIDs(child, out)
		}
	}
	return out
}

func (c *Client) mutate(ctx context.Context, m *dialect.Mutation) (resp *dialect.Response, err error) {
	tx, err := c.drv.Tx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Discard(ctx)
		}
	}()
	if resp, err = tx.Mutate(ctx, m); err != nil {
		return nil, fmt.Errorf("client: mutate: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("client: commit: %w", err)
	}
	return resp, nil
}

// Get fetches one node into dst, a pointer to an entity. It returns a
// NotFoundError when no node of the entity's type has the uid.
func (c *Client) Get(ctx context.Context, id uid.UID, dst any) error {
	if !id.IsConcrete() {
		return fmt.Errorf("client: get %q: %w", id, uid.ErrNotConcrete)
	}
	cm, err := c.reg.Resolve(dst)
	if err != nil {
		return err
	}
	if data, ok := c.cached(ctx, cm.TypeName, id); ok {
		if err := c.codec.Unmarshal(data, dst); err == nil {
			return nil
		}
	}
	q, err := query.New(c.reg, dst, query.WithDepth(c.depth)).
		Func(filter.UID(id)).
		Filter(filter.Type(cm.TypeName)).
		Build()
	if err != nil {
		return err
	}
	nodes, err := c.run(ctx, q)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return velograph.NewNotFoundError(cm.TypeName, id.String())
	}
	if err := c.codec.Unmarshal(nodes[0], dst); err != nil {
		return err
	}
	c.store(ctx, cm.TypeName, id, nodes[0])
	return nil
}

// Find runs a built query and decodes its block into dst, a pointer to a
// slice of entities.
func (c *Client) Find(ctx context.Context, q *query.Query, dst any) error {
	if rv := reflect.ValueOf(dst); rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("client: find requires a pointer to a slice, got %T", dst)
	}
	nodes, err := c.run(ctx, q)
	if err != nil {
		return err
	}
	list, err := json.Marshal(nodes)
	if err != nil {
		return err
	}
	return c.codec.Unmarshal(list, dst)
}

// run executes a query and returns the raw nodes of its block.
func (c *Client) run(ctx context.Context, q *query.Query) ([]json.RawMessage, error) {
	resp, err := c.drv.Query(ctx, q.Text, q.Vars)
	if err != nil {
		return nil, fmt.Errorf("client: query %s: %w", q.Name, err)
	}
	var blocks map[string][]json.RawMessage
	if err := json.Unmarshal(resp.JSON, &blocks); err != nil {
		return nil, fmt.Errorf("client: decode response: %w", err)
	}
	return blocks[q.Name], nil
}

// Delete removes nodes and all their outgoing predicates.
func (c *Client) Delete(ctx context.Context, ids ...uid.UID) error {
	if len(ids) == 0 {
		return nil
	}
	nodes := make([]map[string]string, len(ids))
	keys := make([]string, len(ids))
	for i, id := range ids {
		if !id.IsConcrete() {
			return fmt.Errorf("client: delete %q: %w", id, uid.ErrNotConcrete)
		}
		nodes[i] = map[string]string{velograph.UIDPredicate: id.String()}
		keys[i] = id.String()
	}
	del, err := json.Marshal(nodes)
	if err != nil {
		return err
	}
	if _, err := c.mutate(ctx, &dialect.Mutation{Delete: del}); err != nil {
		return err
	}
	c.invalidate(ctx, keys)
	c.log.Debug("nodes deleted", "count", len(ids))
	return nil
}
