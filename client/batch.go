package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/query"
	"github.com/syssam/velograph/query/filter"
	"github.com/syssam/velograph/uid"
)

// BatchFunc loads values by key. The results and errors have the length
// and order of keys, as data loaders such as graph-gophers/dataloader
// expect.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, []error)

// OrderByKeys reorders values to match keys. A key without value gets the
// zero value and the error returned by missing.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn func(V) K, missing func(K) error) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	out := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, k := range keys {
		if v, ok := lookup[k]; ok {
			out[i] = v
		} else {
			errs[i] = missing(k)
		}
	}
	return out, errs
}

// Loader returns a BatchFunc fetching entities of type T by uid in one
// query per batch. Duplicate keys share one entity.
//
//	load := client.Loader[Person](c)
//	people, errs := load(ctx, []uid.UID{a, b})
func Loader[T any](c *Client) BatchFunc[uid.UID, *T] {
	return func(ctx context.Context, keys []uid.UID) ([]*T, []error) {
		nodes, typeName, err := c.batch(ctx, new(T), keys)
		if err != nil {
			errs := make([]error, len(keys))
			for i := range errs {
				errs[i] = err
			}
			return make([]*T, len(keys)), errs
		}
		type loaded struct {
			id  uid.UID
			ent *T
		}
		values := make([]loaded, 0, len(nodes))
		for _, raw := range nodes {
			var node struct {
				UID string `json:"uid"`
			}
			if err := json.Unmarshal(raw, &node); err != nil {
				continue
			}
			id, err := uid.Parse(node.UID)
			if err != nil {
				continue
			}
			ent := new(T)
			if err := c.codec.Unmarshal(raw, ent); err != nil {
				c.log.Warn("batch decode failed", "type", typeName, "uid", node.UID, "error", err)
				continue
			}
			values = append(values, loaded{id: id, ent: ent})
		}
		ordered, errs := OrderByKeys(keys, values,
			func(l loaded) uid.UID { return l.id },
			func(id uid.UID) error { return velograph.NewNotFoundError(typeName, id.String()) },
		)
		out := make([]*T, len(keys))
		for i, l := range ordered {
			out[i] = l.ent
		}
		return out, errs
	}
}

// batch queries the nodes of the given uids having the entity's type.
func (c *Client) batch(ctx context.Context, entity any, keys []uid.UID) ([]json.RawMessage, string, error) {
	cm, err := c.reg.Resolve(entity)
	if err != nil {
		return nil, "", err
	}
	if len(keys) == 0 {
		return nil, cm.TypeName, nil
	}
	seen := make(map[uid.UID]bool, len(keys))
	unique := make([]uid.UID, 0, len(keys))
	for _, id := range keys {
		if !id.IsConcrete() {
			return nil, cm.TypeName, fmt.Errorf("client: load %q: %w", id, uid.ErrNotConcrete)
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	q, err := query.New(c.reg, entity, query.WithDepth(c.depth)).
		Func(filter.UID(unique...)).
		Filter(filter.Type(cm.TypeName)).
		Build()
	if err != nil {
		return nil, cm.TypeName, err
	}
	nodes, err := c.run(ctx, q)
	return nodes, cm.TypeName, err
}
