// Package dialecttest provides an in-memory driver that records the
// requests it receives. It keeps mutated nodes in a flat node store and
// answers simple root queries, enough to exercise clients and migrations
// without a running store.
package dialecttest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/syssam/velograph/dialect"
)

// ErrClosed is returned by requests to a closed driver.
var ErrClosed = errors.New("dialecttest: driver closed")

// QueryFunc answers a query. Returning a nil response falls back to the
// built-in evaluation.
type QueryFunc func(query string, vars map[string]string) (*dialect.Response, error)

// Driver is an in-memory dialect.Driver.
type Driver struct {
	mu        sync.Mutex
	nodes     map[string]map[string]any
	next      uint64
	alters    []dialect.Operation
	queries   []string
	mutations []*dialect.Mutation
	commits   int
	discards  int
	closed    bool

	// AlterErr, when set, is consulted before every Alter.
	AlterErr func(op dialect.Operation) error
	// MutateErr, when set, is consulted before every Mutate.
	MutateErr func(m *dialect.Mutation) error
	// OnQuery, when set, answers queries before the built-in evaluation.
	OnQuery QueryFunc
}

// New returns an empty driver. Assigned uids start at 0x1.
func New() *Driver {
	return &Driver{nodes: make(map[string]map[string]any), next: 1}
}

// Dialect implements dialect.Driver.
func (*Driver) Dialect() string { return dialect.Dgraph }

// Close implements dialect.Driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Alter records the operation. Drop operations also apply to the stored
// nodes.
func (d *Driver) Alter(_ context.Context, op dialect.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.AlterErr != nil {
		if err := d.AlterErr(op); err != nil {
			return err
		}
	}
	d.alters = append(d.alters, op)
	switch {
	case op.DropAll:
		d.nodes = make(map[string]map[string]any)
	case op.DropAttr != "":
		for _, n := range d.nodes {
			delete(n, op.DropAttr)
		}
	}
	return nil
}

// Query answers a query with OnQuery or the built-in evaluation.
func (d *Driver) Query(_ context.Context, query string, vars map[string]string) (*dialect.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	d.queries = append(d.queries, query)
	if d.OnQuery != nil {
		resp, err := d.OnQuery(query, vars)
		if err != nil || resp != nil {
			return resp, err
		}
	}
	return d.eval(query, vars)
}

// Tx implements dialect.Driver.
func (d *Driver) Tx(context.Context) (dialect.Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	return &Tx{drv: d}, nil
}

// Alters returns the recorded schema operations.
func (d *Driver) Alters() []dialect.Operation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dialect.Operation(nil), d.alters...)
}

// Queries returns the recorded query texts.
func (d *Driver) Queries() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.queries...)
}

// Mutations returns the recorded mutations, committed or not.
func (d *Driver) Mutations() []*dialect.Mutation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*dialect.Mutation(nil), d.mutations...)
}

// Commits returns the number of committed transactions.
func (d *Driver) Commits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits
}

// Discards returns the number of discarded transactions.
func (d *Driver) Discards() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.discards
}

// Node returns a copy of a stored node.
func (d *Driver) Node(uid string) (map[string]any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[uid]
	if !ok {
		return nil, false
	}
	return clone(n), true
}

// Nodes returns the number of stored nodes.
func (d *Driver) Nodes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.nodes)
}

// Put stores a node directly, bypassing transactions.
func (d *Driver) Put(node map[string]any) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	assigned := make(map[string]string)
	id, err := d.flatten(node, assigned, d.nodes)
	return id, err
}

// Tx is a transaction of Driver. Mutations are applied on commit.
type Tx struct {
	drv     *Driver
	pending map[string]map[string]any
	deletes []any
	done    bool
}

// Query implements dialect.Tx.
func (tx *Tx) Query(ctx context.Context, query string, vars map[string]string) (*dialect.Response, error) {
	return tx.drv.Query(ctx, query, vars)
}

// Mutate records the mutation and assigns uids to its blank nodes.
func (tx *Tx) Mutate(_ context.Context, m *dialect.Mutation) (*dialect.Response, error) {
	d := tx.drv
	d.mu.Lock()
	defer d.mu.Unlock()
	if tx.done {
		return nil, errors.New("dialecttest: transaction finished")
	}
	if d.MutateErr != nil {
		if err := d.MutateErr(m); err != nil {
			return nil, err
		}
	}
	d.mutations = append(d.mutations, m)
	if tx.pending == nil {
		tx.pending = make(map[string]map[string]any)
	}
	assigned := make(map[string]string)
	if len(m.Set) > 0 {
		v, err := decode(m.Set)
		if err != nil {
			return nil, err
		}
		for _, n := range objects(v) {
			if _, err := d.flatten(n, assigned, tx.pending); err != nil {
				return nil, err
			}
		}
	}
	if len(m.Delete) > 0 {
		v, err := decode(m.Delete)
		if err != nil {
			return nil, err
		}
		tx.deletes = append(tx.deletes, v)
	}
	return &dialect.Response{UIDs: assigned}, nil
}

// Commit applies the pending mutations.
func (tx *Tx) Commit(context.Context) error {
	d := tx.drv
	d.mu.Lock()
	defer d.mu.Unlock()
	if tx.done {
		return errors.New("dialecttest: transaction finished")
	}
	tx.done = true
	for id, n := range tx.pending {
		cur, ok := d.nodes[id]
		if !ok {
			cur = make(map[string]any)
			d.nodes[id] = cur
		}
		for k, v := range n {
			cur[k] = v
		}
	}
	for _, v := range tx.deletes {
		for _, n := range objects(v) {
			d.delete(n)
		}
	}
	d.commits++
	return nil
}

// Discard drops the pending mutations. It is a no-op after Commit.
func (tx *Tx) Discard(context.Context) error {
	d := tx.drv
	d.mu.Lock()
	defer d.mu.Unlock()
	if tx.done {
		return nil
	}
	tx.done = true
	d.discards++
	return nil
}

func (d *Driver) delete(n map[string]any) {
	id, _ := n["uid"].(string)
	cur, ok := d.nodes[id]
	if !ok {
		return
	}
	if len(n) == 1 {
		delete(d.nodes, id)
		return
	}
	for k, v := range n {
		if k != "uid" && v == nil {
			delete(cur, k)
		}
	}
}

// flatten stores a nested node into dst, replacing child objects by uid
// references, and returns its uid.
func (d *Driver) flatten(n map[string]any, assigned map[string]string, dst map[string]map[string]any) (string, error) {
	id, _ := n["uid"].(string)
	switch {
	case id == "":
		id = d.mint()
	case strings.HasPrefix(id, "_:"):
		token := strings.TrimPrefix(id, "_:")
		if a, ok := assigned[token]; ok {
			id = a
		} else {
			id = d.mint()
			assigned[token] = id
		}
	}
	node, ok := dst[id]
	if !ok {
		node = make(map[string]any)
		dst[id] = node
	}
	node["uid"] = id
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "uid" {
			continue
		}
		switch x := n[k].(type) {
		case map[string]any:
			if isValue(x) {
				node[k] = x
				continue
			}
			ref, err := d.child(x, assigned, dst)
			if err != nil {
				return "", err
			}
			node[k] = ref
		case []any:
			list := make([]any, 0, len(x))
			for _, item := range x {
				obj, ok := item.(map[string]any)
				if !ok || isValue(obj) {
					list = append(list, item)
					continue
				}
				ref, err := d.child(obj, assigned, dst)
				if err != nil {
					return "", err
				}
				list = append(list, ref)
			}
			node[k] = list
		default:
			node[k] = x
		}
	}
	return id, nil
}

// child stores a child node and returns the reference kept in its parent:
// the uid and any edge facets.
func (d *Driver) child(n map[string]any, assigned map[string]string, dst map[string]map[string]any) (map[string]any, error) {
	facets := make(map[string]any)
	body := make(map[string]any, len(n))
	for k, v := range n {
		if strings.Contains(k, "|") {
			facets[k] = v
			continue
		}
		body[k] = v
	}
	id, err := d.flatten(body, assigned, dst)
	if err != nil {
		return nil, err
	}
	facets["uid"] = id
	return facets, nil
}

// isValue reports whether an object is a value, such as a GeoJSON
// geometry, rather than a node.
func isValue(m map[string]any) bool {
	_, geo := m["coordinates"]
	return geo
}

func (d *Driver) mint() string {
	id := "0x" + strconv.FormatUint(d.next, 16)
	d.next++
	return id
}

var rootRe = regexp.MustCompile(`(?m)^\s*(\w+)\(func:\s*(\w+)\(([^)]*)\)`)

// eval answers root functions type(T), uid($v) and eq(pred, $v), returning
// whole stored nodes with edges as uid references.
func (d *Driver) eval(query string, vars map[string]string) (*dialect.Response, error) {
	m := rootRe.FindStringSubmatch(query)
	if m == nil {
		return &dialect.Response{JSON: []byte("{}")}, nil
	}
	block, fn, args := m[1], m[2], strings.Split(m[3], ",")
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
		if strings.HasPrefix(args[i], "$") {
			args[i] = vars[args[i]]
		}
	}
	var match func(n map[string]any) bool
	switch fn {
	case "type":
		match = func(n map[string]any) bool { return hasString(n["dgraph.type"], args[0]) }
	case "uid":
		ids := strings.Split(strings.Trim(args[0], "[]"), ",")
		match = func(n map[string]any) bool {
			for _, id := range ids {
				if strings.TrimSpace(id) == n["uid"] {
					return true
				}
			}
			return false
		}
	case "eq":
		if len(args) != 2 {
			return nil, fmt.Errorf("dialecttest: eq takes two arguments")
		}
		match = func(n map[string]any) bool { return fmt.Sprint(n[args[0]]) == args[1] }
	default:
		return nil, fmt.Errorf("dialecttest: unsupported root function %s", fn)
	}
	out := make([]any, 0)
	for _, n := range d.nodes {
		if match(n) {
			out = append(out, clone(n))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return uidLess(out[i].(map[string]any)["uid"].(string), out[j].(map[string]any)["uid"].(string))
	})
	b, err := json.Marshal(map[string]any{block: out})
	if err != nil {
		return nil, err
	}
	return &dialect.Response{JSON: b}, nil
}

func uidLess(a, b string) bool {
	x, _ := strconv.ParseUint(strings.TrimPrefix(a, "0x"), 16, 64)
	y, _ := strconv.ParseUint(strings.TrimPrefix(b, "0x"), 16, 64)
	return x < y
}

func hasString(v any, s string) bool {
	switch x := v.(type) {
	case string:
		return x == s
	case []any:
		for _, e := range x {
			if e == s {
				return true
			}
		}
	case []string:
		for _, e := range x {
			if e == s {
				return true
			}
		}
	}
	return false
}

func decode(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("dialecttest: %w", err)
	}
	return v, nil
}

func objects(v any) []map[string]any {
	switch x := v.(type) {
	case map[string]any:
		return []map[string]any{x}
	case []any:
		out := make([]map[string]any, 0, len(x))
		for _, e := range x {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func clone(n map[string]any) map[string]any {
	out := make(map[string]any, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)
