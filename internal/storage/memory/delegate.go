package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripdesk/tripdesk/internal/core/catalog"
	"github.com/tripdesk/tripdesk/internal/storage"
)

// Store holds one in-memory delegate per catalog type. It backs the test
// suites and local development without Postgres.
type Store struct {
	mu        sync.RWMutex
	delegates map[catalog.EntityType]*Delegate
}

func NewStore() *Store {
	s := &Store{delegates: make(map[catalog.EntityType]*Delegate, len(catalog.All))}
	for _, t := range catalog.All {
		s.delegates[t] = &Delegate{store: s, typ: t, records: make(map[string]storage.Record)}
	}
	return s
}

func (s *Store) Delegate(t catalog.EntityType) *Delegate {
	return s.delegates[t]
}

func (s *Store) Delegates() map[catalog.EntityType]storage.Delegate {
	m := make(map[catalog.EntityType]storage.Delegate, len(s.delegates))
	for t, d := range s.delegates {
		m[t] = d
	}
	return m
}

// Delegate implements storage.Delegate over a map. CreateErr, when set,
// fails the next Create call; tests use it to exercise best-effort paths.
type Delegate struct {
	store   *Store
	typ     catalog.EntityType
	records map[string]storage.Record
	order   []string

	CreateErr error
}

func (d *Delegate) FindMany(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	d.store.mu.RLock()
	var out []storage.Record
	for _, id := range d.order {
		rec := d.records[id]
		if matches(rec, q.Where) {
			out = append(out, clone(rec))
		}
	}
	d.store.mu.RUnlock()

	sortRecords(out, q.OrderBy)
	if q.Skip != nil && *q.Skip > 0 {
		if *q.Skip >= len(out) {
			out = nil
		} else {
			out = out[*q.Skip:]
		}
	}
	if q.Take != nil && *q.Take < len(out) {
		out = out[:*q.Take]
	}
	for _, rec := range out {
		d.hydrate(rec, q.Include)
		project(rec, q.Select)
	}
	return out, nil
}

func (d *Delegate) FindUnique(ctx context.Context, q storage.Query) (storage.Record, error) {
	d.store.mu.RLock()
	var found storage.Record
	for _, id := range d.order {
		rec := d.records[id]
		if matches(rec, q.Where) {
			found = clone(rec)
			break
		}
	}
	d.store.mu.RUnlock()

	if found == nil {
		return nil, nil
	}
	d.hydrate(found, q.Include)
	project(found, q.Select)
	return found, nil
}

func (d *Delegate) Count(ctx context.Context, where map[string]interface{}) (int, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()

	total := 0
	for _, rec := range d.records {
		if matches(rec, where) {
			total++
		}
	}
	return total, nil
}

func (d *Delegate) Create(ctx context.Context, m storage.Mutation) (storage.Record, error) {
	if d.CreateErr != nil {
		err := d.CreateErr
		d.CreateErr = nil
		return nil, err
	}

	data := applyRelationData(d.typ, m.Data)
	id, _ := data["id"].(string)
	if id == "" {
		id = uuid.New().String()
	}

	rec := storage.Record{"id": id, "createdAt": time.Now().UTC()}
	if catalog.HasUpdatedAt(d.typ) {
		rec["updatedAt"] = time.Now().UTC()
	}
	for k, v := range data {
		if k != "id" {
			rec[k] = v
		}
	}

	d.store.mu.Lock()
	d.records[id] = rec
	d.order = append(d.order, id)
	d.store.mu.Unlock()

	out := clone(rec)
	d.hydrate(out, m.Include)
	project(out, m.Select)
	return out, nil
}

func (d *Delegate) Update(ctx context.Context, m storage.Mutation) (storage.Record, error) {
	data := applyRelationData(d.typ, m.Data)

	d.store.mu.Lock()
	var target storage.Record
	for _, id := range d.order {
		if matches(d.records[id], m.Where) {
			target = d.records[id]
			break
		}
	}
	if target == nil {
		d.store.mu.Unlock()
		return nil, storage.ErrNoRecord
	}
	for k, v := range data {
		if k != "id" {
			target[k] = v
		}
	}
	if catalog.HasUpdatedAt(d.typ) {
		target["updatedAt"] = time.Now().UTC()
	}
	d.store.mu.Unlock()

	out := clone(target)
	d.hydrate(out, m.Include)
	project(out, m.Select)
	return out, nil
}

func (d *Delegate) Delete(ctx context.Context, where map[string]interface{}) (storage.Record, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	for i, id := range d.order {
		rec := d.records[id]
		if matches(rec, where) {
			delete(d.records, id)
			d.order = append(d.order[:i], d.order[i+1:]...)
			return clone(rec), nil
		}
	}
	return nil, storage.ErrNoRecord
}

func (d *Delegate) hydrate(rec storage.Record, include map[string]interface{}) {
	if len(include) == 0 {
		return
	}
	for name, want := range include {
		if want == false {
			continue
		}
		rel, ok := catalog.Relations(d.typ)[name]
		if !ok {
			continue
		}
		fk, _ := rec[rel.Field].(string)
		if fk == "" {
			rec[name] = nil
			continue
		}
		related := d.store.Delegate(rel.Target)
		d.store.mu.RLock()
		target, ok := related.records[fk]
		d.store.mu.RUnlock()
		if ok {
			rec[name] = clone(target)
		} else {
			rec[name] = nil
		}
	}
}

func applyRelationData(typ catalog.EntityType, data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	for name, rel := range catalog.Relations(typ) {
		instr, ok := out[name].(map[string]interface{})
		if !ok {
			continue
		}
		if c, ok := instr["connect"].(map[string]interface{}); ok {
			out[rel.Field] = c["id"]
			delete(out, name)
		} else if instr["disconnect"] == true {
			out[rel.Field] = nil
			delete(out, name)
		}
	}
	return out
}

func project(rec storage.Record, sel map[string]interface{}) {
	if len(sel) == 0 {
		return
	}
	for k := range rec {
		if want, ok := sel[k]; !ok || want == false {
			delete(rec, k)
		}
	}
}

func clone(rec storage.Record) storage.Record {
	out := make(storage.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func matches(rec storage.Record, where map[string]interface{}) bool {
	for field, cond := range where {
		if ops, ok := cond.(map[string]interface{}); ok {
			for op, operand := range ops {
				if !matchOp(rec[field], op, operand) {
					return false
				}
			}
			continue
		}
		if !matchOp(rec[field], "equals", cond) {
			return false
		}
	}
	return true
}

func matchOp(value interface{}, op string, operand interface{}) bool {
	switch op {
	case "equals":
		return looseEqual(value, operand)
	case "not":
		return !looseEqual(value, operand)
	case "contains":
		return strings.Contains(
			strings.ToLower(fmt.Sprint(value)),
			strings.ToLower(fmt.Sprint(operand)),
		)
	case "in":
		arr, ok := operand.([]interface{})
		if !ok {
			return false
		}
		for _, v := range arr {
			if looseEqual(value, v) {
				return true
			}
		}
		return false
	case "gt", "gte", "lt", "lte":
		c, ok := compare(value, operand)
		if !ok {
			return false
		}
		switch op {
		case "gt":
			return c > 0
		case "gte":
			return c >= 0
		case "lt":
			return c < 0
		default:
			return c <= 0
		}
	}
	return false
}

func compare(a, b interface{}) (int, bool) {
	if at, ok := toTime(a); ok {
		if bt, ok := toTime(b); ok {
			return at.Compare(bt), true
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// looseEqual compares through a JSON round trip so time.Time values and
// their serialized form, or int and float64, compare equal.
func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

func sortRecords(records []storage.Record, orderBy interface{}) {
	terms := orderTermsOf(orderBy)
	if len(terms) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, term := range terms {
			c, ok := compare(records[i][term.field], records[j][term.field])
			if !ok || c == 0 {
				continue
			}
			if strings.EqualFold(term.dir, "desc") {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

type orderTerm struct {
	field string
	dir   string
}

func orderTermsOf(orderBy interface{}) []orderTerm {
	switch v := orderBy.(type) {
	case string:
		return []orderTerm{{field: v, dir: "asc"}}
	case map[string]interface{}:
		// Map iteration order is random; sort the fields so a multi-key
		// object sorts the same way on every request. Callers needing a
		// specific term priority send the array form.
		fields := make([]string, 0, len(v))
		for field := range v {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		terms := make([]orderTerm, 0, len(fields))
		for _, field := range fields {
			terms = append(terms, orderTerm{field: field, dir: fmt.Sprint(v[field])})
		}
		return terms
	case []interface{}:
		var terms []orderTerm
		for _, item := range v {
			terms = append(terms, orderTermsOf(item)...)
		}
		return terms
	}
	return nil
}
