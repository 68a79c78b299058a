// Package memstore is an in-memory document store. It evaluates the same
// filters and conditional sums as the MongoDB adapter, over documents held as
// field maps, and backs STORE_DRIVER=memory runs and tests.
package memstore

import (
	"context"
	"sync"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/store"
)

// Document is a stored record: field name to value. Absent measurements are
// stored as nil, mirroring BSON null.
type Document map[string]any

// Collection holds documents across Open/Close cycles, like a database would.
// It implements store.Opener.
type Collection struct {
	mu   sync.Mutex
	docs []Document
}

// New returns an empty collection.
func New() *Collection {
	return &Collection{}
}

// Open returns a handle on the collection. It never fails.
func (c *Collection) Open(_ context.Context) (store.Store, error) {
	return &handle{c: c}, nil
}

// Seed appends raw documents, bypassing the observation mapping. Tests use
// it to plant values a well-behaved loader would never write.
func (c *Collection) Seed(docs ...Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, docs...)
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// Documents returns a copy of the stored documents.
func (c *Collection) Documents() []Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Document, len(c.docs))
	copy(out, c.docs)
	return out
}

// ToDocument maps an observation to its stored form.
func ToDocument(o domain.Observation) Document {
	return Document{
		domain.FieldTimestamp:    o.Timestamp,
		domain.FieldTemperatureC: ptrValue(o.TemperatureC.Ptr()),
		domain.FieldHumidityPct:  ptrValue(o.HumidityPct.Ptr()),
		domain.FieldPressureHPa:  ptrValue(o.PressureHPa.Ptr()),
		domain.FieldWindSpeedMS:  ptrValue(o.WindSpeedMS.Ptr()),
		domain.FieldRainAccumMM:  ptrValue(o.RainAccumMM.Ptr()),
		domain.FieldStationID:    o.StationID,
		domain.FieldDataSource:   o.DataSource,
	}
}

func ptrValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

type handle struct {
	c *Collection
}

func (h *handle) DeleteAll(_ context.Context) (int64, error) {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	n := int64(len(h.c.docs))
	h.c.docs = nil
	return n, nil
}

func (h *handle) InsertMany(_ context.Context, obs []domain.Observation) (int, error) {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	for _, o := range obs {
		h.c.docs = append(h.c.docs, ToDocument(o))
	}
	return len(obs), nil
}

func (h *handle) Count(_ context.Context, f store.Filter) (int64, error) {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	var n int64
	for _, d := range h.c.docs {
		if matches(d, f) {
			n++
		}
	}
	return n, nil
}

func (h *handle) SumConditions(_ context.Context, sums []store.Sum) (map[string]int64, error) {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	out := make(map[string]int64, len(sums))
	for _, s := range sums {
		out[s.Name] = 0
	}
	for _, d := range h.c.docs {
		for _, s := range sums {
			if holds(d, s.Field, s.Condition) {
				out[s.Name]++
			}
		}
	}
	return out, nil
}

func (h *handle) Distinct(_ context.Context, field string) ([]string, error) {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, d := range h.c.docs {
		s, ok := d[field].(string)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func (h *handle) Close(_ context.Context) error { return nil }

// matches mirrors MongoDB's $or of $lt/$gt: only numeric values compare.
func matches(d Document, f store.Filter) bool {
	if len(f.Any) > 0 {
		for _, sub := range f.Any {
			if matches(d, sub) {
				return true
			}
		}
		return false
	}
	if f.Field == "" {
		return true
	}
	v, ok := number(d[f.Field])
	if !ok {
		return false
	}
	if f.Below == nil && f.Above == nil {
		return true
	}
	return (f.Below != nil && v < *f.Below) || (f.Above != nil && v > *f.Above)
}

func holds(d Document, field string, c store.Condition) bool {
	v, present := d[field]
	switch c {
	case store.IsNull:
		return !present || v == nil
	case store.IsText:
		_, ok := v.(string)
		return ok
	case store.IsNonNumeric:
		if !present || v == nil {
			return false
		}
		_, ok := number(v)
		return !ok
	default:
		return false
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
