package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"estimatesync/internal/util"
)

// Record is an authoritative item or customer from the accounting system.
type Record struct {
	ID   string
	Name string
	Rate *decimal.Decimal
}

// Index is an immutable name/id lookup. Names keep the order in which they
// were first seen so partial matching is deterministic.
type Index struct {
	byID   map[string]Record
	byName map[string]Record
	names  []string
}

func BuildIndex(records []Record) *Index {
	idx := &Index{
		byID:   make(map[string]Record, len(records)),
		byName: make(map[string]Record, len(records)),
		names:  make([]string, 0, len(records)),
	}
	for _, rec := range records {
		idx.add(rec)
	}
	return idx
}

func (idx *Index) add(rec Record) {
	if rec.ID != "" {
		idx.byID[rec.ID] = rec
	}
	key := util.NormalizeName(rec.Name)
	if key == "" {
		return
	}
	if _, ok := idx.byName[key]; ok {
		return
	}
	idx.byName[key] = rec
	idx.names = append(idx.names, key)
}

// With returns a copy of the index that also holds rec.
func (idx *Index) With(rec Record) *Index {
	next := &Index{
		byID:   make(map[string]Record, len(idx.byID)+1),
		byName: make(map[string]Record, len(idx.byName)+1),
		names:  make([]string, len(idx.names), len(idx.names)+1),
	}
	for k, v := range idx.byID {
		next.byID[k] = v
	}
	for k, v := range idx.byName {
		next.byName[k] = v
	}
	copy(next.names, idx.names)
	next.add(rec)
	return next
}

// Lookup tries an exact normalized match, then the first indexed name that
// contains the query or is contained by it.
func (idx *Index) Lookup(name string) (Record, bool) {
	key := util.NormalizeName(name)
	if key == "" {
		return Record{}, false
	}
	if rec, ok := idx.byName[key]; ok {
		return rec, true
	}
	for _, candidate := range idx.names {
		if strings.Contains(candidate, key) || strings.Contains(key, candidate) {
			return idx.byName[candidate], true
		}
	}
	return Record{}, false
}

func (idx *Index) ByID(id string) (Record, bool) {
	rec, ok := idx.byID[id]
	return rec, ok
}

func (idx *Index) Len() int { return len(idx.names) }
