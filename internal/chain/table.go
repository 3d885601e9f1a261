package chain

import (
	"sort"
)

// Table is an ordered-by-strike collection of quotes for one side at one
// expiry. The zero value is an empty table.
type Table struct {
	Name   string  `json:"name,omitempty"`
	Side   Side    `json:"side"`
	Quotes []Quote `json:"quotes"`
}

// NewTable copies quotes into a new table sorted ascending by strike.
// Equal strikes keep their input order.
func NewTable(name string, side Side, quotes []Quote) Table {
	t := Table{Name: name, Side: side, Quotes: append([]Quote(nil), quotes...)}
	sort.SliceStable(t.Quotes, func(i, j int) bool { return t.Quotes[i].Strike < t.Quotes[j].Strike })
	return t
}

// Len returns the number of quotes.
func (t Table) Len() int { return len(t.Quotes) }

// Sorted returns a copy of the table ordered ascending by strike.
func (t Table) Sorted() Table {
	return NewTable(t.Name, t.Side, t.Quotes)
}

// Strikes lists the strikes in table order.
func (t Table) Strikes() []float64 {
	out := make([]float64, len(t.Quotes))
	for i, q := range t.Quotes {
		out[i] = q.Strike
	}
	return out
}

// Lookup returns the first quote whose strike equals k.
func (t Table) Lookup(k Key) (Quote, bool) {
	for _, q := range t.Quotes {
		if q.Key() == k {
			return q, true
		}
	}
	return Quote{}, false
}

// Has reports whether a quote with strike k is present.
func (t Table) Has(k Key) bool {
	_, ok := t.Lookup(k)
	return ok
}

// Without returns a new table minus every quote whose key is in keys.
// The receiver is left untouched.
func (t Table) Without(keys KeySet) Table {
	out := Table{Name: t.Name, Side: t.Side, Quotes: make([]Quote, 0, len(t.Quotes))}
	for _, q := range t.Quotes {
		if keys.Has(q.Key()) {
			continue
		}
		out.Quotes = append(out.Quotes, q)
	}
	return out
}

// Clone returns a deep copy.
func (t Table) Clone() Table {
	return Table{Name: t.Name, Side: t.Side, Quotes: append([]Quote(nil), t.Quotes...)}
}
