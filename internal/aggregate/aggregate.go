// Package aggregate accumulates per-editor edit counts across query batches,
// filtering out bot accounts and anonymous (IP) editors.
package aggregate

import (
	"net/netip"
	"sort"
	"strings"
)

// Excluded counts the identities dropped by the filters.
type Excluded struct {
	Bots      int `json:"bots"`
	Anonymous int `json:"anonymous"`
}

// Entry is one editor with their summed edit count.
type Entry struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Accumulator sums edit counts per editor identity. Adding the same identity
// again adds to the running total, so batch boundaries never split an
// editor's count.
type Accumulator struct {
	counts   map[string]int64
	excluded Excluded
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{counts: make(map[string]int64)}
}

// Add folds one (identity, count) pair into the totals. Bots and anonymous
// editors are counted in Excluded and otherwise ignored.
func (a *Accumulator) Add(identity string, count int64) {
	if IsBot(identity) {
		a.excluded.Bots++
		return
	}
	if IsAnonymous(identity) {
		a.excluded.Anonymous++
		return
	}
	a.counts[identity] += count
}

// Merge folds another accumulator's totals into this one.
func (a *Accumulator) Merge(other *Accumulator) {
	for name, count := range other.counts {
		a.counts[name] += count
	}
	a.excluded.Bots += other.excluded.Bots
	a.excluded.Anonymous += other.excluded.Anonymous
}

// Count returns the accumulated total for one identity.
func (a *Accumulator) Count(identity string) int64 {
	return a.counts[identity]
}

// Len returns the number of distinct editors kept.
func (a *Accumulator) Len() int {
	return len(a.counts)
}

// Excluded returns the filter counters.
func (a *Accumulator) Excluded() Excluded {
	return a.excluded
}

// Sorted returns all entries ordered by count descending, name ascending on
// ties, so report output is stable across runs.
func (a *Accumulator) Sorted() []Entry {
	entries := make([]Entry, 0, len(a.counts))
	for name, count := range a.counts {
		entries = append(entries, Entry{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// FromEntries rebuilds an accumulator from saved entries.
func FromEntries(entries []Entry) *Accumulator {
	a := NewAccumulator()
	for _, e := range entries {
		a.counts[e.Name] += e.Count
	}
	return a
}

// IsBot reports whether the identity looks like a bot account. The replicas
// carry no reliable bot flag across wikis, so this matches the naming
// convention instead: any identity containing "bot", case-insensitively.
func IsBot(identity string) bool {
	return strings.Contains(strings.ToLower(identity), "bot")
}

// IsAnonymous reports whether the identity is an IP address literal, which
// is how unregistered editors appear in revision history.
func IsAnonymous(identity string) bool {
	_, err := netip.ParseAddr(identity)
	return err == nil
}
