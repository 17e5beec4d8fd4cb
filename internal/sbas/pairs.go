// Package sbas builds Small-Baseline-Subset interferometric pairing
// graphs and thins acquisition timelines ahead of pairing.
package sbas

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Pair is one interferometric pair (i, j) with i < j. Indices refer to
// the thinned acquisition list the pairs were built over, not the
// original catalog. It marshals as a two-element array so the state
// artifact stays compatible with downstream readers.
type Pair struct {
	I int
	J int
}

// MarshalJSON renders the pair as [i, j].
func (p Pair) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d]", p.I, p.J)), nil
}

// UnmarshalJSON parses a [i, j] array.
func (p *Pair) UnmarshalJSON(data []byte) error {
	var vals []int
	if err := json.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("pair must be a two-element index array: %w", err)
	}
	if len(vals) != 2 {
		return fmt.Errorf("pair must have exactly 2 indices, got %d", len(vals))
	}
	p.I, p.J = vals[0], vals[1]
	return nil
}

// BuildPairs constructs the SBAS pairing graph over a time-sorted
// acquisition list. Every index connects to up to kNeighbors forward
// and backward neighbors, keeping only edges whose temporal baseline is
// at most maxTemporalDays whole days. With ensureChain, every
// immediately-sequential pair within the temporal limit is forced in,
// so the neighbor cap alone can never split the timeline; a sequential
// gap exceeding maxTemporalDays still can, and is accepted.
// The result is deduplicated and sorted. n <= 1 yields no pairs.
func BuildPairs(times []time.Time, maxTemporalDays, kNeighbors int, ensureChain bool) []Pair {
	n := len(times)
	if n <= 1 {
		return nil
	}

	set := make(map[Pair]struct{})

	for i := 0; i < n; i++ {
		for d := 1; d <= kNeighbors; d++ {
			j := i + d
			if j >= n {
				break
			}
			if DaysBetween(times[i], times[j]) <= maxTemporalDays {
				set[Pair{I: i, J: j}] = struct{}{}
			}
		}
		for d := 1; d <= kNeighbors; d++ {
			j := i - d
			if j < 0 {
				break
			}
			if DaysBetween(times[j], times[i]) <= maxTemporalDays {
				set[Pair{I: j, J: i}] = struct{}{}
			}
		}
	}

	if ensureChain {
		for i := 0; i < n-1; i++ {
			if DaysBetween(times[i], times[i+1]) <= maxTemporalDays {
				set[Pair{I: i, J: i + 1}] = struct{}{}
			}
		}
	}

	pairs := make([]Pair, 0, len(set))
	for p := range set {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].I != pairs[b].I {
			return pairs[a].I < pairs[b].I
		}
		return pairs[a].J < pairs[b].J
	})
	return pairs
}

// UsedIndices returns the sorted set of acquisition indices referenced
// by at least one pair.
func UsedIndices(pairs []Pair) []int {
	seen := make(map[int]struct{}, len(pairs)*2)
	for _, p := range pairs {
		seen[p.I] = struct{}{}
		seen[p.J] = struct{}{}
	}
	used := make([]int, 0, len(seen))
	for i := range seen {
		used = append(used, i)
	}
	sort.Ints(used)
	return used
}

// DaysBetween returns the elapsed whole days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
