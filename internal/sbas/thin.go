package sbas

import (
	"math"
	"sort"

	"github.com/geranium-0019/sbas-pipeline/internal/scene"
)

// Thin reduces a time-sorted acquisition list. Two independent stages
// run in order: greedy minimum-spacing thinning (keep the next element
// only if it is at least minRepeatDays whole days after the last kept
// one), then a uniform-index resample down to maxAcquisitions. A zero
// value disables the corresponding stage. Lists of two or fewer pass
// through unchanged.
//
// With keepEnds, a dropped final element is restored after the spacing
// pass so the thinned timeline spans the original interval. The
// restored tail may sit closer than minRepeatDays to its predecessor;
// endpoint preservation deliberately outranks strict spacing there.
func Thin(infos []scene.Info, minRepeatDays, maxAcquisitions int, keepEnds bool) []scene.Info {
	if len(infos) <= 2 {
		return infos
	}

	out := infos

	if minRepeatDays > 0 {
		thinned := make([]scene.Info, 0, len(out))
		for _, x := range out {
			if len(thinned) == 0 || DaysBetween(thinned[len(thinned)-1].Time, x.Time) >= minRepeatDays {
				thinned = append(thinned, x)
			}
		}

		if keepEnds && len(thinned) > 0 {
			last := out[len(out)-1]
			if !thinned[len(thinned)-1].Time.Equal(last.Time) {
				thinned = append(thinned, last)
			}
			sort.SliceStable(thinned, func(i, j int) bool { return thinned[i].Time.Before(thinned[j].Time) })
			thinned = dedupByTimeAndKey(thinned)
		}

		out = thinned
	}

	if maxAcquisitions > 0 && len(out) > maxAcquisitions {
		switch maxAcquisitions {
		case 1:
			return out[:1]
		case 2:
			if keepEnds {
				return []scene.Info{out[0], out[len(out)-1]}
			}
			return out[:2]
		}

		n := len(out)
		k := maxAcquisitions
		capped := make([]scene.Info, 0, k)
		prev := -1
		for i := 0; i < k; i++ {
			idx := int(math.RoundToEven(float64(i) * float64(n-1) / float64(k-1)))
			if idx == prev {
				continue
			}
			capped = append(capped, out[idx])
			prev = idx
		}
		sort.SliceStable(capped, func(i, j int) bool { return capped[i].Time.Before(capped[j].Time) })
		out = capped
	}

	return out
}

// dedupByTimeAndKey removes adjacent duplicates from a time-sorted
// list; the restored tail can collide with an element the spacing pass
// already kept.
func dedupByTimeAndKey(infos []scene.Info) []scene.Info {
	out := infos[:0]
	for _, x := range infos {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if prev.Time.Equal(x.Time) && prev.Key == x.Key {
				continue
			}
		}
		out = append(out, x)
	}
	return out
}
