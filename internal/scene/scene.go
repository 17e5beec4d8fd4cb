// Package scene normalizes heterogeneous ASF catalog records into a
// uniform representation and partitions them into stack-compatible
// groups.
package scene

import (
	"fmt"
	"sort"
	"time"

	"github.com/geranium-0019/sbas-pipeline/internal/asf"
)

// Alias lists for property keys whose names vary across ASF metadata
// versions. The first present key wins.
var (
	trackAliases     = []string{"relativeOrbit", "relativeOrbitNumber", "pathNumber"}
	directionAliases = []string{"flightDirection", "orbitDirection"}
	levelAliases     = []string{"processingLevel", "productType"}
	beamModeAliases  = []string{"beamMode", "operationalMode"}
	frameAliases     = []string{"frameNumber", "frame", "frameId", "frameID", "sliceNumber", "slice", "swath"}
)

// GroupKey identifies a geometrically/radiometrically compatible set
// of acquisitions. Missing properties become empty strings.
type GroupKey struct {
	Track           string
	FlightDirection string
	ProcessingLevel string
	BeamMode        string
}

// String renders the key for the state artifact and log output.
func (k GroupKey) String() string {
	return fmt.Sprintf("(%s, %s, %s, %s)", k.Track, k.FlightDirection, k.ProcessingLevel, k.BeamMode)
}

// less orders keys lexicographically by field, used as the
// deterministic tie-break wherever group sizes or counts are equal.
func (k GroupKey) less(o GroupKey) bool {
	if k.Track != o.Track {
		return k.Track < o.Track
	}
	if k.FlightDirection != o.FlightDirection {
		return k.FlightDirection < o.FlightDirection
	}
	if k.ProcessingLevel != o.ProcessingLevel {
		return k.ProcessingLevel < o.ProcessingLevel
	}
	return k.BeamMode < o.BeamMode
}

// Info carries one catalog record plus the derived fields the
// selection pipeline works with. The original feature is referenced,
// not copied; it is only consulted again for identifier extraction,
// geometry and download dispatch.
type Info struct {
	Index   int
	Feature *asf.Feature
	Time    time.Time
	Frame   string // "" if the record carries no frame identifier
	Key     GroupKey
}

// Extract builds one Info per catalog record and returns them sorted
// ascending by start time. The sort is stable so records with equal
// timestamps keep their catalog order, making the output deterministic
// for identical input order. A record without a parseable start time
// is fatal.
func Extract(features []asf.Feature) ([]Info, error) {
	infos := make([]Info, 0, len(features))
	for i := range features {
		f := &features[i]
		props := f.Properties

		startTime := props.String("startTime")
		if startTime == "" {
			return nil, fmt.Errorf("scene %d (%s): missing startTime property", i, props.SceneID())
		}
		t, err := asf.ParseTime(startTime)
		if err != nil {
			return nil, fmt.Errorf("scene %d (%s): %w", i, props.SceneID(), err)
		}

		infos = append(infos, Info{
			Index:   i,
			Feature: f,
			Time:    t,
			Frame:   props.String(frameAliases...),
			Key: GroupKey{
				Track:           props.String(trackAliases...),
				FlightDirection: props.String(directionAliases...),
				ProcessingLevel: props.String(levelAliases...),
				BeamMode:        props.String(beamModeAliases...),
			},
		})
	}

	sortByTime(infos)
	return infos, nil
}

// GroupByKey partitions infos by group key. Every info lands in
// exactly one bucket and each bucket stays time-sorted.
func GroupByKey(infos []Info) map[GroupKey][]Info {
	groups := make(map[GroupKey][]Info)
	for _, info := range infos {
		groups[info.Key] = append(groups[info.Key], info)
	}
	for k := range groups {
		sortByTime(groups[k])
	}
	return groups
}

// groupPolicy selects one group from a non-empty partition.
type groupPolicy func(map[GroupKey][]Info) GroupKey

// groupPolicies is the closed set of supported choose_group modes.
var groupPolicies = map[string]groupPolicy{
	"largest": chooseLargest,
}

// ChooseGroup selects one group according to mode. Ties resolve to the
// lexicographically smallest key so the choice is reproducible.
func ChooseGroup(groups map[GroupKey][]Info, mode string) (GroupKey, []Info, error) {
	if len(groups) == 0 {
		return GroupKey{}, nil, ErrNoGroups
	}
	policy, ok := groupPolicies[mode]
	if !ok {
		return GroupKey{}, nil, fmt.Errorf("unsupported choose_group mode %q (supported: largest)", mode)
	}
	key := policy(groups)
	return key, groups[key], nil
}

func chooseLargest(groups map[GroupKey][]Info) GroupKey {
	keys := make([]GroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	best := keys[0]
	for _, k := range keys[1:] {
		if len(groups[k]) > len(groups[best]) {
			best = k
		}
	}
	return best
}

// ChooseDominantFrame picks the most frequent non-empty frame value and
// returns only the members carrying it, re-sorted by time. Ties resolve
// to the smaller frame value. If no member has frame metadata, it
// returns ("", infos) unchanged; enforcing single-frame consistency in
// that situation is the caller's call.
func ChooseDominantFrame(infos []Info) (string, []Info) {
	counts := FrameCounts(infos)
	if len(counts) == 0 {
		return "", infos
	}

	frames := make([]string, 0, len(counts))
	for f := range counts {
		frames = append(frames, f)
	}
	sort.Strings(frames)

	dominant := frames[0]
	for _, f := range frames[1:] {
		if counts[f] > counts[dominant] {
			dominant = f
		}
	}

	filtered := make([]Info, 0, counts[dominant])
	for _, info := range infos {
		if info.Frame == dominant {
			filtered = append(filtered, info)
		}
	}
	sortByTime(filtered)
	return dominant, filtered
}

// FrameCounts returns the histogram of non-empty frame values.
func FrameCounts(infos []Info) map[string]int {
	counts := make(map[string]int)
	for _, info := range infos {
		if info.Frame == "" {
			continue
		}
		counts[info.Frame]++
	}
	return counts
}

// Times projects a time-sorted info list onto its timestamps.
func Times(infos []Info) []time.Time {
	times := make([]time.Time, len(infos))
	for i, info := range infos {
		times[i] = info.Time
	}
	return times
}

func sortByTime(infos []Info) {
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Time.Before(infos[j].Time) })
}
