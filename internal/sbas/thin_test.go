package sbas

import (
	"testing"
	"time"

	"github.com/geranium-0019/sbas-pipeline/internal/scene"
)

// infosAt builds a time-sorted acquisition list at the given day
// offsets, all in one group.
func infosAt(offsets ...int) []scene.Info {
	epoch := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	key := scene.GroupKey{Track: "46", FlightDirection: "ASCENDING", ProcessingLevel: "SLC", BeamMode: "IW"}
	infos := make([]scene.Info, len(offsets))
	for i, d := range offsets {
		infos[i] = scene.Info{Index: i, Time: epoch.AddDate(0, 0, d), Key: key}
	}
	return infos
}

func offsetsOf(infos []scene.Info) []int {
	epoch := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]int, len(infos))
	for i, x := range infos {
		out[i] = DaysBetween(epoch, x.Time)
	}
	return out
}

func equalOffsets(a []scene.Info, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	got := offsetsOf(a)
	for i := range b {
		if got[i] != b[i] {
			return false
		}
	}
	return true
}

func TestThin_PassThrough(t *testing.T) {
	for _, n := range []int{0, 1, 2} {
		infos := infosAt(make([]int, n)...)
		got := Thin(infos, 30, 1, true)
		if len(got) != n {
			t.Errorf("Expected pass-through for n=%d, got %d elements", n, len(got))
		}
	}
}

func TestThin_MinSpacing(t *testing.T) {
	tests := []struct {
		name          string
		offsets       []int
		minRepeatDays int
		keepEnds      bool
		expected      []int
	}{
		{
			name:          "greedy forward scan",
			offsets:       []int{0, 6, 12, 18, 24, 30},
			minRepeatDays: 12,
			keepEnds:      false,
			expected:      []int{0, 12, 24},
		},
		{
			name:          "keep ends restores dropped tail",
			offsets:       []int{0, 6, 12, 18, 24, 30, 31},
			minRepeatDays: 12,
			keepEnds:      true,
			// 31 is restored even though it sits 7 days after 24:
			// endpoint preservation outranks strict spacing.
			expected: []int{0, 12, 24, 31},
		},
		{
			name:          "tail already kept",
			offsets:       []int{0, 12, 24},
			minRepeatDays: 12,
			keepEnds:      true,
			expected:      []int{0, 12, 24},
		},
		{
			name:          "disabled stage",
			offsets:       []int{0, 1, 2, 3},
			minRepeatDays: 0,
			keepEnds:      true,
			expected:      []int{0, 1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Thin(infosAt(tt.offsets...), tt.minRepeatDays, 0, tt.keepEnds)
			if !equalOffsets(got, tt.expected) {
				t.Errorf("Expected offsets %v, got %v", tt.expected, offsetsOf(got))
			}
		})
	}
}

func TestThin_SpacingProperty(t *testing.T) {
	offsets := []int{0, 3, 7, 10, 14, 20, 21, 33, 40, 47, 55}
	minRepeat := 10

	got := Thin(infosAt(offsets...), minRepeat, 0, false)
	for i := 1; i < len(got); i++ {
		if d := DaysBetween(got[i-1].Time, got[i].Time); d < minRepeat {
			t.Errorf("Adjacent kept elements %d and %d only %d days apart", i-1, i, d)
		}
	}
}

func TestThin_Cap(t *testing.T) {
	tests := []struct {
		name     string
		offsets  []int
		maxAcq   int
		keepEnds bool
		expected []int
	}{
		{
			name:     "uniform resample",
			offsets:  []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90},
			maxAcq:   4,
			keepEnds: true,
			expected: []int{0, 30, 60, 90},
		},
		{
			name:     "cap of one",
			offsets:  []int{0, 10, 20},
			maxAcq:   1,
			keepEnds: true,
			expected: []int{0},
		},
		{
			name:     "cap of two with keep ends",
			offsets:  []int{0, 10, 20, 30},
			maxAcq:   2,
			keepEnds: true,
			expected: []int{0, 30},
		},
		{
			name:     "cap of two without keep ends",
			offsets:  []int{0, 10, 20, 30},
			maxAcq:   2,
			keepEnds: false,
			expected: []int{0, 10},
		},
		{
			name:     "under cap is untouched",
			offsets:  []int{0, 10, 20},
			maxAcq:   5,
			keepEnds: true,
			expected: []int{0, 10, 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Thin(infosAt(tt.offsets...), 0, tt.maxAcq, tt.keepEnds)
			if !equalOffsets(got, tt.expected) {
				t.Errorf("Expected offsets %v, got %v", tt.expected, offsetsOf(got))
			}
		})
	}
}

func TestThin_CapRespected(t *testing.T) {
	offsets := make([]int, 97)
	for i := range offsets {
		offsets[i] = i * 6
	}

	for _, maxAcq := range []int{3, 10, 25, 50} {
		got := Thin(infosAt(offsets...), 0, maxAcq, true)
		if len(got) > maxAcq {
			t.Errorf("maxAcquisitions=%d: got %d elements", maxAcq, len(got))
		}
		// Endpoints survive the uniform resample.
		if offsetsOf(got)[0] != 0 || offsetsOf(got)[len(got)-1] != offsets[len(offsets)-1] {
			t.Errorf("maxAcquisitions=%d: endpoints not preserved: %v", maxAcq, offsetsOf(got))
		}
	}
}

func TestThin_BothStages(t *testing.T) {
	offsets := []int{0, 6, 12, 18, 24, 30, 36, 42, 48, 54, 60}

	got := Thin(infosAt(offsets...), 12, 3, true)
	if len(got) > 3 {
		t.Fatalf("Expected at most 3 elements, got %v", offsetsOf(got))
	}
	// Spacing pass keeps [0, 12, 24, 36, 48, 60], cap picks ends plus middle.
	if !equalOffsets(got, []int{0, 24, 60}) {
		t.Errorf("Expected [0 24 60], got %v", offsetsOf(got))
	}
}
