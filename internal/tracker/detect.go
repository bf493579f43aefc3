package tracker

import "math"

// CurrentState is the {count, latest_number, latest_id, raw_status} tuple
// spec.md §4.5 extracts from a plugin's details response.
type CurrentState struct {
	Count        int
	LatestNumber *float64
	LatestID     string
	RawStatus    string
}

// extractState derives CurrentState from a MediaDetails response: count is
// the number of known episodes/chapters, latest_number/latest_id come from
// the highest-numbered entry.
func extractState(d MediaDetailsLike) CurrentState {
	entries := d.Entries()
	state := CurrentState{Count: len(entries), RawStatus: d.RawStatus()}
	var best *float64
	var bestID string
	for _, e := range entries {
		n := e.Number
		if best == nil || n > *best {
			v := n
			best = &v
			bestID = e.ID
		}
	}
	state.LatestNumber = best
	state.LatestID = bestID
	return state
}

// Signal is the first-match-wins detection kind from spec.md §4.5.
type Signal string

const (
	SignalNone   Signal = "none"
	SignalNumber Signal = "number"
	SignalID     Signal = "id"
	SignalCount  Signal = "count"
)

// Detection is the result of comparing a previous and current CurrentState.
type Detection struct {
	Signal       Signal
	NewCount     int
	CountDecreased bool
}

// detectRelease implements spec.md §4.5's multi-signal detection, first
// match wins:
//  1. both latest_number exist and current > previous -> "number"
//  2. latest_id changed AND latest_number strictly increased -> "id"
//  3. current.count > last_known_count > 0 -> "count"
//  4. otherwise no release
//
// If the current count is lower than the last known count, that is logged
// as count_decreased and no row update happens (caller's responsibility).
func detectRelease(prevCount int, prevLatestNumber *float64, prevLatestID string, cur CurrentState) Detection {
	if prevLatestNumber != nil && cur.LatestNumber != nil && *cur.LatestNumber > *prevLatestNumber {
		return Detection{Signal: SignalNumber, NewCount: releaseCount(*cur.LatestNumber, *prevLatestNumber)}
	}
	if prevLatestID != "" && cur.LatestID != "" && cur.LatestID != prevLatestID &&
		prevLatestNumber != nil && cur.LatestNumber != nil && *cur.LatestNumber > *prevLatestNumber {
		return Detection{Signal: SignalID, NewCount: releaseCount(*cur.LatestNumber, *prevLatestNumber)}
	}
	if prevCount > 0 && cur.Count > prevCount {
		return Detection{Signal: SignalCount, NewCount: cur.Count - prevCount}
	}
	if cur.Count < prevCount {
		return Detection{Signal: SignalNone, CountDecreased: true}
	}
	return Detection{Signal: SignalNone}
}

func releaseCount(current, previous float64) int {
	n := int(math.Ceil(current - previous))
	if n < 1 {
		return 1
	}
	return n
}

// MediaDetailsLike is the minimal surface tracker needs from a plugin's
// details response, kept decoupled from the plugin package's concrete type
// so tests can supply fakes.
type MediaDetailsLike interface {
	Entries() []Entry
	RawStatus() string
}

// Entry is one numbered episode/chapter entry.
type Entry struct {
	ID     string
	Number float64
}
