// Package tracker implements spec.md §4.5's release tracker: a long-lived
// cooperative loop that polls plugins for new episodes/chapters on
// in-library media and notifies on detected releases.
//
// Grounded on the teacher's polling idiom in internal/supervisor and
// internal/schedulesdirect (periodic refresh with backoff on failure),
// adapted from EPG refresh to per-media release checks.
package tracker

import "strings"

// NormalizedStatus is the four-way classification spec.md §4.5 derives from
// a plugin's free-text status string.
type NormalizedStatus string

const (
	StatusOngoing   NormalizedStatus = "ongoing"
	StatusCompleted NormalizedStatus = "completed"
	StatusHiatus    NormalizedStatus = "hiatus"
	StatusUnknown   NormalizedStatus = "unknown"
)

// statusSubstrings is checked in order: hiatus comes before completed so
// "suspended" is not caught by "ended", and both come before ongoing so
// "Finished Airing" is not caught by "airing".
var statusSubstrings = []struct {
	needles []string
	status  NormalizedStatus
}{
	{[]string{"hiatus", "on hold", "paused", "suspended", "discontinued"}, StatusHiatus},
	{[]string{"finished", "completed", "ended", "concluded"}, StatusCompleted},
	{[]string{"airing", "releasing", "ongoing", "currently", "not yet released", "upcoming"}, StatusOngoing},
}

// ClassifyStatus maps a plugin's raw status string to one of spec.md
// §4.5's four normalized buckets via substring match, first table row wins.
func ClassifyStatus(raw string) NormalizedStatus {
	lower := strings.ToLower(raw)
	for _, row := range statusSubstrings {
		for _, needle := range row.needles {
			if strings.Contains(lower, needle) {
				return row.status
			}
		}
	}
	return StatusUnknown
}

// RecommendedIntervalMinutes returns spec.md §4.5's per-status recheck
// cadence, used when the item isn't ongoing (ongoing uses the user's
// configured interval instead).
func RecommendedIntervalMinutes(status NormalizedStatus) int {
	switch status {
	case StatusOngoing:
		return 120
	case StatusUnknown:
		return 240
	case StatusHiatus:
		return 720
	case StatusCompleted:
		return 1440
	default:
		return 240
	}
}
