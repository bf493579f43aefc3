package tracker

import "testing"

func TestClassifyStatus(t *testing.T) {
	cases := map[string]NormalizedStatus{
		"Currently Airing":  StatusOngoing,
		"RELEASING":         StatusOngoing,
		"Not yet released":  StatusOngoing,
		"Finished Airing":   StatusCompleted,
		"Completed":         StatusCompleted,
		"On Hiatus":         StatusHiatus,
		"Discontinued":      StatusHiatus,
		"":                  StatusUnknown,
		"something strange": StatusUnknown,
	}
	for raw, want := range cases {
		if got := ClassifyStatus(raw); got != want {
			t.Errorf("ClassifyStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestRecommendedIntervalMinutes(t *testing.T) {
	cases := map[NormalizedStatus]int{
		StatusOngoing:   120,
		StatusUnknown:   240,
		StatusHiatus:    720,
		StatusCompleted: 1440,
	}
	for status, want := range cases {
		if got := RecommendedIntervalMinutes(status); got != want {
			t.Errorf("RecommendedIntervalMinutes(%q) = %d, want %d", status, got, want)
		}
	}
}
