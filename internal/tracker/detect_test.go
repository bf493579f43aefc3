package tracker

import "testing"

func f(v float64) *float64 { return &v }

func TestDetectRelease_numberSignal(t *testing.T) {
	cur := CurrentState{Count: 12, LatestNumber: f(12), LatestID: "ep12"}
	det := detectRelease(11, f(11), "ep11", cur)
	if det.Signal != SignalNumber || det.NewCount != 1 {
		t.Errorf("got %+v", det)
	}
}

func TestDetectRelease_numberSignalFractionalRoundsUp(t *testing.T) {
	cur := CurrentState{Count: 12, LatestNumber: f(12.5), LatestID: "ep12"}
	det := detectRelease(11, f(11), "ep11", cur)
	if det.Signal != SignalNumber || det.NewCount != 2 {
		t.Errorf("got %+v", det)
	}
}

func TestDetectRelease_idChangeWithNumberIncreaseSignalsNumber(t *testing.T) {
	cur := CurrentState{Count: 12, LatestNumber: f(12), LatestID: "ep-new"}
	det := detectRelease(11, f(11), "ep-old", cur)
	if det.Signal != SignalNumber {
		// id and number both point the same direction here; number wins first.
		t.Errorf("expected number signal to win first, got %+v", det)
	}
}

func TestDetectRelease_countSignal(t *testing.T) {
	cur := CurrentState{Count: 15, LatestNumber: nil}
	det := detectRelease(12, nil, "", cur)
	if det.Signal != SignalCount || det.NewCount != 3 {
		t.Errorf("got %+v", det)
	}
}

func TestDetectRelease_noChange(t *testing.T) {
	cur := CurrentState{Count: 12, LatestNumber: f(12)}
	det := detectRelease(12, f(12), "ep12", cur)
	if det.Signal != SignalNone || det.CountDecreased {
		t.Errorf("got %+v", det)
	}
}

func TestDetectRelease_countDecreased(t *testing.T) {
	cur := CurrentState{Count: 5}
	det := detectRelease(12, nil, "", cur)
	if !det.CountDecreased || det.Signal != SignalNone {
		t.Errorf("got %+v", det)
	}
}

type fakeDetails struct {
	entries []Entry
	status  string
}

func (f fakeDetails) Entries() []Entry  { return f.entries }
func (f fakeDetails) RawStatus() string { return f.status }

func TestExtractState_picksHighestNumber(t *testing.T) {
	d := fakeDetails{
		entries: []Entry{{ID: "e1", Number: 1}, {ID: "e3", Number: 3}, {ID: "e2", Number: 2}},
		status:  "Ongoing",
	}
	state := extractState(d)
	if state.Count != 3 || state.LatestID != "e3" || *state.LatestNumber != 3 {
		t.Errorf("got %+v", state)
	}
}
