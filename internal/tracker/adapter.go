package tracker

import "github.com/otakuhaven/otakuback/internal/plugin"

// detailsAdapter wraps plugin.MediaDetails as MediaDetailsLike, treating
// Episodes as the generic "entries" list (manga chapters are expressed
// through the same Episode shape by convention in this pack's plugins).
type detailsAdapter struct {
	d plugin.MediaDetails
}

func (a detailsAdapter) Entries() []Entry {
	out := make([]Entry, 0, len(a.d.Episodes))
	for _, ep := range a.d.Episodes {
		out = append(out, Entry{ID: ep.ID, Number: ep.Number})
	}
	return out
}

func (a detailsAdapter) RawStatus() string { return a.d.Status }
