package history

import (
	"sort"
	"time"

	"github.com/veridian-health/readmit/pkg/chrono"
	"github.com/veridian-health/readmit/pkg/record"
)

// DefaultLookback is the trailing interval over which condition and
// medication counts are aggregated.
const DefaultLookback = 365 * 24 * time.Hour

// Aggregates are the historical counts for one encounter. Zero values are
// valid, informative features: absence of history is not missing data.
type Aggregates struct {
	Conditions        int
	UniqueConditions  int
	Medications       int
	UniqueMedications int
}

// Compute returns one Aggregates per encounter, aligned by index. The window
// for encounter e is [e.stop - lookback, e.stop): half-open, so nothing
// concurrent with or after the discharge instant can leak into the features.
//
// Conditions and medications must belong to the same patient as the
// encounters. Events are scanned once with a sliding window across the
// patient's encounters in non-decreasing discharge order, O(encounters +
// history) per patient instead of rescanning history per encounter.
func Compute(encounters []record.Encounter, conditions []record.Condition, medications []record.Medication, lookback time.Duration) []Aggregates {
	out := make([]Aggregates, len(encounters))
	if len(encounters) == 0 {
		return out
	}

	condWindow := newCodeWindow(len(conditions))
	for _, c := range conditions {
		condWindow.add(c.Onset, c.Code)
	}
	medWindow := newCodeWindow(len(medications))
	for _, m := range medications {
		medWindow.add(m.Start, m.Code)
	}
	condWindow.sortEvents()
	medWindow.sortEvents()

	// Visit encounters by discharge time so both window bounds only ever
	// move forward.
	order := make([]int, len(encounters))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ea, eb := encounters[order[a]], encounters[order[b]]
		if !ea.Stop.Equal(eb.Stop) {
			return ea.Stop.Before(eb.Stop)
		}
		return ea.ID < eb.ID
	})

	for _, idx := range order {
		stop := encounters[idx].Stop
		count, unique := condWindow.advance(stop, lookback)
		medCount, medUnique := medWindow.advance(stop, lookback)
		out[idx] = Aggregates{
			Conditions:        count,
			UniqueConditions:  unique,
			Medications:       medCount,
			UniqueMedications: medUnique,
		}
	}
	return out
}

type event struct {
	at   chrono.Instant
	code string
}

// codeWindow is a two-pointer sliding window over time-sorted events with a
// multiset of codes currently inside, so distinct-code counts are maintained
// incrementally.
type codeWindow struct {
	events   []event
	lo, hi   int
	inWindow map[string]int
	distinct int
}

func newCodeWindow(capacity int) *codeWindow {
	return &codeWindow{
		events:   make([]event, 0, capacity),
		inWindow: make(map[string]int),
	}
}

func (w *codeWindow) add(at chrono.Instant, code string) {
	w.events = append(w.events, event{at: at, code: code})
}

func (w *codeWindow) sortEvents() {
	sort.Slice(w.events, func(i, j int) bool {
		if !w.events[i].at.Equal(w.events[j].at) {
			return w.events[i].at.Before(w.events[j].at)
		}
		return w.events[i].code < w.events[j].code
	})
}

// advance moves the window to [stop - lookback, stop) and reports the count
// of events inside plus the number of distinct codes among them. stop values
// must be non-decreasing across calls.
func (w *codeWindow) advance(stop chrono.Instant, lookback time.Duration) (count, unique int) {
	for w.hi < len(w.events) && w.events[w.hi].at.Before(stop) {
		code := w.events[w.hi].code
		w.inWindow[code]++
		if w.inWindow[code] == 1 {
			w.distinct++
		}
		w.hi++
	}
	floor := stop.Add(-lookback)
	for w.lo < w.hi && w.events[w.lo].at.Before(floor) {
		code := w.events[w.lo].code
		w.inWindow[code]--
		if w.inWindow[code] == 0 {
			w.distinct--
		}
		w.lo++
	}
	return w.hi - w.lo, w.distinct
}
