package dispatch

import (
	"errors"
	"sort"
	"sync"
)

type State int

const (
	Success State = iota + 1
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Outcome is the terminal state of one record pipeline.
type Outcome struct {
	RecordID string
	State    State
	Err      error
}

// BatchReport names the records the host has to redeliver.
type BatchReport struct {
	FailedItemIdentifiers []string `json:"failedItemIdentifiers"`
}

var ErrIntake = errors.New("invalid batch")

// IntakeError rejects a structurally invalid batch as a whole.
type IntakeError struct {
	Reason string
}

func (e *IntakeError) Error() string { return ErrIntake.Error() + ": " + e.Reason }

func (e *IntakeError) Is(target error) bool { return target == ErrIntake }

// aggregator collects outcomes from concurrent pipelines. Ids that are still
// pending when it is sealed count as failed; outcomes arriving after the
// seal are ignored.
type aggregator struct {
	mu      sync.Mutex
	pending map[string]int
	failed  map[string]struct{}
	sealed  bool
}

func newAggregator(ids []string) *aggregator {
	a := &aggregator{
		pending: make(map[string]int, len(ids)),
		failed:  make(map[string]struct{}),
	}
	for _, id := range ids {
		a.pending[id]++
	}
	return a
}

// record stores an outcome and reports whether it was accepted.
func (a *aggregator) record(o Outcome) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return false
	}
	if a.pending[o.RecordID] > 0 {
		a.pending[o.RecordID]--
	}
	if o.State == Failed {
		a.failed[o.RecordID] = struct{}{}
	}
	return true
}

// seal stops accepting outcomes and returns the ids that never settled.
func (a *aggregator) seal() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true
	var unsettled []string
	for id, n := range a.pending {
		if n > 0 {
			unsettled = append(unsettled, id)
			a.failed[id] = struct{}{}
		}
	}
	sort.Strings(unsettled)
	return unsettled
}

// report returns the failed ids in sorted order. Records without an id cannot
// be named to the host and are left out.
func (a *aggregator) report() BatchReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.failed))
	for id := range a.failed {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return BatchReport{FailedItemIdentifiers: ids}
}
