package app

import (
	"fmt"

	"sheetflow/adapters/datareadiness/validator"
	"sheetflow/domain/dataset"
	"sheetflow/domain/sheet"
	"sheetflow/internal/errors"
)

// Status is the lifecycle position of a workspace
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusSyncing Status = "syncing"
	StatusSaving  Status = "saving"
	StatusError   Status = "error"
)

// Busy reports whether a network operation is in flight
func (s Status) Busy() bool {
	return s == StatusLoading || s == StatusSyncing || s == StatusSaving
}

// State is the complete workspace state. It is replaced, never mutated, by Reduce.
type State struct {
	Status       Status               `json:"status"`
	Snapshot     *Snapshot            `json:"snapshot,omitempty"`
	Error        string               `json:"error,omitempty"`
	LastSave     *dataset.SaveSummary `json:"last_save,omitempty"`
	RequestToken uint64               `json:"request_token"`
}

// Quality is recomputed from the current snapshot on every call
func (s State) Quality() sheet.QualityStats {
	if s.Snapshot == nil {
		return sheet.QualityStats{}
	}
	return validator.QualityFromIssues(len(s.Snapshot.Rows), len(s.Snapshot.Headers), s.Snapshot.Issues)
}

// Event is an input to Reduce
type Event interface {
	eventName() string
}

// LoadStarted begins a preview load. It may supersede a load in flight.
type LoadStarted struct{ Token uint64 }

// LoadSucceeded delivers a freshly built snapshot
type LoadSucceeded struct {
	Token    uint64
	Snapshot *Snapshot
}

// LoadFailed reports a failed preview load
type LoadFailed struct {
	Token uint64
	Err   error
}

// SyncStarted begins a refresh from the source
type SyncStarted struct{ Token uint64 }

// SyncSucceeded delivers the merged snapshot
type SyncSucceeded struct {
	Token    uint64
	Snapshot *Snapshot
}

// SyncFailed reports a failed refresh
type SyncFailed struct {
	Token uint64
	Err   error
}

// SaveStarted begins persisting the snapshot
type SaveStarted struct{ Token uint64 }

// SaveSucceeded reports a completed save
type SaveSucceeded struct {
	Token   uint64
	Summary dataset.SaveSummary
}

// SaveFailed reports a failed save. The workspace stays ready.
type SaveFailed struct {
	Token uint64
	Err   error
}

// SnapshotEdited replaces the snapshot after a local edit
type SnapshotEdited struct{ Snapshot *Snapshot }

// Retry leaves the error status
type Retry struct{}

func (LoadStarted) eventName() string    { return "loadStarted" }
func (LoadSucceeded) eventName() string  { return "loadSucceeded" }
func (LoadFailed) eventName() string     { return "loadFailed" }
func (SyncStarted) eventName() string    { return "syncStarted" }
func (SyncSucceeded) eventName() string  { return "syncSucceeded" }
func (SyncFailed) eventName() string     { return "syncFailed" }
func (SaveStarted) eventName() string    { return "saveStarted" }
func (SaveSucceeded) eventName() string  { return "saveSucceeded" }
func (SaveFailed) eventName() string     { return "saveFailed" }
func (SnapshotEdited) eventName() string { return "snapshotEdited" }
func (Retry) eventName() string          { return "retry" }

// Reduce applies ev to s and returns the next state. Completion events whose
// token is not the current request token are stale and leave s unchanged.
// Starting an operation from a state that does not allow it returns a busy or
// invalid-input error.
func Reduce(s State, ev Event) (State, error) {
	next := s
	switch e := ev.(type) {
	case LoadStarted:
		if s.Status == StatusSyncing || s.Status == StatusSaving {
			return s, busy(s.Status)
		}
		next.Status = StatusLoading
		next.Error = ""
		next.RequestToken = e.Token

	case LoadSucceeded:
		if stale(s, StatusLoading, e.Token) {
			return s, nil
		}
		next.Status = StatusReady
		next.Snapshot = e.Snapshot
		next.Error = ""

	case LoadFailed:
		if stale(s, StatusLoading, e.Token) {
			return s, nil
		}
		next.Status = StatusError
		next.Error = message(e.Err)

	case SyncStarted:
		if err := requireReady(s); err != nil {
			return s, err
		}
		next.Status = StatusSyncing
		next.Error = ""
		next.RequestToken = e.Token

	case SyncSucceeded:
		if stale(s, StatusSyncing, e.Token) {
			return s, nil
		}
		next.Status = StatusReady
		next.Snapshot = e.Snapshot

	case SyncFailed:
		if stale(s, StatusSyncing, e.Token) {
			return s, nil
		}
		next.Status = StatusError
		next.Error = message(e.Err)

	case SaveStarted:
		if err := requireReady(s); err != nil {
			return s, err
		}
		next.Status = StatusSaving
		next.Error = ""
		next.RequestToken = e.Token

	case SaveSucceeded:
		if stale(s, StatusSaving, e.Token) {
			return s, nil
		}
		summary := e.Summary
		next.Status = StatusReady
		next.LastSave = &summary

	case SaveFailed:
		if stale(s, StatusSaving, e.Token) {
			return s, nil
		}
		// in-memory work survives a failed save
		next.Status = StatusReady
		next.Error = message(e.Err)

	case SnapshotEdited:
		if err := requireReady(s); err != nil {
			return s, err
		}
		next.Snapshot = e.Snapshot

	case Retry:
		if s.Status != StatusError {
			return s, errors.InvalidInput(fmt.Sprintf("nothing to retry in status %s", s.Status))
		}
		next.Error = ""
		if s.Snapshot != nil {
			next.Status = StatusReady
		} else {
			next.Status = StatusIdle
		}

	default:
		return s, errors.InvalidInput(fmt.Sprintf("unknown event %T", ev))
	}
	return next, nil
}

func stale(s State, want Status, token uint64) bool {
	return s.Status != want || s.RequestToken != token
}

func requireReady(s State) error {
	if s.Status.Busy() {
		return busy(s.Status)
	}
	if s.Status != StatusReady {
		return errors.InvalidInput(fmt.Sprintf("workspace is %s, not ready", s.Status))
	}
	return nil
}

func busy(status Status) error {
	return errors.Busy(fmt.Sprintf("workspace is %s", status))
}

func message(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
