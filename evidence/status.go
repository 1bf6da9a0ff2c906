// Package evidence talks to the backend about execution-result records: it
// fetches a testcase's recorded actions and credentials, serves upload file
// content, and reconciles run status plus collected artifacts onto the
// remote evidence record.
package evidence

// Status is the remote evidence record's state. The execution core drives
// the machine Draft → Running → {Passed | Failed}; re-running is the
// caller's decision, never this subsystem's.
type Status string

// Evidence states.
const (
	StatusDraft   Status = "Draft"
	StatusRunning Status = "Running"
	StatusPassed  Status = "Passed"
	StatusFailed  Status = "Failed"
)

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed
}

func (s Status) String() string { return string(s) }
