package ai

import "strings"

// Status is the outcome of a single TreeNode.Execute call.
type Status uint8

const (
	// StatusUnknown is never returned by Execute. It marks "no record".
	StatusUnknown Status = iota
	// StatusCannotExecute means the node condition evaluated to false this tick.
	StatusCannotExecute
	// StatusRunning means the node must be invoked again on the next tick.
	StatusRunning
	StatusFinished
	StatusFailed
	// StatusException is an unexpected failure, e.g. a scripted node raised an error.
	StatusException
)

var statusNames = [...]string{
	StatusUnknown:       "UNKNOWN",
	StatusCannotExecute: "CANNOTEXECUTE",
	StatusRunning:       "RUNNING",
	StatusFinished:      "FINISHED",
	StatusFailed:        "FAILED",
	StatusException:     "EXCEPTION",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "UNKNOWN"
}

// Terminal reports whether the status ends the node's work for this tick
// without requiring a follow-up invocation.
func (s Status) Terminal() bool {
	return s != StatusRunning && s != StatusUnknown
}

// ParseStatus resolves a status by its name, case-insensitive.
func ParseStatus(name string) (Status, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range statusNames {
		if n == upper {
			return Status(i), true
		}
	}
	return StatusUnknown, false
}
