package entity

import "strings"

// Status is the stage a data item is in. Every status except StatusDone is
// also a Job objective.
type Status string

const (
	StatusToAnnotate Status = "to_annotate"
	StatusToValidate Status = "to_validate"
	StatusToCorrect  Status = "to_correct"
	StatusDone       Status = "done"
)

var allStatuses = []Status{
	StatusToAnnotate,
	StatusToValidate,
	StatusToCorrect,
	StatusDone,
}

var transitions = map[Status][]Status{
	StatusToAnnotate: {StatusToValidate},
	StatusToValidate: {StatusDone, StatusToCorrect},
	StatusToCorrect:  {StatusToValidate},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// IsObjective reports whether a Job can carry this status.
func (s Status) IsObjective() bool {
	switch s {
	case StatusToAnnotate, StatusToValidate, StatusToCorrect:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no Job exists for an item in this status.
func (s Status) IsTerminal() bool {
	return s == StatusDone
}

// CanTransitionTo reports whether closing a job of objective s with next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Role tells which Result field records the user working on this objective.
func (s Status) Role() Role {
	if s == StatusToValidate {
		return RoleValidator
	}
	return RoleAnnotator
}

// Role names the two per-item assignment slots kept on a Result.
type Role string

const (
	RoleAnnotator Role = "annotator"
	RoleValidator Role = "validator"
)
