package domain

import (
	"fmt"
	"strings"
)

// Status is the outcome of a node.
//
// Running means the node does its own per-tick work and must be updated directly.
// Waiting means the node only propagates the in-progress state of its children.
type Status int

const (
	StatusUninitialized Status = iota
	StatusRunning
	StatusWaiting
	StatusSuccess
	StatusFailure
)

var statusNames = [...]string{
	StatusUninitialized: "uninitialized",
	StatusRunning:       "running",
	StatusWaiting:       "waiting",
	StatusSuccess:       "success",
	StatusFailure:       "failure",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// IsTerminal reports whether s is Success or Failure.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// IsInProgress reports whether s is Running or Waiting.
func (s Status) IsInProgress() bool {
	return s == StatusRunning || s == StatusWaiting
}

// ParseStatus converts a case-insensitive name into a Status.
func ParseStatus(name string) (Status, error) {
	clean := strings.ToLower(strings.TrimSpace(name))
	for i, n := range statusNames {
		if n == clean {
			return Status(i), nil
		}
	}
	return StatusUninitialized, fmt.Errorf("unknown status %q", name)
}

// MarshalText implements encoding.TextMarshaler so statuses persist by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
