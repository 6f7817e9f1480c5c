package task

import (
	"time"
)

// CanonicalClient is the reference implementation. Its results are the
// ground truth when ordering result groups.
const CanonicalClient = "pyspec"

// KnownClients lists the client implementations the dashboard filters on
var KnownClients = []string{
	"artemis", "harmony", "lighthouse", "lodestar", "nimbus", "prysm",
	"pyspec", "shasper", "trinity", "yeeth", "zrnt",
}

// Task is one state transition test case: a pre-state plus an ordered list
// of blocks, processed by every client that picks it up.
type Task struct {
	Key         string            `json:"key"`
	Blocks      int               `json:"blocks"`
	SpecVersion string            `json:"spec-version"`
	SpecConfig  string            `json:"spec-config"`
	Created     string            `json:"created"`
	Results     map[string]Result `json:"results,omitempty"`
}

// IsKnownClient reports whether name is one of KnownClients
func IsKnownClient(name string) bool {
	for _, c := range KnownClients {
		if c == name {
			return true
		}
	}
	return false
}

// CreatedTime parses the creation timestamp
func (t *Task) CreatedTime() (time.Time, error) {
	return parseTimestamp(t.Created)
}

// HasFailure returns true if any client reported a failed transition
func (t *Task) HasFailure() bool {
	for _, r := range t.Results {
		if !r.Success {
			return true
		}
	}
	return false
}

// Groups returns the task results grouped by post-state hash
func (t *Task) Groups() []ResultGroup {
	return GroupResults(t.Results)
}

// Consensus reports whether every client that reported a result agrees on a
// single post-state hash. A task without results has no consensus.
func (t *Task) Consensus() bool {
	if len(t.Results) == 0 {
		return false
	}
	var hash string
	first := true
	for _, r := range t.Results {
		if first {
			hash = r.PostHash
			first = false
			continue
		}
		if r.PostHash != hash {
			return false
		}
	}
	return true
}

func parseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return ts, nil
}
