package task

import (
	"time"
)

// Result is the outcome one client reported for a task
type Result struct {
	Success       bool        `json:"success"`
	Created       string      `json:"created"`
	ClientName    string      `json:"client-name"`
	ClientVersion string      `json:"client-version"`
	PostHash      string      `json:"post-hash"`
	Files         ResultFiles `json:"files"`
}

// ResultFiles points at the blob storage objects a client run produced
type ResultFiles struct {
	PostStateURL string `json:"post-state"`
	OutLogURL    string `json:"out-log"`
	ErrLogURL    string `json:"err-log"`
}

// CreatedTime parses the timestamp the result was recorded at
func (r Result) CreatedTime() (time.Time, error) {
	return parseTimestamp(r.Created)
}

// IsCanonical reports whether the result came from the reference client
func (r Result) IsCanonical() bool {
	return r.ClientName == CanonicalClient
}

// sameOutcome reports whether two results describe the same run outcome.
// Redelivered results differ only in key and creation time.
func (r Result) sameOutcome(other Result) bool {
	return r.Success == other.Success &&
		r.ClientName == other.ClientName &&
		r.ClientVersion == other.ClientVersion
}
