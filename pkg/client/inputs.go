package client

import (
	"fmt"
	"strings"

	"github.com/protolambda/muskoka-client/internal/task"
)

// Inputs builds blob storage URLs of the files a task was created from
type Inputs struct {
	BaseURL string // e.g. https://storage.googleapis.com
	Bucket  string
}

func (in Inputs) url(t *task.Task, name string) string {
	return strings.Join([]string{
		strings.TrimSuffix(in.BaseURL, "/"), in.Bucket, t.SpecVersion, t.SpecConfig, t.Key, name,
	}, "/")
}

// PreState returns the URL of the task's pre-state
func (in Inputs) PreState(t *task.Task) string {
	return in.url(t, "pre.ssz")
}

// Block returns the URL of the i-th block of the task
func (in Inputs) Block(t *task.Task, i int) string {
	return in.url(t, fmt.Sprintf("block_%d.ssz", i))
}

// Blocks returns the URLs of all blocks of the task, in order
func (in Inputs) Blocks(t *task.Task) []string {
	urls := make([]string, 0, t.Blocks)
	for i := 0; i < t.Blocks; i++ {
		urls = append(urls, in.Block(t, i))
	}
	return urls
}
