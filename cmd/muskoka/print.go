package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/protolambda/muskoka-client/internal/task"
	"github.com/protolambda/muskoka-client/pkg/client"
)

var (
	passColor = color.New(color.FgGreen).SprintFunc()
	failColor = color.New(color.FgRed).SprintFunc()
	hashColor = color.New(color.FgCyan).SprintFunc()
	dimColor  = color.New(color.Faint).SprintFunc()
)

func since(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

func outcome(r task.Result) string {
	if r.Success {
		return passColor(r.ClientName)
	}
	return failColor(r.ClientName)
}

// printSummary writes one line per task with its groups condensed
func printSummary(w io.Writer, t *task.Task) {
	groups := t.Groups()
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		names := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			names = append(names, outcome(m.Data))
		}
		parts = append(parts, fmt.Sprintf("%s[%s]", hashColor(abbrev(g.PostHash)), strings.Join(names, " ")))
	}
	fmt.Fprintf(w, "%s  %-16s %s/%s  %d blocks  %s\n",
		t.Key, dimColor(since(t.Created)), t.SpecVersion, t.SpecConfig, t.Blocks, strings.Join(parts, " "))
}

// printTask writes a task with its inputs and every result group
func printTask(w io.Writer, t *task.Task, in client.Inputs) {
	fmt.Fprintf(w, "task %s\n", t.Key)
	fmt.Fprintf(w, "  created  %s (%s)\n", t.Created, since(t.Created))
	fmt.Fprintf(w, "  spec     %s/%s\n", t.SpecVersion, t.SpecConfig)
	fmt.Fprintf(w, "  pre      %s\n", in.PreState(t))
	for i, b := range in.Blocks(t) {
		fmt.Fprintf(w, "  block %-2d %s\n", i, b)
	}

	groups := t.Groups()
	if len(groups) == 0 {
		fmt.Fprintln(w, "  no results")
		return
	}
	for _, g := range groups {
		fmt.Fprintf(w, "  %s\n", hashColor(g.PostHash))
		for _, m := range g.Members {
			fmt.Fprintf(w, "    %-24s %-12s %s\n", outcome(m.Data), m.Data.ClientVersion, dimColor(since(m.Data.Created)))
		}
	}
}

func abbrev(h string) string {
	if h == "" {
		return "-"
	}
	if len(h) > 10 {
		return h[:10]
	}
	return h
}
