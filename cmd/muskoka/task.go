package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/protolambda/muskoka-client/internal/task"
)

const maxConcurrentFetches = 4

var taskJSON bool

var taskCmd = &cobra.Command{
	Use:   "task <key>...",
	Short: "Show transitions with their result groups",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}
		defer api.Close()
		source, cache := newSource(api, nil)
		if cache != nil {
			defer cache.Close()
		}

		tasks := make([]*task.Task, len(args))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(maxConcurrentFetches)
		for i, key := range args {
			g.Go(func() error {
				t, err := source.QueryTask(ctx, key)
				if err != nil {
					return err
				}
				tasks[i] = t
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if taskJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tasks)
		}
		in := inputs()
		for _, t := range tasks {
			printTask(os.Stdout, t, in)
		}
		return nil
	},
}

func init() {
	taskCmd.Flags().BoolVar(&taskJSON, "json", false, "Print tasks as JSON")
}
