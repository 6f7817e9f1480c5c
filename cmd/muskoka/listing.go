package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/protolambda/muskoka-client/pkg/client"
)

var (
	listingClients     []string
	listingSpecVersion string
	listingSpecConfig  string
	listingHasFail     bool
	listingAfter       string
	listingBefore      string
	listingJSON        bool
)

var listingCmd = &cobra.Command{
	Use:   "listing",
	Short: "List transitions matching the filters",
	Example: `  muskoka listing --client zrnt --client pyspec=v0.8.3 --has-fail
  muskoka listing --spec-version v0.8.3 --after <key>`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := listingQuery()
		if err != nil {
			return err
		}

		api, err := newAPIClient()
		if err != nil {
			return err
		}
		defer api.Close()
		source, cache := newSource(api, nil)
		if cache != nil {
			defer cache.Close()
		}

		tasks, err := source.QueryListing(cmd.Context(), q)
		if err != nil {
			return err
		}

		if listingJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tasks)
		}
		if len(tasks) == 0 {
			fmt.Println("no transitions found")
			return nil
		}
		for i := range tasks {
			printSummary(os.Stdout, &tasks[i])
		}
		return nil
	},
}

// listingQuery builds the query from flags. Clients are given as name or
// name=version.
func listingQuery() (client.ListingQuery, error) {
	q := client.ListingQuery{
		SpecVersion: listingSpecVersion,
		SpecConfig:  listingSpecConfig,
		HasFail:     listingHasFail,
		After:       listingAfter,
		Before:      listingBefore,
	}
	for _, c := range listingClients {
		name, version, _ := strings.Cut(c, "=")
		if name == "" {
			return q, fmt.Errorf("invalid client filter %q", c)
		}
		if version == "all" {
			version = ""
		}
		q.Clients = append(q.Clients, client.ClientQuery{Name: name, Version: version})
	}
	sort.Slice(q.Clients, func(i, j int) bool { return q.Clients[i].Name < q.Clients[j].Name })
	return q, nil
}

func init() {
	f := listingCmd.Flags()
	f.StringArrayVar(&listingClients, "client", nil, "Only tasks processed by this client, as name or name=version")
	f.StringVar(&listingSpecVersion, "spec-version", "", "Filter on spec version")
	f.StringVar(&listingSpecConfig, "spec-config", "", "Filter on spec config")
	f.BoolVar(&listingHasFail, "has-fail", false, "Only tasks with a failed result")
	f.StringVar(&listingAfter, "after", "", "Page cursor: list tasks after this key")
	f.StringVar(&listingBefore, "before", "", "Page cursor: list tasks before this key")
	f.BoolVar(&listingJSON, "json", false, "Print tasks as JSON")
}
