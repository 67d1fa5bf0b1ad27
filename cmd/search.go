package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nijaru/videochat/client"
	"github.com/nijaru/videochat/models"
	"github.com/nijaru/videochat/utils"
)

func newSearchCmd(a *app) *cobra.Command {
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search what appears in a video",
	}

	var (
		maxResults int
		standard   bool
		record     bool
	)
	visualCmd := &cobra.Command{
		Use:   "visual ID QUERY...",
		Short: "Run a visual search",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			query := strings.Join(args[1:], " ")

			opts := client.SearchOptions{MaxResults: maxResults}
			if standard {
				opts.Strategy = client.StrategyStandard
			}

			resp, err := a.client.VisualSearch(cmd.Context(), id, query, opts)
			if err != nil {
				return err
			}

			if record {
				store, err := a.openHistory()
				if err != nil {
					return err
				}
				defer store.Close()
				if _, err := store.RecordSearch(cmd.Context(), id, query, opts.Strategy.String(), resp.TotalResults); err != nil {
					return err
				}
			}

			return a.emit(resp, func(w io.Writer) { printSearch(w, resp) })
		},
	}
	visualCmd.Flags().IntVar(&maxResults, "max", 10, "Maximum number of results")
	visualCmd.Flags().BoolVar(&standard, "standard", false, "Search extracted frames instead of the native pipeline")
	visualCmd.Flags().BoolVar(&record, "record", false, "Also record the search in the local history")

	var nativeMax int
	nativeCmd := &cobra.Command{
		Use:   "native ID QUERY...",
		Short: "Call the native search endpoint directly",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			resp, err := a.client.NativeVisualSearch(cmd.Context(), id, strings.Join(args[1:], " "), nativeMax)
			if err != nil {
				return err
			}
			return a.emit(resp, func(w io.Writer) { printSearch(w, resp) })
		},
	}
	nativeCmd.Flags().IntVar(&nativeMax, "max", 10, "Maximum number of results")

	suggestionsCmd := &cobra.Command{
		Use:   "suggestions ID",
		Short: "List suggested search queries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			resp, err := a.client.GetSearchSuggestions(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.emit(resp, func(w io.Writer) {
				for _, s := range resp.Suggestions {
					fmt.Fprintf(w, "- %s\n", s)
				}
				cats := resp.Categories
				for _, c := range []struct {
					name  string
					items []string
				}{
					{"objects", cats.Objects},
					{"people", cats.People},
					{"scenes", cats.Scenes},
					{"text", cats.Text},
					{"actions", cats.Actions},
					{"colors", cats.Colors},
				} {
					if len(c.items) > 0 {
						fmt.Fprintf(w, "%s: %s\n", c.name, strings.Join(c.items, ", "))
					}
				}
			})
		},
	}

	searchCmd.AddCommand(visualCmd, nativeCmd, suggestionsCmd)
	return searchCmd
}

func printSearch(w io.Writer, resp *models.VisualSearchResponse) {
	if resp.DirectAnswer != nil {
		fmt.Fprintf(w, "%s\n\n", *resp.DirectAnswer)
	}
	fmt.Fprintf(w, "%d result(s) for %q\n", resp.TotalResults, resp.Query)
	for _, r := range resp.Results {
		fmt.Fprintf(w, "  %-8s %3.0f%%  %s\n", utils.FormatSeconds(r.Timestamp), r.Confidence*100, utils.Truncate(r.Description, 80))
	}
	if len(resp.Clips) > 0 {
		fmt.Fprintln(w, "Clips:")
		for _, c := range resp.Clips {
			fmt.Fprintf(w, "  %-12s %3.0f%%  %d frame(s)  %s\n",
				utils.FormatRange(c.StartTime, c.EndTime), c.Confidence*100, c.FrameCount, utils.Truncate(c.Description, 60))
		}
	}
}
