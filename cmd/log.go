package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nijaru/videochat/history"
	"github.com/nijaru/videochat/utils"
)

// newLogCmd shows what was recorded locally with --record.
func newLogCmd(a *app) *cobra.Command {
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Show the local history journal",
	}

	var chatLimit int
	chatsCmd := &cobra.Command{
		Use:   "chats ID",
		Short: "List recorded chat exchanges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			entries := []history.ChatEntry{}
			if err := a.withExistingHistory(func(store *history.Store) error {
				found, err := store.ListChats(cmd.Context(), id, chatLimit)
				if found != nil {
					entries = found
				}
				return err
			}); err != nil {
				return err
			}
			return a.emit(entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "Nothing recorded.")
					return
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%s  Q: %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Message)
					fmt.Fprintf(w, "%16s  A: %s\n", "", utils.Truncate(e.Response, 100))
				}
			})
		},
	}
	chatsCmd.Flags().IntVar(&chatLimit, "limit", 50, "Maximum number of entries")

	var searchLimit int
	searchesCmd := &cobra.Command{
		Use:   "searches ID",
		Short: "List recorded visual searches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			entries := []history.SearchEntry{}
			if err := a.withExistingHistory(func(store *history.Store) error {
				found, err := store.ListSearches(cmd.Context(), id, searchLimit)
				if found != nil {
					entries = found
				}
				return err
			}); err != nil {
				return err
			}
			return a.emit(entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "Nothing recorded.")
					return
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%s  %-8s %3d  %s\n",
						e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Strategy, e.TotalResults, e.Query)
				}
			})
		},
	}
	searchesCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum number of entries")

	logCmd.AddCommand(chatsCmd, searchesCmd)
	return logCmd
}
