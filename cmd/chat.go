package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nijaru/videochat/history"
	"github.com/nijaru/videochat/models"
	"github.com/nijaru/videochat/utils"
)

func newChatCmd(a *app) *cobra.Command {
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about a video",
	}

	var record bool
	sendCmd := &cobra.Command{
		Use:   "send ID MESSAGE...",
		Short: "Ask a question",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			message := strings.Join(args[1:], " ")

			resp, err := a.client.SendChatMessage(cmd.Context(), id, message)
			if err != nil {
				return err
			}

			if record {
				store, err := a.openHistory()
				if err != nil {
					return err
				}
				defer store.Close()
				if _, err := store.RecordChat(cmd.Context(), id, message, resp); err != nil {
					return err
				}
			}

			return a.emit(resp, func(w io.Writer) {
				fmt.Fprint(w, utils.FormatText(resp.Response))
				printCitations(w, resp.Citations)
			})
		},
	}
	sendCmd.Flags().BoolVar(&record, "record", false, "Also record the exchange in the local history")

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history ID",
		Short: "Show the chat history kept by the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			resp, err := a.client.GetChatHistory(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			return a.emit(resp, func(w io.Writer) {
				if len(resp.Messages) == 0 {
					fmt.Fprintln(w, "No messages.")
					return
				}
				for _, m := range resp.Messages {
					fmt.Fprintf(w, "Q: %s\nA: %s\n", m.Message, m.Response)
					printCitations(w, m.Citations)
					fmt.Fprintln(w)
				}
			})
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of messages")

	clearCmd := &cobra.Command{
		Use:   "clear ID",
		Short: "Clear the chat history of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			resp, err := a.client.ClearChatHistory(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := a.withExistingHistory(func(store *history.Store) error {
				return store.ClearChats(cmd.Context(), id)
			}); err != nil {
				a.log.WithError(err).Warn("Failed to clear local history")
			}
			return a.emit(resp, func(w io.Writer) {
				fmt.Fprintln(w, resp.Message)
			})
		},
	}

	chatCmd.AddCommand(sendCmd, historyCmd, clearCmd)
	return chatCmd
}

func printCitations(w io.Writer, citations []models.Citation) {
	for _, c := range citations {
		fmt.Fprintf(w, "  [%d] %s %s\n", c.CitationID, utils.FormatSeconds(c.Time), c.Text)
	}
}
