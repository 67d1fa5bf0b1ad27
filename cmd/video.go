package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nijaru/videochat/history"
	"github.com/nijaru/videochat/utils"
	"github.com/nijaru/videochat/validation"
)

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a local video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateVideoFile(args[0]); err != nil {
				return err
			}
			resp, err := a.client.UploadVideoFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(resp, func(w io.Writer) {
				fmt.Fprintf(w, "Video %d: %s (%s)\n", resp.VideoID, resp.Message, resp.Status)
			})
		},
	}
}

func newYouTubeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "youtube URL",
		Short: "Process a YouTube video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateYouTubeURL(args[0]); err != nil {
				return err
			}
			resp, err := a.client.ProcessYouTubeVideo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(resp, func(w io.Writer) {
				fmt.Fprintf(w, "Video %d: %q (%s), %d sections, transcript: %t\n",
					resp.VideoID, resp.Title, resp.Status, resp.SectionsCount, resp.HasTranscript)
			})
		},
	}
}

func newVideoCmd(a *app) *cobra.Command {
	videoCmd := &cobra.Command{
		Use:   "video",
		Short: "Inspect or delete videos",
	}

	videoCmd.AddCommand(
		&cobra.Command{
			Use:   "get ID",
			Short: "Show video details",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseVideoID(args[0])
				if err != nil {
					return err
				}
				v, err := a.client.GetVideo(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.emit(v, func(w io.Writer) {
					fmt.Fprintf(w, "Video %d: %s\n", v.ID, v.Title)
					fmt.Fprintf(w, "  type:       %s\n", v.VideoType)
					fmt.Fprintf(w, "  status:     %s\n", v.Status)
					if v.Duration != nil {
						fmt.Fprintf(w, "  duration:   %s\n", utils.FormatSeconds(*v.Duration))
					}
					fmt.Fprintf(w, "  transcript: %t\n", v.HasTranscript)
					fmt.Fprintf(w, "  frames:     %d\n", v.FrameCount)
					fmt.Fprintf(w, "  sections:   %d\n", len(v.Sections))
					if created, err := v.CreatedAt.Time(); err == nil {
						fmt.Fprintf(w, "  created:    %s\n", created.Format("2006-01-02 15:04:05"))
					}
				})
			},
		},
		&cobra.Command{
			Use:   "sections ID",
			Short: "List video sections",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseVideoID(args[0])
				if err != nil {
					return err
				}
				resp, err := a.client.GetVideoSections(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.emit(resp, func(w io.Writer) {
					for _, s := range resp.Sections {
						fmt.Fprintf(w, "%-12s %s\n", utils.FormatRange(s.StartTime, s.EndTime), s.Title)
						if s.Description != "" {
							fmt.Fprintf(w, "             %s\n", s.Description)
						}
					}
				})
			},
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a video and its local journal entries",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseVideoID(args[0])
				if err != nil {
					return err
				}
				resp, err := a.client.DeleteVideo(cmd.Context(), id)
				if err != nil {
					return err
				}
				if err := a.withExistingHistory(func(store *history.Store) error {
					return store.DeleteVideo(cmd.Context(), id)
				}); err != nil {
					a.log.WithError(err).Warn("Failed to purge local history")
				}
				return a.emit(resp, func(w io.Writer) {
					fmt.Fprintln(w, resp.Message)
				})
			},
		},
	)

	return videoCmd
}
