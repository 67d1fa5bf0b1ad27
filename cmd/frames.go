package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nijaru/videochat/frames"
	"github.com/nijaru/videochat/storage"
	"github.com/nijaru/videochat/utils"
)

func newFramesCmd(a *app) *cobra.Command {
	framesCmd := &cobra.Command{
		Use:   "frames",
		Short: "Fetch, analyze and export extracted frames",
	}

	var output string
	getCmd := &cobra.Command{
		Use:   "get ID TIMESTAMP",
		Short: "Download the frame closest to a timestamp",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			ts, err := parseTimestamp(args[1])
			if err != nil {
				return err
			}

			img, err := a.client.GetVideoFrame(cmd.Context(), id, ts)
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = frames.FileName(id, ts, img.ContentType)
			}
			if err := os.WriteFile(path, img.Data, 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", path)
			}

			result := map[string]any{"path": path, "bytes": len(img.Data), "content_type": img.ContentType}
			return a.emit(result, func(w io.Writer) {
				fmt.Fprintf(w, "Wrote %s (%d bytes)\n", path, len(img.Data))
			})
		},
	}
	getCmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default video_<id>_<ts>s.<ext>)")

	var listLimit int
	listCmd := &cobra.Command{
		Use:   "list ID",
		Short: "List extracted frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			resp, err := a.client.GetVideoFrames(cmd.Context(), id, listLimit)
			if err != nil {
				return err
			}
			return a.emit(resp, func(w io.Writer) {
				for _, f := range resp.Frames {
					desc := "(not analyzed)"
					if f.Description != nil {
						desc = utils.Truncate(*f.Description, 80)
					}
					fmt.Fprintf(w, "%-8s %s\n", utils.FormatSeconds(f.Timestamp), desc)
				}
			})
		},
	}
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of frames")

	analyzeCmd := &cobra.Command{
		Use:   "analyze ID",
		Short: "Ask the backend to describe every extracted frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			resp, err := a.client.AnalyzeVideoFrames(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.emit(resp, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%d of %d frames)\n", resp.Message, resp.AnalyzedCount, resp.TotalFrames)
			})
		},
	}

	framesCmd.AddCommand(getCmd, listCmd, analyzeCmd, newExportCmd(a))
	return framesCmd
}

type exportResult struct {
	VideoID  int      `json:"video_id"`
	Fetched  int      `json:"fetched"`
	Kept     int      `json:"kept"`
	Files    []string `json:"files"`
	Uploaded []string `json:"uploaded,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
}

func newExportCmd(a *app) *cobra.Command {
	var (
		dir    string
		limit  int
		dedup  int
		bucket string
	)

	exportCmd := &cobra.Command{
		Use:   "export ID",
		Short: "Download frames, drop near-duplicates and save them",
		Long: `export downloads every listed frame of a video, removes near-duplicates
using perceptual hashing and writes the rest to a directory. When a bucket is
configured the kept frames are also uploaded to S3-compatible storage; frames
already stored there with the same bytes are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("dir") {
				dir = a.cfg.Export.Dir
			}
			if !cmd.Flags().Changed("dedup") {
				dedup = a.cfg.Export.DedupThreshold
			}
			if !cmd.Flags().Changed("bucket") {
				bucket = a.cfg.S3.Bucket
			}

			list, err := a.client.GetVideoFrames(ctx, id, limit)
			if err != nil {
				return err
			}

			images := make([]frames.Image, 0, len(list.Frames))
			for _, f := range list.Frames {
				img, err := a.client.GetVideoFrame(ctx, id, f.Timestamp)
				if err != nil {
					return err
				}
				images = append(images, frames.Image{
					VideoID:     id,
					Timestamp:   f.Timestamp,
					Data:        img.Data,
					ContentType: img.ContentType,
				})
			}

			kept, err := frames.Dedupe(images, dedup)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"video_id":  id,
				"fetched":   len(images),
				"kept":      len(kept),
				"threshold": dedup,
			}).Info("Frames deduplicated")

			files, err := frames.WriteAll(dir, kept)
			if err != nil {
				return err
			}

			result := exportResult{VideoID: id, Fetched: len(images), Kept: len(kept), Files: files}

			if bucket != "" {
				spaces, err := storage.NewSpacesClient(ctx, storage.SpacesConfig{
					AccessKey: a.cfg.S3.AccessKey,
					SecretKey: a.cfg.S3.SecretKey,
					Region:    a.cfg.S3.Region,
					Endpoint:  a.cfg.S3.Endpoint,
					Bucket:    bucket,
				})
				if err != nil {
					return err
				}
				for _, img := range kept {
					stored, err := spaces.HasFrame(ctx, img)
					if err != nil {
						return err
					}
					if stored {
						result.Skipped = append(result.Skipped, storage.FrameKey(img))
						continue
					}
					key, err := spaces.SaveFrame(ctx, img)
					if err != nil {
						return err
					}
					result.Uploaded = append(result.Uploaded, key)
				}
			}

			return a.emit(result, func(w io.Writer) {
				fmt.Fprintf(w, "Kept %d of %d frames in %s\n", result.Kept, result.Fetched, dir)
				if len(result.Uploaded) > 0 {
					fmt.Fprintf(w, "Uploaded %d frames to %s\n", len(result.Uploaded), bucket)
				}
				if len(result.Skipped) > 0 {
					fmt.Fprintf(w, "Skipped %d frames already in %s\n", len(result.Skipped), bucket)
				}
			})
		},
	}

	flags := exportCmd.Flags()
	flags.StringVar(&dir, "dir", "", "Output directory (default from config)")
	flags.IntVar(&limit, "limit", 50, "Maximum number of frames to fetch")
	flags.IntVar(&dedup, "dedup", 0, "pHash distance below which frames are duplicates (default from config, 0 disables)")
	flags.StringVar(&bucket, "bucket", "", "Also upload kept frames to this bucket")

	return exportCmd
}
