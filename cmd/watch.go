package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nijaru/videochat/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var metricsAddr string

	watchCmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Upload new video files dropped into a directory",
		Long: `watch uploads each video file created in DIR once it has stopped
changing. It runs until interrupted. With --metrics-addr the client's request
metrics are served at /metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = a.cfg.Watch.MetricsAddr
			}

			if metricsAddr != "" {
				server := &http.Server{
					Addr:              metricsAddr,
					Handler:           metricsMux(a),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					a.log.WithField("addr", metricsAddr).Info("Serving metrics")
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.WithError(err).Error("Metrics server failed")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := server.Shutdown(shutdownCtx); err != nil {
						a.log.WithError(err).Warn("Metrics server shutdown")
					}
				}()
			}

			w := watch.New(args[0], a.client, watch.Options{
				SettleDelay: a.cfg.Watch.SettleDelay,
				Logger:      a.log,
				OnResult: func(r watch.Result) {
					if r.Err != nil {
						fmt.Fprintf(a.errOut, "%s: %v\n", r.Path, r.Err)
						return
					}
					if a.jsonOutput {
						_ = printJSON(a.out, r.Response)
						return
					}
					fmt.Fprintf(a.out, "%s: video %d (%s)\n", r.Path, r.Response.VideoID, r.Response.Status)
				},
			})

			return w.Run(ctx)
		},
	}
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	return watchCmd
}

func metricsMux(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return mux
}
