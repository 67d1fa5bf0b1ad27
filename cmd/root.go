// Package cmd implements the videochat command line tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nijaru/videochat/client"
	"github.com/nijaru/videochat/config"
	"github.com/nijaru/videochat/history"
	"github.com/nijaru/videochat/logger"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// app is the state shared by all commands. It is populated by the root
// command's PersistentPreRunE.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	baseURL    string
	logLevel   string
	timeout    time.Duration
	jsonOutput bool

	cfg      *config.Config
	log      *logrus.Logger
	client   *client.Client
	registry *prometheus.Registry
	metrics  *client.Metrics
}

// Execute runs the CLI with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// NewRootCmd builds the command tree writing results to out and diagnostics
// to errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:   "videochat",
		Short: "Talk to the video analysis backend",
		Long: `videochat uploads videos to the video analysis backend, asks questions
about them, runs visual searches and fetches extracted frames.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (default ./"+config.DefaultFile+" when present)")
	flags.StringVar(&a.baseURL, "base-url", "", "Backend host root, e.g. http://localhost:8002")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.DurationVar(&a.timeout, "timeout", 0, "Per-request timeout (0 means none)")
	flags.BoolVarP(&a.jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(a),
		newHealthCmd(a),
		newInfoCmd(a),
		newUploadCmd(a),
		newYouTubeCmd(a),
		newVideoCmd(a),
		newChatCmd(a),
		newSearchCmd(a),
		newFramesCmd(a),
		newLogCmd(a),
		newWatchCmd(a),
	)

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return errors.Wrap(err, "loading configuration")
	}

	// Flags win over file and environment
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = a.timeout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	a.log = log

	a.registry = prometheus.NewRegistry()
	a.metrics = client.NewMetrics(a.registry)

	opts := []client.Option{
		client.WithLogger(log),
		client.WithAPIPrefix(cfg.APIPrefix),
		client.WithTimeout(cfg.Timeout),
		client.WithUserAgent("videochat/" + version),
		client.WithMetrics(a.metrics),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, client.WithRateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	}
	a.client = client.New(cfg.BaseURL, opts...)

	log.WithFields(logrus.Fields{
		"base_url": cfg.BaseURL,
		"command":  cmd.CommandPath(),
	}).Debug("Client configured")

	return nil
}

// openHistory opens the local journal configured for this run.
func (a *app) openHistory() (*history.Store, error) {
	return history.Open(a.cfg.History.Path)
}

// withExistingHistory runs fn against the journal only if one was created
// before; a missing journal is not an error.
func (a *app) withExistingHistory(fn func(*history.Store) error) error {
	if _, err := os.Stat(a.cfg.History.Path); err != nil {
		return nil
	}
	store, err := a.openHistory()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// emit prints v as indented JSON when --json is set, otherwise runs human.
func (a *app) emit(v any, human func(w io.Writer)) error {
	if a.jsonOutput {
		return printJSON(a.out, v)
	}
	human(a.out)
	return nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding output")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func parseVideoID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Errorf("invalid video id %q", s)
	}
	return id, nil
}

func parseTimestamp(s string) (float64, error) {
	ts, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Errorf("invalid timestamp %q", s)
	}
	return ts, nil
}
