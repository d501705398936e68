// Package cli implements the nasty-data command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/nastydata"
	"github.com/meigma/nastydata/cmd/nasty-data/cli/config"
	"github.com/meigma/nastydata/internal/elastic"
	"github.com/meigma/nastydata/internal/profiling"
	"github.com/meigma/nastydata/internal/progress"
	"github.com/meigma/nastydata/internal/state"
)

// Build information set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	cfgFile      string
	verbose      bool
	profileKind  string
	profileDir   string
	pyroscopeURL string
)

// Loaded in PersistentPreRunE.
var (
	cfg         *config.Config
	logger      = slog.New(slog.DiscardHandler)
	stopProfile func() error
)

// stderr carries both log output and progress bars, so log lines are
// printed above a rendering bar.
var stderr = progress.NewConsole(os.Stderr)

var rootCmd = &cobra.Command{
	Use:   "nasty-data",
	Short: "Download social media archives and index them into Elasticsearch",
	Long: `nasty-data downloads Pushshift Reddit dumps and NASTY Twitter batch results
and bulk-indexes them into versioned Elasticsearch indices.

Configuration is read from --config, ./nasty.toml or
$XDG_CONFIG_HOME/nasty-data/nasty.toml. Every key can be overridden
with a NASTY_ environment variable, e.g. NASTY_ELASTICSEARCH_PASSWORD.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./nasty.toml or $XDG_CONFIG_HOME/nasty-data/nasty.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().StringVar(&profileKind, "profile", string(profiling.None), "Profile the run: cpu, fgprof, trace, none")
	rootCmd.PersistentFlags().StringVar(&profileDir, "profile-dir", "profiles", "Directory for profile files")
	rootCmd.PersistentFlags().StringVar(&pyroscopeURL, "pyroscope", "", "Stream profiles to this Pyroscope server")
	rootCmd.Version = version

	//nolint:errcheck // flag registered above
	rootCmd.RegisterFlagCompletionFunc("profile", completeProfiles)
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if stopProfile != nil {
		if stopErr := stopProfile(); stopErr != nil {
			logger.Warn("failed to write profile", "error", stopErr)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
	}
	return err
}

// setup loads the configuration, builds the logger and starts profiling.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}

	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	kind, err := profiling.ParseKind(profileKind)
	if err != nil {
		return err
	}
	stopProfile, err = profiling.Start(profiling.Options{
		Kind:         kind,
		Dir:          profileDir,
		Label:        strings.ReplaceAll(cmd.CommandPath(), " ", "_"),
		PyroscopeURL: pyroscopeURL,
	})
	return err
}

type clientNeeds int

const (
	needState clientNeeds = 1 << iota
	needElasticsearch
)

// newClient creates a nastydata client with configured options. The
// returned function releases the state store.
func newClient(needs clientNeeds) (*nastydata.Client, func(), error) {
	opts := []nastydata.ClientOption{
		nastydata.WithLogger(logger),
		nastydata.WithProgressWriter(shouldShowProgress(), stderr),
		nastydata.WithPushshiftURL(nastydata.Links, cfg.Pushshift.LinksURL),
		nastydata.WithPushshiftURL(nastydata.Comments, cfg.Pushshift.CommentsURL),
		nastydata.WithDownloadRetry(cfg.Pushshift.Retries, cfg.Pushshift.Backoff),
	}
	release := func() {}

	if needs&needElasticsearch != 0 {
		es, err := elastic.Connect(cfg.Elasticsearch.Elastic(), elastic.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, nastydata.WithElasticsearch(es))
	}

	if needs&needState != 0 {
		store, err := state.Open(cfg.State.Path)
		if err != nil {
			return nil, nil, err
		}
		release = func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close state store", "error", err)
			}
		}
		opts = append(opts, nastydata.WithStateStore(store))
	}

	client, err := nastydata.NewClient(opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return client, release, nil
}

// signalContext returns a context that is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// formatError converts nastydata errors to user-friendly messages.
func formatError(err error) string {
	if err == nil {
		return ""
	}

	var bulkErr *nastydata.BulkError
	switch {
	case errors.As(err, &bulkErr):
		msg := fmt.Sprintf("Error: %d documents were rejected (%d indexed)", bulkErr.Failed, bulkErr.Succeeded)
		for _, item := range bulkErr.Items {
			msg += "\n  " + item
		}
		return msg
	case errors.Is(err, nastydata.ErrMissingCACert):
		return fmt.Sprintf("Error: Elasticsearch CA certificate not found (set elasticsearch.ca_crt_path): %v", err)
	case errors.Is(err, nastydata.ErrIndexNotFound):
		return fmt.Sprintf("Error: index not found: %v", err)
	case errors.Is(err, nastydata.ErrChecksumMismatch):
		return fmt.Sprintf("Error: corrupt download: %v", err)
	case errors.Is(err, nastydata.ErrNotFound):
		return fmt.Sprintf("Error: not found: %v", err)
	case errors.Is(err, context.Canceled):
		return "Error: operation canceled"
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
