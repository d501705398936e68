package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/nastydata"
	"github.com/meigma/nastydata/internal/monthly"
)

// Pushshift command flags
var (
	pushshiftDir   string
	pushshiftType  string
	pushshiftSince string
	pushshiftUntil string
)

var pushshiftCmd = &cobra.Command{
	Use:     "pushshift",
	Aliases: []string{"pu"},
	Short:   "Download and sample Pushshift Reddit dumps",
}

var pushshiftDownloadCmd = &cobra.Command{
	Use:     "download",
	Aliases: []string{"dl"},
	Short:   "Download monthly Reddit dumps",
	Long: `Download the monthly Pushshift dumps of Reddit links and comments and
verify them against the published checksums. Dumps already present in the
directory are not downloaded again.

Without --until, downloading continues until the server has no dump for a month.

Examples:
  nasty-data pushshift download --dir dumps
  nasty-data pu dl -d dumps -t comments -s 2011-01 -u 2011-12`,
	Args: cobra.NoArgs,
	RunE: runPushshiftDownload,
}

var pushshiftSampleCmd = &cobra.Command{
	Use:     "sample",
	Aliases: []string{"s"},
	Short:   "Sample downloaded dumps",
	Long: `Write a small sample of every dump in a directory that still contains
every field seen in the dump, and concatenate them into all.sample.

Examples:
  nasty-data pushshift sample --dir dumps`,
	Args: cobra.NoArgs,
	RunE: runPushshiftSample,
}

func init() {
	pushshiftDownloadCmd.Flags().StringVarP(&pushshiftDir, "dir", "d", "", "Directory to download into (required)")
	pushshiftDownloadCmd.Flags().StringVarP(&pushshiftType, "type", "t", "", "Only download links or comments")
	pushshiftDownloadCmd.Flags().StringVarP(&pushshiftSince, "since", "s", "", "First month to download (YYYY-MM)")
	pushshiftDownloadCmd.Flags().StringVarP(&pushshiftUntil, "until", "u", "", "Last month to download (YYYY-MM)")
	//nolint:errcheck // flags registered above
	pushshiftDownloadCmd.MarkFlagRequired("dir")
	//nolint:errcheck // flags registered above
	pushshiftDownloadCmd.MarkFlagDirname("dir")
	//nolint:errcheck // flags registered above
	pushshiftDownloadCmd.RegisterFlagCompletionFunc("type", completeDumpTypes)

	pushshiftSampleCmd.Flags().StringVarP(&pushshiftDir, "dir", "d", ".", "Directory containing the dumps")
	//nolint:errcheck // flags registered above
	pushshiftSampleCmd.MarkFlagDirname("dir")

	pushshiftCmd.AddCommand(pushshiftDownloadCmd)
	pushshiftCmd.AddCommand(pushshiftSampleCmd)
	rootCmd.AddCommand(pushshiftCmd)
}

func runPushshiftDownload(_ *cobra.Command, _ []string) error {
	var opts nastydata.DownloadOptions
	if pushshiftType != "" {
		t, err := nastydata.ParseDumpType(pushshiftType)
		if err != nil {
			return err
		}
		opts.Type = &t
	}
	var err error
	if opts.Since, err = parseMonthFlag(pushshiftSince); err != nil {
		return err
	}
	if opts.Until, err = parseMonthFlag(pushshiftUntil); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, release, err := newClient(needState)
	if err != nil {
		return err
	}
	defer release()

	return client.DownloadPushshift(ctx, pushshiftDir, opts)
}

func runPushshiftSample(_ *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client, release, err := newClient(0)
	if err != nil {
		return err
	}
	defer release()

	return client.SamplePushshift(ctx, pushshiftDir)
}

func parseMonthFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := monthly.Parse(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
