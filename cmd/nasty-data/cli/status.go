package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show downloaded and indexed files",
	Long: `List the Pushshift dumps downloaded and the files indexed so far, as
recorded in the state database (state.path).`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	client, release, err := newClient(needState)
	if err != nil {
		return err
	}
	defer release()

	status, err := client.Status()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Downloads: %d\n", len(status.Downloads))
	if len(status.Downloads) > 0 {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tTYPE\tMONTH\tSIZE\tDIGEST\tCOMPLETED\tDIR")
		for _, d := range status.Downloads {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				d.File, d.Type, d.Month,
				humanize.IBytes(safeUint64(d.Size)),
				shortDigest(d.Digest.String()),
				humanize.Time(d.CompletedAt), d.Dir)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\nIndexed files: %d\n", len(status.Indexed))
	if len(status.Indexed) > 0 {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tFILE\tKIND\tDOCUMENTS\tFAILED\tCOMPLETED")
		for _, rec := range status.Indexed {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				rec.Index, filepath.Base(rec.File), rec.Kind,
				humanize.Comma(rec.Stats.Succeeded),
				humanize.Comma(rec.Stats.Failed),
				humanize.Time(rec.CompletedAt))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// shortDigest truncates a digest for display.
func shortDigest(d string) string {
	const maxLen = 19 // "sha256:" + 12 hex chars
	if len(d) > maxLen {
		return d[:maxLen]
	}
	if d == "" {
		return "-"
	}
	return d
}

// safeUint64 converts a non-negative size for humanize.
func safeUint64(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}
