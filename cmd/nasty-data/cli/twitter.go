package cli

import (
	"github.com/spf13/cobra"

	"github.com/meigma/nastydata"
	"github.com/meigma/nastydata/internal/document"
	"github.com/meigma/nastydata/internal/source"
)

var twitterCmd = &cobra.Command{
	Use:     "twitter",
	Aliases: []string{"t"},
	Short:   "Index NASTY Twitter batch results",
}

var twitterIndexBatchCmd = &cobra.Command{
	Use:   "index-batch",
	Short: "Index a NASTY batch result file",
	Long: `Index the tweets of a NASTY batch result. The batch metadata is read from
the .meta.json file next to the .data.jsonl.xz file and stored with every tweet.

This is a shortcut for index-dump with kind nasty-batch-twitter and loader
nasty-batch.

Examples:
  nasty-data twitter index-batch --name tweets --file results/0001.data.jsonl.xz`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return indexDump(cmd, nastydata.IndexDumpOptions{
			Index:  indexName,
			Kind:   document.NastyBatchTwitterKind,
			Loader: source.NastyBatch,
			File:   dumpFile,
			Force:  dumpForce,
		})
	},
}

func init() {
	twitterIndexBatchCmd.Flags().StringVarP(&indexName, "name", "n", "", "Index or alias name (required)")
	twitterIndexBatchCmd.Flags().StringVarP(&dumpFile, "file", "f", "", "Batch data file (required)")
	twitterIndexBatchCmd.Flags().IntVar(&dumpWorkers, "num-workers", 0, "Parallel workers (default index.num_workers, 0 = number of CPUs)")
	twitterIndexBatchCmd.Flags().BoolVar(&dumpForce, "force", false, "Index the file even if it was indexed before")
	//nolint:errcheck // flags registered above
	twitterIndexBatchCmd.MarkFlagRequired("name")
	//nolint:errcheck // flags registered above
	twitterIndexBatchCmd.MarkFlagRequired("file")

	twitterCmd.AddCommand(twitterIndexBatchCmd)
	rootCmd.AddCommand(twitterCmd)
}
