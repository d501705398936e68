package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/nastydata"
)

// Index command flags
var (
	indexName        string
	indexKind        string
	indexMoveData    bool
	indexUpdateAlias bool
	dumpLoader       string
	dumpFile         string
	dumpWorkers      int
	dumpForce        bool
)

var newIndexCmd = &cobra.Command{
	Use:     "new-index",
	Aliases: []string{"n"},
	Short:   "Create a new versioned index",
	Long: `Create a new index named <name>-YYYYmmdd-HHMMSS with the settings and
mapping of the given document kind.

With --update-alias (the default) the alias <name> is moved to the new index.
With --move-data the documents of the current <name> index are copied first.

Examples:
  nasty-data new-index --name reddit --kind pushshift-reddit
  nasty-data n -n reddit -d pushshift-reddit --move-data`,
	Args: cobra.NoArgs,
	RunE: runNewIndex,
}

var indexDumpCmd = &cobra.Command{
	Use:     "index-dump",
	Aliases: []string{"i"},
	Short:   "Index the documents of a dump file",
	Long: `Upsert every document of a dump file into an index.

Files already indexed into the same index are skipped unless --force is given.

Examples:
  nasty-data index-dump -n reddit -d pushshift-reddit -l pushshift -f RS_2011-01.zst
  nasty-data i -n tweets -d nasty-batch-twitter -l nasty-batch -f batch.data.jsonl.xz --num-workers 4`,
	Args: cobra.NoArgs,
	RunE: runIndexDump,
}

var analyzeIndexCmd = &cobra.Command{
	Use:     "analyze-index",
	Aliases: []string{"a"},
	Short:   "Compare an index mapping with the mapping of its kind",
	Long: `Show fields Elasticsearch mapped dynamically in an index, and fields whose
mapping differs from the one a fresh index of the kind would get.

Examples:
  nasty-data analyze-index --name reddit --kind pushshift-reddit`,
	Args: cobra.NoArgs,
	RunE: runAnalyzeIndex,
}

func init() {
	addIndexFlags(newIndexCmd)
	newIndexCmd.Flags().BoolVar(&indexMoveData, "move-data", false, "Copy documents of the current index into the new one")
	newIndexCmd.Flags().BoolVar(&indexUpdateAlias, "update-alias", true, "Point the alias at the new index")

	addIndexFlags(indexDumpCmd)
	indexDumpCmd.Flags().StringVarP(&dumpLoader, "loader", "l", "", "How the file is read (required)")
	indexDumpCmd.Flags().StringVarP(&dumpFile, "file", "f", "", "Dump file to index (required)")
	indexDumpCmd.Flags().IntVar(&dumpWorkers, "num-workers", 0, "Parallel workers (default index.num_workers, 0 = number of CPUs)")
	indexDumpCmd.Flags().BoolVar(&dumpForce, "force", false, "Index the file even if it was indexed before")
	//nolint:errcheck // flags registered above
	indexDumpCmd.MarkFlagRequired("loader")
	//nolint:errcheck // flags registered above
	indexDumpCmd.MarkFlagRequired("file")
	//nolint:errcheck // flags registered above
	indexDumpCmd.RegisterFlagCompletionFunc("loader", completeLoaders)
	//nolint:errcheck // flags registered above
	indexDumpCmd.RegisterFlagCompletionFunc("file", completeDumpFiles)

	addIndexFlags(analyzeIndexCmd)

	rootCmd.AddCommand(newIndexCmd)
	rootCmd.AddCommand(indexDumpCmd)
	rootCmd.AddCommand(analyzeIndexCmd)
}

// addIndexFlags adds the required --name and --kind flags.
func addIndexFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&indexName, "name", "n", "", "Index or alias name (required)")
	cmd.Flags().StringVarP(&indexKind, "kind", "d", "", "Document kind (required)")
	//nolint:errcheck // flags registered above
	cmd.MarkFlagRequired("name")
	//nolint:errcheck // flags registered above
	cmd.MarkFlagRequired("kind")
	//nolint:errcheck // flags registered above
	cmd.RegisterFlagCompletionFunc("kind", completeKinds)
}

func runNewIndex(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client, release, err := newClient(needElasticsearch)
	if err != nil {
		return err
	}
	defer release()

	name, err := client.NewIndex(ctx, indexName, indexKind, nastydata.NewIndexOptions{
		MoveData:    indexMoveData,
		UpdateAlias: indexUpdateAlias,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), name)
	return nil
}

func runIndexDump(cmd *cobra.Command, _ []string) error {
	return indexDump(cmd, nastydata.IndexDumpOptions{
		Index:  indexName,
		Kind:   indexKind,
		Loader: dumpLoader,
		File:   dumpFile,
		Force:  dumpForce,
	})
}

// indexDump fills in the configured bulk settings and runs IndexDump.
func indexDump(cmd *cobra.Command, opts nastydata.IndexDumpOptions) error {
	ctx, cancel := signalContext()
	defer cancel()

	client, release, err := newClient(needElasticsearch | needState)
	if err != nil {
		return err
	}
	defer release()

	opts.Workers = cfg.Index.NumWorkers
	if dumpWorkers > 0 {
		opts.Workers = dumpWorkers
	}
	opts.FlushBytes = cfg.Index.FlushBytes
	opts.FlushInterval = cfg.Index.FlushInterval

	res, err := client.IndexDump(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Skipped {
		fmt.Fprintf(out, "Skipped %s: already indexed into %s (use --force to index again)\n", opts.File, opts.Index)
		return nil
	}
	fmt.Fprintf(out, "Indexed %s documents from %s into %s\n",
		humanize.Comma(res.Stats.Succeeded), opts.File, opts.Index)
	return nil
}

func runAnalyzeIndex(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client, release, err := newClient(needElasticsearch)
	if err != nil {
		return err
	}
	defer release()

	lines, err := client.AnalyzeIndex(ctx, indexName, indexKind)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(lines) == 0 {
		fmt.Fprintln(out, "No differences.")
		return nil
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}
