package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/nastydata/internal/document"
	"github.com/meigma/nastydata/internal/profiling"
	"github.com/meigma/nastydata/internal/source"
)

// completeKinds suggests registered document kinds for --kind.
func completeKinds(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return withPrefix(document.Names(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeLoaders suggests registered loaders for --loader.
func completeLoaders(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return withPrefix(source.Names(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeDumpTypes suggests Pushshift dump types for --type.
func completeDumpTypes(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return withPrefix([]string{"links", "comments"}, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeProfiles suggests profile kinds for --profile.
func completeProfiles(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	names := make([]string, len(profiling.Kinds))
	for i, k := range profiling.Kinds {
		names[i] = string(k)
	}
	return withPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeDumpFiles restricts --file completion to dump and batch files.
func completeDumpFiles(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{"zst", "xz", "bz2", "gz", "jsonl"}, cobra.ShellCompDirectiveFilterFileExt
}

func withPrefix(names []string, prefix string) []string {
	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

