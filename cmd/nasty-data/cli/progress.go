package cli

import (
	"os"

	"golang.org/x/term"

	"github.com/meigma/nastydata/cmd/nasty-data/cli/config"
)

// shouldShowProgress returns true if progress bars should be displayed.
func shouldShowProgress() bool {
	switch cfg.Progress {
	case config.ProgressPlain:
		return false
	case config.ProgressTTY:
		// TTY mode forces progress regardless of terminal detection
		return true
	default:
		// Auto mode: show progress only if connected to a TTY
		return term.IsTerminal(int(os.Stderr.Fd()))
	}
}
