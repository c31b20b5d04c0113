package cmd

import (
	"os"

	iso "github.com/bgrewell/iso-forge"
	"github.com/bgrewell/iso-forge/pkg/logging"
	"github.com/bgrewell/iso-forge/pkg/version"
	"github.com/spf13/cobra"
)

var (
	flagVerbose bool
	flagTrace   bool
)

var rootCmd = &cobra.Command{
	Use:     "isoforge",
	Short:   "Create, inspect and modify ISO9660 images",
	Long:    "isoforge reads, mutates and masters ISO9660 images with Joliet, Rock Ridge, El Torito and isohybrid support.",
	Version: version.Version(),
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagTrace, "trace", false, "enable trace logging")
}

// imageOptions builds the engine options implied by the global flags.
func imageOptions() []iso.Option {
	level := -1
	if flagTrace {
		level = logging.LEVEL_TRACE
	} else if flagVerbose {
		level = logging.LEVEL_DEBUG
	}
	if level < 0 {
		return nil
	}
	return []iso.Option{iso.WithLogger(logging.NewSimpleLogger(os.Stderr, level, true))}
}
