package cmd

import (
	"fmt"
	"os"
	"path"
	"time"

	iso "github.com/bgrewell/iso-forge"
	"github.com/spf13/cobra"
	"github.com/theckman/yacspin"
	"golang.org/x/term"
)

var extractOutput string

var extractCmd = &cobra.Command{
	Use:   "extract <iso> <path-in-iso>",
	Short: "Extract a single file from an image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open ISO: %w", err)
		}
		defer f.Close()

		img, err := iso.Open(f, imageOptions()...)
		if err != nil {
			return fmt.Errorf("failed to parse ISO: %w", err)
		}
		defer img.Close()

		output := extractOutput
		if output == "" {
			output = path.Base(args[1])
		}
		out, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer out.Close()

		spinner := startSpinner(fmt.Sprintf(" extracting %s", args[1]))
		err = img.GetAndWrite(args[1], out, 0)
		stopSpinner(spinner, err)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", args[1], err)
		}

		fmt.Printf("Extracted %s to %s\n", args[1], output)
		return nil
	},
}

// startSpinner runs a spinner when stdout is a terminal; otherwise it
// returns nil and the operation runs silently.
func startSpinner(suffix string) *yacspin.Spinner {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil
	}
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[14],
		Suffix:          suffix,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
		StopFailMessage: "failed",
	})
	if err != nil {
		return nil
	}
	_ = spinner.Start()
	return spinner
}

func stopSpinner(spinner *yacspin.Spinner, err error) {
	if spinner == nil {
		return
	}
	if err != nil {
		_ = spinner.StopFail()
		return
	}
	_ = spinner.Stop()
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "output file (defaults to the basename of the extracted path)")
	rootCmd.AddCommand(extractCmd)
}
