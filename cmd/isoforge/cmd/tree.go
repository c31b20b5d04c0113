package cmd

import (
	"fmt"
	"os"

	iso "github.com/bgrewell/iso-forge"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree <iso>",
	Short: "Print the directory tree of an image",
	Args:  cobra.ExactArgs(1),
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

		img.PrintTree(os.Stdout)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
