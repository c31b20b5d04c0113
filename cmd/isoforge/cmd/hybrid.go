package cmd

import (
	"fmt"
	"os"

	iso "github.com/bgrewell/iso-forge"
	"github.com/spf13/cobra"
)

var (
	hybridBootstrap string
	hybridOutput    string
	hybridMBRID     uint32
)

var hybridCmd = &cobra.Command{
	Use:   "hybrid <iso>",
	Short: "Wrap an El Torito bootable image in an isohybrid MBR",
	Long:  "hybrid opens an existing El Torito image, prepends an isohybrid MBR built from an isolinux isohdpfx bootstrap blob, and masters the result so the same bytes boot from block devices.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if hybridBootstrap == "" {
			return fmt.Errorf("a bootstrap blob is required (--bootstrap)")
		}
		if hybridOutput == "" {
			return fmt.Errorf("an output path is required (-o)")
		}

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

		bootstrap, err := os.Open(hybridBootstrap)
		if err != nil {
			return fmt.Errorf("failed to open bootstrap: %w", err)
		}
		defer bootstrap.Close()

		if err := img.AddIsoHybrid(bootstrap, iso.WithMBRID(hybridMBRID)); err != nil {
			return fmt.Errorf("failed to add isohybrid: %w", err)
		}

		out, err := os.Create(hybridOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer out.Close()

		spinner := startSpinner(" mastering")
		err = img.Write(out)
		stopSpinner(spinner, err)
		if err != nil {
			return fmt.Errorf("failed to master image: %w", err)
		}

		fmt.Printf("Wrote hybrid image to %s\n", hybridOutput)
		return nil
	},
}

func init() {
	hybridCmd.Flags().StringVar(&hybridBootstrap, "bootstrap", "", "path to the 432-byte isohdpfx bootstrap blob")
	hybridCmd.Flags().StringVarP(&hybridOutput, "output", "o", "", "output ISO path")
	hybridCmd.Flags().Uint32Var(&hybridMBRID, "mbr-id", 0, "MBR id (random when omitted)")
	rootCmd.AddCommand(hybridCmd)
}
