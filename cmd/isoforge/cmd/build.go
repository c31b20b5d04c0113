package cmd

import (
	"fmt"
	"os"

	iso "github.com/bgrewell/iso-forge"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Manifest describes an image to build: the volume identity, the extension
// toggles, and the content to place on it. Paths inside the image follow
// the engine's conventions; source paths are host files.
type Manifest struct {
	VolumeID         string `yaml:"volume_id"`
	SystemID         string `yaml:"system_id"`
	InterchangeLevel int    `yaml:"interchange_level"`
	Joliet           bool   `yaml:"joliet"`
	RockRidge        bool   `yaml:"rock_ridge"`

	Directories []ManifestDirectory `yaml:"directories"`
	Files       []ManifestFile      `yaml:"files"`
	Symlinks    []ManifestSymlink   `yaml:"symlinks"`

	ElTorito *ManifestElTorito `yaml:"eltorito"`
	Hybrid   *ManifestHybrid   `yaml:"hybrid"`
}

type ManifestDirectory struct {
	ISOPath    string `yaml:"iso_path"`
	RRPath     string `yaml:"rr_path"`
	JolietPath string `yaml:"joliet_path"`
}

type ManifestFile struct {
	Source     string `yaml:"source"`
	ISOPath    string `yaml:"iso_path"`
	RRPath     string `yaml:"rr_path"`
	JolietPath string `yaml:"joliet_path"`
}

type ManifestSymlink struct {
	ISOPath string `yaml:"iso_path"`
	RRName  string `yaml:"rr_name"`
	Target  string `yaml:"target"`
}

type ManifestElTorito struct {
	BootFile      string `yaml:"boot_file"`
	Catalog       string `yaml:"catalog"`
	RRCatalog     string `yaml:"rr_catalog"`
	JolietCatalog string `yaml:"joliet_catalog"`
	BootLoadSize  uint16 `yaml:"boot_load_size"`
}

type ManifestHybrid struct {
	Bootstrap string `yaml:"bootstrap"`
	MBRID     uint32 `yaml:"mbr_id"`
	PartType  uint8  `yaml:"part_type"`
}

var buildOutput string

var buildCmd = &cobra.Command{
	Use:   "build <manifest.yaml>",
	Short: "Build a new image from a YAML manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read manifest: %w", err)
		}
		var manifest Manifest
		if err := yaml.Unmarshal(raw, &manifest); err != nil {
			return fmt.Errorf("failed to decode manifest: %w", err)
		}
		if buildOutput == "" {
			return fmt.Errorf("an output path is required (-o)")
		}
		return buildImage(&manifest, buildOutput)
	},
}

func buildImage(manifest *Manifest, output string) error {
	level := manifest.InterchangeLevel
	if level == 0 {
		level = 1
	}

	opts := append(imageOptions(),
		iso.WithInterchangeLevel(level),
		iso.WithVolumeIdentifier(manifest.VolumeID),
		iso.WithSystemIdentifier(manifest.SystemID),
		iso.WithJoliet(manifest.Joliet),
		iso.WithRockRidge(manifest.RockRidge),
	)
	img, err := iso.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	defer img.Close()

	// Sources stay open until the image is mastered; the engine reads them
	// during Write.
	var sources []*os.File
	defer func() {
		for _, f := range sources {
			f.Close()
		}
	}()

	for _, dir := range manifest.Directories {
		if err := img.AddDirectory(dir.ISOPath, dir.RRPath, dir.JolietPath); err != nil {
			return fmt.Errorf("failed to add directory %s: %w", dir.ISOPath, err)
		}
	}

	for _, file := range manifest.Files {
		f, err := os.Open(file.Source)
		if err != nil {
			return fmt.Errorf("failed to open source %s: %w", file.Source, err)
		}
		sources = append(sources, f)
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("failed to stat source %s: %w", file.Source, err)
		}
		if err := img.AddFile(f, info.Size(), file.ISOPath, file.RRPath, file.JolietPath); err != nil {
			return fmt.Errorf("failed to add file %s: %w", file.ISOPath, err)
		}
	}

	for _, link := range manifest.Symlinks {
		if err := img.AddSymlink(link.ISOPath, link.RRName, link.Target); err != nil {
			return fmt.Errorf("failed to add symlink %s: %w", link.ISOPath, err)
		}
	}

	if manifest.ElTorito != nil {
		et := manifest.ElTorito
		if err := img.AddElTorito(et.BootFile, et.Catalog, et.RRCatalog, et.JolietCatalog, et.BootLoadSize); err != nil {
			return fmt.Errorf("failed to add El Torito boot: %w", err)
		}
	}

	if manifest.Hybrid != nil {
		bootstrap, err := os.Open(manifest.Hybrid.Bootstrap)
		if err != nil {
			return fmt.Errorf("failed to open hybrid bootstrap: %w", err)
		}
		sources = append(sources, bootstrap)
		hybridOpts := []iso.HybridOption{iso.WithMBRID(manifest.Hybrid.MBRID)}
		if manifest.Hybrid.PartType != 0 {
			hybridOpts = append(hybridOpts, iso.WithPartType(manifest.Hybrid.PartType))
		}
		if err := img.AddIsoHybrid(bootstrap, hybridOpts...); err != nil {
			return fmt.Errorf("failed to add isohybrid: %w", err)
		}
	}

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()

	spinner := startSpinner(" mastering")
	var lastPercent int64 = -1
	err = img.Write(out, iso.WithProgress(func(done, total int64) {
		if spinner == nil || total == 0 {
			return
		}
		percent := done * 100 / total
		if percent != lastPercent {
			lastPercent = percent
			spinner.Message(fmt.Sprintf("%d%%", percent))
		}
	}))
	stopSpinner(spinner, err)
	if err != nil {
		return fmt.Errorf("failed to master image: %w", err)
	}

	fmt.Printf("Built %s\n", output)
	return nil
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output ISO path")
	rootCmd.AddCommand(buildCmd)
}
