package main

import (
	"fmt"
	"os"
	"strings"

	iso "github.com/bgrewell/iso-forge"
	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/logging"
	"github.com/bgrewell/iso-forge/pkg/version"
	"github.com/bgrewell/usage"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// DisplayISOInfo prints general information about the ISO file.
func DisplayISOInfo(img *iso.Image, verbose bool) {
	pvd := img.PrimaryVolumeDescriptor()

	fileCount, dirCount, symlinkCount := 0, 0, 0
	totalSize := uint64(0)

	var walk func(rec *directory.Record)
	walk = func(rec *directory.Record) {
		for _, child := range rec.Children {
			if child.IsDot() || child.IsDotDot() {
				continue
			}
			if child.IsDir {
				dirCount++
				walk(child)
				continue
			}
			fileCount++
			totalSize += uint64(child.FileLength())
			if child.RockRidge != nil && child.RockRidge.IsSymlink() {
				symlinkCount++
			}
		}
	}
	walk(pvd.RootDirectoryRecord())

	heading := color.New(color.FgCyan, color.Bold).FprintlnFunc()
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}

	heading(os.Stdout, "=== ISO Information ===")
	if v := strings.TrimRight(pvd.VolumeIdentifier, " "); v != "" {
		fmt.Printf("Volume Name: %s\n", v)
	}
	if s := strings.TrimRight(pvd.SystemIdentifier, " "); s != "" {
		fmt.Printf("System Identifier: %s\n", s)
	}
	fmt.Printf("Volume Size: %d sectors\n", pvd.SpaceSize)
	fmt.Printf("Interchange Level: %d\n", img.InterchangeLevel())
	fmt.Printf("Total Files: %d\n", fileCount)
	fmt.Printf("Total Directories: %d\n", dirCount)
	fmt.Printf("Total Size: %d bytes (%.2f MB)\n", totalSize, float64(totalSize)/1024/1024)

	if img.HasRockRidge() {
		heading(os.Stdout, "\n--- Rock Ridge Extensions ---")
		fmt.Println("Rock Ridge Enabled: YES")
		fmt.Printf("Symbolic Links: %d\n", symlinkCount)
	} else {
		fmt.Println("\nRock Ridge Extensions: NOT PRESENT")
	}

	if img.JolietVolumeDescriptor() != nil {
		fmt.Println("Joliet: YES")
	}
	if img.HasElTorito() {
		heading(os.Stdout, "\n--- El Torito Boot Extensions ---")
		fmt.Println("El Torito Boot Support: YES")
	}
	if img.HasIsoHybrid() {
		fmt.Println("Isohybrid MBR: YES")
	}

	if verbose {
		heading(os.Stdout, "\n=== Verbose Information ===")
		fmt.Printf("Volume Set Size: %d\n", pvd.SetSize)
		fmt.Printf("Volume Sequence Number: %d\n", pvd.SeqNum)
		fmt.Printf("Logical Block Size: %d bytes\n", pvd.LogBlockSize)
		fmt.Printf("Path Table Size: %d bytes\n", pvd.PathTblSize)
		fmt.Println()
		img.PrintTree(os.Stdout)
	}
}

func main() {
	u := usage.NewUsage(
		usage.WithApplicationVersion(version.Version()),
		usage.WithApplicationBranch(version.Branch()),
		usage.WithApplicationBuildDate(version.Date()),
		usage.WithApplicationCommitHash(version.Revision()),
		usage.WithApplicationName("isoinfo"),
		usage.WithApplicationDescription("isoinfo is a command-line tool for inspecting ISO9660 images, including Rock Ridge, Joliet, El Torito and isohybrid extensions. It prints volume information, counts files and directories, and identifies bootable images."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print verbose output including the directory tree", "", nil)
	debug := u.AddBooleanOption("d", "debug", false, "Enable debug logging", "", nil)
	path := u.AddArgument(1, "iso-path", "Path to the ISO image to inspect", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if path == nil || *path == "" {
		u.PrintError(fmt.Errorf("the path to the iso file must be provided"))
		os.Exit(1)
	}

	f, err := os.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ISO: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	opts := []iso.Option{}
	if *debug {
		opts = append(opts, iso.WithLogger(logging.NewSimpleLogger(os.Stderr, logging.LEVEL_DEBUG, true)))
	}

	img, err := iso.Open(f, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse ISO: %v\n", err)
		os.Exit(1)
	}
	defer img.Close()

	DisplayISOInfo(img, *verbose)
}
