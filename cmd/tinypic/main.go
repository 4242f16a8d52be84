package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iRajatDas/tinypicresizer/pkg/codec"
	"github.com/iRajatDas/tinypicresizer/pkg/sizefit"
)

var (
	flagTargetKB    int
	flagFormat      string
	flagOutDir      string
	flagConcurrency int
	flagQuiet       bool
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "tinypic FILE...",
	Short: "Shrink images to fit a hard size bound",
	Long: `tinypic re-encodes images so each output fits under a target size
in kilobytes, searching quality and dimensions for the best result
that still honors the bound.

Inputs may be JPEG, PNG, WebP or HEIF. Output format defaults to JPEG.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := codec.ParseFormat(flagFormat)
		if err != nil {
			return fmt.Errorf("unsupported output format %q", flagFormat)
		}
		if flagTargetKB <= 0 {
			return fmt.Errorf("target size must be a positive number of KB")
		}
		if flagOutDir != "" {
			if err := os.MkdirAll(flagOutDir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(flagConcurrency)

		for _, path := range args {
			path := path
			g.Go(func() error {
				return shrinkFile(ctx, path, format)
			})
		}
		return g.Wait()
	},
}

func shrinkFile(ctx context.Context, path string, format codec.Format) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	// Decode validates size limits and pixel bounds before handing back a
	// surface.
	img, err := codec.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	bounds := img.Bounds()
	renderer := codec.NewRenderer(img, format)
	defer renderer.Close()

	session, err := sizefit.NewSession(renderer, sizefit.Request{
		TargetKB: flagTargetKB,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	progress := func(percent int) {}
	if flagVerbose {
		progress = func(percent int) {
			log.Printf("%s: %d%%", path, percent)
		}
	}

	res, err := sizefit.FitWithProgress(ctx, session, progress)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	outPath := outputPath(path, format)
	if err := os.WriteFile(outPath, res.Data, 0o644); err != nil {
		return fmt.Errorf("%s: %w", outPath, err)
	}

	if !flagQuiet {
		note := ""
		if res.BestEffort {
			note = " (best effort, over target)"
		}
		fmt.Printf("%s -> %s: %s -> %s, %dx%d, quality %.2f%s\n",
			path, outPath,
			humanize.Bytes(uint64(len(data))),
			humanize.Bytes(uint64(len(res.Data))),
			res.Width, res.Height, res.Quality, note,
		)
	}
	return nil
}

// outputPath derives the destination file name, avoiding clobbering the
// input when format and directory both match.
func outputPath(inPath string, format codec.Format) string {
	base := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	dir := flagOutDir
	if dir == "" {
		dir = filepath.Dir(inPath)
	}
	out := filepath.Join(dir, base+format.Ext())
	if out == inPath {
		out = filepath.Join(dir, base+".tiny"+format.Ext())
	}
	return out
}

func init() {
	rootCmd.Flags().IntVarP(&flagTargetKB, "target-kb", "t", 200, "Target output size in KB")
	rootCmd.Flags().StringVarP(&flagFormat, "format", "f", "jpeg", "Output format (jpeg, png, webp)")
	rootCmd.Flags().StringVarP(&flagOutDir, "out-dir", "o", "", "Output directory (default: alongside input)")
	rootCmd.Flags().IntVarP(&flagConcurrency, "concurrency", "c", 4, "Files processed in parallel")
	rootCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress per-file output")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log search progress per file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
