package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sort"

	"github.com/spf13/cobra"

	"heic_converter/internal/codec"
	"heic_converter/internal/converter"
	"heic_converter/internal/download"
	"heic_converter/internal/packager"
	"heic_converter/internal/session"
)

// ErrNoInputFiles is returned when the given paths hold no image files to convert.
var ErrNoInputFiles = errors.New("no supported image files found")

var (
	convertTo   string
	convertMode string
	outputDir   string
	groupSize   int
	cpuprofile  string
	memprofile  string
)

var convertCmd = &cobra.Command{
	Use:   "convert [paths...]",
	Short: "Convert image files",
	Long: `Converts the given files, or the image files directly inside the given
directories, to the target format. Directories are not scanned recursively and
their files are processed in name order.

With --to png or --to jpeg only HEIC inputs are converted; with --to heic only
PNG and JPEG inputs are. Other files are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertTo, "to", "t", "", "Target format: png, jpeg or heic")
	convertCmd.Flags().StringVarP(&convertMode, "mode", "m", "", "Delivery mode: individual, zip or pdf")
	convertCmd.Flags().StringVarP(&outputDir, "out", "o", "", "Output directory")
	convertCmd.Flags().IntVar(&groupSize, "group-size", 0, "Number of files converted concurrently")
	convertCmd.Flags().StringVar(&cpuprofile, "cpuprofile", "", "Write cpu profile to `file`")
	convertCmd.Flags().StringVar(&memprofile, "memprofile", "", "Write memory profile to `file`")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	flags := cmd.Flags()
	if flags.Changed("to") {
		cfg.Target = convertTo
	}
	if flags.Changed("mode") {
		cfg.Mode = convertMode
	}
	if flags.Changed("out") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("group-size") {
		cfg.Convert.GroupSize = groupSize
	}

	target, err := codec.ParseFormat(cfg.Target)
	if err != nil {
		return err
	}
	mode, err := packager.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	convCfg := cfg.ConverterConfig()
	for _, field := range convCfg.Sanitize() {
		slog.Warn("Invalid setting, using default", "field", field)
	}

	if cpuprofile != "" {
		stop, err := startCPUProfile(cpuprofile)
		if err != nil {
			return err
		}
		defer stop()
	}

	files, err := collectInputs(args)
	if err != nil {
		return err
	}
	accepted, skipped := converter.FilterInputs(files, target)
	for _, f := range skipped {
		slog.Warn("Skipping file not convertible to target", "filename", f.Name, "target", target)
	}
	if len(skipped) > 0 {
		cmd.PrintErrf("Skipped %d file(s) that cannot be converted to %s\n", len(skipped), target)
	}
	if len(accepted) == 0 {
		return fmt.Errorf("%w for target %s", ErrNoInputFiles, target)
	}

	var failed []converter.Failure
	conv := converter.New(
		converter.NewAdapter(codec.NewNative(), convCfg),
		convCfg,
		converter.WithFailureSink(converter.FailureSinkFunc(func(batchID string, failures []converter.Failure) {
			failed = failures
			for _, f := range failures {
				slog.Warn("File failed to convert", "batch", batchID, "filename", f.Original.Name, "error", f.Err)
			}
		})),
	)
	dir := download.NewDir(cfg.OutputDir)
	sess := session.New(conv, packager.NewDispatcher(dir, cfg.PackagerConfig()), target)
	sess.Add(accepted...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.Printf("Converting %d file(s) to %s...\n", len(accepted), target)
	result, err := sess.Convert(ctx)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	for _, f := range failed {
		cmd.PrintErrf("Failed: %s: %v\n", f.Original.Name, f.Err)
	}

	if err := sess.Deliver(ctx, mode); err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}
	cmd.Printf("Converted %d of %d file(s); saved to %s (%s)\n", len(result), len(accepted), dir.Path(), mode)

	if memprofile != "" {
		if err := writeHeapProfile(memprofile); err != nil {
			return err
		}
	}
	return nil
}

// collectInputs reads every path. Directories contribute the image files they
// directly contain, sorted by name. Explicit file paths are always included.
func collectInputs(paths []string) ([]converter.InputFile, error) {
	var names []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("could not access %s: %w", p, err)
		}
		if !info.IsDir() {
			names = append(names, p)
			continue
		}
		found, err := findImageFiles(p)
		if err != nil {
			return nil, err
		}
		names = append(names, found...)
	}
	if len(names) == 0 {
		return nil, ErrNoInputFiles
	}

	files := make([]converter.InputFile, 0, len(names))
	for i, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", name, err)
		}
		var mimeType string
		if f, ok := codec.FormatFromFilename(name); ok {
			mimeType = f.MIMEType()
		}
		files = append(files, converter.InputFile{
			Name:     filepath.Base(name),
			MIMEType: mimeType,
			Data:     data,
			Index:    i,
		})
	}
	return files, nil
}

// findImageFiles scans a directory for HEIC, PNG and JPEG files and returns their sorted paths.
func findImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not read directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := codec.FormatFromFilename(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	slog.Debug("Scanned directory", "dir", dir, "images", len(paths))
	return paths, nil
}

func startCPUProfile(path string) (stop func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}
	slog.Info("CPU profiling enabled", "output", path)
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	slog.Info("Memory profile written", "output", path)
	return nil
}
