package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"rill/internal/bundle"
	"rill/internal/diag"
	"rill/internal/diagfmt"
	"rill/internal/driver"
	"rill/internal/project"
	"rill/internal/source"
	"rill/internal/ui"
)

// bundleSuffix is the extension the lowering stage gives IR bundles.
const bundleSuffix = ".rill.json"

var (
	checkStrict       bool
	checkFormat       string
	checkJobs         int
	checkIterationCap int
	checkMaxDiags     int
	checkNoCache      bool
	checkUI           bool
)

func init() {
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "audit mode: any-edge loan joins and unused-borrow warnings")
	checkCmd.Flags().StringVar(&checkFormat, "format", "", "output format (pretty|json), overrides rill.toml")
	checkCmd.Flags().IntVar(&checkJobs, "jobs", 0, "max concurrent function analyses (0 = all cores)")
	checkCmd.Flags().IntVar(&checkIterationCap, "iteration-cap", 0, "dataflow iteration cap per function, overrides rill.toml")
	checkCmd.Flags().IntVar(&checkMaxDiags, "max-diagnostics", 0, "diagnostics kept per function, overrides rill.toml")
	checkCmd.Flags().BoolVar(&checkNoCache, "no-cache", false, "skip the on-disk verdict cache")
	checkCmd.Flags().BoolVar(&checkUI, "ui", false, "live progress view (interactive terminals only)")
}

var checkCmd = &cobra.Command{
	Use:   "check [bundles or directories]",
	Short: "Analyze IR bundles for borrow and lifetime violations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		paths, err := collectBundles(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no %s bundles found in %s", bundleSuffix, strings.Join(args, ", "))
		}

		manifest, _, _, err := project.Discover(".")
		if err != nil {
			return err
		}
		opts := buildOptions(cmd, manifest)

		var cache *driver.DiskCache
		if !checkNoCache && !manifest.Analysis.NoCache {
			// A broken cache dir downgrades to uncached runs.
			cache, _ = driver.OpenDiskCache("rill")
		}
		opts.Cache = cache

		format := checkFormat
		if format == "" {
			format = manifest.Output.Format
		}

		fset := source.NewFileSet()
		pass := true
		for _, path := range paths {
			ok, err := checkBundle(cmd.Context(), fset, path, format, opts)
			if err != nil {
				return err
			}
			pass = pass && ok
		}
		if !pass {
			return fmt.Errorf("check failed")
		}
		return nil
	},
}

func buildOptions(cmd *cobra.Command, manifest project.Manifest) driver.Options {
	opts := driver.Options{
		Strict:         checkStrict || manifest.Analysis.Strict,
		IterationCap:   manifest.Analysis.IterationCap,
		Jobs:           manifest.Analysis.Jobs,
		MaxDiagnostics: manifest.Analysis.MaxDiagnostics,
	}
	if cmd.Flags().Changed("iteration-cap") {
		opts.IterationCap = checkIterationCap
	}
	if cmd.Flags().Changed("jobs") {
		opts.Jobs = checkJobs
	}
	if cmd.Flags().Changed("max-diagnostics") {
		opts.MaxDiagnostics = checkMaxDiags
	}
	return opts
}

func collectBundles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, bundleSuffix) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func checkBundle(ctx context.Context, fset *source.FileSet, path, format string, opts driver.Options) (bool, error) {
	m, err := bundle.Load(fset, path)
	if err != nil {
		// Undecodable input is an internal-load failure, not a crash.
		bag := diag.NewBag(1)
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.InternalLoadFailed,
			Message:  err.Error(),
		})
		diagfmt.Pretty(os.Stderr, bag, fset, diagfmt.PrettyOpts{Color: colorEnabled(), ShowNotes: true})
		return false, nil
	}

	report, err := runDriver(ctx, m, opts)
	if err != nil {
		return false, err
	}

	switch format {
	case "json":
		if err := diagfmt.WriteReport(os.Stdout, report, fset, diagfmt.JSONOpts{
			IncludePositions: true,
			Indent:           true,
		}); err != nil {
			return false, err
		}
	default:
		merged := report.Merged()
		popts := diagfmt.PrettyOpts{Color: colorEnabled(), ShowNotes: !quietMode(), Context: 1}
		diagfmt.Pretty(os.Stdout, merged, fset, popts)
		errs, warns := 0, 0
		for _, d := range merged.Items() {
			switch d.Severity {
			case diag.SevError:
				errs++
			case diag.SevWarning:
				warns++
			}
		}
		fmt.Fprintf(os.Stdout, "%s: ", report.Module)
		diagfmt.Summary(os.Stdout, errs, warns, popts)
	}
	return report.Pass(), nil
}

func runDriver(ctx context.Context, m *bundle.Module, opts driver.Options) (*driver.ModuleReport, error) {
	if !checkUI || !isTerminal(os.Stdout) {
		return driver.CheckModule(ctx, m, opts)
	}

	events := make(chan driver.Event, 16)
	opts.Events = events

	names := make([]string, 0, len(m.Funcs))
	for _, fn := range m.Funcs {
		names = append(names, fn.Name)
	}

	type outcome struct {
		report *driver.ModuleReport
		err    error
	}
	resc := make(chan outcome, 1)
	go func() {
		report, err := driver.CheckModule(ctx, m, opts)
		close(events)
		resc <- outcome{report, err}
	}()

	prog := tea.NewProgram(ui.NewProgressModel("rill check "+m.Name, names, events))
	if _, err := prog.Run(); err != nil {
		return nil, err
	}
	out := <-resc
	return out.report, out.err
}
