package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"pythia/internal/diag"
	"pythia/internal/diagfmt"
	"pythia/internal/driver"
	"pythia/internal/observ"
	"pythia/internal/project"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [file.py|directory]",
	Short: "Type-check a Python file or project",
	Long: `Check runs import resolution and type inference over a single file or a
whole project. The project configuration is read from the nearest pythia.toml;
without a manifest the target directory becomes the only source root.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json|short)")
	checkCmd.Flags().Bool("disk-cache", false, "reuse analysis results across runs")
	checkCmd.Flags().Int("jobs", 0, "max parallel workers (0=manifest setting)")
	checkCmd.Flags().Bool("no-progress", false, "disable the interactive progress view")
}

var (
	summaryPassStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	summaryFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	summaryDimStyle  = lipgloss.NewStyle().Faint(true)
)

func runCheck(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	target, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("failed to resolve target path: %w", err)
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	switch format {
	case "pretty", "json", "short":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	diskCache, err := cmd.Flags().GetBool("disk-cache")
	if err != nil {
		return fmt.Errorf("failed to get disk-cache flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	noProgress, err := cmd.Flags().GetBool("no-progress")
	if err != nil {
		return fmt.Errorf("failed to get no-progress flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	useColor := colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout))

	st, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	// Конфигурацию ищем от каталога цели вверх по дереву
	startDir := target
	if !st.IsDir() {
		startDir = filepath.Dir(target)
	}
	cfg, _, err := project.LoadFromDir(startDir)
	if err != nil {
		return err
	}
	if cmd.Root().PersistentFlags().Changed("max-diagnostics") {
		maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
		if err != nil {
			return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
		}
		cfg.MaxDiagnostics = maxDiagnostics
	}
	if jobs > 0 {
		cfg.Jobs = jobs
	}

	var opts []driver.Option
	if diskCache {
		cache, cacheErr := driver.OpenDiskCache("pythia")
		if cacheErr != nil {
			fmt.Fprintf(os.Stderr, "disk cache unavailable: %v\n", cacheErr)
		} else {
			opts = append(opts, driver.WithDiskCache(cache))
		}
	}

	cleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	timer := observ.NewTimer()

	var (
		result *driver.ProjectResult
		a      *driver.Analyzer
	)
	if st.IsDir() {
		interactive := format == "pretty" && !noProgress && !quiet && isTerminal(os.Stdout)
		phase := timer.Begin("check-project")
		if interactive {
			result, a, err = runCheckWithUI(cmd.Context(), cfg, opts, "checking "+target)
		} else {
			a = driver.New(cfg, opts...)
			result, err = a.CheckProject(cmd.Context())
		}
		phase.Done(fmt.Sprintf("%d files", len(resultFiles(result))))
		if err != nil {
			return fmt.Errorf("check failed: %w", err)
		}
	} else {
		a = driver.New(cfg, opts...)
		phase := timer.Begin("check-file")
		res, diagErr := a.Diagnose(cmd.Context(), target)
		phase.Done(target)
		if diagErr != nil {
			return fmt.Errorf("check failed: %w", diagErr)
		}
		result = &driver.ProjectResult{Files: []driver.FileResult{res}}
	}

	phase := timer.Begin("render")
	renderErr := renderResults(os.Stdout, a, result, format, useColor, quiet)
	phase.Done("")
	if renderErr != nil {
		return renderErr
	}

	if showTimings && !quiet {
		fmt.Fprint(os.Stderr, timer.Summary())
	}

	if !result.Pass() {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fmt.Errorf("") // диагностика уже напечатана
	}
	return nil
}

func resultFiles(result *driver.ProjectResult) []driver.FileResult {
	if result == nil {
		return nil
	}
	return result.Files
}

func renderResults(out *os.File, a *driver.Analyzer, result *driver.ProjectResult, format string, useColor, quiet bool) error {
	allDiags := append([]diag.Diagnostic(nil), result.ProjectDiags...)
	for _, f := range result.Files {
		allDiags = append(allDiags, f.Diags...)
	}

	switch format {
	case "json":
		return diagfmt.WriteJSON(out, allDiags, a.FileSet())
	case "short":
		bag := diag.NewBag(len(allDiags) + 1)
		for _, d := range allDiags {
			bag.Add(d)
		}
		if text := diag.FormatLines(bag, a.FileSet()); text != "" {
			fmt.Fprintln(out, text)
		}
	case "pretty":
		pretty := diagfmt.Pretty{FS: a.FileSet(), Color: useColor}
		if len(allDiags) > 0 {
			pretty.RenderAll(out, allDiags)
			fmt.Fprintln(out)
		}
		if !quiet {
			fmt.Fprintln(out, checkSummary(result, useColor))
		}
	}
	return nil
}

func checkSummary(result *driver.ProjectResult, useColor bool) string {
	files := len(result.Files)
	failed := 0
	cached := 0
	for _, f := range result.Files {
		if !f.Pass {
			failed++
		}
		if f.FromCache {
			cached++
		}
	}

	var verdict string
	if result.Pass() {
		verdict = fmt.Sprintf("ok: %d files checked", files)
		if useColor {
			verdict = summaryPassStyle.Render(verdict)
		}
	} else {
		verdict = fmt.Sprintf("failed: errors in %d of %d files", failed, files)
		if useColor {
			verdict = summaryFailStyle.Render(verdict)
		}
	}
	if cached > 0 {
		note := fmt.Sprintf(" (%d from cache)", cached)
		if useColor {
			note = summaryDimStyle.Render(note)
		}
		verdict += note
	}
	return verdict
}
