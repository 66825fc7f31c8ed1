package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vasilvv/decor/internal/artifact"
	"github.com/vasilvv/decor/internal/frontend"
	"github.com/vasilvv/decor/internal/pipeline"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output    string // lowered-graph dump file
	CachePath string // artifact database; empty disables caching
	Threshold int    // specialization warning threshold
}

// FunctionReport is the per-function half of the compile output.
type FunctionReport struct {
	Name          string   `json:"name"`
	Values        int      `json:"values"`
	LoweredValues int      `json:"lowered_values,omitempty"`
	Rejected      bool     `json:"rejected,omitempty"`
	Diagnostics   []string `json:"diagnostics,omitempty"`
}

// CompileReport is the full compile output.
type CompileReport struct {
	Functions       []FunctionReport `json:"functions"`
	ArtifactsStored int              `json:"artifacts_stored,omitempty"`
	ArtifactsReused int              `json:"artifacts_reused,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <program-dir>",
		Short: "Compile CUE function graphs to oblivious form",
		Long: `Compile every function declared in a directory of CUE documents: run
label analysis, validate declassifications, specialize callees per label
tuple, and lower data-dependent control flow into select networks.

With --cache, lowered graphs are persisted into a sqlite artifact store
keyed by content hash, and unchanged functions are reported as reused.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyCompileConfig(opts, cmd)
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write lowered-graph dumps to a file")
	cmd.Flags().StringVar(&opts.CachePath, "cache", "", "artifact database path")
	cmd.Flags().IntVar(&opts.Threshold, "threshold", 0, "specialization warning threshold (0 uses the config value)")

	return cmd
}

// applyCompileConfig fills unset flags from the loaded config file.
func applyCompileConfig(opts *CompileOptions, cmd *cobra.Command) {
	if !cmd.Flags().Changed("cache") {
		opts.CachePath = opts.Config.Cache
	}
	if !cmd.Flags().Changed("threshold") || opts.Threshold == 0 {
		opts.Threshold = opts.Config.SpecializationWarnThreshold
	}
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadPrograms(dir)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCommandError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputCommandError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, loadErrors)
	}

	outcome, err := pipeline.Compile(
		&pipeline.Program{Funcs: loadResult.Funcs},
		pipeline.Options{SpecializationThreshold: opts.Threshold, Logger: passLogger(formatter)},
	)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	report := buildReport(outcome)

	if opts.CachePath != "" {
		stored, reused, err := persistArtifacts(cmd, opts.CachePath, outcome)
		if err != nil {
			return outputCommandError(formatter, ErrCodeGeneric, err.Error())
		}
		report.ArtifactsStored = stored
		report.ArtifactsReused = reused
	}

	if opts.Output != "" {
		if err := writeDumps(outcome, opts.Output); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, err.Error())
		}
	}

	return outputCompileReport(formatter, report, outcome)
}

// passLogger routes pipeline milestones to stderr in verbose mode and
// discards them otherwise.
func passLogger(formatter *OutputFormatter) *slog.Logger {
	if formatter.Verbose {
		return slog.New(slog.NewTextHandler(formatter.GetErrWriter(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildReport(outcome *pipeline.Outcome) *CompileReport {
	report := &CompileReport{}
	for _, name := range outcome.Order {
		res := outcome.Results[name]
		fr := FunctionReport{Name: name, Values: res.Func.NumValues()}
		for _, d := range res.Diags {
			fr.Diagnostics = append(fr.Diagnostics, d.Error())
		}
		if res.Lowered != nil {
			fr.LoweredValues = res.Lowered.NumValues()
		} else {
			fr.Rejected = true
		}
		report.Functions = append(report.Functions, fr)
	}
	return report
}

// persistArtifacts writes every lowered function into the artifact store
// under a fresh run ID. A function whose stored artifact already matches
// the freshly derived ID is reported as reused and not rewritten; a source
// that lowers differently (compiler or IR change) gets a new row.
func persistArtifacts(cmd *cobra.Command, path string, outcome *pipeline.Outcome) (stored, reused int, err error) {
	store, err := artifact.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening artifact store: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	runID := artifact.UUIDRunIDs{}.Generate()
	if err := store.RecordRun(ctx, runID); err != nil {
		return 0, 0, fmt.Errorf("recording run: %w", err)
	}

	for _, name := range outcome.Order {
		res := outcome.Results[name]
		if res.Lowered == nil {
			continue
		}
		art, err := artifact.New(res.Func, res.Lowered, res.Params, runID)
		if err != nil {
			return stored, reused, fmt.Errorf("building artifact for %s: %w", name, err)
		}
		prev, ok, err := store.Get(ctx, art.SourceID, art.Labels)
		if err != nil {
			return stored, reused, fmt.Errorf("reading artifact for %s: %w", name, err)
		}
		if ok && prev.ID == art.ID {
			reused++
			continue
		}
		if _, err := store.Put(ctx, art); err != nil {
			return stored, reused, fmt.Errorf("storing artifact for %s: %w", name, err)
		}
		stored++
	}
	return stored, reused, nil
}

// writeDumps writes the lowered graphs of the run as readable dumps.
func writeDumps(outcome *pipeline.Outcome, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dump file: %w", err)
	}
	defer f.Close()

	for _, name := range outcome.Order {
		res := outcome.Results[name]
		if res.Lowered == nil {
			continue
		}
		if _, err := fmt.Fprintln(f, res.Lowered.Dump()); err != nil {
			return fmt.Errorf("writing dump file: %w", err)
		}
	}
	return nil
}

func outputCompileReport(formatter *OutputFormatter, report *CompileReport, outcome *pipeline.Outcome) error {
	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		printCompileText(formatter, report, outcome)
	}

	if outcome.Fatal() {
		return NewExitError(ExitDiagnostics, "compilation rejected the program")
	}
	return nil
}

func printCompileText(formatter *OutputFormatter, report *CompileReport, outcome *pipeline.Outcome) {
	w := formatter.Writer
	rejected := 0
	for _, fr := range report.Functions {
		if fr.Rejected {
			rejected++
		}
	}

	if rejected == 0 {
		fmt.Fprintf(w, "✓ Compiled %d function(s)\n\n", len(report.Functions))
	} else {
		fmt.Fprintf(w, "✗ Rejected %d of %d function(s)\n\n", rejected, len(report.Functions))
	}

	for _, fr := range report.Functions {
		if fr.Rejected {
			fmt.Fprintf(w, "  %s: rejected\n", fr.Name)
		} else {
			fmt.Fprintf(w, "  %s: %d values → %d lowered\n", fr.Name, fr.Values, fr.LoweredValues)
		}
	}

	if diags := outcome.AllDiags(); len(diags) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Diagnostics:")
		for _, d := range diags {
			fmt.Fprintf(w, "  %s: %s\n", d.Severity, d.Error())
		}
	}

	if report.ArtifactsStored > 0 || report.ArtifactsReused > 0 {
		fmt.Fprintf(w, "\nArtifacts: %d stored, %d reused\n", report.ArtifactsStored, report.ArtifactsReused)
	}
}

// outputCommandError reports an infrastructure failure (exit code 2).
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputLoadErrors reports every function-shape error the loader collected.
func outputLoadErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		respErrors := make([]RespError, len(errs))
		for i, err := range errs {
			code, message := parseLoadError(err)
			respErrors[i] = RespError{Code: code, Message: message}
		}
		response := Response{
			Status: "error",
			Error:  &respErrors[0],
			Data:   respErrors,
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("loading failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Loading failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		var compileErr *frontend.CompileError
		if errors.As(err, &compileErr) && compileErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				compileErr.Pos.Filename(), compileErr.Pos.Line(), compileErr.Pos.Column())
		}
		code, message := parseLoadError(err)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("loading failed with %d error(s)", len(errs)))
}

// parseLoadError extracts an error code and message.
func parseLoadError(err error) (string, string) {
	var compileErr *frontend.CompileError
	if errors.As(err, &compileErr) {
		return compileErr.Code, fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message)
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
