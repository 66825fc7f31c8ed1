package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vasilvv/decor/internal/label"
	"github.com/vasilvv/decor/internal/specialize"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Threshold int
}

// CheckReport is the per-function analysis output.
type CheckReport struct {
	Functions []CheckFunction `json:"functions"`

	// Program collects program-level findings: explosion warnings and
	// diagnostics surfaced from derived specializations.
	Program []string `json:"program,omitempty"`
}

// CheckFunction is one function's settled analysis summary.
type CheckFunction struct {
	Name        string   `json:"name"`
	Params      []string `json:"params"`
	Results     []string `json:"results"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <program-dir>",
		Short: "Analyze sensitivity labels without lowering",
		Long: `Run label analysis and declassification checking over every function in
a directory of CUE documents, reporting settled parameter and result
labels plus any diagnostics, without producing lowered graphs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") || opts.Threshold == 0 {
				opts.Threshold = opts.Config.SpecializationWarnThreshold
			}
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Threshold, "threshold", 0, "specialization warning threshold (0 uses the config value)")

	return cmd
}

func runCheck(opts *CheckOptions, dir string, cmd *cobra.Command) error {
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
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, loadErrors)
	}

	names := make([]string, 0, len(loadResult.Funcs))
	for name := range loadResult.Funcs {
		names = append(names, name)
	}
	sort.Strings(names)

	cache := specialize.NewCache(opts.Threshold)
	resolver := specialize.NewResolver(loadResult.Funcs, cache, passLogger(formatter))

	report := &CheckReport{}
	anyFatal := false
	for _, name := range names {
		fn := loadResult.Funcs[name]
		params := label.DeclaredParams(fn.Sig)

		res := label.Analyze(fn, label.Options{
			Params:                 params,
			Oracle:                 resolver,
			EnforceDeclaredResults: fn.Sig.Controlled,
		})
		diags := append(res.Diags, label.CheckExports(fn, res.Table)...)
		if label.AnyFatal(diags) {
			anyFatal = true
		}

		cf := CheckFunction{Name: name}
		for i, p := range fn.Sig.Params {
			cf.Params = append(cf.Params, fmt.Sprintf("%s:%s", p.Name, params[i]))
		}
		for i, r := range fn.Sig.Results {
			cf.Results = append(cf.Results, fmt.Sprintf("%s:%s", r.Name, res.Results[i].Label))
		}
		for _, d := range diags {
			cf.Diagnostics = append(cf.Diagnostics, d.Error())
		}
		report.Functions = append(report.Functions, cf)
	}

	programDiags := append(cache.Warnings(), resolver.Diags()...)
	if label.AnyFatal(programDiags) {
		anyFatal = true
	}
	for _, d := range programDiags {
		report.Program = append(report.Program, d.Error())
	}

	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		printCheckText(formatter, report)
	}

	if anyFatal {
		return NewExitError(ExitDiagnostics, "analysis rejected the program")
	}
	return nil
}

func printCheckText(formatter *OutputFormatter, report *CheckReport) {
	w := formatter.Writer
	for _, cf := range report.Functions {
		fmt.Fprintf(w, "%s(%s) -> (%s)\n",
			cf.Name, strings.Join(cf.Params, ", "), strings.Join(cf.Results, ", "))
		for _, d := range cf.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
	for _, d := range report.Program {
		fmt.Fprintf(w, "%s\n", d)
	}
}
