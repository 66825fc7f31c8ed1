package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vasilvv/decor/internal/obliv"
)

// NetworkReport is the JSON form of a comparator network.
type NetworkReport struct {
	Size        int      `json:"size"`
	Comparators [][2]int `json:"comparators"`
}

// NewNetworkCommand creates the network command.
func NewNetworkCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network <n>",
		Short: "Print the comparator network for n elements",
		Long: `Build and print the merge-exchange comparator network a lowered sort of
n elements executes. The comparator sequence depends only on n, never on
data, and is identical on every invocation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNetwork(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runNetwork(opts *RootOptions, arg string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("network size must be a positive integer, got %q", arg))
	}

	nw := obliv.BuildNetwork(n)

	if formatter.Format == "json" {
		report := NetworkReport{Size: nw.Size, Comparators: make([][2]int, len(nw.Comparators))}
		for i, c := range nw.Comparators {
			report.Comparators[i] = [2]int{c.I, c.J}
		}
		return formatter.Success(report)
	}

	fmt.Fprint(formatter.Writer, nw.String())
	return nil
}
