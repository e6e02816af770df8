package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"normalizer/internal/dataset"
	"normalizer/internal/transform"
)

var (
	transformOutput string
	listRules       bool
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Apply cleaning pipelines to the input and write the result as CSV",
	RunE:  runTransform,
}

func init() {
	f := transformCmd.Flags()
	f.StringVar(&pipelinesPath, "pipelines", "", "pipelines file ({\"pipelines\": [...]})")
	f.StringVar(&pipelineName, "pipeline", "", "pipeline to run (default: all, in order)")
	f.StringVarP(&transformOutput, "output", "o", "", "output CSV file (default: stdout)")
	f.BoolVar(&listRules, "list-rules", false, "print the available rule types and exit")
}

func runTransform(cmd *cobra.Command, args []string) error {
	if listRules {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(transform.RuleTypes(), "\n"))
		return nil
	}
	if pipelinesPath == "" {
		return fmt.Errorf("--pipelines is required")
	}
	ds, err := readInput(cmd.Context(), currentInput())
	if err != nil {
		return err
	}
	out, err := applyPipelines(ds, pipelinesPath, pipelineName)
	if err != nil {
		return err
	}

	if transformOutput == "" {
		return dataset.WriteCSV(cmd.OutOrStdout(), out, 0)
	}
	f, err := os.Create(transformOutput)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(f, out, 0); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
