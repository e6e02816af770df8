package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"normalizer/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect schema files",
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate <schema.json>",
	Short: "Check a schema file for structural errors and warnings",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaValidate,
}

func init() {
	schemaCmd.AddCommand(schemaValidateCmd)
}

func runSchemaValidate(cmd *cobra.Command, args []string) error {
	s, err := schema.Load(args[0])
	if err != nil {
		return err
	}
	issues := schema.Validate(s)
	w := cmd.OutOrStdout()
	for _, iss := range issues {
		fmt.Fprintln(w, iss)
	}
	if errs := schema.Errors(issues); len(errs) > 0 {
		return fmt.Errorf("%s: %d error(s)", args[0], len(errs))
	}
	fmt.Fprintf(w, "%s: valid (%d tables, %d references)\n", args[0], len(s.Names()), len(s.References()))
	return nil
}
