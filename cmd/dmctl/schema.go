package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/schema"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage model definitions",
	Long:  `Check and inspect YAML model definitions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = cmd.Help()
		return fmt.Errorf("command 'schema' requires a subcommand (check)")
	},
}

// schemaCheckCmd represents the schema check command
var schemaCheckCmd = &cobra.Command{
	Use:   "check [PATH]",
	Short: "Validate model definitions",
	Long: `Validate model definitions and print the models they define.

The definitions are compiled into a mapper without connecting to any
repository, so relationships and property types are checked too.

Example:
  dmctl schema check ./schema`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("schema")
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no schema path given")
		}

		s, err := schema.Load(path)
		if err != nil {
			return err
		}
		mapper := datamapper.New()
		if err := s.Apply(mapper); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, m := range mapper.Models() {
			line := m.Name()
			if m.Parent() != nil {
				line += " < " + m.Parent().Name()
			}
			repository := mapper.DefaultRepositoryName()
			fmt.Fprintf(out, "%s (%s)\n", line, m.StorageName(repository))
			fmt.Fprintf(out, "  properties: %s\n", strings.Join(m.Properties(repository).Names(), ", "))
			for _, rel := range m.Relationships(repository) {
				fmt.Fprintf(out, "  %s: %s\n", rel.Name(), rel.Cardinality())
			}
		}
		fmt.Fprintf(out, "%d models OK\n", len(mapper.Models()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaCheckCmd)
}
