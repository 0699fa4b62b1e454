package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get MODEL KEY...",
	Short: "Print one resource by key",
	Long: `Print one resource by key as JSON.

Composite keys take one argument per key property, in definition order.

Example:
  dmctl get Book 1
  dmctl get Edition "Dune" 1965 --repository archive`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		repository, _ := cmd.Flags().GetString("repository")
		model, err := env.mapper.MustModel(args[0])
		if err != nil {
			return err
		}
		key := make([]any, len(args)-1)
		for i, v := range args[1:] {
			key[i] = v
		}

		return env.mapper.Within(cmd.Context(), repository, func(ctx context.Context) error {
			res, err := model.GetOrFail(ctx, key...)
			if err != nil {
				return err
			}
			return printResources(cmd.OutOrStdout(), res)
		})
	},
}

// allCmd represents the all command
var allCmd = &cobra.Command{
	Use:   "all MODEL",
	Short: "Print the resources of a model",
	Long: `Print the resources of a model as JSON, one per line.

Example:
  dmctl all Book --limit 10
  dmctl all Book --where author_id=1 --order "pages desc"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		repository, _ := cmd.Flags().GetString("repository")
		model, err := env.mapper.MustModel(args[0])
		if err != nil {
			return err
		}
		opts, err := findOptions(cmd)
		if err != nil {
			return err
		}

		return env.mapper.Within(cmd.Context(), repository, func(ctx context.Context) error {
			resources, err := model.All(ctx, opts)
			if err != nil {
				return err
			}
			return printResources(cmd.OutOrStdout(), resources...)
		})
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(allCmd)

	for _, cmd := range []*cobra.Command{getCmd, allCmd} {
		cmd.Flags().StringP("repository", "r", "", "repository name (default from configuration)")
	}
	allCmd.Flags().IntP("limit", "l", 0, "maximum number of resources")
	allCmd.Flags().Int("offset", 0, "number of resources to skip")
	allCmd.Flags().StringSlice("order", nil, `order entries, e.g. "title" or "pages desc"`)
	allCmd.Flags().StringArrayP("where", "w", nil, "equality condition NAME=VALUE (repeatable)")
}

func findOptions(cmd *cobra.Command) (datamapper.Options, error) {
	opts := datamapper.Options{Conditions: map[string]any{}}
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	opts.Offset, _ = cmd.Flags().GetInt("offset")
	opts.Order, _ = cmd.Flags().GetStringSlice("order")

	where, _ := cmd.Flags().GetStringArray("where")
	for _, w := range where {
		name, value, ok := strings.Cut(w, "=")
		if !ok || name == "" {
			return opts, fmt.Errorf("invalid condition %q, expected NAME=VALUE", w)
		}
		opts.Conditions[name] = value
	}
	return opts, nil
}

func printResources(w io.Writer, resources ...*datamapper.Resource) error {
	enc := json.NewEncoder(w)
	for _, res := range resources {
		if err := enc.Encode(res.LoadedAttributes()); err != nil {
			return err
		}
	}
	return nil
}
