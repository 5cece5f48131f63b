package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nadzzz/cozmoagent/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the robot action catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				data, err := catalog.MarshalYAML()
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.Schemas())
			case "tools":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.FunctionSchemas())
			case "text":
				_, err := fmt.Fprint(out, catalog.Describe())
				return err
			default:
				return fmt.Errorf("unknown format %q (yaml, json, tools, text)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml, json, tools (OpenAI function schemas) or text")
	return cmd
}
