package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mikey/llm-phish-filter/internal/adapters/filter"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyse a message read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unsupported format %q (text|json|yaml)", format)
			}

			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			out := cmd.OutOrStdout()
			return opts.withRuntime(out, func(rt *runtime) error {
				email, err := filter.ParseEmail(in, rt.textProcessor, rt.logger)
				if err != nil {
					return err
				}

				if format == "text" {
					_, err := rt.cliFilter.ProcessEmail(cmd.Context(), email)
					return err
				}

				result, err := rt.service.AnalyzeEmail(cmd.Context(), email)
				if err != nil {
					return err
				}
				if format == "yaml" {
					enc := yaml.NewEncoder(out)
					enc.SetIndent(2)
					if err := enc.Encode(result); err != nil {
						return err
					}
					return enc.Close()
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text|json|yaml)")
	return cmd
}
