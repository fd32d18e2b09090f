package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mikey/llm-phish-filter/internal/adapters/filter"
)

func newLinksCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "links [file]",
		Short: "List the links of a message and mark the ones to highlight",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
				if len(email.Links) == 0 {
					fmt.Fprintln(out, "No links found")
					return nil
				}

				result, err := rt.service.AnalyzeEmail(cmd.Context(), email)
				if err != nil {
					return err
				}
				flagged := rt.service.FlagLinks(email, result)

				for i, link := range email.Links {
					mark := " "
					if slices.Contains(flagged, i) {
						mark = "!"
					}
					fmt.Fprintf(out, "%s %d %s -> %s\n", mark, i, link.DisplayText, link.Href)
				}
				return nil
			})
		},
	}
}
