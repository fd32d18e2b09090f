// Package cli implements the phish-check command line tool.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/filter"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/di"
	"github.com/mikey/llm-phish-filter/internal/utils"
)

type rootOptions struct {
	configFile     string
	provider       string
	threshold      int
	trustedDomains []string
	verbose        bool
	jsonLog        bool
}

// NewRootCmd builds the phish-check command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "phish-check",
		Short:         "Score email messages for phishing",
		Long:          "Parses RFC 5322 messages and scores them with the phishing heuristics,\noptionally combined with a remote language model.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to config file")
	flags.StringVar(&opts.provider, "provider", "", "Remote model provider (none, bedrock, gemini, openai)")
	flags.IntVar(&opts.threshold, "threshold", 0, "Phishing threshold on the 0-100 scale (config value when 0)")
	flags.StringSliceVar(&opts.trustedDomains, "trusted", nil, "Trusted sender domains")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&opts.jsonLog, "json-log", false, "Output logs in JSON format")

	rootCmd.AddCommand(newAnalyzeCmd(opts), newLinksCmd(opts))
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runtime is what a subcommand needs to analyse a message
type runtime struct {
	service       *core.PhishingFilterService
	cliFilter     *filter.CliFilter
	textProcessor *utils.TextProcessor
	llmClient     core.LLMClient
	logger        *zap.Logger
}

func (opts *rootOptions) withRuntime(out io.Writer, fn func(rt *runtime) error) error {
	container, err := di.BuildCLIContainer(di.CLIOptions{
		ConfigFile:     opts.configFile,
		Provider:       opts.provider,
		Threshold:      opts.threshold,
		TrustedDomains: opts.trustedDomains,
		Verbose:        opts.verbose,
		JSONLog:        opts.jsonLog,
		Out:            out,
	})
	if err != nil {
		return err
	}

	return container.Invoke(func(
		service *core.PhishingFilterService,
		cliFilter *filter.CliFilter,
		textProcessor *utils.TextProcessor,
		llmClient core.LLMClient,
		logger *zap.Logger,
	) error {
		if closer, ok := llmClient.(interface{ Close() error }); ok {
			defer closer.Close()
		}
		return fn(&runtime{
			service:       service,
			cliFilter:     cliFilter,
			textProcessor: textProcessor,
			llmClient:     llmClient,
			logger:        logger,
		})
	})
}

// openInput returns the named file, or stdin for no name or "-"
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	return f, nil
}
