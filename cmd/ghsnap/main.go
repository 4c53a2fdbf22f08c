package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantmind-br/ghsnap/internal/app"
	"github.com/quantmind-br/ghsnap/internal/config"
	"github.com/quantmind-br/ghsnap/internal/domain"
	"github.com/quantmind-br/ghsnap/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// rootOptions holds flag values shared by the commands
type rootOptions struct {
	domain.CommonOptions
	cfgFile string
	format  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "ghsnap [url]",
		Short: "Resolve a GitHub URL into a local source snapshot",
		Long: `ghsnap resolves a GitHub repository, tree, commit or release URL to a
concrete commit, downloads that commit's archive and prints the snapshot:
owner, repository, branch, tags, commit SHA and the local root directory.

The materialized tree is removed after printing unless --keep is given.`,
		Version:       version.Short(),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return run(cmd, args[0], opts, v)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ~/.ghsnap/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVarP(&opts.format, "format", "f", formatJSON, "Output format (json, yaml)")

	// Resolution flags
	rootCmd.Flags().BoolVar(&opts.Keep, "keep", false, "Keep the materialized tree after printing")
	rootCmd.Flags().BoolVar(&opts.Progress, "progress", false, "Show download and extraction progress")
	rootCmd.Flags().String("token", "", "GitHub token (default from GHSNAP_GITHUB_TOKEN, GITHUB_TOKEN or GH_TOKEN)")
	rootCmd.Flags().Duration("timeout", config.DefaultTimeout, "HTTP timeout per request, archive download included")
	rootCmd.Flags().Int("retries", config.DefaultMaxRetries, "Retries after transient download failures")
	rootCmd.Flags().String("api-url", config.DefaultAPIURL, "GitHub REST API base URL")

	// Bind flags to viper
	_ = v.BindPFlag(config.KeyGitHubToken, rootCmd.Flags().Lookup("token"))
	_ = v.BindPFlag("github.timeout", rootCmd.Flags().Lookup("timeout"))
	_ = v.BindPFlag("retry.max_retries", rootCmd.Flags().Lookup("retries"))
	_ = v.BindPFlag("github.api_url", rootCmd.Flags().Lookup("api-url"))

	rootCmd.AddCommand(newClassifyCmd(opts, v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func run(cmd *cobra.Command, rawURL string, opts *rootOptions, v *viper.Viper) error {
	if err := checkFormat(opts.format); err != nil {
		return err
	}

	cfg, _, err := config.LoadWithViper(config.LoadOptions{ConfigFile: opts.cfgFile, Viper: v})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator, err := app.NewOrchestrator(app.OrchestratorOptions{
		Config:         cfg,
		Store:          config.NewStore(v),
		Verbose:        opts.Verbose,
		Progress:       opts.Progress,
		ProgressOutput: cmd.ErrOrStderr(),
		LogOutput:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	defer orchestrator.Close()

	snapshot, err := orchestrator.Run(ctx, rawURL)
	if err != nil {
		return err
	}
	if !opts.Keep {
		defer cleanup(cmd.ErrOrStderr(), snapshot)
	}

	return writeOutput(cmd.OutOrStdout(), opts.format, snapshot)
}

func cleanup(w io.Writer, snapshot *domain.Snapshot) {
	if err := snapshot.Cleanup(); err != nil {
		fmt.Fprintf(w, "Warning: failed to remove %s: %v\n", snapshot.WorkDir(), err)
	}
}

func newClassifyCmd(opts *rootOptions, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <url>",
		Short: "Print the reference a GitHub URL points at, without network access",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}

			cfg, _, err := config.LoadWithViper(config.LoadOptions{ConfigFile: opts.cfgFile, Viper: v})
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			orchestrator, err := app.NewOrchestrator(app.OrchestratorOptions{
				Config:    cfg,
				Verbose:   opts.Verbose,
				LogOutput: cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("failed to create orchestrator: %w", err)
			}
			defer orchestrator.Close()

			ref, err := orchestrator.Classify(args[0])
			if err != nil {
				return fmt.Errorf("cannot classify %s: %w", args[0], err)
			}
			return writeOutput(cmd.OutOrStdout(), opts.format, ref)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
}

func checkFormat(format string) error {
	switch format {
	case formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported format %q (use %s or %s)", format, formatJSON, formatYAML)
	}
}

func writeOutput(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return nil
	}
}
