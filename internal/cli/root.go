// Package cli provides the command-line interface for bucketdesk.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rescale/bucketdesk/internal/logging"
	"github.com/rescale/bucketdesk/internal/version"
)

var (
	// Global flags
	cfgFile     string
	socketPath  string
	verbose     bool
	debug       bool
	quiet       bool
	callTimeout int  // seconds, 0 = config value
	localOnly   bool // skip the socket and serve calls in-process

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bucketdesk",
		Short: "Browse object-storage buckets as folders",
		Long: `bucketdesk ` + version.String() + `
Browse S3 and Azure Blob buckets as a folder tree.

A long-lived process ("bucketdesk serve") holds the storage profiles and
talks to the providers. Every other command sends its requests to that
process over a local socket. When no server is running, commands serve
their own requests in-process.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			logging.SetGlobalLevel(logging.LevelFor(verbose || debug, quiet))
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Socket of the long-lived process (overrides config)")
	rootCmd.PersistentFlags().IntVar(&callTimeout, "timeout", 0, "Seconds to wait for each response (0 = config value)")
	rootCmd.PersistentFlags().BoolVar(&localOnly, "local", false, "Serve requests in-process instead of using the socket")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Hide progress spinners and info messages")

	rootCmd.Version = version.String()

	completionCmd := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Long: `Generate shell completion scripts for bucketdesk.

QUICK TEST (temporary, current session only):
  source <(bucketdesk completion bash)
  source <(bucketdesk completion zsh)
  bucketdesk completion fish | source`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletion(out)
			}
			return fmt.Errorf("unsupported shell %q", args[0])
		},
	}
	rootCmd.AddCommand(completionCmd)

	// Disable default completion command (we're adding our own above)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, shutting down...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	// Clean up signal handler
	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAppsCmd())
	rootCmd.AddCommand(newBucketsCmd())
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newFindCmd())
	rootCmd.AddCommand(newLinkCmd())
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newTransfersCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		// Fallback to background context if called before Execute()
		return context.Background()
	}
	return rootContext
}
