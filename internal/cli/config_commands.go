package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rescale/bucketdesk/internal/ipc"
	"github.com/rescale/bucketdesk/internal/services"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bucketdesk configuration",
		Long: `Configuration management commands for bucketdesk.

Commands:
  show      - Display current configuration
  path      - Show configuration file and socket paths
  markdown  - Turn markdown link formatting on or off`,
	}

	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())
	configCmd.AddCommand(newConfigMarkdownCmd())
	return configCmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *session) error {
				view, err := ipc.CallInto[services.ConfigView](ctx, s.corr, services.ChannelGetConfig, nil)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Current app:   %s\n", dash(view.Current))
				fmt.Fprintf(out, "Markdown:      %v\n", view.Markdown)
				fmt.Fprintf(out, "Call timeout:  %ds\n", view.CallTimeoutSeconds)
				fmt.Fprintf(out, "Proxy mode:    %s\n", s.cfg.Proxy.Mode)
				if s.local {
					fmt.Fprintln(out, "Server:        not running (served in-process)")
				} else {
					fmt.Fprintf(out, "Server:        %s\n", effectiveSocket(s.cfg))
				}
				return nil
			})
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file and socket paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config: %s\nSocket: %s\n", path, effectiveSocket(cfg))
			return nil
		},
	}
}

func newConfigMarkdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "markdown <on|off>",
		Short:     "Turn markdown link formatting on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch strings.ToLower(args[0]) {
			case "on", "true", "yes":
				enabled = true
			case "off", "false", "no":
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}

			return withSession(func(ctx context.Context, s *session) error {
				view, err := ipc.CallInto[services.ConfigView](ctx, s.corr, services.ChannelSetMarkdown, services.MarkdownRequest{Enabled: enabled})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Markdown links: %v\n", view.Markdown)
				return nil
			})
		},
	}
}
