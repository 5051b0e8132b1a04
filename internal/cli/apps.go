package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rescale/bucketdesk/internal/config"
	"github.com/rescale/bucketdesk/internal/ipc"
	"github.com/rescale/bucketdesk/internal/services"
)

// newAppsCmd creates the 'apps' command group.
func newAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apps",
		Aliases: []string{"app", "profiles"},
		Short:   "Manage storage profiles",
		Long: `Manage storage profiles ("apps"). Each app is one storage account:
an S3 (or S3-compatible) access key, or an Azure storage account.

Commands:
  list    - List apps
  add     - Add an app
  update  - Change an app
  remove  - Delete an app
  use     - Select the current app`,
	}

	cmd.AddCommand(newAppsListCmd())
	cmd.AddCommand(newAppsAddCmd())
	cmd.AddCommand(newAppsUpdateCmd())
	cmd.AddCommand(newAppsRemoveCmd())
	cmd.AddCommand(newAppsUseCmd())
	return cmd
}

func newAppsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List storage profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *session) error {
				apps, err := ipc.CallInto[[]config.Profile](ctx, s.corr, services.ChannelGetApps, nil)
				if err != nil {
					return err
				}
				view, err := ipc.CallInto[services.ConfigView](ctx, s.corr, services.ChannelGetConfig, nil)
				if err != nil {
					return err
				}
				printApps(cmd.OutOrStdout(), apps, view.Current)
				return nil
			})
		},
	}
}

func printApps(out io.Writer, apps []config.Profile, current string) {
	if len(apps) == 0 {
		fmt.Fprintln(out, "No apps configured. Add one with 'bucketdesk apps add'.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tPROVIDER\tREGION/ACCOUNT\tENDPOINT")
	for _, a := range apps {
		marker := ""
		if a.Name == current {
			marker = "*"
		}
		where := a.Region
		if a.Provider == config.ProviderAzure {
			where = a.AccountName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, a.Name, a.Provider, dash(where), dash(a.Endpoint))
	}
	w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// profileFlags binds the flags shared by add and update.
type profileFlags struct {
	provider    string
	accessKey   string
	secretKey   string
	region      string
	endpoint    string
	pathStyle   bool
	accountName string
	bucket      string
	domains     []string
}

func (f *profileFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", config.ProviderS3, "Storage provider (s3 or azure)")
	cmd.Flags().StringVar(&f.accessKey, "access-key", "", "S3 access key id")
	cmd.Flags().StringVar(&f.secretKey, "secret-key", "", "S3 secret key or Azure account key (prompted if omitted)")
	cmd.Flags().StringVar(&f.region, "region", "", "S3 region (default us-east-1)")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "Custom endpoint for S3-compatible or Azure emulator storage")
	cmd.Flags().BoolVar(&f.pathStyle, "path-style", false, "Use path-style S3 addressing (MinIO)")
	cmd.Flags().StringVar(&f.accountName, "account", "", "Azure storage account name")
	cmd.Flags().StringVar(&f.bucket, "bucket", "", "Bucket opened by default")
	cmd.Flags().StringSliceVar(&f.domains, "domain", nil, "Public domain for links (repeatable)")
}

func (f *profileFlags) profile(name string) config.Profile {
	return config.Profile{
		Name:          strings.TrimSpace(name),
		Provider:      strings.ToLower(f.provider),
		AccessKey:     f.accessKey,
		SecretKey:     f.secretKey,
		Region:        f.region,
		Endpoint:      f.endpoint,
		PathStyle:     f.pathStyle,
		AccountName:   f.accountName,
		DefaultBucket: f.bucket,
		Domains:       f.domains,
	}
}

func newAppsAddCmd() *cobra.Command {
	var flags profileFlags

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a storage profile",
		Long: `Add a storage profile. The first profile added becomes current.

Examples:
  # AWS S3
  bucketdesk apps add work --access-key AKIA... --region eu-west-1

  # MinIO
  bucketdesk apps add local --access-key minio --endpoint http://localhost:9000 --path-style

  # Azure Blob Storage
  bucketdesk apps add blobs --provider azure --account mystorageacct`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := flags.profile(args[0])
			if p.SecretKey == "" {
				secret, err := promptPassword(stdinFile(cmd), cmd.ErrOrStderr(), "Secret key: ")
				if err != nil {
					return fmt.Errorf("--secret-key is required: %w", err)
				}
				p.SecretKey = secret
			}

			return withSession(func(ctx context.Context, s *session) error {
				stored, err := ipc.CallInto[config.Profile](ctx, s.corr, services.ChannelAddApp, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added app %s (%s)\n", stored.Name, stored.Provider)
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newAppsUpdateCmd() *cobra.Command {
	var flags profileFlags

	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Change a storage profile",
		Long: `Change a storage profile. Flags that are not given keep their stored
value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *session) error {
				apps, err := ipc.CallInto[[]config.Profile](ctx, s.corr, services.ChannelGetApps, nil)
				if err != nil {
					return err
				}
				var p *config.Profile
				for i := range apps {
					if apps[i].Name == args[0] {
						p = &apps[i]
					}
				}
				if p == nil {
					return fmt.Errorf("app %s not found", args[0])
				}
				mergeProfileFlags(cmd, &flags, p)

				stored, err := ipc.CallInto[config.Profile](ctx, s.corr, services.ChannelUpdateApp, *p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated app %s\n", stored.Name)
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

// mergeProfileFlags copies the flags the user set onto p. p holds a masked
// secret, which the server keeps unless a new one is given.
func mergeProfileFlags(cmd *cobra.Command, f *profileFlags, p *config.Profile) {
	changed := cmd.Flags().Changed
	if changed("provider") {
		p.Provider = strings.ToLower(f.provider)
	}
	if changed("access-key") {
		p.AccessKey = f.accessKey
	}
	if changed("secret-key") {
		p.SecretKey = f.secretKey
	}
	if changed("region") {
		p.Region = f.region
	}
	if changed("endpoint") {
		p.Endpoint = f.endpoint
	}
	if changed("path-style") {
		p.PathStyle = f.pathStyle
	}
	if changed("account") {
		p.AccountName = f.accountName
	}
	if changed("bucket") {
		p.DefaultBucket = f.bucket
	}
	if changed("domain") {
		p.Domains = f.domains
	}
}

func newAppsRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm", "delete"},
		Short:   "Delete a storage profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				reader := bufio.NewReader(cmd.InOrStdin())
				if !confirm(reader, cmd.OutOrStdout(), fmt.Sprintf("Delete app %s?", args[0])) {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}
			return withSession(func(ctx context.Context, s *session) error {
				res, err := ipc.CallInto[services.DeleteResult](ctx, s.corr, services.ChannelDeleteApp, services.AppNameRequest{Name: args[0]})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted app %s\n", res.Deleted)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newAppsUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Select the current storage profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *session) error {
				p, err := ipc.CallInto[config.Profile](ctx, s.corr, services.ChannelInitApp, services.AppNameRequest{Name: args[0]})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Using app %s\n", p.Name)
				return nil
			})
		},
	}
}
