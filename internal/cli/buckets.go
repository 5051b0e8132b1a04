package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rescale/bucketdesk/internal/ipc"
	"github.com/rescale/bucketdesk/internal/progress"
	"github.com/rescale/bucketdesk/internal/services"
	"github.com/rescale/bucketdesk/internal/shell"
	"github.com/rescale/bucketdesk/internal/util/filter"
	"github.com/rescale/bucketdesk/internal/vdir"
)

var errNoBucket = errors.New("no bucket given and the current app has no default bucket")

// resolveBucket returns the bucket argument or the current profile's
// default bucket.
func resolveBucket(s *session, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if p, err := s.cfg.CurrentProfile(); err == nil && p.DefaultBucket != "" {
		return p.DefaultBucket, nil
	}
	return "", errNoBucket
}

// openBucket lists bucket into a new view, showing a spinner while the
// listing runs.
func openBucket(ctx context.Context, s *session, bucket string) (*shell.BucketView, error) {
	view := shell.NewBucketView(s.corr, nil)
	err := progress.Spin(progress.New(quiet), "Listing "+bucket, func() error {
		return view.Open(ctx, bucket)
	})
	if err != nil {
		return nil, err
	}
	if skipped := view.Tree().Skipped(); len(skipped) > 0 {
		GetLogger().Warn().Int("count", len(skipped)).Msg("Some keys conflict with existing entries and were skipped")
	}
	return view, nil
}

func newBucketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "List the buckets of the current app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *session) error {
				buckets, err := ipc.CallInto[[]string](ctx, s.corr, services.ChannelGetBuckets, nil)
				if err != nil {
					return err
				}
				for _, b := range buckets {
					fmt.Fprintln(cmd.OutOrStdout(), b)
				}
				return nil
			})
		},
	}
}

// filterFlags are the --include/--exclude/--search flags shared by ls and
// find.
type filterFlags struct {
	include string
	exclude string
	search  string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.include, "include", "", "Comma-separated glob patterns to include (e.g. \"*.png,*.jpg\")")
	cmd.Flags().StringVar(&f.exclude, "exclude", "", "Comma-separated glob patterns to exclude")
	cmd.Flags().StringVar(&f.search, "search", "", "Comma-separated terms the name must contain")
}

func (f *filterFlags) config() filter.Config {
	return filter.Config{
		Include: filter.ParsePatternList(f.include),
		Exclude: filter.ParsePatternList(f.exclude),
		Search:  filter.ParsePatternList(f.search),
	}
}

func newLsCmd() *cobra.Command {
	var filters filterFlags

	cmd := &cobra.Command{
		Use:   "ls [bucket] [folder]",
		Short: "List a folder of a bucket",
		Long: `List the direct children of a folder. Folders are reconstructed from the
object keys, so "photos/2024/cat.jpg" shows up as folder photos containing
folder 2024.

Examples:
  bucketdesk ls media
  bucketdesk ls media photos/2024
  bucketdesk ls media photos --include "*.png" --exclude "thumb*"`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *session) error {
				bucket, err := resolveBucket(s, args)
				if err != nil {
					return err
				}
				view, err := openBucket(ctx, s, bucket)
				if err != nil {
					return err
				}
				if len(args) > 1 {
					if err := view.GoTo(args[1]); err != nil {
						return err
					}
				}

				items := filter.Apply(view.Items(), vdir.Node.Name, nil, filters.config())
				out := cmd.OutOrStdout()
				printItems(out, items)
				printSummary(out, view.PathPrefix(), len(items))
				return nil
			})
		},
	}
	filters.bind(cmd)
	return cmd
}

func newFindCmd() *cobra.Command {
	var filters filterFlags
	var paths string

	cmd := &cobra.Command{
		Use:   "find <bucket> [folder]",
		Short: "Find files below a folder by name or path pattern",
		Long: `Walk every file below a folder and print the keys that match. --path
patterns match the key relative to the folder and accept ** for any
number of folders.

Examples:
  bucketdesk find media --include "*.png"
  bucketdesk find media site --path "**/index.html"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *session) error {
				view, err := openBucket(ctx, s, args[0])
				if err != nil {
					return err
				}
				if len(args) > 1 {
					if err := view.GoTo(args[1]); err != nil {
						return err
					}
				}

				cfg := filters.config()
				cfg.PathInclude = filter.ParsePatternList(paths)
				matches := findFiles(view.Tree().Current(), cfg)

				out := cmd.OutOrStdout()
				for _, f := range matches {
					fmt.Fprintf(out, "%s\t%s\n", vdir.Path(f), formatSize(f.Size))
				}
				fmt.Fprintf(out, "%d %s\n", len(matches), plural(len(matches), "match", "matches"))
				return nil
			})
		},
	}
	filters.bind(cmd)
	cmd.Flags().StringVar(&paths, "path", "", "Comma-separated path patterns relative to the folder")
	return cmd
}

// findFiles returns the files below dir that pass cfg, in tree order.
func findFiles(dir *vdir.Folder, cfg filter.Config) []*vdir.File {
	base := vdir.Key(dir)
	var files []*vdir.File
	vdir.Walk(dir, func(n vdir.Node) bool {
		if f, ok := n.(*vdir.File); ok {
			files = append(files, f)
		}
		return true
	})

	relative := func(f *vdir.File) string {
		return strings.TrimPrefix(vdir.Key(f), base)
	}
	return filter.Apply(files, (*vdir.File).Name, relative, cfg)
}

func newLinkCmd() *cobra.Command {
	var markdown, plain bool

	cmd := &cobra.Command{
		Use:   "link <bucket> <key>",
		Short: "Print the public link to an object",
		Long: `Print the public link to an object, built from the app's first domain.
Markdown formatting follows the config unless --markdown or --plain is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *session) error {
				useMarkdown := markdown
				if !markdown && !plain {
					view, err := ipc.CallInto[services.ConfigView](ctx, s.corr, services.ChannelGetConfig, nil)
					if err != nil {
						return err
					}
					useMarkdown = view.Markdown
				}

				bview, err := openBucket(ctx, s, args[0])
				if err != nil {
					return err
				}
				link, err := bview.LinkKey(args[1], useMarkdown)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), link)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Format as a markdown image reference")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print the bare link")
	cmd.MarkFlagsMutuallyExclusive("markdown", "plain")
	return cmd
}
