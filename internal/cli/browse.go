package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rescale/bucketdesk/internal/ipc"
	"github.com/rescale/bucketdesk/internal/services"
	"github.com/rescale/bucketdesk/internal/shell"
	"github.com/rescale/bucketdesk/internal/vdir"
)

func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse [bucket]",
		Short: "Interactively navigate a bucket",
		Long: `Open a bucket and navigate it like a file system.

Commands inside the browser:
  ls                 list the current folder
  cd <name>          enter a folder (cd .. goes up, cd / to the root)
  pwd                show the current folder
  info               count the bucket's folders and files
  link <name>        print the public link to a file
  target <file>      show the key a local file would be uploaded to
  refresh            list the bucket again
  exit               leave the browser`,
		Args: cobra.MaximumNArgs(1),
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
				cfgView, err := ipc.CallInto[services.ConfigView](ctx, s.corr, services.ChannelGetConfig, nil)
				if err != nil {
					return err
				}
				return runBrowser(ctx, view, cfgView.Markdown, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

// runBrowser reads browser commands from in until exit or EOF. Navigation
// failures are printed and leave the current folder unchanged.
func runBrowser(ctx context.Context, view *shell.BucketView, markdown bool, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "%s:/%s> ", view.Bucket(), view.PathPrefix())
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		arg := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), fields[0]))

		switch fields[0] {
		case "ls", "dir":
			printItems(out, view.Items())
			printSummary(out, view.PathPrefix(), view.TotalItems())
		case "cd":
			switch arg {
			case "", "/":
				_ = view.GoTo("")
			case "..":
				view.Back()
			default:
				if err := changeDir(view, arg); err != nil {
					fmt.Fprintf(out, "cd: %v\n", err)
				}
			}
		case "pwd":
			fmt.Fprintf(out, "/%s\n", view.PathPrefix())
		case "info":
			printTreeInfo(out, view)
		case "link":
			link, err := view.Link(arg, markdown)
			if err != nil {
				fmt.Fprintf(out, "link: %v\n", err)
				continue
			}
			fmt.Fprintln(out, link)
		case "target":
			if arg == "" {
				fmt.Fprintln(out, "target: local file required")
				continue
			}
			key, err := view.UploadTarget(arg)
			if err != nil {
				fmt.Fprintf(out, "target: %v\n", err)
				continue
			}
			fmt.Fprintln(out, key)
		case "refresh":
			if err := view.Refresh(ctx); err != nil {
				fmt.Fprintf(out, "refresh: %v\n", err)
			}
		case "help", "?":
			fmt.Fprintln(out, "commands: ls, cd <name>, cd .., pwd, info, link <name>, target <file>, refresh, exit")
		case "exit", "quit", "q":
			return nil
		default:
			fmt.Fprintf(out, "unknown command %q (try help)\n", fields[0])
		}
	}
}

// changeDir enters a relative path one folder at a time. A failure part way
// returns the view to where it started.
func changeDir(view *shell.BucketView, path string) error {
	start := view.Tree().FolderKey()
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			view.Back()
			continue
		}
		if err := view.ChangeDir(seg); err != nil {
			_ = view.GoTo(start)
			return err
		}
	}
	return nil
}

// printTreeInfo prints how many nodes the open bucket's tree holds below the
// root and how many listing entries the last rebuild skipped.
func printTreeInfo(out io.Writer, view *shell.BucketView) {
	tree := view.Tree()
	nodes := vdir.CountNodes(tree.Root()) - 1
	skipped := len(tree.Skipped())
	fmt.Fprintf(out, "%s: %s %s, %s skipped\n",
		view.Bucket(), humanize.Comma(int64(nodes)), plural(nodes, "node", "nodes"), humanize.Comma(int64(skipped)))
}
