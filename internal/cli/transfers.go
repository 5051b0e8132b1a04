package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rescale/bucketdesk/internal/constants"
	"github.com/rescale/bucketdesk/internal/ipc"
	"github.com/rescale/bucketdesk/internal/services"
)

func newTransfersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "Show and clear transfer records",
	}

	var done bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List in-flight transfers (or finished ones with --done)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *session) error {
				list, err := ipc.CallInto[[]services.Transfer](ctx, s.corr, services.ChannelGetTransfer, services.TransferQuery{Done: done})
				if err != nil {
					return err
				}
				printTransfers(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&done, "done", false, "List finished transfers")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished transfers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *session) error {
				res, err := ipc.CallInto[services.ClearResult](ctx, s.corr, services.ChannelClearTransferDoneList, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", res.Removed, plural(res.Removed, "transfer", "transfers"))
				return nil
			})
		},
	}

	var count int
	recentCmd := &cobra.Command{
		Use:   "recent [bucket]",
		Short: "Print links to the most recent completed uploads",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *session) error {
				bucket, err := resolveBucket(s, args)
				if err != nil {
					return err
				}
				links, err := ipc.CallInto[[]string](ctx, s.corr, services.ChannelGetRecentLinks, services.RecentLinksRequest{Bucket: bucket, Count: count})
				if err != nil {
					return err
				}
				for _, l := range links {
					fmt.Fprintln(cmd.OutOrStdout(), l)
				}
				return nil
			})
		},
	}
	recentCmd.Flags().IntVarP(&count, "count", "n", constants.RecentTransferCount, "Number of transfers to consider")

	cmd.AddCommand(listCmd, clearCmd, recentCmd, newTransferAddCmd(), newTransferSetCmd())
	return cmd
}

// newTransferAddCmd lets an external uploader record a transfer.
func newTransferAddCmd() *cobra.Command {
	var req services.AddTransferRequest
	var typ string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Record a new transfer and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			req.Type = services.TransferType(typ)
			return withSession(func(ctx context.Context, s *session) error {
				t, err := ipc.CallInto[services.Transfer](ctx, s.corr, services.ChannelAddTransfer, req)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(services.TransferTypeUpload), "upload or download")
	cmd.Flags().StringVar(&req.Key, "key", "", "Object key")
	cmd.Flags().Int64Var(&req.Size, "size", 0, "Size in bytes")
	return cmd
}

func newTransferSetCmd() *cobra.Command {
	var errMsg string

	cmd := &cobra.Command{
		Use:   "set <id> <state>",
		Short: "Move a transfer to queued, active, completed, failed or cancelled",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.UpdateTransferRequest{
				ID:    args[0],
				State: services.TransferState(args[1]),
				Error: errMsg,
			}
			return withSession(func(ctx context.Context, s *session) error {
				t, err := ipc.CallInto[services.Transfer](ctx, s.corr, services.ChannelUpdateTransfer, req)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.String())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&errMsg, "error", "", "Failure message (with state failed)")
	return cmd
}

func printTransfers(out io.Writer, list []services.Transfer) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No transfers.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tSIZE\tSTATE\tSTARTED")
	for _, t := range list {
		state := string(t.State)
		if t.Error != "" {
			state += ": " + t.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Type, t.Name, formatSize(t.Size), state, formatTime(t.StartedAt))
	}
	w.Flush()
}
