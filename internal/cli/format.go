package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rescale/bucketdesk/internal/vdir"
)

// formatSize renders a byte count for listings.
func formatSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}

// formatTime renders a modification time relative to now.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// printItems writes one row per node of a folder listing.
func printItems(out io.Writer, items []vdir.Node) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, n := range items {
		switch node := n.(type) {
		case *vdir.Folder:
			fmt.Fprintf(w, "DIR\t%s/\t%s items\t\n", node.Name(), humanize.Comma(int64(node.Len())))
		case *vdir.File:
			fmt.Fprintf(w, "\t%s\t%s\t%s\n", node.Name(), formatSize(node.Size), formatTime(node.ModifiedAt))
		}
	}
	w.Flush()
}

// printSummary writes the item count line under a listing.
func printSummary(out io.Writer, prefix string, total int) {
	where := "/" + prefix
	fmt.Fprintf(out, "%s: %s %s\n", where, humanize.Comma(int64(total)), plural(total, "item", "items"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
