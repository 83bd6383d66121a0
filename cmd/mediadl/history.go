package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"media-downloader/internal/history"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(root, true)
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := e.openHistory()
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			if store == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "History is disabled in config.")
				return nil
			}
			defer store.Close()

			entries, err := store.Recent(limit)
			if err != nil {
				return err
			}
			printHistory(cmd, entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "number of entries to show")
	return cmd
}

func printHistory(cmd *cobra.Command, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No downloads yet.")
		return
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tSTATE\tSIZE\tTITLE\tURL")
	for _, entry := range entries {
		title := entry.Title
		if title == "" {
			title = "-"
		}
		size := "-"
		if entry.DownloadedBytes > 0 {
			size = humanize.Bytes(uint64(entry.DownloadedBytes))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", humanize.Time(entry.FinishedAt), entry.State, size, title, entry.URL)
	}
	tw.Flush()
}
