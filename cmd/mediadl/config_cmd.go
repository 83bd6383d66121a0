package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"media-downloader/internal/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change saved preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print file locations and saved preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(root, true)
			if err != nil {
				return err
			}
			defer e.Close()

			settings, err := e.store.Load()
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			data, err := json.MarshalIndent(settings, "", "  ")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "settings: %s\n", e.store.Path())
			fmt.Fprintf(out, "log:      %s (%s)\n", e.cfg.Log.Path, e.cfg.Log.Level)
			if e.cfg.History.Enabled {
				fmt.Fprintf(out, "history:  %s\n", e.cfg.History.Path)
			}
			fmt.Fprintln(out, string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-dir <directory>",
		Short: "Remember the default download directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(root, true)
			if err != nil {
				return err
			}
			defer e.Close()

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve directory: %w", err)
			}
			if _, err := config.RememberDirectory(e.store, dir); err != nil {
				return err
			}
			e.log.Info("download directory saved", "dir", dir)
			fmt.Fprintf(cmd.OutOrStdout(), "Download directory set to %s\n", dir)
			return nil
		},
	})

	return cmd
}
