// cmd/postmon/sync_cmd.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	xlog "github.com/tamzrod/postcode-monitor/internal/log"
)

var syncCheckOnly bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Update the local code catalog from the remote index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		syncer := newSynchronizer(cfg.Meta)
		out := cmd.OutOrStdout()

		if syncCheckOnly {
			available, err := syncer.HasUpdateAvailable(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "update available: %t\n", available)
			return nil
		}

		syncCatalog(ctx, syncer, cfg.Meta.UpdatesEnabled(), xlog.WithComponent("sync"))

		loader, err := newCatalog(ctx, syncer)
		if err != nil {
			return err
		}
		snap := loader.Snapshot()
		pc, em, oe := snap.Counts()
		if !snap.Updated.IsZero() {
			fmt.Fprintf(out, "catalog updated %s\n", snap.Updated.Format("2006-01-02 15:04:05 MST"))
		}
		fmt.Fprintf(out, "post codes: %d\nerror masks: %d\nos errors: %d\n", pc, em, oe)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncCheckOnly, "check", false, "only report whether an update is available")
}
