// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docbatch/internal/archive"
)

var extractCmd = &cobra.Command{
	Use:   "extract <folder>",
	Short: "Extract zip and tar archives in place, then delete them",
	Long: `Extract unpacks every .zip, .tar, .tar.gz, and .tgz file at the top of
the folder into that folder. After a grace period the archives that extracted
cleanly are deleted; archives that failed are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().Duration("grace-period", 0, "wait between extraction and deletion (default 5s)")
	extractCmd.Flags().Bool("keep-archives", false, "do not delete archives after extraction")

	_ = viper.BindPFlag(keyGracePeriod, extractCmd.Flags().Lookup("grace-period"))
	_ = viper.BindPFlag(keyKeepArchives, extractCmd.Flags().Lookup("keep-archives"))

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ac := archiveConfig()
	view := newStatusView(os.Stdout)
	res := archive.ExtractAll(ctx, args[0], archive.Options{
		GracePeriod:  ac.GracePeriod,
		KeepArchives: ac.KeepArchives,
		Status:       view.Status,
		Logger:       newLogger(),
	})

	fmt.Printf("%d extracted, %d removed, %d error(s)\n", len(res.Extracted), len(res.Removed), len(res.Errors))
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d archive error(s)", len(res.Errors))
	}
	return ctx.Err()
}
