package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/trip-control-api/pkg/storage"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect the raw payloads kept from upstream pulls",
}

var archiveListCmd = &cobra.Command{
	Use:   "list <fonte> <data>",
	Short: "List archived payloads of a source and date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive(cmd)
		if err != nil {
			return err
		}
		files, err := store.List(args[0], args[1])
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	},
}

var archivePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete archived payloads older than a duration",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		store, err := openArchive(cmd)
		if err != nil {
			return err
		}
		removed, err := store.CleanupOlderThan(olderThan)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d files\n", len(removed))
		return nil
	},
}

func openArchive(cmd *cobra.Command) (*storage.LocalStorage, error) {
	cfg, logr, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	_ = logr.Sync()
	return storage.NewLocalStorage(cfg.Sync.ArchiveDir)
}

func init() {
	archivePruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "Minimum age of the files to delete")
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archivePruneCmd)
	rootCmd.AddCommand(archiveCmd)
}
