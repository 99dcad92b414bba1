package main

import (
	"errors"

	"github.com/spf13/cobra"

	"docqa/internal/service"
)

var deleteCollection string

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an ingested collection and its status",
	Args:  cobra.NoArgs,
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().StringVarP(&deleteCollection, "collection", "c", "", "collection id to delete")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, _ []string) error {
	if deleteCollection == "" {
		return errors.New("--collection is required")
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := service.NewRemover(a.cache, a.status, logger).Remove(cmd.Context(), deleteCollection); err != nil {
		return err
	}
	cmd.Printf("deleted %s\n", deleteCollection)
	return nil
}
