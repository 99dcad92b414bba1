package main

import (
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/extract"
	"docqa/internal/service"
	"docqa/internal/tui"
)

var (
	ingestCollection  string
	ingestInteractive bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file.pdf]",
	Short: "Ingest a PDF in the foreground",
	Long: `Validates, extracts, chunks and embeds one PDF and prints the collection id.
With --interactive the question prompt opens once ingestion finishes, which
is the only way to query the in-memory vector store from the command line.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestCollection, "collection", "c", "", "collection id to (re)build (default: new id)")
	ingestCmd.Flags().BoolVarP(&ingestInteractive, "interactive", "i", false, "open the question prompt after ingestion")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	pages, err := extract.ValidatePDF(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	collection := ingestCollection
	if collection == "" {
		collection, _ = service.NewCollectionID()
	}
	doc := domain.Document{Filename: filepath.Base(path), Path: path, PageCount: pages}

	start := time.Now()
	res, err := a.pipeline.Run(cmd.Context(), doc, collection)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	cmd.Printf("collection: %s\n", collection)
	cmd.Printf("pages: %d (ocr %d)  chunks: %d  skipped: %d  took: %s\n",
		res.Pages, res.OCRPages, res.Chunks, res.Skipped, time.Since(start).Round(time.Millisecond))
	if res.Summary != "" {
		cmd.Printf("summary: %s\n", res.Summary)
	}

	if !ingestInteractive {
		return nil
	}
	timeout := config.Seconds(cfg.Retrieval.SearchTimeoutSecs + cfg.Retrieval.RerankTimeoutSecs + cfg.Retrieval.GenerateTimeoutSecs)
	_, err = tea.NewProgram(tui.New(a.query, collection, timeout), tea.WithAltScreen()).Run()
	return err
}
