package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docqa/internal/config"
	"docqa/internal/service"
	"docqa/internal/tui"
)

var (
	askCollection string
	askQuestion   string
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask questions about an ingested collection",
	Long: `Opens an interactive prompt against a collection. With --question the
answer payload is printed as JSON instead.`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askCollection, "collection", "c", "", "collection id returned by upload or ingest")
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "ask a single question and print the payload")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, _ []string) error {
	if askCollection == "" {
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

	timeout := config.Seconds(cfg.Retrieval.SearchTimeoutSecs + cfg.Retrieval.RerankTimeoutSecs + cfg.Retrieval.GenerateTimeoutSecs)
	if askQuestion != "" {
		return printAnswer(cmd, a.query, askQuestion, askCollection, timeout)
	}
	_, err = tea.NewProgram(tui.New(a.query, askCollection, timeout), tea.WithAltScreen()).Run()
	return err
}

func printAnswer(cmd *cobra.Command, q tui.Asker, question, collection string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	payload := q.Query(ctx, question, collection)
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	cmd.Println(string(data))
	if p, ok := payload.(service.ErrorPayload); ok {
		return fmt.Errorf("query failed: %s", p.Error)
	}
	return nil
}
