package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Remover deletes ingested collections.
type Remover struct {
	cache  *vectorstore.Cache
	status domain.StatusStore
	logger *slog.Logger
}

// NewRemover wires collection deletion. status may be nil.
func NewRemover(cache *vectorstore.Cache, status domain.StatusStore, logger *slog.Logger) *Remover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remover{cache: cache, status: status, logger: logger}
}

// Remove drops the vectors of collection and then its ingestion status.
// Removing an unknown collection succeeds.
func (r *Remover) Remove(ctx context.Context, collection string) error {
	if strings.TrimSpace(collection) == "" {
		return domain.ErrCollectionRequired
	}
	if err := r.cache.Delete(ctx, collection); err != nil {
		return err
	}
	if r.status != nil {
		if err := r.status.Delete(ctx, collection); err != nil {
			return fmt.Errorf("delete status: %w", err)
		}
	}
	r.logger.Info("collection removed", "collection", collection)
	return nil
}
