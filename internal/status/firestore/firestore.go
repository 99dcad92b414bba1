// Package firestore persists ingestion statuses as Firestore documents keyed
// by collection id.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docqa/internal/domain"
)

type Config struct {
	ProjectID       string
	Collection      string
	CredentialsFile string
}

type Store struct {
	client     *firestore.Client
	collection string
}

// NewStore creates a Firestore client for the given project.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("projectID must be provided to create a firestore client")
	}
	if cfg.Collection == "" {
		cfg.Collection = "ingestions"
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &Store{client: client, collection: cfg.Collection}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Save(ctx context.Context, st domain.IngestionStatus) error {
	if st.Collection == "" {
		return domain.ErrCollectionRequired
	}
	if _, err := s.client.Collection(s.collection).Doc(st.Collection).Set(ctx, st); err != nil {
		return fmt.Errorf("save status for %s: %w", st.Collection, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection string) (domain.IngestionStatus, error) {
	var st domain.IngestionStatus
	snap, err := s.client.Collection(s.collection).Doc(collection).Get(ctx)
	if err != nil {
		return st, mapError(collection, err)
	}
	if err := snap.DataTo(&st); err != nil {
		return st, fmt.Errorf("decode status for %s: %w", collection, err)
	}
	return st, nil
}

// Delete removes the status document. Firestore treats a missing document as deleted.
func (s *Store) Delete(ctx context.Context, collection string) error {
	if collection == "" {
		return domain.ErrCollectionRequired
	}
	if _, err := s.client.Collection(s.collection).Doc(collection).Delete(ctx); err != nil {
		return fmt.Errorf("delete status for %s: %w", collection, err)
	}
	return nil
}

func mapError(collection string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("status for %s: %w", collection, domain.ErrNotFound)
	}
	return fmt.Errorf("load status for %s: %w", collection, err)
}
