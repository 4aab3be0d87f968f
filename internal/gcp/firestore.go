package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/bonafideflow/internal/config"
)

// NewFirestoreClient opens the Firestore database holding requests and the
// user directory. FIRESTORE_EMULATOR_HOST is honoured by the client library.
func NewFirestoreClient(ctx context.Context, cfg config.GCPConfig) (*firestore.Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gcp.project_id must be provided to create a firestore client")
	}

	database := cfg.FirestoreDatabase
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, database)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client for database %q: %w", database, err)
	}
	return client, nil
}
