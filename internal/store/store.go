package store

import (
	"context"
	"errors"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/models"
)

var (
	ErrNotFound = errors.New("request not found")
	ErrConflict = errors.New("request modified concurrently")
)

// Mutation changes a request inside a transaction. Returning an error aborts
// the transaction and nothing is written.
type Mutation func(req *models.Request) error

// Repository persists requests. Update is an atomic read-modify-write: two
// concurrent updates of one request never both apply to the same version.
type Repository interface {
	// Create assigns an id unless req.ID is already set, and sets Version to 1.
	Create(ctx context.Context, req *models.Request) (*models.Request, error)
	Get(ctx context.Context, id string) (*models.Request, error)
	Update(ctx context.Context, id string, fn Mutation) (*models.Request, error)
	// ListByStage returns requests whose current stage is stage, newest first.
	ListByStage(ctx context.Context, stage approval.Stage) ([]*models.Request, error)
	// ListByStudent returns a student's requests, newest first. An empty
	// status returns all of them.
	ListByStudent(ctx context.Context, studentID string, status approval.Status) ([]*models.Request, error)
}
