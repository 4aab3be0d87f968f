package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/models"
)

// FirestoreStore keeps one document per request.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection, now: time.Now}
}

func (s *FirestoreStore) Create(ctx context.Context, req *models.Request) (*models.Request, error) {
	col := s.client.Collection(s.collection)
	ref := col.NewDoc()
	if req.ID != "" {
		ref = col.Doc(req.ID)
	}
	now := s.now().UTC()
	req.ID = ref.ID
	req.Version = 1
	req.CreatedAt = now
	req.UpdatedAt = now
	if _, err := ref.Create(ctx, req); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, fmt.Errorf("%w: %s", ErrConflict, req.ID)
		}
		return nil, fmt.Errorf("failed to create request document: %w", err)
	}
	return req, nil
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*models.Request, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get request %s: %w", id, err)
	}
	return decodeSnapshot(snap)
}

// Update runs fn inside a Firestore transaction. Firestore retries the
// transaction on contention, so fn may run more than once.
func (s *FirestoreStore) Update(ctx context.Context, id string, fn Mutation) (*models.Request, error) {
	ref := s.client.Collection(s.collection).Doc(id)
	var updated *models.Request

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return fmt.Errorf("failed to read request %s: %w", id, err)
		}
		req, err := decodeSnapshot(snap)
		if err != nil {
			return err
		}
		if err := fn(req); err != nil {
			return err
		}
		req.Version++
		req.UpdatedAt = s.now().UTC()
		if err := tx.Set(ref, req); err != nil {
			return fmt.Errorf("failed to write request %s: %w", id, err)
		}
		updated = req
		return nil
	})
	if err != nil {
		if status.Code(err) == codes.Aborted {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}
	return updated, nil
}

func (s *FirestoreStore) ListByStage(ctx context.Context, stage approval.Stage) ([]*models.Request, error) {
	q := s.client.Collection(s.collection).
		Where("approval.currentStage", "==", string(stage)).
		OrderBy("createdAt", firestore.Desc)
	return collect(q.Documents(ctx))
}

func (s *FirestoreStore) ListByStudent(ctx context.Context, studentID string, st approval.Status) ([]*models.Request, error) {
	q := s.client.Collection(s.collection).Where("studentId", "==", studentID)
	if st != "" {
		q = q.Where("approval.status", "==", string(st))
	}
	return collect(q.OrderBy("createdAt", firestore.Desc).Documents(ctx))
}

func collect(iter *firestore.DocumentIterator) ([]*models.Request, error) {
	defer iter.Stop()
	var out []*models.Request
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate requests: %w", err)
		}
		req, err := decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (*models.Request, error) {
	var req models.Request
	if err := snap.DataTo(&req); err != nil {
		return nil, fmt.Errorf("failed to decode request %s: %w", snap.Ref.ID, err)
	}
	req.ID = snap.Ref.ID
	return &req, nil
}
