package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/audit"
	"github.com/Lllllllleong/bonafideflow/internal/models"
)

// newEmulatorStore connects to the Firestore emulator named by
// FIRESTORE_EMULATOR_HOST. Each test gets its own collection.
func newEmulatorStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "bonafideflow-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	s := NewFirestoreStore(client, "requests-"+uuid.NewString())
	s.now = func() time.Time { return fixedNow }
	return s
}

func newFirestoreRequest(id string) *models.Request {
	return &models.Request{
		ID:         id,
		Kind:       audit.SchemaBonafide,
		StudentID:  "stu-1",
		Class:      "BE_CSE_G1",
		Department: "CSE",
		Approval:   approval.NewChain(false).Start(),
	}
}

func TestFirestoreStore_CreateWithPresetID(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, newFirestoreRequest(testID))
	require.NoError(t, err)
	assert.Equal(t, testID, created.ID)
	assert.Equal(t, int64(1), created.Version)

	got, err := s.Get(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", got.StudentID)
	assert.Equal(t, approval.StageTutor, got.Approval.CurrentStage)

	_, err = s.Create(ctx, newFirestoreRequest(testID))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestFirestoreStore_Update(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, newFirestoreRequest(testID))
	require.NoError(t, err)

	updated, err := s.Update(ctx, testID, func(req *models.Request) error {
		req.Department = "IT"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	got, err := s.Get(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, "IT", got.Department)
	assert.Equal(t, int64(2), got.Version)
}

func TestFirestoreStore_UpdateMutationErrorWritesNothing(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, newFirestoreRequest(testID))
	require.NoError(t, err)

	errRejected := errors.New("rejected by guard")
	_, err = s.Update(ctx, testID, func(req *models.Request) error {
		req.Department = "IT"
		return errRejected
	})
	assert.ErrorIs(t, err, errRejected)

	got, err := s.Get(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, "CSE", got.Department)
	assert.Equal(t, int64(1), got.Version)
}

func TestFirestoreStore_UpdateMissingRequest(t *testing.T) {
	s := newEmulatorStore(t)

	_, err := s.Update(context.Background(), "missing", func(*models.Request) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}
