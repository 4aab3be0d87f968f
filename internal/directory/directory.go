package directory

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
)

// ErrUnknownUser is returned when an id is neither staff nor student.
var ErrUnknownUser = errors.New("unknown user")

// Directory resolves an authenticated user id into an Actor with a closed role.
type Directory interface {
	Lookup(ctx context.Context, id string) (approval.Actor, error)
}

type staffRecord struct {
	Name        string `firestore:"name"`
	Designation string `firestore:"designation"`
	Class       string `firestore:"class"`
	Department  string `firestore:"department"`
}

type studentRecord struct {
	Name       string `firestore:"name"`
	RollNumber string `firestore:"rollNumber"`
	Class      string `firestore:"class"`
	Department string `firestore:"department"`
}

// FirestoreDirectory reads staff and student profiles from two collections.
// Staff designations are parsed into roles here and nowhere else.
type FirestoreDirectory struct {
	client   *firestore.Client
	staff    string
	students string
}

func NewFirestoreDirectory(client *firestore.Client, staffCollection, studentsCollection string) *FirestoreDirectory {
	return &FirestoreDirectory{client: client, staff: staffCollection, students: studentsCollection}
}

func (d *FirestoreDirectory) Lookup(ctx context.Context, id string) (approval.Actor, error) {
	if id == "" {
		return approval.Actor{}, ErrUnknownUser
	}

	snap, err := d.client.Collection(d.staff).Doc(id).Get(ctx)
	switch {
	case err == nil:
		var rec staffRecord
		if err := snap.DataTo(&rec); err != nil {
			return approval.Actor{}, fmt.Errorf("failed to decode staff %s: %w", id, err)
		}
		return staffActor(id, rec)
	case status.Code(err) != codes.NotFound:
		return approval.Actor{}, fmt.Errorf("failed to read staff %s: %w", id, err)
	}

	snap, err = d.client.Collection(d.students).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return approval.Actor{}, fmt.Errorf("%w: %s", ErrUnknownUser, id)
		}
		return approval.Actor{}, fmt.Errorf("failed to read student %s: %w", id, err)
	}
	var rec studentRecord
	if err := snap.DataTo(&rec); err != nil {
		return approval.Actor{}, fmt.Errorf("failed to decode student %s: %w", id, err)
	}
	return approval.Actor{
		ID:         id,
		Name:       rec.Name,
		Role:       approval.RoleStudent,
		Class:      rec.Class,
		Department: rec.Department,
		RollNumber: rec.RollNumber,
	}, nil
}

func staffActor(id string, rec staffRecord) (approval.Actor, error) {
	role, err := approval.ParseRole(rec.Designation)
	if err != nil {
		return approval.Actor{}, fmt.Errorf("staff %s: %w", id, err)
	}
	return approval.Actor{
		ID:         id,
		Name:       rec.Name,
		Role:       role,
		Class:      rec.Class,
		Department: rec.Department,
	}, nil
}

// Static is an in-memory directory for local runs and tests.
type Static map[string]approval.Actor

func (s Static) Lookup(_ context.Context, id string) (approval.Actor, error) {
	a, ok := s[id]
	if !ok {
		return approval.Actor{}, fmt.Errorf("%w: %s", ErrUnknownUser, id)
	}
	a.ID = id
	return a, nil
}
