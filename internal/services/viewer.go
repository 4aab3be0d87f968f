package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/models"
)

// ViewerFunction serves the read side: a reviewer's queue, a student's
// history and single requests.
type ViewerFunction struct {
	*Backend
}

func NewViewer(ctx context.Context) (*ViewerFunction, error) {
	b, err := NewBackend(ctx)
	if err != nil {
		return nil, err
	}
	return &ViewerFunction{Backend: b}, nil
}

// ListIncoming returns the requests waiting at the actor's stage and inside
// the actor's class or department.
func (f *ViewerFunction) ListIncoming(ctx context.Context, userID string) (*models.ListResponse, error) {
	actor, err := f.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	stage, ok := f.Chain.StageFor(actor.Role)
	if !ok {
		return nil, fmt.Errorf("%w: role %q reviews no stage", ErrUnauthorized, actor.Role)
	}

	reqs, err := f.Repo.ListByStage(ctx, stage)
	if err != nil {
		return nil, translate(err)
	}
	var incoming []*models.Request
	for _, r := range reqs {
		if f.Chain.InScope(stage, actor, r.Subject()) {
			incoming = append(incoming, r)
		}
	}
	f.Logger.Debug("Listed incoming requests.",
		zap.String("userId", userID), zap.String("stage", string(stage)),
		zap.Int("atStage", len(reqs)), zap.Int("inScope", len(incoming)))
	return f.views(incoming), nil
}

// ListStudentRequests returns the calling student's requests, optionally
// filtered by overall status.
func (f *ViewerFunction) ListStudentRequests(ctx context.Context, userID, statusFilter string) (*models.ListResponse, error) {
	actor, err := f.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if actor.Role != approval.RoleStudent {
		return nil, fmt.Errorf("%w: only students have a request history", ErrUnauthorized)
	}
	var status approval.Status
	if statusFilter != "" {
		if status, err = approval.ParseStatus(statusFilter); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	reqs, err := f.Repo.ListByStudent(ctx, actor.ID, status)
	if err != nil {
		return nil, translate(err)
	}
	return f.views(reqs), nil
}

// GetRequest returns one request to its owner or to a reviewer whose stage
// the request has reached.
func (f *ViewerFunction) GetRequest(ctx context.Context, userID, requestID string) (*models.RequestView, error) {
	actor, err := f.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}
	req, err := f.Repo.Get(ctx, requestID)
	if err != nil {
		return nil, translate(err)
	}
	if actor.ID != req.StudentID && !f.Chain.CanView(&req.Approval, actor, req.Subject()) {
		return nil, fmt.Errorf("%w: request %s is not visible to %s", ErrUnauthorized, requestID, userID)
	}
	return f.view(req), nil
}
