package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/metrics"
	"github.com/Lllllllleong/bonafideflow/internal/models"
)

// ReviewerFunction applies reviewer decisions to the approval chain.
type ReviewerFunction struct {
	*Backend
}

func NewReviewer(ctx context.Context) (*ReviewerFunction, error) {
	b, err := NewBackend(ctx)
	if err != nil {
		return nil, err
	}
	return &ReviewerFunction{Backend: b}, nil
}

// Process approves or rejects the current stage of a request. The guard and
// the transition run inside one read-modify-write, so of two reviewers racing
// on the same stage only the first succeeds.
func (f *ReviewerFunction) Process(ctx context.Context, userID string, in *models.ActOnStageRequest) (*models.RequestView, error) {
	logCtx := f.Logger.With(zap.String("userId", userID), zap.String("requestId", in.RequestID))

	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	action, err := approval.ParseAction(in.Action)
	if err != nil {
		return nil, translate(err)
	}
	actor, err := f.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	comment := strings.TrimSpace(in.Comment)

	var (
		updated *models.Request
		stage   approval.Stage
	)
	err = f.withLock(ctx, in.RequestID, func(ctx context.Context) error {
		var err error
		updated, err = f.Repo.Update(ctx, in.RequestID, func(r *models.Request) error {
			stage = r.Approval.CurrentStage
			return f.Chain.Act(&r.Approval, actor, r.Subject(), action, comment, f.now().UTC())
		})
		return err
	})
	if err != nil {
		err = translate(err)
		metrics.StageActionsDenied.WithLabelValues(denialReason(err)).Inc()
		logCtx.Warn("Stage action refused.", zap.String("role", string(actor.Role)), zap.String("action", string(action)), zap.Error(err))
		return nil, err
	}

	metrics.StageTransitions.WithLabelValues(string(stage), string(action)).Inc()
	logCtx.Info("Stage action applied.",
		zap.String("stage", string(stage)),
		zap.String("action", string(action)),
		zap.String("role", string(actor.Role)),
		zap.String("nextStage", string(updated.Approval.CurrentStage)),
		zap.String("status", string(updated.Approval.Status)),
	)
	return f.view(updated), nil
}

func denialReason(err error) string {
	for _, s := range []error{ErrNotFound, ErrUnauthorized, ErrInvalidStage, ErrConflict} {
		if errors.Is(err, s) {
			return strings.ToLower(s.Error())
		}
	}
	return "error"
}

