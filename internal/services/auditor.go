package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Lllllllleong/bonafideflow/internal/audit"
	"github.com/Lllllllleong/bonafideflow/internal/config"
	"github.com/Lllllllleong/bonafideflow/internal/gcp"
	"github.com/Lllllllleong/bonafideflow/internal/metrics"
	"github.com/Lllllllleong/bonafideflow/internal/models"
)

var (
	// errAlreadyAudited aborts an audit update that lost a race with another one.
	errAlreadyAudited = errors.New("request already audited")
	// errTransient marks a failure that is not recorded on the request.
	errTransient = errors.New("transient failure")
)

// AuditorFunction runs deferred audit cycles when a permission letter lands
// in the documents bucket.
type AuditorFunction struct {
	*Backend
}

func NewAuditor(ctx context.Context) (*AuditorFunction, error) {
	b, err := NewBackend(ctx)
	if err != nil {
		return nil, err
	}
	return &AuditorFunction{Backend: b}, nil
}

// Process handles one object-finalize event. Events for other objects and
// for requests that were already audited are ignored. A returned error asks
// the platform to redeliver the event.
func (f *AuditorFunction) Process(ctx context.Context, e models.AuditEvent) error {
	logCtx := f.Logger.With(zap.String("gcsBucket", e.Bucket), zap.String("gcsObject", e.Name))
	defer f.pushMetrics(ctx, logCtx)

	if f.Config.Audit.Mode != config.AuditModeDeferred {
		logCtx.Debug("Audits run inline. Skipping finalize event.")
		return nil
	}
	requestID := e.Metadata["requestId"]
	if requestID == "" || e.Metadata["kind"] != models.AttachmentPermissionLetter {
		logCtx.Debug("Object does not start an audit. Skipping.")
		return nil
	}
	logCtx = logCtx.With(zap.String("requestId", requestID))

	_, err := f.AuditStoredRequest(ctx, requestID)
	switch {
	case err == nil, errors.Is(err, errAlreadyAudited):
		return nil
	case errors.Is(err, ErrNotFound):
		// The finalize event can arrive before the request is written.
		logCtx.Warn("Request not found yet; event will be redelivered.")
		return err
	default:
		logCtx.Error("Deferred audit failed.", zap.Error(err))
		return err
	}
}

func (f *AuditorFunction) pushMetrics(ctx context.Context, logCtx *zap.Logger) {
	url := f.Config.Metrics.PushGatewayURL
	if url == "" {
		return
	}
	if err := metrics.Push(context.WithoutCancel(ctx), url, "document-auditor"); err != nil {
		logCtx.Warn("Failed to push metrics.", zap.String("gateway", url), zap.Error(err))
	}
}

// AuditStoredRequest runs one audit cycle for a persisted request and stores
// the outcome. Unreadable documents and extractor failures are recorded on
// the request as a failed audit.
func (f *AuditorFunction) AuditStoredRequest(ctx context.Context, requestID string) (*models.Request, error) {
	logCtx := f.Logger.With(zap.String("requestId", requestID))

	var updated *models.Request
	err := f.withLock(ctx, requestID, func(ctx context.Context) error {
		req, err := f.Repo.Get(ctx, requestID)
		if err != nil {
			return translate(err)
		}
		if auditDone(req.AuditStatus) {
			logCtx.Info("Request already audited. Skipping.", zap.String("auditStatus", req.AuditStatus))
			updated = req
			return errAlreadyAudited
		}

		model := req.AIModelUsed
		res, used, cycleErr := f.auditDocuments(ctx, logCtx, req)
		if errors.Is(cycleErr, errTransient) {
			return cycleErr
		}
		if used != "" {
			model = used
		}

		updated, err = f.Repo.Update(ctx, requestID, func(r *models.Request) error {
			if auditDone(r.AuditStatus) {
				return errAlreadyAudited
			}
			if cycleErr != nil {
				r.MarkAuditFailed(model, cycleErr)
				return nil
			}
			r.ApplyAudit(res, model)
			return nil
		})
		if err != nil {
			return translate(err)
		}
		return nil
	})
	if errors.Is(err, errAlreadyAudited) {
		return updated, err
	}
	if err != nil {
		return nil, err
	}
	logCtx.Info("Deferred audit stored.", zap.String("auditStatus", updated.AuditStatus), zap.Bool("isValid", updated.IsValid))
	return updated, nil
}

// auditDocuments downloads and reads the request's documents, then runs the
// cycle. Download errors other than a missing object are marked transient.
func (f *AuditorFunction) auditDocuments(ctx context.Context, logCtx *zap.Logger, req *models.Request) (*audit.Result, string, error) {
	attachments := req.TextAttachments()
	if len(attachments) == 0 {
		return nil, "", fmt.Errorf("%w: request has no permission letter", ErrDocumentRead)
	}
	docs := make([][]byte, 0, len(attachments))
	for _, a := range attachments {
		data, err := f.Blobs.Get(ctx, a.Bucket, a.Object)
		if err != nil {
			logCtx.Error("Failed to download attachment.", zap.String("gcsUri", a.GCSUri()), zap.Error(err))
			if !errors.Is(err, gcp.ErrObjectNotFound) {
				return nil, "", fmt.Errorf("%w: %w", errTransient, err)
			}
			return nil, "", fmt.Errorf("%w: %w", ErrDocumentRead, err)
		}
		docs = append(docs, data)
	}
	text, err := f.Reader.JoinedText(ctx, docs...)
	if err != nil {
		logCtx.Warn("Stored documents are unreadable.", zap.Error(err))
		return nil, "", fmt.Errorf("%w: %w", ErrDocumentRead, err)
	}

	res, model, err := f.runCycle(ctx, text, req.Kind, req.AIModelUsed, req.Expected())
	if err != nil {
		logCtx.Error("Audit cycle failed; request kept without AI results.", zap.String("model", model), zap.Error(err))
		return nil, model, err
	}
	return res, model, nil
}

// auditDone reports whether a request needs no deferred audit: it finished,
// was pre-checked, or an inline cycle owns it.
func auditDone(status string) bool {
	switch status {
	case models.AuditCompleted, models.AuditSkipped, models.AuditFailed, models.AuditRunning:
		return true
	}
	return false
}
