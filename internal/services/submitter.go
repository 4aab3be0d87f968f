package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/audit"
	"github.com/Lllllllleong/bonafideflow/internal/config"
	"github.com/Lllllllleong/bonafideflow/internal/models"
)

const maxConcurrentUploads = 3

// SubmitterFunction creates requests and runs their first audit cycle.
type SubmitterFunction struct {
	*Backend
}

func NewSubmitter(ctx context.Context) (*SubmitterFunction, error) {
	b, err := NewBackend(ctx)
	if err != nil {
		return nil, err
	}
	return &SubmitterFunction{Backend: b}, nil
}

// Process handles one submission from a student. The request is persisted
// even when the extractor fails; only unreadable documents, invalid input and
// storage errors fail the call.
func (f *SubmitterFunction) Process(ctx context.Context, userID string, in *models.SubmitRequest) (*models.SubmitResponse, error) {
	logCtx := f.Logger.With(zap.String("userId", userID), zap.String("kind", in.Kind))

	student, err := f.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if student.Role != approval.RoleStudent {
		return nil, fmt.Errorf("%w: only students submit requests", ErrUnauthorized)
	}
	internship, err := validateSubmission(in)
	if err != nil {
		return nil, err
	}
	if err := validateRollNumber(student.RollNumber); err != nil {
		return nil, err
	}

	req := f.newRequest(student, in, internship)
	logCtx = logCtx.With(zap.String("requestId", req.ID))

	inline := f.Config.Audit.Mode != config.AuditModeDeferred
	preChecked := usablePreCheck(in.PreChecked)

	// Text is read before anything is written so an unreadable document
	// leaves no partial request behind.
	var text string
	if inline && !preChecked {
		text, err = f.Reader.JoinedText(ctx, textDocuments(req, in.Files)...)
		if err != nil {
			logCtx.Warn("Failed to read submitted documents.", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrDocumentRead, err)
		}
	}

	if err := f.uploadAttachments(ctx, logCtx, req, in.Files); err != nil {
		return nil, err
	}

	switch {
	case preChecked:
		if err := applyPreCheck(req, in.PreChecked); err != nil {
			return nil, err
		}
	case inline:
		req.AuditStatus = models.AuditRunning
	default:
		req.AuditStatus = models.AuditPending
	}

	if _, err := f.Repo.Create(ctx, req); err != nil {
		logCtx.Error("Failed to create request.", zap.Error(err))
		return nil, translate(err)
	}
	logCtx.Info("Request created.", zap.String("auditStatus", req.AuditStatus))

	if !inline || preChecked {
		return &models.SubmitResponse{Request: f.view(req)}, nil
	}

	updated, err := f.auditInline(ctx, logCtx, req, text)
	if err != nil {
		return nil, err
	}
	return &models.SubmitResponse{Request: f.view(updated)}, nil
}

// auditInline runs the audit cycle for a freshly created request and
// persists the outcome. Extractor failures are recorded, not returned.
func (f *SubmitterFunction) auditInline(ctx context.Context, logCtx *zap.Logger, req *models.Request, text string) (*models.Request, error) {
	res, model, cycleErr := f.runCycle(ctx, text, req.Kind, req.AIModelUsed, req.Expected())
	if cycleErr != nil {
		logCtx.Error("Audit cycle failed; request kept without AI results.", zap.String("model", model), zap.Error(cycleErr))
	}

	var updated *models.Request
	err := f.withLock(ctx, req.ID, func(ctx context.Context) error {
		var err error
		updated, err = f.Repo.Update(ctx, req.ID, func(r *models.Request) error {
			if cycleErr != nil {
				r.MarkAuditFailed(model, cycleErr)
				return nil
			}
			r.ApplyAudit(res, model)
			return nil
		})
		return err
	})
	if err != nil {
		logCtx.Error("Failed to persist audit outcome.", zap.Error(err))
		return nil, translate(err)
	}
	return updated, nil
}

func (f *SubmitterFunction) newRequest(student approval.Actor, in *models.SubmitRequest, internship *models.InternshipDetails) *models.Request {
	now := f.now().UTC()
	req := &models.Request{
		ID:          uuid.New().String(),
		Kind:        audit.SchemaVariant(in.Kind),
		StudentID:   student.ID,
		StudentName: student.Name,
		RollNumber:  student.RollNumber,
		Class:       student.Class,
		Department:  student.Department,
		Mobile:      normalizeMobile(in.Mobile),
		Reason:      strings.TrimSpace(in.Reason),
		Internship:  internship,
		Extracted:   map[string]any{},
		AIModelUsed: in.AIModel,
		Approval:    f.Chain.Start(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, file := range in.Files {
		sum := sha256.Sum256(file.Data)
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/pdf"
		}
		req.Attachments = append(req.Attachments, models.Attachment{
			Kind:        file.Kind,
			Bucket:      f.Blobs.Bucket(),
			Object:      fmt.Sprintf("requests/%s/%s.pdf", req.ID, file.Kind),
			Filename:    file.Filename,
			ContentType: contentType,
			Size:        int64(len(file.Data)),
			FileHash:    hex.EncodeToString(sum[:]),
		})
	}
	return req
}

// uploadAttachments stores every file concurrently. The permission letter is
// written last because its finalize event starts a deferred audit.
func (f *SubmitterFunction) uploadAttachments(ctx context.Context, logCtx *zap.Logger, req *models.Request, files []models.UploadedFile) error {
	data := make(map[string][]byte, len(files))
	for _, file := range files {
		data[file.Kind] = file.Data
	}
	put := func(ctx context.Context, a models.Attachment) error {
		meta := map[string]string{"requestId": req.ID, "kind": a.Kind, "studentId": req.StudentID}
		if err := f.Blobs.Put(ctx, a.Object, data[a.Kind], a.ContentType, meta); err != nil {
			return fmt.Errorf("%s: %w", a.Kind, err)
		}
		return nil
	}

	var trigger *models.Attachment
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentUploads)
	for i := range req.Attachments {
		a := req.Attachments[i]
		if a.Kind == models.AttachmentPermissionLetter {
			trigger = &a
			continue
		}
		eg.Go(func() error { return put(gctx, a) })
	}
	err := eg.Wait()
	if err == nil && trigger != nil {
		err = put(ctx, *trigger)
	}
	if err != nil {
		logCtx.Error("Failed to upload attachments.", zap.Error(err))
		return fmt.Errorf("failed to upload attachments: %w", err)
	}
	logCtx.Info("Attachments uploaded.", zap.Int("count", len(req.Attachments)))
	return nil
}

// textDocuments returns the submitted bytes of the attachments whose text is
// extracted, in extraction order.
func textDocuments(req *models.Request, files []models.UploadedFile) [][]byte {
	byKind := make(map[string][]byte, len(files))
	for _, file := range files {
		byKind[file.Kind] = file.Data
	}
	var docs [][]byte
	for _, a := range req.TextAttachments() {
		docs = append(docs, byKind[a.Kind])
	}
	return docs
}

// usablePreCheck reports whether a client-supplied extraction can stand in
// for another extractor call.
func usablePreCheck(p *models.PreChecked) bool {
	return p != nil && len(p.Extracted) > 0
}

// applyPreCheck reuses a client-supplied extraction. The checklist and the
// verdict are recomputed against the student's profile; the client's own
// checklist and isValid are ignored.
func applyPreCheck(req *models.Request, p *models.PreChecked) error {
	schema, err := audit.SchemaFor(req.Kind)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	rec := audit.Record(p.Extracted).Clone()
	checklist, valid := audit.Audit(schema, rec, req.Expected())

	req.AuditStatus = models.AuditSkipped
	req.Extracted = map[string]any(rec)
	req.Checklist = checklist
	req.IsValid = valid
	req.Explanation = rec.Explanation()
	req.SuspiciousIndicators = rec.StringList(audit.FieldSuspiciousIndicators)
	if c, ok := rec.Confidence(); ok {
		req.AIConfidence = &c
	}
	return nil
}

// CheckDocument runs an audit cycle on one uploaded document without creating
// a request. Only known users may call it.
func (f *SubmitterFunction) CheckDocument(ctx context.Context, userID string, in *models.CheckDocumentRequest) (*models.CheckDocumentResponse, error) {
	logCtx := f.Logger.With(zap.String("userId", userID), zap.String("kind", in.Kind))

	caller, err := f.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	kind, err := audit.ParseSchemaVariant(in.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	text, err := f.Reader.Text(ctx, in.File.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentRead, err)
	}

	var expected *audit.ExpectedValues
	if caller.Role == approval.RoleStudent {
		expected = &audit.ExpectedValues{Name: caller.Name, RollNumber: caller.RollNumber, Department: caller.Department}
	}
	res, model, err := f.runCycle(ctx, text, kind, in.AIModel, expected)
	if err != nil {
		logCtx.Error("Document check failed.", zap.String("model", model), zap.Error(err))
		return nil, err
	}
	return &models.CheckDocumentResponse{
		Extracted:  map[string]any(res.Extracted.Clone()),
		Checklist:  res.Checklist,
		IsValid:    res.IsValid,
		Iterations: res.Iterations,
		AIModel:    model,
	}, nil
}
