package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/audit"
	"github.com/Lllllllleong/bonafideflow/internal/config"
	"github.com/Lllllllleong/bonafideflow/internal/directory"
	"github.com/Lllllllleong/bonafideflow/internal/extract"
	"github.com/Lllllllleong/bonafideflow/internal/gcp"
	"github.com/Lllllllleong/bonafideflow/internal/models"
	"github.com/Lllllllleong/bonafideflow/internal/store"
)

var testNow = time.Date(2026, 6, 2, 11, 0, 0, 0, time.UTC)

// memRepo is an in-memory Repository. Mutations run on a copy, so a failed
// mutation leaves the stored request untouched.
type memRepo struct {
	mu   sync.Mutex
	reqs map[string]*models.Request
	seq  int
}

func newMemRepo() *memRepo {
	return &memRepo{reqs: make(map[string]*models.Request)}
}

func (m *memRepo) clone(r *models.Request) *models.Request {
	data, _ := json.Marshal(r)
	var out models.Request
	_ = json.Unmarshal(data, &out)
	return &out
}

func (m *memRepo) Create(_ context.Context, req *models.Request) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if req.ID == "" {
		req.ID = fmt.Sprintf("req-%d", m.seq)
	}
	if _, ok := m.reqs[req.ID]; ok {
		return nil, fmt.Errorf("%w: %s", store.ErrConflict, req.ID)
	}
	req.Version = 1
	req.CreatedAt = testNow.Add(time.Duration(m.seq) * time.Second)
	req.UpdatedAt = req.CreatedAt
	m.reqs[req.ID] = m.clone(req)
	return req, nil
}

func (m *memRepo) Get(_ context.Context, id string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return m.clone(r), nil
}

func (m *memRepo) Update(_ context.Context, id string, fn store.Mutation) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	work := m.clone(r)
	if err := fn(work); err != nil {
		return nil, err
	}
	work.ID = id
	work.Version = r.Version + 1
	work.UpdatedAt = r.UpdatedAt.Add(time.Second)
	m.reqs[id] = m.clone(work)
	return work, nil
}

func (m *memRepo) list(keep func(*models.Request) bool) []*models.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Request
	for _, r := range m.reqs {
		if keep(r) {
			out = append(out, m.clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memRepo) ListByStage(_ context.Context, stage approval.Stage) ([]*models.Request, error) {
	return m.list(func(r *models.Request) bool { return r.Approval.CurrentStage == stage }), nil
}

func (m *memRepo) ListByStudent(_ context.Context, studentID string, st approval.Status) ([]*models.Request, error) {
	return m.list(func(r *models.Request) bool {
		return r.StudentID == studentID && (st == "" || r.Approval.Status == st)
	}), nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reqs)
}

type storedBlob struct {
	data     []byte
	metadata map[string]string
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string]storedBlob
	order   []string
	putErr  error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string]storedBlob)}
}

func (b *fakeBlobs) Bucket() string { return "documents" }

func (b *fakeBlobs) Put(_ context.Context, object string, data []byte, _ string, metadata map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return b.putErr
	}
	b.objects[object] = storedBlob{data: data, metadata: metadata}
	b.order = append(b.order, object)
	return nil
}

func (b *fakeBlobs) Get(_ context.Context, _, object string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[object]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gcp.ErrObjectNotFound, object)
	}
	return o.data, nil
}

// fakeReader treats everything after the PDF header as the text layer.
type fakeReader struct{}

func (fakeReader) Text(_ context.Context, data []byte) (string, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", fmt.Errorf("%w: missing PDF header", extract.ErrUnreadable)
	}
	return strings.TrimSpace(strings.TrimPrefix(string(data), "%PDF-1.4")), nil
}

func (r fakeReader) JoinedText(ctx context.Context, docs ...[]byte) (string, error) {
	var parts []string
	for _, d := range docs {
		t, err := r.Text(ctx, d)
		if err != nil {
			return "", err
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, "\n\n"), nil
}

// stubExtractor returns the queued records in order, repeating the last one.
type stubExtractor struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
	calls   int
	texts   []string
}

func (s *stubExtractor) Name() string { return "stub" }

func (s *stubExtractor) Extract(_ context.Context, text string, _ audit.Schema, _ *audit.ExpectedValues) (audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.texts = append(s.texts, text)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.records) == 0 {
		return audit.Record{}, nil
	}
	i := min(s.calls-1, len(s.records)-1)
	return s.records[i].Clone(), nil
}

type singleModel struct {
	ext audit.Extractor
}

func (m singleModel) Select(model string) (audit.Extractor, string, error) {
	if model == "" {
		model = extract.ModelGemini
	}
	return m.ext, model, nil
}

var people = directory.Static{
	"stu-1":    {Name: "Priya Raman", Role: approval.RoleStudent, Class: "BE_CSE_G1", Department: "CSE", RollNumber: "21CS045"},
	"stu-2":    {Name: "Arun Kumar", Role: approval.RoleStudent, Class: "BE_ME_G2", Department: "MECH", RollNumber: "21ME007"},
	"tutor-1":  {Name: "Tutor One", Role: approval.RoleTutor, Class: "BE CSE G1"},
	"tutor-2":  {Name: "Tutor Two", Role: approval.RoleTutor, Class: "BE ME G2"},
	"hod-1":    {Name: "HOD One", Role: approval.RoleHOD, Department: "CSE"},
	"hod-mech": {Name: "HOD Mech", Role: approval.RoleHOD, Department: "MECH"},
	"dean-1":   {Name: "Dean One", Role: approval.RoleDean},
}

type harness struct {
	backend *Backend
	repo    *memRepo
	blobs   *fakeBlobs
	ext     *stubExtractor
}

func newHarness(t *testing.T, mode string, ext *stubExtractor) *harness {
	t.Helper()
	cfg := &config.Config{}
	cfg.Audit.Mode = mode
	cfg.Extraction.MaxAttempts = audit.MaxAttempts

	h := &harness{repo: newMemRepo(), blobs: newFakeBlobs(), ext: ext}
	h.backend = &Backend{
		Config:    cfg,
		Logger:    zaptest.NewLogger(t),
		Repo:      h.repo,
		Directory: people,
		Blobs:     h.blobs,
		Reader:    fakeReader{},
		Models:    singleModel{ext: ext},
		Chain:     approval.NewChain(false),
		now:       func() time.Time { return testNow },
	}
	return h
}

func (h *harness) submitter() *SubmitterFunction { return &SubmitterFunction{Backend: h.backend} }
func (h *harness) reviewer() *ReviewerFunction   { return &ReviewerFunction{Backend: h.backend} }
func (h *harness) viewer() *ViewerFunction       { return &ViewerFunction{Backend: h.backend} }
func (h *harness) auditor() *AuditorFunction     { return &AuditorFunction{Backend: h.backend} }

func pdf(text string) []byte {
	return []byte("%PDF-1.4 " + text)
}

func bonafideSubmission() *models.SubmitRequest {
	return &models.SubmitRequest{
		Kind:   "bonafide",
		Mobile: "98765-43210",
		Reason: "Passport application",
		Files: []models.UploadedFile{
			{Kind: models.AttachmentPermissionLetter, Filename: "letter.pdf", Data: pdf("Bonafide request of Priya Raman")},
		},
	}
}

func internshipSubmission() *models.SubmitRequest {
	return &models.SubmitRequest{
		Kind:           "internship",
		Mobile:         "9876543210",
		CompanyName:    "Acme Robotics",
		InternshipType: "summer",
		StartDate:      "2026-05-01",
		EndDate:        "2026-07-31",
		ParentName:     "R. Raman",
		ParentMobile:   "(987) 654 3211",
		Files: []models.UploadedFile{
			{Kind: models.AttachmentPermissionLetter, Filename: "permission.pdf", Data: pdf("Permission form")},
			{Kind: models.AttachmentOfferLetter, Filename: "offer.pdf", Data: pdf("Offer of internship")},
			{Kind: models.AttachmentParentConsent, Filename: "consent.pdf", Data: pdf("Parent consent")},
		},
	}
}

// signedBonafide is a complete extraction that matches stu-1.
func signedBonafide() audit.Record {
	return audit.Record{
		audit.FieldName:         "Priya Raman",
		audit.FieldRollNumber:   "21CS045",
		audit.FieldDepartment:   "CSE",
		audit.FieldReason:       "Passport application",
		audit.FieldHasSignature: true,
		audit.FieldExplanation:  "Form is complete and signed.",
	}
}

func unsignedBonafide() audit.Record {
	r := signedBonafide().Clone()
	delete(r, audit.FieldHasSignature)
	r[audit.FieldExplanation] = "No signature found."
	return r
}

func entryStatus(checklist []audit.ChecklistEntry, field string) audit.EntryStatus {
	for _, e := range checklist {
		if e.Field == field {
			return e.Status
		}
	}
	return ""
}
