package models

import (
	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/audit"
)

// These structs define the JSON payloads of the HTTP functions. The acting
// user is identified upstream and passed in the X-User-Id header.

// UploadedFile is a document sent inline with a request, base64 encoded.
type UploadedFile struct {
	Kind        string `json:"kind" validate:"required,oneof=permission_letter offer_letter parent_consent"`
	Filename    string `json:"filename" validate:"required,pdf_filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data" validate:"required,max_pdf_size"`
}

// PreChecked is an audit result the client obtained from check-document and
// sends back with the submission. Only Extracted is trusted; the checklist
// and verdict are recomputed on submission.
type PreChecked struct {
	Extracted map[string]any         `json:"extracted"`
	Checklist []audit.ChecklistEntry `json:"checklist"`
	IsValid   bool                   `json:"isValid"`
}

// SubmitRequest is the input for the request-submitter function.
type SubmitRequest struct {
	Kind           string         `json:"kind" validate:"required,oneof=bonafide internship"`
	Mobile         string         `json:"mobile" validate:"required,mobile"`
	Reason         string         `json:"reason" validate:"required_if=Kind bonafide,max=500"`
	CompanyName    string         `json:"companyName" validate:"required_if=Kind internship,max=200"`
	InternshipType string         `json:"internshipType" validate:"omitempty,oneof=summer winter"`
	StartDate      string         `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate        string         `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	ParentName     string         `json:"parentName" validate:"max=100"`
	ParentMobile   string         `json:"parentMobile" validate:"omitempty,mobile"`
	AIModel        string         `json:"aiModel" validate:"omitempty,oneof=gemini groq"`
	Files          []UploadedFile `json:"files" validate:"required,min=1,dive"`
	PreChecked     *PreChecked    `json:"preChecked,omitempty"`
}

// SubmitResponse is the output of the request-submitter function.
type SubmitResponse struct {
	Request *RequestView `json:"request"`
}

// ActOnStageRequest is the input for the stage-reviewer function.
type ActOnStageRequest struct {
	RequestID string `json:"requestId" validate:"required"`
	Action    string `json:"action" validate:"required"`
	Comment   string `json:"comment" validate:"max=1000"`
}

// CheckDocumentRequest is the input for a standalone audit check.
type CheckDocumentRequest struct {
	Kind    string       `json:"kind" validate:"required,oneof=bonafide internship"`
	AIModel string       `json:"aiModel" validate:"omitempty,oneof=gemini groq"`
	File    UploadedFile `json:"file"`
}

// CheckDocumentResponse is the outcome of a standalone audit check.
type CheckDocumentResponse struct {
	Extracted  map[string]any         `json:"extracted"`
	Checklist  []audit.ChecklistEntry `json:"checklist"`
	IsValid    bool                   `json:"isValid"`
	Iterations int                    `json:"iterations"`
	AIModel    string                 `json:"aiModel"`
}

// RequestView is a request as returned to clients, with its rendered chain.
type RequestView struct {
	*Request
	Phase         string          `json:"phase"`
	ApprovalChain []approval.Step `json:"approvalChain"`
}

// ListResponse is the output of the list endpoints.
type ListResponse struct {
	Requests []*RequestView `json:"requests"`
	Count    int            `json:"count"`
}

// ErrorResponse is written for any failed HTTP call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AuditEvent is the payload of a GCS object-finalize CloudEvent.
type AuditEvent struct {
	Bucket   string            `json:"bucket"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}
