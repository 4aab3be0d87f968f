package models

import (
	"time"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/audit"
)

// InternshipDetails are the extra submitted fields of an internship request.
type InternshipDetails struct {
	CompanyName    string    `json:"companyName" firestore:"companyName"`
	InternshipType string    `json:"internshipType" firestore:"internshipType"` // summer | winter
	StartDate      time.Time `json:"startDate" firestore:"startDate"`
	EndDate        time.Time `json:"endDate" firestore:"endDate"`
	ParentName     string    `json:"parentName,omitempty" firestore:"parentName,omitempty"`
	ParentMobile   string    `json:"parentMobile,omitempty" firestore:"parentMobile,omitempty"`
}

// Request is the persisted record of a bonafide or internship request.
// Approval holds the chain state; Version increments on every write.
type Request struct {
	ID   string              `json:"id" firestore:"-"`
	Kind audit.SchemaVariant `json:"kind" firestore:"kind"`

	StudentID   string `json:"studentId" firestore:"studentId"`
	StudentName string `json:"studentName" firestore:"studentName"`
	RollNumber  string `json:"rollNumber" firestore:"rollNumber"`
	Class       string `json:"class" firestore:"class"`
	Department  string `json:"department" firestore:"department"`
	Mobile      string `json:"mobile,omitempty" firestore:"mobile,omitempty"`
	Reason      string `json:"reason,omitempty" firestore:"reason,omitempty"`

	Internship  *InternshipDetails `json:"internship,omitempty" firestore:"internship,omitempty"`
	Attachments []Attachment       `json:"attachments" firestore:"attachments"`

	AuditStatus          string                 `json:"auditStatus" firestore:"auditStatus"`
	AuditError           string                 `json:"auditError,omitempty" firestore:"auditError,omitempty"`
	Extracted            map[string]any         `json:"extracted" firestore:"extracted"`
	Checklist            []audit.ChecklistEntry `json:"checklist" firestore:"checklist"`
	IsValid              bool                   `json:"isValid" firestore:"isValid"`
	Explanation          string                 `json:"explanation,omitempty" firestore:"explanation,omitempty"`
	AIConfidence         *float64               `json:"aiConfidence,omitempty" firestore:"aiConfidence,omitempty"`
	AIModelUsed          string                 `json:"aiModelUsed,omitempty" firestore:"aiModelUsed,omitempty"`
	AIIterations         int                    `json:"aiIterations" firestore:"aiIterations"`
	SuspiciousIndicators []string               `json:"suspiciousIndicators,omitempty" firestore:"suspiciousIndicators,omitempty"`

	Approval approval.State `json:"approval" firestore:"approval"`

	Version   int64     `json:"version" firestore:"version"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Subject returns the class and department reviewers are scoped by.
func (r *Request) Subject() approval.Subject {
	return approval.Subject{Class: r.Class, Department: r.Department}
}

// Expected returns the identity the extraction is cross-checked against.
func (r *Request) Expected() *audit.ExpectedValues {
	return &audit.ExpectedValues{
		Name:       r.StudentName,
		RollNumber: r.RollNumber,
		Department: r.Department,
	}
}

// Attachment returns the first attachment of a kind.
func (r *Request) Attachment(kind string) (Attachment, bool) {
	for _, a := range r.Attachments {
		if a.Kind == kind {
			return a, true
		}
	}
	return Attachment{}, false
}

// TextAttachments lists the attachments whose text is fed to the extractor:
// the permission letter, then the offer letter for internships.
func (r *Request) TextAttachments() []Attachment {
	var out []Attachment
	if a, ok := r.Attachment(AttachmentPermissionLetter); ok {
		out = append(out, a)
	}
	if r.Kind == audit.SchemaInternship {
		if a, ok := r.Attachment(AttachmentOfferLetter); ok {
			out = append(out, a)
		}
	}
	return out
}

// ApplyAudit copies an audit cycle's outcome onto the request.
func (r *Request) ApplyAudit(res *audit.Result, model string) {
	r.AuditStatus = AuditCompleted
	r.AuditError = ""
	r.Extracted = map[string]any(res.Extracted.Clone())
	r.Checklist = res.Checklist
	r.IsValid = res.IsValid
	r.Explanation = res.Extracted.Explanation()
	r.AIModelUsed = model
	r.AIIterations = res.Iterations
	r.AIConfidence = nil
	if c, ok := res.Extracted.Confidence(); ok {
		r.AIConfidence = &c
	}
	r.SuspiciousIndicators = res.Extracted.StringList(audit.FieldSuspiciousIndicators)
}

// MarkAuditFailed records an extraction failure. The request stays valid for
// review with no AI results.
func (r *Request) MarkAuditFailed(model string, err error) {
	r.AuditStatus = AuditFailed
	r.AuditError = err.Error()
	r.Extracted = map[string]any{}
	r.Checklist = nil
	r.IsValid = false
	r.Explanation = ""
	r.AIConfidence = nil
	r.AIModelUsed = model
	r.AIIterations = 0
	r.SuspiciousIndicators = nil
}
