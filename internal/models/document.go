package models

// Attachment kinds. Bonafide requests carry only a permission letter.
const (
	AttachmentPermissionLetter = "permission_letter"
	AttachmentOfferLetter      = "offer_letter"
	AttachmentParentConsent    = "parent_consent"
)

// Attachment is a stored document belonging to a request.
type Attachment struct {
	Kind        string `json:"kind" firestore:"kind"`
	Bucket      string `json:"bucket" firestore:"bucket"`
	Object      string `json:"object" firestore:"object"`
	Filename    string `json:"filename,omitempty" firestore:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty" firestore:"contentType,omitempty"`
	Size        int64  `json:"size" firestore:"size"`
	FileHash    string `json:"fileHash,omitempty" firestore:"fileHash,omitempty"`
}

// GCSUri returns the gs:// URI of the stored object.
func (a Attachment) GCSUri() string {
	return "gs://" + a.Bucket + "/" + a.Object
}

// Audit statuses track the extraction-audit cycle of a request, separately
// from its approval status.
const (
	AuditPending   = "PENDING"
	AuditRunning   = "AUDITING"
	AuditCompleted = "COMPLETED"
	AuditFailed    = "FAILED"
	AuditSkipped   = "PRECHECKED"
)
