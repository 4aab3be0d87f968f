package audit

import (
	"fmt"
	"strings"
)

// SchemaVariant names the set of fields expected for a document purpose.
type SchemaVariant string

const (
	SchemaBonafide   SchemaVariant = "bonafide"
	SchemaInternship SchemaVariant = "internship"
)

// ParseSchemaVariant accepts the variant names case-insensitively.
func ParseSchemaVariant(s string) (SchemaVariant, error) {
	switch SchemaVariant(strings.ToLower(strings.TrimSpace(s))) {
	case SchemaBonafide:
		return SchemaBonafide, nil
	case SchemaInternship:
		return SchemaInternship, nil
	}
	return "", fmt.Errorf("unknown schema variant %q", s)
}

// FieldType is the value type an extractor must produce for a field.
type FieldType int

const (
	TypeString FieldType = iota
	TypeBool
	TypeStringList
	TypeFloat
)

func (t FieldType) String() string {
	switch t {
	case TypeBool:
		return "boolean"
	case TypeStringList:
		return "array of strings"
	case TypeFloat:
		return "number"
	default:
		return "string"
	}
}

// MatchKind selects how an extracted value is compared with an expected one.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchIdentifier
	MatchDepartment
)

// Field names shared by both schema variants.
const (
	FieldName                 = "name"
	FieldRollNumber           = "roll_number"
	FieldDepartment           = "department"
	FieldReason               = "reason"
	FieldHasSignature         = "has_signature"
	FieldExplanation          = "explanation"
	FieldCompanyName          = "company_name"
	FieldDuration             = "duration"
	FieldIncompleteCourses    = "incomplete_courses"
	FieldLocation             = "location"
	FieldStayArrangement      = "stay_arrangement"
	FieldOfferLetterValid     = "offer_letter_valid"
	FieldOfferTextExcerpt     = "offer_text_excerpt"
	FieldMissingOfferElements = "missing_offer_elements"
	FieldSuspiciousIndicators = "suspicious_indicators"
	FieldConfidence           = "confidence"
)

// Field describes one named, typed entry of a schema. Required fields are the
// core fields: they get a checklist entry and decide validity.
type Field struct {
	Name        string
	Label       string
	Type        FieldType
	Required    bool
	Match       MatchKind
	Description string
}

// Schema is the ordered field list of one variant.
type Schema struct {
	Variant SchemaVariant
	Fields  []Field
}

// CoreFields returns the required fields in schema order.
func (s Schema) CoreFields() []Field {
	var core []Field
	for _, f := range s.Fields {
		if f.Required {
			core = append(core, f)
		}
	}
	return core
}

// Field looks a field up by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

var identityFields = []Field{
	{Name: FieldName, Label: "Name", Type: TypeString, Required: true, Match: MatchIdentifier,
		Description: "Student's full name, only if explicitly labeled (e.g. 'Student Name:'). Null if absent."},
	{Name: FieldRollNumber, Label: "Roll No", Type: TypeString, Required: true, Match: MatchIdentifier,
		Description: "Roll, registration or enrolment number, only if labeled. Null if absent or unclear."},
	{Name: FieldDepartment, Label: "Department", Type: TypeString, Required: true, Match: MatchDepartment,
		Description: "Academic department, branch or class, only if labeled. Null if absent."},
}

var explanationField = Field{
	Name: FieldExplanation, Label: "AI Reasoning", Type: TypeString,
	Description: "1-2 sentences on why the document should be approved or rejected.",
}

var bonafideSchema = Schema{
	Variant: SchemaBonafide,
	Fields: append(append([]Field{}, identityFields...),
		Field{Name: FieldReason, Label: "Reason", Type: TypeString, Required: true,
			Description: "The explicitly stated purpose of the bonafide request. Null if not stated."},
		Field{Name: FieldHasSignature, Label: "Signature", Type: TypeBool, Required: true,
			Description: "True only if a student signature is clearly visible or explicitly marked."},
		explanationField,
	),
}

var internshipSchema = Schema{
	Variant: SchemaInternship,
	Fields: append(append([]Field{}, identityFields...),
		Field{Name: FieldCompanyName, Label: "Company", Type: TypeString, Required: true,
			Description: "Company name, only if clearly filled in. Null for a blank form field."},
		Field{Name: FieldDuration, Label: "Duration", Type: TypeString, Required: true,
			Description: "Internship duration, only if explicitly stated (e.g. '6 months', 'Jan-Mar')."},
		Field{Name: FieldIncompleteCourses, Label: "Incomplete Courses", Type: TypeStringList,
			Description: "Listed incomplete courses. Null if none are listed."},
		Field{Name: FieldLocation, Label: "Location", Type: TypeString,
			Description: "Internship location, only if provided."},
		Field{Name: FieldStayArrangement, Label: "Stay Arrangement", Type: TypeString,
			Description: "Stay arrangement details, only if provided."},
		Field{Name: FieldHasSignature, Label: "Student Signature", Type: TypeBool, Required: true,
			Description: "True only if the student signature is clearly present."},
		Field{Name: FieldOfferLetterValid, Label: "Offer Letter Valid", Type: TypeBool, Required: true,
			Description: "True only if the document has clear offer language and a company letterhead, signature or formal structure. False for student-filled fields only."},
		Field{Name: FieldOfferTextExcerpt, Label: "Offer Excerpt", Type: TypeString,
			Description: "If the offer is valid, an excerpt of at most 200 characters proving it. Else null."},
		Field{Name: FieldMissingOfferElements, Label: "Missing Offer Elements", Type: TypeStringList,
			Description: "Missing items from: offer_language, authorization_signature, company_letterhead, position, start_date, salary."},
		Field{Name: FieldSuspiciousIndicators, Label: "Suspicious Indicators", Type: TypeStringList,
			Description: "Reasons to distrust the offer (e.g. 'no letterhead', 'no signature')."},
		Field{Name: FieldConfidence, Label: "Confidence", Type: TypeFloat,
			Description: "Confidence score between 0.0 and 1.0. Lower if fields are unclear."},
		explanationField,
	),
}

// SchemaFor returns the schema of a variant.
func SchemaFor(v SchemaVariant) (Schema, error) {
	switch v {
	case SchemaBonafide:
		return bonafideSchema, nil
	case SchemaInternship:
		return internshipSchema, nil
	}
	return Schema{}, fmt.Errorf("unknown schema variant %q", v)
}
