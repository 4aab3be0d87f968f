package audit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one extraction attempt: field name to value, as decoded from the
// extractor's JSON. Values are string, bool, float64, []any or nil.
// A Record is never modified after the extractor returns it.
type Record map[string]any

// DecodeRecord parses an extractor's JSON object, tolerating markdown fences
// around it.
func DecodeRecord(raw string) (Record, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return Record{}, nil
	}

	var rec Record
	if err := json.Unmarshal([]byte(clean), &rec); err != nil {
		return nil, fmt.Errorf("decode extraction json: %w", err)
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}

// String returns a string field, trimmed. Lists are joined with ", ".
func (r Record) String(name string) string {
	switch v := r[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		return strings.Join(r.StringList(name), ", ")
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Bool returns a boolean field. The strings "true" and "yes" count as true.
func (r Record) Bool(name string) bool {
	switch v := r[name].(type) {
	case bool:
		return v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "true" || s == "yes"
	}
	return false
}

// StringList returns a list field. A plain string is split on commas, since
// extractors return incomplete_courses either way.
func (r Record) StringList(name string) []string {
	var out []string
	switch v := r[name].(type) {
	case []any:
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" && item != nil {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Float returns a numeric field and whether it was present.
func (r Record) Float(name string) (float64, bool) {
	switch v := r[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Present reports whether a field holds a usable value for its type:
// a non-blank string, true, a non-empty list or any number.
func (r Record) Present(f Field) bool {
	switch f.Type {
	case TypeBool:
		return r.Bool(f.Name)
	case TypeStringList:
		return len(r.StringList(f.Name)) > 0
	case TypeFloat:
		_, ok := r.Float(f.Name)
		return ok
	default:
		s := r.String(f.Name)
		return s != "" && !strings.EqualFold(s, "null")
	}
}

// Explanation is the extractor's free-text reasoning.
func (r Record) Explanation() string {
	return r.String(FieldExplanation)
}

// Confidence returns the extractor's confidence clamped to [0, 1].
func (r Record) Confidence() (float64, bool) {
	c, ok := r.Float(FieldConfidence)
	if !ok {
		return 0, false
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c, true
}

// Clone returns a shallow copy safe to hand to callers that may add keys.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ExpectedValues are the identity values an extraction is cross-checked
// against, typically the submitting student's profile. Empty values fall back
// to presence-only checks.
type ExpectedValues struct {
	Name       string `json:"name,omitempty" firestore:"name,omitempty"`
	RollNumber string `json:"rollNumber,omitempty" firestore:"rollNumber,omitempty"`
	Department string `json:"department,omitempty" firestore:"department,omitempty"`
}

// For returns the expected value of a field, if one was supplied.
func (e *ExpectedValues) For(field string) (string, bool) {
	if e == nil {
		return "", false
	}
	var v string
	switch field {
	case FieldName:
		v = e.Name
	case FieldRollNumber:
		v = e.RollNumber
	case FieldDepartment:
		v = e.Department
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
