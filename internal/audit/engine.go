package audit

// EntryStatus is the outcome of checking one core field.
type EntryStatus string

const (
	StatusOK       EntryStatus = "ok"
	StatusMissing  EntryStatus = "missing"
	StatusMismatch EntryStatus = "mismatch"
)

// ChecklistEntry records the verdict for one core field. Found and Expected are
// filled for mismatches so reviewers can see what disagreed.
type ChecklistEntry struct {
	Field    string      `json:"field" firestore:"field"`
	Label    string      `json:"label" firestore:"label"`
	Status   EntryStatus `json:"status" firestore:"status"`
	Found    string      `json:"found,omitempty" firestore:"found,omitempty"`
	Expected string      `json:"expected,omitempty" firestore:"expected,omitempty"`
}

// OK reports whether the entry passed.
func (e ChecklistEntry) OK() bool { return e.Status == StatusOK }

// Audit checks every core field of schema against rec. Fields with an expected
// value must be present and match it; the rest only need to be present. The
// record is valid iff every entry is ok. A failed audit is data, not an error.
func Audit(schema Schema, rec Record, expected *ExpectedValues) ([]ChecklistEntry, bool) {
	core := schema.CoreFields()
	checklist := make([]ChecklistEntry, 0, len(core))
	valid := true

	for _, f := range core {
		entry := ChecklistEntry{Field: f.Name, Label: f.Label}
		present := rec.Present(f)
		want, hasExpected := expected.For(f.Name)

		switch {
		case !present:
			entry.Status = StatusMissing
		case hasExpected && f.Match != MatchNone:
			found := rec.String(f.Name)
			if Matches(f.Match, found, want) {
				entry.Status = StatusOK
			} else {
				entry.Status = StatusMismatch
				entry.Found = found
				entry.Expected = want
			}
		default:
			entry.Status = StatusOK
		}

		if !entry.OK() {
			valid = false
		}
		checklist = append(checklist, entry)
	}
	return checklist, valid
}
