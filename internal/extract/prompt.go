package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Lllllllleong/bonafideflow/internal/audit"
)

// maxDocumentChars bounds the document text sent per call.
const maxDocumentChars = 30000

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// BuildPrompt renders the extraction instructions for a schema. Expected
// values are deliberately not included so the model reads the document
// rather than echoing the profile back.
func BuildPrompt(schema audit.Schema, text string) string {
	text = truncateText(text, maxDocumentChars)

	var b strings.Builder
	fmt.Fprintf(&b, "Extract the fields of a %s request from the document text below.\n\n", schema.Variant)
	b.WriteString("DOCUMENT TEXT:\n")
	b.WriteString(text)
	b.WriteString("\n\nSTRICT RULES:\n")
	for i, f := range schema.Fields {
		fmt.Fprintf(&b, "%d. %q (%s): %s\n", i+1, f.Name, f.Type, f.Description)
	}

	var core []string
	for _, f := range schema.CoreFields() {
		core = append(core, f.Label)
	}
	fmt.Fprintf(&b, "\nA valid %s document MUST have ALL of: %s.\n", schema.Variant, strings.Join(core, ", "))
	b.WriteString("Never guess. Use null for any string that is not explicitly present and false for any boolean that is not clearly true.\n")
	b.WriteString("Respond with one JSON object using exactly the field names above as keys.\n")
	return b.String()
}

// truncateText cuts text to at most limit bytes without splitting a rune.
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// decodeResponse turns a model reply into a record. Refusal phrases are only
// looked for when the reply is not a JSON object, since extracted values
// quote the document verbatim.
func decodeResponse(content string) (audit.Record, error) {
	rec, err := audit.DecodeRecord(content)
	if err == nil {
		return rec, nil
	}
	if refusal := checkRefusal(content); refusal != nil {
		return nil, refusal
	}
	return nil, err
}

func checkRefusal(content string) error {
	lower := strings.ToLower(content)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("model response indicates refusal: %q", phrase)
		}
	}
	return nil
}
