// Package profile merges an applicant's child records into one compressed document and
// reconstructs the child tables from such documents.
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	fieldStart        = "Start"
	fieldEnd          = "End"
	fieldTechnologies = "Technologies"

	// dateLen is the length of a YYYY-MM-DD prefix.
	dateLen = 10
)

// Profile is the compressed form of an applicant. ApplicantID is only set on documents
// exchanged as files; the copy stored on the applicant row omits it.
type Profile struct {
	ApplicantID string           `json:"Applicant ID,omitempty"`
	Personal    map[string]any   `json:"personal"`
	Experience  []map[string]any `json:"experience"`
	Salary      map[string]any   `json:"salary"`
}

// Tables names the store tables holding applicant data.
type Tables struct {
	Applicants string `mapstructure:"applicants" validate:"required"`
	Personal   string `mapstructure:"personal" validate:"required"`
	Experience string `mapstructure:"experience" validate:"required"`
	Salary     string `mapstructure:"salary" validate:"required"`
	Shortlist  string `mapstructure:"shortlist" validate:"required"`
}

// Fields names the columns the shortlister reads and writes.
type Fields struct {
	ApplicantID    string `mapstructure:"applicant-id" validate:"required"`
	CompressedJSON string `mapstructure:"compressed-json" validate:"required"`
	LLMSummary     string `mapstructure:"llm-summary" validate:"required"`
	LLMScore       string `mapstructure:"llm-score" validate:"required"`
	LLMFollowUps   string `mapstructure:"llm-followups" validate:"required"`
	LeadApplicant  string `mapstructure:"lead-applicant" validate:"required"`
	LeadJSON       string `mapstructure:"lead-json" validate:"required"`
	LeadReason     string `mapstructure:"lead-reason" validate:"required"`
}

type Schema struct {
	Tables Tables `mapstructure:"tables"`
	Fields Fields `mapstructure:"fields"`
}

func DefaultSchema() Schema {
	return Schema{
		Tables: Tables{
			Applicants: "Applicants",
			Personal:   "Personal Details",
			Experience: "Work Experience",
			Salary:     "Salary Preferences",
			Shortlist:  "Shortlisted Leads",
		},
		Fields: Fields{
			ApplicantID:    "Applicant ID",
			CompressedJSON: "Compressed JSON",
			LLMSummary:     "LLM Summary",
			LLMScore:       "LLM Score",
			LLMFollowUps:   "LLM Follow-Ups",
			LeadApplicant:  "Applicant",
			LeadJSON:       "Compressed JSON",
			LeadReason:     "Score Reason",
		},
	}
}

// Marshal serializes the profile as compact JSON without HTML escaping, so that
// characters like & and < stay readable in the store.
func Marshal(p *Profile) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// UnmarshalJSON accepts the Applicant ID as a string or a number. A number keeps its
// literal text, so 7 becomes "7".
func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	var doc struct {
		plain
		ApplicantID json.RawMessage `json:"Applicant ID,omitempty"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	id, err := applicantIDText(doc.ApplicantID)
	if err != nil {
		return err
	}
	*p = Profile(doc.plain)
	p.ApplicantID = id
	return nil
}

func applicantIDText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("applicant id: %w", err)
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("applicant id: %w", err)
	}
	return n.String(), nil
}

// LoadDocuments reads a JSON array of profiles, each carrying its Applicant ID.
func LoadDocuments(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading documents file %q: %w", path, err)
	}

	if err := ValidateDocuments(data); err != nil {
		return nil, fmt.Errorf("documents file %q: %w", path, err)
	}

	var docs []Profile
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing documents file %q: %w", path, err)
	}
	return docs, nil
}

// EncodeDocuments renders profiles the way LoadDocuments expects them.
func EncodeDocuments(docs []Profile) ([]byte, error) {
	if docs == nil {
		docs = []Profile{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return nil, fmt.Errorf("marshal documents: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeTechnologies renders a list-or-string value as comma-joined text.
func NormalizeTechnologies(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []string:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = item
		}
		return NormalizeTechnologies(items)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			text := strings.TrimSpace(fmt.Sprint(item))
			if text == "" {
				continue
			}
			parts = append(parts, text)
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// NormalizeDates drops absent, empty or non-string Start and End values and cuts the
// remaining ones to a date prefix. fields is modified in place and returned.
func NormalizeDates(fields map[string]any) map[string]any {
	for _, key := range []string{fieldStart, fieldEnd} {
		s, ok := fields[key].(string)
		if !ok || s == "" {
			delete(fields, key)
			continue
		}
		fields[key] = TruncateDate(s)
	}
	return fields
}

// TruncateDate keeps the first ten characters, enough for YYYY-MM-DD.
func TruncateDate(s string) string {
	runes := []rune(s)
	if len(runes) <= dateLen {
		return s
	}
	return string(runes[:dateLen])
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
