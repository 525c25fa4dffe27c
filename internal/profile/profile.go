package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Profile is the professional competency record extracted from a narrative.
type Profile struct {
	Title           string   `json:"title"`
	HardSkills      []string `json:"hard_skills"`
	SoftSkills      []string `json:"soft_skills"`
	ImpactStatement string   `json:"impact_statement"`
	Reasoning       string   `json:"reasoning"`
}

// wireProfile uses the field names the model is asked to return.
type wireProfile struct {
	Title           string   `json:"Professional_Title"`
	HardSkills      []string `json:"Hard_Skills"`
	SoftSkills      []string `json:"Soft_Skills"`
	ImpactStatement string   `json:"Impact_Statement"`
	Reasoning       string   `json:"AI_Reasoning"`
}

// SchemaName identifies the response shape to providers that require a name.
const SchemaName = "professional_profile"

const schemaJSON = `{
  "type": "object",
  "properties": {
    "Professional_Title": {"type": "string"},
    "Hard_Skills": {"type": "array", "items": {"type": "string"}},
    "Soft_Skills": {"type": "array", "items": {"type": "string"}},
    "Impact_Statement": {"type": "string"},
    "AI_Reasoning": {
      "type": "string",
      "description": "A transparent explanation of how the AI mapped the lived experience to these specific professional skills."
    }
  },
  "required": ["Professional_Title", "Hard_Skills", "Soft_Skills", "Impact_Statement", "AI_Reasoning"]
}`

var compiled = jsonschema.MustCompileString("professional_profile.json", schemaJSON)

// ErrEmptyResponse is returned when the model produced no text at all.
var ErrEmptyResponse = errors.New("empty model response")

// ParseError reports a reply that is not a valid profile document.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "profile parse: " + e.Reason
	}
	return fmt.Sprintf("profile parse: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Schema returns a fresh copy of the JSON schema document the model must follow.
func Schema() map[string]any {
	var doc map[string]any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		panic(err)
	}
	return doc
}

// Parse validates raw model output against the profile schema and decodes it.
func Parse(raw string) (Profile, error) {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return Profile{}, &ParseError{Reason: "no content", Err: ErrEmptyResponse}
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return Profile{}, &ParseError{Reason: "invalid json", Err: err}
	}
	if err := compiled.Validate(doc); err != nil {
		return Profile{}, &ParseError{Reason: "schema violation", Err: err}
	}

	var wire wireProfile
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return Profile{}, &ParseError{Reason: "decode", Err: err}
	}
	return Profile{
		Title:           wire.Title,
		HardSkills:      wire.HardSkills,
		SoftSkills:      wire.SoftSkills,
		ImpactStatement: wire.ImpactStatement,
		Reasoning:       wire.Reasoning,
	}, nil
}

// CleanJSON strips markdown fences and any prose around the outer JSON object.
func CleanJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

// Clone returns a copy that shares no slices with p.
func (p Profile) Clone() Profile {
	out := p
	out.HardSkills = cloneStrings(p.HardSkills)
	out.SoftSkills = cloneStrings(p.SoftSkills)
	return out
}

func cloneStrings(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}
