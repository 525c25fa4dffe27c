package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Prompt is one system instruction plus a user-message template.
type Prompt struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`

	tmpl *template.Template
}

// Catalog holds every instruction and fixed string the coach sends or shows.
type Catalog struct {
	Version    string `yaml:"version"`
	Extraction Prompt `yaml:"extraction"`
	FollowUp   struct {
		Prompt   `yaml:",inline"`
		Fallback string `yaml:"fallback"`
	} `yaml:"follow_up"`
	Anonymize struct {
		Prompt      `yaml:",inline"`
		Placeholder string `yaml:"placeholder"`
	} `yaml:"anonymize"`
	Conversation struct {
		Greeting         string `yaml:"greeting"`
		Completion       string `yaml:"completion"`
		ExtractionFailed string `yaml:"extraction_failed"`
	} `yaml:"conversation"`
}

// Input is the data available to user-message templates.
type Input struct {
	Text        string
	Placeholder string
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog and compiles its templates.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode prompt catalog: %w", err)
	}
	if err := c.compile(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) compile() error {
	prompts := map[string]*Prompt{
		"extraction": &c.Extraction,
		"follow_up":  &c.FollowUp.Prompt,
		"anonymize":  &c.Anonymize.Prompt,
	}
	for name, p := range prompts {
		if strings.TrimSpace(p.User) == "" {
			return fmt.Errorf("prompt catalog: %s.user is empty", name)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(p.User)
		if err != nil {
			return fmt.Errorf("prompt catalog: %s: %w", name, err)
		}
		p.tmpl = tmpl
	}
	if c.FollowUp.Fallback == "" {
		return errors.New("prompt catalog: follow_up.fallback is empty")
	}
	if c.Anonymize.Placeholder == "" {
		c.Anonymize.Placeholder = "[Candidate]"
	}
	return nil
}

// Render executes the user-message template.
func (p Prompt) Render(in Input) (string, error) {
	if p.tmpl == nil {
		return "", errors.New("prompt template not compiled")
	}
	var b strings.Builder
	if err := p.tmpl.Execute(&b, in); err != nil {
		return "", err
	}
	return b.String(), nil
}
