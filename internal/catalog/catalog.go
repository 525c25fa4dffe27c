// Package catalog holds the static content the intake flows offer: interview
// languages, the demo candidate shown to recruiters and sample job matches.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var raw []byte

// Language is an interview language offered by the guided intake.
type Language struct {
	Code             string `yaml:"code" json:"code"`
	Name             string `yaml:"name" json:"name"`
	Flag             string `yaml:"flag" json:"flag"`
	SampleTranscript string `yaml:"sample_transcript" json:"-"`
}

// Job is a sample employer match.
type Job struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Company     string   `yaml:"company" json:"company"`
	MatchScore  int      `yaml:"match_score" json:"match_score"`
	TrustScore  int      `yaml:"trust_score" json:"trust_score"`
	Tags        []string `yaml:"tags" json:"tags"`
	Description string   `yaml:"description" json:"description"`
}

type Catalog struct {
	DefaultLanguage string     `yaml:"default_language"`
	Languages       []Language `yaml:"languages"`
	Jobs            []Job      `yaml:"jobs"`
	DemoProfile     string     `yaml:"demo_profile"`
}

// Load decodes the embedded catalog.
func Load() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if _, ok := c.Language(c.DefaultLanguage); !ok {
		return nil, fmt.Errorf("catalog: default language %q is not offered", c.DefaultLanguage)
	}
	return &c, nil
}

// Language looks up an offered language by code.
func (c *Catalog) Language(code string) (Language, bool) {
	for _, l := range c.Languages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// SampleTranscript returns the simulated voice transcript for a language,
// falling back to the default language's sample.
func (c *Catalog) SampleTranscript(code string) string {
	if l, ok := c.Language(code); ok && l.SampleTranscript != "" {
		return l.SampleTranscript
	}
	l, _ := c.Language(c.DefaultLanguage)
	return l.SampleTranscript
}
