package llm

import (
	"context"
	"errors"
)

// Task names the request shape so providers and logs can tell calls apart.
type Task string

const (
	TaskExtract   Task = "extract"
	TaskFollowUp  Task = "follow_up"
	TaskAnonymize Task = "anonymize"
)

// ErrMissingCredential is returned by every call when no API key was configured.
var ErrMissingCredential = errors.New("llm: api credential not configured")

// Request is a single one-shot prompt. Schema, when set, is a JSON schema
// document the reply must conform to.
type Request struct {
	Task       Task
	Model      string
	System     string
	Prompt     string
	Schema     map[string]any
	SchemaName string
}

// Generator is a minimal text-generation interface to allow pluggable providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Unconfigured stands in for a provider whose credential is absent. The
// service still starts; every model call fails.
type Unconfigured struct {
	Provider string
}

func (u Unconfigured) Name() string { return u.Provider }

func (u Unconfigured) Generate(context.Context, Request) (string, error) {
	return "", ErrMissingCredential
}
