// Package coach issues the three model requests behind the intake flows:
// profile extraction, follow-up questions and anonymization.
package coach

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"bridgeai/internal/llm"
	"bridgeai/internal/profile"
	"bridgeai/internal/prompts"
)

// ErrEmptyNarrative is returned before any model call when there is nothing to send.
var ErrEmptyNarrative = errors.New("narrative is empty")

// Models names the model used for each request shape.
type Models struct {
	Extraction   string
	Conversation string
}

type Coach struct {
	gen     llm.Generator
	prompts *prompts.Catalog
	models  Models
	timeout time.Duration
	log     *slog.Logger
}

// New builds a Coach. A zero timeout leaves calls bounded only by ctx.
func New(gen llm.Generator, catalog *prompts.Catalog, models Models, timeout time.Duration, log *slog.Logger) *Coach {
	return &Coach{gen: gen, prompts: catalog, models: models, timeout: timeout, log: log}
}

// ExtractProfile maps a narrative to a professional profile. A reply that
// does not match the profile schema fails with KindParse.
func (c *Coach) ExtractProfile(ctx context.Context, narrative string) (profile.Profile, error) {
	if strings.TrimSpace(narrative) == "" {
		return profile.Profile{}, ErrEmptyNarrative
	}
	prompt, err := c.prompts.Extraction.Render(prompts.Input{Text: narrative})
	if err != nil {
		return profile.Profile{}, err
	}
	raw, err := c.call(ctx, llm.Request{
		Task:       llm.TaskExtract,
		Model:      c.models.Extraction,
		System:     c.prompts.Extraction.System,
		Prompt:     prompt,
		Schema:     profile.Schema(),
		SchemaName: profile.SchemaName,
	})
	if err != nil {
		return profile.Profile{}, err
	}
	p, err := profile.Parse(raw)
	if err != nil {
		c.log.Warn("profile extraction reply rejected", "kind", KindParse, "err", err)
		return profile.Profile{}, &Failure{Op: llm.TaskExtract, Kind: KindParse, Err: err}
	}
	return p, nil
}

// FollowUp asks the model for one clarifying question about the narrative.
func (c *Coach) FollowUp(ctx context.Context, narrative string) (string, error) {
	if strings.TrimSpace(narrative) == "" {
		return "", ErrEmptyNarrative
	}
	prompt, err := c.prompts.FollowUp.Render(prompts.Input{Text: narrative})
	if err != nil {
		return "", err
	}
	return c.text(ctx, llm.Request{
		Task:   llm.TaskFollowUp,
		Model:  c.models.Conversation,
		System: c.prompts.FollowUp.System,
		Prompt: prompt,
	})
}

// Anonymize asks the model for a redacted rewrite of text. Redaction is
// best effort; nothing here verifies it.
func (c *Coach) Anonymize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyNarrative
	}
	prompt, err := c.prompts.Anonymize.Render(prompts.Input{
		Text:        text,
		Placeholder: c.prompts.Anonymize.Placeholder,
	})
	if err != nil {
		return "", err
	}
	return c.text(ctx, llm.Request{
		Task:   llm.TaskAnonymize,
		Model:  c.models.Conversation,
		System: c.prompts.Anonymize.System,
		Prompt: prompt,
	})
}

func (c *Coach) text(ctx context.Context, req llm.Request) (string, error) {
	out, err := c.call(ctx, req)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		c.log.Warn("model returned empty text", "task", req.Task, "kind", KindParse)
		return "", &Failure{Op: req.Task, Kind: KindParse, Err: profile.ErrEmptyResponse}
	}
	return out, nil
}

func (c *Coach) call(ctx context.Context, req llm.Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := c.gen.Generate(ctx, req)
	if err != nil {
		f := classify(req.Task, err)
		c.log.Warn("model call failed", "task", req.Task, "provider", c.gen.Name(), "kind", f.Kind, "err", err)
		return "", f
	}
	c.log.Debug("model call finished", "task", req.Task, "provider", c.gen.Name(), "model", req.Model, "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}
