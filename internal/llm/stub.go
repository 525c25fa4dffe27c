package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// Stub answers every task deterministically without a network call. It is
// meant for local development and demos, not for real skill mapping.
type Stub struct{}

func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Generate(_ context.Context, req Request) (string, error) {
	switch req.Task {
	case TaskExtract:
		return stubProfile(req.Prompt)
	case TaskAnonymize:
		return stubAnonymize(req.Prompt), nil
	default:
		return "What tools, budgets or team sizes were involved in that work?", nil
	}
}

var stubSkillRules = []struct {
	keywords []string
	hard     string
	soft     string
}{
	{[]string{"organiz", "organis", "event", "coordinat"}, "Event Coordination", "Initiative"},
	{[]string{"schedul", "calendar", "meal", "comida"}, "Scheduling & Logistics", "Reliability"},
	{[]string{"budget", "money", "fund", "grant"}, "Budget Management", "Accountability"},
	{[]string{"conflict", "mediat", "dispute", "desacuerdo"}, "Dispute Resolution", "Conflict Mediation"},
	{[]string{"child", "kids", "niños", "care", "cuidando"}, "Childcare Operations", "Empathy"},
	{[]string{"volunteer", "team", "people"}, "Volunteer Management", "Leadership"},
	{[]string{"homework", "tarea", "tutor", "teach"}, "Instruction & Tutoring", "Patience"},
}

func stubProfile(prompt string) (string, error) {
	lower := strings.ToLower(prompt)
	hard := []string{}
	soft := []string{}
	for _, rule := range stubSkillRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				hard = append(hard, rule.hard)
				soft = append(soft, rule.soft)
				break
			}
		}
	}
	title := "Community Operations Specialist"
	if len(hard) == 0 {
		title = "Community Contributor"
	}
	out := map[string]any{
		"Professional_Title": title,
		"Hard_Skills":        hard,
		"Soft_Skills":        soft,
		"Impact_Statement":   "Delivered consistent, trusted support to the people and community described in the narrative.",
		"AI_Reasoning":       "Offline stub: skills were matched from keywords in the narrative rather than inferred by a model.",
	}
	body, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

var (
	stubFullName = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
	stubYear     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	stubAge      = regexp.MustCompile(`\b\d{1,3}-year-old\s*`)
	stubPronouns = strings.NewReplacer(
		" She ", " They ", " He ", " They ",
		" she ", " they ", " he ", " they ",
		" her ", " their ", " his ", " their ", " him ", " them ",
	)
)

func stubAnonymize(prompt string) string {
	text := prompt
	if i := strings.Index(text, `"`); i >= 0 {
		if j := strings.LastIndex(text, `"`); j > i {
			text = text[i+1 : j]
		}
	}
	text = stubAge.ReplaceAllString(text, "")
	text = stubYear.ReplaceAllString(text, "[year]")
	text = stubFullName.ReplaceAllString(text, "[Candidate]")
	return strings.TrimSpace(stubPronouns.Replace(" " + text + " "))
}
