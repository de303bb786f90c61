package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// Generator is the slice of *genai.GenerativeModel the Gemini capability uses.
type Generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini backs a role with a Gemini model. Structured outputs (.yaml
// patterns) are requested as YAML and decoded into Result.Data.
type Gemini struct {
	model   Generator
	name    string
	prompts map[string]string
}

// GeminiOption customizes a Gemini capability.
type GeminiOption func(*Gemini)

// WithPrompt overrides the prompt template for a task type. Templates may use
// {subject}, {item}, {group} and {task_type}.
func WithPrompt(taskType, template string) GeminiOption {
	return func(g *Gemini) {
		g.prompts[taskType] = template
	}
}

// NewGemini wraps an existing generator, mainly for tests.
func NewGemini(model Generator, name string, opts ...GeminiOption) *Gemini {
	if name == "" {
		name = DefaultGeminiModel
	}
	g := &Gemini{model: model, name: name, prompts: defaultPrompts()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DialGemini creates a client for apiKey. The returned close func releases
// the client.
func DialGemini(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*Gemini, func() error, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, nil, fmt.Errorf("worker: gemini requires an API key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, fmt.Errorf("worker: gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return NewGemini(client.GenerativeModel(model), model, opts...), client.Close, nil
}

// Perform renders the prompt for a and returns the model's answer.
func (g *Gemini) Perform(ctx context.Context, a Assignment) (Result, error) {
	prompt := g.prompt(a)
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return Result{}, fmt.Errorf("worker: gemini %s: %w", a, err)
	}
	text := strings.TrimSpace(firstText(resp))
	if text == "" {
		return Result{}, fmt.Errorf("worker: gemini %s: empty response", a)
	}
	if !strings.HasSuffix(a.Definition.OutputPattern, ".yaml") {
		return Result{Body: text + "\n", Model: g.name}, nil
	}
	var data map[string]any
	if err := yaml.Unmarshal([]byte(stripFence(text)), &data); err != nil {
		return Result{}, fmt.Errorf("worker: gemini %s: response is not YAML: %w", a, err)
	}
	return Result{Data: data, Model: g.name}, nil
}

func (g *Gemini) prompt(a Assignment) string {
	tmpl, ok := g.prompts[a.TaskType]
	if !ok {
		tmpl = "Complete the {task_type} task for {subject} (group {group})."
	}
	return strings.NewReplacer(
		"{subject}", a.Subject(),
		"{item}", a.Item,
		"{group}", a.Group,
		"{task_type}", a.TaskType,
	).Replace(tmpl)
}

func defaultPrompts() map[string]string {
	return map[string]string{
		"research": "Research the open source project {subject}. Reply with YAML only, using the keys " +
			"name, description, use_cases (list), strengths (list), weaknesses (list) and sources (list of URLs).",
		"content": "Write a short blog section in markdown introducing {subject} to platform engineers. " +
			"Start with a level one heading. Keep it under 400 words.",
		"publish": "Write the weekly editorial introduction for the projects covered in week {group}, in markdown.",
	}
}

func firstText(r *genai.GenerateContentResponse) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	lines = lines[1:]
	if last := len(lines) - 1; last >= 0 && strings.HasPrefix(strings.TrimSpace(lines[last]), "```") {
		lines = lines[:last]
	}
	return strings.Join(lines, "\n")
}
