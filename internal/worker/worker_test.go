package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/kingrea/weekflow/internal/tasktype"
)

func assignment(t *testing.T, taskType, item string) Assignment {
	t.Helper()
	def, err := tasktype.Default().Lookup(taskType)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	return Assignment{Group: "A", Item: item, TaskType: taskType, Role: def.Role, Definition: def}
}

func TestStaticShapesOutputByPattern(t *testing.T) {
	res, err := Static{}.Perform(context.Background(), assignment(t, tasktype.Research, "Argo"))
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if res.Data["name"] != "Argo" || res.Body != "" {
		t.Fatalf("expected structured research payload, got %+v", res)
	}
	res, err = Static{Note: "offline"}.Perform(context.Background(), assignment(t, tasktype.Publish, ""))
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if !strings.HasPrefix(res.Body, "# A\n") || !strings.Contains(res.Body, "offline") {
		t.Fatalf("unexpected publish body: %q", res.Body)
	}
}

func TestFuncAndSet(t *testing.T) {
	called := false
	set := Set{
		tasktype.RoleWriter: Func(func(ctx context.Context, a Assignment) (Result, error) {
			called = true
			return Result{Body: a.String()}, nil
		}),
		tasktype.RoleEditor: nil,
	}
	if _, ok := set.Lookup(tasktype.RoleEditor); ok {
		t.Fatalf("nil capability should not be found")
	}
	c, ok := set.Lookup(tasktype.RoleWriter)
	if !ok {
		t.Fatalf("writer capability missing")
	}
	res, err := c.Perform(context.Background(), assignment(t, tasktype.Content, "Envoy"))
	if err != nil || !called || res.Body != "A/Envoy/content" {
		t.Fatalf("unexpected result %+v %v", res, err)
	}
	if roles := set.Roles(); len(roles) != 1 || roles[0] != tasktype.RoleWriter {
		t.Fatalf("unexpected roles: %v", roles)
	}
}

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	if len(parts) > 0 {
		if text, ok := parts[0].(genai.Text); ok {
			f.prompt = string(text)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(f.reply)}},
		}},
	}, nil
}

func TestGeminiDecodesStructuredResearch(t *testing.T) {
	gen := &fakeGenerator{reply: "```yaml\nname: Argo\nuse_cases:\n  - gitops\n```"}
	g := NewGemini(gen, "")
	res, err := g.Perform(context.Background(), assignment(t, tasktype.Research, "Argo"))
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if res.Data["name"] != "Argo" || res.Model != DefaultGeminiModel {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(gen.prompt, "Argo") {
		t.Fatalf("prompt should mention the item: %q", gen.prompt)
	}
}

func TestGeminiMarkdownAndPromptOverride(t *testing.T) {
	gen := &fakeGenerator{reply: "# Envoy\n\nEdge proxy."}
	g := NewGemini(gen, "gemini-test", WithPrompt(tasktype.Content, "write about {item} for week {group}"))
	res, err := g.Perform(context.Background(), assignment(t, tasktype.Content, "Envoy"))
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if res.Body != "# Envoy\n\nEdge proxy.\n" {
		t.Fatalf("unexpected body %q", res.Body)
	}
	if gen.prompt != "write about Envoy for week A" {
		t.Fatalf("unexpected prompt %q", gen.prompt)
	}
}

func TestGeminiErrors(t *testing.T) {
	cases := []struct {
		name string
		gen  *fakeGenerator
	}{
		{name: "transport", gen: &fakeGenerator{err: errors.New("quota exceeded")}},
		{name: "empty", gen: &fakeGenerator{reply: "  "}},
		{name: "not yaml", gen: &fakeGenerator{reply: "- just\n- a list"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewGemini(tc.gen, "").Perform(context.Background(), assignment(t, tasktype.Research, "Argo")); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, _, err := DialGemini(context.Background(), "", ""); err == nil {
		t.Fatalf("expected missing key error")
	}
}

const scriptSource = `package main

import (
	"errors"
	"fmt"
)

func Perform(group, item, taskType string) (string, error) {
	if item == "Broken" {
		return "", errors.New("cannot research " + item)
	}
	return fmt.Sprintf("# %s\n\n%s for week %s\n", item, taskType, group), nil
}
`

func TestScriptCapability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writer.go")
	if err := os.WriteFile(path, []byte(scriptSource), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	s, err := LoadScript(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := s.Perform(context.Background(), assignment(t, tasktype.Content, "Envoy"))
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if res.Body != "# Envoy\n\ncontent for week A\n" {
		t.Fatalf("unexpected body %q", res.Body)
	}
	if _, err := s.Perform(context.Background(), assignment(t, tasktype.Content, "Broken")); err == nil || !strings.Contains(err.Error(), "cannot research Broken") {
		t.Fatalf("expected script error, got %v", err)
	}
}

func TestLoadScriptRejectsMissingFunction(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.go")
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadScript(empty); err == nil {
		t.Fatalf("expected empty script error")
	}
	missing := filepath.Join(dir, "missing.go")
	if err := os.WriteFile(missing, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadScript(missing); err == nil {
		t.Fatalf("expected error for missing Perform")
	}
}
