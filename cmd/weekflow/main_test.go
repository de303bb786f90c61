package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/weekflow/internal/catalog"
	"github.com/kingrea/weekflow/internal/config"
)

func TestKeyValueFlag(t *testing.T) {
	kv := keyValueFlag{}
	if err := kv.Set("output_file=content/x.md"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set("error_message=a=b"); err != nil {
		t.Fatalf("set with '=' in value: %v", err)
	}
	if kv["error_message"] != "a=b" {
		t.Fatalf("value split too eagerly: %q", kv["error_message"])
	}
	for _, bad := range []string{"novalue", "=x"} {
		if err := kv.Set(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if got := kv.String(); got != "error_message=a=b, output_file=content/x.md" {
		t.Fatalf("unexpected string %q", got)
	}
}

func TestStringsFlagSplitsCommas(t *testing.T) {
	var s stringsFlag
	_ = s.Set("A, B")
	_ = s.Set("C")
	if strings.Join(s, "") != "ABC" {
		t.Fatalf("unexpected groups %v", s)
	}
}

func TestSyncRunStatusEndToEnd(t *testing.T) {
	env, out := newTestEnv(t)
	if err := runInit(env, nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	dataDir := filepath.Join(env.projectDir, "data")
	if err := catalog.WriteItemList(dataDir, "A", []string{"Kafka", "Envoy"}); err != nil {
		t.Fatalf("write item list: %v", err)
	}

	if err := runSync(env, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(out.String(), "A: 2 item(s), created, added Envoy, Kafka") {
		t.Fatalf("unexpected sync output:\n%s", out.String())
	}
	out.Reset()
	if err := runSync(env, []string{"--group", "A"}); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if !strings.Contains(out.String(), "(unchanged)") {
		t.Fatalf("second sync should be a no-op:\n%s", out.String())
	}

	out.Reset()
	if err := runRun(env, []string{"--dry-run", "--max-rounds", "5"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "stop: drained · 5 completed · 0 failed") {
		t.Fatalf("unexpected run output:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(dataDir, "00-A", "publish", "A.md")); err != nil {
		t.Fatalf("publish artifact missing: %v", err)
	}

	out.Reset()
	if err := runStatus(env, []string{"--group", "A", "--type", "content"}); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "A (content): 2/2 completed") {
		t.Fatalf("unexpected status output:\n%s", out.String())
	}

	log, err := os.ReadFile(filepath.Join(env.projectDir, config.Dir, "logs", "weekflow.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(log), "group synced") || !strings.Contains(string(log), "run finished") {
		t.Fatalf("log missing entries:\n%s", log)
	}
}

func TestUpdateAndResetCommands(t *testing.T) {
	env, out := newTestEnv(t)
	dataDir := filepath.Join(env.projectDir, "data")
	if err := catalog.WriteItemList(dataDir, "B", []string{"Backstage"}); err != nil {
		t.Fatalf("write item list: %v", err)
	}

	err := runUpdate(env, []string{"--group", "B", "--item", "Backstage", "--type", "content", "--status", "in_progress"})
	if err == nil || !strings.Contains(err.Error(), "research") {
		t.Fatalf("content must be blocked on research, got %v", err)
	}
	if err := runUpdate(env, []string{"--group", "B", "--item", "Backstage", "--type", "research",
		"--status", "failed", "--error", "timeout"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !strings.Contains(out.String(), "error_message: timeout") {
		t.Fatalf("record not printed:\n%s", out.String())
	}

	out.Reset()
	if err := runReset(env, []string{"--group", "B", "--item", "Backstage", "--type", "research"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	for _, want := range []string{"status: pending", "retry_count: 1", "error_message: null"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("reset output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := runPending(env, []string{"--group", "B", "--type", "research"}); err != nil {
		t.Fatalf("pending: %v", err)
	}
	if strings.TrimSpace(out.String()) != "Backstage" {
		t.Fatalf("unexpected pending output %q", out.String())
	}
}

func TestBudgetCommand(t *testing.T) {
	env, out := newTestEnv(t)
	if err := runBudget(env, []string{"--tokens", "1000000", "--usd-per-million", "2", "--max-rounds", "10", "--batch-size", "5"}); err != nil {
		t.Fatalf("budget: %v", err)
	}
	for _, want := range []string{"= 2250000 tokens", "estimated cost: $4.50", "fits --max-rounds 22 --batch-size 1"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("budget output missing %q:\n%s", want, out.String())
		}
	}
}

func newTestEnv(t *testing.T) (*cliEnv, *bytes.Buffer) {
	t.Helper()
	for _, key := range []string{config.EnvDataDir, config.EnvMaxRounds, config.EnvBatchSize, config.EnvGoogleAPIKey, config.EnvGeminiModel} {
		t.Setenv(key, "")
	}
	var out bytes.Buffer
	return &cliEnv{projectDir: t.TempDir(), out: &out}, &out
}
