package tracelog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLogRunAppendsJSONL(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	long := strings.Repeat("x", 400)
	records := []RunRecord{
		{RunID: "run-1", Query: "what is RAG?", Answer: long, Confidence: 0.8, Iterations: 1},
		{RunID: "run-2", Query: "second", Answer: "short", Confidence: 0.9, Iterations: 2},
	}
	for _, rec := range records {
		if err := l.LogRun(rec); err != nil {
			t.Fatalf("LogRun failed: %v", err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "runs.jsonl"))
	if err != nil {
		t.Fatalf("open runs.jsonl: %v", err)
	}
	defer f.Close()

	var lines []RunRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec RunRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		lines = append(lines, rec)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].RunID != "run-1" || lines[1].RunID != "run-2" {
		t.Errorf("order wrong: %v", lines)
	}
	if got := len(lines[0].Answer); got != 203 {
		t.Errorf("answer should be truncated to 200 chars plus ellipsis, got %d", got)
	}
	if lines[0].Timestamp.IsZero() {
		t.Error("timestamp should be filled in")
	}
}

func TestLogToolCallTruncatesPreviews(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := l.LogToolCall(ToolCallRecord{
		RunID:   "run-1",
		Tool:    "calculator",
		Args:    `{"expression":"2+2"}`,
		Success: true,
		Output:  strings.Repeat("y", 500),
	}); err != nil {
		t.Fatalf("LogToolCall failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "tool_calls.jsonl"))
	if err != nil {
		t.Fatalf("read tool_calls.jsonl: %v", err)
	}
	var rec ToolCallRecord
	if err := json.Unmarshal(data[:len(data)-1], &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rec.Output) != 203 {
		t.Errorf("output length = %d, want 203", len(rec.Output))
	}
	if rec.Tool != "calculator" || !rec.Success {
		t.Errorf("record = %+v", rec)
	}
}

func TestSaveTrace(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path, err := l.SaveTrace("abc-123", map[string]any{"query": "q", "final_answer": "a"})
	if err != nil {
		t.Fatalf("SaveTrace failed: %v", err)
	}
	if filepath.Base(path) != "abc-123.json" {
		t.Errorf("trace path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	var trace map[string]any
	if err := json.Unmarshal(data, &trace); err != nil {
		t.Fatalf("trace is not valid JSON: %v", err)
	}
	if trace["final_answer"] != "a" {
		t.Errorf("trace = %v", trace)
	}
}

func TestNewRunIDUnique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b || a == "" {
		t.Errorf("run ids should be unique and non-empty: %q %q", a, b)
	}
}

func TestNewZap(t *testing.T) {
	for _, verbose := range []bool{false, true} {
		log, err := NewZap(verbose)
		if err != nil {
			t.Fatalf("NewZap(%v) failed: %v", verbose, err)
		}
		if verbose && !log.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("verbose logger should enable debug level")
		}
		if !verbose && log.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("default logger should not enable debug level")
		}
	}
}
