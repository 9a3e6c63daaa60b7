// Package tracelog records what the agent did: structured process logs via
// zap, plus append-only JSONL artifacts (run summaries and tool calls) and a
// full reasoning trace per run for later inspection.
package tracelog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// previewLen caps free-text fields persisted to the JSONL logs so a single
// verbose answer cannot bloat the files.
const previewLen = 200

// RunRecord is one line of runs.jsonl: the outcome of a single agent run.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Query      string    `json:"query"`
	Answer     string    `json:"answer"`
	Confidence float64   `json:"confidence"`
	Iterations int       `json:"iterations"`
	Steps      int       `json:"steps"`
	DurationMS int64     `json:"duration_ms"`
}

// ToolCallRecord is one line of tool_calls.jsonl.
type ToolCallRecord struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Tool       string    `json:"tool"`
	Args       string    `json:"args"`
	Success    bool      `json:"success"`
	Output     string    `json:"output"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Logger owns the log directory. It is safe for concurrent use.
type Logger struct {
	dir string
	log *zap.Logger

	mu sync.Mutex
}

// New creates the log directory and a Logger writing under it.
func New(dir string, log *zap.Logger) (*Logger, error) {
	if err := os.MkdirAll(filepath.Join(dir, "traces"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{dir: dir, log: log}, nil
}

// NewRunID returns a fresh identifier for one agent run.
func NewRunID() string { return uuid.NewString() }

// LogRun appends a run summary to runs.jsonl.
func (l *Logger) LogRun(rec RunRecord) error {
	rec.Query = truncate(rec.Query)
	rec.Answer = truncate(rec.Answer)
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	return l.appendLine("runs.jsonl", rec)
}

// LogToolCall appends a tool invocation to tool_calls.jsonl.
func (l *Logger) LogToolCall(rec ToolCallRecord) error {
	rec.Args = truncate(rec.Args)
	rec.Output = truncate(rec.Output)
	rec.Error = truncate(rec.Error)
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	return l.appendLine("tool_calls.jsonl", rec)
}

// SaveTrace writes the full reasoning trace for a run as pretty JSON under
// traces/<run_id>.json. The trace value is caller-defined; anything that
// marshals cleanly.
func (l *Logger) SaveTrace(runID string, trace any) (string, error) {
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}
	path := filepath.Join(l.dir, "traces", fmt.Sprintf("%s.json", runID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write trace file: %w", err)
	}
	return path, nil
}

func (l *Logger) appendLine(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal log record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append log record: %w", err)
	}
	return nil
}

func truncate(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen] + "..."
}

// NewZap builds the process logger. Verbose selects human-readable console
// output at debug level; otherwise JSON at info.
func NewZap(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}
