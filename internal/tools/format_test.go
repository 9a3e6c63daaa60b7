package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestClockFormats(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	clock := NewClock().WithNow(func() time.Time { return fixed })

	tests := []struct {
		format string
		want   string
	}{
		{"date", "2026-03-14"},
		{"time", "15:09:26"},
		{"datetime", "2026-03-14 15:09:26"},
		{"2006/01/02", "2026/03/14"},
	}
	for _, tt := range tests {
		result := clock.Execute(context.Background(), map[string]any{"format": tt.format})
		if !result.Success {
			t.Errorf("format %q failed: %q", tt.format, result.Err)
			continue
		}
		if result.Value != tt.want {
			t.Errorf("format %q = %v, want %q", tt.format, result.Value, tt.want)
		}
	}

	// Default format when none is given.
	result := clock.Execute(context.Background(), nil)
	if !result.Success || result.Value != "2026-03-14 15:09:26" {
		t.Errorf("default format = %v", result.Value)
	}
}

func TestTableFormatter(t *testing.T) {
	table := NewTableFormatter()

	result := table.Execute(context.Background(), map[string]any{
		"data": []any{
			map[string]any{"name": "alpha", "score": 0.9},
			map[string]any{"name": "beta", "score": 0.7},
		},
	})
	if !result.Success {
		t.Fatalf("execute failed: %q", result.Err)
	}
	out, ok := result.Value.(string)
	if !ok {
		t.Fatalf("value is %T, want string", result.Value)
	}
	for _, want := range []string{"name", "score", "alpha", "beta", "|"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	if res := table.Execute(context.Background(), nil); res.Success {
		t.Error("missing data must fail")
	}
}

func TestListFormatter(t *testing.T) {
	list := NewListFormatter()

	result := list.Execute(context.Background(), map[string]any{
		"items": []any{"first", "second"},
		"style": "numbered",
	})
	if !result.Success {
		t.Fatalf("execute failed: %q", result.Err)
	}
	out := result.Value.(string)
	if !strings.Contains(out, "1. first") || !strings.Contains(out, "2. second") {
		t.Errorf("numbered list output wrong:\n%s", out)
	}

	result = list.Execute(context.Background(), map[string]any{
		"items": []any{"only"},
	})
	if !result.Success || !strings.Contains(result.Value.(string), "- only") {
		t.Errorf("bullet list output wrong: %v", result.Value)
	}
}
