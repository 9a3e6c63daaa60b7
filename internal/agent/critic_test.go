package agent

import (
	"context"
	"strings"
	"testing"
)

func TestShouldRevise(t *testing.T) {
	c := NewCritic(&staticClient{}, 0.7, nil)

	tests := []struct {
		name string
		r    Reflection
		want bool
	}{
		{
			name: "low confidence alone triggers revision even when satisfactory",
			r:    Reflection{Confidence: 0.5, Satisfactory: true},
			want: true,
		},
		{
			name: "unsatisfactory alone triggers revision",
			r:    Reflection{Confidence: 0.9, Satisfactory: false},
			want: true,
		},
		{
			name: "more weaknesses than strengths triggers revision at high confidence",
			r: Reflection{
				Confidence:   0.95,
				Satisfactory: true,
				Strengths:    []string{"clear"},
				Weaknesses:   []string{"vague", "no citations"},
			},
			want: true,
		},
		{
			name: "equal weaknesses and strengths do not trigger",
			r: Reflection{
				Confidence:   0.9,
				Satisfactory: true,
				Strengths:    []string{"clear"},
				Weaknesses:   []string{"short"},
			},
			want: false,
		},
		{
			name: "good answer passes",
			r:    Reflection{Confidence: 0.85, Satisfactory: true, Strengths: []string{"a", "b"}},
			want: false,
		},
		{
			name: "confidence exactly at threshold does not trigger",
			r:    Reflection{Confidence: 0.7, Satisfactory: true},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ShouldRevise(tt.r); got != tt.want {
				t.Errorf("ShouldRevise(%+v) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestReflectParsesJudgeOutput(t *testing.T) {
	c := NewCritic(&staticClient{response: `{
		"confidence_score": 0.82,
		"is_satisfactory": true,
		"strengths": ["accurate"],
		"weaknesses": [],
		"suggestions": ["add examples"],
		"missing_information": []
	}`}, 0.7, nil)

	r, err := c.Reflect(context.Background(), "q", "a", nil)
	if err != nil {
		t.Fatalf("Reflect failed: %v", err)
	}
	if r.Confidence != 0.82 || !r.Satisfactory {
		t.Errorf("unexpected reflection: %+v", r)
	}
	if len(r.Suggestions) != 1 {
		t.Errorf("Suggestions = %v", r.Suggestions)
	}
}

func TestReflectDefaultsOnMalformedOutput(t *testing.T) {
	c := NewCritic(&staticClient{response: "not json"}, 0.7, nil)

	r, err := c.Reflect(context.Background(), "q", "a", nil)
	if err != nil {
		t.Fatalf("Reflect should not fail on malformed output: %v", err)
	}
	if r.Confidence != 0.5 || r.Accuracy != 0.5 || r.Clarity != 0.5 {
		t.Errorf("scores should default to 0.5, got %+v", r)
	}
	if r.Satisfactory {
		t.Error("satisfactory should default to false")
	}
}

func TestReflectClampsOutOfRangeScores(t *testing.T) {
	c := NewCritic(&staticClient{response: `{"confidence_score": 1.4, "accuracy": -0.2}`}, 0.7, nil)

	r, err := c.Reflect(context.Background(), "q", "a", nil)
	if err != nil {
		t.Fatalf("Reflect failed: %v", err)
	}
	if r.Confidence != 1.0 {
		t.Errorf("confidence should clamp to 1.0, got %v", r.Confidence)
	}
	if r.Accuracy != 0.0 {
		t.Errorf("accuracy should clamp to 0.0, got %v", r.Accuracy)
	}
}

func TestFormatFeedback(t *testing.T) {
	c := NewCritic(&staticClient{}, 0.7, nil)

	feedback := c.FormatFeedback(Reflection{
		Weaknesses:         []string{"no sources"},
		Suggestions:        []string{"cite the course material"},
		MissingInformation: []string{"week number"},
	})
	for _, want := range []string{"Weaknesses:", "no sources", "Suggestions:", "cite the course material", "Missing Information:", "week number"} {
		if !strings.Contains(feedback, want) {
			t.Errorf("feedback missing %q:\n%s", want, feedback)
		}
	}
}
