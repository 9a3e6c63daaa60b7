package agent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/nkoretz/sage/internal/llm"
)

// reflectTemperature keeps critique runs consistent across iterations.
const reflectTemperature = 0.3

// Reflection is the critic's judgment of one answer. Sub-dimension scores
// that the model omits default to the neutral 0.5.
type Reflection struct {
	Confidence         float64  `json:"confidence_score"`
	Accuracy           float64  `json:"accuracy"`
	Completeness       float64  `json:"completeness"`
	Clarity            float64  `json:"clarity"`
	Relevance          float64  `json:"relevance"`
	Satisfactory       bool     `json:"is_satisfactory"`
	Strengths          []string `json:"strengths"`
	Weaknesses         []string `json:"weaknesses"`
	Suggestions        []string `json:"suggestions"`
	MissingInformation []string `json:"missing_information"`
}

// Critic scores generated answers and decides whether another revision pass
// is worth spending an iteration on.
type Critic struct {
	client        llm.Client
	minConfidence float64
	log           *zap.Logger
}

func NewCritic(client llm.Client, minConfidence float64, log *zap.Logger) *Critic {
	if log == nil {
		log = zap.NewNop()
	}
	return &Critic{client: client, minConfidence: minConfidence, log: log}
}

// Reflect asks the judge model to critique an answer against the query and
// up to three context passages. Parse failures degrade to neutral defaults
// rather than erroring so the loop can always decide.
func (c *Critic) Reflect(ctx context.Context, query, answer string, retrievedContext []string) (Reflection, error) {
	if len(retrievedContext) > 3 {
		retrievedContext = retrievedContext[:3]
	}
	raw, err := c.client.Complete(ctx, llm.CompletionRequest{
		System:      reflectSystemPrompt,
		User:        formatReflectPrompt(query, answer, retrievedContext),
		Temperature: reflectTemperature,
		JSONMode:    true,
	})
	if err != nil {
		return Reflection{}, err
	}
	return parseReflection(raw, c.log), nil
}

// ShouldRevise reports whether the answer warrants another pass. The three
// conditions are independently sufficient: low confidence, an unsatisfactory
// verdict, or weaknesses strictly outnumbering strengths.
func (c *Critic) ShouldRevise(r Reflection) bool {
	if r.Confidence < c.minConfidence {
		return true
	}
	if !r.Satisfactory {
		return true
	}
	if len(r.Weaknesses) > len(r.Strengths) {
		return true
	}
	return false
}

// FormatFeedback folds a reflection into the feedback string handed to the
// next revision prompt.
func (c *Critic) FormatFeedback(r Reflection) string {
	var parts []string
	if len(r.Weaknesses) > 0 {
		parts = append(parts, "Weaknesses:")
		for _, w := range r.Weaknesses {
			parts = append(parts, "  - "+w)
		}
	}
	if len(r.Suggestions) > 0 {
		parts = append(parts, "\nSuggestions:")
		for _, s := range r.Suggestions {
			parts = append(parts, "  - "+s)
		}
	}
	if len(r.MissingInformation) > 0 {
		parts = append(parts, "\nMissing Information:")
		for _, m := range r.MissingInformation {
			parts = append(parts, "  - "+m)
		}
	}
	return strings.Join(parts, "\n")
}

func parseReflection(raw string, log *zap.Logger) Reflection {
	// Start from neutral scores so absent fields stay neutral rather than
	// collapsing to zero.
	r := Reflection{
		Confidence:   0.5,
		Accuracy:     0.5,
		Completeness: 0.5,
		Clarity:      0.5,
		Relevance:    0.5,
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &r); err != nil {
		log.Warn("reflection response was not valid JSON, using neutral defaults", zap.Error(err))
		return r
	}
	r.Confidence = clamp01(r.Confidence)
	r.Accuracy = clamp01(r.Accuracy)
	r.Completeness = clamp01(r.Completeness)
	r.Clarity = clamp01(r.Clarity)
	r.Relevance = clamp01(r.Relevance)
	return r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
