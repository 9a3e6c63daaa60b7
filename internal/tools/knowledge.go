package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nkoretz/sage/internal/knowledge"
)

const searchPreviewLen = 300

// SearchTool exposes the hybrid retriever as an agent-callable tool, so the
// model can pull extra context mid-answer instead of relying only on the
// orchestrator's up-front retrieval pass.
type SearchTool struct {
	retriever *knowledge.Retriever
	store     *knowledge.Store
	topK      int
}

func NewSearchTool(retriever *knowledge.Retriever, store *knowledge.Store, topK int) *SearchTool {
	if topK <= 0 {
		topK = 5
	}
	return &SearchTool{retriever: retriever, store: store, topK: topK}
}

func (t *SearchTool) Name() string       { return "search_knowledge_base" }
func (t *SearchTool) Category() Category { return CategorySearch }

func (t *SearchTool) Description() string {
	return "Search the indexed knowledge base for passages relevant to a query. " +
		"Use when the answer depends on course material or transcripts."
}

func (t *SearchTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "query", Type: "string", Description: "What to look for", Required: true},
		{Name: "collection", Type: "string", Description: "Collection to search, or \"all\"", Default: "all"},
		{Name: "top_k", Type: "number", Description: "Maximum passages to return", Default: t.topK},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) Result {
	if err := ValidateArgs(t, args); err != nil {
		return Failure("%v", err)
	}
	query := strings.TrimSpace(stringArg(args, "query", ""))
	if query == "" {
		return Failure("query is required")
	}
	collection := stringArg(args, "collection", "all")
	topK := intArg(args, "top_k", t.topK)
	if topK <= 0 {
		topK = t.topK
	}

	var collections []string
	if collection == "" || collection == "all" {
		names, err := t.store.ListCollections(ctx)
		if err != nil {
			return Failure("list collections: %v", err)
		}
		collections = names
	} else {
		collections = []string{collection}
	}

	var chunks []knowledge.Chunk
	for _, c := range collections {
		hits, err := t.retriever.Search(ctx, query, c, topK)
		if err != nil {
			// An unknown or broken collection should not sink the
			// whole search; the remaining collections still answer.
			continue
		}
		chunks = append(chunks, hits...)
	}
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	if len(chunks) == 0 {
		return Success(fmt.Sprintf("No results found for %q.", query))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d passages for %q:\n", len(chunks), query)
	for i, ch := range chunks {
		text := ch.Text
		if len(text) > searchPreviewLen {
			text = text[:searchPreviewLen] + "..."
		}
		fmt.Fprintf(&b, "\n[%d] (%s / %s)\n%s\n", i+1, ch.Collection, ch.Source, text)
	}
	return Success(b.String())
}

// StatsTool reports what the knowledge base contains, per collection.
type StatsTool struct {
	store *knowledge.Store
}

func NewStatsTool(store *knowledge.Store) *StatsTool {
	return &StatsTool{store: store}
}

func (t *StatsTool) Name() string       { return "collection_stats" }
func (t *StatsTool) Category() Category { return CategoryInformation }

func (t *StatsTool) Description() string {
	return "Report document and chunk counts for one collection, or all of them."
}

func (t *StatsTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "collection", Type: "string", Description: "Collection name, or \"all\"", Default: "all"},
	}
}

func (t *StatsTool) Execute(ctx context.Context, args map[string]any) Result {
	collection := stringArg(args, "collection", "all")

	var names []string
	if collection == "" || collection == "all" {
		all, err := t.store.ListCollections(ctx)
		if err != nil {
			return Failure("list collections: %v", err)
		}
		names = all
	} else {
		names = []string{collection}
	}
	if len(names) == 0 {
		return Success("The knowledge base is empty.")
	}

	var b strings.Builder
	for _, name := range names {
		stats, err := t.store.Stats(ctx, name)
		if err != nil {
			return Failure("stats for %q: %v", name, err)
		}
		fmt.Fprintf(&b, "%s: %d documents, %d chunks\n", stats.Name, stats.Documents, stats.Chunks)
	}
	return Success(strings.TrimRight(b.String(), "\n"))
}
