package knowledge

import (
	"strings"
	"testing"
)

func TestSplitEmptyText(t *testing.T) {
	c := NewChunker(100, 20)
	if chunks := c.Split(""); len(chunks) != 0 {
		t.Errorf("empty text should produce no chunks, got %d", len(chunks))
	}
	if chunks := c.Split("   \n\n  "); len(chunks) != 0 {
		t.Errorf("whitespace-only text should produce no chunks, got %d", len(chunks))
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c := NewChunker(1000, 200)
	chunks := c.Split("A short paragraph about embeddings.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "A short paragraph about embeddings." {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestSplitRespectsSizeBound(t *testing.T) {
	para := strings.Repeat("word ", 60) // ~300 chars
	text := strings.Join([]string{para, para, para, para}, "\n\n")

	c := NewChunker(500, 100)
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		// Paragraph accumulation may slightly overshoot while finishing a
		// paragraph, but never by more than one paragraph.
		if len(chunk) > 500+len(para)+2 {
			t.Errorf("chunk %d is %d chars, far above the size bound", i, len(chunk))
		}
	}
}

func TestSplitOversizedParagraph(t *testing.T) {
	sentence := "This sentence talks about retrieval. "
	text := strings.Repeat(sentence, 40) // one huge paragraph

	c := NewChunker(200, 40)
	chunks := c.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("oversized paragraph should split into several chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	var paras []string
	for i := 0; i < 10; i++ {
		paras = append(paras, strings.Repeat("alpha beta gamma ", 10))
	}
	c := NewChunker(300, 60)
	chunks := c.Split(strings.Join(paras, "\n\n"))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Consecutive chunks should share some text at the seam.
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1]
		if len(tail) > 60 {
			tail = tail[len(tail)-60:]
		}
		head := chunks[i]
		if len(head) > 60 {
			head = head[:60]
		}
		shared := false
		for _, word := range strings.Fields(tail) {
			if strings.Contains(head, word) {
				shared = true
				break
			}
		}
		if !shared {
			t.Errorf("chunks %d and %d share no seam text", i-1, i)
		}
	}
}
