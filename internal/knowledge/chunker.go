package knowledge

import "strings"

// Chunker splits document text into overlapping chunks bounded by a
// character budget. Splitting prefers paragraph boundaries, then sentences,
// then a hard cut, so chunks stay readable.
type Chunker struct {
	Size    int // maximum chunk length in characters
	Overlap int // characters carried over from the previous chunk
}

// NewChunker creates a chunker. Size must exceed Overlap; config validation
// enforces that before a Chunker is ever built.
func NewChunker(size, overlap int) *Chunker {
	return &Chunker{Size: size, Overlap: overlap}
}

// Split chunks one document's text. Empty and whitespace-only input yields
// no chunks.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.Size {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
		// Seed the next chunk with the tail of this one for continuity
		// across the boundary.
		if c.Overlap > 0 && len(chunk) > c.Overlap {
			current.WriteString(chunk[len(chunk)-c.Overlap:])
			current.WriteString("\n")
		}
	}

	for _, para := range splitParagraphs(text) {
		for _, piece := range c.splitOversized(para) {
			if current.Len() > 0 && current.Len()+len(piece)+2 > c.Size {
				flush()
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(piece)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// splitOversized breaks a paragraph that alone exceeds the budget, first at
// sentence ends, then hard at the budget as a last resort.
func (c *Chunker) splitOversized(para string) []string {
	if len(para) <= c.Size {
		return []string{para}
	}

	var pieces []string
	var current strings.Builder
	for _, sentence := range splitSentences(para) {
		for len(sentence) > c.Size {
			pieces = append(pieces, sentence[:c.Size])
			sentence = sentence[c.Size:]
		}
		if current.Len() > 0 && current.Len()+len(sentence)+1 > c.Size {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if strings.TrimSpace(current.String()) != "" {
		pieces = append(pieces, strings.TrimSpace(current.String()))
	}
	return pieces
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences is a cheap sentence splitter: a period, question mark or
// exclamation mark followed by a space ends a sentence. Good enough for
// chunk boundaries; this is not NLP.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		ch := text[i]
		if (ch == '.' || ch == '?' || ch == '!') && text[i+1] == ' ' {
			out = append(out, strings.TrimSpace(text[start:i+1]))
			start = i + 2
		}
	}
	if start < len(text) {
		tail := strings.TrimSpace(text[start:])
		if tail != "" {
			out = append(out, tail)
		}
	}
	return out
}
