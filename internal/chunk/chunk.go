// Package chunk splits long documents into overlapping, bounded-size
// segments for the knowledge base.
//
// Two algorithms are provided. The structure-aware splitter (the default for
// knowledge documents) detects headings and page breaks, accumulates whole
// sections up to the token budget, and carries an overlap tail between
// consecutive chunks for continuity. The fixed-size splitter is the fallback
// for unstructured text: a sliding window that extends to the nearest
// sentence or paragraph boundary so chunks avoid cutting mid-sentence.
//
// Token counts use the 1 token ≈ 4 characters heuristic; exact tokenization
// is the embedding provider's concern, not ours.
package chunk

import (
	"regexp"
	"strings"
)

const (
	// DefaultMaxTokens is the token budget for one chunk.
	DefaultMaxTokens = 1000

	// DefaultOverlapTokens is the tail carried from one chunk into the next.
	DefaultOverlapTokens = 100

	// charsPerToken is the estimation heuristic.
	charsPerToken = 4

	// boundarySlack is how far (in runes) the fixed-size window may extend
	// past its nominal end to reach a sentence or paragraph boundary.
	boundarySlack = 100
)

// Chunk is one bounded-size segment of a document. Index is dense and starts
// at 0 in input order.
type Chunk struct {
	Index   int
	Content string
}

// Config bounds chunk size and overlap. Zero values take package defaults.
type Config struct {
	MaxTokens     int
	OverlapTokens int
}

// Chunker splits documents. It is stateless and safe for concurrent use.
type Chunker struct {
	maxTokens     int
	overlapTokens int
}

// New creates a Chunker with the given bounds.
func New(cfg Config) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.OverlapTokens <= 0 {
		cfg.OverlapTokens = DefaultOverlapTokens
	}
	// Overlap must stay strictly below the chunk size or the window cannot
	// advance.
	if cfg.OverlapTokens >= cfg.MaxTokens {
		cfg.OverlapTokens = cfg.MaxTokens / 10
	}

	return &Chunker{
		maxTokens:     cfg.MaxTokens,
		overlapTokens: cfg.OverlapTokens,
	}
}

// headingPattern detects section starts: markdown headers, numbered chapters
// (Japanese and western), and decimal outline numbers.
var headingPattern = regexp.MustCompile(`^(#{1,6}\s+|第\s*\d+\s*[章節条]|\d+(\.\d+)*[.)]\s+|[【\[].+[】\]]$)`)

// Split divides text into chunks. When preserveStructure is true the
// structure-aware algorithm runs; otherwise the fixed-size window is used.
// Empty or whitespace-only input yields an empty slice, not an error.
// Title, when non-empty, is prefixed to every chunk so each segment stays
// attributable after retrieval.
func (c *Chunker) Split(text, title string, preserveStructure bool) []Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []Chunk{}
	}

	// Short documents become exactly one chunk regardless of algorithm.
	if estimateTokens(trimmed) <= c.maxTokens {
		return c.finish([]string{trimmed}, title)
	}

	var parts []string
	if preserveStructure {
		parts = c.splitStructured(trimmed)
	} else {
		parts = c.splitFixed(trimmed)
	}
	return c.finish(parts, title)
}

// finish assigns dense indexes and applies the title prefix.
func (c *Chunker) finish(parts []string, title string) []Chunk {
	title = strings.TrimSpace(title)
	chunks := make([]Chunk, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if title != "" {
			p = title + "\n\n" + p
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Content: p})
	}
	return chunks
}

// splitStructured accumulates heading-delimited sections into chunks.
func (c *Chunker) splitStructured(text string) []string {
	sections := splitSections(text)

	var (
		out []string
		buf strings.Builder
	)

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, buf.String())
		tail := c.overlapTail(buf.String())
		buf.Reset()
		if tail != "" {
			buf.WriteString(tail)
			buf.WriteString("\n")
		}
	}

	for _, section := range sections {
		if estimateTokens(section) > c.maxTokens {
			// A single oversized section is split on its own paragraph
			// boundaries; the running buffer is flushed first so ordering
			// is preserved.
			flush()
			buf.Reset()
			out = append(out, c.splitParagraphs(section)...)
			continue
		}

		if buf.Len() > 0 && estimateTokens(buf.String())+estimateTokens(section) > c.maxTokens {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(section)
	}

	if strings.TrimSpace(buf.String()) != "" {
		out = append(out, buf.String())
	}
	return out
}

// overlapTail returns the text carried from the end of one chunk into the
// next: at most overlapTokens worth of trailing runes, cut forward to the
// nearest line start so the carry begins on a whole line when one fits.
func (c *Chunker) overlapTail(prev string) string {
	if c.overlapTokens <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(prev))
	budget := c.overlapTokens * charsPerToken
	if len(runes) <= budget {
		return string(runes)
	}

	tail := string(runes[len(runes)-budget:])
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 {
		if rest := strings.TrimSpace(tail[idx+1:]); rest != "" {
			return rest
		}
	}
	return strings.TrimSpace(tail)
}

// splitParagraphs breaks an oversized section at blank-line boundaries,
// packing paragraphs up to the token budget. A paragraph that alone exceeds
// the budget falls back to the fixed-size window.
func (c *Chunker) splitParagraphs(section string) []string {
	paragraphs := strings.Split(section, "\n\n")

	var (
		out []string
		buf strings.Builder
	)
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if estimateTokens(p) > c.maxTokens {
			if buf.Len() > 0 {
				out = append(out, buf.String())
				buf.Reset()
			}
			out = append(out, c.splitFixed(p)...)
			continue
		}
		if buf.Len() > 0 && estimateTokens(buf.String())+estimateTokens(p) > c.maxTokens {
			out = append(out, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(p)
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}

// splitFixed slides a character window over the text, stepping by
// window - overlap, extending each window end to the next sentence or
// paragraph boundary within boundarySlack runes.
func (c *Chunker) splitFixed(text string) []string {
	runes := []rune(text)
	window := c.maxTokens * charsPerToken
	step := window - c.overlapTokens*charsPerToken
	if step <= 0 {
		step = window
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + window
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}

		end = extendToBoundary(runes, end)
		out = append(out, string(runes[start:end]))

		if end == len(runes) {
			break
		}
	}
	return out
}

// extendToBoundary pushes end forward (at most boundarySlack runes) to land
// just after a sentence terminator or newline. If none is found the nominal
// end stands.
func extendToBoundary(runes []rune, end int) int {
	limit := min(end+boundarySlack, len(runes))
	for i := end; i < limit; i++ {
		switch runes[i] {
		case '。', '．', '！', '？', '.', '!', '?', '\n':
			return i + 1
		}
	}
	return end
}

// splitSections divides text at heading lines and page breaks. Text before
// the first heading forms its own section.
func splitSections(text string) []string {
	lines := strings.Split(text, "\n")

	var (
		sections []string
		buf      strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			sections = append(sections, s)
		}
		buf.Reset()
	}

	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if strings.Contains(line, "\f") || headingPattern.MatchString(stripped) {
			flush()
		}
		buf.WriteString(strings.ReplaceAll(line, "\f", ""))
		buf.WriteString("\n")
	}
	flush()
	return sections
}

func estimateTokens(s string) int {
	n := len([]rune(s))
	return (n + charsPerToken - 1) / charsPerToken
}
