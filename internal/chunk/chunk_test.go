package chunk

import (
	"strings"
	"testing"
)

func TestSplitEmptyInput(t *testing.T) {
	c := New(Config{})

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Split(tt.text, "マニュアル", true)
			if len(got) != 0 {
				t.Errorf("Split(%q) returned %d chunks, want 0", tt.text, len(got))
			}
		})
	}
}

func TestSplitShortDocumentSingleChunk(t *testing.T) {
	c := New(Config{})
	text := "  開店準備の手順。\nレジの起動を確認すること。  "

	got := c.Split(text, "", true)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if got[0].Content != strings.TrimSpace(text) {
		t.Errorf("content = %q, want trimmed input", got[0].Content)
	}
	if got[0].Index != 0 {
		t.Errorf("index = %d, want 0", got[0].Index)
	}
}

func TestSplitTitlePrefix(t *testing.T) {
	c := New(Config{})
	got := c.Split("昼のピーク時はレジを二台開ける。", "接客マニュアル", true)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if !strings.HasPrefix(got[0].Content, "接客マニュアル\n\n") {
		t.Errorf("chunk missing title prefix: %q", got[0].Content)
	}
}

func TestSplitStructuredSections(t *testing.T) {
	// Small budget to force multiple chunks without huge fixtures.
	c := New(Config{MaxTokens: 20, OverlapTokens: 4})

	var sb strings.Builder
	for i := 1; i <= 4; i++ {
		sb.WriteString("# Section ")
		sb.WriteString(strings.Repeat("x", 1))
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("内容あ", 15))
		sb.WriteString("\n")
	}

	got := c.Split(sb.String(), "", true)
	if len(got) < 2 {
		t.Fatalf("got %d chunks, want several", len(got))
	}
	for i, ch := range got {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d, want dense sequential", i, ch.Index)
		}
		if strings.TrimSpace(ch.Content) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestSplitStructuredCarriesOverlap(t *testing.T) {
	c := New(Config{MaxTokens: 20, OverlapTokens: 5})

	text := "# A\n" + strings.Repeat("あ", 70) + "\n# B\n" + strings.Repeat("い", 70)
	got := c.Split(text, "", true)
	if len(got) < 2 {
		t.Fatalf("got %d chunks, want >= 2", len(got))
	}

	// The second chunk must begin with a tail of the first for continuity.
	first := got[0].Content
	tail := first[len(first)-3:]
	if !strings.Contains(got[1].Content, tail) {
		t.Errorf("second chunk does not carry overlap from first\nfirst tail: %q\nsecond: %q", tail, got[1].Content)
	}
}

func TestOverlapTail(t *testing.T) {
	// OverlapTokens 5 = a 20-rune tail budget.
	c := New(Config{MaxTokens: 100, OverlapTokens: 5})

	tests := []struct {
		name string
		prev string
		want string
	}{
		{"short text carried whole", "在庫を確認する。", "在庫を確認する。"},
		{"cut forward to line start", strings.Repeat("x", 30) + "\n最終行の内容です。", "最終行の内容です。"},
		{"no line boundary keeps raw tail", strings.Repeat("あ", 40), strings.Repeat("あ", 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.overlapTail(tt.prev); got != tt.want {
				t.Errorf("overlapTail = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitFixedWindows(t *testing.T) {
	c := New(Config{MaxTokens: 25, OverlapTokens: 5})

	// Sentences of known shape so boundary extension has something to find.
	text := strings.Repeat("これは倉庫の在庫管理に関する説明文です。", 30)
	got := c.Split(text, "", false)
	if len(got) < 2 {
		t.Fatalf("got %d chunks, want several", len(got))
	}

	for i, ch := range got[:len(got)-1] {
		if !strings.HasSuffix(ch.Content, "。") {
			t.Errorf("chunk %d does not end at a sentence boundary: ...%q", i, ch.Content[max(0, len(ch.Content)-12):])
		}
	}
}

func TestSplitFixedCoversAllText(t *testing.T) {
	c := New(Config{MaxTokens: 25, OverlapTokens: 5})
	text := strings.Repeat("在庫确認の記録。", 40)

	got := c.Split(text, "", false)
	if len(got) == 0 {
		t.Fatal("no chunks")
	}
	last := got[len(got)-1].Content
	if !strings.HasSuffix(text, last[len(last)-9:]) {
		t.Error("final chunk does not reach the end of the input")
	}
}

func TestSplitOversizedSectionSplitsAtParagraphs(t *testing.T) {
	c := New(Config{MaxTokens: 20, OverlapTokens: 4})

	// One heading followed by many paragraphs, together well over budget.
	paras := make([]string, 6)
	for i := range paras {
		paras[i] = strings.Repeat("段落の本文です。", 5)
	}
	text := "# 巨大な章\n" + strings.Join(paras, "\n\n")

	got := c.Split(text, "", true)
	if len(got) < 2 {
		t.Fatalf("got %d chunks, want several", len(got))
	}
	for i, ch := range got {
		if estimateTokens(ch.Content) > c.maxTokens+boundarySlack/charsPerToken {
			t.Errorf("chunk %d exceeds budget: %d tokens", i, estimateTokens(ch.Content))
		}
	}
}

func TestNewClampsOverlap(t *testing.T) {
	c := New(Config{MaxTokens: 10, OverlapTokens: 50})
	if c.overlapTokens >= c.maxTokens {
		t.Errorf("overlap %d not clamped below max %d", c.overlapTokens, c.maxTokens)
	}
}
