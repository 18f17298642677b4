package classify

import "testing"

func TestClassify(t *testing.T) {
	c := New(DefaultConfig())

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"comprehensive japanese", "全て見せて", DefaultComprehensiveK},
		{"comprehensive english", "list all claims", DefaultComprehensiveK},
		{"trend japanese", "傾向を教えて", DefaultTrendK},
		{"trend english", "sales trend this quarter", DefaultTrendK},
		{"specific last week", "先週のクレーム", DefaultSpecificK},
		{"specific explicit date", "2025-08-01の売上", DefaultSpecificK},
		{"specific slash date", "2025/8/1 の日報", DefaultSpecificK},
		{"specific kanji date", "8月1日のクレーム", DefaultSpecificK},
		{"specific record id", "#1023 の対応状況", DefaultSpecificK},
		{"default greeting", "こんにちは", DefaultK},
		{"default vague question", "調子はどう", DefaultK},
		{"empty query", "", DefaultK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.query); got != tt.want {
				t.Errorf("Classify(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

// Priority order is the documented tie-break: comprehensive beats trend beats
// specific when several categories match the same query.
func TestClassifyPriority(t *testing.T) {
	c := New(DefaultConfig())

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"comprehensive beats trend", "全てのクレームの傾向", DefaultComprehensiveK},
		{"comprehensive beats specific", "先週の売上を全て", DefaultComprehensiveK},
		{"trend beats specific", "先週からの売上の変化", DefaultTrendK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.query); got != tt.want {
				t.Errorf("Classify(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestClassifyCaseInsensitiveMarkers(t *testing.T) {
	c := New(DefaultConfig())
	if got := c.Classify("Show ALL stores"); got != DefaultComprehensiveK {
		t.Errorf("Classify = %d, want %d", got, DefaultComprehensiveK)
	}
}

func TestNewFillsZeroBudgets(t *testing.T) {
	c := New(Config{SpecificMarkers: []string{"先週"}})
	if got := c.Classify("先週"); got != DefaultSpecificK {
		t.Errorf("Classify = %d, want default specific %d", got, DefaultSpecificK)
	}
	if got := c.Classify("何でもない話"); got != DefaultK {
		t.Errorf("Classify = %d, want default %d", got, DefaultK)
	}
}
