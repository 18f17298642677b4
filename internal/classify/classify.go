// Package classify maps a free-text operational query to a result-count
// budget (top-K) for retrieval.
//
// The classifier is a pure heuristic: it scans the query for marker phrases
// and picks the budget of the first matching category. Category priority is
// comprehensive > trend > specific > default. The ordering is a policy choice
// carried in Config, not a fixed rule; callers that want a different
// tie-break supply their own Config.
package classify

import (
	"regexp"
	"strings"
)

// Default result budgets per category.
const (
	DefaultComprehensiveK = 20
	DefaultTrendK         = 12
	DefaultSpecificK      = 3
	DefaultK              = 5
)

// Config holds the marker phrases and budgets for each category.
// The zero value is not useful; start from DefaultConfig.
type Config struct {
	ComprehensiveMarkers []string
	TrendMarkers         []string
	SpecificMarkers      []string

	ComprehensiveK int
	TrendK         int
	SpecificK      int
	DefaultK       int
}

// DefaultConfig returns the stock marker lists. The lists mix Japanese and
// English because the host application serves both.
func DefaultConfig() Config {
	return Config{
		ComprehensiveMarkers: []string{
			"全て", "すべて", "全部", "一覧", "まとめて", "リスト",
			"all", "everything", "list",
		},
		TrendMarkers: []string{
			"傾向", "推移", "変化", "増加", "減少", "比較",
			"trend", "change", "increase", "decrease", "compare",
		},
		SpecificMarkers: []string{
			"今日", "昨日", "今週", "先週", "今月", "先月",
			"today", "yesterday", "this week", "last week", "this month", "last month",
		},
		ComprehensiveK: DefaultComprehensiveK,
		TrendK:         DefaultTrendK,
		SpecificK:      DefaultSpecificK,
		DefaultK:       DefaultK,
	}
}

// datePattern matches explicit dates (2025-08-01, 2025/8/1, 8月1日) and
// record identifiers like #1234. Either counts as a "specific" marker.
var datePattern = regexp.MustCompile(`\d{4}[-/]\d{1,2}([-/]\d{1,2})?|\d{1,2}月\d{1,2}日|#\d+`)

// Classifier decides how many results a retrieval pass should return for a
// given query. It is stateless and safe for concurrent use.
type Classifier struct {
	cfg Config
}

// New creates a Classifier. Zero budgets in cfg fall back to the package
// defaults so a partially filled Config stays usable.
func New(cfg Config) *Classifier {
	if cfg.ComprehensiveK <= 0 {
		cfg.ComprehensiveK = DefaultComprehensiveK
	}
	if cfg.TrendK <= 0 {
		cfg.TrendK = DefaultTrendK
	}
	if cfg.SpecificK <= 0 {
		cfg.SpecificK = DefaultSpecificK
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultK
	}
	return &Classifier{cfg: cfg}
}

// Classify returns the top-K budget for query. First matching category wins;
// a query carrying both a comprehensive and a trend marker is treated as
// comprehensive.
func (c *Classifier) Classify(query string) int {
	lower := strings.ToLower(query)

	if containsAny(lower, c.cfg.ComprehensiveMarkers) {
		return c.cfg.ComprehensiveK
	}
	if containsAny(lower, c.cfg.TrendMarkers) {
		return c.cfg.TrendK
	}
	if containsAny(lower, c.cfg.SpecificMarkers) || datePattern.MatchString(lower) {
		return c.cfg.SpecificK
	}
	return c.cfg.DefaultK
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
