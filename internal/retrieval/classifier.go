package retrieval

import "strings"

// QueryType tells whether a question asks for tabular data.
type QueryType string

const (
	QueryText  QueryType = "text"
	QueryTable QueryType = "table"
)

// Classifier decides the QueryType of a question.
type Classifier interface {
	Classify(question string) QueryType
}

// DefaultTableKeywords mark a question as table-oriented, in English and Hindi.
var DefaultTableKeywords = []string{
	"table", "tables", "tabular", "compare", "comparison", "chart", "column", "columns",
	"row", "rows", "data", "statistics", "stats", "values", "figures", "percentage",
	"तालिका", "सारणी", "तुलना", "कॉलम", "पंक्ति", "आंकड़े", "आँकड़े",
}

// KeywordClassifier flags a question as table-oriented when any keyword occurs
// in the lowercased question. Matching is by substring, so "compare" also
// catches "compared" and "comparing", and phrases work the same way.
type KeywordClassifier struct {
	keywords []string
}

// NewKeywordClassifier builds a classifier. An empty list uses DefaultTableKeywords.
func NewKeywordClassifier(keywords []string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = DefaultTableKeywords
	}
	c := &KeywordClassifier{keywords: make([]string, 0, len(keywords))}
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			c.keywords = append(c.keywords, kw)
		}
	}
	return c
}

func (c *KeywordClassifier) Classify(question string) QueryType {
	lower := strings.ToLower(question)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return QueryTable
		}
	}
	return QueryText
}
