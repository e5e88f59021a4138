// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2/lexers"
)

// ============================================================================
// SCORING CONSTANTS
// ============================================================================

const (
	lengthWeight   = 0.20
	lengthSaturate = 2000.0

	linesWeight   = 0.10
	linesSaturate = 80.0

	nestingWeight   = 0.15
	nestingSaturate = 6.0

	constructPerMatch = 0.02
	constructPerKind  = 0.05
	constructCap      = 0.25

	functionPerMatch = 0.02
	functionCap      = 0.10

	strongKeywordBonus = 0.05
	strongKeywordCap   = 0.15
	weakKeywordBonus   = 0.02
	weakKeywordCap     = 0.05
)

// constructPatterns detect language features that tend to need a stronger
// model to explain well.
var constructPatterns = []*regexp.Regexp{
	// async / await
	regexp.MustCompile(`\b(async|await)\b`),
	// promise chaining
	regexp.MustCompile(`\.(then|catch|finally)\s*\(`),
	// inheritance
	regexp.MustCompile(`\b(extends|implements)\b|\bclass\s+\w+\s*\(\s*\w+`),
	// generics: <T>, <K, V>, Go [T any]
	regexp.MustCompile(`<\s*[A-Z]\w*(\s*,\s*[A-Z]\w*)*\s*>|\[\s*[A-Z]\w*\s+(any|comparable|~?\w+)\s*\]`),
	// decorators and annotations
	regexp.MustCompile(`(?m)^\s*@\w+`),
	// regex literals and regex constructors
	regexp.MustCompile(`(?:^|[=(,:]\s*)/[^/\s*][^/\n]*/[gimsuy]*|new RegExp\(|\bre\.compile\(|regexp\.MustCompile\(|Regex\(`),
	// exception handling
	regexp.MustCompile(`\b(try|catch|except|finally|rescue)\b|\brecover\(\)`),
	// multi-branch conditionals
	regexp.MustCompile(`\b(switch|elif|when)\b|\belse\s+if\b`),
	// advanced loops and functional iteration
	regexp.MustCompile(`\bfor\s*\(?\s*(const|let|var)?\s*\w+\s+(of|in)\b|:?=\s*range\b|\.(map|reduce|filter|flatMap|forEach)\s*\(`),
}

// functionPattern matches function definition sites across common languages.
var functionPattern = regexp.MustCompile(`\b(function|func|def|fn|fun)\b|=>`)

// strongKeywords are algorithmic, security or architectural terms.
var strongKeywords = []string{
	"algorithm", "complexity", "recursion", "recursive", "concurren",
	"thread", "mutex", "deadlock", "race condition", "parallel",
	"security", "authentication", "authorization", "crypto", "encrypt",
	"injection", "vulnerab", "architecture", "design pattern", "distributed",
	"scalab", "optimiz", "performance", "memory", "protocol",
}

// weakKeywords are business-logic terms.
var weakKeywords = []string{
	"business", "validation", "workflow", "customer", "order",
	"invoice", "payment", "report", "form", "crud",
}

// Strong keywords are stems and match any word that starts with them. Weak
// keywords must be whole words, optionally plural, so "form" does not match
// "performance" and "order" does not match "border".
var (
	strongPatterns = compileKeywords(strongKeywords, `\b%s`)
	weakPatterns   = compileKeywords(weakKeywords, `\b%ss?\b`)
)

func compileKeywords(keywords []string, format string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		out[i] = regexp.MustCompile(fmt.Sprintf(format, regexp.QuoteMeta(kw)))
	}
	return out
}

// languageBonus adjusts the score by language family. Keys are lower-case
// canonical names or common editor language ids.
var languageBonus = map[string]float64{
	"rust":    0.10,
	"c++":     0.10,
	"cpp":     0.10,
	"haskell": 0.10,
	"scala":   0.10,

	"typescript":      0.05,
	"typescriptreact": 0.05,
	"java":            0.05,
	"c#":              0.05,
	"csharp":          0.05,
	"kotlin":          0.05,
	"go":              0.05,
	"swift":           0.05,

	"json":      -0.05,
	"yaml":      -0.05,
	"markdown":  -0.05,
	"plaintext": -0.05,
	"text":      -0.05,
}

// ============================================================================
// CLASSIFICATION FUNCTIONS
// ============================================================================

// Score returns the complexity score of a code fragment in [0,1].
func Score(code, context, language string) float64 {
	return Analyze(code, context, language).Score
}

// Analyze scores a code fragment and reports the breakdown.
func Analyze(code, context, language string) Analysis {
	runes := utf8.RuneCountInString(code)
	lines := lineCount(code)
	depth := maxBraceDepth(code)
	lang := CanonicalLanguage(language)

	f := Factors{
		Length:     saturate(float64(runes), lengthSaturate) * lengthWeight,
		Lines:      saturate(float64(lines), linesSaturate) * linesWeight,
		Nesting:    saturate(float64(depth), nestingSaturate) * nestingWeight,
		Constructs: constructScore(code),
		Language:   languageBonus[lang],
		Functions:  minFloat(float64(len(functionPattern.FindAllStringIndex(code, -1)))*functionPerMatch, functionCap),
		Context:    contextScore(context),
	}

	return Analysis{
		Score:     clamp01(f.Sum()),
		Language:  lang,
		Runes:     runes,
		LineCount: lines,
		MaxDepth:  depth,
		Factors:   f,
	}
}

// CanonicalLanguage maps a language tag or alias to a lower-case canonical
// name using chroma's lexer registry. Unknown tags are returned lower-cased.
func CanonicalLanguage(language string) string {
	tag := strings.ToLower(strings.TrimSpace(language))
	if tag == "" {
		return ""
	}
	if _, ok := languageBonus[tag]; ok {
		return tag
	}
	if l := lexers.Get(tag); l != nil {
		return strings.ToLower(l.Config().Name)
	}
	return tag
}

// lineCount counts lines, treating a trailing newline as ending the last line.
func lineCount(code string) int {
	if code == "" {
		return 0
	}
	n := strings.Count(code, "\n")
	if !strings.HasSuffix(code, "\n") {
		n++
	}
	return n
}

// maxBraceDepth tracks the deepest '{' nesting. The running depth never goes
// below zero, so stray closing braces cannot cancel later nesting.
func maxBraceDepth(code string) int {
	depth, maxDepth := 0, 0
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return maxDepth
}

func constructScore(code string) float64 {
	total := 0.0
	for _, re := range constructPatterns {
		matches := len(re.FindAllStringIndex(code, -1))
		total += minFloat(float64(matches)*constructPerMatch, constructPerKind)
	}
	return minFloat(total, constructCap)
}

func contextScore(context string) float64 {
	if context == "" {
		return 0
	}
	c := strings.ToLower(context)
	return minFloat(float64(countKeywords(c, strongPatterns))*strongKeywordBonus, strongKeywordCap) +
		minFloat(float64(countKeywords(c, weakPatterns))*weakKeywordBonus, weakKeywordCap)
}

// countKeywords counts distinct keywords present in s.
func countKeywords(s string, patterns []*regexp.Regexp) int {
	n := 0
	for _, re := range patterns {
		if re.MatchString(s) {
			n++
		}
	}
	return n
}

func saturate(v, limit float64) float64 {
	return minFloat(v/limit, 1)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
