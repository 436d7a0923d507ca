package oracle

import (
	"log/slog"
	nurl "net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// minReadableLength is the minimum readability output length for the
// extraction to count as successful. Listing pages often defeat the
// article heuristics, so the goquery strip path is the usual fallback.
const minReadableLength = 200

// Compress reduces raw markup to the text actually worth sending to the
// model: main content first via the Readability algorithm, otherwise the
// page text with non-content nodes stripped, capped at maxChars runes.
func Compress(markup, pageURL string, maxChars int) string {
	text := ""

	if u, err := nurl.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(markup), u); err == nil {
			if t := collapse(article.TextContent); utf8.RuneCountInString(t) >= minReadableLength {
				text = t
			}
		}
	}

	if text == "" {
		text = stripMarkup(markup)
	}

	return capRunes(text, maxChars)
}

// stripMarkup removes non-content nodes and returns the collapsed text.
func stripMarkup(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		slog.Warn("oracle: markup did not parse, sending raw text", "error", err)
		return collapse(markup)
	}
	doc.Find("script, style, noscript, iframe, svg, nav, header, footer, form, button").Remove()
	return collapse(doc.Find("body").Text())
}

// collapse normalizes whitespace within each line and drops blank
// lines. Line breaks are kept: line density feeds the model-tier
// heuristic and helps the model see row boundaries in tabular pages.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func capRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// EstimateTokens is a fast token count estimate (rune count / 3), good
// enough for logging and budget checks without a tokenizer dependency.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := n / 3
	if est < 1 {
		return 1
	}
	return est
}

var fourDigitRe = regexp.MustCompile(`\b\d{4}\b`)

// domainKeywords mark content dense with tabular institutional data,
// which the simple model tier handles poorly.
var domainKeywords = []string{
	"instituição", "estabelecimento", "licenciatura", "mestrado",
	"vagas", "concurso", "candidatura", "edital",
}

// isComplex decides the model tier. Content is complex when it is long,
// or line-dense, or shows at least two signals of tabular/coded data
// (many brackets, many four-digit codes, domain keywords).
func isComplex(content string) bool {
	if utf8.RuneCountInString(content) > 5000 {
		return true
	}
	if strings.Count(content, "\n") > 100 {
		return true
	}

	signals := 0
	if strings.Count(content, "[")+strings.Count(content, "(") > 20 {
		signals++
	}
	if len(fourDigitRe.FindAllString(content, 10)) >= 10 {
		signals++
	}
	lower := strings.ToLower(content)
	for _, kw := range domainKeywords {
		if strings.Contains(lower, kw) {
			signals++
			break
		}
	}
	return signals >= 2
}
