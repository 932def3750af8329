package tools

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// plainText extracts readable text from an HTML fragment, dropping script
// and style content and collapsing whitespace. Input that does not parse is
// returned with whitespace collapsed.
func plainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	doc.Find("script, style, noscript").Remove()
	// Block elements run together without this
	doc.Find("p, br, li, div, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// forSpeech shortens text to limit runes, marking the cut with "..."
func forSpeech(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

// dayRate renders a salary range as spoken text. Missing bounds read as "?".
func dayRate(currency string, min, max *int64) string {
	symbol := currencySymbol(currency)
	bound := func(v *int64) string {
		if v == nil {
			return "?"
		}
		return fmt.Sprintf("%d", *v)
	}
	return fmt.Sprintf("%s%s-%s/day", symbol, bound(min), bound(max))
}

func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "", "GBP":
		return "£"
	case "USD":
		return "$"
	case "EUR":
		return "€"
	}
	return strings.ToUpper(code) + " "
}
