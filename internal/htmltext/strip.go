// Package htmltext removes markup from upstream message bodies.
package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strip removes every HTML tag from s and returns its text content with
// entities decoded. Input that cannot be parsed is returned unchanged.
func Strip(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}
