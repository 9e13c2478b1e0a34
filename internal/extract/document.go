// Package extract pulls field values out of HTML snapshots by trying an
// ordered list of strategies per field and returning the first hit.
package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/tender-ingest/internal/normalize"
)

// Document is a parsed snapshot. The markup is parsed once and shared by all
// strategies applied to it.
type Document struct {
	doc *goquery.Document
}

// Parse reads and parses an HTML snapshot.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseString parses HTML held in memory.
func ParseString(html string) (*Document, error) {
	return Parse(strings.NewReader(html))
}

// Root returns the document selection, the default scope for strategies.
func (d *Document) Root() *goquery.Selection {
	return d.doc.Selection
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Text returns the whitespace-collapsed text of a selection.
func Text(sel *goquery.Selection) string {
	return normalize.CleanText(sel.Text())
}

// Markup returns the serialized HTML of the first node in sel.
func Markup(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	return html
}
