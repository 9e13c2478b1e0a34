package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/tender-ingest/internal/normalize"
)

// Kind names a strategy type.
type Kind string

// Strategy kinds
const (
	KindLabelCell        Kind = "label_cell"
	KindAttributePattern Kind = "attribute_pattern"
	KindSelector         Kind = "selector"
	KindRawRegex         Kind = "raw_regex"
)

// Strategy locates one field value inside a scope.
type Strategy interface {
	Kind() Kind
	Apply(scope *goquery.Selection) (string, bool)
}

// LabelCell finds the table cell whose text contains Label and reads the next
// sibling cell. When Item is set, the texts of matching descendants of that
// cell are joined with ", " instead.
type LabelCell struct {
	Label string
	Item  string
}

func (LabelCell) Kind() Kind { return KindLabelCell }

func (s LabelCell) Apply(scope *goquery.Selection) (string, bool) {
	var value string
	scope.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		// layout cells wrapping a whole nested table also contain the label
		if td.Find("td").Length() > 0 || !strings.Contains(Text(td), s.Label) {
			return true
		}
		next := td.NextAllFiltered("td").First()
		if next.Length() == 0 {
			return true
		}
		if s.Item != "" {
			var items []string
			next.Find(s.Item).Each(func(_ int, item *goquery.Selection) {
				if t := Text(item); t != "" {
					items = append(items, t)
				}
			})
			value = strings.Join(items, ", ")
		} else {
			value = Text(next)
		}
		return value == ""
	})
	return value, value != ""
}

// Selector returns the text, or the value of Attr, of the first element
// matching CSS. When Pattern is set the first capture group of the match is
// returned instead of the whole value.
type Selector struct {
	CSS     string
	Attr    string
	Pattern *regexp.Regexp
}

func (Selector) Kind() Kind { return KindSelector }

func (s Selector) Apply(scope *goquery.Selection) (string, bool) {
	var value string
	scope.Find(s.CSS).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		var raw string
		if s.Attr != "" {
			attr, ok := el.Attr(s.Attr)
			if !ok {
				return true
			}
			raw = normalize.CleanText(attr)
		} else {
			raw = Text(el)
		}
		value = capture(s.Pattern, raw, 1)
		return value == ""
	})
	return value, value != ""
}

// AttributePattern scans the Attr attribute of elements matching CSS and
// returns capture group Group of Pattern. Attribute values are normalized
// first: whitespace runs collapse to one space and double quotes become single
// quotes, so "ShowProfile( 12 )" and ShowProfile(12) need one pattern.
type AttributePattern struct {
	CSS     string
	Attr    string
	Pattern *regexp.Regexp
	Group   int
}

func (AttributePattern) Kind() Kind { return KindAttributePattern }

func (s AttributePattern) Apply(scope *goquery.Selection) (string, bool) {
	css := s.CSS
	if css == "" {
		css = "[" + s.Attr + "]"
	}
	group := s.Group
	if group == 0 {
		group = 1
	}
	var value string
	scope.Find(css).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		attr, ok := el.Attr(s.Attr)
		if !ok {
			return true
		}
		value = capture(s.Pattern, NormalizeAttr(attr), group)
		return value == ""
	})
	return value, value != ""
}

// RawRegex applies Pattern to the serialized markup of the scope, or to its
// flattened text when OverText is set, and returns capture group 1.
type RawRegex struct {
	Pattern  *regexp.Regexp
	OverText bool
}

func (RawRegex) Kind() Kind { return KindRawRegex }

func (s RawRegex) Apply(scope *goquery.Selection) (string, bool) {
	var haystack string
	if s.OverText {
		haystack = Text(scope)
	} else {
		haystack = Markup(scope)
	}
	value := capture(s.Pattern, haystack, 1)
	return value, value != ""
}

// NormalizeAttr collapses whitespace and unifies quote characters.
func NormalizeAttr(v string) string {
	v = strings.ReplaceAll(v, `"`, "'")
	v = strings.ReplaceAll(v, "( ", "(")
	v = strings.ReplaceAll(v, " )", ")")
	return normalize.CleanText(v)
}

func capture(re *regexp.Regexp, s string, group int) string {
	if re == nil {
		return strings.TrimSpace(s)
	}
	m := re.FindStringSubmatch(s)
	if m == nil || group >= len(m) {
		return ""
	}
	return normalize.CleanText(m[group])
}
