package assemble

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/tender-ingest/internal/extract"
	"github.com/jonathan/tender-ingest/internal/types"
)

var (
	showAppPattern    = regexp.MustCompile(`ShowApp\((\d+),\s*'[^']*',\s*\d+,\s*'([^']+)'\)`)
	paginationPattern = regexp.MustCompile(`გვერდი:\s*(\d+)/(\d+)`)
)

const (
	listingNumberLabel = "განცხადების ნომერი:"
	listingStartLabel  = "შესყიდვის გამოცხადების თარიღი:"
)

// The deadline label appears with two spellings on the portal.
var listingEndLabels = []string{"წინდადებების მიღების ვადა:", "წინადადებების მიღების ვადა:"}

// Listing is one page of search results.
type Listing struct {
	Summaries  []types.TenderSummary
	Page       int
	TotalPages int
}

// SearchResults assembles a search results page into tender summaries. Rows
// without an application id and token are skipped.
func (a *Assembler) SearchResults(doc *extract.Document) *Listing {
	out := &Listing{Page: 1, TotalPages: 1}

	doc.Find("#content tbody tr").Each(func(_ int, row *goquery.Selection) {
		onclick, _ := row.Attr("onclick")
		m := showAppPattern.FindStringSubmatch(extract.NormalizeAttr(onclick))
		if m == nil {
			return
		}
		appID, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return
		}

		sum := types.TenderSummary{
			ApplicationID: appID,
			Token:         m[2],
			TenderNumber:  extract.Text(paragraphWith(row, listingNumberLabel).Find("strong").First()),
			Status:        extract.Text(row.Find("p.status").First()),
		}
		if p := paragraphWith(row, listingStartLabel); p.Length() > 0 {
			sum.StartDate, _ = a.norm.ParseDateTime(afterLabel(extract.Text(p), listingStartLabel))
		}
		for _, l := range listingEndLabels {
			if p := paragraphWith(row, l); p.Length() > 0 {
				sum.EndDate, _ = a.norm.ParseDateTime(afterLabel(extract.Text(p), l))
				break
			}
		}
		out.Summaries = append(out.Summaries, sum)
	})

	if m := paginationPattern.FindStringSubmatch(extract.Text(doc.Root())); m != nil {
		out.Page, _ = strconv.Atoi(m[1])
		out.TotalPages, _ = strconv.Atoi(m[2])
	}
	return out
}

func paragraphWith(scope *goquery.Selection, label string) *goquery.Selection {
	return scope.Find("p").FilterFunction(func(_ int, p *goquery.Selection) bool {
		return strings.Contains(extract.Text(p), label)
	}).First()
}

func afterLabel(text, label string) string {
	if _, rest, ok := strings.Cut(text, label); ok {
		return strings.TrimSpace(rest)
	}
	return text
}
