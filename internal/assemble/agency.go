package assemble

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/tender-ingest/internal/extract"
	"github.com/jonathan/tender-ingest/internal/normalize"
	"github.com/jonathan/tender-ingest/internal/snapshot"
	"github.com/jonathan/tender-ingest/internal/types"
)

var dateTimeToken = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}(?:\s+\d{1,2}:\d{2}(?::\d{2})?)?`)

// AgencyDocs assembles the agency_docs tab: report documents and the
// disqualification table.
func (a *Assembler) AgencyDocs(s snapshot.Snapshot, doc *extract.Document) (*types.AgencyDocs, error) {
	agency := doc.Find("div#agency_docs").First()
	if agency.Length() == 0 {
		return nil, &ShapeError{File: s.Name(), Tab: s.Tab, Message: "div#agency_docs not found"}
	}

	out := &types.AgencyDocs{Documents: []types.Document{}}

	agency.Find("table#reports tbody tr").Each(func(_ int, row *goquery.Selection) {
		links := row.Find("a[href]")
		if links.Length() == 0 {
			return
		}
		var date, author string
		if cells := row.ChildrenFiltered("td"); cells.Length() >= 3 {
			date, author = a.authorDate(extract.Text(cells.Eq(2)))
		}
		links.Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			name := extract.Text(link)
			if name == "" {
				name = pathBase(href)
			}
			out.Documents = append(out.Documents, types.Document{
				ApplicationID: s.ApplicationID,
				SourceTab:     string(s.Tab),
				DocIndex:      len(out.Documents) + 1,
				Name:          name,
				Link:          a.resolve(href),
				UploadedAt:    date,
				Author:        author,
				Obsolete:      link.Closest("td").HasClass("obsolete1"),
			})
		})
	})

	agency.Find("div.ui-state-highlight").First().Find("table").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < 3 {
			return
		}
		rawDate := extract.Text(cells.Eq(0))
		company := extract.Text(cells.Eq(1))
		if company == "" {
			return
		}
		date, ok := a.norm.ParseDate(rawDate)
		if !ok {
			// header rows carry labels instead of dates
			return
		}
		out.Disqualifications = append(out.Disqualifications, types.Disqualification{
			ApplicationID: s.ApplicationID,
			CompanyName:   company,
			Date:          date,
			Reason:        extract.Text(cells.Eq(2)),
		})
	})

	return out, nil
}

// authorDate splits "date / author" cells. Without a slash the date token is
// located directly and the remainder is the author.
func (a *Assembler) authorDate(text string) (string, string) {
	if text == "" {
		return "", ""
	}
	if left, right, found := strings.Cut(text, "/"); found {
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if d, ok := a.norm.ParseDateTime(left); ok {
			return d, right
		}
		if d, ok := a.norm.ParseDateTime(right); ok {
			return d, left
		}
		return "", text
	}
	token := dateTimeToken.FindString(text)
	if token == "" {
		return "", text
	}
	d, _ := a.norm.ParseDateTime(token)
	return d, normalize.CleanText(strings.Replace(text, token, "", 1))
}
