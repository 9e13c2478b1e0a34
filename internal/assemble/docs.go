package assemble

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/tender-ingest/internal/extract"
	"github.com/jonathan/tender-ingest/internal/normalize"
	"github.com/jonathan/tender-ingest/internal/snapshot"
	"github.com/jonathan/tender-ingest/internal/types"
)

// app_docs layouts
const (
	LayoutQA       = "qa"
	LayoutFileList = "file_list"
)

// DocumentIndex assembles the app_docs tab. Two layouts exist: question and
// answer sections with attached files, and a plain file table. A page with
// neither is a ShapeError.
func (a *Assembler) DocumentIndex(s snapshot.Snapshot, doc *extract.Document) (*types.DocumentIndex, error) {
	if sections := doc.Find("section.question"); sections.Length() > 0 {
		return a.qaIndex(s, sections), nil
	}
	if table := doc.Find("table#tender_docs"); table.Length() > 0 {
		return a.fileListIndex(s, table.First()), nil
	}
	return nil, &ShapeError{File: s.Name(), Tab: s.Tab, Message: "neither question sections nor table#tender_docs found"}
}

func (a *Assembler) qaIndex(s snapshot.Snapshot, sections *goquery.Selection) *types.DocumentIndex {
	idx := &types.DocumentIndex{Layout: LayoutQA, Documents: []types.Document{}}
	sections.Each(func(i int, sec *goquery.Selection) {
		id, _ := sec.Attr("id")
		id = strings.TrimSpace(id)
		if id == "" {
			id = "section_" + strconv.Itoa(i+1)
		}
		idx.Sections = append(idx.Sections, types.DocSection{
			ApplicationID: s.ApplicationID,
			SectionID:     id,
			Title:         extract.Text(sec.Find("p.q").First()),
			Body:          extract.Text(sec.Find("div.a").First()),
		})

		sec.Find("div.answ-file a[href]").Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			name := extract.Text(link)
			if name == "" {
				name = pathBase(href)
			}
			idx.Documents = append(idx.Documents, types.Document{
				ApplicationID: s.ApplicationID,
				SourceTab:     string(s.Tab),
				DocIndex:      len(idx.Documents) + 1,
				SectionID:     id,
				Name:          normalize.CleanFileName(name),
				Link:          a.resolve(href),
			})
		})
	})
	return idx
}

func (a *Assembler) fileListIndex(s snapshot.Snapshot, table *goquery.Selection) *types.DocumentIndex {
	idx := &types.DocumentIndex{Layout: LayoutFileList, Documents: []types.Document{}}
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		fileCell := row.Find("td.obsolete0, td.obsolete1").First()
		link := fileCell.Find("a[href]").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")

		d := types.Document{
			ApplicationID: s.ApplicationID,
			SourceTab:     string(s.Tab),
			DocIndex:      len(idx.Documents) + 1,
			SectionID:     types.MainDocumentationSection,
			Name:          normalize.CleanFileName(extract.Text(link)),
			Link:          a.resolve(href),
			Obsolete:      fileCell.HasClass("obsolete1"),
		}
		if dateCell := row.Find("td.date").First(); dateCell.Length() > 0 {
			date, author := splitMeta(extract.Text(dateCell), "::")
			d.UploadedAt, _ = a.norm.ParseDateTime(date)
			d.Author = author
		}
		idx.Documents = append(idx.Documents, d)
	})
	return idx
}

func pathBase(href string) string {
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndexAny(href, "/="); i >= 0 {
		return href[i+1:]
	}
	return href
}
