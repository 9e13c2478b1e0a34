package assemble

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/extract"
	"github.com/jonathan/tender-ingest/internal/normalize"
	"github.com/jonathan/tender-ingest/internal/snapshot"
	"github.com/jonathan/tender-ingest/internal/types"
)

// Amount sources recorded on Contract.AmountSource.
const (
	AmountSourceStructured = "structured"
	AmountSourceText       = "text"
)

// Contract field names
const (
	fieldContractStatus     = "status"
	fieldContractStatusCode = "status_code"
	fieldStatusLine         = "status_line"
	fieldSupplierID         = "supplier_id"
	fieldContractNumber     = "contract_number"
	fieldAmount             = "amount"
	fieldCurrency           = "currency"
	fieldValidFrom          = "valid_from"
	fieldValidTo            = "valid_to"
	fieldSignedAt           = "signed_at"
)

const (
	amendmentMarker = "ცვლილება"
	paymentsMarker  = "ფაქტობრივი გადახდები"
)

var (
	statusCodePattern    = regexp.MustCompile(`(agrfg\d+)`)
	convertAmountPattern = regexp.MustCompile("^([\\d`.,]+)-")
	convertCurPattern    = regexp.MustCompile("^[\\d`.,]+-([A-Za-z]{3})")
	numberTextPattern    = regexp.MustCompile(`ნომერი/თანხა:\s*(.*?)\s*/`)
	amountMarkupPattern  = regexp.MustCompile(`ნომერი/თანხა:\s*.*?\s*/\s*([^<\n]*)`)
	validFromPattern     = regexp.MustCompile(`ხელშეკრულება ძალაშია:\s*(\d{2}\.\d{2}\.\d{4})`)
	validToPattern       = regexp.MustCompile(`ხელშეკრულება ძალაშია:\s*\d{2}\.\d{2}\.\d{4}\s*-\s*(\d{2}\.\d{2}\.\d{4})`)
	signedPattern        = regexp.MustCompile(`ხელშეკრულების თარიღი:\s*(\d{2}\.\d{2}\.\d{4})`)

	amendmentNumberPattern = regexp.MustCompile(`ცვლილება\s*(\d+)`)
	amendmentDatePattern   = regexp.MustCompile(`თარიღი:\s*(\d{2}\.\d{2}\.\d{4})`)
	amendmentAmountPattern = regexp.MustCompile("ნომერი/თანხა:.*?/\\s*([\\d`.,]+)")

	contractTotalPattern = regexp.MustCompile("ხელშეკრულების თანხა:\\s*([\\d`.,]+)\\s*ლარ")
	paidPattern          = regexp.MustCompile("გადახდილი თანხა:\\s*([\\d`.,]+)")
	paidPercentPattern   = regexp.MustCompile("გადახდილი თანხა:\\s*[\\d`.,]+\\s*ლარი?\\s*\\((\\d+(?:[.,]\\d+)?)%\\)")
	iconTypePattern      = regexp.MustCompile(`([A-Za-z0-9]+)\.(?:png|gif|jpe?g|svg)$`)
)

// contractFields is applied to the main contract block. Amount and currency
// prefer the structured convertme span over the free-text line.
var contractFields = extract.Table{
	{Name: fieldContractStatus, Strategies: []extract.Strategy{
		extract.Selector{CSS: `span[class^="agrfg"]`},
		extract.Selector{CSS: `span[class*="agrfg"]`},
	}},
	{Name: fieldContractStatusCode, Strategies: []extract.Strategy{
		extract.AttributePattern{CSS: `span[class*="agrfg"]`, Attr: "class", Pattern: statusCodePattern},
	}},
	{Name: fieldStatusLine, Strategies: []extract.Strategy{extract.Selector{CSS: "span.date"}}},
	{Name: fieldSupplierID, Strategies: []extract.Strategy{
		extract.AttributePattern{CSS: `a[onclick*="ShowProfile"]`, Attr: "onclick", Pattern: showProfilePattern},
	}},
	{Name: fieldContractNumber, Strategies: []extract.Strategy{
		extract.RawRegex{Pattern: numberTextPattern, OverText: true},
	}},
	{Name: fieldAmount, Strategies: []extract.Strategy{
		extract.Selector{CSS: "span.convertme[id]", Attr: "id", Pattern: convertAmountPattern},
		extract.RawRegex{Pattern: amountMarkupPattern},
	}},
	{Name: fieldCurrency, Strategies: []extract.Strategy{
		extract.Selector{CSS: "span.convertme[id]", Attr: "id", Pattern: convertCurPattern},
		extract.RawRegex{Pattern: amountMarkupPattern},
	}},
	{Name: fieldValidFrom, Strategies: []extract.Strategy{extract.RawRegex{Pattern: validFromPattern, OverText: true}}},
	{Name: fieldValidTo, Strategies: []extract.Strategy{extract.RawRegex{Pattern: validToPattern, OverText: true}}},
	{Name: fieldSignedAt, Strategies: []extract.Strategy{extract.RawRegex{Pattern: signedPattern, OverText: true}}},
}

// Contract assembles the agr_docs tab. A page without a contract block yields
// a bundle whose Contract has HasContract=false.
func (a *Assembler) Contract(s snapshot.Snapshot, doc *extract.Document) *types.ContractBundle {
	bundle := &types.ContractBundle{
		Contract: types.Contract{
			ApplicationID: s.ApplicationID,
			SourceFile:    s.Name(),
		},
	}

	container := doc.Find("div#agency_docs").First()
	if container.Length() == 0 {
		container = doc.Root()
	}
	blocks := container.Find("div.ui-state-highlight")
	block := blocks.First()
	if block.Length() == 0 || strings.Contains(extract.Text(block), paymentsMarker) {
		a.fileLogger(s).Debug("no contract block")
		return bundle
	}

	bundle.Contract = a.contractInfo(s, block)
	// Amendment blocks are siblings of the contract block.
	bundle.Amendments = a.amendments(s, block.Parent().ChildrenFiltered("div.ui-state-highlight"))
	bundle.Payments, bundle.Summary = a.payments(s, blocks, bundle.Contract.Amount)
	bundle.Documents = a.contractDocuments(s, doc)
	return bundle
}

func (a *Assembler) contractInfo(s snapshot.Snapshot, block *goquery.Selection) types.Contract {
	f := contractFields.ExtractAll(block)

	c := types.Contract{
		ApplicationID:  s.ApplicationID,
		HasContract:    true,
		Status:         f.String(fieldContractStatus),
		StatusCode:     f.String(fieldContractStatusCode),
		ContractNumber: f.String(fieldContractNumber),
		SourceFile:     s.Name(),
	}

	if line, ok := f.Get(fieldStatusLine); ok {
		c.StatusUpdatedAt, c.ResponsiblePerson = a.dateAndPerson(line)
		if len(c.StatusUpdatedAt) > 10 {
			c.StatusUpdatedAt = c.StatusUpdatedAt[:10]
		}
	}

	if v, ok := f.Get(fieldSupplierID); ok {
		c.SupplierID, _ = strconv.ParseInt(v, 10, 64)
	}
	c.SupplierName = supplierName(block)

	if v, ok := f.Get(fieldAmount); ok {
		c.Amount = a.norm.ParseAmount(firstNumber(v))
		c.AmountSource = AmountSourceText
		if f.Strategy(fieldAmount) == extract.KindSelector {
			c.AmountSource = AmountSourceStructured
		}
	}
	if v, ok := f.Get(fieldCurrency); ok {
		if f.Strategy(fieldCurrency) == extract.KindSelector {
			c.Currency = normalize.CurrencyCode(v)
		} else {
			c.Currency = a.norm.ParseCurrency(v)
		}
	}
	if c.Currency == "" {
		c.Currency = normalize.DefaultCurrency
	}

	if v, ok := f.Get(fieldValidFrom); ok {
		c.ValidFrom, _ = a.norm.ParseDate(v)
	}
	if v, ok := f.Get(fieldValidTo); ok {
		c.ValidTo, _ = a.norm.ParseDate(v)
	}
	if v, ok := f.Get(fieldSignedAt); ok {
		c.SignedAt, _ = a.norm.ParseDate(v)
	}
	return c
}

// supplierName reads the strong element next to the supplier's profile link,
// falling back to the first strong in the link's parent and then the block.
func supplierName(block *goquery.Selection) string {
	link := block.Find(`a[onclick*="ShowProfile"]`).First()
	if link.Length() > 0 {
		if strong := link.NextAllFiltered("strong").First(); strong.Length() > 0 {
			return extract.Text(strong)
		}
		if strong := link.Parent().Find("strong").First(); strong.Length() > 0 {
			return extract.Text(strong)
		}
	}
	return extract.Text(block.Find("strong").First())
}

func (a *Assembler) amendments(s snapshot.Snapshot, blocks *goquery.Selection) []types.Amendment {
	var out []types.Amendment
	index := make(map[int]int)

	blocks.Each(func(i int, block *goquery.Selection) {
		if i == 0 {
			return
		}
		header := block.Find(`div[style*="text-align"]`).FilterFunction(func(_ int, h *goquery.Selection) bool {
			style, _ := h.Attr("style")
			return strings.Contains(strings.ReplaceAll(style, " ", ""), "text-align:center")
		}).First()
		if header.Length() == 0 || !strings.Contains(extract.Text(header), amendmentMarker) {
			return
		}

		block.Find("table").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
			text := extract.Text(row)
			m := amendmentNumberPattern.FindStringSubmatch(text)
			dateMatch := amendmentDatePattern.FindStringSubmatch(text)
			if m == nil && dateMatch == nil {
				return
			}

			am := types.Amendment{ApplicationID: s.ApplicationID, Number: len(out) + 1}
			if m != nil {
				am.Number, _ = strconv.Atoi(m[1])
			}
			if dateMatch != nil {
				am.Date, _ = a.norm.ParseDate(dateMatch[1])
			}
			if n := numberTextPattern.FindStringSubmatch(text); n != nil {
				am.ContractNumber = normalize.CleanText(n[1])
			}
			if amt := amendmentAmountPattern.FindStringSubmatch(text); amt != nil {
				am.Amount = a.norm.ParseAmount(amt[1])
				am.Currency = normalize.DefaultCurrency
			}
			if v := validFromPattern.FindStringSubmatch(text); v != nil {
				am.ValidFrom, _ = a.norm.ParseDate(v[1])
			}
			if v := validToPattern.FindStringSubmatch(text); v != nil {
				am.ValidTo, _ = a.norm.ParseDate(v[1])
			}
			if link := row.Find(`a[href*="contract.php"]`).First(); link.Length() > 0 {
				href, _ := link.Attr("href")
				am.Link = a.resolve(href)
			}
			am.Counterparty = extract.Text(row.Find("strong").First())

			if pos, dup := index[am.Number]; dup {
				out[pos] = am
				return
			}
			index[am.Number] = len(out)
			out = append(out, am)
		})
	})

	if len(out) > 0 {
		a.fileLogger(s).Debug("amendments found", zap.Int("count", len(out)))
	}
	return out
}

func (a *Assembler) payments(s snapshot.Snapshot, blocks *goquery.Selection, contractAmount float64) ([]types.Payment, *types.PaymentSummary) {
	block := blocks.FilterFunction(func(_ int, b *goquery.Selection) bool {
		return strings.Contains(extract.Text(b), paymentsMarker)
	}).First()
	if block.Length() == 0 {
		return nil, nil
	}

	text := extract.Text(block)
	total := contractAmount
	if m := contractTotalPattern.FindStringSubmatch(text); m != nil {
		if v := a.norm.ParseAmount(m[1]); v > 0 {
			total = v
		}
	}
	var paid, percent float64
	if m := paidPattern.FindStringSubmatch(text); m != nil {
		paid = a.norm.ParseAmount(m[1])
	}
	if m := paidPercentPattern.FindStringSubmatch(text); m != nil {
		percent, _ = normalize.ParsePercent(m[1] + "%")
	}

	var payments []types.Payment
	seen := make(map[string]bool)
	block.Find("table.ktable").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cols := row.ChildrenFiltered("td")
		if cols.Length() < 5 {
			return
		}
		amountCell := cols.Eq(0).Clone()
		funding := extract.Text(amountCell.Find("span.color-2"))
		amountCell.Find("span.color-2").Remove()
		amountText := extract.Text(amountCell)

		p := types.Payment{
			ApplicationID: s.ApplicationID,
			Amount:        a.norm.ParseAmount(firstNumber(amountText)),
			PaymentType:   types.PaymentTypeRegular,
			FundingSource: funding,
		}
		if p.Amount == 0 {
			// header row
			return
		}
		lower := strings.ToLower(extract.Text(cols.Eq(0)))
		if strings.Contains(lower, "ავანსი") || strings.Contains(lower, "аванс") {
			p.PaymentType = types.PaymentTypeAdvance
		}
		p.Year, _ = strconv.Atoi(extract.Text(cols.Eq(1)))
		p.Quarter, _ = strconv.Atoi(extract.Text(cols.Eq(2)))
		p.PaymentDate, _ = a.norm.ParseDate(extract.Text(cols.Eq(3)))
		p.RecordedAt, _ = a.norm.ParseDate(extract.Text(cols.Eq(4)))

		key := strconv.FormatFloat(p.Amount, 'f', 2, 64) + "|" + p.PaymentDate + "|" + p.PaymentType
		if seen[key] {
			return
		}
		seen[key] = true
		payments = append(payments, p)
	})

	summary := types.SummarizePayments(s.ApplicationID, payments, total, paid, percent)
	return payments, &summary
}

func (a *Assembler) contractDocuments(s snapshot.Snapshot, doc *extract.Document) []types.Document {
	var docs []types.Document
	doc.Find("table#last_docs").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cols := row.ChildrenFiltered("td")
		if cols.Length() < 4 {
			return
		}
		link := cols.Eq(2).Find("a[href]").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")

		index, err := strconv.Atoi(strings.Trim(extract.Text(cols.Eq(0)), ". "))
		if err != nil || index <= 0 {
			index = len(docs) + 1
		}
		d := types.Document{
			ApplicationID: s.ApplicationID,
			SourceTab:     string(s.Tab),
			DocIndex:      index,
			Name:          extract.Text(link),
			Link:          a.resolve(href),
		}
		if src, ok := cols.Eq(1).Find("img").Attr("src"); ok {
			if m := iconTypePattern.FindStringSubmatch(src); m != nil {
				d.FileType = strings.ToLower(m[1])
			}
		}
		date, author := splitMeta(extract.Text(cols.Eq(3)), "::")
		d.UploadedAt, _ = a.norm.ParseDateTime(date)
		d.Author = author
		docs = append(docs, d)
	})
	return docs
}
