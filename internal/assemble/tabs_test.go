package assemble

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/tender-ingest/internal/snapshot"
	"github.com/jonathan/tender-ingest/internal/types"
)

func TestDocumentIndex_FileList(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := loadFixture(t, "pg_NAT240000167_553925_app_docs.html")

	idx, err := a.DocumentIndex(s, doc)
	require.NoError(t, err)

	assert.Equal(t, LayoutFileList, idx.Layout)
	assert.Empty(t, idx.Sections)
	require.Len(t, idx.Documents, 2)

	first := idx.Documents[0]
	assert.Equal(t, int64(553925), first.ApplicationID)
	assert.Equal(t, "app_docs", first.SourceTab)
	assert.Equal(t, 1, first.DocIndex)
	assert.Equal(t, types.MainDocumentationSection, first.SectionID)
	assert.Equal(t, "ტექნიკური_დავალება_1.pdf", first.Name)
	assert.Equal(t, portal+"library/files.php?mode=app&file=1001&code=abc", first.Link)
	assert.Equal(t, "2024-01-05 17:40:00", first.UploadedAt)
	assert.Equal(t, "ნინო ბერიძე", first.Author)
	assert.False(t, first.Obsolete)

	second := idx.Documents[1]
	assert.Equal(t, 2, second.DocIndex)
	assert.Equal(t, "ძველი_ვერსია.docx", second.Name)
	assert.Equal(t, "2024-01-04", second.UploadedAt)
	assert.True(t, second.Obsolete)
}

func TestDocumentIndex_QuestionSections(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := loadFixture(t, "pg_NAT240000168_553926_app_docs.html")

	idx, err := a.DocumentIndex(s, doc)
	require.NoError(t, err)

	assert.Equal(t, LayoutQA, idx.Layout)
	require.Len(t, idx.Sections, 2)
	assert.Equal(t, "q_101", idx.Sections[0].SectionID)
	assert.Equal(t, "შეკითხვა მოწოდების ვადაზე", idx.Sections[0].Title)
	assert.Contains(t, idx.Sections[0].Body, "მოწოდება ხორციელდება 30 დღეში.")
	assert.Equal(t, "section_2", idx.Sections[1].SectionID, "sections without an id are numbered")

	require.Len(t, idx.Documents, 2)
	assert.Equal(t, "პასუხი_1.pdf", idx.Documents[0].Name)
	assert.Equal(t, "q_101", idx.Documents[0].SectionID)
	assert.Equal(t, portal+"library/files.php?mode=answ&file=2001", idx.Documents[0].Link)
	assert.Equal(t, "დანართი.xlsx", idx.Documents[1].Name)
	assert.Equal(t, 2, idx.Documents[1].DocIndex)
	assert.Equal(t, portal+"library/files.php?mode=answ&file=2002", idx.Documents[1].Link)
}

func TestDocumentIndex_UnknownLayout(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := inlineSnapshot(t, snapshot.TabDocs, `<html><body><table id="other"></table></body></html>`)

	idx, err := a.DocumentIndex(s, doc)
	assert.Nil(t, idx)
	assert.True(t, errors.Is(err, ErrUnrecognizedShape))
}

func TestBids(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := loadFixture(t, "pg_NAT240000167_553925_app_bids.html")

	table := a.Bids(s, doc)

	require.Len(t, table.Bidders, 3)
	assert.Equal(t, types.Bidder{BidderID: 101, Name: "შპს ალფა"}, table.Bidders[0])
	assert.Equal(t, types.Bidder{BidderID: 202, Name: "შპს ბეტა"}, table.Bidders[1])

	require.Len(t, table.Bids, 3)
	ranks := make(map[int64]int)
	for _, b := range table.Bids {
		ranks[b.BidderID] = b.Rank
	}
	assert.Equal(t, map[int64]int{101: 3, 202: 1, 303: 2}, ranks)

	alpha := table.Bids[2]
	assert.Equal(t, int64(101), alpha.BidderID)
	assert.InDelta(t, 500.0, alpha.LastAmount, 0.001)
	assert.Equal(t, "2024-01-20 12:00:00", alpha.LastOfferAt)
	assert.InDelta(t, 3763220.0, alpha.FirstAmount, 0.001)
	assert.Equal(t, "2024-01-15 09:30:00", alpha.FirstOfferAt)
	assert.Equal(t, 3, alpha.OfferCount)

	beta := table.Bids[0]
	assert.Equal(t, int64(202), beta.BidderID)
	assert.Equal(t, 1, beta.OfferCount)
	assert.InDelta(t, 450.0, beta.FirstAmount, 0.001)
}

func TestBids_NoTable(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := inlineSnapshot(t, snapshot.TabBids, `<html><body><p>შეთავაზებები არ არის</p></body></html>`)

	table := a.Bids(s, doc)
	assert.Empty(t, table.Bids)
	assert.Empty(t, table.Bidders)
}

func TestBids_DuplicateBidderKeepsFirstRow(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := inlineSnapshot(t, snapshot.TabBids, `<table class="ktable"><tbody>
		<tr><td><a onclick="ShowProfile(7)"><span>A</span></a></td><td><strong>10</strong></td><td>12</td><td></td></tr>
		<tr><td><a onclick="ShowProfile(7)"><span>A</span></a></td><td><strong>5</strong></td><td>12</td><td></td></tr>
		<tr><td><a onclick="ShowProfile(8)"></a></td><td><strong>20</strong></td><td>25</td><td></td></tr>
	</tbody></table>`)

	table := a.Bids(s, doc)
	require.Len(t, table.Bids, 2)
	assert.InDelta(t, 10.0, table.Bids[0].LastAmount, 0.001)
	assert.Equal(t, "Unknown", table.Bids[1].BidderName)
}

func TestRankBids(t *testing.T) {
	tests := []struct {
		name    string
		amounts []float64
		want    []int64
	}{
		{"ascending with tie keeps page order", []float64{500, 300, 300}, []int64{2, 3, 1}},
		{"unknown amounts last", []float64{0, 200, 100}, []int64{3, 2, 1}},
		{"all unknown", []float64{0, 0}, []int64{1, 2}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bids := make([]types.Bid, len(tt.amounts))
			for i, amt := range tt.amounts {
				bids[i] = types.Bid{BidderID: int64(i + 1), LastAmount: amt}
			}
			RankBids(bids)

			var order []int64
			for i, b := range bids {
				assert.Equal(t, i+1, b.Rank)
				order = append(order, b.BidderID)
			}
			assert.Equal(t, tt.want, order)
		})
	}
}

func TestAgencyDocs(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := loadFixture(t, "pg_NAT240000167_553925_agency_docs.html")

	agency, err := a.AgencyDocs(s, doc)
	require.NoError(t, err)

	require.Len(t, agency.Documents, 2)
	report := agency.Documents[0]
	assert.Equal(t, "agency_docs", report.SourceTab)
	assert.Equal(t, "შერჩევის ოქმი", report.Name)
	assert.Equal(t, portal+"library/files.php?mode=agency&file=3001", report.Link)
	assert.Equal(t, "2024-01-25 15:10:00", report.UploadedAt)
	assert.Equal(t, "გიორგი მაისურაძე", report.Author)
	assert.False(t, report.Obsolete)

	cancelled := agency.Documents[1]
	assert.Equal(t, 2, cancelled.DocIndex)
	assert.Equal(t, "2024-01-24", cancelled.UploadedAt)
	assert.Equal(t, "გიორგი მაისურაძე", cancelled.Author)
	assert.True(t, cancelled.Obsolete)

	// duplicates are left for the store to ignore
	require.Len(t, agency.Disqualifications, 2)
	assert.Equal(t, types.Disqualification{
		ApplicationID: 553925,
		CompanyName:   "შპს ალფა",
		Date:          "2024-01-26",
		Reason:        "საკვალიფიკაციო მოთხოვნებთან შეუსაბამობა",
	}, agency.Disqualifications[0])
}

func TestAgencyDocs_MissingContainer(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := inlineSnapshot(t, snapshot.TabAgencyDocs, `<table id="reports"></table>`)

	_, err := a.AgencyDocs(s, doc)
	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Contains(t, shapeErr.Message, "agency_docs")
}

func TestAuthorDate(t *testing.T) {
	a := newTestAssembler(t)

	date, author := a.authorDate("გიორგი / 25.01.2024 15:10")
	assert.Equal(t, "2024-01-25 15:10:00", date)
	assert.Equal(t, "გიორგი", author)

	date, author = a.authorDate("ავტორი უცნობია")
	assert.Equal(t, "", date)
	assert.Equal(t, "ავტორი უცნობია", author)
}

func TestContract(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := loadFixture(t, "pg_NAT240000167_553925_agr_docs.html")

	bundle := a.Contract(s, doc)
	c := bundle.Contract

	assert.True(t, c.HasContract)
	assert.Equal(t, int64(553925), c.ApplicationID)
	assert.Equal(t, "მიმდინარე ხელშეკრულება - საგარანტიო პერიოდი", c.Status)
	assert.Equal(t, "agrfg40", c.StatusCode)
	assert.Equal(t, "ნინო ლომჯარია", c.ResponsiblePerson)
	assert.Equal(t, "2024-11-28", c.StatusUpdatedAt)
	assert.Equal(t, int64(12345), c.SupplierID)
	assert.Equal(t, "შპს ტესტი", c.SupplierName)
	assert.Equal(t, "TEST123", c.ContractNumber)
	assert.InDelta(t, 100000.00, c.Amount, 0.001)
	assert.Equal(t, "GEL", c.Currency)
	assert.Equal(t, AmountSourceText, c.AmountSource)
	assert.Equal(t, "2024-01-01", c.ValidFrom)
	assert.Equal(t, "2024-12-31", c.ValidTo)
	assert.Equal(t, "2024-01-01", c.SignedAt)
	assert.Equal(t, "pg_NAT240000167_553925_agr_docs.html", c.SourceFile)
}

func TestContract_Amendments(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := loadFixture(t, "pg_NAT240000167_553925_agr_docs.html")

	bundle := a.Contract(s, doc)

	require.Len(t, bundle.Amendments, 2)
	first := bundle.Amendments[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "2024-03-15", first.Date)
	assert.Equal(t, "TEST123-1", first.ContractNumber)
	assert.InDelta(t, 110000.0, first.Amount, 0.001)
	assert.Equal(t, "GEL", first.Currency)
	assert.Equal(t, "შპს ტესტი", first.Counterparty)
	assert.Equal(t, portal+"library/contract.php?go=9001", first.Link)

	second := bundle.Amendments[1]
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, "2024-06-01", second.Date)
	assert.Equal(t, "2024-01-01", second.ValidFrom)
	assert.Equal(t, "2025-03-31", second.ValidTo)
	assert.Zero(t, second.Amount)
}

func TestContract_PaymentsAndSummary(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := loadFixture(t, "pg_NAT240000167_553925_agr_docs.html")

	bundle := a.Contract(s, doc)

	require.Len(t, bundle.Payments, 2)
	advance := bundle.Payments[0]
	assert.InDelta(t, 33000.0, advance.Amount, 0.001)
	assert.Equal(t, types.PaymentTypeAdvance, advance.PaymentType)
	assert.Equal(t, "სახელმწიფო ბიუჯეტი 2024", advance.FundingSource)
	assert.Equal(t, 2024, advance.Year)
	assert.Equal(t, 1, advance.Quarter)
	assert.Equal(t, "2024-02-20", advance.PaymentDate)
	assert.Equal(t, "2024-02-21", advance.RecordedAt)

	regular := bundle.Payments[1]
	assert.InDelta(t, 16500.0, regular.Amount, 0.001)
	assert.Equal(t, types.PaymentTypeRegular, regular.PaymentType)
	assert.Equal(t, 2, regular.Quarter)

	require.NotNil(t, bundle.Summary)
	assert.InDelta(t, 110000.0, bundle.Summary.ContractAmount, 0.001, "page total overrides the contract amount")
	assert.InDelta(t, 49500.0, bundle.Summary.PaidAmount, 0.001)
	assert.InDelta(t, 45.0, bundle.Summary.PaidPercent, 0.001)
	assert.Equal(t, 2, bundle.Summary.PaymentCount)
	assert.InDelta(t, 33000.0, bundle.Summary.AdvanceAmount, 0.001)
}

func TestContract_Documents(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := loadFixture(t, "pg_NAT240000167_553925_agr_docs.html")

	bundle := a.Contract(s, doc)

	require.Len(t, bundle.Documents, 2)
	assert.Equal(t, types.Document{
		ApplicationID: 553925,
		SourceTab:     "agr_docs",
		DocIndex:      1,
		Name:          "ხელშეკრულება",
		Link:          portal + "library/contract.php?go=8001",
		UploadedAt:    "2024-11-28 10:15:00",
		Author:        "ნინო ლომჯარია",
		FileType:      "pdf",
	}, bundle.Documents[0])
	assert.Equal(t, "doc", bundle.Documents[1].FileType)
	assert.Equal(t, "2024-11-29", bundle.Documents[1].UploadedAt)
	assert.Empty(t, bundle.Documents[1].Author)
}

func TestContract_StructuredAmountWins(t *testing.T) {
	a := newTestAssembler(t)
	s, doc := inlineSnapshot(t, snapshot.TabContract, `<div id="agency_docs">
		<div class="ui-state-highlight">
			<span class="agrfg20">ხელშეკრულება შესრულებულია</span>
			<span class="date">01.02.2024 :: ოპერატორი</span>
			<strong>შპს ტესტი</strong><br>
			ნომერი/თანხა: X-77 / 100000.00 ლარი <span class="convertme" id="95000.00-USD-1">95000.00</span>
		</div>
	</div>`)

	c := a.Contract(s, doc).Contract

	assert.Equal(t, "X-77", c.ContractNumber)
	assert.InDelta(t, 95000.0, c.Amount, 0.001)
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, AmountSourceStructured, c.AmountSource)
	assert.Equal(t, "2024-02-01", c.StatusUpdatedAt)
	assert.Equal(t, "ოპერატორი", c.ResponsiblePerson)
}

func TestContract_NoContractBlock(t *testing.T) {
	a := newTestAssembler(t)

	tests := []struct {
		name string
		html string
	}{
		{"empty page", `<html><body><p>ხელშეკრულება არ არის</p></body></html>`},
		{"payments only", `<div id="agency_docs"><div class="ui-state-highlight">ფაქტობრივი გადახდები</div></div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, doc := inlineSnapshot(t, snapshot.TabContract, tt.html)
			bundle := a.Contract(s, doc)
			assert.False(t, bundle.Contract.HasContract)
			assert.Equal(t, int64(999), bundle.Contract.ApplicationID)
			assert.Empty(t, bundle.Amendments)
			assert.Empty(t, bundle.Payments)
			assert.Nil(t, bundle.Summary)
		})
	}
}

func TestContract_WithoutContainerUsesRoot(t *testing.T) {
	a := newTestAssembler(t)
	page := `<div class="ui-state-highlight">
		ნომერი/თანხა: R-1 / 2` + "`" + `500.50 ლარი<br>
	</div>
	<div class="ui-state-highlight">
		<div style="text-align: center"><strong>ხელშეკრულების ცვლილება</strong></div>
		<table><tr><td>
			ცვლილება 1<br>
			ხელშეკრულების ცვლილების თარიღი: 15.03.2024<br>
			ნომერი/თანხა: R-1-1 / 3` + "`" + `000.00 ლარი<br>
		</td></tr></table>
	</div>`

	for name, html := range map[string]string{
		"bare":    page,
		"wrapped": `<div id="agency_docs">` + page + `</div>`,
	} {
		t.Run(name, func(t *testing.T) {
			s, doc := inlineSnapshot(t, snapshot.TabContract, html)
			bundle := a.Contract(s, doc)

			c := bundle.Contract
			assert.True(t, c.HasContract)
			assert.Equal(t, "R-1", c.ContractNumber)
			assert.InDelta(t, 2500.50, c.Amount, 0.001)
			assert.Equal(t, "GEL", c.Currency)

			require.Len(t, bundle.Amendments, 1)
			am := bundle.Amendments[0]
			assert.Equal(t, 1, am.Number)
			assert.Equal(t, "2024-03-15", am.Date)
			assert.Equal(t, "R-1-1", am.ContractNumber)
			assert.InDelta(t, 3000.0, am.Amount, 0.001)
		})
	}
}
