package assemble

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/extract"
	"github.com/jonathan/tender-ingest/internal/snapshot"
	"github.com/jonathan/tender-ingest/internal/types"
)

// Tender field names
const (
	fieldTenderType      = "tender_type"
	fieldTenderNumber    = "tender_number"
	fieldStatus          = "status"
	fieldCustomer        = "customer"
	fieldAnnouncedAt     = "announced_at"
	fieldSubmissionStart = "submission_start"
	fieldSubmissionEnd   = "submission_end"
	fieldPrice           = "estimated_price"
	fieldPaymentTerms    = "payment_terms"
	fieldCategory        = "category"
	fieldClassifier      = "classifier_codes"
	fieldDeliveryTerm    = "delivery_term"
	fieldDescription     = "description"
	fieldQuantity        = "quantity"
	fieldBidStep         = "bid_step"
	fieldGuarantee       = "guarantee_term"
	fieldURL             = "url"
)

var (
	deliveryPlacePattern   = regexp.MustCompile(`(?:სოფელ|ქალაქ|დაბა)\s*([ა-ჰ\s]+)(?:ში|ის)`)
	cadastralPlacePattern  = regexp.MustCompile(`([ა-ჰ\s]+)\s*\(საკადასტრო კოდი:`)
	tenderNumberInText     = regexp.MustCompile(`განცხადების ნომერი:?\s*([A-Z]{2,4}\d{6,})`)
	preURLPattern          = regexp.MustCompile(`(https?://\S+)\s*$`)
	currencyCodeInCellText = regexp.MustCompile(`\b([A-Z]{3})\b`)
)

func label(text string) extract.Strategy {
	return extract.LabelCell{Label: text}
}

// tenderFields maps each app_main field to its fallback strategies.
var tenderFields = extract.Table{
	{Name: fieldTenderType, Strategies: []extract.Strategy{label("შესყიდვის ტიპი")}},
	{Name: fieldTenderNumber, Strategies: []extract.Strategy{
		label("განცხადების ნომერი"),
		extract.RawRegex{Pattern: tenderNumberInText, OverText: true},
	}},
	{Name: fieldStatus, Strategies: []extract.Strategy{label("შესყიდვის სტატუსი")}},
	{Name: fieldCustomer, Strategies: []extract.Strategy{label("შემსყიდველი")}},
	{Name: fieldAnnouncedAt, Strategies: []extract.Strategy{label("შესყიდვის გამოცხადების თარიღი")}},
	{Name: fieldSubmissionStart, Strategies: []extract.Strategy{label("წინადადებების მიღება იწყება")}},
	{Name: fieldSubmissionEnd, Strategies: []extract.Strategy{label("წინადადებების მიღება მთავრდება")}},
	{Name: fieldPrice, Strategies: []extract.Strategy{label("შესყიდვის სავარაუდო ღირებულება")}},
	{Name: fieldPaymentTerms, Strategies: []extract.Strategy{label("წინადადება წარმოდგენილი უნდა იყოს")}},
	{Name: fieldCategory, Strategies: []extract.Strategy{label("შესყიდვის კატეგორია")}},
	{Name: fieldClassifier, Strategies: []extract.Strategy{
		extract.LabelCell{Label: "კლასიფიკატორის კოდები", Item: "li"},
		label("კლასიფიკატორის კოდები"),
	}},
	{Name: fieldDeliveryTerm, Strategies: []extract.Strategy{label("მოწოდების ვადა")}},
	{Name: fieldDescription, Strategies: []extract.Strategy{label("დამატებითი ინფორმაცია")}},
	{Name: fieldQuantity, Strategies: []extract.Strategy{label("შესყიდვის რაოდენობა ან მოცულობა")}},
	{Name: fieldBidStep, Strategies: []extract.Strategy{label("შეთავაზების ფასის კლების ბიჯი")}},
	{Name: fieldGuarantee, Strategies: []extract.Strategy{label("გარანტიის მოქმედების ვადა")}},
	{Name: fieldURL, Strategies: []extract.Strategy{
		extract.Selector{CSS: "pre", Pattern: preURLPattern},
		extract.Selector{CSS: "pre"},
	}},
}

// Tender assembles the app_main tab. Missing fields stay empty and are listed
// in Tender.Missing.
func (a *Assembler) Tender(s snapshot.Snapshot, doc *extract.Document) *types.Tender {
	f := tenderFields.ExtractAll(doc.Root())

	t := &types.Tender{
		ApplicationID:   s.ApplicationID,
		TenderCode:      s.TenderCode,
		CodePrefix:      s.CodePrefix,
		TenderNumber:    f.String(fieldTenderNumber),
		TenderType:      f.String(fieldTenderType),
		Status:          f.String(fieldStatus),
		CustomerName:    f.String(fieldCustomer),
		PaymentTerms:    f.String(fieldPaymentTerms),
		Category:        f.String(fieldCategory),
		ClassifierCodes: f.String(fieldClassifier),
		DeliveryTerm:    f.String(fieldDeliveryTerm),
		Description:     f.String(fieldDescription),
		Quantity:        f.String(fieldQuantity),
		GuaranteeTerm:   f.String(fieldGuarantee),
		CPVCode:         a.cpv,
		SourceFile:      s.Name(),
		Missing:         f.Missing(),
	}
	if t.TenderNumber == "" {
		t.TenderNumber = s.TenderCode
	}

	if v, ok := f.Get(fieldAnnouncedAt); ok {
		t.AnnouncedAt, _ = a.norm.ParseDateTime(v)
	}
	if v, ok := f.Get(fieldSubmissionStart); ok {
		t.SubmissionStart, _ = a.norm.ParseDateTime(v)
	}
	if v, ok := f.Get(fieldSubmissionEnd); ok {
		t.SubmissionEnd, _ = a.norm.ParseDateTime(v)
	}
	if len(t.AnnouncedAt) >= 4 {
		t.Year, _ = strconv.Atoi(t.AnnouncedAt[:4])
	}

	if v, ok := f.Get(fieldPrice); ok {
		t.EstimatedPrice = a.norm.ParseAmount(firstNumber(v))
		if m := currencyCodeInCellText.FindStringSubmatch(v); m != nil {
			t.Currency = m[1]
		} else {
			t.Currency = a.norm.ParseCurrency(v)
		}
	}
	if v, ok := f.Get(fieldBidStep); ok {
		t.BidStep = a.norm.ParseAmount(firstNumber(v))
	}

	if v, ok := f.Get(fieldURL); ok {
		fields := strings.Fields(v)
		t.URL = fields[len(fields)-1]
	}
	t.DeliveryPlace = deliveryPlace(t.Description)

	if len(t.Missing) > 0 {
		a.fileLogger(s).Debug("tender fields not found", zap.Strings("fields", t.Missing))
	}
	return t
}

var numberPattern = regexp.MustCompile("[\\d`',.\\s]*\\d")

// firstNumber returns the first formatted number in text, so that trailing
// figures such as VAT notes do not merge into the amount.
func firstNumber(text string) string {
	return strings.TrimSpace(numberPattern.FindString(text))
}

func deliveryPlace(description string) string {
	if description == "" {
		return ""
	}
	if m := deliveryPlacePattern.FindStringSubmatch(description); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := cadastralPlacePattern.FindStringSubmatch(description); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
