//nolint:revive // types is a standard Go package name pattern
package types

// Payment types
const (
	PaymentTypeAdvance = "advance"
	PaymentTypeRegular = "regular"
)

// Contract is the agreement signed for a tender (agr_docs tab). It shares the
// tender's application id. HasContract is false when the page carries no
// contract block; the row is still stored so the tender is marked as checked.
type Contract struct {
	ApplicationID     int64   `json:"application_id"`
	HasContract       bool    `json:"has_contract"`
	Status            string  `json:"status,omitempty"`
	StatusCode        string  `json:"status_code,omitempty"`
	ResponsiblePerson string  `json:"responsible_person,omitempty"`
	StatusUpdatedAt   string  `json:"status_updated_at,omitempty"`
	SupplierID        int64   `json:"supplier_id,omitempty"`
	SupplierName      string  `json:"supplier_name,omitempty"`
	ContractNumber    string  `json:"contract_number,omitempty"`
	Amount            float64 `json:"amount,omitempty"`
	Currency          string  `json:"currency,omitempty"`
	ValidFrom         string  `json:"valid_from,omitempty"`
	ValidTo           string  `json:"valid_to,omitempty"`
	SignedAt          string  `json:"signed_at,omitempty"`
	SourceFile        string  `json:"source_file"`
	// AmountSource records which extraction path produced Amount.
	AmountSource string `json:"amount_source,omitempty"`
}

// Amendment is a numbered change to a contract.
type Amendment struct {
	ApplicationID  int64   `json:"application_id"`
	Number         int     `json:"number"`
	Date           string  `json:"date,omitempty"`
	ContractNumber string  `json:"contract_number,omitempty"`
	Amount         float64 `json:"amount,omitempty"`
	Currency       string  `json:"currency,omitempty"`
	ValidFrom      string  `json:"valid_from,omitempty"`
	ValidTo        string  `json:"valid_to,omitempty"`
	Counterparty   string  `json:"counterparty,omitempty"`
	Link           string  `json:"link,omitempty"`
}

// Payment is one actual payment made under a contract.
type Payment struct {
	ApplicationID int64   `json:"application_id"`
	Amount        float64 `json:"amount"`
	Year          int     `json:"year,omitempty"`
	Quarter       int     `json:"quarter,omitempty"`
	PaymentDate   string  `json:"payment_date,omitempty"`
	RecordedAt    string  `json:"recorded_at,omitempty"`
	PaymentType   string  `json:"payment_type"`
	FundingSource string  `json:"funding_source,omitempty"`
}

// PaymentSummary aggregates a contract's payments.
type PaymentSummary struct {
	ApplicationID  int64   `json:"application_id"`
	ContractAmount float64 `json:"contract_amount,omitempty"`
	PaidAmount     float64 `json:"paid_amount"`
	PaidPercent    float64 `json:"paid_percent"`
	PaymentCount   int     `json:"payment_count"`
	AdvanceAmount  float64 `json:"advance_amount"`
}

// SummarizePayments recomputes a summary from the full payment list. Totals
// printed on the page take precedence over the sums when present.
func SummarizePayments(applicationID int64, payments []Payment, contractAmount, pagePaid, pagePercent float64) PaymentSummary {
	s := PaymentSummary{
		ApplicationID:  applicationID,
		ContractAmount: contractAmount,
		PaymentCount:   len(payments),
	}
	for _, p := range payments {
		s.PaidAmount += p.Amount
		if p.PaymentType == PaymentTypeAdvance {
			s.AdvanceAmount += p.Amount
		}
	}
	if pagePaid > 0 {
		s.PaidAmount = pagePaid
	}
	switch {
	case pagePercent > 0:
		s.PaidPercent = pagePercent
	case contractAmount > 0:
		s.PaidPercent = s.PaidAmount / contractAmount * 100
	}
	return s
}

// ContractBundle is everything assembled from one contract page.
type ContractBundle struct {
	Contract   Contract        `json:"contract"`
	Amendments []Amendment     `json:"amendments,omitempty"`
	Payments   []Payment       `json:"payments,omitempty"`
	Summary    *PaymentSummary `json:"summary,omitempty"`
	Documents  []Document      `json:"documents,omitempty"`
}
