// Package types provides the records produced by the snapshot assemblers and
// consumed by persistence and reconciliation.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Tender is the main record of a procurement application (app_main tab).
// Dates are "YYYY-MM-DD", datetimes "YYYY-MM-DD HH:MM:SS"; empty means unknown.
// Zero amounts mean unknown.
type Tender struct {
	ApplicationID   int64   `json:"application_id"`
	TenderCode      string  `json:"tender_code"`
	CodePrefix      string  `json:"code_prefix"`
	TenderNumber    string  `json:"tender_number"`
	TenderType      string  `json:"tender_type,omitempty"`
	Status          string  `json:"status,omitempty"`
	CustomerName    string  `json:"customer_name,omitempty"`
	AnnouncedAt     string  `json:"announced_at,omitempty"`
	SubmissionStart string  `json:"submission_start,omitempty"`
	SubmissionEnd   string  `json:"submission_end,omitempty"`
	EstimatedPrice  float64 `json:"estimated_price,omitempty"`
	Currency        string  `json:"currency,omitempty"`
	PaymentTerms    string  `json:"payment_terms,omitempty"`
	Category        string  `json:"category,omitempty"`
	ClassifierCodes string  `json:"classifier_codes,omitempty"`
	DeliveryTerm    string  `json:"delivery_term,omitempty"`
	Description     string  `json:"description,omitempty"`
	DeliveryPlace   string  `json:"delivery_place,omitempty"`
	Quantity        string  `json:"quantity,omitempty"`
	BidStep         float64 `json:"bid_step,omitempty"`
	GuaranteeTerm   string  `json:"guarantee_term,omitempty"`
	URL             string  `json:"url,omitempty"`
	Year            int     `json:"year,omitempty"`
	CPVCode         string  `json:"cpv_code,omitempty"`
	SourceFile      string  `json:"source_file"`
	// Missing lists fields no extraction strategy could locate.
	Missing []string `json:"missing,omitempty"`
}

// TenderSummary is the compact view of a tender shown on search result pages.
// Token is the per-application access key the portal embeds in each row.
type TenderSummary struct {
	ApplicationID int64  `json:"application_id"`
	Token         string `json:"token,omitempty"`
	TenderNumber  string `json:"tender_number"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Status        string `json:"status"`
}
