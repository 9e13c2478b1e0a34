package db

import (
	"time"

	"github.com/google/uuid"
)

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run stage constants
const (
	StageParse    = "parse"
	StageCapture  = "capture"
	StageDownload = "download"
)

// RunStats holds the counters recorded when a run completes
type RunStats struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Enqueued  int `json:"enqueued,omitempty"`
}

// Run represents an ingest run record
type Run struct {
	ID          uuid.UUID  `json:"id"`
	Stage       string     `json:"stage"`
	CPVCode     string     `json:"cpv_code"`
	Status      string     `json:"status"`
	Stats       RunStats   `json:"stats"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StoredTender is the subset of a tenders row read back for inspection
type StoredTender struct {
	ApplicationID  int64      `json:"application_id"`
	TenderNumber   string     `json:"tender_number"`
	Status         string     `json:"status"`
	CustomerName   string     `json:"customer_name"`
	AnnouncedAt    *time.Time `json:"announced_at,omitempty"`
	SubmissionEnd  *time.Time `json:"submission_end,omitempty"`
	EstimatedPrice *float64   `json:"estimated_price,omitempty"`
	Currency       string     `json:"currency"`
	Year           int        `json:"year"`
	CPVCode        string     `json:"cpv_code"`
	SourceFile     string     `json:"source_file"`
	MissingFields  []string   `json:"missing_fields"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StoredContract is a contracts row joined with its payment summary
type StoredContract struct {
	ApplicationID  int64    `json:"application_id"`
	HasContract    bool     `json:"has_contract"`
	ContractNumber string   `json:"contract_number"`
	Amount         *float64 `json:"amount,omitempty"`
	Currency       string   `json:"currency"`
	AmountSource   string   `json:"amount_source"`
	SupplierID     *int64   `json:"supplier_id,omitempty"`
	SupplierName   string   `json:"supplier_name"`
	PaidAmount     *float64 `json:"paid_amount,omitempty"`
	PaidPercent    *float64 `json:"paid_percent,omitempty"`
	PaymentCount   int      `json:"payment_count"`
	Amendments     int      `json:"amendments"`
}

// TableCounts holds row counts per table for one application
type TableCounts map[string]int
