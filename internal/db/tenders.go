package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/tender-ingest/internal/types"
)

// SaveTender inserts or replaces a tender. The latest parse wins.
func (db *DB) SaveTender(ctx context.Context, t *types.Tender) error {
	missing := t.Missing
	if missing == nil {
		missing = []string{}
	}
	return db.inTx(ctx, groupTenders, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO tenders (
				application_id, tender_code, code_prefix, tender_number, tender_type, status,
				customer_name, announced_at, submission_start, submission_end, estimated_price,
				currency, payment_terms, category, classifier_codes, delivery_term, description,
				delivery_place, quantity, bid_step, guarantee_term, url, year, cpv_code,
				source_file, missing_fields
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
				$17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
			ON CONFLICT (application_id) DO UPDATE SET
				tender_code = EXCLUDED.tender_code,
				code_prefix = EXCLUDED.code_prefix,
				tender_number = EXCLUDED.tender_number,
				tender_type = EXCLUDED.tender_type,
				status = EXCLUDED.status,
				customer_name = EXCLUDED.customer_name,
				announced_at = EXCLUDED.announced_at,
				submission_start = EXCLUDED.submission_start,
				submission_end = EXCLUDED.submission_end,
				estimated_price = EXCLUDED.estimated_price,
				currency = EXCLUDED.currency,
				payment_terms = EXCLUDED.payment_terms,
				category = EXCLUDED.category,
				classifier_codes = EXCLUDED.classifier_codes,
				delivery_term = EXCLUDED.delivery_term,
				description = EXCLUDED.description,
				delivery_place = EXCLUDED.delivery_place,
				quantity = EXCLUDED.quantity,
				bid_step = EXCLUDED.bid_step,
				guarantee_term = EXCLUDED.guarantee_term,
				url = EXCLUDED.url,
				year = EXCLUDED.year,
				cpv_code = EXCLUDED.cpv_code,
				source_file = EXCLUDED.source_file,
				missing_fields = EXCLUDED.missing_fields,
				updated_at = NOW()`,
			t.ApplicationID, t.TenderCode, t.CodePrefix, t.TenderNumber, nullString(t.TenderType),
			nullString(t.Status), nullString(t.CustomerName), nullTime(t.AnnouncedAt),
			nullTime(t.SubmissionStart), nullTime(t.SubmissionEnd), nullAmount(t.EstimatedPrice),
			nullString(t.Currency), nullString(t.PaymentTerms), nullString(t.Category),
			nullString(t.ClassifierCodes), nullString(t.DeliveryTerm), nullString(t.Description),
			nullString(t.DeliveryPlace), nullString(t.Quantity), nullAmount(t.BidStep),
			nullString(t.GuaranteeTerm), nullString(t.URL), nullInt(t.Year), nullString(t.CPVCode),
			t.SourceFile, missing,
		)
		if err != nil {
			return fmt.Errorf("failed to save tender %d: %w", t.ApplicationID, err)
		}
		return nil
	})
}

// GetTender retrieves the stored copy of a tender's key fields.
func (db *DB) GetTender(ctx context.Context, applicationID int64) (*StoredTender, error) {
	var st StoredTender
	err := db.pool.QueryRow(ctx,
		`SELECT application_id, tender_number, COALESCE(status, ''), COALESCE(customer_name, ''),
		        announced_at, submission_end, estimated_price, COALESCE(currency, ''),
		        COALESCE(year, 0), COALESCE(cpv_code, ''), source_file, missing_fields, updated_at
		 FROM tenders WHERE application_id = $1`,
		applicationID,
	).Scan(&st.ApplicationID, &st.TenderNumber, &st.Status, &st.CustomerName,
		&st.AnnouncedAt, &st.SubmissionEnd, &st.EstimatedPrice, &st.Currency,
		&st.Year, &st.CPVCode, &st.SourceFile, &st.MissingFields, &st.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tender: %w", err)
	}
	return &st, nil
}

// SaveTenderSummaries records the search listing state of captured tenders.
func (db *DB) SaveTenderSummaries(ctx context.Context, cpvCode string, summaries []types.TenderSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	return db.inTx(ctx, groupTenders, func(tx pgx.Tx) error {
		for _, s := range summaries {
			_, err := tx.Exec(ctx,
				`INSERT INTO tender_summaries (application_id, tender_number, start_date, end_date, status, token, cpv_code)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (application_id) DO UPDATE SET
					tender_number = EXCLUDED.tender_number,
					start_date = EXCLUDED.start_date,
					end_date = EXCLUDED.end_date,
					status = EXCLUDED.status,
					token = EXCLUDED.token,
					cpv_code = EXCLUDED.cpv_code,
					updated_at = NOW()`,
				s.ApplicationID, s.TenderNumber, s.StartDate, s.EndDate, s.Status,
				nullString(s.Token), nullString(cpvCode),
			)
			if err != nil {
				return fmt.Errorf("failed to save tender summary %d: %w", s.ApplicationID, err)
			}
		}
		return nil
	})
}

// TenderSummaries returns the stored listing state for the given applications.
// Unknown ids are absent from the map.
func (db *DB) TenderSummaries(ctx context.Context, applicationIDs []int64) (map[int64]types.TenderSummary, error) {
	out := make(map[int64]types.TenderSummary, len(applicationIDs))
	if len(applicationIDs) == 0 {
		return out, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT application_id, tender_number, start_date, end_date, status, COALESCE(token, '')
		 FROM tender_summaries WHERE application_id = ANY($1)`,
		applicationIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tender summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s types.TenderSummary
		if err := rows.Scan(&s.ApplicationID, &s.TenderNumber, &s.StartDate, &s.EndDate, &s.Status, &s.Token); err != nil {
			return nil, fmt.Errorf("failed to scan tender summary: %w", err)
		}
		out[s.ApplicationID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tender summaries: %w", err)
	}
	return out, nil
}
