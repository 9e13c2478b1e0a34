package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/tender-ingest/internal/types"
)

// SaveContractBundle stores an agr_docs page in one transaction. The contract,
// amendments and payment summary are insert-or-replace; payments and
// documents are insert-if-absent. The summary is replaced as a whole.
// Returns the number of new document rows.
func (db *DB) SaveContractBundle(ctx context.Context, b *types.ContractBundle) (int, error) {
	var inserted int
	err := db.inTx(ctx, groupContracts, func(tx pgx.Tx) error {
		if err := upsertContract(ctx, tx, &b.Contract); err != nil {
			return err
		}
		for _, a := range b.Amendments {
			if err := upsertAmendment(ctx, tx, a); err != nil {
				return err
			}
		}
		for _, p := range b.Payments {
			_, err := tx.Exec(ctx,
				`INSERT INTO payments (application_id, amount, payment_date, payment_type,
				                       year, quarter, recorded_at, funding_source)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 ON CONFLICT DO NOTHING`,
				p.ApplicationID, p.Amount, nullTime(p.PaymentDate), p.PaymentType,
				nullInt(p.Year), nullInt(p.Quarter), nullTime(p.RecordedAt), nullString(p.FundingSource),
			)
			if err != nil {
				return fmt.Errorf("failed to insert payment for %d: %w", p.ApplicationID, err)
			}
		}
		if b.Summary != nil {
			s := b.Summary
			_, err := tx.Exec(ctx,
				`INSERT INTO payment_summaries (application_id, contract_amount, paid_amount,
				                                paid_percent, payment_count, advance_amount)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (application_id) DO UPDATE SET
					contract_amount = EXCLUDED.contract_amount,
					paid_amount = EXCLUDED.paid_amount,
					paid_percent = EXCLUDED.paid_percent,
					payment_count = EXCLUDED.payment_count,
					advance_amount = EXCLUDED.advance_amount,
					updated_at = NOW()`,
				s.ApplicationID, nullAmount(s.ContractAmount), s.PaidAmount, s.PaidPercent,
				s.PaymentCount, s.AdvanceAmount,
			)
			if err != nil {
				return fmt.Errorf("failed to save payment summary for %d: %w", s.ApplicationID, err)
			}
		}
		var err error
		inserted, err = insertDocuments(ctx, tx, b.Documents)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func upsertContract(ctx context.Context, tx pgx.Tx, c *types.Contract) error {
	var supplierID *int64
	if c.SupplierID != 0 {
		supplierID = &c.SupplierID
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO contracts (
			application_id, has_contract, status, status_code, responsible_person,
			status_updated_at, supplier_id, supplier_name, contract_number, amount, currency,
			amount_source, valid_from, valid_to, signed_at, source_file
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (application_id) DO UPDATE SET
			has_contract = EXCLUDED.has_contract,
			status = EXCLUDED.status,
			status_code = EXCLUDED.status_code,
			responsible_person = EXCLUDED.responsible_person,
			status_updated_at = EXCLUDED.status_updated_at,
			supplier_id = EXCLUDED.supplier_id,
			supplier_name = EXCLUDED.supplier_name,
			contract_number = EXCLUDED.contract_number,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			amount_source = EXCLUDED.amount_source,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			signed_at = EXCLUDED.signed_at,
			source_file = EXCLUDED.source_file,
			updated_at = NOW()`,
		c.ApplicationID, c.HasContract, nullString(c.Status), nullString(c.StatusCode),
		nullString(c.ResponsiblePerson), nullTime(c.StatusUpdatedAt), supplierID,
		nullString(c.SupplierName), nullString(c.ContractNumber), nullAmount(c.Amount),
		nullString(c.Currency), nullString(c.AmountSource), nullTime(c.ValidFrom),
		nullTime(c.ValidTo), nullTime(c.SignedAt), c.SourceFile,
	)
	if err != nil {
		return fmt.Errorf("failed to save contract %d: %w", c.ApplicationID, err)
	}
	return nil
}

func upsertAmendment(ctx context.Context, tx pgx.Tx, a types.Amendment) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO amendments (application_id, amendment_number, amended_on, contract_number,
		                         amount, currency, valid_from, valid_to, counterparty, link)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (application_id, amendment_number) DO UPDATE SET
			amended_on = EXCLUDED.amended_on,
			contract_number = EXCLUDED.contract_number,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			counterparty = EXCLUDED.counterparty,
			link = EXCLUDED.link`,
		a.ApplicationID, a.Number, nullTime(a.Date), nullString(a.ContractNumber),
		nullAmount(a.Amount), nullString(a.Currency), nullTime(a.ValidFrom), nullTime(a.ValidTo),
		nullString(a.Counterparty), nullString(a.Link),
	)
	if err != nil {
		return fmt.Errorf("failed to save amendment %d/%d: %w", a.ApplicationID, a.Number, err)
	}
	return nil
}

// GetContract retrieves a stored contract with its payment summary.
func (db *DB) GetContract(ctx context.Context, applicationID int64) (*StoredContract, error) {
	var c StoredContract
	err := db.pool.QueryRow(ctx,
		`SELECT c.application_id, c.has_contract, COALESCE(c.contract_number, ''), c.amount,
		        COALESCE(c.currency, ''), COALESCE(c.amount_source, ''), c.supplier_id,
		        COALESCE(c.supplier_name, ''), s.paid_amount, s.paid_percent,
		        COALESCE(s.payment_count, 0),
		        (SELECT COUNT(*) FROM amendments a WHERE a.application_id = c.application_id)
		 FROM contracts c
		 LEFT JOIN payment_summaries s ON s.application_id = c.application_id
		 WHERE c.application_id = $1`,
		applicationID,
	).Scan(&c.ApplicationID, &c.HasContract, &c.ContractNumber, &c.Amount, &c.Currency,
		&c.AmountSource, &c.SupplierID, &c.SupplierName, &c.PaidAmount, &c.PaidPercent,
		&c.PaymentCount, &c.Amendments)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return &c, nil
}

// CountRows returns per-table row counts for one application. Used to verify
// that re-parsing a snapshot adds nothing.
func (db *DB) CountRows(ctx context.Context, applicationID int64) (TableCounts, error) {
	tables := []string{
		"tenders", "doc_sections", "documents", "bids", "disqualifications",
		"contracts", "amendments", "payments", "payment_summaries",
	}
	counts := make(TableCounts, len(tables))
	for _, table := range tables {
		var n int
		// table names come from the fixed list above
		err := db.pool.QueryRow(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE application_id = $1`, table),
			applicationID,
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
