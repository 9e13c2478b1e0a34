package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/tender-ingest/internal/types"
)

const insertDocumentSQL = `INSERT INTO documents (
		application_id, source_tab, doc_index, section_id, name, link,
		uploaded_at, author, file_type, obsolete
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (application_id, source_tab, doc_index) DO NOTHING`

func insertDocuments(ctx context.Context, tx pgx.Tx, docs []types.Document) (int, error) {
	inserted := 0
	for _, d := range docs {
		tag, err := tx.Exec(ctx, insertDocumentSQL,
			d.ApplicationID, d.SourceTab, d.DocIndex, nullString(d.SectionID), d.Name, d.Link,
			nullTime(d.UploadedAt), nullString(d.Author), nullString(d.FileType), d.Obsolete,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert document %d/%s/%d: %w", d.ApplicationID, d.SourceTab, d.DocIndex, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// SaveDocumentIndex stores an app_docs page: Q&A sections and documents, both
// insert-if-absent. Returns the number of new document rows.
func (db *DB) SaveDocumentIndex(ctx context.Context, idx *types.DocumentIndex) (int, error) {
	var inserted int
	err := db.inTx(ctx, groupDocuments, func(tx pgx.Tx) error {
		for _, s := range idx.Sections {
			_, err := tx.Exec(ctx,
				`INSERT INTO doc_sections (application_id, section_id, title, body)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (application_id, section_id) DO NOTHING`,
				s.ApplicationID, s.SectionID, nullString(s.Title), nullString(s.Body),
			)
			if err != nil {
				return fmt.Errorf("failed to insert section %s: %w", s.SectionID, err)
			}
		}
		var err error
		inserted, err = insertDocuments(ctx, tx, idx.Documents)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// SaveAgencyDocs stores an agency_docs page. Documents and disqualifications
// are insert-if-absent. Returns the number of new document rows.
func (db *DB) SaveAgencyDocs(ctx context.Context, agency *types.AgencyDocs) (int, error) {
	var inserted int
	err := db.inTx(ctx, groupAgency, func(tx pgx.Tx) error {
		var err error
		inserted, err = insertDocuments(ctx, tx, agency.Documents)
		if err != nil {
			return err
		}
		for _, d := range agency.Disqualifications {
			_, err := tx.Exec(ctx,
				`INSERT INTO disqualifications (application_id, company_name, disqualified_on, reason)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (application_id, company_name, disqualified_on) DO NOTHING`,
				d.ApplicationID, d.CompanyName, nullTime(d.Date), nullString(d.Reason),
			)
			if err != nil {
				return fmt.Errorf("failed to insert disqualification of %s: %w", d.CompanyName, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListDocuments returns the stored documents of one application, optionally
// restricted to one source tab.
func (db *DB) ListDocuments(ctx context.Context, applicationID int64, sourceTab string) ([]types.Document, error) {
	query := `SELECT application_id, source_tab, doc_index, COALESCE(section_id, ''), name, link,
	                 COALESCE(to_char(uploaded_at, 'YYYY-MM-DD HH24:MI:SS'), ''),
	                 COALESCE(author, ''), COALESCE(file_type, ''), obsolete
	          FROM documents WHERE application_id = $1`
	args := []any{applicationID}
	if sourceTab != "" {
		query += " AND source_tab = $2"
		args = append(args, sourceTab)
	}
	query += " ORDER BY source_tab, doc_index"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var d types.Document
		if err := rows.Scan(&d.ApplicationID, &d.SourceTab, &d.DocIndex, &d.SectionID, &d.Name, &d.Link,
			&d.UploadedAt, &d.Author, &d.FileType, &d.Obsolete); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
