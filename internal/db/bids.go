package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/tender-ingest/internal/types"
)

// SaveBids stores an app_bids page. Bidders are insert-if-absent; bids are
// insert-or-replace so ranks follow the latest parse.
func (db *DB) SaveBids(ctx context.Context, table *types.BidTable) error {
	return db.inTx(ctx, groupBids, func(tx pgx.Tx) error {
		for _, b := range table.Bidders {
			_, err := tx.Exec(ctx,
				`INSERT INTO bidders (bidder_id, name) VALUES ($1, $2)
				 ON CONFLICT (bidder_id) DO NOTHING`,
				b.BidderID, b.Name,
			)
			if err != nil {
				return fmt.Errorf("failed to insert bidder %d: %w", b.BidderID, err)
			}
		}
		for _, b := range table.Bids {
			_, err := tx.Exec(ctx,
				`INSERT INTO bids (application_id, bidder_id, first_amount, first_offer_at,
				                   last_amount, last_offer_at, offer_count, rank)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 ON CONFLICT (application_id, bidder_id) DO UPDATE SET
					first_amount = EXCLUDED.first_amount,
					first_offer_at = EXCLUDED.first_offer_at,
					last_amount = EXCLUDED.last_amount,
					last_offer_at = EXCLUDED.last_offer_at,
					offer_count = EXCLUDED.offer_count,
					rank = EXCLUDED.rank,
					updated_at = NOW()`,
				b.ApplicationID, b.BidderID, nullAmount(b.FirstAmount), nullTime(b.FirstOfferAt),
				nullAmount(b.LastAmount), nullTime(b.LastOfferAt), b.OfferCount, b.Rank,
			)
			if err != nil {
				return fmt.Errorf("failed to save bid %d/%d: %w", b.ApplicationID, b.BidderID, err)
			}
		}
		return nil
	})
}

// ListBids returns the stored bids of one application ordered by rank.
func (db *DB) ListBids(ctx context.Context, applicationID int64) ([]types.Bid, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT b.application_id, b.bidder_id, r.name, COALESCE(b.first_amount, 0),
		        COALESCE(b.last_amount, 0), b.offer_count, b.rank
		 FROM bids b JOIN bidders r ON r.bidder_id = b.bidder_id
		 WHERE b.application_id = $1
		 ORDER BY b.rank`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []types.Bid
	for rows.Next() {
		var b types.Bid
		if err := rows.Scan(&b.ApplicationID, &b.BidderID, &b.BidderName, &b.FirstAmount,
			&b.LastAmount, &b.OfferCount, &b.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}
