//nolint:revive // types is a standard Go package name pattern
package types

// Bidder is a company that submitted at least one offer. BidderID is the
// portal's profile id.
type Bidder struct {
	BidderID int64  `json:"bidder_id"`
	Name     string `json:"name"`
}

// Bid is a bidder's offer history on one tender. Rank 1 is the lowest last
// offer.
type Bid struct {
	ApplicationID int64   `json:"application_id"`
	BidderID      int64   `json:"bidder_id"`
	BidderName    string  `json:"bidder_name"`
	FirstAmount   float64 `json:"first_amount,omitempty"`
	FirstOfferAt  string  `json:"first_offer_at,omitempty"`
	LastAmount    float64 `json:"last_amount,omitempty"`
	LastOfferAt   string  `json:"last_offer_at,omitempty"`
	OfferCount    int     `json:"offer_count"`
	Rank          int     `json:"rank"`
}

// BidTable is the result of assembling an app_bids page.
type BidTable struct {
	Bidders []Bidder `json:"bidders"`
	Bids    []Bid    `json:"bids"`
}
