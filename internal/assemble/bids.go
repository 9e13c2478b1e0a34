package assemble

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/extract"
	"github.com/jonathan/tender-ingest/internal/snapshot"
	"github.com/jonathan/tender-ingest/internal/types"
)

var (
	showProfilePattern = regexp.MustCompile(`ShowProfile\((\d+)\)`)
	offerCountPattern  = regexp.MustCompile(`\[(\d+)\]`)
)

// Bids assembles the app_bids tab. A page without a bid table is a valid
// empty result.
func (a *Assembler) Bids(s snapshot.Snapshot, doc *extract.Document) *types.BidTable {
	table := &types.BidTable{Bidders: []types.Bidder{}, Bids: []types.Bid{}}
	log := a.fileLogger(s)

	seen := make(map[int64]bool)
	doc.Find("table.ktable").First().Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cols := row.ChildrenFiltered("td")
		if cols.Length() < 4 {
			return
		}

		profile := extract.AttributePattern{
			CSS:     "a[onclick]",
			Attr:    "onclick",
			Pattern: showProfilePattern,
		}
		idText, ok := profile.Apply(cols.Eq(0))
		if !ok {
			return
		}
		bidderID, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			log.Warn("bad bidder id", zap.String("value", idText))
			return
		}
		if seen[bidderID] {
			log.Debug("duplicate bidder row", zap.Int64("bidder_id", bidderID))
			return
		}
		seen[bidderID] = true

		bid := types.Bid{
			ApplicationID: s.ApplicationID,
			BidderID:      bidderID,
			BidderName:    bidderName(cols.Eq(0)),
			OfferCount:    1,
		}

		last := cols.Eq(1)
		bid.LastAmount = a.norm.ParseAmount(extract.Text(last.Find("strong").First()))
		if d := last.Find("span.date").First(); d.Length() > 0 {
			bid.LastOfferAt, _ = a.norm.ParseDateTime(extract.Text(d))
		}

		first := cols.Eq(2)
		firstText := extract.Text(first)
		if d := first.Find("span.date").First(); d.Length() > 0 {
			dateText := extract.Text(d)
			bid.FirstOfferAt, _ = a.norm.ParseDateTime(dateText)
			firstText = strings.Replace(firstText, dateText, "", 1)
		}
		bid.FirstAmount = a.norm.ParseAmount(firstText)

		if m := offerCountPattern.FindStringSubmatch(extract.Text(cols.Eq(3))); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				bid.OfferCount = n
			}
		}

		table.Bids = append(table.Bids, bid)
		table.Bidders = append(table.Bidders, types.Bidder{BidderID: bidderID, Name: bid.BidderName})
	})

	RankBids(table.Bids)
	return table
}

func bidderName(cell *goquery.Selection) string {
	span := cell.Find("span.color-1").First()
	if span.Length() == 0 {
		span = cell.Find("span").First()
	}
	if name := extract.Text(span); name != "" {
		return name
	}
	return "Unknown"
}

// RankBids orders bids by last offer ascending and assigns ranks from 1.
// Equal amounts keep their page order. Bids with an unknown (zero) last offer
// rank after all known ones.
func RankBids(bids []types.Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		ai, aj := bids[i].LastAmount, bids[j].LastAmount
		if ai == 0 || aj == 0 {
			return ai != 0 && aj == 0
		}
		return ai < aj
	})
	for i := range bids {
		bids[i].Rank = i + 1
	}
}
