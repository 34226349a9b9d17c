package models

import (
	"github.com/shopspring/decimal"

	"bitbucket.org/obrasur/procurement_backend/utils"
)

// BidComparison is the award-decision view over a quotation's competing
// provider bids. Deterministic: the same inputs always produce the same
// totals and the same best provider.
type BidComparison struct {
	QuotationId       int                  `json:"quotation_id"`
	Lines             []BidComparisonLine  `json:"lines"`
	Providers         []ProviderBidSummary `json:"providers"`
	BestProviderId    int                  `json:"best_provider_id"`
	BestProviderQuoId int                  `json:"best_provider_quotation_id"`
}

// BidComparisonLine aligns positionally with the quotation's resource lines.
type BidComparisonLine struct {
	ResourceId    int                `json:"resource_id"`
	SelectedQty   decimal.Decimal    `json:"selected_qty"`
	BestUnitPrice *decimal.Decimal   `json:"best_unit_price"`
	UnitPrices    []*decimal.Decimal `json:"unit_prices"`
}

type ProviderBidSummary struct {
	ProviderQuotationId int                     `json:"provider_quotation_id"`
	ProviderId          int                     `json:"provider_id"`
	Status              ProviderQuotationStatus `json:"status"`
	Total               decimal.Decimal         `json:"total"`
	HasPricedLine       bool                    `json:"has_priced_line"`
}

// CompareBids computes per-provider totals, the per-line minimum unit price
// and the cheapest provider. Ties keep the first-seen provider. Providers
// without a single non-zero bid line are reported with total 0 but excluded
// from the best-provider selection, so an empty bid can never win the award.
func CompareBids(quotation *Quotation) *BidComparison {
	comparison := BidComparison{QuotationId: quotation.ID}

	// bid lookup per provider, keyed by resource
	bidsByProvider := make([]map[int]*ProviderBidLine, len(quotation.Providers))
	for i := range quotation.Providers {
		provider := &quotation.Providers[i]
		bids := make(map[int]*ProviderBidLine, len(provider.Details))
		for j := range provider.Details {
			bid := &provider.Details[j]
			if _, ok := bids[bid.ResourceId]; !ok {
				bids[bid.ResourceId] = bid
			}
		}
		bidsByProvider[i] = bids
	}

	for i := range quotation.Providers {
		provider := &quotation.Providers[i]
		total := decimal.Zero
		hasPricedLine := false
		for _, line := range quotation.Details {
			bid, ok := bidsByProvider[i][line.ResourceId]
			if !ok {
				continue
			}
			subtotal := utils.QtyOrZero(&bid.BidQty).Mul(utils.QtyOrZero(&bid.BidUnitPrice))
			total = total.Add(subtotal)
			if subtotal.IsPositive() || bid.BidUnitPrice.IsPositive() {
				hasPricedLine = true
			}
		}
		comparison.Providers = append(comparison.Providers, ProviderBidSummary{
			ProviderQuotationId: provider.ID,
			ProviderId:          provider.ProviderId,
			Status:              provider.CurrentStatus,
			Total:               total,
			HasPricedLine:       hasPricedLine,
		})
	}

	for _, line := range quotation.Details {
		comparisonLine := BidComparisonLine{
			ResourceId:  line.ResourceId,
			SelectedQty: line.SelectedQty,
		}
		for i := range quotation.Providers {
			bid, ok := bidsByProvider[i][line.ResourceId]
			if !ok {
				comparisonLine.UnitPrices = append(comparisonLine.UnitPrices, nil)
				continue
			}
			price := bid.BidUnitPrice
			comparisonLine.UnitPrices = append(comparisonLine.UnitPrices, &price)
			if price.IsPositive() &&
				(comparisonLine.BestUnitPrice == nil || price.LessThan(*comparisonLine.BestUnitPrice)) {
				comparisonLine.BestUnitPrice = &price
			}
		}
		comparison.Lines = append(comparison.Lines, comparisonLine)
	}

	// cheapest total among providers that actually priced something,
	// first seen wins ties
	best := -1
	for i, summary := range comparison.Providers {
		if !summary.HasPricedLine {
			continue
		}
		if best == -1 || summary.Total.LessThan(comparison.Providers[best].Total) {
			best = i
		}
	}
	if best >= 0 {
		comparison.BestProviderId = comparison.Providers[best].ProviderId
		comparison.BestProviderQuoId = comparison.Providers[best].ProviderQuotationId
	}

	return &comparison
}
