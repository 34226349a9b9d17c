package models

import (
	"context"

	"bitbucket.org/obrasur/procurement_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommitmentSnapshot holds the four raw commitment collections for one
// requisition, fetched at a single point in time. The four sources are
// written by workflows that never coordinate directly; this snapshot is the
// one place a consistent "how much is left" view is reconstructed from.
//
// Quantities are pointers: a record with no value contributes zero instead
// of failing, so availability stays displayable on malformed data.
type CommitmentSnapshot struct {
	RequisitionId    int
	QuotationLines   []SnapshotQuotationLine
	ProviderBidLines []SnapshotBidLine
	OrderLines       []SnapshotOrderLine
	TransferLines    []SnapshotTransferLine
}

type SnapshotQuotationLine struct {
	QuotationId     int              `json:"quotation_id"`
	ResourceId      int              `json:"resource_id"`
	SelectedQty     *decimal.Decimal `json:"selected_qty"`
	QuotationStatus QuotationStatus  `json:"quotation_status"`
}

type SnapshotBidLine struct {
	ProviderQuotationId int                     `json:"provider_quotation_id"`
	ResourceId          int                     `json:"resource_id"`
	BidQty              *decimal.Decimal        `json:"bid_qty"`
	ProviderStatus      ProviderQuotationStatus `json:"provider_status"`
	QuotationStatus     QuotationStatus         `json:"quotation_status"`
}

type SnapshotOrderLine struct {
	PurchaseOrderId int              `json:"purchase_order_id"`
	ResourceId      int              `json:"resource_id"`
	Qty             *decimal.Decimal `json:"qty"`
}

type SnapshotTransferLine struct {
	TransferOrderId int              `json:"transfer_order_id"`
	ResourceId      int              `json:"resource_id"`
	Qty             *decimal.Decimal `json:"qty"`
}

// ResourceAvailability is the reconciled view for one resource.
type ResourceAvailability struct {
	Requested decimal.Decimal `json:"requested"`
	Committed decimal.Decimal `json:"committed"`
	Available decimal.Decimal `json:"available"`
}

// quotationLineReserves decides whether a quotation's own lines still count.
// Adjudicada is excluded along with OCGenerada: once a provider holds the
// award the reservation lives on the awarded bid lines, one stage before it
// moves to the purchase-order lines. Counting both would double the same
// units.
func quotationLineReserves(status QuotationStatus) bool {
	return status != QuotationStatusOCGenerada && status != QuotationStatusAdjudicada
}

// bidLineReserves decides whether an awarded bid's lines still count. Once
// the quotation reaches OCGenerada the reservation has moved to the order
// lines; the provider keeps its awarded status, so the quotation status is
// the filter here too.
func bidLineReserves(providerStatus ProviderQuotationStatus, quotationStatus QuotationStatus) bool {
	return providerStatus == ProviderStatusBuenaProAdjudicada &&
		quotationStatus != QuotationStatusOCGenerada
}

// Committed returns the total quantity of a resource already claimed across
// the four commitment sources. Pure aggregation; never errors. A resource
// absent from every collection yields zero.
func (s *CommitmentSnapshot) Committed(resourceId int) decimal.Decimal {
	committed := decimal.Zero
	for _, line := range s.QuotationLines {
		if line.ResourceId == resourceId && quotationLineReserves(line.QuotationStatus) {
			committed = committed.Add(utils.QtyOrZero(line.SelectedQty))
		}
	}
	for _, bid := range s.ProviderBidLines {
		if bid.ResourceId == resourceId && bidLineReserves(bid.ProviderStatus, bid.QuotationStatus) {
			committed = committed.Add(utils.QtyOrZero(bid.BidQty))
		}
	}
	for _, line := range s.OrderLines {
		if line.ResourceId == resourceId {
			committed = committed.Add(utils.QtyOrZero(line.Qty))
		}
	}
	for _, line := range s.TransferLines {
		if line.ResourceId == resourceId {
			committed = committed.Add(utils.QtyOrZero(line.Qty))
		}
	}
	return committed
}

// CommittedAll reconciles every resource appearing in any collection.
func (s *CommitmentSnapshot) CommittedAll() map[int]decimal.Decimal {
	committed := make(map[int]decimal.Decimal)
	add := func(resourceId int, qty *decimal.Decimal, counts bool) {
		if !counts {
			return
		}
		committed[resourceId] = committed[resourceId].Add(utils.QtyOrZero(qty))
	}
	for _, line := range s.QuotationLines {
		add(line.ResourceId, line.SelectedQty, quotationLineReserves(line.QuotationStatus))
	}
	for _, bid := range s.ProviderBidLines {
		add(bid.ResourceId, bid.BidQty, bidLineReserves(bid.ProviderStatus, bid.QuotationStatus))
	}
	for _, line := range s.OrderLines {
		add(line.ResourceId, line.Qty, true)
	}
	for _, line := range s.TransferLines {
		add(line.ResourceId, line.Qty, true)
	}
	return committed
}

// Availability subtracts committed from requested per resource. Negative
// results are NOT clamped; callers must reject selections that would go
// below zero. Resources committed without a requested line appear with
// a zero requested quantity.
func (s *CommitmentSnapshot) Availability(requested map[int]decimal.Decimal) map[int]ResourceAvailability {
	committed := s.CommittedAll()
	availability := make(map[int]ResourceAvailability, len(requested))
	for resourceId, requestedQty := range requested {
		committedQty := committed[resourceId]
		availability[resourceId] = ResourceAvailability{
			Requested: requestedQty,
			Committed: committedQty,
			Available: requestedQty.Sub(committedQty),
		}
	}
	for resourceId, committedQty := range committed {
		if _, ok := availability[resourceId]; !ok {
			availability[resourceId] = ResourceAvailability{
				Committed: committedQty,
				Available: committedQty.Neg(),
			}
		}
	}
	return availability
}

// FetchCommitmentSnapshot loads the four commitment collections scoped to a
// requisition. Pass the request db for a read, or the guard's transaction
// to re-validate against fresh rows before a commitment write.
func FetchCommitmentSnapshot(ctx context.Context, tx *gorm.DB, requisitionId int) (*CommitmentSnapshot, error) {
	snapshot := CommitmentSnapshot{RequisitionId: requisitionId}

	if err := tx.WithContext(ctx).Model(&QuotationResourceLine{}).
		Select("quotation_resource_lines.quotation_id",
			"quotation_resource_lines.resource_id",
			"quotation_resource_lines.selected_qty",
			"quotations.current_status AS quotation_status").
		Joins("JOIN quotations ON quotations.id = quotation_resource_lines.quotation_id").
		Where("quotations.requisition_id = ?", requisitionId).
		Scan(&snapshot.QuotationLines).Error; err != nil {
		return nil, err
	}

	if err := tx.WithContext(ctx).Model(&ProviderBidLine{}).
		Select("provider_bid_lines.provider_quotation_id",
			"provider_bid_lines.resource_id",
			"provider_bid_lines.bid_qty",
			"provider_quotations.current_status AS provider_status",
			"quotations.current_status AS quotation_status").
		Joins("JOIN provider_quotations ON provider_quotations.id = provider_bid_lines.provider_quotation_id").
		Joins("JOIN quotations ON quotations.id = provider_quotations.quotation_id").
		Where("quotations.requisition_id = ?", requisitionId).
		Scan(&snapshot.ProviderBidLines).Error; err != nil {
		return nil, err
	}

	if err := tx.WithContext(ctx).Model(&PurchaseOrderLine{}).
		Select("purchase_order_lines.purchase_order_id",
			"purchase_order_lines.resource_id",
			"purchase_order_lines.qty").
		Joins("JOIN purchase_orders ON purchase_orders.id = purchase_order_lines.purchase_order_id").
		Joins("JOIN quotations ON quotations.id = purchase_orders.source_quotation_id").
		Where("quotations.requisition_id = ? AND purchase_orders.active = 1", requisitionId).
		Scan(&snapshot.OrderLines).Error; err != nil {
		return nil, err
	}

	if err := tx.WithContext(ctx).Model(&TransferOrderLine{}).
		Select("transfer_order_lines.transfer_order_id",
			"transfer_order_lines.resource_id",
			"transfer_order_lines.qty").
		Joins("JOIN transfer_orders ON transfer_orders.id = transfer_order_lines.transfer_order_id").
		Where("transfer_orders.requisition_id = ? OR transfer_orders.quotation_id IN (?)",
			requisitionId,
			tx.Model(&Quotation{}).Select("id").Where("requisition_id = ?", requisitionId)).
		Scan(&snapshot.TransferLines).Error; err != nil {
		return nil, err
	}

	return &snapshot, nil
}
