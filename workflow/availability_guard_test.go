package workflow

import (
	"testing"

	"bitbucket.org/obrasur/procurement_backend/models"
	"bitbucket.org/obrasur/procurement_backend/utils"
	"github.com/shopspring/decimal"
)

func qty(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestCheckCommitments_PassesWithinBudget(t *testing.T) {
	snapshot := &models.CommitmentSnapshot{
		QuotationLines: []models.SnapshotQuotationLine{
			{QuotationId: 10, ResourceId: 1, SelectedQty: qty(100), QuotationStatus: models.QuotationStatusPendiente},
		},
	}
	requested := map[int]decimal.Decimal{1: decimal.NewFromInt(100)}

	if err := CheckCommitments(snapshot, requested); err != nil {
		t.Fatalf("CheckCommitments: %v", err)
	}
}

func TestCheckCommitments_RejectsOverCommitment(t *testing.T) {
	snapshot := &models.CommitmentSnapshot{
		QuotationLines: []models.SnapshotQuotationLine{
			{QuotationId: 10, ResourceId: 1, SelectedQty: qty(70), QuotationStatus: models.QuotationStatusPendiente},
		},
		TransferLines: []models.SnapshotTransferLine{
			{TransferOrderId: 4, ResourceId: 1, Qty: qty(40)},
		},
	}
	requested := map[int]decimal.Decimal{1: decimal.NewFromInt(100)}

	err := CheckCommitments(snapshot, requested)
	if !utils.IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

// Commitments against a resource the requisition never asked for are always
// over budget.
func TestCheckCommitments_RejectsUnrequestedResource(t *testing.T) {
	snapshot := &models.CommitmentSnapshot{
		OrderLines: []models.SnapshotOrderLine{
			{PurchaseOrderId: 3, ResourceId: 9, Qty: qty(1)},
		},
	}

	err := CheckCommitments(snapshot, map[int]decimal.Decimal{1: decimal.NewFromInt(10)})
	if !utils.IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

func TestCheckCommitments_ExactlyZeroLeftIsFine(t *testing.T) {
	snapshot := &models.CommitmentSnapshot{
		OrderLines: []models.SnapshotOrderLine{
			{PurchaseOrderId: 3, ResourceId: 1, Qty: qty(50)},
		},
	}
	if err := CheckCommitments(snapshot, map[int]decimal.Decimal{1: decimal.NewFromInt(50)}); err != nil {
		t.Fatalf("CheckCommitments: %v", err)
	}
}
