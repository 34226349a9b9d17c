package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bitbucket.org/obrasur/procurement_backend/models"
	"bitbucket.org/obrasur/procurement_backend/utils"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. The saga is exercised through
// a fake store that commits steps in memory, which is exactly the property
// under test: each step persists on its own, so a failure at step k leaves
// steps 1..k-1 committed.

type fakeOrderStore struct {
	quotation *models.Quotation
	snapshot  *models.CommitmentSnapshot
	requested map[int]decimal.Decimal

	orders      []*models.PurchaseOrder
	lines       []*models.PurchaseOrderLine
	stepRecords []*models.SagaStepRecord

	stateFetches     int
	quotationOrdered bool
	providerAwarded  bool

	failOnLine   int // 1-based index of the line create that fails; 0 = never
	failOnStatus bool
}

func (f *fakeOrderStore) GetQuotation(ctx context.Context, id int) (*models.Quotation, error) {
	if f.quotation == nil || f.quotation.ID != id {
		return nil, utils.ErrorRecordNotFound
	}
	return f.quotation, nil
}

func (f *fakeOrderStore) FetchRequisitionState(ctx context.Context, requisitionId int) (*models.CommitmentSnapshot, map[int]decimal.Decimal, error) {
	f.stateFetches++
	return f.snapshot, f.requested, nil
}

func (f *fakeOrderStore) CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error {
	order.ID = len(f.orders) + 1
	order.Code = fmt.Sprintf("OC-2026-%06d", order.ID)
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeOrderStore) CreatePurchaseOrderLine(ctx context.Context, line *models.PurchaseOrderLine) error {
	if f.failOnLine > 0 && len(f.lines)+1 == f.failOnLine {
		return errors.New("simulated line insert failure")
	}
	line.ID = len(f.lines) + 1
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeOrderStore) MarkQuotationOrdered(ctx context.Context, quotation *models.Quotation) error {
	if f.failOnStatus {
		return errors.New("simulated status update failure")
	}
	quotation.CurrentStatus = models.QuotationStatusOCGenerada
	f.quotationOrdered = true
	return nil
}

func (f *fakeOrderStore) MarkProviderAwarded(ctx context.Context, provider *models.ProviderQuotation) error {
	provider.CurrentStatus = models.ProviderStatusBuenaProAdjudicada
	f.providerAwarded = true
	return nil
}

func (f *fakeOrderStore) RecordSagaStep(ctx context.Context, record *models.SagaStepRecord) error {
	f.stepRecords = append(f.stepRecords, record)
	return nil
}

func adjudicatedQuotation(lineCount int) *models.Quotation {
	provider := models.ProviderQuotation{
		ID:            7,
		QuotationId:   5,
		ProviderId:    700,
		CurrentStatus: models.ProviderStatusEnEvaluacion,
	}
	for i := 0; i < lineCount; i++ {
		provider.Details = append(provider.Details, models.ProviderBidLine{
			ResourceId:   i + 1,
			BidQty:       decimal.NewFromInt(int64(10 * (i + 1))),
			BidUnitPrice: decimal.NewFromInt(5),
		})
	}
	return &models.Quotation{
		ID:            5,
		Code:          "COT-000005",
		CurrentStatus: models.QuotationStatusAdjudicada,
		Providers:     []models.ProviderQuotation{provider},
	}
}

func TestGeneratePurchaseOrder_Success(t *testing.T) {
	store := &fakeOrderStore{quotation: adjudicatedQuotation(3)}
	ctx := utils.SetRequesterIdInContext(context.Background(), 31)

	var progress []SagaProgress
	result, err := GeneratePurchaseOrder(ctx, store, 5, 7,
		func(p SagaProgress) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("GeneratePurchaseOrder: %v", err)
	}

	if len(store.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(store.orders))
	}
	if len(store.lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(store.lines))
	}
	if !store.quotationOrdered || !store.providerAwarded {
		t.Fatal("status steps must both run")
	}
	if store.quotation.CurrentStatus != models.QuotationStatusOCGenerada {
		t.Fatalf("quotation status = %s, want OCGenerada", store.quotation.CurrentStatus)
	}
	// header + 3 lines + 2 status updates
	if len(result.CompletedSteps) != 6 {
		t.Fatalf("completed steps = %d, want 6", len(result.CompletedSteps))
	}
	if result.Code == "" || result.PurchaseOrderId == 0 {
		t.Fatalf("result missing identifiers: %+v", result)
	}

	// the step log records who ran the generation
	for _, record := range store.stepRecords {
		if record.RequesterId != 31 {
			t.Fatalf("step record requester = %d, want 31", record.RequesterId)
		}
	}

	// order lines copy the bid terms
	for i, line := range store.lines {
		bid := store.quotation.Providers[0].Details[i]
		if line.ResourceId != bid.ResourceId || !line.Qty.Equal(bid.BidQty) {
			t.Fatalf("line %d does not match bid: %+v", i, line)
		}
		if !line.ActualCost.Equal(bid.BidUnitPrice) || !line.ApproximateCost.Equal(bid.BidUnitPrice) {
			t.Fatalf("line %d costs do not match bid price", i)
		}
		if line.FulfillmentState != models.FulfillmentStatePendiente {
			t.Fatalf("line %d fulfillment = %s, want Pendiente", i, line.FulfillmentState)
		}
	}

	// progress is monotonic and ends at 100
	last := 0
	for _, p := range progress {
		if p.StepIndex <= last && last != 0 {
			t.Fatalf("progress step index not increasing: %+v", progress)
		}
		last = p.StepIndex
	}
	if progress[len(progress)-1].Percent != 100 {
		t.Fatalf("final percent = %d, want 100", progress[len(progress)-1].Percent)
	}
}

// A failure at line k must leave the header and lines 1..k-1 committed,
// surface PartialSagaFailure naming the failed step and keep the quotation
// adjudicated so the generation can be retried after manual correction.
func TestGeneratePurchaseOrder_PartialFailurePersistsCompletedSteps(t *testing.T) {
	store := &fakeOrderStore{quotation: adjudicatedQuotation(3), failOnLine: 2}

	_, err := GeneratePurchaseOrder(context.Background(), store, 5, 7, nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	var partial *utils.PartialSagaFailure
	if !errors.As(err, &partial) {
		t.Fatalf("error type = %T, want PartialSagaFailure", err)
	}

	if partial.FailedStep != "CreateLine[resource=2]" {
		t.Fatalf("failed step = %q", partial.FailedStep)
	}
	// header + first line stay committed
	if len(partial.CompletedSteps) != 2 {
		t.Fatalf("completed steps = %v, want 2 entries", partial.CompletedSteps)
	}
	if len(store.orders) != 1 || len(store.lines) != 1 {
		t.Fatalf("committed state = %d orders / %d lines, want 1/1",
			len(store.orders), len(store.lines))
	}
	if store.quotationOrdered {
		t.Fatal("quotation status step must not run after a line failure")
	}
	if store.quotation.CurrentStatus != models.QuotationStatusAdjudicada {
		t.Fatalf("quotation status = %s, want Adjudicada", store.quotation.CurrentStatus)
	}

	// the step log records the failure with its error
	lastRecord := store.stepRecords[len(store.stepRecords)-1]
	if lastRecord.Status != models.SagaStepStatusFailed || lastRecord.LastError == nil {
		t.Fatalf("failure not recorded: %+v", lastRecord)
	}
}

func TestGeneratePurchaseOrder_StatusStepFailure(t *testing.T) {
	store := &fakeOrderStore{quotation: adjudicatedQuotation(2), failOnStatus: true}

	_, err := GeneratePurchaseOrder(context.Background(), store, 5, 7, nil)
	var partial *utils.PartialSagaFailure
	if !errors.As(err, &partial) {
		t.Fatalf("error type = %T, want PartialSagaFailure", err)
	}
	if partial.FailedStep != "MarkQuotationOrdered" {
		t.Fatalf("failed step = %q", partial.FailedStep)
	}
	// header and both lines persist
	if len(store.orders) != 1 || len(store.lines) != 2 {
		t.Fatalf("committed state = %d orders / %d lines, want 1/2",
			len(store.orders), len(store.lines))
	}
}

func TestGeneratePurchaseOrder_RequiresAdjudicada(t *testing.T) {
	quotation := adjudicatedQuotation(1)
	quotation.CurrentStatus = models.QuotationStatusEnEvaluacion
	store := &fakeOrderStore{quotation: quotation}

	_, err := GeneratePurchaseOrder(context.Background(), store, 5, 7, nil)
	if !utils.IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if len(store.orders) != 0 || len(store.stepRecords) != 0 {
		t.Fatal("nothing may be written before the precondition check")
	}
}

func TestGeneratePurchaseOrder_RejectsForeignProvider(t *testing.T) {
	store := &fakeOrderStore{quotation: adjudicatedQuotation(1)}

	_, err := GeneratePurchaseOrder(context.Background(), store, 5, 99, nil)
	if !utils.IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

func TestGeneratePurchaseOrder_RejectsEmptyBid(t *testing.T) {
	quotation := adjudicatedQuotation(1)
	quotation.Providers[0].Details = nil
	store := &fakeOrderStore{quotation: quotation}

	_, err := GeneratePurchaseOrder(context.Background(), store, 5, 7, nil)
	if !utils.IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

// An already-awarded provider is a no-op on the final step, so re-running
// the saga for a corrected order does not trip the transition table.
func TestGeneratePurchaseOrder_AwardedProviderIsNoop(t *testing.T) {
	quotation := adjudicatedQuotation(1)
	quotation.Providers[0].CurrentStatus = models.ProviderStatusBuenaProAdjudicada
	store := &fakeOrderStore{quotation: quotation}

	result, err := GeneratePurchaseOrder(context.Background(), store, 5, 7, nil)
	if err != nil {
		t.Fatalf("GeneratePurchaseOrder: %v", err)
	}
	if store.providerAwarded {
		t.Fatal("MarkProviderAwarded must not be called for an already-awarded provider")
	}
	// the no-op step still counts as completed
	found := false
	for _, step := range result.CompletedSteps {
		if step == "MarkProviderAwarded" {
			found = true
		}
	}
	if !found {
		t.Fatalf("MarkProviderAwarded missing from completed steps: %v", result.CompletedSteps)
	}
}

// A transfer landing between the award and the generation consumes quantity
// the order lines would need. The fresh reconciliation must reject before
// anything is written.
func TestGeneratePurchaseOrder_RejectsConsumedAvailability(t *testing.T) {
	requisitionId := 9
	quotation := adjudicatedQuotation(1) // bid: resource 1, qty 10
	quotation.RequisitionId = &requisitionId
	store := &fakeOrderStore{
		quotation: quotation,
		snapshot: &models.CommitmentSnapshot{
			RequisitionId: requisitionId,
			TransferLines: []models.SnapshotTransferLine{
				{TransferOrderId: 4, ResourceId: 1, Qty: qty(35)},
			},
		},
		requested: map[int]decimal.Decimal{1: decimal.NewFromInt(40)},
	}

	_, err := GeneratePurchaseOrder(context.Background(), store, 5, 7, nil)
	if !utils.IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if len(store.orders) != 0 || len(store.lines) != 0 || len(store.stepRecords) != 0 {
		t.Fatal("nothing may be written when the reconciliation rejects")
	}
}

// The generated order replaces the awarded bid reservation, it is not added
// on top of it. A requisition exactly at budget must still pass.
func TestGeneratePurchaseOrder_OrderReplacesAwardedBidReservation(t *testing.T) {
	requisitionId := 9
	quotation := adjudicatedQuotation(1)
	quotation.Providers[0].CurrentStatus = models.ProviderStatusBuenaProAdjudicada
	quotation.RequisitionId = &requisitionId
	store := &fakeOrderStore{
		quotation: quotation,
		snapshot: &models.CommitmentSnapshot{
			RequisitionId: requisitionId,
			ProviderBidLines: []models.SnapshotBidLine{
				{ProviderQuotationId: 7, ResourceId: 1, BidQty: qty(10),
					ProviderStatus:  models.ProviderStatusBuenaProAdjudicada,
					QuotationStatus: models.QuotationStatusAdjudicada},
			},
		},
		requested: map[int]decimal.Decimal{1: decimal.NewFromInt(10)},
	}

	if _, err := GeneratePurchaseOrder(context.Background(), store, 5, 7, nil); err != nil {
		t.Fatalf("GeneratePurchaseOrder: %v", err)
	}
	if store.stateFetches != 1 {
		t.Fatalf("state fetches = %d, want 1", store.stateFetches)
	}
}

func TestGeneratePurchaseOrder_UnlinkedQuotationSkipsReconciliation(t *testing.T) {
	store := &fakeOrderStore{quotation: adjudicatedQuotation(1)}

	if _, err := GeneratePurchaseOrder(context.Background(), store, 5, 7, nil); err != nil {
		t.Fatalf("GeneratePurchaseOrder: %v", err)
	}
	if store.stateFetches != 0 {
		t.Fatal("unlinked quotations have no requested bound to reconcile against")
	}
}
