package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/obrasur/procurement_backend/config"
	"bitbucket.org/obrasur/procurement_backend/models"
	"bitbucket.org/obrasur/procurement_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// orderValidityDays is how long a generated purchase order stays open.
const orderValidityDays = 7

// PurchaseOrderStore is the write boundary of the purchase-order saga.
// Every method is one independently-committed step; there is deliberately
// no transaction spanning them (see GeneratePurchaseOrder).
type PurchaseOrderStore interface {
	GetQuotation(ctx context.Context, id int) (*models.Quotation, error)
	// FetchRequisitionState returns a fresh commitment snapshot and the
	// requested quantities for a requisition, taken under the requisition
	// lock.
	FetchRequisitionState(ctx context.Context, requisitionId int) (*models.CommitmentSnapshot, map[int]decimal.Decimal, error)
	CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error
	CreatePurchaseOrderLine(ctx context.Context, line *models.PurchaseOrderLine) error
	MarkQuotationOrdered(ctx context.Context, quotation *models.Quotation) error
	MarkProviderAwarded(ctx context.Context, provider *models.ProviderQuotation) error
	RecordSagaStep(ctx context.Context, record *models.SagaStepRecord) error
}

// SagaProgress is the side channel reported to the UI while the saga runs.
// StepIndex strictly increases; Percent reaches 100 only on full success.
type SagaProgress struct {
	StepIndex int    `json:"step_index"`
	StepCount int    `json:"step_count"`
	StepName  string `json:"step_name"`
	Percent   int    `json:"percent"`
}

type PurchaseOrderResult struct {
	PurchaseOrderId int      `json:"purchase_order_id"`
	Code            string   `json:"code"`
	CompletedSteps  []string `json:"completed_steps"`
}

type sagaStep struct {
	name string
	run  func(ctx context.Context) error
}

// GeneratePurchaseOrder turns a confirmed award into a persisted purchase
// order:
//
//  1. create the order header
//  2. one order line per awarded bid line
//  3. quotation -> OCGenerada
//  4. awarded provider -> BuenaProAdjudicada (no-op if already awarded)
//
// Steps run strictly sequentially, each awaited and committed on its own.
// A failure at step k aborts the rest and returns PartialSagaFailure with
// the identifiers of steps 1..k-1, which stay committed — there is no
// compensating transaction; manual correction resumes from the persisted
// step log. Cancellation is not supported once the saga starts.
func GeneratePurchaseOrder(ctx context.Context, store PurchaseOrderStore, quotationId int, providerQuotationId int, onProgress func(SagaProgress)) (*PurchaseOrderResult, error) {
	logger := config.GetLogger()

	quotation, err := store.GetQuotation(ctx, quotationId)
	if err != nil {
		return nil, err
	}
	if quotation.CurrentStatus != models.QuotationStatusAdjudicada {
		return nil, utils.NewValidationError("current_status",
			"purchase orders can only be generated for an adjudicated quotation")
	}
	provider := findProvider(quotation, providerQuotationId)
	if provider == nil {
		return nil, utils.NewValidationError("provider_quotation_id",
			"provider quotation does not belong to this quotation")
	}
	if len(provider.Details) == 0 {
		return nil, utils.NewValidationError("provider_quotation_id",
			"awarded provider has no bid lines to order")
	}

	// Quantity may have been consumed since the award (a transfer, another
	// session's write). Re-reconcile against fresh rows before the first
	// step commits; unlinked quotations have no requested bound to check.
	if quotation.RequisitionId != nil {
		snapshot, requested, err := store.FetchRequisitionState(ctx, *quotation.RequisitionId)
		if err != nil {
			return nil, err
		}
		if err := CheckCommitments(projectOrderedSnapshot(snapshot, provider), requested); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	order := models.PurchaseOrder{
		ProviderId:        provider.ProviderId,
		SourceQuotationId: quotation.ID,
		IssueDate:         now,
		EndDate:           now.AddDate(0, 0, orderValidityDays),
		Description:       fmt.Sprintf("Orden de compra para cotizacion %s", quotation.Code),
		Active:            utils.NewTrue(),
	}

	steps := []sagaStep{{
		name: "CreateHeader",
		run: func(ctx context.Context) error {
			return store.CreatePurchaseOrder(ctx, &order)
		},
	}}
	for i := range provider.Details {
		bid := provider.Details[i]
		steps = append(steps, sagaStep{
			name: fmt.Sprintf("CreateLine[resource=%d]", bid.ResourceId),
			run: func(ctx context.Context) error {
				line := models.PurchaseOrderLine{
					PurchaseOrderId:  order.ID,
					ResourceId:       bid.ResourceId,
					Qty:              bid.BidQty,
					ActualCost:       bid.BidUnitPrice,
					ApproximateCost:  bid.BidUnitPrice,
					FulfillmentState: models.FulfillmentStatePendiente,
				}
				return store.CreatePurchaseOrderLine(ctx, &line)
			},
		})
	}
	steps = append(steps,
		sagaStep{
			name: "MarkQuotationOrdered",
			run: func(ctx context.Context) error {
				return store.MarkQuotationOrdered(ctx, quotation)
			},
		},
		sagaStep{
			name: "MarkProviderAwarded",
			run: func(ctx context.Context) error {
				if provider.CurrentStatus == models.ProviderStatusBuenaProAdjudicada {
					return nil
				}
				return store.MarkProviderAwarded(ctx, provider)
			},
		},
	)

	correlationId := correlationIdOrNew(ctx)
	completed := make([]string, 0, len(steps))
	for i, step := range steps {
		if err := step.run(ctx); err != nil {
			config.LogError(logger, "purchaseOrderWorkflow.go", "GeneratePurchaseOrder", step.name, quotationId, err)
			recordStep(ctx, store, quotation.ID, providerQuotationId, step.name, i, models.SagaStepStatusFailed, correlationId, err)
			return nil, &utils.PartialSagaFailure{
				FailedStep:     step.name,
				CompletedSteps: completed,
				Err:            err,
			}
		}
		completed = append(completed, step.name)
		recordStep(ctx, store, quotation.ID, providerQuotationId, step.name, i, models.SagaStepStatusCompleted, correlationId, nil)
		if onProgress != nil {
			onProgress(SagaProgress{
				StepIndex: i + 1,
				StepCount: len(steps),
				StepName:  step.name,
				Percent:   (i + 1) * 100 / len(steps),
			})
		}
	}

	return &PurchaseOrderResult{
		PurchaseOrderId: order.ID,
		Code:            order.Code,
		CompletedSteps:  completed,
	}, nil
}

// projectOrderedSnapshot rewrites a fresh snapshot to how it will look once
// the saga completes: the awarded provider's bid lines stop reserving and one
// order line per bid line takes their place. The reservation moves, it is not
// added on top, so the projection must drop the bid lines or an in-budget
// generation would be counted twice and rejected.
func projectOrderedSnapshot(snapshot *models.CommitmentSnapshot, provider *models.ProviderQuotation) *models.CommitmentSnapshot {
	projected := models.CommitmentSnapshot{
		RequisitionId:  snapshot.RequisitionId,
		QuotationLines: snapshot.QuotationLines,
		OrderLines:     append([]models.SnapshotOrderLine(nil), snapshot.OrderLines...),
		TransferLines:  snapshot.TransferLines,
	}
	for _, bid := range snapshot.ProviderBidLines {
		if bid.ProviderQuotationId == provider.ID {
			continue
		}
		projected.ProviderBidLines = append(projected.ProviderBidLines, bid)
	}
	for i := range provider.Details {
		bidQty := provider.Details[i].BidQty
		projected.OrderLines = append(projected.OrderLines, models.SnapshotOrderLine{
			ResourceId: provider.Details[i].ResourceId,
			Qty:        &bidQty,
		})
	}
	return &projected
}

// recordStep appends to the durable step log. The log is a side channel:
// a failure to write it is logged but never aborts the saga.
func recordStep(ctx context.Context, store PurchaseOrderStore, quotationId int, providerQuotationId int, stepName string, stepIndex int, status models.SagaStepStatus, correlationId string, stepErr error) {
	requesterId, _ := utils.GetRequesterIdFromContext(ctx)
	record := models.SagaStepRecord{
		QuotationId:         quotationId,
		ProviderQuotationId: providerQuotationId,
		StepName:            stepName,
		StepIndex:           stepIndex,
		Status:              status,
		CorrelationId:       correlationId,
		RequesterId:         requesterId,
	}
	if stepErr != nil {
		msg := stepErr.Error()
		record.LastError = &msg
	}
	if err := store.RecordSagaStep(ctx, &record); err != nil {
		config.LogError(config.GetLogger(), "purchaseOrderWorkflow.go", "recordStep", stepName, record, err)
	}
}

func correlationIdOrNew(ctx context.Context) string {
	if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
		return v
	}
	return uuid.NewString()
}

// GormPurchaseOrderStore commits each saga step against the live database.
type GormPurchaseOrderStore struct {
	DB *gorm.DB
}

func NewGormPurchaseOrderStore() *GormPurchaseOrderStore {
	return &GormPurchaseOrderStore{DB: config.GetDB()}
}

func (s *GormPurchaseOrderStore) GetQuotation(ctx context.Context, id int) (*models.Quotation, error) {
	return models.GetQuotation(ctx, id)
}

func (s *GormPurchaseOrderStore) FetchRequisitionState(ctx context.Context, requisitionId int) (*models.CommitmentSnapshot, map[int]decimal.Decimal, error) {
	release, err := utils.RequisitionLock(ctx, requisitionId, "purchaseOrderWorkflow.go", "FetchRequisitionState")
	if err != nil {
		return nil, nil, err
	}
	defer release()

	var snapshot *models.CommitmentSnapshot
	var requested map[int]decimal.Decimal
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireRequisitionPostingLock(tx, requisitionId); err != nil {
			return err
		}
		defer ReleaseRequisitionPostingLock(tx, requisitionId)

		var txErr error
		if requested, txErr = requestedQuantitiesTx(tx, requisitionId); txErr != nil {
			return txErr
		}
		snapshot, txErr = models.FetchCommitmentSnapshot(ctx, tx, requisitionId)
		return txErr
	})
	if err != nil {
		return nil, nil, err
	}
	return snapshot, requested, nil
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func (s *GormPurchaseOrderStore) CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error {
	// The code sequence is derived from a count, so two concurrent
	// generations can collide on the unique code index. Reallocate and
	// retry on duplicate key.
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		lastErr = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			code, err := models.NextPurchaseOrderCode(tx, order.IssueDate)
			if err != nil {
				return err
			}
			order.Code = code
			return tx.Create(order).Error
		})
		if lastErr == nil || !isDuplicateKeyErr(lastErr) {
			return lastErr
		}
		order.ID = 0
	}
	return lastErr
}

func (s *GormPurchaseOrderStore) CreatePurchaseOrderLine(ctx context.Context, line *models.PurchaseOrderLine) error {
	return s.DB.WithContext(ctx).Create(line).Error
}

func (s *GormPurchaseOrderStore) MarkQuotationOrdered(ctx context.Context, quotation *models.Quotation) error {
	return models.TransitionQuotationTx(s.DB.WithContext(ctx), quotation, models.QuotationStatusOCGenerada)
}

func (s *GormPurchaseOrderStore) MarkProviderAwarded(ctx context.Context, provider *models.ProviderQuotation) error {
	return models.TransitionProviderTx(s.DB.WithContext(ctx), provider, models.ProviderStatusBuenaProAdjudicada)
}

func (s *GormPurchaseOrderStore) RecordSagaStep(ctx context.Context, record *models.SagaStepRecord) error {
	return s.DB.WithContext(ctx).Create(record).Error
}
