package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/obrasur/procurement_backend/config"
	"bitbucket.org/obrasur/procurement_backend/models"
	"bitbucket.org/obrasur/procurement_backend/utils"
	"gorm.io/gorm"
)

// EvaluationStore is the write boundary of the evaluation batch. The two
// mark methods commit independently, one row each.
type EvaluationStore interface {
	GetQuotation(ctx context.Context, id int) (*models.Quotation, error)
	MarkQuotationInEvaluation(ctx context.Context, quotation *models.Quotation) error
	MarkProviderInEvaluation(ctx context.Context, provider *models.ProviderQuotation) error
}

// checkEvaluationPrecondition rejects the batch before any write: every
// attached provider must be ProformaRecibida or EnEvaluacion.
func checkEvaluationPrecondition(quotation *models.Quotation) error {
	if len(quotation.Providers) == 0 {
		return utils.NewValidationError("providers",
			"quotation has no provider bids to evaluate")
	}
	for _, provider := range quotation.Providers {
		if provider.CurrentStatus != models.ProviderStatusProformaRecibida &&
			provider.CurrentStatus != models.ProviderStatusEnEvaluacion {
			return utils.NewValidationError("providers", fmt.Sprintf(
				"provider quotation %d is %s; every bid must be ProformaRecibida or EnEvaluacion",
				provider.ID, provider.CurrentStatus))
		}
	}
	return nil
}

// TransitionToEvaluation moves a quotation and ALL of its provider bids to
// EnEvaluacion.
//
// This is a batch operation over independent rows: the quotation update and
// every provider update are attempted in order. If an individual provider
// update fails, the failure is logged and surfaced to the caller, but
// already-applied updates are NOT rolled back — the batch can be re-run and
// providers already in EnEvaluacion are skipped.
func TransitionToEvaluation(ctx context.Context, store EvaluationStore, quotationId int) error {
	logger := config.GetLogger()

	quotation, err := store.GetQuotation(ctx, quotationId)
	if err != nil {
		return err
	}
	if err := checkEvaluationPrecondition(quotation); err != nil {
		return err
	}

	if err := store.MarkQuotationInEvaluation(ctx, quotation); err != nil {
		config.LogError(logger, "evaluationWorkflow.go", "TransitionToEvaluation", "TransitionQuotation", quotationId, err)
		return err
	}
	for i := range quotation.Providers {
		provider := &quotation.Providers[i]
		if provider.CurrentStatus == models.ProviderStatusEnEvaluacion {
			continue
		}
		if err := store.MarkProviderInEvaluation(ctx, provider); err != nil {
			config.LogError(logger, "evaluationWorkflow.go", "TransitionToEvaluation", "TransitionProvider", provider.ID, err)
			return err
		}
	}
	return nil
}

// GormEvaluationStore commits each batch update against the live database.
type GormEvaluationStore struct {
	DB *gorm.DB
}

func NewGormEvaluationStore() *GormEvaluationStore {
	return &GormEvaluationStore{DB: config.GetDB()}
}

func (s *GormEvaluationStore) GetQuotation(ctx context.Context, id int) (*models.Quotation, error) {
	return models.GetQuotation(ctx, id)
}

func (s *GormEvaluationStore) MarkQuotationInEvaluation(ctx context.Context, quotation *models.Quotation) error {
	return models.TransitionQuotationTx(s.DB.WithContext(ctx), quotation, models.QuotationStatusEnEvaluacion)
}

func (s *GormEvaluationStore) MarkProviderInEvaluation(ctx context.Context, provider *models.ProviderQuotation) error {
	return models.TransitionProviderTx(s.DB.WithContext(ctx), provider, models.ProviderStatusEnEvaluacion)
}

// CompareBids loads the quotation and derives the award-decision view.
// Read-only; calling it twice on unchanged data returns identical results.
func CompareBids(ctx context.Context, quotationId int) (*models.BidComparison, error) {
	quotation, err := models.GetQuotation(ctx, quotationId)
	if err != nil {
		return nil, err
	}
	return models.CompareBids(quotation), nil
}
