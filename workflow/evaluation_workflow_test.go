package workflow

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/obrasur/procurement_backend/models"
	"bitbucket.org/obrasur/procurement_backend/utils"
)

// NOTE: These tests are intentionally DB-free. The batch is exercised through
// a fake store that marks rows in memory, which is the property under test:
// the precondition rejects before any write, and a mid-batch failure leaves
// the already-applied updates in place.

type fakeEvaluationStore struct {
	quotation *models.Quotation

	quotationMarked bool
	providersMarked []int

	failOnProvider int // provider quotation id whose update fails; 0 = never
}

func (f *fakeEvaluationStore) GetQuotation(ctx context.Context, id int) (*models.Quotation, error) {
	if f.quotation == nil || f.quotation.ID != id {
		return nil, utils.ErrorRecordNotFound
	}
	return f.quotation, nil
}

func (f *fakeEvaluationStore) MarkQuotationInEvaluation(ctx context.Context, quotation *models.Quotation) error {
	quotation.CurrentStatus = models.QuotationStatusEnEvaluacion
	f.quotationMarked = true
	return nil
}

func (f *fakeEvaluationStore) MarkProviderInEvaluation(ctx context.Context, provider *models.ProviderQuotation) error {
	if f.failOnProvider != 0 && provider.ID == f.failOnProvider {
		return errors.New("simulated provider update failure")
	}
	provider.CurrentStatus = models.ProviderStatusEnEvaluacion
	f.providersMarked = append(f.providersMarked, provider.ID)
	return nil
}

func evaluableQuotation(providerStatuses ...models.ProviderQuotationStatus) *models.Quotation {
	quotation := &models.Quotation{
		ID:            5,
		Code:          "COT-000005",
		CurrentStatus: models.QuotationStatusIniciada,
	}
	for i, status := range providerStatuses {
		quotation.Providers = append(quotation.Providers, models.ProviderQuotation{
			ID:            i + 1,
			QuotationId:   5,
			ProviderId:    700 + i,
			CurrentStatus: status,
		})
	}
	return quotation
}

func TestTransitionToEvaluation_MarksQuotationAndAllProviders(t *testing.T) {
	store := &fakeEvaluationStore{quotation: evaluableQuotation(
		models.ProviderStatusProformaRecibida,
		models.ProviderStatusProformaRecibida,
	)}

	if err := TransitionToEvaluation(context.Background(), store, 5); err != nil {
		t.Fatalf("TransitionToEvaluation: %v", err)
	}
	if store.quotation.CurrentStatus != models.QuotationStatusEnEvaluacion {
		t.Fatalf("quotation status = %s, want EnEvaluacion", store.quotation.CurrentStatus)
	}
	if len(store.providersMarked) != 2 {
		t.Fatalf("providers marked = %v, want both", store.providersMarked)
	}
	for _, provider := range store.quotation.Providers {
		if provider.CurrentStatus != models.ProviderStatusEnEvaluacion {
			t.Fatalf("provider %d status = %s, want EnEvaluacion", provider.ID, provider.CurrentStatus)
		}
	}
}

// Providers already in EnEvaluacion are skipped, so the batch can be re-run
// after a partial failure without tripping the transition table.
func TestTransitionToEvaluation_SkipsProvidersAlreadyInEvaluation(t *testing.T) {
	store := &fakeEvaluationStore{quotation: evaluableQuotation(
		models.ProviderStatusEnEvaluacion,
		models.ProviderStatusProformaRecibida,
	)}

	if err := TransitionToEvaluation(context.Background(), store, 5); err != nil {
		t.Fatalf("TransitionToEvaluation: %v", err)
	}
	if len(store.providersMarked) != 1 || store.providersMarked[0] != 2 {
		t.Fatalf("providers marked = %v, want only provider 2", store.providersMarked)
	}
}

// An ineligible provider rejects the whole batch before any write.
func TestTransitionToEvaluation_RejectsIneligibleProvider(t *testing.T) {
	store := &fakeEvaluationStore{quotation: evaluableQuotation(
		models.ProviderStatusProformaRecibida,
		models.ProviderStatusRechazada,
	)}

	err := TransitionToEvaluation(context.Background(), store, 5)
	if !utils.IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if store.quotationMarked || len(store.providersMarked) != 0 {
		t.Fatal("nothing may be marked when the precondition rejects")
	}
	if store.quotation.CurrentStatus != models.QuotationStatusIniciada {
		t.Fatalf("quotation status = %s, want Iniciada untouched", store.quotation.CurrentStatus)
	}
}

func TestTransitionToEvaluation_RejectsWithoutProviders(t *testing.T) {
	store := &fakeEvaluationStore{quotation: evaluableQuotation()}

	err := TransitionToEvaluation(context.Background(), store, 5)
	if !utils.IsValidationError(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

// A mid-batch provider failure is surfaced, but the quotation update and the
// providers already marked stay applied; the rows are independent.
func TestTransitionToEvaluation_PartialFailureKeepsAppliedUpdates(t *testing.T) {
	store := &fakeEvaluationStore{
		quotation: evaluableQuotation(
			models.ProviderStatusProformaRecibida,
			models.ProviderStatusProformaRecibida,
			models.ProviderStatusProformaRecibida,
		),
		failOnProvider: 2,
	}

	err := TransitionToEvaluation(context.Background(), store, 5)
	if err == nil {
		t.Fatal("expected failure")
	}
	if utils.IsValidationError(err) {
		t.Fatalf("error = %v, want a plain data-access failure", err)
	}
	if !store.quotationMarked {
		t.Fatal("quotation update before the failure must stay applied")
	}
	if len(store.providersMarked) != 1 || store.providersMarked[0] != 1 {
		t.Fatalf("providers marked = %v, want only provider 1", store.providersMarked)
	}
	if store.quotation.Providers[1].CurrentStatus != models.ProviderStatusProformaRecibida {
		t.Fatal("failed provider must keep its status")
	}
	if store.quotation.Providers[2].CurrentStatus != models.ProviderStatusProformaRecibida {
		t.Fatal("providers after the failure must not be touched")
	}
}
