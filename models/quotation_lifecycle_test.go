package models_test

import (
	"testing"

	"bitbucket.org/obrasur/procurement_backend/models"
)

func TestCanTransitionQuotation_LegalMoves(t *testing.T) {
	legal := []struct {
		from, to models.QuotationStatus
	}{
		{models.QuotationStatusVacio, models.QuotationStatusPendiente},
		{models.QuotationStatusPendiente, models.QuotationStatusVacio},
		{models.QuotationStatusPendiente, models.QuotationStatusIniciada},
		{models.QuotationStatusIniciada, models.QuotationStatusCotizada},
		{models.QuotationStatusIniciada, models.QuotationStatusEnEvaluacion},
		{models.QuotationStatusCotizada, models.QuotationStatusEnEvaluacion},
		{models.QuotationStatusEnEvaluacion, models.QuotationStatusAdjudicada},
		{models.QuotationStatusAdjudicada, models.QuotationStatusOCGenerada},
		{models.QuotationStatusAdjudicada, models.QuotationStatusRechazada},
		{models.QuotationStatusRechazada, models.QuotationStatusEnEvaluacion},
	}
	for _, move := range legal {
		if !models.CanTransitionQuotation(move.from, move.to) {
			t.Errorf("%s -> %s must be legal", move.from, move.to)
		}
	}
}

func TestCanTransitionQuotation_IllegalMoves(t *testing.T) {
	illegal := []struct {
		from, to models.QuotationStatus
	}{
		{models.QuotationStatusVacio, models.QuotationStatusAdjudicada},
		{models.QuotationStatusVacio, models.QuotationStatusOCGenerada},
		{models.QuotationStatusIniciada, models.QuotationStatusAdjudicada},
		{models.QuotationStatusCotizada, models.QuotationStatusOCGenerada},
		{models.QuotationStatusEnEvaluacion, models.QuotationStatusOCGenerada},
		{models.QuotationStatusAdjudicada, models.QuotationStatusPendiente},
		{models.QuotationStatusRechazada, models.QuotationStatusAdjudicada},
	}
	for _, move := range illegal {
		if models.CanTransitionQuotation(move.from, move.to) {
			t.Errorf("%s -> %s must be illegal", move.from, move.to)
		}
	}
}

// OCGenerada is terminal: no outgoing move exists, including self.
func TestCanTransitionQuotation_OCGeneradaIsTerminal(t *testing.T) {
	for _, status := range allQuotationStatuses() {
		if models.CanTransitionQuotation(models.QuotationStatusOCGenerada, status) {
			t.Errorf("OCGenerada -> %s must be illegal", status)
		}
	}
	if !models.QuotationStatusOCGenerada.IsTerminal() {
		t.Fatal("OCGenerada must report terminal")
	}
}

func TestCanTransitionProvider(t *testing.T) {
	if !models.CanTransitionProvider(models.ProviderStatusProformaRecibida, models.ProviderStatusEnEvaluacion) {
		t.Error("ProformaRecibida -> EnEvaluacion must be legal")
	}
	if !models.CanTransitionProvider(models.ProviderStatusEnEvaluacion, models.ProviderStatusBuenaProAdjudicada) {
		t.Error("EnEvaluacion -> BuenaProAdjudicada must be legal")
	}
	if !models.CanTransitionProvider(models.ProviderStatusBuenaProAdjudicada, models.ProviderStatusRechazada) {
		t.Error("BuenaProAdjudicada -> Rechazada must be legal")
	}
	if models.CanTransitionProvider(models.ProviderStatusProformaRecibida, models.ProviderStatusBuenaProAdjudicada) {
		t.Error("ProformaRecibida -> BuenaProAdjudicada must be illegal")
	}
	if models.CanTransitionProvider(models.ProviderStatusRechazada, models.ProviderStatusEnEvaluacion) {
		t.Error("Rechazada -> EnEvaluacion must be illegal for providers")
	}
}

func allQuotationStatuses() []models.QuotationStatus {
	return []models.QuotationStatus{
		models.QuotationStatusVacio,
		models.QuotationStatusPendiente,
		models.QuotationStatusIniciada,
		models.QuotationStatusCotizada,
		models.QuotationStatusEnEvaluacion,
		models.QuotationStatusAdjudicada,
		models.QuotationStatusOCGenerada,
		models.QuotationStatusRechazada,
	}
}

func TestQuotationStatus_Valid(t *testing.T) {
	for _, status := range allQuotationStatuses() {
		if !status.Valid() {
			t.Errorf("%s must be valid", status)
		}
	}
	if models.QuotationStatus("Cerrada").Valid() {
		t.Error("unknown status must be invalid")
	}
}

func TestHasAwardedProvider(t *testing.T) {
	quotation := models.Quotation{
		Providers: []models.ProviderQuotation{
			{ID: 1, CurrentStatus: models.ProviderStatusRechazada},
			{ID: 2, CurrentStatus: models.ProviderStatusBuenaProAdjudicada},
		},
	}
	if !quotation.HasAwardedProvider() {
		t.Fatal("quotation with an awarded provider must report awarded")
	}
	if got := quotation.AwardedProvider(); got == nil || got.ID != 2 {
		t.Fatalf("awarded provider = %v, want ID 2", got)
	}

	quotation.Providers[1].CurrentStatus = models.ProviderStatusEnEvaluacion
	if quotation.HasAwardedProvider() {
		t.Fatal("quotation without awarded provider must not report awarded")
	}
	if quotation.AwardedProvider() != nil {
		t.Fatal("awarded provider must be nil without an award")
	}
}
