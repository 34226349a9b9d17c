package models

import (
	"encoding/json"
	"errors"
)

// QuotationStatus is the single source of truth for whether a quotation's
// resource lines still reserve quantity against their requisition.
type QuotationStatus string

const (
	QuotationStatusVacio        QuotationStatus = "Vacio"
	QuotationStatusPendiente    QuotationStatus = "Pendiente"
	QuotationStatusIniciada     QuotationStatus = "Iniciada"
	QuotationStatusCotizada     QuotationStatus = "Cotizada"
	QuotationStatusEnEvaluacion QuotationStatus = "EnEvaluacion"
	QuotationStatusAdjudicada   QuotationStatus = "Adjudicada"
	QuotationStatusOCGenerada   QuotationStatus = "OCGenerada"
	QuotationStatusRechazada    QuotationStatus = "Rechazada"
)

var quotationStatuses = map[string]QuotationStatus{
	"Vacio":        QuotationStatusVacio,
	"Pendiente":    QuotationStatusPendiente,
	"Iniciada":     QuotationStatusIniciada,
	"Cotizada":     QuotationStatusCotizada,
	"EnEvaluacion": QuotationStatusEnEvaluacion,
	"Adjudicada":   QuotationStatusAdjudicada,
	"OCGenerada":   QuotationStatusOCGenerada,
	"Rechazada":    QuotationStatusRechazada,
}

func (s QuotationStatus) Valid() bool {
	_, ok := quotationStatuses[string(s)]
	return ok
}

// OCGenerada is terminal: once an order exists the reservation lives on the
// order lines and the quotation never changes status again.
func (s QuotationStatus) IsTerminal() bool {
	return s == QuotationStatusOCGenerada
}

func (s *QuotationStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("quotation status must be string")
	}
	v, ok := quotationStatuses[str]
	if !ok {
		return errors.New("invalid quotation status")
	}
	*s = v
	return nil
}

// ProviderQuotationStatus tracks one provider's bid inside a quotation.
type ProviderQuotationStatus string

const (
	ProviderStatusProformaRecibida   ProviderQuotationStatus = "ProformaRecibida"
	ProviderStatusEnEvaluacion       ProviderQuotationStatus = "EnEvaluacion"
	ProviderStatusBuenaProAdjudicada ProviderQuotationStatus = "BuenaProAdjudicada"
	ProviderStatusRechazada          ProviderQuotationStatus = "Rechazada"
)

var providerQuotationStatuses = map[string]ProviderQuotationStatus{
	"ProformaRecibida":   ProviderStatusProformaRecibida,
	"EnEvaluacion":       ProviderStatusEnEvaluacion,
	"BuenaProAdjudicada": ProviderStatusBuenaProAdjudicada,
	"Rechazada":          ProviderStatusRechazada,
}

func (s ProviderQuotationStatus) Valid() bool {
	_, ok := providerQuotationStatuses[string(s)]
	return ok
}

func (s *ProviderQuotationStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("provider quotation status must be string")
	}
	v, ok := providerQuotationStatuses[str]
	if !ok {
		return errors.New("invalid provider quotation status")
	}
	*s = v
	return nil
}

// FulfillmentState marks whether a purchase-order line has been attended.
type FulfillmentState string

const (
	FulfillmentStatePendiente FulfillmentState = "Pendiente"
	FulfillmentStateAtendida  FulfillmentState = "Atendida"
)

func (s FulfillmentState) Valid() bool {
	return s == FulfillmentStatePendiente || s == FulfillmentStateAtendida
}

// SagaStepStatus records the outcome of one purchase-order generation step.
type SagaStepStatus string

const (
	SagaStepStatusCompleted SagaStepStatus = "Completed"
	SagaStepStatusFailed    SagaStepStatus = "Failed"
)
