package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/obrasur/procurement_backend/config"
	"bitbucket.org/obrasur/procurement_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Quotation is a sourcing effort for a requisition's resources. It is never
// deleted; its status decides whether its lines still reserve quantity.
type Quotation struct {
	ID            int                     `gorm:"primary_key" json:"id"`
	Code          string                  `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Requester     string                  `gorm:"size:255" json:"requester"`
	RequisitionId *int                    `gorm:"index;default:null" json:"requisition_id"`
	CurrentStatus QuotationStatus         `gorm:"type:enum('Vacio','Pendiente','Iniciada','Cotizada','EnEvaluacion','Adjudicada','OCGenerada','Rechazada');not null" json:"current_status"`
	Approved      *bool                   `gorm:"not null;default:false" json:"approved"`
	QuotationDate time.Time               `gorm:"not null" json:"quotation_date"`
	Details       []QuotationResourceLine `gorm:"foreignKey:QuotationId" json:"quotation_details"`
	Providers     []ProviderQuotation     `gorm:"foreignKey:QuotationId" json:"provider_quotations"`
	CreatedAt     time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewQuotation struct {
	Requester     string `json:"requester"`
	RequisitionId *int   `json:"requisition_id"`
}

// QuotationResourceLine reserves SelectedQty of one resource while its
// parent quotation is in an open status.
type QuotationResourceLine struct {
	ID              int             `gorm:"primary_key" json:"id"`
	QuotationId     int             `gorm:"index;not null" json:"quotation_id" binding:"required"`
	ResourceId      int             `gorm:"index;not null" json:"resource_id" binding:"required"`
	SelectedQty     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"selected_qty" binding:"required"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	FulfillmentNote string          `gorm:"size:255;default:null" json:"fulfillment_note"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewQuotationResourceLine struct {
	ResourceId      int             `json:"resource_id" binding:"required"`
	SelectedQty     decimal.Decimal `json:"selected_qty" binding:"required"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	FulfillmentNote string          `json:"fulfillment_note"`
}

// CreateQuotation opens an empty sourcing effort (status Vacio).
func CreateQuotation(ctx context.Context, input *NewQuotation) (*Quotation, error) {
	db := config.GetDB()

	if input.RequisitionId != nil {
		if err := utils.ValidateResourceId[Requisition](ctx, *input.RequisitionId); err != nil {
			return nil, err
		}
	}

	requester := input.Requester
	if requester == "" {
		requester, _ = utils.GetRequesterNameFromContext(ctx)
	}

	quotation := Quotation{
		Requester:     requester,
		RequisitionId: input.RequisitionId,
		CurrentStatus: QuotationStatusVacio,
		Approved:      utils.NewFalse(),
		QuotationDate: time.Now().UTC(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&quotation).Error; err != nil {
			return err
		}
		quotation.Code = fmt.Sprintf("COT-%06d", quotation.ID)
		return tx.Model(&Quotation{}).Where("id = ?", quotation.ID).
			Update("code", quotation.Code).Error
	})
	if err != nil {
		return nil, err
	}
	return &quotation, nil
}

// GetQuotation loads a quotation with its lines and provider bids.
func GetQuotation(ctx context.Context, id int) (*Quotation, error) {
	db := config.GetDB()
	return getQuotationTx(db.WithContext(ctx), id)
}

func getQuotationTx(tx *gorm.DB, id int) (*Quotation, error) {
	var quotation Quotation
	if err := tx.Preload("Details").Preload("Providers").Preload("Providers.Details").
		First(&quotation, id).Error; err != nil {
		return nil, err
	}
	return &quotation, nil
}

// HasAwardedProvider reports whether any provider on the quotation holds the
// award. Such a quotation is considered adjudicated regardless of the status
// column lagging behind.
func (q *Quotation) HasAwardedProvider() bool {
	for _, provider := range q.Providers {
		if provider.CurrentStatus == ProviderStatusBuenaProAdjudicada {
			return true
		}
	}
	return false
}

// AwardedProvider returns the provider holding the award, or nil.
func (q *Quotation) AwardedProvider() *ProviderQuotation {
	for i := range q.Providers {
		if q.Providers[i].CurrentStatus == ProviderStatusBuenaProAdjudicada {
			return &q.Providers[i]
		}
	}
	return nil
}
