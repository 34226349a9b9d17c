package models

import (
	"context"
	"time"

	"bitbucket.org/obrasur/procurement_backend/config"
	"bitbucket.org/obrasur/procurement_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProviderQuotation is one provider's competing bid inside a quotation.
type ProviderQuotation struct {
	ID            int                     `gorm:"primary_key" json:"id"`
	QuotationId   int                     `gorm:"index;not null" json:"quotation_id" binding:"required"`
	ProviderId    int                     `gorm:"index;not null" json:"provider_id" binding:"required"`
	CurrentStatus ProviderQuotationStatus `gorm:"type:enum('ProformaRecibida','EnEvaluacion','BuenaProAdjudicada','Rechazada');not null" json:"current_status"`
	ValidFrom     *time.Time              `gorm:"default:null" json:"valid_from"`
	ValidUntil    *time.Time              `gorm:"default:null" json:"valid_until"`
	DeliveryDate  *time.Time              `gorm:"default:null" json:"delivery_date"`
	PaymentTerms  string                  `gorm:"size:255;default:null" json:"payment_terms"`
	Currency      string                  `gorm:"size:10;default:'PEN'" json:"currency"`
	Notes         string                  `gorm:"type:text;default:null" json:"notes"`
	Details       []ProviderBidLine       `gorm:"foreignKey:ProviderQuotationId" json:"provider_bid_lines"`
	CreatedAt     time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProviderQuotation struct {
	ProviderId   int                  `json:"provider_id" binding:"required"`
	ValidFrom    *time.Time           `json:"valid_from"`
	ValidUntil   *time.Time           `json:"valid_until"`
	DeliveryDate *time.Time           `json:"delivery_date"`
	PaymentTerms string               `json:"payment_terms"`
	Currency     string               `json:"currency"`
	Notes        string               `json:"notes"`
	Details      []NewProviderBidLine `json:"details"`
}

// ProviderBidLine prices one quotation resource line. BidQty reserves
// quantity only while the parent provider quotation holds the award.
type ProviderBidLine struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	ProviderQuotationId int             `gorm:"index;not null" json:"provider_quotation_id" binding:"required"`
	ResourceId          int             `gorm:"index;not null" json:"resource_id" binding:"required"`
	BidQty              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bid_qty"`
	BidUnitPrice        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bid_unit_price"`
	Subtotal            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProviderBidLine struct {
	ResourceId   int             `json:"resource_id" binding:"required"`
	BidQty       decimal.Decimal `json:"bid_qty"`
	BidUnitPrice decimal.Decimal `json:"bid_unit_price"`
}

// ReceiveProviderQuotation records an incoming proforma with its bid lines
// (status ProformaRecibida). Bid lines must reference resources present on
// the quotation's own lines.
func ReceiveProviderQuotation(ctx context.Context, quotationId int, input *NewProviderQuotation) (*ProviderQuotation, error) {
	db := config.GetDB()

	quotation, err := GetQuotation(ctx, quotationId)
	if err != nil {
		return nil, err
	}
	quotedResources := make(map[int]bool, len(quotation.Details))
	for _, line := range quotation.Details {
		quotedResources[line.ResourceId] = true
	}
	bidResourceIds := make([]int, 0, len(input.Details))
	for _, bid := range input.Details {
		if !quotedResources[bid.ResourceId] {
			return nil, utils.NewValidationError("resource_id",
				"bid references a resource not present on the quotation")
		}
		bidResourceIds = append(bidResourceIds, bid.ResourceId)
	}
	if len(bidResourceIds) > 0 {
		if err := utils.ValidateResourcesId[Resource](ctx, bidResourceIds); err != nil {
			return nil, err
		}
	}

	currency := input.Currency
	if currency == "" {
		currency = "PEN"
	}
	provider := ProviderQuotation{
		QuotationId:   quotationId,
		ProviderId:    input.ProviderId,
		CurrentStatus: ProviderStatusProformaRecibida,
		ValidFrom:     input.ValidFrom,
		ValidUntil:    input.ValidUntil,
		DeliveryDate:  input.DeliveryDate,
		PaymentTerms:  input.PaymentTerms,
		Currency:      currency,
		Notes:         input.Notes,
	}
	for _, bid := range input.Details {
		provider.Details = append(provider.Details, ProviderBidLine{
			ResourceId:   bid.ResourceId,
			BidQty:       bid.BidQty,
			BidUnitPrice: bid.BidUnitPrice,
			Subtotal:     bid.BidQty.Mul(bid.BidUnitPrice),
		})
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&provider).Error; err != nil {
			return err
		}
		// First proforma moves the sourcing effort from Pendiente to Iniciada.
		if quotation.CurrentStatus == QuotationStatusPendiente {
			return TransitionQuotationTx(tx, quotation, QuotationStatusIniciada)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

// GetProviderQuotation loads a provider bid with its lines.
func GetProviderQuotation(ctx context.Context, id int) (*ProviderQuotation, error) {
	db := config.GetDB()
	var provider ProviderQuotation
	if err := db.WithContext(ctx).Preload("Details").First(&provider, id).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}
