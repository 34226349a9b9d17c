package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/obrasur/procurement_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseOrder is generated once per awarded provider quotation. An issued
// order reserves quantity unconditionally.
type PurchaseOrder struct {
	ID                int                 `gorm:"primary_key" json:"id"`
	Code              string              `gorm:"size:50;uniqueIndex;not null" json:"code"`
	ProviderId        int                 `gorm:"index;not null" json:"provider_id" binding:"required"`
	SourceQuotationId int                 `gorm:"index;not null" json:"source_quotation_id" binding:"required"`
	IssueDate         time.Time           `gorm:"not null" json:"issue_date"`
	StartDate         *time.Time          `gorm:"default:null" json:"start_date"`
	EndDate           time.Time           `gorm:"not null" json:"end_date"`
	Description       string              `gorm:"type:text;default:null" json:"description"`
	Active            *bool               `gorm:"not null;default:true" json:"active"`
	Details           []PurchaseOrderLine `gorm:"foreignKey:PurchaseOrderId" json:"purchase_order_details"`
	CreatedAt         time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseOrderLine struct {
	ID               int              `gorm:"primary_key" json:"id"`
	PurchaseOrderId  int              `gorm:"index;not null" json:"purchase_order_id" binding:"required"`
	ResourceId       int              `gorm:"index;not null" json:"resource_id" binding:"required"`
	Qty              decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"qty"`
	ActualCost       decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"actual_cost"`
	ApproximateCost  decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"approximate_cost"`
	FulfillmentState FulfillmentState `gorm:"type:enum('Pendiente','Atendida');not null;default:'Pendiente'" json:"fulfillment_state"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetPurchaseOrder loads an order with its lines.
func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	db := config.GetDB()
	var order PurchaseOrder
	if err := db.WithContext(ctx).Preload("Details").First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// NextPurchaseOrderCode allocates the next order code inside tx. Codes are
// sequential per calendar year ("OC-2026-000013").
func NextPurchaseOrderCode(tx *gorm.DB, issueDate time.Time) (string, error) {
	year := issueDate.UTC().Year()
	var count int64
	if err := tx.Model(&PurchaseOrder{}).
		Where("issue_date >= ? AND issue_date < ?",
			time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC)).
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("OC-%d-%06d", year, count+1), nil
}
