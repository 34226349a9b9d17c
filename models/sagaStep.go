package models

import (
	"time"
)

// SagaStepRecord is the durable executed-step log of a purchase-order
// generation run. Completed steps are never compensated automatically;
// the log is what a retry resumes from and what manual correction reads.
type SagaStepRecord struct {
	ID                  int            `gorm:"primary_key" json:"id"`
	QuotationId         int            `gorm:"index;not null" json:"quotation_id"`
	ProviderQuotationId int            `gorm:"index;not null" json:"provider_quotation_id"`
	StepName            string         `gorm:"size:100;not null" json:"step_name"`
	StepIndex           int            `gorm:"not null" json:"step_index"`
	Status              SagaStepStatus `gorm:"type:enum('Completed','Failed');not null" json:"status"`
	LastError           *string        `gorm:"type:text;default:null" json:"last_error"`
	CorrelationId       string         `gorm:"size:64;index" json:"correlation_id"`
	RequesterId         int            `gorm:"index;default:0" json:"requester_id"`
	CreatedAt           time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
