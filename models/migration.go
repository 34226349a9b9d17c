package models

import (
	"log"

	"bitbucket.org/obrasur/procurement_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Resource{}, &Requisition{}, &RequisitionResourceLine{},
		&Quotation{}, &QuotationResourceLine{},
		&ProviderQuotation{}, &ProviderBidLine{},
		&PurchaseOrder{}, &PurchaseOrderLine{},
		&TransferOrder{}, &TransferOrderLine{},
		&SagaStepRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
