package reports

import (
	"fmt"

	"bitbucket.org/obrasur/procurement_backend/models"
	"github.com/xuri/excelize/v2"
)

// ExportBidComparison renders the award-decision grid as an Excel workbook:
// one row per quotation resource line, one column per provider, best unit
// price highlighted, provider totals at the bottom.
func ExportBidComparison(comparison *models.BidComparison, resourceNames map[int]string) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Comparacion"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	bestStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, err
	}

	f.SetCellValue(sheet, "A1", "Recurso")
	f.SetCellValue(sheet, "B1", "Cantidad")
	for i, provider := range comparison.Providers {
		cell, _ := excelize.CoordinatesToCellName(3+i, 1)
		f.SetCellValue(sheet, cell, fmt.Sprintf("Proveedor %d", provider.ProviderId))
	}

	for row, line := range comparison.Lines {
		name := resourceNames[line.ResourceId]
		if name == "" {
			name = fmt.Sprintf("Recurso %d", line.ResourceId)
		}
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row+2), name)
		qty, _ := line.SelectedQty.Float64()
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row+2), qty)
		for col, price := range line.UnitPrices {
			if price == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(3+col, row+2)
			value, _ := price.Float64()
			f.SetCellValue(sheet, cell, value)
			if line.BestUnitPrice != nil && price.Equal(*line.BestUnitPrice) {
				f.SetCellStyle(sheet, cell, cell, bestStyle)
			}
		}
	}

	totalRow := len(comparison.Lines) + 2
	f.SetCellValue(sheet, fmt.Sprintf("A%d", totalRow), "Total")
	for i, provider := range comparison.Providers {
		cell, _ := excelize.CoordinatesToCellName(3+i, totalRow)
		total, _ := provider.Total.Float64()
		f.SetCellValue(sheet, cell, total)
		if provider.ProviderQuotationId == comparison.BestProviderQuoId && comparison.BestProviderQuoId != 0 {
			f.SetCellStyle(sheet, cell, cell, bestStyle)
		}
	}

	return f, nil
}
