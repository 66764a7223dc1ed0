// Package export writes fuel events to a local spreadsheet file.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/marcus/fueltrack/internal/models"
)

// SheetName is the single sheet in an exported workbook
const SheetName = "Abastecimentos"

// Columns is the header row, in order
var Columns = []string{
	"Data", "Obra", "Equipamento", "KM ANTERIOR", "KM ATUAL", "LITROS", "NF",
	"REQUISICAO", "CONSUMO", "RESPONSAVEL", "ID", "Preço/Litro", "Valor Total",
	"Observações", "Última Atualização", "Atualizado por",
}

// FileName returns the default export file name for the given day
func FileName(now time.Time) string {
	return fmt.Sprintf("FuelTrack_Export_%s.xlsx", now.Format("2006-01-02"))
}

// WriteXLSX writes events as one workbook. Sites and equipment are looked
// up by id; missing ones render as the placeholder.
func WriteXLSX(w io.Writer, events []models.FuelEvent, sites []models.Site, equipment []models.Equipment) error {
	siteNames := make(map[string]string, len(sites))
	for _, s := range sites {
		siteNames[s.ID] = s.Name
	}
	eqNames := make(map[string]string, len(equipment))
	for _, e := range equipment {
		eqNames[e.ID] = e.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range events {
		ev := &events[i]
		row := []any{
			ev.EventDate.Format("02/01/2006"),
			nameOr(siteNames, ev.SiteID),
			nameOr(eqNames, ev.EquipmentID),
			previous(ev),
			ev.CurrentReading,
			ev.Liters,
			ev.InvoiceNumber,
			ev.RequisitionNumber,
			fmt.Sprintf("%.2f", ev.AverageConsumption),
			ev.OperatorName,
			ev.ID,
			ev.PricePerLiter,
			ev.TotalCost,
			ev.Notes,
			updatedAt(ev),
			orPlaceholder(ev.LastUpdatedBy),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12)
	_ = f.SetColWidth(SheetName, "B", "C", 24)
	_ = f.SetColWidth(SheetName, "K", "K", 38)
	_ = f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return models.Placeholder
}

func previous(ev *models.FuelEvent) float64 {
	if ev.PreviousReading == nil {
		return 0
	}
	return *ev.PreviousReading
}

func updatedAt(ev *models.FuelEvent) string {
	if ev.UpdatedAt.IsZero() {
		return models.Placeholder
	}
	return ev.UpdatedAt.Local().Format("02/01/2006 15:04")
}

func orPlaceholder(s string) string {
	if s == "" {
		return models.Placeholder
	}
	return s
}
