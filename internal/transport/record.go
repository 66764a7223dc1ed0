package transport

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/fueltrack/internal/models"
)

// Header is the title row of the remote sheet, in column order.
var Header = []any{
	"UUID", "Data", "Obra ID", "Obra", "Equipamento ID", "Equipamento", "Tipo Equipamento",
	"Medição", "Litros", "Combustível", "Preço/Litro", "Valor Total", "Consumo Médio",
	"Custo por Unidade", "Responsável", "NF", "Requisição", "Observações", "Data Sync",
}

// ColumnCount is the number of columns in a remote row
const ColumnCount = 19

const dateLayout = "2006-01-02"

// Record is one fuel event flattened for the remote sheet, with the site
// and equipment names resolved.
type Record struct {
	ID                 string
	Date               string
	SiteID             string
	SiteName           string
	EquipmentID        string
	EquipmentName      string
	EquipmentCategory  string
	CurrentReading     float64
	Liters             float64
	FuelType           string
	PricePerLiter      float64
	TotalCost          float64
	AverageConsumption float64
	CostPerUnit        float64
	OperatorName       string
	InvoiceNumber      string
	RequisitionNumber  string
	Notes              string
	SyncedAt           string
}

// NewRecord flattens ev. A nil site or equipment is rendered with the
// placeholder name.
func NewRecord(ev *models.FuelEvent, site *models.Site, eq *models.Equipment, syncedAt time.Time) Record {
	r := Record{
		ID:                 ev.ID,
		Date:               ev.EventDate.Format(dateLayout),
		SiteID:             ev.SiteID,
		SiteName:           models.Placeholder,
		EquipmentID:        ev.EquipmentID,
		EquipmentName:      models.Placeholder,
		EquipmentCategory:  models.Placeholder,
		CurrentReading:     ev.CurrentReading,
		Liters:             ev.Liters,
		FuelType:           ev.FuelType,
		PricePerLiter:      ev.PricePerLiter,
		TotalCost:          ev.TotalCost,
		AverageConsumption: ev.AverageConsumption,
		CostPerUnit:        ev.CostPerUnit,
		OperatorName:       ev.OperatorName,
		InvoiceNumber:      ev.InvoiceNumber,
		RequisitionNumber:  ev.RequisitionNumber,
		Notes:              ev.Notes,
		SyncedAt:           syncedAt.UTC().Format(time.RFC3339),
	}
	if site != nil {
		r.SiteName = site.Name
	}
	if eq != nil {
		r.EquipmentName = eq.Name
		r.EquipmentCategory = eq.Category
	}
	return r
}

// Row renders the record in remote column order.
func (r Record) Row() []any {
	return []any{
		r.ID, r.Date, r.SiteID, r.SiteName, r.EquipmentID, r.EquipmentName, r.EquipmentCategory,
		r.CurrentReading, r.Liters, r.FuelType, r.PricePerLiter, r.TotalCost, r.AverageConsumption,
		r.CostPerUnit, r.OperatorName, r.InvoiceNumber, r.RequisitionNumber, r.Notes, r.SyncedAt,
	}
}

// Rows renders a batch.
func Rows(records []Record) [][]any {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = r.Row()
	}
	return rows
}

// ParseRow maps a remote row back to a record by position. Missing
// trailing cells are treated as empty; numeric cells may arrive as
// numbers or text.
func ParseRow(row []any) (Record, error) {
	cell := func(i int) any {
		if i < len(row) {
			return row[i]
		}
		return nil
	}

	r := Record{
		ID:                cellString(cell(0)),
		Date:              cellString(cell(1)),
		SiteID:            cellString(cell(2)),
		SiteName:          cellString(cell(3)),
		EquipmentID:       cellString(cell(4)),
		EquipmentName:     cellString(cell(5)),
		EquipmentCategory: cellString(cell(6)),
		FuelType:          cellString(cell(9)),
		OperatorName:      cellString(cell(14)),
		InvoiceNumber:     cellString(cell(15)),
		RequisitionNumber: cellString(cell(16)),
		Notes:             cellString(cell(17)),
		SyncedAt:          cellString(cell(18)),
	}
	if r.ID == "" {
		return Record{}, fmt.Errorf("%w: row without id", ErrMalformedResponse)
	}

	nums := []struct {
		col int
		dst *float64
	}{
		{7, &r.CurrentReading},
		{8, &r.Liters},
		{10, &r.PricePerLiter},
		{11, &r.TotalCost},
		{12, &r.AverageConsumption},
		{13, &r.CostPerUnit},
	}
	for _, n := range nums {
		v, err := cellNumber(cell(n.col))
		if err != nil {
			return Record{}, fmt.Errorf("%w: row %s column %d: %v", ErrMalformedResponse, r.ID, n.col+1, err)
		}
		*n.dst = v
	}
	return r, nil
}

// FuelEvent converts a pulled record into a local event. Site and
// equipment names are not stored on the event.
func (r Record) FuelEvent() (models.FuelEvent, error) {
	date, err := parseRemoteDate(r.Date)
	if err != nil {
		return models.FuelEvent{}, fmt.Errorf("record %s: %w", r.ID, err)
	}
	return models.FuelEvent{
		ID:                 r.ID,
		SiteID:             r.SiteID,
		EquipmentID:        r.EquipmentID,
		EventDate:          date,
		CurrentReading:     r.CurrentReading,
		Liters:             r.Liters,
		FuelType:           r.FuelType,
		PricePerLiter:      r.PricePerLiter,
		TotalCost:          r.TotalCost,
		AverageConsumption: r.AverageConsumption,
		CostPerUnit:        r.CostPerUnit,
		OperatorName:       r.OperatorName,
		InvoiceNumber:      r.InvoiceNumber,
		RequisitionNumber:  r.RequisitionNumber,
		Notes:              r.Notes,
	}, nil
}

func parseRemoteDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, time.RFC3339Nano, "02/01/2006", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// cellNumber coerces a cell to a float. Empty cells are zero. Text with a
// comma as the only separator is read as a decimal comma.
func cellNumber(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	}

	s := cellString(v)
	if s == "" {
		return 0, nil
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}
