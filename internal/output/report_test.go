package output

import (
	"strings"
	"testing"
	"time"

	"github.com/marcus/fueltrack/internal/models"
)

func TestBuildReport(t *testing.T) {
	events := []models.FuelEvent{
		{EquipmentID: "eq-1", FuelType: "Diesel", Liters: 40, TotalCost: 240, AverageConsumption: 10},
		{EquipmentID: "eq-1", FuelType: "Diesel", Liters: 60, TotalCost: 360, AverageConsumption: 8},
		{EquipmentID: "eq-2", FuelType: "Gasolina", Liters: 10, TotalCost: 70},
	}
	equipment := []models.Equipment{
		{ID: "eq-1", Name: "Truck 12", Measurement: models.MeasureDistance},
	}

	md := BuildReport(ReportInput{
		From:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Events:    events,
		Equipment: equipment,
	})

	for _, want := range []string{
		"# Fuel report",
		"_2024-03-01 to 2024-03-31_",
		"**Events:** 3",
		"**Liters:** 110.00",
		"**Total cost:** R$ 670.00",
		"| Truck 12 | 2 | 100.00 | R$ 600.00 | 9.00 km/L |",
		"| N/A | 1 | 10.00 | R$ 70.00 | - |",
		"| Diesel | 100.00 | R$ 600.00 | R$ 6.00 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q:\n%s", want, md)
		}
	}
	if strings.Index(md, "Truck 12") > strings.Index(md, "| N/A |") {
		t.Error("equipment should be ordered by cost")
	}
}

func TestBuildReportEmpty(t *testing.T) {
	md := BuildReport(ReportInput{Title: "March"})
	if !strings.Contains(md, "# March") || !strings.Contains(md, "No fuel events recorded.") {
		t.Errorf("unexpected empty report:\n%s", md)
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	out, err := RenderMarkdownWithWidth("   ", 40)
	if err != nil || out != "" {
		t.Errorf("RenderMarkdownWithWidth(blank) = %q, %v", out, err)
	}
}

func TestRenderMarkdownReport(t *testing.T) {
	out, err := RenderMarkdownWithWidth(BuildReport(ReportInput{}), 60)
	if err != nil {
		t.Fatalf("RenderMarkdownWithWidth: %v", err)
	}
	if !strings.Contains(out, "Fuel report") {
		t.Errorf("rendered report missing title: %q", out)
	}
}
